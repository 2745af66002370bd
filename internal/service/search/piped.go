package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PipedProvider queries a Piped instance; used as the fallback when the
// primary provider is unreachable.
type PipedProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewPipedProvider(baseURL string) *PipedProvider {
	return &PipedProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PipedProvider) Name() string {
	return "piped"
}

type pipedResponse struct {
	Items []struct {
		URL          string `json:"url"`
		Title        string `json:"title"`
		UploaderName string `json:"uploaderName"`
		Duration     int    `json:"duration"`
		Views        int64  `json:"views"`
		Thumbnail    string `json:"thumbnail"`
	} `json:"items"`
}

func (p *PipedProvider) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s&filter=videos", p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result pipedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	videos := make([]Video, 0, limit)
	for _, item := range result.Items {
		if !strings.HasPrefix(item.URL, "/watch?v=") {
			continue
		}
		videoID := strings.TrimPrefix(item.URL, "/watch?v=")

		videos = append(videos, Video{
			VideoID:   videoID,
			Title:     item.Title,
			Author:    item.UploaderName,
			Duration:  formatDuration(item.Duration),
			Thumbnail: item.Thumbnail,
			ViewCount: item.Views,
		})
		if len(videos) == limit {
			break
		}
	}

	return videos, nil
}
