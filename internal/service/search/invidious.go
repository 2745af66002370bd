package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// InvidiousProvider queries an Invidious instance's JSON search API.
type InvidiousProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewInvidiousProvider(baseURL string) *InvidiousProvider {
	return &InvidiousProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *InvidiousProvider) Name() string {
	return "invidious"
}

type invidiousResult struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	LengthSeconds   int    `json:"lengthSeconds"`
	ViewCount       int64  `json:"viewCount"`
	VideoThumbnails []struct {
		Quality string `json:"quality"`
		URL     string `json:"url"`
	} `json:"videoThumbnails"`
}

func (p *InvidiousProvider) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&type=video", p.baseURL, url.QueryEscape(query))

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

	var results []invidiousResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	videos := make([]Video, 0, limit)
	for _, r := range results {
		if r.VideoID == "" {
			continue
		}

		video := Video{
			VideoID:   r.VideoID,
			Title:     r.Title,
			Author:    r.Author,
			Duration:  formatDuration(r.LengthSeconds),
			ViewCount: r.ViewCount,
		}
		if len(r.VideoThumbnails) > 0 {
			video.Thumbnail = r.VideoThumbnails[0].URL
		}

		videos = append(videos, video)
		if len(videos) == limit {
			break
		}
	}

	return videos, nil
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}

	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}

	return strconv.Itoa(m) + ":" + fmt.Sprintf("%02d", s)
}
