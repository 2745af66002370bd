// Package search looks up videos by free-text query across external
// providers, falling back through the configured chain and caching hits in
// redis. It lives entirely outside the room-mutation path: a provider
// outage degrades search, never playback.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyQuery         = errors.New("query is required")
	ErrAllProvidersFailed = errors.New("all search providers failed")
)

const (
	// MaxResults bounds every response regardless of provider generosity.
	MaxResults     = 20
	cacheKeyPrefix = "search:"
)

type Video struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	ViewCount int64  `json:"viewCount"`
}

type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

type service struct {
	providers []Provider
	rdb       *redis.Client
	cacheTTL  time.Duration
	logger    *slog.Logger
}

func NewService(providers []Provider, rdb *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *service {
	return &service{
		providers: providers,
		rdb:       rdb,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Search tries the cache, then each provider in order. The first provider
// to answer wins; its result is cached under the normalized query.
func (s *service) Search(ctx context.Context, query string) ([]Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	cacheKey := cacheKeyPrefix + strings.ToLower(query)
	if videos, ok := s.cacheGet(ctx, cacheKey); ok {
		return videos, nil
	}

	var lastErr error
	for _, provider := range s.providers {
		videos, err := provider.Search(ctx, query, MaxResults)
		if err != nil {
			s.logger.WarnContext(ctx, "search provider failed", "provider", provider.Name(), "error", err)
			lastErr = err
			continue
		}

		if len(videos) > MaxResults {
			videos = videos[:MaxResults]
		}

		s.cacheSet(ctx, cacheKey, videos)

		return videos, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

func (s *service) cacheGet(ctx context.Context, key string) ([]Video, bool) {
	if s.rdb == nil {
		return nil, false
	}

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "search cache get failed", "error", err)
		}
		return nil, false
	}

	var videos []Video
	if err := json.Unmarshal(raw, &videos); err != nil {
		return nil, false
	}

	return videos, true
}

func (s *service) cacheSet(ctx context.Context, key string, videos []Video) {
	if s.rdb == nil {
		return
	}

	raw, err := json.Marshal(videos)
	if err != nil {
		return
	}

	if err := s.rdb.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "search cache set failed", "error", err)
	}
}
