// Package collector determines a store's Naver Place search ranking for a
// keyword. It reconciles two independently unreliable sources: the pcmap
// pages' embedded Apollo state (primary, carries real rank positions and
// review counts) and the official Local Search API (secondary, capped at
// five results with unreliable place ids, used for metadata enrichment and
// as a search fallback).
package collector

import (
	"context"

	"go.uber.org/zap"
)

// DefaultLimit is the search depth used when callers pass no limit.
const DefaultLimit = 50

// RankEntry is one position in a keyword's ranked results. Review counts
// are nil when the source does not carry them or the value did not coerce
// to an integer.
type RankEntry struct {
	Position       int    `json:"position"`
	Total          int    `json:"total"`
	VisitorReviews *int   `json:"visitor_reviews"`
	BlogReviews    *int   `json:"blog_reviews"`
	PlaceID        string `json:"place_id"`
}

// PlaceInfo is a snapshot of a place's public metadata, built fresh from
// live responses on every call. PlaceURL always embeds PlaceID.
type PlaceInfo struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Address  string `json:"address,omitempty"`
	PlaceURL string `json:"place_url"`
	PlaceID  string `json:"place_id"`
}

// Collector is the only surface callers use; the underlying sources are
// never invoked directly. Operations absorb every transport, extraction,
// and shape fault internally — they log and return empty or nil instead of
// erroring, because "not ranked" and "not reachable right now" are both
// reportable outcomes, not failures.
type Collector interface {
	// Search returns the ranked entries for keyword, at most limit of them
	// (DefaultLimit when limit <= 0). Order mirrors the source.
	Search(ctx context.Context, keyword string, limit int) []RankEntry
	// GetPlaceInfo returns metadata for a place id, or nil when the place
	// cannot be resolved.
	GetPlaceInfo(ctx context.Context, placeID string) *PlaceInfo
	// FindRank returns the entry for placeID within keyword's results, or
	// nil when the place is absent from them.
	FindRank(ctx context.Context, keyword, placeID string) *RankEntry
	// Close releases the underlying network clients. Idempotent.
	Close()
}

// primarySource is the scrape path contract, satisfied by pcmapScraper and
// by fakes in tests. A nil-slice/nil-info return with a nil error is a
// legitimate empty result; an error is a fault.
type primarySource interface {
	search(ctx context.Context, keyword string, limit int) ([]RankEntry, error)
	placeInfo(ctx context.Context, placeID string) (*PlaceInfo, error)
	close()
}

// secondarySource is the API path contract, satisfied by localAPI.
type secondarySource interface {
	search(ctx context.Context, keyword string, display int) ([]RankEntry, error)
	placeInfoByName(ctx context.Context, name string) (*PlaceInfo, error)
	close()
}

// Config carries the optional Local Search API credential. When either
// field is empty the secondary source is disabled entirely: searches never
// fall back and place info is never enriched. The scrape path works
// regardless.
type Config struct {
	ClientID     string
	ClientSecret string
	// Limit is how deep FindRank searches the results (DefaultLimit when 0).
	Limit int
}

// NaverCollector implements Collector over the pcmap scrape path and the
// Local Search API.
type NaverCollector struct {
	primary   primarySource
	secondary secondarySource // nil when no API credential is configured
	limit     int
}

// New builds a collector. Network clients are created lazily on first use.
func New(cfg Config) *NaverCollector {
	c := &NaverCollector{primary: newPcmapScraper(), limit: cfg.Limit}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		c.secondary = newLocalAPI(cfg.ClientID, cfg.ClientSecret)
	}
	return c
}

func (c *NaverCollector) Search(ctx context.Context, keyword string, limit int) []RankEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}

	entries, err := c.primary.search(ctx, keyword, limit)
	if err == nil {
		// An empty-but-successful scrape is a real zero-result answer and
		// does not trigger the API fallback.
		return entries
	}
	zap.L().Warn("collector: pcmap search failed",
		zap.String("keyword", keyword),
		zap.Error(err),
	)

	if c.secondary == nil {
		return nil
	}
	entries, err = c.secondary.search(ctx, keyword, limit)
	if err != nil {
		zap.L().Warn("collector: api search fallback failed",
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		return nil
	}
	return entries
}

func (c *NaverCollector) GetPlaceInfo(ctx context.Context, placeID string) *PlaceInfo {
	info, err := c.primary.placeInfo(ctx, placeID)
	if err != nil {
		zap.L().Warn("collector: place detail lookup failed",
			zap.String("place_id", placeID),
			zap.Error(err),
		)
		return nil
	}
	// The API cannot be queried by place id, only by name, so there is no
	// fallback for the identity data itself.
	if info == nil || c.secondary == nil {
		return info
	}

	apiInfo, err := c.secondary.placeInfoByName(ctx, info.Name)
	if err != nil {
		zap.L().Warn("collector: api enrichment failed",
			zap.String("place_id", placeID),
			zap.Error(err),
		)
		return info
	}
	if apiInfo != nil {
		// Overlay: a non-empty API value wins, an empty one never clobbers
		// what the scrape found.
		if apiInfo.Category != "" {
			info.Category = apiInfo.Category
		}
		if apiInfo.Address != "" {
			info.Address = apiInfo.Address
		}
	}
	return info
}

func (c *NaverCollector) FindRank(ctx context.Context, keyword, placeID string) *RankEntry {
	// Ranking questions are answered by the scrape path only: API positions
	// are defined unreliable and must never back a rank answer.
	limit := c.limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	entries, err := c.primary.search(ctx, keyword, limit)
	if err != nil {
		zap.L().Warn("collector: rank search failed",
			zap.String("keyword", keyword),
			zap.String("place_id", placeID),
			zap.Error(err),
		)
		return nil
	}

	for i := range entries {
		if entries[i].PlaceID == placeID {
			return &entries[i]
		}
	}
	zap.L().Info("collector: place not ranked",
		zap.String("keyword", keyword),
		zap.String("place_id", placeID),
		zap.Int("results", len(entries)),
	)
	return nil
}

func (c *NaverCollector) Close() {
	c.primary.close()
	if c.secondary != nil {
		c.secondary.close()
	}
}
