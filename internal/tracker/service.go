// Package tracker orchestrates store registration, ranking collection, and
// dashboard assembly on top of the collector and the persistence layer.
package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/nplace/tracker/internal/alert"
	"github.com/nplace/tracker/internal/collector"
	"github.com/nplace/tracker/internal/model"
	"github.com/nplace/tracker/internal/store"
)

// ErrInvalidPlaceRef is returned when a place reference is neither a place
// page URL nor a numeric id.
var ErrInvalidPlaceRef = eris.New("invalid place reference")

// Config tunes collection behavior.
type Config struct {
	// RequestDelay is the minimum spacing between collections across the
	// whole service, keeping sweep traffic polite.
	RequestDelay time.Duration
	// MaxConcurrent bounds parallel keyword collections in CollectAll.
	MaxConcurrent int
	// Notifier, when set, is evaluated after every collection for keywords
	// with alerts enabled.
	Notifier *alert.Notifier
}

// Service is the application core shared by the HTTP server, the scheduler,
// and the CLI commands.
type Service struct {
	store     store.Store
	collector collector.Collector
	limiter   *rate.Limiter
	cfg       Config
}

// New creates a Service. Zero config fields fall back to sane values.
func New(st store.Store, col collector.Collector, cfg Config) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	return &Service{
		store:     st,
		collector: col,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
	}
}

// RegisterStore resolves a place reference (page URL or bare id), looks the
// place up, and persists it. When the place cannot be resolved right now the
// store is still registered under its raw id so tracking can start; the name
// falls back to the id, matching what a later collection would backfill.
func (s *Service) RegisterStore(ctx context.Context, placeRef string) (*model.Store, error) {
	placeID := collector.ExtractPlaceID(placeRef)
	if placeID == "" {
		return nil, eris.Wrapf(ErrInvalidPlaceRef, "tracker: %q", placeRef)
	}

	st := model.Store{NaverPlaceID: placeID, Name: placeID}
	if info := s.collector.GetPlaceInfo(ctx, placeID); info != nil {
		st.Name = info.Name
		st.Category = info.Category
		st.Address = info.Address
		st.NaverPlaceURL = info.PlaceURL
	} else {
		zap.L().Warn("place lookup failed, registering with raw id",
			zap.String("place_id", placeID))
	}

	created, err := s.store.CreateStore(ctx, st)
	if err != nil {
		return nil, eris.Wrapf(err, "tracker: register store %s", placeID)
	}
	return created, nil
}

// CollectRanking runs one collection for a tracked keyword and records a
// snapshot. A snapshot is written even when the store is not ranked: absence
// is a data point, stored as null rank fields.
func (s *Service) CollectRanking(ctx context.Context, keywordID string) (*model.RankingSnapshot, error) {
	kw, err := s.store.GetKeyword(ctx, keywordID)
	if err != nil {
		return nil, eris.Wrapf(err, "tracker: collect %s", keywordID)
	}
	st, err := s.store.GetStore(ctx, kw.StoreID)
	if err != nil {
		return nil, eris.Wrapf(err, "tracker: collect %s", keywordID)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "tracker: rate limit wait")
	}

	keyword := norm.NFC.String(kw.Keyword)
	entry := s.collector.FindRank(ctx, keyword, st.NaverPlaceID)

	snap := model.RankingSnapshot{TrackedKeywordID: keywordID}
	if entry != nil {
		snap.RankPosition = &entry.Position
		snap.TotalResults = &entry.Total
		snap.VisitorCount = entry.VisitorReviews
		snap.BlogReviewCount = entry.BlogReviews
	}

	saved, err := s.store.InsertSnapshot(ctx, snap)
	if err != nil {
		return nil, eris.Wrapf(err, "tracker: collect %s", keywordID)
	}

	s.notify(ctx, *kw, st.Name, saved)

	zap.L().Info("ranking collected",
		zap.String("keyword_id", keywordID),
		zap.String("keyword", kw.Keyword),
		zap.Bool("ranked", entry != nil))
	return saved, nil
}

// notify evaluates the fresh snapshot against the previous one and sends any
// resulting alerts. Delivery failures are logged inside Send, never surfaced.
func (s *Service) notify(ctx context.Context, kw model.TrackedKeyword, storeName string, latest *model.RankingSnapshot) {
	if s.cfg.Notifier == nil || !kw.AlertEnabled {
		return
	}

	snaps, err := s.store.LatestSnapshots(ctx, kw.ID, 2)
	if err != nil {
		zap.L().Warn("alert evaluation skipped",
			zap.String("keyword_id", kw.ID),
			zap.Error(err))
		return
	}
	var prev *model.RankingSnapshot
	if len(snaps) > 1 {
		prev = &snaps[1]
	}

	alerts := s.cfg.Notifier.Evaluate(kw, storeName, latest, prev)
	s.cfg.Notifier.Send(ctx, alerts)
}

// CollectAll sweeps every active keyword. Individual failures are logged and
// counted, not propagated, so one broken keyword never stops the sweep.
// Returns how many keywords were collected successfully.
func (s *Service) CollectAll(ctx context.Context) (int, error) {
	kws, err := s.store.ListActiveKeywords(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "tracker: collect all")
	}

	var collected atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)

	for _, kw := range kws {
		g.Go(func() error {
			if _, err := s.CollectRanking(gctx, kw.ID); err != nil {
				zap.L().Error("keyword collection failed",
					zap.String("keyword_id", kw.ID),
					zap.Error(err))
				return nil
			}
			collected.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(collected.Load()), eris.Wrap(err, "tracker: collect all")
	}

	zap.L().Info("collection sweep finished",
		zap.Int("keywords", len(kws)),
		zap.Int64("collected", collected.Load()))
	return int(collected.Load()), nil
}

// Dashboard assembles the all-stores dashboard, newest stores first, each
// keyword annotated with its latest two snapshots.
func (s *Service) Dashboard(ctx context.Context) ([]model.DashboardStore, error) {
	stores, err := s.store.ListStores(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "tracker: dashboard")
	}

	out := make([]model.DashboardStore, 0, len(stores))
	for _, st := range stores {
		ds, err := s.StoreDashboard(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *ds)
	}
	return out, nil
}

// StoreDashboard assembles the dashboard view for one store.
func (s *Service) StoreDashboard(ctx context.Context, storeID string) (*model.DashboardStore, error) {
	st, err := s.store.GetStore(ctx, storeID)
	if err != nil {
		return nil, eris.Wrapf(err, "tracker: dashboard %s", storeID)
	}
	kws, err := s.store.ListKeywords(ctx, storeID)
	if err != nil {
		return nil, eris.Wrapf(err, "tracker: dashboard %s", storeID)
	}

	ds := model.DashboardStore{Store: *st, Keywords: make([]model.DashboardKeyword, 0, len(kws))}
	for _, kw := range kws {
		dk := model.DashboardKeyword{TrackedKeyword: kw}

		snaps, err := s.store.LatestSnapshots(ctx, kw.ID, 2)
		if err != nil {
			return nil, eris.Wrapf(err, "tracker: dashboard %s", storeID)
		}
		if len(snaps) > 0 {
			latest := snaps[0]
			dk.LatestRank = latest.RankPosition
			dk.LatestVisitorCount = latest.VisitorCount
			dk.LatestBlogReviewCount = latest.BlogReviewCount
			collectedAt := latest.CollectedAt
			dk.LatestCollectedAt = &collectedAt
		}
		if len(snaps) > 1 {
			dk.PrevRank = snaps[1].RankPosition
		}
		if dk.LatestRank != nil && dk.PrevRank != nil {
			// Positive change means the store moved up the results.
			change := *dk.PrevRank - *dk.LatestRank
			dk.RankChange = &change
		}

		ds.Keywords = append(ds.Keywords, dk)
	}
	return &ds, nil
}
