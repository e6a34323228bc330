// Package store persists tracked stores, keywords, and ranking snapshots.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nplace/tracker/internal/model"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// check it with eris.Is to map to a 404 at the API boundary.
var ErrNotFound = eris.New("record not found")

// SnapshotFilter narrows a ranking-history query. Nil bounds are open;
// To is inclusive of the whole day it names.
type SnapshotFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// Store defines the persistence interface for the rank tracker.
type Store interface {
	// Stores
	CreateStore(ctx context.Context, s model.Store) (*model.Store, error)
	GetStore(ctx context.Context, id string) (*model.Store, error)
	ListStores(ctx context.Context) ([]model.Store, error)
	DeleteStore(ctx context.Context, id string) error

	// Keywords
	AddKeyword(ctx context.Context, kw model.TrackedKeyword) (*model.TrackedKeyword, error)
	GetKeyword(ctx context.Context, id string) (*model.TrackedKeyword, error)
	ListKeywords(ctx context.Context, storeID string) ([]model.TrackedKeyword, error)
	ListActiveKeywords(ctx context.Context) ([]model.TrackedKeyword, error)
	UpdateKeyword(ctx context.Context, id string, upd model.KeywordUpdate) (*model.TrackedKeyword, error)
	DeleteKeyword(ctx context.Context, id string) error

	// Ranking snapshots
	InsertSnapshot(ctx context.Context, snap model.RankingSnapshot) (*model.RankingSnapshot, error)
	ListSnapshots(ctx context.Context, keywordID string, filter SnapshotFilter) ([]model.RankingSnapshot, error)
	// LatestSnapshots returns up to n most recent snapshots for a keyword,
	// newest first. Two are enough for the dashboard's rank-change column.
	LatestSnapshots(ctx context.Context, keywordID string, n int) ([]model.RankingSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
