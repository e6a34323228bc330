package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nplace/tracker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stores (
	id              TEXT PRIMARY KEY,
	naver_place_id  TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	category        TEXT,
	address         TEXT,
	naver_place_url TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tracked_keywords (
	id              TEXT PRIMARY KEY,
	store_id        TEXT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	keyword         TEXT NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1,
	collection_time TEXT,
	alert_enabled   INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ranking_snapshots (
	id                 TEXT PRIMARY KEY,
	tracked_keyword_id TEXT NOT NULL REFERENCES tracked_keywords(id) ON DELETE CASCADE,
	rank_position      INTEGER,
	total_results      INTEGER,
	visitor_count      INTEGER,
	blog_review_count  INTEGER,
	collected_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_keywords_store_id ON tracked_keywords(store_id);
CREATE INDEX IF NOT EXISTS idx_keywords_active ON tracked_keywords(is_active);
CREATE INDEX IF NOT EXISTS idx_snapshots_keyword_id ON ranking_snapshots(tracked_keyword_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_collected_at ON ranking_snapshots(collected_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Stores ---

func (s *SQLiteStore) CreateStore(ctx context.Context, st model.Store) (*model.Store, error) {
	st.ID = uuid.New().String()
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stores (id, naver_place_id, name, category, address, naver_place_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.NaverPlaceID, st.Name, nullStr(st.Category), nullStr(st.Address), nullStr(st.NaverPlaceURL), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert store")
	}
	return &st, nil
}

func (s *SQLiteStore) GetStore(ctx context.Context, id string) (*model.Store, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, naver_place_id, name, category, address, naver_place_url, created_at, updated_at
		 FROM stores WHERE id = ?`, id,
	)
	return scanStore(row)
}

func (s *SQLiteStore) ListStores(ctx context.Context) ([]model.Store, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, naver_place_id, name, category, address, naver_place_url, created_at, updated_at
		 FROM stores ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stores")
	}
	defer rows.Close()

	var stores []model.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, *st)
	}
	return stores, eris.Wrap(rows.Err(), "sqlite: list stores iterate")
}

func (s *SQLiteStore) DeleteStore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete store %s", id)
	}
	return checkRowsAffected(res, "store", id)
}

// --- Keywords ---

func (s *SQLiteStore) AddKeyword(ctx context.Context, kw model.TrackedKeyword) (*model.TrackedKeyword, error) {
	kw.ID = uuid.New().String()
	kw.IsActive = true
	now := time.Now().UTC()
	kw.CreatedAt = now
	kw.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_keywords (id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		kw.ID, kw.StoreID, kw.Keyword, kw.IsActive, nullStr(kw.CollectionTime), kw.AlertEnabled, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert keyword for store %s", kw.StoreID)
	}
	return &kw, nil
}

func (s *SQLiteStore) GetKeyword(ctx context.Context, id string) (*model.TrackedKeyword, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at
		 FROM tracked_keywords WHERE id = ?`, id,
	)
	return scanKeyword(row)
}

func (s *SQLiteStore) ListKeywords(ctx context.Context, storeID string) ([]model.TrackedKeyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at
		 FROM tracked_keywords WHERE store_id = ? ORDER BY created_at ASC`, storeID)
}

func (s *SQLiteStore) ListActiveKeywords(ctx context.Context) ([]model.TrackedKeyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at
		 FROM tracked_keywords WHERE is_active = 1 ORDER BY created_at ASC`)
}

func (s *SQLiteStore) queryKeywords(ctx context.Context, query string, args ...any) ([]model.TrackedKeyword, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list keywords")
	}
	defer rows.Close()

	var kws []model.TrackedKeyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		kws = append(kws, *kw)
	}
	return kws, eris.Wrap(rows.Err(), "sqlite: list keywords iterate")
}

func (s *SQLiteStore) UpdateKeyword(ctx context.Context, id string, upd model.KeywordUpdate) (*model.TrackedKeyword, error) {
	query := `UPDATE tracked_keywords SET updated_at = ?`
	args := []any{time.Now().UTC()}

	if upd.IsActive != nil {
		query += `, is_active = ?`
		args = append(args, *upd.IsActive)
	}
	if upd.CollectionTime != nil {
		query += `, collection_time = ?`
		args = append(args, nullStr(*upd.CollectionTime))
	}
	if upd.AlertEnabled != nil {
		query += `, alert_enabled = ?`
		args = append(args, *upd.AlertEnabled)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update keyword %s", id)
	}
	if err := checkRowsAffected(res, "keyword", id); err != nil {
		return nil, err
	}
	return s.GetKeyword(ctx, id)
}

func (s *SQLiteStore) DeleteKeyword(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_keywords WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete keyword %s", id)
	}
	return checkRowsAffected(res, "keyword", id)
}

// --- Snapshots ---

func (s *SQLiteStore) InsertSnapshot(ctx context.Context, snap model.RankingSnapshot) (*model.RankingSnapshot, error) {
	snap.ID = uuid.New().String()
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ranking_snapshots (id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.TrackedKeywordID,
		nullInt(snap.RankPosition), nullInt(snap.TotalResults),
		nullInt(snap.VisitorCount), nullInt(snap.BlogReviewCount),
		snap.CollectedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert snapshot for keyword %s", snap.TrackedKeywordID)
	}
	return &snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, keywordID string, filter SnapshotFilter) ([]model.RankingSnapshot, error) {
	query := `SELECT id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at
		 FROM ranking_snapshots WHERE tracked_keyword_id = ?`
	args := []any{keywordID}

	if filter.From != nil {
		query += ` AND collected_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += ` AND collected_at <= ?`
		args = append(args, filter.To.UTC())
	}
	query += ` ORDER BY collected_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	return s.querySnapshots(ctx, query, args...)
}

func (s *SQLiteStore) LatestSnapshots(ctx context.Context, keywordID string, n int) ([]model.RankingSnapshot, error) {
	if n <= 0 {
		n = 1
	}
	return s.querySnapshots(ctx,
		`SELECT id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at
		 FROM ranking_snapshots WHERE tracked_keyword_id = ? ORDER BY collected_at DESC LIMIT ?`,
		keywordID, n)
}

func (s *SQLiteStore) querySnapshots(ctx context.Context, query string, args ...any) ([]model.RankingSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.RankingSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStore(row scannable) (*model.Store, error) {
	var st model.Store
	var category, address, placeURL sql.NullString

	err := row.Scan(&st.ID, &st.NaverPlaceID, &st.Name, &category, &address, &placeURL, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "store")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan store")
	}
	st.Category = category.String
	st.Address = address.String
	st.NaverPlaceURL = placeURL.String
	return &st, nil
}

func scanKeyword(row scannable) (*model.TrackedKeyword, error) {
	var kw model.TrackedKeyword
	var collectionTime sql.NullString

	err := row.Scan(&kw.ID, &kw.StoreID, &kw.Keyword, &kw.IsActive, &collectionTime, &kw.AlertEnabled, &kw.CreatedAt, &kw.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "keyword")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan keyword")
	}
	kw.CollectionTime = collectionTime.String
	return &kw, nil
}

func scanSnapshot(row scannable) (*model.RankingSnapshot, error) {
	var snap model.RankingSnapshot
	var rank, total, visitors, blogs sql.NullInt64

	err := row.Scan(&snap.ID, &snap.TrackedKeywordID, &rank, &total, &visitors, &blogs, &snap.CollectedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "snapshot")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}
	snap.RankPosition = fromNullInt(rank)
	snap.TotalResults = fromNullInt(total)
	snap.VisitorCount = fromNullInt(visitors)
	snap.BlogReviewCount = fromNullInt(blogs)
	return &snap, nil
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}
