package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nplace/tracker/internal/db"
	"github.com/nplace/tracker/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// preparedStatements lists queries to prepare on each new connection:
// these two run once per keyword per collection sweep.
var preparedStatements = map[string]string{
	"insert_snapshot": `INSERT INTO ranking_snapshots (id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"latest_snapshots": `SELECT id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at
		FROM ranking_snapshots WHERE tracked_keyword_id = $1 ORDER BY collected_at DESC LIMIT $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS stores (
	id              TEXT PRIMARY KEY,
	naver_place_id  TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	category        TEXT,
	address         TEXT,
	naver_place_url TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tracked_keywords (
	id              TEXT PRIMARY KEY,
	store_id        TEXT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	keyword         TEXT NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	collection_time TEXT,
	alert_enabled   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ranking_snapshots (
	id                 TEXT PRIMARY KEY,
	tracked_keyword_id TEXT NOT NULL REFERENCES tracked_keywords(id) ON DELETE CASCADE,
	rank_position      INTEGER,
	total_results      INTEGER,
	visitor_count      INTEGER,
	blog_review_count  INTEGER,
	collected_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_keywords_store_id ON tracked_keywords(store_id);
CREATE INDEX IF NOT EXISTS idx_keywords_active ON tracked_keywords(is_active);
CREATE INDEX IF NOT EXISTS idx_snapshots_keyword_id ON ranking_snapshots(tracked_keyword_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_collected_at ON ranking_snapshots(collected_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Stores ---

func (s *PostgresStore) CreateStore(ctx context.Context, st model.Store) (*model.Store, error) {
	st.ID = uuid.New().String()
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO stores (id, naver_place_id, name, category, address, naver_place_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		st.ID, st.NaverPlaceID, st.Name, nullStr(st.Category), nullStr(st.Address), nullStr(st.NaverPlaceURL), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert store")
	}
	return &st, nil
}

func (s *PostgresStore) GetStore(ctx context.Context, id string) (*model.Store, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, naver_place_id, name, category, address, naver_place_url, created_at, updated_at
		 FROM stores WHERE id = $1`, id,
	)
	return scanStorePg(row)
}

func (s *PostgresStore) ListStores(ctx context.Context) ([]model.Store, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, naver_place_id, name, category, address, naver_place_url, created_at, updated_at
		 FROM stores ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stores")
	}
	defer rows.Close()

	var stores []model.Store
	for rows.Next() {
		st, err := scanStorePg(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, *st)
	}
	return stores, eris.Wrap(rows.Err(), "postgres: list stores iterate")
}

func (s *PostgresStore) DeleteStore(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete store %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "store %s", id)
	}
	return nil
}

// --- Keywords ---

func (s *PostgresStore) AddKeyword(ctx context.Context, kw model.TrackedKeyword) (*model.TrackedKeyword, error) {
	kw.ID = uuid.New().String()
	kw.IsActive = true
	now := time.Now().UTC()
	kw.CreatedAt = now
	kw.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tracked_keywords (id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		kw.ID, kw.StoreID, kw.Keyword, kw.IsActive, nullStr(kw.CollectionTime), kw.AlertEnabled, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert keyword for store %s", kw.StoreID)
	}
	return &kw, nil
}

func (s *PostgresStore) GetKeyword(ctx context.Context, id string) (*model.TrackedKeyword, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at
		 FROM tracked_keywords WHERE id = $1`, id,
	)
	return scanKeywordPg(row)
}

func (s *PostgresStore) ListKeywords(ctx context.Context, storeID string) ([]model.TrackedKeyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at
		 FROM tracked_keywords WHERE store_id = $1 ORDER BY created_at ASC`, storeID)
}

func (s *PostgresStore) ListActiveKeywords(ctx context.Context) ([]model.TrackedKeyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, store_id, keyword, is_active, collection_time, alert_enabled, created_at, updated_at
		 FROM tracked_keywords WHERE is_active ORDER BY created_at ASC`)
}

func (s *PostgresStore) queryKeywords(ctx context.Context, query string, args ...any) ([]model.TrackedKeyword, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list keywords")
	}
	defer rows.Close()

	var kws []model.TrackedKeyword
	for rows.Next() {
		kw, err := scanKeywordPg(rows)
		if err != nil {
			return nil, err
		}
		kws = append(kws, *kw)
	}
	return kws, eris.Wrap(rows.Err(), "postgres: list keywords iterate")
}

func (s *PostgresStore) UpdateKeyword(ctx context.Context, id string, upd model.KeywordUpdate) (*model.TrackedKeyword, error) {
	query := `UPDATE tracked_keywords SET updated_at = $1`
	args := []any{time.Now().UTC()}

	if upd.IsActive != nil {
		args = append(args, *upd.IsActive)
		query += `, is_active = $` + strconv.Itoa(len(args))
	}
	if upd.CollectionTime != nil {
		args = append(args, nullStr(*upd.CollectionTime))
		query += `, collection_time = $` + strconv.Itoa(len(args))
	}
	if upd.AlertEnabled != nil {
		args = append(args, *upd.AlertEnabled)
		query += `, alert_enabled = $` + strconv.Itoa(len(args))
	}
	args = append(args, id)
	query += ` WHERE id = $` + strconv.Itoa(len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update keyword %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "keyword %s", id)
	}
	return s.GetKeyword(ctx, id)
}

func (s *PostgresStore) DeleteKeyword(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tracked_keywords WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete keyword %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "keyword %s", id)
	}
	return nil
}

// --- Snapshots ---

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snap model.RankingSnapshot) (*model.RankingSnapshot, error) {
	snap.ID = uuid.New().String()
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ranking_snapshots (id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID, snap.TrackedKeywordID,
		nullInt(snap.RankPosition), nullInt(snap.TotalResults),
		nullInt(snap.VisitorCount), nullInt(snap.BlogReviewCount),
		snap.CollectedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert snapshot for keyword %s", snap.TrackedKeywordID)
	}
	return &snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, keywordID string, filter SnapshotFilter) ([]model.RankingSnapshot, error) {
	query := `SELECT id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at
		 FROM ranking_snapshots WHERE tracked_keyword_id = $1`
	args := []any{keywordID}

	if filter.From != nil {
		args = append(args, filter.From.UTC())
		query += ` AND collected_at >= $` + strconv.Itoa(len(args))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		query += ` AND collected_at <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY collected_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	return s.querySnapshots(ctx, query, args...)
}

func (s *PostgresStore) LatestSnapshots(ctx context.Context, keywordID string, n int) ([]model.RankingSnapshot, error) {
	if n <= 0 {
		n = 1
	}
	return s.querySnapshots(ctx,
		`SELECT id, tracked_keyword_id, rank_position, total_results, visitor_count, blog_review_count, collected_at
		 FROM ranking_snapshots WHERE tracked_keyword_id = $1 ORDER BY collected_at DESC LIMIT $2`,
		keywordID, n)
}

func (s *PostgresStore) querySnapshots(ctx context.Context, query string, args ...any) ([]model.RankingSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.RankingSnapshot
	for rows.Next() {
		snap, err := scanSnapshotPg(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

// helpers

func scanStorePg(row pgx.Row) (*model.Store, error) {
	var st model.Store
	var category, address, placeURL *string

	err := row.Scan(&st.ID, &st.NaverPlaceID, &st.Name, &category, &address, &placeURL, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "store")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan store")
	}
	st.Category = deref(category)
	st.Address = deref(address)
	st.NaverPlaceURL = deref(placeURL)
	return &st, nil
}

func scanKeywordPg(row pgx.Row) (*model.TrackedKeyword, error) {
	var kw model.TrackedKeyword
	var collectionTime *string

	err := row.Scan(&kw.ID, &kw.StoreID, &kw.Keyword, &kw.IsActive, &collectionTime, &kw.AlertEnabled, &kw.CreatedAt, &kw.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "keyword")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan keyword")
	}
	kw.CollectionTime = deref(collectionTime)
	return &kw, nil
}

func scanSnapshotPg(row pgx.Row) (*model.RankingSnapshot, error) {
	var snap model.RankingSnapshot

	err := row.Scan(&snap.ID, &snap.TrackedKeywordID,
		&snap.RankPosition, &snap.TotalResults, &snap.VisitorCount, &snap.BlogReviewCount,
		&snap.CollectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "snapshot")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}
	return &snap, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
