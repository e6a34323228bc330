package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nplace/tracker/internal/collector"
	"github.com/nplace/tracker/internal/model"
	"github.com/nplace/tracker/internal/store"
	"github.com/nplace/tracker/internal/tracker"
)

type stubCollector struct {
	info  map[string]*collector.PlaceInfo
	ranks map[string]*collector.RankEntry
}

func (c *stubCollector) Search(ctx context.Context, keyword string, limit int) []collector.RankEntry {
	return nil
}

func (c *stubCollector) GetPlaceInfo(ctx context.Context, placeID string) *collector.PlaceInfo {
	return c.info[placeID]
}

func (c *stubCollector) FindRank(ctx context.Context, keyword, placeID string) *collector.RankEntry {
	return c.ranks[keyword+"|"+placeID]
}

func (c *stubCollector) Close() {}

func newTestServer(t *testing.T, col *stubCollector) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	svc := tracker.New(st, col, tracker.Config{})
	ts := httptest.NewServer(New(svc, st).Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &stubCollector{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateStore(t *testing.T) {
	col := &stubCollector{info: map[string]*collector.PlaceInfo{
		"1234567": {
			Name:     "카페 모카",
			Category: "카페",
			PlaceURL: "https://pcmap.place.naver.com/place/1234567",
			PlaceID:  "1234567",
		},
	}}
	ts, _ := newTestServer(t, col)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores", map[string]string{"naver_place_id": "1234567"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[model.Store](t, resp)
	assert.Equal(t, "카페 모카", created.Name)
	assert.Equal(t, "1234567", created.NaverPlaceID)
	assert.NotEmpty(t, created.ID)
}

func TestCreateStore_BadInput(t *testing.T) {
	ts, _ := newTestServer(t, &stubCollector{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/stores", map[string]string{"naver_place_id": "not a place"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStore_NotFound(t *testing.T) {
	ts, _ := newTestServer(t, &stubCollector{})

	resp, err := http.Get(ts.URL + "/api/stores/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListStores_EmptyIsArray(t *testing.T) {
	ts, _ := newTestServer(t, &stubCollector{})

	resp, err := http.Get(ts.URL + "/api/stores")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	stores := decode[[]model.Store](t, resp)
	assert.NotNil(t, stores)
	assert.Empty(t, stores)
}

func TestDeleteStore(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	created, err := st.CreateStore(context.Background(), model.Store{NaverPlaceID: "1234567", Name: "가게"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/stores/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/stores/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func seedStoreAndKeyword(t *testing.T, st store.Store) (*model.Store, *model.TrackedKeyword) {
	t.Helper()
	created, err := st.CreateStore(context.Background(), model.Store{NaverPlaceID: "1234567", Name: "가게"})
	require.NoError(t, err)
	kw, err := st.AddKeyword(context.Background(), model.TrackedKeyword{StoreID: created.ID, Keyword: "강남 카페"})
	require.NoError(t, err)
	return created, kw
}

func TestAddKeyword(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	created, err := st.CreateStore(context.Background(), model.Store{NaverPlaceID: "1234567", Name: "가게"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores/"+created.ID+"/keywords",
		map[string]any{"keyword": "강남 카페", "alert_enabled": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	kw := decode[model.TrackedKeyword](t, resp)
	assert.Equal(t, "강남 카페", kw.Keyword)
	assert.True(t, kw.IsActive)
	assert.True(t, kw.AlertEnabled)
}

func TestAddKeyword_StoreNotFound(t *testing.T) {
	ts, _ := newTestServer(t, &stubCollector{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores/nonexistent/keywords",
		map[string]any{"keyword": "강남 카페"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddKeyword_MissingKeyword(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	created, err := st.CreateStore(context.Background(), model.Store{NaverPlaceID: "1234567", Name: "가게"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores/"+created.ID+"/keywords", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateKeyword_Partial(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	_, kw := seedStoreAndKeyword(t, st)

	resp := doJSON(t, http.MethodPatch, ts.URL+"/api/keywords/"+kw.ID,
		map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decode[model.TrackedKeyword](t, resp)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "강남 카페", updated.Keyword)
}

func TestDeleteKeyword_NotFound(t *testing.T) {
	ts, _ := newTestServer(t, &stubCollector{})

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/keywords/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCollect(t *testing.T) {
	col := &stubCollector{ranks: map[string]*collector.RankEntry{
		"강남 카페|1234567": {Position: 3, Total: 42, PlaceID: "1234567"},
	}}
	ts, st := newTestServer(t, col)
	_, kw := seedStoreAndKeyword(t, st)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/keywords/"+kw.ID+"/collect", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	snap := decode[model.RankingSnapshot](t, resp)
	require.NotNil(t, snap.RankPosition)
	assert.Equal(t, 3, *snap.RankPosition)
	assert.Equal(t, 42, *snap.TotalResults)
}

func TestListRankings_DateRange(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	_, kw := seedStoreAndKeyword(t, st)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		rank := day
		_, err := st.InsertSnapshot(ctx, model.RankingSnapshot{
			TrackedKeywordID: kw.ID,
			RankPosition:     &rank,
			CollectedAt:      time.Date(2025, 6, day, 23, 30, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	// The to date is inclusive: a snapshot late on June 2 is still in range.
	url := fmt.Sprintf("%s/api/keywords/%s/rankings?from=2025-06-02&to=2025-06-02", ts.URL, kw.ID)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	snaps := decode[[]model.RankingSnapshot](t, resp)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2, *snaps[0].RankPosition)
}

func TestListRankings_BadDate(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	_, kw := seedStoreAndKeyword(t, st)

	resp, err := http.Get(ts.URL + "/api/keywords/" + kw.ID + "/rankings?from=junk")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboard(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	_, kw := seedStoreAndKeyword(t, st)
	ctx := context.Background()

	prev, latest := 5, 2
	_, err := st.InsertSnapshot(ctx, model.RankingSnapshot{
		TrackedKeywordID: kw.ID, RankPosition: &prev,
		CollectedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = st.InsertSnapshot(ctx, model.RankingSnapshot{
		TrackedKeywordID: kw.ID, RankPosition: &latest,
		CollectedAt: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	boards := decode[[]model.DashboardStore](t, resp)
	require.Len(t, boards, 1)
	require.Len(t, boards[0].Keywords, 1)

	dk := boards[0].Keywords[0]
	assert.Equal(t, 2, *dk.LatestRank)
	assert.Equal(t, 5, *dk.PrevRank)
	assert.Equal(t, 3, *dk.RankChange)
}

func TestStoreDashboard_NotFound(t *testing.T) {
	ts, _ := newTestServer(t, &stubCollector{})

	resp, err := http.Get(ts.URL + "/api/stores/nonexistent/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStoreDashboard(t *testing.T) {
	ts, st := newTestServer(t, &stubCollector{})
	created, _ := seedStoreAndKeyword(t, st)

	resp, err := http.Get(ts.URL + "/api/stores/" + created.ID + "/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	ds := decode[model.DashboardStore](t, resp)
	assert.Equal(t, created.ID, ds.ID)
	require.Len(t, ds.Keywords, 1)
	assert.Nil(t, ds.Keywords[0].LatestRank)
}
