package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nplace/tracker/pkg/naver"
)

func newTestLocalAPI(t *testing.T, handler http.Handler) *localAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := newLocalAPI("test-id", "test-secret")
	a.newClient = func() naver.Client {
		return naver.NewClient("test-id", "test-secret", naver.WithBaseURL(srv.URL))
	}
	return a
}

func TestAPISearch_RanksFromResponseOrder(t *testing.T) {
	t.Parallel()

	a := newTestLocalAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("display"))
		json.NewEncoder(w).Encode(naver.LocalResponse{
			Total: 210,
			Items: []naver.LocalItem{
				{Title: "<b>카페</b> 하나", Link: "https://map.naver.com/p/entry/place/101"},
				{Title: "카페 둘", Link: "http://cafe-two.example.com/?sid=102"},
				{Title: "카페 셋", Link: "http://cafe-three.example.com"},
			},
		})
	}))

	entries, err := a.search(context.Background(), "성수 카페", 50)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, "101", entries[0].PlaceID)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, "102", entries[1].PlaceID)
	// External links without a place id yield an empty id, not an error.
	assert.Equal(t, "", entries[2].PlaceID)

	for _, e := range entries {
		assert.Equal(t, 210, e.Total)
		assert.Nil(t, e.VisitorReviews)
		assert.Nil(t, e.BlogReviews)
	}
}

func TestAPISearch_Fault(t *testing.T) {
	t.Parallel()

	a := newTestLocalAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := a.search(context.Background(), "성수 카페", 5)
	require.Error(t, err)
}

func TestPlaceInfoByName_Found(t *testing.T) {
	t.Parallel()

	a := newTestLocalAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "카페 둘", r.URL.Query().Get("query"))
		assert.Equal(t, "1", r.URL.Query().Get("display"))
		json.NewEncoder(w).Encode(naver.LocalResponse{
			Total: 1,
			Items: []naver.LocalItem{{
				Title:       "<b>카페 둘</b>",
				Link:        "https://map.naver.com/p/entry/place/102",
				Category:    "카페,디저트",
				Address:     "서울 성동구 성수동2가 300-1",
				RoadAddress: "서울 성동구 연무장길 47",
			}},
		})
	}))

	info, err := a.placeInfoByName(context.Background(), "카페 둘")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "카페 둘", info.Name)
	assert.Equal(t, "서울 성동구 연무장길 47", info.Address)
	assert.Equal(t, "https://map.naver.com/p/entry/place/102", info.PlaceURL)
	assert.Equal(t, "102", info.PlaceID)
}

func TestPlaceInfoByName_SynthesizedURL(t *testing.T) {
	t.Parallel()

	a := newTestLocalAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(naver.LocalResponse{
			Total: 1,
			Items: []naver.LocalItem{{Title: "골목집", Link: ""}},
		})
	}))

	info, err := a.placeInfoByName(context.Background(), "골목집")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "https://pcmap.place.naver.com/place/", info.PlaceURL)
}

func TestPlaceInfoByName_NoResults(t *testing.T) {
	t.Parallel()

	a := newTestLocalAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(naver.LocalResponse{Total: 0})
	}))

	info, err := a.placeInfoByName(context.Background(), "없는 가게")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestPlaceIDFromLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link string
		want string
	}{
		{"https://map.naver.com/p/entry/place/1129849959", "1129849959"},
		{"http://example.com/view?sid=37218662&ref=map", "37218662"},
		{"https://pcmap.place.naver.com/place/55/home?sid=99", "55"},
		{"http://cafe-two.example.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, placeIDFromLink(tt.link), tt.link)
	}
}

func TestExtractPlaceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref  string
		want string
	}{
		{"https://pcmap.place.naver.com/place/1129849959/home", "1129849959"},
		{"http://example.com/view?sid=37218662", "37218662"},
		{"1234567", "1234567"},
		{" 1234567 ", "1234567"},
		{"cafe mocha", ""},
		{"12a34", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractPlaceID(tt.ref), tt.ref)
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Cafe Mocha", stripTags("<b>Cafe</b> Mocha"))
	assert.Equal(t, "성수카페", stripTags(" <b>성수</b>카페 "))
	assert.Equal(t, "plain", stripTags("plain"))
	assert.Equal(t, "", stripTags("<i></i>"))
}

func TestLocalAPIClose_Idempotent(t *testing.T) {
	t.Parallel()

	a := newLocalAPI("id", "secret")
	a.close()
	require.NotNil(t, a.get())
	a.close()
	a.close()
}
