package collector

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultSearchURL = "https://pcmap.place.naver.com/place/list"
	defaultDetailURL = "https://pcmap.place.naver.com/place"

	// Page payloads are large, so the scrape client gets a longer timeout
	// than the API client.
	scrapeTimeout = 15 * time.Second
)

var scrapeHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36",
	"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
	"Referer":         "https://map.naver.com/",
}

// pcmapScraper reads rankings and place details out of the Apollo state
// embedded in pcmap.place.naver.com pages. The HTTP client is created
// lazily on first use and reused across calls.
type pcmapScraper struct {
	searchURL string
	detailURL string

	mu   sync.Mutex
	http *http.Client
}

func newPcmapScraper() *pcmapScraper {
	return &pcmapScraper{
		searchURL: defaultSearchURL,
		detailURL: defaultDetailURL,
	}
}

func (s *pcmapScraper) client() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		s.http = &http.Client{Timeout: scrapeTimeout}
	}
	return s.http
}

func (s *pcmapScraper) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		s.http.CloseIdleConnections()
		s.http = nil
	}
}

func (s *pcmapScraper) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "pcmap: create request")
	}
	for k, v := range scrapeHeaders {
		req.Header.Set(k, v)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "pcmap: fetch %s", pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("pcmap: unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "pcmap: read body")
	}
	return string(body), nil
}

// search fetches the results page for keyword and walks the embedded state
// for the ordered ranking. Returns positions 1..N mirroring source order;
// entries whose resolved entity has no id are omitted without breaking the
// sequence. Total on every entry is the full ref-list length before
// truncation to limit.
func (s *pcmapScraper) search(ctx context.Context, keyword string, limit int) ([]RankEntry, error) {
	page, err := s.fetch(ctx, s.searchURL+"?query="+url.QueryEscape(keyword))
	if err != nil {
		return nil, err
	}

	state, ok := extractState(page)
	if !ok {
		zap.L().Warn("pcmap: no apollo state in search page", zap.String("keyword", keyword))
		return nil, nil
	}

	refs := rankedRefs(state)
	if len(refs) == 0 {
		zap.L().Warn("pcmap: no ranked place list", zap.String("keyword", keyword))
		return nil, nil
	}

	total := len(refs)
	if len(refs) > limit {
		refs = refs[:limit]
	}

	entries := make([]RankEntry, 0, len(refs))
	for _, ref := range refs {
		entity, _ := state[ref].(map[string]any)
		placeID := asString(entity["id"])
		if placeID == "" {
			continue
		}
		entries = append(entries, RankEntry{
			Position:       len(entries) + 1,
			Total:          total,
			VisitorReviews: asInt(entity["visitorReviewCount"]),
			BlogReviews:    asInt(entity["blogCafeReviewCount"]),
			PlaceID:        placeID,
		})
	}

	zap.L().Debug("pcmap: search complete",
		zap.String("keyword", keyword),
		zap.Int("results", len(entries)),
		zap.Int("total", total),
	)
	return entries, nil
}

// placeInfo fetches the detail page for placeID and scans the embedded
// state for the entity carrying that id and a name. Absence (fetch failed,
// no state, no matching entity) is reported as a nil info, not an error.
func (s *pcmapScraper) placeInfo(ctx context.Context, placeID string) (*PlaceInfo, error) {
	pageURL := s.detailURL + "/" + url.PathEscape(placeID)
	page, err := s.fetch(ctx, pageURL)
	if err != nil {
		zap.L().Warn("pcmap: place detail fetch failed", zap.String("place_id", placeID), zap.Error(err))
		return nil, nil
	}

	state, ok := extractState(page)
	if !ok {
		zap.L().Warn("pcmap: no apollo state in detail page", zap.String("place_id", placeID))
		return nil, nil
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entity, ok := state[k].(map[string]any)
		if !ok || asString(entity["id"]) != placeID {
			continue
		}
		name := asString(entity["name"])
		if name == "" {
			continue
		}

		address := asString(entity["roadAddress"])
		if address == "" {
			address = asString(entity["address"])
		}
		return &PlaceInfo{
			Name:     name,
			Category: asString(entity["category"]),
			Address:  address,
			PlaceURL: defaultDetailURL + "/" + placeID,
			PlaceID:  placeID,
		}, nil
	}

	zap.L().Warn("pcmap: no named entity for place in apollo state", zap.String("place_id", placeID))
	return nil, nil
}
