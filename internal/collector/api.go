package collector

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nplace/tracker/pkg/naver"
)

// apiMaxDisplay is the hard result ceiling of the Local Search API.
const apiMaxDisplay = 5

var (
	pathIDPattern  = regexp.MustCompile(`/place/(\d+)`)
	queryIDPattern = regexp.MustCompile(`sid=(\d+)`)
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
)

// localAPI reads approximate listing data from the official Local Search
// API. Rank positions from this source are unreliable (the outbound links
// often do not resolve to a place id), so the orchestrator uses it only for
// metadata enrichment and as a last-resort search fallback.
type localAPI struct {
	clientID     string
	clientSecret string
	newClient    func() naver.Client

	mu     sync.Mutex
	client naver.Client
}

func newLocalAPI(clientID, clientSecret string) *localAPI {
	a := &localAPI{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
	a.newClient = func() naver.Client {
		return naver.NewClient(a.clientID, a.clientSecret)
	}
	return a
}

func (a *localAPI) get() naver.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		a.client = a.newClient()
	}
	return a.client
}

func (a *localAPI) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
}

// search queries the Local Search API for keyword. Positions mirror the
// response order and review counts are always absent: the API does not
// carry them.
func (a *localAPI) search(ctx context.Context, keyword string, display int) ([]RankEntry, error) {
	if display < 1 || display > apiMaxDisplay {
		display = apiMaxDisplay
	}

	resp, err := a.get().Local(ctx, keyword, display)
	if err != nil {
		return nil, err
	}

	entries := make([]RankEntry, 0, len(resp.Items))
	for i, item := range resp.Items {
		entries = append(entries, RankEntry{
			Position: i + 1,
			Total:    resp.Total,
			PlaceID:  placeIDFromLink(item.Link),
		})
	}

	zap.L().Debug("api: local search complete",
		zap.String("keyword", keyword),
		zap.Int("results", len(entries)),
	)
	return entries, nil
}

// placeInfoByName looks a place up by its literal name and builds metadata
// from the single best hit, or nil when the API returns nothing.
func (a *localAPI) placeInfoByName(ctx context.Context, name string) (*PlaceInfo, error) {
	resp, err := a.get().Local(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	placeID := placeIDFromLink(item.Link)

	placeURL := item.Link
	if placeURL == "" {
		placeURL = defaultDetailURL + "/" + placeID
	}
	address := item.RoadAddress
	if address == "" {
		address = item.Address
	}

	return &PlaceInfo{
		Name:     stripTags(item.Title),
		Category: item.Category,
		Address:  address,
		PlaceURL: placeURL,
		PlaceID:  placeID,
	}, nil
}

// placeIDFromLink pulls a numeric place id out of an API result link,
// trying the path segment form first and the sid query parameter second.
// Returns "" when neither matches.
func placeIDFromLink(link string) string {
	if m := pathIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if m := queryIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// ExtractPlaceID resolves a user-supplied place reference. Accepts a place
// page URL in either the path or sid form, or a bare numeric id. Returns ""
// when the input is neither.
func ExtractPlaceID(s string) string {
	s = strings.TrimSpace(s)
	if id := placeIDFromLink(s); id != "" {
		return id
	}
	if s != "" && digitsOnly(s) {
		return s
	}
	return ""
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// stripTags removes <b>-style highlight markup from API titles.
func stripTags(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}
