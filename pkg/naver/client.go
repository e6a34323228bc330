// Package naver provides a client for the Naver Local Search open API.
package naver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Naver open API operations used by the collector.
type Client interface {
	// Local performs a local (place) search and returns up to display items.
	// The upstream API caps display at 5; larger values are rejected with a
	// 400, so callers clamp before invoking.
	Local(ctx context.Context, query string, display int) (*LocalResponse, error)
	// Close releases idle connections. Safe to call more than once.
	Close()
}

// LocalItem is a single result from the local search endpoint. Title may
// contain <b> highlight markup around the query terms.
type LocalItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Category    string `json:"category"`
	Address     string `json:"address"`
	RoadAddress string `json:"roadAddress"`
}

// LocalResponse is the parsed local search response.
type LocalResponse struct {
	Total   int         `json:"total"`
	Start   int         `json:"start"`
	Display int         `json:"display"`
	Items   []LocalItem `json:"items"`
}

// Option configures the Naver client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	http         *http.Client
}

// NewClient creates a Naver open API client. The id/secret pair is the
// application credential issued by the Naver developer console.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://openapi.naver.com",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Local(ctx context.Context, query string, display int) (*LocalResponse, error) {
	if display < 1 {
		display = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(display))
	params.Set("start", "1")
	params.Set("sort", "random")
	reqURL := c.baseURL + "/v1/search/local.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "naver: create request")
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "naver: local search request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "naver: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("naver: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result LocalResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "naver: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Close() {
	c.http.CloseIdleConnections()
}
