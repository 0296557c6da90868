package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the CORE API v2 base URL.
	DefaultEndpoint = "https://core.ac.uk/api-v2"
	// SearchMethod is the article search method.
	SearchMethod = "/articles/search"

	DefaultPageSize = 100
	DefaultMaxPages = 100
)

var (
	// ErrMissingAPIKey is returned by NewClient without an API key.
	ErrMissingAPIKey = errors.New("crawl: missing api key")
	// ErrBreakerOpen is returned while the circuit breaker rejects requests.
	ErrBreakerOpen = errors.New("crawl: too many failed requests")
)

// StatusError is returned for a non-2xx API response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crawl: %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Page is one decoded search result page.
type Page struct {
	Number    int               `json:"-"`
	TotalHits int               `json:"totalHits"`
	Data      []json.RawMessage `json:"data"`
}

// Observer receives one call per API request.
type Observer interface {
	ObserveRequest(status int, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(int, time.Duration, error) {}

// Client queries the CORE search API. Requests are rate limited and pass
// through a circuit breaker; a Client is safe for concurrent use.
type Client struct {
	endpoint   string
	apiKey     string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	observer   Observer
}

type clientOptions struct {
	endpoint   string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	limit      rate.Limit
	burst      int
	logger     *slog.Logger
	observer   Observer
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(o *clientOptions) { o.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithPageSize sets the number of hits per page.
func WithPageSize(n int) ClientOption {
	return func(o *clientOptions) { o.pageSize = n }
}

// WithMaxPages caps the pages fetched per query.
func WithMaxPages(n int) ClientOption {
	return func(o *clientOptions) { o.maxPages = n }
}

// WithRateLimit sets the request rate. rate.Inf disables limiting.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(o *clientOptions) {
		o.limit = limit
		o.burst = burst
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithObserver installs a request observer, e.g. a metrics collector.
func WithObserver(obs Observer) ClientOption {
	return func(o *clientOptions) { o.observer = obs }
}

// NewClient creates a client for apiKey. Defaults: DefaultEndpoint,
// DefaultPageSize, DefaultMaxPages and one request per second.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	o := clientOptions{
		endpoint:   DefaultEndpoint,
		pageSize:   DefaultPageSize,
		maxPages:   DefaultMaxPages,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		limit:      rate.Every(time.Second),
		burst:      1,
		logger:     slog.New(slog.DiscardHandler),
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pageSize <= 0 {
		return nil, fmt.Errorf("crawl: page size must be positive, got %d", o.pageSize)
	}
	if o.maxPages <= 0 {
		return nil, fmt.Errorf("crawl: max pages must be positive, got %d", o.maxPages)
	}

	logger := o.logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "core-api",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Client errors are the caller's fault, not an outage.
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		endpoint:   o.endpoint,
		apiKey:     apiKey,
		pageSize:   o.pageSize,
		maxPages:   o.maxPages,
		httpClient: o.httpClient,
		limiter:    rate.NewLimiter(o.limit, o.burst),
		breaker:    breaker,
		logger:     logger,
		observer:   o.observer,
	}, nil
}

// PageSize returns the configured page size.
func (c *Client) PageSize() int { return c.pageSize }

// SearchURL builds the request URL of one result page.
func (c *Client) SearchURL(method, query string, fullText bool, page int) string {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("fulltext", strconv.FormatBool(fullText))
	return c.endpoint + method + "/" + url.PathEscape(query) + "?" + params.Encode()
}

// Search fetches result page `page` (1-based) of query.
func (c *Client) Search(ctx context.Context, method, query string, fullText bool, page int) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	status := 0
	res, err := c.breaker.Execute(func() (any, error) {
		p, code, err := c.do(ctx, c.SearchURL(method, query, fullText, page))
		status = code
		return p, err
	})
	c.observer.ObserveRequest(status, time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
		}
		return nil, err
	}

	p := res.(*Page)
	p.Number = page
	return p, nil
}

func (c *Client) do(ctx context.Context, u string) (*Page, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        redact(u),
			Body:       truncate(string(body), 256),
		}
	}

	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("crawl: decode page: %w", err)
	}
	return &p, resp.StatusCode, nil
}

// FetchAll fetches every page of query. The first page tells the total hit
// count; the number of pages is capped at the client's max pages, with a
// warning when the cap applies.
func (c *Client) FetchAll(ctx context.Context, method, query string, fullText bool) ([]*Page, error) {
	first, err := c.Search(ctx, method, query, fullText, 1)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "fetching query", "query", query, "total_hits", first.TotalHits)

	pages := []*Page{first}
	if first.TotalHits <= c.pageSize {
		return pages, nil
	}

	n := (first.TotalHits + c.pageSize - 1) / c.pageSize
	if n > c.maxPages {
		c.logger.WarnContext(ctx, "query exceeds maximum pages, consider splitting it",
			"query", query,
			"pages", n,
			"max_pages", c.maxPages,
		)
		n = c.maxPages
	}

	for i := 2; i <= n; i++ {
		p, err := c.Search(ctx, method, query, fullText, i)
		if err != nil {
			return pages, fmt.Errorf("page %d of %q: %w", i, query, err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "REDACTED")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
