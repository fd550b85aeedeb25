package clearinghouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driven"
	"github.com/custodia-labs/clearinghouse-cli/internal/logger"
)

var _ driven.SourceClient = (*Client)(nil)

const (
	// DefaultBaseURL is the public Clearinghouse API endpoint.
	DefaultBaseURL = "https://clearinghouse.net/api/v2p1"

	// DefaultUserAgent identifies this client to the API.
	DefaultUserAgent = "clearinghouse-cli/0.1"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries bounds retry attempts for transient failures.
	DefaultMaxRetries = 4

	// DefaultBackoff is the base delay for exponential backoff.
	DefaultBackoff = 500 * time.Millisecond

	// DefaultMaxBackoff caps any single retry delay, including Retry-After.
	DefaultMaxBackoff = 8 * time.Second

	// DefaultRequestsPerSecond throttles outbound requests. Ingestion jobs
	// are long lived; staying under the API's ceiling beats reacting to 429s.
	DefaultRequestsPerSecond = 4

	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 512
)

// ClientOptions configures a Client. Zero values fall back to the
// package defaults; Token is required.
type ClientOptions struct {
	BaseURL           string
	Token             string
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	Backoff           time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
}

// Client talks to the Clearinghouse API (v2.1). It retries transient
// failures with exponential backoff because ingestion runs are long lived
// and should tolerate intermittent API and network trouble.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Clearinghouse API client. Returns
// domain.ErrTokenRequired when the token normalizes to empty.
func NewClient(opts ClientOptions) (*Client, error) {
	token := NormalizeToken(opts.Token)
	if token == "" {
		return nil, domain.ErrTokenRequired
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  userAgent,
		maxRetries: maxRetries,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ListCases yields cases updated strictly after updatedAfter, following
// pagination lazily as the consumer advances.
func (c *Client) ListCases(ctx context.Context, updatedAfter *time.Time) iter.Seq2[domain.Case, error] {
	query := url.Values{}
	if updatedAfter != nil {
		query.Set("last_checked_date__gte", updatedAfter.UTC().Format(time.RFC3339))
	}
	return func(yield func(domain.Case, error) bool) {
		for item, err := range c.paginate(ctx, "/cases/", query) {
			if err != nil {
				yield(domain.Case{}, err)
				return
			}
			if !yield(caseFromAPI(item), nil) {
				return
			}
		}
	}
}

// ListDockets yields the dockets of a case.
func (c *Client) ListDockets(ctx context.Context, caseID string) iter.Seq2[domain.Docket, error] {
	path := fmt.Sprintf("/cases/%s/dockets/", url.PathEscape(caseID))
	return func(yield func(domain.Docket, error) bool) {
		for item, err := range c.paginate(ctx, path, nil) {
			if err != nil {
				yield(domain.Docket{}, err)
				return
			}
			if !yield(docketFromAPI(item, caseID), nil) {
				return
			}
		}
	}
}

// ListDocuments yields the documents of a case.
func (c *Client) ListDocuments(ctx context.Context, caseID string) iter.Seq2[domain.Document, error] {
	path := fmt.Sprintf("/cases/%s/documents/", url.PathEscape(caseID))
	return func(yield func(domain.Document, error) bool) {
		for item, err := range c.paginate(ctx, path, nil) {
			if err != nil {
				yield(domain.Document{}, err)
				return
			}
			if !yield(documentFromAPI(item, caseID), nil) {
				return
			}
		}
	}
}

// GetDocument scans a case's documents for one ID. The API exposes no
// per-document endpoint, so this walks the paginated listing.
func (c *Client) GetDocument(ctx context.Context, caseID, documentID string) (*domain.Document, error) {
	for doc, err := range c.ListDocuments(ctx, caseID) {
		if err != nil {
			return nil, err
		}
		if doc.ID == documentID {
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("document %s in case %s: %w", documentID, caseID, domain.ErrNotFound)
}

// listPage is the API's cursor-pagination envelope.
type listPage struct {
	Next    string           `json:"next"`
	Results []map[string]any `json:"results"`
}

// paginate yields raw result objects, fetching the next page only when the
// consumer exhausts the current one.
func (c *Client) paginate(ctx context.Context, path string, query url.Values) iter.Seq2[map[string]any, error] {
	next := c.baseURL + path
	if len(query) > 0 {
		next += "?" + query.Encode()
	}
	return func(yield func(map[string]any, error) bool) {
		pageURL := next
		for pageURL != "" {
			var page listPage
			if err := c.getJSON(ctx, pageURL, &page); err != nil {
				yield(nil, err)
				return
			}
			logger.Debug("fetched %d records from %s", len(page.Results), pageURL)
			for _, item := range page.Results {
				if !yield(item, nil) {
					return
				}
			}
			pageURL = c.resolveNext(page.Next)
		}
	}
}

// resolveNext normalizes the API's next-page link, which may be relative.
func (c *Client) resolveNext(next string) string {
	if next == "" {
		return ""
	}
	if strings.HasPrefix(next, "http://") || strings.HasPrefix(next, "https://") {
		return next
	}
	return c.baseURL + "/" + strings.TrimLeft(next, "/")
}

// getJSON executes a GET with bounded retry for transient statuses and
// transport errors, decoding the response into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Token "+c.token)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt >= c.maxRetries {
				return fmt.Errorf("get %s: %w", rawURL, err)
			}
			wait := c.computeBackoff(attempt, "")
			logger.Warn("retrying %s after transport error (attempt %d/%d, waiting %s): %v",
				rawURL, attempt+1, c.maxRetries, wait, err)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if isRetryableStatus(resp.StatusCode) && attempt < c.maxRetries {
			wait := c.computeBackoff(attempt, resp.Header.Get("Retry-After"))
			logger.Warn("retrying %s after status %d (attempt %d/%d, waiting %s)",
				rawURL, resp.StatusCode, attempt+1, c.maxRetries, wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{
				StatusCode: resp.StatusCode,
				URL:        rawURL,
				Body:       truncate(string(body), maxErrorBody),
			}
		}
		if readErr != nil {
			return fmt.Errorf("read %s: %w", rawURL, readErr)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", rawURL, err)
		}
		return nil
	}
}

// computeBackoff honors Retry-After when parseable, otherwise uses
// exponential backoff with jitter. Every delay is capped at maxBackoff.
func (c *Client) computeBackoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil && secs >= 0 {
			wait := time.Duration(secs * float64(time.Second))
			return min(wait, c.maxBackoff)
		}
	}
	expo := c.backoff << attempt
	jitter := rand.N(c.backoff)
	return min(expo+jitter, c.maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
