package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// shopAPIPath is the base path of the commerce backend's shop API.
const shopAPIPath = "/api/v2/shop"

const (
	contentTypeJSON       = "application/json"
	contentTypeMergePatch = "application/merge-patch+json"
	acceptHeader          = "application/ld+json, application/json"
	userAgent             = "FrontWing-Storefront/1.0"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Transport overrides the default otelhttp-wrapped transport (tests).
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client wraps the commerce backend REST API. Every method is one HTTP round
// trip (catalog helpers resolving nested IRIs excepted) and holds no state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[*response]
	logger     *zap.Logger
}

type response struct {
	status int
	body   []byte
}

type call struct {
	method      string
	url         string
	body        any
	contentType string
	bearer      string
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("commerce API base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid commerce API base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "commerce-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c, nil
}

// isSuccessful decides what the breaker counts as a backend failure: only
// transport errors and 5xx responses. 4xx answers mean the backend is healthy.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var rf *domain.RequestFailedError
	if errors.As(err, &rf) {
		return rf.Status < http.StatusInternalServerError
	}
	return false
}

func (c *Client) shopURL(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			escaped[i] = url.PathEscape(s)
		} else {
			escaped[i] = a
		}
	}
	return c.baseURL + shopAPIPath + fmt.Sprintf(format, escaped...)
}

// iriURL resolves an IRI returned by the backend ("/api/v2/shop/taxons/caps").
func (c *Client) iriURL(iri string) string {
	if strings.HasPrefix(iri, "http://") || strings.HasPrefix(iri, "https://") {
		return iri
	}
	return c.baseURL + iri
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, cl)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewRequestFailed(http.StatusServiceUnavailable, "commerce API temporarily unavailable", nil)
	}
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("parsing response of %s %s: %w", cl.method, cl.url, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, cl call) (*response, error) {
	var bodyReader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, cl)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", cl.method, cl.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("commerce API request failed",
			zap.String("method", cl.method),
			zap.String("url", cl.url),
			zap.Int("status", resp.StatusCode))
		return &response{status: resp.StatusCode, body: body}, parseErrorResponse(resp.StatusCode, body)
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

func (c *Client) setHeaders(req *http.Request, cl call) {
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if cl.body != nil {
		contentType := cl.contentType
		if contentType == "" {
			contentType = contentTypeJSON
		}
		req.Header.Set("Content-Type", contentType)
	}
	if cl.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+cl.bearer)
	}
}

type errorBody struct {
	Description string             `json:"hydra:description"`
	Detail      string             `json:"detail"`
	Message     string             `json:"message"`
	Title       string             `json:"title"`
	Violations  []domain.Violation `json:"violations"`
}

// parseErrorResponse converts a backend error payload to RequestFailedError.
func parseErrorResponse(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb) // best effort, the body may not be JSON

	msg := eb.Description
	if msg == "" {
		msg = eb.Detail
	}
	if msg == "" {
		msg = eb.Message
	}
	if msg == "" {
		msg = eb.Title
	}
	return domain.NewRequestFailed(status, msg, eb.Violations)
}

// collection decodes both hydra-prefixed and plain API Platform collections.
type collection[T any] struct {
	HydraMember     []T  `json:"hydra:member"`
	Member          []T  `json:"member"`
	HydraTotalItems *int `json:"hydra:totalItems"`
	TotalItems      *int `json:"totalItems"`
}

func (c collection[T]) items() []T {
	if c.HydraMember != nil {
		return c.HydraMember
	}
	if c.Member != nil {
		return c.Member
	}
	return []T{}
}

func (c collection[T]) total() int {
	if c.HydraTotalItems != nil {
		return *c.HydraTotalItems
	}
	if c.TotalItems != nil {
		return *c.TotalItems
	}
	return len(c.items())
}

// getList fetches a collection endpoint. Some endpoints answer with a bare
// JSON array instead of a collection envelope.
func getList[T any](ctx context.Context, c *Client, target string) ([]T, int, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, url: target}, &raw); err != nil {
		return nil, 0, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, 0, fmt.Errorf("parsing list %s: %w", target, err)
		}
		return list, len(list), nil
	}

	var col collection[T]
	if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &col); err != nil {
			return nil, 0, fmt.Errorf("parsing collection %s: %w", target, err)
		}
	}
	return col.items(), col.total(), nil
}
