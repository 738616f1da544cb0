// Package stortrack provides a rate-limited, retrying client for the
// StorTrack self-storage market data API.
package stortrack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/rca-cli/internal/resilience"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.stortrack.com/"

// Client defines the StorTrack operations used by the pipeline.
type Client interface {
	// FindStoresByAddress looks up stores matching an address.
	FindStoresByAddress(ctx context.Context, q AddressQuery) ([]StoreSummary, error)
	// FindCompetitors lists stores within radius miles of the subject.
	FindCompetitors(ctx context.Context, storeID, masterID int, radius float64) ([]StoreSummary, error)
	// FetchRange returns the rate history of one store for an inclusive
	// date range. Every call start is metered by the shared HourlyLimiter.
	FetchRange(ctx context.Context, storeID int, from, to time.Time) ([]HistoricalStore, error)
}

// Option configures the StorTrack client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = normalizeBaseURL(u)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLimiter shares an existing hourly limiter. Clients built from the same
// credentials should share one limiter.
func WithLimiter(l *HourlyLimiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithClock sets the clock used for backoff pauses and the default limiter.
func WithClock(clock Clock) Option {
	return func(c *httpClient) {
		c.clock = clock
	}
}

// WithRetry sets the retry policy. Only MaxAttempts is honored; pauses
// follow the per-status schedule of the service.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		if cfg.MaxAttempts > 0 {
			c.maxAttempts = cfg.MaxAttempts
		}
	}
}

// WithRequestsPerSecond adds per-second pacing beneath the hourly limit.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.pacer = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	baseURL     string
	username    string
	password    string
	http        *http.Client
	clock       Clock
	limiter     *HourlyLimiter
	pacer       *rate.Limiter
	maxAttempts int

	mu    sync.Mutex
	token string
}

// NewClient creates a StorTrack client for the given account.
func NewClient(username, password string, opts ...Option) Client {
	c := &httpClient{
		baseURL:     DefaultBaseURL,
		username:    username,
		password:    password,
		maxAttempts: 3,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = RealClock()
	}
	if c.limiter == nil {
		c.limiter = NewHourlyLimiter(DefaultHourlyLimit, c.clock)
	}
	return c
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(u, "/") + "/"
}

func (c *httpClient) FindStoresByAddress(ctx context.Context, q AddressQuery) ([]StoreSummary, error) {
	if q.Country == "" {
		q.Country = DefaultCountry
	}
	var resp storesResponse
	if err := c.call(ctx, "storesbyaddress", q, &resp); err != nil {
		return nil, err
	}
	return resp.Stores, nil
}

func (c *httpClient) FindCompetitors(ctx context.Context, storeID, masterID int, radius float64) ([]StoreSummary, error) {
	body := competitorsRequest{StoreID: []int{}, MasterID: []int{}, CoverageZone: radius}
	if storeID != 0 {
		body.StoreID = []int{storeID}
	}
	if masterID != 0 {
		body.MasterID = []int{masterID}
	}
	var resp CompetitorResponse
	if err := c.call(ctx, "findcompetitors", body, &resp); err != nil {
		return nil, err
	}
	return resp.Competitors(storeID), nil
}

func (c *httpClient) FetchRange(ctx context.Context, storeID int, from, to time.Time) ([]HistoricalStore, error) {
	body := historicalRequest{
		StoreID: storeID,
		From:    from.Format("2006-01-02"),
		To:      to.Format("2006-01-02"),
	}
	var stores []HistoricalStore
	if err := c.call(ctx, "historicaldata", body, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// call posts body to path under the retry schedule and decodes a 200
// response into out.
func (c *httpClient) call(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "stortrack: marshal %s request", path)
	}

	attempts := 0
	cfg := resilience.RetryConfig{
		MaxAttempts: c.maxAttempts,
		ShouldRetry: func(err error) bool {
			return ClassOf(err).Retryable()
		},
		OnRetry: resilience.RetryLogger("stortrack", path),
		Wait:    c.backoff,
	}

	err = resilience.Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		data, err := c.attempt(ctx, path, payload)
		if err != nil {
			return err
		}
		return decode(path, data, out)
	})

	var re *RemoteError
	if errors.As(err, &re) {
		re.Attempts = attempts
		zap.L().Warn("stortrack: request failed",
			zap.String("op", path),
			zap.String("class", string(re.Class)),
			zap.Int("status", re.StatusCode),
			zap.Int("attempts", attempts),
		)
	}
	return err
}

// backoff pauses between attempts according to the class of the failure.
func (c *httpClient) backoff(ctx context.Context, attempt int, err error) error {
	switch ClassOf(err) {
	case ClassRateLimited:
		return c.limiter.Drain(ctx)
	case ClassServer, ClassDBTimeout:
		return c.clock.Sleep(ctx, time.Duration(attempt)*5*time.Second)
	default:
		return c.clock.Sleep(ctx, time.Duration(attempt)*2*time.Second)
	}
}

// attempt makes one metered request. A 401 or 403 clears the cached token
// and repeats the request once with a fresh login.
func (c *httpClient) attempt(ctx context.Context, path string, payload []byte) ([]byte, error) {
	reauthed := false
	for {
		status, data, err := c.send(ctx, path, payload)
		if err != nil {
			return nil, err
		}

		if (status == http.StatusUnauthorized || status == http.StatusForbidden) && !reauthed {
			reauthed = true
			c.clearToken()
			continue
		}

		class := classify(status, data)
		if class == "" {
			return data, nil
		}

		re := &RemoteError{Op: path, Class: class, StatusCode: status, Body: string(data)}
		if class == ClassNotFound {
			re.Err = ErrNotFound
		}
		if class.Retryable() {
			return nil, resilience.NewTransientError(re, status)
		}
		return nil, resilience.NewPermanentError(re, status)
	}
}

func (c *httpClient) send(ctx context.Context, path string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return 0, nil, eris.Wrap(err, "stortrack: pacing")
		}
	}

	token, err := c.authorize(ctx)
	if err != nil {
		return 0, nil, err
	}

	// An attempt that has started runs to completion; cancellation is
	// observed before the next one.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, resilience.NewPermanentError(eris.Wrapf(err, "stortrack: create %s request", path), 0)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, resilience.NewTransientError(&RemoteError{Op: path, Class: ClassTransport, Err: err}, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, resilience.NewTransientError(&RemoteError{Op: path, Class: ClassTransport, StatusCode: resp.StatusCode, Err: err}, resp.StatusCode)
	}
	return resp.StatusCode, data, nil
}

// classify maps a response status to a failure class, "" for success.
func classify(status int, body []byte) Class {
	switch {
	case status == http.StatusOK:
		return ""
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusInternalServerError || status == http.StatusServiceUnavailable:
		return ClassServer
	case status == http.StatusBadRequest:
		text := strings.ToLower(string(body))
		if strings.Contains(text, "sql server") ||
			strings.Contains(text, "network-related") ||
			strings.Contains(text, "timeout") {
			return ClassDBTimeout
		}
		return ClassBadRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	default:
		return ClassUnexpected
	}
}

func decode(path string, data []byte, out any) error {
	var err error
	if stores, ok := out.(*[]HistoricalStore); ok {
		*stores, err = decodeHistorical(data)
	} else {
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		re := &RemoteError{
			Op:         path,
			Class:      ClassMalformed,
			StatusCode: http.StatusOK,
			Err:        eris.Wrap(ErrMalformedResponse, err.Error()),
		}
		return resilience.NewPermanentError(re, http.StatusOK)
	}
	return nil
}

// authorize returns the cached bearer header, logging in when absent.
func (c *httpClient) authorize(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.username},
		"password":   {c.password},
	}
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, c.baseURL+"authtoken", strings.NewReader(form.Encode()))
	if err != nil {
		return "", resilience.NewPermanentError(eris.Wrap(err, "stortrack: create auth request"), 0)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(&RemoteError{Op: "authtoken", Class: ClassTransport, Err: err}, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resilience.NewTransientError(&RemoteError{Op: "authtoken", Class: ClassTransport, StatusCode: resp.StatusCode, Err: err}, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", resilience.NewPermanentError(&RemoteError{
			Op:         "authtoken",
			Class:      ClassAuth,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        ErrAuth,
		}, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", resilience.NewPermanentError(&RemoteError{
			Op: "authtoken", Class: ClassAuth, StatusCode: resp.StatusCode,
			Err: eris.Wrap(ErrAuth, "undecodable token response"),
		}, resp.StatusCode)
	}
	tok := tr.AccessToken
	if tok == "" {
		tok = tr.Token
	}
	if tok == "" {
		return "", resilience.NewPermanentError(&RemoteError{
			Op: "authtoken", Class: ClassAuth, StatusCode: resp.StatusCode,
			Err: eris.Wrap(ErrAuth, "no token in response"),
		}, resp.StatusCode)
	}

	c.token = "Bearer " + tok
	zap.L().Debug("stortrack: authenticated")
	return c.token, nil
}

func (c *httpClient) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
