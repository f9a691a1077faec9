package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
)

// maxUpstreamBody caps how much of a response body is read into memory.
const maxUpstreamBody = 8 << 20

// defaultCallTimeout bounds one shared upstream call, retries included.
const defaultCallTimeout = 60 * time.Second

// Gateway is the low-level client for the video platform API. Every call goes
// through the quota breaker first, is coalesced with identical in-flight calls,
// retried on transient failures and guarded by a consecutive-failure breaker.
// Response bodies are returned raw; decoding is the caller's job.
type Gateway struct {
	base      string
	client    *http.Client
	quota     *QuotaBreaker
	transient *gobreaker.CircuitBreaker
	retry     RetryConfig
	timeout   time.Duration
	calls     Coalescer[[]byte]

	mu     sync.Mutex
	keys   []string
	keyIdx int
}

// GatewayOptions configures NewGateway.
type GatewayOptions struct {
	BaseURL    string
	APIKeys    []string // primary first, then fallbacks
	HTTPClient *http.Client
	Quota      *QuotaBreaker
	Retry      *RetryConfig
	// CallTimeout bounds a coalesced call, which runs detached from the
	// callers' cancellation. Default 60s.
	CallTimeout time.Duration
}

type rawResponse struct {
	status int
	body   []byte
}

func NewGateway(opts GatewayOptions) *Gateway {
	rc := DefaultRetryConfig
	if opts.Retry != nil {
		rc = *opts.Retry
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var keys []string
	for _, k := range opts.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	g := &Gateway{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
		quota:   opts.Quota,
		retry:   rc,
		timeout: timeout,
		keys:    keys,
	}
	g.transient = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("gateway: breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return g
}

// Quota exposes the gateway's quota breaker.
func (g *Gateway) Quota() *QuotaBreaker {
	return g.quota
}

type fallbackCredentialKey struct{}

// WithFallbackCredential attaches a user credential to ctx. A gateway with no
// API keys sends it on public calls that would otherwise go out anonymous.
func WithFallbackCredential(ctx context.Context, credential string) context.Context {
	if credential == "" {
		return ctx
	}
	return context.WithValue(ctx, fallbackCredentialKey{}, credential)
}

// FallbackCredential returns the credential attached by WithFallbackCredential.
func FallbackCredential(ctx context.Context) string {
	c, _ := ctx.Value(fallbackCredentialKey{}).(string)
	return c
}

// Call performs GET base/endpoint?params. A non-empty credential is sent as a
// bearer token; otherwise the current API key is added to the query. With no
// API keys configured, the ctx fallback credential stands in for an empty one.
// Errors: *QuotaExhaustedError when the daily quota is spent (now or earlier),
// *UpstreamError for any other non-2xx response.
func (g *Gateway) Call(ctx context.Context, endpoint string, params url.Values, credential string) ([]byte, error) {
	if g.quota != nil {
		if err := g.quota.Check(); err != nil {
			return nil, err
		}
	}
	if credential == "" && len(g.keys) == 0 {
		credential = FallbackCredential(ctx)
	}
	key := endpoint + "?" + params.Encode() + "|" + CredentialHash(credential)
	body, _, err := g.calls.DoContext(ctx, key, func() ([]byte, error) {
		// Shared by every caller of key, so no single caller may cancel it.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.call(cctx, endpoint, params, credential)
	})
	return body, err
}

func (g *Gateway) call(ctx context.Context, endpoint string, params url.Values, credential string) ([]byte, error) {
	for {
		apiKey, idx := g.currentKey(credential)
		resp, err := g.execute(ctx, endpoint, params, credential, apiKey)

		var upErr *UpstreamError
		switch {
		case err == nil && resp.status >= 200 && resp.status < 300:
			return resp.body, nil
		case err == nil:
			upErr = &UpstreamError{Endpoint: endpoint, StatusCode: resp.status, Body: resp.body}
		case errors.As(err, &upErr):
		default:
			metrics.UpstreamErrors.Add(1)
			return nil, fmt.Errorf("upstream %s: %w", endpoint, err)
		}

		if IsQuotaBody(upErr.Body) {
			if err := g.nextKey(credential, idx); err != nil {
				return nil, err
			}
			continue
		}
		metrics.UpstreamErrors.Add(1)
		return nil, upErr
	}
}

// execute runs one logical request: retried with backoff inside, counted by
// the transient breaker outside. 2xx and non-retryable statuses come back as a
// response; exhausted retries come back as *UpstreamError.
func (g *Gateway) execute(ctx context.Context, endpoint string, params url.Values, credential, apiKey string) (*rawResponse, error) {
	res, err := g.transient.Execute(func() (interface{}, error) {
		return RetryDo(ctx, g.retry, func() (*rawResponse, error) {
			return g.do(ctx, endpoint, params, credential, apiKey)
		})
	})
	if err != nil {
		return nil, err
	}
	return res.(*rawResponse), nil
}

func (g *Gateway) do(ctx context.Context, endpoint string, params url.Values, credential, apiKey string) (*rawResponse, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if credential == "" && apiKey != "" {
		q.Set("key", apiKey)
	}
	u := g.base + "/" + endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	metrics.GatewayCalls.Add(1)
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if isRetryableStatus(resp.StatusCode) && !IsQuotaBody(body) {
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: body}
	}
	return &rawResponse{status: resp.StatusCode, body: body}, nil
}

func (g *Gateway) currentKey(credential string) (string, int) {
	if credential != "" {
		return "", -1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.keys) == 0 {
		return "", -1
	}
	return g.keys[g.keyIdx], g.keyIdx
}

// rotateKey moves past key idx if it is still current and a fallback remains.
// A concurrent caller that already rotated counts as success.
func (g *Gateway) rotateKey(idx int) bool {
	if idx < 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keyIdx != idx {
		return true
	}
	if g.keyIdx+1 >= len(g.keys) {
		return false
	}
	g.keyIdx++
	return true
}

// nextKey handles a quota response on key idx. It returns nil when another
// key is worth trying, or the quota error once every key is spent. A breaker
// opened meanwhile by a concurrent call wins over a stale rotation.
func (g *Gateway) nextKey(credential string, idx int) error {
	if credential == "" && g.rotateKey(idx) {
		if g.quota != nil {
			if err := g.quota.Check(); err != nil {
				return err
			}
		}
		slog.Warn("gateway: api key quota exhausted, switching to fallback key",
			slog.Int("key_index", idx+1))
		return nil
	}
	return g.tripQuota()
}

// tripQuota opens the quota breaker. Every key gets a fresh budget at the same
// reset boundary, so the rotation starts over from the primary key.
func (g *Gateway) tripQuota() error {
	g.mu.Lock()
	g.keyIdx = 0
	g.mu.Unlock()
	if g.quota == nil {
		return &QuotaExhaustedError{}
	}
	return &QuotaExhaustedError{ResetAt: g.quota.Trip()}
}

// CredentialHash returns a short one-way fragment of a bearer credential,
// safe to embed in cache keys and logs. Empty credentials map to "anon".
func CredentialHash(credential string) string {
	if credential == "" {
		return "anon"
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:8])
}
