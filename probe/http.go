package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expectation is an optional predicate over the raw HTTP response. When
// set, a reachable target that does not satisfy it produces StateWarn
// rather than StateFail: a degraded-but-responding service is a different
// failure mode than an unreachable one.
type Expectation struct {
	// Status is the exact HTTP status code expected. Zero means any
	// 2xx/3xx status is accepted.
	Status int

	// JSONField is the name of a top-level field in the JSON response
	// body to compare. Empty means the body is not inspected.
	JSONField string

	// JSONValue is the expected string value of JSONField.
	JSONValue string
}

// BearerAuth mints a short-lived HS256 token for probe requests against
// protected health endpoints.
type BearerAuth struct {
	// Secret is the shared HMAC signing key.
	Secret []byte

	// Issuer is set as the iss claim.
	Issuer string

	// Audience is set as the aud claim.
	Audience string

	// TTL bounds token validity. Default: 1 minute.
	TTL time.Duration
}

// Token signs and returns a fresh bearer token.
func (a *BearerAuth) Token(now time.Time) (string, error) {
	ttl := a.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if a.Issuer != "" {
		claims["iss"] = a.Issuer
	}
	if a.Audience != "" {
		claims["aud"] = a.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// HTTPConfig configures an HTTP probe.
type HTTPConfig struct {
	// Name is the unique probe name.
	Name string

	// URL is the health endpoint to query.
	URL string

	// Timeout is the per-execution timeout. Default: DefaultTimeout.
	Timeout time.Duration

	// Expect is the optional response predicate.
	Expect *Expectation

	// Auth optionally attaches a minted bearer token to each request.
	Auth *BearerAuth

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// HTTPProbe checks an HTTP health endpoint.
type HTTPProbe struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPProbe creates a new HTTP probe.
func NewHTTPProbe(config HTTPConfig) *HTTPProbe {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProbe{config: config, client: client}
}

// Name returns the probe name.
func (p *HTTPProbe) Name() string {
	return p.config.Name
}

// Probe queries the endpoint once. Connectivity errors and timeouts map to
// StateFail; a response that misses the expectation maps to StateWarn.
func (p *HTTPProbe) Probe(ctx context.Context) Result {
	return execute(ctx, p.config.Name, p.config.Timeout, p.query)
}

func (p *HTTPProbe) query(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return Fail(p.config.Name, fmt.Sprintf("bad request: %v", err), err)
	}
	if p.config.Auth != nil {
		token, err := p.config.Auth.Token(time.Now())
		if err != nil {
			return Fail(p.config.Name, fmt.Sprintf("mint token: %v", err), err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Fail(p.config.Name, DetailTimeout, ErrTimeout)
		}
		return Fail(p.config.Name, err.Error(), err)
	}
	defer resp.Body.Close()

	if p.config.Expect == nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return Pass(p.config.Name, resp.Status)
		}
		return Fail(p.config.Name, resp.Status, ErrUnexpectedResponse)
	}
	return p.evaluate(resp)
}

// evaluate applies the expectation to a received response. The target
// answered, so every mismatch here is a soft WARN.
func (p *HTTPProbe) evaluate(resp *http.Response) Result {
	expect := p.config.Expect

	if expect.Status != 0 && resp.StatusCode != expect.Status {
		detail := fmt.Sprintf("status %d, want %d", resp.StatusCode, expect.Status)
		return Warn(p.config.Name, detail)
	}
	if expect.Status == 0 && (resp.StatusCode < 200 || resp.StatusCode >= 400) {
		return Warn(p.config.Name, resp.Status)
	}

	if expect.JSONField == "" {
		return Pass(p.config.Name, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Warn(p.config.Name, fmt.Sprintf("read body: %v", err))
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Warn(p.config.Name, fmt.Sprintf("invalid JSON body: %v", err))
	}
	got, ok := payload[expect.JSONField]
	if !ok {
		return Warn(p.config.Name, fmt.Sprintf("field %q missing", expect.JSONField))
	}
	if fmt.Sprintf("%v", got) != expect.JSONValue {
		detail := fmt.Sprintf("%s=%v, want %q", expect.JSONField, got, expect.JSONValue)
		return Warn(p.config.Name, detail)
	}
	return Pass(p.config.Name, fmt.Sprintf("%s=%s", expect.JSONField, expect.JSONValue))
}
