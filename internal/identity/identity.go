// Package identity resolves bearer tokens against the backend's auth service
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"formscan-relay/internal/metrics"
	"formscan-relay/internal/shared"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// Identity is the user a token belongs to. It is only used to decide
// whether a request may proceed and is never logged or returned.
type Identity struct {
	ID string
}

// Resolver turns an Authorization header into an Identity
type Resolver interface {
	Resolve(ctx context.Context, authHeader string, token string) (*Identity, error)
}

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewClient(baseURL string, anonKey string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = shared.DefaultHTTPTimeout
	}
	tr := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: shared.DefaultDialTimeout,
		}).Dial,
		TLSHandshakeTimeout: shared.DefaultTLSTimeout,
		DisableKeepAlives:   false,
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Transport: tr, Timeout: timeout},
		log:        log,
		now:        time.Now,
	}
}

type userResponse struct {
	ID string `json:"id"`
}

// Resolve makes exactly one call to the backend's current-user endpoint,
// passing the caller's Authorization header through untouched. Whether the
// token is usable is for the backend alone to decide.
func (c *Client) Resolve(ctx context.Context, authHeader string, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, errors.Join(shared.ErrUnauthorized, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Accept", "application/json")

	metrics.InflightUpstream.WithLabelValues("identity").Inc()
	start := time.Now()
	res, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues("identity", "get_user").Observe(time.Since(start).Seconds())
	metrics.InflightUpstream.WithLabelValues("identity").Dec()
	if err != nil {
		return nil, errors.Join(shared.ErrUnauthorized, fmt.Errorf("identity request failed: %w", err))
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			c.log.Warnw("Failed to close identity response body", "error", closeErr)
		}
	}()

	if res.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, errors.Join(
			shared.ErrUnauthorized,
			fmt.Errorf("identity service responded with %d", res.StatusCode),
			c.describeToken(token),
		)
	}

	var user userResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&user); err != nil {
		return nil, errors.Join(shared.ErrUnauthorized, fmt.Errorf("failed decoding identity response: %w", err))
	}
	if user.ID == "" {
		return nil, errors.Join(shared.ErrUnauthorized, errors.New("identity service returned no user"))
	}

	return &Identity{ID: user.ID}, nil
}

// describeToken reads the token's claims without verifying them so a
// rejection can be explained in the logs. It never decides anything and
// returns nil when there is nothing useful to say.
func (c *Client) describeToken(token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return errors.New("token is not a jwt")
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(c.now()) {
		return fmt.Errorf("token expired at %s", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}
	return nil
}
