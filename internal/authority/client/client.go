// Package client talks to the remote authority on behalf of the session manager.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/sessioncore/internal/authority/domain"
	sessiondomain "storefront/sessioncore/internal/session/domain"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 64 << 10
)

// Client validates refresh tokens against the authority's HTTP API. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the authority at baseURL. timeout <= 0 uses 10s.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("authority client: base URL is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}, nil
}

// ValidateRefreshToken asks the authority whether refreshToken is still good.
// 401 and 403 come back as an unaccepted decision; everything that prevents a definitive
// answer wraps sessiondomain.ErrNetwork.
func (c *Client) ValidateRefreshToken(ctx context.Context, refreshToken string) (*sessiondomain.AuthorityDecision, error) {
	body, err := json.Marshal(domain.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+domain.RefreshPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", sessiondomain.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessiondomain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return &sessiondomain.AuthorityDecision{Accepted: false}, nil
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, fmt.Errorf("%w: authority returned %s", sessiondomain.ErrNetwork, resp.Status)
	}

	var out domain.RefreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", sessiondomain.ErrNetwork, err)
	}
	return &sessiondomain.AuthorityDecision{
		Accepted:     out.Accepted,
		Approved:     out.Approved,
		Role:         sessiondomain.Role(out.Role),
		RefreshToken: out.RefreshToken,
	}, nil
}
