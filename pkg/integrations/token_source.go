package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSlack is how long before expiry a cached token is already considered
// stale, so a token never expires mid-send.
const tokenSlack = 30 * time.Second

// TokenSource caches a short-lived OAuth access token owned by one client
// instance. The mutex makes refresh single flight: concurrent callers wait
// for one refresh instead of each requesting their own token.
type TokenSource struct {
	mu      sync.Mutex
	refresh func(ctx context.Context) (string, time.Duration, error)
	token   string
	expiry  time.Time
	now     func() time.Time
}

// NewTokenSource creates a token source around a refresh function that
// returns a fresh token and its lifetime
func NewTokenSource(refresh func(ctx context.Context) (string, time.Duration, error)) *TokenSource {
	return &TokenSource{refresh: refresh, now: time.Now}
}

// Token returns the cached access token, refreshing it when expired or about
// to expire
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(tokenSlack).Before(s.expiry) {
		return s.token, nil
	}

	token, ttl, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiry = s.now().Add(ttl)

	return token, nil
}

// refreshAccessToken exchanges an OAuth refresh token for an access token at
// the provider's token endpoint
func refreshAccessToken(ctx context.Context, client *http.Client, tokenURL, clientID, clientSecret, refreshToken string) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, &TransportError{Service: "email", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, &TransportError{Service: "email", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, &ProviderError{
			Service:    "email",
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(raw),
		}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, fmt.Errorf("failed to parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, fmt.Errorf("token response carried no access token")
	}

	ttl := time.Duration(parsed.ExpiresIn) * time.Second
	if ttl == 0 {
		ttl = time.Hour
	}

	return parsed.AccessToken, ttl, nil
}
