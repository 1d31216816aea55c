package auth

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

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew is how long before the token's exp claim a cached token is
// considered stale, so a token never expires mid-request.
const expirySkew = 30 * time.Second

// StaticTokenSource returns a fixed, pre-acquired bearer token. Used when the
// operator exports AUTH_TOKEN instead of configuring an OIDC client.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(_ context.Context) (string, error) { return s.token, nil }

// Invalidate is a no-op: a static token cannot be refreshed, so a rejected
// token surfaces as an auth error on the next call.
func (s *StaticTokenSource) Invalidate() {}

// ClientCredentialsSource obtains access tokens from the identity provider's
// token endpoint using the OAuth2 client-credentials grant, caching them
// until shortly before expiry.
type ClientCredentialsSource struct {
	tokenEndpoint string
	clientID      string
	clientSecret  string
	audience      string
	http          *http.Client

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewClientCredentialsSource discovers the issuer's token endpoint and
// returns a caching token source for the given client and audience.
func NewClientCredentialsSource(issuer, clientID, clientSecret, audience string) (*ClientCredentialsSource, error) {
	provider, err := DiscoverOIDCProvider(issuer)
	if err != nil {
		return nil, err
	}
	return &ClientCredentialsSource{
		tokenEndpoint: provider.TokenEndpoint,
		clientID:      clientID,
		clientSecret:  clientSecret,
		audience:      audience,
		http:          &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expiry) {
		return s.cached, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	if s.audience != "" {
		form.Set("audience", s.audience)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access_token")
	}

	s.cached = payload.AccessToken
	s.expiry = tokenExpiry(payload.AccessToken, payload.ExpiresIn)
	return s.cached, nil
}

func (s *ClientCredentialsSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = ""
	s.expiry = time.Time{}
}

// tokenExpiry derives the refresh deadline for an access token. The exp claim
// is authoritative when present; signature verification is the backend's job,
// the client only needs the timestamp. expires_in is the fallback for opaque
// tokens.
func tokenExpiry(token string, expiresIn int64) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-expirySkew)
		}
	}
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn)*time.Second - expirySkew)
	}
	// No expiry information at all: re-fetch every call.
	return time.Time{}
}
