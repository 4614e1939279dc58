// Package oauth holds the two credential stores of the bridge: per-server
// OAuth credentials injected into spawned children, and bearer tokens
// authenticating callers of the bridge's own control endpoints. The two are
// independent namespaces.
package oauth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imyashkale/mcpbridge/internal/logger"
	"github.com/imyashkale/mcpbridge/internal/models"
)

// Environment variable names injected into OAuth-enabled children. These are
// a wire contract third-party MCP servers rely on; never rename them.
const (
	EnvClientID      = "OAUTH_CLIENT_ID"
	EnvClientSecret  = "OAUTH_CLIENT_SECRET"
	EnvAccessToken   = "OAUTH_ACCESS_TOKEN"
	EnvRefreshToken  = "OAUTH_REFRESH_TOKEN"
	EnvTokenEndpoint = "OAUTH_TOKEN_ENDPOINT"
	EnvOAuthEnabled  = "MCP_OAUTH_ENABLED"
	EnvTransportType = "MCP_TRANSPORT_TYPE"
)

// Credentials is the OAuth state stored for one server name.
type Credentials struct {
	ClientID      string
	ClientSecret  string
	AccessToken   string
	RefreshToken  string
	TokenEndpoint string
	AddedAt       time.Time
}

// Token is a bearer credential for calling the bridge's own endpoints.
// A zero ExpiresAt means the token never expires. ServerName is an
// informational link, not an ownership relation.
type Token struct {
	Token      string
	AddedAt    time.Time
	ExpiresAt  time.Time
	Scope      string
	ServerName string
}

// Service manages both stores, token refresh and the trusted-origin policy.
type Service struct {
	enabled        bool
	trustedOrigins map[string]struct{}

	mu     sync.RWMutex
	creds  map[string]*Credentials
	tokens map[string]*Token

	httpClient *http.Client
}

// NewService creates a service. When enabled is false every request is
// allowed through regardless of tokens or origins.
func NewService(enabled bool, trustedOrigins []string) *Service {
	origins := make(map[string]struct{}, len(trustedOrigins))
	for _, o := range trustedOrigins {
		origins[o] = struct{}{}
	}
	return &Service{
		enabled:        enabled,
		trustedOrigins: origins,
		creds:          make(map[string]*Credentials),
		tokens:         make(map[string]*Token),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether authentication is enforced.
func (s *Service) Enabled() bool { return s.enabled }

// IsTrustedOrigin reports whether an Origin header value bypasses bearer
// authentication. Loopback origins are always trusted; others must appear in
// the configured trusted set.
func (s *Service) IsTrustedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := s.trustedOrigins[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// SetServerCredentials stores credentials for a server name, replacing any
// previous record wholesale.
func (s *Service) SetServerCredentials(name string, creds Credentials) {
	creds.AddedAt = time.Now()

	s.mu.Lock()
	s.creds[name] = &creds
	s.mu.Unlock()

	logger.WithField("server", name).Info("OAuth credentials stored")
}

// GetServerCredentials returns the credentials stored for a server name.
func (s *Service) GetServerCredentials(name string) (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[name]
	if !ok {
		return Credentials{}, false
	}
	return *c, true
}

// CredentialStatuses reports per-server credential presence without
// exposing secrets.
func (s *Service) CredentialStatuses() []models.CredentialStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]models.CredentialStatus, 0, len(s.creds))
	for name, c := range s.creds {
		statuses = append(statuses, models.CredentialStatus{
			ServerName:      name,
			HasClientSecret: c.ClientSecret != "",
			HasRefreshToken: c.RefreshToken != "",
			AddedAt:         c.AddedAt,
		})
	}
	return statuses
}

// InjectEnvironment returns base extended with the OAuth variables for the
// named server. When no credentials exist base is returned unchanged.
// Environment variables are the only channel credentials reach a stdio
// child; there is no network handshake between bridge and child.
func (s *Service) InjectEnvironment(name string, base map[string]string) map[string]string {
	// Copy while the lock is held: a concurrent refresh mutates the stored
	// struct in place.
	s.mu.RLock()
	stored, ok := s.creds[name]
	var c Credentials
	if ok {
		c = *stored
	}
	s.mu.RUnlock()

	if !ok {
		return base
	}

	env := make(map[string]string, len(base)+7)
	for k, v := range base {
		env[k] = v
	}

	env[EnvClientID] = c.ClientID
	env[EnvAccessToken] = c.AccessToken
	if c.ClientSecret != "" {
		env[EnvClientSecret] = c.ClientSecret
	}
	if c.RefreshToken != "" {
		env[EnvRefreshToken] = c.RefreshToken
	}
	if c.TokenEndpoint != "" {
		env[EnvTokenEndpoint] = c.TokenEndpoint
	}
	env[EnvOAuthEnabled] = "true"
	env[EnvTransportType] = "stdio"

	return env
}

// refreshResponse is the token endpoint's grant response.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshServerToken performs a refresh-token grant for the named server.
// It returns false, never an error, for ordinary auth failures: missing
// credentials, missing refresh token or endpoint, or a rejected grant. On
// success the stored access token is updated; the refresh token is replaced
// only when the provider rotated it.
func (s *Service) RefreshServerToken(name string) bool {
	s.mu.RLock()
	stored, ok := s.creds[name]
	var c Credentials
	if ok {
		c = *stored
	}
	s.mu.RUnlock()

	if !ok || c.RefreshToken == "" || c.TokenEndpoint == "" {
		return false
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.RefreshToken)
	form.Set("client_id", c.ClientID)
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}

	resp, err := s.httpClient.PostForm(c.TokenEndpoint, form)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"server": name,
			"error":  err.Error(),
		}).Warn("OAuth token refresh request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.WithFields(map[string]interface{}{
			"server": name,
			"status": resp.StatusCode,
		}).Warn("OAuth token refresh rejected")
		return false
	}

	var refreshed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil || refreshed.AccessToken == "" {
		logger.WithField("server", name).Warn("OAuth token refresh returned an invalid response")
		return false
	}

	s.mu.Lock()
	if current, ok := s.creds[name]; ok {
		current.AccessToken = refreshed.AccessToken
		// Absence of a refresh token in the response means the old one is
		// still valid and must be preserved.
		if refreshed.RefreshToken != "" {
			current.RefreshToken = refreshed.RefreshToken
		}
	}
	s.mu.Unlock()

	logger.WithField("server", name).Info("OAuth token refreshed")
	return true
}

// AddToken registers a bearer token. When the token is JWT-shaped and no
// explicit expiry was given, the expiry is derived from its exp claim.
func (s *Service) AddToken(t Token) {
	t.AddedAt = time.Now()
	if t.ExpiresAt.IsZero() {
		if exp, ok := jwtExpiry(t.Token); ok {
			t.ExpiresAt = exp
		}
	}

	s.mu.Lock()
	s.tokens[t.Token] = &t
	s.mu.Unlock()
}

// RemoveToken deletes a bearer token. It reports whether the token existed.
func (s *Service) RemoveToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token]; !ok {
		return false
	}
	delete(s.tokens, token)
	return true
}

// ValidateToken looks up a bearer token. Expired tokens are rejected
// synchronously regardless of whether the sweep has removed them yet.
func (s *Service) ValidateToken(token string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[token]
	if !ok {
		return Token{}, false
	}
	if !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt) {
		return Token{}, false
	}
	return *t, true
}

// TokenCount returns the number of stored bearer tokens.
func (s *Service) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// CleanupExpiredTokens sweeps the token store and removes every token whose
// expiry has passed. It returns the number of tokens removed.
func (s *Service) CleanupExpiredTokens() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, t := range s.tokens {
		if !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt) {
			delete(s.tokens, key)
			removed++
		}
	}
	if removed > 0 {
		logger.WithField("count", removed).Info("Expired bearer tokens removed")
	}
	return removed
}

// StartSweeper runs CleanupExpiredTokens on a fixed interval until stop is
// closed.
func (s *Service) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.CleanupExpiredTokens()
			case <-stop:
				return
			}
		}
	}()
}

// jwtExpiry extracts the exp claim from a JWT-shaped token without
// verifying its signature. Opaque tokens are left untouched.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}

// Summary describes auth configuration for the health endpoint.
func (s *Service) Summary() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"enabled":           s.enabled,
		"credentialServers": len(s.creds),
		"activeTokens":      len(s.tokens),
	}
}
