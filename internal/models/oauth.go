package models

import "time"

// SetCredentialsRequest is the body of POST /oauth/credentials
type SetCredentialsRequest struct {
	ServerName    string `json:"serverName"`
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"clientSecret"`
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken"`
	TokenEndpoint string `json:"tokenEndpoint"`
}

// RefreshTokenRequest is the body of POST /oauth/refresh
type RefreshTokenRequest struct {
	ServerName string `json:"serverName"`
}

// AddTokenRequest is the body of POST /oauth/token.
// When Token is empty a random token is generated and returned.
// ExpiresIn is in seconds; zero means the token never expires.
type AddTokenRequest struct {
	Token      string `json:"token"`
	ExpiresIn  int64  `json:"expiresIn"`
	Scope      string `json:"scope"`
	ServerName string `json:"serverName"`
}

// RemoveTokenRequest is the body of DELETE /oauth/token
type RemoveTokenRequest struct {
	Token string `json:"token"`
}

// CredentialStatus reports per-server credential presence for GET /oauth/status
type CredentialStatus struct {
	ServerName      string    `json:"serverName"`
	HasClientSecret bool      `json:"hasClientSecret"`
	HasRefreshToken bool      `json:"hasRefreshToken"`
	AddedAt         time.Time `json:"addedAt"`
}
