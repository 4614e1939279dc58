package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/imyashkale/mcpbridge/internal/models"
	"github.com/imyashkale/mcpbridge/internal/oauth"
)

// OAuthHandler handles credential and token management requests
type OAuthHandler struct {
	oauth *oauth.Service
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(svc *oauth.Service) *OAuthHandler {
	return &OAuthHandler{oauth: svc}
}

// SetCredentials handles POST /oauth/credentials
func (h *OAuthHandler) SetCredentials(c *gin.Context) {
	var req models.SetCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if req.ServerName == "" || req.ClientID == "" || req.AccessToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "serverName, clientId and accessToken are required",
		})
		return
	}

	h.oauth.SetServerCredentials(req.ServerName, oauth.Credentials{
		ClientID:      req.ClientID,
		ClientSecret:  req.ClientSecret,
		AccessToken:   req.AccessToken,
		RefreshToken:  req.RefreshToken,
		TokenEndpoint: req.TokenEndpoint,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"serverName": req.ServerName,
	})
}

// Status handles GET /oauth/status
func (h *OAuthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled": h.oauth.Enabled(),
		"servers": h.oauth.CredentialStatuses(),
		"tokens":  h.oauth.TokenCount(),
	})
}

// Refresh handles POST /oauth/refresh. Refresh failures are reported as a
// boolean, never an internal error.
func (h *OAuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ServerName == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "invalid_request",
			"message":   "serverName is required",
			"refreshed": false,
		})
		return
	}

	if !h.oauth.RefreshServerToken(req.ServerName) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "refresh_failed",
			"message":   "token refresh failed or no refresh credentials on file",
			"refreshed": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"refreshed": true,
	})
}

// AddToken handles POST /oauth/token. A token value is generated when the
// request does not supply one.
func (h *OAuthHandler) AddToken(c *gin.Context) {
	var req models.AddTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	token := req.Token
	if token == "" {
		token = uuid.New().String()
	}

	var expiresAt time.Time
	if req.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
	}

	h.oauth.AddToken(oauth.Token{
		Token:      token,
		ExpiresAt:  expiresAt,
		Scope:      req.Scope,
		ServerName: req.ServerName,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
	})
}

// RemoveToken handles DELETE /oauth/token
func (h *OAuthHandler) RemoveToken(c *gin.Context) {
	var req models.RemoveTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "token is required",
		})
		return
	}

	if !h.oauth.RemoveToken(req.Token) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "token_not_found",
			"message": "no such token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
