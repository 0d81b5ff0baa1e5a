package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/infrastructure/auth"
	"github.com/dealtracker/backend/internal/infrastructure/logger"
	"github.com/dealtracker/backend/internal/interfaces/http/dto"
	"github.com/dealtracker/backend/internal/interfaces/http/middleware"
)

// AuthHandler lets an operator inspect and revoke their own token. Tokens
// are issued offline with `api -issue-token`.
type AuthHandler struct {
	BaseHandler
	revocations auth.RevocationList
	now         func() time.Time
}

// NewAuthHandler creates a new AuthHandler. revocations may be nil, in
// which case revoking reports the feature as not configured.
func NewAuthHandler(revocations auth.RevocationList) *AuthHandler {
	return &AuthHandler{revocations: revocations, now: time.Now}
}

// TokenInfo is the body of GET /auth/token
type TokenInfo struct {
	Operator  string    `json:"operator"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CurrentToken handles GET /auth/token
func (h *AuthHandler) CurrentToken(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Error(c, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	info := TokenInfo{Operator: claims.Operator, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	h.Success(c, info)
}

// RevokeToken handles DELETE /auth/token, revoking the presented token.
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	if h.revocations == nil {
		h.Error(c, dto.ErrCodeNotConfigured, "Token revocation is not configured")
		return
	}
	claims := middleware.GetJWTClaims(c)
	if claims == nil || claims.ID == "" {
		h.Error(c, dto.ErrCodeTokenInvalid, "Token has no id")
		return
	}

	if err := h.revocations.Revoke(c.Request.Context(), claims.ID, claims.RemainingTTL(h.now())); err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Operator token revoked", zap.String("jti", claims.ID))
	h.Success(c, gin.H{"revoked": true})
}
