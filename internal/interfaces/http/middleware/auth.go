package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rackgrid/rackgrid/internal/infrastructure/auth"
	"github.com/rackgrid/rackgrid/internal/shared/constants"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
	"github.com/rackgrid/rackgrid/internal/shared/utils"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	logger   logger.Interface
}

func NewAuthMiddleware(verifier TokenVerifier, logger logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireAuth verifies the bearer token and stores the caller's facility,
// user and admin flag on the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing authorization token")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := m.verifier.Verify(parts[1])
		if err != nil {
			m.logger.Warnw("failed to verify token", "error", err, "path", c.Request.URL.Path)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyFacilityID, claims.FacilityID)
		c.Set(constants.ContextKeyUserID, claims.UserID)
		c.Set(constants.ContextKeySuperAdmin, claims.SuperAdmin)

		c.Next()
	}
}

// RequireFacility rejects tokens that are not scoped to a facility.
func (m *AuthMiddleware) RequireFacility() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(constants.ContextKeyFacilityID) == "" {
			utils.ErrorResponse(c, http.StatusForbidden, "token is not scoped to a facility")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(constants.ContextKeySuperAdmin) {
			m.logger.Warnw("admin route denied",
				"path", c.Request.URL.Path,
				"user_id", c.GetString(constants.ContextKeyUserID),
			)
			utils.ErrorResponse(c, http.StatusForbidden, "super admin privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}
