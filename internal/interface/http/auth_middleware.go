package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

func authMiddleware(tokens auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, apperrors.CodeUnauthorized, "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, apperrors.CodeUnauthorized, "invalid authorization header", nil))
			return
		}
		claims, err := tokens.ValidateToken(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			abortWithError(c, asHTTPError(err))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// requireRoles rejects actors holding none of roles.
func requireRoles(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Is(roles...) {
			abortWithError(c, NewHTTPError(http.StatusForbidden, apperrors.CodeForbidden, "role not permitted", nil))
			return
		}
		c.Next()
	}
}
