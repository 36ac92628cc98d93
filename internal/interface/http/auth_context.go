package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
)

const authClaimsKey = "auth_claims"

func setClaims(c *gin.Context, claims auth.Claims) {
	c.Set(authClaimsKey, claims)
}

func getClaims(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(authClaimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}

// actorFrom returns the authenticated actor or the zero Actor, which no
// role check accepts.
func actorFrom(c *gin.Context) auth.Actor {
	claims, _ := getClaims(c)
	return claims.Actor
}
