package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sk-governance-api/internal/middleware"
	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/pkg/middleware/requestid"
)

// actorFromContext identifies the caller for audit entries.
func actorFromContext(c *gin.Context) models.Actor {
	actor := models.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		RequestID: requestid.Value(c),
	}
	if claims, ok := middleware.Claims(c); ok {
		actor.UserID = claims.UserID
	}
	return actor
}

// freshQuery reports whether the caller asked to bypass cached statistics.
func freshQuery(c *gin.Context) bool {
	switch c.Query("fresh") {
	case "1", "true", "yes":
		return true
	}
	return false
}
