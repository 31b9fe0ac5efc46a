package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ActorIDHeader carries the identity the upstream auth layer resolved
	ActorIDHeader = "X-Actor-ID"

	// ActorIDKey is the key used to store the actor in the context
	ActorIDKey = "actor_id"

	maxActorIDLength = 128
)

// RequireActor rejects requests without an acting identity. Authentication
// happens upstream; this only takes the resolved identity from the header.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(ActorIDHeader)
		if actorID == "" || len(actorID) > maxActorIDLength {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHENTICATED",
					"message": "missing or invalid " + ActorIDHeader + " header",
				},
				"correlation_id": GetCorrelationID(c),
			})
			return
		}
		c.Set(ActorIDKey, actorID)
		c.Next()
	}
}

// GetActorID retrieves the acting identity from the gin context if present
func GetActorID(c *gin.Context) string {
	return c.GetString(ActorIDKey)
}
