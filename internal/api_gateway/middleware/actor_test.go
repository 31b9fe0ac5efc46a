package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequireActor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CorrelationID())
	router.Use(RequireActor())
	var captured string
	router.GET("/me", func(c *gin.Context) {
		captured = GetActorID(c)
		c.Status(http.StatusOK)
	})

	t.Run("StoresActor", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(ActorIDHeader, "creator-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "creator-1", captured)
	})

	t.Run("RejectsMissingActor", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/me", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "UNAUTHENTICATED")
	})
}
