package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recoveredBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func newRecoveryRouter(logs *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationID())
	router.Use(Recovery(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelError}))))
	router.POST("/api/v1/unlocks", func(c *gin.Context) {
		var split map[string]int64
		_ = split["creator"] / int64(len(split)) // division by zero on an empty split
	})
	router.GET("/api/v1/wallet", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"balance": 900})
	})
	return router
}

func TestRecovery_PanicBecomesInternalError(t *testing.T) {
	var logs bytes.Buffer
	router := newRecoveryRouter(&logs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/unlocks", nil)
	req.Header.Set(CorrelationIDHeader, "corr-unlock-7")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body recoveredBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL", body.Error.Code)
	assert.Equal(t, "An internal server error occurred", body.Error.Message)
	assert.Equal(t, "corr-unlock-7", body.CorrelationID)
	assert.NotContains(t, rr.Body.String(), "divide by zero")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "Panic recovered", entry["msg"])
	assert.Equal(t, "/api/v1/unlocks", entry["path"])
	assert.Equal(t, http.MethodPost, entry["method"])
	assert.Equal(t, "corr-unlock-7", entry["correlation_id"])
	assert.Contains(t, entry["error"], "divide by zero")
	assert.NotEmpty(t, entry["stack"])
}

func TestRecovery_GeneratedCorrelationIDIsReturned(t *testing.T) {
	var logs bytes.Buffer
	router := newRecoveryRouter(&logs)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/unlocks", nil))

	var body recoveredBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CorrelationID)
	assert.Equal(t, body.CorrelationID, rr.Header().Get(CorrelationIDHeader))
}

func TestRecovery_PassesThroughWithoutPanic(t *testing.T) {
	var logs bytes.Buffer
	router := newRecoveryRouter(&logs)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"balance":900}`, rr.Body.String())
	assert.Empty(t, logs.String())
}
