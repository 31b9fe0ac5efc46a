package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/api_gateway/middleware"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/processor"
)

// requestContext captures the caller attributes the core records for audit and risk
func requestContext(c *gin.Context) processor.RequestContext {
	return processor.RequestContext{
		CorrelationID: middleware.GetCorrelationID(c),
		IP:            c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	}
}

func requestLogger(logger *slog.Logger, c *gin.Context) *slog.Logger {
	return logger.With(
		"correlation_id", middleware.GetCorrelationID(c),
		"actor_id", middleware.GetActorID(c),
	)
}

// logFailure logs business rejections at warn and everything else at error
func logFailure(logger *slog.Logger, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if code := shared.CodeOf(err); code != shared.CodeInternal && code != shared.CodeTransactionAborted {
		logger.Warn(msg, append(args, "code", code)...)
		return
	}
	logger.Error(msg, args...)
}

// uuidParam parses a path parameter, answering 400 when malformed
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
