package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/creator-coin-ledger/internal/api_gateway/middleware"
	"github.com/creator-coin-ledger/internal/api_gateway/service"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/processor"
)

// MonetizationHandler handles HTTP requests for unlocks and subscriptions
type MonetizationHandler struct {
	service service.MonetizationService
	logger  *slog.Logger
}

// NewMonetizationHandler creates a new monetization handler
func NewMonetizationHandler(logger *slog.Logger, monetizationService service.MonetizationService) *MonetizationHandler {
	return &MonetizationHandler{
		service: monetizationService,
		logger:  logger,
	}
}

// Unlock buys access to a content item for the calling user
func (h *MonetizationHandler) Unlock(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid unlock request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Unlock(c.Request.Context(), processor.UnlockRequest{
		BuyerID:        middleware.GetActorID(c),
		ContentID:      req.ContentID,
		IdempotencyKey: idempotencyKey(req.IdempotencyKey, c.GetHeader(IdempotencyKeyHeader)),
		Context:        requestContext(c),
	})
	if err != nil {
		logFailure(logger, "Unlock failed", err, "content_id", req.ContentID)
		RespondError(c, err)
		return
	}

	if result.Idempotent {
		RespondOK(c, result)
		return
	}
	RespondCreated(c, result)
}

// Subscribe starts a subscription of the calling user to a creator
func (h *MonetizationHandler) Subscribe(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid subscribe request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Subscribe(c.Request.Context(), processor.SubscribeRequest{
		SubscriberID:   middleware.GetActorID(c),
		CreatorID:      req.CreatorID,
		Tier:           monetization.Tier(req.Tier),
		Price:          req.Price,
		IdempotencyKey: idempotencyKey(req.IdempotencyKey, c.GetHeader(IdempotencyKeyHeader)),
		Context:        requestContext(c),
	})
	if err != nil {
		logFailure(logger, "Subscribe failed", err, "creator_id", req.CreatorID, "tier", req.Tier)
		RespondError(c, err)
		return
	}

	if result.Idempotent {
		RespondOK(c, result)
		return
	}
	RespondCreated(c, result)
}

// GetSubscription returns a subscription visible to its subscriber or creator
func (h *MonetizationHandler) GetSubscription(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.service.GetSubscription(c.Request.Context(), id)
	if err != nil {
		logFailure(requestLogger(h.logger, c), "Failed to get subscription", err, "subscription_id", id)
		RespondError(c, err)
		return
	}

	actorID := middleware.GetActorID(c)
	if sub.SubscriberID != actorID && sub.CreatorID != actorID {
		RespondError(c, shared.NewError(shared.CodeNotFound, "subscription not found"))
		return
	}
	RespondOK(c, sub)
}

// Renew charges the next billing period on demand. Only the subscriber may renew.
func (h *MonetizationHandler) Renew(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req RenewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid renew request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	sub, err := h.service.GetSubscription(c.Request.Context(), id)
	if err != nil {
		logFailure(logger, "Failed to load subscription for renewal", err, "subscription_id", id)
		RespondError(c, err)
		return
	}
	if sub.SubscriberID != middleware.GetActorID(c) {
		RespondError(c, shared.NewError(shared.CodeUnauthorized, "only the subscriber may renew"))
		return
	}

	result, err := h.service.Renew(c.Request.Context(), processor.RenewRequest{
		SubscriptionID: id,
		IdempotencyKey: idempotencyKey(req.IdempotencyKey, c.GetHeader(IdempotencyKeyHeader)),
		Context:        requestContext(c),
	})
	if err != nil {
		logFailure(logger, "Renewal failed", err, "subscription_id", id)
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

// Cancel stops a subscription on behalf of its subscriber or creator
func (h *MonetizationHandler) Cancel(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ReasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid cancel request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	sub, err := h.service.CancelSubscription(c.Request.Context(), processor.CancelRequest{
		SubscriptionID: id,
		ActorID:        middleware.GetActorID(c),
		Reason:         req.Reason,
		Context:        requestContext(c),
	})
	if err != nil {
		logFailure(logger, "Cancel failed", err, "subscription_id", id)
		RespondError(c, err)
		return
	}
	RespondOK(c, sub)
}

// RefundUnlock reverses a completed unlock. Admin only.
func (h *MonetizationHandler) RefundUnlock(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ReasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid refund request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	unlock, err := h.service.RefundUnlock(c.Request.Context(), processor.RefundRequest{
		UnlockID: id,
		ActorID:  middleware.GetActorID(c),
		Reason:   req.Reason,
		Context:  requestContext(c),
	})
	if err != nil {
		logFailure(logger, "Refund failed", err, "unlock_id", id)
		RespondError(c, err)
		return
	}

	logger.Info("Unlock refunded", "unlock_id", id, "amount", unlock.Amount)
	RespondOK(c, unlock)
}
