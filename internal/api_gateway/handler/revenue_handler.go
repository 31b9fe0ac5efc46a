package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/creator-coin-ledger/internal/api_gateway/middleware"
	"github.com/creator-coin-ledger/internal/api_gateway/service"
)

// RevenueHandler handles HTTP requests for creator earnings and payouts
type RevenueHandler struct {
	service service.RevenueService
	logger  *slog.Logger
}

// NewRevenueHandler creates a new revenue handler
func NewRevenueHandler(logger *slog.Logger, revenueService service.RevenueService) *RevenueHandler {
	return &RevenueHandler{
		service: revenueService,
		logger:  logger,
	}
}

// GetAccount returns the calling creator's revenue account
func (h *RevenueHandler) GetAccount(c *gin.Context) {
	account, err := h.service.GetAccount(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		logFailure(requestLogger(h.logger, c), "Failed to get revenue account", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, account)
}

// ListWithdrawals returns the calling creator's payouts, newest first
func (h *RevenueHandler) ListWithdrawals(c *gin.Context) {
	withdrawals, err := h.service.ListWithdrawals(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		logFailure(requestLogger(h.logger, c), "Failed to list withdrawals", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, withdrawals)
}

// RequestPayout withdraws available earnings to the creator's verified account
func (h *RevenueHandler) RequestPayout(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid payout request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	creatorID := middleware.GetActorID(c)
	withdrawal, err := h.service.RequestPayout(c.Request.Context(), creatorID, req.Amount, creatorID)
	if err != nil {
		logFailure(logger, "Payout request failed", err, "amount", req.Amount)
		RespondError(c, err)
		return
	}
	RespondAccepted(c, withdrawal)
}

// VerifyPaymentInfo marks a creator's payout details as checked. Admin only.
func (h *RevenueHandler) VerifyPaymentInfo(c *gin.Context) {
	creatorID := c.Param("creator")
	account, err := h.service.VerifyPaymentInfo(c.Request.Context(), creatorID, middleware.GetActorID(c))
	if err != nil {
		logFailure(requestLogger(h.logger, c), "Payment info verification failed", err, "creator_id", creatorID)
		RespondError(c, err)
		return
	}
	RespondOK(c, account)
}

// SettlePending releases held earnings into the available balance. Admin only.
func (h *RevenueHandler) SettlePending(c *gin.Context) {
	logger := requestLogger(h.logger, c)
	creatorID := c.Param("creator")

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	settled, err := h.service.SettlePending(c.Request.Context(), creatorID, req.Amount, middleware.GetActorID(c))
	if err != nil {
		logFailure(logger, "Pending settlement failed", err, "creator_id", creatorID, "amount", req.Amount)
		RespondError(c, err)
		return
	}
	RespondOK(c, SettlePendingResponse{CreatorID: creatorID, Settled: settled})
}

// SettleWithdrawal records the bank outcome of a payout. Admin only.
func (h *RevenueHandler) SettleWithdrawal(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req SettleWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	withdrawal, err := h.service.SettleWithdrawal(c.Request.Context(), id, *req.Succeeded, req.Reason, middleware.GetActorID(c))
	if err != nil {
		logFailure(logger, "Withdrawal settlement failed", err, "withdrawal_id", id)
		RespondError(c, err)
		return
	}
	RespondOK(c, withdrawal)
}
