package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/api_gateway/middleware"
	"github.com/creator-coin-ledger/internal/api_gateway/service"
	"github.com/creator-coin-ledger/internal/payments"
)

// WalletHandler handles HTTP requests for coin balances and provider money movement
type WalletHandler struct {
	wallets  service.WalletService
	payments service.PaymentService
	logger   *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService, paymentService service.PaymentService) *WalletHandler {
	return &WalletHandler{
		wallets:  walletService,
		payments: paymentService,
		logger:   logger,
	}
}

// GetBalance returns the caller's coin balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	balance, err := h.wallets.GetBalance(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		logFailure(requestLogger(h.logger, c), "Failed to get balance", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, balance)
}

// GetTransactions pages through the caller's ledger history
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	page, err := h.wallets.GetTransactions(c.Request.Context(), middleware.GetActorID(c), params.Page, params.PerPage)
	if err != nil {
		logFailure(requestLogger(h.logger, c), "Failed to get transactions", err)
		RespondError(c, err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, page.Items, page.Page, page.PerPage, int(page.Total))
}

// Deposit records a pending top-up that the provider confirms later
func (h *WalletHandler) Deposit(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid deposit request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tx, err := h.payments.RequestDeposit(c.Request.Context(), payments.DepositRequest{
		OwnerID:       middleware.GetActorID(c),
		Amount:        req.Amount,
		Provider:      req.Provider,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		logFailure(logger, "Deposit request failed", err, "amount", req.Amount)
		RespondError(c, err)
		return
	}
	RespondAccepted(c, tx)
}

// Withdraw debits coins now and pays them out once the provider confirms
func (h *WalletHandler) Withdraw(c *gin.Context) {
	logger := requestLogger(h.logger, c)

	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid withdrawal request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tx, err := h.payments.RequestWithdrawal(c.Request.Context(), payments.WithdrawalRequest{
		OwnerID:       middleware.GetActorID(c),
		Amount:        req.Amount,
		Destination:   req.Destination,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		logFailure(logger, "Withdrawal request failed", err, "amount", req.Amount)
		RespondError(c, err)
		return
	}
	RespondAccepted(c, tx)
}

// ProviderWebhook settles a pending deposit or withdrawal. Replays of the
// same provider reference answer with the already settled transaction.
func (h *WalletHandler) ProviderWebhook(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	var req ProviderWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid provider webhook body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	txID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction_id")
		return
	}

	result, err := h.payments.ConfirmProviderTransaction(c.Request.Context(), payments.Confirmation{
		TransactionID: txID,
		ProviderTxID:  req.ProviderTxID,
		Outcome:       payments.Outcome(req.Outcome),
		Reason:        req.Reason,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		logFailure(logger, "Provider confirmation failed", err, "transaction_id", txID, "provider_tx_id", req.ProviderTxID)
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

// Freeze blocks every money movement of a wallet. Admin only.
func (h *WalletHandler) Freeze(c *gin.Context) {
	h.setFrozen(c, true)
}

// Unfreeze reactivates a frozen wallet. Admin only.
func (h *WalletHandler) Unfreeze(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *WalletHandler) setFrozen(c *gin.Context, frozen bool) {
	logger := requestLogger(h.logger, c)
	ownerID := c.Param("owner")

	var req ReasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	op := h.wallets.Unfreeze
	if frozen {
		op = h.wallets.Freeze
	}
	changed, err := op(c.Request.Context(), ownerID, req.Reason, middleware.GetActorID(c))
	if err != nil {
		logFailure(logger, "Wallet status change failed", err, "owner_id", ownerID, "freeze", frozen)
		RespondError(c, err)
		return
	}

	logger.Info("Wallet status change", "owner_id", ownerID, "freeze", frozen, "changed", changed)
	RespondOK(c, FreezeResponse{OwnerID: ownerID, Changed: changed})
}
