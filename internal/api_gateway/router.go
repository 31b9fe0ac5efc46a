package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/creator-coin-ledger/internal/api_gateway/handler"
	"github.com/creator-coin-ledger/internal/api_gateway/middleware"
	"github.com/creator-coin-ledger/internal/platform/metrics"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	monetization *handler.MonetizationHandler
	wallet       *handler.WalletHandler
	revenue      *handler.RevenueHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	h handlers,
	collector *metrics.Collector,
	db Pinger,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints, acting on behalf of the identity in X-Actor-ID
	v1 := r.Group("/api/v1", middleware.RequireActor())
	{
		v1.POST("/unlocks", h.monetization.Unlock)

		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.POST("", h.monetization.Subscribe)
			subscriptions.GET("/:id", h.monetization.GetSubscription)
			subscriptions.POST("/:id/renew", h.monetization.Renew)
			subscriptions.POST("/:id/cancel", h.monetization.Cancel)
		}

		wallet := v1.Group("/wallet")
		{
			wallet.GET("", h.wallet.GetBalance)
			wallet.GET("/transactions", h.wallet.GetTransactions)
			wallet.POST("/deposits", h.wallet.Deposit)
			wallet.POST("/withdrawals", h.wallet.Withdraw)
		}

		creator := v1.Group("/creators/me")
		{
			creator.GET("/revenue", h.revenue.GetAccount)
			creator.GET("/withdrawals", h.revenue.ListWithdrawals)
			creator.POST("/payouts", h.revenue.RequestPayout)
		}

		// Admin gating happens at the edge proxy; the actor is recorded for audit
		admin := v1.Group("/admin")
		{
			admin.POST("/unlocks/:id/refund", h.monetization.RefundUnlock)
			admin.POST("/wallets/:owner/freeze", h.wallet.Freeze)
			admin.POST("/wallets/:owner/unfreeze", h.wallet.Unfreeze)
			admin.POST("/creators/:creator/verify", h.revenue.VerifyPaymentInfo)
			admin.POST("/creators/:creator/settle", h.revenue.SettlePending)
			admin.POST("/payouts/:id/settle", h.revenue.SettleWithdrawal)
		}
	}

	// Payment provider callbacks
	r.POST("/webhooks/payments", h.wallet.ProviderWebhook)

	r.GET("/metrics", gin.WrapH(collector.Handler()))

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				logger.Warn("Health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "timestamp": time.Now().UTC()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
