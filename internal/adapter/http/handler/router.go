package handler

import (
	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	TopupSvc       ports.TopupService
	PayoutSvc      ports.PayoutService
	SettlementSvc  ports.SettlementService
	BankAccountSvc ports.BankAccountService
	Reconciler     ports.WebhookReconciler
	IncidentRepo   ports.IncidentRepository
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Gateway        config.GatewayConfig
	MaxBodySize    int64
	APIDocs        []byte // OpenAPI YAML; empty = /swagger returns 404
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(deps.MaxBodySize))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	docs := NewDocsHandler(deps.APIDocs)
	r.GET("/swagger", docs.Page)
	r.GET("/swagger/spec", docs.Spec)

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Gateway callbacks (shared token, optional body signature) ---
	callbackHandler := NewCallbackHandler(deps.Reconciler, deps.Logger)
	callbackAuth := middleware.CallbackAuth(
		deps.Gateway.CallbackToken,
		deps.Gateway.SignatureSecret,
		deps.SigSvc,
		deps.AuditSvc,
		deps.Logger,
	)
	r.POST("/webhooks/payment", rl("callbacks"), callbackAuth, callbackHandler.HandlePayment)

	// --- JWT-authenticated API ---
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	business := middleware.RequireRole(ports.RoleBusiness)
	worker := middleware.RequireRole(ports.RoleWorker)
	owners := middleware.RequireRole(ports.RoleBusiness, ports.RoleWorker)
	admin := middleware.RequireRole(ports.RoleAdmin)

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.TopupSvc)
	wallet := v1.Group("/wallet", owners, rl("wallet_read"))
	{
		wallet.GET("", walletHandler.GetWallet)
		wallet.GET("/summary", walletHandler.GetSummary)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}
	v1.POST("/topups", business, rl("topups"), walletHandler.Topup)

	payoutHandler := NewPayoutHandler(deps.PayoutSvc, deps.Logger)
	payouts := v1.Group("/payouts", worker, rl("payouts"))
	{
		payouts.POST("", payoutHandler.RequestPayout)
		payouts.GET("/:id", payoutHandler.GetPayout)
		payouts.POST("/:id/submit", payoutHandler.Submit)
		payouts.POST("/:id/cancel", payoutHandler.Cancel)
	}

	bankAccountHandler := NewBankAccountHandler(deps.BankAccountSvc)
	bankAccounts := v1.Group("/bank-accounts", worker, rl("wallet_read"))
	{
		bankAccounts.POST("", bankAccountHandler.Register)
		bankAccounts.GET("/default", bankAccountHandler.GetDefault)
	}

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	bookings := v1.Group("/bookings/:id", rl("settlements"))
	{
		bookings.POST("/checkout", business, settlementHandler.Checkout)
		bookings.POST("/release", business, settlementHandler.Release)
		bookings.GET("/settlement", settlementHandler.GetSettlement)
	}

	adminHandler := NewAdminHandler(deps.WalletSvc, deps.IncidentRepo)
	admins := v1.Group("/admin", admin, rl("admin"))
	{
		admins.GET("/wallets/:id/reconcile", adminHandler.ReconcileWallet)
		admins.GET("/incidents", adminHandler.ListIncidents)
	}

	return r
}
