package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/gateway"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/messaging/rabbitmq"
	"wallet-ledger/internal/adapter/storage"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/internal/worker"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if cfg.Server.Mode == gin.ReleaseMode || cfg.Server.Mode == gin.TestMode {
		gin.SetMode(cfg.Server.Mode)
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting wallet ledger API")

	ctx := context.Background()

	// Ledger store
	store, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer closeStore()

	// Redis: idempotency cache, request lock, rate limits
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	requestLock := redisStorage.NewRequestLock(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Release scheduling
	asynqClient := asynq.NewClient(redisStorage.TaskQueueOpt(cfg.Redis))
	defer asynqClient.Close()
	scheduler := worker.NewReleaseScheduler(asynqClient, log)

	// Event publishing (optional)
	var publisher ports.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		p, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer p.Close()
		publisher = p
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("RabbitMQ connected")
	}

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	fees, err := service.NewFeeCalculator(cfg.Fees)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fee configuration")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(store.Audits, log)
	incidentSvc := service.NewIncidentService(store.Incidents, log)
	notifier := service.NewNotificationService(publisher, log)
	gatewayClient := gateway.NewClient(cfg.Gateway, log)

	ledger := service.NewLedger(store.Wallets, store.Transactions, incidentSvc, logger.WithComponent(log, "ledger"))

	// Business services
	walletSvc := service.NewWalletQueryService(ledger, store.Transactions)
	topupSvc := service.NewTopupService(
		store.Transactor, ledger, fees, store.Topups, gatewayClient, auditSvc,
		cfg.Gateway.Provider, cfg.Gateway.InvoiceTTL, log,
	)
	payoutSvc := service.NewPayoutService(
		store.Transactor, ledger, fees, store.Payouts, store.BankAccounts, encSvc,
		gatewayClient, idempotencyCache, requestLock, auditSvc, cfg.Payout.IdempotencyTTL, log,
	)
	settlementSvc := service.NewSettlementService(
		store.Transactor, ledger, store.Bookings, store.Settlements, scheduler,
		idempotencyCache, auditSvc, notifier, cfg.Settlement.HoldWindow, log,
	)
	reconciler := service.NewWebhookReconciler(
		store.Transactor, ledger, store.Topups, store.Payouts,
		idempotencyCache, auditSvc, notifier, incidentSvc, logger.WithComponent(log, "reconciler"),
	)
	bankAccountSvc := service.NewBankAccountService(store.BankAccounts, encSvc)

	// The worker process cannot see an in-memory store, so run the recovery
	// sweeps here instead.
	if store.Driver == storage.DriverMemory {
		sweeper := worker.NewSweeper(settlementSvc, payoutSvc, cfg.Settlement, cfg.Payout, logger.WithComponent(log, "sweeper"))
		c, err := sweeper.Schedule(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid sweep schedule")
		}
		c.Start()
		defer c.Stop()
	}

	apiDocs, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("API docs not found, /swagger disabled")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		TopupSvc:       topupSvc,
		PayoutSvc:      payoutSvc,
		SettlementSvc:  settlementSvc,
		BankAccountSvc: bankAccountSvc,
		Reconciler:     reconciler,
		IncidentRepo:   store.Incidents,
		TokenSvc:       tokenSvc,
		SigSvc:         sigSvc,
		AuditSvc:       auditSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{store.Health, redisStorage.NewHealthCheck(rdb)},
		Gateway:        cfg.Gateway,
		MaxBodySize:    cfg.Server.MaxBodySize,
		APIDocs:        apiDocs,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
