package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/gateway"
	"wallet-ledger/internal/adapter/messaging/rabbitmq"
	"wallet-ledger/internal/adapter/storage"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/internal/worker"
	"wallet-ledger/pkg/logger"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if cfg.Storage.Driver == storage.DriverMemory {
		log.Fatal().Msg("The worker needs a shared store; the in-memory store runs its sweeps inside the API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer closeStore()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	redisOpt := redisStorage.TaskQueueOpt(cfg.Redis)
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	var publisher ports.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		p, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer p.Close()
		publisher = p
	}

	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	fees, err := service.NewFeeCalculator(cfg.Fees)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fee configuration")
	}
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	auditSvc := service.NewAuditService(store.Audits, log)
	incidentSvc := service.NewIncidentService(store.Incidents, log)
	notifier := service.NewNotificationService(publisher, log)
	ledger := service.NewLedger(store.Wallets, store.Transactions, incidentSvc, logger.WithComponent(log, "ledger"))

	settlementSvc := service.NewSettlementService(
		store.Transactor, ledger, store.Bookings, store.Settlements,
		worker.NewReleaseScheduler(asynqClient, log),
		idempotencyCache, auditSvc, notifier, cfg.Settlement.HoldWindow, log,
	)
	payoutSvc := service.NewPayoutService(
		store.Transactor, ledger, fees, store.Payouts, store.BankAccounts, encSvc,
		gateway.NewClient(cfg.Gateway, log), idempotencyCache, redisStorage.NewRequestLock(rdb),
		auditSvc, cfg.Payout.IdempotencyTTL, log,
	)

	// Recovery sweeps
	sweeper := worker.NewSweeper(settlementSvc, payoutSvc, cfg.Settlement, cfg.Payout, logger.WithComponent(log, "sweeper"))
	c, err := sweeper.Schedule(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid sweep schedule")
	}
	c.Start()
	defer c.Stop()

	// Release tasks
	workerLog := logger.WithComponent(log, "release_worker")
	srv := worker.NewServer(redisOpt, cfg.Worker.Concurrency, workerLog)
	mux := worker.NewServeMux(worker.NewHandler(settlementSvc, workerLog))
	if err := srv.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("Failed to start task server")
	}
	log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("Settlement worker started")

	<-ctx.Done()
	log.Info().Msg("Shutting down worker...")
	srv.Shutdown()
	log.Info().Msg("Worker exited")
}
