package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement-ledger/config"
	"settlement-ledger/internal/adapter/events/kafka"
	httpHandler "settlement-ledger/internal/adapter/http/handler"
	"settlement-ledger/internal/adapter/storage"
	redisStorage "settlement-ledger/internal/adapter/storage/redis"
	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/internal/fixture"
	"settlement-ledger/internal/service"
	"settlement-ledger/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SLG_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("fee_mode", cfg.Settlement.FeeMode).
		Msg("Starting Settlement Ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (SLG_JWT_SECRET)")
	}

	ctx := context.Background()

	repos, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.Close()

	healthCheckers := append([]ports.HealthChecker{}, repos.Health...)

	// Redis backs the settlement cache and rate limiting; both are optional.
	var (
		cache       ports.SettlementCache
		rateLimiter ports.RateLimiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		cache = redisStorage.NewSettlementCache(rdb)
		rateLimiter = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no settlement cache, no rate limiting")
	}

	var events ports.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		var signer ports.EventSigner
		if cfg.Kafka.SigningKey != "" {
			hmacSigner, err := service.NewHMACSignatureService(cfg.Kafka.SigningKey)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid event signing key")
			}
			signer = hmacSigner
		} else {
			log.Warn().Msg("kafka.signing_key not set, settlement events are unsigned")
		}
		publisher := kafka.NewPublisher(cfg.Kafka, signer, logger.Component(log, "events"))
		defer publisher.Close()
		events = publisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher configured")
	}

	// Core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(repos.Audit, logger.Component(log, "audit"))

	defaults, err := service.FeeScheduleFromStrings(cfg.Fees.Rate, cfg.Fees.MinimumFee, cfg.Fees.MaximumFee)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid default fee schedule")
	}
	feeSvc, err := service.NewFeeService(defaults, repos.FeeSchedule, auditSvc, logger.Component(log, "fees"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize fee service")
	}
	if err := feeSvc.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load fee schedule")
	}

	ledgerSvc := service.NewLedgerService(
		repos.Transactor,
		repos.Accounts,
		service.NewTransactionRecorder(repos.Entries),
		cfg.Settlement.MutationTimeout,
		logger.Component(log, "ledger"),
	)
	accountSvc := service.NewAccountService(repos.Transactor, repos.Accounts, repos.Entries, hashSvc, auditSvc,
		cfg.Settlement.LookupTimeout, logger.Component(log, "accounts"))

	feeMode := domain.FeeMode(cfg.Settlement.FeeMode)
	settlementSvc, err := service.NewSettlementService(service.SettlementConfig{
		MerchantAccount:     cfg.Settlement.MerchantAccount,
		FeeCollectorAccount: cfg.Settlement.FeeCollectorAccount,
		FeeMode:             feeMode,
		LookupTimeout:       cfg.Settlement.LookupTimeout,
		CacheTTL:            cfg.Redis.CacheTTL,
	}, service.SettlementDeps{
		Accounts:    repos.Accounts,
		Settlements: repos.Settlements,
		Entries:     repos.Entries,
		Ledger:      ledgerSvc,
		Fees:        feeSvc,
		Hasher:      hashSvc,
		Audit:       auditSvc,
		Cache:       cache,
		Events:      events,
	}, logger.Component(log, "settlement"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settlement service")
	}

	// An in-memory ledger starts empty; give it the demo world.
	if repos.Driver == "memory" {
		report, err := fixture.NewBuilder(accountSvc, log).Apply(ctx,
			fixture.DemoSet(cfg.Settlement.MerchantAccount, cfg.Settlement.FeeCollectorAccount), "bootstrap")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed in-memory ledger")
		}
		log.Info().Strs("accounts", report.Created).Msg("Demo accounts created")
	}

	var spec []byte
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		spec = specBytes
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SettlementSvc:  settlementSvc,
		AccountSvc:     accountSvc,
		FeeSvc:         feeSvc,
		AuditSvc:       auditSvc,
		TokenSvc:       tokenSvc,
		FeeMode:        feeMode,
		RateLimiter:    rateLimiter,
		HealthCheckers: healthCheckers,
		OpenAPISpec:    spec,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// In-flight settlements past their first mutation finish before Shutdown returns.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
