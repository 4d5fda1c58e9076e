// Command seed provisions the demo accounts in persistent storage and prints
// an admin bearer token for the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"settlement-ledger/config"
	"settlement-ledger/internal/adapter/storage"
	"settlement-ledger/internal/fixture"
	"settlement-ledger/internal/service"
	"settlement-ledger/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	admin := flag.String("admin", "ops-admin", "subject of the printed admin token")
	timeout := flag.Duration("timeout", 30*time.Second, "overall seeding timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SLG_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Storage.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("seed needs persistent storage; the API seeds the memory driver itself")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	repos, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.Close()

	auditSvc := service.NewAuditService(repos.Audit, log)
	accountSvc := service.NewAccountService(repos.Transactor, repos.Accounts, repos.Entries, service.NewArgon2HashService(), auditSvc,
		cfg.Settlement.LookupTimeout, log)

	set := fixture.DemoSet(cfg.Settlement.MerchantAccount, cfg.Settlement.FeeCollectorAccount)
	report, err := fixture.NewBuilder(accountSvc, log).Apply(ctx, set, "seed")
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}

	fmt.Printf("created:  %v\n", report.Created)
	fmt.Printf("existing: %v\n", report.Existing)
	for _, a := range set {
		if a.Credential != "" {
			fmt.Printf("payer %s credential %s\n", a.Number, a.Credential)
		}
	}

	if cfg.JWT.Secret == "" {
		log.Warn().Msg("jwt.secret not set, no admin token printed")
		return
	}
	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer).Generate(*admin)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign admin token")
	}
	fmt.Printf("admin token (%s, expires %s):\n%s\n", *admin, expiresAt.UTC().Format(time.RFC3339), token)
}
