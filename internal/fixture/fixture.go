// Package fixture provisions named account sets (demo data, test worlds)
// through the account service. Applying a set twice is a no-op.
package fixture

import (
	"context"
	"fmt"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Account describes one account to provision. OpeningBalance is a decimal string.
type Account struct {
	Number         string
	HolderName     string
	Role           domain.AccountRole
	Credential     string
	OpeningBalance string
}

// Report lists what Apply did.
type Report struct {
	Created  []string
	Existing []string
}

// DemoSet is the default demo world: two payers plus the configured merchant
// and fee collector accounts.
func DemoSet(merchantAccount, feeCollectorAccount string) []Account {
	return []Account{
		{Number: "ACC-1001", HolderName: "Demo Customer", Role: domain.AccountRolePayer, Credential: "customer123", OpeningBalance: "10000.00"},
		{Number: "ACC-1002", HolderName: "Jane Smith", Role: domain.AccountRolePayer, Credential: "secure456", OpeningBalance: "2500.00"},
		{Number: merchantAccount, HolderName: "Demo Merchant Shop", Role: domain.AccountRoleMerchant, OpeningBalance: "0.00"},
		{Number: feeCollectorAccount, HolderName: "Platform Fees", Role: domain.AccountRoleFeeCollector, OpeningBalance: "0.00"},
	}
}

// Builder applies fixture sets.
type Builder struct {
	accounts ports.AccountService
	log      zerolog.Logger
}

// NewBuilder creates a Builder over the account service.
func NewBuilder(accounts ports.AccountService, log zerolog.Logger) *Builder {
	return &Builder{accounts: accounts, log: log}
}

// Apply opens every account in set that does not exist yet. Existing accounts
// are left untouched, balances included.
func (b *Builder) Apply(ctx context.Context, set []Account, actor string) (*Report, error) {
	report := &Report{}
	for _, a := range set {
		opening, err := decimal.NewFromString(a.OpeningBalance)
		if err != nil {
			return report, fmt.Errorf("fixture %s: opening balance %q: %w", a.Number, a.OpeningBalance, err)
		}

		_, err = b.accounts.OpenAccount(ctx, ports.OpenAccountRequest{
			Number:         a.Number,
			HolderName:     a.HolderName,
			Role:           a.Role,
			Credential:     a.Credential,
			OpeningBalance: opening,
			Actor:          actor,
		})
		switch {
		case err == nil:
			report.Created = append(report.Created, a.Number)
			b.log.Info().Str("account", a.Number).Str("role", string(a.Role)).Msg("fixture account created")
		case apperror.Is(err, apperror.KindAccountExists):
			report.Existing = append(report.Existing, a.Number)
			b.log.Debug().Str("account", a.Number).Msg("fixture account already exists")
		default:
			return report, fmt.Errorf("fixture %s: %w", a.Number, err)
		}
	}
	return report, nil
}
