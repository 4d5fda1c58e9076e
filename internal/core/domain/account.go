package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountRole tags which party of a settlement an account belongs to.
type AccountRole string

const (
	AccountRolePayer        AccountRole = "PAYER"
	AccountRoleMerchant     AccountRole = "MERCHANT"
	AccountRoleFeeCollector AccountRole = "FEE_COLLECTOR"
)

// Valid reports whether r is a known role.
func (r AccountRole) Valid() bool {
	switch r {
	case AccountRolePayer, AccountRoleMerchant, AccountRoleFeeCollector:
		return true
	}
	return false
}

// Account holds one party's balance. Balances change only through ledger
// debit/credit; accounts are deactivated, never deleted.
type Account struct {
	Number         string          `json:"account_number"`
	HolderName     string          `json:"holder_name"`
	Role           AccountRole     `json:"role"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CredentialHash string          `json:"-"` // Argon2id, never expose
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CanDebit returns true if the account is active and holds at least amount.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Active && a.Balance.GreaterThanOrEqual(amount)
}

// ConsistencyReport compares an account balance with its entry trail.
type ConsistencyReport struct {
	AccountNumber   string          `json:"account_number"`
	Balance         decimal.Decimal `json:"balance"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	LastEntryID     string          `json:"last_entry_id,omitempty"`
	EntryCount      int64           `json:"entry_count"`
	Consistent      bool            `json:"consistent"`
}
