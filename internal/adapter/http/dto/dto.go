package dto

import (
	"time"

	"settlement-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// SettleRequest is the request body for settling a payment.
// Amount is a decimal string and is parsed exactly.
type SettleRequest struct {
	PaymentRef      string `json:"payment_ref" binding:"required,max=64,safe_id"`
	PayerAccount    string `json:"payer_account" binding:"required,account_number"`
	PayerCredential string `json:"payer_credential" binding:"max=128" sanitize:"-"`
	Amount          string `json:"amount" binding:"max=32"`
}

// FeeQuoteRequest is the request body for a fee quote.
type FeeQuoteRequest struct {
	Amount string `json:"amount" binding:"required,decimal_str"`
}

// FeeQuoteResponse is a fee quote against the active schedule.
type FeeQuoteResponse struct {
	Amount  decimal.Decimal `json:"amount"`
	Fee     decimal.Decimal `json:"fee"`
	FeeMode domain.FeeMode  `json:"fee_mode"`
	Split   domain.Split    `json:"split"`
}

// VerifyAccountRequest is the request body for credential verification.
type VerifyAccountRequest struct {
	AccountNumber string `json:"account_number" binding:"required,account_number"`
	Credential    string `json:"credential" binding:"required,max=128" sanitize:"-"`
}

// VerifyAccountResponse is returned for a verified account.
type VerifyAccountResponse struct {
	AccountNumber string             `json:"account_number"`
	HolderName    string             `json:"holder_name"`
	Role          domain.AccountRole `json:"role"`
	Verified      bool               `json:"verified"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
}

// UpdateFeeScheduleRequest is the request body for replacing the fee schedule.
type UpdateFeeScheduleRequest struct {
	Rate       string `json:"rate" binding:"required,decimal_str"`
	MinimumFee string `json:"minimum_fee" binding:"required,decimal_str"`
	MaximumFee string `json:"maximum_fee" binding:"required,decimal_str"`
}

// OpenAccountRequest is the request body for provisioning an account.
type OpenAccountRequest struct {
	AccountNumber  string `json:"account_number" binding:"required,account_number"`
	HolderName     string `json:"holder_name" binding:"required,min=1,max=100"`
	Role           string `json:"role" binding:"required,oneof=PAYER MERCHANT FEE_COLLECTOR"`
	Credential     string `json:"credential,omitempty" binding:"max=128" sanitize:"-"`
	OpeningBalance string `json:"opening_balance,omitempty" binding:"omitempty,decimal_str"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	AccountNumber string             `json:"account_number"`
	HolderName    string             `json:"holder_name"`
	Role          domain.AccountRole `json:"role"`
	Balance       decimal.Decimal    `json:"balance"`
	Active        bool               `json:"active"`
	CreatedAt     string             `json:"created_at"`
}

// AuditLogQuery binds the audit log filter from query parameters.
type AuditLogQuery struct {
	Actor    string    `form:"actor" binding:"max=64"`
	Action   string    `form:"action" binding:"max=64"`
	Outcome  string    `form:"outcome" binding:"omitempty,oneof=SUCCESS FAILED"`
	From     time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int       `form:"page"`
	PageSize int       `form:"page_size"`
}

// Filter converts the query into a domain filter. Zero times are unbounded.
func (q AuditLogQuery) Filter() domain.AuditFilter {
	f := domain.AuditFilter{
		Actor:          q.Actor,
		ActionContains: q.Action,
		Outcome:        domain.AuditOutcome(q.Outcome),
		Page:           q.Page,
		PageSize:       q.PageSize,
	}
	if !q.From.IsZero() {
		from := q.From
		f.From = &from
	}
	if !q.To.IsZero() {
		to := q.To
		f.To = &to
	}
	return f
}

// NewAccountResponse converts a domain account. The credential hash is never included.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: a.Number,
		HolderName:    a.HolderName,
		Role:          a.Role,
		Balance:       a.Balance,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}
