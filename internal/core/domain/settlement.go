package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus is the state of one settlement attempt.
type SettlementStatus string

const (
	SettlementStatusReceived    SettlementStatus = "RECEIVED"
	SettlementStatusVerified    SettlementStatus = "VERIFIED"
	SettlementStatusFeeComputed SettlementStatus = "FEE_COMPUTED"
	SettlementStatusSettled     SettlementStatus = "SETTLED"
	SettlementStatusRejected    SettlementStatus = "REJECTED"
	SettlementStatusPartial     SettlementStatus = "PARTIAL"
)

// IsTerminal returns true for SETTLED, REJECTED and PARTIAL.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusSettled ||
		s == SettlementStatusRejected ||
		s == SettlementStatusPartial
}

// CanTransition reports whether the state machine allows s -> next.
func (s SettlementStatus) CanTransition(next SettlementStatus) bool {
	switch s {
	case SettlementStatusReceived:
		return next == SettlementStatusVerified || next == SettlementStatusRejected
	case SettlementStatusVerified:
		return next == SettlementStatusFeeComputed || next == SettlementStatusRejected
	case SettlementStatusFeeComputed:
		return next == SettlementStatusSettled ||
			next == SettlementStatusRejected ||
			next == SettlementStatusPartial
	}
	return false
}

// SettlementStep names one of the three ordered mutations.
type SettlementStep string

const (
	StepPayerDebit         SettlementStep = "PAYER_DEBIT"
	StepMerchantCredit     SettlementStep = "MERCHANT_CREDIT"
	StepFeeCollectorCredit SettlementStep = "FEE_COLLECTOR_CREDIT"
)

// Settlement is the persisted record of one payment-processing attempt, keyed by PaymentRef.
type Settlement struct {
	PaymentRef          string           `json:"payment_ref"`
	PayerAccount        string           `json:"payer_account"`
	MerchantAccount     string           `json:"merchant_account"`
	FeeCollectorAccount string           `json:"fee_collector_account"`
	Amount              decimal.Decimal  `json:"amount"`
	Fee                 decimal.Decimal  `json:"fee"`
	FeeMode             FeeMode          `json:"fee_mode"`
	Status              SettlementStatus `json:"status"`
	FailureKind         string           `json:"failure_kind,omitempty"`
	FailureDetail       string           `json:"failure_detail,omitempty"`
	PayerEntryID        *string          `json:"payer_entry_id,omitempty"`
	MerchantEntryID     *string          `json:"merchant_entry_id,omitempty"`
	FeeEntryID          *string          `json:"fee_entry_id,omitempty"`
	CompletedSteps      int              `json:"completed_steps"`
	CreatedAt           time.Time        `json:"created_at"`
	FinishedAt          *time.Time       `json:"finished_at,omitempty"`
}

// SettlementResult is returned for a settled payment.
type SettlementResult struct {
	PaymentRef          string          `json:"payment_ref"`
	PayerAccount        string          `json:"payer_account"`
	PayerEntryID        string          `json:"payer_entry_id"`
	MerchantEntryID     string          `json:"merchant_entry_id"`
	FeeEntryID          string          `json:"fee_entry_id"`
	Amount              decimal.Decimal `json:"amount"`
	Fee                 decimal.Decimal `json:"fee"`
	FeeMode             FeeMode         `json:"fee_mode"`
	PayerBalance        decimal.Decimal `json:"payer_balance"`
	MerchantBalance     decimal.Decimal `json:"merchant_balance"`
	FeeCollectorBalance decimal.Decimal `json:"fee_collector_balance"`
	SettledAt           time.Time       `json:"settled_at"`
	Replayed            bool            `json:"replayed,omitempty"`
}

// PartialFailure identifies what a partially applied settlement committed.
type PartialFailure struct {
	PaymentRef     string           `json:"payment_ref"`
	CompletedSteps []SettlementStep `json:"completed_steps"`
	EntryIDs       []string         `json:"entry_ids"`
	FailedStep     SettlementStep   `json:"failed_step"`
}
