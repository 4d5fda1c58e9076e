package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.jetify.com/typeid/v2"
)

// EntryIDPrefix is the TypeID prefix of transaction entry ids.
const EntryIDPrefix = "txe"

// EntryDirection is the side of the balance an entry moved.
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "DEBIT"
	EntryDirectionCredit EntryDirection = "CREDIT"
)

// EntryStatus represents the lifecycle state of an entry.
type EntryStatus string

const (
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusFailed    EntryStatus = "FAILED"
	EntryStatusReversed  EntryStatus = "REVERSED"
)

// TransactionEntry is an immutable record of one balance mutation.
// RunningBalance is the account balance immediately after the entry.
type TransactionEntry struct {
	ID             string          `json:"id"`
	AccountNumber  string          `json:"account_number"`
	PaymentRef     *string         `json:"payment_ref,omitempty"`
	Direction      EntryDirection  `json:"direction"`
	Amount         decimal.Decimal `json:"amount"` // Signed: negative for debits
	RunningBalance decimal.Decimal `json:"running_balance"`
	Description    string          `json:"description"`
	Status         EntryStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsTerminal returns true if the entry is in a final state.
func (e *TransactionEntry) IsTerminal() bool {
	return e.Status == EntryStatusCompleted ||
		e.Status == EntryStatusFailed ||
		e.Status == EntryStatusReversed
}

// NewEntryID returns a K-sortable id such as "txe_01h455vb4pex5vsknk084sn02q".
func NewEntryID() string {
	tid, err := typeid.Generate(EntryIDPrefix)
	if err != nil {
		panic(fmt.Sprintf("domain: invalid entry id prefix: %v", err))
	}
	return tid.String()
}

// ValidEntryID reports whether s parses as a transaction entry id.
func ValidEntryID(s string) bool {
	tid, err := typeid.Parse(s)
	return err == nil && tid.Prefix() == EntryIDPrefix
}
