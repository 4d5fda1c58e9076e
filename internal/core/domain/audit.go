package domain

import (
	"time"
)

// AuditOutcome is the result recorded with an audited action.
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "SUCCESS"
	AuditOutcomeFailed  AuditOutcome = "FAILED"
)

// Audited actions.
const (
	AuditActionSettle            = "SETTLEMENT"
	AuditActionUpdateFeeSchedule = "UPDATE_FEE_SCHEDULE"
	AuditActionOpenAccount       = "OPEN_ACCOUNT"
	AuditActionDeactivateAccount = "DEACTIVATE_ACCOUNT"
	AuditActionVerifyAccount     = "VERIFY_ACCOUNT"
	AuditActionAccessDenied      = "ACCESS_DENIED"
)

// AuditEntry records a single audited action. Entries are append-only.
type AuditEntry struct {
	ID        int64        `json:"id"`
	Actor     string       `json:"actor"`
	Action    string       `json:"action"`
	Outcome   AuditOutcome `json:"outcome"`
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// AuditFilter selects audit entries. Zero values match everything;
// From and To are inclusive.
type AuditFilter struct {
	Actor          string
	ActionContains string
	Outcome        AuditOutcome
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}

// Normalize clamps paging to 1-based pages of 1..100 entries.
func (f *AuditFilter) Normalize() {
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
}

// NormalizePage applies the default paging used by every list operation.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
