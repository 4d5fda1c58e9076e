package postgres

import (
	"context"
	"testing"
	"time"

	"settlement-ledger/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAuditRepo(mock)
	e := &domain.AuditEntry{
		Actor:     "ACC-1001",
		Action:    domain.AuditActionSettle,
		Outcome:   domain.AuditOutcomeSuccess,
		Detail:    "ref=PAY-1",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectQuery("INSERT INTO audit_logs .+ RETURNING id").
		WithArgs(e.Actor, e.Action, e.Outcome, e.Detail, e.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, repo.Create(context.Background(), e))
	assert.Equal(t, int64(42), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_List_AllFilters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAuditRepo(mock)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	filter := domain.AuditFilter{
		Actor:          "ACC-1001",
		ActionContains: "settle",
		Outcome:        domain.AuditOutcomeFailed,
		From:           &from,
		To:             &to,
		Page:           2,
		PageSize:       10,
	}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs WHERE actor = \\$1 AND action ILIKE .+ AND outcome = \\$3 AND created_at >= \\$4 AND created_at <= \\$5").
		WithArgs("ACC-1001", "settle", domain.AuditOutcomeFailed, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery("SELECT id, actor, action, outcome, detail, created_at\\s+FROM audit_logs WHERE .+ ORDER BY id DESC LIMIT \\$6 OFFSET \\$7").
		WithArgs("ACC-1001", "settle", domain.AuditOutcomeFailed, from, to, 10, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "actor", "action", "outcome", "detail", "created_at"}).
			AddRow(int64(3), "ACC-1001", domain.AuditActionSettle, domain.AuditOutcomeFailed, "ref=PAY-3 kind=InsufficientFunds", from))

	entries, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ID)
	assert.Equal(t, domain.AuditOutcomeFailed, entries[0].Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_List_NoFilters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAuditRepo(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs\\s*$").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("FROM audit_logs\\s+ORDER BY id DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "actor", "action", "outcome", "detail", "created_at"}))

	entries, total, err := repo.List(context.Background(), domain.AuditFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
