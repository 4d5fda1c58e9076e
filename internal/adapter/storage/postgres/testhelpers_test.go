package postgres

import (
	"context"
	"testing"

	"settlement-ledger/internal/core/ports"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

// beginTx starts a mocked transaction through the Transactor.
func beginTx(t *testing.T, mock pgxmock.PgxPoolIface) ports.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	return tx
}
