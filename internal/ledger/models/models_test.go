package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cashdesk/pkg/domain-errors"
)

func TestTransactionSettle(t *testing.T) {
	t.Run("pending to completed", func(t *testing.T) {
		tx := &Transaction{Status: StatusPending}
		require.NoError(t, tx.Settle(StatusCompleted))
		assert.Equal(t, StatusCompleted, tx.Status)
	})

	t.Run("pending to rejected", func(t *testing.T) {
		tx := &Transaction{Status: StatusPending}
		require.NoError(t, tx.Settle(StatusRejected))
		assert.Equal(t, StatusRejected, tx.Status)
	})

	t.Run("terminal states do not move", func(t *testing.T) {
		for _, from := range []Status{StatusCompleted, StatusRejected} {
			tx := &Transaction{Status: from}
			err := tx.Settle(StatusCompleted)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			assert.Equal(t, from, tx.Status)
		}
	})

	t.Run("cannot settle back to pending", func(t *testing.T) {
		tx := &Transaction{Status: StatusPending}
		err := tx.Settle(StatusPending)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.Equal(t, StatusPending, tx.Status)
	})
}
