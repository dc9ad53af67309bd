package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/ledger/models"
	"cashdesk/internal/limits"
	id "cashdesk/pkg/domain"
)

// Store is the durable ledger. Implementations serialize CommitDeposit per
// account so the aggregate check and the write observe the same state.
type Store interface {
	OpenAccount(ctx context.Context, holder id.UserID, holderName string) (*models.Account, bool, error)
	GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	GetAccountByHolder(ctx context.Context, holder id.UserID) (*models.Account, error)
	GetTransaction(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	SumDeposits(ctx context.Context, accountID id.AccountID, since time.Time) (decimal.Decimal, error)
	CommitDeposit(ctx context.Context, commit DepositCommit) (*models.CommitResult, error)
}

// DepositCommit carries everything persisted by a single deposit.
//
// Guard runs inside the commit scope with the sum of completed deposits at or
// after Since. A non-nil error from Guard aborts the commit with nothing written.
type DepositCommit struct {
	AccountID          id.AccountID
	Amount             decimal.Decimal
	Channel            limits.Channel
	Timestamp          time.Time
	SourceOfFunds      string
	VerificationMethod string
	VerificationRef    string
	TellerID           string
	LocationID         string
	Notes              string

	Since time.Time
	Guard func(prior decimal.Decimal) error
}

// normalizeTime drops precision Postgres cannot store so both backends agree.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
