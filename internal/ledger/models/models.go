package models

import (
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/limits"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
)

// KYCStatus records the outcome of the most recent identity check on an account.
type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusVerified KYCStatus = "verified"
	KYCStatusRejected KYCStatus = "rejected"
)

// Account is a principal's deposit account. Balance always equals the sum of
// the account's completed transactions.
type Account struct {
	ID           id.AccountID
	HolderID     id.UserID
	HolderName   string
	Balance      decimal.Decimal
	KYCStatus    KYCStatus
	LastKYCCheck *time.Time
	CreatedAt    time.Time
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Transaction is a single cash deposit.
type Transaction struct {
	ID                 id.TransactionID
	AccountID          id.AccountID
	Amount             decimal.Decimal
	Channel            limits.Channel
	Status             Status
	Timestamp          time.Time
	SourceOfFunds      string
	VerificationMethod string
	VerificationRef    string
	TellerID           string
	LocationID         string
	Notes              string
}

// Settle moves a pending transaction into a terminal state.
func (t *Transaction) Settle(to Status) error {
	if t.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "transaction already "+string(t.Status))
	}
	if !to.IsTerminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot settle into "+string(to))
	}
	t.Status = to
	return nil
}

// CommitResult is the durable outcome of a deposit commit.
type CommitResult struct {
	Transaction *Transaction
	Account     *Account
}
