package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	compliancemodels "cashdesk/internal/compliance/models"
	ledgermodels "cashdesk/internal/ledger/models"
	"cashdesk/internal/limits"
	id "cashdesk/pkg/domain"
)

// Request is a validated deposit submission on behalf of an authenticated principal.
type Request struct {
	Principal      id.UserID
	FullName       string
	Amount         decimal.Decimal
	Channel        limits.Channel
	LocationID     string
	TellerID       string
	DocumentType   compliancemodels.DocumentType
	DocumentNumber string
	SourceOfFunds  string
	Notes          string
}

// Receipt is returned for a completed deposit.
type Receipt struct {
	TransactionID id.TransactionID
	Status        ledgermodels.Status
	Amount        decimal.Decimal
	NewBalance    decimal.Decimal
	Timestamp     time.Time
	ReceiptNumber string
}

// DepositView is a read of a single deposit by its owner.
type DepositView struct {
	TransactionID id.TransactionID
	Status        ledgermodels.Status
	Amount        decimal.Decimal
	Channel       limits.Channel
	LocationID    string
	Timestamp     time.Time
	ReceiptNumber string
}

// ReceiptNumber derives the customer-facing receipt number from a transaction id.
func ReceiptNumber(txID id.TransactionID) string {
	return fmt.Sprintf("CD%010d", int64(txID))
}

func NewReceipt(res *ledgermodels.CommitResult) *Receipt {
	tx := res.Transaction
	return &Receipt{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		NewBalance:    res.Account.Balance,
		Timestamp:     tx.Timestamp,
		ReceiptNumber: ReceiptNumber(tx.ID),
	}
}

func NewDepositView(tx *ledgermodels.Transaction) *DepositView {
	return &DepositView{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Channel:       tx.Channel,
		LocationID:    tx.LocationID,
		Timestamp:     tx.Timestamp,
		ReceiptNumber: ReceiptNumber(tx.ID),
	}
}

// RateLimitedError reports when the principal may try again.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds up to whole seconds, never below one.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	return max(secs, 1)
}
