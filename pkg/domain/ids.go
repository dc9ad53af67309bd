package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "cashdesk/pkg/domain-errors"
)

// UserID identifies an authenticated principal.
type UserID uuid.UUID

// AccountID identifies a ledger account.
type AccountID uuid.UUID

// TransactionID is the monotonic ledger transaction identifier assigned at commit.
type TransactionID int64

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) String() string { return uuid.UUID(id).String() }
func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id TransactionID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsValid reports whether the id could have been assigned by the ledger.
func (id TransactionID) IsValid() bool { return id > 0 }

// NewAccountID returns a fresh random account id.
func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

// ParseUserID parses a principal id at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

// ParseAccountID parses an account id at a trust boundary.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account_id")
	return AccountID(u), err
}

// ParseTransactionID parses a positive decimal transaction id.
func ParseTransactionID(s string) (TransactionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "transaction_id is required")
	}
	if len(s) > 19 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "transaction_id is too long")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "transaction_id must be a positive integer")
	}
	return TransactionID(n), nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	// uuid.Parse also accepts urn and braced forms up to 45 bytes.
	if len(s) > 45 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
