package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cashdesk/internal/ledger/models"
	"cashdesk/internal/limits"
	id "cashdesk/pkg/domain"
	"cashdesk/pkg/platform/sentinel"
	platformtx "cashdesk/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const accountColumns = `id, holder_id, holder_name, balance::text, kyc_status, last_kyc_check, created_at`

const transactionColumns = `id, account_id, amount::text, channel, status, created_at,
	source_of_funds, verification_method, verification_ref, teller_id, location_id, notes`

// PostgresStore persists the ledger in Postgres. Commits lock the account row
// with SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the ledger schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) OpenAccount(ctx context.Context, holder id.UserID, holderName string) (*models.Account, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, holder_id, holder_name, kyc_status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (holder_id) DO NOTHING`,
		uuid.UUID(id.NewAccountID()), uuid.UUID(holder), holderName,
		string(models.KYCStatusPending), normalizeTime(time.Now()))
	if err != nil {
		return nil, false, fmt.Errorf("open account: %w", err)
	}
	acct, err := s.GetAccountByHolder(ctx, holder)
	if err != nil {
		return nil, false, err
	}
	return acct, tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	acct, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountID, err)
	}
	return acct, nil
}

func (s *PostgresStore) GetAccountByHolder(ctx context.Context, holder id.UserID) (*models.Account, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE holder_id = $1`, uuid.UUID(holder))
	acct, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("account for holder %s: %w", holder, err)
	}
	return acct, nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, int64(txID))
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txID, err)
	}
	return tx, nil
}

func (s *PostgresStore) SumDeposits(ctx context.Context, accountID id.AccountID, since time.Time) (decimal.Decimal, error) {
	return sumDeposits(ctx, s.q(ctx), accountID, since)
}

// CommitDeposit runs the aggregate read, the guard, the insert, and the
// balance update in one transaction holding the account row lock.
func (s *PostgresStore) CommitDeposit(ctx context.Context, commit DepositCommit) (*models.CommitResult, error) {
	var result *models.CommitResult
	err := platformtx.Run(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, uuid.UUID(commit.AccountID)).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("account %s: %w", commit.AccountID, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		prior, err := s.SumDeposits(ctx, commit.AccountID, commit.Since)
		if err != nil {
			return err
		}
		if commit.Guard != nil {
			if err := commit.Guard(prior); err != nil {
				return err
			}
		}

		ts := normalizeTime(commit.Timestamp)
		row := tx.QueryRow(ctx, `
			INSERT INTO transactions (account_id, amount, channel, status, created_at,
				source_of_funds, verification_method, verification_ref, teller_id, location_id, notes)
			VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+transactionColumns,
			uuid.UUID(commit.AccountID), commit.Amount.StringFixed(2), string(commit.Channel), string(models.StatusCompleted), ts,
			commit.SourceOfFunds, commit.VerificationMethod, commit.VerificationRef,
			commit.TellerID, commit.LocationID, commit.Notes)
		created, err := scanTransaction(row)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		row = tx.QueryRow(ctx, `
			UPDATE accounts
			SET balance = balance + $2::numeric, kyc_status = $3, last_kyc_check = $4
			WHERE id = $1
			RETURNING `+accountColumns,
			uuid.UUID(commit.AccountID), commit.Amount.StringFixed(2), string(models.KYCStatusVerified), ts)
		acct, err := scanAccount(row)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		result = &models.CommitResult{Transaction: created, Account: acct}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// q returns the transaction carried by ctx, or the pool.
func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.pool
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumDeposits(ctx context.Context, q querier, accountID id.AccountID, since time.Time) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM transactions
		WHERE account_id = $1 AND status = 'completed' AND created_at >= $2`,
		uuid.UUID(accountID), normalizeTime(since)).Scan(&raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum deposits: %w", err)
	}
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse deposit sum: %w", err)
	}
	return total, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		acctID, holderID uuid.UUID
		balance, status  string
		lastCheck        *time.Time
		acct             models.Account
	)
	err := row.Scan(&acctID, &holderID, &acct.HolderName, &balance, &status, &lastCheck, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acct.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	acct.ID = id.AccountID(acctID)
	acct.HolderID = id.UserID(holderID)
	acct.KYCStatus = models.KYCStatus(status)
	acct.CreatedAt = acct.CreatedAt.UTC()
	if lastCheck != nil {
		t := lastCheck.UTC()
		acct.LastKYCCheck = &t
	}
	return &acct, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		txID                    int64
		accountID               uuid.UUID
		amount, channel, status string
		tx                      models.Transaction
	)
	err := row.Scan(&txID, &accountID, &amount, &channel, &status, &tx.Timestamp,
		&tx.SourceOfFunds, &tx.VerificationMethod, &tx.VerificationRef, &tx.TellerID, &tx.LocationID, &tx.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	tx.ID = id.TransactionID(txID)
	tx.AccountID = id.AccountID(accountID)
	tx.Channel = limits.Channel(channel)
	tx.Status = models.Status(status)
	tx.Timestamp = tx.Timestamp.UTC()
	return &tx, nil
}
