package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/ledger/models"
	id "cashdesk/pkg/domain"
	"cashdesk/pkg/platform/sentinel"
)

type accountEntry struct {
	mu      sync.Mutex
	account models.Account
	txs     []*models.Transaction
}

// InMemoryStore keeps the ledger in process memory. Commits to one account are
// serialized by that account's mutex; different accounts never contend.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*accountEntry
	byHolder map[id.UserID]id.AccountID
	txs      map[id.TransactionID]*models.Transaction
	nextID   atomic.Int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[id.AccountID]*accountEntry),
		byHolder: make(map[id.UserID]id.AccountID),
		txs:      make(map[id.TransactionID]*models.Transaction),
	}
}

// OpenAccount returns the holder's existing account or creates one. The store
// lock is never held while taking an account lock.
func (s *InMemoryStore) OpenAccount(ctx context.Context, holder id.UserID, holderName string) (*models.Account, bool, error) {
	s.mu.Lock()
	if accountID, ok := s.byHolder[holder]; ok {
		s.mu.Unlock()
		acct, err := s.GetAccount(ctx, accountID)
		return acct, false, err
	}
	defer s.mu.Unlock()

	entry := &accountEntry{account: models.Account{
		ID:         id.NewAccountID(),
		HolderID:   holder,
		HolderName: holderName,
		Balance:    decimal.Zero,
		KYCStatus:  models.KYCStatusPending,
		CreatedAt:  normalizeTime(time.Now()),
	}}
	s.accounts[entry.account.ID] = entry
	s.byHolder[holder] = entry.account.ID
	acct := entry.account
	return &acct, true, nil
}

func (s *InMemoryStore) GetAccount(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	entry, err := s.entry(accountID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	acct := entry.account
	return &acct, nil
}

func (s *InMemoryStore) GetAccountByHolder(ctx context.Context, holder id.UserID) (*models.Account, error) {
	s.mu.RLock()
	accountID, ok := s.byHolder[holder]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account for holder %s: %w", holder, sentinel.ErrNotFound)
	}
	return s.GetAccount(ctx, accountID)
}

func (s *InMemoryStore) GetTransaction(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[txID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txID, sentinel.ErrNotFound)
	}
	out := *tx
	return &out, nil
}

func (s *InMemoryStore) SumDeposits(_ context.Context, accountID id.AccountID, since time.Time) (decimal.Decimal, error) {
	entry, err := s.entry(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.sumSince(since), nil
}

// CommitDeposit holds the account mutex across the aggregate read, the guard,
// and the write.
func (s *InMemoryStore) CommitDeposit(ctx context.Context, commit DepositCommit) (*models.CommitResult, error) {
	entry, err := s.entry(commit.AccountID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prior := entry.sumSince(commit.Since)
	if commit.Guard != nil {
		if err := commit.Guard(prior); err != nil {
			return nil, err
		}
	}

	ts := normalizeTime(commit.Timestamp)
	tx := &models.Transaction{
		ID:                 id.TransactionID(s.nextID.Add(1)),
		AccountID:          commit.AccountID,
		Amount:             commit.Amount,
		Channel:            commit.Channel,
		Status:             models.StatusPending,
		Timestamp:          ts,
		SourceOfFunds:      commit.SourceOfFunds,
		VerificationMethod: commit.VerificationMethod,
		VerificationRef:    commit.VerificationRef,
		TellerID:           commit.TellerID,
		LocationID:         commit.LocationID,
		Notes:              commit.Notes,
	}
	if err := tx.Settle(models.StatusCompleted); err != nil {
		return nil, err
	}

	entry.txs = append(entry.txs, tx)
	entry.account.Balance = entry.account.Balance.Add(commit.Amount)
	entry.account.KYCStatus = models.KYCStatusVerified
	checked := ts
	entry.account.LastKYCCheck = &checked

	s.mu.Lock()
	s.txs[tx.ID] = tx
	s.mu.Unlock()

	txOut := *tx
	acctOut := entry.account
	return &models.CommitResult{Transaction: &txOut, Account: &acctOut}, nil
}

func (s *InMemoryStore) entry(accountID id.AccountID) (*accountEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	return entry, nil
}

func (e *accountEntry) sumSince(since time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range e.txs {
		if tx.Status == models.StatusCompleted && !tx.Timestamp.Before(since) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}
