//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"cashdesk/internal/ledger/models"
	"cashdesk/internal/ledger/store"
	"cashdesk/internal/limits"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	"cashdesk/pkg/platform/sentinel"
	"cashdesk/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "transactions", "accounts")
	s.Require().NoError(err)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) openAccount() *models.Account {
	acct, created, err := s.store.OpenAccount(context.Background(), id.UserID(uuid.New()), "Grace Hopper")
	s.Require().NoError(err)
	s.Require().True(created)
	return acct
}

func (s *PostgresStoreSuite) deposit(accountID id.AccountID, amount string, guard func(decimal.Decimal) error) (*models.CommitResult, error) {
	return s.store.CommitDeposit(context.Background(), store.DepositCommit{
		AccountID:          accountID,
		Amount:             decimal.RequireFromString(amount),
		Channel:            limits.ChannelBranch,
		Timestamp:          s.now,
		SourceOfFunds:      "business revenue",
		VerificationMethod: "drivers_license",
		VerificationRef:    "drivers_license:D1234567",
		TellerID:           "T-17",
		LocationID:         "BR-001",
		Since:              s.now.Add(-24 * time.Hour),
		Guard:              guard,
	})
}

func (s *PostgresStoreSuite) TestOpenAccount() {
	ctx := context.Background()
	holder := id.UserID(uuid.New())

	first, created, err := s.store.OpenAccount(ctx, holder, "Grace Hopper")
	s.Require().NoError(err)
	s.True(created)
	s.Equal(models.KYCStatusPending, first.KYCStatus)
	s.True(first.Balance.IsZero())

	second, created, err := s.store.OpenAccount(ctx, holder, "Grace Hopper")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.GetAccount(ctx, id.NewAccountID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.GetTransaction(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.deposit(id.NewAccountID(), "1.00", nil)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCommitDeposit() {
	acct := s.openAccount()

	res, err := s.deposit(acct.ID, "1234.56", nil)
	s.Require().NoError(err)
	s.True(res.Transaction.ID.IsValid())
	s.Equal(models.StatusCompleted, res.Transaction.Status)
	s.True(res.Account.Balance.Equal(decimal.RequireFromString("1234.56")))
	s.Equal(models.KYCStatusVerified, res.Account.KYCStatus)
	s.Require().NotNil(res.Account.LastKYCCheck)
	s.True(s.now.Equal(*res.Account.LastKYCCheck))

	stored, err := s.store.GetTransaction(context.Background(), res.Transaction.ID)
	s.Require().NoError(err)
	s.Equal(limits.ChannelBranch, stored.Channel)
	s.Equal("T-17", stored.TellerID)
	s.Equal("BR-001", stored.LocationID)
	s.True(s.now.Equal(stored.Timestamp))
}

func (s *PostgresStoreSuite) TestGuardRejectionRollsBack() {
	acct := s.openAccount()
	rejection := dErrors.New(dErrors.CodeAggregateLimitExceeded, "over")

	_, err := s.deposit(acct.ID, "10.00", func(decimal.Decimal) error { return rejection })
	s.ErrorIs(err, rejection)

	after, err := s.store.GetAccount(context.Background(), acct.ID)
	s.Require().NoError(err)
	s.True(after.Balance.IsZero())
	sum, err := s.store.SumDeposits(context.Background(), acct.ID, time.Time{})
	s.Require().NoError(err)
	s.True(sum.IsZero())
}

func (s *PostgresStoreSuite) TestConcurrentAggregateRace() {
	acct := s.openAccount()
	policy := limits.New()
	const workers = 10

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			amount := decimal.RequireFromString("2500.00")
			_, err := s.deposit(acct.ID, "2500.00", func(prior decimal.Decimal) error {
				return policy.CheckAggregate(amount, prior)
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(4), succeeded.Load())
	after, err := s.store.GetAccount(context.Background(), acct.ID)
	s.Require().NoError(err)
	s.True(after.Balance.Equal(decimal.RequireFromString("10000.00")), "got %s", after.Balance)

	sum, err := s.store.SumDeposits(context.Background(), acct.ID, s.now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.True(sum.Equal(after.Balance))
}
