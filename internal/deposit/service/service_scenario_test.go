package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"cashdesk/internal/compliance/clients"
	compliancemodels "cashdesk/internal/compliance/models"
	complianceservice "cashdesk/internal/compliance/service"
	"cashdesk/internal/deposit/metrics"
	"cashdesk/internal/deposit/models"
	"cashdesk/internal/deposit/service"
	ledgermodels "cashdesk/internal/ledger/models"
	ledgerstore "cashdesk/internal/ledger/store"
	"cashdesk/internal/limits"
	ratelimitservice "cashdesk/internal/ratelimit/service"
	"cashdesk/internal/ratelimit/store/window"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	"cashdesk/pkg/platform/audit"
	"cashdesk/pkg/platform/audit/publisher"
	auditmemory "cashdesk/pkg/platform/audit/store/memory"
	"cashdesk/pkg/requestcontext"
)

// DepositScenarioSuite wires the real in-process collaborators end to end.
type DepositScenarioSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	identity  *clients.SimulatedIdentity
	ledger    *ledgerstore.InMemoryStore
	auditLog  *auditmemory.InMemoryStore
	metrics   *metrics.Metrics
	svc       *service.Service
	principal id.UserID
	account   *ledgermodels.Account
}

func TestDepositScenarioSuite(t *testing.T) {
	suite.Run(t, new(DepositScenarioSuite))
}

func (s *DepositScenarioSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.build(5)
}

func (s *DepositScenarioSuite) build(maxRequests int) {
	limiter, err := ratelimitservice.New(window.NewInMemoryStore(),
		ratelimitservice.WithLimit(maxRequests, time.Minute))
	s.Require().NoError(err)

	s.identity = clients.NewSimulatedIdentity()
	gate, err := complianceservice.New(s.identity, clients.NewSimulatedWatchlist())
	s.Require().NoError(err)

	fingerprinter, err := audit.NewFingerprinter("scenario-fingerprint-key")
	s.Require().NoError(err)

	s.ledger = ledgerstore.NewInMemoryStore()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.svc, err = service.New(limiter, limits.New(), gate, s.ledger,
		service.WithAuditPublisher(publisher.NewPublisher(s.auditLog)),
		service.WithFingerprinter(fingerprinter),
		service.WithMetrics(s.metrics),
	)
	s.Require().NoError(err)

	s.principal = id.UserID(uuid.New())
	s.account, _, err = s.ledger.OpenAccount(s.ctx, s.principal, "Alice Example")
	s.Require().NoError(err)
}

func (s *DepositScenarioSuite) request(amount string, channel limits.Channel) models.Request {
	req := models.Request{
		Principal:      s.principal,
		FullName:       "Alice Example",
		Amount:         decimal.RequireFromString(amount),
		Channel:        channel,
		LocationID:     "LOC-1",
		DocumentType:   compliancemodels.DocumentPassport,
		DocumentNumber: "P1234567",
		SourceOfFunds:  "salary",
	}
	if channel == limits.ChannelBranch {
		req.TellerID = "T-9"
	}
	return req
}

func (s *DepositScenarioSuite) balance() decimal.Decimal {
	acct, err := s.ledger.GetAccount(s.ctx, s.account.ID)
	s.Require().NoError(err)
	return acct.Balance
}

func (s *DepositScenarioSuite) TestSuccessfulATMDeposit() {
	receipt, err := s.svc.Deposit(s.ctx, s.request("500.00", limits.ChannelATM))
	s.Require().NoError(err)

	s.Equal(id.TransactionID(1), receipt.TransactionID)
	s.Equal(ledgermodels.StatusCompleted, receipt.Status)
	s.Equal("500.00", id.FormatMoney(receipt.NewBalance))
	s.Equal("CD0000000001", receipt.ReceiptNumber)
	s.True(s.now.Equal(receipt.Timestamp))

	acct, err := s.ledger.GetAccount(s.ctx, s.account.ID)
	s.Require().NoError(err)
	s.Equal(ledgermodels.KYCStatusVerified, acct.KYCStatus)

	events := s.auditLog.ListByAction(s.ctx, audit.EventDepositCompleted)
	s.Require().Len(events, 1)
	s.Equal("1", events[0].TransactionID)
	s.Equal("500.00", events[0].Amount)
	s.NotEmpty(events[0].DocumentFingerprint)
	s.NotContains(events[0].DocumentFingerprint, "P1234567")
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Outcomes.WithLabelValues(metrics.OutcomeCompleted, "")))
}

func (s *DepositScenarioSuite) TestBranchCeilingExceeded() {
	_, err := s.svc.Deposit(s.ctx, s.request("60000.00", limits.ChannelBranch))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeChannelLimitExceeded))
	s.Contains(dErrors.MessageOf(err), "$50,000.00")
	s.True(s.balance().IsZero())

	events := s.auditLog.ListByAction(s.ctx, audit.EventDepositRejected)
	s.Require().Len(events, 1)
	s.Equal(string(dErrors.CodeChannelLimitExceeded), events[0].Reason)
}

func (s *DepositScenarioSuite) TestAggregateCap() {
	_, err := s.svc.Deposit(s.ctx, s.request("9500.00", limits.ChannelATM))
	s.Require().NoError(err)

	s.Run("rejects a deposit that would cross the cap", func() {
		_, err := s.svc.Deposit(s.ctx, s.request("600.00", limits.ChannelATM))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAggregateLimitExceeded))
		s.Equal("9500.00", id.FormatMoney(s.balance()))
	})

	s.Run("accepts a deposit landing exactly on the cap", func() {
		receipt, err := s.svc.Deposit(s.ctx, s.request("500.00", limits.ChannelATM))
		s.Require().NoError(err)
		s.Equal("10000.00", id.FormatMoney(receipt.NewBalance))
	})

	s.Run("window rolls after the span", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(24*time.Hour+time.Second))
		_, err := s.svc.Deposit(later, s.request("100.00", limits.ChannelATM))
		s.Require().NoError(err)
	})
}

func (s *DepositScenarioSuite) TestWatchlistMatch() {
	req := s.request("200.00", limits.ChannelATM)
	req.FullName = "john   DOE"

	_, err := s.svc.Deposit(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAMLFlagged))
	s.True(s.balance().IsZero())

	events := s.auditLog.ListByAction(s.ctx, audit.EventDepositRejected)
	s.Require().Len(events, 1)
	s.Equal(string(dErrors.CodeAMLFlagged), events[0].Reason)
	s.NotEmpty(events[0].DocumentFingerprint)
}

func (s *DepositScenarioSuite) TestIdentityRejected() {
	s.identity.Reject("P1234567", compliancemodels.IdentityRejected)

	_, err := s.svc.Deposit(s.ctx, s.request("200.00", limits.ChannelATM))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeKYCFailed))

	acct, err := s.ledger.GetAccount(s.ctx, s.account.ID)
	s.Require().NoError(err)
	s.True(acct.Balance.IsZero())
	s.Equal(ledgermodels.KYCStatusPending, acct.KYCStatus)
}

func (s *DepositScenarioSuite) TestRateLimit() {
	for i := 0; i < 5; i++ {
		_, err := s.svc.Deposit(s.ctx, s.request("10.00", limits.ChannelATM))
		s.Require().NoError(err)
	}

	_, err := s.svc.Deposit(s.ctx, s.request("10.00", limits.ChannelATM))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	var limited *models.RateLimitedError
	s.Require().True(errors.As(err, &limited))
	s.Equal(60, limited.RetryAfterSeconds())
	s.Equal("50.00", id.FormatMoney(s.balance()))
	s.Len(s.auditLog.ListByAction(s.ctx, audit.EventDepositRateLimited), 1)
}

func (s *DepositScenarioSuite) TestValidation() {
	s.Run("branch deposit needs a teller", func() {
		req := s.request("100.00", limits.ChannelBranch)
		req.TellerID = ""
		_, err := s.svc.Deposit(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("three fraction digits", func() {
		_, err := s.svc.Deposit(s.ctx, s.request("1.005", limits.ChannelATM))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing source of funds", func() {
		req := s.request("100.00", limits.ChannelATM)
		req.SourceOfFunds = " "
		_, err := s.svc.Deposit(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.True(s.balance().IsZero())
}

func (s *DepositScenarioSuite) TestMissingAccount() {
	req := s.request("100.00", limits.ChannelATM)
	req.Principal = id.UserID(uuid.New())

	_, err := s.svc.Deposit(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DepositScenarioSuite) TestGetDeposit() {
	receipt, err := s.svc.Deposit(s.ctx, s.request("250.00", limits.ChannelATM))
	s.Require().NoError(err)

	s.Run("owner reads the deposit", func() {
		view, err := s.svc.GetDeposit(s.ctx, s.principal, receipt.TransactionID)
		s.Require().NoError(err)
		s.Equal(limits.ChannelATM, view.Channel)
		s.Equal("LOC-1", view.LocationID)
		s.Equal(receipt.ReceiptNumber, view.ReceiptNumber)
		s.Len(s.auditLog.ListByAction(s.ctx, audit.EventDepositViewed), 1)
	})

	s.Run("another principal is forbidden", func() {
		_, err := s.svc.GetDeposit(s.ctx, id.UserID(uuid.New()), receipt.TransactionID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown transaction", func() {
		_, err := s.svc.GetDeposit(s.ctx, s.principal, 404)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DepositScenarioSuite) TestConcurrentDepositsRespectCap() {
	s.build(100)
	const workers = 6

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Deposit(s.ctx, s.request("4000.00", limits.ChannelATM))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			s.True(dErrors.HasCode(err, dErrors.CodeAggregateLimitExceeded), "unexpected error %v", err)
		}()
	}
	wg.Wait()

	s.Equal(2, succeeded)
	s.Equal("8000.00", id.FormatMoney(s.balance()))
}

func TestReceiptNumber(t *testing.T) {
	cases := map[id.TransactionID]string{
		1:          "CD0000000001",
		42:         "CD0000000042",
		9999999999: "CD9999999999",
	}
	for txID, want := range cases {
		if got := models.ReceiptNumber(txID); got != want {
			t.Errorf("ReceiptNumber(%d) = %q, want %q", txID, got, want)
		}
	}
}
