// Package service runs a deposit through the rate limiter, the deposit limits,
// the compliance gate, and the ledger, in that order. Any failure leaves the
// ledger untouched.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	compliancemodels "cashdesk/internal/compliance/models"
	"cashdesk/internal/deposit/metrics"
	"cashdesk/internal/deposit/models"
	"cashdesk/internal/deposit/ports"
	ledgermodels "cashdesk/internal/ledger/models"
	ledgerstore "cashdesk/internal/ledger/store"
	"cashdesk/internal/limits"
	"cashdesk/internal/platform/tracing"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	"cashdesk/pkg/platform/audit"
	request "cashdesk/pkg/platform/middleware/request"
	"cashdesk/pkg/platform/sentinel"
	"cashdesk/pkg/requestcontext"
)

const DefaultCommitTimeout = 5 * time.Second

type Service struct {
	limiter       ports.RateLimiter
	policy        *limits.Policy
	compliance    ports.ComplianceGate
	ledger        ports.Ledger
	auditor       ports.AuditPublisher
	fingerprinter *audit.Fingerprinter
	commitTimeout time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

// WithFingerprinter enables document fingerprints on audit events.
func WithFingerprinter(f *audit.Fingerprinter) Option {
	return func(s *Service) {
		s.fingerprinter = f
	}
}

func WithCommitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.commitTimeout = d
		}
	}
}

func New(limiter ports.RateLimiter, policy *limits.Policy, compliance ports.ComplianceGate, ledger ports.Ledger, opts ...Option) (*Service, error) {
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if policy == nil {
		return nil, errors.New("deposit limit policy is required")
	}
	if compliance == nil {
		return nil, errors.New("compliance gate is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	svc := &Service{
		limiter:       limiter,
		policy:        policy,
		compliance:    compliance,
		ledger:        ledger,
		commitTimeout: DefaultCommitTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Deposit processes one cash deposit. It returns a receipt only after the
// transaction and the balance change are durable.
func (s *Service) Deposit(ctx context.Context, req models.Request) (receipt *models.Receipt, err error) {
	ctx, span := tracing.Start(ctx, "deposit.process",
		attribute.String("deposit.channel", string(req.Channel)),
		attribute.String("user.id", req.Principal.String()),
	)
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration(time.Since(start))
		tracing.End(span, err)
	}()

	if err = validateRequest(req); err != nil {
		s.recordRejection(ctx, req, nil, err)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err = s.admit(ctx, req, now); err != nil {
		return nil, err
	}

	acct, err := s.ledger.GetAccountByHolder(ctx, req.Principal)
	if err != nil {
		err = translateStoreError(err, "no account for principal", "failed to load account")
		s.recordRejection(ctx, req, nil, err)
		return nil, err
	}

	since := s.policy.AggregateSince(now)
	prior, err := s.ledger.SumDeposits(ctx, acct.ID, since)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to read recent deposits")
		s.recordRejection(ctx, req, acct, err)
		return nil, err
	}
	if err = s.policy.Check(req.Channel, req.Amount, prior); err != nil {
		s.recordRejection(ctx, req, acct, err)
		return nil, err
	}

	clearance, err := s.compliance.Verify(ctx,
		compliancemodels.Subject{PrincipalID: req.Principal, FullName: req.FullName},
		compliancemodels.Document{Type: req.DocumentType, Number: req.DocumentNumber},
	)
	if err != nil {
		s.recordRejection(ctx, req, acct, err)
		return nil, err
	}

	res, err := s.commit(ctx, req, acct.ID, clearance, now, since)
	if err != nil {
		s.recordRejection(ctx, req, acct, err)
		return nil, err
	}

	s.recordCompletion(ctx, req, res)
	return models.NewReceipt(res), nil
}

// GetDeposit returns a deposit owned by principal.
func (s *Service) GetDeposit(ctx context.Context, principal id.UserID, txID id.TransactionID) (*models.DepositView, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "principal is required")
	}
	tx, err := s.ledger.GetTransaction(ctx, txID)
	if err != nil {
		return nil, translateStoreError(err, "transaction not found", "failed to load transaction")
	}
	acct, err := s.ledger.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return nil, translateStoreError(err, "transaction not found", "failed to load account")
	}
	if acct.HolderID != principal {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "deposit read by non-owner",
				"user_id", principal.String(),
				"transaction_id", txID.String(),
				"request_id", request.GetRequestID(ctx),
			)
		}
		return nil, dErrors.New(dErrors.CodeForbidden, "transaction belongs to another account")
	}

	s.emit(ctx, audit.Event{
		UserID:        principal,
		Action:        string(audit.EventDepositViewed),
		AccountID:     acct.ID.String(),
		TransactionID: txID.String(),
	})
	return models.NewDepositView(tx), nil
}

func (s *Service) admit(ctx context.Context, req models.Request, now time.Time) error {
	decision, err := s.limiter.Admit(ctx, req.Principal, now)
	if err != nil {
		s.metrics.RecordOutcome(metrics.OutcomeError, string(dErrors.CodeOf(err)))
		return err
	}
	if decision.Allowed {
		return nil
	}

	s.metrics.RecordOutcome(metrics.OutcomeRateLimited, string(dErrors.CodeRateLimited))
	s.emit(ctx, audit.Event{
		UserID:   req.Principal,
		Action:   string(audit.EventDepositRateLimited),
		Decision: "denied",
		Reason:   string(dErrors.CodeRateLimited),
		Channel:  string(req.Channel),
		Amount:   id.FormatMoney(req.Amount),
	})
	return dErrors.Wrap(&models.RateLimitedError{RetryAfter: decision.RetryAfter},
		dErrors.CodeRateLimited, "too many deposit attempts, try again later")
}

// commit re-runs the aggregate check inside the ledger's commit scope so
// concurrent deposits for the same account cannot jointly exceed the cap.
func (s *Service) commit(ctx context.Context, req models.Request, accountID id.AccountID, clearance *compliancemodels.Clearance, now, since time.Time) (*ledgermodels.CommitResult, error) {
	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	res, err := s.ledger.CommitDeposit(commitCtx, ledgerstore.DepositCommit{
		AccountID:          accountID,
		Amount:             req.Amount,
		Channel:            req.Channel,
		Timestamp:          now,
		SourceOfFunds:      req.SourceOfFunds,
		VerificationMethod: clearance.VerificationMethod,
		VerificationRef:    clearance.VerificationRef,
		TellerID:           req.TellerID,
		LocationID:         req.LocationID,
		Notes:              req.Notes,
		Since:              since,
		Guard: func(prior decimal.Decimal) error {
			return s.policy.CheckAggregate(req.Amount, prior)
		},
	})
	if err == nil {
		return res, nil
	}
	if dErrors.Is(err) {
		return nil, err
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "deposit commit failed",
			"error", err,
			"user_id", req.Principal.String(),
			"account_id", accountID.String(),
			"request_id", request.GetRequestID(ctx),
		)
	}
	return nil, translateStoreError(err, "account not found", "deposit could not be committed")
}

func (s *Service) recordCompletion(ctx context.Context, req models.Request, res *ledgermodels.CommitResult) {
	tx := res.Transaction
	s.metrics.RecordOutcome(metrics.OutcomeCompleted, "")
	s.metrics.AddDeposited(string(tx.Channel), tx.Amount)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "deposit completed",
			"user_id", req.Principal.String(),
			"account_id", tx.AccountID.String(),
			"transaction_id", tx.ID.String(),
			"channel", string(tx.Channel),
			"amount", id.FormatMoney(tx.Amount),
			"request_id", request.GetRequestID(ctx),
		)
	}
	s.emit(ctx, audit.Event{
		UserID:              req.Principal,
		Action:              string(audit.EventDepositCompleted),
		Decision:            string(ledgermodels.StatusCompleted),
		AccountID:           tx.AccountID.String(),
		TransactionID:       tx.ID.String(),
		Channel:             string(tx.Channel),
		Amount:              id.FormatMoney(tx.Amount),
		LocationID:          tx.LocationID,
		TellerID:            tx.TellerID,
		DocumentFingerprint: s.fingerprinter.Fingerprint(string(req.DocumentType), req.DocumentNumber),
	})
}

// recordRejection logs the precise reason. Clients only ever see the
// translated error.
func (s *Service) recordRejection(ctx context.Context, req models.Request, acct *ledgermodels.Account, err error) {
	code := dErrors.CodeOf(err)
	outcome := metrics.OutcomeRejected
	if code == dErrors.CodeInternal {
		outcome = metrics.OutcomeError
	}
	s.metrics.RecordOutcome(outcome, string(code))

	if s.logger != nil {
		s.logger.WarnContext(ctx, "deposit rejected",
			"reason", string(code),
			"detail", err.Error(),
			"user_id", req.Principal.String(),
			"channel", string(req.Channel),
			"request_id", request.GetRequestID(ctx),
		)
	}

	event := audit.Event{
		UserID:     req.Principal,
		Action:     string(audit.EventDepositRejected),
		Decision:   string(ledgermodels.StatusRejected),
		Reason:     string(code),
		Channel:    string(req.Channel),
		LocationID: req.LocationID,
		TellerID:   req.TellerID,
	}
	if req.Amount.IsPositive() {
		event.Amount = id.FormatMoney(req.Amount)
	}
	if acct != nil {
		event.AccountID = acct.ID.String()
	}
	if req.DocumentType.IsValid() && strings.TrimSpace(req.DocumentNumber) != "" {
		event.DocumentFingerprint = s.fingerprinter.Fingerprint(string(req.DocumentType), req.DocumentNumber)
	}
	s.emit(ctx, event)
}

// emit never fails the caller; a lost audit event is logged.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = request.GetRequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.DeviceClass = requestcontext.DeviceClass(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
}

func validateRequest(req models.Request) error {
	if req.Principal.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "principal is required")
	}
	if _, err := id.ParseAmount(req.Amount); err != nil {
		return err
	}
	if !req.Channel.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "channel must be ATM or BRANCH")
	}
	if req.Channel == limits.ChannelBranch && strings.TrimSpace(req.TellerID) == "" {
		return dErrors.New(dErrors.CodeValidation, "teller_id is required for BRANCH deposits")
	}
	if strings.TrimSpace(req.SourceOfFunds) == "" {
		return dErrors.New(dErrors.CodeValidation, "source_of_funds is required")
	}
	return nil
}

func translateStoreError(err error, notFound, internal string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internal)
}
