package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	ledgermodels "cashdesk/internal/ledger/models"
	ledgerstore "cashdesk/internal/ledger/store"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	"cashdesk/pkg/platform/audit"
	request "cashdesk/pkg/platform/middleware/request"
	"cashdesk/pkg/platform/sentinel"
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service opens and reads the caller's own deposit account.
type Service struct {
	ledger  ledgerstore.Store
	auditor AuditPublisher
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func New(ledger ledgerstore.Store, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	svc := &Service{ledger: ledger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Open returns the principal's account, creating it on first call. The bool
// reports whether it was created.
func (s *Service) Open(ctx context.Context, principal id.UserID, holderName string) (*ledgermodels.Account, bool, error) {
	if principal.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "principal is required")
	}
	holderName = strings.TrimSpace(holderName)
	if holderName == "" {
		return nil, false, dErrors.New(dErrors.CodeValidation, "account holder name is required")
	}

	acct, created, err := s.ledger.OpenAccount(ctx, principal, holderName)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open account")
	}
	if created {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "account opened",
				"user_id", principal.String(),
				"account_id", acct.ID.String(),
				"request_id", request.GetRequestID(ctx),
			)
		}
		if s.auditor != nil {
			err := s.auditor.Emit(ctx, audit.Event{
				UserID:    principal,
				Action:    string(audit.EventAccountOpened),
				AccountID: acct.ID.String(),
				RequestID: request.GetRequestID(ctx),
			})
			if err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to emit audit event", "error", err, "action", string(audit.EventAccountOpened))
			}
		}
	}
	return acct, created, nil
}

func (s *Service) Get(ctx context.Context, principal id.UserID) (*ledgermodels.Account, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "principal is required")
	}
	acct, err := s.ledger.GetAccountByHolder(ctx, principal)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no account for principal")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return acct, nil
}
