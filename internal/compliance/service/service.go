// Package service runs the two mandatory compliance checks in order:
// identity verification, then watchlist screening. Both fail closed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cashdesk/internal/compliance/metrics"
	"cashdesk/internal/compliance/models"
	"cashdesk/internal/compliance/ports"
	"cashdesk/internal/platform/tracing"
	dErrors "cashdesk/pkg/domain-errors"
	request "cashdesk/pkg/platform/middleware/request"
	"cashdesk/pkg/requestcontext"
)

const (
	DefaultKYCTimeout = 3 * time.Second
	DefaultAMLTimeout = 3 * time.Second
)

type Service struct {
	identity   ports.IdentityVerifier
	watchlist  ports.WatchlistScreener
	kycTimeout time.Duration
	amlTimeout time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

// WithTimeouts bounds each collaborator call. A timeout is a single failed
// attempt, never retried.
func WithTimeouts(kyc, aml time.Duration) Option {
	return func(s *Service) {
		if kyc > 0 {
			s.kycTimeout = kyc
		}
		if aml > 0 {
			s.amlTimeout = aml
		}
	}
}

func New(identity ports.IdentityVerifier, watchlist ports.WatchlistScreener, opts ...Option) (*Service, error) {
	if identity == nil {
		return nil, errors.New("identity verifier is required")
	}
	if watchlist == nil {
		return nil, errors.New("watchlist screener is required")
	}
	svc := &Service{
		identity:   identity,
		watchlist:  watchlist,
		kycTimeout: DefaultKYCTimeout,
		amlTimeout: DefaultAMLTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Verify clears subject to deposit with doc. Rejections carry CodeKYCFailed or
// CodeAMLFlagged; the precise reason is only logged. An unreachable watchlist
// is an internal error, so it can never read as a pass.
func (s *Service) Verify(ctx context.Context, subject models.Subject, doc models.Document) (*models.Clearance, error) {
	ctx, span := tracing.Start(ctx, "compliance.verify",
		attribute.String("document.type", string(doc.Type)),
	)
	var err error
	defer func() { tracing.End(span, err) }()

	if err = validate(subject, doc); err != nil {
		s.metrics.RecordOutcome(metrics.OutcomeInvalidDocs)
		return nil, err
	}

	if err = s.verifyIdentity(ctx, subject, doc); err != nil {
		return nil, err
	}
	if err = s.screen(ctx, subject); err != nil {
		return nil, err
	}

	s.metrics.RecordOutcome(metrics.OutcomeCleared)
	return &models.Clearance{
		VerificationMethod: string(doc.Type),
		VerificationRef:    doc.Ref(),
		CheckedAt:          requestcontext.Now(ctx),
	}, nil
}

func (s *Service) verifyIdentity(ctx context.Context, subject models.Subject, doc models.Document) error {
	kycCtx, cancel := context.WithTimeout(ctx, s.kycTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.identity.Verify(kycCtx, models.IdentityRequest{
		PrincipalID:    subject.PrincipalID,
		DocumentType:   doc.Type,
		DocumentNumber: doc.Number,
	})
	s.metrics.ObserveStep("kyc", time.Since(start))

	var reason string
	switch {
	case err != nil:
		reason = "identity provider error: " + err.Error()
	case res == nil:
		reason = "identity provider returned no result"
	case res.Status != models.IdentityVerified:
		reason = "identity status " + string(res.Status)
	default:
		return nil
	}

	s.metrics.RecordOutcome(metrics.OutcomeKYCFailed)
	s.logWarn(ctx, "identity verification failed", subject,
		"reason", reason,
		"document_type", string(doc.Type),
	)
	return dErrors.Wrap(err, dErrors.CodeKYCFailed, "identity verification failed")
}

func (s *Service) screen(ctx context.Context, subject models.Subject) error {
	amlCtx, cancel := context.WithTimeout(ctx, s.amlTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.watchlist.Screen(amlCtx, subject.FullName)
	s.metrics.ObserveStep("aml", time.Since(start))

	if err != nil || res == nil {
		s.metrics.RecordOutcome(metrics.OutcomeAMLError)
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "watchlist screening unavailable",
				"error", err,
				"user_id", subject.PrincipalID.String(),
				"request_id", request.GetRequestID(ctx),
			)
		}
		if err == nil {
			err = errors.New("watchlist provider returned no result")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "watchlist screening unavailable")
	}
	if res.Flagged {
		s.metrics.RecordOutcome(metrics.OutcomeAMLFlagged)
		s.logWarn(ctx, "watchlist match", subject, "matched_entry", res.MatchedEntry)
		return dErrors.New(dErrors.CodeAMLFlagged, "subject matched the watchlist")
	}
	return nil
}

func (s *Service) logWarn(ctx context.Context, msg string, subject models.Subject, attrs ...any) {
	if s.logger == nil {
		return
	}
	args := append([]any{
		"user_id", subject.PrincipalID.String(),
		"request_id", request.GetRequestID(ctx),
	}, attrs...)
	s.logger.WarnContext(ctx, msg, args...)
}

func validate(subject models.Subject, doc models.Document) error {
	if subject.PrincipalID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "principal is required")
	}
	if strings.TrimSpace(subject.FullName) == "" {
		return dErrors.New(dErrors.CodeValidation, "account holder name is required for screening")
	}
	if !doc.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "id_verification_type must be one of drivers_license, passport, state_id")
	}
	if strings.TrimSpace(doc.Number) == "" {
		return dErrors.New(dErrors.CodeValidation, "id_document_number is required")
	}
	return nil
}
