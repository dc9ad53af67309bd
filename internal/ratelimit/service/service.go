// Package service admits deposit attempts per principal using fixed windows.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cashdesk/internal/ratelimit/metrics"
	"cashdesk/internal/ratelimit/models"
	"cashdesk/internal/ratelimit/ports"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	request "cashdesk/pkg/platform/middleware/request"
)

const (
	DefaultMaxRequests = 5
	DefaultWindow      = time.Minute
)

// WindowStore is aliased so callers need not import ports.
type WindowStore = ports.WindowStore

type Service struct {
	store       WindowStore
	maxRequests int
	window      time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
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

// WithLimit overrides the default 5 requests per 60 seconds.
func WithLimit(maxRequests int, window time.Duration) Option {
	return func(s *Service) {
		s.maxRequests = maxRequests
		s.window = window
	}
}

func New(store WindowStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}
	svc := &Service{
		store:       store,
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.maxRequests <= 0 || svc.window <= 0 {
		return nil, errors.New("rate limit must be positive")
	}
	return svc, nil
}

// Admit consumes one slot in the principal's current window. Denied attempts
// still count and nothing is refunded. A store failure is returned as an
// internal error; the caller must not treat it as an admission.
func (s *Service) Admit(ctx context.Context, principal id.UserID, now time.Time) (*models.Decision, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "principal is required")
	}
	w := models.WindowFor(principal.String(), now, s.window)

	count, err := s.store.Increment(ctx, w)
	if err != nil {
		s.metrics.IncrementStoreErrors()
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "rate window store failed",
				"error", err,
				"user_id", principal.String(),
				"request_id", request.GetRequestID(ctx),
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	decision := &models.Decision{
		Allowed:   count <= s.maxRequests,
		Limit:     s.maxRequests,
		Remaining: max(s.maxRequests-count, 0),
		ResetAt:   w.End,
	}
	if !decision.Allowed {
		decision.RetryAfter = w.End.Sub(now)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "deposit rate limit exceeded",
				"user_id", principal.String(),
				"count", count,
				"limit", s.maxRequests,
				"reset_at", w.End,
				"request_id", request.GetRequestID(ctx),
			)
		}
	}
	s.metrics.RecordDecision(decision.Allowed)
	return decision, nil
}

// Prune removes expired windows from the store.
func (s *Service) Prune(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.Prune(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to prune rate windows")
	}
	s.metrics.AddPruned(n)
	return n, nil
}

// RunPruner calls Prune every interval until ctx is cancelled.
func (s *Service) RunPruner(ctx context.Context, interval time.Duration, clock func() time.Time) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Prune(ctx, clock())
			if err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "rate window prune failed", "error", err)
				continue
			}
			if n > 0 && s.logger != nil {
				s.logger.DebugContext(ctx, "pruned rate windows", "removed", n)
			}
		}
	}
}
