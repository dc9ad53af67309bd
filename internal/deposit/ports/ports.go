package ports

import (
	"context"
	"time"

	compliancemodels "cashdesk/internal/compliance/models"
	ledgerstore "cashdesk/internal/ledger/store"
	ratelimitmodels "cashdesk/internal/ratelimit/models"
	id "cashdesk/pkg/domain"
	"cashdesk/pkg/platform/audit"
)

// RateLimiter admits or denies a deposit attempt for a principal.
type RateLimiter interface {
	Admit(ctx context.Context, principal id.UserID, now time.Time) (*ratelimitmodels.Decision, error)
}

// ComplianceGate clears a subject to deposit with an identity document.
type ComplianceGate interface {
	Verify(ctx context.Context, subject compliancemodels.Subject, doc compliancemodels.Document) (*compliancemodels.Clearance, error)
}

// Ledger is the durable account and transaction store.
type Ledger = ledgerstore.Store

// AuditPublisher records deposit outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
