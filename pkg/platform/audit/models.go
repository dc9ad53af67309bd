package audit

import (
	"time"

	id "cashdesk/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: every
	// deposit outcome and account opening. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers abuse signals such as rate limiting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine reads.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Action    string
	// Decision is the outcome ("completed", "rejected", "denied").
	Decision string
	// Reason carries the precise rejection code. Never shown to clients.
	Reason        string
	AccountID     string
	TransactionID string
	Channel       string
	Amount        string
	LocationID    string
	TellerID      string
	// DocumentFingerprint is a keyed hash of the identity document used,
	// traceable without storing the document number.
	DocumentFingerprint string
	RequestID           string
	ClientIP            string
	DeviceClass         string
}

type AuditEvent string

const (
	EventAccountOpened      AuditEvent = "account_opened"
	EventDepositCompleted   AuditEvent = "deposit_completed"
	EventDepositRejected    AuditEvent = "deposit_rejected"
	EventDepositRateLimited AuditEvent = "deposit_rate_limited"
	EventDepositViewed      AuditEvent = "deposit_viewed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAccountOpened:      CategoryCompliance,
	EventDepositCompleted:   CategoryCompliance,
	EventDepositRejected:    CategoryCompliance,
	EventDepositRateLimited: CategorySecurity,
	EventDepositViewed:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
