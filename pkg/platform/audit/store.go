package audit

import (
	"context"

	id "cashdesk/pkg/domain"
)

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
