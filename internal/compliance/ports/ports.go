// Package ports defines the external collaborators of the compliance gate.
package ports

import (
	"context"

	"cashdesk/internal/compliance/models"
)

// IdentityVerifier checks an identity document with the KYC provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, req models.IdentityRequest) (*models.IdentityResult, error)
}

// WatchlistScreener screens a legal name against the AML watchlist.
type WatchlistScreener interface {
	Screen(ctx context.Context, fullName string) (*models.ScreeningResult, error)
}
