package clients

import (
	"context"
	"strings"
	"sync"

	"cashdesk/internal/compliance/models"
)

// DefaultWatchlist is the built-in list used by the simulated screener.
var DefaultWatchlist = []string{"John Doe", "Jane Smith"}

// SimulatedIdentity verifies every well-formed document except those
// explicitly marked as rejected. It stands in for the KYC provider in
// development and tests.
type SimulatedIdentity struct {
	mu       sync.RWMutex
	rejected map[string]models.IdentityStatus
}

func NewSimulatedIdentity() *SimulatedIdentity {
	return &SimulatedIdentity{rejected: make(map[string]models.IdentityStatus)}
}

// Reject makes documents with this number return status.
func (c *SimulatedIdentity) Reject(number string, status models.IdentityStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected[number] = status
}

func (c *SimulatedIdentity) Verify(ctx context.Context, req models.IdentityRequest) (*models.IdentityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	status, rejected := c.rejected[req.DocumentNumber]
	c.mu.RUnlock()
	if rejected {
		return &models.IdentityResult{Status: status}, nil
	}
	return &models.IdentityResult{
		Status:    models.IdentityVerified,
		Reference: models.Document{Type: req.DocumentType, Number: req.DocumentNumber}.Ref(),
	}, nil
}

// SimulatedWatchlist matches names case-insensitively after collapsing
// whitespace.
type SimulatedWatchlist struct {
	names map[string]string
}

// NewSimulatedWatchlist screens against DefaultWatchlist plus extra.
func NewSimulatedWatchlist(extra ...string) *SimulatedWatchlist {
	w := &SimulatedWatchlist{names: make(map[string]string)}
	for _, n := range append(append([]string{}, DefaultWatchlist...), extra...) {
		if key := normalizeName(n); key != "" {
			w.names[key] = n
		}
	}
	return w
}

func (w *SimulatedWatchlist) Screen(ctx context.Context, fullName string) (*models.ScreeningResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if entry, ok := w.names[normalizeName(fullName)]; ok {
		return &models.ScreeningResult{Flagged: true, MatchedEntry: entry}, nil
	}
	return &models.ScreeningResult{}, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
