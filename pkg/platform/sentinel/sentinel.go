package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors.
//
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity already exists
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing service or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
