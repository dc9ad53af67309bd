package models

import (
	"strings"
	"time"

	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
)

// DocumentType is the kind of identity document presented with a deposit.
type DocumentType string

const (
	DocumentDriversLicense DocumentType = "drivers_license"
	DocumentPassport       DocumentType = "passport"
	DocumentStateID        DocumentType = "state_id"
)

func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.TrimSpace(s))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "id_verification_type must be one of drivers_license, passport, state_id")
	}
	return t, nil
}

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentDriversLicense, DocumentPassport, DocumentStateID:
		return true
	}
	return false
}

// Subject is the principal being screened.
type Subject struct {
	PrincipalID id.UserID
	FullName    string
}

// Document is the identity document presented for this deposit.
type Document struct {
	Type   DocumentType
	Number string
}

// Ref is the persisted verification reference "<type>:<number>".
func (d Document) Ref() string {
	return string(d.Type) + ":" + d.Number
}

// Clearance is the proof that both gates passed.
type Clearance struct {
	VerificationMethod string
	VerificationRef    string
	CheckedAt          time.Time
}

// IdentityStatus is the KYC provider's verdict. Only IdentityVerified passes.
type IdentityStatus string

const (
	IdentityVerified   IdentityStatus = "verified"
	IdentityUnverified IdentityStatus = "unverified"
	IdentityRejected   IdentityStatus = "rejected"
)

type IdentityRequest struct {
	PrincipalID    id.UserID
	DocumentType   DocumentType
	DocumentNumber string
}

type IdentityResult struct {
	Status    IdentityStatus
	Reference string
}

type ScreeningResult struct {
	Flagged bool
	// MatchedEntry is kept for server logs only.
	MatchedEntry string
}
