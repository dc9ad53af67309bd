package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	compliancemodels "cashdesk/internal/compliance/models"
	"cashdesk/internal/limits"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
)

const (
	maxIdentifierLen = 64
	maxNotesLen      = 500
)

// DepositRequest is the HTTP request body for POST /deposits.
type DepositRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	Channel            string          `json:"channel"`
	LocationID         string          `json:"location_id,omitempty"`
	TellerID           string          `json:"teller_id,omitempty"`
	IDVerificationType string          `json:"id_verification_type"`
	IDDocumentNumber   string          `json:"id_document_number"`
	SourceOfFunds      string          `json:"source_of_funds"`
	Notes              string          `json:"notes,omitempty"`

	parsedChannel  limits.Channel
	parsedDocument compliancemodels.DocumentType
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DepositRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.LocationID = strings.TrimSpace(r.LocationID)
	r.TellerID = strings.TrimSpace(r.TellerID)
	r.IDDocumentNumber = strings.TrimSpace(r.IDDocumentNumber)
	r.SourceOfFunds = strings.TrimSpace(r.SourceOfFunds)
	r.Notes = strings.TrimSpace(r.Notes)

	// Size validation (fail fast)
	if len(r.LocationID) > maxIdentifierLen || len(r.TellerID) > maxIdentifierLen ||
		len(r.IDDocumentNumber) > maxIdentifierLen {
		return dErrors.New(dErrors.CodeValidation, "identifiers must be at most 64 characters")
	}
	if len(r.SourceOfFunds) > 255 {
		return dErrors.New(dErrors.CodeValidation, "source_of_funds must be at most 255 characters")
	}
	if len(r.Notes) > maxNotesLen {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 500 characters")
	}

	amount, err := id.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	r.Amount = amount

	channel, err := limits.ParseChannel(r.Channel)
	if err != nil {
		return err
	}
	r.parsedChannel = channel
	if channel == limits.ChannelBranch && r.TellerID == "" {
		return dErrors.New(dErrors.CodeValidation, "teller_id is required for BRANCH deposits")
	}

	docType, err := compliancemodels.ParseDocumentType(r.IDVerificationType)
	if err != nil {
		return err
	}
	r.parsedDocument = docType

	if r.IDDocumentNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "id_document_number is required")
	}
	if r.SourceOfFunds == "" {
		return dErrors.New(dErrors.CodeValidation, "source_of_funds is required")
	}
	return nil
}

func (r *DepositRequest) ParsedChannel() limits.Channel {
	return r.parsedChannel
}

func (r *DepositRequest) ParsedDocumentType() compliancemodels.DocumentType {
	return r.parsedDocument
}
