package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	ledgermodels "cashdesk/internal/ledger/models"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	"cashdesk/pkg/platform/httputil"
	"cashdesk/pkg/requestcontext"
)

type Service interface {
	Open(ctx context.Context, principal id.UserID, holderName string) (*ledgermodels.Account, bool, error)
	Get(ctx context.Context, principal id.UserID) (*ledgermodels.Account, error)
}

// AccountResponse describes the caller's account.
type AccountResponse struct {
	AccountID    string  `json:"account_id"`
	HolderName   string  `json:"holder_name"`
	Balance      string  `json:"balance"`
	KYCStatus    string  `json:"kyc_status"`
	LastKYCCheck *string `json:"last_kyc_check,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts", h.HandleOpen)
	r.Get("/accounts/me", h.HandleGet)
}

// HandleOpen opens the caller's account in the name carried by their token.
// It answers 201 on creation and 200 when the account already exists.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	acct, created, err := h.service.Open(ctx, userID, requestcontext.FullName(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open account",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toResponse(acct))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	acct, err := h.service.Get(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(acct))
}

func toResponse(acct *ledgermodels.Account) AccountResponse {
	resp := AccountResponse{
		AccountID:  acct.ID.String(),
		HolderName: acct.HolderName,
		Balance:    id.FormatMoney(acct.Balance),
		KYCStatus:  string(acct.KYCStatus),
		CreatedAt:  acct.CreatedAt.UTC().Format(time.RFC3339),
	}
	if acct.LastKYCCheck != nil {
		checked := acct.LastKYCCheck.UTC().Format(time.RFC3339)
		resp.LastKYCCheck = &checked
	}
	return resp
}
