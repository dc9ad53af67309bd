package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cashdesk/internal/deposit/models"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	"cashdesk/pkg/platform/httputil"
	"cashdesk/pkg/requestcontext"
)

// Service defines the deposit operations exposed over HTTP.
type Service interface {
	Deposit(ctx context.Context, req models.Request) (*models.Receipt, error)
	GetDeposit(ctx context.Context, principal id.UserID, txID id.TransactionID) (*models.DepositView, error)
}

// Handler wires deposit endpoints to the deposit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts deposit endpoints on the router. Callers are expected to
// apply authentication first.
func (h *Handler) Register(r chi.Router) {
	r.Post("/deposits", h.HandleDeposit)
	r.Get("/deposits/{transactionId}", h.HandleGetDeposit)
}

// HandleDeposit handles POST /deposits.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	receipt, err := h.service.Deposit(ctx, models.Request{
		Principal:      userID,
		FullName:       requestcontext.FullName(ctx),
		Amount:         req.Amount,
		Channel:        req.ParsedChannel(),
		LocationID:     req.LocationID,
		TellerID:       req.TellerID,
		DocumentType:   req.ParsedDocumentType(),
		DocumentNumber: req.IDDocumentNumber,
		SourceOfFunds:  req.SourceOfFunds,
		Notes:          req.Notes,
	})
	if err != nil {
		var limited *models.RateLimitedError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds()))
		}
		h.logger.WarnContext(ctx, "deposit failed",
			"request_id", requestID,
			"user_id", userID.String(),
			"status", httputil.StatusFor(err),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "deposit accepted",
		"request_id", requestID,
		"user_id", userID.String(),
		"transaction_id", receipt.TransactionID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromReceipt(receipt))
}

// HandleGetDeposit handles GET /deposits/{transactionId}.
func (h *Handler) HandleGetDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.GetDeposit(ctx, userID, txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}
