package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	compliancemodels "cashdesk/internal/compliance/models"
	"cashdesk/internal/deposit/handler/mocks"
	"cashdesk/internal/deposit/models"
	ledgermodels "cashdesk/internal/ledger/models"
	"cashdesk/internal/limits"
	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
	"cashdesk/pkg/platform/httputil"
	"cashdesk/pkg/testutil"
)

const (
	testUserID   = "5f0c7b0e-2f4a-4c55-9d0b-2d0c4a3e9b11"
	testFullName = "Alice Example"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
func newTestRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	svc := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r, svc
}

func validBody() map[string]any {
	return map[string]any{
		"amount":               "500.00",
		"channel":              "ATM",
		"location_id":          "ATM-042",
		"id_verification_type": "drivers_license",
		"id_document_number":   "D1234567",
		"source_of_funds":      "salary",
	}
}

func TestHandleDeposit(t *testing.T) {
	ts := time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)

	testutil.Given(t, "an authenticated ATM deposit", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().Deposit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req models.Request) (*models.Receipt, error) {
				assert.Equal(t, testFullName, req.FullName)
				assert.Equal(t, limits.ChannelATM, req.Channel)
				assert.Equal(t, compliancemodels.DocumentDriversLicense, req.DocumentType)
				assert.True(t, req.Amount.Equal(decimal.RequireFromString("500")))
				return &models.Receipt{
					TransactionID: 7,
					Status:        ledgermodels.StatusCompleted,
					Amount:        req.Amount,
					NewBalance:    decimal.RequireFromString("1500"),
					Timestamp:     ts,
					ReceiptNumber: models.ReceiptNumber(7),
				}, nil
			})

		req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/deposits", validBody()), testUserID, testFullName)
		rr := testutil.DoRequest(router, req)

		testutil.Then(t, "it responds 201 with the receipt", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusCreated)
			resp := testutil.UnmarshalResponse[DepositResponse](t, rr)
			assert.Equal(t, "completed", resp.Status)
			assert.Equal(t, int64(7), resp.TransactionID)
			assert.Equal(t, "500.00", resp.Amount)
			assert.Equal(t, "1500.00", resp.NewBalance)
			assert.Equal(t, "CD0000000007", resp.ReceiptNumber)
			assert.Equal(t, "2026-05-04T15:30:00Z", resp.Timestamp)
		})
	})

	testutil.Given(t, "no authenticated principal", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/deposits", validBody()))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	testutil.Given(t, "invalid bodies", func(t *testing.T) {
		cases := map[string]func(body map[string]any){
			"zero amount":           func(b map[string]any) { b["amount"] = "0" },
			"three decimals":        func(b map[string]any) { b["amount"] = "1.234" },
			"huge exponent":         func(b map[string]any) { b["amount"] = json.Number("1e50000000") },
			"tiny exponent":         func(b map[string]any) { b["amount"] = json.Number("1e-50000000") },
			"lower-case channel":    func(b map[string]any) { b["channel"] = "atm" },
			"unknown document":      func(b map[string]any) { b["id_verification_type"] = "library_card" },
			"missing document":      func(b map[string]any) { delete(b, "id_document_number") },
			"branch without teller": func(b map[string]any) { b["channel"] = "BRANCH" },
			"missing funds source":  func(b map[string]any) { b["source_of_funds"] = "  " },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				router, _ := newTestRouter(t)
				body := validBody()
				mutate(body)
				req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/deposits", body), testUserID, testFullName)
				rr := testutil.DoRequest(router, req)
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
			})
		}
	})

	testutil.Given(t, "malformed JSON", func(t *testing.T) {
		router, _ := newTestRouter(t)
		req := testutil.WithPrincipal(testutil.NewRequestWithBody(t, http.MethodPost, "/deposits", `{"amount":`), testUserID, testFullName)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	testutil.Given(t, "service rejections", func(t *testing.T) {
		cases := []struct {
			name       string
			err        error
			status     int
			code       string
			reason     string
			retryAfter string
		}{
			{
				name:   "channel ceiling",
				err:    dErrors.New(dErrors.CodeChannelLimitExceeded, "amount exceeds ATM deposit limit of $10,000.00"),
				status: http.StatusBadRequest,
				code:   "validation_error",
				reason: "channel_limit_exceeded",
			},
			{
				name:   "watchlist match",
				err:    dErrors.New(dErrors.CodeAMLFlagged, "subject matched the watchlist"),
				status: http.StatusForbidden,
				code:   "compliance_error",
			},
			{
				name:   "no account",
				err:    dErrors.New(dErrors.CodeNotFound, "no account for principal"),
				status: http.StatusNotFound,
				code:   "not_found",
			},
			{
				name:       "rate limited",
				err:        dErrors.Wrap(&models.RateLimitedError{RetryAfter: 42 * time.Second}, dErrors.CodeRateLimited, "too many deposit attempts, try again later"),
				status:     http.StatusTooManyRequests,
				code:       "rate_limited",
				retryAfter: "42",
			},
			{
				name:   "ledger failure",
				err:    dErrors.New(dErrors.CodeInternal, "deposit could not be committed"),
				status: http.StatusInternalServerError,
				code:   "internal_error",
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				router, svc := newTestRouter(t)
				svc.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, tc.err)

				req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/deposits", validBody()), testUserID, testFullName)
				rr := testutil.DoRequest(router, req)

				testutil.AssertStatus(t, rr, tc.status)
				assert.Equal(t, tc.retryAfter, rr.Header().Get("Retry-After"))
				resp := testutil.UnmarshalErrorResponse(t, rr)
				assert.Equal(t, tc.code, resp["error"])
				assert.Equal(t, tc.reason, resp["reason"])
				if tc.code == "compliance_error" {
					assert.Equal(t, httputil.ComplianceReviewMessage, resp["error_description"])
				}
			})
		}
	})
}

func TestHandleGetDeposit(t *testing.T) {
	userID, err := id.ParseUserID(testUserID)
	require.NoError(t, err)

	testutil.Given(t, "the owner's deposit", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().GetDeposit(gomock.Any(), userID, id.TransactionID(12)).Return(&models.DepositView{
			TransactionID: 12,
			Status:        ledgermodels.StatusCompleted,
			Amount:        decimal.RequireFromString("75.5"),
			Channel:       limits.ChannelBranch,
			LocationID:    "BR-7",
			Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			ReceiptNumber: models.ReceiptNumber(12),
		}, nil)

		req := testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/deposits/12"), testUserID, testFullName)
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[DepositViewResponse](t, rr)
		assert.Equal(t, "75.50", resp.Amount)
		assert.Equal(t, "BRANCH", resp.Channel)
		assert.Equal(t, "BR-7", resp.LocationID)
		assert.Equal(t, "CD0000000012", resp.ReceiptNumber)
	})

	testutil.Given(t, "someone else's deposit", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().GetDeposit(gomock.Any(), userID, id.TransactionID(12)).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "transaction belongs to another account"))

		req := testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/deposits/12"), testUserID, testFullName)
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusForbidden, "forbidden")
	})

	testutil.Given(t, "a non-numeric id", func(t *testing.T) {
		router, _ := newTestRouter(t)
		req := testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/deposits/abc"), testUserID, testFullName)
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "invalid_input")
	})
}
