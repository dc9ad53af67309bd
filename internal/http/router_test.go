package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	accounthandler "cashdesk/internal/account/handler"
	accountservice "cashdesk/internal/account/service"
	"cashdesk/internal/compliance/clients"
	complianceservice "cashdesk/internal/compliance/service"
	deposithandler "cashdesk/internal/deposit/handler"
	depositservice "cashdesk/internal/deposit/service"
	jwttoken "cashdesk/internal/jwt_token"
	ledgerstore "cashdesk/internal/ledger/store"
	"cashdesk/internal/limits"
	"cashdesk/internal/platform/metrics"
	ratelimitservice "cashdesk/internal/ratelimit/service"
	"cashdesk/internal/ratelimit/store/window"
	id "cashdesk/pkg/domain"
	"cashdesk/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	router http.Handler
	jwt    *jwttoken.JWTService
	now    time.Time
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	s.jwt = jwttoken.NewJWTService("router-test-signing-key", "cashdesk-idp", "cashdesk")

	ledger := ledgerstore.NewInMemoryStore()
	limiter, err := ratelimitservice.New(window.NewInMemoryStore())
	s.Require().NoError(err)
	gate, err := complianceservice.New(clients.NewSimulatedIdentity(), clients.NewSimulatedWatchlist())
	s.Require().NoError(err)
	deposits, err := depositservice.New(limiter, limits.New(), gate, ledger, depositservice.WithLogger(logger))
	s.Require().NoError(err)
	accounts, err := accountservice.New(ledger)
	s.Require().NoError(err)

	s.router = NewRouter(Deps{
		Logger:    logger,
		Validator: jwttoken.NewJWTServiceAdapter(s.jwt),
		Deposits:  deposithandler.New(deposits, logger),
		Accounts:  accounthandler.New(accounts, logger),
		Registry:  metrics.NewRegistry(),
		Clock:     func() time.Time { return s.now },
	})
}

func (s *RouterSuite) authed(req *http.Request, userID id.UserID, name string) *http.Request {
	token, err := s.jwt.GenerateAccessToken(userID, name, time.Hour)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *RouterSuite) TestDepositLifecycle() {
	t := s.T()
	user := id.UserID(uuid.New())

	rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(t, http.MethodPost, "/accounts"), user, "Frank Example"))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	body := map[string]any{
		"amount":               500,
		"channel":              "ATM",
		"location_id":          "ATM-7",
		"id_verification_type": "passport",
		"id_document_number":   "X9988776",
		"source_of_funds":      "salary",
	}
	rr = testutil.DoRequest(s.router, s.authed(testutil.NewJSONRequest(t, http.MethodPost, "/deposits", body), user, "Frank Example"))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	receipt := testutil.UnmarshalResponse[deposithandler.DepositResponse](t, rr)
	s.Equal("500.00", receipt.NewBalance)
	s.Equal("CD0000000001", receipt.ReceiptNumber)
	s.NotEmpty(rr.Header().Get("X-Request-ID"))

	path := "/deposits/" + strconv.FormatInt(receipt.TransactionID, 10)
	rr = testutil.DoRequest(s.router, s.authed(testutil.NewRequest(t, http.MethodGet, path), user, "Frank Example"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "location_id", "ATM-7")

	stranger := id.UserID(uuid.New())
	rr = testutil.DoRequest(s.router, s.authed(testutil.NewRequest(t, http.MethodGet, path), stranger, "Gina Example"))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(s.router, s.authed(testutil.NewRequest(t, http.MethodGet, "/accounts/me"), user, "Frank Example"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "kyc_status", "verified")
}

func (s *RouterSuite) TestWatchlistNameIsRejectedGenerically() {
	t := s.T()
	user := id.UserID(uuid.New())
	testutil.DoRequest(s.router, s.authed(testutil.NewRequest(t, http.MethodPost, "/accounts"), user, "Jane Smith"))

	body := map[string]any{
		"amount":               "20.00",
		"channel":              "ATM",
		"id_verification_type": "state_id",
		"id_document_number":   "S1",
		"source_of_funds":      "gift",
	}
	rr := testutil.DoRequest(s.router, s.authed(testutil.NewJSONRequest(t, http.MethodPost, "/deposits", body), user, "Jane Smith"))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "compliance_error")
	s.NotContains(rr.Body.String(), "watchlist")
}

func (s *RouterSuite) TestAuthRequired() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/deposits/1"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	req := testutil.NewRequest(s.T(), http.MethodGet, "/deposits/1")
	req.Header.Set("Authorization", "Bearer not-a-token")
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized)
}

func (s *RouterSuite) TestOperationalEndpoints() {
	testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health")))
	testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics")))
}

func TestHealthReportsFailingChecks(t *testing.T) {
	router := NewRouter(Deps{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator: jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService("k", "i", "a")),
		Deposits:  deposithandler.New(nil, nil),
		Accounts:  accounthandler.New(nil, nil),
		Registry:  prometheus.NewRegistry(),
		Checks: map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}
