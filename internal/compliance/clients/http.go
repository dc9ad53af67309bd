package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"cashdesk/internal/compliance/models"
)

// HeaderAPIKey authenticates calls to the compliance providers.
const HeaderAPIKey = "X-API-Key"

// BreakerSettings configures the circuit breaker in front of a provider.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})
}

// jsonClient posts JSON through a circuit breaker. An open breaker fails the
// call immediately; callers treat that like any other provider failure.
type jsonClient struct {
	url     string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func (c *jsonClient) post(ctx context.Context, in, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s unavailable: %w", c.breaker.Name(), err)
	}
	return err
}

func (c *jsonClient) do(ctx context.Context, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", c.breaker.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned status %d", c.breaker.Name(), resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.breaker.Name(), err)
	}
	return nil
}

// HTTPIdentity calls POST {baseURL}/verify.
type HTTPIdentity struct {
	client *jsonClient
}

func NewHTTPIdentity(baseURL, apiKey string, httpClient *http.Client, breaker BreakerSettings) *HTTPIdentity {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPIdentity{client: &jsonClient{
		url:     strings.TrimSuffix(baseURL, "/") + "/verify",
		apiKey:  apiKey,
		http:    httpClient,
		breaker: newBreaker("kyc", breaker),
	}}
}

type verifyRequest struct {
	PrincipalID    string `json:"principal_id"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

type verifyResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

func (c *HTTPIdentity) Verify(ctx context.Context, req models.IdentityRequest) (*models.IdentityResult, error) {
	var out verifyResponse
	err := c.client.post(ctx, verifyRequest{
		PrincipalID:    req.PrincipalID.String(),
		DocumentType:   string(req.DocumentType),
		DocumentNumber: req.DocumentNumber,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &models.IdentityResult{
		Status:    models.IdentityStatus(strings.ToLower(out.Status)),
		Reference: out.Reference,
	}, nil
}

// HTTPWatchlist calls POST {baseURL}/screen.
type HTTPWatchlist struct {
	client *jsonClient
}

func NewHTTPWatchlist(baseURL, apiKey string, httpClient *http.Client, breaker BreakerSettings) *HTTPWatchlist {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPWatchlist{client: &jsonClient{
		url:     strings.TrimSuffix(baseURL, "/") + "/screen",
		apiKey:  apiKey,
		http:    httpClient,
		breaker: newBreaker("aml", breaker),
	}}
}

type screenRequest struct {
	FullName string `json:"full_name"`
}

type screenResponse struct {
	Flagged      *bool  `json:"flagged"`
	MatchedEntry string `json:"matched_entry,omitempty"`
}

func (c *HTTPWatchlist) Screen(ctx context.Context, fullName string) (*models.ScreeningResult, error) {
	var out screenResponse
	if err := c.client.post(ctx, screenRequest{FullName: fullName}, &out); err != nil {
		return nil, err
	}
	// A response without a verdict is not a clear result.
	if out.Flagged == nil {
		return nil, errors.New("aml response missing flagged verdict")
	}
	return &models.ScreeningResult{Flagged: *out.Flagged, MatchedEntry: out.MatchedEntry}, nil
}
