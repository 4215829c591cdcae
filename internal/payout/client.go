package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/giftdrop/backend/internal/config"
)

// Client is the external payout rail. The reference passed in each request
// is derived from the withdrawal id, so the rail de-duplicates retried calls.
type Client interface {
	Payout(ctx context.Context, req *Request) (*Response, error)
}

type Request struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
}

type Response struct {
	PayoutRef string `json:"payoutRef"`
	Status    string `json:"status"`
}

// RailError is a structured rejection from the rail: the payout definitely
// did not happen.
type RailError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RailError) Error() string {
	return fmt.Sprintf("payout rail rejected request: %s (%s)", e.Message, e.Code)
}

// ErrIndeterminate marks outcomes where the rail may or may not have paid
// out. Callers must leave the withdrawal in processing for reconciliation.
var ErrIndeterminate = errors.New("payout outcome indeterminate")

// IsIndeterminate reports whether err means the payout call may have gone
// through even though no definitive answer arrived.
func IsIndeterminate(err error) bool {
	if errors.Is(err, ErrIndeterminate) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(cfg *config.PayoutConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (c *HTTPClient) Payout(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/payouts"
	log.Printf("[PAYOUT_RAIL] Sending payout %s for %d to %s", req.Reference, req.Amount, req.Destination)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Printf("[PAYOUT_RAIL] Request failed for %s: %v", req.Reference, err)
		if IsIndeterminate(err) {
			return nil, fmt.Errorf("%w: %v", ErrIndeterminate, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var result Response
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			// Rail accepted the request but the body is unreadable: the
			// payout may exist, so do not treat as a definite failure.
			return nil, fmt.Errorf("%w: decoding response: %v", ErrIndeterminate, err)
		}
		log.Printf("[PAYOUT_RAIL] Payout %s accepted, ref=%s", req.Reference, result.PayoutRef)
		return &result, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var railErr RailError
		if err := json.NewDecoder(resp.Body).Decode(&railErr); err != nil {
			railErr = RailError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Message: "payout rejected"}
		}
		log.Printf("[PAYOUT_RAIL] Payout %s rejected: %s", req.Reference, railErr.Code)
		return nil, &railErr

	default:
		// 5xx: the rail may have applied the payout before failing.
		log.Printf("[PAYOUT_RAIL] Payout %s returned status %d", req.Reference, resp.StatusCode)
		return nil, fmt.Errorf("%w: rail returned status %d", ErrIndeterminate, resp.StatusCode)
	}
}
