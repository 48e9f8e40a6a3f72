package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/interfaces"
	"github.com/giygas/medcompare-api/metrics"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// VoteOptions configures a VoteClient
type VoteOptions struct {
	BaseURL    string
	Timeout    time.Duration
	Breaker    BreakerSettings
	HTTPClient *http.Client
}

// VoteClient submits votes to the aggregate authority
type VoteClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	newKey  func() string
}

// Compile-time check to ensure VoteClient implements interfaces.VoteClient
var _ interfaces.VoteClient = (*VoteClient)(nil)

// NewVoteClient creates a vote client
func NewVoteClient(opts VoteOptions) *VoteClient {
	return &VoteClient{
		baseURL: opts.BaseURL,
		http:    newHTTPClient(opts.Timeout, opts.HTTPClient),
		// Client-side rejections (duplicate vote, bad token) do not count as failures
		breaker: newBreaker("vote", opts.Breaker, func(err error) bool {
			if err == nil {
				return true
			}
			var ee *entities.EngineError
			if errors.As(err, &ee) {
				return ee.Kind != entities.KindVoteRejected || ee.Status < 500
			}
			return false
		}),
		newKey: func() string { return uuid.NewString() },
	}
}

// Breaker exposes the breaker state for health reporting
func (c *VoteClient) Breaker() interfaces.BreakerReporter {
	return breakerState{cb: c.breaker}
}

// Submit posts {medicine_id, vote, is_doctor} to {base}/api/vote. Each submission
// carries a fresh Idempotency-Key so the authority can drop transport retries.
// A non-2xx answer is a VoteRejected error carrying the authority's detail
// message and status.
func (c *VoteClient) Submit(ctx context.Context, req entities.VoteRequest) (entities.VoteDelta, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, req)
	})
	metrics.ObserveUpstream("vote", err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return entities.VoteDelta{}, &entities.EngineError{
				Kind:   entities.KindVoteRejected,
				Op:     "submit vote",
				Detail: "vote authority unavailable",
				Status: http.StatusServiceUnavailable,
				Err:    err,
			}
		}
		return entities.VoteDelta{}, err
	}
	return res.(entities.VoteDelta), nil
}

func (c *VoteClient) post(ctx context.Context, vr entities.VoteRequest) (entities.VoteDelta, error) {
	payload, err := json.Marshal(vr)
	if err != nil {
		return entities.VoteDelta{}, fmt.Errorf("failed to encode vote: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL, "/api/vote"), bytes.NewReader(payload))
	if err != nil {
		return entities.VoteDelta{}, fmt.Errorf("failed to build vote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", c.newKey())

	resp, err := c.http.Do(req)
	if err != nil {
		return entities.VoteDelta{}, fmt.Errorf("vote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return entities.VoteDelta{}, fmt.Errorf("failed to read vote response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return entities.VoteDelta{}, &entities.EngineError{
			Kind:   entities.KindVoteRejected,
			Op:     "submit vote",
			Detail: detailMessage(body, "Failed to update vote"),
			Status: resp.StatusCode,
		}
	}

	var delta entities.VoteDelta
	if err := json.Unmarshal(body, &delta); err != nil {
		return entities.VoteDelta{}, entities.WrapError(entities.KindMalformedResponse, "submit vote", err)
	}
	return delta, nil
}

// detailMessage extracts {"detail": "..."} from an error body, falling back to
// {"message": "..."} and then to fallback
func detailMessage(body []byte, fallback string) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch d := payload.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fallback
}
