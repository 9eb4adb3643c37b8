// Package client talks to the run persistence API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jengzang/runtrack-go/internal/logging"
	"github.com/jengzang/runtrack-go/internal/metrics"
	"github.com/jengzang/runtrack-go/internal/models"
)

var (
	// ErrNoToken means no bearer token is configured
	ErrNoToken = errors.New("runs api: no bearer token configured")
	// ErrTokenExpired means the bearer token's exp claim has passed
	ErrTokenExpired = errors.New("runs api: bearer token expired")
)

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("runs api: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config configures the runs client
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// RunsClient posts finished runs. Calls go through a circuit breaker so a
// dead backend fails fast instead of stalling every stop.
type RunsClient struct {
	baseURL string
	token   string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*models.SavedRun]
	now     func() time.Time
}

// NewRunsClient creates a client for cfg.BaseURL
func NewRunsClient(cfg Config) *RunsClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	name := "runs-api"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*models.SavedRun](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a 4xx is our fault, not the backend's
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &RunsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		now:     time.Now,
	}
}

// SaveRun sends POST /runs with the bearer token
func (c *RunsClient) SaveRun(ctx context.Context, payload *models.RunPayload) (*models.SavedRun, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run: %w", err)
	}
	return c.SaveRaw(ctx, body)
}

// SaveRaw sends an already encoded payload. The outbox replays stored
// payloads through it.
func (c *RunsClient) SaveRaw(ctx context.Context, body []byte) (*models.SavedRun, error) {
	if err := c.checkToken(); err != nil {
		return nil, err
	}

	start := time.Now()
	saved, err := c.cb.Execute(func() (*models.SavedRun, error) {
		return c.post(ctx, "/runs", body)
	})
	metrics.RunsAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RunsAPIRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("runs api unavailable: %w", err)
	case err != nil:
		metrics.RunsAPIRequests.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.RunsAPIRequests.WithLabelValues("success").Inc()
	return saved, nil
}

func (c *RunsClient) post(ctx context.Context, path string, body []byte) (*models.SavedRun, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runs api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read runs api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}

	return decodeSavedRun(raw), nil
}

// checkToken fails fast on a missing or expired JWT. Opaque tokens are
// passed through; the server stays the authority.
func (c *RunsClient) checkToken() error {
	if c.token == "" {
		return ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !c.now().Before(exp.Time) {
		return ErrTokenExpired
	}
	return nil
}

// the API answers either with the run itself or wrapped in {"data": ...}
type savedRunEnvelope struct {
	ID   string            `json:"id"`
	OID  string            `json:"_id"`
	Data *savedRunEnvelope `json:"data"`
	Run  *savedRunEnvelope `json:"run"`
}

func decodeSavedRun(raw []byte) *models.SavedRun {
	var env savedRunEnvelope
	if len(raw) == 0 || json.Unmarshal(raw, &env) != nil {
		return &models.SavedRun{}
	}
	for e := &env; e != nil; {
		switch {
		case e.ID != "":
			return &models.SavedRun{ID: e.ID}
		case e.OID != "":
			return &models.SavedRun{ID: e.OID}
		case e.Data != nil:
			e = e.Data
		default:
			e = e.Run
		}
	}
	return &models.SavedRun{}
}

func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fallback
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
