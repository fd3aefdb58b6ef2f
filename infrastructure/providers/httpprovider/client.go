// Package httpprovider talks to a remote generation gateway over HTTP.
//
// The gateway accepts
//
//	POST   /v1/generations                 run a job, sync or async
//	GET    /v1/generations/{taskId}?model= poll an async job
//	DELETE /v1/generations/{taskId}?model= cancel an async job
//
// and answers with the JSON shapes of ports.GenerationResult and
// ports.PollResult.
package httpprovider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/ports"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

const serviceName = "generation-provider"

// maxErrorBody caps how much of an error response is kept for messages
const maxErrorBody = 4 << 10

// BreakerConfig controls when the provider circuit opens
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Config configures the client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client implements ports.GenerationProvider and ports.Canceler
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var (
	_ ports.GenerationProvider = (*Client)(nil)
	_ ports.Canceler           = (*Client)(nil)
)

// statusError is a non-2xx gateway answer
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.status, e.body)
}

// NewClient creates a gateway client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	bc := cfg.Breaker

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Client mistakes and cancellations say nothing about gateway health
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *statusError
			if errors.As(err, &se) {
				return se.status < 500
			}
			return false
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

// Generate submits one generation job
func (c *Client) Generate(ctx context.Context, req ports.GenerationRequest) (ports.GenerationResult, error) {
	ctx, span := observability.StartSpan(ctx, "provider.generate",
		attribute.String("node.id", req.NodeID.String()),
		attribute.String("node.kind", string(req.Kind)),
		attribute.String("model", req.Model))
	defer span.End()

	var result ports.GenerationResult
	err := c.do(ctx, http.MethodPost, "/v1/generations", nil, req, &result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return ports.GenerationResult{}, err
	}
	if result.Async && result.TaskID == "" {
		return ports.GenerationResult{}, appErrors.NewExternalError(serviceName,
			fmt.Errorf("async result without task id"))
	}
	if result.Model == "" {
		result.Model = req.Model
	}
	span.SetAttributes(attribute.Bool("async", result.Async), attribute.String("task.id", result.TaskID))
	return result, nil
}

// Poll reads the state of an async job
func (c *Client) Poll(ctx context.Context, taskID, model string) (ports.PollResult, error) {
	ctx, span := observability.StartSpan(ctx, "provider.poll",
		attribute.String("task.id", taskID),
		attribute.String("model", model))
	defer span.End()

	var result ports.PollResult
	if err := c.do(ctx, http.MethodGet, "/v1/generations/"+url.PathEscape(taskID), modelQuery(model), nil, &result); err != nil {
		span.RecordError(err)
		return ports.PollResult{}, err
	}
	switch result.Status {
	case ports.PollPending, ports.PollProcessing, ports.PollCompleted, ports.PollFailed:
	default:
		return ports.PollResult{}, appErrors.NewExternalError(serviceName,
			fmt.Errorf("unknown poll status %q", result.Status))
	}
	span.SetAttributes(attribute.String("status", string(result.Status)))
	return result, nil
}

// Cancel asks the gateway to stop an async job
func (c *Client) Cancel(ctx context.Context, taskID, model string) error {
	ctx, span := observability.StartSpan(ctx, "provider.cancel", attribute.String("task.id", taskID))
	defer span.End()

	err := c.do(ctx, http.MethodDelete, "/v1/generations/"+url.PathEscape(taskID), modelQuery(model), nil, nil)
	if appErrors.IsNotFound(err) {
		return nil
	}
	return err
}

func modelQuery(model string) url.Values {
	if model == "" {
		return nil
	}
	return url.Values{"model": []string{model}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, body, out)
	})
	return c.translate(err, method, path)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(gatewayMessage(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// gatewayMessage extracts {"error": "..."} or {"message": "..."} when present
func gatewayMessage(data []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return string(data)
}

func (c *Client) translate(err error, method, path string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.Warn("Generation provider unavailable",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return appErrors.NewExternalError(serviceName, err).WithCode("CIRCUIT_OPEN")
	case errors.Is(err, context.Canceled):
		return appErrors.NewCanceledError("provider " + strings.ToLower(method)).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.NewTimeoutError("provider " + strings.ToLower(method)).WithCause(err)
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == http.StatusNotFound:
			return appErrors.NewNotFoundError("generation task").WithCause(err)
		case se.status == http.StatusUnauthorized || se.status == http.StatusForbidden:
			return appErrors.NewUnauthorizedError(se.body).WithCause(err)
		case se.status < 500:
			return appErrors.NewValidationError(se.body).WithCause(err)
		}
	}

	c.logger.Error("Generation provider request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(err))
	return appErrors.NewExternalError(serviceName, err)
}
