package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/entity"
)

const maxErrorBody = 4 << 10

// Config holds job service client configuration
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit time.Duration // minimum spacing between requests
	Burst     int
	Retry     RetryOpts // catalog reads only
}

// Client implements port.JobAPI over the job service REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryOpts
	logger     *zap.Logger
}

// NewClient creates a job service client. Requests are traced through
// otelhttp and spaced by a token bucket.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100 * time.Millisecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetry
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Every(cfg.RateLimit), cfg.Burst),
		retry:   cfg.Retry,
		logger:  logger,
	}
}

// UpdateStatus changes the job status. A rejection by the service comes
// back as a result with Success false, not as an error.
func (c *Client) UpdateStatus(ctx context.Context, jobID string, update entity.StatusUpdate) (*entity.StatusResult, error) {
	var result entity.StatusResult
	err := c.do(ctx, http.MethodPatch, jobPath(jobID, "status"), update, &result)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.Message != "" {
		c.logger.Warn("Job status update rejected",
			zap.String("job_id", jobID),
			zap.String("status", update.Status),
			zap.Int("http_status", apiErr.StatusCode),
			zap.String("message", apiErr.Message))
		return &entity.StatusResult{Success: false, Message: apiErr.Message}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	c.logger.Info("Job status updated",
		zap.String("job_id", jobID),
		zap.String("status", update.Status),
		zap.Bool("success", result.Success))
	return &result, nil
}

// ListInventory fetches the inventory catalog
func (c *Client) ListInventory(ctx context.Context) ([]entity.InventoryItem, error) {
	var page inventoryPage
	if err := c.getWithRetry(ctx, "/inventory/items", &page); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return page.toEntities(), nil
}

// ListProviderServices fetches the provider service catalog
func (c *Client) ListProviderServices(ctx context.Context) ([]entity.ProviderService, error) {
	var page servicePage
	if err := c.getWithRetry(ctx, "/provider/services", &page); err != nil {
		return nil, fmt.Errorf("failed to list provider services: %w", err)
	}
	return page.toEntities(), nil
}

// AddParts attaches inventory items to the job
func (c *Client) AddParts(ctx context.Context, jobID string, parts []entity.PartLine) error {
	body := map[string]interface{}{"parts": parts}
	if err := c.do(ctx, http.MethodPost, jobPath(jobID, "parts"), body, nil); err != nil {
		return fmt.Errorf("failed to add parts: %w", err)
	}
	return nil
}

// AddService attaches a provider service to the job
func (c *Client) AddService(ctx context.Context, jobID string, line entity.ServiceLine) error {
	if err := c.do(ctx, http.MethodPost, jobPath(jobID, "services"), line, nil); err != nil {
		return fmt.Errorf("failed to add service: %w", err)
	}
	return nil
}

// AddCustomItem creates an ad-hoc line and returns the normalized echo
func (c *Client) AddCustomItem(ctx context.Context, jobID string, item entity.CustomItem) (*entity.CustomItem, error) {
	var created entity.CustomItem
	if err := c.do(ctx, http.MethodPost, jobPath(jobID, "custom-items"), item, &created); err != nil {
		return nil, fmt.Errorf("failed to add custom item: %w", err)
	}
	if created.Name == "" {
		// service answered without an echo
		created = item
	}
	return &created, nil
}

// RequestVerification asks the back office to approve the work
func (c *Client) RequestVerification(ctx context.Context, jobID string) error {
	if err := c.do(ctx, http.MethodPost, jobPath(jobID, "request-verification"), nil, nil); err != nil {
		return fmt.Errorf("failed to request verification: %w", err)
	}
	return nil
}

// CreatePartsPending reschedules the job until a part arrives
func (c *Client) CreatePartsPending(ctx context.Context, jobID string, req entity.PartsPendingRequest) error {
	if err := c.do(ctx, http.MethodPost, jobPath(jobID, "parts-pending"), req, nil); err != nil {
		return fmt.Errorf("failed to create parts pending: %w", err)
	}
	return nil
}

// CreateWorkshop sends the unit to the workshop
func (c *Client) CreateWorkshop(ctx context.Context, jobID string, req entity.WorkshopRequest) error {
	if err := c.do(ctx, http.MethodPost, jobPath(jobID, "workshop"), req, nil); err != nil {
		return fmt.Errorf("failed to create workshop job: %w", err)
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, out interface{}) error {
	attempt := 0
	return Retry(ctx, c.retry, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err != nil && !isRetryable(err) {
			return Permanent(err)
		}
		if err != nil {
			c.logger.Warn("Job service read failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	})
}

// do sends one request. out may be nil; a {"data": ...} envelope is unwrapped.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(method, path, resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func unwrapData(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || len(envelope.Data) == 0 {
		return raw
	}
	return envelope.Data
}

func jobPath(jobID, action string) string {
	return "/jobs/" + url.PathEscape(jobID) + "/" + action
}

// Verify interface compliance
var _ port.JobAPI = (*Client)(nil)
