// Package remote implements entity and conversation handlers backed by an
// inference server that hosts the recognition, disambiguation and
// conversational linking models.
package remote

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

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/getzep/entitylink/config"
	"github.com/getzep/entitylink/internal"
)

var log = internal.GetLogger()

const (
	RequestIDHeader     = "X-Request-ID"
	MaxIdleConns        = 100
	MaxIdleConnsPerHost = 20
	IdleConnTimeout     = 90 * time.Second
	LoadBackoffMin      = 500 * time.Millisecond
	LoadBackoffMax      = 10 * time.Second
)

// Kinds of model the inference server can load.
const (
	KindED           = "ed"
	KindNER          = "ner"
	KindConversation = "conv"
)

// StatusError is returned when the inference server answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference server returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the inference server. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	models      config.ModelsConfig
	loadRetries int
}

// NewClient returns a Client for cfg.Backend. Request path retries are
// controlled by backend.retry_max, which defaults to none.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.Backend.URL, "/"),
		httpClient:  newHTTPClient(cfg.Backend.RetryMax, cfg.Backend.Timeout),
		models:      cfg.Models,
		loadRetries: cfg.Backend.LoadRetries,
	}
}

// newHTTPClient returns a retryable HTTP client whose transport is wrapped in
// an OpenTelemetry transport.
func newHTTPClient(retryMax int, timeout time.Duration) *http.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        MaxIdleConns,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     IdleConnTimeout,
		}),
	}
	client.Logger = internal.NewLeveledLogrus(log)
	client.RetryMax = retryMax
	client.CheckRetry = IgnoreClientErrorRetryPolicy
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return client.StandardClient()
}

// IgnoreClientErrorRetryPolicy never retries 4xx responses or cancelled
// requests and otherwise defers to retryablehttp.DefaultRetryPolicy.
func IgnoreClientErrorRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		log.Warn("inference server responded with status ", resp.Status)
	}

	// do not retry on context.Canceled or context.DeadlineExceeded
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if resp != nil && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type loadRequest struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	BaseURL     string `json:"base_url"`
	WikiVersion string `json:"wiki_version"`
	EDModel     string `json:"ed_model,omitempty"`
}

// LoadEDModel makes the shared entity disambiguation model resident. It must
// succeed before any entity or conversation handler is loaded.
func (c *Client) LoadEDModel(ctx context.Context) error {
	return c.load(ctx, loadRequest{
		Kind:        KindED,
		Name:        c.models.EDModel,
		BaseURL:     c.models.BaseURL,
		WikiVersion: c.models.WikiVersion,
	})
}

// LoadEntityHandler loads the named NER model, paired with the shared ED
// model, and returns a handler for it.
func (c *Client) LoadEntityHandler(ctx context.Context, name string) (*EntityHandler, error) {
	err := c.load(ctx, loadRequest{
		Kind:        KindNER,
		Name:        name,
		BaseURL:     c.models.BaseURL,
		WikiVersion: c.models.WikiVersion,
		EDModel:     c.models.EDModel,
	})
	if err != nil {
		return nil, err
	}
	return &EntityHandler{client: c, model: name}, nil
}

// LoadConversationHandler loads the named conversational linker and returns a
// handler for it.
func (c *Client) LoadConversationHandler(ctx context.Context, name string) (*ConversationHandler, error) {
	err := c.load(ctx, loadRequest{
		Kind:        KindConversation,
		Name:        name,
		BaseURL:     c.models.BaseURL,
		WikiVersion: c.models.WikiVersion,
		EDModel:     c.models.EDModel,
	})
	if err != nil {
		return nil, err
	}
	return &ConversationHandler{client: c, model: name}, nil
}

// load asks the inference server to load a model, retrying while the server
// is unreachable or still starting up.
func (c *Client) load(ctx context.Context, req loadRequest) error {
	policy := retrypolicy.Builder[any]().
		HandleIf(func(_ any, err error) bool {
			return err != nil && ctx.Err() == nil && !isClientError(err)
		}).
		WithBackoff(LoadBackoffMin, LoadBackoffMax).
		WithMaxRetries(c.loadRetries).
		Build()

	attempt := 0
	var lastErr error
	err := failsafe.Run(func() error {
		attempt++
		if attempt > 1 {
			log.Warnf("retrying load of %s model %s (attempt %d)", req.Kind, req.Name, attempt)
		}
		_, lastErr = c.post(ctx, "/models/load", req)
		return lastErr
	}, policy)
	if err != nil && lastErr != nil {
		// report the server's answer rather than the policy's exceeded error
		return lastErr
	}
	return err
}

// post sends body as JSON to path and returns the raw response body.
func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("inference server returned invalid JSON from %s", path)
	}
	return json.RawMessage(respBody), nil
}

func modelPath(prefix, model string) string {
	return fmt.Sprintf("/%s/%s", prefix, url.PathEscape(model))
}

func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

func isClientError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) &&
		statusErr.StatusCode >= http.StatusBadRequest &&
		statusErr.StatusCode < http.StatusInternalServerError
}
