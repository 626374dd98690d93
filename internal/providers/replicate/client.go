package replicate

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

	"golang.org/x/time/rate"

	"easel/internal/config"
	"easel/internal/providers"
	"easel/internal/services"
)

const stageGenerating = "generating"

// Client talks to the Replicate predictions API: create a prediction, poll it
// until it settles, then fetch the first output artifact.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	limiter      *rate.Limiter
	visionModel  string
	pollInterval time.Duration
	pollTimeout  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPollInterval overrides the delay between prediction status checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSleeper replaces the poll sleep function. Tests use this to avoid
// real delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient builds a client from the replicate config section.
func NewClient(cfg config.Replicate, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageGenerating, "new client", "replicate api_token is not configured", nil)
	}
	client := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		visionModel:  strings.TrimSpace(cfg.VisionModel),
		pollInterval: time.Duration(cfg.PollSeconds) * time.Second,
		pollTimeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	if client.pollInterval <= 0 {
		client.pollInterval = 5 * time.Second
	}
	if client.pollTimeout <= 0 {
		client.pollTimeout = 300 * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// Generate runs one prediction for the given variation and returns the raw
// output bytes plus the catalog cost for the model.
func (c *Client) Generate(ctx context.Context, variation string, req providers.Request) (*providers.Result, error) {
	spec, ok := catalog[variation]
	if !ok {
		return nil, services.Wrap(services.ErrInvalidRequest, stageGenerating, "generate", fmt.Sprintf("unknown variation %q", variation), nil)
	}
	pred, err := c.createPrediction(ctx, spec, req)
	if err != nil {
		return nil, err
	}
	settled, err := c.waitForPrediction(ctx, pred)
	if err != nil {
		return nil, err
	}
	sourceURL, output, err := c.fetchOutput(ctx, settled, spec)
	if err != nil {
		return nil, err
	}
	return &providers.Result{
		Output:      output,
		ContentType: spec.contentType,
		SourceURL:   sourceURL,
		Cost:        spec.unitCost,
	}, nil
}

// Describe runs the vision model against an image and returns its free-text
// description.
func (c *Client) Describe(ctx context.Context, image []byte) (string, error) {
	model := c.visionModel
	if model == "" {
		model = VariationBLIP
	}
	result, err := c.Generate(ctx, model, providers.Request{Image: image})
	if err != nil {
		return "", err
	}
	description := strings.TrimSpace(string(result.Output))
	// BLIP prefixes caption-mode answers; strip it so prompt building sees
	// only the description text.
	description = strings.TrimSpace(strings.TrimPrefix(description, "Caption:"))
	if description == "" {
		return "", services.Wrap(services.ErrTransient, "analyzing", "describe", "vision model returned an empty description", nil)
	}
	return description, nil
}

func (c *Client) createPrediction(ctx context.Context, spec modelSpec, req providers.Request) (*prediction, error) {
	payload := map[string]any{
		"version": spec.version,
		"input":   spec.buildInput(req),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidRequest, stageGenerating, "create prediction", "encode request", err)
	}
	var pred prediction
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/predictions", body, &pred); err != nil {
		return nil, err
	}
	if pred.ID == "" {
		return nil, services.Wrap(services.ErrTransient, stageGenerating, "create prediction", "replicate returned no prediction id", nil)
	}
	return &pred, nil
}

func (c *Client) waitForPrediction(ctx context.Context, pred *prediction) (*prediction, error) {
	pollURL := pred.URLs.Get
	if pollURL == "" {
		pollURL = c.baseURL + "/predictions/" + pred.ID
	}
	deadline := time.Now().Add(c.pollTimeout)
	current := pred
	for {
		switch current.Status {
		case "succeeded":
			return current, nil
		case "failed", "canceled":
			message := current.Error
			if message == "" {
				message = "prediction " + current.Status
			}
			// The model rejected this input for good; retrying the same
			// prediction cannot change the verdict.
			return nil, services.Wrap(services.ErrInvalidRequest, stageGenerating, "poll prediction", message, nil)
		}
		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrTimeout, stageGenerating, "poll prediction", fmt.Sprintf("prediction %s did not settle within %s", current.ID, c.pollTimeout), nil)
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, services.Wrap(services.ErrInterrupted, stageGenerating, "poll prediction", "poll interrupted", err)
		}
		next := &prediction{}
		if err := c.doJSON(ctx, http.MethodGet, pollURL, nil, next); err != nil {
			return nil, err
		}
		current = next
	}
}

func (c *Client) fetchOutput(ctx context.Context, pred *prediction, spec modelSpec) (string, []byte, error) {
	outputURL, text, err := decodeOutput(pred.Output)
	if err != nil {
		return "", nil, services.Wrap(services.ErrTransient, stageGenerating, "fetch output", "decode prediction output", err)
	}
	if text != "" && outputURL == "" {
		return "", []byte(text), nil
	}
	if outputURL == "" {
		return "", nil, services.Wrap(services.ErrTransient, stageGenerating, "fetch output", "prediction produced no output", nil)
	}
	data, err := c.download(ctx, outputURL)
	if err != nil {
		return "", nil, err
	}
	return outputURL, data, nil
}

// decodeOutput handles the two shapes Replicate models return: a list of
// artifact URLs, or a bare string (URL for image models, text for BLIP).
func decodeOutput(raw json.RawMessage) (url string, text string, err error) {
	if len(raw) == 0 {
		return "", "", nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", "", nil
		}
		return list[0], "", nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", "", err
	}
	if strings.HasPrefix(single, "http://") || strings.HasPrefix(single, "https://") {
		return single, "", nil
	}
	return "", single, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrInterrupted, stageGenerating, "rate limit", "wait interrupted", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return services.Wrap(services.ErrInvalidRequest, stageGenerating, "request", "build request", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return classifyStatus(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, stageGenerating, "request", "decode response", err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidRequest, stageGenerating, "download", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageGenerating, "download", "read output", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrTransient, stageGenerating, "download", "output artifact was empty", nil)
	}
	return data, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageGenerating, "request", "request deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrInterrupted, stageGenerating, "request", "request canceled", err)
	}
	return services.Wrap(services.ErrTransient, stageGenerating, "request", "replicate request failed", err)
}

func classifyStatus(resp *http.Response) error {
	snippet := readSnippet(resp.Body)
	message := fmt.Sprintf("replicate returned %d: %s", resp.StatusCode, snippet)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if after := strings.TrimSpace(resp.Header.Get("Retry-After")); after != "" {
			message = fmt.Sprintf("%s (retry after %ss)", message, after)
		}
		return services.Wrap(services.ErrRateLimited, stageGenerating, "request", message, nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, stageGenerating, "request", message, nil)
	case resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, stageGenerating, "request", message, nil)
	default:
		return services.Wrap(services.ErrInvalidRequest, stageGenerating, "request", message, nil)
	}
}

func readSnippet(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(data) == 0 {
		return "no body"
	}
	return strings.TrimSpace(string(data))
}
