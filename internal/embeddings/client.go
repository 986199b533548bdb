// Package embeddings wraps the external vectorizer HTTP service.
//
// The service exposes two endpoints: /vectorizer/string/ for a single text
// and /vectorizer/list/ for a batch. Both return the vector data as a
// JSON-encoded string nested inside a JSON object, so responses are decoded
// twice. That quirk is the service's wire contract and is isolated in
// decodeVectorField so a contract change touches one function.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the vectorizer did not return a
	// successful response within the configured attempts. The error
	// message carries the last response body verbatim.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrVectorCountMismatch indicates the batch endpoint returned a
	// different number of vectors than texts submitted.
	ErrVectorCountMismatch = errors.New("vector count does not match input texts")
)

// RetryPolicy controls how embedding calls are retried.
//
// The vectorizer contract is a flat retry: a fixed attempt count with no
// delay between attempts. A backoff policy can be substituted here without
// touching call sites.
type RetryPolicy struct {
	// Attempts is the total number of tries (not additional retries).
	Attempts int
	// Delay is the pause between attempts. Zero means immediate retry.
	Delay time.Duration
}

// DefaultRetryPolicy matches the vectorizer service contract.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Delay: 0}
}

// Config holds configuration for the embedding client.
type Config struct {
	// Host and Port locate the vectorizer service.
	Host string
	Port int

	// Timeout bounds each individual attempt. Default: 10s.
	Timeout time.Duration

	// Retry is the retry policy. Zero value uses DefaultRetryPolicy.
	Retry RetryPolicy
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// Client calls the vectorizer service with bounded retry.
//
// The underlying http.Client reuses connections across calls, so one Client
// should be constructed per process and shared.
type Client struct {
	singleURL string
	batchURL  string
	client    *http.Client
	timeout   time.Duration
	retry     RetryPolicy
	logger    *zap.Logger
	metrics   *Metrics
}

// NewClient creates a new embedding client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	base := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	return &Client{
		singleURL: base + "/vectorizer/string/",
		batchURL:  base + "/vectorizer/list/",
		client:    &http.Client{},
		timeout:   cfg.Timeout,
		retry:     cfg.Retry,
		logger:    logger,
		metrics:   NewMetrics(logger),
	}, nil
}

type singleRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

// EmbedText obtains the vector representation of a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var vector []float32
	body, err := c.post(ctx, c.singleURL, singleRequest{Text: text})
	if err == nil {
		err = decodeVectorField(body, "vectorized text", &vector)
	}
	c.metrics.RecordGeneration(ctx, "embed_text", time.Since(start), 1, err)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch obtains vector representations for a batch of texts. The
// returned slice has the same length and order as the input. A response
// with a different vector count fails rather than silently misaligning
// attributes downstream.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var vectors [][]float32
	body, err := c.post(ctx, c.batchURL, batchRequest{Texts: texts})
	if err == nil {
		err = decodeVectorField(body, "vectorized texts", &vectors)
	}
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("%w: got %d vectors for %d texts", ErrVectorCountMismatch, len(vectors), len(texts))
	}
	c.metrics.RecordGeneration(ctx, "embed_batch", time.Since(start), len(texts), err)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// post issues the request, retrying non-200 responses per the retry policy.
// Transport errors are not retried: the contract retries only rejected
// attempts, and a fresh attempt is never started once ctx is cancelled.
func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastStatus int
	var lastBody []byte
	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("embedding call canceled: %w", err)
		}

		body, status, err := c.attempt(ctx, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		if status == http.StatusOK {
			if attempt > 1 {
				c.logger.Info("embedding call recovered",
					zap.Int("attempt", attempt),
					zap.String("url", url))
			}
			return body, nil
		}

		lastStatus = status
		lastBody = body
		c.metrics.RecordRetry(ctx)
		c.logger.Warn("embedding attempt rejected",
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.String("url", url))

		if c.retry.Delay > 0 && attempt < c.retry.Attempts {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("embedding call canceled: %w", ctx.Err())
			case <-time.After(c.retry.Delay):
			}
		}
	}

	c.logger.Error("embedding attempts exhausted",
		zap.Int("attempts", c.retry.Attempts),
		zap.Int("status", lastStatus))
	return nil, fmt.Errorf("%w after %d attempts: status %d: %s",
		ErrEmbeddingFailed, c.retry.Attempts, lastStatus, lastBody)
}

// attempt performs one POST bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, url string, reqBody []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// decodeVectorField extracts the double-encoded vector data from a
// vectorizer response: the named field holds a JSON string whose content is
// itself a JSON array.
func decodeVectorField(body []byte, key string, out any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding response envelope: %w", err)
	}
	raw, ok := envelope[key]
	if !ok {
		return fmt.Errorf("response missing field %q", key)
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return fmt.Errorf("decoding field %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(encoded), out); err != nil {
		return fmt.Errorf("decoding vector data in %q: %w", key, err)
	}
	return nil
}
