package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaConfig configures the Ollama embedding client.
type OllamaConfig struct {
	// BaseURL is the Ollama server URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model name (default: nomic-embed-text).
	Model string

	// Dimension is the vector dimension the model produces
	// (default: 384).
	Dimension int

	// Timeout bounds each HTTP request (default: 10 seconds).
	Timeout time.Duration
}

// OllamaEmbedder implements Embedder against a local or remote Ollama
// instance. Every request is bounded by a timeout and wrapped with
// circuit breaker protection so a dead backend fails fast instead of
// stalling recommendation requests.
type OllamaEmbedder struct {
	baseURL        string
	model          string
	dimension      int
	timeout        time.Duration
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOllamaEmbedder creates an Ollama-backed embedder, filling in
// defaults for any zero-valued config field.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &OllamaEmbedder{
		baseURL:        cfg.BaseURL,
		model:          cfg.Model,
		dimension:      cfg.Dimension,
		timeout:        cfg.Timeout,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreaker(),
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Dimension returns the configured vector dimension.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// Embed generates the embedding vector for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one vector per input text in a single request.
// The call is wrapped with circuit breaker protection; an open circuit
// or transport failure surfaces as ErrProvider.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch: no texts")
	}

	result, err := e.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return e.embedBatch(ctx, texts)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return result.([][]float32), nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(msg))
	}

	var respData embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts",
			len(respData.Embeddings), len(texts))
	}
	for i, v := range respData.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("ollama returned empty embedding for text %d", i)
		}
	}

	return respData.Embeddings, nil
}

// HealthCheck verifies the Ollama server is reachable. It bypasses the
// circuit breaker since it is itself the probe.
func (e *OllamaEmbedder) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}
