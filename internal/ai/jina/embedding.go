// Package jina embeds words through the Jina embeddings API.
package jina

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spigell/hh-traits/internal/ai"
)

const (
	// Endpoint is the public Jina embeddings API.
	Endpoint = "https://api.jina.ai/v1/embeddings"

	defaultModel = "jina-embeddings-v3"
)

// Config configures the Jina client.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	Endpoint   string
	Timeout    time.Duration
}

// Embedder calls the Jina embeddings API.
type Embedder struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

var _ ai.Embedder = (*Embedder)(nil)

type request struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type response struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// New creates an embedder.
func New(cfg Config) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("jina api key is required")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = Endpoint
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Embedder{
		client:     client,
		endpoint:   endpoint,
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates the embedding of a single word.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := request{
		Model:         e.model,
		Task:          "text-matching",
		Dimensions:    e.dimensions,
		Input:         []string{text},
		EmbeddingType: "float",
	}

	var resp response
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call Jina API: %w", err)
	}

	if httpResp.StatusCode() != http.StatusOK {
		if resp.Detail != "" {
			return nil, fmt.Errorf("Jina API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("Jina API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}

	return resp.Data[0].Embedding, nil
}
