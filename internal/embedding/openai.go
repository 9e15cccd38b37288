package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hotelchat/internal/config"
	"hotelchat/internal/observability"
)

const dimensionProbe = "dimension probe"

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint
type OpenAIEmbedder struct {
	config     config.EmbeddingConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	extraBody  map[string]any
	dim        int
	log        zerolog.Logger
}

// embeddingRequest represents an embedding request
type embeddingRequest struct {
	Model          string         `json:"model"`
	Input          []string       `json:"input"`
	Dimensions     int            `json:"dimensions,omitempty"`
	EncodingFormat string         `json:"encoding_format,omitempty"`
	ExtraBody      map[string]any `json:"extra_body,omitempty"` // e.g. NVIDIA: {"truncate": "NONE"}
}

// embeddingResponse represents the embedding API response
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIEmbedder creates an embedder for the configured model. When no
// dimension is configured, one probe request learns it from the API.
func NewOpenAIEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, NewError("load", "openai/"+cfg.Model, fmt.Errorf("%w: missing API key", ErrUnavailable))
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	e := &OpenAIEmbedder{
		config:     cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		dim:        cfg.Dimensions,
		log:        log.Logger.With().Str("component", "embedding").Str("provider", "openai").Logger(),
	}

	if cfg.ExtraBody != "" {
		if err := json.Unmarshal([]byte(cfg.ExtraBody), &e.extraBody); err != nil {
			e.log.Warn().Err(err).Msg("ignoring unparseable EMBEDDING_EXTRA_BODY")
		}
	}

	if e.dim == 0 {
		vecs, err := e.createEmbeddingBatch(ctx, []string{dimensionProbe})
		if err != nil {
			return nil, NewError("load", e.Model(), err)
		}
		if len(vecs[0]) == 0 {
			return nil, NewError("load", e.Model(), fmt.Errorf("API returned an empty vector"))
		}
		e.dim = len(vecs[0])
	}

	return e, nil
}

func (e *OpenAIEmbedder) Model() string { return "openai/" + e.config.Model }

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Embed embeds a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in batches, preserving input order
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkInputs(texts); err != nil {
		return nil, NewError("embed", e.Model(), err)
	}

	all := make([][]float32, 0, len(texts))
	batchSize := e.config.BatchSize

	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, NewError("embed", e.Model(), err)
		}

		vecs, err := e.createEmbeddingBatch(ctx, texts[i:end])
		if err != nil {
			return nil, NewError("embed", e.Model(), fmt.Errorf("batch %d: %w", i/batchSize, err))
		}
		for _, v := range vecs {
			if err := Validate(v, e.dim); err != nil {
				return nil, NewError("embed", e.Model(), err)
			}
		}
		all = append(all, vecs...)
	}

	return all, nil
}

// createEmbeddingBatch creates embeddings for a single batch
func (e *OpenAIEmbedder) createEmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{
		Model:          e.config.Model,
		Input:          texts,
		Dimensions:     e.config.Dimensions,
		EncodingFormat: "float",
		ExtraBody:      e.extraBody,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(e.config.APIBase, "/") + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	start := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		observability.ObserveExternal("openai", "embeddings", 0, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("openai", "embeddings", resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API request failed with status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("API returned %d embeddings for %d inputs", len(result.Data), len(texts))
	}

	// Extract embeddings in order
	embeddings := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("API returned out-of-range index %d", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("API returned no embedding for input %d", i)
		}
	}

	e.log.Debug().
		Int("count", len(embeddings)).
		Str("model", result.Model).
		Int("tokens", result.Usage.TotalTokens).
		Msg("created embeddings")

	return embeddings, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
