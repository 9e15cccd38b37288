package embedding

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"hotelchat/internal/observability"
)

// ContentEmbedder is the subset of genai.Models used for embeddings
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Ensure genai.Models satisfies ContentEmbedder at compile time.
var _ ContentEmbedder = (*genai.Models)(nil)

// GeminiEmbedder embeds text with a Gemini embedding model
type GeminiEmbedder struct {
	models    ContentEmbedder
	modelName string
	dim       int
	batchSize int
}

// NewGeminiEmbedder creates a Gemini embedder.
// dim of 0 keeps the model's native output size, learned with one probe call.
func NewGeminiEmbedder(ctx context.Context, models ContentEmbedder, modelName string, dim, batchSize int) (*GeminiEmbedder, error) {
	if batchSize <= 0 {
		batchSize = 64
	}
	e := &GeminiEmbedder{models: models, modelName: modelName, dim: dim, batchSize: batchSize}
	if dim == 0 {
		vecs, err := e.embedBatch(ctx, []string{dimensionProbe})
		if err != nil {
			return nil, NewError("load", e.Model(), err)
		}
		e.dim = len(vecs[0])
	}
	return e, nil
}

// NewGeminiEmbedderFromKey connects to the Gemini API and creates an embedder
func NewGeminiEmbedderFromKey(ctx context.Context, apiKey, modelName string, dim, batchSize int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, NewError("load", "gemini/"+modelName, fmt.Errorf("%w: missing API key", ErrUnavailable))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewError("load", "gemini/"+modelName, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return NewGeminiEmbedder(ctx, client.Models, modelName, dim, batchSize)
}

func (e *GeminiEmbedder) Model() string { return "gemini/" + e.modelName }

func (e *GeminiEmbedder) Dimension() int { return e.dim }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GeminiEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkInputs(texts); err != nil {
		return nil, NewError("embed", e.Model(), err)
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, NewError("embed", e.Model(), err)
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

func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	cfg := &genai.EmbedContentConfig{}
	if e.dim > 0 {
		d := int32(e.dim)
		cfg.OutputDimensionality = &d
	}

	start := time.Now()
	result, err := e.models.EmbedContent(ctx, e.modelName, contents, cfg)
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("gemini", "embed_content", status, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), countEmbeddings(result))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding vector for input %d", i)
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}

func countEmbeddings(r *genai.EmbedContentResponse) int {
	if r == nil {
		return 0
	}
	return len(r.Embeddings)
}
