package rag

import (
	"context"
	"fmt"

	infraopenai "github.com/deepgram/chatform/internal/infrastructure/openai"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentBatches = 4

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, apiKey string, texts []string) ([][]float32, error)
}

// OpenAIEmbedder embeds through the OpenAI embeddings endpoint, splitting
// large inputs into batches sent in parallel.
type OpenAIEmbedder struct {
	openAI    *infraopenai.Service
	model     string
	batchSize int
}

func NewOpenAIEmbedder(openAIService *infraopenai.Service, model string, batchSize int) *OpenAIEmbedder {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &OpenAIEmbedder{
		openAI:    openAIService,
		model:     model,
		batchSize: batchSize,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, apiKey string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	client := e.openAI.GetClient(apiKey)
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		start, batch := start, texts[start:end]
		g.Go(func() error {
			resp, err := client.CreateEmbeddings(gctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(e.model),
			})
			if err != nil {
				return fmt.Errorf("failed to create embeddings: %w", err)
			}
			if len(resp.Data) != len(batch) {
				return fmt.Errorf("embedding count mismatch: sent %d, received %d", len(batch), len(resp.Data))
			}
			for i, d := range resp.Data {
				idx := i
				if d.Index >= 0 && d.Index < len(batch) {
					idx = d.Index
				}
				vectors[start+idx] = d.Embedding
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
