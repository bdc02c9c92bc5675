package llm

import (
	"context"
	"fmt"
	"math"

	"coachly/internal/config"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for insight synthesis.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the embedding output dimension. It must
	// match the dimension used at ingestion time: mixing embedding spaces
	// invalidates cosine comparisons.
	DefaultEmbeddingDimensions = int32(1536)
)

// Client wraps the Gemini SDK for text generation and embeddings.
type Client struct {
	modelName      string
	embeddingModel string
	embeddingDims  int32
	gClient        *genai.Client
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	SystemInstruction string  // Optional system prompt
	Temperature       float32 // 0 means the model default
	MaxTokens         int32   // 0 means the model default
}

// NewClient creates a Gemini client from injected configuration. It returns
// an error when no API key is configured; callers that can degrade (the
// digest generator) treat that as the unconfigured-backend condition.
func NewClient(cfg config.GeminiConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY or ai.gemini.api_key)")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	embeddingDims := cfg.EmbeddingDimensions
	if embeddingDims == 0 {
		embeddingDims = DefaultEmbeddingDimensions
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      modelName,
		embeddingModel: embeddingModel,
		embeddingDims:  embeddingDims,
		gClient:        gClient,
	}, nil
}

// GenerateText generates text from a prompt with the given options.
func (c *Client) GenerateText(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	var genConfig *genai.GenerateContentConfig
	if options.SystemInstruction != "" || options.Temperature > 0 || options.MaxTokens > 0 {
		genConfig = &genai.GenerateContentConfig{}
		if options.SystemInstruction != "" {
			genConfig.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: options.SystemInstruction}},
			}
		}
		if options.Temperature > 0 {
			temp := options.Temperature
			genConfig.Temperature = &temp
		}
		if options.MaxTokens > 0 {
			genConfig.MaxOutputTokens = options.MaxTokens
		}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return text, nil
}

// GenerateEmbedding generates a vector embedding for the given text. The
// output dimensionality is pinned by configuration so query embeddings live
// in the same space as the stored chunk embeddings.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := c.embeddingDims
	embedConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, val := range values {
		embedding[i] = float64(val)
	}

	return embedding, nil
}

// ModelName returns the generation model the client is configured with.
func (c *Client) ModelName() string {
	return c.modelName
}

// CosineSimilarity calculates the cosine similarity between two embeddings.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
