package embeddings

import (
	"fmt"
	"os"

	"codemind/internal/config"
)

// FromConfig constructs the embedder selected by the configuration.
func FromConfig(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return NewOpenAIEmbedder(apiKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions), nil
	case config.EmbeddingOllama:
		return NewOllamaEmbedder(cfg.EmbeddingModel, cfg.EmbeddingDimensions, cfg.OllamaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}
