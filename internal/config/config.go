package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CODEMIND_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: CODEMIND_VECTOR_BACKEND -> vector_backend, etc.
	if err := k.Load(env.Provider("CODEMIND_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CODEMIND_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.applyDerivedDefaults()
	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validVectorBackends is the set of recognized vector backend values.
var validVectorBackends = map[VectorBackendKind]bool{
	VectorPostgres: true,
	VectorChromem:  true,
	VectorFlat:     true,
}

// validMetadataStores is the set of recognized metadata store values.
var validMetadataStores = map[MetadataStoreKind]bool{
	MetadataPostgres: true,
	MetadataMongo:    true,
	MetadataSQLite:   true,
}

// Validate checks that the configuration contains valid values.
// Required connection settings are checked here, eagerly, so a
// misconfigured store fails at startup rather than on first use.
func (c *Config) Validate() error {
	if !validVectorBackends[c.VectorBackend] {
		return fmt.Errorf("invalid vector_backend %q: must be one of postgres, chromem, flat", c.VectorBackend)
	}
	if !validMetadataStores[c.MetadataStore] {
		return fmt.Errorf("invalid metadata_store %q: must be one of postgres, mongo, sqlite", c.MetadataStore)
	}

	if c.VectorBackend == VectorPostgres || c.MetadataStore == MetadataPostgres {
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when a postgres backend is selected")
		}
	}
	if c.MetadataStore == MetadataMongo && c.MongoURI == "" {
		return fmt.Errorf("mongo_uri is required when metadata_store is mongo")
	}

	switch c.EmbeddingProvider {
	case EmbeddingOpenAI, EmbeddingOllama:
	case "":
		return fmt.Errorf("embedding_provider is required")
	default:
		return fmt.Errorf("invalid embedding_provider %q: must be one of openai, ollama", c.EmbeddingProvider)
	}

	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding_dimensions must be positive")
	}
	if c.CandidateK <= 0 {
		return fmt.Errorf("candidate_k must be positive")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.MaxIndexWorkers <= 0 {
		return fmt.Errorf("max_index_workers must be positive")
	}

	return nil
}
