package config

import "path/filepath"

// DefaultConfig returns a Config populated with sensible defaults.
// The metadata store is left empty so Load can derive it from the
// selected vector backend when the user doesn't set it explicitly.
func DefaultConfig() *Config {
	return &Config{
		Port:                8000,
		DataDir:             "./data",
		VectorBackend:       VectorPostgres,
		EmbeddingProvider:   EmbeddingOllama,
		EmbeddingModel:      "all-minilm",
		EmbeddingDimensions: 384,
		CandidateK:          50,
		TopK:                25,
		MaxIndexWorkers:     4,
	}
}

// deriveMetadataStore picks the default metadata store that pairs naturally
// with each vector backend: the flat in-memory backend runs alongside a
// document store, the chromem backend keeps everything embedded, and the
// postgres backend reuses the same database for job records.
func deriveMetadataStore(backend VectorBackendKind) MetadataStoreKind {
	switch backend {
	case VectorChromem:
		return MetadataSQLite
	case VectorFlat:
		return MetadataMongo
	default:
		return MetadataPostgres
	}
}

// applyDerivedDefaults fills path-like settings relative to DataDir
// and the metadata store pairing, after the file/env overlay.
func (c *Config) applyDerivedDefaults() {
	if c.MetadataStore == "" {
		c.MetadataStore = deriveMetadataStore(c.VectorBackend)
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, "codemind.db")
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "codemind"
	}
	if c.CheckoutRoot == "" {
		c.CheckoutRoot = filepath.Join(c.DataDir, "repos")
	}
}

// FlatIndexPath returns the base path for the flat backend's companion
// artifacts (.index and .meta files are derived from it).
func (c *Config) FlatIndexPath() string {
	return filepath.Join(c.DataDir, "flat_index")
}

// ChromemPath returns the directory for the chromem persistent collection.
func (c *Config) ChromemPath() string {
	return filepath.Join(c.DataDir, "chromem")
}
