package config

// VectorBackendKind identifies which vector-search backend serves queries.
type VectorBackendKind string

const (
	VectorPostgres VectorBackendKind = "postgres"
	VectorChromem  VectorBackendKind = "chromem"
	VectorFlat     VectorBackendKind = "flat"
)

// MetadataStoreKind identifies which store persists indexing-job records.
type MetadataStoreKind string

const (
	MetadataPostgres MetadataStoreKind = "postgres"
	MetadataMongo    MetadataStoreKind = "mongo"
	MetadataSQLite   MetadataStoreKind = "sqlite"
)

// EmbeddingProviderType identifies the embedding provider.
type EmbeddingProviderType string

const (
	EmbeddingOpenAI EmbeddingProviderType = "openai"
	EmbeddingOllama EmbeddingProviderType = "ollama"
)

// Config is the top-level codemind configuration, corresponding to .codemind.yml.
type Config struct {
	Port    int    `yaml:"port" koanf:"port"`
	DataDir string `yaml:"data_dir" koanf:"data_dir"`

	VectorBackend VectorBackendKind `yaml:"vector_backend" koanf:"vector_backend"`
	MetadataStore MetadataStoreKind `yaml:"metadata_store" koanf:"metadata_store"`

	DatabaseURL   string `yaml:"database_url" koanf:"database_url"`
	MongoURI      string `yaml:"mongo_uri" koanf:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database" koanf:"mongo_database"`
	SQLitePath    string `yaml:"sqlite_path" koanf:"sqlite_path"`

	EmbeddingProvider   EmbeddingProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string                `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int                   `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
	OllamaBaseURL       string                `yaml:"ollama_base_url" koanf:"ollama_base_url"`

	CandidateK int `yaml:"candidate_k" koanf:"candidate_k"`
	TopK       int `yaml:"top_k" koanf:"top_k"`

	MaxIndexWorkers int    `yaml:"max_index_workers" koanf:"max_index_workers"`
	CheckoutRoot    string `yaml:"checkout_root" koanf:"checkout_root"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
