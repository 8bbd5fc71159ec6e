// Package config loads and validates the Config data carrier: graph
// endpoint/credentials, vector index settings, embedding model id,
// retrieval limits, timeouts, and log sink path, read from YAML via
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at the
// config file when --config is not given.
const EnvConfigPath = "APP_CONFIG_PATH"

// EnvGraphPassword overrides graph.password from the environment, so
// credentials never have to live in the config file on disk.
const EnvGraphPassword = "GRAPHRAG_GRAPH_PASSWORD"

// GraphConfig holds the graph endpoint and credentials.
type GraphConfig struct {
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// VectorConfig identifies the vector index and its declared dimension.
type VectorConfig struct {
	IndexName string `yaml:"indexName"`
	Dimension int    `yaml:"dimension"`
}

// EmbeddingConfig names the sentence-embedding model to load.
type EmbeddingConfig struct {
	ModelID string `yaml:"modelId"`
}

// RetrievalConfig holds the default/maximum result cap.
type RetrievalConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// TimeoutConfig holds the per-call timeout budget.
type TimeoutConfig struct {
	PerCallMillis int `yaml:"perCallMillis"`
}

// LogConfig points at the external log sink's own configuration,
// consumed only at its interface.
type LogConfig struct {
	ConfigPath string `yaml:"configPath"`
}

// Config is a pure data carrier. It is validated once at construction
// and never mutated afterward.
type Config struct {
	Graph     GraphConfig     `yaml:"graph"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Timeout   TimeoutConfig   `yaml:"timeout"`
	Log       LogConfig       `yaml:"log"`
}

// ResolvePath returns explicit (if non-empty), then $APP_CONFIG_PATH,
// then "" if neither is set.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(EnvConfigPath)
}

// Load reads and validates the config file at path. Syntactically
// invalid YAML fails with 1002; a missing required key fails with
// 1001. graph.password is overridden from EnvGraphPassword when set.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, apperr.New(apperr.CodeConfigMissing, "no config path given (set --config or "+EnvConfigPath+")", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfigMissing, fmt.Errorf("read config %s: %w", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, fmt.Errorf("parse config %s: %w", path, err))
	}

	if pw := os.Getenv(EnvGraphPassword); pw != "" {
		cfg.Graph.Password = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the required-key set.
func (c *Config) Validate() error {
	missing := func(key string) *apperr.Error {
		return apperr.New(apperr.CodeConfigMissing, "required config key absent: "+key, nil)
	}

	switch {
	case c.Graph.Endpoint == "":
		return missing("graph.endpoint")
	case c.Graph.Username == "":
		return missing("graph.username")
	case c.Graph.Database == "":
		return missing("graph.database")
	case c.Vector.IndexName == "":
		return missing("vector.indexName")
	case c.Vector.Dimension == 0:
		return missing("vector.dimension")
	case c.Vector.Dimension < 0:
		return apperr.New(apperr.CodeConfigInvalid, "vector.dimension must be positive", nil)
	case c.Embedding.ModelID == "":
		return missing("embedding.modelId")
	}

	if c.Retrieval.DefaultLimit <= 0 {
		c.Retrieval.DefaultLimit = 5
	}
	if c.Retrieval.MaxLimit <= 0 {
		c.Retrieval.MaxLimit = 50
	}
	if c.Retrieval.DefaultLimit > c.Retrieval.MaxLimit {
		return apperr.New(apperr.CodeConfigInvalid, "retrieval.defaultLimit exceeds retrieval.maxLimit", nil)
	}
	if c.Timeout.PerCallMillis <= 0 {
		c.Timeout.PerCallMillis = 5000
	}

	return nil
}

// ClampLimit applies the §3 invariant 4 clamp: absent limit uses the
// configured default; out-of-range limits are clamped, never errored
// (B3).
func (c *Config) ClampLimit(requested int) int {
	if requested <= 0 {
		return c.Retrieval.DefaultLimit
	}
	if requested > c.Retrieval.MaxLimit {
		return c.Retrieval.MaxLimit
	}
	return requested
}
