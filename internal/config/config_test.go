package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag-core/internal/apperr"
)

const validYAML = `
graph:
  endpoint: "postgres://localhost:5432"
  username: "graphrag"
  password: "secret"
  database: "graphrag"
vector:
  indexName: "chunk_embedding_idx"
  dimension: 384
embedding:
  modelId: "sentence-transformers/all-MiniLM-L6-v2"
retrieval:
  defaultLimit: 5
  maxLimit: 50
timeout:
  perCallMillis: 3000
log:
  configPath: "/etc/graphrag/log.yaml"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 384, cfg.Vector.Dimension)
	assert.Equal(t, 5, cfg.Retrieval.DefaultLimit)
}

func TestLoadMissingRequiredKey(t *testing.T) {
	path := writeTemp(t, "graph:\n  endpoint: \"x\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConfigMissing, apperr.CodeOf(err))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTemp(t, "graph: [this is not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConfigInvalid, apperr.CodeOf(err))
}

func TestLoadMissingPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConfigMissing, apperr.CodeOf(err))
}

func TestEnvPasswordOverride(t *testing.T) {
	path := writeTemp(t, validYAML)
	t.Setenv(EnvGraphPassword, "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Graph.Password)
}

func TestClampLimit(t *testing.T) {
	cfg := &Config{Retrieval: RetrievalConfig{DefaultLimit: 5, MaxLimit: 50}}
	assert.Equal(t, 5, cfg.ClampLimit(0))
	assert.Equal(t, 50, cfg.ClampLimit(1000))
	assert.Equal(t, 10, cfg.ClampLimit(10))
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/env/path.yaml")
	assert.Equal(t, "/explicit.yaml", ResolvePath("/explicit.yaml"))
	assert.Equal(t, "/env/path.yaml", ResolvePath(""))
}
