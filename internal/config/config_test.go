package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/adb-query-runner/internal/apperror"
)

const sampleTOML = `
[store]
endpoint = "http://localhost:8529/"
username = "root"
password = "secret"

[[queries]]
name = "neighbours"
description = "Edges around a vertex"
query = "FOR v, e IN 1..@depth ANY @start GRAPH 'g' RETURN e"

[[queries.parameters]]
name = "start"
type = "string"

[[queries.parameters]]
name = "depth"
type = "number"

[[queries.parameters]]
name = "directed"
type = "boolean"
`

func clearEnv(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "ARANGODB_ENDPOINT", "ARANGODB_USERNAME", "ARANGODB_PASSWORD", "CYTOSCAPE_URL"} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8529/", cfg.Store.Endpoint)
	assert.Equal(t, "secret", cfg.Store.Password)
	assert.Equal(t, StoreArangoDB, cfg.Store.Kind)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultCytoscapeURL, cfg.Cytoscape.BaseURL)
	assert.Equal(t, DefaultLayout, cfg.Cytoscape.Layout)
	assert.Equal(t, DefaultColumnConcurrency, cfg.Cytoscape.ColumnConcurrency)
	require.Len(t, cfg.Queries, 1)
	assert.Len(t, cfg.Queries[0].Parameters, 3)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARANGODB_ENDPOINT", "http://arango:8529/")
	t.Setenv("ARANGODB_PASSWORD", "from-env")
	t.Setenv("CYTOSCAPE_URL", "http://cy:1234/v1")
	t.Setenv("PORT", "9000")

	cfg, err := Parse([]byte(sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, "http://arango:8529/", cfg.Store.Endpoint)
	assert.Equal(t, "from-env", cfg.Store.Password)
	assert.Equal(t, "root", cfg.Store.Username)
	assert.Equal(t, "http://cy:1234/v1", cfg.Cytoscape.BaseURL)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestParse_Invalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"bad toml":       `[store`,
		"no endpoint":    `[store]` + "\n" + `username = "root"`,
		"bad kind":       "[store]\nkind = \"redis\"\nendpoint = \"x\"",
		"bad param type": "[store]\nendpoint = \"x\"\n[[queries]]\nname = \"q\"\nquery = \"RETURN 1\"\n[[queries.parameters]]\nname = \"p\"\ntype = \"date\"",
		"duplicate name": "[store]\nendpoint = \"x\"\n[[queries]]\nname = \"q\"\nquery = \"RETURN 1\"\n[[queries]]\nname = \"q\"\nquery = \"RETURN 2\"",
		"empty query":    "[store]\nendpoint = \"x\"\n[[queries]]\nname = \"q\"\nquery = \"  \"",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_UntypedParameterDefaultsToString(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("[store]\nendpoint = \"x\"\n[[queries]]\nname = \"q\"\nquery = \"RETURN @p\"\n[[queries.parameters]]\nname = \"p\""))
	require.NoError(t, err)
	assert.Equal(t, ParamString, cfg.Queries[0].Parameters[0].Type)
}

func TestQuery(t *testing.T) {
	cfg := &Config{Queries: []QueryDefinition{{Name: "a"}, {Name: "b"}}}

	q, ok := cfg.Query(1)
	assert.True(t, ok)
	assert.Equal(t, "b", q.Name)

	_, ok = cfg.Query(2)
	assert.False(t, ok)
	_, ok = cfg.Query(-1)
	assert.False(t, ok)
}

func TestBindVars(t *testing.T) {
	q := QueryDefinition{Parameters: []QueryParameter{
		{Name: "start", Type: ParamString},
		{Name: "depth", Type: ParamNumber},
		{Name: "directed", Type: ParamBoolean},
	}}

	vars, err := q.BindVars(map[string]string{
		"start":    "v/1",
		"depth":    " 2 ",
		"directed": "true",
		"extra":    "42",
	})
	require.NoError(t, err)
	assert.Equal(t, "v/1", vars["start"])
	assert.Equal(t, json.Number("2"), vars["depth"])
	assert.Equal(t, true, vars["directed"])
	assert.Equal(t, "42", vars["extra"])

	raw, err := json.Marshal(vars)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"v/1","depth":2,"directed":true,"extra":"42"}`, string(raw))
}

func TestBindVars_Invalid(t *testing.T) {
	q := QueryDefinition{Parameters: []QueryParameter{
		{Name: "depth", Type: ParamNumber},
		{Name: "directed", Type: ParamBoolean},
	}}

	for _, values := range []map[string]string{
		{"depth": "two"},
		{"depth": "NaN"},
		{"depth": "0x10"},
		{"directed": "maybe"},
	} {
		_, err := q.BindVars(values)
		require.Error(t, err)
		assert.Equal(t, apperror.KindInvalidParameter, apperror.KindOf(err))
	}
}
