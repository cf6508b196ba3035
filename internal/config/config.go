package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/agenthands/adb-query-runner/internal/apperror"
)

// Store kinds.
const (
	StoreArangoDB = "arangodb"
	StoreBolt     = "bolt"
)

// Parameter types accepted in query definitions.
const (
	ParamString  = "string"
	ParamNumber  = "number"
	ParamBoolean = "boolean"
)

const (
	DefaultPort              = "3030"
	DefaultCytoscapeURL      = "http://localhost:1234/v1"
	DefaultNetworkName       = "ArangoDB Graph"
	DefaultLayout            = "force-directed"
	DefaultColumnConcurrency = 4
	DefaultCytoscapeTimeout  = 30
	DefaultRequestTimeout    = 120
)

type ServerConfig struct {
	Port string `toml:"port"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type StoreConfig struct {
	Kind      string `toml:"kind"`
	Endpoint  string `toml:"endpoint"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	BatchSize int    `toml:"batch_size"`
}

type CytoscapeConfig struct {
	BaseURL           string `toml:"base_url"`
	NetworkName       string `toml:"network_name"`
	Layout            string `toml:"layout"`
	ColumnConcurrency int    `toml:"column_concurrency"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

type PipelineConfig struct {
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

type QueryParameter struct {
	Name string `toml:"name" json:"name"`
	Type string `toml:"type" json:"type"`
}

type QueryDefinition struct {
	Name        string           `toml:"name" json:"name"`
	Description string           `toml:"description" json:"description"`
	Query       string           `toml:"query" json:"query"`
	Parameters  []QueryParameter `toml:"parameters" json:"parameters"`
}

type Config struct {
	Server    ServerConfig      `toml:"server"`
	Log       LogConfig         `toml:"log"`
	Store     StoreConfig       `toml:"store"`
	Cytoscape CytoscapeConfig   `toml:"cytoscape"`
	Pipeline  PipelineConfig    `toml:"pipeline"`
	Queries   []QueryDefinition `toml:"queries"`
}

// Load reads the TOML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", path)
	}

	return Parse(data)
}

// Parse decodes TOML bytes, applies environment overrides and defaults, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse TOML")
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ARANGODB_ENDPOINT"); v != "" {
		c.Store.Endpoint = v
	}
	if v := os.Getenv("ARANGODB_USERNAME"); v != "" {
		c.Store.Username = v
	}
	if v := os.Getenv("ARANGODB_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("CYTOSCAPE_URL"); v != "" {
		c.Cytoscape.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreArangoDB
	}
	if c.Cytoscape.BaseURL == "" {
		c.Cytoscape.BaseURL = DefaultCytoscapeURL
	}
	if c.Cytoscape.NetworkName == "" {
		c.Cytoscape.NetworkName = DefaultNetworkName
	}
	if c.Cytoscape.Layout == "" {
		c.Cytoscape.Layout = DefaultLayout
	}
	if c.Cytoscape.ColumnConcurrency <= 0 {
		c.Cytoscape.ColumnConcurrency = DefaultColumnConcurrency
	}
	if c.Cytoscape.TimeoutSeconds <= 0 {
		c.Cytoscape.TimeoutSeconds = DefaultCytoscapeTimeout
	}
	if c.Pipeline.RequestTimeoutSeconds <= 0 {
		c.Pipeline.RequestTimeoutSeconds = DefaultRequestTimeout
	}
	for i := range c.Queries {
		for j := range c.Queries[i].Parameters {
			if c.Queries[i].Parameters[j].Type == "" {
				c.Queries[i].Parameters[j].Type = ParamString
			}
		}
	}
}

func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreArangoDB, StoreBolt:
	default:
		return fmt.Errorf("unsupported store kind: %s", c.Store.Kind)
	}
	if c.Store.Endpoint == "" {
		return fmt.Errorf("store endpoint is required")
	}
	if c.Store.BatchSize < 0 {
		return fmt.Errorf("store batch_size must not be negative")
	}

	names := make(map[string]bool, len(c.Queries))
	for i, q := range c.Queries {
		if q.Name == "" {
			return fmt.Errorf("query %d: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("query %q is defined more than once", q.Name)
		}
		names[q.Name] = true
		if strings.TrimSpace(q.Query) == "" {
			return fmt.Errorf("query %q: query text is required", q.Name)
		}
		for _, p := range q.Parameters {
			if p.Name == "" {
				return fmt.Errorf("query %q: parameter without name", q.Name)
			}
			switch p.Type {
			case ParamString, ParamNumber, ParamBoolean:
			default:
				return fmt.Errorf("query %q: parameter %q has unsupported type %q", q.Name, p.Name, p.Type)
			}
		}
	}
	return nil
}

// Query returns the definition at index.
func (c *Config) Query(index int) (QueryDefinition, bool) {
	if index < 0 || index >= len(c.Queries) {
		return QueryDefinition{}, false
	}
	return c.Queries[index], true
}

// ParameterType returns the declared type of the named parameter, defaulting
// to string for undeclared names.
func (q QueryDefinition) ParameterType(name string) string {
	for _, p := range q.Parameters {
		if p.Name == name {
			return p.Type
		}
	}
	return ParamString
}

// BindVars converts raw form values into typed bind variables following the
// declared parameter types.
func (q QueryDefinition) BindVars(values map[string]string) (map[string]any, error) {
	bindVars := make(map[string]any, len(values))
	for name, raw := range values {
		switch q.ParameterType(name) {
		case ParamNumber:
			trimmed := strings.TrimSpace(raw)
			if _, err := strconv.ParseFloat(trimmed, 64); err != nil || !json.Valid([]byte(trimmed)) {
				return nil, apperror.InvalidParameter(name, fmt.Sprintf("%q is not a number", raw))
			}
			bindVars[name] = json.Number(trimmed)
		case ParamBoolean:
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return nil, apperror.InvalidParameter(name, fmt.Sprintf("%q is not a boolean", raw))
			}
			bindVars[name] = b
		default:
			bindVars[name] = raw
		}
	}
	return bindVars, nil
}
