// Package config loads grampsindex settings from defaults, YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gramps-project/grampsindex/internal/docstore"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// FileName is the project config file looked up in the working directory.
const FileName = "grampsindex.yaml"

// TreePlaceholder in database.path is replaced by the tree id.
const TreePlaceholder = "{tree}"

// Config is the complete grampsindex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// DatabaseConfig locates the Gramps SQLite database of each tree.
type DatabaseConfig struct {
	// Path is used for trees without an entry in Trees. It may contain
	// {tree}, e.g. /srv/gramps/{tree}/sqlite.db.
	Path  string            `yaml:"path" json:"path"`
	Trees map[string]string `yaml:"trees" json:"trees"`
}

// IndexConfig selects where collections are stored.
type IndexConfig struct {
	// URI is memory://, bleve:///dir or sqlite:///file.db.
	URI string `yaml:"uri" json:"uri"`
	// LockDir holds the per-tree reindex lock files; defaults to the
	// index directory, or the temp dir for in-memory indexes.
	LockDir string `yaml:"lock_dir" json:"lock_dir"`
}

// EmbeddingsConfig configures semantic search. An empty Model disables it.
type EmbeddingsConfig struct {
	Model      string        `yaml:"model" json:"model"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	APIKey     string        `yaml:"api_key" json:"-"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	CacheDir   string        `yaml:"cache_dir" json:"cache_dir"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	PageSize int `yaml:"page_size" json:"page_size"`
	// MaxResults caps max_results of the assistant search tool.
	MaxResults int `yaml:"max_results" json:"max_results"`
	// ContextBudget caps the characters returned to the assistant.
	ContextBudget int `yaml:"context_budget" json:"context_budget"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce    string `yaml:"debounce" json:"debounce"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// ServerConfig configures logging and the assistant tool server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Path:  "sqlite.db",
			Trees: map[string]string{},
		},
		Embeddings: EmbeddingsConfig{
			BatchSize: 32,
			Timeout:   60 * time.Second,
			CacheDir:  defaultCacheDir(),
		},
		Search: SearchConfig{
			PageSize:      20,
			MaxResults:    50,
			ContextBudget: 16000,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "grampsindex", "models")
	}
	return filepath.Join(os.TempDir(), "grampsindex", "models")
}

// GetUserConfigPath follows the XDG base directory convention:
// $XDG_CONFIG_HOME/grampsindex/config.yaml or ~/.config/grampsindex/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "grampsindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "grampsindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "grampsindex", "config.yaml")
}

// Load applies, in order of increasing precedence:
//  1. defaults
//  2. the user config file
//  3. path, or $GRAMPSINDEX_CONFIG, or ./grampsindex.yaml
//  4. environment variables
//
// An explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if user := GetUserConfigPath(); fileExists(user) {
		if err := cfg.loadYAML(user); err != nil {
			return nil, err
		}
	}

	explicit := true
	if path == "" {
		path = os.Getenv("GRAMPSINDEX_CONFIG")
	}
	if path == "" {
		path, explicit = FileName, false
	}
	switch {
	case fileExists(path):
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	case explicit:
		return nil, gerrors.New(gerrors.ErrCodeConfigNotFound, "config file not found: "+path, nil)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return gerrors.IOError("failed to read config file "+path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return gerrors.ConfigError("failed to parse config file "+path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies the non-zero values of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	for tree, path := range other.Database.Trees {
		if c.Database.Trees == nil {
			c.Database.Trees = map[string]string{}
		}
		c.Database.Trees[tree] = path
	}

	if other.Index.URI != "" {
		c.Index.URI = other.Index.URI
	}
	if other.Index.LockDir != "" {
		c.Index.LockDir = other.Index.LockDir
	}

	e := other.Embeddings
	if e.Model != "" {
		c.Embeddings.Model = e.Model
	}
	if e.BaseURL != "" {
		c.Embeddings.BaseURL = e.BaseURL
	}
	if e.APIKey != "" {
		c.Embeddings.APIKey = e.APIKey
	}
	if e.Dimensions != 0 {
		c.Embeddings.Dimensions = e.Dimensions
	}
	if e.BatchSize != 0 {
		c.Embeddings.BatchSize = e.BatchSize
	}
	if e.Timeout != 0 {
		c.Embeddings.Timeout = e.Timeout
	}
	if e.CacheDir != "" {
		c.Embeddings.CacheDir = e.CacheDir
	}

	if other.Search.PageSize != 0 {
		c.Search.PageSize = other.Search.PageSize
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.ContextBudget != 0 {
		c.Search.ContextBudget = other.Search.ContextBudget
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.MetricsAddr != "" {
		c.Watch.MetricsAddr = other.Watch.MetricsAddr
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides reads the deployment variables shared with the web
// API and the GRAMPSINDEX_* variables.
func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv("SEARCH_INDEX_DB_URI"); ok {
		c.Index.URI = v
	}
	// Set but empty disables semantic search.
	if v, ok := os.LookupEnv("VECTOR_EMBEDDING_MODEL"); ok {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("VECTOR_EMBEDDING_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("VECTOR_EMBEDDING_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("VECTOR_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("GRAMPSINDEX_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("GRAMPSINDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("GRAMPSINDEX_METRICS_ADDR"); v != "" {
		c.Watch.MetricsAddr = v
	}
}

// DatabasePath returns the Gramps database file of tree.
func (c *Config) DatabasePath(tree string) string {
	if p, ok := c.Database.Trees[tree]; ok {
		return p
	}
	return strings.ReplaceAll(c.Database.Path, TreePlaceholder, tree)
}

// Trees lists the trees named in database.trees, sorted.
func (c *Config) Trees() []string {
	out := make([]string, 0, len(c.Database.Trees))
	for t := range c.Database.Trees {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DebounceDuration parses watch.debounce.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// LockDir returns the directory of the reindex lock files.
func (c *Config) LockDir() string {
	if c.Index.LockDir != "" {
		return c.Index.LockDir
	}
	loc, err := docstore.ParseURI(c.Index.URI)
	if err == nil {
		switch loc.Backend {
		case docstore.BackendBleve:
			return loc.Path
		case docstore.BackendSQLite:
			return filepath.Dir(loc.Path)
		}
	}
	return filepath.Join(os.TempDir(), "grampsindex")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := docstore.ParseURI(c.Index.URI); err != nil {
		return err
	}
	if c.Database.Path == "" && len(c.Database.Trees) == 0 {
		return gerrors.ConfigError("database.path must not be empty", nil)
	}
	if c.Search.PageSize < 1 {
		return gerrors.ConfigError(fmt.Sprintf("search.page_size must be positive, got %d", c.Search.PageSize), nil)
	}
	if c.Search.MaxResults < 1 {
		return gerrors.ConfigError(fmt.Sprintf("search.max_results must be positive, got %d", c.Search.MaxResults), nil)
	}
	if c.Search.ContextBudget < 1 {
		return gerrors.ConfigError(fmt.Sprintf("search.context_budget must be positive, got %d", c.Search.ContextBudget), nil)
	}
	if c.Embeddings.BatchSize < 0 || c.Embeddings.Dimensions < 0 {
		return gerrors.ConfigError("embeddings.batch_size and embeddings.dimensions must not be negative", nil)
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return gerrors.ConfigError("watch.debounce is not a duration: "+c.Watch.Debounce, err)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return gerrors.ConfigError("server.transport must be 'stdio' or 'sse', got "+c.Server.Transport, nil)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return gerrors.ConfigError("server.log_level must be 'debug', 'info', 'warn', or 'error', got "+c.Server.LogLevel, nil)
	}
	return nil
}

// WriteYAML writes the configuration to path, backing up an existing
// file first.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if fileExists(path) {
		if _, err := BackupFile(path); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
