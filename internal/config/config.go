// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ragchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Transport selects and tunes the backend connection.
	Transport TransportConfig `toml:"transport" json:"transport"`

	// HTTP holds the endpoints used by the http transport.
	HTTP HTTPConfig `toml:"http" json:"http"`

	// Model and RAG are the initial backend settings for a session.
	Model model.ModelConfig `toml:"model" json:"model"`
	RAG   model.RAGConfig   `toml:"rag" json:"rag"`

	UI      UIConfig      `toml:"ui" json:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	History HistoryConfig `toml:"history" json:"history"`
}

// TransportConfig contains connection settings.
type TransportConfig struct {
	// Kind is "websocket", "http" or "mock".
	Kind string `toml:"kind" json:"kind"`
	// URL is the websocket address.
	URL string `toml:"url" json:"url"`
	// ReconnectDelayMs is the fixed wait before each reconnect attempt.
	ReconnectDelayMs int `toml:"reconnect_delay_ms" json:"reconnect_delay_ms"`
	// MaxRetries caps consecutive reconnect attempts (0 = unlimited)
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// DialTimeoutSecs bounds one websocket handshake.
	DialTimeoutSecs int `toml:"dial_timeout_secs" json:"dial_timeout_secs"`
	// UploadTimeoutSecs clears an unconfirmed upload (0 = wait forever)
	UploadTimeoutSecs int `toml:"upload_timeout_secs" json:"upload_timeout_secs"`
}

// HTTPConfig contains the four endpoints of the http transport.
type HTTPConfig struct {
	UploadURL string `toml:"upload_url" json:"upload_url"`
	QueryURL  string `toml:"query_url" json:"query_url"`
	ChunksURL string `toml:"chunks_url" json:"chunks_url"`
	AnswerURL string `toml:"answer_url" json:"answer_url"`
}

// UIConfig contains interface preferences.
type UIConfig struct {
	// Greeting is the first assistant message; "none" disables it.
	Greeting string `toml:"greeting" json:"greeting"`
	// Theme is "dark", "light" or "auto".
	Theme         string `toml:"theme" json:"theme"`
	ShowDocuments bool   `toml:"show_documents" json:"show_documents"`
	ShowMetrics   bool   `toml:"show_metrics" json:"show_metrics"`
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level"`
	// Path is the log file (empty = ~/.ragchat/logs/ragchat.log)
	Path       string `toml:"path" json:"path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress"`
}

// HistoryConfig controls the transcript store.
type HistoryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path is the sqlite database (empty = ~/.ragchat/history.db)
	Path             string `toml:"path" json:"path"`
	MaxConversations int    `toml:"max_conversations" json:"max_conversations"`
}

// GreetingDisabled turns off the opening message.
const GreetingDisabled = "none"

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	ep := transport.DefaultEndpoints()
	return &Config{
		Version: "1.0.0",

		Transport: TransportConfig{
			Kind:              string(transport.KindWebSocket),
			URL:               "ws://localhost:50000",
			ReconnectDelayMs:  1000,
			MaxRetries:        0,
			DialTimeoutSecs:   10,
			UploadTimeoutSecs: 0,
		},

		HTTP: HTTPConfig{
			UploadURL: ep.Upload,
			QueryURL:  ep.Query,
			ChunksURL: ep.Chunks,
			AnswerURL: ep.Answer,
		},

		Model: model.DefaultModelConfig(),
		RAG:   model.DefaultRAGConfig(),

		UI: UIConfig{
			Theme:         "dark",
			ShowDocuments: true,
			ShowMetrics:   true,
		},

		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},

		History: HistoryConfig{
			Enabled:          true,
			MaxConversations: 200,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv relocates the whole ragchat directory.
const HomeEnv = "RAGCHAT_HOME"

// ConfigDir returns the ragchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ragchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the file Load would read, or the TOML path when
// neither exists.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// LogPath resolves the log file location.
func (c *Config) LogPath() (string, error) {
	if c.Logging.Path != "" {
		return c.Logging.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "ragchat.log"), nil
}

// HistoryPath resolves the history database location.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv reads .env files into the process environment. Variables that
// are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func dotEnvPaths() []string {
	paths := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	return paths
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// .env files and environment overrides are applied last.
func Load() (*Config, error) {
	if err := LoadDotEnv(dotEnvPaths()...); err != nil {
		return nil, err
	}

	path, err := ActivePath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	// The model name belongs to the provider; a file that only picks a
	// provider gets that provider's first model from SetDefaults.
	cfg.Model.ModelName = ""

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values a file may have cleared explicitly.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = d.Transport.Kind
	}
	if c.Transport.URL == "" {
		c.Transport.URL = d.Transport.URL
	}
	if c.Transport.ReconnectDelayMs == 0 {
		c.Transport.ReconnectDelayMs = d.Transport.ReconnectDelayMs
	}
	if c.Transport.DialTimeoutSecs == 0 {
		c.Transport.DialTimeoutSecs = d.Transport.DialTimeoutSecs
	}
	if c.HTTP.UploadURL == "" {
		c.HTTP.UploadURL = d.HTTP.UploadURL
	}
	if c.HTTP.QueryURL == "" {
		c.HTTP.QueryURL = d.HTTP.QueryURL
	}
	if c.HTTP.ChunksURL == "" {
		c.HTTP.ChunksURL = d.HTTP.ChunksURL
	}
	if c.HTTP.AnswerURL == "" {
		c.HTTP.AnswerURL = d.HTTP.AnswerURL
	}
	if c.Model.Provider == "" {
		c.Model.Provider = d.Model.Provider
	}
	if c.Model.ModelName == "" {
		endpoint := c.Model.Endpoint
		c.Model = c.Model.WithProvider(c.Model.Provider)
		if endpoint != "" {
			c.Model.Endpoint = endpoint
		}
	}
	if c.RAG.Strategy == "" {
		c.RAG.Strategy = d.RAG.Strategy
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if c.History.MaxConversations == 0 {
		c.History.MaxConversations = d.History.MaxConversations
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with a short header.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# ragchat configuration file\n")
	b.WriteString("# Environment variables (RAGCHAT_*) override these values.\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration atomically as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validThemes = map[string]bool{"dark": true, "light": true, "auto": true}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Transport
	kind, err := transport.ParseKind(c.Transport.Kind)
	if err != nil {
		add("transport.kind", "invalid kind '%s', must be one of: websocket, http, mock", c.Transport.Kind)
	}
	if kind == transport.KindWebSocket {
		if err := validateURL(c.Transport.URL, "ws", "wss"); err != nil {
			add("transport.url", "%v", err)
		}
	}
	if c.Transport.ReconnectDelayMs < 0 {
		add("transport.reconnect_delay_ms", "must not be negative")
	}
	if c.Transport.MaxRetries < 0 {
		add("transport.max_retries", "must not be negative (0 = unlimited)")
	}
	if c.Transport.DialTimeoutSecs < 0 {
		add("transport.dial_timeout_secs", "must not be negative")
	}
	if c.Transport.UploadTimeoutSecs < 0 {
		add("transport.upload_timeout_secs", "must not be negative (0 = disabled)")
	}

	// HTTP endpoints only matter for the http transport
	if kind == transport.KindHTTP {
		endpoints := []struct{ field, value string }{
			{"http.upload_url", c.HTTP.UploadURL},
			{"http.query_url", c.HTTP.QueryURL},
			{"http.chunks_url", c.HTTP.ChunksURL},
			{"http.answer_url", c.HTTP.AnswerURL},
		}
		for _, ep := range endpoints {
			if err := validateURL(ep.value, "http", "https"); err != nil {
				add(ep.field, "%v", err)
			}
		}
	}

	// Model and retrieval settings carry their own range checks
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fieldError(err))
	}
	if err := c.RAG.Validate(); err != nil {
		errs = append(errs, fieldError(err))
	}

	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		add("logging", "rotation limits must not be negative")
	}
	if c.History.MaxConversations < 0 {
		add("history.max_conversations", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// fieldError splits "section.key detail: reason" into a ValidationError.
func fieldError(err error) ValidationError {
	msg := err.Error()
	head, reason, ok := strings.Cut(msg, ": ")
	if !ok {
		return ValidationError{Field: "config", Message: msg}
	}
	field, detail, _ := strings.Cut(head, " ")
	if detail != "" {
		reason = detail + " " + reason
	}
	return ValidationError{Field: field, Message: reason}
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s, got %q", strings.Join(schemes, ", "), u.Scheme)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RAGCHAT_* environment variables:
//   - RAGCHAT_TRANSPORT: overrides transport.kind
//   - RAGCHAT_URL: overrides transport.url
//   - RAGCHAT_MAX_RETRIES: overrides transport.max_retries
//   - RAGCHAT_UPLOAD_TIMEOUT: overrides transport.upload_timeout_secs
//   - RAGCHAT_PROVIDER: overrides model.provider (and resets the model name)
//   - RAGCHAT_MODEL: overrides model.model_name
//   - RAGCHAT_ENDPOINT: overrides model.endpoint
//   - RAGCHAT_STRATEGY: overrides rag.strategy
//   - RAGCHAT_TOP_K: overrides rag.top_k
//   - RAGCHAT_LOG_LEVEL: overrides logging.level
//   - RAGCHAT_HISTORY: overrides history.enabled
//
// Unparseable numbers are ignored.
func (c *Config) ApplyEnvOverrides() {
	if kind := os.Getenv("RAGCHAT_TRANSPORT"); kind != "" {
		c.Transport.Kind = kind
	}
	if u := os.Getenv("RAGCHAT_URL"); u != "" {
		c.Transport.URL = u
	}
	if n, ok := envInt("RAGCHAT_MAX_RETRIES"); ok {
		c.Transport.MaxRetries = n
	}
	if n, ok := envInt("RAGCHAT_UPLOAD_TIMEOUT"); ok {
		c.Transport.UploadTimeoutSecs = n
	}

	if p := os.Getenv("RAGCHAT_PROVIDER"); p != "" {
		c.Model = c.Model.WithProvider(model.ModelProvider(strings.ToLower(p)))
	}
	if m := os.Getenv("RAGCHAT_MODEL"); m != "" {
		c.Model.ModelName = m
	}
	if e := os.Getenv("RAGCHAT_ENDPOINT"); e != "" {
		c.Model.Endpoint = e
	}

	if s := os.Getenv("RAGCHAT_STRATEGY"); s != "" {
		c.RAG = c.RAG.WithStrategy(model.RAGStrategy(strings.ToLower(s)))
	}
	if n, ok := envInt("RAGCHAT_TOP_K"); ok {
		c.RAG.TopK = n
	}

	if lvl := os.Getenv("RAGCHAT_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if h := os.Getenv("RAGCHAT_HISTORY"); h != "" {
		c.History.Enabled = parseBool(h)
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// ReconnectDelay returns the reconnect wait as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Transport.ReconnectDelayMs) * time.Millisecond
}

// DialTimeout returns the handshake timeout as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Transport.DialTimeoutSecs) * time.Second
}

// UploadTimeout returns the upload confirmation timeout (0 = disabled).
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Transport.UploadTimeoutSecs) * time.Second
}

// Endpoints returns the http transport endpoints.
func (c *Config) Endpoints() transport.Endpoints {
	return transport.Endpoints{
		Upload: c.HTTP.UploadURL,
		Query:  c.HTTP.QueryURL,
		Chunks: c.HTTP.ChunksURL,
		Answer: c.HTTP.AnswerURL,
	}
}

// Greeting returns the opening message, or "" when disabled.
func (c *Config) Greeting(fallback string) string {
	switch {
	case strings.EqualFold(c.UI.Greeting, GreetingDisabled):
		return ""
	case c.UI.Greeting != "":
		return c.UI.Greeting
	}
	return fallback
}

// =============================================================================
// GET HELPER (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by its file key, e.g. "rag.top_k".
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds a struct field by its toml key.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Clone returns a copy of the configuration. Every field is a value type.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return b.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
