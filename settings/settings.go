package settings

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/askmesh/askmesh/core"
)

// Settings is the complete askmesh configuration.
type Settings struct {
	// Backends selects and orders the generation backends.
	Backends BackendsSettings `toml:"backends"`

	// Remote configures the OpenAI-compatible remote backend.
	Remote RemoteSettings `toml:"remote"`

	// Local configures the Ollama-backed local backends.
	Local LocalSettings `toml:"local"`

	// Search configures the retrieval provider.
	Search SearchSettings `toml:"search"`

	// UI configures answer delivery to the frontend.
	UI UISettings `toml:"ui"`
}

// BackendsSettings orders backend candidates. The assistant tries them in
// order and falls back to the next on a load failure.
type BackendsSettings struct {
	// Preference lists backend names in fallback order. Known names:
	// "remote", "accelerated", "cpu".
	Preference []string `toml:"preference"`
}

// RemoteSettings configures the hosted API backend.
type RemoteSettings struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string `toml:"provider"`
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	// Model is the remote model id; empty keeps the adapter's default.
	Model string `toml:"model"`
}

// LocalSettings configures the Ollama server shared by the accelerated and
// CPU backends.
type LocalSettings struct {
	OllamaURL string `toml:"ollama_url"`
	Model     string `toml:"model"`
	// GPULayers overrides the layer offload count for the accelerated
	// backend; nil keeps the server default.
	GPULayers *int `toml:"gpu_layers"`
}

// SearchSettings configures the retrieval provider.
type SearchSettings struct {
	// Provider is "index" or "searxng".
	Provider string `toml:"provider"`
	// SearxURL is the SearXNG instance base URL (required for "searxng").
	SearxURL string `toml:"searx_url"`
	// MaxResults caps documents passed to the generator.
	MaxResults int `toml:"max_results"`
}

// UISettings configures answer delivery.
type UISettings struct {
	// FlushesPerSecond caps streamed answer updates toward the frontend.
	// 0 disables the cap.
	FlushesPerSecond float64 `toml:"flushes_per_second"`
}

// Default returns settings with built-in defaults.
func Default() *Settings {
	return &Settings{
		Backends: BackendsSettings{
			Preference: []string{"remote", "accelerated", "cpu"},
		},
		Remote: RemoteSettings{
			Provider: "openai",
		},
		Local: LocalSettings{
			OllamaURL: "http://127.0.0.1:11434",
			Model:     "llama3.2",
		},
		Search: SearchSettings{
			Provider:   "index",
			MaxResults: 5,
		},
		UI: UISettings{
			FlushesPerSecond: core.DefaultFlushesPerSecond,
		},
	}
}

// DefaultPath returns the default settings file location
// (~/.askmesh/settings.toml).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("settings: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".askmesh", "settings.toml"), nil
}

// Load reads settings from path, layering the file over defaults, then
// environment overrides, then validation. A missing file is not an error;
// defaults plus environment apply.
func Load(path string) (*Settings, error) {
	s := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, s); err != nil {
			return nil, fmt.Errorf("settings: decode %s: %w", path, err)
		}
	}

	s.ApplyEnvOverrides()
	s.fillDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}

// Save writes the settings to path as TOML, creating parent directories.
func Save(s *Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("settings: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("settings: create file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variables over the loaded values.
//
// Supported variables:
//   - ASKMESH_REMOTE_PROVIDER
//   - ASKMESH_REMOTE_BASE_URL
//   - ASKMESH_REMOTE_API_KEY (falls back to OPENAI_API_KEY or
//     ANTHROPIC_API_KEY depending on the provider)
//   - ASKMESH_REMOTE_MODEL
//   - ASKMESH_OLLAMA_URL
//   - ASKMESH_LOCAL_MODEL
//   - ASKMESH_BACKENDS (comma-separated preference order)
//   - ASKMESH_SEARX_URL
func (s *Settings) ApplyEnvOverrides() {
	if v := os.Getenv("ASKMESH_REMOTE_PROVIDER"); v != "" {
		s.Remote.Provider = v
	}
	if v := os.Getenv("ASKMESH_REMOTE_BASE_URL"); v != "" {
		s.Remote.BaseURL = v
	}
	if v := os.Getenv("ASKMESH_REMOTE_API_KEY"); v != "" {
		s.Remote.APIKey = v
	} else if s.Remote.APIKey == "" {
		fallback := "OPENAI_API_KEY"
		if s.Remote.Provider == "anthropic" {
			fallback = "ANTHROPIC_API_KEY"
		}
		if v := os.Getenv(fallback); v != "" {
			s.Remote.APIKey = v
		}
	}
	if v := os.Getenv("ASKMESH_REMOTE_MODEL"); v != "" {
		s.Remote.Model = v
	}
	if v := os.Getenv("ASKMESH_OLLAMA_URL"); v != "" {
		s.Local.OllamaURL = v
	}
	if v := os.Getenv("ASKMESH_LOCAL_MODEL"); v != "" {
		s.Local.Model = v
	}
	if v := os.Getenv("ASKMESH_BACKENDS"); v != "" {
		parts := strings.Split(v, ",")
		pref := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				pref = append(pref, p)
			}
		}
		if len(pref) > 0 {
			s.Backends.Preference = pref
		}
	}
	if v := os.Getenv("ASKMESH_SEARX_URL"); v != "" {
		s.Search.SearxURL = v
		if s.Search.Provider == "" {
			s.Search.Provider = "searxng"
		}
	}
}

// fillDefaults restores required fields the file may have blanked.
func (s *Settings) fillDefaults() {
	d := Default()
	if len(s.Backends.Preference) == 0 {
		s.Backends.Preference = d.Backends.Preference
	}
	if s.Local.OllamaURL == "" {
		s.Local.OllamaURL = d.Local.OllamaURL
	}
	if s.Local.Model == "" {
		s.Local.Model = d.Local.Model
	}
	if s.Remote.Provider == "" {
		s.Remote.Provider = d.Remote.Provider
	}
	if s.Search.Provider == "" {
		s.Search.Provider = d.Search.Provider
	}
	if s.Search.MaxResults == 0 {
		s.Search.MaxResults = d.Search.MaxResults
	}
	if s.UI.FlushesPerSecond == 0 {
		s.UI.FlushesPerSecond = d.UI.FlushesPerSecond
	}
}

// ValidationError reports a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the settings for consistency.
func (s *Settings) Validate() error {
	knownBackends := map[string]bool{"remote": true, "accelerated": true, "cpu": true}
	for _, name := range s.Backends.Preference {
		if !knownBackends[name] {
			return ValidationError{
				Field:   "backends.preference",
				Message: fmt.Sprintf("unknown backend %q, must be one of: remote, accelerated, cpu", name),
			}
		}
	}

	switch s.Remote.Provider {
	case "", "openai", "anthropic":
	default:
		return ValidationError{
			Field:   "remote.provider",
			Message: fmt.Sprintf("unknown provider %q, must be one of: openai, anthropic", s.Remote.Provider),
		}
	}

	if s.Remote.BaseURL != "" {
		if _, err := url.Parse(s.Remote.BaseURL); err != nil {
			return ValidationError{Field: "remote.base_url", Message: err.Error()}
		}
	}
	if _, err := url.Parse(s.Local.OllamaURL); err != nil {
		return ValidationError{Field: "local.ollama_url", Message: err.Error()}
	}

	switch s.Search.Provider {
	case "index":
	case "searxng":
		if s.Search.SearxURL == "" {
			return ValidationError{Field: "search.searx_url", Message: "required when provider is searxng"}
		}
	default:
		return ValidationError{
			Field:   "search.provider",
			Message: fmt.Sprintf("unknown provider %q, must be one of: index, searxng", s.Search.Provider),
		}
	}

	if s.Search.MaxResults < 0 {
		return ValidationError{Field: "search.max_results", Message: "must be non-negative"}
	}
	if s.UI.FlushesPerSecond < 0 {
		return ValidationError{Field: "ui.flushes_per_second", Message: "must be non-negative"}
	}
	return nil
}

// Get retrieves a value by flat dotted key, e.g. "local.model".
func (s *Settings) Get(key string) (any, error) {
	switch key {
	case "backends.preference":
		return s.Backends.Preference, nil
	case "remote.provider":
		return s.Remote.Provider, nil
	case "remote.base_url":
		return s.Remote.BaseURL, nil
	case "remote.api_key":
		return s.Remote.APIKey, nil
	case "remote.model":
		return s.Remote.Model, nil
	case "local.ollama_url":
		return s.Local.OllamaURL, nil
	case "local.model":
		return s.Local.Model, nil
	case "search.provider":
		return s.Search.Provider, nil
	case "search.searx_url":
		return s.Search.SearxURL, nil
	case "search.max_results":
		return s.Search.MaxResults, nil
	case "ui.flushes_per_second":
		return s.UI.FlushesPerSecond, nil
	default:
		return nil, fmt.Errorf("settings: unknown key %q", key)
	}
}

// Set assigns a value by flat dotted key from its string form.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "backends.preference":
		parts := strings.Split(value, ",")
		pref := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				pref = append(pref, p)
			}
		}
		s.Backends.Preference = pref
	case "remote.provider":
		s.Remote.Provider = value
	case "remote.base_url":
		s.Remote.BaseURL = value
	case "remote.api_key":
		s.Remote.APIKey = value
	case "remote.model":
		s.Remote.Model = value
	case "local.ollama_url":
		s.Local.OllamaURL = value
	case "local.model":
		s.Local.Model = value
	case "search.provider":
		s.Search.Provider = value
	case "search.searx_url":
		s.Search.SearxURL = value
	case "search.max_results":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", key, err)
		}
		s.Search.MaxResults = n
	case "ui.flushes_per_second":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", key, err)
		}
		s.UI.FlushesPerSecond = f
	default:
		return fmt.Errorf("settings: unknown key %q", key)
	}
	return s.Validate()
}

// Keys lists all dotted keys understood by Get and Set.
func Keys() []string {
	return []string{
		"backends.preference",
		"remote.provider",
		"remote.base_url",
		"remote.api_key",
		"remote.model",
		"local.ollama_url",
		"local.model",
		"search.provider",
		"search.searx_url",
		"search.max_results",
		"ui.flushes_per_second",
	}
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	clone := *s
	clone.Backends.Preference = append([]string(nil), s.Backends.Preference...)
	if s.Local.GPULayers != nil {
		v := *s.Local.GPULayers
		clone.Local.GPULayers = &v
	}
	return &clone
}
