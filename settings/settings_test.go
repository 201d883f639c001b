package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := s.Backends.Preference; len(got) != 3 || got[0] != "remote" {
		t.Errorf("unexpected default preference: %v", got)
	}
	if s.Local.OllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("unexpected default ollama url: %q", s.Local.OllamaURL)
	}
	if s.UI.FlushesPerSecond != 12 {
		t.Errorf("unexpected default flush rate: %v", s.UI.FlushesPerSecond)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	body := `
[backends]
preference = ["cpu"]

[local]
model = "qwen2.5:7b"

[ui]
flushes_per_second = 6.0
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(s.Backends.Preference) != 1 || s.Backends.Preference[0] != "cpu" {
		t.Errorf("unexpected preference: %v", s.Backends.Preference)
	}
	if s.Local.Model != "qwen2.5:7b" {
		t.Errorf("unexpected model: %q", s.Local.Model)
	}
	if s.UI.FlushesPerSecond != 6.0 {
		t.Errorf("unexpected flush rate: %v", s.UI.FlushesPerSecond)
	}
	// Untouched sections keep defaults.
	if s.Local.OllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("default ollama url lost: %q", s.Local.OllamaURL)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	body := `
[backends]
preference = ["webgpu"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown backend")
	}
}

func TestLoad_SearxRequiresURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	body := `
[search]
provider = "searxng"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for searxng without url")
	}
}

func TestLoad_RemoteProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	body := `
[remote]
provider = "anthropic"
model = "claude-sonnet-4-0"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if s.Remote.Provider != "anthropic" {
		t.Errorf("unexpected provider: %q", s.Remote.Provider)
	}

	s.Remote.Provider = "bedrock"
	if err := s.Validate(); err == nil {
		t.Error("expected validation error for unknown remote provider")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ASKMESH_BACKENDS", "cpu, accelerated")
	t.Setenv("ASKMESH_LOCAL_MODEL", "phi3")
	t.Setenv("ASKMESH_REMOTE_API_KEY", "sk-test")

	s, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(s.Backends.Preference) != 2 || s.Backends.Preference[0] != "cpu" {
		t.Errorf("env preference not applied: %v", s.Backends.Preference)
	}
	if s.Local.Model != "phi3" {
		t.Errorf("env model not applied: %q", s.Local.Model)
	}
	if s.Remote.APIKey != "sk-test" {
		t.Errorf("env api key not applied: %q", s.Remote.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "settings.toml")

	s := Default()
	s.Local.Model = "mistral"
	if err := Save(s, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Local.Model != "mistral" {
		t.Errorf("round trip lost model: %q", loaded.Local.Model)
	}
}

func TestGetSetByKey(t *testing.T) {
	s := Default()

	if err := s.Set("local.model", "gemma2"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := s.Get("local.model")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "gemma2" {
		t.Errorf("unexpected value: %v", got)
	}

	if err := s.Set("ui.flushes_per_second", "8.5"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if s.UI.FlushesPerSecond != 8.5 {
		t.Errorf("float set failed: %v", s.UI.FlushesPerSecond)
	}

	if err := s.Set("backends.preference", "nope"); err == nil {
		t.Error("expected validation failure for unknown backend name")
	}
	if _, err := s.Get("no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	s := Default()
	layers := 20
	s.Local.GPULayers = &layers

	c := s.Clone()
	c.Backends.Preference[0] = "cpu"
	*c.Local.GPULayers = 0

	if s.Backends.Preference[0] != "remote" {
		t.Error("clone shares preference slice")
	}
	if *s.Local.GPULayers != 20 {
		t.Error("clone shares GPULayers pointer")
	}
}
