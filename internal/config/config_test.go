package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should use defaults: %v", err)
	}
	if cfg.Audio.VisualizationMode != VizSpectrum {
		t.Errorf("default visualization mode = %q, want %q", cfg.Audio.VisualizationMode, VizSpectrum)
	}
	if !cfg.Library.AutoQueue {
		t.Error("auto_queue should default to true")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
credentials:
  acoustid_api_key: abc123
audio:
  output_device: "USB DAC"
  visualization_mode: waveform
library:
  auto_queue: false
appearance:
  sidebar_collapsed: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Credentials.AcoustIDAPIKey != "abc123" {
		t.Errorf("api key = %q", cfg.Credentials.AcoustIDAPIKey)
	}
	if cfg.Audio.OutputDevice != "USB DAC" {
		t.Errorf("output device = %q", cfg.Audio.OutputDevice)
	}
	if cfg.Audio.VisualizationMode != VizWaveform {
		t.Errorf("viz mode = %q", cfg.Audio.VisualizationMode)
	}
	if cfg.Library.AutoQueue {
		t.Error("auto_queue should be false")
	}
	if !cfg.Appearance.SidebarCollapsed {
		t.Error("sidebar_collapsed should be true")
	}
}

func TestInvalidVizModeFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("audio:\n  visualization_mode: lasershow\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.VisualizationMode != VizSpectrum {
		t.Errorf("invalid mode should fall back to spectrum, got %q", cfg.Audio.VisualizationMode)
	}
}

func TestAcoustIDEnvVar(t *testing.T) {
	t.Setenv("ACOUSTID_API_KEY", "env-key")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Credentials.AcoustIDAPIKey != "env-key" {
		t.Errorf("api key from env = %q, want env-key", cfg.Credentials.AcoustIDAPIKey)
	}
}
