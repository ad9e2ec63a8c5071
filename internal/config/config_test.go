package config

import (
	"os"
	"path/filepath"
	"testing"

	"wsi-patcher/internal/mask"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Masking.ReferenceDownsample != 12.0 {
		t.Errorf("ReferenceDownsample = %v, want 12.0", cfg.Masking.ReferenceDownsample)
	}
	if cfg.Patching.UsableThreshold != 0.5 {
		t.Errorf("UsableThreshold = %v, want 0.5", cfg.Patching.UsableThreshold)
	}
	if len(cfg.Masking.Rules) != 1 {
		t.Errorf("default rules length = %d, want 1", len(cfg.Masking.Rules))
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Patching.TargetPixels != 512 {
		t.Errorf("TargetPixels = %d, want default 512", cfg.Patching.TargetPixels)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	yamlDoc := `
masking:
  referenceDownsample: 8
  rules:
    - hue: {low: 120, high: 200}
      saturation: {low: 30, high: 255}
patching:
  targetPixels: 256
  workers: 4
database:
  dsn: user:pass@tcp(localhost:3306)/wsi
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Masking.ReferenceDownsample != 8 {
		t.Errorf("ReferenceDownsample = %v, want 8", cfg.Masking.ReferenceDownsample)
	}
	if got := cfg.Masking.Rules[0].Range(mask.ChannelHue); got.Low != 120 || got.High != 200 {
		t.Errorf("hue range = %+v, want 120..200", got)
	}
	if got := cfg.Masking.Rules[0].Range(mask.ChannelValue); got != mask.FullRange {
		t.Errorf("value range should default to full, got %+v", got)
	}
	if cfg.Patching.TargetPixels != 256 {
		t.Errorf("TargetPixels = %d, want 256", cfg.Patching.TargetPixels)
	}
	// Untouched keys keep their defaults.
	if cfg.Patching.UsableThreshold != 0.5 {
		t.Errorf("UsableThreshold = %v, want default 0.5", cfg.Patching.UsableThreshold)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	yamlDoc := `
patching:
  targetPixels: -1
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("negative targetPixels should be rejected")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Patching.Seed = 42
	cfg.Output.Dir = "masks"

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Patching.Seed != 42 || loaded.Output.Dir != "masks" {
		t.Errorf("round trip lost values: %+v", loaded.Patching)
	}
}
