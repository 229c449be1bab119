package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validConfig = `
http:
  port: 8080
  address: "0.0.0.0"

storage:
  upload_dir: "uploads"
  registry_path: "registry.db"

audio:
  sample_rate: 16000
  chunk_seconds: 20
  overlap_seconds: 2
  volume_threshold: 0.01

summary:
  batch_size: 3

transcription:
  endpoint: "http://localhost:9000/v1/audio/transcriptions"
  timeout: 60
  max_retries: 3
  max_concurrent: 4

summarization:
  endpoint: "http://localhost:11434/api/generate"
  model: "llama3"
  timeout: 120

logging:
  level: "info"
  format: "json"
  output: "stdout"
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if cfg.Audio.ChunkSeconds != 20 || cfg.Audio.OverlapSeconds != 2 {
		t.Errorf("windowing = %v/%v", cfg.Audio.ChunkSeconds, cfg.Audio.OverlapSeconds)
	}
	if cfg.Summary.BatchSize != 3 {
		t.Errorf("batch_size = %d", cfg.Summary.BatchSize)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	minimal := `
http:
  port: 8080

transcription:
  endpoint: "http://localhost:9000/transcribe"

summarization:
  endpoint: "http://localhost:11434/api/generate"
  model: "llama3"

logging:
  level: "info"
  format: "text"
`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("default sample_rate = %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkSeconds != 20 || cfg.Audio.OverlapSeconds != 2 {
		t.Errorf("default windowing = %v/%v", cfg.Audio.ChunkSeconds, cfg.Audio.OverlapSeconds)
	}
	if cfg.Audio.VolumeThreshold != 0.01 {
		t.Errorf("default volume_threshold = %v", cfg.Audio.VolumeThreshold)
	}
	if cfg.Summary.BatchSize != 3 {
		t.Errorf("default batch_size = %d", cfg.Summary.BatchSize)
	}
	if cfg.Storage.UploadDir != "uploads" {
		t.Errorf("default upload_dir = %q", cfg.Storage.UploadDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad sample rate", func(c *Config) { c.Audio.SampleRate = 44100 }},
		{"zero chunk", func(c *Config) { c.Audio.ChunkSeconds = 0 }},
		{"overlap not below chunk", func(c *Config) { c.Audio.OverlapSeconds = 20 }},
		{"negative threshold", func(c *Config) { c.Audio.VolumeThreshold = -0.5 }},
		{"zero batch size", func(c *Config) { c.Summary.BatchSize = 0 }},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"missing transcription endpoint", func(c *Config) { c.Transcription.Endpoint = "" }},
		{"missing summarization model", func(c *Config) { c.Summarization.Model = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		cfg, err := Load(writeConfig(t, validConfig))
		if err != nil {
			t.Fatalf("%s: Load failed: %v", tt.name, err)
		}
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: validation passed, want error", tt.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
