package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Storage       StorageConfig       `yaml:"storage"`
	Audio         AudioConfig         `yaml:"audio"`
	Summary       SummaryConfig       `yaml:"summary"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// StorageConfig contains persistence locations
type StorageConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	RegistryPath string `yaml:"registry_path"`
}

// AudioConfig contains audio processing parameters
type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	ChunkSeconds    float64 `yaml:"chunk_seconds"`
	OverlapSeconds  float64 `yaml:"overlap_seconds"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
}

// SummaryConfig contains incremental summarization parameters
type SummaryConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
}

// SummarizationConfig contains summarization API configuration
type SummarizationConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in the standard windowing and batching parameters when
// the file omits them.
func (c *Config) applyDefaults() {
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.ChunkSeconds == 0 {
		c.Audio.ChunkSeconds = 20
	}
	if c.Audio.OverlapSeconds == 0 {
		c.Audio.OverlapSeconds = 2
	}
	if c.Audio.VolumeThreshold == 0 {
		c.Audio.VolumeThreshold = 0.01
	}
	if c.Summary.BatchSize == 0 {
		c.Summary.BatchSize = 3
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Storage.RegistryPath == "" {
		c.Storage.RegistryPath = "registry.db"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Summary.Validate(); err != nil {
		return fmt.Errorf("summary config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Summarization.Validate(); err != nil {
		return fmt.Errorf("summarization config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.UploadDir == "" {
		return fmt.Errorf("upload_dir cannot be empty")
	}

	if s.RegistryPath == "" {
		return fmt.Errorf("registry_path cannot be empty")
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk_seconds must be positive, got %f", a.ChunkSeconds)
	}

	if a.OverlapSeconds < 0 {
		return fmt.Errorf("overlap_seconds cannot be negative, got %f", a.OverlapSeconds)
	}

	if a.OverlapSeconds >= a.ChunkSeconds {
		return fmt.Errorf("overlap_seconds (%f) must be less than chunk_seconds (%f)",
			a.OverlapSeconds, a.ChunkSeconds)
	}

	if a.VolumeThreshold < 0 || a.VolumeThreshold > 1 {
		return fmt.Errorf("volume_threshold must be between 0 and 1, got %f", a.VolumeThreshold)
	}

	return nil
}

// Validate validates summary configuration
func (s *SummaryConfig) Validate() error {
	if s.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", s.BatchSize)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent cannot be negative, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates summarization configuration
func (s *SummarizationConfig) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if s.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", s.Timeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the summarization timeout as a time.Duration
func (s *SummarizationConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
