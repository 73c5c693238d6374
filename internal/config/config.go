// Package config loads mailsift configuration from the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the application configuration.
type Config struct {
	// Storage
	DataDir       string `env:"DATA_DIR" envDefault:"./data"`
	ProcessedPath string `env:"PROCESSED_STORE_PATH"`
	RecordsPath   string `env:"PROCESSED_EMAILS_STORE_PATH"`

	// Gmail
	CredentialsPath string `env:"GOOGLE_CREDENTIALS_PATH" envDefault:"credentials.json"`
	DefaultQuery    string `env:"GMAIL_QUERY" envDefault:"newer_than:30d"`

	// Classifier service
	ClassifierURL     string        `env:"CLASSIFIER_URL" envDefault:"http://localhost:8500"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"60s"`
	// Small default keeps the model's memory bounded on constrained hosts.
	BatchSize int `env:"CLASSIFIER_BATCH_SIZE" envDefault:"3"`

	// HTTP server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load reads configuration from the environment, honoring a .env file
// when present. Store paths default into DataDir unless overridden.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.ProcessedPath == "" {
		cfg.ProcessedPath = filepath.Join(cfg.DataDir, "processed_ids.json")
	}
	if cfg.RecordsPath == "" {
		cfg.RecordsPath = filepath.Join(cfg.DataDir, "processed_emails.json")
	}

	return cfg, nil
}
