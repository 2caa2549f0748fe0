package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/file"
)

// Environment variables overriding the configuration file.
const (
	EnvAPIURL       = "MADLEN_API_URL"
	EnvUserID       = "MADLEN_USER_ID"
	EnvDefaultModel = "MADLEN_DEFAULT_MODEL"
	EnvStream       = "MADLEN_STREAM"
)

var defaultConfig = Config{
	APIURL:          "http://localhost:8080/api",
	UserID:          "demo-user",
	RequestTimeout:  60,
	HistoryDatabase: "~/.config/madlen/history.db",
	DebugLog:        "/tmp/madlen-debug.log",
	StarterPrompts: []string{
		"Write me a calculator in Python.",
		"Explain quantum physics to a five year old.",
		"Suggest a quick dinner recipe for {{ now | date \"Monday\" }}.",
		"Help me write a motivation letter.",
	},
}

// Config holds configuration for the madlen client.
type Config struct {
	// Base URL of the chat backend, including the `/api` prefix.
	APIURL string `json:"api_url"`
	// Identifier sent along session requests.
	UserID string `json:"user_id"`
	// Timeout in seconds applied to non-streaming backend calls.
	RequestTimeout int `json:"request_timeout"`
	// Model selected on startup when present in the catalog.
	DefaultModel string `json:"default_model"`
	// If set, replies are streamed from the backend.
	Stream bool `json:"stream"`
	// Sqlite database holding the composer history.
	HistoryDatabase string `json:"history_database"`
	// File receiving debug logs.
	DebugLog string `json:"debug_log"`
	// Templates rendered as starter prompts on an empty chat.
	StarterPrompts []string `json:"starter_prompts"`
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Parse a configuration file. Missing fields are filled with defaults and
// environment variables (optionally from a `.env` file) take precedence.
func Parse(path string) (*Config, error) {
	path, err := file.ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}

	if err := initializeIfNotPresent(path); err != nil {
		return nil, errors.Wrap(err, "initializing configuration")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	config := &Config{}
	if err = json.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling into config")
	}
	if err := mergo.Merge(config, defaultConfig); err != nil {
		return nil, errors.Wrap(err, "merging default config")
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	if err := config.applyEnv(); err != nil {
		return nil, errors.Wrap(err, "applying environment")
	}

	expandedHistoryPath, err := file.ExpandPath(config.HistoryDatabase)
	if err != nil {
		return nil, errors.Wrap(err, "expanding history database path")
	}
	config.HistoryDatabase = expandedHistoryPath

	expandedDebugLogPath, err := file.ExpandPath(config.DebugLog)
	if err != nil {
		return nil, errors.Wrap(err, "expanding debug log path")
	}
	config.DebugLog = expandedDebugLogPath
	return config, nil
}

func (c *Config) applyEnv() error {
	if value := os.Getenv(EnvAPIURL); value != "" {
		c.APIURL = value
	}
	if value := os.Getenv(EnvUserID); value != "" {
		c.UserID = value
	}
	if value := os.Getenv(EnvDefaultModel); value != "" {
		c.DefaultModel = value
	}
	if value := os.Getenv(EnvStream); value != "" {
		stream, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvStream)
		}
		c.Stream = stream
	}
	return nil
}

// save a configuration file.
func (c *Config) save(path string) error {
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	err = os.WriteFile(path, bytes, 0644)
	if err != nil {
		return errors.Wrap(err, "writing file")
	}

	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create the directories.
	dir, _ := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating folders")
	}

	if err := defaultConfig.save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}
