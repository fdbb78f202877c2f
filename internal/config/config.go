package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultCameraPort    = 9998
	DefaultHTTPListen    = "127.0.0.1:8998"
	DefaultRetentionDays = 7
	DefaultLogLevel      = "info"
)

// Environment variables that override file values.
const (
	EnvCameraHost     = "RCP2_CAMERA_HOST"
	EnvCameraPort     = "RCP2_CAMERA_PORT"
	EnvLogLevel       = "RCP2_LOG_LEVEL"
	EnvHTTPListen     = "RCP2_HTTP_LISTEN"
	EnvHistoryEnabled = "RCP2_HISTORY_ENABLED"
)

var envKeys = []string{EnvCameraHost, EnvCameraPort, EnvLogLevel, EnvHTTPListen, EnvHistoryEnabled}

// CameraConfig points the bridge at one camera. An empty host is allowed and reported
// as a bad configuration status instead of a validation error.
type CameraConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// HTTPConfig controls the local control API. An empty listen address disables it.
type HTTPConfig struct {
	Listen string `json:"listen"`
}

// HistoryConfig controls recording of variable changes to the local database.
type HistoryConfig struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Enabled bool `json:"enabled"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Camera        CameraConfig       `json:"camera"`
	Logging       LoggingConfig      `json:"logging"`
	HTTP          HTTPConfig         `json:"http"`
	History       HistoryConfig      `json:"history"`
	Notifications NotificationConfig `json:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Camera: CameraConfig{
			Host: "",
			Port: DefaultCameraPort,
		},
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			LogToFile: false,
		},
		HTTP: HTTPConfig{
			Listen: DefaultHTTPListen,
		},
		History: HistoryConfig{
			Enabled:       false,
			RetentionDays: DefaultRetentionDays,
		},
		Notifications: NotificationConfig{
			Enabled: false,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime or passed explicitly by the operator.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	c.Camera.Host = strings.TrimSpace(c.Camera.Host)
	if c.Camera.Port <= 0 {
		c.Camera.Port = DefaultCameraPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = DefaultRetentionDays
	}
}

func (c AppConfig) Validate() error {
	if c.Camera.Port <= 0 || c.Camera.Port > 65535 {
		return fmt.Errorf("camera port out of range: %d", c.Camera.Port)
	}
	if strings.ContainsAny(c.Camera.Host, " /") {
		return fmt.Errorf("camera host must be a bare address: %q", c.Camera.Host)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}
	if c.History.RetentionDays < 0 {
		return errors.New("history retention must not be negative")
	}

	return nil
}

// LoadEnv collects overrides from an optional .env file and the process environment.
// Process variables win over the file.
func LoadEnv(envFile string) (map[string]string, error) {
	values := make(map[string]string)
	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		for _, key := range envKeys {
			if v, ok := fileValues[key]; ok {
				values[key] = v
			}
		}
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}

	return values, nil
}

// ApplyEnv overrides file values with the ones collected by LoadEnv.
func (c *AppConfig) ApplyEnv(env map[string]string) error {
	if v, ok := env[EnvCameraHost]; ok {
		c.Camera.Host = strings.TrimSpace(v)
	}
	if v, ok := env[EnvCameraPort]; ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvCameraPort, err)
		}
		c.Camera.Port = port
	}
	if v, ok := env[EnvLogLevel]; ok {
		c.Logging.Level = strings.TrimSpace(v)
	}
	if v, ok := env[EnvHTTPListen]; ok {
		c.HTTP.Listen = strings.TrimSpace(v)
	}
	if v, ok := env[EnvHistoryEnabled]; ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvHistoryEnabled, err)
		}
		c.History.Enabled = enabled
	}
	c.FillMissingDefaults()

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
