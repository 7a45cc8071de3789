// Package config reads and writes comptoir's global configuration under
// ~/.config/comptoir: config.json for sync settings and auth.json (0600) for
// credentials. Environment variables override file values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL          string `json:"url"`
	PollInterval string `json:"poll_interval,omitempty"` // duration string, default "15s"
	RetryCeiling *int   `json:"retry_ceiling,omitempty"` // nil = default 5
	BackoffBase  string `json:"backoff_base,omitempty"`  // duration string, default "2s"
	BackoffMax   string `json:"backoff_max,omitempty"`   // duration string, default "5m"
}

// Config is the global comptoir config stored at ~/.config/comptoir/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/comptoir/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	ServerURL string `json:"server_url,omitempty"`
	DeviceID  string `json:"device_id"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/comptoir, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "comptoir")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config, returning defaults when absent.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads auth credentials, or nil when not logged in.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes auth credentials with owner-only permissions.
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes the auth.json file.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetServerURL returns the sync server URL.
// Priority: COMPTOIR_SYNC_URL env > auth.json > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("COMPTOIR_SYNC_URL"); v != "" {
		return v
	}
	if creds, err := LoadAuth(); err == nil && creds != nil && creds.ServerURL != "" {
		return creds.ServerURL
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: COMPTOIR_AUTH_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("COMPTOIR_AUTH_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsAuthenticated returns true if an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// GetDeviceID returns the device ID from auth.json, generating and saving
// one on first use.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}

	id := uuid.NewString()
	if creds == nil {
		creds = &AuthCredentials{}
	}
	creds.DeviceID = id
	if err := SaveAuth(creds); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

// GetPollInterval returns the connectivity probe interval.
// Priority: COMPTOIR_SYNC_POLL env > config.json > 15s.
func GetPollInterval() time.Duration {
	if v := os.Getenv("COMPTOIR_SYNC_POLL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.PollInterval != "" {
		if d, err := time.ParseDuration(cfg.Sync.PollInterval); err == nil {
			return d
		}
	}
	return 15 * time.Second
}

// GetRetryCeiling returns the max transient attempts before an action is
// marked terminally failed.
// Priority: COMPTOIR_SYNC_RETRIES env > config.json > 5.
func GetRetryCeiling() int {
	if v := os.Getenv("COMPTOIR_SYNC_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.RetryCeiling != nil && *cfg.Sync.RetryCeiling > 0 {
		return *cfg.Sync.RetryCeiling
	}
	return 5
}

// GetBackoffBase returns the base delay for retry backoff.
func GetBackoffBase() time.Duration {
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.BackoffBase != "" {
		if d, err := time.ParseDuration(cfg.Sync.BackoffBase); err == nil {
			return d
		}
	}
	return 2 * time.Second
}

// GetBackoffMax returns the backoff cap.
func GetBackoffMax() time.Duration {
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.BackoffMax != "" {
		if d, err := time.ParseDuration(cfg.Sync.BackoffMax); err == nil {
			return d
		}
	}
	return 5 * time.Minute
}
