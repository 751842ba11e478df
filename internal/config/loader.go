package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables that override file values.
const (
	EnvToken        = "MEETCHAT_TOKEN"
	EnvChatEndpoint = "MEETCHAT_CHAT_ENDPOINT"
	EnvDisplayName  = "MEETCHAT_DISPLAY_NAME"
)

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".meetchat", "config.json")
}

// DataDir returns the meetchat data directory.
func DataDir() string {
	dir := filepath.Join(homeDir(), ".meetchat")
	os.MkdirAll(dir, 0o755)
	return dir
}

// Load reads configuration from disk, falling back to defaults.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads configuration from a specific path. Unknown keys and invalid
// values are errors; the returned Config is still usable with defaults applied.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("apply config: %w", err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	var problems []string
	for _, key := range CheckUnknownFields(raw) {
		problems = append(problems, "unknown field "+key)
	}
	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return cfg, fmt.Errorf("config validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := DefaultConfig()
	if cfg.Identity.DisplayName == "" {
		cfg.Identity.DisplayName = d.Identity.DisplayName
	}
	if cfg.Calling.KeepAliveSeconds == 0 {
		cfg.Calling.KeepAliveSeconds = d.Calling.KeepAliveSeconds
	}
	if cfg.Chat.Backend == "" {
		cfg.Chat.Backend = d.Chat.Backend
	}
	if cfg.Chat.APIVersion == "" {
		cfg.Chat.APIVersion = d.Chat.APIVersion
	}
	if cfg.Discord.Intents == 0 {
		cfg.Discord.Intents = d.Discord.Intents
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Identity.Token = v
	}
	if v := os.Getenv(EnvChatEndpoint); v != "" {
		cfg.Chat.Endpoint = v
	}
	if v := os.Getenv(EnvDisplayName); v != "" {
		cfg.Identity.DisplayName = v
	}
}

// Save writes configuration to disk.
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo writes configuration to a specific path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Upgrade reads the existing config file, deep-merges it on top of
// DefaultConfig (local values win), and saves the result.
func Upgrade() (*Config, error) {
	return UpgradeAt(ConfigPath())
}

// UpgradeAt is Upgrade for a specific path.
func UpgradeAt(path string) (*Config, error) {
	defaultData, _ := json.Marshal(DefaultConfig())
	var defaultMap map[string]any
	json.Unmarshal(defaultData, &defaultMap)

	localData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var localMap map[string]any
	if err := json.Unmarshal(localData, &localMap); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	merged := deepMerge(defaultMap, localMap)

	cfg := DefaultConfig()
	reData, _ := json.Marshal(merged)
	if err := json.Unmarshal(reData, cfg); err != nil {
		return nil, fmt.Errorf("apply merged config: %w", err)
	}

	if err := SaveTo(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deepMerge recursively merges src into dst. Values from src take priority.
func deepMerge(dst, src map[string]any) map[string]any {
	result := make(map[string]any, len(dst))
	for k, v := range dst {
		result[k] = v
	}
	for k, srcVal := range src {
		dstVal, exists := result[k]
		if !exists {
			result[k] = srcVal
			continue
		}
		dstMap, dstOK := dstVal.(map[string]any)
		srcMap, srcOK := srcVal.(map[string]any)
		if dstOK && srcOK {
			result[k] = deepMerge(dstMap, srcMap)
		} else {
			result[k] = srcVal
		}
	}
	return result
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return home
}
