package files

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/small-frappuccino/confessbot/pkg/log"
	"github.com/small-frappuccino/confessbot/pkg/util"
)

// ConfigManager owns the persisted configuration document. Reads come from an
// in-memory cache; every mutation rewrites the backing file before returning
// (write-through, no write-behind buffering).
type ConfigManager struct {
	mu          sync.RWMutex
	path        string
	jsonManager *util.JSONManager
	config      *BotConfig
}

// NewConfigManager creates a manager bound to the default settings path.
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithPath(util.GetSettingsFilePath())
}

// NewConfigManagerWithPath creates a manager bound to an explicit settings path.
func NewConfigManagerWithPath(path string) *ConfigManager {
	return &ConfigManager{
		path:        path,
		jsonManager: util.NewJSONManager(path),
		config:      DefaultConfig(),
	}
}

// LoadConfig reads the settings file into the in-memory cache.
//
// A missing file is materialized with defaults. A present file is merged per
// section: each top-level section found in the document is applied key by key
// over that section's defaults, and wholly absent sections fall back to
// defaults. A file with invalid JSON is a fatal startup error.
func (cm *ConfigManager) LoadConfig() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var sections map[string]json.RawMessage
	found, err := cm.jsonManager.Load(&sections)
	if err != nil {
		return &ConfigError{Operation: "parse", Path: cm.path, Cause: err}
	}

	cfg := DefaultConfig()
	if !found {
		cm.config = cfg
		return persist(cm.jsonManager, cm.path, cfg)
	}

	// Unmarshalling into the pre-populated section struct only overwrites the
	// keys present in the document, which is exactly the per-key merge.
	merge := func(name string, dst any) error {
		raw, ok := sections[name]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return &ConfigError{Operation: "parse", Path: cm.path, Cause: fmt.Errorf("section %q: %w", name, err)}
		}
		return nil
	}

	for name, dst := range map[string]any{
		"discord":  &cfg.Discord,
		"channels": &cfg.Channels,
		"stats":    &cfg.Stats,
		"behavior": &cfg.Behavior,
		"security": &cfg.Security,
	} {
		if err := merge(name, dst); err != nil {
			return err
		}
	}

	if cfg.Security.AdminIDs == nil {
		cfg.Security.AdminIDs = []string{}
	}

	cm.config = cfg
	log.ApplicationLogger().Info("Settings loaded", "path", cm.path)
	return nil
}

// SaveConfig persists the current in-memory document.
func (cm *ConfigManager) SaveConfig() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return persist(cm.jsonManager, cm.path, cm.config)
}

func persist(jm *util.JSONManager, path string, cfg *BotConfig) error {
	if err := jm.Save(cfg); err != nil {
		return &ConfigError{Operation: "save", Path: path, Cause: err}
	}
	return nil
}

// Path returns the backing file path.
func (cm *ConfigManager) Path() string {
	return cm.path
}

// Snapshot returns a copy of the current document.
func (cm *ConfigManager) Snapshot() BotConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	snap := *cm.config
	snap.Security.AdminIDs = append([]string(nil), cm.config.Security.AdminIDs...)
	return snap
}

// ConfessionChannelID returns the configured confession channel, "" when unset.
func (cm *ConfigManager) ConfessionChannelID() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Channels.Confession
}

// LogsChannelID returns the configured log channel, "" when unset.
func (cm *ConfigManager) LogsChannelID() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Channels.Logs
}

// AdminIDs returns the admin allow-list.
func (cm *ConfigManager) AdminIDs() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return append([]string(nil), cm.config.Security.AdminIDs...)
}

// DefaultColor returns the configured embed color as an integer.
func (cm *ConfigManager) DefaultColor() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return ParseHexColor(cm.config.Discord.DefaultColor)
}

// AutoDeleteAfter returns the auto-delete delay in seconds; 0 disables it.
func (cm *ConfigManager) AutoDeleteAfter() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Behavior.AutoDeleteAfter
}

// LogLevel returns the configured log level name.
func (cm *ConfigManager) LogLevel() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Behavior.LogLevel
}

// ConfessionCount returns the current confession counter.
func (cm *ConfigManager) ConfessionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return int(cm.config.Stats.ConfessionCount)
}

// ReplyCount returns the current reply counter.
func (cm *ConfigManager) ReplyCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return int(cm.config.Stats.ReplyCount)
}

// SetConfessionChannel binds the confession channel and persists.
func (cm *ConfigManager) SetConfessionChannel(channelID string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.Channels.Confession = channelID
	return persist(cm.jsonManager, cm.path, cm.config)
}

// SetLogsChannel binds the log channel and persists.
func (cm *ConfigManager) SetLogsChannel(channelID string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.Channels.Logs = channelID
	return persist(cm.jsonManager, cm.path, cm.config)
}

// SetClientID records the application's client ID and persists.
func (cm *ConfigManager) SetClientID(clientID string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.Discord.ClientID = clientID
	return persist(cm.jsonManager, cm.path, cm.config)
}

// SetAdminIDs replaces the admin allow-list and persists.
func (cm *ConfigManager) SetAdminIDs(ids []string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.Security.AdminIDs = append([]string(nil), ids...)
	return persist(cm.jsonManager, cm.path, cm.config)
}

// IncrementConfessionCount advances the confession counter and persists,
// returning the new value. A negative stored value is treated as 0 before
// incrementing. The lock is held through the file write, so concurrent
// increments in this process cannot interleave or hand out the same number.
func (cm *ConfigManager) IncrementConfessionCount() (int, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.config.Stats.ConfessionCount < 0 {
		cm.config.Stats.ConfessionCount = 0
	}
	cm.config.Stats.ConfessionCount++
	if err := persist(cm.jsonManager, cm.path, cm.config); err != nil {
		return int(cm.config.Stats.ConfessionCount), err
	}
	return int(cm.config.Stats.ConfessionCount), nil
}

// IncrementReplyCount advances the reply counter and persists, returning the
// new value.
func (cm *ConfigManager) IncrementReplyCount() (int, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.config.Stats.ReplyCount < 0 {
		cm.config.Stats.ReplyCount = 0
	}
	cm.config.Stats.ReplyCount++
	if err := persist(cm.jsonManager, cm.path, cm.config); err != nil {
		return int(cm.config.Stats.ReplyCount), err
	}
	return int(cm.config.Stats.ReplyCount), nil
}

// EnsureSettingsFile makes sure a settings file exists at the default path,
// writing defaults when absent.
func EnsureSettingsFile() error {
	path := util.GetSettingsFilePath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return &ConfigError{Operation: "stat", Path: path, Cause: err}
	}
	return persist(util.NewJSONManager(path), path, DefaultConfig())
}
