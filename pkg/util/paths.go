package util

import (
	"os"
	"path/filepath"
	"strings"
)

var (
	// ConfiguredAppName can be set by the host before Discord auth; when non-empty,
	// EffectiveAppName() uses it for every derived path.
	ConfiguredAppName string

	// DiscordBotName is set at runtime via SetBotName using the Discord API username.
	// When empty, EffectiveAppName() provides a fallback.
	DiscordBotName string
)

// AppVersion is the version of the running application.
var AppVersion string

// SetAppVersion sets the version of the running application.
func SetAppVersion(v string) {
	AppVersion = v
}

// SetAppName sets a configured application name used for config/cache/log paths.
func SetAppName(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	ConfiguredAppName = sanitizeName(name)
}

// SetBotName sets the bot name reported by the Discord API.
func SetBotName(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	DiscordBotName = sanitizeName(name)
}

// EffectiveAppName returns the current application name, preferring a configured
// name, then the Discord username, then a default.
func EffectiveAppName() string {
	if n := strings.TrimSpace(ConfiguredAppName); n != "" {
		return n
	}
	if n := strings.TrimSpace(DiscordBotName); n != "" {
		return n
	}
	return "confessbot"
}

// GetApplicationSupportPath returns the base directory for configuration files
// (e.g. ~/.config/<AppName> on Linux).
func GetApplicationSupportPath() string {
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, EffectiveAppName())
	}
	return filepath.Join(".", "config", EffectiveAppName())
}

// GetApplicationCachesPath returns the base directory for cache files
// (e.g. ~/.cache/<AppName> on Linux).
func GetApplicationCachesPath() string {
	if base, err := os.UserCacheDir(); err == nil && base != "" {
		return filepath.Join(base, EffectiveAppName())
	}
	return filepath.Join(".", "cache", EffectiveAppName())
}

// GetSettingsFilePath returns the path of the primary settings JSON.
// Layout: <ConfigBase>/preferences/settings.json
func GetSettingsFilePath() string {
	return filepath.Join(GetApplicationSupportPath(), "preferences", "settings.json")
}

// GetJournalDBPath returns the SQLite path for the confession journal.
// Layout: <CachesBase>/journal/confessions.db
func GetJournalDBPath() string {
	return filepath.Join(GetApplicationCachesPath(), "journal", "confessions.db")
}

// GetLogDirPath returns the directory holding rotated log files.
// Layout: <CachesBase>/logs
func GetLogDirPath() string {
	return filepath.Join(GetApplicationCachesPath(), "logs")
}

func sanitizeName(s string) string {
	out := strings.TrimSpace(s)
	out = strings.ReplaceAll(out, "/", "-")
	out = strings.ReplaceAll(out, string(filepath.Separator), "-")
	if out == "" {
		return "confessbot"
	}
	return out
}
