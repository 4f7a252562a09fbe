package files

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BotConfig is the single persisted configuration aggregate. The JSON shape is
// stable; sections absent from a saved document are backfilled from defaults on
// load (per-section, key by key).
type BotConfig struct {
	Discord  DiscordSettings  `json:"discord"`
	Channels ChannelSettings  `json:"channels"`
	Stats    StatsSettings    `json:"stats"`
	Behavior BehaviorSettings `json:"behavior"`
	Security SecuritySettings `json:"security"`
}

// DiscordSettings holds platform credentials and cosmetic defaults.
type DiscordSettings struct {
	Token        string `json:"token"`
	ClientID     string `json:"clientId"`
	DefaultColor string `json:"defaultColor"`
}

// ChannelSettings binds feature channels. Empty string means "unset".
type ChannelSettings struct {
	Confession string `json:"confession"`
	Logs       string `json:"logs"`
}

// StatsSettings holds monotonically increasing counters.
type StatsSettings struct {
	ConfessionCount LenientCount `json:"confessionCount"`
	ReplyCount      LenientCount `json:"replyCount"`
}

// LenientCount is an int that tolerates corrupt persisted values. Anything
// that is not a JSON number decodes to 0 so a damaged counter degrades to a
// restart from zero instead of a startup failure.
type LenientCount int

func (c *LenientCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		*c = 0
		return nil
	}
	*c = LenientCount(n)
	return nil
}

// BehaviorSettings tunes runtime behavior.
type BehaviorSettings struct {
	// AutoDeleteAfter is in seconds; 0 disables auto-deletion of posted confessions.
	AutoDeleteAfter int    `json:"autoDeleteAfter"`
	LogLevel        string `json:"logLevel"`
}

// SecuritySettings holds the admin allow-list. Semantically a set, stored as an
// ordered sequence; duplicates are tolerated, not deduplicated.
type SecuritySettings struct {
	AdminIDs []string `json:"adminIds"`
}

// DefaultConfig returns the document written when no settings file exists.
func DefaultConfig() *BotConfig {
	return &BotConfig{
		Discord: DiscordSettings{
			DefaultColor: "#5865F2",
		},
		Channels: ChannelSettings{},
		Stats:    StatsSettings{},
		Behavior: BehaviorSettings{
			AutoDeleteAfter: 0,
			LogLevel:        "info",
		},
		Security: SecuritySettings{
			AdminIDs: []string{},
		},
	}
}

// ParseHexColor converts a "#RRGGBB" string to its integer value.
// Invalid or empty input falls back to the default embed color.
func ParseHexColor(s string) int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if v, err := strconv.ParseInt(s, 16, 32); err == nil && len(s) == 6 {
		return int(v)
	}
	return 0x5865F2
}

// Sentinel errors for the confession and setup flows.
var (
	ErrNotConfigured       = errors.New("required channel is not configured")
	ErrChannelUnavailable  = errors.New("channel is unavailable")
	ErrInvalidChannelKind  = errors.New("channel is not a text channel")
	ErrAwaitTimeout        = errors.New("timed out waiting for a message")
	ErrInteractionExpired  = errors.New("interaction expired or already acknowledged")
	ErrMemberLookup        = errors.New("could not resolve guild member")
)

// ValidationError represents a user-input validation failure.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ConfigError wraps a configuration load/save failure.
type ConfigError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s %s: %v", e.Operation, e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// DiscordError wraps a platform API failure with its classification.
type DiscordError struct {
	Operation string
	Code      int
	Message   string
	Cause     error
}

func (e *DiscordError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("discord %s (code %d): %s", e.Operation, e.Code, e.Message)
	}
	return fmt.Sprintf("discord %s: %v", e.Operation, e.Cause)
}

func (e *DiscordError) Unwrap() error {
	return e.Cause
}
