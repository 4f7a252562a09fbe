package files

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "settings.json")
}

func TestLoadConfigMissingFileWritesDefaults(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)
	cm := NewConfigManagerWithPath(path)

	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected settings file to be created: %v", err)
	}
	if got := cm.LogLevel(); got != "info" {
		t.Fatalf("expected default log level, got %q", got)
	}
	if cm.ConfessionCount() != 0 {
		t.Fatalf("expected zero confession count, got %d", cm.ConfessionCount())
	}
}

func TestLoadConfigIsIdempotent(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)
	cm := NewConfigManagerWithPath(path)

	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if err := cm.SetConfessionChannel("123"); err != nil {
		t.Fatalf("set channel failed: %v", err)
	}

	first := cm.Snapshot()
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	second := cm.Snapshot()

	if first.Channels.Confession != second.Channels.Confession {
		t.Fatalf("reload changed confession channel: %q vs %q", first.Channels.Confession, second.Channels.Confession)
	}
}

func TestLoadConfigBackfillsMissingKeys(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)

	// A partial document: channels section present with one key, behavior
	// present with one key, other sections absent entirely.
	doc := `{
  "channels": {"confession": "111"},
  "behavior": {"logLevel": "debug"}
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cm := NewConfigManagerWithPath(path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got := cm.ConfessionChannelID(); got != "111" {
		t.Fatalf("present key lost: got %q", got)
	}
	if got := cm.LogsChannelID(); got != "" {
		t.Fatalf("missing key should default to empty, got %q", got)
	}
	if got := cm.LogLevel(); got != "debug" {
		t.Fatalf("present key lost: got %q", got)
	}
	if got := cm.AutoDeleteAfter(); got != 0 {
		t.Fatalf("missing key should default to 0, got %d", got)
	}
	if got := cm.Snapshot().Discord.DefaultColor; got != "#5865F2" {
		t.Fatalf("absent section should keep defaults, got %q", got)
	}
	if ids := cm.AdminIDs(); ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty admin list, got %#v", ids)
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)

	doc := `{"channels": {"confession": "111", "futureKey": "x"}, "futureSection": {"a": 1}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cm := NewConfigManagerWithPath(path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cm.ConfessionChannelID(); got != "111" {
		t.Fatalf("got %q", got)
	}
}

func TestLoadConfigMalformedFileFails(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cm := NewConfigManagerWithPath(path)
	err := cm.LoadConfig()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Operation != "parse" {
		t.Fatalf("expected parse ConfigError, got %v", err)
	}

	// The malformed file must not be overwritten with defaults.
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		t.Fatalf("read back: %v", rerr)
	}
	if string(data) != "{not json" {
		t.Fatalf("malformed file was rewritten: %q", string(data))
	}
}

func TestSettersAreWriteThrough(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)
	cm := NewConfigManagerWithPath(path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if err := cm.SetConfessionChannel("42"); err != nil {
		t.Fatalf("SetConfessionChannel: %v", err)
	}
	if err := cm.SetLogsChannel("43"); err != nil {
		t.Fatalf("SetLogsChannel: %v", err)
	}
	if err := cm.SetAdminIDs([]string{"a", "b", "a"}); err != nil {
		t.Fatalf("SetAdminIDs: %v", err)
	}

	// A fresh manager reading the same file sees every mutation.
	other := NewConfigManagerWithPath(path)
	if err := other.LoadConfig(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := other.ConfessionChannelID(); got != "42" {
		t.Fatalf("confession channel not persisted: %q", got)
	}
	if got := other.LogsChannelID(); got != "43" {
		t.Fatalf("logs channel not persisted: %q", got)
	}
	ids := other.AdminIDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "a" {
		t.Fatalf("admin list order/duplicates not preserved: %#v", ids)
	}
}

func TestIncrementConfessionCount(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)
	cm := NewConfigManagerWithPath(path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := cm.IncrementConfessionCount()
		if err != nil {
			t.Fatalf("increment %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	other := NewConfigManagerWithPath(path)
	if err := other.LoadConfig(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := other.ConfessionCount(); got != 3 {
		t.Fatalf("counter not persisted: %d", got)
	}
}

func TestIncrementTreatsNegativeAsZero(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)
	doc := `{"stats": {"confessionCount": -7, "replyCount": -1}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cm := NewConfigManagerWithPath(path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got, err := cm.IncrementConfessionCount(); err != nil || got != 1 {
		t.Fatalf("expected 1, got %d (err %v)", got, err)
	}
	if got, err := cm.IncrementReplyCount(); err != nil || got != 1 {
		t.Fatalf("expected 1, got %d (err %v)", got, err)
	}
}

func TestIncrementTreatsNonNumericAsZero(t *testing.T) {
	t.Parallel()
	path := tempConfigPath(t)
	doc := `{"stats": {"confessionCount": "many", "replyCount": null}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cm := NewConfigManagerWithPath(path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got, err := cm.IncrementConfessionCount(); err != nil || got != 1 {
		t.Fatalf("expected 1, got %d (err %v)", got, err)
	}
	if got, err := cm.IncrementReplyCount(); err != nil || got != 1 {
		t.Fatalf("expected 1, got %d (err %v)", got, err)
	}
}

func TestParseHexColor(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want int
	}{
		{"#5865F2", 0x5865F2},
		{"5865F2", 0x5865F2},
		{"#FF0000", 0xFF0000},
		{"", 0x5865F2},
		{"#zzz", 0x5865F2},
		{"#12345", 0x5865F2},
	}
	for _, tc := range cases {
		if got := ParseHexColor(tc.in); got != tc.want {
			t.Fatalf("ParseHexColor(%q) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}
