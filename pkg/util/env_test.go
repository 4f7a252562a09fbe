package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvWithLocalBinFallbackUsesHomeFile(t *testing.T) {
	tmp := t.TempDir()
	fakeHome := filepath.Join(tmp, "home")
	if err := os.MkdirAll(filepath.Join(fakeHome, ".local", "bin"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	envPath := filepath.Join(fakeHome, ".local", "bin", ".env")
	if err := os.WriteFile(envPath, []byte("CONFESSBOT_TEST_TOKEN=fromfile"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	t.Setenv("HOME", fakeHome)
	_ = os.Unsetenv("CONFESSBOT_TEST_TOKEN")

	got, err := LoadEnvWithLocalBinFallback("CONFESSBOT_TEST_TOKEN")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "fromfile" {
		t.Fatalf("expected value from file, got %q", got)
	}

	// When env already set, file should not override.
	t.Setenv("CONFESSBOT_TEST_TOKEN", "envwins")
	got, err = LoadEnvWithLocalBinFallback("CONFESSBOT_TEST_TOKEN")
	if err != nil || got != "envwins" {
		t.Fatalf("expected existing env to win, got %q err=%v", got, err)
	}
}

func TestLoadEnvWithLocalBinFallbackMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_ = os.Unsetenv("CONFESSBOT_ABSENT_TOKEN")

	if _, err := LoadEnvWithLocalBinFallback("CONFESSBOT_ABSENT_TOKEN"); err == nil {
		t.Fatalf("expected error for unset variable with no fallback file")
	}
}
