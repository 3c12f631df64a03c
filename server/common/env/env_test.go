package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFallbacks(t *testing.T) {
	t.Setenv("LEGALCHAT_TEST_STRING", "  ")
	t.Setenv("LEGALCHAT_TEST_INT", "-3")
	t.Setenv("LEGALCHAT_TEST_BOOL", "maybe")
	t.Setenv("LEGALCHAT_TEST_DURATION", "soon")

	if got := String("LEGALCHAT_TEST_STRING", "x"); got != "x" {
		t.Errorf("String() = %q, want x", got)
	}
	if got := Int("LEGALCHAT_TEST_INT", 7); got != 7 {
		t.Errorf("Int() = %d, want 7", got)
	}
	if got := Bool("LEGALCHAT_TEST_BOOL", true); !got {
		t.Errorf("Bool() = false, want true")
	}
	if got := Duration("LEGALCHAT_TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("Duration() = %v, want 1m", got)
	}
}

func TestParsedValues(t *testing.T) {
	t.Setenv("LEGALCHAT_TEST_STRING", " value ")
	t.Setenv("LEGALCHAT_TEST_INT", "42")
	t.Setenv("LEGALCHAT_TEST_BOOL", "false")
	t.Setenv("LEGALCHAT_TEST_DURATION", "90s")

	if got := String("LEGALCHAT_TEST_STRING", "x"); got != "value" {
		t.Errorf("String() = %q, want value", got)
	}
	if got := Int("LEGALCHAT_TEST_INT", 7); got != 42 {
		t.Errorf("Int() = %d, want 42", got)
	}
	if got := Bool("LEGALCHAT_TEST_BOOL", true); got {
		t.Errorf("Bool() = true, want false")
	}
	if got := Duration("LEGALCHAT_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEGALCHAT_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("LEGALCHAT_TEST_DOTENV")
	t.Cleanup(func() { os.Unsetenv("LEGALCHAT_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("LEGALCHAT_TEST_DOTENV"); got != "from-file" {
		t.Errorf("LEGALCHAT_TEST_DOTENV = %q, want from-file", got)
	}
}
