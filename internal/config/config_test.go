package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ployvm.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFillsInMissingFieldsWithDefaults(t *testing.T) {
	path := writeConfig(t, `max-call-stack-depth = 100`)
	limits, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if limits.MaxCallStackDepth != 100 {
		t.Fatalf("got %d, want 100", limits.MaxCallStackDepth)
	}
	if limits.MaxValueStackDepth != defaultMaxValueStackDepth {
		t.Fatalf("got %d, want default %d", limits.MaxValueStackDepth, defaultMaxValueStackDepth)
	}
	if limits.MaxConstants != defaultMaxConstants {
		t.Fatalf("got %d, want default %d", limits.MaxConstants, defaultMaxConstants)
	}
}

func TestLoadClampsMaxConstantsAboveCeiling(t *testing.T) {
	path := writeConfig(t, `max-constants = 1000`)
	limits, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if limits.MaxConstants != defaultMaxConstants {
		t.Fatalf("got %d, want clamped to %d", limits.MaxConstants, defaultMaxConstants)
	}
}

func TestLoadMissingFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestDefaultMatchesZeroValueLimits(t *testing.T) {
	d := Default()
	if d.MaxValueStackDepth != defaultMaxValueStackDepth || d.MaxCallStackDepth != defaultMaxCallStackDepth || d.MaxConstants != defaultMaxConstants {
		t.Fatalf("got %+v", d)
	}
}
