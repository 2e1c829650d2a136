package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
fleet:
  pairing_code_length: 6
  offline_threshold: 45
database:
  path: "/tmp/fleetd-test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 9090
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}

	if cfg.Database.Path != "/tmp/fleetd-test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/fleetd-test.db")
	}

	if cfg.GetOfflineThreshold() != 45*time.Second {
		t.Errorf("GetOfflineThreshold() = %v, want 45s", cfg.GetOfflineThreshold())
	}

	if cfg.API.GetReadTimeout() != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", cfg.API.GetReadTimeout())
	}
	if cfg.API.GetWriteTimeout() != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", cfg.API.GetWriteTimeout())
	}
	if cfg.API.GetIdleTimeout() != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", cfg.API.GetIdleTimeout())
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	// Minimal file: only the required secret is set; everything else defaults.
	content := `
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fleet.PairingCodeLength != 6 {
		t.Errorf("Fleet.PairingCodeLength = %d, want 6", cfg.Fleet.PairingCodeLength)
	}
	if cfg.Fleet.OfflineThreshold != 45 {
		t.Errorf("Fleet.OfflineThreshold = %d, want 45", cfg.Fleet.OfflineThreshold)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing JWT secret",
			content: `
database:
  path: "/tmp/test.db"
`,
			wantErr: "security.jwt.secret is required",
		},
		{
			name: "short JWT secret",
			content: `
security:
  jwt:
    secret: "too-short"
`,
			wantErr: "at least 32 characters",
		},
		{
			name: "bad pairing code length",
			content: `
fleet:
  pairing_code_length: 2
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`,
			wantErr: "pairing_code_length",
		},
		{
			name: "bad offline threshold",
			content: `
fleet:
  offline_threshold: 1
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`,
			wantErr: "offline_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
database:
  path: "/tmp/from-file.db"
security:
  jwt:
    secret: "file-secret-key-at-least-32-chars!"
`
	t.Setenv("FLEETD_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("FLEETD_API_PORT", "7070")
	t.Setenv("FLEETD_JWT_SECRET", "env-secret-key-at-least-32-chars!!")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port = %d, want 7070", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != "env-secret-key-at-least-32-chars!!" {
		t.Errorf("JWT.Secret = %q, want env override", cfg.Security.JWT.Secret)
	}
}
