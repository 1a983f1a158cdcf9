package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

const minimalConfig = `sdb:
  name: "TestApp"
  version: "1.0"
storage:
  dir: ./data
  s3:
    enabled: false
capture:
  exchange: KRX
  symbols:
    - symbol: KR4101
      instrument: KR4101K60008
      secid: 1
      depth: 5
      px_step: 0.01
  candles:
    resolutions: [60, 300]
    start_time: 32400
    end_time: 54000
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.SDB.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.SDB.Name)
	}
	if cfg.Channels.RawBuffer != 1024 {
		t.Errorf("default raw buffer not applied: %d", cfg.Channels.RawBuffer)
	}
	if len(cfg.Capture.Symbols) != 1 || cfg.Capture.Symbols[0].Depth != 5 {
		t.Errorf("symbols not parsed: %+v", cfg.Capture.Symbols)
	}
	if len(cfg.Capture.Candles.Resolutions) != 2 {
		t.Errorf("candle resolutions not parsed: %+v", cfg.Capture.Candles)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("SDB_DATA_DIR", "/tmp/sdb-data")
	path := writeTempConfig(t, `sdb:
  name: "TestApp"
  version: "1.0"
storage:
  dir: ${SDB_DATA_DIR}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.Dir != "/tmp/sdb-data" {
		t.Errorf("env not expanded: %s", cfg.Storage.Dir)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "sdb:\n  version: \"1\"\nstorage:\n  dir: ./d\n"},
		{"missing dir", "sdb:\n  name: x\n  version: \"1\"\n"},
		{"bad depth", `sdb:
  name: x
  version: "1"
storage:
  dir: ./d
capture:
  symbols:
    - symbol: A
      instrument: B
      depth: 16
      px_step: 0.01
`},
	}
	for _, tc := range cases {
		path := writeTempConfig(t, tc.content)
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	if env := AppEnvironment(); env != EnvironmentProduction {
		t.Fatalf("alias not resolved: %s", env)
	}
	if !IsProductionLike(EnvironmentStaging) {
		t.Fatalf("staging should be production-like")
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Fatalf("development should not be production-like")
	}
}
