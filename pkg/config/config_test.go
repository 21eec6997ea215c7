package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

func (c *testConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("ANSUZ_TEST_NAME", "catalog")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "name: ${ANSUZ_TEST_NAME}\nlevel: 3\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "catalog" || cfg.Level != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_RunsValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "level: 1\n")

	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "name: x\nnmae: typo\n")

	var cfg testConfig
	if err := Load(path, &cfg); err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestLoad_KeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "name: x\n")

	cfg := testConfig{Level: 5}
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Level != 5 {
		t.Errorf("level = %d, want default 5", cfg.Level)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "name: first\nlevel: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *testConfig, 4)
	errs := make(chan error, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path,
			func() *testConfig { return &testConfig{Level: 7} },
			func(c *testConfig) { changes <- c },
			func(err error) { errs <- err },
		)
	}()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, path, "name: second\n")

	select {
	case c := <-changes:
		if c.Name != "second" || c.Level != 7 {
			t.Errorf("reloaded = %+v, want name second with default level", c)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}

	writeFile(t, path, "level: 2\n")
	select {
	case err := <-errs:
		if !strings.Contains(err.Error(), "name is required") {
			t.Errorf("err = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("invalid config not reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop after cancel")
	}
}
