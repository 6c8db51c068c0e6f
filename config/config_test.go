package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Setenv("TEST_SMTP_PASSWORD", "hunter2")
	data := []byte(`
server:
  addr: ":9090"
smtp:
  host: smtp.example.com
  from: immotax@example.com
  password: ${TEST_SMTP_PASSWORD}
webhooks:
  backoff: 2s
scheduler:
  at: "06:30"
`)
	cfg := Default()
	if err := Parse(data, cfg); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	want := Default()
	want.Server.Addr = ":9090"
	want.SMTP.Host = "smtp.example.com"
	want.SMTP.From = "immotax@example.com"
	want.SMTP.Password = "hunter2"
	want.Webhooks.Backoff = 2 * time.Second
	want.Scheduler.At = "06:30"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"IMMOTAX_DB":        ":memory:",
		"GEMINI_API_KEY":    "key",
		"IMMOTAX_SMTP_PORT": "2525",
		"IMMOTAX_SCHEDULER": "false",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.Store.Path != ":memory:" || cfg.LLM.APIKey != "key" || cfg.SMTP.Port != 2525 || cfg.Scheduler.Enabled {
		t.Errorf("applyEnv() = %+v", cfg)
	}

	env["IMMOTAX_SMTP_PORT"] = "smtp"
	if err := Default().applyEnv(lookup); err == nil {
		t.Error("applyEnv() with an invalid port succeeded")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Mode = "fast"
	cfg.SMTP.Host = "smtp.example.com"
	cfg.Scheduler.At = "7am"
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() succeeded")
	}
	for _, want := range []string{"server.mode", "smtp.from", "scheduler.at", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "immotax.yaml")
	if err := os.WriteFile(path, []byte("store:\n  path: test.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMMOTAX_ADDR", ":7070")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Path != "test.db" || cfg.Server.Addr != ":7070" {
		t.Errorf("Load() = %+v", cfg)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}
