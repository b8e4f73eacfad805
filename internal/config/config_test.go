package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lava-submitter/internal/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "lava:\n  uri: https://lava.example.org/RPC2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Retries() != 2 {
		t.Errorf("retries = %d", cfg.Retries())
	}
	s := cfg.Settings(0)
	if s.HangTimeout != 5*time.Minute || s.WaitPoll != 10*time.Second || s.LogPoll != 5*time.Second {
		t.Errorf("polling settings = %+v", s)
	}
	if s.ParseRetries != 5 || s.KnownIssueThreshold != 10 {
		t.Errorf("retry settings = %+v", s)
	}
	if p := cfg.Policy(); p.MaxAttempts != 60 || p.Delay != 15*time.Second {
		t.Errorf("policy = %+v", p)
	}
	if !cfg.Identity().VerifySSLCert {
		t.Error("certificate verification disabled by default")
	}
	if got := s.Timeouts.For(core.SectionBoot); got != 9*time.Minute {
		t.Errorf("boot budget = %v", got)
	}
}

func TestJobTimeoutOverridesTestCase(t *testing.T) {
	path := writeFile(t, "config.yaml", "lava:\n  uri: https://lava.example.org/RPC2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Timeouts(30).For(core.SectionTestCase); got != 30*time.Minute {
		t.Errorf("test case budget = %v", got)
	}
	if got := cfg.Timeouts(0).For(core.SectionTestCase); got != 60*time.Minute {
		t.Errorf("test case budget without override = %v", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LAVA_DEVICE_HANGING_TIMEOUT_SEC", "600")
	t.Setenv("LAVA_WAIT_FOR_DEVICE_POLLING_TIME_SEC", "1")
	t.Setenv("LAVA_LOG_POLLING_TIME_SEC", "2")
	t.Setenv("LAVA_NUMBER_OF_RETRIES_TIMEOUT_DETECTION", "0")

	path := writeFile(t, "config.yaml", "lava:\n  uri: https://lava.example.org/RPC2\npolling:\n  retries: 5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	s := cfg.Settings(0)
	if s.HangTimeout != 10*time.Minute || s.WaitPoll != time.Second || s.LogPoll != 2*time.Second {
		t.Errorf("settings = %+v", s)
	}
	if cfg.Retries() != 0 {
		t.Errorf("retries = %d, want 0 from the environment", cfg.Retries())
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("LAVA_LOG_POLLING_TIME_SEC", "soon")
	path := writeFile(t, "config.yaml", "lava:\n  uri: https://lava.example.org/RPC2\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a non numeric override")
	}
}

func TestEnvOverrideNonPositive(t *testing.T) {
	for _, v := range []string{"0", "-30"} {
		t.Setenv("LAVA_DEVICE_HANGING_TIMEOUT_SEC", v)
		path := writeFile(t, "config.yaml", "lava:\n  uri: https://lava.example.org/RPC2\n")
		if _, err := Load(path); err == nil {
			t.Errorf("hang timeout %s accepted", v)
		}
	}
}

func TestIdentityFile(t *testing.T) {
	identities := writeFile(t, "lavacli.yaml", `
identities:
  default:
    uri: https://lava.freedesktop.org/RPC2
    username: gitlab
    token: abc
    timeout: 30
    verify_ssl_cert: false
  other:
    uri: https://other.example.org/RPC2
`)
	path := writeFile(t, "config.yaml", "lava:\n  identity_file: "+identities+"\n  username: override\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	id := cfg.Identity()
	if id.URI != "https://lava.freedesktop.org/RPC2" || id.Username != "override" || id.Token != "abc" {
		t.Errorf("identity = %+v", id)
	}
	if id.Timeout != 30*time.Second || id.VerifySSLCert {
		t.Errorf("identity transport = %+v", id)
	}

	missing := writeFile(t, "missing.yaml", "lava:\n  identity_file: "+identities+"\n  identity: nope\n")
	if _, err := Load(missing); err == nil {
		t.Error("unknown identity accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing uri", "log:\n  level: debug\n"},
		{"bad format", "lava:\n  uri: https://x/RPC2\nlog:\n  format: xml\n"},
		{"half key pair", "lava:\n  uri: https://x/RPC2\nledger:\n  path: l.jsonl\n  private_key: k.priv\n"},
		{"negative retries", "lava:\n  uri: https://x/RPC2\npolling:\n  retries: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "config.yaml", tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
