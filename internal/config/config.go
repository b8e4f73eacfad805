package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lava-submitter/internal/core"
	"lava-submitter/internal/rpc"

	"gopkg.in/yaml.v3"
)

type LavaConfig struct {
	URI           string        `yaml:"uri"`
	Username      string        `yaml:"username"`
	Token         string        `yaml:"token"`
	Proxy         string        `yaml:"proxy"`
	IdentityFile  string        `yaml:"identity_file"` // lavacli.yaml
	Identity      string        `yaml:"identity"`
	Timeout       time.Duration `yaml:"timeout"`
	VerifySSLCert *bool         `yaml:"verify_ssl_cert"`
}

type PollingConfig struct {
	DeviceHangingTimeout time.Duration `yaml:"device_hanging_timeout"`
	WaitForDevice        time.Duration `yaml:"wait_for_device"`
	LogPolling           time.Duration `yaml:"log_polling"`
	Retries              *int          `yaml:"retries"`
	ParseRetries         int           `yaml:"parse_retries"`
}

type RPCConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type SectionsConfig struct {
	Boot           time.Duration `yaml:"boot"`
	TestSuite      time.Duration `yaml:"test_suite"`
	TestCase       time.Duration `yaml:"test_case"`
	PostProcessing time.Duration `yaml:"post_processing"`
	Fallback       time.Duration `yaml:"fallback"`
}

type KnownIssuesConfig struct {
	R8152MaxConsecutive int `yaml:"r8152_max_consecutive"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type MonitorConfig struct {
	Listen string `yaml:"listen"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LedgerConfig struct {
	Path       string `yaml:"path"`
	PrivateKey string `yaml:"private_key"`
	PublicKey  string `yaml:"public_key"`
}

type ArchiveConfig struct {
	Dir string `yaml:"dir"`
}

type Config struct {
	Lava        LavaConfig        `yaml:"lava"`
	Polling     PollingConfig     `yaml:"polling"`
	RPC         RPCConfig         `yaml:"rpc"`
	Sections    SectionsConfig    `yaml:"sections"`
	KnownIssues KnownIssuesConfig `yaml:"known_issues"`
	Log         LogConfig         `yaml:"log"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Redis       RedisConfig       `yaml:"redis"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Archive     ArchiveConfig     `yaml:"archive"`
	HideTag     string            `yaml:"hide_tag"`
}

// Load reads the config at path. An empty path means defaults and environment
// only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.Lava.IdentityFile != "" {
		if err := cfg.Lava.loadIdentity(); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Lava.Identity == "" {
		c.Lava.Identity = "default"
	}
	if c.Lava.Timeout <= 0 {
		c.Lava.Timeout = 2 * time.Minute
	}
	if c.Lava.VerifySSLCert == nil {
		v := true
		c.Lava.VerifySSLCert = &v
	}

	p := &c.Polling
	if p.DeviceHangingTimeout <= 0 {
		p.DeviceHangingTimeout = 5 * time.Minute
	}
	if p.WaitForDevice <= 0 {
		p.WaitForDevice = 10 * time.Second
	}
	if p.LogPolling <= 0 {
		p.LogPolling = 5 * time.Second
	}
	if p.Retries == nil {
		n := 2
		p.Retries = &n
	}
	if p.ParseRetries <= 0 {
		p.ParseRetries = 5
	}

	if c.RPC.MaxAttempts <= 0 {
		c.RPC.MaxAttempts = rpc.DefaultPolicy.MaxAttempts
	}
	if c.RPC.RetryDelay <= 0 {
		c.RPC.RetryDelay = rpc.DefaultPolicy.Delay
	}

	def := core.DefaultTimeouts()
	s := &c.Sections
	orDefault(&s.Boot, def.For(core.SectionBoot))
	orDefault(&s.TestSuite, def.For(core.SectionTestSuite))
	orDefault(&s.TestCase, def.For(core.SectionTestCase))
	orDefault(&s.PostProcessing, def.For(core.SectionPostProcessing))
	orDefault(&s.Fallback, def.Fallback)

	if c.KnownIssues.R8152MaxConsecutive <= 0 {
		c.KnownIssues.R8152MaxConsecutive = core.DefaultR8152Threshold
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.HideTag == "" {
		c.HideTag = "HIDEME"
	}
}

func orDefault(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// applyEnv honours the environment knobs of the CI job templates.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	seconds := []struct {
		name string
		dst  *time.Duration
	}{
		{"LAVA_DEVICE_HANGING_TIMEOUT_SEC", &c.Polling.DeviceHangingTimeout},
		{"LAVA_WAIT_FOR_DEVICE_POLLING_TIME_SEC", &c.Polling.WaitForDevice},
		{"LAVA_LOG_POLLING_TIME_SEC", &c.Polling.LogPolling},
	}
	for _, s := range seconds {
		v, ok := lookup(s.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = time.Duration(n) * time.Second
	}

	if v, ok := lookup("LAVA_NUMBER_OF_RETRIES_TIMEOUT_DETECTION"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("LAVA_NUMBER_OF_RETRIES_TIMEOUT_DETECTION: %w", err)
		}
		c.Polling.Retries = &n
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Lava.URI == "" {
		errs = append(errs, errors.New("lava.uri is required"))
	}
	if *c.Polling.Retries < 0 {
		errs = append(errs, errors.New("polling.retries must not be negative"))
	}
	for _, p := range []struct {
		name string
		d    time.Duration
	}{
		{"polling.device_hanging_timeout", c.Polling.DeviceHangingTimeout},
		{"polling.wait_for_device", c.Polling.WaitForDevice},
		{"polling.log_polling", c.Polling.LogPolling},
	} {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", p.name, p.d))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	if (c.Ledger.PrivateKey == "") != (c.Ledger.PublicKey == "") {
		errs = append(errs, errors.New("ledger.private_key and ledger.public_key go together"))
	}
	return errors.Join(errs...)
}

// Retries is the number of resubmissions after the first attempt.
func (c *Config) Retries() int { return *c.Polling.Retries }

// Identity is the scheduler endpoint description.
func (c *Config) Identity() rpc.Identity {
	return rpc.Identity{
		URI:           c.Lava.URI,
		Username:      c.Lava.Username,
		Token:         c.Lava.Token,
		Proxy:         c.Lava.Proxy,
		Timeout:       c.Lava.Timeout,
		VerifySSLCert: *c.Lava.VerifySSLCert,
	}
}

func (c *Config) Policy() rpc.Policy {
	return rpc.Policy{MaxAttempts: c.RPC.MaxAttempts, Delay: c.RPC.RetryDelay}
}

// Timeouts builds the section budgets. A positive jobTimeout (minutes) replaces
// the test case budget.
func (c *Config) Timeouts(jobTimeout int) core.Timeouts {
	t := core.Timeouts{
		ByType: map[core.SectionType]time.Duration{
			core.SectionBoot:           c.Sections.Boot,
			core.SectionTestSuite:      c.Sections.TestSuite,
			core.SectionTestCase:       c.Sections.TestCase,
			core.SectionPostProcessing: c.Sections.PostProcessing,
		},
		Fallback: c.Sections.Fallback,
	}
	if jobTimeout > 0 {
		t = t.With(core.SectionTestCase, time.Duration(jobTimeout)*time.Minute)
	}
	return t
}

// Settings is the per-attempt polling policy.
func (c *Config) Settings(jobTimeout int) core.Settings {
	return core.Settings{
		HangTimeout:         c.Polling.DeviceHangingTimeout,
		WaitPoll:            c.Polling.WaitForDevice,
		LogPoll:             c.Polling.LogPolling,
		ParseRetries:        c.Polling.ParseRetries,
		Timeouts:            c.Timeouts(jobTimeout),
		KnownIssueThreshold: c.KnownIssues.R8152MaxConsecutive,
	}
}
