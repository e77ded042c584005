package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `
[mcp]
readOnly = true
principal = ops-bot

[rocketmq]
namesrvAddr = 10.0.0.1:9876;10.0.0.2:9876
accessKey = ak1
secretKey = sk1
timeout = 3s

[http]
listen = 127.0.0.1:9090

[grpc]
listen = :9091
tokens = t1, t2

[audit]
sink = sqlite
path = /var/lib/rocketmq-mcp/audit.db
retention = 720h
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.MCP.ReadOnly || cfg.MCP.Principal != "ops-bot" {
		t.Fatalf("mcp section: %#v", cfg.MCP)
	}
	if cfg.RocketMQ.NamesrvAddr != "10.0.0.1:9876;10.0.0.2:9876" || cfg.RocketMQ.Timeout != 3*time.Second {
		t.Fatalf("rocketmq section: %#v", cfg.RocketMQ)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9090" || cfg.GRPC.Listen != ":9091" {
		t.Fatalf("listeners: %#v %#v", cfg.HTTP, cfg.GRPC)
	}
	if got := cfg.GRPCTokens(); len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Fatalf("tokens: %v", got)
	}
	if cfg.Audit.Sink != "sqlite" || cfg.Audit.Retention != 720*time.Hour {
		t.Fatalf("audit section: %#v", cfg.Audit)
	}
	// untouched sections keep their defaults
	if cfg.Log.Level != "info" || cfg.RocketMQ.LogLevel != "warn" {
		t.Fatalf("defaults lost: %#v %#v", cfg.Log, cfg.RocketMQ)
	}
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse([]byte("  \n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	if _, err := Parse([]byte("[rocketmq]\ntimeout = soon\n")); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.ini"), false); err == nil {
		t.Fatalf("expected error for missing required file")
	}
	cfg, err := Load(filepath.Join(dir, "missing.ini"), true)
	if err != nil || cfg != Default() {
		t.Fatalf("optional missing file: %v %#v", err, cfg)
	}

	path := filepath.Join(dir, "rocketmq-mcp.ini")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = Load(path, false)
	if err != nil || !cfg.MCP.ReadOnly {
		t.Fatalf("load: %v %#v", err, cfg.MCP)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	env := map[string]string{
		EnvNameServer: "env-ns:9876",
		EnvReadOnly:   "false",
		EnvPrincipal:  "  ",
		EnvTimeout:    "10s",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.RocketMQ.NamesrvAddr != "env-ns:9876" || cfg.MCP.ReadOnly || cfg.RocketMQ.Timeout != 10*time.Second {
		t.Fatalf("env not applied: %#v %#v", cfg.RocketMQ, cfg.MCP)
	}
	if cfg.MCP.Principal != "ops-bot" {
		t.Fatalf("blank env value must not override: %q", cfg.MCP.Principal)
	}
	if cfg.RocketMQ.AccessKey != "ak1" {
		t.Fatalf("unset env must not override: %q", cfg.RocketMQ.AccessKey)
	}

	env[EnvReadOnly] = "maybe"
	err = ApplyEnv(&cfg, lookup)
	if err == nil || !strings.Contains(err.Error(), EnvReadOnly) {
		t.Fatalf("expected invalid boolean error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	res := Validate(Default())
	if !res.OK {
		t.Fatalf("defaults must validate: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a warning for the empty name server")
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log file path", func(c *Config) { c.Log.Output = "file" }, "log.path"},
		{"timeout", func(c *Config) { c.RocketMQ.Timeout = 0 }, "rocketmq.timeout"},
		{"half credentials", func(c *Config) { c.RocketMQ.AccessKey = "ak" }, "rocketmq.accessKey"},
		{"http listen", func(c *Config) { c.HTTP.Listen = "nope" }, "http.listen"},
		{"sse base url", func(c *Config) { c.MCP.SSEBaseURL = "/relative" }, "mcp.sseBaseURL"},
		{"tracing collector", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Collector = "collector" }, "tracing.collector"},
		{"audit sink", func(c *Config) { c.Audit.Sink = "kafka" }, "audit.sink"},
		{"postgres dsn", func(c *Config) { c.Audit.Sink = "postgres" }, "audit.dsn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			res := Validate(cfg)
			if res.OK {
				t.Fatalf("expected validation failure")
			}
			if !strings.Contains(strings.Join(res.Errors, "\n"), tc.want) {
				t.Fatalf("errors %v do not mention %q", res.Errors, tc.want)
			}
			if !strings.HasPrefix(FormatValidationText(res), "config invalid: ") {
				t.Fatalf("text: %q", FormatValidationText(res))
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := Format(cfg)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(string(out), "[rocketmq]") {
		t.Fatalf("missing section:\n%s", out)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if again != cfg {
		t.Fatalf("round trip mismatch:\n%#v\n%#v", again, cfg)
	}
}
