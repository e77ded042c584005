package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
)

type ValidationResult struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func Validate(cfg Config) ValidationResult {
	var errs, warns []string
	errorf := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }
	warnf := func(format string, args ...any) { warns = append(warns, fmt.Sprintf(format, args...)) }

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errorf("log.level %q must be one of debug|info|warn|error", cfg.Log.Level)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Output)) {
	case "", "stderr", "stdout":
	case "file":
		if strings.TrimSpace(cfg.Log.Path) == "" {
			errorf("log.path is required when log.output is file")
		}
	default:
		errorf("log.output %q must be one of stdout|stderr|file", cfg.Log.Output)
	}

	if cfg.RocketMQ.Timeout <= 0 {
		errorf("rocketmq.timeout must be positive")
	}
	if strings.TrimSpace(cfg.RocketMQ.NamesrvAddr) == "" {
		warnf("rocketmq.namesrvAddr is empty: every call must pass nameserverAddressList")
	}
	if cfg.MCP.RequireCredentials && (cfg.RocketMQ.AccessKey == "" || cfg.RocketMQ.SecretKey == "") {
		warnf("mcp.requireCredentials is set without default credentials: every call must pass ak and sk")
	}
	if (cfg.RocketMQ.AccessKey == "") != (cfg.RocketMQ.SecretKey == "") {
		errorf("rocketmq.accessKey and rocketmq.secretKey must be set together")
	}

	checkListen := func(name, addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errorf("%s %q: %v", name, addr, err)
		}
	}
	checkListen("http.listen", cfg.HTTP.Listen)
	checkListen("grpc.listen", cfg.GRPC.Listen)
	if strings.TrimSpace(cfg.GRPC.Listen) != "" && len(cfg.GRPCTokens()) == 0 {
		warnf("grpc.tokens is empty: the gRPC tool service accepts unauthenticated calls")
	}
	if u := strings.TrimSpace(cfg.MCP.SSEBaseURL); u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errorf("mcp.sseBaseURL %q must be an absolute URL", u)
		}
	}

	if cfg.Tracing.Enabled {
		if c := strings.TrimSpace(cfg.Tracing.Collector); c != "" {
			if parsed, err := url.Parse(c); err != nil || parsed.Scheme == "" || parsed.Host == "" {
				errorf("tracing.collector %q must be an absolute URL", c)
			}
		}
		if cfg.Tracing.Timeout < 0 {
			errorf("tracing.timeout must not be negative")
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Audit.Sink)) {
	case "", "none", "stderr":
	case "sqlite":
		if strings.TrimSpace(cfg.Audit.Path) == "" {
			errorf("audit.path is required for the sqlite sink")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Audit.DSN) == "" {
			errorf("audit.dsn is required for the postgres sink")
		}
	default:
		errorf("audit.sink %q must be one of none|stderr|sqlite|postgres", cfg.Audit.Sink)
	}
	if cfg.Audit.Retention < 0 {
		errorf("audit.retention must not be negative")
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs, Warnings: warns}
}

func FormatValidationJSON(res ValidationResult) (string, error) {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func FormatValidationText(res ValidationResult) string {
	if res.OK {
		if len(res.Warnings) == 0 {
			return "config ok"
		}
		return fmt.Sprintf("config ok (warnings: %d)", len(res.Warnings))
	}
	if len(res.Errors) == 0 {
		return "config invalid"
	}
	return fmt.Sprintf("config invalid: %s", res.Errors[0])
}
