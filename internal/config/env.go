package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ApplyEnv. NS_ADDR, AK and SK keep the names
// used by the RocketMQ tooling.
const (
	EnvNameServer         = "NS_ADDR"
	EnvAccessKey          = "AK"
	EnvSecretKey          = "SK"
	EnvReadOnly           = "MCP_READ_ONLY"
	EnvRequireCredentials = "MCP_REQUIRE_CREDENTIALS"
	EnvPrincipal          = "MCP_PRINCIPAL"
	EnvLegacyText         = "MCP_LEGACY_TEXT"
	EnvTimeout            = "ROCKETMQ_MCP_TIMEOUT"
	EnvHTTPListen         = "ROCKETMQ_MCP_HTTP_LISTEN"
	EnvGRPCListen         = "ROCKETMQ_MCP_GRPC_LISTEN"
	EnvGRPCTokens         = "ROCKETMQ_MCP_GRPC_TOKENS"
	EnvLogLevel           = "ROCKETMQ_MCP_LOG_LEVEL"
	EnvAuditSink          = "ROCKETMQ_MCP_AUDIT_SINK"
	EnvAuditDSN           = "ROCKETMQ_MCP_AUDIT_DSN"
)

// ApplyEnv overrides cfg with the set, non-blank environment variables.
// lookup is os.LookupEnv in production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	var errs []string
	boolean := func(key string, dst *bool) {
		v, ok := get(key)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
			return
		}
		*dst = b
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := get(key)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}

	str(EnvNameServer, &cfg.RocketMQ.NamesrvAddr)
	str(EnvAccessKey, &cfg.RocketMQ.AccessKey)
	str(EnvSecretKey, &cfg.RocketMQ.SecretKey)
	duration(EnvTimeout, &cfg.RocketMQ.Timeout)
	boolean(EnvReadOnly, &cfg.MCP.ReadOnly)
	boolean(EnvRequireCredentials, &cfg.MCP.RequireCredentials)
	str(EnvPrincipal, &cfg.MCP.Principal)
	boolean(EnvLegacyText, &cfg.MCP.LegacyText)
	str(EnvHTTPListen, &cfg.HTTP.Listen)
	str(EnvGRPCListen, &cfg.GRPC.Listen)
	str(EnvGRPCTokens, &cfg.GRPC.Tokens)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvAuditSink, &cfg.Audit.Sink)
	str(EnvAuditDSN, &cfg.Audit.DSN)

	if len(errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(errs, "; "))
	}
	return nil
}
