// Package config loads the rocketmq-mcp ini configuration.
//
// Values are layered: built-in defaults, then the ini file, then the
// environment (see ApplyEnv), then command line flags applied by the caller.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

type Config struct {
	MCP      MCPConfig      `ini:"mcp"`
	RocketMQ RocketMQConfig `ini:"rocketmq"`
	HTTP     HTTPConfig     `ini:"http"`
	GRPC     GRPCConfig     `ini:"grpc"`
	Log      LogConfig      `ini:"log"`
	Tracing  TracingConfig  `ini:"tracing"`
	Audit    AuditConfig    `ini:"audit"`
}

type MCPConfig struct {
	ReadOnly           bool   `ini:"readOnly"`
	RequireCredentials bool   `ini:"requireCredentials"`
	Principal          string `ini:"principal"`
	LegacyText         bool   `ini:"legacyText"`
	// SSEBaseURL is the origin advertised to SSE clients; blank derives it
	// from the request.
	SSEBaseURL string `ini:"sseBaseURL"`
}

type RocketMQConfig struct {
	NamesrvAddr string        `ini:"namesrvAddr"`
	AccessKey   string        `ini:"accessKey"`
	SecretKey   string        `ini:"secretKey"`
	Timeout     time.Duration `ini:"timeout"`
	// LogLevel tunes the rocketmq client library logger.
	LogLevel string `ini:"logLevel"`
}

type HTTPConfig struct {
	// Listen is the REST, SSE, metrics and health address. Blank disables it.
	Listen      string `ini:"listen"`
	DebugBodies bool   `ini:"debugBodies"`
}

type GRPCConfig struct {
	// Listen is the tool service address. Blank disables it.
	Listen string `ini:"listen"`
	// Tokens is a comma separated list of accepted bearer tokens.
	Tokens string `ini:"tokens"`
}

type LogConfig struct {
	Level  string `ini:"level"`
	Output string `ini:"output"`
	Path   string `ini:"path"`
}

type TracingConfig struct {
	Enabled   bool          `ini:"enabled"`
	Collector string        `ini:"collector"`
	URLPath   string        `ini:"urlPath"`
	Insecure  bool          `ini:"insecure"`
	Timeout   time.Duration `ini:"timeout"`
}

type AuditConfig struct {
	Sink      string        `ini:"sink"`
	Path      string        `ini:"path"`
	DSN       string        `ini:"dsn"`
	Retention time.Duration `ini:"retention"`
}

func Default() Config {
	return Config{
		MCP: MCPConfig{
			Principal: "rocketmq-mcp",
		},
		RocketMQ: RocketMQConfig{
			Timeout:  5 * time.Second,
			LogLevel: "warn",
		},
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Output: "stderr",
		},
		Audit: AuditConfig{
			Sink: "stderr",
			Path: "./.data/audit.db",
		},
	}
}

// Parse overlays the ini document data on the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := f.StrictMapTo(&cfg); err != nil {
		return cfg, fmt.Errorf("map config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses path. A blank path or a missing file yields the
// defaults when optional is true.
func Load(path string, optional bool) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), err
	}
	return Parse(data)
}

// Format renders cfg as a normalized ini document.
func Format(cfg Config) ([]byte, error) {
	f := ini.Empty()
	if err := ini.ReflectFrom(f, &cfg); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GRPCTokens splits the configured bearer tokens.
func (c Config) GRPCTokens() []string {
	return splitList(c.GRPC.Tokens)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
