package app

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/config"
)

const defaultConfigPath = "./rocketmq-mcp.ini"

// commonFlags are accepted by every command that builds a tool invoker.
// Only flags given on the command line override the config file and the
// environment.
type commonFlags struct {
	configPath         *string
	dotenvPath         *string
	logLevel           *string
	namesrv            *string
	accessKey          *string
	secretKey          *string
	timeout            *time.Duration
	readOnly           *bool
	requireCredentials *bool
	legacyText         *bool
	principal          *string
	auditSink          *string
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath:         fs.String("config", defaultConfigPath, "path to ini config file (optional when left at the default)"),
		dotenvPath:         fs.String("dotenv", "", "load environment variables from file before reading the config"),
		logLevel:           fs.String("log-level", "", "log level (debug|info|warn|error)"),
		namesrv:            fs.String("namesrv", "", "default name server address list (host:port;host:port)"),
		accessKey:          fs.String("ak", "", "default ACL access key"),
		secretKey:          fs.String("sk", "", "default ACL secret key"),
		timeout:            fs.Duration("timeout", 0, "remoting request timeout"),
		readOnly:           fs.Bool("read-only", false, "reject every write operation"),
		requireCredentials: fs.Bool("require-credentials", false, "fail calls that resolve no access key and secret key"),
		legacyText:         fs.Bool("legacy-text", false, "render tool results in the plain string form"),
		principal:          fs.String("principal", "", "principal recorded in audit events"),
		auditSink:          fs.String("audit", "", "audit sink (none|stderr|sqlite|postgres)"),
	}
}

// resolve builds the effective configuration: defaults, ini file,
// environment, then the flags set on fs.
func (f *commonFlags) resolve(fs *flag.FlagSet) (config.Config, error) {
	if p := strings.TrimSpace(*f.dotenvPath); p != "" {
		if _, err := loadDotenv(p); err != nil {
			return config.Config{}, fmt.Errorf("dotenv: %w", err)
		}
	}

	set := visitedFlags(fs)
	path := strings.TrimSpace(*f.configPath)
	cfg, err := config.Load(path, !set["config"])
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	if set["log-level"] {
		cfg.Log.Level = *f.logLevel
	}
	if set["namesrv"] {
		cfg.RocketMQ.NamesrvAddr = *f.namesrv
	}
	if set["ak"] {
		cfg.RocketMQ.AccessKey = *f.accessKey
	}
	if set["sk"] {
		cfg.RocketMQ.SecretKey = *f.secretKey
	}
	if set["timeout"] {
		cfg.RocketMQ.Timeout = *f.timeout
	}
	if set["read-only"] {
		cfg.MCP.ReadOnly = *f.readOnly
	}
	if set["require-credentials"] {
		cfg.MCP.RequireCredentials = *f.requireCredentials
	}
	if set["legacy-text"] {
		cfg.MCP.LegacyText = *f.legacyText
	}
	if set["principal"] {
		cfg.MCP.Principal = *f.principal
	}
	if set["audit"] {
		cfg.Audit.Sink = *f.auditSink
	}
	return cfg, nil
}

func visitedFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}
