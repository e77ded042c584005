package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/francisoliverlee/rocketmq-mcp/internal/config"
)

func configCmd(args []string, std stdio) int {
	if len(args) < 1 {
		fmt.Fprintln(std.err, "missing subcommand: fmt | validate")
		return 2
	}
	switch args[0] {
	case "fmt":
		return configFormat(args[1:], std)
	case "validate":
		return configValidate(args[1:], std)
	default:
		fmt.Fprintf(std.err, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}

// configFormat prints the config file normalized: every section and key,
// defaults filled in. The environment is not applied.
func configFormat(args []string, std stdio) int {
	fs := flag.NewFlagSet("config fmt", flag.ContinueOnError)
	fs.SetOutput(std.err)
	configPath := fs.String("config", defaultConfigPath, "path to ini config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config.Load(*configPath, false)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	out, err := config.Format(cfg)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	_, _ = std.out.Write(out)
	return 0
}

// configValidate checks the effective configuration: file, environment
// and flags.
func configValidate(args []string, std stdio) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := registerCommonFlags(fs)
	format := fs.String("format", "json", "output format: json|text")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var res config.ValidationResult
	cfg, err := common.resolve(fs)
	if err != nil {
		res = config.ValidationResult{Errors: []string{err.Error()}}
	} else {
		res = config.Validate(cfg)
	}

	if strings.EqualFold(*format, "text") {
		msg := config.FormatValidationText(res)
		if res.OK {
			fmt.Fprintln(std.out, msg)
			for _, w := range res.Warnings {
				fmt.Fprintf(std.out, "warning: %s\n", w)
			}
			return 0
		}
		fmt.Fprintln(std.err, msg)
		return 1
	}

	out, err := config.FormatValidationJSON(res)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	if res.OK {
		fmt.Fprintln(std.out, out)
		return 0
	}
	fmt.Fprintln(std.err, out)
	return 1
}

// checkConfig logs validation warnings and fails on the first error.
func checkConfig(cfg config.Config, logger *slog.Logger) error {
	res := config.Validate(cfg)
	for _, w := range res.Warnings {
		logger.Warn("config_warning", slog.String("warning", w))
	}
	if !res.OK {
		return errors.New(config.FormatValidationText(res))
	}
	return nil
}
