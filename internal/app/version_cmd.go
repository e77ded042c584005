package app

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"runtime"
	"strings"
)

type versionPayload struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func runVersionCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	longOutput := fs.Bool("long", false, "")
	jsonOutput := fs.Bool("json", false, "")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "version: %v\n", err)
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "version: unexpected positional arguments")
		return 2
	}

	p := versionPayload{
		Version:   strings.TrimSpace(version),
		Commit:    strings.TrimSpace(commit),
		BuildDate: strings.TrimSpace(buildDate),
		GoVersion: runtime.Version(),
	}
	switch {
	case *jsonOutput:
		if err := json.NewEncoder(stdout).Encode(p); err != nil {
			fmt.Fprintf(stderr, "version: %v\n", err)
			return 1
		}
	case *longOutput:
		fmt.Fprintf(stdout, "%s (commit=%s, build_date=%s, go=%s)\n", p.Version, p.Commit, p.BuildDate, p.GoVersion)
	default:
		fmt.Fprintln(stdout, p.Version)
	}
	return 0
}
