package app

import (
	"fmt"
	"io"
	"os"
)

var (
	version   = "0.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func Main(args []string) int {
	return dispatchCmd(args, stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func dispatchCmd(args []string, std stdio) int {
	if len(args) < 2 {
		printHelp(std.err)
		return 2
	}

	switch args[1] {
	case "serve":
		return serveCmd(args[2:], std)
	case "mcp":
		return mcpCmd(args[2:], std)
	case "tools":
		return toolsCmd(args[2:], std)
	case "call":
		return callCmd(args[2:], std)
	case "config":
		return configCmd(args[2:], std)
	case "audit":
		return auditCmd(args[2:], std)
	case "version":
		return runVersionCmd(args[2:], std.out, std.err)
	case "help", "-h", "--help":
		printHelp(std.out)
		return 0
	default:
		fmt.Fprintf(std.err, "unknown command: %s\n", args[1])
		printHelp(std.err)
		return 2
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "rocketmq-mcp")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rocketmq-mcp serve [--config ./rocketmq-mcp.ini] [--http-listen :8080] [--grpc-listen :9090] [--read-only] [--pid-file ./rocketmq-mcp.pid] [--watch] [--dotenv ./.env]")
	fmt.Fprintln(w, "  rocketmq-mcp mcp serve [--config ./rocketmq-mcp.ini] [--read-only] [--legacy-text] [--principal name]")
	fmt.Fprintln(w, "  rocketmq-mcp tools [--group acl] [--json]")
	fmt.Fprintln(w, "  rocketmq-mcp call <tool> [--args '{\"topic\":\"T\"}'] [--namesrv host:9876] [--read-only]")
	fmt.Fprintln(w, "  rocketmq-mcp config validate|fmt [--config ./rocketmq-mcp.ini] [--format json|text]")
	fmt.Fprintln(w, "  rocketmq-mcp audit list [--config ./rocketmq-mcp.ini] [--tool name] [--principal-filter name] [--result success|error|rejected] [--since 24h] [--limit 100]")
	fmt.Fprintln(w, "  rocketmq-mcp version [--long] [--json]")
}
