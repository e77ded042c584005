package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

const transportCLI = "cli"

// toolsCmd prints the tool catalog.
func toolsCmd(args []string, std stdio) int {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	fs.SetOutput(std.err)
	group := fs.String("group", "", "only list tools of this group")
	jsonOut := fs.Bool("json", false, "print one JSON object per tool")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(std.err, "tools: unexpected positional arguments")
		return 2
	}

	catalog := tools.Default()
	list := catalog.All()
	if g := strings.TrimSpace(*group); g != "" {
		parsed, err := policy.ParseGroup(g)
		if err != nil {
			fmt.Fprintln(std.err, err.Error())
			return 2
		}
		list = catalog.Group(parsed)
	}

	if *jsonOut {
		enc := json.NewEncoder(std.out)
		for _, t := range list {
			err := enc.Encode(map[string]any{
				"name":        t.Name,
				"group":       t.Group,
				"path":        "/" + t.Identifier(),
				"write":       t.Write,
				"description": t.Description,
				"inputSchema": t.InputSchema(),
			})
			if err != nil {
				fmt.Fprintln(std.err, err.Error())
				return 1
			}
		}
		return 0
	}

	tw := tabwriter.NewWriter(std.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tTOOL\tMODE\tDESCRIPTION")
	for _, t := range list {
		mode := "read"
		if t.Write {
			mode = "write"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Group, t.Name, mode, t.Description)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	return 0
}

// callCmd runs one tool in-process and prints its result. Exit status is
// 0 for a successful envelope, 1 for a failed or rejected call, 2 for
// usage errors.
func callCmd(args []string, std stdio) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := registerCommonFlags(fs)
	rawArgs := fs.String("args", "{}", "tool arguments as a JSON object")

	var name string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" && fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	if name == "" {
		fmt.Fprintln(std.err, "call: missing tool name")
		return 2
	}

	toolArgs, err := decodeToolArgs(*rawArgs)
	if err != nil {
		fmt.Fprintf(std.err, "call: invalid --args: %v\n", err)
		return 2
	}
	cfg, err := common.resolve(fs)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	logger, err := newStderrLogger(std.err, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	if err := checkConfig(cfg, logger); err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}

	rt, err := newRuntime(cfg, logger, nil, std.err)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	defer rt.Close()

	resp, err := rt.invoker.Invoke(context.Background(), tools.Call{
		Tool:      name,
		Args:      toolArgs,
		Transport: transportCLI,
	})
	if err != nil {
		var rej *policy.RejectError
		switch {
		case errors.As(err, &rej):
			fmt.Fprintln(std.err, rej.Message)
			return 1
		case errors.Is(err, tools.ErrUnknownTool):
			fmt.Fprintln(std.err, err.Error())
			return 2
		}
		fmt.Fprintln(std.err, err.Error())
		return 1
	}

	if cfg.MCP.LegacyText {
		fmt.Fprintln(std.out, resp.LegacyText())
	} else {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			fmt.Fprintln(std.err, err.Error())
			return 1
		}
		fmt.Fprintln(std.out, string(out))
	}
	if !resp.OK() {
		return 1
	}
	return 0
}

func decodeToolArgs(raw string) (tools.Args, error) {
	out := tools.Args{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	if out == nil {
		out = tools.Args{}
	}
	return out, nil
}
