// Package tools is the catalog of RocketMQ admin operations exposed to tool
// callers, and the invoker every transport goes through.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// RunFunc executes a tool against a started admin connection.
type RunFunc func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error)

// Tool describes one admin operation.
type Tool struct {
	Name        string
	Group       policy.Group
	Description string
	Params      []Param
	Write       bool
	Run         RunFunc
}

// Identifier is the path-like name used by the REST transport and the gate.
func (t Tool) Identifier() string {
	return "api/" + string(t.Group) + "/" + t.Name
}

var ErrUnknownTool = errors.New("unknown tool")

// ArgError reports a missing or ill-typed argument.
type ArgError struct {
	Param string
	Msg   string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s %s", e.Param, e.Msg)
}

// Validate checks args against the declared parameters.
func (t Tool) Validate(args Args) error {
	for _, p := range t.Params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				return &ArgError{Param: p.Name, Msg: "is required"}
			}
			continue
		}
		var ok bool
		switch p.Type {
		case TypeString:
			var s string
			s, ok = stringFromAny(v)
			if ok && p.Required && s == "" {
				return &ArgError{Param: p.Name, Msg: "must not be blank"}
			}
		case TypeInteger:
			_, ok = int64FromAny(v)
		case TypeBoolean:
			_, ok = boolFromAny(v)
		case TypeArray:
			n := 0
			if items, isList := v.([]any); isList {
				n, ok = len(items), true
			} else {
				var list []string
				list, ok = stringsFromAny(v)
				n = len(list)
			}
			if ok && p.Required && n == 0 {
				return &ArgError{Param: p.Name, Msg: "must not be empty"}
			}
		case TypeObject:
			switch v.(type) {
			case map[string]any, string:
				ok = true
			}
		default:
			ok = true
		}
		if !ok {
			return &ArgError{Param: p.Name, Msg: "must be " + article(p.Type)}
		}
	}
	return nil
}

func article(t ParamType) string {
	switch t {
	case TypeInteger, TypeArray, TypeObject:
		return "an " + string(t)
	}
	return "a " + string(t)
}

// InputSchema renders the JSON schema of the tool's arguments, including the
// connection arguments shared by every tool.
func (t Tool) InputSchema() map[string]any {
	props := map[string]any{
		ArgNameServerAddressList: map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Name server addresses (host:port); defaults to the configured NS_ADDR",
		},
		ArgAccessKey: map[string]any{"type": "string", "description": "ACL access key; defaults to AK"},
		ArgSecretKey: map[string]any{"type": "string", "description": "ACL secret key; defaults to SK"},
	}
	required := []string{}
	for _, p := range t.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Type == TypeArray {
			prop["items"] = map[string]any{}
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Catalog indexes tools by name.
type Catalog struct {
	tools  []Tool
	byName map[string]Tool
}

func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t.Name == "" || t.Run == nil {
			return nil, fmt.Errorf("tool %q: name and run function are required", t.Name)
		}
		key := strings.ToLower(t.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		c.byName[key] = t
		c.tools = append(c.tools, t)
	}
	sort.SliceStable(c.tools, func(i, j int) bool {
		if c.tools[i].Group != c.tools[j].Group {
			return c.tools[i].Group < c.tools[j].Group
		}
		return c.tools[i].Name < c.tools[j].Name
	})
	return c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	var all []Tool
	for _, group := range [][]Tool{
		aclTools(), brokerTools(), clusterTools(), consumeQueueTools(), consumerTools(),
		controllerTools(), messageTools(), nameserverTools(), producerTools(), topicTools(),
	} {
		all = append(all, group...)
	}
	c, err := NewCatalog(all...)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the built-in catalog of RocketMQ admin tools.
func Default() *Catalog {
	return defaultCatalog()
}

func (c *Catalog) All() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Lookup finds a tool by bare name ("createUser") or by group-qualified name
// ("acl/createUser" or "api/acl/createUser"). Names are case-insensitive.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	name = strings.TrimPrefix(name, "api/")
	group, bare, qualified := strings.Cut(name, "/")
	if !qualified {
		bare = group
	}
	t, ok := c.byName[strings.ToLower(bare)]
	if !ok {
		return Tool{}, false
	}
	if qualified && !strings.EqualFold(group, string(t.Group)) {
		return Tool{}, false
	}
	return t, true
}

// Group returns the tools of g in name order.
func (c *Catalog) Group(g policy.Group) []Tool {
	var out []Tool
	for _, t := range c.tools {
		if t.Group == g {
			out = append(out, t)
		}
	}
	return out
}
