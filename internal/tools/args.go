package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Common connection arguments accepted by every tool.
const (
	ArgNameServerAddressList = "nameserverAddressList"
	ArgAccessKey             = "ak"
	ArgSecretKey             = "sk"
)

// Args are the decoded JSON arguments of one call. Getters return the zero
// value for absent keys; Validate has already rejected ill-typed values.
type Args map[string]any

func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

func (a Args) String(key string) string {
	s, _ := stringFromAny(a[key])
	return s
}

func (a Args) Int(key string) int {
	n, _ := int64FromAny(a[key])
	return int(n)
}

func (a Args) Int64(key string) int64 {
	n, _ := int64FromAny(a[key])
	return n
}

// Int64Or returns def when key is absent.
func (a Args) Int64Or(key string, def int64) int64 {
	if !a.Has(key) {
		return def
	}
	return a.Int64(key)
}

func (a Args) Bool(key string) bool {
	b, _ := boolFromAny(a[key])
	return b
}

// BoolPtr returns nil when key is absent.
func (a Args) BoolPtr(key string) *bool {
	if !a.Has(key) {
		return nil
	}
	b := a.Bool(key)
	return &b
}

// Strings accepts a JSON array or a comma or semicolon separated string.
func (a Args) Strings(key string) []string {
	out, _ := stringsFromAny(a[key])
	return out
}

// StringMap flattens a JSON object into string values.
func (a Args) StringMap(key string) map[string]string {
	out, _ := stringMapFromAny(a[key])
	return out
}

// Decode maps an object (or a JSON string holding one) onto out using the
// mapstructure tags of out's type.
func (a Args) Decode(key string, out any) error {
	raw := a[key]
	if s, ok := raw.(string); ok {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return fmt.Errorf("%s must be a JSON value: %w", key, err)
		}
		raw = v
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Connection returns the explicit connection arguments.
func (a Args) Connection() (addrs []string, accessKey, secretKey string) {
	return a.Strings(ArgNameServerAddressList), a.String(ArgAccessKey), a.String(ArgSecretKey)
}

func stringFromAny(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func int64FromAny(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func boolFromAny(v any) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, true
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	case float64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case int:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	}
	return false, false
}

func stringsFromAny(v any) ([]string, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case []string:
		return trimAll(x), true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := stringFromAny(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return trimAll(out), true
	case string:
		return trimAll(strings.FieldsFunc(x, func(r rune) bool { return r == ',' || r == ';' })), true
	}
	return nil, false
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringMapFromAny(v any) (map[string]string, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case map[string]string:
		return x, true
	case map[string]any:
		out := make(map[string]string, len(x))
		for k, item := range x {
			s, ok := stringFromAny(item)
			if !ok {
				b, err := json.Marshal(item)
				if err != nil {
					return nil, false
				}
				s = string(b)
			}
			out[k] = s
		}
		return out, true
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(x), &m); err != nil {
			return nil, false
		}
		return stringMapFromAny(m)
	}
	return nil, false
}

// JSON decodes key with encoding/json. The value may be a JSON string or an
// already decoded object.
func (a Args) JSON(key string, out any) error {
	var raw []byte
	switch v := a[key].(type) {
	case string:
		raw = []byte(v)
	case nil:
		return fmt.Errorf("%s is required", key)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s must be valid JSON: %w", key, err)
	}
	return nil
}
