package remoting

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NormalizeJSON rewrites a fastjson body into standard JSON. Brokers emit
// map keys that are bare numbers ({0:"addr"}) or whole objects
// ({{"topic":"T","queueId":0}:{...}}); both become JSON string keys.
func NormalizeJSON(data []byte) ([]byte, error) {
	n := &normalizer{in: data}
	n.skipSpace()
	if n.pos >= len(n.in) {
		return nil, nil
	}
	if err := n.value(&n.out); err != nil {
		return nil, err
	}
	n.skipSpace()
	if n.pos != len(n.in) {
		return nil, fmt.Errorf("fastjson: trailing data at offset %d", n.pos)
	}
	return n.out.Bytes(), nil
}

// DecodeJSON normalizes data and unmarshals it into v.
func DecodeJSON(data []byte, v any) error {
	norm, err := NormalizeJSON(data)
	if err != nil {
		return err
	}
	if len(norm) == 0 {
		return nil
	}
	return json.Unmarshal(norm, v)
}

type normalizer struct {
	in  []byte
	pos int
	out bytes.Buffer
}

func (n *normalizer) skipSpace() {
	for n.pos < len(n.in) {
		switch n.in[n.pos] {
		case ' ', '\t', '\r', '\n':
			n.pos++
		default:
			return
		}
	}
}

func (n *normalizer) errorf(format string, args ...any) error {
	return fmt.Errorf("fastjson: "+format+" at offset %d", append(args, n.pos)...)
}

func (n *normalizer) value(out *bytes.Buffer) error {
	n.skipSpace()
	if n.pos >= len(n.in) {
		return n.errorf("unexpected end of input")
	}
	switch n.in[n.pos] {
	case '{':
		return n.object(out)
	case '[':
		return n.array(out)
	case '"':
		s, err := n.str()
		if err != nil {
			return err
		}
		out.Write(s)
		return nil
	default:
		lit := n.literal()
		if len(lit) == 0 {
			return n.errorf("unexpected character %q", n.in[n.pos])
		}
		out.Write(lit)
		return nil
	}
}

func (n *normalizer) object(out *bytes.Buffer) error {
	n.pos++
	out.WriteByte('{')
	first := true
	for {
		n.skipSpace()
		if n.pos >= len(n.in) {
			return n.errorf("unterminated object")
		}
		if n.in[n.pos] == '}' {
			n.pos++
			out.WriteByte('}')
			return nil
		}
		if !first {
			if n.in[n.pos] != ',' {
				return n.errorf("expected ','")
			}
			n.pos++
			n.skipSpace()
			out.WriteByte(',')
		}
		first = false

		if err := n.key(out); err != nil {
			return err
		}
		n.skipSpace()
		if n.pos >= len(n.in) || n.in[n.pos] != ':' {
			return n.errorf("expected ':'")
		}
		n.pos++
		out.WriteByte(':')
		if err := n.value(out); err != nil {
			return err
		}
	}
}

func (n *normalizer) key(out *bytes.Buffer) error {
	if n.pos >= len(n.in) {
		return n.errorf("unexpected end of input")
	}
	switch n.in[n.pos] {
	case '"':
		s, err := n.str()
		if err != nil {
			return err
		}
		out.Write(s)
		return nil
	case '{', '[':
		var sub bytes.Buffer
		if err := n.value(&sub); err != nil {
			return err
		}
		quoted, _ := json.Marshal(sub.String())
		out.Write(quoted)
		return nil
	default:
		lit := n.literal()
		if len(lit) == 0 {
			return n.errorf("invalid object key")
		}
		quoted, _ := json.Marshal(string(lit))
		out.Write(quoted)
		return nil
	}
}

func (n *normalizer) array(out *bytes.Buffer) error {
	n.pos++
	out.WriteByte('[')
	first := true
	for {
		n.skipSpace()
		if n.pos >= len(n.in) {
			return n.errorf("unterminated array")
		}
		if n.in[n.pos] == ']' {
			n.pos++
			out.WriteByte(']')
			return nil
		}
		if !first {
			if n.in[n.pos] != ',' {
				return n.errorf("expected ','")
			}
			n.pos++
			out.WriteByte(',')
		}
		first = false
		if err := n.value(out); err != nil {
			return err
		}
	}
}

func (n *normalizer) str() ([]byte, error) {
	start := n.pos
	n.pos++
	for n.pos < len(n.in) {
		switch n.in[n.pos] {
		case '\\':
			n.pos += 2
		case '"':
			n.pos++
			return n.in[start:n.pos], nil
		default:
			n.pos++
		}
	}
	return nil, n.errorf("unterminated string")
}

func (n *normalizer) literal() []byte {
	start := n.pos
	for n.pos < len(n.in) {
		switch n.in[n.pos] {
		case ',', ':', '}', ']', ' ', '\t', '\r', '\n':
			return n.in[start:n.pos]
		}
		n.pos++
	}
	return n.in[start:n.pos]
}
