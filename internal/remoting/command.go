package remoting

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync/atomic"
)

// SerializeType selects the header encoding of a command.
type SerializeType byte

const (
	SerializeJSON     SerializeType = 0
	SerializeRocketMQ SerializeType = 1
)

const (
	flagResponse    = 1
	flagOneway      = 1 << 1
	remotingVersion = 453

	maxFrameLength = 16 << 20
)

var opaqueSeq atomic.Int32

// Command is one remoting frame.
type Command struct {
	Code      Code
	Language  LanguageCode
	Version   int16
	Opaque    int32
	Flag      int32
	Remark    string
	ExtFields map[string]string
	Body      []byte

	Serialize SerializeType
}

// NewCommand builds a request with a fresh opaque.
func NewCommand(code Code, ext map[string]string, body []byte) *Command {
	fields := make(map[string]string, len(ext)+2)
	for k, v := range ext {
		fields[k] = v
	}
	return &Command{
		Code:      code,
		Language:  LanguageGo,
		Version:   remotingVersion,
		Opaque:    opaqueSeq.Add(1),
		ExtFields: fields,
		Body:      body,
		Serialize: SerializeJSON,
	}
}

func (c *Command) IsResponse() bool {
	return c.Flag&flagResponse == flagResponse
}

func (c *Command) MarkResponse() {
	c.Flag |= flagResponse
}

func (c *Command) IsOneway() bool {
	return c.Flag&flagOneway == flagOneway
}

func (c *Command) MarkOneway() {
	c.Flag |= flagOneway
}

func (c *Command) String() string {
	return fmt.Sprintf("code=%d,language=%s,opaque=%d,flag=%d,remark=%s,ext=%v,body=%d bytes",
		c.Code, c.Language, c.Opaque, c.Flag, c.Remark, c.ExtFields, len(c.Body))
}

type jsonHeader struct {
	Code                    Code              `json:"code"`
	Language                string            `json:"language"`
	Version                 int16             `json:"version"`
	Opaque                  int32             `json:"opaque"`
	Flag                    int32             `json:"flag"`
	Remark                  string            `json:"remark,omitempty"`
	ExtFields               map[string]string `json:"extFields,omitempty"`
	SerializeTypeCurrentRPC string            `json:"serializeTypeCurrentRPC,omitempty"`
}

// Encode produces a full frame: total length, serialize type and header
// length, header, body.
func Encode(c *Command) ([]byte, error) {
	var header []byte
	switch c.Serialize {
	case SerializeJSON:
		h := jsonHeader{
			Code:      c.Code,
			Language:  c.Language.String(),
			Version:   c.Version,
			Opaque:    c.Opaque,
			Flag:      c.Flag,
			Remark:    c.Remark,
			ExtFields: c.ExtFields,
		}
		b, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		header = b
	case SerializeRocketMQ:
		header = encodeRocketMQHeader(c)
	default:
		return nil, fmt.Errorf("unknown serialize type %d", c.Serialize)
	}

	total := 4 + len(header) + len(c.Body)
	buf := bytes.NewBuffer(make([]byte, 0, 4+total))
	_ = binary.Write(buf, binary.BigEndian, int32(total))
	_ = binary.Write(buf, binary.BigEndian, int32(len(header)&0xFFFFFF|int(c.Serialize)<<24))
	buf.Write(header)
	buf.Write(c.Body)
	return buf.Bytes(), nil
}

func encodeRocketMQHeader(c *Command) []byte {
	ext := encodeExtFields(c.ExtFields)
	buf := bytes.NewBuffer(make([]byte, 0, 2+1+2+4+4+4+len(c.Remark)+4+len(ext)))
	_ = binary.Write(buf, binary.BigEndian, int16(c.Code))
	_ = binary.Write(buf, binary.BigEndian, int8(c.Language))
	_ = binary.Write(buf, binary.BigEndian, c.Version)
	_ = binary.Write(buf, binary.BigEndian, c.Opaque)
	_ = binary.Write(buf, binary.BigEndian, c.Flag)
	_ = binary.Write(buf, binary.BigEndian, int32(len(c.Remark)))
	buf.WriteString(c.Remark)
	_ = binary.Write(buf, binary.BigEndian, int32(len(ext)))
	buf.Write(ext)
	return buf.Bytes()
}

func encodeExtFields(ext map[string]string) []byte {
	if len(ext) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ext))
	for k := range ext {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		v := ext[k]
		_ = binary.Write(&buf, binary.BigEndian, int16(len(k)))
		buf.WriteString(k)
		_ = binary.Write(&buf, binary.BigEndian, int32(len(v)))
		buf.WriteString(v)
	}
	return buf.Bytes()
}

// ReadFrame reads one frame without its leading length field.
func ReadFrame(r io.Reader) ([]byte, error) {
	var total int32
	if err := binary.Read(r, binary.BigEndian, &total); err != nil {
		return nil, err
	}
	if total < 4 || total > maxFrameLength {
		return nil, fmt.Errorf("invalid frame length %d", total)
	}
	frame := make([]byte, total)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Decode parses a frame returned by ReadFrame.
func Decode(frame []byte) (*Command, error) {
	if len(frame) < 4 {
		return nil, errors.New("frame too short")
	}
	mark := binary.BigEndian.Uint32(frame)
	serialize := SerializeType(mark >> 24)
	headerLen := int(mark & 0xFFFFFF)
	if headerLen > len(frame)-4 {
		return nil, fmt.Errorf("header length %d exceeds frame length %d", headerLen, len(frame))
	}
	header := frame[4 : 4+headerLen]
	body := frame[4+headerLen:]

	var (
		c   *Command
		err error
	)
	switch serialize {
	case SerializeJSON:
		c, err = decodeJSONHeader(header)
	case SerializeRocketMQ:
		c, err = decodeRocketMQHeader(header)
	default:
		return nil, fmt.Errorf("unknown serialize type %d", serialize)
	}
	if err != nil {
		return nil, err
	}
	c.Serialize = serialize
	if len(body) > 0 {
		c.Body = append([]byte(nil), body...)
	}
	return c, nil
}

func decodeJSONHeader(header []byte) (*Command, error) {
	var h jsonHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return nil, fmt.Errorf("decode json header: %w", err)
	}
	lang, ok := languageNames[h.Language]
	if !ok {
		if n, err := strconv.Atoi(h.Language); err == nil {
			lang = LanguageCode(n)
		}
	}
	return &Command{
		Code:      h.Code,
		Language:  lang,
		Version:   h.Version,
		Opaque:    h.Opaque,
		Flag:      h.Flag,
		Remark:    h.Remark,
		ExtFields: h.ExtFields,
	}, nil
}

func decodeRocketMQHeader(header []byte) (*Command, error) {
	r := bytes.NewReader(header)
	c := &Command{}
	var (
		code int16
		lang int8
	)
	for _, v := range []any{&code, &lang, &c.Version, &c.Opaque, &c.Flag} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return nil, fmt.Errorf("decode rocketmq header: %w", err)
		}
	}
	c.Code = Code(code)
	c.Language = LanguageCode(lang)

	remark, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("decode remark: %w", err)
	}
	c.Remark = string(remark)

	extData, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("decode ext fields: %w", err)
	}
	c.ExtFields, err = decodeExtFields(extData)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func readBlock(r *bytes.Reader) ([]byte, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if int(n) > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	return b, err
}

func decodeExtFields(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make(map[string]string)
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		var kl int16
		if err := binary.Read(r, binary.BigEndian, &kl); err != nil {
			return nil, fmt.Errorf("decode ext key length: %w", err)
		}
		if kl < 0 || int(kl) > r.Len() {
			return nil, io.ErrUnexpectedEOF
		}
		k := make([]byte, kl)
		if _, err := io.ReadFull(r, k); err != nil {
			return nil, fmt.Errorf("decode ext key: %w", err)
		}
		var vl int32
		if err := binary.Read(r, binary.BigEndian, &vl); err != nil {
			return nil, fmt.Errorf("decode ext value length: %w", err)
		}
		if int(vl) > r.Len() || vl < 0 {
			return nil, io.ErrUnexpectedEOF
		}
		v := make([]byte, vl)
		if _, err := io.ReadFull(r, v); err != nil {
			return nil, fmt.Errorf("decode ext value: %w", err)
		}
		out[string(k)] = string(v)
	}
	return out, nil
}
