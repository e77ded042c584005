package mqadmin

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

const (
	magicCodeV1 uint32 = 0xDAA320A7
	magicCodeV2 uint32 = 0xDAA320AB

	sysFlagCompressed  = 1 << 0
	sysFlagBornHostV6  = 1 << 4
	sysFlagStoreHostV6 = 1 << 5

	propertyNameValueSep = "\x01"
	propertySep          = "\x02"

	PropertyUniqKey = "UNIQ_KEY"
	PropertyKeys    = "KEYS"
	PropertyTags    = "TAGS"
)

var ErrBadMessageID = errors.New("mqadmin: malformed offset message id")

// MessageExt is a stored message as returned by query and view requests.
type MessageExt struct {
	Topic                     string            `json:"topic"`
	MsgID                     string            `json:"msgId"`
	QueueID                   int32             `json:"queueId"`
	StoreSize                 int32             `json:"storeSize"`
	QueueOffset               int64             `json:"queueOffset"`
	CommitLogOffset           int64             `json:"commitLogOffset"`
	SysFlag                   int32             `json:"sysFlag"`
	Flag                      int32             `json:"flag"`
	BodyCRC                   int32             `json:"bodyCRC"`
	BornTimestamp             int64             `json:"bornTimestamp"`
	BornHost                  string            `json:"bornHost"`
	StoreTimestamp            int64             `json:"storeTimestamp"`
	StoreHost                 string            `json:"storeHost"`
	ReconsumeTimes            int32             `json:"reconsumeTimes"`
	PreparedTransactionOffset int64             `json:"preparedTransactionOffset"`
	Properties                map[string]string `json:"properties,omitempty"`
	Body                      string            `json:"body"`
	BrokerName                string            `json:"brokerName,omitempty"`
}

// UniqKey returns the producer assigned message id, if any.
func (m *MessageExt) UniqKey() string {
	return m.Properties[PropertyUniqKey]
}

// DecodeMessages decodes a sequence of stored messages.
func DecodeMessages(data []byte) ([]MessageExt, error) {
	var out []MessageExt
	r := &msgReader{b: data}
	for r.remaining() > 0 {
		m, err := r.message()
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

type msgReader struct {
	b   []byte
	pos int
	err error
}

func (r *msgReader) remaining() int { return len(r.b) - r.pos }

func (r *msgReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.remaining() < n {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *msgReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *msgReader) i16() int16 {
	if b := r.take(2); b != nil {
		return int16(binary.BigEndian.Uint16(b))
	}
	return 0
}

func (r *msgReader) i32() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.BigEndian.Uint32(b))
	}
	return 0
}

func (r *msgReader) i64() int64 {
	if b := r.take(8); b != nil {
		return int64(binary.BigEndian.Uint64(b))
	}
	return 0
}

func (r *msgReader) host(v6 bool) (net.IP, int) {
	n := 4
	if v6 {
		n = 16
	}
	ip := net.IP(append([]byte(nil), r.take(n)...))
	port := int(r.i32())
	return ip, port
}

func (r *msgReader) message() (MessageExt, error) {
	var m MessageExt
	start := r.pos
	m.StoreSize = r.i32()
	magic := uint32(r.i32())
	if r.err == nil && magic != magicCodeV1 && magic != magicCodeV2 {
		return m, fmt.Errorf("mqadmin: bad message magic code %#x at offset %d", magic, start)
	}
	m.BodyCRC = r.i32()
	m.QueueID = r.i32()
	m.Flag = r.i32()
	m.QueueOffset = r.i64()
	m.CommitLogOffset = r.i64()
	m.SysFlag = r.i32()
	m.BornTimestamp = r.i64()
	bornIP, bornPort := r.host(m.SysFlag&sysFlagBornHostV6 != 0)
	m.StoreTimestamp = r.i64()
	storeIP, storePort := r.host(m.SysFlag&sysFlagStoreHostV6 != 0)
	m.ReconsumeTimes = r.i32()
	m.PreparedTransactionOffset = r.i64()

	body := r.take(int(r.i32()))
	var topicLen int
	if magic == magicCodeV2 {
		topicLen = int(r.i16())
	} else {
		topicLen = int(r.u8())
	}
	m.Topic = string(r.take(topicLen))
	props := r.take(int(r.i16()))
	if r.err != nil {
		return m, fmt.Errorf("mqadmin: truncated message at offset %d: %w", start, r.err)
	}
	if m.StoreSize > 0 && r.pos-start < int(m.StoreSize) {
		r.pos = start + int(m.StoreSize)
		if r.pos > len(r.b) {
			r.pos = len(r.b)
		}
	}

	if m.SysFlag&sysFlagCompressed != 0 && len(body) > 0 {
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return m, fmt.Errorf("mqadmin: inflate body: %w", err)
		}
		body, err = io.ReadAll(zr)
		_ = zr.Close()
		if err != nil {
			return m, fmt.Errorf("mqadmin: inflate body: %w", err)
		}
	}
	m.Body = string(body)
	m.Properties = parseMessageProperties(string(props))
	m.BornHost = net.JoinHostPort(bornIP.String(), strconv.Itoa(bornPort))
	m.StoreHost = net.JoinHostPort(storeIP.String(), strconv.Itoa(storePort))
	m.MsgID = CreateMessageID(storeIP, storePort, m.CommitLogOffset)
	return m, nil
}

func parseMessageProperties(s string) map[string]string {
	out := make(map[string]string)
	for _, p := range strings.Split(s, propertySep) {
		k, v, ok := strings.Cut(p, propertyNameValueSep)
		if ok && k != "" {
			out[k] = v
		}
	}
	return out
}

// CreateMessageID renders the offset message id: store host, port and
// commit log offset, upper case hex.
func CreateMessageID(ip net.IP, port int, commitLogOffset int64) string {
	host := ip.To4()
	if host == nil {
		host = ip.To16()
	}
	buf := make([]byte, 0, len(host)+12)
	buf = append(buf, host...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(port))
	buf = binary.BigEndian.AppendUint64(buf, uint64(commitLogOffset))
	return strings.ToUpper(hex.EncodeToString(buf))
}

// ParseMessageID splits an offset message id into the store address and the
// commit log offset. Both IPv4 (32 hex chars) and IPv6 (56) ids are accepted.
func ParseMessageID(id string) (addr string, offset int64, err error) {
	var hostLen int
	switch len(id) {
	case 32:
		hostLen = 4
	case 56:
		hostLen = 16
	default:
		return "", 0, ErrBadMessageID
	}
	raw, err := hex.DecodeString(id)
	if err != nil {
		return "", 0, ErrBadMessageID
	}
	ip := net.IP(raw[:hostLen])
	port := binary.BigEndian.Uint32(raw[hostLen : hostLen+4])
	offset = int64(binary.BigEndian.Uint64(raw[hostLen+4:]))
	return net.JoinHostPort(ip.String(), strconv.FormatUint(uint64(port), 10)), offset, nil
}
