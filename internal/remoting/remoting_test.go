package remoting_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting/remotingtest"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, st := range []remoting.SerializeType{remoting.SerializeJSON, remoting.SerializeRocketMQ} {
		cmd := remoting.NewCommand(remoting.GetTopicConfig, map[string]string{
			"topic": "TopicTest",
			"lo":    "false",
		}, []byte(`{"k":1}`))
		cmd.Remark = "hello"
		cmd.Serialize = st

		frame, err := remoting.Encode(cmd)
		require.NoError(t, err)

		got, err := remoting.ReadFrame(bytes.NewReader(frame))
		require.NoError(t, err)
		decoded, err := remoting.Decode(got)
		require.NoError(t, err)

		assert.Equal(t, cmd.Code, decoded.Code)
		assert.Equal(t, cmd.Opaque, decoded.Opaque)
		assert.Equal(t, cmd.Version, decoded.Version)
		assert.Equal(t, remoting.LanguageGo, decoded.Language)
		assert.Equal(t, "hello", decoded.Remark)
		assert.Equal(t, cmd.ExtFields, decoded.ExtFields)
		assert.Equal(t, cmd.Body, decoded.Body)
		assert.Equal(t, st, decoded.Serialize)
	}
}

func TestEncodeJSONHeaderShape(t *testing.T) {
	cmd := remoting.NewCommand(remoting.GetBrokerClusterInfo, nil, nil)
	frame, err := remoting.Encode(cmd)
	require.NoError(t, err)

	headerLen := int(frame[5])<<16 | int(frame[6])<<8 | int(frame[7])
	assert.Equal(t, byte(remoting.SerializeJSON), frame[4])

	var header map[string]any
	require.NoError(t, json.Unmarshal(frame[8:8+headerLen], &header))
	assert.Equal(t, float64(106), header["code"])
	assert.Equal(t, "GO", header["language"])
}

func TestDecodeRejectsBadHeaderLength(t *testing.T) {
	_, err := remoting.Decode([]byte{0, 0, 0, 10, 1})
	require.Error(t, err)
}

func TestResponseFlags(t *testing.T) {
	cmd := remoting.NewCommand(remoting.PutKVConfig, nil, nil)
	assert.False(t, cmd.IsResponse())
	cmd.MarkResponse()
	assert.True(t, cmd.IsResponse())
	cmd.MarkOneway()
	assert.True(t, cmd.IsOneway())
}

func TestNormalizeJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "numeric keys",
			in:   `{"brokerAddrs":{0:"10.0.0.1:10911",1:"10.0.0.2:10911"}}`,
			want: `{"brokerAddrs":{"0":"10.0.0.1:10911","1":"10.0.0.2:10911"}}`,
		},
		{
			name: "object keys",
			in:   `{"offsetTable":{{"brokerName":"b","queueId":0,"topic":"T"}:{"brokerOffset":5}}}`,
			want: `{"offsetTable":{"{\"brokerName\":\"b\",\"queueId\":0,\"topic\":\"T\"}":{"brokerOffset":5}}}`,
		},
		{
			name: "already standard",
			in:   ` {"a": [1, true, null, "x\"y"]} `,
			want: `{"a":[1,true,null,"x\"y"]}`,
		},
		{
			name: "empty",
			in:   "  ",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := remoting.NormalizeJSON([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
			if tc.want != "" {
				assert.True(t, json.Valid(got))
			}
		})
	}
}

func TestNormalizeJSONErrors(t *testing.T) {
	for _, in := range []string{`{"a":1`, `{"a" 1}`, `[1 2]`, `{"a":1} x`} {
		_, err := remoting.NormalizeJSON([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestDecodeJSONIntoStruct(t *testing.T) {
	var v struct {
		BrokerAddrs map[string]string `json:"brokerAddrs"`
	}
	require.NoError(t, remoting.DecodeJSON([]byte(`{"brokerAddrs":{0:"a:1"}}`), &v))
	assert.Equal(t, "a:1", v.BrokerAddrs["0"])
}

func TestSignIsDeterministicAndOrderIndependent(t *testing.T) {
	ext := map[string]string{"topic": "T", "AccessKey": "ak", "b": "2"}
	s1 := remoting.Sign(ext, []byte("body"), "sk")
	s2 := remoting.Sign(map[string]string{"b": "2", "AccessKey": "ak", "topic": "T", "Signature": "old"}, []byte("body"), "sk")
	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, remoting.Sign(ext, []byte("other"), "sk"))
	assert.NotEqual(t, s1, remoting.Sign(ext, []byte("body"), "sk2"))
}

func TestACLHookAddsFields(t *testing.T) {
	cmd := remoting.NewCommand(remoting.AuthGetUser, map[string]string{"username": "u"}, nil)
	remoting.ACLHook("ak", "sk")("addr", cmd)
	assert.Equal(t, "ak", cmd.ExtFields["AccessKey"])
	assert.NotEmpty(t, cmd.ExtFields["Signature"])
	assert.Equal(t, remoting.Sign(cmd.ExtFields, nil, "sk"), cmd.ExtFields["Signature"])
}

func TestClientInvoke(t *testing.T) {
	srv := remotingtest.NewServer(remotingtest.Router{
		remoting.GetKVConfig: func(req *remoting.Command) *remoting.Command {
			return remotingtest.OKWithExt(map[string]string{"value": req.ExtFields["namespace"] + "/" + req.ExtFields["key"]})
		},
	}.Handle)
	defer srv.Close()

	c := remoting.NewClient(remoting.WithHook(remoting.ACLHook("ak", "sk")))
	defer c.Close()

	resp, err := c.Invoke(context.Background(), srv.Addr, remoting.NewCommand(remoting.GetKVConfig, map[string]string{
		"namespace": "ns",
		"key":       "k",
	}, nil))
	require.NoError(t, err)
	require.NoError(t, remoting.CheckResponse(srv.Addr, resp))
	assert.Equal(t, "ns/k", resp.ExtFields["value"])

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "ak", reqs[0].ExtFields["AccessKey"])

	resp, err = c.Invoke(context.Background(), srv.Addr, remoting.NewCommand(remoting.DeleteKVConfig, nil, nil))
	require.NoError(t, err)
	err = remoting.CheckResponse(srv.Addr, resp)
	require.Error(t, err)
	assert.True(t, remoting.IsCode(err, remoting.RequestCodeNotSupported))
}

func TestClientConcurrentInvokes(t *testing.T) {
	srv := remotingtest.NewServer(func(req *remoting.Command) *remoting.Command {
		return remotingtest.OK([]byte(req.ExtFields["n"]))
	})
	defer srv.Close()

	c := remoting.NewClient()
	defer c.Close()

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		n := string(rune('a' + i))
		go func() {
			resp, err := c.Invoke(context.Background(), srv.Addr, remoting.NewCommand(remoting.GetBrokerConfig, map[string]string{"n": n}, nil))
			if err != nil {
				errs <- err
				return
			}
			if string(resp.Body) != n {
				errs <- errors.New("mismatched response " + string(resp.Body) + " for " + n)
				return
			}
			errs <- nil
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-errs)
	}
}

func TestClientTimeout(t *testing.T) {
	srv := remotingtest.NewServer(func(*remoting.Command) *remoting.Command { return nil })
	defer srv.Close()

	c := remoting.NewClient(remoting.WithTimeout(50 * time.Millisecond))
	defer c.Close()

	_, err := c.Invoke(context.Background(), srv.Addr, remoting.NewCommand(remoting.GetBrokerConfig, nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, remoting.ErrTimeout)
}

func TestClientClosed(t *testing.T) {
	c := remoting.NewClient()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err := c.Invoke(context.Background(), "127.0.0.1:1", remoting.NewCommand(remoting.GetBrokerConfig, nil, nil))
	assert.ErrorIs(t, err, remoting.ErrClientClosed)
}
