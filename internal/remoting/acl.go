package remoting

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
)

const (
	extAccessKey = "AccessKey"
	extSignature = "Signature"
)

// Hook mutates a request before it is written.
type Hook func(addr string, cmd *Command)

// ACLHook signs requests with HmacSHA1 over the sorted ext field values
// (AccessKey included) followed by the body.
func ACLHook(accessKey, secretKey string) Hook {
	return func(_ string, cmd *Command) {
		if cmd.ExtFields == nil {
			cmd.ExtFields = map[string]string{}
		}
		delete(cmd.ExtFields, extSignature)
		cmd.ExtFields[extAccessKey] = accessKey
		cmd.ExtFields[extSignature] = Sign(cmd.ExtFields, cmd.Body, secretKey)
	}
}

// Sign computes the ACL signature of ext (Signature excluded) and body.
func Sign(ext map[string]string, body []byte, secretKey string) string {
	keys := make([]string, 0, len(ext))
	for k := range ext {
		if k == extSignature {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(secretKey))
	for _, k := range keys {
		mac.Write([]byte(ext[k]))
	}
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
