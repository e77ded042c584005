// Package dispatch resolves connection parameters, opens a call-scoped admin
// connection, runs one operation against it and always closes it.
package dispatch

import (
	"strings"
)

const (
	EnvNameServer = "NS_ADDR"
	EnvAccessKey  = "AK"
	EnvSecretKey  = "SK"
)

const (
	errEmptyNameServer = "nameserverAddressList不能为空"
	errEmptyAccessKey  = "ak不能为空"
	errEmptySecretKey  = "sk不能为空"
)

// Defaults are the process-wide connection parameters used when a request
// omits them.
type Defaults struct {
	NameServer string
	AccessKey  string
	SecretKey  string
}

// DefaultsFromEnv reads NS_ADDR, AK and SK through lookup (os.LookupEnv in
// production).
func DefaultsFromEnv(lookup func(string) (string, bool)) Defaults {
	get := func(key string) string {
		if lookup == nil {
			return ""
		}
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	return Defaults{
		NameServer: get(EnvNameServer),
		AccessKey:  get(EnvAccessKey),
		SecretKey:  get(EnvSecretKey),
	}
}

// Merge returns d with blank fields filled from fallback.
func (d Defaults) Merge(fallback Defaults) Defaults {
	if strings.TrimSpace(d.NameServer) == "" {
		d.NameServer = fallback.NameServer
	}
	if strings.TrimSpace(d.AccessKey) == "" {
		d.AccessKey = fallback.AccessKey
	}
	if strings.TrimSpace(d.SecretKey) == "" {
		d.SecretKey = fallback.SecretKey
	}
	return d
}

// Request holds the connection arguments supplied with a single call.
type Request struct {
	NameServerAddressList []string
	AccessKey             string
	SecretKey             string
}

// Params are the effective connection parameters of one call.
type Params struct {
	NameServer string
	AccessKey  string
	SecretKey  string
}

// Addresses splits the effective name-server string on ';'.
func (p Params) Addresses() []string {
	parts := strings.Split(p.NameServer, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if a := strings.TrimSpace(part); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Authenticated reports whether both keys are present.
func (p Params) Authenticated() bool {
	return p.AccessKey != "" && p.SecretKey != ""
}

// Resolve applies explicit-over-default precedence independently to each
// field. Blank values count as absent.
func Resolve(req Request, defaults Defaults) Params {
	var p Params

	addrs := make([]string, 0, len(req.NameServerAddressList))
	for _, a := range req.NameServerAddressList {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) > 0 {
		p.NameServer = strings.Join(addrs, ";")
	} else {
		p.NameServer = strings.TrimSpace(defaults.NameServer)
	}

	p.AccessKey = strings.TrimSpace(req.AccessKey)
	if p.AccessKey == "" {
		p.AccessKey = strings.TrimSpace(defaults.AccessKey)
	}
	p.SecretKey = strings.TrimSpace(req.SecretKey)
	if p.SecretKey == "" {
		p.SecretKey = strings.TrimSpace(defaults.SecretKey)
	}
	return p
}
