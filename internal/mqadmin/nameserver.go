package mqadmin

import (
	"context"
	"sort"
	"strings"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

func (a *Admin) GetNameServerAddressList() []string {
	return a.params.Addresses()
}

// PutKVConfig writes one KV entry to every configured name server.
func (a *Admin) PutKVConfig(ctx context.Context, namespace, key, value string) (string, error) {
	err := a.invokeEachNamesrv(ctx, nil, remoting.PutKVConfig, map[string]string{
		"namespace": namespace,
		"key":       key,
		"value":     value,
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

// GetKVConfig returns the value or an error when the key does not exist.
func (a *Admin) GetKVConfig(ctx context.Context, namespace, key string) (string, error) {
	resp, err := a.invokeNamesrv(ctx, remoting.GetKVConfig, map[string]string{
		"namespace": namespace,
		"key":       key,
	}, nil)
	if err != nil {
		return "", err
	}
	return resp.ExtFields["value"], nil
}

func (a *Admin) GetKVListByNamespace(ctx context.Context, namespace string) (*KVTable, error) {
	resp, err := a.invokeNamesrv(ctx, remoting.GetKVListByNamespace, map[string]string{"namespace": namespace}, nil)
	if err != nil {
		return nil, err
	}
	out := &KVTable{}
	if err := decodeBody(resp, out); err != nil {
		return nil, err
	}
	if out.Table == nil {
		out.Table = map[string]string{}
	}
	return out, nil
}

func (a *Admin) DeleteKvConfig(ctx context.Context, namespace, key string) (string, error) {
	err := a.invokeEachNamesrv(ctx, nil, remoting.DeleteKVConfig, map[string]string{
		"namespace": namespace,
		"key":       key,
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

// CreateOrUpdateOrderConf writes the order config of topic key. Order confs
// look like "broker-a:4;broker-b:4". With isCluster the value replaces the
// stored one; otherwise its broker entries are merged into it.
func (a *Admin) CreateOrUpdateOrderConf(ctx context.Context, key, value string, isCluster bool) (string, error) {
	if !isCluster {
		old, err := a.GetKVConfig(ctx, NamespaceOrderTopicConfig, key)
		if err != nil && !remoting.IsCode(err, remoting.QueryNotFound) {
			return "", err
		}
		value = mergeOrderConf(old, value)
	}
	return a.PutKVConfig(ctx, NamespaceOrderTopicConfig, key, value)
}

func mergeOrderConf(old, update string) string {
	entries := make(map[string]string)
	var order []string
	add := func(conf string) {
		for _, part := range strings.Split(conf, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			broker, _, _ := strings.Cut(part, ":")
			if _, ok := entries[broker]; !ok {
				order = append(order, broker)
			}
			entries[broker] = part
		}
	}
	add(old)
	add(update)
	out := make([]string, 0, len(order))
	for _, b := range order {
		out = append(out, entries[b])
	}
	return strings.Join(out, ";")
}

func (a *Admin) UpdateNameServerConfig(ctx context.Context, props map[string]string, nameServers []string) (string, error) {
	if err := a.invokeEachNamesrv(ctx, nameServers, remoting.UpdateNamesrvConfig, nil, encodeProperties(props)); err != nil {
		return "", err
	}
	return resultString(true), nil
}

// GetNameServerConfig returns the config of each name server keyed by address.
func (a *Admin) GetNameServerConfig(ctx context.Context, nameServers []string) (map[string]map[string]string, error) {
	if len(nameServers) == 0 {
		nameServers = a.params.Addresses()
	}
	out := make(map[string]map[string]string, len(nameServers))
	for _, addr := range nameServers {
		resp, err := a.invoke(ctx, addr, remoting.GetNamesrvConfig, nil, nil)
		if err != nil {
			return nil, err
		}
		out[addr] = parseProperties(resp.Body)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
