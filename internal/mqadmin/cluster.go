package mqadmin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

// ClusterInfo asks the name servers for the broker cluster layout.
func (a *Admin) ClusterInfo(ctx context.Context) (*ClusterInfo, error) {
	resp, err := a.invokeNamesrv(ctx, remoting.GetBrokerClusterInfo, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get broker cluster info: %w", err)
	}
	info := &ClusterInfo{}
	if err := decodeBody(resp, info); err != nil {
		return nil, err
	}
	return info, nil
}

// TopicRoute asks the name servers for the route of topic.
func (a *Admin) TopicRoute(ctx context.Context, topic string) (*TopicRouteData, error) {
	resp, err := a.invokeNamesrv(ctx, remoting.GetRouteInfoByTopic, map[string]string{"topic": topic}, nil)
	if err != nil {
		return nil, fmt.Errorf("get route of topic %s: %w", topic, err)
	}
	route := &TopicRouteData{}
	if err := decodeBody(resp, route); err != nil {
		return nil, err
	}
	return route, nil
}

// masterAddrs returns the master addresses of cluster, or of all clusters
// when cluster is blank.
func (a *Admin) masterAddrs(ctx context.Context, cluster string) ([]string, error) {
	info, err := a.ClusterInfo(ctx)
	if err != nil {
		return nil, err
	}
	addrs := info.MasterAddrs(cluster)
	if len(addrs) == 0 {
		if cluster == "" {
			return nil, ErrNoBroker
		}
		return nil, fmt.Errorf("cluster %s: %w", cluster, ErrNoBroker)
	}
	return addrs, nil
}

// rawBody returns the normalized response body, or JSON null when empty.
func rawBody(resp *remoting.Command) (json.RawMessage, error) {
	norm, err := remoting.NormalizeJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode response body (code %d): %w", resp.Code, err)
	}
	if len(norm) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(norm), nil
}

// invokeRaw is invoke followed by rawBody.
func (a *Admin) invokeRaw(ctx context.Context, addr string, code remoting.Code, ext map[string]string, body []byte) (json.RawMessage, error) {
	resp, err := a.invoke(ctx, addr, code, ext, body)
	if err != nil {
		return nil, err
	}
	return rawBody(resp)
}

// eachAddr runs the same request on every addr and reports success only when
// all of them succeeded.
func (a *Admin) eachAddr(ctx context.Context, addrs []string, code remoting.Code, ext map[string]string) (bool, error) {
	for _, addr := range addrs {
		if _, err := a.invoke(ctx, addr, code, ext, nil); err != nil {
			return false, err
		}
	}
	return true, nil
}

func resultString(ok bool) string {
	if ok {
		return "success"
	}
	return "fail"
}
