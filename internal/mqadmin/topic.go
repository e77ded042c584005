package mqadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apache/rocketmq-client-go/v2/admin"
	"golang.org/x/sync/errgroup"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

// TopicList is the payload of topic listing operations.
type TopicList struct {
	TopicList []string `json:"topicList"`
}

func (a *Admin) FetchAllTopicList(ctx context.Context) (*TopicList, error) {
	ta, err := a.topicAdmin()
	if err != nil {
		return nil, err
	}
	list, err := ta.FetchAllTopicList(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch all topic list: %w", err)
	}
	out := &TopicList{TopicList: []string{}}
	if list != nil {
		out.TopicList = append(out.TopicList, list.TopicList...)
	}
	sort.Strings(out.TopicList)
	return out, nil
}

func (a *Admin) FetchPublishMessageQueues(ctx context.Context, topic string) ([]MessageQueue, error) {
	ta, err := a.topicAdmin()
	if err != nil {
		return nil, err
	}
	mqs, err := ta.FetchPublishMessageQueues(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("fetch publish message queues of %s: %w", topic, err)
	}
	out := make([]MessageQueue, 0, len(mqs))
	for _, mq := range mqs {
		if mq == nil {
			continue
		}
		out = append(out, MessageQueue{Topic: mq.Topic, BrokerName: mq.BrokerName, QueueID: mq.QueueId})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BrokerName != out[j].BrokerName {
			return out[i].BrokerName < out[j].BrokerName
		}
		return out[i].QueueID < out[j].QueueID
	})
	return out, nil
}

// ExamineTopicStats merges the per-queue offsets reported by every master
// serving topic.
func (a *Admin) ExamineTopicStats(ctx context.Context, topic string) (*TopicStatsTable, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := &TopicStatsTable{OffsetTable: make(map[string]TopicOffset)}
	for _, addr := range route.MasterAddrs() {
		resp, err := a.invoke(ctx, addr, remoting.GetTopicStatsInfo, map[string]string{"topic": topic}, nil)
		if err != nil {
			return nil, err
		}
		var part TopicStatsTable
		if err := decodeBody(resp, &part); err != nil {
			return nil, err
		}
		for k, v := range part.OffsetTable {
			out.OffsetTable[k] = v
		}
	}
	return out, nil
}

func (a *Admin) ExamineTopicRouteInfo(ctx context.Context, topic string) (*TopicRouteData, error) {
	return a.TopicRoute(ctx, topic)
}

func (a *Admin) ExamineTopicConfig(ctx context.Context, brokerAddr, topic string) (*TopicConfig, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.GetTopicConfig, map[string]string{
		"topic": topic,
		"lo":    "false",
	}, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		TopicConfig
		Inner *TopicConfig `json:"topicConfig"`
	}
	if err := decodeBody(resp, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Inner != nil {
		return wrapper.Inner, nil
	}
	return &wrapper.TopicConfig, nil
}

// CreateAndUpdateTopicConfig creates or updates topic on brokerAddr with
// queueNum read and write queues and confirms the broker now has it.
func (a *Admin) CreateAndUpdateTopicConfig(ctx context.Context, brokerAddr, topic string, queueNum int) (string, error) {
	ta, err := a.topicAdmin()
	if err != nil {
		return "", err
	}
	if queueNum <= 0 {
		queueNum = 8
	}
	err = ta.CreateTopic(ctx,
		admin.WithTopicCreate(topic),
		admin.WithBrokerAddrCreate(brokerAddr),
		admin.WithReadQueueNums(queueNum),
		admin.WithWriteQueueNums(queueNum),
	)
	if err != nil {
		return "", fmt.Errorf("create topic %s on %s: %w", topic, brokerAddr, err)
	}
	cfg, err := a.ExamineTopicConfig(ctx, brokerAddr, topic)
	if err != nil {
		return resultString(false), nil
	}
	return resultString(cfg.TopicName == topic), nil
}

// DeleteTopicInBroker deletes topic from brokerAddr and confirms it is gone.
func (a *Admin) DeleteTopicInBroker(ctx context.Context, brokerAddr, topic string) (string, error) {
	ta, err := a.topicAdmin()
	if err != nil {
		return "", err
	}
	if err := ta.DeleteTopic(ctx, admin.WithTopicDelete(topic), admin.WithBrokerAddrDelete(brokerAddr)); err != nil {
		return "", fmt.Errorf("delete topic %s on %s: %w", topic, brokerAddr, err)
	}
	cfg, err := a.ExamineTopicConfig(ctx, brokerAddr, topic)
	if err != nil {
		if remoting.IsCode(err, remoting.TopicNotExist) || remoting.IsCode(err, remoting.SystemError) {
			return resultString(true), nil
		}
		return "", err
	}
	return resultString(cfg.TopicName != topic), nil
}

func (a *Admin) CreateAndUpdateTopicConfigList(ctx context.Context, addr string, configs []TopicConfig) (string, error) {
	list := make([]TopicConfig, 0, len(configs))
	for _, c := range configs {
		if c.TopicName == "" {
			return "", errors.New("topicName is required for every topic config")
		}
		list = append(list, c.WithDefaults())
	}
	body, err := json.Marshal(map[string]any{"topicConfigList": list})
	if err != nil {
		return "", err
	}
	if _, err := a.invoke(ctx, addr, remoting.UpdateAndCreateTopicList, nil, body); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) FetchTopicsByCluster(ctx context.Context, cluster string) (*TopicList, error) {
	resp, err := a.invokeNamesrv(ctx, remoting.GetTopicsByCluster, map[string]string{"cluster": cluster}, nil)
	if err != nil {
		return nil, err
	}
	out := &TopicList{}
	if err := decodeBody(resp, out); err != nil {
		return nil, err
	}
	if out.TopicList == nil {
		out.TopicList = []string{}
	}
	sort.Strings(out.TopicList)
	return out, nil
}

func (a *Admin) CleanUnusedTopic(ctx context.Context, cluster string) (bool, error) {
	addrs, err := a.masterAddrs(ctx, cluster)
	if err != nil {
		return false, err
	}
	return a.eachAddr(ctx, addrs, remoting.CleanUnusedTopic, nil)
}

// CreateStaticTopic creates a logic-queue mapped topic. mappingDetail is the
// broker's JSON TopicQueueMappingDetail and is sent as is.
func (a *Admin) CreateStaticTopic(ctx context.Context, addr, defaultTopic string, cfg TopicConfig, mappingDetail string, force bool) (string, error) {
	if cfg.TopicName == "" {
		return "", errors.New("topicConfig.topicName is required")
	}
	if mappingDetail != "" && !json.Valid([]byte(mappingDetail)) {
		return "", errors.New("mappingDetail is not valid JSON")
	}
	ext := cfg.WithDefaults().header()
	if defaultTopic != "" {
		ext["defaultTopic"] = defaultTopic
	}
	ext["force"] = strconv.FormatBool(force)
	if _, err := a.invoke(ctx, addr, remoting.UpdateAndCreateStaticTopic, ext, []byte(mappingDetail)); err != nil {
		return "", err
	}
	return resultString(true), nil
}

// DeleteTopic removes topic from every master of cluster and then from every
// name server.
func (a *Admin) DeleteTopic(ctx context.Context, topic, cluster string) (string, error) {
	addrs, err := a.masterAddrs(ctx, cluster)
	if err != nil {
		return "", err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		g.Go(func() error {
			_, err := a.invoke(gctx, addr, remoting.DeleteTopicInBroker, map[string]string{"topic": topic}, nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := a.invokeEachNamesrv(ctx, nil, remoting.DeleteTopicInNamesrv, map[string]string{
		"topic":       topic,
		"clusterName": cluster,
	}, nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) DeleteTopicInNameServer(ctx context.Context, addrs []string, topic string) (string, error) {
	if err := a.invokeEachNamesrv(ctx, addrs, remoting.DeleteTopicInNamesrv, map[string]string{"topic": topic}, nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) DeleteTopicInNameServerWithCluster(ctx context.Context, addrs []string, cluster, topic string) (string, error) {
	if err := a.invokeEachNamesrv(ctx, addrs, remoting.DeleteTopicInNamesrv, map[string]string{
		"topic":       topic,
		"clusterName": cluster,
	}, nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

// GetTopicClusterList returns the clusters owning a broker that serves topic.
func (a *Admin) GetTopicClusterList(ctx context.Context, topic string) ([]string, error) {
	var (
		route *TopicRouteData
		info  *ClusterInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		route, err = a.TopicRoute(gctx, topic)
		return err
	})
	g.Go(func() (err error) {
		info, err = a.ClusterInfo(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := info.ClustersOf(route.BrokerNames())
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// GetUserTopicConfig returns the topic configs of brokerAddr without system
// topics, and without retry and DLQ topics unless specialTopic is set.
func (a *Admin) GetUserTopicConfig(ctx context.Context, brokerAddr string, specialTopic bool, timeoutMillis int64) (map[string]TopicConfig, error) {
	ctx, cancel := a.timeoutCtx(ctx, timeoutMillis)
	defer cancel()
	resp, err := a.invoke(ctx, brokerAddr, remoting.GetAllTopicConfig, nil, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		TopicConfigTable map[string]TopicConfig `json:"topicConfigTable"`
	}
	if err := decodeBody(resp, &wrapper); err != nil {
		return nil, err
	}
	out := make(map[string]TopicConfig, len(wrapper.TopicConfigTable))
	for name, cfg := range wrapper.TopicConfigTable {
		if IsSystemTopic(name) {
			continue
		}
		if !specialTopic && isRetryOrDLQ(name) {
			continue
		}
		out[name] = cfg
	}
	return out, nil
}

// subscriptionGroups fans GetAllSubscriptionGroup out to every broker.
func (a *Admin) subscriptionGroups(ctx context.Context, timeout time.Duration) (map[string]*admin.SubscriptionGroupWrapper, error) {
	info, err := a.ClusterInfo(ctx)
	if err != nil {
		return nil, err
	}
	ta, err := a.topicAdmin()
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	out := make(map[string]*admin.SubscriptionGroupWrapper)
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range info.AllAddrs() {
		g.Go(func() error {
			w, err := ta.GetAllSubscriptionGroup(gctx, addr, timeout)
			if err != nil {
				return fmt.Errorf("get subscription groups of %s: %w", addr, err)
			}
			mu.Lock()
			out[addr] = w
			mu.Unlock()
			return nil
		})
	}
	return out, g.Wait()
}

func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
