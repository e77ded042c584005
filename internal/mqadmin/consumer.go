package mqadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

const subscriptionGroupTimeout = 30 * time.Second

// ExamineSubscriptionGroupConfig looks group up on every broker and returns
// the configs found keyed by broker address.
func (a *Admin) ExamineSubscriptionGroupConfig(ctx context.Context, group string) (map[string]json.RawMessage, error) {
	info, err := a.ClusterInfo(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	var errs []error
	for _, addr := range info.AllAddrs() {
		raw, err := a.invokeRaw(ctx, addr, remoting.GetSubscriptionGroupConfig, map[string]string{"group": group}, nil)
		if err != nil {
			if remoting.IsCode(err, remoting.SubscriptionGroupNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		out[addr] = raw
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// GetAllSubscriptionGroup returns every broker's subscription group table
// keyed by broker address.
func (a *Admin) GetAllSubscriptionGroup(ctx context.Context) (map[string]json.RawMessage, error) {
	wrappers, err := a.subscriptionGroups(ctx, subscriptionGroupTimeout)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(wrappers))
	for addr, w := range wrappers {
		raw, err := json.Marshal(w)
		if err != nil {
			return nil, fmt.Errorf("encode subscription groups of %s: %w", addr, err)
		}
		out[addr] = raw
	}
	return out, nil
}

func (a *Admin) consumeStatsOn(ctx context.Context, addr, group, topic string) (*ConsumeStats, error) {
	resp, err := a.invoke(ctx, addr, remoting.GetConsumeStats, map[string]string{
		"consumerGroup": group,
		"topic":         topic,
	}, nil)
	if err != nil {
		return nil, err
	}
	out := &ConsumeStats{}
	if err := decodeBody(resp, out); err != nil {
		return nil, err
	}
	return out, nil
}

func mergeConsumeStats(dst, src *ConsumeStats) {
	if dst.OffsetTable == nil {
		dst.OffsetTable = make(map[string]OffsetWrapper)
	}
	for k, v := range src.OffsetTable {
		dst.OffsetTable[k] = v
	}
	dst.ConsumeTps += src.ConsumeTps
}

// consumeStatsAcross collects stats for group (restricted to topic when set)
// from addrs, sequentially or concurrently.
func (a *Admin) consumeStatsAcross(ctx context.Context, addrs []string, group, topic string, concurrent bool) (*ConsumeStats, error) {
	out := &ConsumeStats{OffsetTable: make(map[string]OffsetWrapper)}
	if !concurrent {
		for _, addr := range addrs {
			part, err := a.consumeStatsOn(ctx, addr, group, topic)
			if err != nil {
				return nil, err
			}
			mergeConsumeStats(out, part)
		}
		return out, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		g.Go(func() error {
			part, err := a.consumeStatsOn(gctx, addr, group, topic)
			if err != nil {
				return err
			}
			mu.Lock()
			mergeConsumeStats(out, part)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Admin) statsRoute(ctx context.Context, group, topic string) (*TopicRouteData, error) {
	if topic != "" {
		return a.TopicRoute(ctx, topic)
	}
	return a.TopicRoute(ctx, RetryTopic(group))
}

func (a *Admin) ExamineConsumeStats(ctx context.Context, group string) (*ConsumeStats, error) {
	return a.ExamineConsumeStatsByTopic(ctx, group, "")
}

func (a *Admin) ExamineConsumeStatsByTopic(ctx context.Context, group, topic string) (*ConsumeStats, error) {
	route, err := a.statsRoute(ctx, group, topic)
	if err != nil {
		return nil, err
	}
	return a.consumeStatsAcross(ctx, route.MasterAddrs(), group, topic, false)
}

func (a *Admin) ExamineConsumeStatsByCluster(ctx context.Context, cluster, group, topic string) (*ConsumeStats, error) {
	addrs, err := a.masterAddrs(ctx, cluster)
	if err != nil {
		return nil, err
	}
	return a.consumeStatsAcross(ctx, addrs, group, topic, false)
}

func (a *Admin) ExamineConsumeStatsWithTimeout(ctx context.Context, brokerAddr, group, topic string, timeoutMillis int64) (*ConsumeStats, error) {
	ctx, cancel := a.timeoutCtx(ctx, timeoutMillis)
	defer cancel()
	return a.consumeStatsOn(ctx, brokerAddr, group, topic)
}

func (a *Admin) ExamineConsumeStatsConcurrent(ctx context.Context, group, topic string) (*ConsumeStats, error) {
	route, err := a.statsRoute(ctx, group, topic)
	if err != nil {
		return nil, err
	}
	return a.consumeStatsAcross(ctx, route.MasterAddrs(), group, topic, true)
}

// groupBrokerAddr picks a broker that serves the retry topic of group.
func (a *Admin) groupBrokerAddr(ctx context.Context, group string) (string, error) {
	route, err := a.TopicRoute(ctx, RetryTopic(group))
	if err != nil {
		return "", err
	}
	addr := route.AnyAddr()
	if addr == "" {
		return "", fmt.Errorf("group %s: %w", group, ErrNoBroker)
	}
	return addr, nil
}

// GetConsumeJstack fetches running info of one consumer client, including
// its thread dump.
func (a *Admin) GetConsumeJstack(ctx context.Context, group, clientID string) (json.RawMessage, error) {
	addr, err := a.groupBrokerAddr(ctx, group)
	if err != nil {
		return nil, err
	}
	return a.invokeRaw(ctx, addr, remoting.GetConsumerRunningInfo, map[string]string{
		"consumerGroup": group,
		"clientId":      clientID,
		"jstackEnable":  "true",
	}, nil)
}

func (a *Admin) CreateAndUpdateSubscriptionGroupConfig(ctx context.Context, addr string, cfg SubscriptionGroupConfig) (string, error) {
	if cfg.GroupName == "" {
		return "", errors.New("groupName is required")
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if _, err := a.invoke(ctx, addr, remoting.UpdateAndCreateSubscriptionGroup, nil, body); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) CreateAndUpdateSubscriptionGroupConfigList(ctx context.Context, brokerAddr string, cfgs []SubscriptionGroupConfig) (string, error) {
	for _, c := range cfgs {
		if c.GroupName == "" {
			return "", errors.New("groupName is required for every subscription group config")
		}
	}
	body, err := json.Marshal(map[string]any{"groupConfigList": cfgs})
	if err != nil {
		return "", err
	}
	if _, err := a.invoke(ctx, brokerAddr, remoting.UpdateAndCreateSubscriptionGroupList, nil, body); err != nil {
		return "", err
	}
	return resultString(true), nil
}

// ExamineConsumerConnectionInfo asks the brokers of group's retry topic in
// turn until one reports the group's connections.
func (a *Admin) ExamineConsumerConnectionInfo(ctx context.Context, group string) (json.RawMessage, error) {
	_, raw, err := a.consumerConnection(ctx, group)
	return raw, err
}

func (a *Admin) consumerConnection(ctx context.Context, group string) (string, json.RawMessage, error) {
	route, err := a.TopicRoute(ctx, RetryTopic(group))
	if err != nil {
		return "", nil, err
	}
	var errs []error
	for _, bd := range route.BrokerDatas {
		addr := bd.SelectAddr()
		if addr == "" {
			continue
		}
		raw, err := a.ExamineConsumerConnectionInfoByBroker(ctx, group, addr)
		if err == nil {
			return addr, raw, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", nil, fmt.Errorf("group %s: %w", group, ErrNoBroker)
	}
	return "", nil, errors.Join(errs...)
}

func (a *Admin) ExamineConsumerConnectionInfoByBroker(ctx context.Context, group, brokerAddr string) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.GetConsumerConnectionList, map[string]string{"consumerGroup": group}, nil)
}

// ConsumerConnectionWithAddr pairs a connection report with the broker that
// produced it.
type ConsumerConnectionWithAddr struct {
	BrokerAddr string          `json:"brokerAddr"`
	Connection json.RawMessage `json:"consumerConnection"`
}

func (a *Admin) ExamineConsumerConnectionInfoWithAddr(ctx context.Context, group string) (*ConsumerConnectionWithAddr, error) {
	addr, raw, err := a.consumerConnection(ctx, group)
	if err != nil {
		return nil, err
	}
	return &ConsumerConnectionWithAddr{BrokerAddr: addr, Connection: raw}, nil
}

// resetOffset asks every master serving topic to move group to timestamp and
// notify online consumers. The result maps queue keys to new offsets.
func (a *Admin) resetOffset(ctx context.Context, group, topic string, timestamp int64, force bool) (map[string]int64, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, addr := range route.MasterAddrs() {
		resp, err := a.invoke(ctx, addr, remoting.InvokeBrokerToResetOffset, map[string]string{
			"topic":     topic,
			"group":     group,
			"timestamp": strconv.FormatInt(timestamp, 10),
			"isForce":   strconv.FormatBool(force),
		}, nil)
		if err != nil {
			return nil, err
		}
		var body struct {
			OffsetTable map[string]int64 `json:"offsetTable"`
		}
		if err := decodeBody(resp, &body); err != nil {
			return nil, err
		}
		for k, v := range body.OffsetTable {
			out[k] = v
		}
	}
	return out, nil
}

func (a *Admin) ResetConsumerOffset(ctx context.Context, group, topic string, timestamp int64) (map[string]int64, error) {
	return a.resetOffset(ctx, group, topic, timestamp, true)
}

func (a *Admin) ResetOffsetNew(ctx context.Context, group, topic string, timestamp int64) (map[string]int64, error) {
	return a.resetOffset(ctx, group, topic, timestamp, true)
}

// ResetOffsetByTimestampOld rewinds group on topic queue by queue without
// involving online consumers. Without force an offset only moves backwards.
func (a *Admin) ResetOffsetByTimestampOld(ctx context.Context, group, topic string, timestamp int64, force bool) ([]RollbackStats, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	stats, err := a.consumeStatsAcross(ctx, route.MasterAddrs(), group, topic, false)
	if err != nil {
		return nil, err
	}
	var out []RollbackStats
	for _, key := range sortedKeys(stats.OffsetTable) {
		mq, err := ParseMessageQueueKey(key)
		if err != nil {
			return nil, err
		}
		if mq.Topic != topic {
			continue
		}
		addr := route.AddrOf(mq.BrokerName)
		if addr == "" {
			continue
		}
		ow := stats.OffsetTable[key]
		tsOffset, err := a.SearchOffset(ctx, addr, topic, mq.QueueID, timestamp, 0)
		if err != nil {
			return nil, err
		}
		rollback := ow.ConsumerOffset
		if force || tsOffset < ow.ConsumerOffset {
			rollback = tsOffset
		}
		if err := a.updateConsumerOffset(ctx, addr, group, mq, rollback); err != nil {
			return nil, err
		}
		out = append(out, RollbackStats{
			BrokerName:      mq.BrokerName,
			QueueID:         mq.QueueID,
			BrokerOffset:    ow.BrokerOffset,
			ConsumerOffset:  ow.ConsumerOffset,
			TimestampOffset: tsOffset,
			RollbackOffset:  rollback,
		})
	}
	if out == nil {
		out = []RollbackStats{}
	}
	return out, nil
}

func (a *Admin) updateConsumerOffset(ctx context.Context, addr, group string, mq MessageQueue, offset int64) error {
	_, err := a.invoke(ctx, addr, remoting.UpdateConsumerOffset, map[string]string{
		"consumerGroup": group,
		"topic":         mq.Topic,
		"queueId":       strconv.Itoa(mq.QueueID),
		"commitOffset":  strconv.FormatInt(offset, 10),
	}, nil)
	return err
}

func (a *Admin) DeleteSubscriptionGroup(ctx context.Context, brokerAddr, group string) (string, error) {
	_, err := a.invoke(ctx, brokerAddr, remoting.DeleteSubscriptionGroup, map[string]string{
		"groupName":   group,
		"cleanOffset": "false",
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

// ExportPopRecords makes the broker persist its pop consumption records.
func (a *Admin) ExportPopRecords(ctx context.Context, brokerAddr string, timeoutMillis int64) (string, error) {
	ctx, cancel := a.timeoutCtx(ctx, timeoutMillis)
	defer cancel()
	if _, err := a.invoke(ctx, brokerAddr, remoting.ExportPopRecord, nil, nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

// GroupList is the set of consumer groups reading a topic.
type GroupList struct {
	GroupList []string `json:"groupList"`
}

func (a *Admin) QueryTopicConsumeByWho(ctx context.Context, topic string) (*GroupList, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, bd := range route.BrokerDatas {
		addr := bd.SelectAddr()
		if addr == "" {
			continue
		}
		resp, err := a.invoke(ctx, addr, remoting.QueryTopicConsumeByWho, map[string]string{"topic": topic}, nil)
		if err != nil {
			return nil, err
		}
		var part GroupList
		if err := decodeBody(resp, &part); err != nil {
			return nil, err
		}
		for _, g := range part.GroupList {
			seen[g] = struct{}{}
		}
	}
	return &GroupList{GroupList: sortedKeys(seen)}, nil
}

func (a *Admin) QueryTopicsByConsumer(ctx context.Context, group string) (*TopicList, error) {
	route, err := a.TopicRoute(ctx, RetryTopic(group))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, bd := range route.BrokerDatas {
		addr := bd.SelectAddr()
		if addr == "" {
			continue
		}
		resp, err := a.invoke(ctx, addr, remoting.QueryTopicsByConsumer, map[string]string{"group": group}, nil)
		if err != nil {
			return nil, err
		}
		var part TopicList
		if err := decodeBody(resp, &part); err != nil {
			return nil, err
		}
		for _, t := range part.TopicList {
			seen[t] = struct{}{}
		}
	}
	return &TopicList{TopicList: sortedKeys(seen)}, nil
}

func (a *Admin) QuerySubscription(ctx context.Context, group, topic string) (json.RawMessage, error) {
	addr, err := a.groupBrokerAddr(ctx, group)
	if err != nil {
		return nil, err
	}
	return a.invokeRaw(ctx, addr, remoting.QuerySubscriptionByConsumer, map[string]string{
		"group": group,
		"topic": topic,
	}, nil)
}

func (a *Admin) QueryConsumeTimeSpan(ctx context.Context, topic, group string) ([]json.RawMessage, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := []json.RawMessage{}
	for _, addr := range route.MasterAddrs() {
		resp, err := a.invoke(ctx, addr, remoting.QueryConsumeTimeSpan, map[string]string{
			"topic": topic,
			"group": group,
		}, nil)
		if err != nil {
			return nil, err
		}
		var body struct {
			ConsumeTimeSpanSet []json.RawMessage `json:"consumeTimeSpanSet"`
		}
		if err := decodeBody(resp, &body); err != nil {
			return nil, err
		}
		out = append(out, body.ConsumeTimeSpanSet...)
	}
	return out, nil
}

// SetMessageRequestMode switches group between PULL and POP consumption on
// topic.
func (a *Admin) SetMessageRequestMode(ctx context.Context, brokerAddr, topic, group, mode string, popShareQueueNum int, timeoutMillis int64) (string, error) {
	switch mode {
	case "PULL", "POP":
	default:
		return "", fmt.Errorf("invalid mode %q (use: PULL|POP)", mode)
	}
	body, err := json.Marshal(map[string]any{
		"topic":            topic,
		"consumerGroup":    group,
		"mode":             mode,
		"popShareQueueNum": popShareQueueNum,
	})
	if err != nil {
		return "", err
	}
	ctx, cancel := a.timeoutCtx(ctx, timeoutMillis)
	defer cancel()
	if _, err := a.invoke(ctx, brokerAddr, remoting.SetMessageRequestMode, nil, body); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) ResetOffsetByQueueID(ctx context.Context, brokerAddr, group, topic string, queueID int, offset int64) (string, error) {
	_, err := a.invoke(ctx, brokerAddr, remoting.InvokeBrokerToResetOffset, map[string]string{
		"topic":     topic,
		"group":     group,
		"queueId":   strconv.Itoa(queueID),
		"offset":    strconv.FormatInt(offset, 10),
		"timestamp": "-1",
		"isForce":   "true",
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) UpdateAndGetGroupReadForbidden(ctx context.Context, brokerAddr, group, topic string, readable *bool) (json.RawMessage, error) {
	ext := map[string]string{
		"group": group,
		"topic": topic,
	}
	if readable != nil {
		ext["readable"] = strconv.FormatBool(*readable)
	}
	return a.invokeRaw(ctx, brokerAddr, remoting.UpdateAndGetGroupForbidden, ext, nil)
}

// GetConsumeStatus reports the offsets each client of group holds for topic,
// keyed by client id.
func (a *Admin) GetConsumeStatus(ctx context.Context, topic, group, clientAddr string) (map[string]map[string]int64, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	addr := route.AnyAddr()
	if addr == "" {
		return nil, fmt.Errorf("topic %s: %w", topic, ErrNoBroker)
	}
	resp, err := a.invoke(ctx, addr, remoting.InvokeBrokerToGetConsumerStatus, map[string]string{
		"topic":      topic,
		"group":      group,
		"clientAddr": clientAddr,
	}, nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		ConsumerTable map[string]map[string]int64 `json:"consumerTable"`
	}
	if err := decodeBody(resp, &body); err != nil {
		return nil, err
	}
	if body.ConsumerTable == nil {
		body.ConsumerTable = map[string]map[string]int64{}
	}
	return body.ConsumerTable, nil
}

func (a *Admin) CloneGroupOffset(ctx context.Context, srcGroup, destGroup, topic string, offline bool) (string, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return "", err
	}
	for _, addr := range route.MasterAddrs() {
		_, err := a.invoke(ctx, addr, remoting.CloneGroupOffset, map[string]string{
			"srcGroup":  srcGroup,
			"destGroup": destGroup,
			"topic":     topic,
			"offline":   strconv.FormatBool(offline),
		}, nil)
		if err != nil {
			return "", err
		}
	}
	return resultString(true), nil
}

func (a *Admin) FetchConsumeStatsInBroker(ctx context.Context, brokerAddr string, isOrder bool, timeoutMillis int64) (json.RawMessage, error) {
	ctx, cancel := a.timeoutCtx(ctx, timeoutMillis)
	defer cancel()
	return a.invokeRaw(ctx, brokerAddr, remoting.GetBrokerConsumeStats, map[string]string{
		"isOrder": strconv.FormatBool(isOrder),
	}, nil)
}

// GetUserSubscriptionGroup returns the broker's subscription groups without
// system groups.
func (a *Admin) GetUserSubscriptionGroup(ctx context.Context, brokerAddr string, timeoutMillis int64) (map[string]json.RawMessage, error) {
	ctx, cancel := a.timeoutCtx(ctx, timeoutMillis)
	defer cancel()
	resp, err := a.invoke(ctx, brokerAddr, remoting.GetAllSubscriptionGroupConfig, nil, nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		SubscriptionGroupTable map[string]json.RawMessage `json:"subscriptionGroupTable"`
	}
	if err := decodeBody(resp, &body); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(body.SubscriptionGroupTable))
	for name, cfg := range body.SubscriptionGroupTable {
		if IsSystemGroup(name) {
			continue
		}
		out[name] = cfg
	}
	return out, nil
}

// UpdateConsumeOffset commits offset for group on the queue described by
// mqJSON ({"topic":..,"brokerName":..,"queueId":..}).
func (a *Admin) UpdateConsumeOffset(ctx context.Context, brokerAddr, group, mqJSON string, offset int64) (string, error) {
	mq, err := ParseMessageQueueKey(mqJSON)
	if err != nil {
		return "", err
	}
	if mq.Topic == "" {
		return "", errors.New("mqJson.topic is required")
	}
	if err := a.updateConsumerOffset(ctx, brokerAddr, group, mq, offset); err != nil {
		return "", err
	}
	return resultString(true), nil
}
