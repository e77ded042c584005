package mqadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

const defaultQueryMaxNum = 32

// ViewMessage fetches a message by offset message id, falling back to a
// unique key lookup on topic when the id does not resolve to a broker.
func (a *Admin) ViewMessage(ctx context.Context, topic, msgID string) (*MessageExt, error) {
	m, err := a.viewByOffsetID(ctx, msgID)
	if err == nil {
		return m, nil
	}
	if topic == "" {
		return nil, err
	}
	msgs, qerr := a.queryMessages(ctx, "", topic, msgID, defaultQueryMaxNum, 0, maxTimestamp, true)
	if qerr != nil {
		return nil, errors.Join(err, qerr)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %s not found in topic %s", msgID, topic)
	}
	return &msgs[0], nil
}

const maxTimestamp = int64(1<<63 - 1)

func (a *Admin) viewByOffsetID(ctx context.Context, msgID string) (*MessageExt, error) {
	addr, offset, err := ParseMessageID(msgID)
	if err != nil {
		return nil, err
	}
	resp, err := a.invoke(ctx, addr, remoting.ViewMessageByID, map[string]string{
		"offset": strconv.FormatInt(offset, 10),
	}, nil)
	if err != nil {
		return nil, err
	}
	msgs, err := DecodeMessages(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %s not found", msgID)
	}
	return &msgs[0], nil
}

// QueryMessageByID looks msgID up as an offset id first and as a producer
// unique key on topic second. A non-blank cluster restricts the unique key
// search to that cluster's brokers.
func (a *Admin) QueryMessageByID(ctx context.Context, cluster, topic, msgID string) (*MessageExt, error) {
	if m, err := a.viewByOffsetID(ctx, msgID); err == nil {
		return m, nil
	}
	msgs, err := a.queryMessages(ctx, cluster, topic, msgID, defaultQueryMaxNum, 0, maxTimestamp, true)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %s not found in topic %s", msgID, topic)
	}
	return &msgs[0], nil
}

// QueryMessageByKey searches the index of every broker of topic for key
// between begin and end (epoch millis).
func (a *Admin) QueryMessageByKey(ctx context.Context, topic, key string, maxNum int, begin, end int64) ([]MessageExt, error) {
	if maxNum <= 0 {
		maxNum = defaultQueryMaxNum
	}
	if end <= 0 {
		end = maxTimestamp
	}
	return a.queryMessages(ctx, "", topic, key, maxNum, begin, end, false)
}

func (a *Admin) queryMessages(ctx context.Context, cluster, topic, key string, maxNum int, begin, end int64, uniqKey bool) ([]MessageExt, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	var allowed map[string]struct{}
	if cluster != "" {
		info, err := a.ClusterInfo(ctx)
		if err != nil {
			return nil, err
		}
		allowed = make(map[string]struct{})
		for _, name := range info.ClusterAddrTable[cluster] {
			allowed[name] = struct{}{}
		}
	}
	ext := map[string]string{
		"topic":          topic,
		"key":            key,
		"maxNum":         strconv.Itoa(maxNum),
		"beginTimestamp": strconv.FormatInt(begin, 10),
		"endTimestamp":   strconv.FormatInt(end, 10),
	}
	if uniqKey {
		ext["_UNIQUE_KEY_QUERY"] = "true"
	}

	var (
		mu  sync.Mutex
		out []MessageExt
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, bd := range route.BrokerDatas {
		if allowed != nil {
			if _, ok := allowed[bd.BrokerName]; !ok {
				continue
			}
		}
		addr := bd.SelectAddr()
		if addr == "" {
			continue
		}
		brokerName := bd.BrokerName
		g.Go(func() error {
			resp, err := a.invoke(gctx, addr, remoting.QueryMessage, ext, nil, remoting.Success, remoting.QueryNotFound)
			if err != nil {
				return err
			}
			if resp.Code == remoting.QueryNotFound {
				return nil
			}
			msgs, err := DecodeMessages(resp.Body)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, m := range msgs {
				if !messageMatches(m, key, uniqKey) {
					continue
				}
				m.BrokerName = brokerName
				out = append(out, m)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreTimestamp < out[j].StoreTimestamp })
	if len(out) > maxNum {
		out = out[:maxNum]
	}
	if out == nil {
		out = []MessageExt{}
	}
	return out, nil
}

func messageMatches(m MessageExt, key string, uniqKey bool) bool {
	if uniqKey {
		return m.UniqKey() == key
	}
	for _, k := range strings.Fields(m.Properties[PropertyKeys]) {
		if k == key {
			return true
		}
	}
	return false
}

// ConsumeMessageDirectly asks one consumer client to consume msgID now and
// returns the client's report.
func (a *Admin) ConsumeMessageDirectly(ctx context.Context, group, topic, clientID, msgID string) (json.RawMessage, error) {
	addr, err := a.groupBrokerAddr(ctx, group)
	if err != nil && topic != "" {
		route, rerr := a.TopicRoute(ctx, topic)
		if rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		addr, err = route.AnyAddr(), nil
	}
	if err != nil {
		return nil, err
	}
	ext := map[string]string{
		"consumerGroup": group,
		"clientId":      clientID,
		"msgId":         msgID,
	}
	if topic != "" {
		ext["topic"] = topic
	}
	return a.invokeRaw(ctx, addr, remoting.ConsumeMessageDirectly, ext, nil)
}

// CleanExpiredMessages removes expired consume queue entries on brokerAddr.
func (a *Admin) CleanExpiredMessages(ctx context.Context, brokerAddr string) (bool, error) {
	return a.CleanExpiredConsumerQueueByAddr(ctx, brokerAddr)
}

// ResumeCheckHalfMessage makes the broker re-check a prepared transactional
// message.
func (a *Admin) ResumeCheckHalfMessage(ctx context.Context, topic, msgID string) (bool, error) {
	m, err := a.ViewMessage(ctx, topic, msgID)
	if err != nil {
		return false, err
	}
	_, err = a.invoke(ctx, m.StoreHost, remoting.ResumeCheckHalfMessage, map[string]string{
		"msgId": msgID,
		"topic": topic,
	}, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// MessageTrackDetail reports, for every consumer group subscribed to the
// message's topic, whether the message has been consumed.
func (a *Admin) MessageTrackDetail(ctx context.Context, msg MessageExt) ([]MessageTrack, error) {
	return a.messageTrack(ctx, msg, false)
}

func (a *Admin) MessageTrackDetailConcurrent(ctx context.Context, msg MessageExt) ([]MessageTrack, error) {
	return a.messageTrack(ctx, msg, true)
}

func (a *Admin) messageTrack(ctx context.Context, msg MessageExt, concurrent bool) ([]MessageTrack, error) {
	if msg.Topic == "" {
		return nil, errors.New("message topic is required")
	}
	groups, err := a.QueryTopicConsumeByWho(ctx, msg.Topic)
	if err != nil {
		return nil, err
	}
	if msg.BrokerName == "" {
		route, err := a.TopicRoute(ctx, msg.Topic)
		if err != nil {
			return nil, err
		}
		msg.BrokerName = brokerNameOf(route, msg.StoreHost)
	}

	tracks := make([]MessageTrack, len(groups.GroupList))
	if !concurrent {
		for i, g := range groups.GroupList {
			tracks[i] = a.trackGroup(ctx, g, msg)
		}
		return tracks, nil
	}
	var wg sync.WaitGroup
	for i, g := range groups.GroupList {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracks[i] = a.trackGroup(ctx, g, msg)
		}()
	}
	wg.Wait()
	return tracks, nil
}

func brokerNameOf(route *TopicRouteData, storeHost string) string {
	storeHost = strings.TrimPrefix(storeHost, "/")
	for _, bd := range route.BrokerDatas {
		for _, addr := range bd.BrokerAddrs {
			if addr == storeHost {
				return bd.BrokerName
			}
		}
	}
	return ""
}

func (a *Admin) trackGroup(ctx context.Context, group string, msg MessageExt) MessageTrack {
	track := MessageTrack{ConsumerGroup: group, TrackType: TrackUnknown}

	_, conn, err := a.consumerConnection(ctx, group)
	if err != nil {
		if remoting.IsCode(err, remoting.ConsumerNotOnline) {
			track.TrackType = TrackNotOnline
		}
		track.ExceptionDesc = err.Error()
		return track
	}

	stats, err := a.ExamineConsumeStatsByTopic(ctx, group, msg.Topic)
	if err != nil {
		track.ExceptionDesc = err.Error()
		return track
	}
	ow, ok := stats.Lookup(MessageQueue{Topic: msg.Topic, BrokerName: msg.BrokerName, QueueID: int(msg.QueueID)})
	if !ok {
		return track
	}
	if ow.ConsumerOffset <= msg.QueueOffset {
		track.TrackType = TrackNotConsumeYet
		return track
	}
	track.TrackType = TrackConsumed
	if filteredOut(conn, msg) {
		track.TrackType = TrackConsumedFiltered
	}
	return track
}

// filteredOut reports whether the group's subscription to the message's
// topic excludes the message's tag.
func filteredOut(conn json.RawMessage, msg MessageExt) bool {
	var cc struct {
		SubscriptionTable map[string]struct {
			SubString string   `json:"subString"`
			TagsSet   []string `json:"tagsSet"`
		} `json:"subscriptionTable"`
	}
	if err := json.Unmarshal(conn, &cc); err != nil {
		return false
	}
	sub, ok := cc.SubscriptionTable[msg.Topic]
	if !ok || sub.SubString == "" || sub.SubString == "*" || len(sub.TagsSet) == 0 {
		return false
	}
	return !slices.Contains(sub.TagsSet, msg.Properties[PropertyTags])
}
