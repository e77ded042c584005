package mqadmin

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	MasterID = "0"

	retryGroupTopicPrefix = "%RETRY%"
	dlqGroupTopicPrefix   = "%DLQ%"

	NamespaceOrderTopicConfig = "ORDER_TOPIC_CONFIG"
)

// BrokerData is one broker set as registered with the name server.
type BrokerData struct {
	Cluster     string            `json:"cluster"`
	BrokerName  string            `json:"brokerName"`
	BrokerAddrs map[string]string `json:"brokerAddrs"`
}

// MasterAddr returns the address registered under broker id 0.
func (b BrokerData) MasterAddr() string {
	return b.BrokerAddrs[MasterID]
}

// SelectAddr prefers the master and falls back to the lowest broker id.
func (b BrokerData) SelectAddr() string {
	if addr := b.MasterAddr(); addr != "" {
		return addr
	}
	ids := make([]int, 0, len(b.BrokerAddrs))
	for id := range b.BrokerAddrs {
		if n, err := strconv.Atoi(id); err == nil {
			ids = append(ids, n)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Ints(ids)
	return b.BrokerAddrs[strconv.Itoa(ids[0])]
}

// ClusterInfo maps broker names to broker data and clusters to broker names.
type ClusterInfo struct {
	BrokerAddrTable  map[string]BrokerData `json:"brokerAddrTable"`
	ClusterAddrTable map[string][]string   `json:"clusterAddrTable"`
}

// MasterAddrs returns master addresses of cluster, or of every cluster when
// cluster is blank, sorted.
func (c *ClusterInfo) MasterAddrs(cluster string) []string {
	var names []string
	if cluster == "" {
		for name := range c.BrokerAddrTable {
			names = append(names, name)
		}
	} else {
		names = c.ClusterAddrTable[cluster]
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if addr := c.BrokerAddrTable[name].MasterAddr(); addr != "" {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

// AllAddrs returns every registered broker address, sorted and unique.
func (c *ClusterInfo) AllAddrs() []string {
	seen := make(map[string]struct{})
	for _, bd := range c.BrokerAddrTable {
		for _, addr := range bd.BrokerAddrs {
			seen[addr] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// ClustersOf returns the clusters that contain any of brokerNames.
func (c *ClusterInfo) ClustersOf(brokerNames []string) []string {
	want := make(map[string]struct{}, len(brokerNames))
	for _, n := range brokerNames {
		want[n] = struct{}{}
	}
	var out []string
	for cluster, names := range c.ClusterAddrTable {
		for _, n := range names {
			if _, ok := want[n]; ok {
				out = append(out, cluster)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

type QueueData struct {
	BrokerName     string `json:"brokerName"`
	ReadQueueNums  int    `json:"readQueueNums"`
	WriteQueueNums int    `json:"writeQueueNums"`
	Perm           int    `json:"perm"`
	TopicSysFlag   int    `json:"topicSysFlag"`
}

// TopicRouteData is the name server's route for one topic.
type TopicRouteData struct {
	OrderTopicConf string       `json:"orderTopicConf,omitempty"`
	QueueDatas     []QueueData  `json:"queueDatas"`
	BrokerDatas    []BrokerData `json:"brokerDatas"`
}

// MasterAddrs returns the master address of every broker serving the route.
func (r *TopicRouteData) MasterAddrs() []string {
	out := make([]string, 0, len(r.BrokerDatas))
	for _, bd := range r.BrokerDatas {
		if addr := bd.MasterAddr(); addr != "" {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

// AnyAddr returns a reachable address of the first broker that has one.
func (r *TopicRouteData) AnyAddr() string {
	for _, bd := range r.BrokerDatas {
		if addr := bd.SelectAddr(); addr != "" {
			return addr
		}
	}
	return ""
}

func (r *TopicRouteData) BrokerNames() []string {
	out := make([]string, 0, len(r.BrokerDatas))
	for _, bd := range r.BrokerDatas {
		out = append(out, bd.BrokerName)
	}
	return out
}

// AddrOf returns the selected address of brokerName.
func (r *TopicRouteData) AddrOf(brokerName string) string {
	for _, bd := range r.BrokerDatas {
		if bd.BrokerName == brokerName {
			return bd.SelectAddr()
		}
	}
	return ""
}

// TopicConfig mirrors the broker's per-topic configuration.
type TopicConfig struct {
	TopicName       string            `json:"topicName" mapstructure:"topicName"`
	ReadQueueNums   int               `json:"readQueueNums" mapstructure:"readQueueNums"`
	WriteQueueNums  int               `json:"writeQueueNums" mapstructure:"writeQueueNums"`
	Perm            int               `json:"perm" mapstructure:"perm"`
	TopicFilterType string            `json:"topicFilterType,omitempty" mapstructure:"topicFilterType"`
	TopicSysFlag    int               `json:"topicSysFlag" mapstructure:"topicSysFlag"`
	Order           bool              `json:"order" mapstructure:"order"`
	Attributes      map[string]string `json:"attributes,omitempty" mapstructure:"attributes"`
}

const (
	PermRead  = 1 << 2
	PermWrite = 1 << 1
)

// WithDefaults fills the fields a broker requires.
func (c TopicConfig) WithDefaults() TopicConfig {
	if c.ReadQueueNums <= 0 {
		c.ReadQueueNums = 8
	}
	if c.WriteQueueNums <= 0 {
		c.WriteQueueNums = c.ReadQueueNums
	}
	if c.Perm == 0 {
		c.Perm = PermRead | PermWrite
	}
	if c.TopicFilterType == "" {
		c.TopicFilterType = "SINGLE_TAG"
	}
	return c
}

func (c TopicConfig) header() map[string]string {
	return map[string]string{
		"topic":           c.TopicName,
		"defaultTopic":    "TBW102",
		"readQueueNums":   strconv.Itoa(c.ReadQueueNums),
		"writeQueueNums":  strconv.Itoa(c.WriteQueueNums),
		"perm":            strconv.Itoa(c.Perm),
		"topicFilterType": c.TopicFilterType,
		"topicSysFlag":    strconv.Itoa(c.TopicSysFlag),
		"order":           strconv.FormatBool(c.Order),
	}
}

// SubscriptionGroupConfig mirrors the broker's consumer group configuration.
type SubscriptionGroupConfig struct {
	GroupName                      string            `json:"groupName" mapstructure:"groupName"`
	ConsumeEnable                  bool              `json:"consumeEnable" mapstructure:"consumeEnable"`
	ConsumeFromMinEnable           bool              `json:"consumeFromMinEnable" mapstructure:"consumeFromMinEnable"`
	ConsumeBroadcastEnable         bool              `json:"consumeBroadcastEnable" mapstructure:"consumeBroadcastEnable"`
	ConsumeMessageOrderly          bool              `json:"consumeMessageOrderly" mapstructure:"consumeMessageOrderly"`
	RetryQueueNums                 int               `json:"retryQueueNums" mapstructure:"retryQueueNums"`
	RetryMaxTimes                  int               `json:"retryMaxTimes" mapstructure:"retryMaxTimes"`
	BrokerID                       int64             `json:"brokerId" mapstructure:"brokerId"`
	WhichBrokerWhenConsumeSlowly   int64             `json:"whichBrokerWhenConsumeSlowly" mapstructure:"whichBrokerWhenConsumeSlowly"`
	NotifyConsumerIdsChangedEnable bool              `json:"notifyConsumerIdsChangedEnable" mapstructure:"notifyConsumerIdsChangedEnable"`
	GroupSysFlag                   int               `json:"groupSysFlag" mapstructure:"groupSysFlag"`
	ConsumeTimeoutMinute           int               `json:"consumeTimeoutMinute" mapstructure:"consumeTimeoutMinute"`
	Attributes                     map[string]string `json:"attributes,omitempty" mapstructure:"attributes"`
}

// DefaultSubscriptionGroupConfig returns the broker-side defaults for group.
func DefaultSubscriptionGroupConfig(group string) SubscriptionGroupConfig {
	return SubscriptionGroupConfig{
		GroupName:                      group,
		ConsumeEnable:                  true,
		ConsumeFromMinEnable:           true,
		ConsumeBroadcastEnable:         true,
		RetryQueueNums:                 1,
		RetryMaxTimes:                  16,
		WhichBrokerWhenConsumeSlowly:   1,
		NotifyConsumerIdsChangedEnable: true,
		ConsumeTimeoutMinute:           15,
	}
}

// MessageQueue identifies one queue of a topic on one broker.
type MessageQueue struct {
	Topic      string `json:"topic"`
	BrokerName string `json:"brokerName"`
	QueueID    int    `json:"queueId"`
}

func (q MessageQueue) String() string {
	return fmt.Sprintf("MessageQueue [topic=%s, brokerName=%s, queueId=%d]", q.Topic, q.BrokerName, q.QueueID)
}

// ParseMessageQueueKey decodes a normalized object key back into a queue.
func ParseMessageQueueKey(key string) (MessageQueue, error) {
	var mq MessageQueue
	if err := json.Unmarshal([]byte(key), &mq); err != nil {
		return mq, fmt.Errorf("invalid message queue key %q: %w", key, err)
	}
	return mq, nil
}

type OffsetWrapper struct {
	BrokerOffset   int64 `json:"brokerOffset"`
	ConsumerOffset int64 `json:"consumerOffset"`
	PullOffset     int64 `json:"pullOffset,omitempty"`
	LastTimestamp  int64 `json:"lastTimestamp"`
}

// ConsumeStats is a group's progress per queue plus its consume TPS.
type ConsumeStats struct {
	OffsetTable map[string]OffsetWrapper `json:"offsetTable"`
	ConsumeTps  float64                  `json:"consumeTps"`
}

// Lookup finds the offsets recorded for mq.
func (s *ConsumeStats) Lookup(mq MessageQueue) (OffsetWrapper, bool) {
	for key, ow := range s.OffsetTable {
		got, err := ParseMessageQueueKey(key)
		if err != nil {
			continue
		}
		if got == mq {
			return ow, true
		}
	}
	return OffsetWrapper{}, false
}

// Diff is the total number of messages not yet consumed.
func (s *ConsumeStats) Diff() int64 {
	var total int64
	for _, ow := range s.OffsetTable {
		total += ow.BrokerOffset - ow.ConsumerOffset
	}
	return total
}

type TopicOffset struct {
	MinOffset           int64 `json:"minOffset"`
	MaxOffset           int64 `json:"maxOffset"`
	LastUpdateTimestamp int64 `json:"lastUpdateTimestamp"`
}

type TopicStatsTable struct {
	OffsetTable map[string]TopicOffset `json:"offsetTable"`
}

// RollbackStats reports one queue of a timestamp based offset reset.
type RollbackStats struct {
	BrokerName      string `json:"brokerName"`
	QueueID         int    `json:"queueId"`
	BrokerOffset    int64  `json:"brokerOffset"`
	ConsumerOffset  int64  `json:"consumerOffset"`
	TimestampOffset int64  `json:"timestampOffset"`
	RollbackOffset  int64  `json:"rollbackOffset"`
}

// PlainAccessConfig is an ACL v1 account.
type PlainAccessConfig struct {
	AccessKey          string   `json:"accessKey" mapstructure:"accessKey"`
	SecretKey          string   `json:"secretKey" mapstructure:"secretKey"`
	WhiteRemoteAddress string   `json:"whiteRemoteAddress,omitempty" mapstructure:"whiteRemoteAddress"`
	Admin              bool     `json:"admin" mapstructure:"admin"`
	DefaultTopicPerm   string   `json:"defaultTopicPerm,omitempty" mapstructure:"defaultTopicPerm"`
	DefaultGroupPerm   string   `json:"defaultGroupPerm,omitempty" mapstructure:"defaultGroupPerm"`
	TopicPerms         []string `json:"topicPerms,omitempty" mapstructure:"topicPerms"`
	GroupPerms         []string `json:"groupPerms,omitempty" mapstructure:"groupPerms"`
}

func (c PlainAccessConfig) header() map[string]string {
	return map[string]string{
		"accessKey":          c.AccessKey,
		"secretKey":          c.SecretKey,
		"whiteRemoteAddress": c.WhiteRemoteAddress,
		"admin":              strconv.FormatBool(c.Admin),
		"defaultTopicPerm":   c.DefaultTopicPerm,
		"defaultGroupPerm":   c.DefaultGroupPerm,
		"topicPerms":         strings.Join(c.TopicPerms, ","),
		"groupPerms":         strings.Join(c.GroupPerms, ","),
	}
}

// UserInfo is an ACL v2 user.
type UserInfo struct {
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	UserType   string `json:"userType,omitempty"`
	UserStatus string `json:"userStatus,omitempty"`
}

type PolicyEntry struct {
	Resource  string   `json:"resource"`
	Actions   []string `json:"actions"`
	SourceIps []string `json:"sourceIps,omitempty"`
	Decision  string   `json:"decision"`
}

type Policy struct {
	PolicyType string        `json:"policyType"`
	Entries    []PolicyEntry `json:"entries"`
}

// AclInfo is the ACL v2 policy set of one subject.
type AclInfo struct {
	Subject  string   `json:"subject"`
	Policies []Policy `json:"policies"`
}

// NewAclInfo builds a custom policy with one entry per resource.
func NewAclInfo(subject string, resources, actions, sourceIps []string, decision string) AclInfo {
	entries := make([]PolicyEntry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, PolicyEntry{
			Resource:  r,
			Actions:   actions,
			SourceIps: sourceIps,
			Decision:  decision,
		})
	}
	return AclInfo{
		Subject:  subject,
		Policies: []Policy{{PolicyType: "CUSTOM", Entries: entries}},
	}
}

// MessageTrack tells whether a consumer group has consumed a message.
type MessageTrack struct {
	ConsumerGroup string `json:"consumerGroup"`
	TrackType     string `json:"trackType"`
	ExceptionDesc string `json:"exceptionDesc,omitempty"`
}

const (
	TrackConsumed         = "CONSUMED"
	TrackConsumedFiltered = "CONSUMED_BUT_FILTERED"
	TrackNotConsumeYet    = "NOT_CONSUME_YET"
	TrackNotOnline        = "NOT_ONLINE"
	TrackUnknown          = "UNKNOWN"
)

var systemTopics = map[string]struct{}{
	"TBW102":                       {},
	"SCHEDULE_TOPIC_XXXX":          {},
	"BenchmarkTest":                {},
	"OFFSET_MOVED_EVENT":           {},
	"SELF_TEST_TOPIC":              {},
	"RMQ_SYS_TRANS_HALF_TOPIC":     {},
	"RMQ_SYS_TRACE_TOPIC":          {},
	"RMQ_SYS_TRANS_OP_HALF_TOPIC":  {},
	"TRANS_CHECK_MAX_TIME_TOPIC":   {},
	"rmq_sys_SYNC_BROKER_MEMBER":   {},
	"rmq_sys_REVIVE_LOG":           {},
	"rmq_sys_wheel_timer":          {},
	"rmq_sys_ROCKSDB_OFFSET_TOPIC": {},
}

// IsSystemTopic reports whether topic is reserved by the broker.
func IsSystemTopic(topic string) bool {
	if _, ok := systemTopics[topic]; ok {
		return true
	}
	return strings.HasPrefix(topic, "rmq_sys_") || strings.HasPrefix(topic, "CID_RMQ_SYS_")
}

var systemGroups = map[string]struct{}{
	"DEFAULT_PRODUCER":      {},
	"DEFAULT_CONSUMER":      {},
	"TOOLS_CONSUMER":        {},
	"FILTERSRV_CONSUMER":    {},
	"__MONITOR_CONSUMER":    {},
	"CLIENT_INNER_PRODUCER": {},
	"SELF_TEST_P_GROUP":     {},
	"SELF_TEST_C_GROUP":     {},
	"CID_ONS-HTTP-PROXY":    {},
	"CID_ONSAPI_PERMISSION": {},
	"CID_ONSAPI_OWNER":      {},
	"CID_ONSAPI_PULL":       {},
	"CID_RMQ_SYS_TRANS":     {},
}

// IsSystemGroup reports whether group is reserved by the broker.
func IsSystemGroup(group string) bool {
	if _, ok := systemGroups[group]; ok {
		return true
	}
	return strings.HasPrefix(group, "CID_RMQ_SYS_")
}

// RetryTopic returns the retry topic of a consumer group.
func RetryTopic(group string) string {
	return retryGroupTopicPrefix + group
}

func isRetryOrDLQ(topic string) bool {
	return strings.HasPrefix(topic, retryGroupTopicPrefix) || strings.HasPrefix(topic, dlqGroupTopicPrefix)
}
