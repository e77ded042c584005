package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/audit"
	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting/remotingtest"
)

func TestCatalogWriteToolsMatchRegistry(t *testing.T) {
	c := Default()
	for _, g := range policy.Groups() {
		var fromCatalog []string
		for _, tool := range c.Group(g) {
			if tool.Write {
				fromCatalog = append(fromCatalog, tool.Name)
			}
		}
		registry := policy.WriteOperations(g)
		sort.Strings(fromCatalog)
		sort.Strings(registry)
		if strings.Join(fromCatalog, ",") != strings.Join(registry, ",") {
			t.Fatalf("group %s: catalog writes %v, registry %v", g, fromCatalog, registry)
		}
	}
	for _, tool := range c.All() {
		if tool.Write != policy.IsWrite(tool.Name) {
			t.Fatalf("%s: Write=%v but registry says %v", tool.Name, tool.Write, policy.IsWrite(tool.Name))
		}
	}
}

var catalogNames = map[policy.Group][]string{
	policy.GroupAcl: {
		"createAndUpdatePlainAccessConfig", "deletePlainAccessConfig", "updateGlobalWhiteAddrConfig",
		"updateGlobalWhiteAddrConfigWithAcl", "getAclVersionList", "createUser", "updateUser", "deleteUser",
		"getUser", "getAllUsers", "createAcl", "updateAcl", "deleteAcl", "getAcl", "getAclList",
	},
	policy.GroupBroker: {
		"getBrokerRuntimeStats", "getBrokerConfig", "updateBrokerConfig", "getAllBrokerAddresses",
		"addBrokerToContainer", "removeBrokerFromContainer", "resetMasterFlushOffset", "getBrokerHAStatus",
		"getBrokerEpochCache", "setCommitLogReadAheadMode", "getColdDataFlowCtrInfo",
		"updateColdDataFlowCtrGroupConfig", "removeColdDataFlowCtrGroupConfig", "viewBrokerStatsData",
		"deleteExpiredCommitLog", "deleteExpiredCommitLogByAddr", "searchOffset",
	},
	policy.GroupCluster: {"getClusterInfo"},
	policy.GroupConsumeQueue: {
		"checkRocksdbCqWriteProgress", "queryConsumeQueue", "exportRocksDBConfigToJson",
		"cleanExpiredConsumerQueue", "cleanExpiredConsumerQueueByAddr",
	},
	policy.GroupConsumer: {
		"examineSubscriptionGroupConfig", "getAllSubscriptionGroup", "examineConsumeStats", "getConsumeJstack",
		"createAndUpdateSubscriptionGroupConfig", "createAndUpdateSubscriptionGroupConfigList",
		"examineConsumeStatsByTopic", "examineConsumeStatsByCluster", "examineConsumeStatsWithTimeout",
		"examineConsumeStatsConcurrent", "examineConsumerConnectionInfo", "examineConsumerConnectionInfoByBroker",
		"resetConsumerOffset", "deleteSubscriptionGroup", "examineConsumerConnectionInfoWithAddr",
		"exportPopRecords", "resetOffsetByTimestampOld", "queryTopicConsumeByWho", "queryTopicsByConsumer",
		"querySubscription", "queryConsumeTimeSpan", "setMessageRequestMode", "resetOffsetByQueueId",
		"updateAndGetGroupReadForbidden", "resetOffsetNew", "getConsumeStatus", "cloneGroupOffset",
		"fetchConsumeStatsInBroker", "getUserSubscriptionGroup", "updateConsumeOffset",
	},
	policy.GroupController: {
		"updateControllerConfig", "getControllerConfig", "electMaster", "cleanControllerBrokerData",
		"getInSyncStateData", "getControllerMetaData",
	},
	policy.GroupMessage: {
		"consumeMessageDirectly", "viewMessage", "cleanExpiredMessages", "queryMessageByKey",
		"queryMessageById", "resumeCheckHalfMessage", "messageTrackDetail", "messageTrackDetailConcurrent",
	},
	policy.GroupNameserver: {
		"getNameServerAddressList", "putKVConfig", "getKVConfig", "getKVListByNamespace",
		"createAndUpdateKvConfig", "deleteKvConfig", "createOrUpdateOrderConf", "updateNameServerConfig",
		"getNameServerConfig",
	},
	policy.GroupProducer: {"examineProducerConnectionInfo", "getAllProducerInfo"},
	policy.GroupTopic: {
		"fetchAllTopicList", "fetchPublishMessageQueues", "examineTopicStats", "examineTopicRouteInfo",
		"examineTopicConfig", "createAndUpdateTopicConfig", "deleteTopicInBroker", "createAndUpdateTopicConfigList",
		"fetchTopicsByCLuster", "cleanUnusedTopic", "createStaticTopic", "deleteTopic", "deleteTopicInNameServer",
		"deleteTopicInNameServerWithCluster", "getTopicClusterList", "getUserTopicConfig",
	},
}

func TestCatalogMatchesGroupTables(t *testing.T) {
	c := Default()
	total := 0
	for _, g := range policy.Groups() {
		want := append([]string(nil), catalogNames[g]...)
		sort.Strings(want)
		var got []string
		for _, tool := range c.Group(g) {
			got = append(got, tool.Name)
		}
		sort.Strings(got)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("group %s:\n got %v\nwant %v", g, got, want)
		}
		total += len(want)
	}
	if n := len(c.All()); n != total || n != 109 {
		t.Fatalf("catalog has %d tools, group tables list %d", n, total)
	}
}

func TestReadToolsPassEnabledGate(t *testing.T) {
	gate := policy.Gate{Enabled: true}
	for _, tool := range Default().All() {
		err := gate.Check(tool.Identifier())
		if tool.Write && err == nil {
			t.Fatalf("%s: write tool allowed by enabled gate", tool.Identifier())
		}
		if !tool.Write && err != nil {
			t.Fatalf("%s: read tool rejected: %v", tool.Identifier(), err)
		}
	}
}

func TestLookup(t *testing.T) {
	c := Default()
	for _, name := range []string{"createUser", "createuser", "acl/createUser", "api/acl/createUser", "/api/acl/createUser"} {
		tool, ok := c.Lookup(name)
		if !ok || tool.Name != "createUser" {
			t.Fatalf("Lookup(%q) = %v, %v", name, tool.Name, ok)
		}
	}
	if _, ok := c.Lookup("topic/createUser"); ok {
		t.Fatalf("group mismatch should not resolve")
	}
	if _, ok := c.Lookup("nope"); ok {
		t.Fatalf("unknown tool resolved")
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	run := func(context.Context, *mqadmin.Admin, Args) (any, error) { return nil, nil }
	_, err := NewCatalog(Tool{Name: "a", Run: run}, Tool{Name: "A", Run: run})
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestValidate(t *testing.T) {
	tool, _ := Default().Lookup("searchOffset")
	cases := []struct {
		name string
		args Args
		want string
	}{
		{"missing", Args{"topicName": "T", "queueId": 0, "timestamp": 1}, "brokerAddr is required"},
		{"blank", Args{"brokerAddr": " ", "topicName": "T", "queueId": 0, "timestamp": 1}, "brokerAddr must not be blank"},
		{"not integer", Args{"brokerAddr": "b", "topicName": "T", "queueId": 1.5, "timestamp": 1}, "queueId must be an integer"},
		{"string integer", Args{"brokerAddr": "b", "topicName": "T", "queueId": "3", "timestamp": float64(1)}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tool.Validate(tc.args)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ae *ArgError
			if !errors.As(err, &ae) || err.Error() != tc.want {
				t.Fatalf("got %v, want %q", err, tc.want)
			}
		})
	}

	acl, _ := Default().Lookup("createAcl")
	err := acl.Validate(Args{"brokerAddr": "b", "subject": "User:a", "resources": []any{}, "decision": "ALLOW"})
	if err == nil || !strings.Contains(err.Error(), "resources must not be empty") {
		t.Fatalf("got %v", err)
	}
	if err := acl.Validate(Args{"brokerAddr": "b", "subject": "User:a", "resources": "Topic:a,Group:b", "decision": "ALLOW"}); err != nil {
		t.Fatalf("comma list: %v", err)
	}
}

func TestArgs(t *testing.T) {
	args := Args{
		"s":     " x ",
		"n":     float64(42),
		"ns":    "7",
		"b":     "true",
		"list":  []any{"a", " b ", ""},
		"csv":   "a;b,c",
		"props": map[string]any{"k": 1.5, "flag": true},
		"obj":   `{"topicName":"T","readQueueNums":"4"}`,
	}
	if args.String("s") != "x" || args.Int("n") != 42 || args.Int64("ns") != 7 || !args.Bool("b") {
		t.Fatalf("scalar getters: %q %d %d %v", args.String("s"), args.Int("n"), args.Int64("ns"), args.Bool("b"))
	}
	if got := args.Strings("list"); strings.Join(got, "|") != "a|b" {
		t.Fatalf("Strings(list) = %v", got)
	}
	if got := args.Strings("csv"); strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("Strings(csv) = %v", got)
	}
	if got := args.StringMap("props"); got["k"] != "1.5" || got["flag"] != "true" {
		t.Fatalf("StringMap = %v", got)
	}
	if args.BoolPtr("missing") != nil || args.Int64Or("missing", 9) != 9 {
		t.Fatalf("absent defaults")
	}
	var cfg mqadmin.TopicConfig
	if err := args.Decode("obj", &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.TopicName != "T" || cfg.ReadQueueNums != 4 {
		t.Fatalf("decoded %#v", cfg)
	}
}

func TestInputSchema(t *testing.T) {
	tool, _ := Default().Lookup("createAcl")
	schema := tool.InputSchema()
	props := schema["properties"].(map[string]any)
	for _, key := range []string{ArgNameServerAddressList, ArgAccessKey, ArgSecretKey, "subject", "resources"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("schema missing %s", key)
		}
	}
	required := schema["required"].([]string)
	if strings.Join(required, ",") != "brokerAddr,subject,resources,decision" {
		t.Fatalf("required = %v", required)
	}
}

type memorySink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memorySink) Record(_ context.Context, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memorySink) Close() error { return nil }

type countingObserver struct {
	mu    sync.Mutex
	calls map[audit.Result]int
}

func (o *countingObserver) ObserveToolCall(_ string, r audit.Result, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[audit.Result]int{}
	}
	o.calls[r]++
}

func newTestInvoker(gate policy.Gate, sink audit.Sink, obs Observer) *Invoker {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	d := dispatch.New(mqadmin.Opener(), dispatch.WithLogger[*mqadmin.Admin](logger))
	return NewInvoker(d,
		WithGate(gate),
		WithAuditSink(sink),
		WithObserver(obs),
		WithPrincipal("tester"),
		WithLogger(logger),
	)
}

func TestInvokerReadOnlyRejection(t *testing.T) {
	sink := &memorySink{}
	inv := newTestInvoker(policy.Gate{Enabled: true}, sink, nil)

	_, err := inv.Invoke(context.Background(), Call{Tool: "createUser", Transport: "test", Args: Args{}})
	var rej *policy.RejectError
	if !errors.As(err, &rej) || rej.Status != 405 || rej.Message != policy.ReadOnlyMessage {
		t.Fatalf("expected 405 rejection, got %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Result != audit.ResultRejected || sink.events[0].Principal != "tester" {
		t.Fatalf("audit events: %#v", sink.events)
	}

	_, err = inv.Invoke(context.Background(), Call{Tool: "getUser", GateIdentifier: "api/acl/getUser", Args: Args{}})
	if err != nil {
		t.Fatalf("getUser should pass the gate: %v", err)
	}
}

func TestInvokerChecksConnectionBeforeArguments(t *testing.T) {
	inv := newTestInvoker(policy.Gate{}, nil, nil)
	resp, err := inv.Invoke(context.Background(), Call{Tool: "createUser", Args: Args{"brokerAddr": "b", "username": "u"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.ErrorMessage != "nameserverAddressList不能为空" {
		t.Fatalf("resp = %#v", resp)
	}
}

func TestInvokerGatesIdentifierBeforeLookup(t *testing.T) {
	sink := &memorySink{}
	inv := newTestInvoker(policy.Gate{Enabled: true}, sink, nil)

	_, err := inv.Invoke(context.Background(), Call{Tool: "topic/createUser", GateIdentifier: "/api/topic/createUser"})
	var rej *policy.RejectError
	if !errors.As(err, &rej) || rej.Message != policy.ReadOnlyMessage {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Result != audit.ResultRejected {
		t.Fatalf("audit events: %#v", sink.events)
	}

	_, err = inv.Invoke(context.Background(), Call{Tool: "topic/getUser", GateIdentifier: "/api/topic/getUser"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("read path with no tool: got %v", err)
	}
}

func TestInvokerUnknownTool(t *testing.T) {
	inv := newTestInvoker(policy.Gate{}, nil, nil)
	_, err := inv.Invoke(context.Background(), Call{Tool: "noSuchTool"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("got %v", err)
	}
}

func TestInvokerValidationErrorsAreEnveloped(t *testing.T) {
	sink := &memorySink{}
	obs := &countingObserver{}
	inv := newTestInvoker(policy.Gate{}, sink, obs)

	resp, err := inv.Invoke(context.Background(), Call{Tool: "deleteUser", Args: Args{
		"brokerAddr":            "127.0.0.1:1",
		"nameserverAddressList": []any{"127.0.0.1:9876"},
	}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.OK() || resp.ErrorMessage != "username is required" {
		t.Fatalf("resp = %#v", resp)
	}
	if len(sink.events) != 1 || sink.events[0].Result != audit.ResultError {
		t.Fatalf("write tool failure should be audited: %#v", sink.events)
	}

	resp, err = inv.Invoke(context.Background(), Call{Tool: "getClusterInfo", Args: Args{}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.OK() || resp.ErrorMessage != "nameserverAddressList不能为空" {
		t.Fatalf("resp = %#v", resp)
	}
	if len(sink.events) != 1 {
		t.Fatalf("read tools must not be audited")
	}
	if obs.calls[audit.ResultError] != 2 {
		t.Fatalf("observer calls = %v", obs.calls)
	}
}

func TestInvokerDispatchesToNameServer(t *testing.T) {
	const brokerAddr = "10.0.0.1:10911"
	ns := remotingtest.NewServer(remotingtest.Router{
		remoting.GetBrokerClusterInfo: func(*remoting.Command) *remoting.Command {
			return remotingtest.OK([]byte(fmt.Sprintf(
				`{"brokerAddrTable":{"broker-a":{"cluster":"c1","brokerName":"broker-a","brokerAddrs":{0:%q}}},"clusterAddrTable":{"c1":["broker-a"]}}`,
				brokerAddr)))
		},
		remoting.PutKVConfig: func(*remoting.Command) *remoting.Command {
			return remotingtest.OK(nil)
		},
	}.Handle)
	defer ns.Close()

	sink := &memorySink{}
	inv := newTestInvoker(policy.Gate{}, sink, nil)
	ctx := context.Background()

	resp, err := inv.Invoke(ctx, Call{Tool: "getClusterInfo", Args: Args{ArgNameServerAddressList: []any{ns.Addr}}})
	if err != nil || !resp.OK() {
		t.Fatalf("getClusterInfo: %v %#v", err, resp)
	}
	info, ok := resp.Data.(*mqadmin.ClusterInfo)
	if !ok || info.BrokerAddrTable["broker-a"].BrokerAddrs["0"] != brokerAddr {
		t.Fatalf("data = %#v", resp.Data)
	}

	resp, err = inv.Invoke(ctx, Call{Tool: "putKVConfig", RequestID: "r-1", Args: Args{
		ArgNameServerAddressList: []any{ns.Addr},
		"namespace":              "ns",
		"key":                    "k",
		"value":                  "v",
	}})
	if err != nil || !resp.OK() || resp.Data != "success" {
		t.Fatalf("putKVConfig: %v %#v", err, resp)
	}
	if len(sink.events) != 1 || sink.events[0].RequestID != "r-1" || sink.events[0].Result != audit.ResultSuccess {
		t.Fatalf("audit events: %#v", sink.events)
	}
}
