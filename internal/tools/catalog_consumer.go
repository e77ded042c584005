package tools

import (
	"context"
	"errors"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

var (
	pConsumerGroup = req("consumerGroup", TypeString, "Consumer group name")
	pTimestamp     = req("timestamp", TypeInteger, "Epoch milliseconds")
)

func consumerTools() []Tool {
	g := policy.GroupConsumer
	return []Tool{
		{
			Name: "examineSubscriptionGroupConfig", Group: g,
			Description: "Get the subscription group config of a group on every broker that has it",
			Params:      []Param{req("group", TypeString, "Consumer group name")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineSubscriptionGroupConfig(ctx, args.String("group"))
			},
		},
		{
			Name: "getAllSubscriptionGroup", Group: g,
			Description: "List subscription group configs of every broker",
			Run: func(ctx context.Context, a *mqadmin.Admin, _ Args) (any, error) {
				return a.GetAllSubscriptionGroup(ctx)
			},
		},
		{
			Name: "examineConsumeStats", Group: g,
			Description: "Get consume progress of a group across all its topics",
			Params:      []Param{req("group", TypeString, "Consumer group name")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumeStats(ctx, args.String("group"))
			},
		},
		{
			Name: "getConsumeJstack", Group: g,
			Description: "Get running info and thread stacks of one consumer client",
			Params:      []Param{pConsumerGroup, req("clientId", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetConsumeJstack(ctx, args.String("consumerGroup"), args.String("clientId"))
			},
		},
		{
			Name: "createAndUpdateSubscriptionGroupConfig", Group: g, Write: true,
			Description: "Create or update a subscription group on a broker",
			Params:      []Param{pAddr, req("config", TypeObject, "Subscription group config; groupName is required")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				cfg := mqadmin.DefaultSubscriptionGroupConfig("")
				if err := args.Decode("config", &cfg); err != nil {
					return nil, err
				}
				if cfg.GroupName == "" {
					return nil, errors.New("config.groupName is required")
				}
				return a.CreateAndUpdateSubscriptionGroupConfig(ctx, args.String("addr"), cfg)
			},
		},
		{
			Name: "createAndUpdateSubscriptionGroupConfigList", Group: g, Write: true,
			Description: "Create or update several subscription groups on a broker",
			Params:      []Param{pBrokerAddr, req("configs", TypeArray, "Subscription group configs")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				var cfgs []mqadmin.SubscriptionGroupConfig
				if err := args.Decode("configs", &cfgs); err != nil {
					return nil, err
				}
				return a.CreateAndUpdateSubscriptionGroupConfigList(ctx, args.String("brokerAddr"), cfgs)
			},
		},
		{
			Name: "examineConsumeStatsByTopic", Group: g,
			Description: "Get consume progress of a group on one topic",
			Params:      []Param{pConsumerGroup, pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumeStatsByTopic(ctx, args.String("consumerGroup"), args.String("topic"))
			},
		},
		{
			Name: "examineConsumeStatsByCluster", Group: g,
			Description: "Get consume progress of a group on the brokers of one cluster",
			Params:      []Param{req("clusterName", TypeString, ""), pConsumerGroup, opt("topic", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumeStatsByCluster(ctx, args.String("clusterName"), args.String("consumerGroup"), args.String("topic"))
			},
		},
		{
			Name: "examineConsumeStatsWithTimeout", Group: g,
			Description: "Get consume progress of a group from one broker with a timeout",
			Params:      []Param{pBrokerAddr, pConsumerGroup, opt("topicName", TypeString, ""), pTimeout},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumeStatsWithTimeout(ctx, args.String("brokerAddr"), args.String("consumerGroup"),
					args.String("topicName"), args.Int64("timeoutMillis"))
			},
		},
		{
			Name: "examineConsumeStatsConcurrent", Group: g,
			Description: "Get consume progress of a group, querying brokers in parallel",
			Params:      []Param{pConsumerGroup, opt("topic", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumeStatsConcurrent(ctx, args.String("consumerGroup"), args.String("topic"))
			},
		},
		{
			Name: "examineConsumerConnectionInfo", Group: g,
			Description: "Get the online clients and subscriptions of a group",
			Params:      []Param{pConsumerGroup},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumerConnectionInfo(ctx, args.String("consumerGroup"))
			},
		},
		{
			Name: "examineConsumerConnectionInfoByBroker", Group: g,
			Description: "Get the clients of a group as seen by one broker",
			Params:      []Param{pConsumerGroup, pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumerConnectionInfoByBroker(ctx, args.String("consumerGroup"), args.String("brokerAddr"))
			},
		},
		{
			Name: "resetConsumerOffset", Group: g, Write: true,
			Description: "Reset a group's offsets on a topic to a timestamp, forcing the move",
			Params:      []Param{pConsumerGroup, pTopic, pTimestamp},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ResetConsumerOffset(ctx, args.String("consumerGroup"), args.String("topic"), args.Int64("timestamp"))
			},
		},
		{
			Name: "deleteSubscriptionGroup", Group: g, Write: true,
			Description: "Delete a subscription group from a broker",
			Params:      []Param{pBrokerAddr, pConsumerGroup},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteSubscriptionGroup(ctx, args.String("brokerAddr"), args.String("consumerGroup"))
			},
		},
		{
			Name: "examineConsumerConnectionInfoWithAddr", Group: g,
			Description: "Get the clients of a group together with the broker that reported them",
			Params:      []Param{pConsumerGroup},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineConsumerConnectionInfoWithAddr(ctx, args.String("consumerGroup"))
			},
		},
		{
			Name: "exportPopRecords", Group: g, Write: true,
			Description: "Make a broker export its pop consumption records",
			Params:      []Param{pBrokerAddr, opt("timeout", TypeInteger, "Timeout in milliseconds")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExportPopRecords(ctx, args.String("brokerAddr"), args.Int64("timeout"))
			},
		},
		{
			Name: "resetOffsetByTimestampOld", Group: g, Write: true,
			Description: "Roll back a group's offsets by timestamp through the broker offset store",
			Params:      []Param{pConsumerGroup, pTopic, pTimestamp, opt("force", TypeBoolean, "Also move offsets forward")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ResetOffsetByTimestampOld(ctx, args.String("consumerGroup"), args.String("topic"),
					args.Int64("timestamp"), args.Bool("force"))
			},
		},
		{
			Name: "queryTopicConsumeByWho", Group: g,
			Description: "List the consumer groups of a topic",
			Params:      []Param{pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.QueryTopicConsumeByWho(ctx, args.String("topic"))
			},
		},
		{
			Name: "queryTopicsByConsumer", Group: g,
			Description: "List the topics a group consumes",
			Params:      []Param{req("group", TypeString, "Consumer group name")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.QueryTopicsByConsumer(ctx, args.String("group"))
			},
		},
		{
			Name: "querySubscription", Group: g,
			Description: "Get a group's subscription expression for a topic",
			Params:      []Param{req("group", TypeString, "Consumer group name"), pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.QuerySubscription(ctx, args.String("group"), args.String("topic"))
			},
		},
		{
			Name: "queryConsumeTimeSpan", Group: g,
			Description: "Get the stored time span and consume position per queue",
			Params:      []Param{pTopic, req("group", TypeString, "Consumer group name")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.QueryConsumeTimeSpan(ctx, args.String("topic"), args.String("group"))
			},
		},
		{
			Name: "setMessageRequestMode", Group: g, Write: true,
			Description: "Switch a group between PULL and POP consumption on a topic",
			Params: []Param{
				pBrokerAddr,
				pTopic,
				pConsumerGroup,
				req("mode", TypeString, "PULL or POP"),
				opt("popWorkGroupSize", TypeInteger, "Pop share queue number"),
				pTimeout,
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.SetMessageRequestMode(ctx, args.String("brokerAddr"), args.String("topic"), args.String("consumerGroup"),
					args.String("mode"), args.Int("popWorkGroupSize"), args.Int64("timeoutMillis"))
			},
		},
		{
			Name: "resetOffsetByQueueId", Group: g, Write: true,
			Description: "Set a group's offset on a single queue",
			Params: []Param{
				pBrokerAddr,
				pConsumerGroup,
				req("topicName", TypeString, ""),
				req("queueId", TypeInteger, ""),
				req("resetOffset", TypeInteger, ""),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ResetOffsetByQueueID(ctx, args.String("brokerAddr"), args.String("consumerGroup"),
					args.String("topicName"), args.Int("queueId"), args.Int64("resetOffset"))
			},
		},
		{
			Name: "updateAndGetGroupReadForbidden", Group: g, Write: true,
			Description: "Set or read the read-forbidden flag of a group on a topic",
			Params: []Param{
				pBrokerAddr,
				req("groupName", TypeString, ""),
				req("topicName", TypeString, ""),
				opt("readable", TypeBoolean, "Omit to only read the flag"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateAndGetGroupReadForbidden(ctx, args.String("brokerAddr"), args.String("groupName"),
					args.String("topicName"), args.BoolPtr("readable"))
			},
		},
		{
			Name: "resetOffsetNew", Group: g, Write: true,
			Description: "Reset a group's offsets on a topic to a timestamp",
			Params:      []Param{pConsumerGroup, pTopic, pTimestamp},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ResetOffsetNew(ctx, args.String("consumerGroup"), args.String("topic"), args.Int64("timestamp"))
			},
		},
		{
			Name: "getConsumeStatus", Group: g,
			Description: "Get the offsets each client of a group holds on a topic",
			Params:      []Param{pTopic, req("group", TypeString, "Consumer group name"), opt("clientAddr", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetConsumeStatus(ctx, args.String("topic"), args.String("group"), args.String("clientAddr"))
			},
		},
		{
			Name: "cloneGroupOffset", Group: g, Write: true,
			Description: "Copy a group's offsets on a topic to another group",
			Params: []Param{
				req("srcGroup", TypeString, ""),
				req("destGroup", TypeString, ""),
				pTopic,
				opt("isOffline", TypeBoolean, ""),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.CloneGroupOffset(ctx, args.String("srcGroup"), args.String("destGroup"), args.String("topic"), args.Bool("isOffline"))
			},
		},
		{
			Name: "fetchConsumeStatsInBroker", Group: g,
			Description: "Get the consume stats of every group on a broker",
			Params:      []Param{pBrokerAddr, opt("isOrder", TypeBoolean, "Only orderly groups"), pTimeout},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.FetchConsumeStatsInBroker(ctx, args.String("brokerAddr"), args.Bool("isOrder"), args.Int64("timeoutMillis"))
			},
		},
		{
			Name: "getUserSubscriptionGroup", Group: g,
			Description: "List the non-system subscription groups of a broker",
			Params:      []Param{pBrokerAddr, pTimeout},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetUserSubscriptionGroup(ctx, args.String("brokerAddr"), args.Int64("timeoutMillis"))
			},
		},
		{
			Name: "updateConsumeOffset", Group: g, Write: true,
			Description: "Set a group's offset on the queue described by mqJson",
			Params: []Param{
				pBrokerAddr,
				req("consumeGroup", TypeString, "Consumer group name"),
				req("mqJson", TypeString, `Message queue, for example {"topic":"T","brokerName":"broker-a","queueId":0}`),
				req("offset", TypeInteger, ""),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateConsumeOffset(ctx, args.String("brokerAddr"), args.String("consumeGroup"),
					args.String("mqJson"), args.Int64("offset"))
			},
		},
	}
}
