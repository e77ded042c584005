package tools

import (
	"context"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

// verdict renders a boolean admin outcome the way mutations report it.
func verdict(ok bool, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if ok {
		return "success", nil
	}
	return "fail", nil
}

func brokerTools() []Tool {
	g := policy.GroupBroker
	return []Tool{
		{
			Name: "getBrokerRuntimeStats", Group: g,
			Description: "Get the runtime statistics table of a broker",
			Params:      []Param{pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetBrokerRuntimeStats(ctx, args.String("brokerAddr"))
			},
		},
		{
			Name: "getBrokerConfig", Group: g,
			Description: "Get the configuration properties of a broker",
			Params:      []Param{pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetBrokerConfig(ctx, args.String("brokerAddr"))
			},
		},
		{
			Name: "updateBrokerConfig", Group: g, Write: true,
			Description: "Set one broker configuration property and verify it took effect",
			Params: []Param{
				pBrokerAddr,
				req("key", TypeString, "Property name"),
				req("value", TypeString, "Property value"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateBrokerConfig(ctx, args.String("brokerAddr"), args.String("key"), args.String("value"))
			},
		},
		{
			Name: "getAllBrokerAddresses", Group: g,
			Description: "List the addresses of every broker in the cluster",
			Run: func(ctx context.Context, a *mqadmin.Admin, _ Args) (any, error) {
				return a.GetAllBrokerAddresses(ctx)
			},
		},
		{
			Name: "addBrokerToContainer", Group: g, Write: true,
			Description: "Start a broker inside a broker container",
			Params: []Param{
				req("brokerContainerAddr", TypeString, "Broker container address"),
				req("brokerConfig", TypeString, "Broker configuration as properties text"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.AddBrokerToContainer(ctx, args.String("brokerContainerAddr"), args.String("brokerConfig"))
			},
		},
		{
			Name: "removeBrokerFromContainer", Group: g, Write: true,
			Description: "Stop and remove a broker from a broker container",
			Params: []Param{
				req("brokerContainerAddr", TypeString, "Broker container address"),
				req("clusterName", TypeString, ""),
				req("brokerName", TypeString, ""),
				req("brokerId", TypeInteger, "0 for the master"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.RemoveBrokerFromContainer(ctx, args.String("brokerContainerAddr"), args.String("clusterName"),
					args.String("brokerName"), args.Int64("brokerId"))
			},
		},
		{
			Name: "resetMasterFlushOffset", Group: g, Write: true,
			Description: "Reset the master flush offset of a broker",
			Params:      []Param{pBrokerAddr, req("masterFlushOffset", TypeInteger, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ResetMasterFlushOffset(ctx, args.String("brokerAddr"), args.Int64("masterFlushOffset"))
			},
		},
		{
			Name: "getBrokerHAStatus", Group: g,
			Description: "Get the HA replication status of a broker",
			Params:      []Param{pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetBrokerHAStatus(ctx, args.String("brokerAddr"))
			},
		},
		{
			Name: "getBrokerEpochCache", Group: g,
			Description: "Get the epoch cache of a controller-mode broker",
			Params:      []Param{pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetBrokerEpochCache(ctx, args.String("brokerAddr"))
			},
		},
		{
			Name: "setCommitLogReadAheadMode", Group: g, Write: true,
			Description: "Set the commit log read-ahead mode (0 normal, 1 random)",
			Params:      []Param{pBrokerAddr, req("mode", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.SetCommitLogReadAheadMode(ctx, args.String("brokerAddr"), args.String("mode"))
			},
		},
		{
			Name: "getColdDataFlowCtrInfo", Group: g,
			Description: "Get cold data flow control information",
			Params:      []Param{pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetColdDataFlowCtrInfo(ctx, args.String("brokerAddr"))
			},
		},
		{
			Name: "updateColdDataFlowCtrGroupConfig", Group: g, Write: true,
			Description: "Set cold data read thresholds per consumer group",
			Params:      []Param{pBrokerAddr, req("properties", TypeObject, "Consumer group to threshold")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateColdDataFlowCtrGroupConfig(ctx, args.String("brokerAddr"), args.StringMap("properties"))
			},
		},
		{
			Name: "removeColdDataFlowCtrGroupConfig", Group: g, Write: true,
			Description: "Remove the cold data threshold of a consumer group",
			Params:      []Param{pBrokerAddr, req("consumerGroup", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.RemoveColdDataFlowCtrGroupConfig(ctx, args.String("brokerAddr"), args.String("consumerGroup"))
			},
		},
		{
			Name: "viewBrokerStatsData", Group: g,
			Description: "View one broker statistics item",
			Params: []Param{
				pBrokerAddr,
				req("statsName", TypeString, "For example TOPIC_PUT_NUMS"),
				req("statsKey", TypeString, "For example a topic name"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ViewBrokerStatsData(ctx, args.String("brokerAddr"), args.String("statsName"), args.String("statsKey"))
			},
		},
		{
			Name: "deleteExpiredCommitLog", Group: g, Write: true,
			Description: "Delete expired commit log files on every master of a cluster",
			Params:      []Param{opt("cluster", TypeString, "Cluster name; blank means every cluster")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return verdict(a.DeleteExpiredCommitLog(ctx, args.String("cluster")))
			},
		},
		{
			Name: "deleteExpiredCommitLogByAddr", Group: g, Write: true,
			Description: "Delete expired commit log files on one broker",
			Params:      []Param{pAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return verdict(a.DeleteExpiredCommitLogByAddr(ctx, args.String("addr")))
			},
		},
		{
			Name: "searchOffset", Group: g,
			Description: "Find the queue offset of the first message stored at or after a timestamp",
			Params: []Param{
				pBrokerAddr,
				req("topicName", TypeString, ""),
				req("queueId", TypeInteger, ""),
				req("timestamp", TypeInteger, "Epoch milliseconds"),
				pTimeout,
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.SearchOffset(ctx, args.String("brokerAddr"), args.String("topicName"), args.Int("queueId"),
					args.Int64("timestamp"), args.Int64("timeoutMillis"))
			},
		},
	}
}

func clusterTools() []Tool {
	return []Tool{
		{
			Name: "getClusterInfo", Group: policy.GroupCluster,
			Description: "Get the broker and cluster address tables",
			Run: func(ctx context.Context, a *mqadmin.Admin, _ Args) (any, error) {
				return a.ClusterInfo(ctx)
			},
		},
	}
}

func consumeQueueTools() []Tool {
	g := policy.GroupConsumeQueue
	return []Tool{
		{
			Name: "checkRocksdbCqWriteProgress", Group: g,
			Description: "Compare RocksDB consume queue progress with the file based one",
			Params: []Param{
				pBrokerAddr,
				opt("topic", TypeString, "Blank checks every topic"),
				opt("checkStoreTime", TypeInteger, "Epoch milliseconds"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.CheckRocksdbCqWriteProgress(ctx, args.String("brokerAddr"), args.String("topic"), args.Int64("checkStoreTime"))
			},
		},
		{
			Name: "queryConsumeQueue", Group: g,
			Description: "Read raw consume queue entries",
			Params: []Param{
				pBrokerAddr,
				pTopic,
				req("queueId", TypeInteger, ""),
				req("index", TypeInteger, "Start index"),
				req("count", TypeInteger, "Number of entries"),
				opt("consumerGroup", TypeString, "Evaluates the group's filter against every entry"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.QueryConsumeQueue(ctx, args.String("brokerAddr"), args.String("topic"), args.Int("queueId"),
					args.Int64("index"), args.Int("count"), args.String("consumerGroup"))
			},
		},
		{
			Name: "exportRocksDBConfigToJson", Group: g, Write: true,
			Description: "Export RocksDB backed config tables to JSON files on the broker",
			Params:      []Param{pBrokerAddr, req("configTypes", TypeArray, "topics, subscriptionGroups, consumerOffsets")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExportRocksDBConfigToJSON(ctx, args.String("brokerAddr"), args.Strings("configTypes"))
			},
		},
		{
			Name: "cleanExpiredConsumerQueue", Group: g, Write: true,
			Description: "Clean expired consume queues on every master of a cluster",
			Params:      []Param{opt("cluster", TypeString, "Cluster name; blank means every cluster")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return verdict(a.CleanExpiredConsumerQueue(ctx, args.String("cluster")))
			},
		},
		{
			Name: "cleanExpiredConsumerQueueByAddr", Group: g, Write: true,
			Description: "Clean expired consume queues on one broker",
			Params:      []Param{pAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return verdict(a.CleanExpiredConsumerQueueByAddr(ctx, args.String("addr")))
			},
		},
	}
}
