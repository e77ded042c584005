package tools

import (
	"context"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

func topicTools() []Tool {
	g := policy.GroupTopic
	return []Tool{
		{
			Name: "fetchAllTopicList", Group: g,
			Description: "List every topic known to the name servers",
			Run: func(ctx context.Context, a *mqadmin.Admin, _ Args) (any, error) {
				return a.FetchAllTopicList(ctx)
			},
		},
		{
			Name: "fetchPublishMessageQueues", Group: g,
			Description: "List the writable queues of a topic",
			Params:      []Param{pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.FetchPublishMessageQueues(ctx, args.String("topic"))
			},
		},
		{
			Name: "examineTopicStats", Group: g,
			Description: "Get min, max and last update time per queue of a topic",
			Params:      []Param{pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineTopicStats(ctx, args.String("topic"))
			},
		},
		{
			Name: "examineTopicRouteInfo", Group: g,
			Description: "Get the route (brokers and queues) of a topic",
			Params:      []Param{pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineTopicRouteInfo(ctx, args.String("topic"))
			},
		},
		{
			Name: "examineTopicConfig", Group: g,
			Description: "Get the config of a topic on one broker",
			Params:      []Param{pBrokerAddr, pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineTopicConfig(ctx, args.String("brokerAddr"), args.String("topic"))
			},
		},
		{
			Name: "createAndUpdateTopicConfig", Group: g, Write: true,
			Description: "Create or update a topic on a broker",
			Params:      []Param{pBrokerAddr, pTopic, opt("queueNum", TypeInteger, "Read and write queue number (default 8)")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.CreateAndUpdateTopicConfig(ctx, args.String("brokerAddr"), args.String("topic"), args.Int("queueNum"))
			},
		},
		{
			Name: "deleteTopicInBroker", Group: g, Write: true,
			Description: "Delete a topic from a broker",
			Params:      []Param{pBrokerAddr, pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteTopicInBroker(ctx, args.String("brokerAddr"), args.String("topic"))
			},
		},
		{
			Name: "createAndUpdateTopicConfigList", Group: g, Write: true,
			Description: "Create or update several topics on a broker",
			Params:      []Param{pAddr, req("topicConfigList", TypeArray, "Topic configs")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				var cfgs []mqadmin.TopicConfig
				if err := args.Decode("topicConfigList", &cfgs); err != nil {
					return nil, err
				}
				return a.CreateAndUpdateTopicConfigList(ctx, args.String("addr"), cfgs)
			},
		},
		{
			Name: "fetchTopicsByCLuster", Group: g,
			Description: "List the topics served by a cluster",
			Params:      []Param{req("clusterName", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.FetchTopicsByCluster(ctx, args.String("clusterName"))
			},
		},
		{
			Name: "cleanUnusedTopic", Group: g, Write: true,
			Description: "Remove topics without route data from the masters of a cluster",
			Params:      []Param{opt("cluster", TypeString, "Cluster name; blank means every cluster")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return verdict(a.CleanUnusedTopic(ctx, args.String("cluster")))
			},
		},
		{
			Name: "createStaticTopic", Group: g, Write: true,
			Description: "Create or update a static topic with a queue mapping",
			Params: []Param{
				pAddr,
				opt("defaultTopic", TypeString, ""),
				req("topicConfig", TypeObject, "Topic config"),
				req("mappingDetail", TypeString, "Topic queue mapping detail as JSON"),
				opt("force", TypeBoolean, ""),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				var cfg mqadmin.TopicConfig
				if err := args.Decode("topicConfig", &cfg); err != nil {
					return nil, err
				}
				return a.CreateStaticTopic(ctx, args.String("addr"), args.String("defaultTopic"), cfg,
					args.String("mappingDetail"), args.Bool("force"))
			},
		},
		{
			Name: "deleteTopic", Group: g, Write: true,
			Description: "Delete a topic from the brokers and name servers of a cluster",
			Params:      []Param{req("topicName", TypeString, ""), req("clusterName", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteTopic(ctx, args.String("topicName"), args.String("clusterName"))
			},
		},
		{
			Name: "deleteTopicInNameServer", Group: g, Write: true,
			Description: "Delete a topic's route from name servers",
			Params:      []Param{opt("addrs", TypeArray, "Name servers; blank means all"), pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteTopicInNameServer(ctx, args.Strings("addrs"), args.String("topic"))
			},
		},
		{
			Name: "deleteTopicInNameServerWithCluster", Group: g, Write: true,
			Description: "Delete a topic's route for one cluster from name servers",
			Params: []Param{
				opt("addrs", TypeArray, "Name servers; blank means all"),
				req("clusterName", TypeString, ""),
				pTopic,
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteTopicInNameServerWithCluster(ctx, args.Strings("addrs"), args.String("clusterName"), args.String("topic"))
			},
		},
		{
			Name: "getTopicClusterList", Group: g,
			Description: "List the clusters serving a topic",
			Params:      []Param{pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetTopicClusterList(ctx, args.String("topic"))
			},
		},
		{
			Name: "getUserTopicConfig", Group: g,
			Description: "List the topic configs of a broker, excluding system topics",
			Params: []Param{
				pBrokerAddr,
				opt("specialTopic", TypeBoolean, "Include retry and DLQ topics"),
				pTimeout,
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetUserTopicConfig(ctx, args.String("brokerAddr"), args.Bool("specialTopic"), args.Int64("timeoutMillis"))
			},
		},
	}
}
