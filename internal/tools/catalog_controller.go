package tools

import (
	"context"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

func controllerTools() []Tool {
	g := policy.GroupController
	return []Tool{
		{
			Name: "updateControllerConfig", Group: g, Write: true,
			Description: "Update configuration properties of controllers",
			Params: []Param{
				req("properties", TypeObject, "Properties to set"),
				req("controllers", TypeArray, "Controller addresses"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateControllerConfig(ctx, args.StringMap("properties"), args.Strings("controllers"))
			},
		},
		{
			Name: "getControllerConfig", Group: g,
			Description: "Get the configuration properties of controllers",
			Params:      []Param{req("controllers", TypeArray, "Controller addresses")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetControllerConfig(ctx, args.Strings("controllers"))
			},
		},
		{
			Name: "electMaster", Group: g, Write: true,
			Description: "Elect a broker replica as master of its broker set",
			Params: []Param{
				req("controllerAddr", TypeString, ""),
				req("clusterName", TypeString, ""),
				req("brokerName", TypeString, ""),
				req("brokerId", TypeInteger, "Replica to elect"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ElectMaster(ctx, args.String("controllerAddr"), args.String("clusterName"),
					args.String("brokerName"), args.Int64("brokerId"))
			},
		},
		{
			Name: "cleanControllerBrokerData", Group: g, Write: true,
			Description: "Remove broker replica metadata from the controller",
			Params: []Param{
				req("controllerAddr", TypeString, ""),
				req("clusterName", TypeString, ""),
				req("brokerName", TypeString, ""),
				opt("brokerControllerIdsToClean", TypeString, "Semicolon separated broker ids; blank cleans all"),
				opt("isCleanLivingBroker", TypeBoolean, ""),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.CleanControllerBrokerData(ctx, args.String("controllerAddr"), args.String("clusterName"),
					args.String("brokerName"), args.String("brokerControllerIdsToClean"), args.Bool("isCleanLivingBroker"))
			},
		},
		{
			Name: "getInSyncStateData", Group: g,
			Description: "Get the in-sync replica sets of broker sets",
			Params: []Param{
				req("controllerAddress", TypeString, ""),
				req("brokers", TypeArray, "Broker names"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetInSyncStateData(ctx, args.String("controllerAddress"), args.Strings("brokers"))
			},
		},
		{
			Name: "getControllerMetaData", Group: g,
			Description: "Get the controller group's leader and peers",
			Params:      []Param{req("controllerAddr", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetControllerMetaData(ctx, args.String("controllerAddr"))
			},
		},
	}
}

func producerTools() []Tool {
	g := policy.GroupProducer
	return []Tool{
		{
			Name: "examineProducerConnectionInfo", Group: g,
			Description: "Get the online clients of a producer group on a topic",
			Params:      []Param{req("producerGroup", TypeString, ""), pTopic},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ExamineProducerConnectionInfo(ctx, args.String("producerGroup"), args.String("topic"))
			},
		},
		{
			Name: "getAllProducerInfo", Group: g,
			Description: "List every producer connected to a broker",
			Params:      []Param{pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetAllProducerInfo(ctx, args.String("brokerAddr"))
			},
		},
	}
}

func nameserverTools() []Tool {
	g := policy.GroupNameserver
	kv := []Param{
		req("namespace", TypeString, ""),
		req("key", TypeString, ""),
		req("value", TypeString, ""),
	}
	putKV := func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
		return a.PutKVConfig(ctx, args.String("namespace"), args.String("key"), args.String("value"))
	}
	return []Tool{
		{
			Name: "getNameServerAddressList", Group: g,
			Description: "List the name server addresses of this connection",
			Run: func(_ context.Context, a *mqadmin.Admin, _ Args) (any, error) {
				return a.GetNameServerAddressList(), nil
			},
		},
		{
			Name: "putKVConfig", Group: g, Write: true,
			Description: "Put a KV config entry on every name server",
			Params:      kv,
			Run:         putKV,
		},
		{
			Name: "getKVConfig", Group: g,
			Description: "Get a KV config entry",
			Params:      []Param{req("namespace", TypeString, ""), req("key", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetKVConfig(ctx, args.String("namespace"), args.String("key"))
			},
		},
		{
			Name: "getKVListByNamespace", Group: g,
			Description: "List the KV config entries of a namespace",
			Params:      []Param{req("namespace", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetKVListByNamespace(ctx, args.String("namespace"))
			},
		},
		{
			Name: "createAndUpdateKvConfig", Group: g, Write: true,
			Description: "Create or update a KV config entry on every name server",
			Params:      kv,
			Run:         putKV,
		},
		{
			Name: "deleteKvConfig", Group: g, Write: true,
			Description: "Delete a KV config entry from every name server",
			Params:      []Param{req("namespace", TypeString, ""), req("key", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteKvConfig(ctx, args.String("namespace"), args.String("key"))
			},
		},
		{
			Name: "createOrUpdateOrderConf", Group: g, Write: true,
			Description: "Set the ordered topic config (brokerName:queueNum;...) of a topic",
			Params: []Param{
				req("key", TypeString, "Topic name"),
				req("value", TypeString, "For example broker-a:4;broker-b:4"),
				opt("isCluster", TypeBoolean, "Replace the whole value instead of merging broker entries"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.CreateOrUpdateOrderConf(ctx, args.String("key"), args.String("value"), args.Bool("isCluster"))
			},
		},
		{
			Name: "updateNameServerConfig", Group: g, Write: true,
			Description: "Update configuration properties of name servers",
			Params: []Param{
				req("properties", TypeObject, "Properties to set"),
				opt("nameServers", TypeArray, "Target name servers; blank means all"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateNameServerConfig(ctx, args.StringMap("properties"), args.Strings("nameServers"))
			},
		},
		{
			Name: "getNameServerConfig", Group: g,
			Description: "Get the configuration properties of name servers",
			Params:      []Param{opt("nameServers", TypeArray, "Target name servers; blank means all")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetNameServerConfig(ctx, args.Strings("nameServers"))
			},
		},
	}
}
