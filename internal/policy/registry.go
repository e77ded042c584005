// Package policy classifies admin operations as reads or writes and enforces
// the process-wide read-only mode.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Group is a resource group of admin operations.
type Group string

const (
	GroupAcl          Group = "acl"
	GroupBroker       Group = "broker"
	GroupCluster      Group = "cluster"
	GroupConsumeQueue Group = "consumeQueue"
	GroupConsumer     Group = "consumer"
	GroupController   Group = "controller"
	GroupMessage      Group = "message"
	GroupNameserver   Group = "nameserver"
	GroupProducer     Group = "producer"
	GroupTopic        Group = "topic"
)

// Groups lists every resource group in display order.
func Groups() []Group {
	return []Group{
		GroupAcl, GroupBroker, GroupCluster, GroupConsumeQueue, GroupConsumer,
		GroupController, GroupMessage, GroupNameserver, GroupProducer, GroupTopic,
	}
}

func ParseGroup(raw string) (Group, error) {
	v := strings.TrimSpace(raw)
	for _, g := range Groups() {
		if strings.EqualFold(v, string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown resource group %q", raw)
}

var writeOperations = map[Group][]string{
	GroupAcl: {
		"createAndUpdatePlainAccessConfig",
		"deletePlainAccessConfig",
		"updateGlobalWhiteAddrConfig",
		"updateGlobalWhiteAddrConfigWithAcl",
		"createUser",
		"updateUser",
		"deleteUser",
		"createAcl",
		"updateAcl",
		"deleteAcl",
	},
	GroupBroker: {
		"updateBrokerConfig",
		"addBrokerToContainer",
		"removeBrokerFromContainer",
		"resetMasterFlushOffset",
		"setCommitLogReadAheadMode",
		"updateColdDataFlowCtrGroupConfig",
		"removeColdDataFlowCtrGroupConfig",
		"deleteExpiredCommitLog",
		"deleteExpiredCommitLogByAddr",
	},
	GroupCluster: {},
	GroupConsumeQueue: {
		"exportRocksDBConfigToJson",
		"cleanExpiredConsumerQueue",
		"cleanExpiredConsumerQueueByAddr",
	},
	GroupConsumer: {
		"createAndUpdateSubscriptionGroupConfig",
		"createAndUpdateSubscriptionGroupConfigList",
		"resetConsumerOffset",
		"deleteSubscriptionGroup",
		"exportPopRecords",
		"resetOffsetByTimestampOld",
		"setMessageRequestMode",
		"resetOffsetByQueueId",
		"updateAndGetGroupReadForbidden",
		"resetOffsetNew",
		"cloneGroupOffset",
		"updateConsumeOffset",
	},
	GroupController: {
		"updateControllerConfig",
		"electMaster",
		"cleanControllerBrokerData",
	},
	GroupMessage: {
		"consumeMessageDirectly",
		"cleanExpiredMessages",
		"resumeCheckHalfMessage",
	},
	GroupNameserver: {
		"putKVConfig",
		"createAndUpdateKvConfig",
		"deleteKvConfig",
		"createOrUpdateOrderConf",
		"updateNameServerConfig",
	},
	GroupProducer: {},
	GroupTopic: {
		"createAndUpdateTopicConfig",
		"deleteTopicInBroker",
		"createAndUpdateTopicConfigList",
		"cleanUnusedTopic",
		"createStaticTopic",
		"deleteTopic",
		"deleteTopicInNameServer",
		"deleteTopicInNameServerWithCluster",
	},
}

// WriteOperations returns a copy of the mutating operation names of g.
func WriteOperations(g Group) []string {
	ops := writeOperations[g]
	out := make([]string, len(ops))
	copy(out, ops)
	return out
}

var globalWriteSet = sync.OnceValue(func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, ops := range writeOperations {
		for _, op := range ops {
			set[strings.ToLower(op)] = struct{}{}
		}
	}
	return set
})

// IsWrite reports whether name is a registered write operation, ignoring case.
func IsWrite(name string) bool {
	_, ok := globalWriteSet()[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

var sortedWriteList = sync.OnceValue(func() []string {
	set := globalWriteSet()
	out := make([]string, 0, len(set))
	for op := range set {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
})

// AllWriteOperations returns the lower-cased global write set, sorted.
func AllWriteOperations() []string {
	list := sortedWriteList()
	out := make([]string, len(list))
	copy(out, list)
	return out
}
