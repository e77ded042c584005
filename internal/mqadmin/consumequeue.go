package mqadmin

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

func (a *Admin) CheckRocksdbCqWriteProgress(ctx context.Context, brokerAddr, topic string, checkStoreTime int64) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.CheckRocksDBCQWriteProgress, map[string]string{
		"topic":          topic,
		"checkStoreTime": strconv.FormatInt(checkStoreTime, 10),
	}, nil)
}

func (a *Admin) QueryConsumeQueue(ctx context.Context, brokerAddr, topic string, queueID int, index int64, count int, group string) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.QueryConsumeQueue, map[string]string{
		"topic":         topic,
		"queueId":       strconv.Itoa(queueID),
		"index":         strconv.FormatInt(index, 10),
		"count":         strconv.Itoa(count),
		"consumerGroup": group,
	}, nil)
}

// ExportRocksDBConfigToJSON asks the broker to dump the named RocksDB backed
// config tables (topics, subscriptionGroups, consumerOffsets) to JSON files.
func (a *Admin) ExportRocksDBConfigToJSON(ctx context.Context, brokerAddr string, configTypes []string) (string, error) {
	_, err := a.invoke(ctx, brokerAddr, remoting.ExportRocksDBConfigToJSON, map[string]string{
		"configType": joinNonEmpty(configTypes, ";"),
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) CleanExpiredConsumerQueue(ctx context.Context, cluster string) (bool, error) {
	addrs, err := a.masterAddrs(ctx, strings.TrimSpace(cluster))
	if err != nil {
		return false, err
	}
	return a.eachAddr(ctx, addrs, remoting.CleanExpiredConsumeQueue, nil)
}

func (a *Admin) CleanExpiredConsumerQueueByAddr(ctx context.Context, addr string) (bool, error) {
	return a.eachAddr(ctx, []string{addr}, remoting.CleanExpiredConsumeQueue, nil)
}
