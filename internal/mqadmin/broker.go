package mqadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

// KVTable is a broker or name server key/value report.
type KVTable struct {
	Table map[string]string `json:"table"`
}

func (a *Admin) GetBrokerRuntimeStats(ctx context.Context, brokerAddr string) (*KVTable, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.GetBrokerRuntimeInfo, nil, nil)
	if err != nil {
		return nil, err
	}
	out := &KVTable{}
	if err := decodeBody(resp, out); err != nil {
		return nil, err
	}
	if out.Table == nil {
		out.Table = map[string]string{}
	}
	return out, nil
}

func (a *Admin) GetBrokerConfig(ctx context.Context, brokerAddr string) (map[string]string, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.GetBrokerConfig, nil, nil)
	if err != nil {
		return nil, err
	}
	return parseProperties(resp.Body), nil
}

// UpdateBrokerConfig sets one broker config key and reads it back. Brokers
// normalize some values, so the comparison ignores case.
func (a *Admin) UpdateBrokerConfig(ctx context.Context, brokerAddr, key, value string) (string, error) {
	body := encodeProperties(map[string]string{key: value})
	if _, err := a.invoke(ctx, brokerAddr, remoting.UpdateBrokerConfig, nil, body); err != nil {
		return "", err
	}
	cfg, err := a.GetBrokerConfig(ctx, brokerAddr)
	if err != nil {
		return "", fmt.Errorf("read back broker config: %w", err)
	}
	got, ok := cfg[key]
	return resultString(ok && strings.EqualFold(got, value)), nil
}

// GetAllBrokerAddresses lists every broker address known to the name servers.
func (a *Admin) GetAllBrokerAddresses(ctx context.Context) ([]string, error) {
	info, err := a.ClusterInfo(ctx)
	if err != nil {
		return nil, err
	}
	return info.AllAddrs(), nil
}

// AddBrokerToContainer starts a broker inside a broker container.
// brokerConfig is the broker's properties text.
func (a *Admin) AddBrokerToContainer(ctx context.Context, containerAddr, brokerConfig string) (string, error) {
	if _, err := a.invoke(ctx, containerAddr, remoting.AddBroker, map[string]string{"configPath": ""}, []byte(brokerConfig)); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) RemoveBrokerFromContainer(ctx context.Context, containerAddr, cluster, brokerName string, brokerID int64) (string, error) {
	_, err := a.invoke(ctx, containerAddr, remoting.RemoveBroker, map[string]string{
		"brokerClusterName": cluster,
		"brokerName":        brokerName,
		"brokerId":          strconv.FormatInt(brokerID, 10),
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) ResetMasterFlushOffset(ctx context.Context, brokerAddr string, offset int64) (string, error) {
	_, err := a.invoke(ctx, brokerAddr, remoting.ResetMasterFlushOffset, map[string]string{
		"masterFlushOffset": strconv.FormatInt(offset, 10),
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) GetBrokerHAStatus(ctx context.Context, brokerAddr string) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.GetBrokerHAStatus, nil, nil)
}

func (a *Admin) GetBrokerEpochCache(ctx context.Context, brokerAddr string) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.GetBrokerEpochCache, nil, nil)
}

// SetCommitLogReadAheadMode switches the commit log read-ahead mode and
// returns the broker's remark.
func (a *Admin) SetCommitLogReadAheadMode(ctx context.Context, brokerAddr, mode string) (string, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.SetCommitLogReadMode, map[string]string{"READ_AHEAD_MODE": mode}, nil)
	if err != nil {
		return "", err
	}
	if resp.Remark == "" {
		return resultString(true), nil
	}
	return resp.Remark, nil
}

func (a *Admin) GetColdDataFlowCtrInfo(ctx context.Context, brokerAddr string) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.GetColdDataFlowCtrInfo, nil, nil)
}

func (a *Admin) UpdateColdDataFlowCtrGroupConfig(ctx context.Context, brokerAddr string, props map[string]string) (string, error) {
	if _, err := a.invoke(ctx, brokerAddr, remoting.UpdateColdDataFlowCtrConfig, nil, encodeProperties(props)); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) RemoveColdDataFlowCtrGroupConfig(ctx context.Context, brokerAddr, group string) (string, error) {
	if _, err := a.invoke(ctx, brokerAddr, remoting.RemoveColdDataFlowCtrConfig, nil, []byte(group)); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) ViewBrokerStatsData(ctx context.Context, brokerAddr, statsName, statsKey string) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.ViewBrokerStatsData, map[string]string{
		"statsName": statsName,
		"statsKey":  statsKey,
	}, nil)
}

// DeleteExpiredCommitLog triggers commit log cleanup on every master of
// cluster, or of all clusters when cluster is blank.
func (a *Admin) DeleteExpiredCommitLog(ctx context.Context, cluster string) (bool, error) {
	addrs, err := a.masterAddrs(ctx, cluster)
	if err != nil {
		return false, err
	}
	return a.eachAddr(ctx, addrs, remoting.DeleteExpiredCommitLog, nil)
}

func (a *Admin) DeleteExpiredCommitLogByAddr(ctx context.Context, addr string) (bool, error) {
	return a.eachAddr(ctx, []string{addr}, remoting.DeleteExpiredCommitLog, nil)
}

// SearchOffset returns the offset of the first message in the queue stored
// at or after timestamp (epoch millis).
func (a *Admin) SearchOffset(ctx context.Context, brokerAddr, topic string, queueID int, timestamp, timeoutMillis int64) (int64, error) {
	ctx, cancel := a.timeoutCtx(ctx, timeoutMillis)
	defer cancel()
	resp, err := a.invoke(ctx, brokerAddr, remoting.SearchOffsetByTimestamp, map[string]string{
		"topic":     topic,
		"queueId":   strconv.Itoa(queueID),
		"timestamp": strconv.FormatInt(timestamp, 10),
	}, nil)
	if err != nil {
		return 0, err
	}
	off, err := strconv.ParseInt(resp.ExtFields["offset"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse offset from %s: %w", brokerAddr, err)
	}
	return off, nil
}
