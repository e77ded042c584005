package mqadmin

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

func (a *Admin) UpdateControllerConfig(ctx context.Context, props map[string]string, controllers []string) (string, error) {
	if len(controllers) == 0 {
		return "", errors.New("at least one controller address is required")
	}
	body := encodeProperties(props)
	for _, addr := range controllers {
		if _, err := a.invoke(ctx, addr, remoting.UpdateControllerConfig, nil, body); err != nil {
			return "", err
		}
	}
	return resultString(true), nil
}

// GetControllerConfig returns the config of each controller keyed by address.
func (a *Admin) GetControllerConfig(ctx context.Context, controllers []string) (map[string]map[string]string, error) {
	if len(controllers) == 0 {
		return nil, errors.New("at least one controller address is required")
	}
	out := make(map[string]map[string]string, len(controllers))
	for _, addr := range controllers {
		resp, err := a.invoke(ctx, addr, remoting.GetControllerConfig, nil, nil)
		if err != nil {
			return nil, err
		}
		out[addr] = parseProperties(resp.Body)
	}
	return out, nil
}

// ElectMasterResult carries the controller's election response header and
// the broker member group it returned.
type ElectMasterResult struct {
	Header      map[string]string `json:"header"`
	MemberGroup json.RawMessage   `json:"brokerMemberGroup"`
}

func (a *Admin) ElectMaster(ctx context.Context, controllerAddr, cluster, brokerName string, brokerID int64) (*ElectMasterResult, error) {
	resp, err := a.invoke(ctx, controllerAddr, remoting.ControllerElectMaster, map[string]string{
		"clusterName":    cluster,
		"brokerName":     brokerName,
		"brokerId":       strconv.FormatInt(brokerID, 10),
		"designateElect": "true",
		"invokeTime":     strconv.FormatInt(time.Now().UnixMilli(), 10),
	}, nil)
	if err != nil {
		return nil, err
	}
	raw, err := rawBody(resp)
	if err != nil {
		return nil, err
	}
	header := resp.ExtFields
	if header == nil {
		header = map[string]string{}
	}
	return &ElectMasterResult{Header: header, MemberGroup: raw}, nil
}

// CleanControllerBrokerData removes broker replicas from the controller's
// metadata. ids is a ';' separated list of broker controller ids; blank means
// all of them.
func (a *Admin) CleanControllerBrokerData(ctx context.Context, controllerAddr, cluster, brokerName, ids string, cleanLiving bool) (string, error) {
	_, err := a.invoke(ctx, controllerAddr, remoting.CleanBrokerData, map[string]string{
		"clusterName":                cluster,
		"brokerName":                 brokerName,
		"brokerControllerIdsToClean": ids,
		"isCleanLivingBroker":        strconv.FormatBool(cleanLiving),
		"invokeTime":                 strconv.FormatInt(time.Now().UnixMilli(), 10),
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) GetInSyncStateData(ctx context.Context, controllerAddr string, brokers []string) (json.RawMessage, error) {
	if brokers == nil {
		brokers = []string{}
	}
	body, err := json.Marshal(brokers)
	if err != nil {
		return nil, err
	}
	return a.invokeRaw(ctx, controllerAddr, remoting.ControllerGetSyncStateData, nil, body)
}

// GetControllerMetaData returns the controller's metadata header: group,
// leader id and address, leadership and peers.
func (a *Admin) GetControllerMetaData(ctx context.Context, controllerAddr string) (map[string]string, error) {
	resp, err := a.invoke(ctx, controllerAddr, remoting.ControllerGetMetadataInfo, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.ExtFields == nil {
		return map[string]string{}, nil
	}
	return resp.ExtFields, nil
}
