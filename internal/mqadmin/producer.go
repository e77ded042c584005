package mqadmin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

// ExamineProducerConnectionInfo lists the live connections of a producer
// group, asked of a broker serving topic.
func (a *Admin) ExamineProducerConnectionInfo(ctx context.Context, group, topic string) (json.RawMessage, error) {
	route, err := a.TopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	addr := route.AnyAddr()
	if addr == "" {
		return nil, fmt.Errorf("topic %s: %w", topic, ErrNoBroker)
	}
	return a.invokeRaw(ctx, addr, remoting.GetProducerConnectionList, map[string]string{"producerGroup": group}, nil)
}

func (a *Admin) GetAllProducerInfo(ctx context.Context, brokerAddr string) (json.RawMessage, error) {
	return a.invokeRaw(ctx, brokerAddr, remoting.GetAllProducerInfo, nil, nil)
}
