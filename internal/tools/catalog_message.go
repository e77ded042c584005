package tools

import (
	"context"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

func messageTools() []Tool {
	g := policy.GroupMessage
	pMsgID := req("msgId", TypeString, "Offset message id or producer unique key")
	pMessageJSON := req("messageJson", TypeString, "Message as returned by viewMessage or queryMessageByKey")
	return []Tool{
		{
			Name: "consumeMessageDirectly", Group: g, Write: true,
			Description: "Ask a consumer client to consume a message immediately",
			Params: []Param{
				pConsumerGroup,
				opt("topic", TypeString, ""),
				req("clientId", TypeString, ""),
				pMsgID,
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ConsumeMessageDirectly(ctx, args.String("consumerGroup"), args.String("topic"),
					args.String("clientId"), args.String("msgId"))
			},
		},
		{
			Name: "viewMessage", Group: g,
			Description: "Get a message by id",
			Params:      []Param{opt("topic", TypeString, "Needed when msgId is a unique key"), pMsgID},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.ViewMessage(ctx, args.String("topic"), args.String("msgId"))
			},
		},
		{
			Name: "cleanExpiredMessages", Group: g, Write: true,
			Description: "Clean expired consume queues on a broker",
			Params:      []Param{pBrokerAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return verdict(a.CleanExpiredMessages(ctx, args.String("brokerAddr")))
			},
		},
		{
			Name: "queryMessageByKey", Group: g,
			Description: "Search messages by key in a time range",
			Params: []Param{
				pTopic,
				req("key", TypeString, "Message key"),
				opt("maxNum", TypeInteger, "Maximum results (default 32)"),
				opt("begin", TypeInteger, "Epoch milliseconds"),
				opt("end", TypeInteger, "Epoch milliseconds; blank means now"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.QueryMessageByKey(ctx, args.String("topic"), args.String("key"), args.Int("maxNum"),
					args.Int64("begin"), args.Int64("end"))
			},
		},
		{
			Name: "queryMessageById", Group: g,
			Description: "Get a message by offset id or unique key",
			Params:      []Param{opt("clusterName", TypeString, ""), pTopic, pMsgID},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.QueryMessageByID(ctx, args.String("clusterName"), args.String("topic"), args.String("msgId"))
			},
		},
		{
			Name: "resumeCheckHalfMessage", Group: g, Write: true,
			Description: "Make the broker re-check a prepared transactional message",
			Params:      []Param{pTopic, pMsgID},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return verdict(a.ResumeCheckHalfMessage(ctx, args.String("topic"), args.String("msgId")))
			},
		},
		{
			Name: "messageTrackDetail", Group: g,
			Description: "Report for every consumer group whether a message was consumed",
			Params:      []Param{pMessageJSON},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				var msg mqadmin.MessageExt
				if err := args.JSON("messageJson", &msg); err != nil {
					return nil, err
				}
				return a.MessageTrackDetail(ctx, msg)
			},
		},
		{
			Name: "messageTrackDetailConcurrent", Group: g,
			Description: "Like messageTrackDetail, checking groups in parallel",
			Params:      []Param{pMessageJSON},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				var msg mqadmin.MessageExt
				if err := args.JSON("messageJson", &msg); err != nil {
					return nil, err
				}
				return a.MessageTrackDetailConcurrent(ctx, msg)
			},
		},
	}
}
