package remoting

// Code is a remoting request or response code.
type Code int16

// Request codes understood by name servers, brokers and controllers.
const (
	QueryMessage                 Code = 12
	UpdateConsumerOffset         Code = 15
	UpdateAndCreateTopic         Code = 17
	UpdateAndCreateTopicList     Code = 18
	GetAllTopicConfig            Code = 21
	UpdateBrokerConfig           Code = 25
	GetBrokerConfig              Code = 26
	GetBrokerRuntimeInfo         Code = 28
	SearchOffsetByTimestamp      Code = 29
	ViewMessageByID              Code = 33
	UpdateAndCreateACLConfig     Code = 50
	DeleteACLConfig              Code = 51
	GetBrokerClusterACLInfo      Code = 52
	UpdateGlobalWhiteAddrsConfig Code = 53
	PutKVConfig                  Code = 100
	GetKVConfig                  Code = 101
	DeleteKVConfig               Code = 102
	GetRouteInfoByTopic          Code = 105
	GetBrokerClusterInfo         Code = 106

	UpdateAndCreateSubscriptionGroup     Code = 200
	GetAllSubscriptionGroupConfig        Code = 201
	GetTopicStatsInfo                    Code = 202
	GetConsumerConnectionList            Code = 203
	GetProducerConnectionList            Code = 204
	DeleteSubscriptionGroup              Code = 207
	GetConsumeStats                      Code = 208
	DeleteTopicInBroker                  Code = 215
	DeleteTopicInNamesrv                 Code = 216
	GetKVListByNamespace                 Code = 219
	InvokeBrokerToResetOffset            Code = 222
	InvokeBrokerToGetConsumerStatus      Code = 223
	GetTopicsByCluster                   Code = 224
	UpdateAndCreateSubscriptionGroupList Code = 225
	QueryTopicConsumeByWho               Code = 300
	QueryConsumeTimeSpan                 Code = 303
	CleanExpiredConsumeQueue             Code = 306
	GetConsumerRunningInfo               Code = 307
	ConsumeMessageDirectly               Code = 309
	CloneGroupOffset                     Code = 314
	ViewBrokerStatsData                  Code = 315
	CleanUnusedTopic                     Code = 316
	GetBrokerConsumeStats                Code = 317
	UpdateNamesrvConfig                  Code = 318
	GetNamesrvConfig                     Code = 319
	QueryConsumeQueue                    Code = 321
	ResumeCheckHalfMessage               Code = 323
	GetAllProducerInfo                   Code = 328
	DeleteExpiredCommitLog               Code = 329
	QueryTopicsByConsumer                Code = 343
	QuerySubscriptionByConsumer          Code = 345
	GetTopicConfig                       Code = 351
	GetSubscriptionGroupConfig           Code = 352
	UpdateAndGetGroupForbidden           Code = 353
	CheckRocksDBCQWriteProgress          Code = 354
	ExportRocksDBConfigToJSON            Code = 355
	SetMessageRequestMode                Code = 401
	UpdateAndCreateStaticTopic           Code = 513

	AddBroker              Code = 902
	RemoveBroker           Code = 903
	GetBrokerHAStatus      Code = 907
	ResetMasterFlushOffset Code = 908

	ControllerElectMaster      Code = 1002
	ControllerGetMetadataInfo  Code = 1005
	ControllerGetSyncStateData Code = 1006
	GetBrokerEpochCache        Code = 1007
	UpdateControllerConfig     Code = 1009
	GetControllerConfig        Code = 1010
	CleanBrokerData            Code = 1011

	UpdateColdDataFlowCtrConfig Code = 2001
	RemoveColdDataFlowCtrConfig Code = 2002
	GetColdDataFlowCtrInfo      Code = 2003
	SetCommitLogReadMode        Code = 2004
	ExportPopRecord             Code = 2005

	AuthCreateUser Code = 3001
	AuthUpdateUser Code = 3002
	AuthDeleteUser Code = 3003
	AuthGetUser    Code = 3004
	AuthListUser   Code = 3005
	AuthCreateACL  Code = 3006
	AuthUpdateACL  Code = 3007
	AuthDeleteACL  Code = 3008
	AuthGetACL     Code = 3009
	AuthListACL    Code = 3010
)

// Response codes.
const (
	Success                   Code = 0
	SystemError               Code = 1
	SystemBusy                Code = 2
	RequestCodeNotSupported   Code = 3
	TopicNotExist             Code = 17
	QueryNotFound             Code = 22
	SubscriptionGroupNotExist Code = 26
	ConsumerNotOnline         Code = 206
)

// LanguageCode identifies the client implementation on the wire.
type LanguageCode int8

const (
	LanguageJava LanguageCode = 0
	LanguageGo   LanguageCode = 9
)

var languageNames = map[string]LanguageCode{
	"JAVA":   LanguageJava,
	"CPP":    1,
	"DOTNET": 2,
	"PYTHON": 3,
	"DELPHI": 4,
	"ERLANG": 5,
	"RUBY":   6,
	"OTHER":  7,
	"HTTP":   8,
	"GO":     LanguageGo,
	"PHP":    10,
	"OMS":    11,
	"RUST":   12,
}

func (l LanguageCode) String() string {
	for name, code := range languageNames {
		if code == l {
			return name
		}
	}
	return "OTHER"
}
