package tools

import (
	"context"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

func req(name string, t ParamType, desc string) Param {
	return Param{Name: name, Type: t, Description: desc, Required: true}
}

func opt(name string, t ParamType, desc string) Param {
	return Param{Name: name, Type: t, Description: desc}
}

var (
	pBrokerAddr = req("brokerAddr", TypeString, "Broker address (host:port)")
	pAddr       = req("addr", TypeString, "Broker address (host:port)")
	pTopic      = req("topic", TypeString, "Topic name")
	pTimeout    = opt("timeoutMillis", TypeInteger, "Request timeout in milliseconds")
)

func aclTools() []Tool {
	g := policy.GroupAcl
	return []Tool{
		{
			Name: "createAndUpdatePlainAccessConfig", Group: g, Write: true,
			Description: "Create or update a plain ACL account on a broker",
			Params: []Param{
				pAddr,
				req("plainAccessConfig", TypeObject, "Account: accessKey, secretKey, whiteRemoteAddress, admin, defaultTopicPerm, defaultGroupPerm, topicPerms, groupPerms"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				var cfg mqadmin.PlainAccessConfig
				if err := args.Decode("plainAccessConfig", &cfg); err != nil {
					return nil, err
				}
				return a.CreateAndUpdatePlainAccessConfig(ctx, args.String("addr"), cfg)
			},
		},
		{
			Name: "deletePlainAccessConfig", Group: g, Write: true,
			Description: "Delete a plain ACL account from a broker",
			Params:      []Param{pAddr, req("accessKey", TypeString, "Access key of the account")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeletePlainAccessConfig(ctx, args.String("addr"), args.String("accessKey"))
			},
		},
		{
			Name: "updateGlobalWhiteAddrConfig", Group: g, Write: true,
			Description: "Replace the global white address list of a broker",
			Params:      []Param{pAddr, req("globalWhiteAddrs", TypeString, "Comma separated address patterns")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateGlobalWhiteAddrConfig(ctx, args.String("addr"), args.String("globalWhiteAddrs"), "")
			},
		},
		{
			Name: "updateGlobalWhiteAddrConfigWithAcl", Group: g, Write: true,
			Description: "Replace the global white address list in a specific ACL file",
			Params: []Param{
				pAddr,
				req("globalWhiteAddrs", TypeString, "Comma separated address patterns"),
				req("aclFileFullPath", TypeString, "Absolute path of the ACL file on the broker"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateGlobalWhiteAddrConfig(ctx, args.String("addr"), args.String("globalWhiteAddrs"), args.String("aclFileFullPath"))
			},
		},
		{
			Name: "getAclVersionList", Group: g,
			Description: "Get the ACL file versions of a broker",
			Params:      []Param{pAddr},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetAclVersionList(ctx, args.String("addr"))
			},
		},
		{
			Name: "createUser", Group: g, Write: true,
			Description: "Create an ACL 2.0 user",
			Params: []Param{
				pBrokerAddr,
				req("username", TypeString, ""),
				req("password", TypeString, ""),
				opt("userType", TypeString, "Super or Normal"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.CreateUser(ctx, args.String("brokerAddr"), args.String("username"), args.String("password"), args.String("userType"))
			},
		},
		{
			Name: "updateUser", Group: g, Write: true,
			Description: "Update an ACL 2.0 user",
			Params: []Param{
				pBrokerAddr,
				req("username", TypeString, ""),
				opt("password", TypeString, ""),
				opt("userType", TypeString, "Super or Normal"),
				opt("userStatus", TypeString, "enable or disable"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.UpdateUser(ctx, args.String("brokerAddr"), args.String("username"), args.String("password"),
					args.String("userType"), args.String("userStatus"))
			},
		},
		{
			Name: "deleteUser", Group: g, Write: true,
			Description: "Delete an ACL 2.0 user",
			Params:      []Param{pBrokerAddr, req("username", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteUser(ctx, args.String("brokerAddr"), args.String("username"))
			},
		},
		{
			Name: "getUser", Group: g,
			Description: "Get an ACL 2.0 user",
			Params:      []Param{pBrokerAddr, req("username", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetUser(ctx, args.String("brokerAddr"), args.String("username"))
			},
		},
		{
			Name: "getAllUsers", Group: g,
			Description: "List ACL 2.0 users",
			Params:      []Param{pBrokerAddr, opt("filter", TypeString, "Username filter")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetAllUsers(ctx, args.String("brokerAddr"), args.String("filter"))
			},
		},
		aclWriteTool("createAcl", "Create an ACL 2.0 policy for a subject", (*mqadmin.Admin).CreateAcl),
		aclWriteTool("updateAcl", "Update an ACL 2.0 policy of a subject", (*mqadmin.Admin).UpdateAcl),
		{
			Name: "deleteAcl", Group: g, Write: true,
			Description: "Delete the policy of a subject on a resource",
			Params: []Param{
				pBrokerAddr,
				req("subject", TypeString, "For example User:alice"),
				opt("resource", TypeString, "For example Topic:orders; blank deletes every policy of the subject"),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.DeleteAcl(ctx, args.String("brokerAddr"), args.String("subject"), args.String("resource"))
			},
		},
		{
			Name: "getAcl", Group: g,
			Description: "Get the ACL 2.0 policies of a subject",
			Params:      []Param{pBrokerAddr, req("subject", TypeString, "")},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetAcl(ctx, args.String("brokerAddr"), args.String("subject"))
			},
		},
		{
			Name: "getAclList", Group: g,
			Description: "List ACL 2.0 policies",
			Params: []Param{
				pBrokerAddr,
				opt("subjectFilter", TypeString, ""),
				opt("resourceFilter", TypeString, ""),
			},
			Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
				return a.GetAclList(ctx, args.String("brokerAddr"), args.String("subjectFilter"), args.String("resourceFilter"))
			},
		},
	}
}

type aclWriteFunc func(a *mqadmin.Admin, ctx context.Context, brokerAddr, subject string, resources, actions, sourceIps []string, decision string) (string, error)

func aclWriteTool(name, desc string, fn aclWriteFunc) Tool {
	return Tool{
		Name: name, Group: policy.GroupAcl, Write: true,
		Description: desc,
		Params: []Param{
			pBrokerAddr,
			req("subject", TypeString, "For example User:alice"),
			req("resources", TypeArray, "For example Topic:orders, Group:*"),
			opt("actions", TypeArray, "Pub, Sub, Create, Update, Delete, Get, List or All"),
			opt("sourceIps", TypeArray, "Allowed client addresses"),
			req("decision", TypeString, "ALLOW or DENY"),
		},
		Run: func(ctx context.Context, a *mqadmin.Admin, args Args) (any, error) {
			return fn(a, ctx, args.String("brokerAddr"), args.String("subject"), args.Strings("resources"),
				args.Strings("actions"), args.Strings("sourceIps"), args.String("decision"))
		},
	}
}
