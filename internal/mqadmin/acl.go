package mqadmin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

// ACL v1: plain access accounts stored in the broker's acl file.

func (a *Admin) CreateAndUpdatePlainAccessConfig(ctx context.Context, addr string, cfg PlainAccessConfig) (string, error) {
	if cfg.AccessKey == "" {
		return "", errors.New("plainAccessConfig.accessKey is required")
	}
	if _, err := a.invoke(ctx, addr, remoting.UpdateAndCreateACLConfig, cfg.header(), nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) DeletePlainAccessConfig(ctx context.Context, addr, accessKey string) (string, error) {
	if _, err := a.invoke(ctx, addr, remoting.DeleteACLConfig, map[string]string{"accessKey": accessKey}, nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

// UpdateGlobalWhiteAddrConfig replaces the global white list. aclFileFullPath
// selects the acl file when the broker has several; blank means the default.
func (a *Admin) UpdateGlobalWhiteAddrConfig(ctx context.Context, addr, whiteAddrs, aclFileFullPath string) (string, error) {
	ext := map[string]string{"globalWhiteAddrs": whiteAddrs}
	if aclFileFullPath != "" {
		ext["aclFileFullPath"] = aclFileFullPath
	}
	if _, err := a.invoke(ctx, addr, remoting.UpdateGlobalWhiteAddrsConfig, ext, nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

// GetAclVersionList returns the broker's acl file versions.
func (a *Admin) GetAclVersionList(ctx context.Context, addr string) (map[string]any, error) {
	resp, err := a.invoke(ctx, addr, remoting.GetBrokerClusterACLInfo, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(resp.ExtFields))
	for k, v := range resp.ExtFields {
		out[k] = v
	}
	if raw := resp.ExtFields["allAclFileVersion"]; raw != "" {
		norm, err := remoting.NormalizeJSON([]byte(raw))
		if err == nil && len(norm) > 0 {
			out["allAclFileVersion"] = json.RawMessage(norm)
		}
	}
	return out, nil
}

// ACL v2: users and policies of the RocketMQ 5 auth module.

func (a *Admin) CreateUser(ctx context.Context, brokerAddr, username, password, userType string) (string, error) {
	body, err := json.Marshal(UserInfo{Username: username, Password: password, UserType: userType})
	if err != nil {
		return "", err
	}
	if _, err := a.invoke(ctx, brokerAddr, remoting.AuthCreateUser, map[string]string{"username": username}, body); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) UpdateUser(ctx context.Context, brokerAddr, username, password, userType, userStatus string) (string, error) {
	body, err := json.Marshal(UserInfo{Username: username, Password: password, UserType: userType, UserStatus: userStatus})
	if err != nil {
		return "", err
	}
	if _, err := a.invoke(ctx, brokerAddr, remoting.AuthUpdateUser, map[string]string{"username": username}, body); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) DeleteUser(ctx context.Context, brokerAddr, username string) (string, error) {
	if _, err := a.invoke(ctx, brokerAddr, remoting.AuthDeleteUser, map[string]string{"username": username}, nil); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) GetUser(ctx context.Context, brokerAddr, username string) (*UserInfo, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.AuthGetUser, map[string]string{"username": username}, nil)
	if err != nil {
		return nil, err
	}
	out := &UserInfo{}
	if err := decodeBody(resp, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Admin) GetAllUsers(ctx context.Context, brokerAddr, filter string) ([]UserInfo, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.AuthListUser, map[string]string{"filter": filter}, nil)
	if err != nil {
		return nil, err
	}
	out := []UserInfo{}
	if err := decodeBody(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Admin) CreateAcl(ctx context.Context, brokerAddr, subject string, resources, actions, sourceIps []string, decision string) (string, error) {
	return a.writeAcl(ctx, remoting.AuthCreateACL, brokerAddr, subject, resources, actions, sourceIps, decision)
}

func (a *Admin) UpdateAcl(ctx context.Context, brokerAddr, subject string, resources, actions, sourceIps []string, decision string) (string, error) {
	return a.writeAcl(ctx, remoting.AuthUpdateACL, brokerAddr, subject, resources, actions, sourceIps, decision)
}

func (a *Admin) writeAcl(ctx context.Context, code remoting.Code, brokerAddr, subject string, resources, actions, sourceIps []string, decision string) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if len(resources) == 0 {
		return "", errors.New("at least one resource is required")
	}
	switch strings.ToUpper(decision) {
	case "ALLOW", "DENY":
		decision = strings.ToUpper(decision)
	default:
		return "", errors.New("decision must be ALLOW or DENY")
	}
	body, err := json.Marshal(NewAclInfo(subject, resources, actions, sourceIps, decision))
	if err != nil {
		return "", err
	}
	if _, err := a.invoke(ctx, brokerAddr, code, map[string]string{"subject": subject}, body); err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) DeleteAcl(ctx context.Context, brokerAddr, subject, resource string) (string, error) {
	_, err := a.invoke(ctx, brokerAddr, remoting.AuthDeleteACL, map[string]string{
		"subject":  subject,
		"resource": resource,
	}, nil)
	if err != nil {
		return "", err
	}
	return resultString(true), nil
}

func (a *Admin) GetAcl(ctx context.Context, brokerAddr, subject string) (*AclInfo, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.AuthGetACL, map[string]string{"subject": subject}, nil)
	if err != nil {
		return nil, err
	}
	out := &AclInfo{}
	if err := decodeBody(resp, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Admin) GetAclList(ctx context.Context, brokerAddr, subjectFilter, resourceFilter string) ([]AclInfo, error) {
	resp, err := a.invoke(ctx, brokerAddr, remoting.AuthListACL, map[string]string{
		"subjectFilter":  subjectFilter,
		"resourceFilter": resourceFilter,
	}, nil)
	if err != nil {
		return nil, err
	}
	out := []AclInfo{}
	if err := decodeBody(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}
