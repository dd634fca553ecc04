package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/channel-janitor/internal/twilio"
)

// Default Flex resource names.
const (
	DefaultChatService  = "Flex Chat Service"
	DefaultWorkspace    = "Flex Task Assignment"
	DefaultProxyService = "Flex Proxy Service"
)

// ServiceNames are the human-assigned names the Flex services are looked up by.
type ServiceNames struct {
	ChatService  string `yaml:"chat_service"`
	Workspace    string `yaml:"workspace"`
	ProxyService string `yaml:"proxy_service"`
}

// DefaultServiceNames returns the names Flex provisions by default.
func DefaultServiceNames() ServiceNames {
	return ServiceNames{
		ChatService:  DefaultChatService,
		Workspace:    DefaultWorkspace,
		ProxyService: DefaultProxyService,
	}
}

// ServiceTriple holds the resolved SIDs of the three Flex services.
type ServiceTriple struct {
	ChatServiceSID  string `json:"chat_service_sid"`
	WorkspaceSID    string `json:"workspace_sid"`
	ProxyServiceSID string `json:"proxy_service_sid"`
}

// LocateServices lists chat services, workspaces and proxy services and picks
// the one matching each configured name.
func LocateServices(ctx context.Context, api FlexAPI, names ServiceNames) (ServiceTriple, error) {
	var triple ServiceTriple

	chatServices, err := twilio.GetAll[twilio.ChatService](ctx, api.ListChatServices)
	if err != nil {
		return triple, fmt.Errorf("list chat services: %w", err)
	}
	workspaces, err := twilio.GetAll[twilio.Workspace](ctx, api.ListWorkspaces)
	if err != nil {
		return triple, fmt.Errorf("list workspaces: %w", err)
	}
	proxyServices, err := twilio.GetAll[twilio.ProxyService](ctx, api.ListProxyServices)
	if err != nil {
		return triple, fmt.Errorf("list proxy services: %w", err)
	}

	for _, ws := range workspaces {
		if ws.FriendlyName == names.Workspace {
			triple.WorkspaceSID = ws.SID
			break
		}
	}
	for _, svc := range chatServices {
		if svc.FriendlyName == names.ChatService {
			triple.ChatServiceSID = svc.SID
			break
		}
	}
	for _, svc := range proxyServices {
		if svc.UniqueName == names.ProxyService {
			triple.ProxyServiceSID = svc.SID
			break
		}
	}

	if triple.WorkspaceSID == "" {
		return triple, &NotFoundError{Kind: "TaskRouter Workspace", Name: names.Workspace}
	}
	if triple.ChatServiceSID == "" {
		return triple, &NotFoundError{Kind: "Chat Service", Name: names.ChatService}
	}
	if triple.ProxyServiceSID == "" {
		return triple, &NotFoundError{Kind: "Proxy Service", Name: names.ProxyService}
	}

	log.Debug().
		Str("chat_service_sid", triple.ChatServiceSID).
		Str("workspace_sid", triple.WorkspaceSID).
		Str("proxy_service_sid", triple.ProxyServiceSID).
		Msg("Resolved Flex services")
	return triple, nil
}
