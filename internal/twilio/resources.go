package twilio

import (
	"context"
	"net/url"
)

// ChatService is a Programmable Chat service.
type ChatService struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
}

// Workspace is a TaskRouter workspace.
type Workspace struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
}

// ProxyService is a Proxy service.
type ProxyService struct {
	SID        string `json:"sid"`
	UniqueName string `json:"unique_name"`
}

// Task is a TaskRouter task. Attributes is a JSON document.
type Task struct {
	SID              string `json:"sid"`
	AssignmentStatus string `json:"assignment_status"`
	Attributes       string `json:"attributes"`
}

// Session is a Proxy session.
type Session struct {
	SID        string `json:"sid"`
	UniqueName string `json:"unique_name"`
	Status     string `json:"status"`
}

// Channel is a chat channel. Attributes is a JSON document.
type Channel struct {
	SID        string `json:"sid"`
	ServiceSID string `json:"service_sid"`
	UniqueName string `json:"unique_name"`
	Attributes string `json:"attributes"`
}

// ListChatServices returns one page of chat services.
func (c *Client) ListChatServices(ctx context.Context, pageURL string) (*Page[ChatService], error) {
	u, err := listURL(c.endpoints.Chat, "/v2/Services", pageURL)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Services []ChatService `json:"services"`
		Meta     pageMeta      `json:"meta"`
	}
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &Page[ChatService]{Instances: resp.Services, NextPageURL: resp.Meta.next()}, nil
}

// ListWorkspaces returns one page of TaskRouter workspaces.
func (c *Client) ListWorkspaces(ctx context.Context, pageURL string) (*Page[Workspace], error) {
	u, err := listURL(c.endpoints.TaskRouter, "/v1/Workspaces", pageURL)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Workspaces []Workspace `json:"workspaces"`
		Meta       pageMeta    `json:"meta"`
	}
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &Page[Workspace]{Instances: resp.Workspaces, NextPageURL: resp.Meta.next()}, nil
}

// ListProxyServices returns one page of Proxy services.
func (c *Client) ListProxyServices(ctx context.Context, pageURL string) (*Page[ProxyService], error) {
	u, err := listURL(c.endpoints.Proxy, "/v1/Services", pageURL)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Services []ProxyService `json:"services"`
		Meta     pageMeta       `json:"meta"`
	}
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &Page[ProxyService]{Instances: resp.Services, NextPageURL: resp.Meta.next()}, nil
}

// ListTasks returns one page of tasks in a workspace.
func (c *Client) ListTasks(ctx context.Context, workspaceSID, pageURL string) (*Page[Task], error) {
	u, err := listURL(c.endpoints.TaskRouter, "/v1/Workspaces/"+url.PathEscape(workspaceSID)+"/Tasks", pageURL)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tasks []Task   `json:"tasks"`
		Meta  pageMeta `json:"meta"`
	}
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &Page[Task]{Instances: resp.Tasks, NextPageURL: resp.Meta.next()}, nil
}

// ListSessions returns one page of sessions in a Proxy service.
func (c *Client) ListSessions(ctx context.Context, proxyServiceSID, pageURL string) (*Page[Session], error) {
	u, err := listURL(c.endpoints.Proxy, "/v1/Services/"+url.PathEscape(proxyServiceSID)+"/Sessions", pageURL)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Sessions []Session `json:"sessions"`
		Meta     pageMeta  `json:"meta"`
	}
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &Page[Session]{Instances: resp.Sessions, NextPageURL: resp.Meta.next()}, nil
}

func (c *Client) channelURL(serviceSID, channelSID string) string {
	return c.endpoints.Chat + "/v2/Services/" + url.PathEscape(serviceSID) + "/Channels/" + url.PathEscape(channelSID)
}

// FetchChannel returns the current state of a chat channel.
func (c *Client) FetchChannel(ctx context.Context, serviceSID, channelSID string) (*Channel, error) {
	var ch Channel
	if err := c.get(ctx, c.channelURL(serviceSID, channelSID), &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// UpdateChannelAttributes replaces a channel's attributes document.
func (c *Client) UpdateChannelAttributes(ctx context.Context, serviceSID, channelSID, attributes string) (*Channel, error) {
	form := url.Values{}
	form.Set("Attributes", attributes)
	var ch Channel
	if err := c.postForm(ctx, c.channelURL(serviceSID, channelSID), form, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}
