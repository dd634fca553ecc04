package core

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/3cpo-dev/channel-janitor/internal/twilio"
)

const (
	sidA = "CH114ff411c17045feb7e917c71278772a"
	sidB = "CH114ff411c17045feb7e917c71278772b"
	sidC = "CH114ff411c17045feb7e917c71278772c"
	sidD = "CH114ff411c17045feb7e917c71278772d"

	chatServiceSID  = "IS114ff411c17045feb7e917c71278772a"
	workspaceSID    = "WS114ff411c17045feb7e917c71278772c"
	proxyServiceSID = "KS73410864ac7e0348e3373d751d6b7133"
)

type channelUpdate struct {
	SID        string
	Attributes string
}

// MockAPI is an in-memory FlexAPI. List collections are split into pages.
type MockAPI struct {
	mu sync.Mutex

	ChatServices  []twilio.ChatService
	Workspaces    []twilio.Workspace
	ProxyServices []twilio.ProxyService
	TaskPages     [][]twilio.Task
	SessionPages  [][]twilio.Session
	Channels      map[string]string
	FetchErr      map[string]error
	UpdateErr     map[string]error
	ListErr       error

	Fetches []string
	Updates []channelUpdate
}

func newFlexMock() *MockAPI {
	return &MockAPI{
		ChatServices:  []twilio.ChatService{{SID: "IS0", FriendlyName: "Other"}, {SID: chatServiceSID, FriendlyName: DefaultChatService}},
		Workspaces:    []twilio.Workspace{{SID: workspaceSID, FriendlyName: DefaultWorkspace}},
		ProxyServices: []twilio.ProxyService{{SID: proxyServiceSID, UniqueName: DefaultProxyService}},
		Channels:      map[string]string{},
		FetchErr:      map[string]error{},
		UpdateErr:     map[string]error{},
	}
}

func pageOf[T any](pages [][]T, pageURL string) (*twilio.Page[T], error) {
	idx := 0
	if pageURL != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(pageURL, "page-"))
		if err != nil {
			return nil, fmt.Errorf("bad page url %q", pageURL)
		}
		idx = n
	}
	if idx >= len(pages) {
		return &twilio.Page[T]{}, nil
	}
	p := &twilio.Page[T]{Instances: pages[idx]}
	if idx+1 < len(pages) {
		p.NextPageURL = fmt.Sprintf("page-%d", idx+1)
	}
	return p, nil
}

func (m *MockAPI) ListChatServices(ctx context.Context, pageURL string) (*twilio.Page[twilio.ChatService], error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return pageOf([][]twilio.ChatService{m.ChatServices}, pageURL)
}

func (m *MockAPI) ListWorkspaces(ctx context.Context, pageURL string) (*twilio.Page[twilio.Workspace], error) {
	return pageOf([][]twilio.Workspace{m.Workspaces}, pageURL)
}

func (m *MockAPI) ListProxyServices(ctx context.Context, pageURL string) (*twilio.Page[twilio.ProxyService], error) {
	return pageOf([][]twilio.ProxyService{m.ProxyServices}, pageURL)
}

func (m *MockAPI) ListTasks(ctx context.Context, ws, pageURL string) (*twilio.Page[twilio.Task], error) {
	if ws != workspaceSID {
		return nil, &twilio.APIError{Status: http.StatusNotFound, Message: "no such workspace"}
	}
	return pageOf(m.TaskPages, pageURL)
}

func (m *MockAPI) ListSessions(ctx context.Context, ks, pageURL string) (*twilio.Page[twilio.Session], error) {
	if ks != proxyServiceSID {
		return nil, &twilio.APIError{Status: http.StatusNotFound, Message: "no such proxy service"}
	}
	return pageOf(m.SessionPages, pageURL)
}

func (m *MockAPI) FetchChannel(ctx context.Context, is, sid string) (*twilio.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches = append(m.Fetches, sid)
	if err := m.FetchErr[sid]; err != nil {
		return nil, err
	}
	attrs, ok := m.Channels[sid]
	if !ok {
		return nil, &twilio.APIError{Status: http.StatusNotFound, Message: "channel not found"}
	}
	return &twilio.Channel{SID: sid, ServiceSID: is, Attributes: attrs}, nil
}

func (m *MockAPI) UpdateChannelAttributes(ctx context.Context, is, sid, attributes string) (*twilio.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpdateErr[sid]; err != nil {
		return nil, err
	}
	m.Updates = append(m.Updates, channelUpdate{SID: sid, Attributes: attributes})
	m.Channels[sid] = attributes
	return &twilio.Channel{SID: sid, ServiceSID: is, Attributes: attributes}, nil
}

func taskWithChannel(sid string, channel *string) twilio.Task {
	if channel == nil {
		return twilio.Task{SID: sid, Attributes: `{"channelSid":null,"channelType":"web"}`}
	}
	return twilio.Task{SID: sid, Attributes: fmt.Sprintf(`{"channelSid":%q,"channelType":"web"}`, *channel)}
}

func session(uniqueName, status string) twilio.Session {
	return twilio.Session{SID: "KC" + strings.Repeat("0", 32), UniqueName: uniqueName, Status: status}
}

func strPtr(s string) *string { return &s }

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Status(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}
