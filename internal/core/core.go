// Package core finds chat channels whose Proxy session outlived its
// TaskRouter task and marks them inactive.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/3cpo-dev/channel-janitor/internal/twilio"
)

// FlexAPI is the slice of the Twilio API the janitor reads and writes.
// *twilio.Client implements it.
type FlexAPI interface {
	ListChatServices(ctx context.Context, pageURL string) (*twilio.Page[twilio.ChatService], error)
	ListWorkspaces(ctx context.Context, pageURL string) (*twilio.Page[twilio.Workspace], error)
	ListProxyServices(ctx context.Context, pageURL string) (*twilio.Page[twilio.ProxyService], error)
	ListTasks(ctx context.Context, workspaceSID, pageURL string) (*twilio.Page[twilio.Task], error)
	ListSessions(ctx context.Context, proxyServiceSID, pageURL string) (*twilio.Page[twilio.Session], error)
	FetchChannel(ctx context.Context, serviceSID, channelSID string) (*twilio.Channel, error)
	UpdateChannelAttributes(ctx context.Context, serviceSID, channelSID, attributes string) (*twilio.Channel, error)
}

// Reporter receives human-readable status lines as the run progresses.
type Reporter interface {
	Status(msg string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(msg string)

func (f ReporterFunc) Status(msg string) { f(msg) }

type nopReporter struct{}

func (nopReporter) Status(string) {}

func reporterOrNop(r Reporter) Reporter {
	if r == nil {
		return nopReporter{}
	}
	return r
}

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("resource not found")

// NotFoundError names a Flex resource that could not be resolved by name.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unable to find Flex %s %q", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AttributesError is returned when an attributes document is not a JSON object.
type AttributesError struct {
	SID string
	Err error
}

func (e *AttributesError) Error() string {
	return fmt.Sprintf("parse attributes of %s: %v", e.SID, e.Err)
}

func (e *AttributesError) Unwrap() error { return e.Err }

// ItemError ties a remediation failure to its channel.
type ItemError struct {
	SID string
	Err error
}

func (e *ItemError) Error() string { return fmt.Sprintf("channel %s: %v", e.SID, e.Err) }

func (e *ItemError) Unwrap() error { return e.Err }

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
