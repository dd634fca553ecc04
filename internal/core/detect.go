package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/channel-janitor/internal/twilio"
)

// Detection is the outcome of comparing tasks with proxy sessions.
type Detection struct {
	Orphans      []string
	TaskCount    int
	SessionCount int
	Message      string
}

// FindOrphanedChannels returns the channel SIDs of open proxy sessions that no
// task in the workspace references, in session scan order.
func FindOrphanedChannels(ctx context.Context, api FlexAPI, services ServiceTriple) (*Detection, error) {
	tasks, err := twilio.GetAll[twilio.Task](ctx, func(ctx context.Context, pageURL string) (*twilio.Page[twilio.Task], error) {
		return api.ListTasks(ctx, services.WorkspaceSID, pageURL)
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		// Without tasks every open session would look orphaned.
		return &Detection{Orphans: []string{}, Message: "No tasks found. Nothing to do."}, nil
	}
	taskChannels, err := taskChannelSIDs(tasks)
	if err != nil {
		return nil, err
	}

	sessions, err := twilio.GetAll[twilio.Session](ctx, func(ctx context.Context, pageURL string) (*twilio.Page[twilio.Session], error) {
		return api.ListSessions(ctx, services.ProxyServiceSID, pageURL)
	})
	if err != nil {
		return nil, fmt.Errorf("list proxy sessions: %w", err)
	}

	det := &Detection{
		Orphans:      orphanedChannels(sessions, taskChannels),
		TaskCount:    len(tasks),
		SessionCount: len(sessions),
	}
	if len(sessions) == 0 {
		det.Message = "No proxy sessions found. Nothing to do."
	} else {
		det.Message = fmt.Sprintf("Found %d stale chat session(s)", len(det.Orphans))
	}

	log.Info().
		Int("tasks", det.TaskCount).
		Int("task_channels", len(taskChannels)).
		Int("sessions", det.SessionCount).
		Int("orphans", len(det.Orphans)).
		Msg("Compared tasks with proxy sessions")
	return det, nil
}

// taskChannelSIDs collects the channelSid attribute of every task that has one.
func taskChannelSIDs(tasks []twilio.Task) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		attrs, err := ParseAttributes(task.SID, task.Attributes)
		if err != nil {
			return nil, err
		}
		if sid, ok := attrs["channelSid"].(string); ok && sid != "" {
			out[sid] = struct{}{}
		}
	}
	return out, nil
}

// orphanedChannels keeps open sessions named like a channel SID that no task
// references. A name seen twice is kept once.
func orphanedChannels(sessions []twilio.Session, taskChannels map[string]struct{}) []string {
	orphans := []string{}
	seen := make(map[string]struct{})
	for _, s := range sessions {
		if !ValidSID(s.UniqueName, ChannelPrefix) || strings.ToLower(s.Status) == "closed" {
			continue
		}
		if _, ok := taskChannels[s.UniqueName]; ok {
			continue
		}
		if _, dup := seen[s.UniqueName]; dup {
			log.Debug().Str("channel_sid", s.UniqueName).Msg("Skipping duplicate proxy session")
			continue
		}
		seen[s.UniqueName] = struct{}{}
		orphans = append(orphans, s.UniqueName)
	}
	return orphans
}
