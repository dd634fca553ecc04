package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/channel-janitor/internal/telemetry"
)

// StatusInactive is the channel attribute status the janitor writes.
const StatusInactive = "INACTIVE"

// RemediationResult summarizes a cleanup pass. Updated always equals
// len(CleanedUp).
type RemediationResult struct {
	Updated   int      `json:"updated"`
	CleanedUp []string `json:"cleaned_up"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed,omitempty"`
}

// Remediator marks orphaned channels inactive.
type Remediator struct {
	API      FlexAPI
	Runner   Runner
	Reporter Reporter
}

// CleanupChannels sets status INACTIVE on every orphaned channel that is not
// inactive already. Under the serial discipline the first failure stops the
// pass and is returned with the partial result; under the batched discipline
// failures are recorded in Failed and the pass completes.
func (r *Remediator) CleanupChannels(ctx context.Context, chatServiceSID string, orphans []string) (*RemediationResult, error) {
	rep := reporterOrNop(r.Reporter)
	res := &RemediationResult{CleanedUp: []string{}}

	work := func(ctx context.Context, sid string) (bool, error) {
		changed, err := r.deactivate(ctx, chatServiceSID, sid)
		if err != nil {
			return false, &ItemError{SID: sid, Err: err}
		}
		return changed, nil
	}

	settle := func(o Outcome[string, bool]) {
		switch {
		case o.Err != nil:
			res.Failed = append(res.Failed, o.Item)
			telemetry.CounterGlobal("janitor_channel_failures", 1, nil)
			log.Warn().Err(o.Err).Str("channel_sid", o.Item).Msg("Failed to clean up channel")
		case o.Result:
			res.Updated++
			res.CleanedUp = append(res.CleanedUp, o.Item)
			telemetry.CounterGlobal("janitor_channels_updated", 1, nil)
			rep.Status(fmt.Sprintf("Clean up stale sessions. %d completed", res.Updated))
		default:
			res.Skipped++
		}
	}

	err := Process(ctx, r.Runner, orphans, work, settle)
	if err != nil && (r.Runner.Serial || ctx.Err() != nil) {
		return res, err
	}
	return res, nil
}

// deactivate fetches one channel and writes status INACTIVE if needed. It
// reports whether a write happened.
func (r *Remediator) deactivate(ctx context.Context, serviceSID, channelSID string) (bool, error) {
	ch, err := r.API.FetchChannel(ctx, serviceSID, channelSID)
	if err != nil {
		return false, fmt.Errorf("fetch: %w", err)
	}
	attrs, err := ParseAttributes(channelSID, ch.Attributes)
	if err != nil {
		return false, err
	}
	if status, ok := attrs["status"].(string); ok && status == StatusInactive {
		log.Debug().Str("channel_sid", channelSID).Msg("Channel already inactive")
		return false, nil
	}

	attrs["status"] = StatusInactive
	payload, err := EncodeAttributes(attrs)
	if err != nil {
		return false, &AttributesError{SID: channelSID, Err: err}
	}
	if _, err := r.API.UpdateChannelAttributes(ctx, serviceSID, channelSID, payload); err != nil {
		return false, fmt.Errorf("update: %w", err)
	}
	log.Info().Str("channel_sid", channelSID).Msg("Marked channel inactive")
	return true, nil
}

// ParseAttributes decodes an attributes document into an open map. An empty
// document is an empty object; numbers keep their exact text.
func ParseAttributes(sid, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return nil, &AttributesError{SID: sid, Err: err}
	}
	if attrs == nil {
		return nil, &AttributesError{SID: sid, Err: errors.New("not a JSON object")}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &AttributesError{SID: sid, Err: errors.New("trailing data after object")}
	}
	return attrs, nil
}

// EncodeAttributes serializes an attributes map without HTML escaping.
func EncodeAttributes(attrs map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(attrs); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
