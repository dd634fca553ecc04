package core

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", s, err)
	}
	return m
}

func TestCleanupChannels(t *testing.T) {
	for _, runner := range []Runner{{Serial: true}, {BatchSize: 10}, {BatchSize: 1}} {
		api := newFlexMock()
		api.Channels[sidB] = `{"status":"ACTIVE","otherKey":"hello"}`
		api.Channels[sidA] = `{"status":"INACTIVE"}`
		api.Channels[sidC] = `{"status":"ACTIVE"}`
		rec := &recorder{}

		rem := &Remediator{API: api, Runner: runner, Reporter: rec}
		res, err := rem.CleanupChannels(context.Background(), chatServiceSID, []string{sidB, sidA, sidC})
		if err != nil {
			t.Fatalf("%+v: CleanupChannels failed: %v", runner, err)
		}
		if res.Updated != 2 || res.Skipped != 1 {
			t.Fatalf("%+v: updated=%d skipped=%d", runner, res.Updated, res.Skipped)
		}
		if want := []string{sidB, sidC}; !reflect.DeepEqual(res.CleanedUp, want) {
			t.Fatalf("%+v: cleaned up %v, want %v", runner, res.CleanedUp, want)
		}
		if len(api.Updates) != 2 {
			t.Fatalf("%+v: expected 2 updates, got %d", runner, len(api.Updates))
		}
		for _, u := range api.Updates {
			got := decode(t, u.Attributes)
			want := map[string]any{"status": "INACTIVE"}
			if u.SID == sidB {
				want["otherKey"] = "hello"
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("%+v: update of %s = %v, want %v", runner, u.SID, got, want)
			}
		}
		if want := []string{"Clean up stale sessions. 1 completed", "Clean up stale sessions. 2 completed"}; !reflect.DeepEqual(rec.msgs, want) {
			t.Errorf("%+v: progress %v, want %v", runner, rec.msgs, want)
		}
	}
}

func TestCleanupChannelsIdempotent(t *testing.T) {
	api := newFlexMock()
	api.Channels[sidA] = `{"status":"ACTIVE","n":12345678901234567890}`
	api.Channels[sidB] = `{}`
	rem := &Remediator{API: api, Runner: Runner{BatchSize: 10}}

	first, err := rem.CleanupChannels(context.Background(), chatServiceSID, []string{sidA, sidB})
	if err != nil || first.Updated != 2 {
		t.Fatalf("first pass: updated=%v err=%v", first, err)
	}
	if got := api.Channels[sidA]; got != `{"n":12345678901234567890,"status":"INACTIVE"}` {
		t.Errorf("large number not preserved: %s", got)
	}

	second, err := rem.CleanupChannels(context.Background(), chatServiceSID, []string{sidA, sidB})
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.Updated != 0 || len(second.CleanedUp) != 0 || second.Skipped != 2 {
		t.Fatalf("expected no writes on second pass, got %+v", second)
	}
}

func TestCleanupChannelsBatchedToleratesFailures(t *testing.T) {
	api := newFlexMock()
	sids := []string{sidA, sidB, sidC, sidD}
	for _, sid := range sids {
		api.Channels[sid] = `{"status":"ACTIVE"}`
	}
	api.FetchErr[sidA] = errors.New("connection reset")
	api.UpdateErr[sidC] = errors.New("rate limited")

	rem := &Remediator{API: api, Runner: Runner{BatchSize: 2}}
	res, err := rem.CleanupChannels(context.Background(), chatServiceSID, sids)
	if err != nil {
		t.Fatalf("batched discipline must not fail the pass, got %v", err)
	}
	if want := []string{sidB, sidD}; !reflect.DeepEqual(res.CleanedUp, want) {
		t.Fatalf("cleaned up %v, want %v", res.CleanedUp, want)
	}
	if want := []string{sidA, sidC}; !reflect.DeepEqual(res.Failed, want) {
		t.Fatalf("failed %v, want %v", res.Failed, want)
	}
	if len(api.Fetches) != 4 {
		t.Fatalf("expected every channel fetched, got %v", api.Fetches)
	}
}

func TestCleanupChannelsSerialFailsFast(t *testing.T) {
	api := newFlexMock()
	api.Channels[sidA] = `{"status":"ACTIVE"}`
	api.Channels[sidC] = `{"status":"ACTIVE"}`
	boom := errors.New("boom")
	api.FetchErr[sidB] = boom

	rem := &Remediator{API: api, Runner: Runner{Serial: true}}
	res, err := rem.CleanupChannels(context.Background(), chatServiceSID, []string{sidA, sidB, sidC})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var itemErr *ItemError
	if !errors.As(err, &itemErr) || itemErr.SID != sidB {
		t.Fatalf("expected ItemError for %s, got %v", sidB, err)
	}
	if res.Updated != 1 || len(api.Fetches) != 2 {
		t.Fatalf("expected halt after second channel, updated=%d fetches=%v", res.Updated, api.Fetches)
	}
}

func TestParseAttributes(t *testing.T) {
	if m, err := ParseAttributes("CH1", ""); err != nil || len(m) != 0 {
		t.Fatalf("empty attributes: %v %v", m, err)
	}
	for _, bad := range []string{"null", "[]", `"x"`, `{"a":1} {}`, "{"} {
		var attrErr *AttributesError
		if _, err := ParseAttributes("CH1", bad); !errors.As(err, &attrErr) {
			t.Errorf("ParseAttributes(%q) = %v, want AttributesError", bad, err)
		}
	}
}
