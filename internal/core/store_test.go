package core

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestStoreRecordAndListRuns(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ok := &Run{
		ID:          "run-ok",
		StartedAt:   start,
		FinishedAt:  start.Add(time.Minute),
		Services:    ServiceTriple{ChatServiceSID: chatServiceSID, WorkspaceSID: workspaceSID, ProxyServiceSID: proxyServiceSID},
		TaskCount:   4,
		Orphans:     []string{sidB, sidA, sidC},
		Remediation: &RemediationResult{Updated: 2, CleanedUp: []string{sidB, sidC}, Skipped: 1},
	}
	if err := s.RecordRun(ctx, ok, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	failed := &Run{ID: "run-failed", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour)}
	if err := s.RecordRun(ctx, failed, errors.New("Fetch Flex resources: unable to find Flex Chat Service")); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-failed" || runs[1].ID != "run-ok" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[0].Error == "" {
		t.Error("expected error text on failed run")
	}
	got := runs[1]
	if got.OrphanCount != 3 || got.UpdatedCount != 2 || got.TaskCount != 4 || got.Services != ok.Services {
		t.Errorf("unexpected record %+v", got)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, start)
	}

	cleaned, err := s.CleanedChannels(ctx, "run-ok")
	if err != nil {
		t.Fatalf("CleanedChannels failed: %v", err)
	}
	if !reflect.DeepEqual(cleaned, []string{sidB, sidC}) {
		t.Errorf("cleaned = %v", cleaned)
	}
}
