package core

import (
	"context"
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// Stage titles, in execution order.
const (
	StageResolve   = "Fetch Flex resources"
	StageDetect    = "Find stale chat sessions"
	StageRemediate = "Clean up stale sessions"
)

// Run accumulates what each stage learned. Stages receive it by value and
// return the updated copy.
type Run struct {
	ID           string             `json:"id"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	DryRun       bool               `json:"dry_run"`
	Services     ServiceTriple      `json:"services"`
	TaskCount    int                `json:"task_count"`
	SessionCount int                `json:"session_count"`
	Orphans      []string           `json:"orphans"`
	Remediation  *RemediationResult `json:"remediation,omitempty"`
	SkipReason   string             `json:"skip_reason,omitempty"`
}

// Updated returns the number of channels written, zero when remediation
// did not run.
func (r *Run) Updated() int {
	if r.Remediation == nil {
		return 0
	}
	return r.Remediation.Updated
}

// Pipeline resolves the Flex services, finds orphaned channels and cleans
// them up.
type Pipeline struct {
	API      FlexAPI
	Names    ServiceNames
	Runner   Runner
	Reporter Reporter
	DryRun   bool
}

type stage struct {
	title string
	skip  func(Run) string
	run   func(ctx context.Context, run Run) (Run, error)
}

// Run executes the stages in order. A failing stage stops the pipeline; the
// partial run is returned together with a *StageError.
func (p *Pipeline) Run(ctx context.Context) (*Run, error) {
	rep := reporterOrNop(p.Reporter)
	id, err := nanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 10)
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	run := Run{ID: "run-" + id, StartedAt: time.Now().UTC(), DryRun: p.DryRun}
	logger := log.With().Str("run_id", run.ID).Logger()

	for _, st := range p.stages() {
		rep.Status(st.title)
		if st.skip != nil {
			if reason := st.skip(run); reason != "" {
				run.SkipReason = reason
				rep.Status(reason)
				logger.Info().Str("stage", st.title).Str("reason", reason).Msg("Stage skipped")
				continue
			}
		}
		start := time.Now()
		run, err = st.run(ctx, run)
		if err != nil {
			run.FinishedAt = time.Now().UTC()
			logger.Error().Err(err).Str("stage", st.title).Msg("Stage failed")
			return &run, &StageError{Stage: st.title, Err: err}
		}
		logger.Debug().Str("stage", st.title).Dur("took", time.Since(start)).Msg("Stage finished")
	}
	run.FinishedAt = time.Now().UTC()
	return &run, nil
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{
			title: StageResolve,
			run: func(ctx context.Context, run Run) (Run, error) {
				services, err := LocateServices(ctx, p.API, p.Names)
				if err != nil {
					return run, err
				}
				run.Services = services
				return run, nil
			},
		},
		{
			title: StageDetect,
			run: func(ctx context.Context, run Run) (Run, error) {
				det, err := FindOrphanedChannels(ctx, p.API, run.Services)
				if err != nil {
					return run, err
				}
				run.TaskCount = det.TaskCount
				run.SessionCount = det.SessionCount
				run.Orphans = det.Orphans
				reporterOrNop(p.Reporter).Status(det.Message)
				return run, nil
			},
		},
		{
			title: StageRemediate,
			skip: func(run Run) string {
				switch {
				case len(run.Orphans) == 0:
					return "No stale chat sessions found!"
				case run.DryRun:
					return fmt.Sprintf("Dry run: %d channel(s) left untouched", len(run.Orphans))
				}
				return ""
			},
			run: func(ctx context.Context, run Run) (Run, error) {
				rem := &Remediator{API: p.API, Runner: p.Runner, Reporter: p.Reporter}
				res, err := rem.CleanupChannels(ctx, run.Services.ChatServiceSID, run.Orphans)
				run.Remediation = res
				return run, err
			},
		},
	}
}
