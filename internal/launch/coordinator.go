package launch

import (
	"context"
	"log/slog"
	"time"
)

// LaunchRecord describes a launch as it starts.
type LaunchRecord struct {
	ExecutionID string
	BatchID     string
	FlowID      string
	PlanPath    string
	Rounds      int
	Arguments   map[string]string
	Seq         int64
}

// RoundRecord describes a finished round.
type RoundRecord struct {
	ExecutionID string
	StageID     string
	Index       int
	Bindings    map[string]string
	Status      Status
	Duration    time.Duration
	Seq         int64
}

// Recorder keeps a history of launches. Recording failures are logged by
// the coordinator and never change a launch's outcome.
type Recorder interface {
	StartLaunch(ctx context.Context, rec LaunchRecord) error
	RecordRound(ctx context.Context, rec RoundRecord) error
	FinishLaunch(ctx context.Context, executionID string, status Status, seq int64) error
}

// Coordinator runs every round of a launch through a Launcher.
type Coordinator struct {
	Launcher Launcher
	Recorder Recorder    // optional
	IDs      IDGenerator // optional, defaults to UUIDv7Generator
	Clock    *Clock      // optional, stamps recorded events
	Logger   *slog.Logger
}

// Exec parses args, then runs the rounds in ascending order, stopping at the
// first one that does not succeed. It returns that round's exit code, 0 when
// every round succeeds, or ExitConfigError when args cannot be parsed, in
// which case no round runs.
func (c *Coordinator) Exec(ctx context.Context, args []string) int {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := c.Clock
	if clock == nil {
		clock = NewClockAt(0)
	}

	plan, err := Parse(args, c.IDs)
	if err != nil {
		log.Error("invalid launch configuration", "error", err)
		return ExitConfigError
	}
	log = log.With("execution_id", plan.ExecutionID)

	c.record(ctx, log, "start launch", func(ctx context.Context, r Recorder) error {
		return r.StartLaunch(ctx, LaunchRecord{
			ExecutionID: plan.ExecutionID,
			BatchID:     plan.BatchID,
			FlowID:      plan.FlowID,
			PlanPath:    plan.PlanPath,
			Rounds:      plan.Rounds(),
			Arguments:   plan.Arguments,
			Seq:         clock.Next(),
		})
	})

	status := c.run(ctx, log, clock, plan)

	c.record(ctx, log, "finish launch", func(ctx context.Context, r Recorder) error {
		return r.FinishLaunch(ctx, plan.ExecutionID, status, clock.Next())
	})
	log.Info("launch finished", "status", status, "rounds", plan.Rounds())
	return status.ExitCode()
}

func (c *Coordinator) run(ctx context.Context, log *slog.Logger, clock *Clock, plan *RoundPlan) Status {
	cursor := plan.Cursor()
	for cursor.HasNext() {
		rc, err := cursor.Advance()
		if err != nil {
			// HasNext was just true, so this is a cursor bug.
			log.Error("advancing rounds", "error", err)
			return StatusError
		}

		log.Info("round", "index", rc.Index, "total", rc.Total)
		start := time.Now()
		status := c.Launcher.Exec(ctx, rc)
		elapsed := time.Since(start)

		c.record(ctx, log, "record round", func(ctx context.Context, r Recorder) error {
			return r.RecordRound(ctx, RoundRecord{
				ExecutionID: rc.ExecutionID,
				StageID:     rc.StageID,
				Index:       rc.Index,
				Bindings:    rc.Bindings,
				Status:      status,
				Duration:    elapsed,
				Seq:         clock.Next(),
			})
		})

		if status != StatusSuccess {
			log.Warn("round failed", "index", rc.Index, "status", status)
			return status
		}
	}
	return StatusSuccess
}

// record runs fn against the recorder, if any. Recording uses a context
// that outlives cancellation so an interrupted launch is still recorded.
func (c *Coordinator) record(ctx context.Context, log *slog.Logger, what string, fn func(context.Context, Recorder) error) {
	if c.Recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), c.Recorder); err != nil {
		log.Warn(what, "error", err)
	}
}
