package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/roach88/dagbridge/internal/ir"
	"github.com/roach88/dagbridge/internal/launch"
	"github.com/roach88/dagbridge/internal/testutil"
)

func TestWritePlan_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	plan := testutil.Plan("abc")

	if err := s.WritePlan(ctx, plan); err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	// Same content, same hash: no-op.
	if err := s.WritePlan(ctx, plan); err != nil {
		t.Fatalf("second WritePlan() failed: %v", err)
	}

	got, err := s.ReadPlan(ctx, "abc")
	if err != nil {
		t.Fatalf("ReadPlan() failed: %v", err)
	}
	if !reflect.DeepEqual(got, plan) {
		t.Errorf("ReadPlan() = %+v, want %+v", got, plan)
	}

	plans, err := s.ListPlans(ctx)
	if err != nil {
		t.Fatalf("ListPlans() failed: %v", err)
	}
	want := []PlanSummary{{Hash: "abc", Batch: "wordcount", Flow: "main", Version: ir.PlanVersion, Units: 2}}
	if !reflect.DeepEqual(plans, want) {
		t.Errorf("ListPlans() = %+v, want %+v", plans, want)
	}
}

func TestWritePlan_RequiresHash(t *testing.T) {
	s := openTestStore(t)
	if err := s.WritePlan(context.Background(), testutil.Plan("")); err == nil {
		t.Fatal("WritePlan() accepted a plan without hash")
	}
}

func TestReadPlan_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadPlan(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadPlan() error = %v, want ErrNotFound", err)
	}
}

func TestListPlans_EmptyAndOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	plans, err := s.ListPlans(ctx)
	if err != nil {
		t.Fatalf("ListPlans() failed: %v", err)
	}
	if plans == nil || len(plans) != 0 {
		t.Fatalf("ListPlans() = %#v, want empty non-nil slice", plans)
	}

	for _, h := range []string{"bbb", "aaa"} {
		if err := s.WritePlan(ctx, testutil.Plan(h)); err != nil {
			t.Fatalf("WritePlan(%s) failed: %v", h, err)
		}
	}
	plans, err = s.ListPlans(ctx)
	if err != nil {
		t.Fatalf("ListPlans() failed: %v", err)
	}
	if len(plans) != 2 || plans[0].Hash != "aaa" || plans[1].Hash != "bbb" {
		t.Errorf("ListPlans() = %+v, want aaa then bbb", plans)
	}
}

func TestLaunchHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.StartLaunch(ctx, launch.LaunchRecord{
		ExecutionID: "exec-1",
		BatchID:     "wordcount",
		FlowID:      "main",
		PlanPath:    "plan.json",
		Rounds:      2,
		Arguments:   map[string]string{"date": "2026-10-01"},
		Seq:         1,
	})
	if err != nil {
		t.Fatalf("StartLaunch() failed: %v", err)
	}

	launches, err := s.ReadLaunches(ctx, "")
	if err != nil {
		t.Fatalf("ReadLaunches() failed: %v", err)
	}
	if len(launches) != 1 || launches[0].StatusText() != "running" {
		t.Fatalf("ReadLaunches() = %+v, want one running launch", launches)
	}

	rounds := []launch.RoundRecord{
		{ExecutionID: "exec-1", StageID: "main.round1", Index: 1, Bindings: map[string]string{"part": "a"}, Status: launch.StatusSuccess, Duration: 1500 * time.Millisecond, Seq: 2},
		{ExecutionID: "exec-1", StageID: "main.round2", Index: 2, Bindings: map[string]string{"part": "b"}, Status: launch.StatusError, Duration: 20 * time.Millisecond, Seq: 3},
	}
	for _, r := range rounds {
		if err := s.RecordRound(ctx, r); err != nil {
			t.Fatalf("RecordRound(%d) failed: %v", r.Index, err)
		}
	}
	if err := s.FinishLaunch(ctx, "exec-1", launch.StatusError, 4); err != nil {
		t.Fatalf("FinishLaunch() failed: %v", err)
	}

	launches, err = s.ReadLaunches(ctx, "wordcount")
	if err != nil {
		t.Fatalf("ReadLaunches() failed: %v", err)
	}
	if len(launches) != 1 {
		t.Fatalf("ReadLaunches() returned %d launches, want 1", len(launches))
	}
	l := launches[0]
	if l.StatusText() != "error" || l.FinishedSeq != 4 || l.Rounds != 2 {
		t.Errorf("launch = %+v, want finished with error at seq 4", l)
	}
	if !reflect.DeepEqual(l.Arguments, map[string]string{"date": "2026-10-01"}) {
		t.Errorf("launch arguments = %v", l.Arguments)
	}

	got, err := s.ReadRounds(ctx, "exec-1")
	if err != nil {
		t.Fatalf("ReadRounds() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadRounds() returned %d rounds, want 2", len(got))
	}
	if got[0].Status != launch.StatusSuccess || got[0].Duration != 1500*time.Millisecond || got[0].Bindings["part"] != "a" {
		t.Errorf("round 1 = %+v", got[0])
	}
	if got[1].Status != launch.StatusError || got[1].StageID != "main.round2" {
		t.Errorf("round 2 = %+v", got[1])
	}

	other, err := s.ReadLaunches(ctx, "other-batch")
	if err != nil {
		t.Fatalf("ReadLaunches() failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ReadLaunches(other-batch) = %+v, want none", other)
	}

	seq, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 4 {
		t.Errorf("LastSeq() = %d, want 4", seq)
	}
}

func TestRecordRound_UnknownLaunch(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordRound(context.Background(), launch.RoundRecord{ExecutionID: "ghost", Index: 1, Status: launch.StatusSuccess})
	if err == nil {
		t.Fatal("RecordRound() accepted a round without launch")
	}
}

func TestFinishLaunch_UnknownLaunch(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishLaunch(context.Background(), "ghost", launch.StatusSuccess, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FinishLaunch() error = %v, want ErrNotFound", err)
	}
}

func TestLastSeq_Empty(t *testing.T) {
	s := openTestStore(t)
	seq, err := s.LastSeq(context.Background())
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("LastSeq() = %d, want 0", seq)
	}
}

// TestCoordinatorRecordsToStore runs a full launch against the store.
func TestCoordinatorRecordsToStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := &launch.Coordinator{
		Launcher: launch.LauncherFunc(func(context.Context, launch.RoundConfig) launch.Status {
			return launch.StatusSuccess
		}),
		Recorder: s,
		Clock:    launch.NewClockAt(10),
	}
	code := c.Exec(ctx, []string{
		"--batch-id", "wordcount", "--flow-id", "main", "--plan", "plan.json",
		"--execution-id", "exec-2", "-I", "part=a,b,c",
	})
	if code != 0 {
		t.Fatalf("Exec() = %d, want 0", code)
	}

	rounds, err := s.ReadRounds(ctx, "exec-2")
	if err != nil {
		t.Fatalf("ReadRounds() failed: %v", err)
	}
	if len(rounds) != 3 {
		t.Fatalf("ReadRounds() returned %d rounds, want 3", len(rounds))
	}
	for i, r := range rounds {
		if r.Index != i+1 || r.Seq != int64(12+i) {
			t.Errorf("round %d = %+v", i, r)
		}
	}

	seq, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 15 {
		t.Errorf("LastSeq() = %d, want 15", seq)
	}
}

func TestCoordinatorRecordsFailedLaunch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	launcher := testutil.NewScriptedLauncher(map[int]launch.Status{2: launch.StatusError})
	c := &launch.Coordinator{Launcher: launcher, Recorder: s}
	code := c.Exec(ctx, []string{
		"--batch-id", "wordcount", "--flow-id", "main", "--plan", "plan.json",
		"--execution-id", "exec-3", "--rounds", "4",
	})
	if code != launch.StatusError.ExitCode() {
		t.Fatalf("Exec() = %d, want %d", code, launch.StatusError.ExitCode())
	}
	if n := len(launcher.Calls()); n != 2 {
		t.Fatalf("launcher ran %d rounds, want 2", n)
	}

	rounds, err := s.ReadRounds(ctx, "exec-3")
	if err != nil {
		t.Fatalf("ReadRounds() failed: %v", err)
	}
	if len(rounds) != 2 || rounds[1].Status != launch.StatusError {
		t.Errorf("ReadRounds() = %+v, want success then error", rounds)
	}

	launches, err := s.ReadLaunches(ctx, "wordcount")
	if err != nil {
		t.Fatalf("ReadLaunches() failed: %v", err)
	}
	if len(launches) != 1 || launches[0].StatusText() != "error" || launches[0].Rounds != 4 {
		t.Errorf("ReadLaunches() = %+v, want one failed launch of 4 rounds", launches)
	}
}
