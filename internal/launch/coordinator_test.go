package launch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns statuses by round index; unlisted rounds succeed.
type scripted struct {
	mu       sync.Mutex
	statuses map[int]Status
	calls    []RoundConfig
}

func (s *scripted) Exec(_ context.Context, rc RoundConfig) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rc)
	if st, ok := s.statuses[rc.Index]; ok {
		return st
	}
	return StatusSuccess
}

func (s *scripted) indices() []int {
	var out []int
	for _, rc := range s.calls {
		out = append(out, rc.Index)
	}
	return out
}

type memoryRecorder struct {
	launches []LaunchRecord
	rounds   []RoundRecord
	finished map[string]Status
	finalSeq int64
	failWith error
}

func (r *memoryRecorder) StartLaunch(_ context.Context, rec LaunchRecord) error {
	r.launches = append(r.launches, rec)
	return r.failWith
}

func (r *memoryRecorder) RecordRound(_ context.Context, rec RoundRecord) error {
	r.rounds = append(r.rounds, rec)
	return r.failWith
}

func (r *memoryRecorder) FinishLaunch(_ context.Context, id string, status Status, seq int64) error {
	if r.finished == nil {
		r.finished = make(map[string]Status)
	}
	r.finished[id] = status
	r.finalSeq = seq
	return r.failWith
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func threeRounds() []string {
	return baseArgs("--execution-id", "exec-1", "--rounds", "3")
}

func TestCoordinator_AllRoundsSucceed(t *testing.T) {
	launcher := &scripted{}
	c := &Coordinator{Launcher: launcher, Logger: quietLogger()}

	code := c.Exec(context.Background(), threeRounds())

	assert.Equal(t, 0, code)
	assert.Equal(t, []int{1, 2, 3}, launcher.indices())
}

func TestCoordinator_ShortCircuit(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[int]Status
		wantCode int
		wantRuns []int
	}{
		{"error in round 2", map[int]Status{2: StatusError}, 1, []int{1, 2}},
		{"error in round 1", map[int]Status{1: StatusError, 2: StatusError}, 1, []int{1}},
		{"interrupted in round 3", map[int]Status{3: StatusInterrupted}, 2, []int{1, 2, 3}},
		{"interrupted in round 2", map[int]Status{2: StatusInterrupted, 3: StatusError}, 2, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &scripted{statuses: tt.statuses}
			c := &Coordinator{Launcher: launcher, Logger: quietLogger()}

			code := c.Exec(context.Background(), threeRounds())

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantRuns, launcher.indices())
		})
	}
}

func TestCoordinator_ConfigError(t *testing.T) {
	launcher := &scripted{}
	recorder := &memoryRecorder{}
	c := &Coordinator{Launcher: launcher, Recorder: recorder, Logger: quietLogger()}

	code := c.Exec(context.Background(), baseArgs("--rounds", "0"))

	assert.Equal(t, ExitConfigError, code)
	assert.Empty(t, launcher.calls)
	assert.Empty(t, recorder.launches)
}

func TestCoordinator_RoundConfigs(t *testing.T) {
	launcher := &scripted{}
	c := &Coordinator{Launcher: launcher, IDs: NewFixedGenerator("exec-7"), Logger: quietLogger()}

	code := c.Exec(context.Background(), baseArgs("-A", "date=d1", "-I", "part=a,b"))
	require.Equal(t, 0, code)
	require.Len(t, launcher.calls, 2)

	for i, rc := range launcher.calls {
		assert.Equal(t, "exec-7", rc.ExecutionID)
		assert.Equal(t, i+1, rc.Index)
		assert.Equal(t, 2, rc.Total)
		assert.Equal(t, "d1", rc.Arguments["date"])
	}
	assert.Equal(t, "main.round1", launcher.calls[0].StageID)
	assert.Equal(t, "a", launcher.calls[0].Arguments["part"])
	assert.Equal(t, "b", launcher.calls[1].Arguments["part"])
}

func TestCoordinator_Records(t *testing.T) {
	launcher := &scripted{statuses: map[int]Status{2: StatusError}}
	recorder := &memoryRecorder{}
	c := &Coordinator{Launcher: launcher, Recorder: recorder, Clock: NewClockAt(100), Logger: quietLogger()}

	code := c.Exec(context.Background(), threeRounds())
	require.Equal(t, 1, code)

	require.Len(t, recorder.launches, 1)
	assert.Equal(t, LaunchRecord{
		ExecutionID: "exec-1",
		BatchID:     "wordcount",
		FlowID:      "main",
		PlanPath:    "plan.json",
		Rounds:      3,
		Arguments:   map[string]string{},
		Seq:         101,
	}, recorder.launches[0])

	require.Len(t, recorder.rounds, 2)
	assert.Equal(t, StatusSuccess, recorder.rounds[0].Status)
	assert.Equal(t, int64(102), recorder.rounds[0].Seq)
	assert.Equal(t, "main.round2", recorder.rounds[1].StageID)
	assert.Equal(t, StatusError, recorder.rounds[1].Status)
	assert.Equal(t, int64(103), recorder.rounds[1].Seq)

	assert.Equal(t, map[string]Status{"exec-1": StatusError}, recorder.finished)
	assert.Equal(t, int64(104), recorder.finalSeq)
}

func TestCoordinator_RecorderFailureIgnored(t *testing.T) {
	launcher := &scripted{}
	recorder := &memoryRecorder{failWith: errors.New("disk full")}
	c := &Coordinator{Launcher: launcher, Recorder: recorder, Logger: quietLogger()}

	code := c.Exec(context.Background(), threeRounds())

	assert.Equal(t, 0, code)
	assert.Len(t, launcher.calls, 3)
}

func TestCoordinator_LogsRounds(t *testing.T) {
	var buf bytes.Buffer
	c := &Coordinator{
		Launcher: &scripted{},
		Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
	}

	code := c.Exec(context.Background(), threeRounds())
	require.Equal(t, 0, code)

	out := buf.String()
	assert.Contains(t, out, "msg=round execution_id=exec-1 index=1 total=3")
	assert.Contains(t, out, "msg=round execution_id=exec-1 index=3 total=3")
	assert.Contains(t, out, "msg=\"launch finished\" execution_id=exec-1 status=success rounds=3")
}

func TestCoordinator_CancelledContextStillRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	launcher := LauncherFunc(func(ctx context.Context, rc RoundConfig) Status {
		cancel()
		return StatusInterrupted
	})
	recorder := &memoryRecorder{}
	c := &Coordinator{Launcher: launcher, Recorder: recorder, Logger: quietLogger()}

	code := c.Exec(ctx, threeRounds())

	assert.Equal(t, 2, code)
	assert.Equal(t, map[string]Status{"exec-1": StatusInterrupted}, recorder.finished)
}
