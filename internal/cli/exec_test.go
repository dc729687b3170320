package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dagbridge/internal/launch"
	"github.com/roach88/dagbridge/internal/store"
)

// compileWordcount writes the wordcount plan to a temp file.
func compileWordcount(t *testing.T) string {
	t.Helper()
	planFile := filepath.Join(t.TempDir(), "plan.json")
	_, _, err := runCompileCmd(t, "text", wordcountDir, "-o", planFile)
	require.NoError(t, err)
	return planFile
}

func runExecCmd(t *testing.T, ctx context.Context, format string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewExecCommand(&RootOptions{Format: format})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestExecMockSucceeds(t *testing.T) {
	planFile := compileWordcount(t)

	out, err := runExecCmd(t, context.Background(), "text",
		"--mock", "--",
		"--batch-id", "wordcount", "--flow-id", "main", "--plan", planFile,
		"-I", "day=mon,tue,wed")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Launch succeeded")
}

func TestExecRecordsHistory(t *testing.T) {
	planFile := compileWordcount(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	for _, id := range []string{"exec-1", "exec-2"} {
		_, err := runExecCmd(t, context.Background(), "text",
			"--mock", "--db", dbPath, "--",
			"--batch-id", "wordcount", "--flow-id", "main", "--plan", planFile,
			"--execution-id", id, "-I", "day=mon,tue", "-A", "env=test")
		require.NoError(t, err)
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	launches, err := st.ReadLaunches(ctx, "wordcount")
	require.NoError(t, err)
	require.Len(t, launches, 2)
	assert.Equal(t, "exec-1", launches[0].ExecutionID)
	assert.Equal(t, "success", launches[0].StatusText())
	assert.Equal(t, map[string]string{"env": "test"}, launches[0].Arguments)
	assert.Less(t, launches[0].Seq, launches[1].Seq, "seq continues across launches")

	rounds, err := st.ReadRounds(ctx, "exec-2")
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "main.round1", rounds[0].StageID)
	assert.Equal(t, map[string]string{"day": "tue"}, rounds[1].Bindings)
}

func TestExecConfigError(t *testing.T) {
	out, err := runExecCmd(t, context.Background(), "json", "--mock", "--", "--flow-id", "main")
	require.Error(t, err)
	assert.Equal(t, launch.ExitConfigError, GetExitCode(err))

	var resp struct {
		Data ExecResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, launch.ExitConfigError, resp.Data.ExitCode)
	assert.Equal(t, "invalid configuration", resp.Data.Status)
}

func TestExecMissingPlanFile(t *testing.T) {
	out, err := runExecCmd(t, context.Background(), "text",
		"--mock", "--",
		"--batch-id", "b", "--flow-id", "f", "--plan", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, launch.StatusError.ExitCode(), GetExitCode(err))
	assert.Contains(t, out, "✗ Launch ended: error")
}

func TestExecWithoutEngine(t *testing.T) {
	planFile := compileWordcount(t)

	_, err := runExecCmd(t, context.Background(), "text", "--",
		"--batch-id", "wordcount", "--flow-id", "main", "--plan", planFile)
	require.Error(t, err)
	assert.Equal(t, launch.StatusError.ExitCode(), GetExitCode(err))
}

func TestExecInvalidEngineConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("command: [run]\nthreads: 4\n"), 0o644))

	out, err := runExecCmd(t, context.Background(), "text", "--engine-config", cfg, "--",
		"--batch-id", "b", "--flow-id", "f", "--plan", "plan.json")
	require.Error(t, err)
	assert.Equal(t, launch.ExitConfigError, GetExitCode(err))
	assert.Contains(t, out, "field threads not found")
}

func TestExecInterrupted(t *testing.T) {
	planFile := compileWordcount(t)
	cfg := filepath.Join(t.TempDir(), "engine.yaml")
	engine := fmt.Sprintf("command: [%q, \"-test.run=^$\"]\n", os.Args[0])
	require.NoError(t, os.WriteFile(cfg, []byte(engine), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := runExecCmd(t, ctx, "text", "--engine-config", cfg, "--",
		"--batch-id", "wordcount", "--flow-id", "main", "--plan", planFile, "--rounds", "3")
	require.Error(t, err)
	assert.Equal(t, launch.StatusInterrupted.ExitCode(), GetExitCode(err))
	assert.Contains(t, out, "✗ Launch ended: interrupted")
}

func TestExecUnusableDatabase(t *testing.T) {
	planFile := compileWordcount(t)
	dbPath := filepath.Join(t.TempDir(), "missing", "history.db")

	out, err := runExecCmd(t, context.Background(), "text", "--mock", "--db", dbPath, "--",
		"--batch-id", "wordcount", "--flow-id", "main", "--plan", planFile)
	require.Error(t, err)
	assert.Equal(t, launch.ExitConfigError, GetExitCode(err))
	assert.NotEqual(t, launch.StatusInterrupted.ExitCode(), GetExitCode(err))
	assert.Contains(t, out, ErrCodeStore)
}
