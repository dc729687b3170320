package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"hash": "abc"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"hash": "abc"}, resp.Data)
	assert.Nil(t, resp.Error)

	buf.Reset()
	require.NoError(t, formatter.Error(ErrCodePlan, "unsupported plan version", map[string]string{"file": "plan.json"}))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePlan, resp.Error.Code)
	assert.Equal(t, "unsupported plan version", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name       string
		verbose    bool
		wantDetail bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeNotFound, "job directory not found", "jobs/missing"))
			assert.Contains(t, buf.String(), "Error [E005]: job directory not found")
			if tt.wantDetail {
				assert.Contains(t, buf.String(), "Details: jobs/missing")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Lowered %d operator(s)", 4)
	assert.Empty(t, out.String())
	assert.Equal(t, "Lowered 4 operator(s)\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("dropped")
	assert.NotContains(t, errOut.String(), "dropped")
}

func TestOutputFormatter_GetErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	formatter := &OutputFormatter{Writer: out}
	assert.Same(t, out, formatter.GetErrWriter())

	errOut := &bytes.Buffer{}
	formatter.ErrWriter = errOut
	assert.Same(t, errOut, formatter.GetErrWriter())
}

func TestNewFormatter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := newFormatter(&RootOptions{Format: "json", Verbose: true}, cmd)
	assert.Equal(t, "json", f.Format)
	assert.True(t, f.Verbose)
	assert.Same(t, out, f.Writer)
	assert.Same(t, errOut, f.ErrWriter)
}

func TestGetExitCode(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit error", NewExitError(ExitCommandError, "bad path"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("compile: %w", WrapExitError(3, "launch", cause)), 3},
		{"plain error", cause, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "writing plan", cause)

	assert.Equal(t, "writing plan: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad path", NewExitError(ExitCommandError, "bad path").Error())
}
