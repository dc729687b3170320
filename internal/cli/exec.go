package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dagbridge/internal/launch"
	"github.com/roach88/dagbridge/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	DBPath       string
	EngineConfig string
	Mock         bool
	GracePeriod  time.Duration
}

// ExecResult is the JSON payload written when a launch ends.
type ExecResult struct {
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec [flags] -- <launch-args>",
		Short: "Launch a compiled plan round by round",
		Long: `Launch a compiled plan on the native engine, one round at a time.

Launch arguments follow "--":

  --batch-id ID --flow-id ID --plan FILE   (required)
  --execution-id ID                        (generated when omitted)
  --engine-config FILE                     per-launch engine configuration
  -A KEY=VALUE                             batch argument, repeatable
  -I NAME=V1,V2,...                        iteration variable, repeatable
  --rounds N

Rounds run in order and the launch stops at the first round that does not
succeed. The exit code is 0 on success, 1 when a round fails, 2 when a round
is interrupted, and 3 when the launch cannot start: invalid launch
arguments, an unreadable engine configuration, or an unusable --db.`,
		Example: `  dagbridge exec --mock -- --batch-id wordcount --flow-id main --plan plan.json -I day=mon,tue`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "record the launch in this history database")
	cmd.Flags().StringVar(&opts.EngineConfig, "engine-config", "", "default engine configuration (YAML)")
	cmd.Flags().BoolVar(&opts.Mock, "mock", false, "report every round as successful without starting the engine")
	cmd.Flags().DurationVar(&opts.GracePeriod, "grace-period", launch.DefaultGracePeriod, "time an interrupted engine gets to exit before it is killed")

	return cmd
}

func runExec(opts *ExecOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	engine, err := defaultEngine(opts)
	if err != nil {
		return outputExecSetupError(formatter, ErrCodeGeneric, "engine configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, interrupting launch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	coord := &launch.Coordinator{
		Launcher: &launch.ProcessLauncher{
			Engine:      engine,
			Stdout:      cmd.OutOrStdout(),
			Stderr:      cmd.ErrOrStderr(),
			GracePeriod: opts.GracePeriod,
		},
		Logger: slog.Default(),
	}

	if opts.DBPath != "" {
		st, err := store.Open(opts.DBPath)
		if err != nil {
			return outputExecSetupError(formatter, ErrCodeStore, "history database", err)
		}
		defer st.Close()

		seq, err := st.LastSeq(ctx)
		if err != nil {
			return outputExecSetupError(formatter, ErrCodeStore, "history database", err)
		}
		coord.Recorder = st
		coord.Clock = launch.NewClockAt(seq)
	}

	code := coord.Exec(ctx, args)
	result := ExecResult{Status: exitStatusName(code), ExitCode: code}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if code == 0 {
		fmt.Fprintln(formatter.Writer, "✓ Launch succeeded")
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Launch ended: %s\n", result.Status)
	}

	if code != 0 {
		return NewExitError(code, fmt.Sprintf("launch ended: %s", result.Status))
	}
	return nil
}

// outputExecSetupError reports a failure before any round runs. It exits
// with launch.ExitConfigError so it cannot be mistaken for a round status.
func outputExecSetupError(formatter *OutputFormatter, code, what string, err error) error {
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(launch.ExitConfigError, what, err)
}

// defaultEngine returns the engine configuration used by rounds that do not
// name their own. nil means every round must name one.
func defaultEngine(opts *ExecOptions) (*launch.EngineConfig, error) {
	switch {
	case opts.Mock:
		return &launch.EngineConfig{Mock: true}, nil
	case opts.EngineConfig != "":
		return launch.LoadEngineConfig(opts.EngineConfig)
	default:
		return nil, nil
	}
}

func exitStatusName(code int) string {
	switch code {
	case launch.ExitConfigError:
		return "invalid configuration"
	case launch.StatusSuccess.ExitCode():
		return launch.StatusSuccess.String()
	case launch.StatusInterrupted.ExitCode():
		return launch.StatusInterrupted.String()
	default:
		return launch.StatusError.String()
	}
}
