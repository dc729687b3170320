package launch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode"
)

// Launcher executes one round and reports its outcome.
type Launcher interface {
	Exec(ctx context.Context, rc RoundConfig) Status
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, rc RoundConfig) Status

// Exec calls f.
func (f LauncherFunc) Exec(ctx context.Context, rc RoundConfig) Status {
	return f(ctx, rc)
}

// DefaultGracePeriod is how long an interrupted engine may take to exit
// before it is killed.
const DefaultGracePeriod = 10 * time.Second

// Environment variables set for every engine process.
const (
	EnvRoundIndex = "DAGBRIDGE_ROUND_INDEX"
	EnvRoundTotal = "DAGBRIDGE_ROUND_TOTAL"
	EnvArgPrefix  = "DAGBRIDGE_ARG_"
)

// ProcessLauncher runs each round as a native engine process.
//
// The engine configuration comes from the round's EngineConfig path when
// set, otherwise from Engine. Problems found only at this point (unreadable
// engine config, missing plan file, a command that cannot start) fail the
// round with StatusError.
type ProcessLauncher struct {
	Engine      *EngineConfig
	Stdout      io.Writer
	Stderr      io.Writer
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// Exec implements Launcher.
func (l *ProcessLauncher) Exec(ctx context.Context, rc RoundConfig) Status {
	log := l.logger().With("stage_id", rc.StageID)

	cfg, err := l.engineConfig(rc)
	if err != nil {
		log.Error("engine configuration", "error", err)
		return StatusError
	}
	if _, err := os.Stat(rc.PlanPath); err != nil {
		log.Error("plan file", "error", err)
		return StatusError
	}
	if cfg.Mock {
		log.Info("mock engine, round not executed", "round", rc.Index)
		return StatusSuccess
	}

	cmd := l.Command(ctx, cfg, rc)
	log.Debug("starting engine", "argv", cmd.Args, "dir", cmd.Dir)

	err = cmd.Run()
	status := StatusForError(ctx, err)
	if status != StatusSuccess {
		log.Warn("engine exited", "status", status, "error", err)
	}
	return status
}

func (l *ProcessLauncher) engineConfig(rc RoundConfig) (*EngineConfig, error) {
	if rc.EngineConfig != "" {
		return LoadEngineConfig(rc.EngineConfig)
	}
	if l.Engine == nil {
		return nil, errors.New("no engine configured")
	}
	if err := l.Engine.Validate(); err != nil {
		return nil, err
	}
	return l.Engine, nil
}

func (l *ProcessLauncher) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Command resolves the engine invocation for a round without starting it.
// On cancellation the process gets SIGINT, and is killed if it is still
// running after the grace period.
func (l *ProcessLauncher) Command(ctx context.Context, cfg *EngineConfig, rc RoundConfig) *exec.Cmd {
	argv := append(slices.Clone(cfg.Command[1:]), EngineArgs(rc)...)

	cmd := exec.CommandContext(ctx, cfg.Command[0], argv...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = append(os.Environ(), EngineEnv(cfg, rc)...)
	cmd.Stdout = l.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = l.GracePeriod
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultGracePeriod
	}
	return cmd
}

// EngineArgs returns the tokens passed to the engine after its configured
// command. Arguments follow in key order so invocations are reproducible.
func EngineArgs(rc RoundConfig) []string {
	args := []string{
		"--batch-id", rc.BatchID,
		"--flow-id", rc.FlowID,
		"--execution-id", rc.ExecutionID,
		"--stage-id", rc.StageID,
		"--round", strconv.Itoa(rc.Index),
		"--plan", rc.PlanPath,
	}
	for _, k := range rc.ArgumentKeys() {
		args = append(args, "-A", k+"="+rc.Arguments[k])
	}
	return args
}

// EngineEnv returns the variables added to the engine's environment: the
// configured ones in key order, then the round variables.
func EngineEnv(cfg *EngineConfig, rc RoundConfig) []string {
	var env []string
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}

	env = append(env,
		EnvRoundIndex+"="+strconv.Itoa(rc.Index),
		EnvRoundTotal+"="+strconv.Itoa(rc.Total),
	)
	for _, k := range rc.ArgumentKeys() {
		env = append(env, EnvArgPrefix+envName(k)+"="+rc.Arguments[k])
	}
	return env
}

// envName upper-cases key and replaces anything but letters and digits with '_'.
func envName(key string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, key)
}

// StatusForError maps the result of running an engine process to a Status.
//
// Cancellation of ctx, and termination by SIGINT or SIGTERM (directly or as
// the shell's 128+signal exit code), count as interrupted.
func StatusForError(ctx context.Context, err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if ctx.Err() != nil {
		return StatusInterrupted
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return StatusError
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return StatusError
	}
	if ws.Signaled() {
		return statusForSignal(ws.Signal())
	}
	if code := ws.ExitStatus(); code > 128 {
		return statusForSignal(syscall.Signal(code - 128))
	}
	return StatusError
}

func statusForSignal(sig syscall.Signal) Status {
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		return StatusInterrupted
	}
	return StatusError
}
