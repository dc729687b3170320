package testutil

import (
	"context"
	"sync"

	"github.com/roach88/dagbridge/internal/launch"
)

// ScriptedLauncher stands in for the native engine. Each round reports the
// status scripted for its index; unscripted rounds succeed.
//
// Thread-safety: Exec and Calls are safe for concurrent use.
type ScriptedLauncher struct {
	mu       sync.Mutex
	statuses map[int]launch.Status
	calls    []launch.RoundConfig
}

var _ launch.Launcher = (*ScriptedLauncher)(nil)

// NewScriptedLauncher creates a launcher with statuses keyed by 1-based
// round index.
func NewScriptedLauncher(statuses map[int]launch.Status) *ScriptedLauncher {
	return &ScriptedLauncher{statuses: statuses}
}

// Exec records the round and returns its scripted status.
func (l *ScriptedLauncher) Exec(_ context.Context, rc launch.RoundConfig) launch.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, rc)
	if st, ok := l.statuses[rc.Index]; ok {
		return st
	}
	return launch.StatusSuccess
}

// Calls returns the rounds executed so far, in order.
func (l *ScriptedLauncher) Calls() []launch.RoundConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]launch.RoundConfig, len(l.calls))
	copy(out, l.calls)
	return out
}
