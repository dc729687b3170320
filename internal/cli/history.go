package cli

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dagbridge/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DBPath      string
	BatchID     string
	ExecutionID string
	Plans       bool
}

// LaunchView is the JSON form of a stored launch.
type LaunchView struct {
	ExecutionID string            `json:"execution_id"`
	BatchID     string            `json:"batch_id"`
	FlowID      string            `json:"flow_id"`
	PlanPath    string            `json:"plan_path"`
	Rounds      int               `json:"rounds"`
	Arguments   map[string]string `json:"arguments,omitempty"`
	Status      string            `json:"status"`
	Seq         int64             `json:"seq"`
}

// RoundView is the JSON form of a stored round.
type RoundView struct {
	Index      int               `json:"index"`
	StageID    string            `json:"stage_id"`
	Bindings   map[string]string `json:"bindings,omitempty"`
	Status     string            `json:"status"`
	DurationMS int64             `json:"duration_ms"`
	Seq        int64             `json:"seq"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded launches, rounds, and plans",
		Long: `Show what the history database recorded.

Without options, lists every launch in the order it started. --batch limits
the list to one batch, --execution shows the rounds of one launch, and
--plans lists the compiled plans.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "history database path (required)")
	cmd.Flags().StringVar(&opts.BatchID, "batch", "", "only show launches of this batch")
	cmd.Flags().StringVar(&opts.ExecutionID, "execution", "", "show the rounds of this launch")
	cmd.Flags().BoolVar(&opts.Plans, "plans", false, "list compiled plans")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}
	defer st.Close()

	switch {
	case opts.Plans:
		return showPlans(ctx, formatter, st)
	case opts.ExecutionID != "":
		return showRounds(ctx, formatter, st, opts.ExecutionID)
	default:
		return showLaunches(ctx, formatter, st, opts.BatchID)
	}
}

func showPlans(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	plans, err := st.ListPlans(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}
	if formatter.Format == "json" {
		return formatter.Success(plans)
	}
	if len(plans) == 0 {
		fmt.Fprintln(formatter.Writer, "No plans recorded.")
		return nil
	}
	for _, p := range plans {
		fmt.Fprintf(formatter.Writer, "%s  %s.%s  %d unit(s)\n", shortHash(p.Hash), p.Batch, p.Flow, p.Units)
	}
	return nil
}

func showLaunches(ctx context.Context, formatter *OutputFormatter, st *store.Store, batchID string) error {
	launches, err := st.ReadLaunches(ctx, batchID)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}

	views := make([]LaunchView, 0, len(launches))
	for _, l := range launches {
		views = append(views, LaunchView{
			ExecutionID: l.ExecutionID,
			BatchID:     l.BatchID,
			FlowID:      l.FlowID,
			PlanPath:    l.PlanPath,
			Rounds:      l.Rounds,
			Arguments:   l.Arguments,
			Status:      l.StatusText(),
			Seq:         l.Seq,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "No launches recorded.")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(formatter.Writer, "%s  %s.%s  %d round(s)  %s%s\n",
			v.ExecutionID, v.BatchID, v.FlowID, v.Rounds, v.Status, formatBindings(v.Arguments))
	}
	return nil
}

func showRounds(ctx context.Context, formatter *OutputFormatter, st *store.Store, executionID string) error {
	rounds, err := st.ReadRounds(ctx, executionID)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}

	views := make([]RoundView, 0, len(rounds))
	for _, r := range rounds {
		views = append(views, RoundView{
			Index:      r.Index,
			StageID:    r.StageID,
			Bindings:   r.Bindings,
			Status:     r.Status.String(),
			DurationMS: r.Duration.Milliseconds(),
			Seq:        r.Seq,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintf(formatter.Writer, "No rounds recorded for %s.\n", executionID)
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(formatter.Writer, "%d  %s  %s  %dms%s\n", v.Index, v.StageID, v.Status, v.DurationMS, formatBindings(v.Bindings))
	}
	return nil
}

func formatBindings(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, k+"="+m[k])
	}
	return "  " + strings.Join(parts, " ")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
