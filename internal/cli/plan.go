package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dagbridge/internal/inspect"
	"github.com/roach88/dagbridge/internal/ir"
	"github.com/roach88/dagbridge/internal/store"
)

// PlanOptions holds flags shared by the plan subcommands.
type PlanOptions struct {
	*RootOptions
	DBPath string // read the plan from this history database
	Hash   string // plan hash, with DBPath
	Kind   string // element kind filter for list
	Output string // output file for dot
}

// NewPlanCommand creates the plan command and its subcommands.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect a compiled plan",
		Long: `Inspect a compiled plan, read from a plan file or from the history
database by hash (--db and --hash).`,
	}
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "history database to read the plan from")
	cmd.PersistentFlags().StringVar(&opts.Hash, "hash", "", "plan hash (with --db)")

	list := &cobra.Command{
		Use:           "list [plan-file]",
		Short:         "List the vertices, exchanges, and units of a plan",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanList(opts, args, cmd)
		},
	}
	list.Flags().StringVar(&opts.Kind, "kind", "", "only list elements of this kind (vertex|exchange|unit)")

	dot := &cobra.Command{
		Use:           "dot [plan-file]",
		Short:         "Render a plan as a Graphviz digraph",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanDot(opts, args, cmd)
		},
	}
	dot.Flags().StringVarP(&opts.Output, "output", "o", "", "write the digraph to this file")

	cmd.AddCommand(list, dot)
	return cmd
}

func runPlanList(opts *PlanOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	switch opts.Kind {
	case "", inspect.KindVertex, inspect.KindExchange, inspect.KindUnit:
	default:
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid kind %q: must be vertex, exchange, or unit", opts.Kind))
	}

	plan, err := loadPlan(cmd.Context(), opts, args)
	if err != nil {
		return outputPlanError(formatter, err)
	}
	elems, err := inspect.List(plan)
	if err != nil {
		return outputCommandError(formatter, ErrCodePlan, err.Error())
	}
	elems = inspect.Filter(elems, opts.Kind)
	if elems == nil {
		elems = []inspect.Element{}
	}

	if formatter.Format == "json" {
		return formatter.Success(elems)
	}
	for _, e := range elems {
		writeElement(formatter.Writer, e)
	}
	return nil
}

func writeElement(w io.Writer, e inspect.Element) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %s", e.Kind, e.ID)
	for _, k := range sortedKeys(e.Attributes) {
		if e.Attributes[k] == "" {
			continue
		}
		fmt.Fprintf(&b, " %s=%s", k, e.Attributes[k])
	}
	fmt.Fprintln(w, b.String())
}

func runPlanDot(opts *PlanOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	plan, err := loadPlan(cmd.Context(), opts, args)
	if err != nil {
		return outputPlanError(formatter, err)
	}

	if opts.Output == "" {
		if err := inspect.WriteDOT(formatter.Writer, plan); err != nil {
			return outputCommandError(formatter, ErrCodePlan, err.Error())
		}
		return nil
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
	}
	if err := inspect.WriteDOT(f, plan); err != nil {
		f.Close()
		return outputCommandError(formatter, ErrCodePlan, err.Error())
	}
	if err := f.Close(); err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
	}
	formatter.VerboseLog("Wrote digraph to %s", opts.Output)
	return nil
}

// errPlanSource reports a missing or ambiguous plan source.
var errPlanSource = errors.New("give either a plan file or --db with --hash")

// loadPlan reads the plan named by args or by --db/--hash.
func loadPlan(ctx context.Context, opts *PlanOptions, args []string) (*ir.ExecutionPlan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	fromDB := opts.DBPath != "" || opts.Hash != ""

	switch {
	case len(args) == 1 && !fromDB:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		return ir.DecodePlan(data)
	case len(args) == 0 && opts.DBPath != "" && opts.Hash != "":
		st, err := store.Open(opts.DBPath)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.ReadPlan(ctx, opts.Hash)
	default:
		return nil, errPlanSource
	}
}

func outputPlanError(formatter *OutputFormatter, err error) error {
	switch {
	case errors.Is(err, errPlanSource):
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	case errors.Is(err, os.ErrNotExist), errors.Is(err, store.ErrNotFound):
		return outputCommandError(formatter, ErrCodeNotFound, err.Error())
	default:
		_ = formatter.Error(ErrCodePlan, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid plan", err)
	}
}
