package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dagbridge/internal/codegen"
	"github.com/roach88/dagbridge/internal/compiler"
	"github.com/roach88/dagbridge/internal/ir"
	"github.com/roach88/dagbridge/internal/lowering"
	"github.com/roach88/dagbridge/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // plan file path
	UnitsDir string // directory for generated unit descriptors
	DBPath   string // history database; the plan is recorded when set
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	Batch     string `json:"batch"`
	Flow      string `json:"flow"`
	Hash      string `json:"hash"`
	Vertices  int    `json:"vertices"`
	Exchanges int    `json:"exchanges"`
	Units     int    `json:"units"`
	Output    string `json:"output,omitempty"`
	UnitsDir  string `json:"units_dir,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <job-dir>",
		Short: "Compile a CUE job into an execution plan",
		Long: `Compile a CUE job description into an execution plan for the native engine.

The job is validated first. Each operator is lowered to a generated execution
unit; structurally identical operators share one unit. The plan is written as
JSON and can be recorded in the history database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "plan file path")
	cmd.Flags().StringVar(&opts.UnitsDir, "units", "", "write generated unit descriptors to this directory")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "record the plan in this history database")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, jobDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadJob(jobDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, jobDir)

	job := loadResult.Job
	if errs := compiler.Validate(job); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	session := codegen.NewMemorySession(codegen.NewModelIndex(job.Models))
	plan, err := lowering.Lower(codegen.NewContext(session), job)
	if err != nil {
		return outputCommandError(formatter, ErrCodeLowering, fmt.Sprintf("generating plan: %v", err))
	}
	formatter.VerboseLog("Lowered %d operator(s) to %d unit(s)", len(plan.Vertices), len(plan.Units))

	if opts.Output != "" {
		if err := writePlanFile(plan, opts.Output); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
		}
	}
	if opts.UnitsDir != "" {
		if err := session.Export(opts.UnitsDir); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
		}
	}
	if opts.DBPath != "" {
		if err := recordPlan(ctx, opts.DBPath, plan); err != nil {
			return outputCommandError(formatter, ErrCodeStore, err.Error())
		}
	}

	result := &CompilationResult{
		Batch:     plan.Batch,
		Flow:      plan.Flow,
		Hash:      plan.Hash,
		Vertices:  len(plan.Vertices),
		Exchanges: len(plan.Exchanges),
		Units:     len(plan.Units),
		Output:    opts.Output,
		UnitsDir:  opts.UnitsDir,
	}
	return outputCompileSuccess(formatter, result, plan)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, plan *ir.ExecutionPlan) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s.%s: %d vertex(es), %d exchange(s), %d unit(s)\n\n",
		result.Batch, result.Flow, result.Vertices, result.Exchanges, result.Units)

	fmt.Fprintln(w, "Units:")
	for _, u := range plan.Units {
		fmt.Fprintf(w, "  %s (%s)\n", u.Name, u.Category)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Plan hash: %s\n", result.Hash)

	if result.Output != "" {
		fmt.Fprintf(w, "Wrote plan to %s\n", result.Output)
	}
	if result.UnitsDir != "" {
		fmt.Fprintf(w, "Wrote units to %s\n", result.UnitsDir)
	}
	return nil
}

// outputLoadError reports a LoadJob failure. Shape errors in the job are
// validation failures; everything else is a command error.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	var details any
	if loadErr.Pos.IsValid() {
		details = fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, details)

	if isShapeError(loadErr.Code) {
		return WrapExitError(ExitFailure, "job is invalid", loadErr)
	}
	return WrapExitError(ExitCommandError, "loading job", loadErr)
}

func isShapeError(code string) bool {
	switch code {
	case ErrCodeJobHeader, ErrCodeOperator, ErrCodePort, ErrCodeAttribute,
		ErrCodeEdge, ErrCodeModel, ErrCodeCUEStructure, ErrCodeBuildFailed:
		return true
	}
	return false
}

func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors reports every validation error and fails with
// ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		first := CLIError{Code: errs[0].Code, Message: errs[0].Message, Details: errs}
		if err := encodeJSON(formatter.Writer, CLIResponse{Status: "error", Error: &first}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Validation failed with %d error(s)\n\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func writePlanFile(plan *ir.ExecutionPlan, path string) error {
	data, err := ir.EncodePlan(plan)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing plan file: %w", err)
	}
	return nil
}

func recordPlan(ctx context.Context, dbPath string, plan *ir.ExecutionPlan) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.WritePlan(ctx, plan)
}
