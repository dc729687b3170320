package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dagbridge/internal/compiler"
)

// ValidationResult is the JSON payload of a successful validate.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Batch     string `json:"batch"`
	Flow      string `json:"flow"`
	Models    int    `json:"models"`
	Operators int    `json:"operators"`
	Edges     int    `json:"edges"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <job-dir>",
		Short: "Validate a CUE job without generating a plan",
		Long: `Validate a CUE job description without generating a plan.

Checks the job's shape, its model, operator, and port references, edge
movements and grouping keys, and that the operator graph is acyclic.
Every problem found is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, jobDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, err := LoadJob(jobDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, jobDir)

	job := loadResult.Job
	if errs := compiler.Validate(job); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	result := &ValidationResult{
		Valid:     true,
		Batch:     job.Batch,
		Flow:      job.Flow,
		Models:    len(job.Models),
		Operators: len(job.Operators),
		Edges:     len(job.Edges),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s.%s is valid: %d model(s), %d operator(s), %d edge(s)\n",
		result.Batch, result.Flow, result.Models, result.Operators, result.Edges)
	return nil
}
