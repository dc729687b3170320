package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dagbridge/internal/compiler"
	"github.com/roach88/dagbridge/internal/ir"
)

// LoadResult contains a job loaded from a directory.
type LoadResult struct {
	Job       *ir.Job
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during job loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadJob loads the CUE package in dir and compiles it into a job.
// Every failure is a *LoadError. Cross references are not checked; see
// compiler.Validate.
func LoadJob(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("job directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing job directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	job, err := compiler.CompileJob(value)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{Job: job, CUEValue: value, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles returns the .cue files directly in dir. Subdirectories are
// separate CUE packages and are not part of the job.
func FindCUEFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
// Job validation codes (E2xx) are defined by the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // History database error
	ErrCodePlan        = "E009" // Plan file unreadable or invalid
	ErrCodeLowering    = "E010" // Plan generation failed

	// Job shape errors
	ErrCodeJobHeader    = "E101" // batch or flow missing
	ErrCodeOperator     = "E102" // operator malformed
	ErrCodePort         = "E103" // port malformed
	ErrCodeAttribute    = "E104" // attribute value not allowed (e.g., float)
	ErrCodeEdge         = "E105" // edge malformed
	ErrCodeModel        = "E106" // data model malformed
	ErrCodeCUEStructure = "E107" // CUE value has the wrong structure
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "batch", "flow":
		return ErrCodeJobHeader
	case "operator", "kind":
		return ErrCodeOperator
	case "input", "output":
		return ErrCodePort
	case "attributes":
		return ErrCodeAttribute
	case "edge", "from", "to", "movement", "key":
		return ErrCodeEdge
	case "model":
		return ErrCodeModel
	case "cue":
		return ErrCodeCUEStructure
	default:
		return ErrCodeGeneric
	}
}
