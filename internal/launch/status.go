package launch

import "fmt"

// Status is the outcome of one round, and of a whole launch.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusInterrupted
)

// ExitConfigError is the process exit code for a launch whose tokens could
// not be parsed. It is distinct from every Status exit code.
const ExitConfigError = 3

// ExitCode maps the status to its process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusInterrupted:
		return 2
	default:
		return 1
	}
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus parses the String form.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusSuccess, StatusError, StatusInterrupted} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}
