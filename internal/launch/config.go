package launch

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// ConfigError reports launch tokens that cannot describe a launch.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "launch configuration: " + e.Message
	}
	return fmt.Sprintf("launch configuration: %s: %s", e.Field, e.Message)
}

// Iteration is one iteration variable and the values it takes per round.
// A single value applies to every round.
type Iteration struct {
	Name   string
	Values []string
}

// RoundPlan is a parsed launch: the base configuration shared by all rounds
// plus the iteration variables that differ between them. Round
// configurations are resolved on demand by a Cursor.
type RoundPlan struct {
	BatchID      string
	FlowID       string
	ExecutionID  string
	PlanPath     string
	EngineConfig string
	Arguments    map[string]string
	Iterations   []Iteration

	rounds int
}

// Rounds returns the total number of rounds, always at least one.
func (p *RoundPlan) Rounds() int {
	return p.rounds
}

// Cursor returns a fresh cursor positioned before the first round.
func (p *RoundPlan) Cursor() *Cursor {
	return &Cursor{plan: p, next: 1}
}

// Round resolves the configuration of the round with the given 1-based index.
func (p *RoundPlan) Round(index int) RoundConfig {
	bindings := make(map[string]string, len(p.Iterations))
	for _, it := range p.Iterations {
		if len(it.Values) == 1 {
			bindings[it.Name] = it.Values[0]
		} else {
			bindings[it.Name] = it.Values[index-1]
		}
	}

	args := maps.Clone(p.Arguments)
	if args == nil {
		args = make(map[string]string, len(bindings))
	}
	maps.Copy(args, bindings)

	return RoundConfig{
		BatchID:      p.BatchID,
		FlowID:       p.FlowID,
		ExecutionID:  p.ExecutionID,
		StageID:      fmt.Sprintf("%s.round%d", p.FlowID, index),
		PlanPath:     p.PlanPath,
		EngineConfig: p.EngineConfig,
		Index:        index,
		Total:        p.rounds,
		Arguments:    args,
		Bindings:     bindings,
	}
}

// RoundConfig is the fully resolved configuration of one round.
type RoundConfig struct {
	BatchID      string
	FlowID       string
	ExecutionID  string
	StageID      string
	PlanPath     string
	EngineConfig string

	// Index is 1-based; Total is the round count of the launch.
	Index int
	Total int

	// Arguments are the batch arguments overlaid with Bindings.
	Arguments map[string]string
	Bindings  map[string]string
}

// ArgumentKeys returns the argument keys in sorted order.
func (rc RoundConfig) ArgumentKeys() []string {
	return sortedKeys(rc.Arguments)
}

// Parse parses launch tokens into a RoundPlan.
//
// Recognized tokens:
//
//	--batch-id ID            required
//	--flow-id ID             required
//	--execution-id ID        generated by ids when absent
//	--plan PATH              required, compiled plan file
//	--engine-config PATH     engine configuration (YAML)
//	-A, --argument KEY=VALUE batch argument, repeatable
//	-I, --iteration NAME=V1,V2,...
//	                         iteration variable, repeatable
//	--rounds N               round count
//
// Without --rounds the round count is the longest iteration list, or 1.
// Every iteration list must have one value or exactly one value per round.
//
// All failures are returned as *ConfigError. A nil ids uses UUIDv7Generator.
func Parse(args []string, ids IDGenerator) (*RoundPlan, error) {
	if ids == nil {
		ids = UUIDv7Generator{}
	}

	fs := pflag.NewFlagSet("launch", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		plan       RoundPlan
		arguments  []string
		iterations []string
		rounds     int
	)
	fs.StringVar(&plan.BatchID, "batch-id", "", "batch id")
	fs.StringVar(&plan.FlowID, "flow-id", "", "flow id")
	fs.StringVar(&plan.ExecutionID, "execution-id", "", "execution id")
	fs.StringVar(&plan.PlanPath, "plan", "", "compiled plan file")
	fs.StringVar(&plan.EngineConfig, "engine-config", "", "engine configuration file")
	fs.StringArrayVarP(&arguments, "argument", "A", nil, "batch argument KEY=VALUE")
	fs.StringArrayVarP(&iterations, "iteration", "I", nil, "iteration variable NAME=V1,V2,...")
	fs.IntVar(&rounds, "rounds", 0, "round count")

	if err := fs.Parse(args); err != nil {
		return nil, &ConfigError{Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return nil, &ConfigError{Message: fmt.Sprintf("unexpected argument %q", fs.Arg(0))}
	}

	for _, req := range []struct{ field, value string }{
		{"batch-id", plan.BatchID},
		{"flow-id", plan.FlowID},
		{"plan", plan.PlanPath},
	} {
		if strings.TrimSpace(req.value) == "" {
			return nil, &ConfigError{Field: req.field, Message: "is required"}
		}
	}
	if plan.ExecutionID == "" {
		plan.ExecutionID = ids.Generate()
	}

	plan.Arguments = make(map[string]string, len(arguments))
	for _, a := range arguments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, &ConfigError{Field: "argument", Message: fmt.Sprintf("%q is not KEY=VALUE", a)}
		}
		plan.Arguments[key] = value
	}

	longest := 0
	seen := make(map[string]bool)
	for _, raw := range iterations {
		name, list, ok := strings.Cut(raw, "=")
		if !ok || name == "" || list == "" {
			return nil, &ConfigError{Field: "iteration", Message: fmt.Sprintf("%q is not NAME=V1,V2,...", raw)}
		}
		if seen[name] {
			return nil, &ConfigError{Field: "iteration", Message: fmt.Sprintf("variable %q given twice", name)}
		}
		seen[name] = true
		it := Iteration{Name: name, Values: strings.Split(list, ",")}
		plan.Iterations = append(plan.Iterations, it)
		longest = max(longest, len(it.Values))
	}

	switch {
	case fs.Changed("rounds"):
		if rounds < 1 {
			return nil, &ConfigError{Field: "rounds", Message: fmt.Sprintf("must be at least 1, got %d", rounds)}
		}
		plan.rounds = rounds
	case longest > 0:
		plan.rounds = longest
	default:
		plan.rounds = 1
	}

	for _, it := range plan.Iterations {
		if n := len(it.Values); n != 1 && n != plan.rounds {
			return nil, &ConfigError{
				Field:   "iteration",
				Message: fmt.Sprintf("variable %q has %d values for %d rounds", it.Name, n, plan.rounds),
			}
		}
	}

	return &plan, nil
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
