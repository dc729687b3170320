package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/dagbridge/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrJobHeader           = "E200" // batch or flow missing
	ErrDuplicateName       = "E201" // duplicate model, field, operator, or port
	ErrInvalidFieldType    = "E202" // unsupported data model field type
	ErrUnknownModel        = "E203" // port refers to an undeclared model
	ErrUnknownOperator     = "E204" // edge refers to an undeclared operator
	ErrUnknownPort         = "E205" // edge refers to an undeclared port
	ErrInvalidMovement     = "E206" // movement not allowed on an edge
	ErrInvalidKey          = "E207" // grouping key missing, misplaced, or unknown
	ErrModelMismatch       = "E208" // edge connects ports of different models
	ErrConflictingMovement = "E209" // one output port with two movements or keys
	ErrUnconnectedInput    = "E210" // input port without an incoming edge
	ErrCycle               = "E211" // operator graph is not acyclic
)

// FieldTypes are the data model field types the native engine understands.
var FieldTypes = []string{"string", "int", "long", "bool", "bytes", "date", "datetime", "decimal"}

// ValidationError represents a job validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the cross references of a compiled job.
// Returns all errors found (does not fail-fast).
func Validate(job *ir.Job) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(job.Batch) == "" {
		add(ErrJobHeader, "batch", "batch is required")
	}
	if strings.TrimSpace(job.Flow) == "" {
		add(ErrJobHeader, "flow", "flow is required")
	}

	models := make(map[string]ir.DataModel)
	for _, m := range job.Models {
		if _, dup := models[m.Name]; dup {
			add(ErrDuplicateName, "model."+m.Name, "duplicate model %q", m.Name)
		}
		models[m.Name] = m

		fields := make(map[string]bool)
		for _, f := range m.Fields {
			if fields[f.Name] {
				add(ErrDuplicateName, "model."+m.Name, "duplicate field %q", f.Name)
			}
			fields[f.Name] = true
			if !isValidFieldType(f.Type) {
				add(ErrInvalidFieldType, "model."+m.Name+"."+f.Name, "invalid type %q, must be one of %v", f.Type, FieldTypes)
			}
		}
	}

	ops := make(map[string]ir.Operator)
	for _, op := range job.Operators {
		field := "operator." + op.ID
		if _, dup := ops[op.ID]; dup {
			add(ErrDuplicateName, field, "duplicate operator %q", op.ID)
		}
		ops[op.ID] = op

		names := make(map[string]bool)
		for _, p := range append(append([]ir.Port{}, op.Inputs...), op.Outputs...) {
			if names[p.Name] {
				add(ErrDuplicateName, field, "duplicate port %q", p.Name)
			}
			names[p.Name] = true
			if _, ok := models[p.Model]; !ok {
				add(ErrUnknownModel, field+"."+p.Name, "unknown model %q", p.Model)
			}
		}
	}

	type sourceExchange struct {
		movement ir.Movement
		key      string
	}
	sources := make(map[ir.PortRef]sourceExchange)
	fed := make(map[ir.PortRef]bool)

	for i, e := range job.Edges {
		field := fmt.Sprintf("edge[%d]", i)

		from, fromOK := resolvePort(ops, e.From, false)
		if !fromOK {
			code := ErrUnknownPort
			if _, ok := ops[e.From.Operator]; !ok {
				code = ErrUnknownOperator
			}
			add(code, field+".from", "no output port %s", e.From)
		}
		to, toOK := resolvePort(ops, e.To, true)
		if !toOK {
			code := ErrUnknownPort
			if _, ok := ops[e.To.Operator]; !ok {
				code = ErrUnknownOperator
			}
			add(code, field+".to", "no input port %s", e.To)
		}
		fed[e.To] = true

		if e.Movement == ir.MovementNothing || !e.Movement.Valid() {
			add(ErrInvalidMovement, field+".movement", "movement %s cannot connect two ports", e.Movement)
		}

		if fromOK && toOK && from.Model != to.Model {
			add(ErrModelMismatch, field, "%s carries %s but %s expects %s", e.From, from.Model, e.To, to.Model)
		}

		switch {
		case e.Movement == ir.MovementScatterGather && len(e.Key) == 0:
			add(ErrInvalidKey, field+".key", "scatter_gather requires a grouping key")
		case e.Movement != ir.MovementScatterGather && len(e.Key) > 0:
			add(ErrInvalidKey, field+".key", "grouping key is only allowed with scatter_gather")
		case fromOK:
			if m, ok := models[from.Model]; ok {
				for _, k := range e.Key {
					if !m.HasField(strings.TrimLeft(k, "+-")) {
						add(ErrInvalidKey, field+".key", "model %s has no field %q", m.Name, k)
					}
				}
			}
		}

		cur := sourceExchange{movement: e.Movement, key: strings.Join(e.Key, ",")}
		if prev, seen := sources[e.From]; seen && prev != cur {
			add(ErrConflictingMovement, field, "output %s is already exchanged as %s", e.From, prev.movement)
		} else if !seen {
			sources[e.From] = cur
		}
	}

	for _, op := range job.Operators {
		for _, p := range op.Inputs {
			ref := ir.PortRef{Operator: op.ID, Port: p.Name}
			if !fed[ref] {
				add(ErrUnconnectedInput, "operator."+op.ID+"."+p.Name, "input %s has no incoming edge", ref)
			}
		}
	}

	for _, cycle := range FindCycles(job) {
		add(ErrCycle, "edge", "operator cycle: %s", strings.Join(cycle, " → "))
	}

	return errs
}

func resolvePort(ops map[string]ir.Operator, ref ir.PortRef, input bool) (ir.Port, bool) {
	op, ok := ops[ref.Operator]
	if !ok {
		return ir.Port{}, false
	}
	if input {
		return op.Input(ref.Port)
	}
	return op.Output(ref.Port)
}

func isValidFieldType(t string) bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}
