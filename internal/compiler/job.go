package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dagbridge/internal/ir"
)

// CompileJob parses a CUE value into a Job.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The value is the whole job description:
//
//	batch: "wordcount"
//	flow:  "main"
//	model: Word: {word: "string", count: "int"}
//	operator: count: {
//		kind: "group"
//		input: in: "Word"
//		output: out: "Word"
//		attributes: order: ["+word"]
//	}
//	edge: [{from: "split.out", to: "count.in", movement: "scatter_gather", key: ["word"]}]
//
// CompileJob only checks shape. Cross references are checked by Validate.
func CompileJob(v cue.Value) (*ir.Job, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	job := &ir.Job{}
	var err error

	if job.Batch, err = requiredString(v, "batch"); err != nil {
		return nil, err
	}
	if job.Flow, err = requiredString(v, "flow"); err != nil {
		return nil, err
	}

	if job.Models, err = parseModels(v); err != nil {
		return nil, err
	}
	if job.Operators, err = parseOperators(v); err != nil {
		return nil, err
	}
	if len(job.Operators) == 0 {
		return nil, &CompileError{
			Field:   "operator",
			Message: "at least one operator is required",
			Pos:     v.Pos(),
		}
	}
	if job.Edges, err = parseEdges(v); err != nil {
		return nil, err
	}

	return job, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

// parseModels extracts data models. Field order follows declaration order.
func parseModels(v cue.Value) ([]ir.DataModel, error) {
	var models []ir.DataModel

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return models, nil
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		model := ir.DataModel{Name: iter.Label()}

		fieldIter, err := iter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for fieldIter.Next() {
			typ, err := fieldIter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   "model",
					Message: fmt.Sprintf("field %s.%s: type must be a string", model.Name, fieldIter.Label()),
					Pos:     fieldIter.Value().Pos(),
				}
			}
			model.Fields = append(model.Fields, ir.Field{Name: fieldIter.Label(), Type: typ})
		}
		models = append(models, model)
	}

	return models, nil
}

// parseOperators extracts operators in declaration order.
func parseOperators(v cue.Value) ([]ir.Operator, error) {
	var ops []ir.Operator

	opsVal := v.LookupPath(cue.ParsePath("operator"))
	if !opsVal.Exists() {
		return ops, nil
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		op, err := parseOperator(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parseOperator(id string, v cue.Value) (ir.Operator, error) {
	op := ir.Operator{ID: id}

	kind, err := requiredString(v, "kind")
	if err != nil {
		return op, err
	}
	op.Kind = kind

	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		if op.Name, err = nameVal.String(); err != nil {
			return op, formatCUEError(err)
		}
	}

	if op.Inputs, err = parsePorts(v, "input"); err != nil {
		return op, err
	}
	if op.Outputs, err = parsePorts(v, "output"); err != nil {
		return op, err
	}

	if attrsVal := v.LookupPath(cue.ParsePath("attributes")); attrsVal.Exists() {
		attrs, err := attributeValue(attrsVal)
		if err != nil {
			return op, err
		}
		m, ok := attrs.(ir.Map)
		if !ok {
			return op, &CompileError{
				Field:   "attributes",
				Message: fmt.Sprintf("operator %s: attributes must be a struct", id),
				Pos:     attrsVal.Pos(),
			}
		}
		op.Attributes = m
	}

	return op, nil
}

// parsePorts reads a {portName: "Model"} struct.
func parsePorts(v cue.Value, field string) ([]ir.Port, error) {
	var ports []ir.Port

	portsVal := v.LookupPath(cue.ParsePath(field))
	if !portsVal.Exists() {
		return ports, nil
	}

	iter, err := portsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		model, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("port %s: model must be a string", iter.Label()),
				Pos:     iter.Value().Pos(),
			}
		}
		ports = append(ports, ir.Port{Name: iter.Label(), Model: model})
	}
	return ports, nil
}

// parseEdges reads the edge list.
func parseEdges(v cue.Value) ([]ir.Edge, error) {
	var edges []ir.Edge

	edgesVal := v.LookupPath(cue.ParsePath("edge"))
	if !edgesVal.Exists() {
		return edges, nil
	}

	iter, err := edgesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		edge, err := parseEdge(iter.Value())
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func parseEdge(v cue.Value) (ir.Edge, error) {
	var edge ir.Edge

	from, err := requiredString(v, "from")
	if err != nil {
		return edge, err
	}
	if edge.From, err = ir.ParsePortRef(from); err != nil {
		return edge, &CompileError{Field: "edge", Message: err.Error(), Pos: v.Pos()}
	}

	to, err := requiredString(v, "to")
	if err != nil {
		return edge, err
	}
	if edge.To, err = ir.ParsePortRef(to); err != nil {
		return edge, &CompileError{Field: "edge", Message: err.Error(), Pos: v.Pos()}
	}

	// Movement defaults to one_to_one.
	edge.Movement = ir.MovementOneToOne
	if mv := v.LookupPath(cue.ParsePath("movement")); mv.Exists() {
		name, err := mv.String()
		if err != nil {
			return edge, formatCUEError(err)
		}
		if edge.Movement, err = ir.ParseMovement(name); err != nil {
			return edge, &CompileError{Field: "movement", Message: err.Error(), Pos: mv.Pos()}
		}
	}

	if kv := v.LookupPath(cue.ParsePath("key")); kv.Exists() {
		keyIter, err := kv.List()
		if err != nil {
			return edge, formatCUEError(err)
		}
		for keyIter.Next() {
			k, err := keyIter.Value().String()
			if err != nil {
				return edge, formatCUEError(err)
			}
			edge.Key = append(edge.Key, k)
		}
	}

	return edge, nil
}

// attributeValue converts a concrete CUE value into an ir.Value.
// Floats and nulls are rejected so fingerprints stay deterministic.
func attributeValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Str(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		list := ir.List{}
		for iter.Next() {
			elem, err := attributeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m := ir.Map{}
		for iter.Next() {
			elem, err := attributeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			m[iter.Label()] = elem
		}
		return m, nil
	case cue.FloatKind:
		return nil, &CompileError{Field: "attributes", Message: "floats are not allowed in attributes", Pos: v.Pos()}
	case cue.NullKind:
		return nil, &CompileError{Field: "attributes", Message: "null is not allowed in attributes", Pos: v.Pos()}
	default:
		return nil, &CompileError{Field: "attributes", Message: "attribute value must be concrete", Pos: v.Pos()}
	}
}

// CompileError represents a compilation error with position information.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
