package lowering

import (
	"fmt"
	"log/slog"

	"github.com/roach88/dagbridge/internal/codegen"
	"github.com/roach88/dagbridge/internal/ir"
)

// Unit categories.
const (
	CategoryVertex   = "vertex"
	CategoryExchange = "exchange"
)

// Lower compiles job into an execution plan, generating units through ctx.
//
// The job must already pass compiler.Validate. Lower only reports the errors
// it cannot proceed past (unknown models, name or artifact failures).
func Lower(ctx *codegen.Context, job *ir.Job) (*ir.ExecutionPlan, error) {
	plan := &ir.ExecutionPlan{
		Version:   ir.PlanVersion,
		Batch:     job.Batch,
		Flow:      job.Flow,
		Vertices:  []ir.Vertex{},
		Exchanges: []ir.Exchange{},
		Units:     []ir.Unit{},
	}
	l := &lowerer{ctx: ctx, plan: plan}

	for _, op := range job.Operators {
		v, err := l.vertex(op)
		if err != nil {
			return nil, err
		}
		plan.Vertices = append(plan.Vertices, v)
	}

	for _, op := range job.Operators {
		for _, out := range op.Outputs {
			ex, err := l.exchange(job, op, out)
			if err != nil {
				return nil, err
			}
			plan.Exchanges = append(plan.Exchanges, ex)
		}
	}

	hash, err := ir.PlanHash(plan)
	if err != nil {
		return nil, err
	}
	plan.Hash = hash

	slog.Debug("lowered job",
		"batch", job.Batch,
		"flow", job.Flow,
		"vertices", len(plan.Vertices),
		"exchanges", len(plan.Exchanges),
		"units", len(plan.Units),
	)
	return plan, nil
}

type lowerer struct {
	ctx  *codegen.Context
	plan *ir.ExecutionPlan
}

func (l *lowerer) vertex(op ir.Operator) (ir.Vertex, error) {
	models, err := l.portModels(op)
	if err != nil {
		return ir.Vertex{}, fmt.Errorf("operator %s: %w", op.ID, err)
	}
	fp, err := ir.OperatorFingerprint(op, models)
	if err != nil {
		return ir.Vertex{}, err
	}

	ref, err := l.generate(fp, CategoryVertex, op.Kind, func(name codegen.UnitName) ([]byte, error) {
		return vertexDescriptor(name, op, models)
	})
	if err != nil {
		return ir.Vertex{}, fmt.Errorf("operator %s: %w", op.ID, err)
	}

	v := ir.Vertex{
		ID:         op.ID,
		Kind:       op.Kind,
		Name:       op.Name,
		Unit:       ref.Name.String(),
		Attributes: op.Attributes,
	}
	for _, p := range op.Inputs {
		v.Inputs = append(v.Inputs, p.Name)
	}
	for _, p := range op.Outputs {
		v.Outputs = append(v.Outputs, p.Name)
	}
	return v, nil
}

func (l *lowerer) exchange(job *ir.Job, op ir.Operator, out ir.Port) (ir.Exchange, error) {
	src := ir.PortRef{Operator: op.ID, Port: out.Name}
	ex := ir.Exchange{Source: src, Movement: ir.MovementNothing}

	for _, e := range job.Edges {
		if e.From != src {
			continue
		}
		if len(ex.Targets) == 0 {
			ex.Movement = e.Movement
			ex.Key = e.Key
		}
		ex.Targets = append(ex.Targets, e.To)
	}

	if ex.Movement != ir.MovementScatterGather {
		return ex, nil
	}

	model, err := l.ctx.DataModels().Load(out.Model)
	if err != nil {
		return ir.Exchange{}, fmt.Errorf("exchange %s: %w", src, err)
	}
	fp, err := ir.ExchangeFingerprint(model, ex.Key)
	if err != nil {
		return ir.Exchange{}, err
	}
	ref, err := l.generate(fp, CategoryExchange, model.Name, func(name codegen.UnitName) ([]byte, error) {
		return comparatorDescriptor(name, model, ex.Key)
	})
	if err != nil {
		return ir.Exchange{}, fmt.Errorf("exchange %s: %w", src, err)
	}
	ex.Comparator = ref.Name.String()
	return ex, nil
}

// generate wraps Context.Generate and records newly generated units in the plan.
func (l *lowerer) generate(fp ir.Fingerprint, category, hint string, render codegen.RenderFunc) (codegen.UnitRef, error) {
	ref, generated, err := l.ctx.Generate(fp, category, hint, render)
	if err != nil {
		return codegen.UnitRef{}, err
	}
	if generated {
		l.plan.Units = append(l.plan.Units, ir.Unit{
			Name:        ref.Name.String(),
			Category:    ref.Category,
			Fingerprint: string(fp),
		})
		slog.Debug("generated unit", "unit", ref.Name, "category", category)
	}
	return ref, nil
}

// portModels loads the models of op's ports, each once, in port order.
func (l *lowerer) portModels(op ir.Operator) ([]ir.DataModel, error) {
	loader := l.ctx.DataModels()
	seen := make(map[string]bool)
	var models []ir.DataModel
	for _, p := range append(append([]ir.Port{}, op.Inputs...), op.Outputs...) {
		if seen[p.Model] {
			continue
		}
		seen[p.Model] = true
		m, err := loader.Load(p.Model)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}
