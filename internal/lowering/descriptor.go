package lowering

import (
	"github.com/roach88/dagbridge/internal/codegen"
	"github.com/roach88/dagbridge/internal/ir"
)

// vertexDescriptor renders the body of an operator unit: everything the
// engine needs to instantiate the operator, in canonical JSON.
func vertexDescriptor(name codegen.UnitName, op ir.Operator, models []ir.DataModel) ([]byte, error) {
	byName := codegen.NewModelIndex(models)
	obj := ir.Map{
		"unit":     ir.Str(name.String()),
		"category": ir.Str(CategoryVertex),
		"kind":     ir.Str(op.Kind),
		"inputs":   portsDescriptor(op.Inputs, byName),
		"outputs":  portsDescriptor(op.Outputs, byName),
	}
	if len(op.Attributes) > 0 {
		obj["attributes"] = op.Attributes
	}
	return ir.MarshalCanonical(obj)
}

// comparatorDescriptor renders the body of a scatter-gather comparator unit.
// Key entries keep their +/- ordering prefix.
func comparatorDescriptor(name codegen.UnitName, model ir.DataModel, key []string) ([]byte, error) {
	keys := make(ir.List, 0, len(key))
	for _, k := range key {
		keys = append(keys, ir.Str(k))
	}
	return ir.MarshalCanonical(ir.Map{
		"unit":     ir.Str(name.String()),
		"category": ir.Str(CategoryExchange),
		"model":    modelDescriptor(model),
		"key":      keys,
	})
}

func portsDescriptor(ports []ir.Port, models codegen.ModelIndex) ir.List {
	out := make(ir.List, 0, len(ports))
	for _, p := range ports {
		entry := ir.Map{"name": ir.Str(p.Name)}
		if m, ok := models[p.Model]; ok {
			entry["model"] = modelDescriptor(m)
		}
		out = append(out, entry)
	}
	return out
}

func modelDescriptor(m ir.DataModel) ir.Map {
	fields := make(ir.List, 0, len(m.Fields))
	for _, f := range m.Fields {
		fields = append(fields, ir.Map{"name": ir.Str(f.Name), "type": ir.Str(f.Type)})
	}
	return ir.Map{"name": ir.Str(m.Name), "fields": fields}
}
