package testutil

import "github.com/roach88/dagbridge/internal/ir"

// Plan returns a two-vertex plan (read → write) carrying the given hash.
// The hash is not recomputed so tests can pick short, readable values.
func Plan(hash string) *ir.ExecutionPlan {
	return &ir.ExecutionPlan{
		Version: ir.PlanVersion,
		Batch:   "wordcount",
		Flow:    "main",
		Hash:    hash,
		Vertices: []ir.Vertex{
			{ID: "read", Kind: "input", Unit: "dagbridge.gen.vertex.input_0", Outputs: []string{"out"}},
			{ID: "write", Kind: "output", Unit: "dagbridge.gen.vertex.output_0", Inputs: []string{"in"}},
		},
		Exchanges: []ir.Exchange{
			{
				Source:   ir.PortRef{Operator: "read", Port: "out"},
				Movement: ir.MovementOneToOne,
				Targets:  []ir.PortRef{{Operator: "write", Port: "in"}},
			},
		},
		Units: []ir.Unit{
			{Name: "dagbridge.gen.vertex.input_0", Category: "vertex", Fingerprint: "f1"},
			{Name: "dagbridge.gen.vertex.output_0", Category: "vertex", Fingerprint: "f2"},
		},
	}
}
