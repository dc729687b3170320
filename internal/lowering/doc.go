// Package lowering turns a validated job into an execution plan.
//
// Every operator becomes a vertex bound to a generated unit. Units are keyed
// by operator fingerprint, so operators with the same kind, attributes, and
// port shapes share one unit no matter where they sit in the graph.
// Scatter-gather exchanges additionally get a comparator unit per
// (model, key).
//
// Every output port yields exactly one exchange. An output nobody consumes
// still gets one, with movement nothing, so the engine knows to drop it.
package lowering
