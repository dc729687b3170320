package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Job is a compiled job description: one jobflow of a batch, with the data
// models it uses and its operator graph.
type Job struct {
	Batch     string      `json:"batch"`
	Flow      string      `json:"flow"`
	Models    []DataModel `json:"models"`
	Operators []Operator  `json:"operators"`
	Edges     []Edge      `json:"edges"`
}

// DataModel describes the shape of records flowing through a port.
type DataModel struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field is one named, typed field of a data model.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "string" | "int" | "bool" | "bytes" | "date" | "datetime" | "decimal"
}

// HasField reports whether the model declares a field with the given name.
func (m DataModel) HasField(name string) bool {
	for _, f := range m.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Operator is one node of the job graph.
//
// ID and Name identify the node for humans and edges; they never take part
// in its fingerprint. Kind, Attributes, and port models do.
type Operator struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Name       string `json:"name,omitempty"`
	Attributes Map    `json:"attributes,omitempty"`
	Inputs     []Port `json:"inputs,omitempty"`
	Outputs    []Port `json:"outputs,omitempty"`
}

// Port is a named input or output of an operator carrying one data model.
type Port struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Output returns the output port with the given name.
func (o Operator) Output(name string) (Port, bool) {
	return findPort(o.Outputs, name)
}

// Input returns the input port with the given name.
func (o Operator) Input(name string) (Port, bool) {
	return findPort(o.Inputs, name)
}

func findPort(ports []Port, name string) (Port, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// PortRef addresses a port of an operator or vertex, written "op.port".
type PortRef struct {
	Operator string `json:"operator"`
	Port     string `json:"port"`
}

// String returns the "op.port" form.
func (r PortRef) String() string {
	return r.Operator + "." + r.Port
}

// ParsePortRef parses the "op.port" form. The operator id may not contain dots.
func ParsePortRef(s string) (PortRef, error) {
	op, port, ok := strings.Cut(s, ".")
	if !ok || op == "" || port == "" || strings.Contains(port, ".") {
		return PortRef{}, fmt.Errorf("invalid port reference %q: expected \"operator.port\"", s)
	}
	return PortRef{Operator: op, Port: port}, nil
}

// Edge connects an output port to an input port.
type Edge struct {
	From     PortRef  `json:"from"`
	To       PortRef  `json:"to"`
	Movement Movement `json:"movement"`
	Key      []string `json:"key,omitempty"` // grouping fields, scatter_gather only
}

// ExecutionPlan is the compiled form of a job handed to the native engine.
type ExecutionPlan struct {
	Version   string     `json:"version"`
	Batch     string     `json:"batch"`
	Flow      string     `json:"flow"`
	Hash      string     `json:"hash"`
	Vertices  []Vertex   `json:"vertices"`
	Exchanges []Exchange `json:"exchanges"`
	Units     []Unit     `json:"units"`
}

// Vertex is an operator bound to its generated execution unit.
type Vertex struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Name       string   `json:"name,omitempty"`
	Unit       string   `json:"unit"`
	Attributes Map      `json:"attributes,omitempty"`
	Inputs     []string `json:"inputs,omitempty"`
	Outputs    []string `json:"outputs,omitempty"`
}

// Unit describes one generated execution unit referenced by the plan.
type Unit struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Fingerprint string `json:"fingerprint"`
}

// Vertex returns the vertex with the given id.
func (p *ExecutionPlan) Vertex(id string) (Vertex, bool) {
	for _, v := range p.Vertices {
		if v.ID == id {
			return v, true
		}
	}
	return Vertex{}, false
}

// Exchange is the data movement leaving one output port.
// An output port nobody consumes still has an exchange, with MovementNothing.
type Exchange struct {
	Source     PortRef
	Movement   Movement
	Targets    []PortRef
	Key        []string
	Comparator string // generated comparator unit, scatter_gather only
}

// WireExchange is the persisted form of an Exchange.
type WireExchange struct {
	Movement   int      `json:"movement"`
	Source     string   `json:"source"`
	Targets    []string `json:"targets"`
	Key        []string `json:"key,omitempty"`
	Comparator string   `json:"comparator,omitempty"`
}

// Wire converts the exchange to its persisted form.
// NOTHING is written as a BROADCAST record with an empty target list.
func (e Exchange) Wire() (WireExchange, error) {
	if !e.Movement.Valid() {
		return WireExchange{}, fmt.Errorf("exchange %s: unknown movement %d", e.Source, int(e.Movement))
	}
	w := WireExchange{
		Movement:   e.Movement.ID(),
		Source:     e.Source.String(),
		Targets:    []string{},
		Key:        e.Key,
		Comparator: e.Comparator,
	}
	if e.Movement == MovementNothing {
		if len(e.Targets) > 0 {
			return WireExchange{}, fmt.Errorf("exchange %s: movement nothing cannot have targets", e.Source)
		}
		return w, nil
	}
	if len(e.Targets) == 0 {
		return WireExchange{}, fmt.Errorf("exchange %s: movement %s requires at least one target", e.Source, e.Movement)
	}
	for _, t := range e.Targets {
		w.Targets = append(w.Targets, t.String())
	}
	return w, nil
}

// FromWire rebuilds an exchange from its persisted form.
func FromWire(w WireExchange) (Exchange, error) {
	m, err := DecodeMovement(w.Movement, len(w.Targets))
	if err != nil {
		return Exchange{}, fmt.Errorf("exchange %s: %w", w.Source, err)
	}
	src, err := ParsePortRef(w.Source)
	if err != nil {
		return Exchange{}, err
	}
	e := Exchange{Source: src, Movement: m, Key: w.Key, Comparator: w.Comparator}
	for _, t := range w.Targets {
		ref, err := ParsePortRef(t)
		if err != nil {
			return Exchange{}, err
		}
		e.Targets = append(e.Targets, ref)
	}
	return e, nil
}

// MarshalJSON writes the wire form.
func (e Exchange) MarshalJSON() ([]byte, error) {
	w, err := e.Wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the wire form.
func (e *Exchange) UnmarshalJSON(data []byte) error {
	var w WireExchange
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := FromWire(w)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// EncodePlan serializes a plan as indented JSON.
func EncodePlan(p *ExecutionPlan) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodePlan parses a plan written by EncodePlan.
func DecodePlan(data []byte) (*ExecutionPlan, error) {
	var p ExecutionPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if p.Version != PlanVersion {
		return nil, fmt.Errorf("decoding plan: unsupported plan version %q (want %q)", p.Version, PlanVersion)
	}
	return &p, nil
}
