package inspect

import (
	"strings"

	"github.com/roach88/dagbridge/internal/ir"
)

// Element kinds.
const (
	KindVertex   = "vertex"
	KindExchange = "exchange"
	KindUnit     = "unit"
)

// Element is one inspectable piece of a plan.
type Element struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Attributes map[string]string `json:"attributes"`
}

// List returns the plan's vertices, exchanges, and units, in plan order.
//
// Operator attributes appear on vertex elements under "attr.<key>";
// non-string values are written as canonical JSON.
func List(plan *ir.ExecutionPlan) ([]Element, error) {
	var out []Element

	for _, v := range plan.Vertices {
		attrs := map[string]string{
			"operator": v.Kind,
			"unit":     v.Unit,
			"inputs":   strings.Join(v.Inputs, ","),
			"outputs":  strings.Join(v.Outputs, ","),
		}
		if v.Name != "" {
			attrs["name"] = v.Name
		}
		for _, k := range v.Attributes.SortedKeys() {
			s, err := formatValue(v.Attributes[k])
			if err != nil {
				return nil, err
			}
			attrs["attr."+k] = s
		}
		out = append(out, Element{ID: v.ID, Kind: KindVertex, Attributes: attrs})
	}

	for _, e := range plan.Exchanges {
		targets := make([]string, 0, len(e.Targets))
		for _, t := range e.Targets {
			targets = append(targets, t.String())
		}
		attrs := map[string]string{
			"movement": e.Movement.String(),
			"targets":  strings.Join(targets, ","),
		}
		if len(e.Key) > 0 {
			attrs["key"] = strings.Join(e.Key, ",")
		}
		if e.Comparator != "" {
			attrs["comparator"] = e.Comparator
		}
		out = append(out, Element{ID: e.Source.String(), Kind: KindExchange, Attributes: attrs})
	}

	for _, u := range plan.Units {
		out = append(out, Element{
			ID:   u.Name,
			Kind: KindUnit,
			Attributes: map[string]string{
				"category":    u.Category,
				"fingerprint": u.Fingerprint,
			},
		})
	}

	return out, nil
}

// Filter keeps the elements of the given kind. An empty kind keeps all.
func Filter(elems []Element, kind string) []Element {
	if kind == "" {
		return elems
	}
	var out []Element
	for _, e := range elems {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func formatValue(v ir.Value) (string, error) {
	if s, ok := v.(ir.Str); ok {
		return string(s), nil
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
