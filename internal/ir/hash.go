package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainOperator = "dagbridge/operator/v1"
	DomainExchange = "dagbridge/exchange/v1"
	DomainPlan     = "dagbridge/plan/v1"
)

// Fingerprint identifies operators that are equivalent for code generation.
// It is comparable and usable directly as a generation cache key.
type Fingerprint string

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// OperatorFingerprint computes the semantic fingerprint of an operator.
//
// ID and Name are excluded so structurally identical operators in different
// places of the graph share one generated unit. Port names and models are
// included because generated code is specialized to them.
func OperatorFingerprint(op Operator, models []DataModel) (Fingerprint, error) {
	obj := Map{
		"kind":    Str(op.Kind),
		"inputs":  portsValue(op.Inputs, models),
		"outputs": portsValue(op.Outputs, models),
	}
	if len(op.Attributes) > 0 {
		obj["attributes"] = op.Attributes
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint of operator %q: %w", op.ID, err)
	}
	return Fingerprint(hashWithDomain(DomainOperator, canonical)), nil
}

// ExchangeFingerprint identifies the comparator needed to shuffle a model by key.
func ExchangeFingerprint(model DataModel, key []string) (Fingerprint, error) {
	obj := Map{
		"model": modelValue(model),
		"key":   stringsValue(key),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint of exchange on %q: %w", model.Name, err)
	}
	return Fingerprint(hashWithDomain(DomainExchange, canonical)), nil
}

// PlanHash computes the content hash of a plan: its vertices with their
// kinds and attributes, its exchanges, and the units with their
// fingerprints. Unit names are issued per session, so the fingerprints are
// what tie the hash to generated content. The Hash field itself is ignored.
func PlanHash(p *ExecutionPlan) (string, error) {
	vertices := make(List, 0, len(p.Vertices))
	for _, v := range p.Vertices {
		attrs := v.Attributes
		if attrs == nil {
			attrs = Map{}
		}
		vertices = append(vertices, Map{
			"id":         Str(v.ID),
			"kind":       Str(v.Kind),
			"name":       Str(v.Name),
			"unit":       Str(v.Unit),
			"attributes": attrs,
			"inputs":     stringsValue(v.Inputs),
			"outputs":    stringsValue(v.Outputs),
		})
	}
	units := make(List, 0, len(p.Units))
	for _, u := range p.Units {
		units = append(units, Map{
			"name":        Str(u.Name),
			"category":    Str(u.Category),
			"fingerprint": Str(u.Fingerprint),
		})
	}
	exchanges := make(List, 0, len(p.Exchanges))
	for _, e := range p.Exchanges {
		w, err := e.Wire()
		if err != nil {
			return "", err
		}
		exchanges = append(exchanges, Map{
			"movement":   Int(w.Movement),
			"source":     Str(w.Source),
			"targets":    stringsValue(w.Targets),
			"key":        stringsValue(w.Key),
			"comparator": Str(w.Comparator),
		})
	}
	obj := Map{
		"version":   Str(p.Version),
		"batch":     Str(p.Batch),
		"flow":      Str(p.Flow),
		"vertices":  vertices,
		"exchanges": exchanges,
		"units":     units,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("plan hash: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

func portsValue(ports []Port, models []DataModel) List {
	out := make(List, 0, len(ports))
	for _, p := range ports {
		entry := Map{"name": Str(p.Name), "model": Str(p.Model)}
		for _, m := range models {
			if m.Name == p.Model {
				entry["shape"] = modelValue(m)
				break
			}
		}
		out = append(out, entry)
	}
	return out
}

func modelValue(m DataModel) Map {
	fields := make(List, 0, len(m.Fields))
	for _, f := range m.Fields {
		fields = append(fields, Map{"name": Str(f.Name), "type": Str(f.Type)})
	}
	return Map{"name": Str(m.Name), "fields": fields}
}

func stringsValue(ss []string) List {
	out := make(List, 0, len(ss))
	for _, s := range ss {
		out = append(out, Str(s))
	}
	return out
}
