package inspect

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/dagbridge/internal/ir"
)

// WriteDOT renders the plan as a Graphviz digraph.
//
// Vertices are boxes labelled id, display name, operator kind, and unit.
// Each exchange target is one edge labelled with the movement; an exchange
// with movement nothing points to a sink node named after its source port.
func WriteDOT(w io.Writer, plan *ir.ExecutionPlan) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph %s {\n", quote(plan.Batch+"."+plan.Flow))
	bw.WriteString("  rankdir=LR;\n")
	bw.WriteString("  node [shape=box];\n")

	for _, v := range plan.Vertices {
		lines := []string{v.ID}
		if v.Name != "" {
			lines = append(lines, v.Name)
		}
		lines = append(lines, v.Kind, v.Unit)
		fmt.Fprintf(bw, "  %s [label=%s];\n", quote(v.ID), label(lines...))
	}

	for _, e := range plan.Exchanges {
		from := quote(e.Source.Operator)
		if e.Movement == ir.MovementNothing {
			sink := quote(e.Source.String())
			fmt.Fprintf(bw, "  %s [shape=point];\n", sink)
			fmt.Fprintf(bw, "  %s -> %s [label=%s, taillabel=%s, style=dashed];\n",
				from, sink, label(e.Movement.String()), quote(e.Source.Port))
			continue
		}

		lines := []string{e.Movement.String()}
		if len(e.Key) > 0 {
			lines = append(lines, "key: "+strings.Join(e.Key, ","))
		}
		for _, t := range e.Targets {
			fmt.Fprintf(bw, "  %s -> %s [label=%s, taillabel=%s, headlabel=%s];\n",
				from, quote(t.Operator), label(lines...), quote(e.Source.Port), quote(t.Port))
		}
	}

	bw.WriteString("}\n")
	return bw.Flush()
}

// quote returns s as a DOT double-quoted string.
func quote(s string) string {
	return `"` + escape(s) + `"`
}

// label joins lines with DOT's \n line break.
func label(lines ...string) string {
	escaped := make([]string, len(lines))
	for i, l := range lines {
		escaped[i] = escape(l)
	}
	return `"` + strings.Join(escaped, `\n`) + `"`
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escape(s string) string {
	return escaper.Replace(s)
}
