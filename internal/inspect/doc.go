// Package inspect presents compiled execution plans to humans: as a flat
// list of elements, and as a Graphviz DOT graph.
package inspect
