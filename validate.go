package graphgl

import "fmt"

// Severity classifies a diagnostic as blocking or advisory.
type Severity uint8

const (
	SeverityError   Severity = iota // blocks compilation
	SeverityWarning                 // advisory
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// Code identifies the kind of a diagnostic.
type Code string

const (
	CodeNoSinkNode             Code = "NoSinkNode"
	CodeMultipleSinkNodes      Code = "MultipleSinkNodes"
	CodeCyclicGraph            Code = "CyclicGraph"
	CodeDisconnectedSubgraph   Code = "DisconnectedSubgraph"
	CodeUnknownNodeType        Code = "UnknownNodeType"
	CodeMissingEmitter         Code = "MissingEmitter"
	CodeEmitFailed             Code = "EmitFailed"
	CodeTypeValidationRejected Code = "TypeValidationRejected"
	CodeTypeMismatch           Code = "TypeMismatchWarning"
	CodeAccessorResolution     Code = "AccessorResolutionFailure"
	CodeRuntimeCompile         Code = "RuntimeCompileError"
)

// Diagnostic is a single compile or validation finding, optionally tagged
// with its originating node.
type Diagnostic struct {
	Node     NodeID // NoNode if graph-level.
	Code     Code
	Msg      string
	Severity Severity
}

func (d Diagnostic) Error() string {
	if d.Node == NoNode {
		return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Msg)
	}
	return fmt.Sprintf("[%s] %s: node %d: %s", d.Severity, d.Code, d.Node, d.Msg)
}

// Validate runs the structural checks that are independent of a full
// compile: sink presence and uniqueness, acyclicity of the connection
// graph excluding edges into cycle-breaking nodes, and reachability of
// every node by backward traversal from the sink.
func Validate(g *Graph) []Diagnostic {
	var diags []Diagnostic
	sinks := g.Sinks()
	switch {
	case len(sinks) == 0 && len(g.order) > 0:
		diags = append(diags, Diagnostic{
			Node: NoNode, Code: CodeNoSinkNode, Severity: SeverityWarning,
			Msg: "graph has nodes but no output node",
		})
	case len(sinks) > 1:
		diags = append(diags, Diagnostic{
			Node: NoNode, Code: CodeMultipleSinkNodes, Severity: SeverityError,
			Msg: fmt.Sprintf("graph has %d output nodes, want exactly one", len(sinks)),
		})
	}
	diags = append(diags, validateAcyclic(g)...)
	if len(sinks) == 1 {
		diags = append(diags, validateReachable(g, sinks[0])...)
	}
	return diags
}

// validateAcyclic detects cycles with a DFS over input connections using
// an explicit recursion stack. Edges terminating at cycle-breaking nodes
// are exempt: those nodes read a previous-pass value and never recurse.
func validateAcyclic(g *Graph) []Diagnostic {
	const (
		white = iota // unvisited
		gray         // on current DFS path
		black        // fully explored
	)
	color := make(map[NodeID]int, len(g.order))
	var diags []Diagnostic

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			diags = append(diags, Diagnostic{
				Node: id, Code: CodeCyclicGraph, Severity: SeverityError,
				Msg: "connection cycle not routed through a feedback node",
			})
			return true
		}
		color[id] = gray
		n := g.nodes[id]
		def, _ := g.reg.Lookup(n.Type)
		if def == nil || !def.CycleBreaking {
			for _, c := range g.conns {
				if c.To != id {
					continue
				}
				if visit(c.From) {
					color[id] = black
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for _, id := range g.order {
		if color[id] == white && visit(id) {
			break // One cycle report is enough.
		}
	}
	return diags
}

// validateReachable warns about nodes that backward traversal from the
// sink never reaches.
func validateReachable(g *Graph, sink NodeID) []Diagnostic {
	reached := make(map[NodeID]bool, len(g.order))
	stack := []NodeID{sink}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] {
			continue
		}
		reached[id] = true
		for _, c := range g.conns {
			if c.To == id && !reached[c.From] {
				stack = append(stack, c.From)
			}
		}
	}
	var diags []Diagnostic
	for _, id := range g.order {
		if !reached[id] {
			diags = append(diags, Diagnostic{
				Node: id, Code: CodeDisconnectedSubgraph, Severity: SeverityWarning,
				Msg: "node does not reach the output node",
			})
		}
	}
	return diags
}
