// Package graphgl compiles directed graphs of typed operation nodes into
// GLSL fragment programs. Node semantics are declared in a data-driven
// definition registry; the compiler walks the graph from its sink node,
// resolves and converts port types, hoists and deduplicates helper
// functions and assembles the final program with a source-line→node map
// for attributing shader compile errors back to graph nodes.
package graphgl

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/graphgl/graphgl/glsl"
)

// NodeID identifies a node within a graph. IDs are unique within one
// compilation cycle and sort ascending for display-name assignment.
type NodeID int

// NoNode is the NodeID used where no node applies.
const NoNode NodeID = -1

// Port is a live copy of a definition's port spec. Dynamic-arity nodes
// mutate their copies during a compile; definitions are never mutated.
type Port struct {
	Name string
	Type glsl.Type
	// Default is the literal fallback expression used when the port is
	// disconnected. Empty means the type's zero value.
	Default string
	// Optional ports may remain disconnected without warnings.
	Optional bool
	// Hidden ports exist but are not offered for connection. Used by
	// paired loop nodes to track connection-driven visibility.
	Hidden bool
}

// Node is one operation instance in a graph.
type Node struct {
	ID   NodeID
	Type string
	// Data holds free-form instance parameters: constant values, mode
	// flags, user source text.
	Data map[string]any
	// Inputs and Outputs are live copies of the definition's port lists.
	Inputs  []Port
	Outputs []Port
	// ResolvedOutputType is set by validators of polymorphic nodes.
	ResolvedOutputType glsl.Type
}

// DataFloat returns the float stored under key, or fallback. JSON-decoded
// numbers arrive as float64 and are coerced.
func (n *Node) DataFloat(key string, fallback float32) float32 {
	switch v := n.Data[key].(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	case int:
		return float32(v)
	}
	return fallback
}

// DataInt returns the integer stored under key, or fallback.
func (n *Node) DataInt(key string, fallback int) int {
	switch v := n.Data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return fallback
}

// DataString returns the string stored under key, or fallback.
func (n *Node) DataString(key, fallback string) string {
	if s, ok := n.Data[key].(string); ok {
		return s
	}
	return fallback
}

// Connection is a directed, single-valued edge from an output port to an
// input port. At most one connection terminates at a given input.
type Connection struct {
	From     NodeID
	FromPort int
	To       NodeID
	ToPort   int
	// Accessor optionally narrows the produced value: a struct field
	// name or vector swizzle suffix.
	Accessor string
}

// Graph owns nodes and connections. Graphs are not safe for concurrent
// use; callers serialize edits and compiles.
type Graph struct {
	reg    *Registry
	nodes  map[NodeID]*Node
	order  []NodeID
	conns  []Connection
	nextID NodeID
}

// NewGraph returns an empty graph backed by the definition registry reg.
func NewGraph(reg *Registry) *Graph {
	return &Graph{reg: reg, nodes: make(map[NodeID]*Node)}
}

// Registry returns the definition registry backing the graph.
func (g *Graph) Registry() *Registry { return g.reg }

// AddNode instantiates a node of the named definition with a fresh id.
func (g *Graph) AddNode(typeName string) (*Node, error) {
	return g.AddNodeWithID(g.nextID, typeName)
}

// AddNodeWithID instantiates a node with an explicit id, as used when
// deserializing a graph.
func (g *Graph) AddNodeWithID(id NodeID, typeName string) (*Node, error) {
	def, ok := g.reg.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown node type %q", typeName)
	}
	if _, taken := g.nodes[id]; taken {
		return nil, fmt.Errorf("node id %d already in use", id)
	}
	n := &Node{
		ID:      id,
		Type:    typeName,
		Data:    make(map[string]any),
		Inputs:  append([]Port{}, def.Inputs...),
		Outputs: append([]Port{}, def.Outputs...),
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
	if id >= g.nextID {
		g.nextID = id + 1
	}
	return n, nil
}

// RemoveNode deletes a node and every connection touching it.
func (g *Graph) RemoveNode(id NodeID) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	kept := g.conns[:0]
	for _, c := range g.conns {
		if c.From != id && c.To != id {
			kept = append(kept, c)
		}
	}
	g.conns = kept
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeIDs returns all node ids sorted ascending.
func (g *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.order))
	ids = append(ids, g.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Connect establishes a connection. Connecting to an occupied input
// replaces the previous connection.
func (g *Graph) Connect(from NodeID, fromPort int, to NodeID, toPort int) error {
	return g.ConnectAccessor(from, fromPort, to, toPort, "")
}

// ConnectAccessor is [Graph.Connect] with an accessor suffix narrowing the
// produced value.
func (g *Graph) ConnectAccessor(from NodeID, fromPort int, to NodeID, toPort int, accessor string) error {
	src, dst := g.nodes[from], g.nodes[to]
	if src == nil {
		return fmt.Errorf("connect: unknown source node %d", from)
	} else if dst == nil {
		return fmt.Errorf("connect: unknown destination node %d", to)
	} else if fromPort < 0 || fromPort >= len(src.Outputs) {
		return fmt.Errorf("connect: node %d has no output %d", from, fromPort)
	} else if toPort < 0 {
		return fmt.Errorf("connect: negative input index %d", toPort)
	}
	def, _ := g.reg.Lookup(dst.Type)
	if toPort >= len(dst.Inputs) && (def == nil || !def.DynamicArity) {
		return fmt.Errorf("connect: node %d has no input %d", to, toPort)
	}
	g.Disconnect(to, toPort)
	g.conns = append(g.conns, Connection{From: from, FromPort: fromPort, To: to, ToPort: toPort, Accessor: accessor})
	return nil
}

// Disconnect removes the connection terminating at (to, toPort), if any.
func (g *Graph) Disconnect(to NodeID, toPort int) {
	for i, c := range g.conns {
		if c.To == to && c.ToPort == toPort {
			g.conns = append(g.conns[:i], g.conns[i+1:]...)
			return
		}
	}
}

// ConnTo returns the connection terminating at (to, port).
func (g *Graph) ConnTo(to NodeID, port int) (Connection, bool) {
	for _, c := range g.conns {
		if c.To == to && c.ToPort == port {
			return c, true
		}
	}
	return Connection{}, false
}

// Connections returns a copy of all connections.
func (g *Graph) Connections() []Connection {
	return append([]Connection{}, g.conns...)
}

// ConnectedInputs counts the connections terminating at node id.
func (g *Graph) ConnectedInputs(id NodeID) int {
	n := 0
	for _, c := range g.conns {
		if c.To == id {
			n++
		}
	}
	return n
}

// Sinks returns the ids of all sink-flagged nodes in insertion order.
func (g *Graph) Sinks() []NodeID {
	var sinks []NodeID
	for _, id := range g.order {
		def, ok := g.reg.Lookup(g.nodes[id].Type)
		if ok && def.Sink {
			sinks = append(sinks, id)
		}
	}
	return sinks
}

type graphJSON struct {
	Nodes       []nodeJSON `json:"nodes"`
	Connections []connJSON `json:"connections,omitempty"`
}

type nodeJSON struct {
	ID   NodeID         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type connJSON struct {
	From     NodeID `json:"from"`
	FromPort int    `json:"fromPort"`
	To       NodeID `json:"to"`
	ToPort   int    `json:"toPort"`
	Accessor string `json:"accessor,omitempty"`
}

// MarshalJSON serializes node ids, types, instance data and connections.
// Derived state such as resolved types is not persisted.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var out graphJSON
	for _, id := range g.order {
		n := g.nodes[id]
		data := n.Data
		if len(data) == 0 {
			data = nil
		}
		out.Nodes = append(out.Nodes, nodeJSON{ID: n.ID, Type: n.Type, Data: data})
	}
	for _, c := range g.conns {
		out.Connections = append(out.Connections, connJSON{
			From: c.From, FromPort: c.FromPort, To: c.To, ToPort: c.ToPort, Accessor: c.Accessor,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the graph from its serialized form. The graph
// must have been created with a registry containing every node type named
// in the payload.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var in graphJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	g.nodes = make(map[NodeID]*Node)
	g.order = nil
	g.conns = nil
	g.nextID = 0
	for _, nj := range in.Nodes {
		n, err := g.AddNodeWithID(nj.ID, nj.Type)
		if err != nil {
			return err
		}
		for k, v := range nj.Data {
			n.Data[k] = v
		}
	}
	for _, cj := range in.Connections {
		err := g.ConnectAccessor(cj.From, cj.FromPort, cj.To, cj.ToPort, cj.Accessor)
		if err != nil {
			return err
		}
	}
	return nil
}
