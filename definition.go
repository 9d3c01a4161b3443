package graphgl

import (
	"fmt"

	"github.com/graphgl/graphgl/glsl"
)

// PortSpec declares one input or output port of a node definition.
type PortSpec = Port

// Input is a resolved, converted input expression handed to validators and
// emitters.
type Input struct {
	// Expr is the GLSL expression producing the value. For disconnected
	// inputs this is the port's literal default or the type's zero value.
	Expr string
	// Type is the concrete type of Expr. For wildcard ports this is the
	// upstream type; for disconnected inputs the declared port type.
	Type glsl.Type
	// Connected reports whether a connection feeds the port.
	Connected bool
}

// EmitContext exposes per-node compilation services to emitters.
type EmitContext struct {
	// VarName is the compact display variable name assigned to the node
	// from the cycle's node-id remap table.
	VarName string
	// Graph allows paired nodes to look up their sibling by id.
	Graph *Graph
	// Structs is the struct type collaborator.
	Structs *glsl.StructRegistry
	// VarFor returns the display variable name of another node in the
	// same cycle.
	VarFor func(NodeID) string
}

// EmitResult is what a node emitter produces.
type EmitResult struct {
	// Code holds statement lines appended to the program body in
	// traversal order. It may contain full helper-function definitions,
	// which are hoisted and deduplicated before the remaining lines are
	// appended.
	Code string
	// Output is the expression other nodes use to consume output 0.
	Output string
	// Outputs optionally provides one expression per output port for
	// multi-output nodes. When unset, Output serves port 0.
	Outputs []string
	// OutputType optionally overrides the declared output type.
	OutputType glsl.Type
	// Uniforms are merged into the compile's uniform set. Identical
	// declarations merge.
	Uniforms []Uniform
	// Preamble is a whole-function block routed through hoisting.
	Preamble string
	// RequiredFunction names a shared library function (see lib.go) the
	// output expression calls. It is hoisted on demand.
	RequiredFunction string
}

// Definition is the immutable schema of one node type: its ports, flags
// and pure emit/validate behavior. Definitions form the instruction set of
// the graph and are registered in a [Registry].
type Definition struct {
	Name     string
	Category string
	Inputs   []PortSpec
	Outputs  []PortSpec
	// RequiredUniforms lists well-known uniform names the emitted code
	// reads (time, resolution, ...). They are declared with their fixed
	// builtin types.
	RequiredUniforms []string
	// Sink marks the graph's output routing marker. Sinks emit no code.
	Sink bool
	// CycleBreaking nodes consume a fed-back value from a prior
	// execution step; the compiler does not recurse into their inputs.
	CycleBreaking bool
	// DynamicArity nodes grow/shrink ports with connection state. They
	// are revisited on every reference instead of served from cache.
	DynamicArity bool
	// Rebuild reconciles a dynamic-arity node's live ports with the
	// current connection state. Called before input resolution.
	Rebuild func(n *Node, g *Graph)
	// ValidateTypes accepts or rejects the map of resolved input types
	// (glsl.Invalid for disconnected inputs) and may return the resolved
	// output type for polymorphic nodes.
	ValidateTypes func(n *Node, inputs []glsl.Type) (glsl.Type, error)
	// Emit generates code for the node. Emitters are pure given their
	// inputs and the node's instance data.
	Emit func(n *Node, inputs []Input, ctx *EmitContext) (EmitResult, error)
}

// Registry is the table of node definitions keyed by type name.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry returns a registry preloaded with the builtin node set.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			panic(err) // Builtin table is malformed.
		}
	}
	return r
}

// NewEmptyRegistry returns a registry with no definitions, for tests and
// fully custom node sets.
func NewEmptyRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition to the registry.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("definition with empty name")
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("definition %q already registered", def.Name)
	}
	d := def
	r.defs[def.Name] = &d
	r.order = append(r.order, def.Name)
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Types returns all registered type names in registration order.
func (r *Registry) Types() []string {
	return append([]string{}, r.order...)
}

// BindingKind marks a uniform as dynamically bound by the runtime rather
// than carrying a literal value.
type BindingKind uint8

const (
	// BindingNone marks a literal-valued uniform.
	BindingNone BindingKind = iota
	// BindingFeedback binds the previous frame's render target.
	BindingFeedback
	// BindingTexture binds a texture image supplied with the uniform.
	BindingTexture
	// BindingMicrophone binds the live microphone level.
	BindingMicrophone
	// BindingMIDI binds a MIDI continuous controller value.
	BindingMIDI
)

// Uniform describes one uniform of the assembled program: its declaration
// plus either a literal value or a dynamic-binding marker identifying the
// originating node.
type Uniform struct {
	Name string
	Type glsl.Type
	// Value carries the literal: float32, int, ms2.Vec, ms3.Vec,
	// [4]float32 or an image.Image for texture-backed uniforms.
	Value any
	// Binding marks dynamically bound uniforms.
	Binding BindingKind
	// Node is the originating node for dynamic bindings.
	Node NodeID
	// Controller is the MIDI CC number for BindingMIDI uniforms.
	Controller int
}

// wellKnownUniforms maps the fixed set of runtime-supplied uniform names
// to their builtin types. All other uniforms declare their carried type.
var wellKnownUniforms = map[string]glsl.Type{
	"time":       glsl.Float,
	"frame":      glsl.Int,
	"resolution": glsl.Vec2,
	"mouse":      glsl.Vec2,
}

// WellKnownUniformType returns the fixed builtin type of a well-known
// uniform name.
func WellKnownUniformType(name string) (glsl.Type, bool) {
	t, ok := wellKnownUniforms[name]
	return t, ok
}
