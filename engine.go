package graphgl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graphgl/graphgl/glsl"
)

// Compiler compiles graphs into fragment programs. A Compiler retains the
// node-id remap table across the compile calls of one compilation cycle so
// that a node keeps the same generated variable name in the main program
// and in every preview sub-compile. Everything else is reinitialized per
// call. Compilers are single-threaded; callers serialize compiles and
// graph edits.
type Compiler struct {
	// Structs is the struct type collaborator. Defaults to the builtin
	// registry when nil.
	Structs *glsl.StructRegistry

	remap map[NodeID]int
	next  int
}

// NewCompiler returns a Compiler backed by the builtin struct registry.
func NewCompiler() *Compiler {
	return &Compiler{Structs: glsl.NewStructRegistry()}
}

// BeginCycle starts a new compilation cycle: all distinct node ids in g
// are sorted ascending and mapped to compact variable indices. The table
// must not be recomputed between the sub-compiles of one cycle; ids added
// mid-cycle get fresh indices appended deterministically.
func (c *Compiler) BeginCycle(g *Graph) {
	c.remap = make(map[NodeID]int, len(g.order))
	c.next = 0
	for _, id := range g.NodeIDs() {
		c.remap[id] = c.next
		c.next++
	}
}

// varName returns the compact display variable name of node id under the
// current cycle's remap table.
func (c *Compiler) varName(id NodeID) string {
	if c.remap == nil {
		c.remap = make(map[NodeID]int)
	}
	idx, ok := c.remap[id]
	if !ok {
		idx = c.next
		c.remap[id] = idx
		c.next++
	}
	return "v" + strconv.Itoa(idx)
}

// statement is one generated body line tagged with its emitting node.
type statement struct {
	line string
	node NodeID
}

// nodeResult memoizes a compiled node's per-port output expressions.
type nodeResult struct {
	outputs []string
	types   []glsl.Type
}

func (nr *nodeResult) at(port int) (string, glsl.Type, error) {
	if port < 0 || port >= len(nr.outputs) {
		return "", glsl.Invalid, fmt.Errorf("output port %d out of range", port)
	}
	return nr.outputs[port], nr.types[port], nil
}

// context is the mutable compilation state threaded through one compile
// call.
type context struct {
	c *Compiler
	g *Graph

	uniforms    []Uniform
	uniformKeys map[string]bool
	funcs       *glsl.FuncTable
	libRenames  map[string]string
	stmts       []statement
	structsUsed map[glsl.Type]bool
	structOrder []glsl.Type
	diags       []Diagnostic
	errNode     NodeID
	cache       map[NodeID]*nodeResult
	dynOutputs  map[NodeID]*nodeResult
	visiting    map[NodeID]bool
}

func (c *Compiler) newContext(g *Graph) *context {
	if c.Structs == nil {
		c.Structs = glsl.NewStructRegistry()
	}
	return &context{
		c:           c,
		g:           g,
		uniformKeys: make(map[string]bool),
		funcs:       glsl.NewFuncTable(),
		libRenames:  make(map[string]string),
		structsUsed: make(map[glsl.Type]bool),
		errNode:     NoNode,
		cache:       make(map[NodeID]*nodeResult),
		dynOutputs:  make(map[NodeID]*nodeResult),
		visiting:    make(map[NodeID]bool),
	}
}

// fail records a blocking diagnostic. The first error node is sticky: it
// is remembered for UI highlighting and later errors do not override it.
func (ctx *context) fail(node NodeID, code Code, format string, args ...any) {
	ctx.diags = append(ctx.diags, Diagnostic{
		Node: node, Code: code, Severity: SeverityError,
		Msg: fmt.Sprintf(format, args...),
	})
	if ctx.errNode == NoNode && node != NoNode {
		ctx.errNode = node
	}
}

func (ctx *context) warn(node NodeID, code Code, format string, args ...any) {
	ctx.diags = append(ctx.diags, Diagnostic{
		Node: node, Code: code, Severity: SeverityWarning,
		Msg: fmt.Sprintf(format, args...),
	})
}

// addUniform merges a uniform into the set. Identical declarations merge.
func (ctx *context) addUniform(u Uniform) {
	key := u.Name + "\x00" + string(u.Type)
	if ctx.uniformKeys[key] {
		return
	}
	ctx.uniformKeys[key] = true
	ctx.uniforms = append(ctx.uniforms, u)
}

// addWellKnownUniform declares a runtime-supplied uniform by name using
// its fixed builtin type. Unknown names degrade to float.
func (ctx *context) addWellKnownUniform(name string) {
	t, ok := WellKnownUniformType(name)
	if !ok {
		t = glsl.Float
	}
	ctx.addUniform(Uniform{Name: name, Type: t})
}

// markStructUsed records struct usage for the assembler, which emits the
// definition, its transitive dependencies and its blend function.
func (ctx *context) markStructUsed(t glsl.Type) {
	if !ctx.c.Structs.IsStruct(t) || ctx.structsUsed[t] {
		return
	}
	ctx.structsUsed[t] = true
	ctx.structOrder = append(ctx.structOrder, t)
}

// Compile compiles the whole graph starting at its sink node. An empty
// graph or an unconnected sink yields the fixed fallback-color program
// with no errors. If BeginCycle has not been called for this cycle it is
// called implicitly.
func (c *Compiler) Compile(g *Graph) *Result {
	if c.remap == nil {
		c.BeginCycle(g)
	}
	ctx := c.newContext(g)
	sinks := g.Sinks()
	switch {
	case len(g.order) == 0:
		return c.finish(ctx, fallbackColorExpr)
	case len(sinks) == 0:
		ctx.fail(NoNode, CodeNoSinkNode, "graph has nodes but no output node")
		return c.finish(ctx, "")
	case len(sinks) > 1:
		ctx.fail(NoNode, CodeMultipleSinkNodes, "graph has %d output nodes, want exactly one", len(sinks))
		return c.finish(ctx, "")
	}
	conn, connected := g.ConnTo(sinks[0], 0)
	if !connected {
		return c.finish(ctx, fallbackColorExpr)
	}
	expr, typ, err := ctx.compileNode(conn.From, conn.FromPort)
	if err != nil {
		return c.finish(ctx, "")
	}
	expr, typ = ctx.applyAccessor(sinks[0], conn, expr, typ)
	return c.finish(ctx, ctx.coerceToColor(sinks[0], expr, typ))
}

// CompilePreview compiles the subtree rooted at an arbitrary (node,
// outputIndex) pair, as used for live previews. It shares the cycle's
// remap table with [Compiler.Compile].
func (c *Compiler) CompilePreview(g *Graph, id NodeID, outPort int) *Result {
	if c.remap == nil {
		c.BeginCycle(g)
	}
	ctx := c.newContext(g)
	expr, typ, err := ctx.compileNode(id, outPort)
	if err != nil {
		return c.finish(ctx, "")
	}
	return c.finish(ctx, ctx.coerceToColor(id, expr, typ))
}

// coerceToColor converts the final output expression to vec4 under the
// implicit conversion rules, warning and passing through when no rule
// applies.
func (ctx *context) coerceToColor(node NodeID, expr string, typ glsl.Type) string {
	out, ok := glsl.Convert(expr, typ, glsl.Vec4)
	if !ok {
		ctx.warn(node, CodeTypeMismatch, "output type %s is not convertible to vec4", typ)
		return expr
	}
	return out
}

// applyAccessor narrows (expr, typ) through a connection's accessor
// suffix. Resolution failure is a hard error for the destination node;
// type inference falls back to float so the rest of the compile can still
// surface other errors.
func (ctx *context) applyAccessor(to NodeID, conn Connection, expr string, typ glsl.Type) (string, glsl.Type) {
	if conn.Accessor == "" {
		return expr, typ
	}
	at, err := ctx.c.Structs.ResolveAccessor(typ, conn.Accessor)
	if err != nil {
		ctx.fail(to, CodeAccessorResolution, "%s", err)
		at = glsl.Float
	}
	return "(" + expr + ")." + conn.Accessor, at
}

// compileNode is the memoized postorder traversal. Dynamic-arity nodes are
// never served from cache so their port growth and resolved types stay
// consistent with the current connection set.
func (ctx *context) compileNode(id NodeID, port int) (string, glsl.Type, error) {
	n := ctx.g.Node(id)
	if n == nil {
		ctx.fail(NoNode, CodeUnknownNodeType, "no node with id %d", id)
		return "", glsl.Invalid, errAbort
	}
	def, ok := ctx.g.reg.Lookup(n.Type)
	if !ok {
		ctx.fail(id, CodeUnknownNodeType, "unknown node type %q", n.Type)
		return "", glsl.Invalid, errAbort
	}
	if cachedRes, hit := ctx.cache[id]; hit && !def.DynamicArity {
		return cachedRes.at(port)
	}
	if def.DynamicArity {
		// Dynamic-arity nodes are revisited so port growth/shrink and
		// resolved types track the current connection set, but their
		// emitted statements and output expressions are reused within
		// one compile.
		if def.Rebuild != nil {
			def.Rebuild(n, ctx.g)
		}
		if dynRes, hit := ctx.dynOutputs[id]; hit {
			return dynRes.at(port)
		}
	}
	if ctx.visiting[id] {
		ctx.fail(id, CodeCyclicGraph, "connection cycle reached node %d during traversal", id)
		return "", glsl.Invalid, errAbort
	}
	ctx.visiting[id] = true
	defer delete(ctx.visiting, id)

	varName := ctx.c.varName(id)
	if def.Sink {
		// The sink is a routing marker, not an operation.
		return "", glsl.Invalid, nil
	}
	var inputs []Input
	var inputTypes []glsl.Type
	if !def.CycleBreaking {
		// Cycle-breaking nodes read a previous-pass value and never
		// recurse into their inputs.
		inputs = make([]Input, len(n.Inputs))
		inputTypes = make([]glsl.Type, len(n.Inputs))
		for i := range n.Inputs {
			in, vt, err := ctx.resolveInput(n, id, i)
			if err != nil {
				return "", glsl.Invalid, err
			}
			inputs[i] = in
			inputTypes[i] = vt
		}
	}

	if def.ValidateTypes != nil {
		resolved, err := def.ValidateTypes(n, inputTypes)
		if err != nil {
			ctx.fail(id, CodeTypeValidationRejected, "%s", err)
			return "", glsl.Invalid, errAbort
		}
		if resolved != glsl.Invalid {
			n.ResolvedOutputType = resolved
			if len(n.Outputs) > 0 && (def.Outputs[0].Type.IsAny() || def.DynamicArity) {
				n.Outputs[0].Type = resolved
			}
		}
	}

	if def.Emit == nil {
		ctx.fail(id, CodeMissingEmitter, "node type %q has no emitter", n.Type)
		return "", glsl.Invalid, errAbort
	}
	ectx := &EmitContext{
		VarName: varName,
		Graph:   ctx.g,
		Structs: ctx.c.Structs,
		VarFor:  ctx.c.varName,
	}
	res, err := def.Emit(n, inputs, ectx)
	if err != nil {
		ctx.fail(id, CodeEmitFailed, "emitter for %q: %s", n.Type, err)
		return "", glsl.Invalid, errAbort
	}

	for _, u := range res.Uniforms {
		ctx.addUniform(u)
	}
	for _, name := range def.RequiredUniforms {
		ctx.addWellKnownUniform(name)
	}

	// Hoist helper functions out of the preamble and the inline code,
	// then rewrite call sites with the resolved names. Renames are
	// transitive: a preamble rename applies to this node's statements
	// and output expression too.
	renames := make(map[string]string)
	pre := ctx.hoistFunctions(res.Preamble, renames)
	code := ctx.hoistFunctions(res.Code, renames)
	if res.RequiredFunction != "" {
		ctx.requireLibFunction(res.RequiredFunction, renames)
	}
	code = glsl.RenameCalls(code, renames)
	output := glsl.RenameCalls(res.Output, renames)
	ctx.appendStatements(id, pre)
	ctx.appendStatements(id, code)

	outType := res.OutputType
	if outType == glsl.Invalid {
		outType = n.ResolvedOutputType
	}
	if outType == glsl.Invalid && len(n.Outputs) > 0 {
		outType = n.Outputs[0].Type
	}
	ctx.markStructUsed(outType)

	nr := &nodeResult{}
	if len(res.Outputs) > 0 {
		nr.outputs = make([]string, len(res.Outputs))
		nr.types = make([]glsl.Type, len(res.Outputs))
		for i, o := range res.Outputs {
			nr.outputs[i] = glsl.RenameCalls(o, renames)
			if i < len(n.Outputs) {
				nr.types[i] = n.Outputs[i].Type
			}
			ctx.markStructUsed(nr.types[i])
		}
		if len(nr.outputs) > 0 {
			nr.types[0] = outType
		}
	} else {
		nr.outputs = []string{output}
		nr.types = []glsl.Type{outType}
	}
	if def.DynamicArity {
		ctx.dynOutputs[id] = nr
	} else {
		ctx.cache[id] = nr
	}
	return nr.at(port)
}

// resolveInput resolves one declared input port: locate the feeding
// connection, recursively compile its source, apply the accessor and the
// implicit conversion. Disconnected ports fall back to their literal
// default and never abort. The second return is the type handed to the
// node's validator (glsl.Invalid when disconnected).
func (ctx *context) resolveInput(n *Node, id NodeID, i int) (Input, glsl.Type, error) {
	port := &n.Inputs[i]
	conn, connected := ctx.g.ConnTo(id, i)
	if !connected {
		pt := port.Type
		if pt.IsAny() {
			// Literal defaults of wildcard ports are scalar.
			pt = glsl.Float
		}
		expr := port.Default
		if expr == "" {
			expr = glsl.ZeroValue(pt)
		}
		return Input{Expr: expr, Type: pt}, glsl.Invalid, nil
	}
	srcExpr, srcType, err := ctx.compileNode(conn.From, conn.FromPort)
	if err != nil {
		return Input{}, glsl.Invalid, err
	}
	srcExpr, srcType = ctx.applyAccessor(id, conn, srcExpr, srcType)
	ctx.markStructUsed(srcType)
	if port.Type.IsAny() {
		// Wildcard ports receive the raw value and concrete type; the
		// node's own type logic resolves them.
		return Input{Expr: srcExpr, Type: srcType, Connected: true}, srcType, nil
	}
	if srcType != port.Type {
		conv, ok := glsl.Convert(srcExpr, srcType, port.Type)
		if !ok {
			// Structurally connected but not convertible: warn and pass
			// the untransformed value through.
			ctx.warn(id, CodeTypeMismatch, "input %q expects %s, connected value is %s", port.Name, port.Type, srcType)
			return Input{Expr: srcExpr, Type: srcType, Connected: true}, srcType, nil
		}
		return Input{Expr: conv, Type: port.Type, Connected: true}, port.Type, nil
	}
	return Input{Expr: srcExpr, Type: srcType, Connected: true}, srcType, nil
}

// hoistFunctions extracts function definitions from a code block into the
// hoisted-function table, recording renames, and returns the leftover
// statement text.
func (ctx *context) hoistFunctions(block string, renames map[string]string) string {
	if block == "" {
		return ""
	}
	fns, rest := glsl.ExtractFunctions(block)
	for _, fn := range fns {
		orig := fn.Name
		fn.Body = glsl.RenameCalls(fn.Body, renames)
		final := ctx.funcs.Add(fn)
		if final != orig {
			renames[orig] = final
		}
	}
	return rest
}

// requireLibFunction hoists a shared library function by name and records
// any rename it suffered.
func (ctx *context) requireLibFunction(name string, renames map[string]string) {
	if final, done := ctx.libRenames[name]; done {
		if final != name {
			renames[name] = final
		}
		return
	}
	fn, ok := libFunction(name)
	if !ok {
		ctx.warn(NoNode, CodeMissingEmitter, "no library function %q", name)
		return
	}
	final := ctx.funcs.Add(fn)
	ctx.libRenames[name] = final
	if final != name {
		renames[name] = final
	}
}

// appendStatements appends each nonempty line of code to the ordered
// statement list in traversal order, recording the emitting node in the
// line→node map.
func (ctx *context) appendStatements(id NodeID, code string) {
	if code == "" {
		return
	}
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		ctx.stmts = append(ctx.stmts, statement{line: line, node: id})
	}
}

// errAbort is the sentinel unwinding the traversal after a blocking
// node-scoped diagnostic has been recorded.
var errAbort = fmt.Errorf("compilation aborted")
