package graphgl

import (
	"strings"

	"github.com/graphgl/graphgl/glsl"
)

// VersionStr is the GLSL version header of generated programs.
const VersionStr = "#version 330\n"

// fallbackColorExpr is the recognizable "unconnected" output color.
const fallbackColorExpr = "vec4(1.0,0.0,1.0,1.0)"

// VertexSource is the fixed vertex-stage boilerplate: a fullscreen
// triangle pair forwarding normalized coordinates.
const VertexSource = VersionStr + `in vec2 aPos;
out vec2 uv;
void main() {
	uv = aPos * 0.5 + 0.5;
	gl_Position = vec4(aPos, 0.0, 1.0);
}
`

// Result is the outcome of one compile call.
type Result struct {
	// VertexSource is the fixed vertex program.
	VertexSource string
	// FragmentSource is the assembled fragment program, empty when the
	// compile failed.
	FragmentSource string
	// Uniforms describes every distinct uniform of the program: literal
	// values and dynamic-binding markers.
	Uniforms []Uniform
	// Errors and Warnings are the collected diagnostics.
	Errors   []Diagnostic
	Warnings []Diagnostic
	// ErrNode is the first failing node id, or NoNode.
	ErrNode NodeID

	headerLines int
	lineNodes   []NodeID
}

// Failed reports whether the compile produced no program.
func (r *Result) Failed() bool { return len(r.Errors) > 0 }

// NodeForLine maps a 1-based fragment-source line number, as reported by a
// shading-language compiler error, back to the originating node id.
func (r *Result) NodeForLine(line int) (NodeID, bool) {
	idx := line - r.headerLines - 1
	if idx < 0 || idx >= len(r.lineNodes) {
		return NoNode, false
	}
	return r.lineNodes[idx], true
}

// finish assembles the context's accumulated state into a Result. An empty
// outExpr means the compile failed and no fragment source is produced.
func (c *Compiler) finish(ctx *context, outExpr string) *Result {
	r := &Result{
		VertexSource: VertexSource,
		Uniforms:     ctx.uniforms,
		ErrNode:      ctx.errNode,
	}
	for _, d := range ctx.diags {
		if d.Severity == SeverityError {
			r.Errors = append(r.Errors, d)
		} else {
			r.Warnings = append(r.Warnings, d)
		}
	}
	if outExpr == "" || len(r.Errors) > 0 {
		return r
	}

	var sb strings.Builder
	sb.WriteString(VersionStr)
	sb.WriteString("\nin vec2 uv;\nout vec4 fragColor;\n")
	for _, u := range ctx.uniforms {
		sb.WriteString("uniform ")
		sb.WriteString(string(u.Type))
		sb.WriteByte(' ')
		sb.WriteString(u.Name)
		sb.WriteString(";\n")
	}

	// Struct definitions in dependency-first order, then one generated
	// interpolation function per used struct.
	emitted := make(map[glsl.Type]bool)
	var structSeq []glsl.Type
	for _, t := range ctx.structOrder {
		for _, dep := range c.Structs.DependentStructs(t) {
			if !emitted[dep] {
				emitted[dep] = true
				structSeq = append(structSeq, dep)
			}
		}
		if !emitted[t] {
			emitted[t] = true
			structSeq = append(structSeq, t)
		}
	}
	for _, t := range structSeq {
		def, err := c.Structs.Definition(t)
		if err == nil {
			sb.WriteString(def)
		}
	}
	for _, t := range structSeq {
		blend, err := c.Structs.BlendFunction(t)
		if err == nil {
			sb.WriteString(blend)
		}
	}

	if ctx.funcs.Len() > 0 {
		sb.Write(ctx.funcs.AppendAll(nil))
	}

	sb.WriteString("void main() {\n")
	// Lines before this point precede the statement body; their count
	// maps driver-reported line numbers back to nodes.
	r.headerLines = strings.Count(sb.String(), "\n")
	for _, st := range ctx.stmts {
		sb.WriteByte('\t')
		sb.WriteString(st.line)
		sb.WriteByte('\n')
		r.lineNodes = append(r.lineNodes, st.node)
	}
	sb.WriteString("\tfragColor = ")
	sb.WriteString(outExpr)
	sb.WriteString(";\n}\n")
	r.FragmentSource = sb.String()
	return r
}
