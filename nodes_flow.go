package graphgl

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/graphgl/graphgl/forge/texttex"
	"github.com/graphgl/graphgl/glsl"
)

// flowDefinitions returns the control-flow, feedback and binding node
// definitions of the builtin set.
func flowDefinitions() []Definition {
	return []Definition{
		blendDef(),
		loopStartDef(),
		loopEndDef(),
		{
			// feedback reads the previous frame's render target instead
			// of recursing into its input, breaking intentional cycles.
			Name:          "feedback",
			Category:      "flow",
			CycleBreaking: true,
			Inputs:        []PortSpec{{Name: "source", Type: glsl.Vec4, Optional: true}},
			Outputs:       []PortSpec{{Name: "previous", Type: glsl.Vec4}},
			Emit: func(n *Node, _ []Input, ctx *EmitContext) (EmitResult, error) {
				name := "fb_" + ctx.VarName
				return EmitResult{
					Output: "texture(" + name + ", uv)",
					Uniforms: []Uniform{{
						Name: name, Type: glsl.Sampler2D,
						Binding: BindingFeedback, Node: n.ID,
					}},
				}, nil
			},
		},
		{
			Name:     "texture",
			Category: "input",
			Inputs:   []PortSpec{{Name: "uv", Type: glsl.Vec2, Default: "uv", Optional: true}},
			Outputs:  []PortSpec{{Name: "color", Type: glsl.Vec4}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				name := "tex_" + ctx.VarName
				return EmitResult{
					Output: "texture(" + name + ", " + in[0].Expr + ")",
					Uniforms: []Uniform{{
						Name: name, Type: glsl.Sampler2D,
						Binding: BindingTexture, Node: n.ID,
						Value: n.Data["image"],
					}},
				}, nil
			},
		},
		{
			Name:     "microphone",
			Category: "input",
			Outputs:  []PortSpec{{Name: "level", Type: glsl.Float}},
			Emit: func(n *Node, _ []Input, ctx *EmitContext) (EmitResult, error) {
				name := "mic_" + ctx.VarName
				return EmitResult{
					Output: name,
					Uniforms: []Uniform{{
						Name: name, Type: glsl.Float,
						Binding: BindingMicrophone, Node: n.ID,
					}},
				}, nil
			},
		},
		{
			Name:     "midi-cc",
			Category: "input",
			Outputs:  []PortSpec{{Name: "value", Type: glsl.Float}},
			Emit: func(n *Node, _ []Input, ctx *EmitContext) (EmitResult, error) {
				name := "midi_" + ctx.VarName
				return EmitResult{
					Output: name,
					Uniforms: []Uniform{{
						Name: name, Type: glsl.Float,
						Binding: BindingMIDI, Node: n.ID,
						Controller: n.DataInt("cc", 1),
					}},
				}, nil
			},
		},
		customFunctionDef(),
		textDef(),
	}
}

// customFunctionDef is the user-authored GLSL function node. Instance data
// carries the function source (`source`), the entry point name (`entry`),
// the argument count (`args`) and the return type (`returns`). The source
// is hoisted, deduplicated against other nodes' helpers and renamed on
// collision; the call expression follows any rename.
func customFunctionDef() Definition {
	return Definition{
		Name:     "custom-function",
		Category: "flow",
		Inputs: []PortSpec{
			{Name: "a", Type: glsl.Any, Default: "0.0", Optional: true},
			{Name: "b", Type: glsl.Any, Default: "0.0", Optional: true},
			{Name: "c", Type: glsl.Any, Default: "0.0", Optional: true},
			{Name: "d", Type: glsl.Any, Default: "0.0", Optional: true},
		},
		Outputs: []PortSpec{{Name: "result", Type: glsl.Any}},
		ValidateTypes: func(n *Node, _ []glsl.Type) (glsl.Type, error) {
			t := glsl.Type(n.DataString("returns", string(glsl.Vec4)))
			return t, nil
		},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			src := n.DataString("source", "")
			entry := n.DataString("entry", "")
			if src == "" || entry == "" {
				return EmitResult{}, fmt.Errorf("custom function needs source and entry data")
			}
			nargs := n.DataInt("args", 0)
			if nargs < 0 || nargs > len(in) {
				return EmitResult{}, fmt.Errorf("custom function argument count %d out of range", nargs)
			}
			args := make([]string, nargs)
			for i := range args {
				args[i] = in[i].Expr
			}
			t := n.ResolvedOutputType
			return EmitResult{
				Preamble:   src,
				Code:       string(t) + " " + ctx.VarName + " = " + entry + "(" + strings.Join(args, ", ") + ");",
				Output:     ctx.VarName,
				OutputType: t,
			}, nil
		},
	}
}

// blendDef is the continuous-index blend node: a clamped-index cascade of
// linear interpolations between a growing list of candidates. Port 0 is
// the blend index; candidate ports grow once every existing slot is
// connected, minimum two.
func blendDef() Definition {
	const minCandidates = 2
	return Definition{
		Name:         "blend",
		Category:     "flow",
		DynamicArity: true,
		Inputs: []PortSpec{
			{Name: "index", Type: glsl.Float, Default: "0.0"},
			{Name: "0", Type: glsl.Any, Optional: true},
			{Name: "1", Type: glsl.Any, Optional: true},
		},
		Outputs: []PortSpec{{Name: "result", Type: glsl.Any}},
		Rebuild: func(n *Node, g *Graph) {
			connected := 0
			for _, c := range g.Connections() {
				if c.To == n.ID && c.ToPort >= 1 {
					connected++
				}
			}
			want := connected + 1
			if want < minCandidates {
				want = minCandidates
			}
			inputs := []Port{n.Inputs[0]}
			for i := 0; i < want; i++ {
				_, hooked := g.ConnTo(n.ID, 1+i)
				inputs = append(inputs, Port{
					Name: strconv.Itoa(i), Type: glsl.Any, Optional: true, Hidden: !hooked && i >= minCandidates,
				})
			}
			n.Inputs = inputs
		},
		ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
			var connected []glsl.Type
			for _, t := range types[1:] {
				if t != glsl.Invalid {
					connected = append(connected, t)
				}
			}
			if len(connected) == 0 {
				return glsl.Type(n.DataString("type", string(glsl.Vec3))), nil
			}
			first := connected[0]
			allSame := true
			only34 := true
			for _, t := range connected {
				if t != first {
					allSame = false
				}
				if t != glsl.Vec3 && t != glsl.Vec4 {
					only34 = false
				}
			}
			switch {
			case allSame && first == glsl.Int:
				// Integer candidates widen to float for mixing.
				return glsl.Float, nil
			case allSame && first.IsBlendable():
				return first, nil
			case allSame && !first.IsPrimitive() && !first.IsAny():
				return first, nil // Same struct type throughout.
			case only34:
				// vec3 candidates widen with alpha=1 at emission.
				return glsl.Vec4, nil
			}
			return glsl.Invalid, fmt.Errorf("blend candidates mix incompatible types")
		},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			t := n.ResolvedOutputType
			idx := in[0].Expr
			var cands []string
			for _, c := range in[1:] {
				if !c.Connected {
					continue
				}
				expr := c.Expr
				if t == glsl.Vec4 && c.Type == glsl.Vec3 {
					expr, _ = glsl.Convert(expr, glsl.Vec3, glsl.Vec4)
				} else if t == glsl.Float && c.Type == glsl.Int {
					expr, _ = glsl.Convert(expr, glsl.Int, glsl.Float)
				}
				cands = append(cands, expr)
			}
			v := ctx.VarName
			mix := func(a, b, t string) string { return "mix(" + a + ", " + b + ", " + t + ")" }
			if ctx.Structs.IsStruct(n.ResolvedOutputType) {
				blendName := ctx.Structs.BlendFuncName(n.ResolvedOutputType)
				mix = func(a, b, t string) string { return blendName + "(" + a + ", " + b + ", " + t + ")" }
			}
			switch len(cands) {
			case 0:
				zero := glsl.ZeroValue(t)
				if zero == "" {
					return EmitResult{Code: string(t) + " " + v + ";", Output: v, OutputType: t}, nil
				}
				return emitDecl(ctx, t, zero)
			case 1:
				return emitDecl(ctx, t, cands[0])
			case 2:
				return emitDecl(ctx, t, mix(cands[0], cands[1], "clamp("+idx+", 0.0, 1.0)"))
			}
			top := glsl.FloatExpr(float32(len(cands) - 1))
			var sb strings.Builder
			fmt.Fprintf(&sb, "float %s_t = clamp(%s, 0.0, %s);\n", v, idx, top)
			fmt.Fprintf(&sb, "%s %s;\n", t, v)
			for i := 0; i+1 < len(cands); i++ {
				cond := fmt.Sprintf("if (%s_t <= %s) { %s = %s; }", v, glsl.FloatExpr(float32(i+1)), v,
					mix(cands[i], cands[i+1], fmt.Sprintf("%s_t - %s", v, glsl.FloatExpr(float32(i)))))
				if i > 0 {
					cond = "else " + cond
				}
				sb.WriteString(cond)
				sb.WriteByte('\n')
			}
			// Clamp already pins the index below the top boundary; the
			// final branch is the fall-through to the last candidate.
			fmt.Fprintf(&sb, "else { %s = %s; }\n", v, cands[len(cands)-1])
			return EmitResult{Code: sb.String(), Output: v, OutputType: t}, nil
		},
	}
}

// NewLoopPair adds a paired loop-start/loop-end couple to g, cross-linking
// the two through their stored pair ids.
func NewLoopPair(g *Graph) (start, end *Node, err error) {
	start, err = g.AddNode("loop-start")
	if err != nil {
		return nil, nil, err
	}
	end, err = g.AddNode("loop-end")
	if err != nil {
		g.RemoveNode(start.ID)
		return nil, nil, err
	}
	start.Data["pair"] = int(end.ID)
	end.Data["pair"] = int(start.ID)
	return start, end, nil
}

// AddLoopVar raises the opener's declared loop-variable count by one.
func AddLoopVar(start *Node) {
	start.Data["vars"] = loopBaseVars(start) + 1
}

// RemoveLoopVar lowers the opener's declared loop-variable count.
// Shrinking below the minimum of one variable is rejected.
func RemoveLoopVar(start *Node) error {
	base := loopBaseVars(start)
	if base <= 1 {
		return fmt.Errorf("loop must keep at least one variable")
	}
	start.Data["vars"] = base - 1
	return nil
}

func loopBaseVars(n *Node) int {
	base := n.DataInt("vars", 1)
	if base < 1 {
		base = 1
	}
	return base
}

// loopVarCount is the effective variable slot count of the opener: the
// declared count, auto-grown so a fresh slot appears once every existing
// slot is connected.
func loopVarCount(start *Node, g *Graph) int {
	connected := 0
	for _, c := range g.Connections() {
		if c.To == start.ID && c.ToPort >= 1 {
			connected++
		}
	}
	count := loopBaseVars(start)
	if connected+1 > count {
		count = connected + 1
	}
	return count
}

// loopVarSuffix names loop-carried variables a, b, c, ...
func loopVarSuffix(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return "z" + strconv.Itoa(i-25)
}

// loopPairOf resolves a loop node's sibling through the owning graph.
func loopPairOf(n *Node, g *Graph) *Node {
	id := n.DataInt("pair", int(NoNode))
	return g.Node(NodeID(id))
}

// loopStartDef opens the iteration construct: one initializer per
// loop-carried variable plus the iteration-count-bounded loop header. The
// opener's variable list is authoritative; the closer mirrors it on every
// port rebuild. Input 0 is the iteration count; inputs 1..n are variable
// start values and outputs 0..n-1 the in-loop current values.
func loopStartDef() Definition {
	return Definition{
		Name:         "loop-start",
		Category:     "flow",
		DynamicArity: true,
		Inputs: []PortSpec{
			{Name: "iterations", Type: glsl.Float, Default: "8.0"},
			{Name: "a", Type: glsl.Any, Optional: true},
		},
		Outputs: []PortSpec{{Name: "a", Type: glsl.Any}},
		Rebuild: func(n *Node, g *Graph) {
			count := loopVarCount(n, g)
			inputs := []Port{n.Inputs[0]}
			var outputs []Port
			for i := 0; i < count; i++ {
				_, hooked := g.ConnTo(n.ID, 1+i)
				name := loopVarSuffix(i)
				inputs = append(inputs, Port{Name: name, Type: glsl.Any, Default: "0.0", Optional: true})
				outType := glsl.Any
				if i < len(n.Outputs) && n.Outputs[i].Type != glsl.Any {
					outType = n.Outputs[i].Type
				}
				// Outputs stay hidden until their start value connects.
				outputs = append(outputs, Port{Name: name, Type: outType, Hidden: !hooked})
			}
			n.Inputs = inputs
			n.Outputs = outputs
		},
		ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
			for i := range n.Outputs {
				n.Outputs[i].Type = orFloat(types[1+i])
			}
			return glsl.Invalid, nil
		},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			v := ctx.VarName
			var sb strings.Builder
			outputs := make([]string, len(n.Outputs))
			for i := range n.Outputs {
				name := v + "_" + loopVarSuffix(i)
				t := n.Outputs[i].Type
				expr := in[1+i].Expr
				if !in[1+i].Connected {
					expr = glsl.ZeroValue(t)
				}
				fmt.Fprintf(&sb, "%s %s = %s;\n", t, name, expr)
				outputs[i] = name
			}
			fmt.Fprintf(&sb, "for (int %s_i = 0; %s_i < int(%s); ++%s_i) {\n", v, v, in[0].Expr, v)
			return EmitResult{Code: sb.String(), Output: outputs[0], Outputs: outputs}, nil
		},
	}
}

// loopEndDef closes the construct: per-variable update assignments, an
// optional break condition and the closing brace. Input 0 is the break
// condition; inputs 1..n are variable next values and outputs 0..n-1 the
// post-loop final values. Ports mirror the paired opener on every rebuild.
func loopEndDef() Definition {
	return Definition{
		Name:         "loop-end",
		Category:     "flow",
		DynamicArity: true,
		Inputs: []PortSpec{
			{Name: "break", Type: glsl.Bool, Default: "false", Optional: true},
			{Name: "a", Type: glsl.Any, Optional: true},
		},
		Outputs: []PortSpec{{Name: "a", Type: glsl.Any}},
		Rebuild: func(n *Node, g *Graph) {
			start := loopPairOf(n, g)
			if start == nil {
				return
			}
			count := loopVarCount(start, g)
			inputs := []Port{n.Inputs[0]}
			var outputs []Port
			for i := 0; i < count; i++ {
				_, hooked := g.ConnTo(n.ID, 1+i)
				name := loopVarSuffix(i)
				inputs = append(inputs, Port{Name: name, Type: glsl.Any, Optional: true})
				outputs = append(outputs, Port{Name: name, Type: glsl.Any, Hidden: !hooked})
			}
			n.Inputs = inputs
			n.Outputs = outputs
		},
		ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
			return glsl.Invalid, nil
		},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			start := loopPairOf(n, ctx.Graph)
			if start == nil {
				return EmitResult{}, fmt.Errorf("loop end has no paired loop start")
			}
			sv := ctx.VarFor(start.ID)
			var sb strings.Builder
			outputs := make([]string, len(n.Outputs))
			for i := range n.Outputs {
				name := sv + "_" + loopVarSuffix(i)
				if in[1+i].Connected {
					fmt.Fprintf(&sb, "%s = %s;\n", name, in[1+i].Expr)
				}
				if i < len(start.Outputs) {
					n.Outputs[i].Type = start.Outputs[i].Type
				}
				outputs[i] = name
			}
			if in[0].Connected {
				fmt.Fprintf(&sb, "if (%s) { break; }\n", in[0].Expr)
			}
			sb.WriteString("}\n")
			return EmitResult{Code: sb.String(), Output: outputs[0], Outputs: outputs}, nil
		},
	}
}

var (
	defaultFaceOnce sync.Once
	defaultFace     *texttex.Face
	defaultFaceErr  error
)

// textDef rasterizes a text line host-side into a grayscale atlas and
// samples it as a texture-backed uniform. The red channel carries the
// coverage mask.
func textDef() Definition {
	return Definition{
		Name:     "text",
		Category: "generator",
		Inputs:   []PortSpec{{Name: "uv", Type: glsl.Vec2, Default: "uv", Optional: true}},
		Outputs:  []PortSpec{{Name: "mask", Type: glsl.Float}},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			defaultFaceOnce.Do(func() {
				defaultFace, defaultFaceErr = texttex.NewFace(nil, texttex.FaceConfig{})
			})
			if defaultFaceErr != nil {
				return EmitResult{}, defaultFaceErr
			}
			img, err := defaultFace.RenderLine(n.DataString("text", "graphgl"))
			if err != nil {
				return EmitResult{}, err
			}
			name := "txt_" + ctx.VarName
			return EmitResult{
				Output: "texture(" + name + ", " + in[0].Expr + ").r",
				Uniforms: []Uniform{{
					Name: name, Type: glsl.Sampler2D,
					Binding: BindingTexture, Node: n.ID, Value: img,
				}},
			}, nil
		},
	}
}
