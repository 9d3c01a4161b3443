package graphgl

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/graphgl/graphgl/glsl"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// builtinDefinitions assembles the builtin node set. Kept as a function so
// each Registry gets definitions it may close over freely.
func builtinDefinitions() []Definition {
	defs := []Definition{
		{
			Name:     "output",
			Category: "output",
			Sink:     true,
			Inputs:   []PortSpec{{Name: "color", Type: glsl.Vec4, Optional: true}},
		},
		{
			Name:     "const-float",
			Category: "value",
			Outputs:  []PortSpec{{Name: "value", Type: glsl.Float}},
			Emit: func(n *Node, _ []Input, _ *EmitContext) (EmitResult, error) {
				return EmitResult{Output: glsl.FloatExpr(n.DataFloat("value", 0))}, nil
			},
		},
		{
			Name:     "const-vec2",
			Category: "value",
			Outputs:  []PortSpec{{Name: "value", Type: glsl.Vec2}},
			Emit: func(n *Node, _ []Input, _ *EmitContext) (EmitResult, error) {
				v := ms2.Vec{X: n.DataFloat("x", 0), Y: n.DataFloat("y", 0)}
				return EmitResult{Output: glsl.Vec2Expr(v)}, nil
			},
		},
		{
			Name:     "const-vec3",
			Category: "value",
			Outputs:  []PortSpec{{Name: "value", Type: glsl.Vec3}},
			Emit: func(n *Node, _ []Input, _ *EmitContext) (EmitResult, error) {
				v := ms3.Vec{X: n.DataFloat("x", 0), Y: n.DataFloat("y", 0), Z: n.DataFloat("z", 0)}
				return EmitResult{Output: glsl.Vec3Expr(v)}, nil
			},
		},
		{
			Name:     "const-vec4",
			Category: "value",
			Outputs:  []PortSpec{{Name: "value", Type: glsl.Vec4}},
			Emit: func(n *Node, _ []Input, _ *EmitContext) (EmitResult, error) {
				v := [4]float32{n.DataFloat("x", 0), n.DataFloat("y", 0), n.DataFloat("z", 0), n.DataFloat("w", 1)}
				return EmitResult{Output: glsl.Vec4Expr(v)}, nil
			},
		},
		{
			// Color picker storing hue/saturation/value instance data.
			// The HSV→RGB conversion happens host-side so the program
			// carries a plain literal.
			Name:     "color",
			Category: "value",
			Outputs:  []PortSpec{{Name: "color", Type: glsl.Vec4}},
			Emit: func(n *Node, _ []Input, _ *EmitContext) (EmitResult, error) {
				r, g, b := hsv2rgb(n.DataFloat("hue", 0), n.DataFloat("sat", 0), n.DataFloat("val", 1))
				v := [4]float32{r, g, b, n.DataFloat("alpha", 1)}
				return EmitResult{Output: glsl.Vec4Expr(v)}, nil
			},
		},
		{
			// Runtime-adjustable scalar. Declares a uniform carrying its
			// current literal value so the runtime can update it without
			// recompiling.
			Name:     "slider",
			Category: "value",
			Outputs:  []PortSpec{{Name: "value", Type: glsl.Float}},
			Emit: func(n *Node, _ []Input, ctx *EmitContext) (EmitResult, error) {
				name := "slider_" + ctx.VarName
				return EmitResult{
					Output:   name,
					Uniforms: []Uniform{{Name: name, Type: glsl.Float, Value: n.DataFloat("value", 0), Node: n.ID}},
				}, nil
			},
		},
		{
			Name:             "time",
			Category:         "input",
			Outputs:          []PortSpec{{Name: "time", Type: glsl.Float}},
			RequiredUniforms: []string{"time"},
			Emit: func(*Node, []Input, *EmitContext) (EmitResult, error) {
				return EmitResult{Output: "time"}, nil
			},
		},
		{
			Name:             "frame",
			Category:         "input",
			Outputs:          []PortSpec{{Name: "frame", Type: glsl.Int}},
			RequiredUniforms: []string{"frame"},
			Emit: func(*Node, []Input, *EmitContext) (EmitResult, error) {
				return EmitResult{Output: "frame"}, nil
			},
		},
		{
			Name:             "resolution",
			Category:         "input",
			Outputs:          []PortSpec{{Name: "resolution", Type: glsl.Vec2}},
			RequiredUniforms: []string{"resolution"},
			Emit: func(*Node, []Input, *EmitContext) (EmitResult, error) {
				return EmitResult{Output: "resolution"}, nil
			},
		},
		{
			Name:             "mouse",
			Category:         "input",
			Outputs:          []PortSpec{{Name: "mouse", Type: glsl.Vec2}},
			RequiredUniforms: []string{"mouse"},
			Emit: func(*Node, []Input, *EmitContext) (EmitResult, error) {
				return EmitResult{Output: "mouse"}, nil
			},
		},
		{
			Name:     "uv",
			Category: "input",
			Outputs:  []PortSpec{{Name: "uv", Type: glsl.Vec2}},
			Emit: func(*Node, []Input, *EmitContext) (EmitResult, error) {
				return EmitResult{Output: "uv"}, nil
			},
		},
		binaryOpDef("add", "+", "0.0"),
		binaryOpDef("subtract", "-", "0.0"),
		binaryOpDef("multiply", "*", "1.0"),
		binaryOpDef("divide", "/", "1.0"),
		binaryFuncDef("pow", "1.0"),
		binaryFuncDef("min", "0.0"),
		binaryFuncDef("max", "0.0"),
		binaryFuncDef("mod", "1.0"),
		binaryFuncDef("step", "0.0"),
		{
			Name:     "dot",
			Category: "math",
			Inputs: []PortSpec{
				{Name: "a", Type: glsl.Any, Default: "0.0"},
				{Name: "b", Type: glsl.Any, Default: "0.0"},
			},
			Outputs: []PortSpec{{Name: "result", Type: glsl.Float}},
			ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
				a, b := orFloat(types[0]), orFloat(types[1])
				if a != b || !a.IsVector() {
					return glsl.Invalid, fmt.Errorf("dot expects two equal vectors, got %s and %s", a, b)
				}
				return glsl.Float, nil
			},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				return emitDecl(ctx, glsl.Float, "dot("+in[0].Expr+", "+in[1].Expr+")")
			},
		},
		{
			Name:     "cross",
			Category: "math",
			Inputs: []PortSpec{
				{Name: "a", Type: glsl.Vec3, Default: "vec3(0.0)"},
				{Name: "b", Type: glsl.Vec3, Default: "vec3(0.0)"},
			},
			Outputs: []PortSpec{{Name: "result", Type: glsl.Vec3}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				return emitDecl(ctx, glsl.Vec3, "cross("+in[0].Expr+", "+in[1].Expr+")")
			},
		},
		{
			Name:     "length",
			Category: "math",
			Inputs:   []PortSpec{{Name: "x", Type: glsl.Any, Default: "0.0"}},
			Outputs:  []PortSpec{{Name: "result", Type: glsl.Float}},
			ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
				t := orFloat(types[0])
				if !t.IsVector() && t != glsl.Float {
					return glsl.Invalid, fmt.Errorf("length expects float or vector, got %s", t)
				}
				return glsl.Float, nil
			},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				return emitDecl(ctx, glsl.Float, "length("+in[0].Expr+")")
			},
		},
		unaryFuncDef("sin"), unaryFuncDef("cos"), unaryFuncDef("tan"),
		unaryFuncDef("floor"), unaryFuncDef("fract"), unaryFuncDef("abs"),
		unaryFuncDef("sqrt"), unaryFuncDef("exp"), unaryFuncDef("log"),
		unaryFuncDef("sign"), unaryFuncDef("normalize"),
		{
			Name:     "clamp",
			Category: "math",
			Inputs: []PortSpec{
				{Name: "x", Type: glsl.Any, Default: "0.0"},
				{Name: "lo", Type: glsl.Float, Default: "0.0", Optional: true},
				{Name: "hi", Type: glsl.Float, Default: "1.0", Optional: true},
			},
			Outputs: []PortSpec{{Name: "result", Type: glsl.Any}},
			ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
				return validateUnaryNumeric("clamp", types[0])
			},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				t := n.ResolvedOutputType
				return emitDecl(ctx, t, "clamp("+scalarConv(in[0], t)+", "+in[1].Expr+", "+in[2].Expr+")")
			},
		},
		{
			Name:     "compose-vec3",
			Category: "vector",
			Inputs: []PortSpec{
				{Name: "x", Type: glsl.Float, Default: "0.0", Optional: true},
				{Name: "y", Type: glsl.Float, Default: "0.0", Optional: true},
				{Name: "z", Type: glsl.Float, Default: "0.0", Optional: true},
			},
			Outputs: []PortSpec{{Name: "v", Type: glsl.Vec3}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				return emitDecl(ctx, glsl.Vec3, "vec3("+in[0].Expr+", "+in[1].Expr+", "+in[2].Expr+")")
			},
		},
		{
			Name:     "compose-vec4",
			Category: "vector",
			Inputs: []PortSpec{
				{Name: "x", Type: glsl.Float, Default: "0.0", Optional: true},
				{Name: "y", Type: glsl.Float, Default: "0.0", Optional: true},
				{Name: "z", Type: glsl.Float, Default: "0.0", Optional: true},
				{Name: "w", Type: glsl.Float, Default: "1.0", Optional: true},
			},
			Outputs: []PortSpec{{Name: "v", Type: glsl.Vec4}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				return emitDecl(ctx, glsl.Vec4, "vec4("+in[0].Expr+", "+in[1].Expr+", "+in[2].Expr+", "+in[3].Expr+")")
			},
		},
		{
			// Splits any vector into four scalar components; missing
			// components pad per the widening rules.
			Name:     "split",
			Category: "vector",
			Inputs:   []PortSpec{{Name: "v", Type: glsl.Any, Default: "0.0"}},
			Outputs: []PortSpec{
				{Name: "x", Type: glsl.Float}, {Name: "y", Type: glsl.Float},
				{Name: "z", Type: glsl.Float}, {Name: "w", Type: glsl.Float},
			},
			ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
				t := orFloat(types[0])
				if !t.IsVector() && !t.IsScalar() {
					return glsl.Invalid, fmt.Errorf("split expects a scalar or vector, got %s", t)
				}
				return glsl.Invalid, nil
			},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				expr, _ := glsl.Convert(in[0].Expr, orFloat(in[0].Type), glsl.Vec4)
				v := ctx.VarName
				return EmitResult{
					Code:    string(glsl.Vec4) + " " + v + " = " + expr + ";",
					Output:  v + ".x",
					Outputs: []string{v + ".x", v + ".y", v + ".z", v + ".w"},
				}, nil
			},
		},
		{
			Name:     "rotate2d",
			Category: "vector",
			Inputs: []PortSpec{
				{Name: "v", Type: glsl.Vec2, Default: "vec2(0.0)"},
				{Name: "angle", Type: glsl.Float, Default: "0.0"},
			},
			Outputs: []PortSpec{{Name: "result", Type: glsl.Vec2}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				res, err := emitDecl(ctx, glsl.Vec2, "rotate2d("+in[0].Expr+", "+in[1].Expr+")")
				res.RequiredFunction = "rotate2d"
				return res, err
			},
		},
		{
			Name:     "random",
			Category: "generator",
			Inputs:   []PortSpec{{Name: "seed", Type: glsl.Vec2, Default: "uv"}},
			Outputs:  []PortSpec{{Name: "value", Type: glsl.Float}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				res, err := emitDecl(ctx, glsl.Float, "rand("+in[0].Expr+")")
				res.RequiredFunction = "rand"
				return res, err
			},
		},
		{
			Name:     "luminance",
			Category: "color",
			Inputs:   []PortSpec{{Name: "color", Type: glsl.Vec3, Default: "vec3(0.0)"}},
			Outputs:  []PortSpec{{Name: "result", Type: glsl.Float}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				res, err := emitDecl(ctx, glsl.Float, "luma("+in[0].Expr+")")
				res.RequiredFunction = "luma"
				return res, err
			},
		},
		{
			Name:     "hsv-to-rgb",
			Category: "color",
			Inputs:   []PortSpec{{Name: "hsv", Type: glsl.Vec3, Default: "vec3(0.0)"}},
			Outputs:  []PortSpec{{Name: "rgb", Type: glsl.Vec3}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				res, err := emitDecl(ctx, glsl.Vec3, "hsv2rgb("+in[0].Expr+")")
				res.RequiredFunction = "hsv2rgb"
				return res, err
			},
		},
		{
			Name:     "make-light",
			Category: "struct",
			Inputs: []PortSpec{
				{Name: "position", Type: glsl.Vec3, Default: "vec3(0.0)"},
				{Name: "color", Type: glsl.Vec3, Default: "vec3(1.0)"},
				{Name: "intensity", Type: glsl.Float, Default: "1.0"},
			},
			Outputs: []PortSpec{{Name: "light", Type: "Light"}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				return emitDecl(ctx, "Light", "Light("+in[0].Expr+", "+in[1].Expr+", "+in[2].Expr+")")
			},
		},
		{
			Name:     "make-material",
			Category: "struct",
			Inputs: []PortSpec{
				{Name: "albedo", Type: glsl.Vec3, Default: "vec3(1.0)"},
				{Name: "roughness", Type: glsl.Float, Default: "0.5"},
				{Name: "metallic", Type: glsl.Float, Default: "0.0"},
			},
			Outputs: []PortSpec{{Name: "material", Type: "Material"}},
			Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
				return emitDecl(ctx, "Material", "Material("+in[0].Expr+", "+in[1].Expr+", "+in[2].Expr+")")
			},
		},
	}
	return append(defs, flowDefinitions()...)
}

// emitDecl emits `<type> <var> = <expr>;` and returns the variable as the
// node's output expression.
func emitDecl(ctx *EmitContext, t glsl.Type, expr string) (EmitResult, error) {
	if t == glsl.Invalid {
		t = glsl.Float
	}
	return EmitResult{
		Code:       string(t) + " " + ctx.VarName + " = " + expr + ";",
		Output:     ctx.VarName,
		OutputType: t,
	}, nil
}

// orFloat defaults the absent type to float.
func orFloat(t glsl.Type) glsl.Type {
	if t == glsl.Invalid {
		return glsl.Float
	}
	return t
}

// scalarConv widens an integer input when the resolved type is floating.
func scalarConv(in Input, want glsl.Type) string {
	if in.Type == glsl.Int && want != glsl.Int {
		expr, _ := glsl.Convert(in.Expr, glsl.Int, glsl.Float)
		return expr
	}
	return in.Expr
}

func validateUnaryNumeric(op string, t glsl.Type) (glsl.Type, error) {
	t = orFloat(t)
	if t == glsl.Int {
		return glsl.Float, nil
	}
	if t != glsl.Float && !t.IsVector() {
		return glsl.Invalid, fmt.Errorf("%s expects float or vector, got %s", op, t)
	}
	return t, nil
}

// commonNumericType resolves the result type of a componentwise binary
// operation over the GLSL implicit mixing rules.
func commonNumericType(a, b glsl.Type) (glsl.Type, error) {
	a, b = orFloat(a), orFloat(b)
	switch {
	case a == b:
		return a, nil
	case a == glsl.Int && b == glsl.Float, a == glsl.Float && b == glsl.Int:
		return glsl.Float, nil
	case a.IsScalar() && (b.IsVector() || b.IsMatrix()):
		return b, nil
	case b.IsScalar() && (a.IsVector() || a.IsMatrix()):
		return a, nil
	case a.IsMatrix() && b.IsVector() && matrixDim(a) == b.Components():
		return b, nil
	case a.IsVector() && b.IsMatrix() && matrixDim(b) == a.Components():
		return a, nil
	}
	return glsl.Invalid, fmt.Errorf("no common type for %s and %s", a, b)
}

// matrixDim is the row/column count of a square matrix type, zero for
// non-matrix types.
func matrixDim(t glsl.Type) int {
	switch t {
	case glsl.Mat2:
		return 2
	case glsl.Mat3:
		return 3
	case glsl.Mat4:
		return 4
	}
	return 0
}

func binaryOpDef(name, op, identity string) Definition {
	return Definition{
		Name:     name,
		Category: "math",
		Inputs: []PortSpec{
			{Name: "a", Type: glsl.Any, Default: identity},
			{Name: "b", Type: glsl.Any, Default: identity},
		},
		Outputs: []PortSpec{{Name: "result", Type: glsl.Any}},
		ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
			return commonNumericType(types[0], types[1])
		},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			t := n.ResolvedOutputType
			return emitDecl(ctx, t, scalarConv(in[0], t)+" "+op+" "+scalarConv(in[1], t))
		},
	}
}

func binaryFuncDef(name, identity string) Definition {
	return Definition{
		Name:     name,
		Category: "math",
		Inputs: []PortSpec{
			{Name: "a", Type: glsl.Any, Default: identity},
			{Name: "b", Type: glsl.Any, Default: identity},
		},
		Outputs: []PortSpec{{Name: "result", Type: glsl.Any}},
		ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
			return commonNumericType(types[0], types[1])
		},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			t := n.ResolvedOutputType
			return emitDecl(ctx, t, name+"("+scalarConv(in[0], t)+", "+scalarConv(in[1], t)+")")
		},
	}
}

func unaryFuncDef(name string) Definition {
	return Definition{
		Name:     name,
		Category: "math",
		Inputs:   []PortSpec{{Name: "x", Type: glsl.Any, Default: "0.0"}},
		Outputs:  []PortSpec{{Name: "result", Type: glsl.Any}},
		ValidateTypes: func(n *Node, types []glsl.Type) (glsl.Type, error) {
			return validateUnaryNumeric(name, types[0])
		},
		Emit: func(n *Node, in []Input, ctx *EmitContext) (EmitResult, error) {
			t := n.ResolvedOutputType
			return emitDecl(ctx, t, name+"("+scalarConv(in[0], t)+")")
		},
	}
}

// hsv2rgb converts hue [0,1), saturation and value to RGB host-side.
func hsv2rgb(h, s, v float32) (r, g, b float32) {
	h = h - math32.Floor(h)
	i := math32.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	}
	return v, p, q
}
