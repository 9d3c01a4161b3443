package glsl

import (
	"strings"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		from, to Type
		want     string
		ok       bool
	}{
		{Float, Float, "e", true},
		{Int, Float, "float(e)", true},
		{Float, Vec2, "vec2(e)", true},
		{Float, Vec3, "vec3(e)", true},
		{Float, Vec4, "vec4(vec3(e),1.0)", true},
		{Int, Vec3, "vec3(float(e))", true},
		{Vec2, Vec3, "vec3(e,0.0)", true},
		{Vec2, Vec4, "vec4(e,0.0,1.0)", true},
		{Vec3, Vec4, "vec4(e,1.0)", true},
		{Vec4, Vec3, "(e).xyz", true},
		{Vec4, Vec2, "(e).xy", true},
		{Vec3, Vec2, "(e).xy", true},
		{Mat3, Vec3, "e", false},
		{Sampler2D, Float, "e", false},
		{Bool, Float, "e", false},
	}
	for _, tt := range tests {
		got, ok := Convert("e", tt.from, tt.to)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Convert(%s -> %s) = %q, %v; want %q, %v", tt.from, tt.to, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFloatExpr(t *testing.T) {
	tests := []struct {
		v    float32
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{-2.5, "-2.5"},
		{0.25, "0.25"},
		{100, "100.0"},
	}
	for _, tt := range tests {
		if got := FloatExpr(tt.v); got != tt.want {
			t.Errorf("FloatExpr(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
	if got := Vec2Expr(ms2.Vec{X: 1, Y: 2}); got != "vec2(1.0,2.0)" {
		t.Errorf("Vec2Expr = %q", got)
	}
	if got := Vec3Expr(ms3.Vec{X: 1, Y: 0.5, Z: 0}); got != "vec3(1.0,0.5,0.0)" {
		t.Errorf("Vec3Expr = %q", got)
	}
	if got := Vec4Expr([4]float32{0, 0, 0, 1}); got != "vec4(0.0,0.0,0.0,1.0)" {
		t.Errorf("Vec4Expr = %q", got)
	}
}

func TestExtractFunctions(t *testing.T) {
	src := `float noise(vec2 p) {
	return fract(sin(dot(p, vec2(12.9, 78.2))) * 43758.5);
}
float v0 = noise(uv);
`
	fns, rest := ExtractFunctions(src)
	if len(fns) != 1 {
		t.Fatalf("got %d functions, want 1", len(fns))
	}
	fn := fns[0]
	if fn.Name != "noise" || fn.ReturnType != "float" {
		t.Errorf("got %s %s, want float noise", fn.ReturnType, fn.Name)
	}
	if !strings.Contains(fn.Body, "43758.5") {
		t.Errorf("body %q lost content", fn.Body)
	}
	if strings.Contains(rest, "fract(sin") {
		t.Errorf("rest %q still holds the function body", rest)
	}
	if !strings.Contains(rest, "float v0 = noise(uv);") {
		t.Errorf("rest %q lost the statement", rest)
	}
}

func TestExtractFunctionsLeavesControlFlow(t *testing.T) {
	// `if (...) {...}` and `return f(x);` must not parse as definitions.
	src := `if (a > 0.0) { b = 1.0; }
float v1 = helper(a);
// float fake(vec2 p) { return 0.0; }
`
	fns, rest := ExtractFunctions(src)
	if len(fns) != 0 {
		t.Fatalf("got %d functions from control flow, want 0", len(fns))
	}
	if !strings.Contains(rest, "if (a > 0.0)") || !strings.Contains(rest, "// float fake") {
		t.Errorf("rest %q mangled", rest)
	}
}

func TestFuncTableDedup(t *testing.T) {
	ft := NewFuncTable()
	a := Function{ReturnType: "float", Name: "noise", Params: "(vec2 p)", Body: "{ return 1.0; }"}
	b := Function{ReturnType: "float", Name: "noise2", Params: "(vec2 p)", Body: "{ return 1.0; }"}
	n1 := ft.Add(a)
	n2 := ft.Add(b)
	if n1 != "noise" || n2 != "noise" {
		t.Errorf("identical content got names %q, %q; want both noise", n1, n2)
	}
	if ft.Len() != 1 {
		t.Errorf("table holds %d functions, want 1", ft.Len())
	}
}

func TestFuncTableRenameOnCollision(t *testing.T) {
	ft := NewFuncTable()
	a := Function{ReturnType: "float", Name: "noise", Params: "(vec2 p)", Body: "{ return 1.0; }"}
	b := Function{ReturnType: "float", Name: "noise", Params: "(vec2 p)", Body: "{ return 2.0; }"}
	n1 := ft.Add(a)
	n2 := ft.Add(b)
	if n1 != "noise" {
		t.Errorf("first name %q, want noise", n1)
	}
	if n2 == "noise" || !strings.HasPrefix(n2, "noise_") {
		t.Errorf("colliding name %q, want noise_<n>", n2)
	}
	all := string(ft.AppendAll(nil))
	if !strings.Contains(all, "float noise(") || !strings.Contains(all, "float "+n2+"(") {
		t.Errorf("emitted functions missing a definition:\n%s", all)
	}
}

func TestRenameCalls(t *testing.T) {
	renames := map[string]string{"noise": "noise_1"}
	tests := []struct {
		src, want string
	}{
		{"float v = noise(uv);", "float v = noise_1(uv);"},
		{"float v = mynoise(uv);", "float v = mynoise(uv);"},
		{"float v = s.noise(uv);", "float v = s.noise(uv);"},
		{"// noise(uv)", "// noise(uv)"},
		{"float noisey = noise (uv);", "float noisey = noise_1 (uv);"},
		{"float v = noise;", "float v = noise;"},
	}
	for _, tt := range tests {
		if got := RenameCalls(tt.src, renames); got != tt.want {
			t.Errorf("RenameCalls(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestResolveAccessor(t *testing.T) {
	sr := NewStructRegistry()
	tests := []struct {
		t        Type
		accessor string
		want     Type
		wantErr  bool
	}{
		{"Light", "position", Vec3, false},
		{"Light", "intensity", Float, false},
		{"Light", "bogus", Invalid, true},
		{Vec4, "xyz", Vec3, false},
		{Vec4, "rgba", Vec4, false},
		{Vec2, "x", Float, false},
		{Vec2, "z", Invalid, true},
		{Vec3, "st", Vec2, false},
		{Float, "x", Invalid, true},
	}
	for _, tt := range tests {
		got, err := sr.ResolveAccessor(tt.t, tt.accessor)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ResolveAccessor(%s, %q) = %s, %v; want %s, err=%v", tt.t, tt.accessor, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestBlendFunction(t *testing.T) {
	sr := NewStructRegistry()
	src, err := sr.BlendFunction("Material")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, "Material blend_Material(Material a, Material b, float t)") {
		t.Errorf("signature missing:\n%s", src)
	}
	if !strings.Contains(src, "r.albedo = mix(a.albedo, b.albedo, t);") {
		t.Errorf("blendable field not mixed:\n%s", src)
	}
}

func TestNestedStructDependencies(t *testing.T) {
	sr := NewStructRegistry()
	err := sr.Register(StructDef{Name: "Scene", Fields: []StructField{
		{Name: "key", Type: "Light"},
		{Name: "fill", Type: "Light"},
		{Name: "surface", Type: "Material"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	deps := sr.DependentStructs("Scene")
	if len(deps) != 2 {
		t.Fatalf("got %d dependencies, want 2: %v", len(deps), deps)
	}
	blend, err := sr.BlendFunction("Scene")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(blend, "r.key = blend_Light(a.key, b.key, t);") {
		t.Errorf("nested struct field not recursed:\n%s", blend)
	}
}

func TestRegisterRejects(t *testing.T) {
	sr := NewStructRegistry()
	bad := []StructDef{
		{Name: Vec3, Fields: []StructField{{Name: "x", Type: Float}}},
		{Name: "struct", Fields: []StructField{{Name: "x", Type: Float}}},
		{Name: "Empty"},
		{Name: "BadField", Fields: []StructField{{Name: "x", Type: "NotAType"}}},
		{Name: "Light", Fields: []StructField{{Name: "x", Type: Float}}},
	}
	for _, def := range bad {
		if err := sr.Register(def); err == nil {
			t.Errorf("Register(%q) accepted invalid definition", def.Name)
		}
	}
}
