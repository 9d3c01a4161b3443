package graphgl

import "github.com/graphgl/graphgl/glsl"

// libFunctions is the shared GLSL helper library. Emitters reference these
// by name through [EmitResult.RequiredFunction]; they are hoisted on
// demand and participate in deduplication and renaming like any other
// hoisted function.
var libFunctions = map[string]glsl.Function{
	"hsv2rgb": {
		ReturnType: "vec3", Name: "hsv2rgb", Params: "(vec3 c)",
		Body: `{
	vec4 K = vec4(1.0, 2.0/3.0, 1.0/3.0, 3.0);
	vec3 p = abs(fract(c.xxx + K.xyz) * 6.0 - K.www);
	return c.z * mix(K.xxx, clamp(p - K.xxx, 0.0, 1.0), c.y);
}`,
	},
	"rand": {
		ReturnType: "float", Name: "rand", Params: "(vec2 co)",
		Body: `{
	return fract(sin(dot(co, vec2(12.9898, 78.233))) * 43758.5453);
}`,
	},
	"rotate2d": {
		ReturnType: "vec2", Name: "rotate2d", Params: "(vec2 p, float a)",
		Body: `{
	float s = sin(a);
	float c = cos(a);
	return vec2(c*p.x - s*p.y, s*p.x + c*p.y);
}`,
	},
	"luma": {
		ReturnType: "float", Name: "luma", Params: "(vec3 c)",
		Body: `{
	return dot(c, vec3(0.2126, 0.7152, 0.0722));
}`,
	},
}

// libFunction returns the named shared library function.
func libFunction(name string) (glsl.Function, bool) {
	fn, ok := libFunctions[name]
	return fn, ok
}
