package glsl

// Convert returns the expression converting expr from type `from` to type
// `to` under the implicit conversion rules, and whether such a conversion
// exists. The rule set is total: identity, int→float, scalar broadcast to
// vectors (vec4 broadcasts with alpha=1), vector widening (zero-extend,
// alpha=1 for the fourth component) and vector truncation by component
// slice. Any other pair is not convertible.
func Convert(expr string, from, to Type) (string, bool) {
	if from == to {
		return expr, true
	}
	switch {
	case from == Int && to == Float:
		return "float(" + expr + ")", true
	case from == Int && to.IsVector():
		return Convert("float("+expr+")", Float, to)
	case from == Float && to == Vec2:
		return "vec2(" + expr + ")", true
	case from == Float && to == Vec3:
		return "vec3(" + expr + ")", true
	case from == Float && to == Vec4:
		return "vec4(vec3(" + expr + "),1.0)", true
	case from == Vec2 && to == Vec3:
		return "vec3(" + expr + ",0.0)", true
	case from == Vec2 && to == Vec4:
		return "vec4(" + expr + ",0.0,1.0)", true
	case from == Vec3 && to == Vec4:
		return "vec4(" + expr + ",1.0)", true
	case from == Vec4 && to == Vec3:
		return "(" + expr + ").xyz", true
	case from == Vec4 && to == Vec2, from == Vec3 && to == Vec2:
		return "(" + expr + ").xy", true
	}
	return expr, false
}
