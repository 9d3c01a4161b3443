// Package glsl implements the GLSL text plumbing used by the graphgl
// compiler: the type catalog, implicit conversion rules, literal
// formatting, lexical function extraction and the hoisted-function
// table, and the struct type registry.
package glsl

import (
	"bytes"
	"strconv"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// Type is the name of a GLSL type as spelled in source code.
// The zero value means "no type" (i.e. a disconnected input).
type Type string

const (
	// Invalid is the absent type. Disconnected inputs resolve to Invalid.
	Invalid Type = ""
	// Any is the wildcard port type. Ports declared Any receive the raw
	// upstream value and type; the node's own validator resolves them.
	Any       Type = "any"
	Bool      Type = "bool"
	Int       Type = "int"
	Float     Type = "float"
	Vec2      Type = "vec2"
	Vec3      Type = "vec3"
	Vec4      Type = "vec4"
	Mat2      Type = "mat2"
	Mat3      Type = "mat3"
	Mat4      Type = "mat4"
	Sampler2D Type = "sampler2D"
)

// IsAny reports whether t is the wildcard port type.
func (t Type) IsAny() bool { return t == Any }

// IsVector reports whether t is one of vec2, vec3, vec4.
func (t Type) IsVector() bool { return t == Vec2 || t == Vec3 || t == Vec4 }

// IsMatrix reports whether t is one of mat2, mat3, mat4.
func (t Type) IsMatrix() bool { return t == Mat2 || t == Mat3 || t == Mat4 }

// IsScalar reports whether t is a numeric scalar type.
func (t Type) IsScalar() bool { return t == Int || t == Float }

// IsPrimitive reports whether t is declarable without a struct definition.
func (t Type) IsPrimitive() bool {
	switch t {
	case Bool, Int, Float, Vec2, Vec3, Vec4, Mat2, Mat3, Mat4, Sampler2D:
		return true
	}
	return false
}

// IsBlendable reports whether mix() accepts t directly.
func (t Type) IsBlendable() bool { return t == Float || t.IsVector() }

// Components returns the component count of scalar and vector types,
// zero otherwise.
func (t Type) Components() int {
	switch t {
	case Int, Float:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4:
		return 4
	}
	return 0
}

// VectorOf returns the vector type with n components. n must be 2, 3 or 4.
func VectorOf(n int) Type {
	switch n {
	case 2:
		return Vec2
	case 3:
		return Vec3
	case 4:
		return Vec4
	}
	return Invalid
}

// ZeroValue returns the all-zeroes literal for t. Struct types and
// samplers have no zero literal and return the empty string.
func ZeroValue(t Type) string {
	switch t {
	case Bool:
		return "false"
	case Int:
		return "0"
	case Float:
		return "0.0"
	case Vec2, Vec3, Vec4, Mat2, Mat3, Mat4:
		return string(t) + "(0.0)"
	}
	return ""
}

const decimalDigits = 7

// AppendFloat appends v formatted as a GLSL float literal, always with a
// decimal point so the literal parses as float rather than int.
func AppendFloat(b []byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	// Trim trailing zeroes but keep one decimal digit.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start+1 && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

// AppendFloats appends the argument floats separated by sep.
func AppendFloats(b []byte, sep byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, v)
		if i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

// FloatExpr returns v as a GLSL float literal.
func FloatExpr(v float32) string {
	return string(AppendFloat(nil, v))
}

// Vec2Expr returns v as a vec2 constructor expression.
func Vec2Expr(v ms2.Vec) string {
	b := append([]byte{}, "vec2("...)
	b = AppendFloats(b, ',', v.X, v.Y)
	return string(append(b, ')'))
}

// Vec3Expr returns v as a vec3 constructor expression.
func Vec3Expr(v ms3.Vec) string {
	b := append([]byte{}, "vec3("...)
	b = AppendFloats(b, ',', v.X, v.Y, v.Z)
	return string(append(b, ')'))
}

// Vec4Expr returns v as a vec4 constructor expression.
func Vec4Expr(v [4]float32) string {
	b := append([]byte{}, "vec4("...)
	b = AppendFloats(b, ',', v[:]...)
	return string(append(b, ')'))
}

// reservedWords are GLSL keywords and builtin type names which may never
// be hoisted as user function names nor returned as user return types.
var reservedWords = map[string]struct{}{
	"attribute": {}, "bool": {}, "break": {}, "bvec2": {}, "bvec3": {}, "bvec4": {},
	"case": {}, "const": {}, "continue": {}, "default": {}, "discard": {}, "do": {},
	"else": {}, "false": {}, "float": {}, "for": {}, "highp": {}, "if": {}, "in": {},
	"inout": {}, "int": {}, "invariant": {}, "ivec2": {}, "ivec3": {}, "ivec4": {},
	"layout": {}, "lowp": {}, "mat2": {}, "mat3": {}, "mat4": {}, "mediump": {},
	"out": {}, "precision": {}, "return": {}, "sampler2D": {}, "samplerCube": {},
	"struct": {}, "switch": {}, "true": {}, "uint": {}, "uniform": {}, "uvec2": {},
	"uvec3": {}, "uvec4": {}, "varying": {}, "vec2": {}, "vec3": {}, "vec4": {},
	"void": {}, "while": {},
}

// IsReservedWord reports whether s is a GLSL keyword or builtin type name.
func IsReservedWord(s string) bool {
	_, ok := reservedWords[s]
	return ok
}

// validTypeWords are words allowed as return types of hoistable functions.
var validTypeWords = map[string]struct{}{
	"float": {}, "int": {}, "bool": {}, "void": {},
	"vec2": {}, "vec3": {}, "vec4": {}, "mat2": {}, "mat3": {}, "mat4": {},
}

func isTypeWord(s string) bool {
	if _, ok := validTypeWords[s]; ok {
		return true
	}
	return false
}
