package glsl

import (
	"fmt"
	"strings"
)

// StructField is a single field of a struct type declaration.
type StructField struct {
	Name string
	Type Type
}

// StructDef declares a struct type usable as a port type.
type StructDef struct {
	Name   Type
	Fields []StructField
}

// StructRegistry is the type collaborator consumed by the compiler. It
// answers struct membership, resolves accessor applications, and generates
// struct declarations and per-struct interpolation functions.
type StructRegistry struct {
	defs  map[Type]StructDef
	order []Type // Registration order for deterministic output.
}

// NewStructRegistry returns a registry preloaded with the builtin struct
// types used by the builtin node set.
func NewStructRegistry() *StructRegistry {
	sr := &StructRegistry{defs: make(map[Type]StructDef)}
	for _, def := range builtinStructs {
		if err := sr.Register(def); err != nil {
			panic(err) // Builtin table is malformed.
		}
	}
	return sr
}

var builtinStructs = []StructDef{
	{Name: "Light", Fields: []StructField{
		{Name: "position", Type: Vec3},
		{Name: "color", Type: Vec3},
		{Name: "intensity", Type: Float},
	}},
	{Name: "Material", Fields: []StructField{
		{Name: "albedo", Type: Vec3},
		{Name: "roughness", Type: Float},
		{Name: "metallic", Type: Float},
	}},
}

// Register adds a struct definition. Field types must be primitives or
// previously registered structs; the name must not shadow a primitive.
func (sr *StructRegistry) Register(def StructDef) error {
	if def.Name.IsPrimitive() || def.Name.IsAny() || def.Name == Invalid {
		return fmt.Errorf("struct name %q shadows builtin type", def.Name)
	} else if IsReservedWord(string(def.Name)) {
		return fmt.Errorf("struct name %q is a reserved word", def.Name)
	} else if _, exists := sr.defs[def.Name]; exists {
		return fmt.Errorf("struct %q already registered", def.Name)
	} else if len(def.Fields) == 0 {
		return fmt.Errorf("struct %q has no fields", def.Name)
	}
	for _, f := range def.Fields {
		if !f.Type.IsPrimitive() && !sr.IsStruct(f.Type) {
			return fmt.Errorf("struct %q field %q has unknown type %q", def.Name, f.Name, f.Type)
		}
	}
	sr.defs[def.Name] = def
	sr.order = append(sr.order, def.Name)
	return nil
}

// IsStruct reports whether t names a registered struct type.
func (sr *StructRegistry) IsStruct(t Type) bool {
	_, ok := sr.defs[t]
	return ok
}

// IsValid reports whether t is a primitive, wildcard or registered struct.
func (sr *StructRegistry) IsValid(t Type) bool {
	return t.IsPrimitive() || t.IsAny() || sr.IsStruct(t)
}

// Lookup returns the definition of struct t.
func (sr *StructRegistry) Lookup(t Type) (StructDef, bool) {
	def, ok := sr.defs[t]
	return def, ok
}

// ResolveAccessor resolves the type produced by applying accessor (a struct
// field name or vector swizzle) to a value of type t.
func (sr *StructRegistry) ResolveAccessor(t Type, accessor string) (Type, error) {
	if accessor == "" {
		return t, nil
	}
	if def, ok := sr.defs[t]; ok {
		for _, f := range def.Fields {
			if f.Name == accessor {
				return f.Type, nil
			}
		}
		return Invalid, fmt.Errorf("struct %s has no field %q", t, accessor)
	}
	if t.IsVector() {
		return resolveSwizzle(t, accessor)
	}
	return Invalid, fmt.Errorf("type %s does not support accessor %q", t, accessor)
}

var swizzleSets = [...]string{"xyzw", "rgba", "stpq"}

func resolveSwizzle(t Type, accessor string) (Type, error) {
	if len(accessor) < 1 || len(accessor) > 4 {
		return Invalid, fmt.Errorf("bad swizzle length %q", accessor)
	}
	comps := t.Components()
	for _, set := range swizzleSets {
		valid := true
		for i := 0; i < len(accessor); i++ {
			idx := strings.IndexByte(set, accessor[i])
			if idx < 0 || idx >= comps {
				valid = false
				break
			}
		}
		if valid {
			if len(accessor) == 1 {
				return Float, nil
			}
			return VectorOf(len(accessor)), nil
		}
	}
	return Invalid, fmt.Errorf("swizzle %q invalid for %s", accessor, t)
}

// Definition generates the GLSL struct declaration for t.
func (sr *StructRegistry) Definition(t Type) (string, error) {
	def, ok := sr.defs[t]
	if !ok {
		return "", fmt.Errorf("unknown struct %q", t)
	}
	var sb strings.Builder
	sb.WriteString("struct ")
	sb.WriteString(string(def.Name))
	sb.WriteString(" {\n")
	for _, f := range def.Fields {
		sb.WriteString("\t")
		sb.WriteString(string(f.Type))
		sb.WriteByte(' ')
		sb.WriteString(f.Name)
		sb.WriteString(";\n")
	}
	sb.WriteString("};\n")
	return sb.String(), nil
}

// BlendFuncName returns the name of the generated interpolation function
// for struct t.
func (sr *StructRegistry) BlendFuncName(t Type) string {
	return "blend_" + string(t)
}

// BlendFunction generates the linear interpolation function for struct t.
// Blendable fields mix componentwise, nested structs recurse through their
// own blend function, everything else switches at the midpoint.
func (sr *StructRegistry) BlendFunction(t Type) (string, error) {
	def, ok := sr.defs[t]
	if !ok {
		return "", fmt.Errorf("unknown struct %q", t)
	}
	name := string(def.Name)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s(%s a, %s b, float t) {\n", name, sr.BlendFuncName(t), name, name)
	fmt.Fprintf(&sb, "\t%s r;\n", name)
	for _, f := range def.Fields {
		switch {
		case f.Type.IsBlendable():
			fmt.Fprintf(&sb, "\tr.%s = mix(a.%s, b.%s, t);\n", f.Name, f.Name, f.Name)
		case sr.IsStruct(f.Type):
			fmt.Fprintf(&sb, "\tr.%s = %s(a.%s, b.%s, t);\n", f.Name, sr.BlendFuncName(f.Type), f.Name, f.Name)
		default:
			fmt.Fprintf(&sb, "\tr.%s = t < 0.5 ? a.%s : b.%s;\n", f.Name, f.Name, f.Name)
		}
	}
	sb.WriteString("\treturn r;\n}\n")
	return sb.String(), nil
}

// DependentStructs returns the transitive struct dependencies of t in
// dependency-first order, excluding t itself.
func (sr *StructRegistry) DependentStructs(t Type) []Type {
	var deps []Type
	seen := map[Type]bool{t: true}
	var visit func(t Type)
	visit = func(t Type) {
		def, ok := sr.defs[t]
		if !ok {
			return
		}
		for _, f := range def.Fields {
			if sr.IsStruct(f.Type) && !seen[f.Type] {
				seen[f.Type] = true
				visit(f.Type)
				deps = append(deps, f.Type)
			}
		}
	}
	visit(t)
	return deps
}
