// Package ctype models C and C++ type descriptors and renders them back to
// declarator syntax.
//
// Descriptors are built once by a frontend from the parsed declaration and
// rendered verbatim by the stub generator; nothing is re-derived from text.
package ctype

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/phobologic/abilib/internal/model"
)

// Kind is the shape of a type descriptor.
type Kind int

const (
	Void Kind = iota
	Builtin
	Record
	Pointer
	LRef
	RRef
	Array
	Function
	Enum
)

var kindNames = [...]string{"void", "builtin", "record", "pointer", "lvalue-ref", "rvalue-ref", "array", "function", "enum"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// RecordKind is the tag keyword of a record type.
type RecordKind string

const (
	Struct RecordKind = "struct"
	Union  RecordKind = "union"
	Class  RecordKind = "class"
)

// Type is a complete, renderable type descriptor.
type Type struct {
	Kind     Kind
	Name     string // builtin spelling, record tag or enum name, possibly namespace-qualified
	Record   RecordKind
	Scoped   bool // Enum declared "enum class"
	Const    bool
	Volatile bool
	Elem     *Type      // Pointer, LRef, RRef, Array; underlying type of an Enum
	Len      int64      // Array; negative when unspecified
	Func     *Signature // Function
	Def      *RecordDef // Record with a known layout
}

// Param is one function parameter.
type Param struct {
	Name string
	Type *Type
}

// Signature is a function's return type and ordered parameters.
type Signature struct {
	Result   *Type
	Params   []Param
	Variadic bool
}

// Field is one member of a record definition. Bits is non-zero for bitfields.
type Field struct {
	Name string
	Type *Type
	Bits int
}

// RecordDef is the layout-relevant definition of a record passed by value.
type RecordDef struct {
	Kind   RecordKind
	Tag    string
	Fields []Field
	Packed bool
	Align  int // explicit alignment, 0 when natural
}

// VoidType returns an unqualified void descriptor.
func VoidType() *Type { return &Type{Kind: Void, Name: "void"} }

// BuiltinType returns a builtin descriptor with the given canonical spelling.
func BuiltinType(name string) *Type { return &Type{Kind: Builtin, Name: name} }

// RecordType returns a record descriptor referring to tag.
func RecordType(kind RecordKind, tag string) *Type {
	return &Type{Kind: Record, Record: kind, Name: tag}
}

// EnumType returns a C++ enumeration named name. The enumeration keeps its
// own name in declarations since it is part of the mangled symbol.
func EnumType(name string, underlying *Type, scoped bool) *Type {
	return &Type{Kind: Enum, Name: name, Elem: underlying, Scoped: scoped}
}

// PointerTo returns an unqualified pointer to elem.
func PointerTo(elem *Type) *Type { return &Type{Kind: Pointer, Elem: elem} }

// FunctionOf returns a function type descriptor for sig.
func FunctionOf(sig *Signature) *Type { return &Type{Kind: Function, Func: sig} }

// WithQualifiers returns a shallow copy of t with the given qualifiers added.
func (t *Type) WithQualifiers(isConst, isVolatile bool) *Type {
	c := *t
	c.Const = c.Const || isConst
	c.Volatile = c.Volatile || isVolatile
	return &c
}

// Unqualified returns t without its top-level qualifiers.
func (t *Type) Unqualified() *Type {
	if !t.Const && !t.Volatile {
		return t
	}
	c := *t
	c.Const, c.Volatile = false, false
	return &c
}

// Decay applies parameter adjustment: arrays become pointers to their
// element and functions become pointers to functions.
func (t *Type) Decay() *Type {
	switch t.Kind {
	case Array:
		return PointerTo(t.Elem)
	case Function:
		return PointerTo(t)
	}
	return t
}

// String renders t as an abstract declarator, e.g. "const char*".
func (t *Type) String() string { return t.Declare("") }

// Declare renders t declaring name. An empty name yields the abstract form.
func (t *Type) Declare(name string) string {
	base, d := t.declarator(name)
	switch {
	case d == "":
		return base
	case name == "":
		return base + d
	default:
		return base + " " + d
	}
}

func (t *Type) quals() string {
	switch {
	case t.Const && t.Volatile:
		return "const volatile"
	case t.Const:
		return "const"
	case t.Volatile:
		return "volatile"
	}
	return ""
}

// declarator works inside out: inner is the declarator built so far and the
// result is the base specifier plus the extended declarator.
func (t *Type) declarator(inner string) (string, string) {
	switch t.Kind {
	case Pointer, LRef, RRef:
		d := map[Kind]string{Pointer: "*", LRef: "&", RRef: "&&"}[t.Kind]
		if q := t.quals(); q != "" {
			d += q
			if inner != "" {
				d += " "
			}
		}
		d += inner
		if k := t.Elem.Kind; k == Array || k == Function {
			d = "(" + d + ")"
		}
		return t.Elem.declarator(d)
	case Array:
		n := ""
		if t.Len >= 0 {
			n = strconv.FormatInt(t.Len, 10)
		}
		return t.Elem.declarator(inner + "[" + n + "]")
	case Function:
		return t.Func.Result.declarator(inner + "(" + t.Func.paramList(false) + ")")
	}

	spec := t.Name
	if t.Kind == Record {
		spec = string(t.Record) + " " + t.Name
	}
	if q := t.quals(); q != "" {
		spec = q + " " + spec
	}
	return spec, inner
}

// ParamName is the generated name of the i-th stub parameter.
func ParamName(i int) string { return "a" + strconv.Itoa(i) }

func (s *Signature) paramList(named bool) string {
	parts := make([]string, 0, len(s.Params)+1)
	for i, p := range s.Params {
		name := ""
		if named {
			name = ParamName(i)
		}
		parts = append(parts, p.Type.Declare(name))
	}
	if s.Variadic {
		parts = append(parts, "...")
	}
	if len(parts) == 0 {
		return "void"
	}
	return strings.Join(parts, ", ")
}

// Declare renders a function declarator for name. With named set, the
// parameters are named a0..aN for use in a stub definition.
func (s *Signature) Declare(name string, named bool) string {
	base, d := s.Result.declarator(name + "(" + s.paramList(named) + ")")
	return base + " " + d
}

// Type returns s as a function type descriptor.
func (s *Signature) Type() *Type { return FunctionOf(s) }

// Key is the canonical identity of s. Parameter names, top-level parameter
// qualifiers and array/function parameter spellings do not contribute.
func (s *Signature) Key() string {
	var b strings.Builder
	b.WriteString(s.Result.canon())
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Type.Decay().Unqualified().canon())
	}
	if s.Variadic {
		if len(s.Params) > 0 {
			b.WriteByte(',')
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
	return b.String()
}

// ParamKey is the canonical parameter list used to distinguish overloads.
func (s *Signature) ParamKey() string {
	k := s.Key()
	return k[len(s.Result.canon()):]
}

func (t *Type) canon() string {
	if t.Kind == Function {
		return t.Func.Key()
	}
	return t.String()
}

// Equal reports whether a and b describe the same call signature.
func Equal(a, b *Signature) bool { return a.Key() == b.Key() }

// RecordRef is a record named by a signature.
type RecordRef struct {
	Type    *Type
	ByValue bool
}

// Records lists the records s refers to, in first-use order. ByValue is set
// when the record is passed or returned by value, or is a by-value member of
// such a record.
func (s *Signature) Records() []RecordRef {
	var refs []RecordRef
	seen := make(map[string]int)
	var visit func(t *Type, byValue bool)
	visit = func(t *Type, byValue bool) {
		switch t.Kind {
		case Record:
			key := string(t.Record) + " " + t.Name
			if i, ok := seen[key]; ok {
				if byValue && !refs[i].ByValue {
					refs[i] = RecordRef{Type: t, ByValue: true}
					visitFields(t, visit)
				}
				return
			}
			seen[key] = len(refs)
			refs = append(refs, RecordRef{Type: t, ByValue: byValue})
			if byValue {
				visitFields(t, visit)
			}
		case Pointer, LRef, RRef:
			visit(t.Elem, false)
		case Array:
			visit(t.Elem, byValue)
		case Function:
			visit(t.Func.Result, false)
			for _, p := range t.Func.Params {
				visit(p.Type, false)
			}
		}
	}
	visit(s.Result, true)
	for _, p := range s.Params {
		visit(p.Type.Decay(), true)
	}
	return refs
}

// Enums lists the enumerations s refers to, in first-use order.
func (s *Signature) Enums() []*Type {
	var out []*Type
	seen := make(map[string]bool)
	var visit func(t *Type)
	visit = func(t *Type) {
		switch t.Kind {
		case Enum:
			if !seen[t.Name] {
				seen[t.Name] = true
				out = append(out, t.Unqualified())
			}
		case Pointer, LRef, RRef, Array:
			visit(t.Elem)
		case Function:
			visit(t.Func.Result)
			for _, p := range t.Func.Params {
				visit(p.Type)
			}
		}
	}
	visit(s.Result)
	for _, p := range s.Params {
		visit(p.Type)
	}
	return out
}

func visitFields(t *Type, visit func(*Type, bool)) {
	if t.Def == nil {
		return
	}
	for _, f := range t.Def.Fields {
		visit(f.Type, true)
	}
}

// Unrepresentable returns an error classified as model.ErrUnrepresentableType.
func Unrepresentable(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), model.ErrUnrepresentableType)
}
