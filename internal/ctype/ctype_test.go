package ctype

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/abilib/internal/model"
)

func constChar() *Type { return BuiltinType("char").WithQualifiers(true, false) }

func TestDeclare(t *testing.T) {
	t.Parallel()

	intT := BuiltinType("int")
	cb := PointerTo(FunctionOf(&Signature{Result: VoidType(), Params: []Param{{Type: intT}}}))

	tests := []struct {
		name string
		typ  *Type
		decl string
		want string
	}{
		{"pointer to const", PointerTo(constChar()), "", "const char*"},
		{"named pointer", PointerTo(constChar()), "a0", "const char *a0"},
		{"const pointer", PointerTo(BuiltinType("char")).WithQualifiers(true, false), "p", "char *const p"},
		{"pointer to pointer", PointerTo(PointerTo(BuiltinType("char"))), "", "char**"},
		{"function pointer", cb, "", "void(*)(int)"},
		{"named function pointer", cb, "fn", "void (*fn)(int)"},
		{"array", &Type{Kind: Array, Elem: intT, Len: 4}, "xs", "int xs[4]"},
		{"unsized array", &Type{Kind: Array, Elem: intT, Len: -1}, "", "int[]"},
		{"pointer to array", PointerTo(&Type{Kind: Array, Elem: intT, Len: 3}), "p", "int (*p)[3]"},
		{"struct", PointerTo(RecordType(Struct, "FILE")), "", "struct FILE*"},
		{"lvalue ref", &Type{Kind: LRef, Elem: RecordType(Class, "ns::Widget").WithQualifiers(true, false)}, "", "const class ns::Widget&"},
		{"rvalue ref", &Type{Kind: RRef, Elem: intT}, "v", "int &&v"},
		{"volatile", BuiltinType("int").WithQualifiers(true, true), "", "const volatile int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.typ.Declare(tt.decl))
		})
	}
}

func TestSignatureDeclare(t *testing.T) {
	t.Parallel()

	logSig := &Signature{Result: VoidType(), Params: []Param{{Name: "msg", Type: PointerTo(constChar())}}}
	assert.Equal(t, "void log(const char*)", logSig.Declare("log", false))
	assert.Equal(t, "void log(const char *a0)", logSig.Declare("log", true))

	fmtSig := &Signature{Result: BuiltinType("int"), Params: []Param{{Type: PointerTo(constChar())}}, Variadic: true}
	assert.Equal(t, "int fmt(const char*, ...)", fmtSig.Declare("fmt", false))
	assert.Equal(t, "int fmt(const char *a0, ...)", fmtSig.Declare("fmt", true))

	empty := &Signature{Result: PointerTo(BuiltinType("char"))}
	assert.Equal(t, "char *next(void)", empty.Declare("next", false))

	// signal(int, void (*)(int)) returning void (*)(int)
	handler := PointerTo(FunctionOf(&Signature{Result: VoidType(), Params: []Param{{Type: BuiltinType("int")}}}))
	signal := &Signature{Result: handler, Params: []Param{{Type: BuiltinType("int")}, {Type: handler}}}
	assert.Equal(t, "void (*signal(int, void(*)(int)))(int)", signal.Declare("signal", false))
}

func TestKeyIgnoresParameterSpelling(t *testing.T) {
	t.Parallel()

	a := &Signature{Result: VoidType(), Params: []Param{
		{Name: "n", Type: BuiltinType("int").WithQualifiers(true, false)},
		{Name: "buf", Type: &Type{Kind: Array, Elem: BuiltinType("char"), Len: 8}},
	}}
	b := &Signature{Result: VoidType(), Params: []Param{
		{Type: BuiltinType("int")},
		{Type: PointerTo(BuiltinType("char"))},
	}}
	assert.True(t, Equal(a, b))
	assert.Equal(t, "(int,char*)", a.ParamKey())

	c := &Signature{Result: VoidType(), Params: []Param{{Type: BuiltinType("long")}, {Type: PointerTo(BuiltinType("char"))}}}
	assert.False(t, Equal(a, c))

	v := &Signature{Result: VoidType(), Params: b.Params, Variadic: true}
	assert.False(t, Equal(b, v))
	assert.Equal(t, "void(int,char*,...)", v.Key())
}

func TestRecords(t *testing.T) {
	t.Parallel()

	inner := RecordType(Struct, "inner")
	inner.Def = &RecordDef{Kind: Struct, Tag: "inner", Fields: []Field{{Name: "x", Type: BuiltinType("int")}}}
	outer := RecordType(Struct, "outer")
	outer.Def = &RecordDef{Kind: Struct, Tag: "outer", Fields: []Field{
		{Name: "in", Type: inner},
		{Name: "next", Type: PointerTo(RecordType(Struct, "outer"))},
	}}
	sig := &Signature{Result: VoidType(), Params: []Param{
		{Type: PointerTo(RecordType(Struct, "opaque"))},
		{Type: outer},
	}}

	refs := sig.Records()
	require.Len(t, refs, 3)
	assert.Equal(t, "opaque", refs[0].Type.Name)
	assert.False(t, refs[0].ByValue)
	assert.Equal(t, "outer", refs[1].Type.Name)
	assert.True(t, refs[1].ByValue)
	assert.Equal(t, "inner", refs[2].Type.Name)
	assert.True(t, refs[2].ByValue)
}

func TestCanonicalBuiltin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		words []string
		want  string
	}{
		{[]string{"int"}, "int"},
		{[]string{"unsigned"}, "unsigned int"},
		{[]string{"long", "unsigned", "int"}, "unsigned long"},
		{[]string{"long", "long"}, "long long"},
		{[]string{"signed", "char"}, "signed char"},
		{[]string{"short", "int"}, "short"},
		{[]string{"long", "double"}, "long double"},
		{[]string{"double", "_Complex"}, "double _Complex"},
	}
	for _, tt := range tests {
		got, err := CanonicalBuiltin(tt.words)
		require.NoError(t, err, tt.words)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range [][]string{{"signed", "unsigned"}, {"long", "short"}, {"int", "char"}, {"long", "long", "long"}} {
		_, err := CanonicalBuiltin(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckBuiltin(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckBuiltin("unsigned long"))
	err := CheckBuiltin("long double")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnrepresentableType))
	assert.Error(t, CheckBuiltin("float _Complex"))
}

func TestEnums(t *testing.T) {
	t.Parallel()

	e := EnumType("ns::E", BuiltinType("int"), true)
	s := &Signature{Result: e, Params: []Param{
		{Type: PointerTo(e.WithQualifiers(true, false))},
		{Type: BuiltinType("int")},
	}}
	assert.Equal(t, "ns::E f(const ns::E*, int)", s.Declare("f", false))
	assert.Equal(t, "(const ns::E*,int)", s.ParamKey())

	enums := s.Enums()
	require.Len(t, enums, 1)
	assert.Equal(t, "ns::E", enums[0].Name)
	assert.False(t, enums[0].Const)
	assert.Empty(t, s.Records())
}
