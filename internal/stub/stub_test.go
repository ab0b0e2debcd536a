package stub

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/decl"
	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/model"
)

type fakeDecl struct {
	name      string
	qualified string
	linkage   decl.Linkage
	cLinkage  bool
	sig       *ctype.Signature
	err       error
	line      int
}

func (f *fakeDecl) Name() string { return f.name }

func (f *fakeDecl) QualifiedName() string {
	if f.qualified != "" {
		return f.qualified
	}
	return f.name
}

func (f *fakeDecl) Linkage() decl.Linkage                { return f.linkage }
func (f *fakeDecl) CLinkage() bool                       { return f.cLinkage }
func (f *fakeDecl) Signature() (*ctype.Signature, error) { return f.sig, f.err }
func (f *fakeDecl) Position() decl.Position              { return decl.Position{File: "api.h", Line: f.line, Column: 1} }
func (f *fakeDecl) FirstDeclared() decl.Position         { return f.Position() }

func cFunc(name string, line int, sig *ctype.Signature) *fakeDecl {
	return &fakeDecl{name: name, linkage: decl.External, cLinkage: true, sig: sig, line: line}
}

func sig(result *ctype.Type, params ...*ctype.Type) *ctype.Signature {
	s := &ctype.Signature{Result: result}
	for _, p := range params {
		s.Params = append(s.Params, ctype.Param{Type: p})
	}
	return s
}

var (
	intT      = ctype.BuiltinType("int")
	longT     = ctype.BuiltinType("long")
	doubleT   = ctype.BuiltinType("double")
	constChar = ctype.PointerTo(ctype.BuiltinType("char").WithQualifiers(true, false))
)

func observe(g *Generator, decls ...decl.Declaration) {
	for _, d := range decls {
		g.Observe(decl.Event{Kind: decl.Function, Decl: d})
	}
}

func TestScenarioLogAndHelper(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.C])
	helper := cFunc("helper", 2, sig(intT, intT))
	helper.linkage = decl.Internal
	observe(g, cFunc("log", 1, sig(ctype.VoidType(), constChar)), helper)

	a, err := g.Generate("out/libdemo")
	require.NoError(t, err)
	assert.Equal(t, "libdemo.h", a.HeaderName)
	assert.Equal(t, "libdemo.c", a.SourceName)
	assert.Equal(t, 1, a.Symbols)

	assert.Contains(t, a.Header, "\nvoid log(const char*);\n")
	assert.NotContains(t, a.Header, "helper")
	assert.Equal(t, 1, strings.Count(a.Header, ");\n"))
	assert.Contains(t, a.Header, "#ifndef ABILIB_LIBDEMO_H")
	assert.Contains(t, a.Header, "extern \"C\" {")

	assert.Contains(t, a.Source, "#include \"libdemo.h\"")
	assert.Contains(t, a.Source, "void *__abilib_resolve(const char *name);")
	assert.Contains(t, a.Source, "void log(const char *a0)\n{\n")
	assert.Contains(t, a.Source, "\tvoid (*fn)(const char*) = (void(*)(const char*))__abilib_resolve(\"log\");\n")
	assert.Contains(t, a.Source, "\tfn(a0);\n")
	assert.NotContains(t, a.Source, "helper")
	assert.NotContains(t, a.Source, "ABILIB_FORWARD_VARIADIC")
}

func TestIdempotentInclusion(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.C])
	observe(g,
		cFunc("add", 1, sig(intT, intT, intT)),
		cFunc("add", 9, sig(intT, intT.WithQualifiers(true, false), intT)),
	)
	require.NoError(t, g.Err())
	assert.Equal(t, 1, g.Table().Len())
	assert.Equal(t, 1, g.Table().Symbols()[0].Position.Line)
}

func TestConflictDetection(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.C])
	observe(g, cFunc("f", 1, sig(intT, intT)), cFunc("f", 5, sig(intT, longT)))

	err := g.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSymbolConflict))
	require.Len(t, g.Conflicts(), 1)
	c := g.Conflicts()[0]
	assert.Equal(t, 5, c.Position.Line)
	assert.Equal(t, 1, c.FirstDeclared.Line)
	assert.Equal(t, "int f(int)", c.Have)
	assert.Equal(t, "int f(long)", c.Got)

	_, err = g.Generate("lib")
	assert.True(t, errors.Is(err, model.ErrSymbolConflict))
}

func TestUnrepresentableOmitted(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.C])
	bad := &fakeDecl{name: "ld", linkage: decl.External, cLinkage: true, line: 3,
		err: ctype.Unrepresentable("type \"long double\" has no portable calling convention")}
	observe(g, bad, bad, cFunc("ok", 4, sig(intT)))

	require.NoError(t, g.Err())
	assert.Equal(t, 1, g.Table().Len())
	require.Len(t, g.Omissions(), 1)
	assert.Equal(t, "ld", g.Omissions()[0].Symbol)
	assert.Equal(t, "api.h:3:1", g.Omissions()[0].Location)
	assert.Contains(t, g.Omissions()[0].Reason, "long double")
}

func TestRedeclarationAfterAdmissionIgnoresUnrepresentable(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.C])
	observe(g,
		cFunc("f", 1, sig(intT, intT)),
		&fakeDecl{name: "f", linkage: decl.External, cLinkage: true, line: 2, err: ctype.Unrepresentable("no prototype")},
	)
	assert.Empty(t, g.Omissions())
	assert.Equal(t, 1, g.Table().Len())
}

func TestVariadicFidelity(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.C], WithVariadicStackBytes(512))
	s := sig(intT, constChar)
	s.Variadic = true
	observe(g, cFunc("fmt", 1, s))

	a, err := g.Generate("libfmt")
	require.NoError(t, err)
	assert.Contains(t, a.Header, "int fmt(const char*, ...);")
	assert.Contains(t, a.Source, "int fmt(const char *a0, ...)\n{\n\tABILIB_FORWARD_VARIADIC(__abilib_resolve(\"fmt\"));\n}\n")
	assert.Contains(t, a.Source, "#define ABILIB_VARIADIC_STACK_BYTES 512")
	assert.Contains(t, a.Source, "__builtin_apply")
}

func TestRecordsByValue(t *testing.T) {
	t.Parallel()

	inner := ctype.RecordType(ctype.Struct, "vec")
	inner.Def = &ctype.RecordDef{Kind: ctype.Struct, Tag: "vec", Fields: []ctype.Field{
		{Name: "x", Type: doubleT}, {Name: "y", Type: doubleT},
	}}
	outer := ctype.RecordType(ctype.Struct, "seg")
	outer.Def = &ctype.RecordDef{Kind: ctype.Struct, Tag: "seg", Packed: true, Align: 8, Fields: []ctype.Field{
		{Name: "from", Type: inner}, {Name: "flags", Type: ctype.BuiltinType("unsigned int"), Bits: 3},
	}}
	handle := ctype.PointerTo(ctype.RecordType(ctype.Struct, "ctx"))

	g := New(lang.Languages[lang.C])
	observe(g, cFunc("seg_len", 1, sig(doubleT, outer, handle)))

	a, err := g.Generate("libgeo")
	require.NoError(t, err)
	h := a.Header
	assert.Contains(t, h, "struct seg;\nstruct vec;\nstruct ctx;\n")
	assert.Contains(t, h, "struct vec {\n\tdouble x;\n\tdouble y;\n};")
	assert.Contains(t, h, "struct seg {\n\tstruct vec from;\n\tunsigned int flags : 3;\n} __attribute__((packed, aligned(8)));")
	assert.Less(t, strings.Index(h, "struct vec {"), strings.Index(h, "struct seg {"))
	assert.NotContains(t, h, "struct ctx {")
	assert.Contains(t, h, "double seg_len(struct seg, struct ctx*);")
}

func TestRecordByValueWithoutLayoutOmitted(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.C])
	observe(g, cFunc("take", 1, sig(ctype.VoidType(), ctype.RecordType(ctype.Struct, "opaque"))))
	assert.Equal(t, 0, g.Table().Len())
	require.Len(t, g.Omissions(), 1)
	assert.Contains(t, g.Omissions()[0].Reason, "struct opaque")
}

func TestCXXOverloadsAndLinkage(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.CXX])
	cxx := func(q string, s *ctype.Signature) *fakeDecl {
		parts := strings.Split(q, "::")
		return &fakeDecl{name: parts[len(parts)-1], qualified: q, linkage: decl.External, sig: s, line: 1}
	}
	observe(g,
		cxx("ns::f", sig(intT, intT)),
		cxx("ns::f", sig(intT, doubleT)),
		cxx("mv", sig(ctype.VoidType(), &ctype.Type{Kind: ctype.RRef, Elem: intT})),
		cFunc("c_api", 1, sig(intT)),
	)
	require.NoError(t, g.Err())
	require.Equal(t, 4, g.Table().Len())

	a, err := g.Generate("libns")
	require.NoError(t, err)
	assert.Equal(t, "libns.cpp", a.SourceName)
	assert.Contains(t, a.Header, "namespace ns {\nint f(int);\n}\nnamespace ns {\nint f(double);\n}\n")
	assert.Contains(t, a.Header, "extern \"C\" int c_api(void);")
	assert.NotContains(t, a.Header, "#ifdef __cplusplus")

	assert.Contains(t, a.Source, "extern \"C\" void *__abilib_resolve(const char *name);")
	assert.Contains(t, a.Source, "int ns::f(int a0)\n")
	assert.Contains(t, a.Source, "__abilib_resolve(\"ns::f(int)\")")
	assert.Contains(t, a.Source, "__abilib_resolve(\"ns::f(double)\")")
	assert.Contains(t, a.Source, "fn(static_cast<int&&>(a0));")
	assert.Contains(t, a.Source, "int c_api(void)\n")
}

func TestCXXReturnTypeConflict(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.CXX])
	a := &fakeDecl{name: "f", qualified: "ns::f", linkage: decl.External, sig: sig(intT, intT), line: 1}
	b := &fakeDecl{name: "f", qualified: "ns::f", linkage: decl.External, sig: sig(longT, intT), line: 2}
	observe(g, a, b)
	assert.True(t, errors.Is(g.Err(), model.ErrSymbolConflict))
}

func TestDeterminism(t *testing.T) {
	t.Parallel()

	build := func(names ...string) *Artifact {
		g := New(lang.Languages[lang.C])
		for i, n := range names {
			observe(g, cFunc(n, i+1, sig(intT, constChar)))
		}
		a, err := g.Generate("libdet")
		require.NoError(t, err)
		return a
	}

	first, second := build("a", "b", "c"), build("a", "b", "c")
	assert.Equal(t, first.Header, second.Header)
	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Len(t, first.Hash, 16)
	assert.Contains(t, first.Header, "xxh64:"+first.Hash)

	reordered := build("c", "b", "a")
	assert.NotEqual(t, first.Hash, reordered.Hash)
	assert.Less(t, strings.Index(reordered.Header, "int c("), strings.Index(reordered.Header, "int a("))
}

func TestGuard(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ABILIB_LIBFOO_LINUX_X86_64_H", guard("libfoo-linux.x86_64"))
	assert.Equal(t, "ABILIB_9LIVES_H", guard("9lives"))
}

func TestCXXEnumKeepsName(t *testing.T) {
	t.Parallel()

	g := New(lang.Languages[lang.CXX])
	e := ctype.EnumType("E", intT, false)
	f := ctype.EnumType("ns::F", ctype.BuiltinType("unsigned char"), true)
	observe(g,
		&fakeDecl{name: "e", qualified: "e", linkage: decl.External, sig: sig(ctype.VoidType(), e), line: 1},
		&fakeDecl{name: "g", qualified: "ns::g", linkage: decl.External, sig: sig(f, ctype.PointerTo(e)), line: 2},
	)
	require.NoError(t, g.Err())

	a, err := g.Generate("libenum")
	require.NoError(t, err)
	assert.Contains(t, a.Header, "\nenum E : int;\nnamespace ns {\nenum class F : unsigned char;\n}\n")
	assert.Equal(t, 1, strings.Count(a.Header, "enum E : int;"))
	assert.Contains(t, a.Header, "void e(E);")
	assert.Contains(t, a.Header, "ns::F g(E*);")
	assert.Contains(t, a.Source, "__abilib_resolve(\"e(E)\")")
	assert.NotContains(t, a.Source, "e(int)")
}

func TestOmissionLoggedAtDebug(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	g := New(lang.Languages[lang.C], WithLogger(zap.New(core).Sugar()))
	bad := &fakeDecl{name: "ld", linkage: decl.External, cLinkage: true, line: 1,
		err: ctype.Unrepresentable("long double")}
	observe(g, bad)

	entries := logs.FilterMessage("symbol omitted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
}
