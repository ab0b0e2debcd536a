package graph

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/model"
)

func record(tag string, fields ...ctype.Field) *ctype.RecordDef {
	return &ctype.RecordDef{Kind: ctype.Struct, Tag: tag, Fields: fields}
}

func field(name string, t *ctype.Type) ctype.Field {
	return ctype.Field{Name: name, Type: t}
}

func byValue(tag string) *ctype.Type { return ctype.RecordType(ctype.Struct, tag) }

func keys(defs []*ctype.RecordDef) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = Key(d)
	}
	return out
}

func TestBuildGraphByValueOnly(t *testing.T) {
	t.Parallel()

	defs := []*ctype.RecordDef{
		record("outer",
			field("a", byValue("inner")),
			field("b", ctype.PointerTo(byValue("other"))),
			field("c", &ctype.Type{Kind: ctype.Array, Elem: byValue("inner"), Len: 4}),
		),
		record("inner", field("x", ctype.BuiltinType("int"))),
		record("other"),
	}

	deps := BuildGraph(defs)
	if len(deps) != 1 {
		t.Fatalf("expected 1 dep, got %d: %+v", len(deps), deps)
	}
	if deps[0].Source != "struct outer" || deps[0].Target != "struct inner" {
		t.Errorf("dep: %+v", deps[0])
	}
	if len(deps[0].Fields) != 2 || deps[0].Fields[0] != "a" || deps[0].Fields[1] != "c" {
		t.Errorf("fields: %v", deps[0].Fields)
	}
}

func TestBuildGraphIgnoresUnknownAndSelf(t *testing.T) {
	t.Parallel()

	defs := []*ctype.RecordDef{
		record("a", field("x", byValue("elsewhere")), field("y", byValue("a"))),
	}
	if deps := BuildGraph(defs); len(deps) != 0 {
		t.Errorf("expected no deps, got %+v", deps)
	}
}

func TestOrderDependenciesFirst(t *testing.T) {
	t.Parallel()

	defs := []*ctype.RecordDef{
		record("top", field("m", byValue("mid"))),
		record("mid", field("l", byValue("leaf"))),
		record("free"),
		record("leaf"),
	}

	got, err := Order(defs, BuildGraph(defs))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"struct free", "struct leaf", "struct mid", "struct top"}
	if g := keys(got); !equal(g, want) {
		t.Errorf("order = %v, want %v", g, want)
	}
}

func TestOrderKeepsInputOrderWithoutDeps(t *testing.T) {
	t.Parallel()

	defs := []*ctype.RecordDef{record("z"), record("a"), record("m")}
	got, err := Order(defs, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"struct z", "struct a", "struct m"}
	if g := keys(got); !equal(g, want) {
		t.Errorf("order = %v, want %v", g, want)
	}
}

func TestOrderCycle(t *testing.T) {
	t.Parallel()

	defs := []*ctype.RecordDef{
		record("a", field("b", byValue("b"))),
		record("b", field("a", byValue("a"))),
	}
	_, err := Order(defs, BuildGraph(defs))
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, model.ErrUnrepresentableType) {
		t.Errorf("error not classified: %v", err)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
