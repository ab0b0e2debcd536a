package stub

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/graph"
	"github.com/phobologic/abilib/internal/lang"
)

// ResolverName is the runtime function stubs obtain target addresses from.
const ResolverName = "__abilib_resolve"

// Artifact is a rendered stub library.
type Artifact struct {
	HeaderName string
	SourceName string
	Header     string
	Source     string
	// Hash is the xxhash64 of the symbol table, in hex.
	Hash    string
	Symbols int
}

// Generate renders the table. base is the output base path; only its final
// element appears in the artifacts. Generate fails when conflicts were
// recorded or record definitions cannot be ordered.
func (g *Generator) Generate(base string) (*Artifact, error) {
	if err := g.Err(); err != nil {
		return nil, err
	}

	name := filepath.Base(base)
	syms := g.table.Symbols()
	forwards, defs := collectRecords(syms)
	defs, err := graph.Order(defs, graph.BuildGraph(defs))
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		HeaderName: name + ".h",
		SourceName: name + g.language.SourceExtension,
		Hash:       g.hash(syms),
		Symbols:    len(syms),
	}
	cxx := g.language.ID == lang.CXX
	a.Header = renderHeader(name, a.Hash, cxx, collectEnums(syms), forwards, defs, syms)
	a.Source = renderSource(a.HeaderName, a.Hash, cxx, g.variadicStack, syms)
	return a, nil
}

// hash digests the canonical table content. Equal tables hash equally.
func (g *Generator) hash(syms []*Symbol) string {
	d := xxhash.New()
	_, _ = d.WriteString(string(g.language.ID))
	for _, s := range syms {
		_, _ = d.WriteString("\x00" + s.Key() + "\x00" + s.Signature.Declare(s.QualifiedName, false))
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// collectRecords lists every record named by the table in first-use order,
// and the definitions needed for records passed by value.
func collectRecords(syms []*Symbol) ([]*ctype.Type, []*ctype.RecordDef) {
	var forwards []*ctype.Type
	var defs []*ctype.RecordDef
	seen := make(map[string]bool)
	defined := make(map[string]bool)
	for _, s := range syms {
		for _, r := range s.Signature.Records() {
			key := string(r.Type.Record) + " " + r.Type.Name
			if !seen[key] {
				seen[key] = true
				forwards = append(forwards, r.Type)
			}
			if r.ByValue && r.Type.Def != nil && !defined[key] {
				defined[key] = true
				defs = append(defs, r.Type.Def)
			}
		}
	}
	return forwards, defs
}

// collectEnums lists every enumeration named by the table in first-use order.
func collectEnums(syms []*Symbol) []*ctype.Type {
	var enums []*ctype.Type
	seen := make(map[string]bool)
	for _, s := range syms {
		for _, e := range s.Signature.Enums() {
			if !seen[e.Name] {
				seen[e.Name] = true
				enums = append(enums, e)
			}
		}
	}
	return enums
}

func guard(name string) string {
	var b strings.Builder
	b.WriteString("ABILIB_")
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString("_H")
	return b.String()
}

func banner(b *strings.Builder, hash string) {
	b.WriteString("/* Generated by abilib. Do not edit. */\n")
	fmt.Fprintf(b, "/* content hash: xxh64:%s */\n", hash)
}

func renderHeader(name, hash string, cxx bool, enums, forwards []*ctype.Type, defs []*ctype.RecordDef, syms []*Symbol) string {
	var b strings.Builder
	banner(&b, hash)
	g := guard(name)
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n", g, g)

	if !cxx {
		b.WriteString("\n#ifdef __cplusplus\nextern \"C\" {\n#endif\n")
	}

	if len(enums) > 0 {
		b.WriteByte('\n')
		for _, t := range enums {
			ns, tag := splitQualified(t.Name)
			kw := "enum"
			if t.Scoped {
				kw = "enum class"
			}
			b.WriteString(inNamespace(ns, fmt.Sprintf("%s %s : %s;", kw, tag, t.Elem)))
		}
	}

	if len(forwards) > 0 {
		b.WriteByte('\n')
		for _, t := range forwards {
			ns, tag := splitQualified(t.Name)
			b.WriteString(inNamespace(ns, fmt.Sprintf("%s %s;", t.Record, tag)))
		}
	}

	for _, d := range defs {
		b.WriteByte('\n')
		ns, tag := splitQualified(d.Tag)
		b.WriteString(inNamespace(ns, recordDefinition(d, tag)))
	}

	if len(syms) > 0 {
		b.WriteByte('\n')
	}
	for _, s := range syms {
		line := s.Signature.Declare(s.Name, false) + ";"
		switch {
		case cxx && s.CLinkage:
			b.WriteString("extern \"C\" " + line + "\n")
		default:
			b.WriteString(inNamespace(s.Namespace(), line))
		}
	}

	if !cxx {
		b.WriteString("\n#ifdef __cplusplus\n}\n#endif\n")
	}
	fmt.Fprintf(&b, "\n#endif /* %s */\n", g)
	return b.String()
}

func splitQualified(name string) ([]string, string) {
	parts := strings.Split(name, "::")
	return parts[:len(parts)-1], parts[len(parts)-1]
}

// inNamespace wraps one line of code in the given namespaces.
func inNamespace(ns []string, code string) string {
	if len(ns) == 0 {
		return code + "\n"
	}
	return "namespace " + strings.Join(ns, "::") + " {\n" + code + "\n}\n"
}

func recordDefinition(d *ctype.RecordDef, tag string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s {\n", d.Kind, tag)
	for _, f := range d.Fields {
		b.WriteString("\t" + f.Type.Declare(f.Name))
		if f.Bits > 0 {
			fmt.Fprintf(&b, " : %d", f.Bits)
		}
		b.WriteString(";\n")
	}
	b.WriteString("}")
	var attrs []string
	if d.Packed {
		attrs = append(attrs, "packed")
	}
	if d.Align > 0 {
		attrs = append(attrs, fmt.Sprintf("aligned(%d)", d.Align))
	}
	if len(attrs) > 0 {
		b.WriteString(" __attribute__((" + strings.Join(attrs, ", ") + "))")
	}
	b.WriteString(";")
	return b.String()
}

func renderSource(header, hash string, cxx bool, stackBytes int, syms []*Symbol) string {
	var b strings.Builder
	banner(&b, hash)
	fmt.Fprintf(&b, "#include \"%s\"\n\n", header)

	linkage := ""
	if cxx {
		linkage = "extern \"C\" "
	}
	fmt.Fprintf(&b, "%svoid *%s(const char *name);\n", linkage, ResolverName)

	for _, s := range syms {
		if s.Signature.Variadic {
			b.WriteString(variadicPrimitive(stackBytes))
			break
		}
	}

	for _, s := range syms {
		b.WriteByte('\n')
		b.WriteString(stubDefinition(s, cxx))
	}
	return b.String()
}

// variadicPrimitive forwards the caller's whole argument frame. Only GCC
// can do that; elsewhere a variadic stub traps.
func variadicPrimitive(stackBytes int) string {
	return fmt.Sprintf(`
#ifndef ABILIB_VARIADIC_STACK_BYTES
#define ABILIB_VARIADIC_STACK_BYTES %d
#endif

#if defined(__GNUC__) && !defined(__clang__)
#define ABILIB_FORWARD_VARIADIC(addr) \
	do { \
		void *abilib_args_ = __builtin_apply_args(); \
		void *abilib_ret_ = __builtin_apply((void (*)())(addr), abilib_args_, ABILIB_VARIADIC_STACK_BYTES); \
		__builtin_return(abilib_ret_); \
	} while (0)
#else
#define ABILIB_FORWARD_VARIADIC(addr) \
	do { \
		(void)(addr); \
		__builtin_trap(); \
	} while (0)
#endif
`, stackBytes)
}

func stubDefinition(s *Symbol, cxx bool) string {
	var b strings.Builder
	name := s.Name
	if cxx && !s.CLinkage {
		name = s.QualifiedName
	}
	sig := s.Signature
	resolve := fmt.Sprintf("%s(\"%s\")", ResolverName, s.ResolveName())

	b.WriteString(sig.Declare(name, true) + "\n{\n")
	if sig.Variadic {
		fmt.Fprintf(&b, "\tABILIB_FORWARD_VARIADIC(%s);\n", resolve)
		b.WriteString("}\n")
		return b.String()
	}

	fp := ctype.PointerTo(sig.Type())
	fmt.Fprintf(&b, "\t%s = (%s)%s;\n", fp.Declare("fn"), fp, resolve)

	args := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		args[i] = ctype.ParamName(i)
		if p.Type.Kind == ctype.RRef {
			args[i] = fmt.Sprintf("static_cast<%s>(%s)", p.Type, args[i])
		}
	}
	call := "fn(" + strings.Join(args, ", ") + ");"
	if sig.Result.Kind == ctype.Void {
		b.WriteString("\t" + call + "\n")
	} else {
		b.WriteString("\treturn " + call + "\n")
	}
	b.WriteString("}\n")
	return b.String()
}
