package parse

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/lang"
)

// typedefEntry is a typedef or alias collected by the prepass and resolved
// on first use.
type typedefEntry struct {
	name       string
	scope      []string
	spec       *sitter.Node // node carrying the type specifier and qualifiers
	declarator *sitter.Node // nil for alias declarations
	resolving  bool
	typ        *ctype.Type
	err        error
}

type typeTable struct {
	typedefs map[string]*typedefEntry
	records  map[string]ctype.RecordKind
	enums    map[string]*sitter.Node // enum_specifier; base may be nil
}

// collectTypes records every namespace-scope typedef, alias, record and
// enum name, qualified by its enclosing namespaces.
func collectTypes(u *Unit) *typeTable {
	tt := &typeTable{
		typedefs: make(map[string]*typedefEntry),
		records:  make(map[string]ctype.RecordKind),
		enums:    make(map[string]*sitter.Node),
	}

	type item struct {
		n     *sitter.Node
		scope []string
	}
	stack := []item{{n: u.tree.RootNode()}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := it.n

		switch n.Type() {
		case "namespace_definition":
			scope := it.scope
			if name := n.ChildByFieldName("name"); name != nil {
				scope = append(append([]string(nil), it.scope...), strings.Split(u.text(name), "::")...)
			}
			if body := n.ChildByFieldName("body"); body != nil {
				stack = append(stack, item{body, scope})
			}
			continue
		case "type_definition":
			for i := 0; i < int(n.ChildCount()); i++ {
				if n.FieldNameForChild(i) != "declarator" {
					continue
				}
				d := n.Child(i)
				if name := declaredName(d); name != nil {
					tt.typedefs[qualify(it.scope, u.text(name))] = &typedefEntry{name: u.text(name), scope: it.scope, spec: n, declarator: d}
				}
			}
		case "alias_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				tt.typedefs[qualify(it.scope, u.text(name))] = &typedefEntry{scope: it.scope, spec: n.ChildByFieldName("type")}
			}
		case "struct_specifier", "union_specifier", "class_specifier":
			if name := n.ChildByFieldName("name"); name != nil {
				key := qualify(it.scope, u.text(name))
				if _, ok := tt.records[key]; !ok {
					tt.records[key] = recordKind(n.Type())
				}
			}
			// Nested classes are not reachable by free functions' names.
			continue
		case "enum_specifier":
			if name := n.ChildByFieldName("name"); name != nil {
				tt.enums[qualify(it.scope, u.text(name))] = n
			}
			continue
		case "template_declaration", "compound_statement", "ERROR":
			continue
		}

		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, item{n.NamedChild(i), it.scope})
		}
	}
	return tt
}

func qualify(scope []string, name string) string {
	name = strings.TrimPrefix(strings.ReplaceAll(name, " ", ""), "::")
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, "::") + "::" + name
}

// lookup resolves name from scope outwards and returns the qualified key.
func lookup[V any](m map[string]V, name string, scope []string) (string, V, bool) {
	name = strings.ReplaceAll(name, " ", "")
	if strings.HasPrefix(name, "::") {
		v, ok := m[name[2:]]
		return name[2:], v, ok
	}
	for i := len(scope); i >= 0; i-- {
		key := qualify(scope[:i], name)
		if v, ok := m[key]; ok {
			return key, v, true
		}
	}
	var zero V
	return "", zero, false
}

func (tt *typeTable) isRecord(name string, scope []string) bool {
	_, _, ok := lookup(tt.records, name, scope)
	return ok
}

func recordKind(nodeType string) ctype.RecordKind {
	switch nodeType {
	case "union_specifier":
		return ctype.Union
	case "class_specifier":
		return ctype.Class
	}
	return ctype.Struct
}

func isRecordSpecifier(t string) bool {
	return t == "struct_specifier" || t == "union_specifier" || t == "class_specifier"
}

func declaredName(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier", "primitive_type":
			return d
		}
		d = innerDeclarator(d)
	}
	return nil
}

// fixedBuiltins are the builtin spellings with a size on every target.
var fixedBuiltins = map[string]bool{
	"char": true, "signed char": true, "unsigned char": true,
	"short": true, "unsigned short": true, "int": true, "unsigned int": true,
	"long": true, "unsigned long": true, "long long": true, "unsigned long long": true,
	"float": true, "double": true, "_Bool": true, "bool": true,
	"wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
}

// specType resolves the type specifier and qualifiers that are direct
// children of owner (a declaration, parameter or typedef).
func (u *Unit) specType(owner *sitter.Node, scope []string) (*ctype.Type, error) {
	spec := owner.ChildByFieldName("type")
	if spec == nil {
		return nil, ctype.Unrepresentable("missing type specifier")
	}
	var isConst, isVolatile bool
	for i := 0; i < int(owner.NamedChildCount()); i++ {
		c := owner.NamedChild(i)
		switch c.Type() {
		case "type_qualifier":
			switch q := u.text(c); q {
			case "const", "__const", "constexpr":
				isConst = isConst || q != "constexpr"
			case "volatile", "__volatile__":
				isVolatile = true
			case "_Atomic":
				return nil, ctype.Unrepresentable("atomic types are not forwarded")
			}
		case "attribute_specifier", "attribute_declaration", "ms_call_modifier":
			if err := checkCallingConvention(u.text(c)); err != nil {
				return nil, err
			}
		}
	}
	t, err := u.typeOf(spec, scope)
	if err != nil {
		return nil, err
	}
	if isConst || isVolatile {
		t = t.WithQualifiers(isConst, isVolatile)
	}
	return t, nil
}

func (u *Unit) typeOf(spec *sitter.Node, scope []string) (*ctype.Type, error) {
	switch spec.Type() {
	case "primitive_type":
		return u.builtin(u.text(spec))
	case "sized_type_specifier":
		var words []string
		for i := 0; i < int(spec.ChildCount()); i++ {
			c := spec.Child(i)
			if c.IsNamed() {
				words = append(words, u.text(c))
			} else {
				words = append(words, c.Type())
			}
		}
		name, err := ctype.CanonicalBuiltin(words)
		if err != nil {
			return nil, ctype.Unrepresentable("%v", err)
		}
		return u.builtin(name)
	case "type_identifier", "qualified_identifier", "scoped_type_identifier":
		return u.named(u.text(spec), scope)
	case "struct_specifier", "union_specifier", "class_specifier":
		name := spec.ChildByFieldName("name")
		if name == nil {
			return nil, ctype.Unrepresentable("anonymous %s", strings.TrimSuffix(spec.Type(), "_specifier"))
		}
		if !u.isCXX() {
			return ctype.RecordType(recordKind(spec.Type()), u.text(name)), nil
		}
		key, kind, ok := lookup(u.types.records, u.text(name), scope)
		if !ok {
			key, kind = qualify(nil, u.text(name)), recordKind(spec.Type())
		}
		return ctype.RecordType(kind, key), nil
	case "enum_specifier":
		name := spec.ChildByFieldName("name")
		if u.isCXX() && name != nil {
			key, e, ok := lookup(u.types.enums, u.text(name), scope)
			if !ok {
				key, e = qualify(nil, u.text(name)), spec
			}
			return u.enumType(key, e, scope)
		}
		if base := spec.ChildByFieldName("base"); base != nil {
			return u.typeOf(base, scope)
		}
		if name != nil {
			if _, e, ok := lookup(u.types.enums, u.text(name), scope); ok {
				if base := e.ChildByFieldName("base"); base != nil {
					return u.typeOf(base, scope)
				}
			}
		}
		return ctype.BuiltinType("int"), nil
	case "type_descriptor":
		base, err := u.specType(spec, scope)
		if err != nil {
			return nil, err
		}
		_, t, err := u.derive(base, spec.ChildByFieldName("declarator"), scope)
		return t, err
	case "template_type", "auto", "placeholder_type_specifier", "decltype", "dependent_type":
		return nil, ctype.Unrepresentable("%s %q has no fixed ABI", spec.Type(), lang.CollapseWhitespace(u.text(spec)))
	}
	return nil, ctype.Unrepresentable("unsupported type %q", lang.CollapseWhitespace(u.text(spec)))
}

func (u *Unit) builtin(name string) (*ctype.Type, error) {
	if mapped, ok := u.opts.Builtins[name]; ok {
		name = mapped
	}
	if name == "void" {
		return ctype.VoidType(), nil
	}
	if name == "bool" && !u.isCXX() {
		name = "_Bool"
	}
	if err := ctype.CheckBuiltin(name); err != nil {
		return nil, err
	}
	if !fixedBuiltins[name] {
		return nil, ctype.Unrepresentable("type %q has no known size on this target", name)
	}
	return ctype.BuiltinType(name), nil
}

// named resolves a typedef, alias, record or enum name.
func (u *Unit) named(name string, scope []string) (*ctype.Type, error) {
	if _, e, ok := lookup(u.types.typedefs, name, scope); ok {
		return u.resolveTypedef(e)
	}
	if key, kind, ok := lookup(u.types.records, name, scope); ok && u.isCXX() {
		return ctype.RecordType(kind, key), nil
	}
	if key, e, ok := lookup(u.types.enums, name, scope); ok && u.isCXX() {
		return u.enumType(key, e, scope)
	}
	if _, ok := u.opts.Builtins[strings.TrimPrefix(name, "std::")]; ok {
		return u.builtin(strings.TrimPrefix(name, "std::"))
	}
	return nil, ctype.Unrepresentable("unknown type %q", name)
}

// enumType describes a C++ enumeration by name. Its underlying type is the
// declared base, or int. The header re-declares it opaquely, which C++98
// cannot do.
func (u *Unit) enumType(key string, spec *sitter.Node, scope []string) (*ctype.Type, error) {
	if u.opts.Standard == 98 {
		return nil, ctype.Unrepresentable("enum %s cannot be declared opaquely in C++98", key)
	}
	underlying := ctype.BuiltinType("int")
	if base := spec.ChildByFieldName("base"); base != nil {
		t, err := u.typeOf(base, scope)
		if err != nil {
			return nil, err
		}
		if t.Kind != ctype.Builtin {
			return nil, ctype.Unrepresentable("enum %s has underlying type %s", key, t)
		}
		underlying = t
	}
	scoped := false
	for i := 0; i < int(spec.ChildCount()); i++ {
		if t := spec.Child(i).Type(); t == "class" || t == "struct" {
			scoped = true
		}
	}
	return ctype.EnumType(key, underlying, scoped), nil
}

func (u *Unit) resolveTypedef(e *typedefEntry) (*ctype.Type, error) {
	if e.typ != nil || e.err != nil {
		return e.typ, e.err
	}
	if e.resolving {
		return nil, ctype.Unrepresentable("recursive typedef")
	}
	e.resolving = true
	defer func() { e.resolving = false }()

	if e.declarator == nil {
		e.typ, e.err = u.typeOf(e.spec, e.scope)
		return e.typ, e.err
	}
	base, err := u.specType(e.spec, e.scope)
	if anon := e.spec.ChildByFieldName("type"); anon != nil && isRecordSpecifier(anon.Type()) && anon.ChildByFieldName("name") == nil {
		// typedef struct { ... } name;
		base, err = ctype.RecordType(recordKind(anon.Type()), qualify(e.scope, e.name)), nil
	}
	if anon := e.spec.ChildByFieldName("type"); anon != nil && anon.Type() == "enum_specifier" && anon.ChildByFieldName("name") == nil && u.isCXX() {
		// typedef enum { ... } name; the typedef names the enum for linkage.
		base, err = u.enumType(qualify(e.scope, e.name), anon, e.scope)
	}
	if err != nil {
		e.err = err
		return nil, err
	}
	_, e.typ, e.err = u.derive(base, e.declarator, e.scope)
	return e.typ, e.err
}

var callingConventions = []string{
	"stdcall", "fastcall", "thiscall", "vectorcall", "regcall", "ms_abi", "sysv_abi", "pascal", "regparm",
}

func checkCallingConvention(text string) error {
	lower := strings.ToLower(text)
	for _, cc := range callingConventions {
		if strings.Contains(lower, cc) {
			return ctype.Unrepresentable("calling convention %q is not supported", cc)
		}
	}
	return nil
}

// derive applies the declarator chain d to base, outermost first, and
// returns the declared name node (nil for abstract declarators).
func (u *Unit) derive(base *ctype.Type, d *sitter.Node, scope []string) (*sitter.Node, *ctype.Type, error) {
	t := base
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "qualified_identifier", "operator_name", "destructor_name", "type_identifier":
			return d, t, nil
		case "pointer_declarator", "abstract_pointer_declarator":
			var isConst, isVolatile bool
			for i := 0; i < int(d.NamedChildCount()); i++ {
				c := d.NamedChild(i)
				switch c.Type() {
				case "type_qualifier":
					switch u.text(c) {
					case "const":
						isConst = true
					case "volatile":
						isVolatile = true
					}
				case "ms_pointer_modifier":
					return nil, nil, ctype.Unrepresentable("pointer modifier %q", u.text(c))
				}
			}
			t = ctype.PointerTo(t).WithQualifiers(isConst, isVolatile)
		case "reference_declarator", "abstract_reference_declarator":
			kind := ctype.LRef
			if d.ChildCount() > 0 && d.Child(0).Type() == "&&" {
				kind = ctype.RRef
			}
			t = &ctype.Type{Kind: kind, Elem: t}
		case "array_declarator", "abstract_array_declarator":
			n := int64(-1)
			if size := d.ChildByFieldName("size"); size != nil {
				v, err := strconv.ParseInt(strings.TrimRight(u.text(size), "uUlL"), 0, 64)
				if err != nil {
					return nil, nil, ctype.Unrepresentable("array bound %q is not a constant", u.text(size))
				}
				n = v
			}
			t = &ctype.Type{Kind: ctype.Array, Elem: t, Len: n}
		case "function_declarator", "abstract_function_declarator":
			for i := 0; i < int(d.NamedChildCount()); i++ {
				c := d.NamedChild(i)
				switch c.Type() {
				case "trailing_return_type":
					return nil, nil, ctype.Unrepresentable("trailing return types are not supported")
				case "attribute_specifier", "attribute_declaration":
					if err := checkCallingConvention(u.text(c)); err != nil {
						return nil, nil, err
					}
				}
			}
			sig, err := u.signature(t, d.ChildByFieldName("parameters"), scope)
			if err != nil {
				return nil, nil, err
			}
			t = ctype.FunctionOf(sig)
		case "parenthesized_declarator", "abstract_parenthesized_declarator", "attributed_declarator":
			for i := 0; i < int(d.NamedChildCount()); i++ {
				c := d.NamedChild(i)
				switch c.Type() {
				case "ms_call_modifier", "attribute_specifier", "attribute_declaration":
					if err := checkCallingConvention(u.text(c)); err != nil {
						return nil, nil, err
					}
				}
			}
			d = firstDeclarator(d)
			continue
		default:
			return nil, nil, ctype.Unrepresentable("unsupported declarator %q", lang.CollapseWhitespace(u.text(d)))
		}
		d = innerDeclarator(d)
	}
	return nil, t, nil
}

func (u *Unit) signature(result *ctype.Type, params *sitter.Node, scope []string) (*ctype.Signature, error) {
	sig := &ctype.Signature{Result: result}
	if params == nil {
		return nil, ctype.Unrepresentable("missing parameter list")
	}
	if !u.isCXX() && params.NamedChildCount() == 0 && !hasEllipsis(params) {
		return nil, ctype.Unrepresentable("function declared without a prototype")
	}

	for i := 0; i < int(params.ChildCount()); i++ {
		p := params.Child(i)
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
			base, err := u.specType(p, scope)
			if err != nil {
				return nil, err
			}
			name, t, err := u.derive(base, p.ChildByFieldName("declarator"), scope)
			if err != nil {
				return nil, err
			}
			if t.Kind == ctype.Void && !t.Const && !t.Volatile && p.ChildByFieldName("declarator") == nil {
				// (void)
				continue
			}
			param := ctype.Param{Type: t}
			if name != nil {
				param.Name = u.text(name)
			}
			sig.Params = append(sig.Params, param)
		case "variadic_parameter", "...":
			sig.Variadic = true
		case "variadic_parameter_declaration", "optional_type_parameter_declaration":
			return nil, ctype.Unrepresentable("parameter packs are not supported")
		case "(", ")", ",", "comment":
		default:
			if p.IsNamed() {
				return nil, ctype.Unrepresentable("unsupported parameter %q", lang.CollapseWhitespace(u.text(p)))
			}
		}
	}
	return sig, nil
}

func hasEllipsis(params *sitter.Node) bool {
	for i := 0; i < int(params.ChildCount()); i++ {
		if params.Child(i).Type() == "..." {
			return true
		}
	}
	return false
}
