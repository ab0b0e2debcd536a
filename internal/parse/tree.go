package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/abilib/internal/decl"
)

// Node is a position in the declaration tree together with the scope
// context inherited from its ancestors.
type Node struct {
	n *sitter.Node
	// decl and declarator are set on per-declarator nodes.
	decl       *sitter.Node
	declarator *sitter.Node

	scope    []string
	cLinkage bool
	internal bool // inside an anonymous namespace
	template bool
}

// Root implements decl.Tree.
func (u *Unit) Root() Node {
	return Node{n: u.tree.RootNode(), cLinkage: !u.isCXX()}
}

// Children implements decl.Tree. Only namespace-scope constructs are
// expanded: class bodies and function bodies are leaves. Function templates
// are expanded so they can be reported as omitted.
func (u *Unit) Children(n Node) []Node {
	if n.declarator != nil {
		return nil
	}

	switch n.n.Type() {
	case "translation_unit", "declaration_list":
		return u.scopeChildren(n, n.n)
	case "linkage_specification":
		child := n
		if v := n.n.ChildByFieldName("value"); v != nil {
			child.cLinkage = u.text(v) == `"C"`
		}
		body := n.n.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		if body.Type() == "declaration_list" {
			return u.scopeChildren(child, body)
		}
		child.n = body
		return []Node{child}
	case "namespace_definition":
		child := n
		child.scope = append([]string(nil), n.scope...)
		if name := n.n.ChildByFieldName("name"); name != nil {
			for _, part := range strings.Split(u.text(name), "::") {
				if part = strings.TrimSpace(part); part != "" && part != "inline" {
					child.scope = append(child.scope, part)
				}
			}
		} else {
			child.internal = true
		}
		body := n.n.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		return u.scopeChildren(child, body)
	case "template_declaration":
		var out []Node
		for i := 0; i < int(n.n.NamedChildCount()); i++ {
			c := n.n.NamedChild(i)
			if t := c.Type(); t == "declaration" || t == "function_definition" {
				child := n
				child.n = c
				child.template = true
				out = append(out, child)
			}
		}
		return out
	case "declaration", "function_definition":
		if n.n.HasError() {
			return nil
		}
		var out []Node
		for i := 0; i < int(n.n.ChildCount()); i++ {
			if n.n.FieldNameForChild(i) != "declarator" {
				continue
			}
			d := n
			d.decl = n.n
			d.declarator = n.n.Child(i)
			out = append(out, d)
		}
		return out
	}
	return nil
}

func (u *Unit) scopeChildren(ctx Node, parent *sitter.Node) []Node {
	out := make([]Node, 0, parent.NamedChildCount())
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		c := ctx
		c.n = parent.NamedChild(i)
		out = append(out, c)
	}
	return out
}

// Classify implements decl.Tree. A node is a function declaration when the
// derivation applied directly to the declared name is a function declarator
// and the name is not a class member.
func (u *Unit) Classify(n Node) (decl.Kind, bool) {
	if n.declarator == nil {
		return 0, false
	}
	name, ok := declaresFunction(n.declarator)
	if !ok {
		return 0, false
	}
	if name.Type() == "qualified_identifier" {
		scope := name.ChildByFieldName("scope")
		if scope != nil && (scope.Type() == "template_type" || u.types.isRecord(u.text(scope), n.scope)) {
			return 0, false
		}
	}
	return decl.Function, true
}

// Declaration implements decl.Tree.
func (u *Unit) Declaration(n Node) decl.Declaration {
	name, _ := declaresFunction(n.declarator)
	d := &declaration{u: u, node: n, name: name}
	if _, ok := u.first[d.key()]; !ok {
		u.first[d.key()] = d.Position()
	}
	d.entity = d.key()
	if !n.cLinkage {
		if sig, err := d.Signature(); err == nil {
			d.entity += sig.ParamKey()
		}
	}
	if _, ok := u.static[d.entity]; !ok {
		u.static[d.entity] = d.declaredStatic()
	}
	return d
}

// declaresFunction follows a declarator chain down to the declared name and
// reports whether the innermost derivation is a function declarator.
func declaresFunction(d *sitter.Node) (*sitter.Node, bool) {
	last := ""
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "qualified_identifier", "operator_name", "destructor_name":
			return d, last == "function_declarator"
		case "parenthesized_declarator", "attributed_declarator":
			d = firstDeclarator(d)
			continue
		case "init_declarator":
			return nil, false
		case "pointer_declarator", "reference_declarator", "array_declarator", "function_declarator":
			last = d.Type()
		default:
			return nil, false
		}
		d = innerDeclarator(d)
	}
	return nil, false
}

// innerDeclarator returns the declarator nested in d.
func innerDeclarator(d *sitter.Node) *sitter.Node {
	if inner := d.ChildByFieldName("declarator"); inner != nil {
		return inner
	}
	return firstDeclarator(d)
}

func firstDeclarator(d *sitter.Node) *sitter.Node {
	for i := 0; i < int(d.NamedChildCount()); i++ {
		c := d.NamedChild(i)
		if isDeclaratorNode(c.Type()) {
			return c
		}
	}
	return nil
}

func isDeclaratorNode(t string) bool {
	switch t {
	case "identifier", "field_identifier", "qualified_identifier", "operator_name", "destructor_name",
		"type_identifier", "template_function":
		return true
	}
	return strings.HasSuffix(t, "_declarator")
}
