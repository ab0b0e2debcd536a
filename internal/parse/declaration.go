package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/decl"
)

// declaration is a function declarator within a declaration or definition.
type declaration struct {
	u    *Unit
	node Node
	name *sitter.Node
	// entity identifies the function across redeclarations: the key plus
	// the parameter list for C++ linkage.
	entity string
}

func (d *declaration) Name() string {
	name := strings.ReplaceAll(d.u.text(d.name), " ", "")
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

func (d *declaration) QualifiedName() string {
	return qualify(d.node.scope, d.u.text(d.name))
}

// Linkage follows the first declaration: a function first declared static
// keeps internal linkage through later plain redeclarations.
func (d *declaration) Linkage() decl.Linkage {
	if d.node.internal || d.declaredStatic() || d.u.static[d.entity] {
		return decl.Internal
	}
	return decl.External
}

func (d *declaration) declaredStatic() bool {
	for i := 0; i < int(d.node.decl.NamedChildCount()); i++ {
		c := d.node.decl.NamedChild(i)
		if c.Type() == "storage_class_specifier" && d.u.text(c) == "static" {
			return true
		}
	}
	return false
}

func (d *declaration) CLinkage() bool { return d.node.cLinkage }

func (d *declaration) Signature() (*ctype.Signature, error) {
	if d.node.template {
		return nil, ctype.Unrepresentable("template %s has no fixed signature", d.QualifiedName())
	}
	base, err := d.u.specType(d.node.decl, d.node.scope)
	if err != nil {
		return nil, err
	}
	_, t, err := d.u.derive(base, d.node.declarator, d.node.scope)
	if err != nil {
		return nil, err
	}
	if t.Kind != ctype.Function {
		return nil, ctype.Unrepresentable("%s is not a function", d.QualifiedName())
	}
	return t.Func, nil
}

func (d *declaration) Position() decl.Position { return d.u.pos(d.name) }

func (d *declaration) FirstDeclared() decl.Position {
	if p, ok := d.u.first[d.key()]; ok {
		return p
	}
	return d.Position()
}

// key identifies the entity across redeclarations. Overloads share a key;
// callers tell them apart by signature.
func (d *declaration) key() string {
	if d.node.cLinkage {
		return d.Name()
	}
	return d.QualifiedName()
}
