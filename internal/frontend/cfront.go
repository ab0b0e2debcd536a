package frontend

import (
	"strings"

	"modernc.org/cc/v4"
	"modernc.org/token"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/decl"
)

// cNode is the root (both fields nil), an external declaration, or one
// declarator within it.
type cNode struct {
	ext *cc.ExternalDeclaration
	d   *cc.Declarator
}

// cTree exposes a type-checked cc AST as a decl.Tree. Only file scope
// declarations from real sources are visited.
type cTree struct {
	ast  *cc.AST
	conv *converter
}

func newCTree(ast *cc.AST) *cTree {
	return &cTree{ast: ast, conv: newConverter()}
}

func (t *cTree) Root() cNode { return cNode{} }

func (t *cTree) Children(n cNode) []cNode {
	switch {
	case n.d != nil:
		return nil
	case n.ext == nil:
		var out []cNode
		for tu := t.ast.TranslationUnit; tu != nil; tu = tu.TranslationUnit {
			ext := tu.ExternalDeclaration
			if ext == nil || synthetic(ext.Position()) {
				continue
			}
			out = append(out, cNode{ext: ext})
		}
		return out
	}

	var out []cNode
	switch n.ext.Case {
	case cc.ExternalDeclarationFuncDef:
		if fd := n.ext.FunctionDefinition; fd != nil && fd.Declarator != nil {
			out = append(out, cNode{ext: n.ext, d: fd.Declarator})
		}
	case cc.ExternalDeclarationDecl:
		d := n.ext.Declaration
		if d == nil || d.Case != cc.DeclarationDecl {
			return nil
		}
		for l := d.InitDeclaratorList; l != nil; l = l.InitDeclaratorList {
			if l.InitDeclarator != nil && l.InitDeclarator.Declarator != nil {
				out = append(out, cNode{ext: n.ext, d: l.InitDeclarator.Declarator})
			}
		}
	}
	return out
}

func (t *cTree) Classify(n cNode) (decl.Kind, bool) {
	if n.d == nil || n.d.IsTypename() {
		return 0, false
	}
	if ty := n.d.Type(); ty == nil || ty.Kind() != cc.Function {
		return 0, false
	}
	return decl.Function, true
}

func (t *cTree) Declaration(n cNode) decl.Declaration {
	return &cDecl{tree: t, d: n.d}
}

// first returns the earliest file scope declarator of name.
func (t *cTree) first(name string) *cc.Declarator {
	if t.ast.Scope == nil {
		return nil
	}
	for _, n := range t.ast.Scope.Nodes[name] {
		if d, ok := n.(*cc.Declarator); ok {
			return d
		}
	}
	return nil
}

func synthetic(p token.Position) bool {
	return strings.HasPrefix(p.Filename, "<")
}

func position(p token.Position) decl.Position {
	return decl.Position{File: p.Filename, Line: p.Line, Column: p.Column}
}

type cDecl struct {
	tree *cTree
	d    *cc.Declarator
}

func (c *cDecl) Name() string          { return c.d.Name() }
func (c *cDecl) QualifiedName() string { return c.d.Name() }
func (c *cDecl) CLinkage() bool        { return true }

// Linkage follows the first declaration: a later declaration without
// static does not give an internal function external linkage.
func (c *cDecl) Linkage() decl.Linkage {
	if f := c.tree.first(c.d.Name()); f != nil && f.IsStatic() {
		return decl.Internal
	}
	switch c.d.Linkage() {
	case cc.External:
		return decl.External
	case cc.Internal:
		return decl.Internal
	}
	return decl.NoLinkage
}

func (c *cDecl) Signature() (*ctype.Signature, error) {
	ft, ok := c.d.Type().(*cc.FunctionType)
	if !ok {
		return nil, ctype.Unrepresentable("%s is not a function", c.d.Name())
	}
	return c.tree.conv.signature(ft)
}

func (c *cDecl) Position() decl.Position { return position(c.d.Position()) }

func (c *cDecl) FirstDeclared() decl.Position {
	if f := c.tree.first(c.d.Name()); f != nil {
		return position(f.Position())
	}
	return c.Position()
}
