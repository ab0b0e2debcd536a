// Package parse is the syntactic declaration backend. It parses a
// preprocessed translation unit with tree-sitter and exposes its namespace
// scope declarations as a decl.Tree.
package parse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cockroachdb/errors"

	"github.com/phobologic/abilib/internal/decl"
	"github.com/phobologic/abilib/internal/lang"
)

// Options configures a Unit.
type Options struct {
	Language *lang.Language
	// File is the name positions are reported against.
	File string
	// Builtins maps target typedef names spelled as keywords by the
	// grammar (size_t, int32_t, ...) to canonical builtin spellings.
	Builtins map[string]string
	// Standard is the C++ dialect year. C++98 has no opaque enum
	// declarations, so enum parameters are unrepresentable there.
	Standard int
}

// SyntaxError is one ERROR or MISSING node.
type SyntaxError struct {
	Pos     decl.Position
	Message string
}

func (e SyntaxError) String() string {
	return e.Pos.String() + ": error: " + e.Message
}

// Unit is one parsed translation unit. It implements decl.Tree[Node] and
// decl.SourceMap. Close releases the tree-sitter tree.
type Unit struct {
	opts  Options
	src   []byte
	tree  *sitter.Tree
	lines []string
	types *typeTable
	first map[string]decl.Position
	// static records, per function entity, whether its first declaration
	// had internal linkage. Later redeclarations inherit it.
	static map[string]bool
}

// Parse parses src. The parser is created and released inside the call.
func Parse(ctx context.Context, src []byte, opts Options) (*Unit, error) {
	if opts.Language == nil {
		return nil, errors.New("parse: no language")
	}
	parser := opts.Language.NewParser()
	defer parser.Close()

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "tree-sitter parse")
	}

	u := &Unit{
		opts:   opts,
		src:    src,
		tree:   tree,
		lines:  strings.Split(string(src), "\n"),
		first:  make(map[string]decl.Position),
		static: make(map[string]bool),
	}
	u.types = collectTypes(u)
	return u, nil
}

// Close releases the underlying tree.
func (u *Unit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

// Line implements decl.SourceMap.
func (u *Unit) Line(file string, line int) string {
	if file != u.opts.File || line < 1 || line > len(u.lines) {
		return ""
	}
	return u.lines[line-1]
}

// SyntaxErrors lists ERROR and MISSING nodes in source order. Subtrees of an
// ERROR node are not reported separately.
func (u *Unit) SyntaxErrors() []SyntaxError {
	var errs []SyntaxError
	root := u.tree.RootNode()
	if !root.HasError() {
		return nil
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch {
		case n.IsMissing():
			errs = append(errs, SyntaxError{Pos: u.pos(n), Message: "expected " + quoteToken(n.Type())})
			continue
		case n.Type() == "ERROR":
			msg := "unexpected " + quoteToken(firstToken(n, u.src))
			errs = append(errs, SyntaxError{Pos: u.pos(n), Message: msg})
			continue
		case !n.HasError():
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.Child(i))
		}
	}
	return errs
}

func firstToken(n *sitter.Node, src []byte) string {
	for n.ChildCount() > 0 {
		n = n.Child(0)
	}
	return lang.NodeText(n, src)
}

func quoteToken(s string) string {
	if s == "" {
		return "end of input"
	}
	return "'" + s + "'"
}

func (u *Unit) pos(n *sitter.Node) decl.Position {
	p := n.StartPoint()
	return decl.Position{File: u.opts.File, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func (u *Unit) text(n *sitter.Node) string {
	return lang.NodeText(n, u.src)
}

func (u *Unit) isCXX() bool { return u.opts.Language.ID == lang.CXX }
