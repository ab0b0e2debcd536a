// Package decl defines declaration events and the traversal that dispatches
// them to a fixed table of per-kind callbacks.
package decl

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/phobologic/abilib/internal/ctype"
)

// Kind enumerates the declaration kinds observers can register for.
type Kind int

const (
	Function Kind = iota
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Function:
		return "function"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is a callback's verdict on whether traversal continues.
type Action int

const (
	Continue Action = iota
	Cancel
)

// Linkage of a declared name.
type Linkage int

const (
	External Linkage = iota
	Internal
	NoLinkage
)

func (l Linkage) String() string {
	switch l {
	case External:
		return "external"
	case Internal:
		return "internal"
	}
	return "none"
}

// Position is a source location.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Declaration is the narrow capability observers get over a frontend's
// declaration node. It is only valid during the callback it is passed to.
type Declaration interface {
	Name() string
	// QualifiedName includes enclosing namespaces, e.g. "ns::f".
	QualifiedName() string
	Linkage() Linkage
	// CLinkage reports whether the symbol name is unmangled.
	CLinkage() bool
	// Signature renders the complete type descriptor. Types with no
	// ABI-faithful rendering yield an ErrUnrepresentableType error.
	Signature() (*ctype.Signature, error)
	Position() Position
	// FirstDeclared is the position of the earliest declaration of the same
	// entity in the translation unit.
	FirstDeclared() Position
}

// Context describes the translation unit a declaration belongs to.
type Context struct {
	Language string
	Standard int
	MainFile string
	Target   string
}

// SourceMap resolves locations in the translation unit.
type SourceMap interface {
	// Line returns the text of a source line, or "" when unknown.
	Line(file string, line int) string
}

// Event is one dispatched declaration.
type Event struct {
	Kind    Kind
	Decl    Declaration
	Context Context
	Sources SourceMap
}

// Callback observes one event.
type Callback func(Event) Action

// Callbacks is the dispatch table: at most one callback per kind.
type Callbacks struct {
	table [numKinds]Callback
}

// Register installs cb for kind, replacing any earlier registration.
func (c *Callbacks) Register(kind Kind, cb Callback) error {
	if kind < 0 || kind >= numKinds {
		return errors.Newf("unknown declaration kind %v", kind)
	}
	c.table[kind] = cb
	return nil
}

// Lookup returns the callback for kind, or nil.
func (c *Callbacks) Lookup(kind Kind) Callback {
	if c == nil || kind < 0 || kind >= numKinds {
		return nil
	}
	return c.table[kind]
}

// Empty reports whether no callback is registered.
func (c *Callbacks) Empty() bool {
	for _, cb := range c.table {
		if cb != nil {
			return false
		}
	}
	return true
}
