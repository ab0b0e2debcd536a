package stub

import (
	"strings"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/decl"
)

// Symbol is one admitted external function.
type Symbol struct {
	Name          string
	QualifiedName string
	CLinkage      bool
	Signature     *ctype.Signature
	Position      decl.Position
}

// Key identifies the symbol in the table. C-linkage symbols are keyed by
// name; C++ symbols by qualified name and parameter list, since overloads
// are distinct symbols.
func (s *Symbol) Key() string {
	return symbolKey(s.Name, s.QualifiedName, s.CLinkage, s.Signature)
}

func symbolKey(name, qualified string, cLinkage bool, sig *ctype.Signature) string {
	if cLinkage {
		return name
	}
	return qualified + sig.ParamKey()
}

// Namespace returns the enclosing namespaces of a C++ symbol.
func (s *Symbol) Namespace() []string {
	if s.CLinkage {
		return nil
	}
	parts := strings.Split(s.QualifiedName, "::")
	return parts[:len(parts)-1]
}

// ResolveName is the name the stub passes to the runtime resolver.
func (s *Symbol) ResolveName() string {
	if s.CLinkage {
		return s.Name
	}
	return s.Key()
}

// Table is the deduplicated, insertion-ordered set of admitted symbols.
type Table struct {
	symbols []*Symbol
	index   map[string]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Lookup returns the symbol stored under key.
func (t *Table) Lookup(key string) (*Symbol, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.symbols[i], true
}

// Add appends s. It reports false when the key is already present.
func (t *Table) Add(s *Symbol) bool {
	key := s.Key()
	if _, ok := t.index[key]; ok {
		return false
	}
	t.index[key] = len(t.symbols)
	t.symbols = append(t.symbols, s)
	return true
}

// Len returns the number of symbols.
func (t *Table) Len() int { return len(t.symbols) }

// Symbols returns the symbols in insertion order.
func (t *Table) Symbols() []*Symbol {
	return append([]*Symbol(nil), t.symbols...)
}
