// Package stub collects external function declarations into a symbol table
// and renders them as a stub library: a header of forward declarations and
// a source file of pass-through definitions.
package stub

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/decl"
	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/logger"
	"github.com/phobologic/abilib/internal/model"
)

// DefaultVariadicStackBytes is the argument window forwarded by variadic
// stubs unless configured otherwise.
const DefaultVariadicStackBytes = 256

// Conflict is an incompatible redeclaration of an admitted symbol.
type Conflict struct {
	Symbol        string
	Position      decl.Position
	FirstDeclared decl.Position
	Have          string
	Got           string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s redeclared as %q; first declared at %s as %q",
		c.Position, c.Symbol, c.Got, c.FirstDeclared, c.Have)
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(g *Generator) { g.log = l }
}

// WithVariadicStackBytes sets the default argument window of variadic
// stubs. Non-positive values keep the default.
func WithVariadicStackBytes(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.variadicStack = n
		}
	}
}

// Generator observes declaration events for one translation unit. It is
// not safe for concurrent use.
type Generator struct {
	language      *lang.Language
	table         *Table
	omissions     []model.Omission
	omitted       map[string]bool
	conflicts     []Conflict
	variadicStack int
	log           *zap.SugaredLogger
}

// New returns a generator rendering for language l.
func New(l *lang.Language, opts ...Option) *Generator {
	g := &Generator{
		language:      l,
		table:         NewTable(),
		omitted:       make(map[string]bool),
		variadicStack: DefaultVariadicStackBytes,
		log:           logger.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Observe applies the admission policy to one function declaration. The
// first matching rule decides:
//
//  1. non-external linkage is ignored;
//  2. a redeclaration with the same signature is a no-op;
//  3. a redeclaration with a different signature is a conflict;
//  4. an unrepresentable signature is omitted and reported;
//  5. anything else is admitted.
//
// Observe never cancels the walk. Conflicts are reported by Err.
func (g *Generator) Observe(ev decl.Event) decl.Action {
	if ev.Kind != decl.Function {
		return decl.Continue
	}
	d := ev.Decl
	if d.Linkage() != decl.External {
		return decl.Continue
	}

	sig, err := d.Signature()
	if err == nil {
		err = checkRecords(sig)
	}

	if err == nil {
		key := symbolKey(d.Name(), d.QualifiedName(), d.CLinkage(), sig)
		if prev, ok := g.table.Lookup(key); ok {
			if !ctype.Equal(prev.Signature, sig) {
				g.conflict(prev, d, sig.Declare(d.QualifiedName(), false))
			}
			return decl.Continue
		}
	} else if d.CLinkage() {
		// An admitted symbol of the same name keeps its rendering.
		if _, ok := g.table.Lookup(d.Name()); ok {
			return decl.Continue
		}
	}

	if err != nil {
		g.omit(d, err)
		return decl.Continue
	}

	g.table.Add(&Symbol{
		Name:          d.Name(),
		QualifiedName: d.QualifiedName(),
		CLinkage:      d.CLinkage(),
		Signature:     sig,
		Position:      d.Position(),
	})
	return decl.Continue
}

// checkRecords rejects records passed by value without a known layout.
func checkRecords(sig *ctype.Signature) error {
	for _, r := range sig.Records() {
		if r.ByValue && r.Type.Def == nil {
			return ctype.Unrepresentable("%s %s passed by value has no known layout", r.Type.Record, r.Type.Name)
		}
	}
	return nil
}

func (g *Generator) conflict(prev *Symbol, d decl.Declaration, got string) {
	c := Conflict{
		Symbol:        d.QualifiedName(),
		Position:      d.Position(),
		FirstDeclared: prev.Position,
		Have:          prev.Signature.Declare(prev.QualifiedName, false),
		Got:           got,
	}
	g.conflicts = append(g.conflicts, c)
	g.log.Warnw("conflicting redeclaration", logger.FieldSymbol, c.Symbol, logger.FieldFile, c.Position.String())
}

func (g *Generator) omit(d decl.Declaration, err error) {
	name := d.QualifiedName()
	if g.omitted[name] {
		return
	}
	g.omitted[name] = true
	g.omissions = append(g.omissions, model.Omission{
		Symbol:   name,
		Location: d.Position().String(),
		Reason:   err.Error(),
	})
	g.log.Debugw("symbol omitted", logger.FieldSymbol, name, logger.FieldError, err.Error())
}

// Err returns a SymbolConflict error listing every conflict, or nil.
func (g *Generator) Err() error {
	if len(g.conflicts) == 0 {
		return nil
	}
	lines := make([]string, len(g.conflicts))
	for i, c := range g.conflicts {
		lines[i] = c.String()
	}
	err := errors.Newf("%d conflicting redeclaration(s)", len(g.conflicts))
	return errors.WithDetail(errors.Mark(err, model.ErrSymbolConflict), strings.Join(lines, "\n"))
}

// Conflicts returns the recorded conflicts in observation order.
func (g *Generator) Conflicts() []Conflict { return g.conflicts }

// Omissions returns the omitted symbols in observation order.
func (g *Generator) Omissions() []model.Omission { return g.omissions }

// Table returns the symbol table.
func (g *Generator) Table() *Table { return g.table }
