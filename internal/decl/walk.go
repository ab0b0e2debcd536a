package decl

// Tree is a frontend's view of one parsed translation unit.
type Tree[N any] interface {
	Root() N
	// Children returns n's children in source order.
	Children(n N) []N
	// Classify reports the declaration kind of n, if it is one.
	Classify(n N) (Kind, bool)
	// Declaration wraps n for observers.
	Declaration(n N) Declaration
}

// Walker dispatches declarations of one translation unit. A fresh Walker
// is used per parse.
type Walker struct {
	Callbacks *Callbacks
	Context   Context
	Sources   SourceMap
	// Interrupted is polled between events; returning true stops the walk.
	Interrupted func() bool
}

// Stats summarizes one walk.
type Stats struct {
	Visited   int
	Events    int
	Cancelled bool
}

// Walk traverses t depth-first in pre-order. Children are visited whatever
// the callback returned unless it returned Cancel, which stops the walk.
func Walk[N any](w *Walker, t Tree[N]) Stats {
	var st Stats
	if w.Callbacks.Empty() {
		return st
	}

	stack := []N{t.Root()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		st.Visited++

		if kind, ok := t.Classify(n); ok {
			if cb := w.Callbacks.Lookup(kind); cb != nil {
				if w.Interrupted != nil && w.Interrupted() {
					st.Cancelled = true
					return st
				}
				st.Events++
				ev := Event{Kind: kind, Decl: t.Declaration(n), Context: w.Context, Sources: w.Sources}
				if cb(ev) == Cancel {
					st.Cancelled = true
					return st
				}
			}
		}

		children := t.Children(n)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return st
}
