// Package graph builds the by-value dependency graph between record
// definitions and orders definitions so each follows the records it embeds.
package graph

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/phobologic/abilib/internal/ctype"
	"github.com/phobologic/abilib/internal/model"
)

// Dependency is an edge: Source holds Target by value in Fields.
type Dependency struct {
	Source string
	Target string
	Fields []string
}

// Key identifies a record definition, e.g. "struct point".
func Key(def *ctype.RecordDef) string { return string(def.Kind) + " " + def.Tag }

// BuildGraph creates dependency edges from by-value record fields. Fields
// naming records outside defs are ignored.
func BuildGraph(defs []*ctype.RecordDef) []Dependency {
	known := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		known[Key(d)] = struct{}{}
	}

	type edgeKey struct{ src, tgt string }
	edgeFields := make(map[edgeKey][]string)

	for _, d := range defs {
		src := Key(d)
		for _, f := range d.Fields {
			tgt, ok := embedded(f.Type)
			if !ok {
				continue
			}
			if _, ok := known[tgt]; !ok || tgt == src {
				continue
			}
			key := edgeKey{src, tgt}
			if !contains(edgeFields[key], f.Name) {
				edgeFields[key] = append(edgeFields[key], f.Name)
			}
		}
	}

	var deps []Dependency
	for key, fields := range edgeFields {
		deps = append(deps, Dependency{Source: key.src, Target: key.tgt, Fields: fields})
	}

	// Sort for deterministic output
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// embedded returns the record a field stores by value, looking through
// arrays.
func embedded(t *ctype.Type) (string, bool) {
	for t.Kind == ctype.Array {
		t = t.Elem
	}
	if t.Kind != ctype.Record {
		return "", false
	}
	return string(t.Record) + " " + t.Name, true
}

// Order sorts defs so that every record follows the records it embeds.
// Among records whose dependencies are met, input order wins, so the
// result is deterministic for a deterministic input. A cycle cannot be laid
// out and is reported as an unrepresentable type.
func Order(defs []*ctype.RecordDef, deps []Dependency) ([]*ctype.RecordDef, error) {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[Key(d)] = i
	}

	// Edge from target to source: the target must be emitted first.
	dependents := make(map[string][]string)
	inDegree := make(map[string]int, len(defs))
	for _, d := range deps {
		dependents[d.Target] = append(dependents[d.Target], d.Source)
		inDegree[d.Source]++
	}

	ready := make(map[string]struct{})
	for _, d := range defs {
		if inDegree[Key(d)] == 0 {
			ready[Key(d)] = struct{}{}
		}
	}

	out := make([]*ctype.RecordDef, 0, len(defs))
	for len(ready) > 0 {
		next := first(ready, index)
		delete(ready, next)
		out = append(out, defs[index[next]])
		for _, src := range dependents[next] {
			inDegree[src]--
			if inDegree[src] == 0 {
				ready[src] = struct{}{}
			}
		}
	}

	if len(out) != len(defs) {
		var stuck []string
		for _, d := range defs {
			if inDegree[Key(d)] > 0 {
				stuck = append(stuck, Key(d))
			}
		}
		return nil, errors.Mark(errors.Newf("records embed each other by value: %v", stuck), model.ErrUnrepresentableType)
	}
	return out, nil
}

// first returns the ready key with the lowest input index.
func first(ready map[string]struct{}, index map[string]int) string {
	best := ""
	for _, k := range sortedKeys(ready) {
		if best == "" || index[k] < index[best] {
			best = k
		}
	}
	return best
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
