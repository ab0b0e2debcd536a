// Package profile loads target profiles: immutable descriptions of one
// (OS, architecture, language dialect) combination used to parse headers in
// isolation from the host machine.
package profile

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	shellquote "github.com/kballard/go-shellquote"

	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/model"
)

// Define is one -D or -U flag.
type Define struct {
	Name  string
	Value string
	Undef bool
}

// Target is a resolved profile for one language. It is never mutated after
// Lookup returns it.
type Target struct {
	ID             string
	Description    string
	Language       lang.ID
	DialectVersion int
	RootPath       string
	ResourceDir    string

	SystemIncludePaths  map[lang.ID][]string
	ExternCIncludePaths map[lang.ID][]string

	Defines []Define

	// OS and Arch name the target ABI in GOOS/GOARCH terms. Empty means
	// the host.
	OS   string
	Arch string
}

// SystemPaths returns the system include paths for the target's language.
func (t *Target) SystemPaths() []string { return t.SystemIncludePaths[t.Language] }

// ExternCPaths returns the extern "C" include paths for the target's language.
func (t *Target) ExternCPaths() []string { return t.ExternCIncludePaths[t.Language] }

// Resolve joins a profile-relative path to the profile root. Absolute paths
// are returned unchanged.
func (t *Target) Resolve(p string) string {
	if filepath.IsAbs(p) || t.RootPath == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(t.RootPath, p)
}

// ParseFlags parses a shell-quoted flag string. Only preprocessor -D and
// -U flags are accepted.
func ParseFlags(s string) ([]Define, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "splitting flags %q", s), model.ErrConfiguration)
	}

	var defs []Define
	for i := 0; i < len(words); i++ {
		w := words[i]
		var flag, arg string
		switch {
		case w == "-D" || w == "-U":
			if i+1 >= len(words) {
				return nil, errors.Mark(errors.Newf("flag %s needs an argument", w), model.ErrConfiguration)
			}
			flag, arg = w, words[i+1]
			i++
		case strings.HasPrefix(w, "-D") || strings.HasPrefix(w, "-U"):
			flag, arg = w[:2], w[2:]
		default:
			return nil, errors.WithHint(
				errors.Mark(errors.Newf("unsupported profile flag %q", w), model.ErrConfiguration),
				"profiles accept only -D and -U; declare include paths in the system/externc lists")
		}

		if flag == "-U" {
			defs = append(defs, Define{Name: arg, Undef: true})
			continue
		}
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			value = "1"
		}
		if name == "" {
			return nil, errors.Mark(errors.Newf("empty macro name in %q", w), model.ErrConfiguration)
		}
		defs = append(defs, Define{Name: name, Value: value})
	}
	return defs, nil
}
