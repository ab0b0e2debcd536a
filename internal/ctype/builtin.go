package ctype

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// abiAmbiguous lists builtins whose calling convention differs across
// compilers or targets in ways a pass-through stub cannot reproduce.
var abiAmbiguous = map[string]struct{}{
	"long double":          {},
	"__int128":             {},
	"unsigned __int128":    {},
	"__float128":           {},
	"_Float128":            {},
	"__bf16":               {},
	"_Float16":             {},
	"_Decimal32":           {},
	"_Decimal64":           {},
	"_Decimal128":          {},
	"float _Complex":       {},
	"double _Complex":      {},
	"long double _Complex": {},
}

// CheckBuiltin reports an unrepresentable error for ABI-ambiguous builtins.
func CheckBuiltin(name string) error {
	if _, ok := abiAmbiguous[name]; ok || strings.Contains(name, "_Complex") {
		return Unrepresentable("type %q has no portable calling convention", name)
	}
	return nil
}

// CanonicalBuiltin folds a sequence of builtin specifier words, in any
// order, into one canonical spelling: {"int", "unsigned", "long"} becomes
// "unsigned long".
func CanonicalBuiltin(words []string) (string, error) {
	var signed, unsigned, short, long, complex int
	base := ""
	for _, w := range words {
		switch w {
		case "signed", "__signed", "__signed__":
			signed++
		case "unsigned":
			unsigned++
		case "short":
			short++
		case "long":
			long++
		case "_Complex", "__complex__":
			complex++
		default:
			if base != "" {
				return "", errors.Newf("conflicting type specifiers %q and %q", base, w)
			}
			base = w
		}
	}
	if signed > 0 && unsigned > 0 || short > 0 && long > 0 || long > 2 || short > 1 {
		return "", errors.Newf("invalid type specifier combination %q", strings.Join(words, " "))
	}

	var name string
	switch base {
	case "char":
		switch {
		case unsigned > 0:
			name = "unsigned char"
		case signed > 0:
			name = "signed char"
		default:
			name = "char"
		}
	case "double":
		name = "double"
		if long == 1 {
			name = "long double"
		}
	case "", "int":
		switch {
		case short > 0:
			name = "short"
		case long == 1:
			name = "long"
		case long == 2:
			name = "long long"
		case base == "" && signed == 0 && unsigned == 0:
			return "", errors.New("missing type specifier")
		default:
			name = "int"
		}
		if unsigned > 0 {
			name = "unsigned " + name
		}
	case "__int128":
		name = "__int128"
		if unsigned > 0 {
			name = "unsigned __int128"
		}
	default:
		if signed+unsigned+short+long > 0 {
			return "", errors.Newf("invalid type specifier combination %q", strings.Join(words, " "))
		}
		name = base
	}
	if complex > 0 {
		name += " _Complex"
	}
	return name, nil
}
