package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Dialect is a parsed language/dialect selector such as "c11", "gnu99" or
// "c++14".
type Dialect struct {
	Language ID
	Standard int
	GNU      bool
}

// String formats d the way ParseDialect accepts it.
func (d Dialect) String() string {
	prefix := "c"
	if d.GNU {
		prefix = "gnu"
	}
	if d.Language == CXX {
		prefix += "++"
	}
	return fmt.Sprintf("%s%02d", prefix, d.Standard)
}

// ParseDialect parses a selector. A bare language name ("c", "c++") selects
// the language's default standard in strict mode. The standard is not
// checked against the whitelist here; sessions validate it.
func ParseDialect(s string) (Dialect, error) {
	sel := strings.ToLower(strings.TrimSpace(s))
	if l, ok := Lookup(sel); ok {
		return Dialect{Language: l.ID, Standard: l.DefaultStandard}, nil
	}

	var d Dialect
	rest := sel
	switch {
	case strings.HasPrefix(rest, "gnu++"):
		d.Language, d.GNU, rest = CXX, true, rest[len("gnu++"):]
	case strings.HasPrefix(rest, "c++"):
		d.Language, rest = CXX, rest[len("c++"):]
	case strings.HasPrefix(rest, "gnu"):
		d.Language, d.GNU, rest = C, true, rest[len("gnu"):]
	case strings.HasPrefix(rest, "c"):
		d.Language, rest = C, rest[len("c"):]
	default:
		return Dialect{}, errors.Newf("unrecognized dialect %q", s)
	}

	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return Dialect{}, errors.WithHint(
			errors.Newf("unrecognized dialect %q", s),
			"use forms like c11, gnu99, c++14 or gnu++11")
	}
	d.Standard = n
	return d, nil
}
