package frontend

import (
	"fmt"
	"regexp"
	"strings"

	"modernc.org/cc/v4"
)

// Severity of one diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one captured message.
type Diagnostic struct {
	Pos      string // file:line:col, or "" when unknown
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	if d.Pos == "" {
		return string(d.Severity) + ": " + d.Message
	}
	return d.Pos + ": " + string(d.Severity) + ": " + d.Message
}

// diagnostics accumulates messages for one session instead of printing
// them.
type diagnostics struct {
	list     []Diagnostic
	errors   int
	warnings int
}

func (d *diagnostics) add(diag Diagnostic) {
	d.list = append(d.list, diag)
	switch diag.Severity {
	case SeverityError:
		d.errors++
	case SeverityWarning:
		d.warnings++
	}
}

func (d *diagnostics) errorf(pos, format string, args ...any) {
	d.add(Diagnostic{Pos: pos, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

func (d *diagnostics) warnf(pos, format string, args ...any) {
	d.add(Diagnostic{Pos: pos, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

func (d *diagnostics) String() string {
	var b strings.Builder
	for _, diag := range d.list {
		b.WriteString(diag.String())
		b.WriteByte('\n')
	}
	return b.String()
}

var ccErrorRe = regexp.MustCompile(`^(.*?:\d+:\d+):\s*(.*)$`)

// addCC splits a cc error, which joins "pos: message" lines, into error
// diagnostics.
func (d *diagnostics) addCC(err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := ccErrorRe.FindStringSubmatch(line); m != nil {
			d.errorf(m[1], "%s", m[2])
			continue
		}
		d.errorf("", "%s", line)
	}
}

// knownPragmas are accepted silently.
var knownPragmas = map[string]bool{
	"pack": true, "STDC": true, "clang": true, "weak": true, "redefine_extname": true,
	"push_macro": true, "pop_macro": true, "ident": true, "region": true, "endregion": true,
	"omp": true, "diagnostic": true, "system_header": true, "visibility": true, "warning": true,
}

// pragmas handles #pragma directives for one session. It honours #pragma
// once and turns message, warning and error pragmas into diagnostics.
type pragmas struct {
	diags *diagnostics
	once  map[string]bool
}

func newPragmas(diags *diagnostics) *pragmas {
	return &pragmas{diags: diags, once: make(map[string]bool)}
}

func (p *pragmas) handle(toks []cc.Token) error {
	var words []string
	for _, t := range toks {
		if s := strings.TrimSpace(t.SrcStr()); s != "" {
			words = append(words, s)
		}
	}
	if len(words) == 0 {
		return nil
	}
	pos := ""
	if tp := toks[0].Position(); tp.IsValid() {
		pos = fmt.Sprintf("%s:%d:%d", tp.Filename, tp.Line, tp.Column)
	}

	switch {
	case words[0] == "once":
		file := toks[0].Position().Filename
		if p.once[file] {
			return cc.SkipSource
		}
		p.once[file] = true
	case words[0] == "message":
		p.diags.warnf(pos, "%s", pragmaText(words[1:]))
	case words[0] == "GCC" && len(words) > 1 && words[1] == "warning":
		p.diags.warnf(pos, "%s", pragmaText(words[2:]))
	case words[0] == "GCC" && len(words) > 1 && words[1] == "error":
		p.diags.errorf(pos, "%s", pragmaText(words[2:]))
	case words[0] == "GCC", knownPragmas[words[0]]:
	default:
		p.diags.warnf(pos, "unknown pragma ignored: %s", strings.Join(words, " "))
	}
	return nil
}

// pragmaText strips the parentheses and quotes of a message pragma.
func pragmaText(words []string) string {
	var parts []string
	for _, w := range words {
		if w == "(" || w == ")" {
			continue
		}
		parts = append(parts, strings.Trim(w, `"`))
	}
	return strings.Join(parts, " ")
}
