package frontend

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"modernc.org/cc/v4"

	"github.com/phobologic/abilib/internal/decl"
	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/logger"
	"github.com/phobologic/abilib/internal/parse"
)

// ProcessBuffer parses source as the translation unit named after the
// language's main file and dispatches declaration events to the registered
// callbacks. Declarations parsed before an error are still dispatched.
func (s *Session) ProcessBuffer(ctx context.Context, source string) (out Outcome) {
	s.mu.Lock()
	if s.used {
		s.mu.Unlock()
		return Outcome{Status: Failure, Reason: ReasonInternal, cause: ErrSessionUsed}
	}
	s.used = true
	s.mu.Unlock()

	diags := &diagnostics{}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("frontend panic", logger.FieldLanguage, s.language.ID, logger.FieldError, r)
			diags.errorf("", "internal frontend failure: %v", r)
			out = outcomeFor(diags)
			out.Status, out.Reason = Failure, ReasonInternal
			out.cause = errors.Newf("frontend panic: %v", r)
		}
	}()

	w := &decl.Walker{
		Callbacks:   &s.callbacks,
		Context:     s.context(),
		Interrupted: func() bool { return ctx.Err() != nil },
	}
	var st decl.Stats
	if s.language.ID == lang.C {
		st = s.processC(ctx, source, diags, w)
	} else {
		st = s.processSyntax(ctx, source, diags, w, true)
	}

	out = outcomeFor(diags)
	out.Events, out.Cancelled = st.Events, st.Cancelled
	s.log.Debugw("buffer processed",
		logger.FieldLanguage, s.language.ID,
		logger.FieldStatus, out.Status.String(),
		logger.FieldCount, out.Events)
	return out
}

func (s *Session) config(diags *diagnostics) *cc.Config {
	return &cc.Config{
		ABI:             s.abi,
		IncludePaths:    append([]string{"@"}, s.includes...),
		SysIncludePaths: s.includes,
		PragmaHandler:   newPragmas(diags).handle,
		Header:          true,
	}
}

func (s *Session) processC(ctx context.Context, source string, diags *diagnostics, w *decl.Walker) decl.Stats {
	srcs := []cc.Source{
		{Name: predefinedName, Value: s.predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: s.language.MainFile, Value: source},
	}
	ast, err := cc.Translate(s.config(diags), srcs)
	if err == nil {
		w.Sources = newFileLines(s.language.MainFile, source)
		return decl.Walk[cNode](w, newCTree(ast))
	}

	diags.addCC(err)
	s.log.Debugw("type check failed, recovering declarations syntactically", logger.FieldError, err)
	return s.processSyntax(ctx, source, diags, w, false)
}

// processSyntax preprocesses the buffer and walks the tree-sitter tree.
// With report unset, preprocessor and syntax errors are not recorded again.
func (s *Session) processSyntax(ctx context.Context, source string, diags *diagnostics, w *decl.Walker, report bool) decl.Stats {
	target := diags
	if !report {
		target = &diagnostics{}
	}

	srcs := []cc.Source{
		{Name: predefinedName, Value: s.predefined},
		{Name: "<syntax>", Value: syntaxPrelude},
		{Name: s.language.MainFile, Value: source},
	}
	var buf bytes.Buffer
	if err := cc.Preprocess(s.config(target), srcs, &buf); err != nil {
		target.addCC(err)
	}

	unit, err := parse.Parse(ctx, buf.Bytes(), parse.Options{
		Language: s.language,
		File:     s.language.MainFile,
		Builtins: s.builtins,
		Standard: s.standard,
	})
	if err != nil {
		target.errorf("", "%v", err)
		return decl.Stats{}
	}
	defer unit.Close()

	for _, e := range unit.SyntaxErrors() {
		target.add(Diagnostic{Pos: e.Pos.String(), Severity: SeverityError, Message: e.Message})
	}
	w.Sources = unit
	return decl.Walk[parse.Node](w, unit)
}

// fileLines is the source map of the semantic path: the main buffer is
// held in memory and headers are read on demand.
type fileLines struct {
	files map[string][]string
}

func newFileLines(main, source string) *fileLines {
	return &fileLines{files: map[string][]string{main: strings.Split(source, "\n")}}
}

func (f *fileLines) Line(file string, line int) string {
	lines, ok := f.files[file]
	if !ok {
		data, err := os.ReadFile(file)
		if err == nil {
			lines = strings.Split(string(data), "\n")
		}
		f.files[file] = lines
	}
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}
