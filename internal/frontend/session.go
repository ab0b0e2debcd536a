// Package frontend turns a synthetic translation unit into declaration
// events under one target profile.
//
// C units go through modernc.org/cc/v4, which preprocesses, parses and type
// checks them. C++ units, and C units the checker rejects, are preprocessed
// by cc and parsed syntactically with tree-sitter. Either way the session
// never consults host include paths or host predefined macros.
package frontend

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"modernc.org/cc/v4"

	"github.com/phobologic/abilib/internal/decl"
	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/logger"
	"github.com/phobologic/abilib/internal/model"
	"github.com/phobologic/abilib/internal/profile"
)

var (
	ErrInvalidLanguage         = errors.New("invalid language")
	ErrInvalidLanguageStandard = errors.New("invalid language standard")
	ErrSessionUsed             = errors.New("session already processed a buffer")
)

// Settings configures one session.
type Settings struct {
	Profile *profile.Target
	// LanguageStandard overrides the profile's dialect version when set.
	LanguageStandard    int
	EnableGNUExtensions bool
	// AdditionalIncludePaths are searched after the profile's paths.
	// Entries that cannot be resolved are skipped.
	AdditionalIncludePaths []string
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Session) { s.log = l }
}

// Session parses exactly one buffer. It is not safe for concurrent use by
// more than one ProcessBuffer call; a second call fails.
type Session struct {
	language *lang.Language
	standard int
	gnu      bool
	profile  *profile.Target
	abi      *cc.ABI
	target   string

	includes   []string
	predefined string
	builtins   map[string]string

	callbacks decl.Callbacks
	log       *zap.SugaredLogger

	mu   sync.Mutex
	used bool
}

// New validates settings and prepares a session.
func New(settings Settings, opts ...Option) (*Session, error) {
	p := settings.Profile
	if p == nil {
		return nil, errors.Mark(errors.New("no profile selected"), model.ErrConfiguration)
	}
	l, ok := lang.Languages[p.Language]
	if !ok {
		return nil, errors.Mark(errors.Wrapf(ErrInvalidLanguage, "%q", p.Language), model.ErrConfiguration)
	}

	std := settings.LanguageStandard
	if std == 0 {
		std = p.DialectVersion
	}
	if std == 0 {
		std = l.DefaultStandard
	}
	if !l.SupportsStandard(std) {
		err := errors.Wrapf(ErrInvalidLanguageStandard, "%s standard %d", l.Name, std)
		return nil, errors.WithHintf(errors.Mark(err, model.ErrConfiguration), "%s accepts %v", l.Name, l.Standards)
	}

	goos, goarch := p.OS, p.Arch
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	abi, err := cc.NewABI(goos, goarch)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "profile %q target", p.ID), model.ErrConfiguration)
	}

	s := &Session{
		language: l,
		standard: std,
		gnu:      settings.EnableGNUExtensions,
		profile:  p,
		abi:      abi,
		target:   goos + "/" + goarch,
		includes: includePaths(p, settings.AdditionalIncludePaths),
		log:      logger.Nop(),
	}
	ms := targetMacros(abi, goos)
	s.predefined = predefines(l.DialectMacros(std, s.gnu), ms.macros, p.Defines)
	s.builtins = ms.builtins
	if l.ID == lang.CXX {
		for _, kw := range cxxKeywordTypes {
			delete(s.builtins, kw)
		}
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// CheckTarget reports whether types can be laid out for goos/goarch.
func CheckTarget(goos, goarch string) error {
	if _, err := cc.NewABI(goos, goarch); err != nil {
		return errors.Mark(errors.Wrapf(err, "target %s/%s", goos, goarch), model.ErrConfiguration)
	}
	return nil
}

// Register installs cb for kind. A later registration for the same kind
// replaces the earlier one.
func (s *Session) Register(kind decl.Kind, cb decl.Callback) error {
	return s.callbacks.Register(kind, cb)
}

// Language returns the session's language.
func (s *Session) Language() *lang.Language { return s.language }

// IncludePaths returns the search list in lookup order.
func (s *Session) IncludePaths() []string { return s.includes }

// includePaths orders profile system paths, profile extern "C" paths and
// additional paths. Additional paths are made absolute and dropped when
// they do not exist.
func includePaths(p *profile.Target, additional []string) []string {
	var dirs []string
	for _, d := range p.SystemPaths() {
		dirs = append(dirs, p.Resolve(d))
	}
	for _, d := range p.ExternCPaths() {
		dirs = append(dirs, p.Resolve(d))
	}
	for _, d := range additional {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
			continue
		}
		dirs = append(dirs, abs)
	}
	return dirs
}

func (s *Session) context() decl.Context {
	return decl.Context{
		Language: string(s.language.ID),
		Standard: s.standard,
		MainFile: s.language.MainFile,
		Target:   s.target,
	}
}
