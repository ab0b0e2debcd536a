// Package lang provides the registry of supported header languages: their
// tree-sitter grammars, accepted language standards and dialect macros.
package lang

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ID identifies a supported language.
type ID string

const (
	C   ID = "c"
	CXX ID = "c++"
)

// Macro is one predefined object-like macro.
type Macro struct {
	Name  string
	Value string
}

// Language holds the configuration for a supported language.
type Language struct {
	ID   ID
	Name string

	// HeaderExtensions lists the file extensions discovered as headers.
	HeaderExtensions []string
	// SourceExtension is the extension of the generated stub source.
	SourceExtension string
	// MainFile is the placeholder name of the synthetic translation unit.
	MainFile string
	// Standards is the whitelist of accepted language standards.
	Standards       []int
	DefaultStandard int

	lang   *sitter.Language
	macros func(std int, gnu bool) []Macro
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// SupportsStandard reports whether std is in the language's whitelist.
func (l *Language) SupportsStandard(std int) bool {
	return slices.Contains(l.Standards, std)
}

// DialectMacros returns the language-mode macros for std. The result never
// includes host or compiler specific definitions.
func (l *Language) DialectMacros(std int, gnu bool) []Macro {
	if l.macros == nil {
		return nil
	}
	return l.macros(std, gnu)
}

// Languages maps language ids to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[ID]*Language{}

var aliases = map[string]ID{
	"c":   C,
	"c++": CXX,
	"cxx": CXX,
	"cpp": CXX,
}

// Lookup resolves a language name or alias.
func Lookup(name string) (*Language, bool) {
	id, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	l, ok := Languages[id]
	return l, ok
}

// IDs returns the registered language ids in a stable order.
func IDs() []ID {
	ids := make([]ID, 0, len(Languages))
	for id := range Languages {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string][]ID
var extensionOnce sync.Once

func getExtensionMap() map[string][]ID {
	extensionOnce.Do(func() {
		extensionMap = make(map[string][]ID)
		for _, id := range IDs() {
			for _, ext := range Languages[id].HeaderExtensions {
				extensionMap[ext] = append(extensionMap[ext], id)
			}
		}
	})
	return extensionMap
}

// ForExtension reports whether a header with extension ext is visible to
// language id. ".h" headers are shared by C and C++.
func ForExtension(ext string, id ID) bool {
	return slices.Contains(getExtensionMap()[strings.ToLower(ext)], id)
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
