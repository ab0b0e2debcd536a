package lang

import "github.com/smacker/go-tree-sitter/cpp"

func init() {
	Languages[CXX] = &Language{
		ID:               CXX,
		Name:             "C++",
		HeaderExtensions: []string{".h", ".hh", ".hpp", ".hxx", ".h++"},
		SourceExtension:  ".cpp",
		MainFile:         "main.cpp",
		Standards:        []int{98, 11, 14},
		DefaultStandard:  14,
		lang:             cpp.GetLanguage(),
		macros:           cppMacros,
	}
}

var cppVersions = map[int]string{
	98: "199711L",
	11: "201103L",
	14: "201402L",
}

// cppMacros always enables exceptions and RTTI.
func cppMacros(std int, gnu bool) []Macro {
	ms := []Macro{{"__cplusplus", cppVersions[std]}}
	if ms[0].Value == "" {
		ms = ms[:0]
	}
	ms = append(ms,
		Macro{"__EXCEPTIONS", "1"},
		Macro{"__GXX_RTTI", "1"},
		Macro{"__GXX_WEAK__", "1"},
	)
	return append(ms, modeMacros(gnu)...)
}
