package lang

import "github.com/smacker/go-tree-sitter/c"

func init() {
	Languages[C] = &Language{
		ID:               C,
		Name:             "C",
		HeaderExtensions: []string{".h"},
		SourceExtension:  ".c",
		MainFile:         "main.c",
		Standards:        []int{89, 94, 99, 11},
		DefaultStandard:  11,
		lang:             c.GetLanguage(),
		macros:           cMacros,
	}
}

var cVersions = map[int]string{
	94: "199409L",
	99: "199901L",
	11: "201112L",
}

func cMacros(std int, gnu bool) []Macro {
	ms := []Macro{
		{"__STDC__", "1"},
		{"__STDC_HOSTED__", "1"},
	}
	if v, ok := cVersions[std]; ok {
		ms = append(ms, Macro{"__STDC_VERSION__", v})
	}
	return append(ms, modeMacros(gnu)...)
}

// modeMacros are shared by both languages: GNU dialects advertise the GNU
// extensions, strict dialects advertise __STRICT_ANSI__.
func modeMacros(gnu bool) []Macro {
	if !gnu {
		return []Macro{{"__STRICT_ANSI__", "1"}}
	}
	return []Macro{
		{"__GNUC__", "4"},
		{"__GNUC_MINOR__", "2"},
	}
}
