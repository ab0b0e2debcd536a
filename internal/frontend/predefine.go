package frontend

import (
	"strconv"
	"strings"

	"modernc.org/cc/v4"

	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/profile"
)

// predefinedName is the source name cc allows to define protected macros
// such as __STDC__.
const predefinedName = "<predefined>"

// cxxKeywordTypes are keywords in C++ and typedefs in C.
var cxxKeywordTypes = []string{"bool", "wchar_t", "char16_t", "char32_t"}

type targetTypes struct {
	macros []lang.Macro
	// builtins maps typedef names the syntactic grammars treat as
	// primitive types to their target spelling.
	builtins map[string]string
}

// targetMacros derives the type macros a target compiler would predefine
// from the ABI's type sizes.
func targetMacros(abi *cc.ABI, goos string) targetTypes {
	ptr := abi.Types[cc.Ptr].Size
	long := abi.Types[cc.Long].Size

	size, ptrdiff := "unsigned int", "int"
	switch {
	case ptr == 8 && long == 8:
		size, ptrdiff = "unsigned long", "long"
	case ptr == 8:
		size, ptrdiff = "unsigned long long", "long long"
	}
	int64T := "long long"
	if long == 8 {
		int64T = "long"
	}
	wchar := "int"
	if goos == "windows" {
		wchar = "unsigned short"
	}

	ms := []lang.Macro{
		{Name: "__SIZE_TYPE__", Value: size},
		{Name: "__PTRDIFF_TYPE__", Value: ptrdiff},
		{Name: "__WCHAR_TYPE__", Value: wchar},
		{Name: "__INTPTR_TYPE__", Value: ptrdiff},
		{Name: "__UINTPTR_TYPE__", Value: size},
		{Name: "__INT8_TYPE__", Value: "signed char"},
		{Name: "__INT16_TYPE__", Value: "short"},
		{Name: "__INT32_TYPE__", Value: "int"},
		{Name: "__INT64_TYPE__", Value: int64T},
		{Name: "__UINT8_TYPE__", Value: "unsigned char"},
		{Name: "__UINT16_TYPE__", Value: "unsigned short"},
		{Name: "__UINT32_TYPE__", Value: "unsigned int"},
		{Name: "__UINT64_TYPE__", Value: "unsigned " + int64T},
		{Name: "__CHAR_BIT__", Value: "8"},
		{Name: "__SIZEOF_POINTER__", Value: strconv.FormatInt(ptr, 10)},
		{Name: "__SIZEOF_LONG__", Value: strconv.FormatInt(long, 10)},
	}
	if ptr == 8 && long == 8 {
		ms = append(ms, lang.Macro{Name: "__LP64__", Value: "1"}, lang.Macro{Name: "_LP64", Value: "1"})
	}

	builtins := map[string]string{
		"size_t":    size,
		"ssize_t":   ptrdiff,
		"ptrdiff_t": ptrdiff,
		"intptr_t":  ptrdiff,
		"uintptr_t": size,
		"int8_t":    "signed char",
		"int16_t":   "short",
		"int32_t":   "int",
		"int64_t":   int64T,
		"uint8_t":   "unsigned char",
		"uint16_t":  "unsigned short",
		"uint32_t":  "unsigned int",
		"uint64_t":  "unsigned " + int64T,
		"wchar_t":   wchar,
		"char16_t":  "unsigned short",
		"char32_t":  "unsigned int",
		"bool":      "_Bool",
	}
	return targetTypes{macros: ms, builtins: builtins}
}

// predefines renders the predefined source: dialect macros, target macros
// and the profile's -D/-U flags, in that order.
func predefines(dialect, target []lang.Macro, defines []profile.Define) string {
	var b strings.Builder
	for _, ms := range [][]lang.Macro{dialect, target} {
		for _, m := range ms {
			b.WriteString("#define " + m.Name + " " + m.Value + "\n")
		}
	}
	for _, d := range defines {
		if d.Undef {
			b.WriteString("#undef " + d.Name + "\n")
			continue
		}
		b.WriteString("#define " + d.Name + " " + d.Value + "\n")
	}
	return b.String()
}

// syntaxPrelude normalizes GNU keyword spellings the tree-sitter grammars
// do not know.
const syntaxPrelude = `#define __extension__
#define __inline inline
#define __inline__ inline
#define __const const
#define __signed__ signed
#define __volatile__ volatile
#define __restrict
#define __restrict__
`
