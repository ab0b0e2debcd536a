package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/abilib/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "include/foo.h", "include/foo.h"},
		{"qualified name", "geo::area", `"geo::area"`},
		{"declaration", "int foo_add(int a, int b)", `"int foo_add(int a, int b)"`},
		{"pointer type", "char *", "char *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	r := &model.Report{
		Version: "0.3.0",
		Pairs: []model.PairReport{
			{
				Name:       "foo",
				Profile:    "linux-x86_64",
				Language:   "c",
				Status:     model.StatusWarnings,
				Symbols:    2,
				HeaderPath: "out/foo.h",
				SourcePath: "out/foo.c",
				Hash:       "00000000deadbeef",
				Omissions: []model.Omission{
					{Symbol: "foo_old", Location: "foo.h:3:5", Reason: "unprototyped function"},
				},
				Diagnostics: "foo.h:9:9: warning: unknown pragma ignored: weird\n",
			},
			{
				Name:        "bar",
				Profile:     "broken",
				Language:    "c",
				Status:      model.StatusFailed,
				Category:    "ConfigurationError",
				Diagnostics: "",
			},
		},
	}

	got := Encode(r)

	// Verify structure
	lines := strings.Split(got, "\n")
	want := []string{
		"version: 0.3.0",
		"ok: 1",
		"failed: 1",
		"pairs[2]{name,profile,language,status,symbols,header,source,hash,category}:",
		"  foo,linux-x86_64,c,warnings,2,out/foo.h,out/foo.c,00000000deadbeef,\"\"",
		"  bar,broken,c,failed,0,\"\",\"\",\"\",ConfigurationError",
		"omissions[1]{pair,profile,symbol,location,reason}:",
		"  foo,linux-x86_64,foo_old,\"foo.h:3:5\",unprototyped function",
		"diagnostics[1]{pair,profile,message}:",
		"  foo,linux-x86_64,\"foo.h:9:9: warning: unknown pragma ignored: weird\"",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), got)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&model.Report{Version: "dev"})
	if !strings.Contains(got, "pairs[0]{name,profile,language,status,symbols,header,source,hash,category}:") {
		t.Errorf("expected empty pairs section, got:\n%s", got)
	}
	if !strings.Contains(got, "omissions[0]{pair,profile,symbol,location,reason}:") {
		t.Errorf("expected empty omissions section, got:\n%s", got)
	}
	if strings.Contains(got, "diagnostics") {
		t.Errorf("diagnostics section should be omitted when empty, got:\n%s", got)
	}
}
