package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/phobologic/abilib/internal/frontend"
	"github.com/phobologic/abilib/internal/model"
)

const testCatalog = `
[[profile]]
id = "linux-x86_64"
description = "test sysroot"
os = "linux"
arch = "amd64"

[profile.c]
standard = 11

[profile.cxx]
standard = 14

[[profile]]
id = "broken"
os = "linux"
arch = "amd64"

[profile.c]
standard = 42
`

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// createSampleProject writes a catalog and an include tree and returns the
// project dir and catalog path.
func createSampleProject(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "abilib.toml", testCatalog)
	writeTestFile(t, dir, "inc/api.h", `#ifndef API_H
#define API_H
void log(const char* msg);
static int helper(int);
int fmt(const char *f, ...);
#endif
`)
	writeTestFile(t, dir, "inc/geo.hpp", `namespace geo {
double area(double w, double h);
}
extern "C" int c_entry(int);
`)
	return dir, filepath.Join(dir, "abilib.toml")
}

func TestRunGenerate(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)
	base := filepath.Join(dir, "out", "libdemo")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "linux-x86_64", "-l", "c11", "-o", base, filepath.Join(dir, "inc")},
		&stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	header, err := os.ReadFile(base + ".h")
	if err != nil {
		t.Fatalf("header not written: %v", err)
	}
	if !strings.Contains(string(header), "void log(const char*);") {
		t.Errorf("header missing log declaration:\n%s", header)
	}
	if strings.Contains(string(header), "helper") {
		t.Error("internal-linkage helper leaked into header")
	}
	source, err := os.ReadFile(base + ".c")
	if err != nil {
		t.Fatalf("source not written: %v", err)
	}
	if !strings.Contains(string(source), "ABILIB_FORWARD_VARIADIC") {
		t.Error("variadic fmt stub missing forwarding primitive")
	}
	if _, err := os.Stat(base + ".cpp"); err == nil {
		t.Error("C run should not write a .cpp file")
	}

	out := stdout.String()
	if !strings.Contains(out, "OK libdemo [linux-x86_64]: 2 symbols") {
		t.Errorf("unexpected report:\n%s", out)
	}
	if !strings.Contains(out, "1 succeeded, 0 failed") {
		t.Errorf("missing summary line:\n%s", out)
	}
}

func TestRunGenerateToonReport(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "linux-x86_64", "--report", "toon",
		"-o", filepath.Join(dir, "out", "libdemo"), filepath.Join(dir, "inc", "api.h")}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.HasPrefix(out, "version: dev\n") {
		t.Errorf("expected TOON report, got:\n%s", out)
	}
	if !strings.Contains(out, "pairs[1]{") {
		t.Errorf("expected one pair, got:\n%s", out)
	}
}

func TestRunGenerateCXX(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)
	base := filepath.Join(dir, "out", "libgeo")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "linux-x86_64", "-l", "c++14", "-o", base,
		filepath.Join(dir, "inc", "geo.hpp")}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	header, err := os.ReadFile(base + ".h")
	if err != nil {
		t.Fatalf("header not written: %v", err)
	}
	for _, want := range []string{"namespace geo", "area(", "c_entry("} {
		if !strings.Contains(string(header), want) {
			t.Errorf("header missing %q:\n%s", want, header)
		}
	}
	if _, err := os.Stat(base + ".cpp"); err != nil {
		t.Errorf("C++ source not written: %v", err)
	}
}

func TestRunGeneratePartialFailure(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)
	base := filepath.Join(dir, "out", "libdemo")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "broken,linux-x86_64", "-o", base, filepath.Join(dir, "inc")},
		&stdout, &stderr)
	if err == nil {
		t.Fatal("expected an error for the broken profile")
	}
	if !errors.Is(err, frontend.ErrInvalidLanguageStandard) {
		t.Errorf("err = %v, want invalid language standard", err)
	}

	if _, err := os.Stat(base + "-linux-x86_64.h"); err != nil {
		t.Errorf("valid profile artifact missing: %v", err)
	}
	if _, err := os.Stat(base + "-broken.h"); err == nil {
		t.Error("broken profile should not write artifacts")
	}

	out := stdout.String()
	if !strings.Contains(out, "FAIL libdemo [broken]: ConfigurationError") {
		t.Errorf("missing failure line:\n%s", out)
	}
	if !strings.Contains(out, "1 succeeded, 1 failed") {
		t.Errorf("missing summary line:\n%s", out)
	}
}

func TestRunGenerateUnknownProfile(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "nope", "-o", filepath.Join(dir, "out", "x"), filepath.Join(dir, "inc")},
		&stdout, &stderr)
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	hints := strings.Join(errors.GetAllHints(err), "\n")
	if !strings.Contains(hints, "linux-x86_64") {
		t.Errorf("hint should list available profiles, got %q", hints)
	}
}

func TestRunGenerateUnknownProfileIsolated(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)
	base := filepath.Join(dir, "out", "libdemo")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "nope,linux-x86_64", "-o", base, filepath.Join(dir, "inc")},
		&stdout, &stderr)
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if _, err := os.Stat(base + "-linux-x86_64.h"); err != nil {
		t.Errorf("known profile artifact missing: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "FAIL libdemo [nope]: ConfigurationError") {
		t.Errorf("missing failure line:\n%s", out)
	}
	if !strings.Contains(out, "1 succeeded, 1 failed") {
		t.Errorf("missing summary line:\n%s", out)
	}
}

func TestRunGenerateBadDialect(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "linux-x86_64", "-l", "fortran77",
		"-o", filepath.Join(dir, "out", "x"), filepath.Join(dir, "inc")}, &stdout, &stderr)
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestRunGenerateNoHeaders(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)
	empty := filepath.Join(dir, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", cat, "generate", "-p", "linux-x86_64", "-o", filepath.Join(dir, "out", "x"), empty},
		&stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "no C headers found") {
		t.Fatalf("err = %v, want no headers found", err)
	}
}

func TestRunGenerateRequiresFlags(t *testing.T) {
	t.Parallel()
	dir, cat := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--catalog", cat, "generate", filepath.Join(dir, "inc")}, &stdout, &stderr); err == nil {
		t.Error("expected missing --profile/--output to fail")
	}
}

func TestRunGenerateEnvCatalog(t *testing.T) {
	dir, cat := createSampleProject(t)
	t.Setenv("ABILIB_CATALOG", cat)
	base := filepath.Join(dir, "out", "libenv")

	var stdout, stderr bytes.Buffer
	err := run([]string{"generate", "-p", "linux-x86_64", "-o", base, filepath.Join(dir, "inc", "api.h")}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if _, err := os.Stat(base + ".h"); err != nil {
		t.Errorf("header not written: %v", err)
	}
}

func TestRunList(t *testing.T) {
	t.Parallel()
	_, cat := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--catalog", cat, "list"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"PROFILE", "linux-x86_64", "broken", "linux/amd64", "test sysroot", "LANGUAGE", "C++", "gnu++11"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestRunListDialectsOnly(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--catalog", filepath.Join(t.TempDir(), "missing.toml"), "list", "--dialects"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	if strings.Contains(out, "PROFILE") {
		t.Error("--dialects should not list profiles")
	}
	if !strings.Contains(out, "c11") {
		t.Errorf("missing c11 selector:\n%s", out)
	}
}

func TestRunListMissingCatalog(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--catalog", filepath.Join(t.TempDir(), "missing.toml"), "list"}, &stdout, &stderr)
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestRunProfilesShow(t *testing.T) {
	t.Parallel()
	_, cat := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--catalog", cat, "profiles", "show", "linux-x86_64"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "linux-x86_64") || !strings.Contains(out, "linux/amd64") {
		t.Errorf("unexpected profile output:\n%s", out)
	}

	stdout.Reset()
	if err := run([]string{"--catalog", cat, "profiles", "show", "--format", "yaml", "-l", "c++", "linux-x86_64"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out = stdout.String()
	if !strings.Contains(out, "id: linux-x86_64") || !strings.Contains(out, "language: c++") {
		t.Errorf("unexpected yaml output:\n%s", out)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"version"}, {"--version"}} {
		var stdout, stderr bytes.Buffer
		if err := run(args, &stdout, &stderr); err != nil {
			t.Fatalf("run %v: %v", args, err)
		}
		if got := stdout.String(); got != "abilib dev\n" {
			t.Errorf("run %v: got %q", args, got)
		}
	}
}

func TestRunBadConfig(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--variadic-stack-bytes", "7", "version"}, &stdout, &stderr)
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}
