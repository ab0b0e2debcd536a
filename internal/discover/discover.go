// Package discover finds public headers under a header root.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/model"
)

// IgnoreFile holds extra ignore rules that apply whether or not the root is a git work tree.
const IgnoreFile = ".abiignore"

// HeaderEntry is a discovered header.
type HeaderEntry struct {
	Path string // Relative to Root, slash separated
	Root string
}

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"build":        {},
	"out":          {},
	"CMakeFiles":   {},
	"node_modules": {},
	"third_party":  {},
	"vendor":       {},
	"test":         {},
	"tests":        {},
	"testdata":     {},
	"examples":     {},
}

var privateDirs = map[string]struct{}{
	"internal": {},
	"private":  {},
	"detail":   {},
	"impl":     {},
}

var privateSuffixes = []string{"_p", "_impl", "-inl", "_internal", "_private"}

// IsPrivateHeader reports whether a header path looks like an implementation detail
// rather than part of a library's public surface.
func IsPrivateHeader(path string) bool {
	path = filepath.ToSlash(path)
	parts := strings.Split(path, "/")
	for _, dir := range parts[:len(parts)-1] {
		if _, ok := privateDirs[dir]; ok {
			return true
		}
	}
	base := parts[len(parts)-1]
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, s := range privateSuffixes {
		if strings.HasSuffix(stem, s) {
			return true
		}
	}
	return false
}

// Options controls header discovery.
type Options struct {
	// IncludePrivate keeps headers that IsPrivateHeader would drop.
	IncludePrivate bool
}

// Headers discovers headers of the given language under root.
// A root naming a single file yields that file if its extension belongs to the language.
func Headers(root string, id lang.ID, opts Options) ([]HeaderEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "header root %s", root), model.ErrIO)
	}
	if !info.IsDir() {
		if !lang.ForExtension(filepath.Ext(root), id) {
			return nil, errors.Mark(
				errors.Newf("%s is not a %s header", root, id), model.ErrConfiguration)
		}
		return []HeaderEntry{{Path: filepath.Base(root), Root: filepath.Dir(root)}}, nil
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadIgnore(root, ".gitignore")
	}
	abi := loadIgnore(root, IgnoreFile)

	var results []HeaderEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if !lang.ForExtension(filepath.Ext(name), id) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if abi != nil && abi.MatchesPath(rel) {
			return nil
		}
		if !opts.IncludePrivate && IsPrivateHeader(rel) {
			return nil
		}

		results = append(results, HeaderEntry{Path: rel, Root: root})
		return nil
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "walking %s", root), model.ErrIO)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadIgnore(root, name string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, name))
	if err != nil {
		return nil
	}
	return gi
}
