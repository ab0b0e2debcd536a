package profile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/model"
)

// Format is a catalog serialization.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// FormatFor picks a format from a file extension. Unknown extensions are TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return TOML
}

type catalogFile struct {
	Requires string         `toml:"requires,omitempty" yaml:"requires,omitempty"`
	Profiles []profileEntry `toml:"profile" yaml:"profiles"`
}

type profileEntry struct {
	ID          string         `toml:"id" yaml:"id"`
	Description string         `toml:"description,omitempty" yaml:"description,omitempty"`
	Root        string         `toml:"root,omitempty" yaml:"root,omitempty"`
	ResourceDir string         `toml:"resource_dir,omitempty" yaml:"resource_dir,omitempty"`
	OS          string         `toml:"os,omitempty" yaml:"os,omitempty"`
	Arch        string         `toml:"arch,omitempty" yaml:"arch,omitempty"`
	Flags       string         `toml:"flags,omitempty" yaml:"flags,omitempty"`
	C           *languageEntry `toml:"c,omitempty" yaml:"c,omitempty"`
	CXX         *languageEntry `toml:"cxx,omitempty" yaml:"cxx,omitempty"`
}

type languageEntry struct {
	Standard int      `toml:"standard" yaml:"standard"`
	System   []string `toml:"system" yaml:"system"`
	ExternC  []string `toml:"externc,omitempty" yaml:"externc,omitempty"`
	Flags    string   `toml:"flags,omitempty" yaml:"flags,omitempty"`
}

func (e *profileEntry) language(id lang.ID) *languageEntry {
	switch id {
	case lang.C:
		return e.C
	case lang.CXX:
		return e.CXX
	}
	return nil
}

// Catalog is a loaded set of profiles keyed by identifier.
type Catalog struct {
	Path    string
	baseDir string
	entries []profileEntry
}

// Summary describes one profile for listing.
type Summary struct {
	ID          string
	Description string
	Target      string
	Dialects    []string
}

// Load reads a catalog from path. version is the running abilib version,
// checked against the catalog's requires constraint.
func Load(path, version string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading profile catalog"), model.ErrConfiguration)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "resolving catalog path"), model.ErrConfiguration)
	}
	c, err := Parse(data, FormatFor(path), filepath.Dir(abs), version)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	c.Path = path
	return c, nil
}

// Parse decodes a catalog. Relative profile roots resolve against baseDir.
func Parse(data []byte, format Format, baseDir, version string) (*Catalog, error) {
	var f catalogFile
	var err error
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(&f); err != nil && errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		var md toml.MetaData
		md, err = toml.Decode(string(data), &f)
		if err == nil {
			if undec := md.Undecoded(); len(undec) > 0 {
				err = errors.Newf("unknown catalog key %q", undec[0].String())
			}
		}
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding profile catalog"), model.ErrConfiguration)
	}

	if err := checkRequires(f.Requires, version); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(f.Profiles))
	for i := range f.Profiles {
		e := &f.Profiles[i]
		if e.ID == "" {
			return nil, errors.Mark(errors.Newf("profile #%d has no id", i+1), model.ErrConfiguration)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, errors.Mark(errors.Newf("duplicate profile id %q", e.ID), model.ErrConfiguration)
		}
		seen[e.ID] = struct{}{}
		if e.Root != "" && !filepath.IsAbs(e.Root) {
			e.Root = filepath.Join(baseDir, e.Root)
		}
	}
	return &Catalog{baseDir: baseDir, entries: f.Profiles}, nil
}

func checkRequires(requires, version string) error {
	if requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(requires)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "invalid requires constraint %q", requires), model.ErrConfiguration)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		// Development builds carry no comparable version.
		return nil
	}
	if !constraint.Check(v) {
		return errors.WithHint(
			errors.Mark(errors.Newf("catalog requires abilib %s, running %s", requires, v), model.ErrConfiguration),
			"upgrade abilib or use a catalog written for this version")
	}
	return nil
}

// IDs returns profile identifiers in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.entries))
	for i := range c.entries {
		ids[i] = c.entries[i].ID
	}
	return ids
}

func (c *Catalog) entry(id string) *profileEntry {
	for i := range c.entries {
		if c.entries[i].ID == id {
			return &c.entries[i]
		}
	}
	return nil
}

// Lookup resolves the profile id for one language.
func (c *Catalog) Lookup(id string, language lang.ID) (*Target, error) {
	e := c.entry(id)
	if e == nil {
		return nil, errors.WithHint(
			errors.Mark(errors.Newf("unknown profile %q", id), model.ErrConfiguration),
			"available profiles: "+strings.Join(c.IDs(), ", "))
	}
	le := e.language(language)
	if le == nil {
		return nil, errors.Mark(errors.Newf("profile %q has no %s configuration", id, language), model.ErrConfiguration)
	}

	defs, err := ParseFlags(e.Flags)
	if err != nil {
		return nil, errors.Wrapf(err, "profile %q", id)
	}
	langDefs, err := ParseFlags(le.Flags)
	if err != nil {
		return nil, errors.Wrapf(err, "profile %q", id)
	}

	t := &Target{
		ID:                  e.ID,
		Description:         e.Description,
		Language:            language,
		DialectVersion:      le.Standard,
		RootPath:            e.Root,
		OS:                  e.OS,
		Arch:                e.Arch,
		Defines:             append(defs, langDefs...),
		SystemIncludePaths:  make(map[lang.ID][]string),
		ExternCIncludePaths: make(map[lang.ID][]string),
	}
	if e.ResourceDir != "" {
		t.ResourceDir = t.Resolve(e.ResourceDir)
	}
	for _, id := range lang.IDs() {
		if l := e.language(id); l != nil {
			t.SystemIncludePaths[id] = slices.Clone(l.System)
			t.ExternCIncludePaths[id] = slices.Clone(l.ExternC)
		}
	}
	return t, nil
}

// Summaries describes every profile for listing.
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		s := Summary{ID: e.ID, Description: e.Description, Target: targetName(e.OS, e.Arch)}
		for _, id := range lang.IDs() {
			le := e.language(id)
			if le == nil {
				continue
			}
			for _, std := range lang.Languages[id].Standards {
				s.Dialects = append(s.Dialects, lang.Dialect{Language: id, Standard: std}.String())
			}
		}
		out = append(out, s)
	}
	return out
}

func targetName(goos, goarch string) string {
	if goos == "" && goarch == "" {
		return "host"
	}
	return goos + "/" + goarch
}
