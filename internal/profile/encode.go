package profile

import (
	"github.com/cockroachdb/errors"
	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type targetView struct {
	ID          string   `toml:"id" yaml:"id"`
	Description string   `toml:"description,omitempty" yaml:"description,omitempty"`
	Language    string   `toml:"language" yaml:"language"`
	Standard    int      `toml:"standard,omitempty" yaml:"standard,omitempty"`
	Target      string   `toml:"target" yaml:"target"`
	Root        string   `toml:"root,omitempty" yaml:"root,omitempty"`
	ResourceDir string   `toml:"resource_dir,omitempty" yaml:"resource_dir,omitempty"`
	System      []string `toml:"system" yaml:"system"`
	ExternC     []string `toml:"externc" yaml:"externc"`
	Defines     []string `toml:"defines,omitempty" yaml:"defines,omitempty"`
}

// Encode renders the resolved target with include paths joined to the root.
func Encode(t *Target, format Format) ([]byte, error) {
	v := targetView{
		ID:          t.ID,
		Description: t.Description,
		Language:    string(t.Language),
		Standard:    t.DialectVersion,
		Target:      targetName(t.OS, t.Arch),
		Root:        t.RootPath,
		ResourceDir: t.ResourceDir,
		System:      []string{},
		ExternC:     []string{},
	}
	for _, p := range t.SystemPaths() {
		v.System = append(v.System, t.Resolve(p))
	}
	for _, p := range t.ExternCPaths() {
		v.ExternC = append(v.ExternC, t.Resolve(p))
	}
	for _, d := range t.Defines {
		if d.Undef {
			v.Defines = append(v.Defines, "-U"+d.Name)
		} else {
			v.Defines = append(v.Defines, "-D"+d.Name+"="+d.Value)
		}
	}

	var out []byte
	var err error
	switch format {
	case YAML:
		out, err = yaml.Marshal(v)
	default:
		out, err = gotoml.Marshal(v)
	}
	return out, errors.Wrap(err, "encoding profile")
}
