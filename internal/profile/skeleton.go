package profile

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/model"
)

// multiarch maps GOARCH to the Debian multiarch directory component.
var multiarch = map[string]string{
	"amd64":   "x86_64-linux-gnu",
	"386":     "i386-linux-gnu",
	"arm64":   "aarch64-linux-gnu",
	"arm":     "arm-linux-gnueabihf",
	"riscv64": "riscv64-linux-gnu",
	"s390x":   "s390x-linux-gnu",
	"ppc64le": "powerpc64le-linux-gnu",
}

var profileArch = map[string]string{
	"amd64": "x86_64",
	"386":   "i386",
	"arm64": "aarch64",
}

// SkeletonID names the profile Skeleton generates for goos/goarch.
func SkeletonID(goos, goarch string) string {
	arch := goarch
	if a, ok := profileArch[goarch]; ok {
		arch = a
	}
	return goos + "-" + arch
}

// Skeleton renders a starter catalog with one profile per "os/arch" target.
// Include paths follow each platform's conventional sysroot layout and are
// expected to be edited.
func Skeleton(targets []string, version string, format Format) ([]byte, error) {
	var f catalogFile
	if v, err := semver.NewVersion(version); err == nil {
		f.Requires = fmt.Sprintf(">= %d.%d", v.Major(), v.Minor())
	}
	for _, t := range targets {
		goos, goarch, ok := strings.Cut(t, "/")
		if !ok || goos == "" || goarch == "" {
			return nil, errors.WithHint(
				errors.Mark(errors.Newf("invalid target %q", t), model.ErrConfiguration),
				"targets are written os/arch, e.g. linux/amd64")
		}
		f.Profiles = append(f.Profiles, skeletonEntry(goos, goarch))
	}

	var buf bytes.Buffer
	switch format {
	case YAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, errors.Wrap(err, "encoding catalog skeleton")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "encoding catalog skeleton")
		}
	default:
		enc := toml.NewEncoder(&buf)
		enc.Indent = ""
		if err := enc.Encode(f); err != nil {
			return nil, errors.Wrap(err, "encoding catalog skeleton")
		}
	}
	return buf.Bytes(), nil
}

func skeletonEntry(goos, goarch string) profileEntry {
	c := lang.Languages[lang.C]
	cxx := lang.Languages[lang.CXX]
	e := profileEntry{
		ID:          SkeletonID(goos, goarch),
		Description: fmt.Sprintf("%s/%s sysroot", goos, goarch),
		OS:          goos,
		Arch:        goarch,
		C:           &languageEntry{Standard: c.DefaultStandard},
		CXX:         &languageEntry{Standard: cxx.DefaultStandard},
	}

	switch goos {
	case "darwin":
		e.Root = "/Library/Developer/CommandLineTools/SDKs/MacOSX.sdk"
		e.C.System = []string{"usr/include"}
		e.CXX.System = []string{"usr/include/c++/v1"}
		e.CXX.ExternC = []string{"usr/include"}
	case "windows":
		e.Root = "C:/Program Files (x86)/Windows Kits/10/Include/10.0.22621.0"
		e.Flags = "-D_WIN32 -DWIN32_LEAN_AND_MEAN"
		e.C.System = []string{"ucrt", "um", "shared"}
		e.CXX.System = []string{"ucrt"}
		e.CXX.ExternC = []string{"um", "shared"}
	default:
		e.Root = "/"
		sys := []string{"usr/local/include"}
		if ma, ok := multiarch[goarch]; ok && goos == "linux" {
			sys = append(sys, "usr/include/"+ma)
		}
		sys = append(sys, "usr/include")
		e.C.System = sys
		e.CXX.System = []string{"usr/include/c++/current"}
		e.CXX.ExternC = slices.Clone(sys)
	}
	return e
}
