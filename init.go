package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/phobologic/abilib/internal/frontend"
	"github.com/phobologic/abilib/internal/model"
	"github.com/phobologic/abilib/internal/profile"
)

const (
	sentinelStart = "# abilib:start"
	sentinelEnd   = "# abilib:end"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		dryRun  bool
		targets []string
	)
	cmd := &cobra.Command{
		Use:   "init [flags] [catalog-path]",
		Short: "Write a starter profile catalog",
		Long: `Write a profile catalog skeleton with one profile per target. The skeleton is
wrapped in sentinel comments so it can be refreshed in place on later runs
without touching surrounding content. Creates the file if it does not exist.

catalog-path defaults to the configured catalog (abilib.toml). A .yaml or
.yml extension selects YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := a.cfg.Catalog
			if len(args) > 0 {
				path = args[0]
			}

			section, err := generateSection(targets, profile.FormatFor(path))
			if err != nil {
				return err
			}

			// --dry-run with no path: just print the section itself.
			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprintln(a.stdout, section)
				return nil
			}

			existing, err := os.ReadFile(path)
			if err != nil && !os.IsNotExist(err) {
				return errors.Mark(errors.Wrapf(err, "reading %s", path), model.ErrIO)
			}
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(a.stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return errors.Mark(errors.Wrapf(err, "writing %s", path), model.ErrIO)
			}

			_, _ = fmt.Fprintf(a.stderr, "wrote profile catalog skeleton to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", []string{runtime.GOOS + "/" + runtime.GOARCH},
		"os/arch target to generate a profile for (repeatable)")
	return cmd
}

// generateSection returns the sentinel-wrapped catalog skeleton.
func generateSection(targets []string, format profile.Format) (string, error) {
	for _, t := range targets {
		goos, goarch, ok := strings.Cut(t, "/")
		if !ok {
			continue // rejected with a hint by Skeleton
		}
		if err := frontend.CheckTarget(goos, goarch); err != nil {
			return "", err
		}
	}
	body, err := profile.Skeleton(targets, version, format)
	if err != nil {
		return "", err
	}

	header := `# Profile skeleton written by "abilib init". Include paths are relative to
# each profile's root and follow the platform's usual sysroot layout; edit
# them to match the SDK or sysroot you generate against. Content between the
# abilib sentinels is replaced on the next "abilib init".`

	return sentinelStart + "\n" + header + "\n" + strings.TrimRight(string(body), "\n") + "\n" + sentinelEnd, nil
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) == 0 {
		return section + "\n"
	}
	return content + "\n" + section + "\n"
}
