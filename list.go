package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/model"
	"github.com/phobologic/abilib/internal/profile"
)

func newListCmd(a *app) *cobra.Command {
	var dialectsOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles in the catalog and supported dialects",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !dialectsOnly {
				cat, err := profile.Load(a.cfg.Catalog, version)
				if err != nil {
					return err
				}
				if err := a.printTable(profileRows(cat)); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(a.stdout)
			}
			return a.printTable(dialectRows())
		},
	}
	cmd.Flags().BoolVar(&dialectsOnly, "dialects", false, "list only languages and dialects")
	return cmd
}

func profileRows(cat *profile.Catalog) pterm.TableData {
	rows := pterm.TableData{{"PROFILE", "TARGET", "DIALECTS", "DESCRIPTION"}}
	for _, s := range cat.Summaries() {
		rows = append(rows, []string{s.ID, s.Target, strings.Join(s.Dialects, " "), s.Description})
	}
	return rows
}

func dialectRows() pterm.TableData {
	rows := pterm.TableData{{"LANGUAGE", "STANDARDS", "DEFAULT", "SELECTORS"}}
	for _, id := range lang.IDs() {
		l := lang.Languages[id]
		stds := make([]string, len(l.Standards))
		var sels []string
		for i, std := range l.Standards {
			stds[i] = fmt.Sprintf("%02d", std)
			sels = append(sels,
				lang.Dialect{Language: id, Standard: std}.String(),
				lang.Dialect{Language: id, Standard: std, GNU: true}.String())
		}
		rows = append(rows, []string{
			l.Name,
			strings.Join(stds, " "),
			lang.Dialect{Language: id, Standard: l.DefaultStandard}.String(),
			strings.Join(sels, " "),
		})
	}
	return rows
}

func (a *app) printTable(rows pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return errors.Wrap(err, "rendering table")
	}
	_, _ = fmt.Fprintln(a.stdout, out)
	return nil
}

func newProfilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect catalog profiles",
	}

	var (
		dialect string
		format  string
	)
	show := &cobra.Command{
		Use:   "show <profile-id>",
		Short: "Print one profile resolved for a language",
		Long: `Print a profile as it is used for parsing: include paths joined to the
profile root and flags parsed into defines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			d, err := lang.ParseDialect(dialect)
			if err != nil {
				return errors.Mark(err, model.ErrConfiguration)
			}
			var f profile.Format
			switch format {
			case "toml":
				f = profile.TOML
			case "yaml":
				f = profile.YAML
			default:
				return errors.Mark(errors.Newf("unknown format %q", format), model.ErrConfiguration)
			}

			cat, err := profile.Load(a.cfg.Catalog, version)
			if err != nil {
				return err
			}
			t, err := cat.Lookup(args[0], d.Language)
			if err != nil {
				return err
			}
			out, err := profile.Encode(t, f)
			if err != nil {
				return err
			}
			_, _ = a.stdout.Write(out)
			return nil
		},
	}
	show.Flags().StringVarP(&dialect, "lang", "l", "c", "language to resolve the profile for")
	show.Flags().StringVar(&format, "format", "toml", "output format: toml or yaml")

	cmd.AddCommand(show)
	return cmd
}
