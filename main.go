// abilib extracts external function declarations from C and C++ headers for
// a target profile and generates a stub library with the same ABI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/phobologic/abilib/internal/config"
	"github.com/phobologic/abilib/internal/discover"
	"github.com/phobologic/abilib/internal/frontend"
	"github.com/phobologic/abilib/internal/lang"
	"github.com/phobologic/abilib/internal/logger"
	"github.com/phobologic/abilib/internal/model"
	"github.com/phobologic/abilib/internal/pipeline"
	"github.com/phobologic/abilib/internal/profile"
	"github.com/phobologic/abilib/internal/stub"
	"github.com/phobologic/abilib/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		for _, h := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "hint: %s\n", h)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, ok := stdout.(*os.File); !ok {
		plainOutput.Do(pterm.DisableStyling)
	}

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

var plainOutput sync.Once

// app carries state shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	v          *viper.Viper
	configFile string
	cfg        *config.Config
	log        *zap.SugaredLogger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, v: config.New(), log: logger.Nop()}

	root := &cobra.Command{
		Use:   "abilib",
		Short: "Generate ABI stub libraries from C and C++ headers",
		Long: `abilib parses a set of headers under a target profile (sysroot include
paths, language dialect, predefined macros) and writes a header and source
file holding one pass-through stub per external function.

Settings are read from flags, ABILIB_* environment variables and an optional
config file, in that order of precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("abilib {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (TOML or YAML)")
	pf.String(config.KeyCatalog, config.DefaultCatalog, "profile catalog path")
	pf.IntP(config.KeyJobs, "j", 0, "concurrent (header set, profile) jobs; 0 uses all CPUs")
	pf.Bool(config.KeyLogJSON, false, "log as JSON")
	pf.CountP(config.KeyVerbose, "v", "increase log verbosity")
	pf.Int(config.KeyVariadicStackBytes, stub.DefaultVariadicStackBytes, "caller stack bytes forwarded by variadic stubs")

	root.AddCommand(
		newGenerateCmd(a),
		newListCmd(a),
		newProfilesCmd(a),
		newInitCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(logger.Options{JSON: cfg.LogJSON, Verbosity: cfg.Verbose, Output: a.stderr})
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the abilib version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, _ = fmt.Fprintf(a.stdout, "abilib %s\n", version)
			return nil
		},
	}
}

type generateOptions struct {
	profiles []string
	dialect  string
	output   string
	name     string
	includes []string
	private  bool
	report   string
}

func newGenerateCmd(a *app) *cobra.Command {
	var o generateOptions
	cmd := &cobra.Command{
		Use:   "generate [flags] <header-root>...",
		Short: "Generate a stub library for one or more profiles",
		Long: `Discover headers under each header root (a directory or a single header),
parse them as one translation unit per profile and write <output>.h and
<output>.c or <output>.cpp. With several profiles the output base gains a
-<profile id> suffix. A failing profile does not stop the others, but the
command exits non-zero.`,
		Example: `  abilib generate -p linux-x86_64 -l c11 -o out/libfoo include/
  abilib generate -p linux-x86_64,darwin-aarch64 -l c++14 -o out/libbar include/bar.hpp`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd.Context(), &o, args)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.profiles, "profile", "p", nil, "profile id (repeatable or comma separated)")
	f.StringVarP(&o.dialect, "lang", "l", "c", "language or dialect: c, c++, c11, gnu99, c++14, gnu++11, ...")
	f.StringVarP(&o.output, "output", "o", "", "output base path without extension")
	f.StringVar(&o.name, "name", "", "job name in reports (default: output base name)")
	f.StringArrayVarP(&o.includes, "include", "I", nil, "additional include directory")
	f.BoolVar(&o.private, "include-private", false, "also include headers that look implementation-private")
	f.StringVar(&o.report, "report", "text", "report format: text or toon")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) generate(ctx context.Context, o *generateOptions, roots []string) error {
	if o.report != "text" && o.report != "toon" {
		return errors.Mark(errors.Newf("unknown report format %q", o.report), model.ErrConfiguration)
	}

	d, err := lang.ParseDialect(o.dialect)
	if err != nil {
		return errors.Mark(err, model.ErrConfiguration)
	}
	// A bare language name defers the standard to each profile.
	standard := d.Standard
	if _, bare := lang.Lookup(strings.ToLower(strings.TrimSpace(o.dialect))); bare {
		standard = 0
	}

	cat, err := profile.Load(a.cfg.Catalog, version)
	if err != nil {
		return err
	}
	headers, dirs, err := collectHeaders(roots, d.Language, o.private)
	if err != nil {
		return err
	}

	name := o.name
	if name == "" {
		name = filepath.Base(o.output)
	}

	// An unknown profile fails its own pair; the rest still run.
	var (
		targets []*profile.Target
		missing []pipeline.Result
	)
	for _, id := range o.profiles {
		id = strings.TrimSpace(id)
		t, err := cat.Lookup(id, d.Language)
		if err != nil {
			missing = append(missing, pipeline.Failed(name, id, string(d.Language), err))
			continue
		}
		targets = append(targets, t)
	}
	tmpl := pipeline.Job{
		Name:        name,
		Headers:     headers,
		HeaderRoots: dirs,
		Settings: frontend.Settings{
			LanguageStandard:       standard,
			EnableGNUExtensions:    d.GNU,
			AdditionalIncludePaths: o.includes,
		},
		OutputBase: o.output,
	}

	jobs := pipeline.Plan(tmpl, targets)
	if len(o.profiles) > 1 && len(jobs) == 1 {
		jobs[0].OutputBase = o.output + "-" + targets[0].ID
	}
	a.log.Infow("generating",
		logger.FieldJob, name,
		logger.FieldLanguage, d.Language,
		logger.FieldCount, len(headers),
		logger.FieldWorkers, a.cfg.Jobs)

	driver := pipeline.NewDriver(
		pipeline.WithWorkers(a.cfg.Jobs),
		pipeline.WithLogger(a.log),
		pipeline.WithVariadicStackBytes(a.cfg.VariadicStackBytes),
	)
	results := append(driver.Run(ctx, jobs), missing...)
	rep := pipeline.Report(version, results)

	if o.report == "toon" {
		_, _ = fmt.Fprintln(a.stdout, toon.Encode(rep))
	} else {
		writeTextReport(a.stdout, rep)
	}
	return pipeline.Err(results)
}

// collectHeaders discovers headers under every root. Headers are relative to
// their root; the roots themselves become include directories.
func collectHeaders(roots []string, id lang.ID, private bool) (headers, dirs []string, err error) {
	seen := make(map[string]struct{})
	for _, r := range roots {
		entries, err := discover.Headers(r, id, discover.Options{IncludePrivate: private})
		if err != nil {
			return nil, nil, err
		}
		if len(entries) == 0 {
			continue
		}
		dir, err := filepath.Abs(entries[0].Root)
		if err != nil {
			return nil, nil, errors.Mark(errors.Wrapf(err, "resolving %s", r), model.ErrIO)
		}
		dirs = append(dirs, dir)
		for _, e := range entries {
			if _, dup := seen[e.Path]; dup {
				continue
			}
			seen[e.Path] = struct{}{}
			headers = append(headers, e.Path)
		}
	}
	if len(headers) == 0 {
		return nil, nil, errors.WithHint(
			errors.Mark(errors.Newf("no %s headers found under %s", lang.Languages[id].Name, strings.Join(roots, ", ")), model.ErrConfiguration),
			"private headers are skipped unless --include-private is set")
	}
	return headers, dirs, nil
}

func writeTextReport(w io.Writer, rep *model.Report) {
	for i := range rep.Pairs {
		p := &rep.Pairs[i]
		switch p.Status {
		case model.StatusFailed:
			_, _ = fmt.Fprintf(w, "%s %s [%s]: %s\n", pterm.Red("FAIL"), p.Name, p.Profile, p.Category)
		case model.StatusWarnings:
			_, _ = fmt.Fprintf(w, "%s %s [%s]: %d symbols -> %s, %s\n",
				pterm.Yellow("WARN"), p.Name, p.Profile, p.Symbols, p.HeaderPath, p.SourcePath)
		default:
			_, _ = fmt.Fprintf(w, "%s %s [%s]: %d symbols -> %s, %s\n",
				pterm.Green("OK"), p.Name, p.Profile, p.Symbols, p.HeaderPath, p.SourcePath)
		}
		for _, o := range p.Omissions {
			_, _ = fmt.Fprintf(w, "  omitted %s (%s): %s\n", o.Symbol, o.Location, o.Reason)
		}
		if p.Diagnostics != "" {
			for _, line := range strings.Split(strings.TrimRight(p.Diagnostics, "\n"), "\n") {
				_, _ = fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
	ok, failed := rep.Counts()
	_, _ = fmt.Fprintf(w, "%d succeeded, %d failed\n", ok, failed)
}
