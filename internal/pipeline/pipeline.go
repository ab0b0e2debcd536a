// Package pipeline runs (header set, profile) jobs through a frontend
// session and a stub generator and writes the resulting stub libraries.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/phobologic/abilib/internal/decl"
	"github.com/phobologic/abilib/internal/frontend"
	"github.com/phobologic/abilib/internal/logger"
	"github.com/phobologic/abilib/internal/model"
	"github.com/phobologic/abilib/internal/profile"
	"github.com/phobologic/abilib/internal/stub"
)

// Job is one (header set, profile) pair.
type Job struct {
	Name string
	// Headers are include spellings, relative to one of HeaderRoots.
	Headers     []string
	HeaderRoots []string
	Settings    frontend.Settings
	// OutputBase is the artifact path without extension.
	OutputBase string
}

// Result is the outcome of one job. Artifact is nil unless the job succeeded.
type Result struct {
	Report   model.PairReport
	Artifact *stub.Artifact
	Err      error
}

// Driver runs jobs on a bounded worker pool.
type Driver struct {
	workers      int
	variadicSize int
	log          *zap.SugaredLogger
}

// Option customizes a Driver.
type Option func(*Driver)

// WithWorkers bounds the number of concurrent jobs. Values below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *Driver) { d.workers = n }
}

// WithLogger sets the driver's logger. Sessions and generators share it.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Driver) { d.log = l }
}

// WithVariadicStackBytes sets how much caller stack variadic stubs forward.
func WithVariadicStackBytes(n int) Option {
	return func(d *Driver) { d.variadicSize = n }
}

// NewDriver returns a driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		variadicSize: stub.DefaultVariadicStackBytes,
		log:          logger.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.workers < 1 {
		d.workers = runtime.GOMAXPROCS(0)
	}
	return d
}

// Plan expands tmpl into one job per target. With more than one target each
// output base gains a "-<profile id>" suffix.
func Plan(tmpl Job, targets []*profile.Target) []Job {
	jobs := make([]Job, 0, len(targets))
	for _, t := range targets {
		j := tmpl
		j.Settings.Profile = t
		if len(targets) > 1 {
			j.OutputBase = tmpl.OutputBase + "-" + t.ID
		}
		jobs = append(jobs, j)
	}
	return jobs
}

// Synthesize builds a translation unit that includes each header in order.
func Synthesize(headers []string) string {
	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "#include \"%s\"\n", filepath.ToSlash(h))
	}
	return b.String()
}

// Run executes jobs and returns their results in job order. A failing job
// never stops the others.
func (d *Driver) Run(ctx context.Context, jobs []Job) []Result {
	type result struct {
		index int
		res   Result
	}

	numWorkers := d.workers
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	work := make(chan int, len(jobs))
	results := make(chan result, len(jobs))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				results <- result{index: idx, res: d.runJob(ctx, &jobs[idx])}
			}
		}()
	}

	for i := range jobs {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]Result, len(jobs))
	for r := range results {
		ordered[r.index] = r.res
	}
	return ordered
}

func (d *Driver) runJob(ctx context.Context, j *Job) Result {
	rep := model.PairReport{Name: j.Name}
	if p := j.Settings.Profile; p != nil {
		rep.Profile = p.ID
		rep.Language = string(p.Language)
	}
	log := d.log.With(logger.FieldJob, j.Name, logger.FieldProfile, rep.Profile)
	log.Infow("job started", logger.FieldCount, len(j.Headers))

	fail := func(err error) Result {
		rep.Status = model.StatusFailed
		rep.Category = model.Category(err)
		log.Infow("job failed", logger.FieldStatus, rep.Category, logger.FieldError, err)
		return Result{Report: rep, Err: errors.Wrapf(err, "%s (%s)", j.Name, rep.Profile)}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	settings := j.Settings
	settings.AdditionalIncludePaths = append(append([]string(nil), settings.AdditionalIncludePaths...), j.HeaderRoots...)
	sess, err := frontend.New(settings, frontend.WithLogger(log))
	if err != nil {
		return fail(errors.Mark(err, model.ErrConfiguration))
	}

	gen := stub.New(sess.Language(), stub.WithLogger(log), stub.WithVariadicStackBytes(d.variadicSize))
	if err := sess.Register(decl.Function, gen.Observe); err != nil {
		return fail(err)
	}

	out := sess.ProcessBuffer(ctx, Synthesize(j.Headers))
	rep.Diagnostics = out.Diagnostics
	rep.Omissions = gen.Omissions()
	if err := gen.Err(); err != nil {
		return fail(err)
	}
	if err := out.Err(); err != nil {
		return fail(err)
	}
	if out.Cancelled || ctx.Err() != nil {
		err := errors.New("processing interrupted")
		if cause := context.Cause(ctx); cause != nil {
			err = errors.Wrap(cause, "processing interrupted")
		}
		return fail(err)
	}

	art, err := gen.Generate(j.OutputBase)
	if err != nil {
		return fail(err)
	}

	dir := filepath.Dir(j.OutputBase)
	rep.HeaderPath = filepath.Join(dir, art.HeaderName)
	rep.SourcePath = filepath.Join(dir, art.SourceName)
	if err := writeArtifacts(
		output{rep.HeaderPath, art.Header},
		output{rep.SourcePath, art.Source},
	); err != nil {
		rep.HeaderPath, rep.SourcePath = "", ""
		return fail(err)
	}

	rep.Symbols = art.Symbols
	rep.Hash = art.Hash
	rep.Status = model.StatusOK
	if out.Status == frontend.SuccessWithWarnings || len(rep.Omissions) > 0 {
		rep.Status = model.StatusWarnings
	}
	log.Infow("job finished",
		logger.FieldStatus, rep.Status,
		logger.FieldCount, rep.Symbols,
		logger.FieldFile, rep.HeaderPath)
	return Result{Report: rep, Artifact: art}
}

// output is one artifact file and its content.
type output struct {
	path    string
	content string
}

// writeArtifacts writes every output or none. Contents are staged in temp
// files next to their targets and renamed into place only after all of
// them were written. If a rename still fails, outputs already renamed are
// removed so no half library is left behind.
func writeArtifacts(outs ...output) error {
	temps := make([]string, 0, len(outs))
	cleanup := func() {
		for _, name := range temps {
			_ = os.Remove(name)
		}
	}
	for _, o := range outs {
		name, err := stage(o.path, o.content)
		if err != nil {
			cleanup()
			return err
		}
		temps = append(temps, name)
	}
	for _, o := range outs {
		if fi, err := os.Stat(o.path); err == nil && fi.IsDir() {
			cleanup()
			return errors.Mark(errors.Newf("writing %s: is a directory", o.path), model.ErrIO)
		}
	}
	for i, o := range outs {
		if err := os.Rename(temps[i], o.path); err != nil {
			for _, done := range outs[:i] {
				_ = os.Remove(done.path)
			}
			cleanup()
			return errors.Mark(errors.Wrapf(err, "writing %s", o.path), model.ErrIO)
		}
	}
	return nil
}

// stage writes content to a temp file in path's directory and returns its name.
func stage(path, content string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "creating %s", dir), model.ErrIO)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "writing %s", path), model.ErrIO)
	}
	name := tmp.Name()
	_, werr := tmp.WriteString(content)
	cerr := tmp.Close()
	if err := errors.CombineErrors(werr, cerr); err != nil {
		_ = os.Remove(name)
		return "", errors.Mark(errors.Wrapf(err, "writing %s", path), model.ErrIO)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return "", errors.Mark(errors.Wrapf(err, "writing %s", path), model.ErrIO)
	}
	return name, nil
}

// Failed reports a pair that failed before a job could be planned for it,
// such as one naming a profile missing from the catalog.
func Failed(name, profileID, language string, err error) Result {
	return Result{
		Report: model.PairReport{
			Name:     name,
			Profile:  profileID,
			Language: language,
			Status:   model.StatusFailed,
			Category: model.Category(err),
		},
		Err: errors.Wrapf(err, "%s (%s)", name, profileID),
	}
}

// Report aggregates results.
func Report(version string, results []Result) *model.Report {
	r := &model.Report{Version: version}
	for i := range results {
		r.Pairs = append(r.Pairs, results[i].Report)
	}
	return r
}

// Err joins every job failure, or returns nil when all jobs succeeded.
func Err(results []Result) error {
	var errs []error
	for i := range results {
		if results[i].Err != nil {
			errs = append(errs, results[i].Err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}
