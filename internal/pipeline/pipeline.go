// Package pipeline generates one project per data row from a template.
//
// Each row moves through a fixed sequence of states:
//
//	PENDING -> CLONED -> RENAMED -> REFERENCES_UPDATED ->
//	PARAMETERS_UPDATED -> CACHE_CLEANED -> DONE
//
// Any failure moves the row to FAILED and records the state it was in. Rows
// are independent: a failed row never stops the others, and a failed
// project is left on disk for inspection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/pbipgen/internal/dataset"
	"github.com/leapstack-labs/pbipgen/internal/model"
	"github.com/leapstack-labs/pbipgen/internal/project"
)

// Status is the state of a row.
type Status string

// Row states in order.
const (
	StatusPending           Status = "PENDING"
	StatusCloned            Status = "CLONED"
	StatusRenamed           Status = "RENAMED"
	StatusReferencesUpdated Status = "REFERENCES_UPDATED"
	StatusParametersUpdated Status = "PARAMETERS_UPDATED"
	StatusCacheCleaned      Status = "CACHE_CLEANED"
	StatusDone              Status = "DONE"
	StatusFailed            Status = "FAILED"
)

// Result is the outcome of one row.
type Result struct {
	Row        int
	BaseName   string
	OutputPath string
	Status     Status
	// FailedAt is the state the row was in when it failed.
	FailedAt Status
	Err      error
	Warnings []project.RewriteWarning
	Duration time.Duration
}

// OK reports whether the row completed.
func (r Result) OK() bool { return r.Status == StatusDone }

// Config holds generator configuration.
type Config struct {
	// Template is the master project.
	Template *project.Template
	// Specs are the configured parameters, checked against the template
	// catalog when the generator is created.
	Specs []model.Spec
	// OutputDir receives one folder per row.
	OutputDir string
	// Namer derives each row's base name.
	Namer *dataset.Namer
	// Cloner and Renamer default to project.NewCloner and project.NewRenamer.
	Cloner  *project.Cloner
	Renamer *project.Renamer
	// CachePatterns are base names removed from every output.
	CachePatterns []string
	// Workers bounds parallel rows. Defaults to runtime.NumCPU().
	Workers int
	// Overwrite replaces output folders left by a previous run.
	Overwrite bool
	// OnResult, if set, is called once per row as it finishes.
	OnResult func(Result)
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Generator runs the pipeline for a template.
type Generator struct {
	cfg     Config
	catalog *model.Catalog
	logger  *slog.Logger
	mu      sync.Mutex
}

// New validates the configuration against the template. Errors returned
// here are fatal for the whole run.
func New(cfg Config) (*Generator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Template == nil {
		return nil, errors.New("pipeline: template is required")
	}
	if cfg.Namer == nil {
		return nil, errors.New("pipeline: namer is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("pipeline: output directory is required")
	}

	if within(cfg.OutputDir, cfg.Template.Root) {
		return nil, fmt.Errorf("pipeline: output directory %s is inside the template %s", cfg.OutputDir, cfg.Template.Root)
	}

	if cfg.CachePatterns == nil {
		cfg.CachePatterns = project.DefaultCachePatterns
	}
	if cfg.Cloner == nil {
		cfg.Cloner = project.NewCloner(cfg.CachePatterns, logger)
	}
	if cfg.Renamer == nil {
		cfg.Renamer = project.NewRenamer(nil, logger)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	catalog, err := cfg.Template.Catalog()
	if err != nil {
		return nil, err
	}
	if err := catalog.Validate(cfg.Specs); err != nil {
		return nil, err
	}

	logger.Debug("initializing generator",
		"template", cfg.Template.Root,
		"format", cfg.Template.Format,
		"parameters", catalog.Len(),
		"workers", cfg.Workers)

	return &Generator{cfg: cfg, catalog: catalog, logger: logger}, nil
}

// Catalog returns the template's parameter catalog.
func (g *Generator) Catalog() *model.Catalog { return g.catalog }

// Run generates a project for every row and returns one result per row in
// input order. Row failures are reported in the results, not as an error.
// Once ctx is done no new row starts; the error is then ctx.Err().
func (g *Generator) Run(ctx context.Context, rows []dataset.Row) ([]Result, error) {
	g.logger.Info("starting generation", "rows", len(rows), "output", g.cfg.OutputDir)

	plans := g.Plan(rows)
	results := make([]Result, len(plans))

	var eg errgroup.Group
	eg.SetLimit(g.cfg.Workers)

	for i, p := range plans {
		if p.Err != nil {
			results[i] = g.finish(g.rejected(p, p.Err))
			continue
		}
		if err := ctx.Err(); err != nil {
			results[i] = g.finish(g.rejected(p, err))
			continue
		}
		eg.Go(func() error {
			results[i] = g.finish(g.generate(ctx, p))
			return nil
		})
	}
	_ = eg.Wait()

	s := Summarize(results)
	g.logger.Info("generation completed", "done", s.Done, "failed", s.Failed)
	return results, ctx.Err()
}

func (g *Generator) rejected(p Plan, err error) Result {
	res := Result{
		Row:        p.Row.Index,
		OutputPath: p.OutputPath,
		Status:     StatusFailed,
		FailedAt:   StatusPending,
		Err:        err,
	}
	if p.Binding != nil {
		res.BaseName = p.Binding.BaseName
	}
	g.logger.Error("row failed", "row", res.Row, "base_name", res.BaseName, "state", res.FailedAt, "error", err.Error())
	return res
}

func (g *Generator) finish(res Result) Result {
	if g.cfg.OnResult != nil {
		g.mu.Lock()
		g.cfg.OnResult(res)
		g.mu.Unlock()
	}
	return res
}

// generate runs one row through every state.
func (g *Generator) generate(ctx context.Context, p Plan) (res Result) {
	start := time.Now()
	oldName := g.cfg.Template.BaseName
	newName := p.Binding.BaseName
	logger := g.logger.With("row", p.Row.Index, "base_name", newName)

	res = Result{Row: p.Row.Index, BaseName: newName, OutputPath: p.OutputPath, Status: StatusPending}
	advance := func(s Status) {
		res.Status = s
		logger.Debug("row advanced", "state", s)
	}
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.FailedAt = res.Status
			res.Status = StatusFailed
			logger.Error("row failed", "state", res.FailedAt, "error", res.Err.Error())
			return
		}
		logger.Info("project generated", "path", res.OutputPath, "duration", res.Duration)
	}()

	if g.cfg.Overwrite {
		if err := os.RemoveAll(p.OutputPath); err != nil {
			res.Err = &StepError{Step: "remove previous output", Err: err}
			return res
		}
	}

	if err := g.cfg.Cloner.Clone(ctx, g.cfg.Template.Root, p.OutputPath); err != nil {
		res.Err = err
		return res
	}
	advance(StatusCloned)

	if err := project.RenameArtifacts(p.OutputPath, oldName, newName); err != nil {
		res.Err = &StepError{Step: "rename artifacts", Err: err}
		return res
	}
	advance(StatusRenamed)

	report, err := g.cfg.Renamer.Apply(p.OutputPath, oldName, newName)
	if report != nil {
		res.Warnings = report.Warnings
	}
	if err != nil {
		res.Err = &StepError{Step: "rewrite references", Err: err}
		return res
	}
	if len(res.Warnings) > 0 {
		logger.Warn("some files were not rewritten", "count", len(res.Warnings))
	}
	advance(StatusReferencesUpdated)

	if err := g.writeParameters(project.SemanticModelDir(p.OutputPath, newName), oldName, newName, p.Binding.Values); err != nil {
		res.Err = err
		return res
	}
	advance(StatusParametersUpdated)

	if err := g.cleanCache(p.OutputPath); err != nil {
		res.Err = &StepError{Step: "remove cache", Err: err}
		return res
	}
	advance(StatusCacheCleaned)

	advance(StatusDone)
	return res
}

// writeParameters re-reads the catalog of the generated model and writes
// every bound value. The reference pass renames declarations too, so each
// configured name is looked up under the row's base name.
func (g *Generator) writeParameters(dir, oldName, newName string, values map[string]model.Literal) error {
	doc, err := model.New(g.cfg.Template.Format, dir)
	if err != nil {
		return err
	}
	params, err := doc.Parameters()
	if err != nil {
		return &StepError{Step: "read parameters", Err: err}
	}
	catalog, err := model.NewCatalog(doc.Format(), params)
	if err != nil {
		return &StepError{Step: "read parameters", Err: err}
	}

	renamed := make(map[string]model.Literal, len(values))
	configured := make(map[string]string, len(values))
	for name, v := range values {
		generated := renameParameter(name, oldName, newName)
		renamed[generated] = v
		configured[generated] = name
	}

	assignments, err := catalog.Assign(renamed)
	if err != nil {
		var mismatch *model.ParameterMismatchError
		if errors.As(err, &mismatch) {
			generated := mismatch.Missing[0]
			writeErr := &model.ParameterWriteError{Name: configured[generated]}
			if p, ok := g.catalog.Lookup(writeErr.Name); ok {
				writeErr.Location = p.Location
			}
			writeErr.Reason = fmt.Sprintf("%q is not declared in the generated model", generated)
			if n := len(mismatch.Missing); n > 1 {
				writeErr.Reason += fmt.Sprintf(" (%d more missing)", n-1)
			}
			return writeErr
		}
		return &StepError{Step: "write parameters", Err: err}
	}
	if err := doc.WriteParameters(assignments); err != nil {
		var writeErr *model.ParameterWriteError
		if errors.As(err, &writeErr) {
			return err
		}
		return &StepError{Step: "write parameters", Err: err}
	}
	return nil
}

// renameParameter applies the row's rename rule to a parameter name.
func renameParameter(name, oldName, newName string) string {
	if oldName == "" {
		return name
	}
	return strings.ReplaceAll(name, oldName, newName)
}

// cleanCache removes cache files and checks that none are left.
func (g *Generator) cleanCache(root string) error {
	removed, err := project.RemoveCache(root, g.cfg.CachePatterns)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		g.logger.Debug("removed cache files", "path", root, "files", removed)
	}
	left, err := project.FindCache(root, g.cfg.CachePatterns)
	if err != nil {
		return err
	}
	if len(left) > 0 {
		return fmt.Errorf("cache files still present: %v", left)
	}
	return nil
}

// within reports whether path is root or below it.
func within(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Summary counts row outcomes.
type Summary struct {
	Total  int
	Done   int
	Failed int
}

// Summarize counts results by outcome.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.OK() {
			s.Done++
		} else {
			s.Failed++
		}
	}
	return s
}
