package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"refbind/internal/analysis"
	"refbind/internal/config"
	"refbind/internal/diag"
	"refbind/internal/observ"
	"refbind/internal/source"
	"refbind/internal/trace"
	"refbind/internal/unit"
)

// UnitExt is the extension of unit scripts picked up from directories.
const UnitExt = ".rbu"

// Options controls a check run. A nil Config means config.Default().
type Options struct {
	Config   *config.Config
	Jobs     int
	Cache    *DiskCache
	Progress ProgressSink
	Timer    *observ.Timer
	// Timings appends an OBS6001 diagnostic with the timer report.
	Timings bool
}

// UnitResult is the outcome of one unit.
type UnitResult struct {
	Path   string
	FileID source.FileID
	Bag    *diag.Bag
	// Result is nil when the unit could not be loaded.
	Result *analysis.Result
	Cached bool
}

// CheckResult collects every unit of a run, ordered by path.
type CheckResult struct {
	FileSet *source.FileSet
	Units   []UnitResult
	// Extra holds run-level diagnostics such as timings.
	Extra *diag.Bag
}

// HasErrors reports whether any unit produced an error diagnostic.
func (r *CheckResult) HasErrors() bool {
	for _, u := range r.Units {
		if u.Bag != nil && u.Bag.HasErrors() {
			return true
		}
	}
	return false
}

// CodegenBlocked reports whether any unit must not be lowered.
func (r *CheckResult) CodegenBlocked() bool {
	for _, u := range r.Units {
		if u.Result != nil && u.Result.CodegenBlocked {
			return true
		}
	}
	return false
}

// Diagnostics flattens every unit bag, in unit order, followed by Extra.
func (r *CheckResult) Diagnostics() []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, u := range r.Units {
		if u.Bag != nil {
			out = append(out, u.Bag.Items()...)
		}
	}
	if r.Extra != nil {
		out = append(out, r.Extra.Items()...)
	}
	return out
}

// Counts sums the verdict counts of all analyzed units.
func (r *CheckResult) Counts() analysis.Counts {
	var c analysis.Counts
	for _, u := range r.Units {
		if u.Result == nil {
			continue
		}
		c.Allowed += u.Result.Counts.Allowed
		c.ViaTemporary += u.Result.Counts.ViaTemporary
		c.Forbidden += u.Result.Counts.Forbidden
	}
	return c
}

// ListUnits returns target itself when it is a file, or every *.rbu file
// below it, sorted.
func ListUnits(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, UnitExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Check analyzes every unit under target in parallel. Each worker owns its
// own reporter, mode stack and record set; results come back in path order.
// Cancelling ctx stops scheduling new units and returns ctx.Err().
func Check(ctx context.Context, target string, opts Options) (*CheckResult, error) {
	files, err := ListUnits(target)
	if err != nil {
		return nil, err
	}
	base := target
	if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
		base = filepath.Dir(target)
	}
	if abs, absErr := filepath.Abs(base); absErr == nil {
		base = abs
	}
	fileSet := source.NewFileSetWithBase(base)
	return CheckFiles(ctx, fileSet, files, opts)
}

// CheckFiles is Check over an explicit file list sharing fileSet.
func CheckFiles(ctx context.Context, fileSet *source.FileSet, files []string, opts Options) (*CheckResult, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	res := &CheckResult{FileSet: fileSet, Units: make([]UnitResult, len(files))}
	if len(files) == 0 {
		return res, nil
	}

	tracer := trace.FromContext(ctx)
	runSpan := trace.Begin(tracer, trace.ScopeDriver, "check", trace.ParentFromContext(ctx))
	defer runSpan.End("")
	ctx = trace.WithParent(ctx, runSpan)

	// Загружаем файлы заранее: FileSet не потокобезопасен для Add.
	endLoad := opts.Timer.Track("load")
	fileIDs := make([]source.FileID, len(files))
	loadErrors := make([]error, len(files))
	for i, path := range files {
		emit(opts.Progress, Event{File: path, Stage: StageLoad, Status: StatusQueued})
		id, loadErr := fileSet.Load(path)
		if loadErr != nil {
			// пустой виртуальный файл, чтобы диагностика указывала на путь
			loadErrors[i] = loadErr
			id = fileSet.AddVirtual(path, nil)
		}
		fileIDs[i] = id
	}
	endLoad(fmt.Sprintf("%d file(s)", len(files)))

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = cfg.Jobs
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	analysisOpts := cfg.Effective()
	fingerprint := fmt.Sprintf("%s/max=%d", cfg.Fingerprint(), cfg.MaxDiagnostics)

	endAnalyze := opts.Timer.Track("analyze")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bag := diag.NewBag(cfg.MaxDiagnostics)
			// паника в одном юните не должна ронять остальные
			defer func() {
				if r := recover(); r != nil {
					bag.Add(diag.NewError(diag.SemaInvariantViolation, source.Span{File: fileIDs[i]}, fmt.Sprintf("internal error analyzing unit: %v", r)))
					res.Units[i] = UnitResult{Path: path, FileID: fileIDs[i], Bag: bag}
					emit(opts.Progress, Event{File: path, Stage: StageAnalyze, Status: StatusError, Err: fmt.Errorf("panic: %v", r)})
				}
			}()
			if loadErr := loadErrors[i]; loadErr != nil {
				bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{File: fileIDs[i]}, "failed to load unit: "+loadErr.Error()))
				res.Units[i] = UnitResult{Path: path, FileID: fileIDs[i], Bag: bag}
				emit(opts.Progress, Event{File: path, Stage: StageLoad, Status: StatusError, Err: loadErr})
				return nil
			}
			ur := checkUnit(gctx, fileSet, fileIDs[i], path, bag, analysisOpts, fingerprint, opts)
			res.Units[i] = ur
			return nil
		})
	}
	waitErr := g.Wait()
	endAnalyze(fmt.Sprintf("jobs=%d", min(jobs, len(files))))
	if waitErr != nil {
		return res, waitErr
	}

	if opts.Timings && opts.Timer != nil {
		if d, ok := timingDiagnostic(fileSet.BaseDir(), len(files), opts.Timer.Report()); ok {
			res.Extra = diag.NewBag(1)
			res.Extra.Add(d)
		}
	}
	return res, nil
}

// analyzeUnit is swapped in tests to exercise panic containment.
var analyzeUnit = analysis.Run

func checkUnit(ctx context.Context, fileSet *source.FileSet, id source.FileID, path string, bag *diag.Bag, aopts analysis.Options, fingerprint string, opts Options) UnitResult {
	file := fileSet.Get(id)
	out := UnitResult{Path: path, FileID: id, Bag: bag}
	started := time.Now()

	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "unit", trace.ParentFromContext(ctx)).
		WithExtra("path", path)
	ctx = trace.WithParent(ctx, span)

	key := CacheKey(file.Hash, fingerprint)
	if opts.Cache != nil {
		payload, ok, err := opts.Cache.Get(key)
		if err == nil && ok && payload.Result != nil && payload.Path == file.Path {
			payload.rebase(id)
			for _, d := range payload.Diagnostics {
				bag.Add(d)
			}
			payload.Result.Path = file.Path
			out.Result = payload.Result
			out.Cached = true
			span.End("cached")
			emit(opts.Progress, Event{File: path, Stage: StageAnalyze, Status: StatusCached, Elapsed: time.Since(started)})
			return out
		}
	}

	emit(opts.Progress, Event{File: path, Stage: StageParse, Status: StatusWorking})
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	u := unit.Parse(ctx, fileSet, id, rep)

	emit(opts.Progress, Event{File: path, Stage: StageAnalyze, Status: StatusWorking})
	out.Result = analyzeUnit(ctx, u, file, aopts, rep)
	bag.Sort()

	if opts.Cache != nil && !out.Result.Aborted {
		payload := &Payload{
			Path:        file.Path,
			Result:      out.Result,
			Diagnostics: bag.Items(),
		}
		// Ошибка записи кэша не должна ломать проверку.
		_ = opts.Cache.Put(key, payload)
	}

	status := StatusDone
	var err error
	if bag.HasErrors() {
		status = StatusError
		err = errors.New("unit has errors")
	}
	span.End(string(status))
	emit(opts.Progress, Event{File: path, Stage: StageAnalyze, Status: status, Err: err, Elapsed: time.Since(started)})
	return out
}
