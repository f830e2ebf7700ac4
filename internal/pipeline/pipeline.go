package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/model"
	"CBOTLoader/internal/notifier"
	"CBOTLoader/internal/reconcile"
	"CBOTLoader/internal/store"
)

// DateStore answers which dates a table already holds.
type DateStore interface {
	ExistingDates(ctx context.Context, c model.Coordinate) store.ExistingResult
}

// Loader writes a batch to a table.
type Loader interface {
	EnsureSchema(ctx context.Context, c model.Coordinate) error
	Write(ctx context.Context, rows []model.PriceRecord, c model.Coordinate, mode model.WriteMode) (int, error)
}

// BatchCollector fetches all instruments over a window.
type BatchCollector interface {
	Collect(ctx context.Context, instruments []model.Instrument, w model.DateWindow) ([]model.PriceRecord, error)
}

// Archiver keeps a copy of each loaded batch.
type Archiver interface {
	Archive(table string, rows []model.PriceRecord) (string, error)
}

// Sender delivers run summaries.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// State is a step of a run. Every run ends in StateDone; Result.ExitedAt
// records the step it left from.
type State string

const (
	StateValidate  State = "validate"
	StateReconcile State = "reconcile"
	StateFetch     State = "fetch"
	StateDedupe    State = "dedupe"
	StateLoad      State = "load"
	StateDone      State = "done"
)

// Outcome says why a run finished.
type Outcome string

const (
	OutcomeNothingMissing Outcome = "nothing_missing"
	OutcomeNoData         Outcome = "no_data"
	OutcomeAllDuplicates  Outcome = "all_duplicates"
	OutcomeLoaded         Outcome = "loaded"
	OutcomeFailed         Outcome = "failed"
)

// Result summarizes one run.
type Result struct {
	Window      model.DateWindow
	Coordinate  model.Coordinate
	Mode        model.WriteMode
	Outcome     Outcome
	ExitedAt    State
	Missing     []civil.Date
	Fetched     int
	Removed     int
	Loaded      int
	ArchivePath string
	Elapsed     time.Duration
}

// Options holds the orchestration policy.
type Options struct {
	Server           string
	Database         string
	Schema           string
	Instruments      []model.Instrument
	BootstrapDate    civil.Date
	FailOnStoreError bool
}

// Pipeline runs one job end to end: reconcile, fetch, dedupe, load.
// It assumes it is the only writer to the target table.
type Pipeline struct {
	Store     DateStore
	Loader    Loader
	Collector BatchCollector
	Archive   Archiver
	Notifier  Sender
	Now       func() time.Time

	opts       Options
	reconciler *reconcile.Reconciler
	dedupe     *reconcile.DuplicateFilter
	log        *slog.Logger
}

// New creates a Pipeline. Archive and Notifier are optional and may be
// set on the returned value.
func New(opts Options, st DateStore, loader Loader, col BatchCollector, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Store:      st,
		Loader:     loader,
		Collector:  col,
		Now:        time.Now,
		opts:       opts,
		reconciler: reconcile.NewReconciler(logger),
		dedupe:     reconcile.NewDuplicateFilter(logger),
		log:        logger.With("component", "pipeline"),
	}
}

// Coordinate returns the target table for a frequency.
func (p *Pipeline) Coordinate(f model.Frequency) model.Coordinate {
	return model.Coordinate{
		Server:   p.opts.Server,
		Database: p.opts.Database,
		Schema:   p.opts.Schema,
		Table:    f.TableName(),
	}
}

// Run executes the job for window w. A run that finds nothing to do is a
// success; the returned Result says where it stopped.
func (p *Pipeline) Run(ctx context.Context, w model.DateWindow) (*Result, error) {
	started := p.Now()
	res, err := p.run(ctx, w)
	res.Elapsed = p.Now().Sub(started)

	if err != nil {
		res.Outcome = OutcomeFailed
		p.log.Error("run failed", "step", string(res.ExitedAt), "err", err)
	} else {
		p.log.Info("run complete", "outcome", string(res.Outcome),
			"rows", res.Loaded, "destination", res.Coordinate.String())
	}
	p.log.Info("runtime", "elapsed", notifier.FormatElapsed(res.Elapsed))
	p.notify(ctx, res, err)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, w model.DateWindow) (*Result, error) {
	res := &Result{Window: w, Mode: model.Append, ExitedAt: StateValidate}

	p.log.Info("step 1: validate parameters", "window", w.String())
	if err := validateWindow(w); err != nil {
		return res, &ValidationError{Args: []string{w.Start.String(), w.End.String(), string(w.Frequency)}, Err: err}
	}
	coord := p.Coordinate(w.Frequency)
	res.Coordinate = coord

	bootstrap := w.Start == p.opts.BootstrapDate
	if bootstrap {
		res.Mode = model.Replace
		p.log.Info("bootstrap window, table will be replaced", "start", w.Start.String())
	}

	res.ExitedAt = StateReconcile
	p.log.Info("step 2: reconcile dates", "table", coord.String())
	if !bootstrap {
		existing, err := p.existing(ctx, coord)
		if err != nil {
			return res, err
		}
		plan, err := p.reconciler.Plan(w, existing)
		if err != nil {
			return res, err
		}
		res.Missing = plan.Missing
		// A window with no candidate dates still goes to the provider;
		// only a fully covered calendar is skipped.
		if len(plan.Candidates) > 0 && len(plan.Missing) == 0 {
			res.Outcome = OutcomeNothingMissing
			p.log.Info("all dates already loaded, nothing to fetch")
			return res, nil
		}
	}

	res.ExitedAt = StateFetch
	p.log.Info("step 3: download")
	rows, err := p.Collector.Collect(ctx, p.opts.Instruments, w)
	if err != nil {
		return res, fmt.Errorf("fetch: %w", err)
	}
	res.Fetched = len(rows)
	if len(rows) == 0 {
		res.Outcome = OutcomeNoData
		p.log.Info("no data downloaded, process finished")
		return res, nil
	}

	if !bootstrap {
		res.ExitedAt = StateDedupe
		p.log.Info("step 4: remove already stored dates")
		existing, err := p.existing(ctx, coord)
		if err != nil {
			return res, err
		}
		kept := p.dedupe.RemoveExistingFor(w.Frequency, existing, rows)
		res.Removed = len(rows) - len(kept)
		rows = kept
		if len(rows) == 0 {
			res.Outcome = OutcomeAllDuplicates
			p.log.Info("no data left after duplicate removal, nothing to write")
			return res, nil
		}
	}

	res.ExitedAt = StateLoad
	p.log.Info("step 5: write into database", "rows", len(rows), "mode", res.Mode.String())
	if err := p.Loader.EnsureSchema(ctx, coord); err != nil {
		return res, fmt.Errorf("ensure schema: %w", err)
	}
	n, err := p.Loader.Write(ctx, rows, coord, res.Mode)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", coord, err)
	}
	res.Loaded = n
	res.Outcome = OutcomeLoaded

	if p.Archive != nil {
		path, err := p.Archive.Archive(coord.Table, rows)
		if err != nil {
			p.log.Warn("archive failed", "err", err)
		}
		res.ArchivePath = path
	}

	res.ExitedAt = StateDone
	return res, nil
}

// existing collapses the store's tagged answer into a date set. A missing
// table is a cold start. A failed query is logged and treated as empty
// unless FailOnStoreError is set.
func (p *Pipeline) existing(ctx context.Context, c model.Coordinate) (model.DateSet, error) {
	r := p.Store.ExistingDates(ctx, c)
	switch r.Status {
	case store.Found:
		p.log.Info("existing dates loaded", "table", c.String(), "dates", len(r.Dates))
		return r.Set(), nil
	case store.NotFound:
		p.log.Info("target table absent, treating as empty", "table", c.String())
		return model.DateSet{}, nil
	default:
		if p.opts.FailOnStoreError {
			return nil, fmt.Errorf("query existing dates: %w", r.Err)
		}
		p.log.Error("existing dates query failed, treating as empty", "table", c.String(), "err", r.Err)
		return model.DateSet{}, nil
	}
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx for the run summary.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func (p *Pipeline) notify(ctx context.Context, res *Result, runErr error) {
	if p.Notifier == nil {
		return
	}
	msg := notifier.FormatRunSummary(notifier.RunSummary{
		RunID:       runIDFrom(ctx),
		Window:      res.Window.String(),
		Destination: res.Coordinate.String(),
		Outcome:     string(res.Outcome),
		Mode:        res.Mode.String(),
		Missing:     len(res.Missing),
		Fetched:     res.Fetched,
		Loaded:      res.Loaded,
		Elapsed:     res.Elapsed,
		Err:         runErr,
	})
	if err := p.Notifier.SendWithRetry(ctx, msg, 3); err != nil {
		p.log.Error("send run summary", "err", err)
	}
}
