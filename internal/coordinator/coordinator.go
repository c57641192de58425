package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sluice/internal/chunk"
	"sluice/internal/inspect"
	"sluice/internal/ledger"
	"sluice/internal/logging"
	"sluice/internal/services"
	"sluice/internal/tracker"
)

// Options configures a coordinator run.
type Options struct {
	ChunksDir      string
	MaxWorkers     int
	StatusInterval time.Duration
	ActiveWindow   time.Duration
	// Force clears completion markers and reruns every chunk.
	Force bool
}

// Coordinator dispatches chunks to a bounded pool of workers and watches
// their progress. Chunks run in a fixed, deterministic order; each failure
// is isolated to its chunk.
type Coordinator struct {
	repo    ledger.Repository
	tracker *tracker.Tracker
	runner  ChunkRunner
	logger  *slog.Logger
	opts    Options
}

func New(repo ledger.Repository, tr *tracker.Tracker, runner ChunkRunner, logger *slog.Logger, opts Options) (*Coordinator, error) {
	if opts.MaxWorkers <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "coordinator", "new", "max workers must be positive", nil)
	}
	return &Coordinator{
		repo:    repo,
		tracker: tr,
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "coordinator"),
		opts:    opts,
	}, nil
}

// ChunkResult is the outcome of one chunk's dispatch.
type ChunkResult struct {
	Chunk    string
	Path     string
	Skipped  bool
	Duration time.Duration
	Err      error
}

// Report aggregates a full run.
type Report struct {
	Results   []ChunkResult
	Skipped   int
	Succeeded int
	Failed    int
}

// Success reports whether every dispatched chunk completed.
func (r *Report) Success() bool {
	return r.Failed == 0
}

// Run discovers chunks, skips those already proven complete, and dispatches
// the rest across at most MaxWorkers concurrent workers. It returns an
// error only when the run could not start at all; individual chunk failures
// land in the report.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	paths, err := chunk.Discover(c.opts.ChunksDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "coordinator", "run", "no chunk files found", nil)
	}

	report := &Report{Results: make([]ChunkResult, len(paths))}
	var pending []int
	for i, path := range paths {
		name := chunk.Name(path)
		report.Results[i] = ChunkResult{Chunk: name, Path: path}
		if c.opts.Force {
			if err := chunk.RemoveMarker(path); err != nil {
				return nil, err
			}
			pending = append(pending, i)
			continue
		}
		skip, err := c.tracker.ShouldSkip(ctx, path, chunk.ModeStrict)
		if err != nil {
			return nil, err
		}
		if skip {
			report.Results[i].Skipped = true
			report.Skipped++
			c.logger.Info("skipping completed chunk", logging.String(logging.FieldChunk, name))
			continue
		}
		pending = append(pending, i)
	}

	c.logger.Info("starting run",
		logging.Int("chunks", len(paths)),
		logging.Int("pending", len(pending)),
		logging.Int("max_workers", c.opts.MaxWorkers))

	stopProgress := c.startProgressLoop(ctx)
	defer stopProgress()

	sem := make(chan struct{}, c.opts.MaxWorkers)
	var wg sync.WaitGroup
	for _, idx := range pending {
		if ctx.Err() != nil {
			report.Results[idx].Err = ctx.Err()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			c.dispatch(ctx, &report.Results[idx])
		}(idx)
	}
	wg.Wait()

	for _, result := range report.Results {
		switch {
		case result.Skipped:
		case result.Err != nil:
			report.Failed++
		default:
			report.Succeeded++
		}
	}
	c.logger.Info("run finished",
		logging.Int("succeeded", report.Succeeded),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed))
	return report, nil
}

func (c *Coordinator) dispatch(ctx context.Context, result *ChunkResult) {
	logger := c.logger.With(logging.String(logging.FieldChunk, result.Chunk))
	logger.Info("dispatching chunk")
	start := time.Now()

	// A panicking in-process runner must not take down sibling chunks.
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = services.Wrap(services.ErrItemProcessing, "coordinator", "dispatch", "worker panicked", nil)
			}
		}()
		result.Err = c.runner.RunChunk(ctx, result.Path)
	}()
	result.Duration = time.Since(start)

	if result.Err != nil {
		logger.Error("chunk failed",
			logging.Duration("duration", result.Duration),
			logging.Error(result.Err))
		return
	}
	logger.Info("chunk completed", logging.Duration("duration", result.Duration))
}

func (c *Coordinator) startProgressLoop(ctx context.Context) func() {
	if c.opts.StatusInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.opts.StatusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.logProgress(ctx)
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (c *Coordinator) logProgress(ctx context.Context) {
	report, err := inspect.BuildReport(ctx, c.repo, c.opts.ChunksDir, c.opts.ActiveWindow, time.Now())
	if err != nil {
		c.logger.Warn("progress snapshot failed", logging.Error(err))
		return
	}
	attrs := []any{
		logging.Int("videos", report.TotalVideos),
		logging.Int("completed", report.TotalCompleted),
		logging.Int("recorded", report.TotalRecorded),
	}
	if report.EstimateValid {
		attrs = append(attrs, logging.Duration("remaining_estimate", report.Remaining))
	}
	c.logger.Info("progress", attrs...)
}

// CheckChunk reports completion for a single chunk under mode.
func (c *Coordinator) CheckChunk(ctx context.Context, nameOrPath string, mode chunk.Mode) (*tracker.Status, error) {
	path, err := chunk.Resolve(c.opts.ChunksDir, nameOrPath)
	if err != nil {
		return nil, err
	}
	return c.tracker.Check(ctx, path, mode)
}

// UpdateMarkers re-derives every chunk's marker from the ledger.
func (c *Coordinator) UpdateMarkers(ctx context.Context, mode chunk.Mode) (*tracker.RefreshReport, error) {
	return c.tracker.RefreshMarkers(ctx, c.opts.ChunksDir, mode)
}
