package core

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Observer is notified of a run's progress. Calls are made from the
// goroutine executing Run, in order, never while the importer holds a lock.
type Observer interface {
	// StatusChanged is called with a human readable line per step.
	StatusChanged(status string)
	// ProgressChanged is called with cumulative progress in [0, 1].
	ProgressChanged(progress float64)
	// Failed is called at most once, on the first fatal error.
	Failed(message string)
	// Finished is called exactly once per started run.
	Finished(result RunResult)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStatus   func(string)
	OnProgress func(float64)
	OnFailed   func(string)
	OnFinished func(RunResult)
}

func (o ObserverFuncs) StatusChanged(s string) {
	if o.OnStatus != nil {
		o.OnStatus(s)
	}
}

func (o ObserverFuncs) ProgressChanged(p float64) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o ObserverFuncs) Failed(msg string) {
	if o.OnFailed != nil {
		o.OnFailed(msg)
	}
}

func (o ObserverFuncs) Finished(r RunResult) {
	if o.OnFinished != nil {
		o.OnFinished(r)
	}
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithObserver sets the run observer.
func WithObserver(o Observer) ImporterOption {
	return func(im *Importer) { im.observer = o }
}

// WithLogger sets the logger used for warnings and lifecycle events.
func WithLogger(l *slog.Logger) ImporterOption {
	return func(im *Importer) { im.logger = l }
}

// WithRunID labels progress snapshots and the result.
func WithRunID(id string) ImporterOption {
	return func(im *Importer) { im.progress.RunID = id }
}

// WithContainer labels progress snapshots and the result.
func WithContainer(key string) ImporterOption {
	return func(im *Importer) { im.progress.Container = key }
}

// Importer runs one import: every target's page in order, one at a time.
// It moves Idle -> Running -> Completed | Failed | Cancelled and cannot be
// reused.
type Importer struct {
	documentID string
	pages      *PageImporter
	observer   Observer
	logger     *slog.Logger

	cancelled atomic.Bool

	mu       sync.Mutex
	progress RunProgress
	warnings []Warning
}

// NewImporter creates an importer for one document.
func NewImporter(fetcher Fetcher, documentID string, opts ...ImporterOption) *Importer {
	im := &Importer{
		documentID: documentID,
		pages:      NewPageImporter(fetcher),
		observer:   ObserverFuncs{},
		logger:     slog.Default(),
		progress: RunProgress{
			State: StateIdle,
			Phase: PhaseStarting,
		},
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Cancel asks a running import to stop. It is honored before the next page
// starts; a page already downloading is finished first.
func (im *Importer) Cancel() {
	im.cancelled.Store(true)
}

// State returns the current lifecycle state.
func (im *Importer) State() RunState {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.progress.State
}

// Progress returns a snapshot of the run's observable state.
func (im *Importer) Progress() RunProgress {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.progress
}

// Run imports targets in order and blocks until the run ends.
//
// An empty target list returns ErrNothingSelected and a blank document id
// ErrMissingDocumentID; in both cases the run never starts and no observer
// call is made. Otherwise every target is validated before the first fetch,
// and the first error aborts the run. The returned error is nil on
// completion, ErrCancelled after a cancellation, or the fatal error.
func (im *Importer) Run(ctx context.Context, targets []Target) (RunResult, error) {
	if len(targets) == 0 {
		return RunResult{}, ErrNothingSelected
	}
	if strings.TrimSpace(im.documentID) == "" {
		return RunResult{}, ErrMissingDocumentID
	}

	im.mu.Lock()
	if im.progress.State != StateIdle {
		im.mu.Unlock()
		return RunResult{}, ErrImporterUsed
	}
	im.progress.State = StateRunning
	im.progress.PageCount = len(targets)
	im.mu.Unlock()

	result := RunResult{
		RunID:      im.progress.RunID,
		Container:  im.progress.Container,
		DocumentID: im.documentID,
		StartedAt:  time.Now(),
	}
	im.logger.Info("import started", "document", im.documentID, "pages", len(targets))
	im.publishStatus("Starting import...")

	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return im.fail(result, err)
		}
	}

	share := 1.0 / float64(len(targets))
	for i, t := range targets {
		if im.cancelled.Load() {
			return im.finish(result, StateCancelled, ErrCancelled)
		}

		im.mu.Lock()
		im.progress.Page = t.Page
		im.progress.PageIndex = i
		im.mu.Unlock()

		rep := &stepReporter{im: im, base: float64(i) * share, share: share}
		pr, err := im.pages.ImportPage(ctx, im.documentID, t, rep)
		if err != nil {
			return im.fail(result, err)
		}
		result.Pages = append(result.Pages, pr)

		im.logger.Info("page imported",
			"field", pr.Field,
			"page", pr.Page,
			"records", pr.Records,
			"skipped", pr.Skipped,
		)
	}

	return im.finish(result, StateCompleted, nil)
}

func (im *Importer) fail(result RunResult, err error) (RunResult, error) {
	im.logger.Error("import failed", "error", err)

	im.mu.Lock()
	im.progress.Error = err.Error()
	im.mu.Unlock()

	im.observer.Failed(err.Error())
	return im.finish(result, StateFailed, err)
}

func (im *Importer) finish(result RunResult, state RunState, err error) (RunResult, error) {
	im.mu.Lock()
	im.progress.State = state
	reachedEnd := im.progress.Progress >= 1
	switch state {
	case StateCompleted:
		im.progress.Phase = PhaseComplete
		im.progress.Progress = 1
		im.progress.Status = "Import complete"
	case StateCancelled:
		im.progress.Phase = PhaseCancelled
		im.progress.Status = "Import cancelled"
	default:
		im.progress.Phase = PhaseFailed
		im.progress.Status = "Import failed"
	}
	status := im.progress.Status
	result.Warnings = append([]Warning(nil), im.warnings...)
	im.mu.Unlock()

	result.State = state
	if state == StateFailed && err != nil {
		result.Error = err.Error()
	}
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	im.logger.Info("import finished",
		"state", state,
		"records", result.Records(),
		"warnings", len(result.Warnings),
		"duration", result.Duration,
	)

	im.observer.StatusChanged(status)
	if state == StateCompleted && !reachedEnd {
		im.observer.ProgressChanged(1)
	}
	im.observer.Finished(result)

	return result, err
}

// abort marks a run that stopped without reaching a terminal state as
// failed. Observers are not notified.
func (im *Importer) abort(msg string) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.progress.State.Terminal() {
		return
	}
	im.progress.State = StateFailed
	im.progress.Phase = PhaseFailed
	im.progress.Status = "Import failed"
	im.progress.Error = msg
}

// publishStatus records status text and notifies the observer.
func (im *Importer) publishStatus(status string) {
	im.mu.Lock()
	im.progress.Status = status
	im.mu.Unlock()

	im.observer.StatusChanged(status)
}

// publishProgress raises progress to p, clamped to [0, 1], and notifies the
// observer. Progress never moves backwards.
func (im *Importer) publishProgress(p float64) {
	if p > 1 {
		p = 1
	}
	im.mu.Lock()
	if p < im.progress.Progress {
		p = im.progress.Progress
	}
	im.progress.Progress = p
	im.mu.Unlock()

	im.observer.ProgressChanged(p)
}

// stepReporter maps the three steps of one page onto its progress share.
type stepReporter struct {
	im    *Importer
	base  float64
	share float64
	steps int
}

func (r *stepReporter) step(phase RunPhase, status string) {
	r.im.mu.Lock()
	r.im.progress.Phase = phase
	r.im.mu.Unlock()

	r.im.publishStatus(status)
}

func (r *stepReporter) done() {
	r.steps++
	if r.steps >= 3 {
		r.im.publishProgress(r.base + r.share)
		return
	}
	r.im.publishProgress(r.base + r.share*float64(r.steps)/3)
}

func (r *stepReporter) warn(w Warning) {
	r.im.logger.Warn(w.Message,
		"page", w.Page,
		"line", w.Line,
		"column", w.Column,
		"value", w.Value,
	)

	r.im.mu.Lock()
	r.im.warnings = append(r.im.warnings, w)
	r.im.mu.Unlock()
}
