package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ServiceConfig tunes run scheduling. Zero values take the defaults.
type ServiceConfig struct {
	MaxConcurrent int           // imports running at once (default: 2)
	MaxWait       time.Duration // wait for a free slot (default: 30s)
	RunTimeout    time.Duration // upper bound on one run (default: 10m)
	ResultTTL     time.Duration // how long finished runs stay queryable (default: 5m)
}

// DefaultRunTimeout bounds a run when ServiceConfig.RunTimeout is unset.
var DefaultRunTimeout = 10 * time.Minute

// DefaultResultTTL applies when ServiceConfig.ResultTTL is unset.
var DefaultResultTTL = 5 * time.Minute

// ImportRequest selects what to import into a registered container.
type ImportRequest struct {
	Container  string   `json:"container"`
	DocumentID string   `json:"documentId,omitempty"` // falls back to the container's default
	Pages      []string `json:"pages,omitempty"`      // field names
	All        bool     `json:"all,omitempty"`
}

// Service runs imports in the background and keeps their history.
type Service struct {
	fetcher Fetcher
	store   RunStore
	limiter *RunLimiter
	cfg     ServiceConfig

	mu   sync.RWMutex
	runs map[string]*activeRun
	busy map[string]string // container key -> run ID
}

type activeRun struct {
	ID        string
	Container string
	Pages     []string
	Importer  *Importer
	Result    *RunResult
	Done      chan struct{}
	completed sync.Once

	Listeners  []chan RunProgress
	ListenerMu sync.Mutex
	closed     bool // guarded by ListenerMu
}

// NewService creates a service. A nil store keeps no history.
func NewService(fetcher Fetcher, store RunStore, cfg ServiceConfig) *Service {
	if store == nil {
		store = discardStore{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentRuns
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}

	return &Service{
		fetcher: fetcher,
		store:   store,
		limiter: NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:     cfg,
		runs:    make(map[string]*activeRun),
		busy:    make(map[string]string),
	}
}

// ListContainers returns information about all registered containers.
func (s *Service) ListContainers() []ContainerInfo {
	defs := All()
	infos := make([]ContainerInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// Container returns a registered container definition.
func (s *Service) Container(key string) (ContainerDefinition, error) {
	def, ok := Get(key)
	if !ok {
		return ContainerDefinition{}, fmt.Errorf("%w: %s", ErrContainerNotFound, key)
	}
	return def, nil
}

// StartImport begins an asynchronous import and returns its run ID.
// Selection errors, a missing document id, and a busy container are
// reported here; everything later arrives through progress and the result.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	def, err := s.Container(req.Container)
	if err != nil {
		return "", err
	}

	var targets []Target
	if req.All {
		targets = def.SelectAll()
		if len(targets) == 0 {
			return "", ErrNothingSelected
		}
	} else {
		targets, err = def.Select(req.Pages)
		if err != nil {
			return "", err
		}
	}

	docID := strings.TrimSpace(req.DocumentID)
	if docID == "" {
		docID = def.Info.DocumentID
	}
	if docID == "" {
		return "", ErrMissingDocumentID
	}

	runID := uuid.New().String()

	if err := s.acquire(def.Info.Key, runID); err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.release(def.Info.Key)
		return "", err
	}

	pages := make([]string, len(targets))
	for i, t := range targets {
		pages[i] = t.Page
	}

	run := &activeRun{
		ID:        runID,
		Container: def.Info.Key,
		Pages:     pages,
		Done:      make(chan struct{}),
	}
	logger := slog.Default().With("run_id", runID, "container", def.Info.Key)
	run.Importer = NewImporter(s.fetcher, docID,
		WithRunID(runID),
		WithContainer(def.Info.Key),
		WithObserver(run),
		WithLogger(logger),
	)

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	meta := MetadataFromContext(ctx)
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)

	// Process in background with panic recovery to ensure slot release
	go func() {
		defer cancel()
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in import", "panic", r)
				msg := fmt.Sprintf("internal error: %v", r)
				run.Importer.abort(msg)
				res := RunResult{
					RunID:      runID,
					Container:  def.Info.Key,
					DocumentID: docID,
					State:      StateFailed,
					Error:      msg,
					FinishedAt: time.Now(),
				}
				s.complete(run, res, meta)
			}
		}()

		res, err := run.Importer.Run(runCtx, targets)
		if err != nil && !errors.Is(err, ErrCancelled) {
			logger.Debug("import ended with error", "error", err)
		}
		s.complete(run, res, meta)
	}()

	return runID, nil
}

// complete stores the result, wakes waiters and schedules cleanup. Only the
// first call has any effect; waiters are woken even if saving panics.
func (s *Service) complete(run *activeRun, res RunResult, meta RequestMetadata) {
	run.completed.Do(func() {
		run.Result = &res
		defer func() {
			run.closeListeners()
			s.release(run.Container)
			close(run.Done)
			s.cleanup(run.ID, s.cfg.ResultTTL)
		}()

		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.SaveRun(saveCtx, NewRunRecord(res, run.Pages, meta)); err != nil {
			slog.Error("failed to save run history", "run_id", run.ID, "error", err)
		}
	})
}

func (s *Service) release(container string) {
	s.mu.Lock()
	delete(s.busy, container)
	s.mu.Unlock()
}

func (s *Service) lookup(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the run completes.
func (s *Service) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan RunProgress, 10)

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	if run.closed {
		ch <- run.Importer.Progress()
		close(ch)
		return ch, nil
	}

	run.Listeners = append(run.Listeners, ch)
	// Send current progress immediately
	ch <- run.Importer.Progress()

	return ch, nil
}

// CancelImport asks a run to stop before its next page.
func (s *Service) CancelImport(runID string) error {
	run, err := s.lookup(runID)
	if err != nil {
		return err
	}
	run.Importer.Cancel()
	return nil
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(runID string) (RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunProgress{}, err
	}
	return run.Importer.Progress(), nil
}

// GetResult returns the result of a run, blocking until it finishes or
// ctx is done.
func (s *Service) GetResult(ctx context.Context, runID string) (*RunResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done:
		return run.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ActiveRuns returns progress for every run that has not been cleaned up.
func (s *Service) ActiveRuns() []RunProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunProgress, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Importer.Progress())
	}
	return out
}

// contentReader marks a container held by WithContent rather than a run.
const contentReader = "content-reader"

// WithContent calls fn with a container's content object. The container
// counts as busy until fn returns: imports into it fail with
// ErrRunInProgress, and a running import makes WithContent fail the same way.
func (s *Service) WithContent(key string, fn func(content any) error) error {
	def, err := s.Container(key)
	if err != nil {
		return err
	}
	if err := s.acquire(key, contentReader); err != nil {
		return err
	}
	defer s.release(key)

	return fn(def.Content)
}

// acquire marks a container busy for holder.
func (s *Service) acquire(key, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if other, ok := s.busy[key]; ok {
		if other == contentReader {
			return fmt.Errorf("%w: %s (content is being written)", ErrRunInProgress, key)
		}
		return fmt.Errorf("%w: %s (run %s)", ErrRunInProgress, key, other)
	}
	s.busy[key] = holder
	return nil
}

// History returns stored runs, newest first.
func (s *Service) History(ctx context.Context, container string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListRuns(ctx, container, limit)
}

// LimiterStatus reports slot usage.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// Drain waits for running imports to finish or ctx to end.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// CancelAll asks every active run to stop.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		run.Importer.Cancel()
	}
}

// StatusChanged implements Observer.
func (run *activeRun) StatusChanged(string) { run.notifyProgress() }

// ProgressChanged implements Observer.
func (run *activeRun) ProgressChanged(float64) { run.notifyProgress() }

// Failed implements Observer.
func (run *activeRun) Failed(string) { run.notifyProgress() }

// Finished implements Observer. Listeners are closed by the service once the
// result is stored.
func (run *activeRun) Finished(RunResult) {}

// notifyProgress sends progress updates to all listeners.
func (run *activeRun) notifyProgress() {
	p := run.Importer.Progress()

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners sends the final snapshot and closes all listener channels.
func (run *activeRun) closeListeners() {
	p := run.Importer.Progress()

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		select {
		case ch <- p:
		default:
		}
		close(ch)
	}
	run.Listeners = nil
	run.closed = true
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
