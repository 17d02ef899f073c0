package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// memoryStore is a RunStore for service tests.
type memoryStore struct {
	mu      sync.Mutex
	records []RunRecord
	pruned  time.Time
}

func (m *memoryStore) SaveRun(_ context.Context, rec RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryStore) ListRuns(_ context.Context, container string, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RunRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if container == "" || m.records[i].Container == container {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memoryStore) PruneRuns(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = cutoff
	return 0, nil
}

func (m *memoryStore) Close() error { return nil }

func newTestService(t *testing.T, pages map[string]string) (*Service, *stubFetcher, *memoryStore, *scoreBoard) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)

	board, def := scoreBoardDefinition("board", "Game")
	Register(def)

	f := newStubFetcher(pages)
	store := &memoryStore{}
	svc := NewService(f, store, ServiceConfig{ResultTTL: time.Minute})
	return svc, f, store, board
}

func TestService_StartImport(t *testing.T) {
	svc, f, store, board := newTestService(t, map[string]string{
		"Scores": "id,name,score\n1,Alpha,10\n",
	})

	ctx := ContextWithIPAddress(context.Background(), "10.0.0.1")
	runID, err := svc.StartImport(ctx, ImportRequest{Container: "board", Pages: []string{"Scores"}})
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	res, err := svc.GetResult(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateCompleted || res.Records() != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(board.Scores) != 1 || board.Scores[0].Name != "Alpha" {
		t.Errorf("board.Scores = %+v", board.Scores)
	}
	if got := f.calls[0].DocumentID; got != "doc-board" {
		t.Errorf("document id = %q, want container default", got)
	}

	history, _ := svc.History(context.Background(), "board", 10)
	if len(history) != 1 || history[0].ID != runID || history[0].IPAddress != "10.0.0.1" {
		t.Errorf("history = %+v", history)
	}
	if store.records[0].Records != 1 {
		t.Errorf("stored record = %+v", store.records[0])
	}

	err = svc.WithContent("board", func(content any) error {
		if content != any(board) {
			t.Errorf("content = %T, want the registered board", content)
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithContent() after run = %v", err)
	}
}

func TestService_StartImport_Errors(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	tests := []struct {
		name    string
		req     ImportRequest
		wantErr error
	}{
		{"unknown container", ImportRequest{Container: "nope", All: true}, ErrContainerNotFound},
		{"nothing selected", ImportRequest{Container: "board"}, ErrNothingSelected},
		{"unknown page", ImportRequest{Container: "board", Pages: []string{"Ghost"}}, ErrUnknownPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.StartImport(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("StartImport() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_MissingDocumentID(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	_, def := scoreBoardDefinition("nodoc", "Game")
	def.Info.DocumentID = ""
	Register(def)

	svc := NewService(newStubFetcher(nil), nil, ServiceConfig{})
	_, err := svc.StartImport(context.Background(), ImportRequest{Container: "nodoc", All: true})
	if !errors.Is(err, ErrMissingDocumentID) {
		t.Errorf("StartImport() error = %v, want ErrMissingDocumentID", err)
	}
}

func TestService_BusyContainerAndCancel(t *testing.T) {
	svc, f, _, _ := newTestService(t, map[string]string{
		"Scores":   "id\n1\n",
		"TopScore": "id\n2\n",
	})

	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	f.onCall = func(PageSource) {
		once.Do(func() { close(entered) })
		<-release
	}

	runID, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", All: true})
	if err != nil {
		t.Fatal(err)
	}
	<-entered

	if _, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", All: true}); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second StartImport() error = %v, want ErrRunInProgress", err)
	}
	called := false
	err = svc.WithContent("board", func(any) error { called = true; return nil })
	if !errors.Is(err, ErrRunInProgress) || called {
		t.Errorf("WithContent() during run = %v (called %v), want ErrRunInProgress", err, called)
	}

	if err := svc.CancelImport(runID); err != nil {
		t.Fatal(err)
	}
	close(release)

	res, err := svc.GetResult(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateCancelled || len(res.Pages) != 1 {
		t.Errorf("result = %+v", res)
	}

	if _, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", Pages: []string{"Scores"}}); err != nil {
		t.Errorf("container not released after run: %v", err)
	}
}

func TestService_SubscribeProgress(t *testing.T) {
	svc, f, _, _ := newTestService(t, map[string]string{
		"Scores": "id\n1\n",
	})

	release := make(chan struct{})
	f.onCall = func(PageSource) { <-release }

	runID, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", Pages: []string{"Scores"}})
	if err != nil {
		t.Fatal(err)
	}

	ch, err := svc.SubscribeProgress(runID)
	if err != nil {
		t.Fatal(err)
	}
	close(release)

	var last RunProgress
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-ch:
			if !ok {
				done = true
				continue
			}
			last = p
		case <-timeout:
			t.Fatal("progress channel never closed")
		}
	}

	if last.State != StateCompleted || last.Progress != 1 || last.RunID != runID {
		t.Errorf("last progress = %+v", last)
	}

	// Late subscribers get the final snapshot and a closed channel.
	late, err := svc.SubscribeProgress(runID)
	if err != nil {
		t.Fatal(err)
	}
	if p := <-late; p.State != StateCompleted {
		t.Errorf("late snapshot = %+v", p)
	}
	if _, ok := <-late; ok {
		t.Error("late channel not closed")
	}
}

func TestService_RunNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	if _, err := svc.GetProgress("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetProgress() = %v", err)
	}
	if err := svc.CancelImport("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("CancelImport() = %v", err)
	}
	if _, err := svc.SubscribeProgress("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("SubscribeProgress() = %v", err)
	}
}

func TestService_PruneHistory(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	before := time.Now().AddDate(0, 0, -7)
	if _, err := svc.PruneHistory(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if d := store.pruned.Sub(before); d < 0 || d > time.Minute {
		t.Errorf("cutoff = %v, want about %v", store.pruned, before)
	}
}

func TestService_WithContentHoldsContainer(t *testing.T) {
	svc, _, _, _ := newTestService(t, map[string]string{
		"Scores": "id,name,score\n1,Alpha,10\n",
	})

	sentinel := errors.New("encode failed")
	err := svc.WithContent("board", func(any) error {
		_, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", All: true})
		if !errors.Is(err, ErrRunInProgress) {
			t.Errorf("StartImport() while content is held = %v, want ErrRunInProgress", err)
		}
		if err := svc.WithContent("board", func(any) error { return nil }); !errors.Is(err, ErrRunInProgress) {
			t.Errorf("nested WithContent() = %v, want ErrRunInProgress", err)
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithContent() = %v, want callback error", err)
	}

	if _, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", Pages: []string{"Scores"}}); err != nil {
		t.Errorf("container not released after WithContent: %v", err)
	}

	if err := svc.WithContent("nope", func(any) error { return nil }); !errors.Is(err, ErrContainerNotFound) {
		t.Errorf("WithContent(unknown) = %v, want ErrContainerNotFound", err)
	}
}

// Encoding under WithContent never overlaps an import writing the same
// container; run with -race.
func TestService_WithContentExcludesImports(t *testing.T) {
	svc, _, _, _ := newTestService(t, map[string]string{
		"Scores":   "id,name,score\n1,Alpha,10\n2,Beta,20\n",
		"TopScore": "id,name,score\n9,Top,99\n",
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			runID, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", All: true})
			if err != nil {
				return
			}
			_, _ = svc.GetResult(context.Background(), runID)
		}()
		go func() {
			defer wg.Done()
			_ = svc.WithContent("board", func(content any) error {
				return json.NewEncoder(io.Discard).Encode(content)
			})
		}()
	}
	wg.Wait()
}

type panickingStore struct{ memoryStore }

func (p *panickingStore) SaveRun(context.Context, RunRecord) error { panic("store exploded") }

func TestService_PanicMarksRunFailed(t *testing.T) {
	svc, f, _, _ := newTestService(t, map[string]string{
		"Scores": "id\n1\n",
	})
	f.onCall = func(PageSource) { panic("fetch exploded") }

	runID, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", Pages: []string{"Scores"}})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := svc.GetResult(ctx, runID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if res.State != StateFailed || !strings.Contains(res.Error, "fetch exploded") {
		t.Errorf("result = %+v, want failed with panic message", res)
	}

	p, err := svc.GetProgress(runID)
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateFailed || p.Phase != PhaseFailed {
		t.Errorf("progress = %+v, want failed", p)
	}

	f.onCall = nil
	if _, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", Pages: []string{"Scores"}}); err != nil {
		t.Errorf("container not released after panic: %v", err)
	}
}

func TestService_PanicWhileCompletingWakesWaiters(t *testing.T) {
	Clear()
	t.Cleanup(Clear)
	_, def := scoreBoardDefinition("board", "Game")
	Register(def)

	svc := NewService(newStubFetcher(map[string]string{"Scores": "id\n1\n"}), &panickingStore{}, ServiceConfig{ResultTTL: time.Minute})
	runID, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", Pages: []string{"Scores"}})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := svc.GetResult(ctx, runID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if res.State != StateCompleted {
		t.Errorf("state = %s, want the first stored outcome", res.State)
	}
	if _, err := svc.StartImport(context.Background(), ImportRequest{Container: "board", Pages: []string{"Scores"}}); err != nil {
		t.Errorf("container not released: %v", err)
	}
}
