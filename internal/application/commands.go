package application

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

// Session is the part of core.Service the views drive.
type Session interface {
	StartImport(ctx context.Context, req core.ImportRequest) (string, error)
	SubscribeProgress(runID string) (<-chan core.RunProgress, error)
	CancelImport(runID string) error
	GetResult(ctx context.Context, runID string) (*core.RunResult, error)
}

// WriteFunc saves a container's content after a completed import and
// returns where it went.
type WriteFunc func(container string) (string, error)

type startedMsg struct {
	container string
	runID     string
	updates   <-chan core.RunProgress
}

type progressMsg core.RunProgress

type streamClosedMsg struct{}

type resultMsg struct {
	result *core.RunResult
	output string
	err    error
}

type ErrMsg struct{ Err error }

func (m *Model) startImport(req core.ImportRequest) tea.Cmd {
	if req.DocumentID == "" {
		req.DocumentID = m.documentID
	}
	return func() tea.Msg {
		runID, err := m.session.StartImport(m.ctx, req)
		if err != nil {
			return ErrMsg{Err: err}
		}
		ch, err := m.session.SubscribeProgress(runID)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return startedMsg{container: req.Container, runID: runID, updates: ch}
	}
}

func waitForProgress(ch <-chan core.RunProgress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return progressMsg(p)
	}
}

func (m *Model) fetchResult(runID, container string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.session.GetResult(m.ctx, runID)
		if err != nil {
			return resultMsg{err: err}
		}
		if res.State != core.StateCompleted || m.write == nil {
			return resultMsg{result: res}
		}
		out, err := m.write(container)
		return resultMsg{result: res, output: out, err: err}
	}
}

// cancelImport asks the run to stop. A run that is already gone ends
// through its closed stream, so the error is only logged.
func (m *Model) cancelImport(runID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.session.CancelImport(runID); err != nil {
			slog.Debug("cancel ignored", "run_id", runID, "error", err)
		}
		return nil
	}
}
