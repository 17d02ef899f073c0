package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/SheetImport/internal/core"
	"github.com/JonMunkholm/SheetImport/internal/logging"
	"github.com/JonMunkholm/SheetImport/internal/serialize"
	"github.com/JonMunkholm/SheetImport/internal/web/templates"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

// ContainerResponse describes a registered container and its pages.
type ContainerResponse struct {
	core.ContainerInfo
	Pages []core.PageInfo `json:"pages"`
}

// StartImportRequest is the body of POST /api/import/{containerKey}.
type StartImportRequest struct {
	DocumentID string   `json:"documentId,omitempty"`
	Pages      []string `json:"pages,omitempty"`
	All        bool     `json:"all,omitempty"`
}

// SerializeRequest is the body of POST /api/serialize/{containerKey}.
// Empty fields take the configured output defaults. A path given here must
// resolve inside OUTPUT_BASE_DIR; the file name is a bare name.
type SerializeRequest struct {
	Path     string `json:"path,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Format   string `json:"format,omitempty"`
}

// SerializeResponse reports a written content file.
type SerializeResponse struct {
	Container string `json:"container"`
	Path      string `json:"path"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"limiter": s.service.LimiterStatus(),
		"runs":    s.service.ActiveRuns(),
	})
}

// handleDashboard renders containers grouped with their latest run.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var groups []templates.ContainerGroup
	for _, info := range s.service.ListContainers() {
		def, err := s.service.Container(info.Key)
		if err != nil {
			continue
		}

		card := templates.ContainerCard{Info: info, Pages: def.Pages()}
		if runs, err := s.service.History(r.Context(), info.Key, 1); err != nil {
			logging.FromContext(r.Context()).Warn("history unavailable", "container", info.Key, "error", err)
		} else if len(runs) > 0 {
			card.LastRun = &runs[0]
		}

		if n := len(groups); n > 0 && groups[n-1].Name == info.Group {
			groups[n-1].Containers = append(groups[n-1].Containers, card)
		} else {
			groups = append(groups, templates.ContainerGroup{Name: info.Group, Containers: []templates.ContainerCard{card}})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(groups).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("dashboard render failed", "error", err)
	}
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	infos := s.service.ListContainers()
	out := make([]ContainerResponse, 0, len(infos))
	for _, info := range infos {
		def, err := s.service.Container(info.Key)
		if err != nil {
			continue
		}
		out = append(out, ContainerResponse{ContainerInfo: info, Pages: def.Pages()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Container(chi.URLParam(r, "containerKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContainerResponse{ContainerInfo: def.Info, Pages: def.Pages()})
}

// handleStartImport starts a background run and answers 202 with its ID.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")

	var body StartImportRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	runID, err := s.service.StartImport(ctx, core.ImportRequest{
		Container:  key,
		DocumentID: body.DocumentID,
		Pages:      body.Pages,
		All:        body.All,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(logging.WithRunID(r.Context(), runID), "container", key).Info("import accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// handleImportProgress streams progress as Server-Sent Events. The event id
// is the percentage, so a reconnecting client can pass lastEventId to skip
// what it already saw.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	lastEventID := -1
	if v := r.URL.Query().Get("lastEventId"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastEventID = n
		}
	} else if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last core.RunProgress
	for {
		select {
		case p, ok := <-progressCh:
			if !ok {
				// The closing snapshot can be dropped for a slow reader
				if !last.State.Terminal() {
					if p, err := s.service.GetProgress(runID); err == nil {
						last = p
					}
				}
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = p

			// Terminal snapshots are always sent, even at a repeated percentage
			if p.Percent() <= lastEventID && !p.State.Terminal() {
				continue
			}
			lastEventID = p.Percent()

			data, _ := json.Marshal(p)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", lastEventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the final result. With ?wait=true it blocks
// until the run ends or the request times out; otherwise an unfinished run
// answers 202 with its progress.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if r.URL.Query().Get("wait") != "true" {
		p, err := s.service.GetProgress(runID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if !p.State.Terminal() {
			writeJSON(w, http.StatusAccepted, p)
			return
		}
	}

	res, err := s.service.GetResult(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if err := s.service.CancelImport(runID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleSerialize writes a container's content object to disk.
func (s *Server) handleSerialize(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "containerKey")

	var body SerializeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := s.cfg.Output
	opts := serialize.Options{BaseDir: out.BaseDir, Path: out.Path, FileName: out.FileName}
	if body.Path != "" {
		// Client-chosen directories must stay under the output base dir
		opts.Path = body.Path
		opts.Root = out.BaseDir
		if opts.Root == "" {
			opts.Root = "."
		}
	}
	if body.FileName != "" {
		opts.FileName = body.FileName
	}
	if opts.FileName == "" {
		opts.FileName = key
	}
	if body.Format != "" {
		out.Format = body.Format
	}

	format, err := serialize.ParseFormat(out.Format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts.Format = format

	var (
		path string
		n    int64
	)
	err = s.service.WithContent(key, func(content any) error {
		var werr error
		path, n, werr = serialize.WriteFile(content, opts)
		return werr
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("content written", "container", key, "path", path, "bytes", n)
	writeJSON(w, http.StatusOK, SerializeResponse{
		Container: key,
		Path:      path,
		Format:    string(format),
		Bytes:     n,
	})
}

// handleHistory lists stored runs, newest first. Without a container key
// every container's runs are listed.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "containerKey")
	if key != "" {
		if _, err := s.service.Container(key); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	runs, err := s.service.History(ctx, key, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// decodeBody reads an optional JSON body into v. An empty body is fine.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeError writes a plain JSON error for request problems that never
// reach the service.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    strings.ReplaceAll(strings.ToUpper(http.StatusText(status)), " ", "_"),
	})
}
