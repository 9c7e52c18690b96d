package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trip_planner/internal/domain"
	"trip_planner/internal/orchestrator"
)

// Orchestrator is the core as seen by the transport.
type Orchestrator interface {
	Orchestrate(ctx context.Context, query string, history []domain.Message, opts ...orchestrator.Option) (domain.OrchestratorResult, error)
	Analyze(query string, history []domain.Message) (domain.QueryAnalysis, error)
}

type Handlers struct{ O Orchestrator }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type orchestrateRequest struct {
	Query    string           `json:"query"`
	History  []domain.Message `json:"history,omitempty"`
	Language string           `json:"language,omitempty"`
}

func (r orchestrateRequest) options() []orchestrator.Option {
	if r.Language == "" {
		return nil
	}
	return []orchestrator.Option{orchestrator.WithLanguage(r.Language)}
}

const maxBody = 1 << 20

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(s.timeout))
		r.Post("/v1/orchestrate", h.orchestrate)
		r.Get("/v1/analyze", h.analyze)
	})
	s.mux.Get("/v1/orchestrate/stream", h.stream)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps core errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrOrchestrationTimeout):
		writeProblem(w, http.StatusGatewayTimeout, "Gateway Timeout", err.Error())
	case errors.Is(err, domain.ErrAnalysisFailed):
		writeProblem(w, http.StatusInternalServerError, "Analysis Failed", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func (h *Handlers) orchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected {\"query\": string, \"history\": [{role, content}]}")
		return
	}
	res, err := h.O.Orchestrate(r.Context(), req.Query, req.History, req.options()...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request) {
	a, err := h.O.Analyze(r.URL.Query().Get("q"), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	etag, body := calcETagAndBody(a)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write analyze body")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait = 10 * time.Second
	wsPing      = 20 * time.Second
)

// stream runs one orchestration per connection. The client sends a single
// orchestrateRequest; the server replies with progress events until end.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBody)
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var req orchestrateRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(orchestrator.Event{Type: orchestrator.EventError, Message: "expected {\"query\": string}"})
		_ = conn.WriteJSON(orchestrator.Event{Type: orchestrator.EventEnd})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// client messages after the request are discarded; a read error means
	// the peer went away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	events := make(orchestrator.ChanSink, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.O.Orchestrate(ctx, req.Query, req.History, append(req.options(), orchestrator.WithProgress(events))...)
	}()

	ticker := time.NewTicker(wsPing)
	defer ticker.Stop()
	write := func(ev orchestrator.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			return false
		}
		return ev.Type != orchestrator.EventEnd
	}
	for {
		select {
		case ev := <-events:
			if !write(ev) {
				return
			}
		case <-done:
			for {
				select {
				case ev := <-events:
					if !write(ev) {
						return
					}
				default:
					return
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
