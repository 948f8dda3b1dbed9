// Package api serves the engine over HTTP: health and readiness, the
// latest frame, the active scene, external state, metrics and websocket
// streams of frames and events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/orchestrator"
	"github.com/AaronLay10/SentientFX/internal/state"
)

// maxSceneBytes bounds uploaded scene documents.
const maxSceneBytes = 4 << 20

// Options are the collaborators a Server may use. Every field is optional.
type Options struct {
	Scheduler *orchestrator.Scheduler
	State     *state.Store
	Scenes    orchestrator.SceneStore
	Importer  condition.Importer
	// MQTTConnected reports broker health; nil means no broker is used.
	MQTTConnected func() bool
}

// Server is the HTTP surface of one runtime.
type Server struct {
	rt        *orchestrator.Runtime
	opts      Options
	started   time.Time
	wsClients atomic.Int64
}

// NewServer creates a server for rt.
func NewServer(rt *orchestrator.Runtime, opts Options) *Server {
	return &Server{rt: rt, opts: opts, started: time.Now()}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	mux.HandleFunc("/events", s.eventsHandler)
	mux.HandleFunc("/frame", s.frameHandler)
	mux.HandleFunc("/scene", s.sceneHandler)
	mux.HandleFunc("/state", s.stateHandler)
	mux.HandleFunc("/engine/tick_rate", s.tickRateHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/ws/events", s.wsEventsHandler)
	mux.HandleFunc("/ws/frames", s.wsFramesHandler)
	return mux
}

// ListenAndServe serves on port until ctx is done, then shuts down
// gracefully. TLS is used when tlsCfg is enabled.
func (s *Server) ListenAndServe(ctx context.Context, port int, tlsCfg *TLSConfig) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsCfg.Enabled() {
			tc, err := tlsCfg.Load()
			if err != nil {
				errCh <- err
				return
			}
			srv.TLSConfig = tc
			log.Printf("API listening on %s (TLS)\n", srv.Addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		log.Printf("API listening on %s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

// ErrorResponse is returned by every failing endpoint.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: msg})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "orchestrator",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// CheckResult is one readiness check.
type CheckResult struct {
	Status string `json:"status"` // ok, error or disabled
	Error  string `json:"error,omitempty"`
}

type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckResult `json:"checks"`
}

// readyHandler is ready once a scene is loaded and the broker, when one
// is configured, is connected.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckResult)}

	if s.rt.SceneID() != "" {
		resp.Checks["scene"] = CheckResult{Status: "ok"}
	} else {
		resp.Ready = false
		resp.Checks["scene"] = CheckResult{Status: "error", Error: "no scene loaded"}
	}

	switch {
	case s.opts.MQTTConnected == nil:
		resp.Checks["mqtt"] = CheckResult{Status: "disabled"}
	case s.opts.MQTTConnected():
		resp.Checks["mqtt"] = CheckResult{Status: "ok"}
	default:
		resp.Ready = false
		resp.Checks["mqtt"] = CheckResult{Status: "error", Error: "broker not connected"}
	}

	if s.opts.Scenes == nil {
		resp.Checks["store"] = CheckResult{Status: "disabled"}
	} else {
		resp.Checks["store"] = CheckResult{Status: "ok"}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// eventsHandler returns the buffered events, optionally narrowed with
// ?topic=graph.,element. and ?limit=N.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, events.RecentEvents(limit, topicPrefixes(r)...))
}

// topicPrefixes reads the comma separated ?topic= event name prefixes.
func topicPrefixes(r *http.Request) []string {
	var out []string
	for _, p := range strings.Split(r.URL.Query().Get("topic"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) frameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.rt.Frame())
}

// SceneResponse reports the outcome of a scene upload.
type SceneResponse struct {
	OK       bool     `json:"ok"`
	SceneID  string   `json:"scene_id"`
	Entities int      `json:"entities"`
	Repairs  []string `json:"repairs,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
	Saved    bool     `json:"saved"`
	Error    string   `json:"error,omitempty"`
}

func (s *Server) sceneHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getScene(w, r)
	case http.MethodPut, http.MethodPost:
		s.putScene(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getScene(w http.ResponseWriter, r *http.Request) {
	doc, err := s.rt.Export()
	if errors.Is(err, orchestrator.ErrNoScene) {
		writeError(w, http.StatusNotFound, "no scene loaded")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("format") != "yaml" {
		writeJSON(w, http.StatusOK, doc)
		return
	}
	data, err := json.Marshal(doc)
	if err == nil {
		data, err = orchestrator.ToYAML(data)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

// putScene swaps in an uploaded scene. Entities that fail to load are
// reported and left out; the rest of the scene still goes live.
func (s *Server) putScene(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSceneBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	doc, err := orchestrator.DecodeScene(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scene, repairs, err := orchestrator.BuildScene(doc, s.opts.Importer)
	if scene == nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	orchestrator.ReportLoad(scene.ID, repairs, err)

	resp := SceneResponse{OK: true, SceneID: scene.ID, Entities: scene.Len()}
	for _, rep := range repairs {
		resp.Repairs = append(resp.Repairs, rep.Error())
	}
	for _, ee := range orchestrator.LoadEntityErrors(err) {
		resp.Rejected = append(resp.Rejected, ee.Error())
	}

	// Exported before the swap: once loaded the scene belongs to the tick.
	// Storing what actually loaded makes a restart restore the repaired scene.
	saved, exportErr := orchestrator.ExportScene(scene)
	s.rt.LoadScene(scene)

	if s.opts.Scenes != nil {
		err := exportErr
		if err == nil {
			err = orchestrator.SaveScene(r.Context(), s.opts.Scenes, saved)
		}
		if err != nil {
			resp.Error = "scene loaded but not saved: " + err.Error()
		} else {
			resp.Saved = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// stateHandler reads and writes the external state document. With a path
// parameter it addresses one value; without one it covers the document.
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.State == nil {
		writeError(w, http.StatusNotFound, "no state store")
		return
	}
	path := r.URL.Query().Get("path")

	switch r.Method {
	case http.MethodGet:
		if path == "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(s.opts.State.Snapshot().JSON())
			return
		}
		_, v, ok := s.opts.State.ResolvePath(path)
		if !ok {
			writeError(w, http.StatusNotFound, "path not found")
			return
		}
		writeJSON(w, http.StatusOK, v)

	case http.MethodPut:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSceneBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		if path == "" {
			err = s.opts.State.Replace(body)
		} else {
			err = s.opts.State.SetRaw(path, body)
		}
		if err != nil {
			events.Emit("warn", "state.update_rejected", err.Error(), map[string]interface{}{"path": path, "source": "api"})
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ErrorResponse{OK: true})

	case http.MethodDelete:
		if path == "" {
			writeError(w, http.StatusBadRequest, "path required")
			return
		}
		if err := s.opts.State.Delete(path); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ErrorResponse{OK: true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type TickRateRequest struct {
	TickRate int `json:"tick_rate"`
}

func (s *Server) tickRateHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.Scheduler == nil {
		writeError(w, http.StatusNotFound, "no scheduler")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, TickRateRequest{TickRate: s.opts.Scheduler.TickRate()})
	case http.MethodPost, http.MethodPut:
		var req TickRateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.TickRate <= 0 {
			writeError(w, http.StatusBadRequest, "tick_rate must be positive")
			return
		}
		s.opts.Scheduler.SetTickRate(req.TickRate)
		writeJSON(w, http.StatusOK, TickRateRequest{TickRate: s.opts.Scheduler.TickRate()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
