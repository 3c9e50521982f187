package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/go-chi/chi/v5"
)

const contentTypeJSON = "application/json"

// slotInfo is one entry of GET /slots
type slotInfo struct {
	Slot uint64 `json:"slot"`
	Keys int    `json:"keys"`
}

// slotKeys is the body of GET /slots/{slotID}/keys
type slotKeys struct {
	Slot uint64   `json:"slot"`
	Keys []string `json:"keys"`
}

// adminRouter returns the handler of the admin api
func (s *Server) adminRouter() http.Handler {
	r := chi.NewRouter()
	if s.config.LogLevel == "debug" {
		r.Use(loggerMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/stats", s.handleStats)
	r.Route("/slots", func(r chi.Router) {
		r.Get("/", s.handleSlots)
		r.Get("/{slotID}/keys", s.handleSlotKeys)
		r.Post("/{slotID}/command", s.handleSlotCommand)
	})
	return r
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.set.WritePrometheus(w)
	s.executor.WritePrometheus(w)
	vm.WriteProcessMetrics(w)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.executor.Stats())
}

func (s *Server) handleSlots(w http.ResponseWriter, _ *http.Request) {
	ids := s.executor.IndexedSlots()
	out := make([]slotInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, slotInfo{Slot: id, Keys: s.executor.SlotLen(id)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSlotKeys(w http.ResponseWriter, r *http.Request) {
	slotID, ok := s.slotParam(w, r)
	if !ok {
		return
	}
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	writeJSON(w, http.StatusOK, slotKeys{Slot: slotID, Keys: s.executor.SlotKeys(slotID, pattern)})
}

// handleSlotCommand runs the JSON encoded argument vector of the body on one
// slot and answers with the formatted reply
func (s *Server) handleSlotCommand(w http.ResponseWriter, r *http.Request) {
	slotID, ok := s.slotParam(w, r)
	if !ok {
		return
	}

	var argv []string
	if err := json.NewDecoder(r.Body).Decode(&argv); err != nil {
		http.Error(w, "Body must be a JSON array of strings", http.StatusBadRequest)
		return
	}

	raw := s.executor.ExecuteOn(slotID, argv)
	v, err := resp.ReadReply(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		http.Error(w, "Failed to decode reply", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if v.IsError() {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(v.String() + "\n"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// slotParam parses the slot id of the path and checks it exists
func (s *Server) slotParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	slotID, err := strconv.ParseUint(chi.URLParam(r, "slotID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid slotID", http.StatusBadRequest)
		return 0, false
	}
	if s.executor.Env(slotID) == nil {
		http.Error(w, "Slot not found", http.StatusNotFound)
		return 0, false
	}
	return slotID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("failed to encode response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(rw, r)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
