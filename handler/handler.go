// Package handler exposes a collection and a hash table over HTTP as JSON
// endpoints, one per store operation.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stevemurr/drapid/collection"
	"github.com/stevemurr/drapid/hashtable"
	"github.com/stevemurr/drapid/record"
	"github.com/stevemurr/drapid/store"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	collection *collection.Collection
	table      *hashtable.Table
	metrics    http.Handler
	mux        *http.ServeMux
}

// New creates a Handler and wires up all routes. table and metrics may be
// nil, in which case their routes are not registered.
func New(c *collection.Collection, t *hashtable.Table, metrics http.Handler) *Handler {
	h := &Handler{collection: c, table: t, metrics: metrics, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}

	// --- Collection ---
	h.mux.HandleFunc("GET /collection/records", h.recoverAll)
	h.mux.HandleFunc("POST /collection/records", h.include)
	h.mux.HandleFunc("POST /collection/find", h.find)
	h.mux.HandleFunc("POST /collection/recover", h.recoverMatching)
	h.mux.HandleFunc("POST /collection/combine", h.combine)
	h.mux.HandleFunc("POST /collection/exclude", h.exclude)
	h.mux.HandleFunc("POST /collection/persist", h.persist)

	// --- Hash table ---
	if h.table == nil {
		return
	}
	h.mux.HandleFunc("GET /table/stats", h.tableStats)
	h.mux.HandleFunc("POST /table/records", h.tableInclude)
	h.mux.HandleFunc("POST /table/find", h.tableFind)
	h.mux.HandleFunc("POST /table/recover", h.tableRecover)
	h.mux.HandleFunc("POST /table/combine", h.tableCombine)
	h.mux.HandleFunc("POST /table/exclude", h.tableExclude)
	h.mux.HandleFunc("POST /table/persist", h.tablePersist)
}

// ---------- helpers ----------

// query is the body shared by the lookup endpoints. Key is ignored by the
// table routes, which always address by primary key.
type query struct {
	Key   string        `json:"key"`
	Value any           `json:"value"`
	Patch record.Record `json:"patch"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, hashtable.ErrSlotOccupied):
		return http.StatusConflict
	case errors.Is(err, hashtable.ErrSlotEmpty):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConfiguration), errors.Is(err, hashtable.ErrMissingKeyValue):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrEncode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "drapid",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- collection ----------

func (h *Handler) recoverAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.collection.RecoverAll())
}

func (h *Handler) include(w http.ResponseWriter, r *http.Request) {
	var rec record.Record
	if err := readJSON(r, &rec); err != nil || rec == nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: expected an object")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"position": h.collection.Include(rec)})
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"positions": h.collection.Find(q.Key, q.Value)})
}

func (h *Handler) recoverMatching(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.collection.Recover(q.Key, q.Value))
}

func (h *Handler) combine(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	positions, err := h.collection.Combine(q.Value, q.Patch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"positions": positions})
}

func (h *Handler) exclude(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"positions": h.collection.Exclude(q.Key, q.Value)})
}

func (h *Handler) persist(w http.ResponseWriter, _ *http.Request) {
	if err := h.collection.Persist(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"persisted": true})
}

// ---------- hash table ----------

func (h *Handler) tableStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"key":      h.table.PrimaryKey(),
		"capacity": h.table.Capacity(),
		"count":    h.table.Count(),
	})
}

func (h *Handler) tableInclude(w http.ResponseWriter, r *http.Request) {
	var rec record.Record
	if err := readJSON(r, &rec); err != nil || rec == nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: expected an object")
		return
	}
	slot, err := h.table.Include(rec)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"slot": slot})
}

func (h *Handler) tableFind(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"slot": h.table.Find(q.Value)})
}

func (h *Handler) tableRecover(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rec, ok := h.table.Recover(q.Value)
	if !ok {
		writeError(w, http.StatusNotFound, "slot empty")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) tableCombine(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	slot, err := h.table.Combine(q.Value, q.Patch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"slot": slot})
}

func (h *Handler) tableExclude(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := readJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"slot": h.table.Exclude(q.Value)})
}

func (h *Handler) tablePersist(w http.ResponseWriter, _ *http.Request) {
	if err := h.table.Persist(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"persisted": true})
}
