// Package httpapi exposes the queue layer over REST plus a websocket stream
// for the live list view.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	app "github.com/stone-edge/queue_layer/internal/app"
	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
	"github.com/stone-edge/queue_layer/internal/app/metrics"
	"github.com/stone-edge/queue_layer/internal/app/services/observations"
	"github.com/stone-edge/queue_layer/internal/app/services/programs"
	"github.com/stone-edge/queue_layer/internal/app/storage"
	"github.com/stone-edge/queue_layer/internal/app/validation"
	"github.com/stone-edge/queue_layer/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	// JWTSecret verifies bearer tokens; empty falls back to the X-User-ID
	// header (development only).
	JWTSecret string
	// RequestsPerSecond/Burst tune the per-caller limiter; zero disables it.
	RequestsPerSecond int
	Burst             int
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns the composed HTTP handler: identity extraction, rate
// limiting and metrics wrapped around the REST routes.
func NewHandler(application *app.Application, opts Options, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/programs", h.programs)
	mux.HandleFunc("/programs/", h.programResource)
	mux.HandleFunc("/observations", h.observations)
	mux.HandleFunc("/observations/", h.observationResource)

	var wrapped http.Handler = mux
	if opts.RequestsPerSecond > 0 {
		wrapped = newRateLimiter(opts.RequestsPerSecond, opts.Burst, log).handler(wrapped)
	}
	wrapped = identityMiddleware(wrapped, opts.JWTSecret)
	return metrics.InstrumentHandler(wrapped)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- programs ---------------------------------------------------------------

func (h *handler) programs(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Programs.Create(r.Context(), caller, payload.Name)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		list, err := h.app.Programs.List(r.Context(), caller)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) programResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/programs"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := h.app.Programs.Get(r.Context(), caller, id)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPatch:
		var payload struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		p, err := h.app.Programs.Rename(r.Context(), caller, id, payload.Name)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- observations -----------------------------------------------------------

// submitPayload mirrors the request form: the validated fields arrive raw,
// the filter toggles as booleans, the option strings opaque.
type submitPayload struct {
	Program  string `json:"program"`
	Target   string `json:"target"`
	ExpTime  string `json:"exptime"`
	ExpCount string `json:"expcount"`
	Binning  string `json:"binning"`

	Filters map[string]bool `json:"filters"`

	Lunar     string `json:"lunar"`
	Airmass   string `json:"airmass"`
	OffsetRA  string `json:"offset_ra"`
	OffsetDec string `json:"offset_dec"`
}

func (p submitPayload) form() validation.Form {
	sel := observation.FilterSelection{}
	for name, checked := range p.Filters {
		sel[observation.FilterToggle(name)] = checked
	}
	return validation.Form{
		Fields: map[string]string{
			validation.FieldProgram:  p.Program,
			validation.FieldTarget:   p.Target,
			validation.FieldExpTime:  p.ExpTime,
			validation.FieldExpCount: p.ExpCount,
			validation.FieldBinning:  p.Binning,
		},
		Filters: sel,
		Options: observation.Options{
			Lunar:     p.Lunar,
			Airmass:   p.Airmass,
			OffsetRA:  p.OffsetRA,
			OffsetDec: p.OffsetDec,
		},
	}
}

func (h *handler) observations(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload submitPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Observations.Submit(r.Context(), caller, payload.form())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		list, err := h.app.Observations.List(r.Context(), caller)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) observationResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/observations"), "/")
	switch rest {
	case "":
		w.WriteHeader(http.StatusNotFound)
		return
	case "rows":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rows, err := h.app.Observations.Rows(r.Context(), caller)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
		return
	case "pending":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		list, err := h.app.Observations.ListPending(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	case "watch":
		h.watch(w, r, caller)
		return
	}

	if strings.Contains(rest, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := rest

	switch r.Method {
	case http.MethodGet:
		req, err := h.app.Observations.Get(r.Context(), caller, id)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)

	case http.MethodPatch:
		var payload struct {
			Completed *bool `json:"completed"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Completed == nil {
			writeError(w, http.StatusBadRequest, errors.New("completed is required"))
			return
		}
		updated, err := h.app.Observations.SetCompleted(r.Context(), caller, id, *payload.Completed)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := h.app.Observations.Remove(r.Context(), caller, id); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- error mapping ----------------------------------------------------------

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	var transient *storage.TransientError

	switch {
	case errors.As(err, &verrs):
		writeJSONError(w, http.StatusUnprocessableEntity, "validation failed", verrs)
	case errors.Is(err, observations.ErrUnauthenticated) || errors.Is(err, programs.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, observations.ErrForbidden) || errors.Is(err, programs.ErrForbidden):
		writeError(w, http.StatusForbidden, errors.New("permission denied"))
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, errors.New("that record no longer exists"))
	case errors.As(err, &transient):
		writeError(w, http.StatusServiceUnavailable, errors.New("the store is unavailable; please try again"))
	default:
		h.log.WithError(err).Error("unhandled service error")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSONError(w http.ResponseWriter, status int, msg string, fields validation.Errors) {
	writeJSON(w, status, map[string]any{"error": msg, "fields": fields})
}
