// Package http serves monitor entries over HTTP.
//
// Responses are encoded with the payload codec matching the request's
// Accept header: application/json (default), application/msgpack, or
// application/protobuf carrying a google.protobuf.Struct.
//
// Routes:
//
//	GET    /v1/monitor/entries                              list with query filters
//	GET    /v1/monitor/entries/count                        count with query filters
//	GET    /v1/monitor/entries/{firing_id}                  entries of one firing
//	GET    /v1/monitor/entries/{firing_id}/{subscription_id} one entry
//	DELETE /v1/monitor/entries?older_than=24h               cleanup
package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rbaliyan/observable/monitor"
	"github.com/rbaliyan/observable/payload"
	"github.com/rbaliyan/observable/ratelimit"
	"google.golang.org/protobuf/types/known/structpb"
)

// Handler implements http.Handler for a monitor store.
type Handler struct {
	store   monitor.Store
	mux     *http.ServeMux
	limiter   ratelimit.Limiter
	perClient *ratelimit.Keyed
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimit rejects requests with 429 Too Many Requests once rps
// requests per second, with bursts of up to burst, are exceeded.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		h.limiter = ratelimit.NewTokenBucket(rps, burst)
	}
}

// WithClientRateLimit gives every client address its own token bucket of
// rps requests per second with bursts of up to burst. It applies after the
// limit set by WithRateLimit or WithLimiter.
func WithClientRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		h.perClient = ratelimit.NewKeyed(rps, burst)
	}
}

// WithLimiter sets the limiter admitting requests.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(h *Handler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// WithLogger sets the logger for failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a new HTTP handler for the monitor store.
func New(store monitor.Store, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		mux:    http.NewServeMux(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "monitor>http")

	h.mux.HandleFunc("GET /v1/monitor/entries", h.handleList)
	h.mux.HandleFunc("DELETE /v1/monitor/entries", h.handleDelete)
	h.mux.HandleFunc("GET /v1/monitor/entries/count", h.handleCount)
	h.mux.HandleFunc("GET /v1/monitor/entries/{firing_id}", h.handleGetByFiringID)
	h.mux.HandleFunc("GET /v1/monitor/entries/{firing_id}/{subscription_id}", h.handleGetEntry)

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(r.Context()) {
		h.writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if h.perClient != nil && !h.perClient.For(clientAddr(r)).Allow(r.Context()) {
		h.writeError(w, r, http.StatusTooManyRequests, "client rate limit exceeded")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// clientAddr returns the host part of the request's remote address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type getResponse struct {
	Entry *monitor.Entry `json:"entry" msgpack:"entry"`
}

type getByFiringIDResponse struct {
	Entries []*monitor.Entry `json:"entries" msgpack:"entries"`
}

type countResponse struct {
	Count int64 `json:"count" msgpack:"count"`
}

type deleteResponse struct {
	Deleted int64 `json:"deleted" msgpack:"deleted"`
}

type errorResponse struct {
	Error string `json:"error" msgpack:"error"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if page.Entries == nil {
		page.Entries = []*monitor.Entry{}
	}
	h.writeResponse(w, r, page)
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.store.Get(r.Context(), r.PathValue("firing_id"), r.PathValue("subscription_id"))
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		h.writeError(w, r, http.StatusNotFound, "entry not found")
		return
	}
	h.writeResponse(w, r, getResponse{Entry: entry})
}

func (h *Handler) handleGetByFiringID(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.GetByFiringID(r.Context(), r.PathValue("firing_id"))
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*monitor.Entry{}
	}
	h.writeResponse(w, r, getByFiringIDResponse{Entries: entries})
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.store.Count(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeResponse(w, r, countResponse{Count: count})
}

// DefaultDeleteAge is the minimum age for deletion without force flag.
const DefaultDeleteAge = 24 * time.Hour

// handleDelete handles DELETE /v1/monitor/entries?older_than=1h.
// Entries newer than DefaultDeleteAge can only be deleted with force=true.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	age := DefaultDeleteAge
	if v := q.Get("older_than"); v != "" {
		var err error
		age, err = time.ParseDuration(v)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "invalid older_than duration: "+err.Error())
			return
		}
		if age <= 0 {
			h.writeError(w, r, http.StatusBadRequest, "older_than must be positive")
			return
		}
	}

	if age < DefaultDeleteAge && q.Get("force") != "true" {
		h.writeError(w, r, http.StatusBadRequest, "deleting entries newer than 24h requires force=true")
		return
	}

	deleted, err := h.store.DeleteOlderThan(r.Context(), age)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeResponse(w, r, deleteResponse{Deleted: deleted})
}

// parseFilter parses monitor.Filter from URL query parameters.
func parseFilter(r *http.Request) (monitor.Filter, error) {
	q := r.URL.Query()
	filter := monitor.Filter{
		FiringID:       q.Get("firing_id"),
		SubscriptionID: q.Get("subscription_id"),
		EventName:      q.Get("event_name"),
		DispatcherID:   q.Get("dispatcher_id"),
		Priority:       q.Get("priority"),
		Cursor:         q.Get("cursor"),
	}

	if v := q.Get("mode"); v != "" {
		m := monitor.ParseMode(v)
		filter.Mode = &m
	}
	for _, s := range q["status"] {
		filter.Status = append(filter.Status, monitor.Status(s))
	}
	if v := q.Get("has_error"); v != "" {
		hasErr := v == "true" || v == "1"
		filter.HasError = &hasErr
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid start_time: %w", err)
		}
		filter.StartTime = t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid end_time: %w", err)
		}
		filter.EndTime = t
	}
	if v := q.Get("min_duration"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return filter, fmt.Errorf("invalid min_duration: %w", err)
		}
		filter.MinDuration = d
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %w", err)
		}
		filter.Limit = n
	}
	if v := q.Get("order_desc"); v != "" {
		filter.OrderDesc = v == "true" || v == "1"
	}
	return filter, nil
}

// encode serializes v with c. Protobuf responses carry v as a
// google.protobuf.Struct built from its JSON form.
func encode(c payload.Codec, v any) ([]byte, error) {
	if _, ok := c.(payload.Proto); !ok {
		return c.Encode(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return c.Encode(st)
}

func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, v any) {
	h.write(w, r, http.StatusOK, v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	if code >= http.StatusInternalServerError {
		h.logger.Error("monitor request failed", "path", r.URL.Path, "error", message)
	}
	h.write(w, r, code, errorResponse{Error: message})
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, code int, v any) {
	c := payload.Negotiate(r.Header.Get("Accept"))
	data, err := encode(c, v)
	if err != nil {
		h.logger.Error("encode response failed", "content_type", c.ContentType(), "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(code)
	w.Write(data)
}
