package web

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"cyclecal/internal/config"
	"cyclecal/internal/cycle"
	"cyclecal/internal/feeds"
	"cyclecal/internal/ics"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/registry"
	"cyclecal/internal/schedule"
)

// Server exposes one project over HTTP. Every handler runs under mu, so the
// planner (which is not safe for concurrent use) sees one caller at a time.
type Server struct {
	mu      sync.Mutex
	cfg     *config.Config
	path    string
	planner *schedule.Planner

	collector *feeds.Collector
	mux       *http.ServeMux
}

// NewServer constructs a Server. Mutations are written back to the project
// file at path; an empty path keeps them in memory. collector may be nil, in
// which case feed refresh is unavailable.
func NewServer(cfg *config.Config, path string, p *schedule.Planner, collector *feeds.Collector) *Server {
	s := &Server{
		cfg:       cfg,
		path:      path,
		planner:   p,
		collector: collector,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="CycleCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
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
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/export.ics", s.handleExport)
	s.mux.HandleFunc("PUT /api/config", s.handleConfig)
	s.mux.HandleFunc("POST /api/exceptions/toggle", s.handleToggleException)
	s.mux.HandleFunc("PUT /api/overrides", s.handleOverride)
	s.mux.HandleFunc("POST /api/classes", s.handleClasses)
	s.mux.HandleFunc("PUT /api/periods", s.handlePeriods)
	s.mux.HandleFunc("POST /api/rooms", s.handleAddRoom)
	s.mux.HandleFunc("DELETE /api/rooms", s.handleRemoveRoom)
	s.mux.HandleFunc("POST /api/feeds/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	Version      uint64                   `json:"version"`
	Calendar     model.CycleConfiguration `json:"calendar"`
	BellSchedule []model.BellPeriod       `json:"bell_schedule"`
	Rooms        []string                 `json:"rooms"`
	Days         []model.GeneratedDay     `json:"days"`
}

// handleSchedule returns the generated schedule.
//
// GET /api/schedule?from=2024-09-01&to=2024-09-30
//   - from, to: optional inclusive bounds on the returned days
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDateParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := parseDateParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	days, err := s.planner.Generated()
	if err != nil {
		appLog.Error("api schedule: generate failed", err)
		writeError(w, http.StatusInternalServerError, "failed to generate schedule")
		return
	}
	out := make([]model.GeneratedDay, 0, len(days))
	for _, d := range days {
		if !from.IsZero() && d.Date.Before(from) {
			continue
		}
		if !to.IsZero() && d.Date.After(to) {
			continue
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, scheduleResponse{
		Version:      s.planner.Version(),
		Calendar:     s.planner.Config(),
		BellSchedule: s.planner.BellSchedule().Periods(),
		Rooms:        s.planner.Rooms(),
		Days:         out,
	})
}

// handleExport serves the iCalendar file. The ETag covers the generator
// inputs and the bell schedule, not DTSTAMP, so an unchanged project
// revalidates with 304.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	etag, err := s.exportETag()
	if err != nil {
		appLog.Error("api export: fingerprint failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var b strings.Builder
	if err := s.planner.Export(&b); err != nil {
		appLog.Error("api export failed", err)
		if errors.Is(err, model.ErrInvalid) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to export")
		return
	}

	name := s.cfg.ExportName
	if name == "" {
		name = ics.DefaultFileName
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) exportETag() (string, error) {
	key, err := cycle.FingerprintOf(cycle.Input{
		Config:     s.planner.Config(),
		Exceptions: s.planner.Exceptions(),
		Overrides:  s.planner.Overrides(),
		Classes:    s.planner.Classes(),
	})
	if err != nil {
		return "", err
	}
	h := blake3.New()
	_, _ = h.Write(key[:])
	for _, p := range s.planner.BellSchedule().Periods() {
		_, _ = h.Write([]byte(p.Start + "-" + p.End + ";"))
	}
	return `"` + hex.EncodeToString(h.Sum(nil)[:16]) + `"`, nil
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var cal model.CycleConfiguration
	if !decodeJSON(w, r, &cal) {
		return
	}
	s.mutate(w, func(p *schedule.Planner) (any, error) {
		if err := p.SetConfig(cal); err != nil {
			return nil, err
		}
		return p.Config(), nil
	})
}

type toggleRequest struct {
	Date model.Date    `json:"date"`
	Type model.DayType `json:"type"`
}

// handleToggleException flips one date between School and the given type.
//
// POST /api/exceptions/toggle {"date":"2024-03-12","type":"Holiday"}
func (s *Server) handleToggleException(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if req.Type == "" {
		req.Type = model.Holiday
	}
	s.mutate(w, func(p *schedule.Planner) (any, error) {
		if err := p.ToggleException(req.Date, req.Type); err != nil {
			return nil, err
		}
		return toggleRequest{Date: req.Date, Type: p.Exceptions().Get(req.Date)}, nil
	})
}

type overrideRequest struct {
	Date model.Date `json:"date"`
	// Cycle nil or absent clears the override.
	Cycle *int `json:"cycle"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	s.mutate(w, func(p *schedule.Planner) (any, error) {
		if err := p.SetCycleOverride(req.Date, req.Cycle); err != nil {
			return nil, err
		}
		return req, nil
	})
}

// classRequest is either a batch (Updates) or one field edit.
type classRequest struct {
	Updates []registry.ClassUpdate `json:"updates"`

	Day    int                 `json:"day"`
	Period int                 `json:"period"`
	Field  registry.ClassField `json:"field"`
	Value  string              `json:"value"`
}

// handleClasses edits the class table.
//
// POST /api/classes {"updates":[{"day":1,"period":0,"info":{"name":"Math"}}]}
// POST /api/classes {"day":1,"period":0,"field":"room","value":"101"}
func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.mutate(w, func(p *schedule.Planner) (any, error) {
		if len(req.Updates) > 0 {
			if err := p.UpdateClassBatch(req.Updates); err != nil {
				return nil, err
			}
			return map[string]int{"updated": len(req.Updates)}, nil
		}
		if err := p.UpdateClass(req.Day, req.Period, req.Field, req.Value); err != nil {
			return nil, err
		}
		return p.GetClass(req.Day, req.Period), nil
	})
}

// periodsRequest carries exactly one of: a new period count, one bell edit
// (Index with Start/End), or a reset to the default bells.
type periodsRequest struct {
	Count *int   `json:"count"`
	Index *int   `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
	Reset bool   `json:"reset"`
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	var req periodsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.mutate(w, func(p *schedule.Planner) (any, error) {
		var err error
		switch {
		case req.Reset:
			p.ResetBellSchedule()
		case req.Count != nil:
			err = p.UpdatePeriodCount(*req.Count)
		case req.Index != nil:
			err = p.SetBell(*req.Index, model.BellPeriod{Start: req.Start, End: req.End})
		default:
			err = errors.New("web: one of count, index or reset is required")
		}
		if err != nil {
			return nil, err
		}
		return p.BellSchedule().Periods(), nil
	})
}

type roomRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.mutate(w, func(p *schedule.Planner) (any, error) {
		p.AddRoom(req.Name)
		return p.Rooms(), nil
	})
}

// DELETE /api/rooms?name=101
func (s *Server) handleRemoveRoom(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	s.mutate(w, func(p *schedule.Planner) (any, error) {
		p.RemoveRoom(name)
		return p.Rooms(), nil
	})
}

type refreshResponse struct {
	Changed int    `json:"changed"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "feed refresh unavailable")
		return
	}
	changed, err := s.RefreshFeeds(r.Context())
	resp := refreshResponse{Changed: changed}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefreshFeeds imports every configured feed over the calendar range. The
// network work runs without the lock; only applying the marks holds it.
// Marks from feeds that succeeded are applied even when others fail.
func (s *Server) RefreshFeeds(ctx context.Context) (int, error) {
	if s.collector == nil {
		return 0, errors.New("web: no feed collector")
	}
	s.mu.Lock()
	list := append([]config.FeedConfig(nil), s.cfg.Feeds...)
	cal := s.planner.Config()
	s.mu.Unlock()

	marks, collectErr := s.collector.Collect(ctx, list, cal.StartDate, cal.EndDate)

	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.planner.State()
	changed, err := feeds.Apply(s.planner, marks)
	if changed > 0 {
		if perr := s.persist(saved); perr != nil {
			return 0, perr
		}
	}
	if err != nil {
		return changed, err
	}
	appLog.Info("feeds applied", "feeds", len(list), "marks", len(marks), "changed", changed)
	return changed, collectErr
}

// mutate runs fn under the lock, persists on success and writes fn's result
// as JSON. The planner is rolled back if fn fails or the save does.
func (s *Server) mutate(w http.ResponseWriter, fn func(p *schedule.Planner) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.planner.State()
	resp, err := fn(s.planner)
	if err != nil {
		s.planner.Restore(saved)
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.persist(saved); err != nil {
		appLog.Error("failed to save project", err, "path", s.path)
		writeError(w, http.StatusInternalServerError, "failed to save project")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// persist saves the project. On failure the planner and cfg go back to
// saved so memory keeps matching the file on disk. mu must be held.
func (s *Server) persist(saved schedule.State) error {
	s.planner.WriteTo(s.cfg)
	if s.path == "" {
		return nil
	}
	if err := config.Save(s.path, s.cfg); err != nil {
		s.planner.Restore(saved)
		s.planner.WriteTo(s.cfg)
		return err
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrOutOfRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func parseDateParam(s string) (model.Date, error) {
	if s == "" {
		return model.Date{}, nil
	}
	return model.ParseDate(s)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
