// Package api serves the JSON surface for fighters, sessions, and the
// since-cursor event feed consumed by external relays.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/strike.report/internal/db"
	"github.com/banshee-data/strike.report/internal/httputil"
	"github.com/banshee-data/strike.report/internal/security"
	"github.com/banshee-data/strike.report/internal/session"
	"github.com/banshee-data/strike.report/internal/units"
	"github.com/banshee-data/strike.report/internal/version"
)

// ANSI escape codes for request logging
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	store      *db.DB
	engine     *session.Engine
	units      string
	pxPerMeter float64

	// videosDir, when set, constrains recorder-reported clip paths to
	// one directory. Empty disables the check.
	videosDir string

	// baseCtx bounds the per-session processing goroutines started by
	// the session-start handler.
	baseCtx context.Context
}

func NewServer(ctx context.Context, store *db.DB, engine *session.Engine, units string, pxPerMeter float64, videosDir string) *Server {
	return &Server{
		store:      store,
		engine:     engine,
		units:      units,
		pxPerMeter: pxPerMeter,
		videosDir:  videosDir,
		baseCtx:    ctx,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s %vms",
			statusCodeColor(lrw.statusCode), r.Method, r.URL.Path,
			time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/fighters", s.handleFighters)
	mux.HandleFunc("/sessions/start", s.startSession)
	mux.HandleFunc("/sessions/end", s.endSession)
	mux.HandleFunc("/session_stats", s.showSessionStats)
	mux.HandleFunc("/events", s.listEvents)
	mux.HandleFunc("/videos", s.handleVideos)
	mux.HandleFunc("/report", s.showSessionReport)
	mux.HandleFunc("/speeds.png", s.showSpeedHistogram)
	mux.HandleFunc("/config", s.showConfig)
	return mux
}

// queryID extracts an int64 query parameter.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing '%s' parameter", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid '%s' parameter", name)
	}
	return id, nil
}

// handleFighters dispatches fighter CRUD on one route: GET lists (or gets
// one with ?id=), POST creates, PUT updates ?id=, DELETE removes ?id=.
func (s *Server) handleFighters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("id") == "" {
			fighters, err := s.store.ListFighters()
			if err != nil {
				httputil.InternalServerError(w, fmt.Sprintf("Failed to list fighters: %v", err))
				return
			}
			httputil.WriteJSONOK(w, fighters)
			return
		}
		id, err := queryID(r, "id")
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		fighter, err := s.store.GetFighter(id)
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, "Fighter not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to load fighter: %v", err))
			return
		}
		httputil.WriteJSONOK(w, fighter)

	case http.MethodPost:
		var fighter db.Fighter
		if err := json.NewDecoder(r.Body).Decode(&fighter); err != nil {
			httputil.BadRequest(w, "Invalid fighter JSON")
			return
		}
		if err := s.store.CreateFighter(&fighter); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to create fighter: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, fighter)

	case http.MethodPut:
		id, err := queryID(r, "id")
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		var fighter db.Fighter
		if err := json.NewDecoder(r.Body).Decode(&fighter); err != nil {
			httputil.BadRequest(w, "Invalid fighter JSON")
			return
		}
		fighter.ID = id
		if err := s.store.UpdateFighter(&fighter); errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, "Fighter not found")
			return
		} else if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to update fighter: %v", err))
			return
		}
		httputil.WriteJSONOK(w, fighter)

	case http.MethodDelete:
		id, err := queryID(r, "id")
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.store.DeleteFighter(id); errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, "Fighter not found")
			return
		} else if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to delete fighter: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req struct {
		FighterIDs []int64 `json:"fighter_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "Invalid session JSON")
		return
	}

	id, err := s.engine.Start(s.baseCtx, req.FighterIDs)
	switch {
	case errors.Is(err, session.ErrEmptyRoster), errors.Is(err, session.ErrUnknownFighter):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to start session: %v", err))
		return
	}

	// Drive processing cycles for this session until it ends.
	go s.engine.Run(s.baseCtx, id)

	httputil.WriteJSON(w, http.StatusCreated, map[string]int64{"session_id": id})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req struct {
		SessionID int64 `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "Invalid session JSON")
		return
	}

	err := s.engine.End(req.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		httputil.NotFound(w, "Session not found or already ended")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to end session: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ended"})
}

func (s *Server) showSessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessionID, err := queryID(r, "session_id")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	stats, err := s.store.SessionStatsRollup(sessionID)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "Session not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve session stats: %v", err))
		return
	}
	stats.AvgSpeed = units.ConvertSpeed(stats.AvgSpeed, s.units, s.pxPerMeter)
	stats.MaxSpeed = units.ConvertSpeed(stats.MaxSpeed, s.units, s.pxPerMeter)

	combos, err := s.store.ListCombinationsBySession(sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve combinations: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"stats":        stats,
		"combinations": combos,
	})
}

// listEvents serves the polling relay: strikes and combinations with ids
// greater than the supplied cursors, in id order.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	parseCursor := func(name string) (int64, bool) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return 0, true
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		return v, true
	}

	strikeCursor, ok := parseCursor("strikes_since")
	if !ok {
		httputil.BadRequest(w, "Invalid 'strikes_since' parameter")
		return
	}
	comboCursor, ok := parseCursor("combinations_since")
	if !ok {
		httputil.BadRequest(w, "Invalid 'combinations_since' parameter")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 1000 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = v
	}

	strikes, err := s.store.ListStrikesSince(strikeCursor, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list strikes: %v", err))
		return
	}
	combos, err := s.store.ListCombinationsSince(comboCursor, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list combinations: %v", err))
		return
	}

	for i := range strikes {
		strikes[i].Speed = units.ConvertSpeed(strikes[i].Speed, s.units, s.pxPerMeter)
	}

	nextStrikeCursor := strikeCursor
	if n := len(strikes); n > 0 {
		nextStrikeCursor = strikes[n-1].ID
	}
	nextComboCursor := comboCursor
	if n := len(combos); n > 0 {
		nextComboCursor = combos[n-1].ID
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"strikes":             strikes,
		"combinations":        combos,
		"strikes_cursor":      nextStrikeCursor,
		"combinations_cursor": nextComboCursor,
	})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessionID, err := queryID(r, "session_id")
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		videos, err := s.store.ListVideosBySession(sessionID)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to list videos: %v", err))
			return
		}
		httputil.WriteJSONOK(w, videos)

	case http.MethodPost:
		var video db.Video
		if err := json.NewDecoder(r.Body).Decode(&video); err != nil {
			httputil.BadRequest(w, "Invalid video JSON")
			return
		}
		if s.videosDir != "" {
			if err := security.ValidatePathWithinDirectory(video.FilePath, s.videosDir); err != nil {
				httputil.BadRequest(w, fmt.Sprintf("Invalid video path: %v", err))
				return
			}
		}
		if err := s.store.CreateVideo(&video); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to create video: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, video)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":        s.units,
		"px_per_meter": s.pxPerMeter,
		"version":      version.Version,
		"git_sha":      version.GitSHA,
	})
}
