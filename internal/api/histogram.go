package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/strike.report/internal/db"
	"github.com/banshee-data/strike.report/internal/httputil"
	"github.com/banshee-data/strike.report/internal/units"
)

const histogramBins = 16

// showSpeedHistogram renders a PNG histogram of strike speeds for one
// session. Useful for eyeballing the threshold tuning against a recording.
func (s *Server) showSpeedHistogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessionID, err := queryID(r, "session_id")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if _, err := s.store.GetSession(sessionID); errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "Session not found")
		return
	} else if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load session: %v", err))
		return
	}

	strikes, err := s.store.ListStrikesBySession(sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load strikes: %v", err))
		return
	}
	if len(strikes) == 0 {
		httputil.NotFound(w, "No strikes recorded for session")
		return
	}

	speeds := make(plotter.Values, len(strikes))
	for i, strike := range strikes {
		speeds[i] = units.ConvertSpeed(strike.Speed, s.units, s.pxPerMeter)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %d strike speeds", sessionID)
	p.X.Label.Text = fmt.Sprintf("speed (%s)", s.units)
	p.Y.Label.Text = "strikes"

	hist, err := plotter.NewHist(speeds, histogramBins)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to build histogram: %v", err))
		return
	}
	p.Add(hist)

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render histogram: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		log.Printf("speeds.png write failed: %v", err)
	}
}
