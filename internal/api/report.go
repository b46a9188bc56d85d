package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/strike.report/internal/db"
	"github.com/banshee-data/strike.report/internal/httputil"
	"github.com/banshee-data/strike.report/internal/units"
)

// showSessionReport renders a quick HTML report for one session: a strike
// timeline (time vs speed, one series per punch type) and a combination
// frequency bar chart. This is a coaching/debugging view, not the UI.
func (s *Server) showSessionReport(w http.ResponseWriter, r *http.Request) {
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
	combos, err := s.store.ListCombinationsBySession(sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load combinations: %v", err))
		return
	}

	page := components.NewPage()
	page.AddCharts(s.strikeTimelineChart(sessionID, strikes), combinationChart(sessionID, combos))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(w); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render report: %v", err))
	}
}

// strikeTimelineChart plots each strike at (seconds into session, speed).
func (s *Server) strikeTimelineChart(sessionID int64, strikes []db.Strike) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Session %d strike timeline", sessionID),
			Subtitle: fmt.Sprintf("speed in %s", s.units),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seconds", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed", Type: "value"}),
	)

	if len(strikes) == 0 {
		return scatter
	}
	origin := strikes[0].Timestamp

	byType := make(map[string][]opts.ScatterData)
	for _, strike := range strikes {
		byType[strike.PunchType] = append(byType[strike.PunchType], opts.ScatterData{
			Value: []interface{}{
				strike.Timestamp - origin,
				units.ConvertSpeed(strike.Speed, s.units, s.pxPerMeter),
			},
		})
	}
	for punchType, points := range byType {
		scatter.AddSeries(punchType, points)
	}
	return scatter
}

// combinationChart plots each recorded sequence against its frequency.
func combinationChart(sessionID int64, combos []db.Combination) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Session %d combinations", sessionID),
		}),
	)

	labels := make([]string, len(combos))
	values := make([]opts.BarData, len(combos))
	for i, combo := range combos {
		labels[i] = fmt.Sprintf("fighter %d: %s", combo.FighterID, combo.Sequence)
		values[i] = opts.BarData{Value: combo.Frequency}
	}
	bar.SetXAxis(labels).AddSeries("occurrences", values)
	return bar
}
