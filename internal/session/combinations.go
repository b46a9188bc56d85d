package session

import (
	"strings"
	"time"

	"github.com/banshee-data/strike.report/internal/db"
	"github.com/banshee-data/strike.report/internal/monitoring"
)

// updateCombinations feeds one strike into the fighter's window.
// Segmentation-by-silence: a gap beyond ComboGapBreak clears the window
// before appending, so strikes on either side of a pause never share a
// record. A window closing at ComboMinLength within ComboWindowSpan yields
// exactly one record update and is then cleared — no sliding counts.
func (e *Engine) updateCombinations(st *state, fighterID int64, label string, ts time.Time) error {
	window := st.windows[fighterID]

	if len(window) > 0 && ts.Sub(window[len(window)-1].Time) > e.cfg.ComboGapBreak {
		window = window[:0]
	}
	window = append(window, comboEntry{Label: label, Time: ts})

	if len(window) >= e.cfg.ComboMinLength &&
		window[len(window)-1].Time.Sub(window[0].Time) <= e.cfg.ComboWindowSpan {
		if err := e.recordCombination(st, fighterID, window); err != nil {
			st.windows[fighterID] = window
			return err
		}
		window = window[:0]
	}

	st.windows[fighterID] = window
	return nil
}

// finalizeCombinations persists leftover windows at session end. Shorter
// partial combinations count here (ComboFinalizeMinLength); each window is
// cleared once its write is acknowledged.
func (e *Engine) finalizeCombinations(st *state) error {
	for fighterID, window := range st.windows {
		if len(window) < e.cfg.ComboFinalizeMinLength {
			continue
		}
		if err := e.recordCombination(st, fighterID, window); err != nil {
			return err
		}
		st.windows[fighterID] = nil
	}
	return nil
}

// recordCombination merges a closed window into the store as one record.
func (e *Engine) recordCombination(st *state, fighterID int64, window []comboEntry) error {
	labels := make([]string, len(window))
	for i, entry := range window {
		labels[i] = entry.Label
	}

	err := e.store.UpsertCombination(db.Combination{
		SessionID: st.id,
		FighterID: fighterID,
		Sequence:  strings.Join(labels, "-"),
		StartTime: unixSeconds(window[0].Time),
		EndTime:   unixSeconds(window[len(window)-1].Time),
	})
	if err != nil {
		return err
	}
	monitoring.CombinationsRecorded.Inc()
	return nil
}
