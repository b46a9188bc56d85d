package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/strike.report/internal/capture"
	"github.com/banshee-data/strike.report/internal/db"
	"github.com/banshee-data/strike.report/internal/session"
	"github.com/banshee-data/strike.report/internal/testutil"
)

// stubSource satisfies the engine without a camera.
type stubSource struct{}

func (stubSource) Start(ctx context.Context) error { return nil }

func (stubSource) Stop() {}

func (stubSource) LatestResult() (capture.Result, bool) { return capture.Result{}, false }

type testServer struct {
	store  *db.DB
	engine *session.Engine
	ts     *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "strike_test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := session.NewEngine(store, stubSource{}, session.DefaultConfig())
	srv := NewServer(context.Background(), store, engine, "pxps", 0, "")
	ts := httptest.NewServer(srv.ServeMux())
	t.Cleanup(ts.Close)

	return &testServer{store: store, engine: engine, ts: ts}
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, data
}

func (s *testServer) createFighter(t *testing.T, name string) db.Fighter {
	t.Helper()
	resp, data := s.request(t, http.MethodPost, "/fighters", db.Fighter{
		Name: name, WeightClass: "middleweight", Height: 180, Reach: 185, Stance: "orthodox",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create fighter: got status %d: %s", resp.StatusCode, data)
	}
	var f db.Fighter
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("failed to decode fighter: %v", err)
	}
	return f
}

func TestFighterEndpoints(t *testing.T) {
	s := newTestServer(t)

	f := s.createFighter(t, "Ana Silva")
	if f.ID == 0 {
		t.Fatal("created fighter has no ID")
	}

	resp, data := s.request(t, http.MethodGet, fmt.Sprintf("/fighters?id=%d", f.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get fighter: status %d", resp.StatusCode)
	}
	var got db.Fighter
	json.Unmarshal(data, &got)
	if got.Name != "Ana Silva" {
		t.Errorf("got name %q", got.Name)
	}

	s.createFighter(t, "Marco Reyes")
	resp, data = s.request(t, http.MethodGet, "/fighters", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list fighters: status %d", resp.StatusCode)
	}
	var fighters []db.Fighter
	json.Unmarshal(data, &fighters)
	if len(fighters) != 2 {
		t.Errorf("got %d fighters, want 2", len(fighters))
	}

	got.Stance = "southpaw"
	resp, _ = s.request(t, http.MethodPut, fmt.Sprintf("/fighters?id=%d", f.ID), got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update fighter: status %d", resp.StatusCode)
	}

	resp, _ = s.request(t, http.MethodDelete, fmt.Sprintf("/fighters?id=%d", f.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete fighter: status %d", resp.StatusCode)
	}
	resp, _ = s.request(t, http.MethodGet, fmt.Sprintf("/fighters?id=%d", f.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted fighter: status %d, want 404", resp.StatusCode)
	}
}

func TestFighterEndpointErrors(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.request(t, http.MethodGet, "/fighters?id=abc", nil)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)

	resp, _ = s.request(t, http.MethodPatch, "/fighters", nil)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusMethodNotAllowed)

	resp, _ = s.request(t, http.MethodDelete, "/fighters?id=999", nil)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t)
	f := s.createFighter(t, "Ana Silva")

	resp, _ := s.request(t, http.MethodPost, "/sessions/start", map[string][]int64{"fighter_ids": {999}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown roster: status %d, want 400", resp.StatusCode)
	}

	resp, data := s.request(t, http.MethodPost, "/sessions/start", map[string][]int64{"fighter_ids": {f.ID}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session: status %d: %s", resp.StatusCode, data)
	}
	var started map[string]int64
	json.Unmarshal(data, &started)
	id := started["session_id"]
	if id == 0 {
		t.Fatal("no session_id returned")
	}
	if !s.engine.Active(id) {
		t.Fatal("session not active after start")
	}

	resp, _ = s.request(t, http.MethodPost, "/sessions/end", map[string]int64{"session_id": id})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end session: status %d", resp.StatusCode)
	}
	resp, _ = s.request(t, http.MethodPost, "/sessions/end", map[string]int64{"session_id": id})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double end: status %d, want 404", resp.StatusCode)
	}
}

// seedStrikes writes strikes straight to the store, standing in for a
// completed processing run.
func seedStrikes(t *testing.T, s *testServer) (sessionID, fighterID int64) {
	t.Helper()
	f := s.createFighter(t, "Ana Silva")
	sessionID, err := s.store.CreateSession([]int64{f.ID}, time.Now())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	err = s.store.InsertStrikes([]db.Strike{
		{SessionID: sessionID, FighterID: f.ID, PunchType: "Jab Right", Timestamp: 100, Speed: 150},
		{SessionID: sessionID, FighterID: f.ID, PunchType: "Jab Right", Timestamp: 100.8, Speed: 250},
		{SessionID: sessionID, FighterID: f.ID, PunchType: "Hook Left", Timestamp: 101.5, Speed: 200},
	})
	if err != nil {
		t.Fatalf("failed to insert strikes: %v", err)
	}
	err = s.store.UpsertCombination(db.Combination{
		SessionID: sessionID, FighterID: f.ID,
		Sequence: "Jab Right-Jab Right-Hook Left", StartTime: 100, EndTime: 101.5,
	})
	if err != nil {
		t.Fatalf("failed to upsert combination: %v", err)
	}
	return sessionID, f.ID
}

func TestSessionStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	sessionID, _ := seedStrikes(t, s)

	resp, data := s.request(t, http.MethodGet, fmt.Sprintf("/session_stats?session_id=%d", sessionID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d: %s", resp.StatusCode, data)
	}
	var out struct {
		Stats        db.SessionStats  `json:"stats"`
		Combinations []db.Combination `json:"combinations"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if out.Stats.TotalStrikes != 3 {
		t.Errorf("got %d strikes, want 3", out.Stats.TotalStrikes)
	}
	if out.Stats.ByType["Jab Right"] != 2 {
		t.Errorf("got by-type %v", out.Stats.ByType)
	}
	if out.Stats.MaxSpeed != 250 {
		t.Errorf("got max speed %v, want 250", out.Stats.MaxSpeed)
	}
	if len(out.Combinations) != 1 {
		t.Errorf("got %d combinations, want 1", len(out.Combinations))
	}

	resp, _ = s.request(t, http.MethodGet, "/session_stats?session_id=999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: status %d, want 404", resp.StatusCode)
	}
}

func TestEventsEndpoint(t *testing.T) {
	s := newTestServer(t)
	seedStrikes(t, s)

	resp, data := s.request(t, http.MethodGet, "/events?limit=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events: status %d", resp.StatusCode)
	}
	var page struct {
		Strikes            []db.Strike      `json:"strikes"`
		Combinations       []db.Combination `json:"combinations"`
		StrikesCursor      int64            `json:"strikes_cursor"`
		CombinationsCursor int64            `json:"combinations_cursor"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(page.Strikes) != 2 {
		t.Fatalf("got %d strikes, want limit of 2", len(page.Strikes))
	}
	if page.StrikesCursor != page.Strikes[1].ID {
		t.Errorf("strikes cursor %d does not match last id %d", page.StrikesCursor, page.Strikes[1].ID)
	}

	// Resume from the cursor: only the remaining strike comes back.
	resp, data = s.request(t, http.MethodGet,
		fmt.Sprintf("/events?strikes_since=%d&combinations_since=%d", page.StrikesCursor, page.CombinationsCursor), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events page 2: status %d", resp.StatusCode)
	}
	json.Unmarshal(data, &page)
	if len(page.Strikes) != 1 {
		t.Errorf("got %d strikes on page 2, want 1", len(page.Strikes))
	}
	if len(page.Combinations) != 0 {
		t.Errorf("got %d combinations on page 2, want 0", len(page.Combinations))
	}

	resp, _ = s.request(t, http.MethodGet, "/events?limit=5000", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("oversized limit: status %d, want 400", resp.StatusCode)
	}
	resp, _ = s.request(t, http.MethodGet, "/events?strikes_since=-1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative cursor: status %d, want 400", resp.StatusCode)
	}
}

func TestVideoEndpoints(t *testing.T) {
	s := newTestServer(t)
	sessionID, _ := seedStrikes(t, s)

	resp, data := s.request(t, http.MethodPost, "/videos", db.Video{
		SessionID: sessionID, CameraID: 0,
		FilePath: "/var/lib/strike/videos/s1_cam0.mp4", StartTime: time.Now(), Duration: 90,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create video: status %d: %s", resp.StatusCode, data)
	}

	resp, data = s.request(t, http.MethodGet, fmt.Sprintf("/videos?session_id=%d", sessionID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list videos: status %d", resp.StatusCode)
	}
	var videos []db.Video
	json.Unmarshal(data, &videos)
	if len(videos) != 1 {
		t.Errorf("got %d videos, want 1", len(videos))
	}
}

func TestVideoPathValidation(t *testing.T) {
	store, err := db.NewDB(filepath.Join(t.TempDir(), "strike_test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	videosDir := t.TempDir()
	engine := session.NewEngine(store, stubSource{}, session.DefaultConfig())
	srv := NewServer(context.Background(), store, engine, "pxps", 0, videosDir)
	ts := httptest.NewServer(srv.ServeMux())
	t.Cleanup(ts.Close)
	s := &testServer{store: store, engine: engine, ts: ts}
	sessionID, _ := seedStrikes(t, s)

	resp, data := s.request(t, http.MethodPost, "/videos", db.Video{
		SessionID: sessionID, FilePath: filepath.Join(videosDir, "s1_cam0.mp4"), StartTime: time.Now(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("in-dir video: status %d: %s", resp.StatusCode, data)
	}

	resp, _ = s.request(t, http.MethodPost, "/videos", db.Video{
		SessionID: sessionID, FilePath: filepath.Join(videosDir, "..", "escape.mp4"), StartTime: time.Now(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("traversal path: status %d, want 400", resp.StatusCode)
	}

	resp, _ = s.request(t, http.MethodPost, "/videos", db.Video{
		SessionID: sessionID, FilePath: "/etc/passwd", StartTime: time.Now(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("absolute outside path: status %d, want 400", resp.StatusCode)
	}
}

func TestReportEndpoint(t *testing.T) {
	s := newTestServer(t)
	sessionID, _ := seedStrikes(t, s)

	resp, data := s.request(t, http.MethodGet, fmt.Sprintf("/report?session_id=%d", sessionID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: status %d: %s", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("got content type %q", ct)
	}
	if len(data) == 0 {
		t.Error("empty report body")
	}

	resp, _ = s.request(t, http.MethodGet, "/report?session_id=999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: status %d, want 404", resp.StatusCode)
	}
}

func TestSpeedHistogramEndpoint(t *testing.T) {
	s := newTestServer(t)
	sessionID, _ := seedStrikes(t, s)

	resp, data := s.request(t, http.MethodGet, fmt.Sprintf("/speeds.png?session_id=%d", sessionID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("histogram: status %d: %s", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("got content type %q", ct)
	}
	// PNG magic bytes.
	if len(data) < 8 || data[0] != 0x89 || data[1] != 'P' {
		t.Error("body is not a PNG")
	}

	empty := newTestServer(t)
	f := empty.createFighter(t, "A")
	id, err := empty.store.CreateSession([]int64{f.ID}, time.Now())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	resp, _ = empty.request(t, http.MethodGet, fmt.Sprintf("/speeds.png?session_id=%d", id), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("session without strikes: status %d, want 404", resp.StatusCode)
	}
}

func TestConfigEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, data := s.request(t, http.MethodGet, "/config", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config: status %d", resp.StatusCode)
	}
	var cfg map[string]interface{}
	json.Unmarshal(data, &cfg)
	if cfg["units"] != "pxps" {
		t.Errorf("got units %v", cfg["units"])
	}
}
