package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/motsrares/internal/config"
	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/kv"
	"github.com/robalobadob/motsrares/internal/leaderboard"
	"github.com/robalobadob/motsrares/internal/session"
	"github.com/robalobadob/motsrares/internal/store"
	"github.com/robalobadob/motsrares/internal/words"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{ClientOrigin: "http://localhost:5173"},
		Auth:   config.AuthConfig{JWTSecret: "test_secret", SessionTTL: time.Hour},
		Words:  config.WordsConfig{DailySalt: "salt"},
	}
}

func newTestServer(t *testing.T, now func() time.Time) *Server {
	t.Helper()
	return newTestServerWith(t, testConfig(), now)
}

func newTestServerWith(t *testing.T, cfg config.Config, now func() time.Time) *Server {
	t.Helper()
	entries := []words.Entry{
		{Word: "abscons", Category: "Adjectif", Definition: "obscur"},
		{Word: "faconde", Category: "Nom féminin", Definition: "facilité de parole"},
		{Word: "hapax", Category: "Nom masculin", Definition: "occurrence unique"},
		{Word: "hiémal", Category: "Adjectif", Definition: "relatif à l'hiver"},
		{Word: "vespéral", Category: "Adjectif", Definition: "relatif au soir"},
	}
	bank, err := words.New(entries, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatal(err)
	}
	eng, err := game.NewEngine(bank)
	if err != nil {
		t.Fatal(err)
	}
	board, err := leaderboard.Load(context.Background(), kv.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	sessions := store.NewSessions(func(id string) *session.Controller {
		// The ticker never fires during a test; ticks are driven via POST /tick.
		return session.New(eng, board, session.Options{
			ID:             id,
			InitialSeconds: 2,
			BonusSeconds:   3,
			TickInterval:   time.Hour,
			Now:            func() time.Time { return fixedNow },
		})
	})
	t.Cleanup(sessions.CloseAll)

	return New(Deps{
		Config:   cfg,
		Bank:     bank,
		Board:    board,
		Sessions: sessions,
		Now:      now,
	})
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func createSession(t *testing.T, s *Server) createSessionRes {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/sessions", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	return decode[createSessionRes](t, rec)
}

func TestHealthAndRoot(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("root: %d", rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("expected json 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodOptions, "/sessions", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected origin header %q", got)
	}
}

func TestWordsEndpoints(t *testing.T) {
	s := newTestServer(t, func() time.Time { return fixedNow })

	stats := decode[map[string]any](t, do(t, s, http.MethodGet, "/words/stats", "", nil))
	if stats["count"].(float64) != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec := do(t, s, http.MethodGet, "/words/random", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("random: %d", rec.Code)
	}
	if e := decode[words.Entry](t, rec); e.Word == "" || e.Definition == "" {
		t.Fatalf("incomplete flashcard: %+v", e)
	}

	first := decode[map[string]any](t, do(t, s, http.MethodGet, "/words/daily", "", nil))
	second := decode[map[string]any](t, do(t, s, http.MethodGet, "/words/daily", "", nil))
	if first["date"] != "2024-05-01" {
		t.Fatalf("unexpected date: %v", first["date"])
	}
	if first["entry"].(map[string]any)["word"] != second["entry"].(map[string]any)["word"] {
		t.Fatal("word of the day changed within the same day")
	}
}

func TestSessionRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/sessions/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/sessions/me", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := newTestServer(t, func() time.Time { return time.Now().Add(-48 * time.Hour) })
	created := createSession(t, s)
	if rec := do(t, s, http.MethodGet, "/sessions/me", created.Token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestRoundAndAnswerFlow(t *testing.T) {
	s := newTestServer(t, nil)
	tok := createSession(t, s).Token

	rec := do(t, s, http.MethodPost, "/sessions/me/answer", tok, map[string]int{"index": 0})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "no_round" {
		t.Fatalf("expected no_round, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/sessions/me/round", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("round: %d %s", rec.Code, rec.Body.String())
	}
	view := decode[game.View](t, rec)
	if len(view.Choices) != game.ChoiceCount || view.Answered || view.Correct != nil {
		t.Fatalf("unexpected view: %+v", view)
	}

	rec = do(t, s, http.MethodPost, "/sessions/me/answer", tok, map[string]int{"index": 9})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_choice" {
		t.Fatalf("expected invalid_choice, got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodPost, "/sessions/me/answer", tok, map[string]string{"other": "x"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "bad_json" {
		t.Fatalf("expected bad_json, got %d %s", rec.Code, rec.Body.String())
	}

	res := decode[answerRes](t, do(t, s, http.MethodPost, "/sessions/me/answer", tok, map[string]int{"index": 0}))
	if res.Outcome.Correct != (res.Outcome.CorrectIndex == 0) {
		t.Fatalf("inconsistent outcome: %+v", res.Outcome)
	}
	wantScore := 0
	if res.Outcome.Correct {
		wantScore = 1
	}
	if res.State.Score != wantScore {
		t.Fatalf("expected score %d, got %d", wantScore, res.State.Score)
	}

	again := decode[answerRes](t, do(t, s, http.MethodPost, "/sessions/me/answer", tok, map[string]int{"index": 1}))
	if !again.Outcome.Replayed || again.Outcome.Selected != 0 || again.State.Score != wantScore {
		t.Fatalf("expected replay of first answer, got %+v", again)
	}
}

func TestSurvivalExpiryAndNameEntry(t *testing.T) {
	s := newTestServer(t, nil)
	tok := createSession(t, s).Token

	rec := do(t, s, http.MethodPost, "/sessions/me/tick", tok, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "timer_state" {
		t.Fatalf("expected timer_state, got %d %s", rec.Code, rec.Body.String())
	}

	st := decode[session.State](t, do(t, s, http.MethodPost, "/sessions/me/mode", tok, nil))
	if st.Mode != game.ModeSurvival || st.Timer.Remaining != 2 {
		t.Fatalf("unexpected state after toggle: %+v", st)
	}

	do(t, s, http.MethodPost, "/sessions/me/tick", tok, nil)
	st = decode[session.State](t, do(t, s, http.MethodPost, "/sessions/me/tick", tok, nil))
	if st.Mode != game.ModeNormal || st.PendingEntry == nil {
		t.Fatalf("expected session end with pending entry, got %+v", st)
	}
	if st.PendingEntry.Date != "2024-05-01" {
		t.Fatalf("unexpected entry date %q", st.PendingEntry.Date)
	}

	rec = do(t, s, http.MethodPost, "/sessions/me/name", tok, nameReq{Name: "   "})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_name" {
		t.Fatalf("expected invalid_name, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/sessions/me/name", tok, nameReq{Name: "Ana"})
	if rec.Code != http.StatusOK {
		t.Fatalf("name: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[nameRes](t, rec); got.Rank != 1 {
		t.Fatalf("expected rank 1, got %+v", got)
	}

	lb := decode[map[string][]leaderboard.Entry](t, do(t, s, http.MethodGet, "/leaderboard", "", nil))
	if len(lb["entries"]) != 1 || lb["entries"][0].Name != "Ana" {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}

	rec = do(t, s, http.MethodPost, "/sessions/me/dismiss", tok, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "no_pending_entry" {
		t.Fatalf("expected no_pending_entry, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t, nil)
	tok := createSession(t, s).Token

	if rec := do(t, s, http.MethodDelete, "/sessions/me", tok, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, s, http.MethodGet, "/sessions/me", tok, nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "session_not_found" {
		t.Fatalf("expected session_not_found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestEventsWebsocket(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/sessions", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var created createSessionRes
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/me/events?token=" + created.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/sessions/me/round", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type    session.EventType `json:"type"`
		Payload game.View         `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != session.EventRound || len(ev.Payload.Choices) != game.ChoiceCount {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestExpiredSessionsAreReaped(t *testing.T) {
	base := time.Now()
	s := newTestServer(t, func() time.Time { return base })

	var last createSessionRes
	for i := 0; i < 50; i++ {
		last = createSession(t, s)
	}
	if !last.ExpiresAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", last.ExpiresAt)
	}
	if got := s.sessions.Len(); got != 50 {
		t.Fatalf("expected 50 sessions, got %d", got)
	}

	if n := s.sessions.Reap(base.Add(time.Hour)); n != 50 {
		t.Fatalf("expected 50 reaped, got %d", n)
	}
	if got := s.sessions.Len(); got != 0 {
		t.Fatalf("expected empty registry, got %d", got)
	}
	rec := do(t, s, http.MethodGet, "/sessions/me", last.Token, nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "session_not_found" {
		t.Fatalf("expected session_not_found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestEmptyClientOriginUsesDefaultEverywhere(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ClientOrigin = ""
	s := newTestServerWith(t, cfg, nil)

	rec := do(t, s, http.MethodOptions, "/sessions", "", nil)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != config.DefaultClientOrigin {
		t.Fatalf("unexpected CORS origin %q", got)
	}

	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	tok := createSession(t, s).Token
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/me/events?token=" + tok

	header := http.Header{}
	header.Set("Origin", config.DefaultClientOrigin)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial from default origin: %v", err)
	}
	conn.Close()

	header.Set("Origin", "http://elsewhere.example")
	if conn, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		conn.Close()
		t.Fatal("foreign origin must be rejected")
	}
}
