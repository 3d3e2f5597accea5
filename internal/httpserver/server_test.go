package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robalobadob/vault/assets"
	"github.com/robalobadob/vault/internal/config"
	"github.com/robalobadob/vault/internal/db"
	"github.com/robalobadob/vault/internal/pose"
	"github.com/robalobadob/vault/internal/session"
	"github.com/robalobadob/vault/internal/stats"
	"github.com/robalobadob/vault/internal/store"
	"github.com/robalobadob/vault/internal/vault"
)

type testEnv struct {
	t     *testing.T
	srv   *Server
	store store.Store
}

func testConfig() config.Config {
	return config.Config{
		ClientOrigin: "http://localhost:5173",
		TokenSecret:  "test_secret",
		TokenTTL:     time.Hour,
		CookieName:   "vault_token",
		UnlockDelay:  time.Hour,
		SessionTTL:   time.Hour,
		SeedSalt:     "test_salt",
	}
}

func newEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(conn, assets.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.NewMemoryStore()
	return &testEnv{t: t, srv: New(cfg, st, stats.NewStore(conn)), store: st}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
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

func (e *testEnv) newGame(body any) newRes {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/vault/new", "", body)
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("POST /vault/new = %d %s", rec.Code, rec.Body.String())
	}
	return decode[newRes](e.t, rec)
}

func (e *testEnv) secret(id string) vault.Combination {
	e.t.Helper()
	sess, err := e.store.Get(context.Background(), id)
	if err != nil {
		e.t.Fatal(err)
	}
	return sess.Secret()
}

func (e *testEnv) enter(token string, entries ...vault.DialEntry) session.View {
	e.t.Helper()
	var v session.View
	for _, en := range entries {
		if rec := e.do(http.MethodPost, "/vault/number", token, numberReq{Number: en.Number}); rec.Code != http.StatusOK {
			e.t.Fatalf("number = %d %s", rec.Code, rec.Body.String())
		}
		rec := e.do(http.MethodPost, "/vault/direction", token, directionReq{Direction: string(en.Direction)})
		if rec.Code != http.StatusOK {
			e.t.Fatalf("direction = %d %s", rec.Code, rec.Body.String())
		}
		v = decode[session.View](e.t, rec)
	}
	return v
}

func TestHealth(t *testing.T) {
	e := newEnv(t, testConfig())
	rec := e.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("GET /health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewGame(t *testing.T) {
	e := newEnv(t, testConfig())
	rec := e.do(http.MethodPost, "/vault/new", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /vault/new = %d", rec.Code)
	}
	if strings.Contains(strings.ToLower(rec.Body.String()), "secret") {
		t.Fatalf("response leaks the secret: %s", rec.Body.String())
	}
	res := decode[newRes](t, rec)
	if res.SessionID == "" || res.Token == "" {
		t.Fatalf("response = %+v", res)
	}
	if res.View.Status != vault.StatusActive || res.View.Generation != 1 || len(res.View.Progress) != 0 {
		t.Fatalf("view = %+v", res.View)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].Name != "vault_token" || c[0].Value != res.Token {
		t.Errorf("cookies = %v", c)
	}
}

func TestSessionAuth(t *testing.T) {
	e := newEnv(t, testConfig())
	if rec := e.do(http.MethodGet, "/vault/state", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/vault/state", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", rec.Code)
	}
	tok, _, err := e.srv.signToken("evicted-session")
	if err != nil {
		t.Fatal(err)
	}
	if rec := e.do(http.MethodGet, "/vault/state", tok, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: %d", rec.Code)
	}

	res := e.newGame(nil)
	req := httptest.NewRequest(http.MethodGet, "/vault/state", nil)
	req.AddCookie(&http.Cookie{Name: "vault_token", Value: res.Token})
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("cookie auth: %d %s", rec.Code, rec.Body.String())
	}
}

func TestDirectionWithoutNumber(t *testing.T) {
	e := newEnv(t, testConfig())
	res := e.newGame(nil)
	rec := e.do(http.MethodPost, "/vault/direction", res.Token, directionReq{Direction: "clockwise"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", rec.Code)
	}
	er := decode[errorRes](t, rec)
	if er.Error != "no_number_selected" || er.Message != pose.NoticeSelectNumber || er.View == nil || len(er.View.Progress) != 0 {
		t.Fatalf("error = %+v", er)
	}
}

func TestInputValidation(t *testing.T) {
	e := newEnv(t, testConfig())
	res := e.newGame(nil)
	tests := []struct {
		path string
		body any
		code string
	}{
		{"/vault/number", numberReq{Number: 0}, "invalid_number"},
		{"/vault/number", numberReq{Number: 10}, "invalid_number"},
		{"/vault/direction", directionReq{Direction: "up"}, "invalid_direction"},
	}
	for _, tt := range tests {
		rec := e.do(http.MethodPost, tt.path, res.Token, tt.body)
		if rec.Code != http.StatusBadRequest || decode[errorRes](t, rec).Error != tt.code {
			t.Errorf("%s %v = %d %s", tt.path, tt.body, rec.Code, rec.Body.String())
		}
	}
}

func TestUnlockFlow(t *testing.T) {
	e := newEnv(t, testConfig())
	res := e.newGame(nil)
	secret := e.secret(res.SessionID)

	v := e.enter(res.Token, secret[:]...)
	if len(v.Progress) != 3 {
		t.Fatalf("progress = %v", v.Progress)
	}
	rec := e.do(http.MethodPost, "/vault/try", res.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("try = %d %s", rec.Code, rec.Body.String())
	}
	tr := decode[tryRes](t, rec)
	if tr.Result != vault.Match || tr.View.Status != vault.StatusWon || !tr.View.Pose.TreasureVisible {
		t.Fatalf("try = %+v", tr)
	}
	if len(tr.View.Events) != 1 || tr.View.Events[0].Kind != vault.EventUnlock {
		t.Fatalf("events = %+v", tr.View.Events)
	}

	e.do(http.MethodPost, "/vault/number", res.Token, numberReq{Number: 1})
	rec = e.do(http.MethodPost, "/vault/direction", res.Token, directionReq{Direction: "clockwise"})
	if rec.Code != http.StatusLocked {
		t.Errorf("input while open = %d", rec.Code)
	}

	sum := decode[stats.Summary](t, e.do(http.MethodGet, "/stats/summary", "", nil))
	if sum.Unlocks != 1 || sum.Rounds != 1 {
		t.Errorf("summary = %+v", sum)
	}
	lb := decode[lbRes](t, e.do(http.MethodGet, "/stats/leaderboard?limit=5", "", nil))
	if len(lb.Top) != 1 || lb.Top[0].SessionID != res.SessionID {
		t.Errorf("leaderboard = %+v", lb)
	}

	rec = e.do(http.MethodPost, "/vault/restart", res.Token, nil)
	v = decode[session.View](t, rec)
	if v.Status != vault.StatusActive || v.Generation != 2 || v.Pose != pose.Initial() {
		t.Errorf("after restart = %+v", v)
	}
}

func TestRejectFlow(t *testing.T) {
	e := newEnv(t, testConfig())
	res := e.newGame(nil)
	secret := e.secret(res.SessionID)
	wrong := secret
	wrong[0].Direction = map[vault.Direction]vault.Direction{
		vault.Clockwise:        vault.CounterClockwise,
		vault.CounterClockwise: vault.Clockwise,
	}[wrong[0].Direction]
	e.enter(res.Token, wrong[:]...)

	tr := decode[tryRes](t, e.do(http.MethodPost, "/vault/try", res.Token, nil))
	if tr.Result != vault.Mismatch || len(tr.View.Progress) != 0 || tr.View.Generation != 2 {
		t.Fatalf("try = %+v", tr)
	}
	if tr.View.Pose.Notice != pose.NoticeWrong {
		t.Errorf("notice = %q", tr.View.Pose.Notice)
	}
	sum := decode[stats.Summary](t, e.do(http.MethodGet, "/stats/summary", "", nil))
	if sum.Rejects != 1 || sum.Unlocks != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestTryIncomplete(t *testing.T) {
	e := newEnv(t, testConfig())
	res := e.newGame(nil)
	secret := e.secret(res.SessionID)
	e.enter(res.Token, secret[:2]...)

	rec := e.do(http.MethodPost, "/vault/try", res.Token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("try = %d", rec.Code)
	}
	er := decode[errorRes](t, rec)
	if er.Error != "incomplete_combination" || er.View == nil || len(er.View.Progress) != 2 {
		t.Fatalf("error = %+v", er)
	}
}

func TestSeededGames(t *testing.T) {
	e := newEnv(t, testConfig())
	rec := e.do(http.MethodPost, "/vault/new", "", newReq{Seed: "demo"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("seed while disabled = %d", rec.Code)
	}

	cfg := testConfig()
	cfg.AllowSeededGames = true
	e = newEnv(t, cfg)
	a := e.newGame(newReq{Seed: "demo"})
	b := e.newGame(newReq{Seed: "demo"})
	if e.secret(a.SessionID) != e.secret(b.SessionID) {
		t.Fatal("same seed produced different secrets")
	}
}

func TestAutoCheckAndEvents(t *testing.T) {
	cfg := testConfig()
	cfg.AutoCheck = true
	cfg.UnlockDelay = 20 * time.Millisecond
	e := newEnv(t, cfg)
	res := e.newGame(nil)
	secret := e.secret(res.SessionID)

	v := e.enter(res.Token, secret[:]...)
	if v.Status != vault.StatusWon {
		t.Fatalf("auto-check did not unlock: %+v", v)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		ev := decode[eventsRes](t, e.do(http.MethodGet, "/vault/events?after="+itoa(v.LastSeq), res.Token, nil))
		if len(ev.Events) > 0 {
			if ev.Events[0].Kind != vault.EventReset {
				t.Fatalf("events = %+v", ev.Events)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no reset event after the unlock delay")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := decode[session.View](t, e.do(http.MethodGet, "/vault/state", res.Token, nil)); st.Status != vault.StatusActive {
		t.Errorf("state after delay = %+v", st)
	}

	if rec := e.do(http.MethodGet, "/vault/events?after=x", res.Token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad after = %d", rec.Code)
	}
}

func TestLeaderboardLimitValidation(t *testing.T) {
	e := newEnv(t, testConfig())
	if rec := e.do(http.MethodGet, "/stats/leaderboard?limit=-1", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=-1 = %d", rec.Code)
	}
}

func itoa(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
