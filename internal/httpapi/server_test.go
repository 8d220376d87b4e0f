package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/frostfury-server/internal/account"
	"github.com/park285/frostfury-server/internal/alliance"
	"github.com/park285/frostfury-server/internal/events"
	"github.com/park285/frostfury-server/internal/history"
	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/pvp"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/internal/treasury"
)

const testToken = "pipeline-secret"

// fixedRolls alternates attacker and defender draws so the attacker always wins.
type fixedRolls struct {
	mu sync.Mutex
	n  int
}

func (f *fixedRolls) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.n%2 == 1 {
		return 0.99
	}
	return 0
}

type apiHarness struct {
	srv *httptest.Server
	hub *events.Hub
	mr  *miniredis.Miniredis
}

func newTestAPI(t *testing.T) *apiHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := store.New(rdb, 5*time.Second, 200)
	repo := history.NewMemoryRepository()
	hub := events.NewHub()
	fan := notify.Fanout{hub}

	h := NewRouter(Deps{
		PvP:           pvp.NewManager(st, repo, pvp.WithRoller(&fixedRolls{}), pvp.WithNotifier(fan)),
		Alliances:     alliance.NewService(st, alliance.WithNotifier(fan)),
		Treasury:      treasury.NewService(st, repo, treasury.WithNotifier(fan)),
		Accounts:      account.NewService(st),
		Events:        hub,
		Health:        func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		InternalToken: testToken,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &apiHarness{srv: srv, hub: hub, mr: mr}
}

type response struct {
	Status int
	Body   map[string]any
}

func (h *apiHarness) do(t *testing.T, method, path, user string, body any) response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	if strings.HasPrefix(path, "/api/internal/") {
		req.Header.Set(internalHeader, testToken)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := response{Status: res.StatusCode}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out.Body))
	return out
}

func (h *apiHarness) seed(t *testing.T, id, name string, gems int64) {
	t.Helper()
	res := h.do(t, http.MethodPut, "/api/internal/accounts/"+id, "", map[string]any{
		"name": name,
		"progression": map[string]any{
			"level":     5,
			"resources": map[string]any{"wood": 1000, "meat": 500, "gems": gems},
		},
	})
	require.Equal(t, http.StatusOK, res.Status, res.Body)
}

func errCode(t *testing.T, r response) string {
	t.Helper()
	e, isMap := r.Body["error"].(map[string]any)
	require.True(t, isMap, "no error body: %v", r.Body)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t)
	res := h.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "ok", res.Body["status"])

	h.mr.Close()
	res = h.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
}

func TestAuthRequired(t *testing.T) {
	h := newTestAPI(t)

	res := h.do(t, http.MethodGet, "/api/pvp/targets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	req, err := http.NewRequest(http.MethodPut, h.srv.URL+"/api/internal/accounts/x", strings.NewReader(`{"name":"Xavier"}`))
	require.NoError(t, err)
	req.Header.Set(internalHeader, "wrong")
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, raw.StatusCode)

	// public reads need no caller
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/pvp/leaderboard", "", nil).Status)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/alliances/search?q=x", "", nil).Status)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/leaderboard/alliances", "", nil).Status)
}

func TestAttackFlow(t *testing.T) {
	h := newTestAPI(t)
	h.seed(t, "a", "Astrid", 0)
	h.seed(t, "b", "Bjorn", 0)

	res := h.do(t, http.MethodGet, "/api/pvp/targets?poolSize=5", "a", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.Equal(t, true, res.Body["success"])
	assert.Len(t, res.Body["targets"], 1)

	res = h.do(t, http.MethodPost, "/api/pvp/attack/b", "a", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	battle := res.Body["battle"].(map[string]any)
	assert.Equal(t, true, battle["victory"])
	assert.EqualValues(t, 16, battle["ratingChange"])
	stolen := battle["resourcesStolen"].(map[string]any)
	assert.EqualValues(t, 100, stolen["wood"])
	assert.EqualValues(t, 50, stolen["meat"])

	// shield is checked before the cooldown
	res = h.do(t, http.MethodPost, "/api/pvp/attack/b", "a", nil)
	assert.Equal(t, http.StatusPreconditionFailed, res.Status)
	assert.Equal(t, "target_shielded", errCode(t, res))

	res = h.do(t, http.MethodPost, "/api/pvp/attack/a", "a", nil)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "self_attack", errCode(t, res))

	res = h.do(t, http.MethodPost, "/api/pvp/attack/ghost", "a", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = h.do(t, http.MethodGet, "/api/pvp/history?limit=10", "b", nil)
	require.Equal(t, http.StatusOK, res.Status)
	battles := res.Body["battles"].([]any)
	require.Len(t, battles, 1)
	assert.Equal(t, false, battles[0].(map[string]any)["isAttacker"])
	assert.Equal(t, "Astrid", battles[0].(map[string]any)["opponent"])

	res = h.do(t, http.MethodGet, "/api/pvp/leaderboard?limit=10", "", nil)
	leaders := res.Body["leaders"].([]any)
	require.Len(t, leaders, 2)
	assert.Equal(t, "a", leaders[0].(map[string]any)["id"])

	res = h.do(t, http.MethodGet, "/api/account/me", "b", nil)
	require.Equal(t, http.StatusOK, res.Status)
	me := res.Body["account"].(map[string]any)
	assert.EqualValues(t, 984, me["rating"])
	assert.NotNil(t, me["shieldUntil"])
}

func TestShieldValidation(t *testing.T) {
	h := newTestAPI(t)
	h.seed(t, "a", "Astrid", 200)

	res := h.do(t, http.MethodPost, "/api/pvp/shield", "a", map[string]any{"hours": 7})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "invalid_argument", errCode(t, res))

	res = h.do(t, http.MethodPost, "/api/pvp/shield", "a", map[string]any{"hours": 4})
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.NotEmpty(t, res.Body["shieldUntil"])
}

func TestAllianceAndGiftFlow(t *testing.T) {
	h := newTestAPI(t)
	h.seed(t, "a", "Astrid", 200)
	h.seed(t, "b", "Bjorn", 0)

	res := h.do(t, http.MethodPost, "/api/alliance/create", "a", map[string]any{"name": "Frost", "tag": "f!"})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = h.do(t, http.MethodPost, "/api/alliance/create", "b", map[string]any{"name": "Frost", "tag": "FRS"})
	assert.Equal(t, http.StatusPreconditionFailed, res.Status)

	res = h.do(t, http.MethodPost, "/api/alliance/create", "a", map[string]any{"name": "Frost", "tag": "frs"})
	require.Equal(t, http.StatusCreated, res.Status, res.Body)
	al := res.Body["alliance"].(map[string]any)
	assert.Equal(t, "FRS", al["tag"])
	id := al["id"].(string)

	res = h.do(t, http.MethodPost, "/api/alliance/join/"+id, "b", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.EqualValues(t, 2, res.Body["alliance"].(map[string]any)["memberCount"])

	res = h.do(t, http.MethodGet, "/api/alliance/my", "b", nil)
	require.Equal(t, http.StatusOK, res.Status)
	my := res.Body["alliance"].(map[string]any)
	assert.Len(t, my["members"], 2)
	assert.Equal(t, "member", my["myRole"])

	res = h.do(t, http.MethodGet, "/api/alliances/search?q=fro", "", nil)
	assert.EqualValues(t, 1, res.Body["total"])

	res = h.do(t, http.MethodPost, "/api/alliance/gift", "a", map[string]any{
		"toUserId":  "b",
		"resources": map[string]any{"wood": 50, "gems": 5},
		"message":   "for the walls",
	})
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	giftID := res.Body["giftId"].(string)

	res = h.do(t, http.MethodGet, "/api/alliance/gifts", "b", nil)
	gifts := res.Body["gifts"].([]any)
	require.Len(t, gifts, 1)
	assert.Equal(t, "Astrid", gifts[0].(map[string]any)["from"])

	res = h.do(t, http.MethodPost, "/api/alliance/gifts/"+giftID+"/claim", "b", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	claim := res.Body["claim"].(map[string]any)
	assert.EqualValues(t, 5, claim["credited"].(map[string]any)["gems"])

	res = h.do(t, http.MethodPost, "/api/alliance/gifts/"+giftID+"/claim", "b", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "gift_not_found", errCode(t, res))

	res = h.do(t, http.MethodPost, "/api/alliance/donate", "b", map[string]any{"resources": map[string]any{"meat": 40}})
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.EqualValues(t, 40, res.Body["donated"].(map[string]any)["meat"])

	res = h.do(t, http.MethodPost, "/api/alliance/leave", "a", nil)
	assert.Equal(t, http.StatusPreconditionFailed, res.Status)
	assert.Equal(t, "leadership_transfer_required", errCode(t, res))

	res = h.do(t, http.MethodPost, "/api/alliance/officers/b", "a", map[string]any{"promote": true})
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.Equal(t, []any{"b"}, res.Body["alliance"].(map[string]any)["officers"])

	res = h.do(t, http.MethodPost, "/api/alliance/transfer", "a", map[string]any{"newLeaderId": "b"})
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.Equal(t, "b", res.Body["alliance"].(map[string]any)["leaderId"])

	res = h.do(t, http.MethodPost, "/api/alliance/leave", "a", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.Equal(t, false, res.Body["allianceDeleted"])

	res = h.do(t, http.MethodGet, "/api/alliance/my", "a", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Nil(t, res.Body["alliance"])

	res = h.do(t, http.MethodGet, "/api/leaderboard/alliances?limit=5", "", nil)
	board := res.Body["alliances"].([]any)
	require.Len(t, board, 1)
	assert.EqualValues(t, 1, board[0].(map[string]any)["rank"])
}

func TestEventFeedReceivesBattle(t *testing.T) {
	h := newTestAPI(t)
	h.seed(t, "a", "Astrid", 0)
	h.seed(t, "b", "Bjorn", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/events"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: http.Header{userHeader: []string{"b"}}})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return h.hub.Connections("b") == 1 }, 2*time.Second, 10*time.Millisecond)

	res := h.do(t, http.MethodPost, "/api/pvp/attack/b", "a", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Body)

	var ev map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "battle", ev["type"])
	assert.Equal(t, "Astrid", ev["attackerName"])
}
