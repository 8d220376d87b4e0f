package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/park285/frostfury-server/pkg/furydto"
)

const (
	defaultPoolSize     = 10
	defaultHistoryLimit = 50
	defaultBoardLimit   = 50
)

func (s *server) pvpTargets(w http.ResponseWriter, r *http.Request) {
	pool, err := intQuery(r, "poolSize", defaultPoolSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.PvP.SampleTargets(r.Context(), userID(r), pool)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{
		"targets":  list.Targets,
		"myPower":  list.MyPower,
		"myRating": list.MyRating,
	})
}

func (s *server) pvpAttack(w http.ResponseWriter, r *http.Request) {
	out, err := s.PvP.Attack(r.Context(), userID(r), chi.URLParam(r, "targetId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"battle": out})
}

func (s *server) pvpHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.PvP.History(r.Context(), userID(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"battles": entries})
}

func (s *server) pvpLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultBoardLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	board, err := s.PvP.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"leaders": board.Leaders, "total": board.Total})
}

func (s *server) pvpShield(w http.ResponseWriter, r *http.Request) {
	var req furydto.ShieldRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	until, err := s.PvP.BuyShield(r.Context(), userID(r), req.Hours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"shieldUntil": until})
}
