package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/park285/frostfury-server/internal/account"
	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/pkg/furydto"
)

type profileView struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"username"`
	Guest       bool                     `json:"guest"`
	Rating      int                      `json:"rating"`
	Wins        int                      `json:"wins"`
	Losses      int                      `json:"losses"`
	AllianceID  string                   `json:"allianceId,omitempty"`
	Role        domain.Role              `json:"allianceRole,omitempty"`
	ShieldUntil *time.Time               `json:"shieldUntil"`
	Power       int64                    `json:"power"`
	Level       int                      `json:"level"`
	Resources   domain.Resources         `json:"resources"`
	Stats       *domain.ProgressionStats `json:"stats,omitempty"`
}

// upsertAccount takes a snapshot from the save pipeline.
func (s *server) upsertAccount(w http.ResponseWriter, r *http.Request) {
	var req furydto.AccountUpsertRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acct, err := s.Accounts.Upsert(r.Context(), account.Upsert{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Guest:       req.Guest,
		Progression: account.FromPayload(req.Progression),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"id": acct.ID, "rating": acct.Rating, "version": acct.Version})
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	p, err := s.Accounts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := profileView{
		ID:         p.Account.ID,
		Name:       p.Account.Name,
		Guest:      p.Account.Guest,
		Rating:     p.Account.Rating,
		Wins:       p.Account.Wins,
		Losses:     p.Account.Losses,
		AllianceID: p.Account.AllianceID,
		Role:       p.Account.EffectiveRole(),
		Power:      p.Power,
	}
	if p.Account.ShieldUntil != nil && p.Account.ShieldUntil.After(time.Now()) {
		v.ShieldUntil = p.Account.ShieldUntil
	}
	if p.Progression != nil {
		v.Level = p.Progression.Level
		v.Resources = p.Progression.Resources
		v.Stats = &p.Progression.Stats
	}
	ok(w, http.StatusOK, map[string]any{"account": v})
}
