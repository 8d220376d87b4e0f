package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/park285/frostfury-server/internal/alliance"
	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/treasury"
	"github.com/park285/frostfury-server/pkg/furydto"
)

type allianceView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Tag         string           `json:"tag"`
	Description string           `json:"description"`
	LeaderID    string           `json:"leaderId"`
	Officers    []string         `json:"officers"`
	MemberCount int              `json:"memberCount"`
	MaxMembers  int              `json:"maxMembers"`
	TotalPower  int64            `json:"totalPower"`
	Public      bool             `json:"isPublic"`
	MinLevel    int              `json:"minLevel"`
	Treasury    domain.Resources `json:"treasury"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func viewAlliance(al *domain.Alliance) allianceView {
	officers := al.Officers
	if officers == nil {
		officers = []string{}
	}
	return allianceView{
		ID:          al.ID,
		Name:        al.Name,
		Tag:         al.Tag,
		Description: al.Description,
		LeaderID:    al.LeaderID,
		Officers:    officers,
		MemberCount: al.MemberCount,
		MaxMembers:  al.MaxMembers,
		TotalPower:  al.TotalPower,
		Public:      al.Public,
		MinLevel:    al.MinLevel,
		Treasury:    al.Treasury,
		CreatedAt:   al.CreatedAt,
	}
}

func bundle(b furydto.ResourceBundle) domain.Resources {
	return domain.Resources{Wood: b.Wood, Meat: b.Meat, Gems: b.Gems}
}

func (s *server) allianceCreate(w http.ResponseWriter, r *http.Request) {
	var req furydto.CreateAllianceRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	al, err := s.Alliances.Create(r.Context(), userID(r), alliance.CreateInput{
		Name:        req.Name,
		Tag:         req.Tag,
		Description: req.Description,
		Public:      req.IsPublic,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"alliance": viewAlliance(al)})
}

func (s *server) allianceJoin(w http.ResponseWriter, r *http.Request) {
	al, err := s.Alliances.Join(r.Context(), userID(r), chi.URLParam(r, "allianceId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"alliance": viewAlliance(al)})
}

func (s *server) allianceLeave(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.Alliances.Leave(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"allianceDeleted": deleted})
}

func (s *server) allianceTransfer(w http.ResponseWriter, r *http.Request) {
	var req furydto.TransferLeadershipRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	al, err := s.Alliances.TransferLeadership(r.Context(), userID(r), req.NewLeaderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"alliance": viewAlliance(al)})
}

func (s *server) allianceOfficer(w http.ResponseWriter, r *http.Request) {
	var req furydto.OfficerRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	al, err := s.Alliances.SetOfficer(r.Context(), userID(r), chi.URLParam(r, "accountId"), req.Promote)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"alliance": viewAlliance(al)})
}

func (s *server) allianceMy(w http.ResponseWriter, r *http.Request) {
	d, err := s.Alliances.My(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// unaffiliated callers get alliance:null
	if d == nil {
		ok(w, http.StatusOK, map[string]any{"alliance": nil})
		return
	}
	ok(w, http.StatusOK, map[string]any{"alliance": d})
}

func (s *server) allianceSearch(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Alliances.Search(r.Context(), r.URL.Query().Get("q"), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"alliances": res.Alliances, "total": res.Total, "pages": res.Pages})
}

func (s *server) allianceLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	board, err := s.Alliances.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"alliances": board.Alliances, "total": board.Total})
}

func (s *server) giftSend(w http.ResponseWriter, r *http.Request) {
	var req furydto.GiftRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.Treasury.SendGift(r.Context(), userID(r), treasury.GiftInput{
		ToID:      req.ToUserID,
		Resources: bundle(req.Resources),
		Message:   req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{
		"giftId":    g.ID,
		"resources": g.Resources,
		"expiresAt": g.ExpiresAt,
	})
}

func (s *server) giftList(w http.ResponseWriter, r *http.Request) {
	gifts, err := s.Treasury.Gifts(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if gifts == nil {
		gifts = []treasury.GiftView{}
	}
	ok(w, http.StatusOK, map[string]any{"gifts": gifts})
}

func (s *server) giftClaim(w http.ResponseWriter, r *http.Request) {
	c, err := s.Treasury.ClaimGift(r.Context(), userID(r), chi.URLParam(r, "giftId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"claim": c})
}

func (s *server) donate(w http.ResponseWriter, r *http.Request) {
	var req furydto.DonateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	moved, err := s.Treasury.Donate(r.Context(), userID(r), bundle(req.Resources))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"donated": moved})
}
