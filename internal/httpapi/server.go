// Package httpapi exposes the PvP, alliance and treasury operations as a JSON API.
// Callers are identified by the X-User-Id header that the authenticating gateway sets.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/park285/frostfury-server/internal/account"
	"github.com/park285/frostfury-server/internal/alliance"
	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/pvp"
	"github.com/park285/frostfury-server/internal/treasury"
)

type PvP interface {
	SampleTargets(ctx context.Context, attackerID string, poolSize int) (*pvp.TargetList, error)
	Attack(ctx context.Context, attackerID, targetID string) (*pvp.Outcome, error)
	BuyShield(ctx context.Context, accountID string, hours int) (time.Time, error)
	History(ctx context.Context, accountID string, limit int) ([]pvp.HistoryEntry, error)
	Leaderboard(ctx context.Context, limit, offset int) (*pvp.Leaderboard, error)
}

type Alliances interface {
	Create(ctx context.Context, accountID string, in alliance.CreateInput) (*domain.Alliance, error)
	Join(ctx context.Context, accountID, allianceID string) (*domain.Alliance, error)
	Leave(ctx context.Context, accountID string) (bool, error)
	TransferLeadership(ctx context.Context, leaderID, newLeaderID string) (*domain.Alliance, error)
	SetOfficer(ctx context.Context, actorID, targetID string, promote bool) (*domain.Alliance, error)
	My(ctx context.Context, accountID string) (*alliance.Detail, error)
	Search(ctx context.Context, query string, page, limit int) (*alliance.SearchResult, error)
	Leaderboard(ctx context.Context, limit, offset int) (*alliance.Leaderboard, error)
}

type Treasury interface {
	SendGift(ctx context.Context, senderID string, in treasury.GiftInput) (*domain.Gift, error)
	ClaimGift(ctx context.Context, recipientID, giftID string) (*treasury.Claim, error)
	Gifts(ctx context.Context, accountID string) ([]treasury.GiftView, error)
	Donate(ctx context.Context, accountID string, want domain.Resources) (domain.Resources, error)
}

type Accounts interface {
	Upsert(ctx context.Context, in account.Upsert) (*domain.Account, error)
	Get(ctx context.Context, id string) (*account.Profile, error)
}

// EventFeed serves the live event stream for one account.
type EventFeed interface {
	Serve(w http.ResponseWriter, r *http.Request, accountID string) error
}

type Deps struct {
	PvP       PvP
	Alliances Alliances
	Treasury  Treasury
	Accounts  Accounts
	Events    EventFeed
	// Health reports storage reachability.
	Health        func(ctx context.Context) error
	InternalToken string
	Timeout       time.Duration
}

type server struct {
	Deps
	validate *validator.Validate
}

func NewRouter(d Deps) http.Handler {
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	s := &server{Deps: d, validate: validator.New()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.health)
	// the event feed is long-lived and stays outside the request timeout
	if d.Events != nil {
		r.With(requireUser).Get("/api/events", s.events)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.Timeout))

		r.Get("/api/pvp/leaderboard", s.pvpLeaderboard)
		r.Get("/api/alliances/search", s.allianceSearch)
		r.Get("/api/leaderboard/alliances", s.allianceLeaderboard)

		r.With(requireInternal(d.InternalToken)).Put("/api/internal/accounts/{id}", s.upsertAccount)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/api/account/me", s.me)

			r.Route("/api/pvp", func(r chi.Router) {
				r.Get("/targets", s.pvpTargets)
				r.Post("/attack/{targetId}", s.pvpAttack)
				r.Get("/history", s.pvpHistory)
				r.Post("/shield", s.pvpShield)
			})

			r.Route("/api/alliance", func(r chi.Router) {
				r.Post("/create", s.allianceCreate)
				r.Post("/join/{allianceId}", s.allianceJoin)
				r.Post("/leave", s.allianceLeave)
				r.Post("/transfer", s.allianceTransfer)
				r.Post("/officers/{accountId}", s.allianceOfficer)
				r.Get("/my", s.allianceMy)
				r.Post("/gift", s.giftSend)
				r.Get("/gifts", s.giftList)
				r.Post("/gifts/{giftId}/claim", s.giftClaim)
				r.Post("/donate", s.donate)
			})
		})
	})
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *server) events(w http.ResponseWriter, r *http.Request) {
	// Serve writes its own response; errors after the upgrade are connection-level
	_ = s.Events.Serve(w, r, userID(r))
}
