package alliance

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/power"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

const (
	defaultSearchLimit      = 20
	defaultLeaderboardLimit = 50
	maxPageLimit            = 100
	scanBatch               = 200
)

// Summary is the public face of an alliance in listings.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	MemberCount int    `json:"memberCount"`
	MaxMembers  int    `json:"maxMembers"`
	TotalPower  int64  `json:"totalPower"`
	MinLevel    int    `json:"minLevel"`
}

func summarize(al *domain.Alliance) Summary {
	return Summary{
		ID:          al.ID,
		Name:        al.Name,
		Tag:         al.Tag,
		Description: al.Description,
		Icon:        al.Icon,
		MemberCount: al.MemberCount,
		MaxMembers:  al.MaxMembers,
		TotalPower:  al.TotalPower,
		MinLevel:    al.MinLevel,
	}
}

type MemberView struct {
	ID           string    `json:"id"`
	Name         string    `json:"username"`
	Power        int64     `json:"power"`
	Level        int       `json:"level"`
	Rating       int       `json:"rating"`
	Contribution int64     `json:"contribution"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActive   time.Time `json:"lastActive"`
	IsLeader     bool      `json:"isLeader"`
	IsOfficer    bool      `json:"isOfficer"`
}

// Detail is an alliance as its own members see it.
type Detail struct {
	Summary
	Public    bool             `json:"isPublic"`
	LeaderID  string           `json:"leaderId"`
	Treasury  domain.Resources `json:"treasury"`
	CreatedAt time.Time        `json:"createdAt"`
	Members   []MemberView     `json:"members"`
	IsLeader  bool             `json:"isLeader"`
	IsOfficer bool             `json:"isOfficer"`
	MyRole    domain.Role      `json:"myRole"`
}

type SearchResult struct {
	Alliances []Summary `json:"alliances"`
	Total     int       `json:"total"`
	Pages     int       `json:"pages"`
}

type LeaderboardEntry struct {
	Rank int `json:"rank"`
	Summary
}

type Leaderboard struct {
	Total     int64              `json:"total"`
	Alliances []LeaderboardEntry `json:"alliances"`
}

// My returns the account's alliance with members ranked by live power, or nil when
// the account is unaffiliated.
func (s *Service) My(ctx context.Context, accountID string) (*Detail, error) {
	acct, err := s.st.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, furydto.ErrAccountNotFound
	}
	if !acct.Affiliated() {
		return nil, nil
	}
	al, err := s.st.Alliance(ctx, acct.AllianceID)
	if err != nil || al == nil {
		return nil, err
	}

	ids := al.MemberIDs()
	var (
		accts []*domain.Account
		progs []*domain.Progression
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accts, err = s.st.Accounts(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		progs, err = s.st.Progressions(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	members := make([]MemberView, 0, len(al.Members))
	for i, m := range al.Members {
		v := MemberView{
			ID:           m.AccountID,
			Name:         "Unknown",
			Power:        power.OfSnapshot(progs[i]),
			Level:        domain.DefaultLevel,
			Rating:       domain.DefaultRating,
			Contribution: m.Contribution,
			JoinedAt:     m.JoinedAt,
			LastActive:   m.LastActive,
			IsLeader:     m.AccountID == al.LeaderID,
			IsOfficer:    al.IsOfficer(m.AccountID),
		}
		if a := accts[i]; a != nil {
			v.Name = a.Name
			v.Rating = a.Rating
		}
		if p := progs[i]; p != nil {
			v.Level = p.WithDefaults().Level
		}
		members = append(members, v)
	}
	slices.SortStableFunc(members, func(a, b MemberView) int { return cmp.Compare(b.Power, a.Power) })

	return &Detail{
		Summary:   summarize(al),
		Public:    al.Public,
		LeaderID:  al.LeaderID,
		Treasury:  al.Treasury,
		CreatedAt: al.CreatedAt,
		Members:   members,
		IsLeader:  al.LeaderID == acct.ID,
		IsOfficer: al.IsOfficer(acct.ID),
		MyRole:    acct.EffectiveRole(),
	}, nil
}

// Search lists public alliances by total power, optionally filtered by a
// case-insensitive substring of name or tag. Pages start at 1.
func (s *Service) Search(ctx context.Context, query string, page, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxPageLimit)
	page = min(max(page, 1), math.MaxInt/limit)
	query = strings.ToLower(strings.TrimSpace(query))
	skip := (page - 1) * limit

	res := &SearchResult{Alliances: []Summary{}}
	err := s.scan(ctx, func(al *domain.Alliance) {
		if !al.Public {
			return
		}
		if query != "" && !strings.Contains(strings.ToLower(al.Name), query) && !strings.Contains(strings.ToLower(al.Tag), query) {
			return
		}
		if res.Total >= skip && len(res.Alliances) < limit {
			res.Alliances = append(res.Alliances, summarize(al))
		}
		res.Total++
	})
	if err != nil {
		return nil, err
	}
	res.Pages = (res.Total + limit - 1) / limit
	return res, nil
}

// scan visits every alliance in power order.
func (s *Service) scan(ctx context.Context, visit func(*domain.Alliance)) error {
	for offset := 0; ; offset += scanBatch {
		page, total, err := s.st.AlliancePowerRange(ctx, offset, scanBatch)
		if err != nil {
			return err
		}
		als, err := s.st.Alliances(ctx, rankedIDs(page))
		if err != nil {
			return err
		}
		for _, al := range als {
			if al != nil {
				visit(al)
			}
		}
		if int64(offset+scanBatch) >= total {
			return nil
		}
	}
}

// Leaderboard pages every alliance by total power.
func (s *Service) Leaderboard(ctx context.Context, limit, offset int) (*Leaderboard, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = min(limit, maxPageLimit)
	offset = max(offset, 0)

	page, total, err := s.st.AlliancePowerRange(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	als, err := s.st.Alliances(ctx, rankedIDs(page))
	if err != nil {
		return nil, err
	}
	out := &Leaderboard{Total: total, Alliances: make([]LeaderboardEntry, 0, len(page))}
	for i, al := range als {
		if al == nil {
			continue
		}
		out.Alliances = append(out.Alliances, LeaderboardEntry{Rank: offset + i + 1, Summary: summarize(al)})
	}
	return out, nil
}

func rankedIDs(page []store.Ranked) []string {
	ids := make([]string, len(page))
	for i, r := range page {
		ids[i] = r.ID
	}
	return ids
}
