package alliance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"pgregory.net/rapid"

	"github.com/park285/frostfury-server/internal/account"
	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/power"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

type harness struct {
	svc   *Service
	st    *store.Store
	mr    *miniredis.Miniredis
	accts *account.Service
	now   time.Time
}

func newTestService(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{mr: mr, st: store.New(rdb, 5*time.Second, 200), now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	h.accts = account.NewService(h.st, account.WithClock(clock))
	h.svc = NewService(h.st, WithClock(clock))
	return h
}

func (h *harness) seed(t *testing.T, id string, gems int64, level int) {
	t.Helper()
	prog := &domain.Progression{Level: level, Resources: domain.Resources{Gems: gems}}
	if _, err := h.accts.Upsert(context.Background(), account.Upsert{ID: id, Name: "n-" + id, Progression: prog}); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func (h *harness) create(t *testing.T, leader, name, tag string) *domain.Alliance {
	t.Helper()
	al, err := h.svc.Create(context.Background(), leader, CreateInput{Name: name, Tag: tag})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return al
}

func (h *harness) editAlliance(t *testing.T, id string, fn func(*domain.Alliance)) {
	t.Helper()
	err := h.st.Update(context.Background(), []string{store.AllianceKey(id)}, func(tx *store.Tx) error {
		al, err := tx.Alliance(id)
		if err != nil {
			return err
		}
		fn(al)
		return tx.PutAlliance(al)
	})
	if err != nil {
		t.Fatalf("edit alliance: %v", err)
	}
}

func (h *harness) alliance(t *testing.T, id string) *domain.Alliance {
	t.Helper()
	al, err := h.st.Alliance(context.Background(), id)
	if err != nil {
		t.Fatalf("load alliance: %v", err)
	}
	return al
}

func (h *harness) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	a, err := h.st.Account(context.Background(), id)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	return a
}

func defaultPower() int64 { return power.Of(domain.Progression{}) }

func TestCreateAlliance(t *testing.T) {
	h := newTestService(t)
	h.seed(t, "lead", 150, 1)

	al := h.create(t, "lead", "Frost Wolves", "fw")
	if al.Tag != "FW" || al.LeaderID != "lead" || al.MemberCount != 1 || !al.Public {
		t.Fatalf("unexpected alliance %+v", al)
	}
	if al.TotalPower != defaultPower() {
		t.Fatalf("power = %d, want %d", al.TotalPower, defaultPower())
	}
	prog, _ := h.st.Progression(context.Background(), "lead")
	if prog.Resources.Gems != 50 {
		t.Fatalf("gems after create = %d", prog.Resources.Gems)
	}
	if a := h.account(t, "lead"); a.AllianceID != al.ID || a.AllianceRole != domain.RoleLeader {
		t.Fatalf("affiliation %+v", a)
	}
	if err := h.alliance(t, al.ID).Validate(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestCreateAllianceRejections(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "a", 500, 1)
	h.seed(t, "b", 500, 1)
	h.seed(t, "poor", 99, 1)
	h.create(t, "a", "Frost Wolves", "FW")

	cases := []struct {
		name string
		id   string
		in   CreateInput
		want error
	}{
		{"short name", "b", CreateInput{Name: "ab", Tag: "AB"}, furydto.ErrInvalidName},
		{"long tag", "b", CreateInput{Name: "Valid", Tag: "TOOLONG"}, furydto.ErrInvalidTag},
		{"name taken any case", "b", CreateInput{Name: "frost wolves", Tag: "XY"}, furydto.ErrNameTaken},
		{"tag taken any case", "b", CreateInput{Name: "Other", Tag: "fw"}, furydto.ErrNameTaken},
		{"already affiliated", "a", CreateInput{Name: "Second", Tag: "SE"}, furydto.ErrAlreadyAffiliated},
		{"cannot afford", "poor", CreateInput{Name: "Paupers", Tag: "PP"}, furydto.ErrInsufficientResources},
		{"unknown account", "ghost", CreateInput{Name: "Ghosts", Tag: "GH"}, furydto.ErrAccountNotFound},
	}
	for _, c := range cases {
		if _, err := h.svc.Create(ctx, c.id, c.in); !errors.Is(err, c.want) {
			t.Fatalf("%s: err = %v, want %v", c.name, err, c.want)
		}
	}
	prog, _ := h.st.Progression(ctx, "poor")
	if prog.Resources.Gems != 99 {
		t.Fatalf("rejected create charged gems")
	}
}

func TestJoinAlliance(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	h.seed(t, "m1", 0, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")

	got, err := h.svc.Join(ctx, "m1", al.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if got.MemberCount != 2 || got.TotalPower != 2*defaultPower() {
		t.Fatalf("after join %+v", got)
	}
	if a := h.account(t, "m1"); a.AllianceID != al.ID || a.EffectiveRole() != domain.RoleMember {
		t.Fatalf("affiliation %+v", a)
	}
	if _, err := h.svc.Join(ctx, "m1", al.ID); !errors.Is(err, furydto.ErrAlreadyAffiliated) {
		t.Fatalf("second join err = %v", err)
	}
}

func TestJoinGates(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	h.seed(t, "low", 0, 3)
	h.seed(t, "x", 0, 10)
	if _, err := h.accts.Upsert(context.Background(), account.Upsert{ID: "fresh", Name: "n-fresh"}); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}
	al := h.create(t, "lead", "Frost Wolves", "FW")

	if _, err := h.svc.Join(ctx, "x", "missing"); !errors.Is(err, furydto.ErrAllianceNotFound) {
		t.Fatalf("missing alliance err = %v", err)
	}

	h.editAlliance(t, al.ID, func(a *domain.Alliance) { a.MinLevel = 5 })
	_, err := h.svc.Join(ctx, "low", al.ID)
	if !errors.Is(err, furydto.ErrLevelTooLow) || furydto.KindOf(err) != furydto.KindPrecondition {
		t.Fatalf("level gate err = %v", err)
	}
	if _, err := h.svc.Join(ctx, "fresh", al.ID); !errors.Is(err, furydto.ErrLevelTooLow) {
		t.Fatalf("no snapshot passed the level gate: %v", err)
	}

	h.editAlliance(t, al.ID, func(a *domain.Alliance) { a.Public = false })
	if _, err := h.svc.Join(ctx, "x", al.ID); !errors.Is(err, furydto.ErrAlliancePrivate) {
		t.Fatalf("private err = %v", err)
	}

	h.editAlliance(t, al.ID, func(a *domain.Alliance) { a.Public = true; a.MaxMembers = 1 })
	if _, err := h.svc.Join(ctx, "x", al.ID); !errors.Is(err, furydto.ErrAllianceFull) {
		t.Fatalf("full err = %v", err)
	}
	if h.alliance(t, al.ID).MemberCount != 1 {
		t.Fatalf("rejected joins changed the alliance")
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")
	h.editAlliance(t, al.ID, func(a *domain.Alliance) { a.MaxMembers = 4 })

	const joiners = 10
	for i := 0; i < joiners; i++ {
		h.seed(t, fmt.Sprintf("j%d", i), 0, 1)
	}
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.Join(ctx, fmt.Sprintf("j%d", i), al.ID)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, furydto.ErrAllianceFull):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	got := h.alliance(t, al.ID)
	if ok != 3 || got.MemberCount != 4 || len(got.Members) != 4 {
		t.Fatalf("joined %d, alliance %+v", ok, got)
	}
	if got.TotalPower != 4*defaultPower() {
		t.Fatalf("power = %d", got.TotalPower)
	}
}

func TestSoloLeaderLeaveDeletesAlliance(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")

	deleted, err := h.svc.Leave(ctx, "lead")
	if err != nil || !deleted {
		t.Fatalf("leave = %v, %v", deleted, err)
	}
	if h.alliance(t, al.ID) != nil {
		t.Fatalf("alliance still stored")
	}
	if a := h.account(t, "lead"); a.Affiliated() || a.AllianceRole != "" {
		t.Fatalf("affiliation not cleared: %+v", a)
	}
	if h.mr.Exists(store.AllianceNameKey("Frost Wolves")) || h.mr.Exists(store.AllianceTagKey("FW")) {
		t.Fatalf("name reservation survived deletion")
	}
	lb, _ := h.svc.Leaderboard(ctx, 10, 0)
	if lb.Total != 0 {
		t.Fatalf("deleted alliance still ranked")
	}

	h.seed(t, "next", 100, 1)
	h.create(t, "next", "Frost Wolves", "FW")
}

func TestLeaveRules(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	h.seed(t, "m1", 0, 1)
	h.seed(t, "loner", 0, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")
	if _, err := h.svc.Join(ctx, "m1", al.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := h.svc.SetOfficer(ctx, "lead", "m1", true); err != nil {
		t.Fatalf("promote: %v", err)
	}

	if _, err := h.svc.Leave(ctx, "loner"); !errors.Is(err, furydto.ErrNotAffiliated) {
		t.Fatalf("unaffiliated leave err = %v", err)
	}
	if _, err := h.svc.Leave(ctx, "lead"); !errors.Is(err, furydto.ErrLeadershipTransferRequired) {
		t.Fatalf("leader leave err = %v", err)
	}

	deleted, err := h.svc.Leave(ctx, "m1")
	if err != nil || deleted {
		t.Fatalf("member leave = %v, %v", deleted, err)
	}
	got := h.alliance(t, al.ID)
	if got.MemberCount != 1 || got.IsMember("m1") || got.IsOfficer("m1") || got.TotalPower != defaultPower() {
		t.Fatalf("after leave %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestTransferLeadershipAndOfficers(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	h.seed(t, "m1", 0, 1)
	h.seed(t, "m2", 0, 1)
	h.seed(t, "outsider", 0, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")
	for _, id := range []string{"m1", "m2"} {
		if _, err := h.svc.Join(ctx, id, al.ID); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	if _, err := h.svc.SetOfficer(ctx, "m1", "m2", true); !errors.Is(err, furydto.ErrNotLeader) {
		t.Fatalf("non-leader promote err = %v", err)
	}
	if _, err := h.svc.TransferLeadership(ctx, "lead", "outsider"); !errors.Is(err, furydto.ErrNotMember) {
		t.Fatalf("transfer to outsider err = %v", err)
	}
	if _, err := h.svc.SetOfficer(ctx, "lead", "m1", true); err != nil {
		t.Fatalf("promote: %v", err)
	}

	got, err := h.svc.TransferLeadership(ctx, "lead", "m1")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got.LeaderID != "m1" || got.IsOfficer("m1") || !got.IsOfficer("lead") {
		t.Fatalf("after transfer %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	if h.account(t, "m1").AllianceRole != domain.RoleLeader || h.account(t, "lead").AllianceRole != domain.RoleOfficer {
		t.Fatalf("roles not updated")
	}

	if _, err := h.svc.SetOfficer(ctx, "m1", "lead", false); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if h.alliance(t, al.ID).IsOfficer("lead") || h.account(t, "lead").AllianceRole != domain.RoleMember {
		t.Fatalf("demotion not applied")
	}
	deleted, err := h.svc.Leave(ctx, "lead")
	if err != nil || deleted {
		t.Fatalf("former leader leave = %v, %v", deleted, err)
	}
}

func TestMyRanksMembersByPower(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	if _, err := h.accts.Upsert(ctx, account.Upsert{ID: "strong", Name: "Strong", Progression: &domain.Progression{AxeDamage: 100, Level: 7}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h.seed(t, "loner", 0, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")
	if _, err := h.svc.Join(ctx, "strong", al.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	d, err := h.svc.My(ctx, "strong")
	if err != nil {
		t.Fatalf("my: %v", err)
	}
	if d.ID != al.ID || len(d.Members) != 2 || d.IsLeader || d.MyRole != domain.RoleMember {
		t.Fatalf("detail %+v", d)
	}
	if d.Members[0].ID != "strong" || d.Members[0].Level != 7 || !d.Members[1].IsLeader {
		t.Fatalf("member order %+v", d.Members)
	}

	none, err := h.svc.My(ctx, "loner")
	if err != nil || none != nil {
		t.Fatalf("unaffiliated my = %+v, %v", none, err)
	}
}

func TestSearchAndLeaderboard(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	names := []struct{ id, name, tag string }{
		{"a", "Frost Wolves", "FW"},
		{"b", "Ice Bears", "ICE"},
		{"c", "Frost Giants", "FG"},
		{"d", "Hidden Frost", "HF"},
	}
	ids := map[string]string{}
	for i, n := range names {
		h.seed(t, n.id, 100, 1)
		ids[n.id] = h.create(t, n.id, n.name, n.tag).ID
		h.editAlliance(t, ids[n.id], func(a *domain.Alliance) { a.TotalPower = int64(1000 * (i + 1)) })
	}
	h.editAlliance(t, ids["d"], func(a *domain.Alliance) { a.Public = false })

	res, err := h.svc.Search(ctx, "FROST", 1, 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 2 || res.Pages != 1 || res.Alliances[0].ID != ids["c"] || res.Alliances[1].ID != ids["a"] {
		t.Fatalf("search result %+v", res)
	}
	page2, _ := h.svc.Search(ctx, "", 2, 2)
	if page2.Total != 3 || page2.Pages != 2 || len(page2.Alliances) != 1 || page2.Alliances[0].ID != ids["a"] {
		t.Fatalf("page 2 %+v", page2)
	}
	far, err := h.svc.Search(ctx, "", math.MaxInt, 20)
	if err != nil || far.Total != 3 || len(far.Alliances) != 0 {
		t.Fatalf("page past the end %+v %v", far, err)
	}
	byTag, _ := h.svc.Search(ctx, "ic", 1, 20)
	if byTag.Total != 1 || byTag.Alliances[0].ID != ids["b"] {
		t.Fatalf("tag search %+v", byTag)
	}

	lb, err := h.svc.Leaderboard(ctx, 2, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb.Total != 4 || len(lb.Alliances) != 2 || lb.Alliances[0].ID != ids["d"] || lb.Alliances[1].Rank != 2 {
		t.Fatalf("leaderboard %+v", lb)
	}
}

func TestReconcilePowerFixesDrift(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	h.seed(t, "m1", 0, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")
	if _, err := h.svc.Join(ctx, "m1", al.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	h.editAlliance(t, al.ID, func(a *domain.Alliance) { a.TotalPower = 7 })

	total, drift, err := h.svc.ReconcilePower(ctx, al.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if total != 2*defaultPower() || drift != total-7 {
		t.Fatalf("total %d drift %d", total, drift)
	}
	if h.alliance(t, al.ID).TotalPower != total {
		t.Fatalf("total not stored")
	}

	fixed, err := h.svc.ReconcileAll(ctx)
	if err != nil || fixed != 0 {
		t.Fatalf("second pass fixed %d, %v", fixed, err)
	}
	if _, _, err := h.svc.ReconcilePower(ctx, "missing"); !errors.Is(err, furydto.ErrAllianceNotFound) {
		t.Fatalf("missing alliance err = %v", err)
	}
}

func TestUpsertShiftsAlliancePower(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	h.seed(t, "lead", 100, 1)
	al := h.create(t, "lead", "Frost Wolves", "FW")

	stronger := &domain.Progression{AxeDamage: 20}
	if _, err := h.accts.Upsert(ctx, account.Upsert{ID: "lead", Name: "n-lead", Progression: stronger}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := h.alliance(t, al.ID).TotalPower; got != power.Of(*stronger) {
		t.Fatalf("power = %d, want %d", got, power.Of(*stronger))
	}
}

func TestMembershipInvariantsHold(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	const players = 6
	for i := 0; i < players; i++ {
		h.seed(t, fmt.Sprintf("p%d", i), 1_000_000, 1)
	}
	var round int

	rapid.Check(t, func(rt *rapid.T) {
		round++
		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			p := fmt.Sprintf("p%d", rapid.IntRange(0, players-1).Draw(rt, "player"))
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				_, _ = h.svc.Create(ctx, p, CreateInput{Name: fmt.Sprintf("Clan %d-%d", round, s), Tag: fmt.Sprintf("C%d", s)})
			case 1:
				q := h.account(t, fmt.Sprintf("p%d", rapid.IntRange(0, players-1).Draw(rt, "other")))
				if q.Affiliated() {
					_, _ = h.svc.Join(ctx, p, q.AllianceID)
				}
			case 2:
				_, _ = h.svc.Leave(ctx, p)
			case 3:
				a := h.account(t, p)
				if a.Affiliated() {
					al := h.alliance(t, a.AllianceID)
					if al != nil && len(al.Members) > 1 {
						_, _ = h.svc.TransferLeadership(ctx, p, al.Members[len(al.Members)-1].AccountID)
					}
				}
			}
		}

		for i := 0; i < players; i++ {
			a := h.account(t, fmt.Sprintf("p%d", i))
			if !a.Affiliated() {
				continue
			}
			al := h.alliance(t, a.AllianceID)
			if al == nil {
				rt.Fatalf("%s points at a deleted alliance", a.ID)
			}
			if err := al.Validate(); err != nil {
				rt.Fatalf("invariant broken: %v", err)
			}
			if !al.IsMember(a.ID) {
				rt.Fatalf("%s affiliated but not a member", a.ID)
			}
			if (al.LeaderID == a.ID) != (a.AllianceRole == domain.RoleLeader) {
				rt.Fatalf("role %s disagrees with leader %s", a.AllianceRole, al.LeaderID)
			}
		}
	})
}
