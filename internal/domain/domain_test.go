package domain

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCooldownWindowPerTarget(t *testing.T) {
	a := NewAccount("a", "Astrid", false, t0)
	a.RecordAttack("t", t0)

	if a.CanAttack("t", t0.Add(time.Hour-time.Millisecond), time.Hour) {
		t.Fatalf("attack allowed before window elapsed")
	}
	if got := a.CooldownRemaining("t", t0.Add(59*time.Minute), time.Hour); got != time.Minute {
		t.Fatalf("remaining = %v, want 1m", got)
	}
	if !a.CanAttack("t", t0.Add(time.Hour), time.Hour) {
		t.Fatalf("attack blocked at window end")
	}
	if !a.CanAttack("t2", t0, time.Hour) {
		t.Fatalf("cooldown leaked to another target")
	}
}

func TestPruneAttacks(t *testing.T) {
	a := NewAccount("a", "Astrid", false, t0)
	a.RecordAttack("old", t0)
	a.RecordAttack("new", t0.Add(30*time.Minute))
	a.PruneAttacks(t0.Add(time.Hour), time.Hour)
	if _, ok := a.LastAttacks["old"]; ok {
		t.Fatalf("expired entry kept")
	}
	if _, ok := a.LastAttacks["new"]; !ok {
		t.Fatalf("live entry dropped")
	}
}

func TestShieldLastWriteWins(t *testing.T) {
	a := NewAccount("a", "Astrid", false, t0)
	if a.IsShielded(t0) {
		t.Fatalf("new account shielded")
	}
	a.ApplyShield(t0, 24*time.Hour)
	a.ApplyShield(t0, 4*time.Hour)
	if got := a.ShieldRemaining(t0); got != 4*time.Hour {
		t.Fatalf("remaining = %v, want 4h", got)
	}
	if a.IsShielded(t0.Add(4 * time.Hour)) {
		t.Fatalf("shield still active at expiry")
	}
}

func TestAdjustRatingFloor(t *testing.T) {
	a := &Account{Rating: 110}
	if got := a.AdjustRating(-30, 100); got != -10 || a.Rating != 100 {
		t.Fatalf("applied %d rating %d, want -10/100", got, a.Rating)
	}
}

func TestResourcesClamp(t *testing.T) {
	got := Resources{Wood: 300, Meat: -5, Gems: 50}.Clamp(Resources{Wood: 200, Meat: 10, Gems: 80})
	want := Resources{Wood: 200, Meat: 0, Gems: 50}
	if got != want {
		t.Fatalf("clamp = %+v, want %+v", got, want)
	}
	if v := (Resources{Wood: 1, Meat: 2, Gems: 3}).ContributionValue(); v != 33 {
		t.Fatalf("contribution = %d, want 33", v)
	}
	if s := (Resources{Wood: 5}).Sub(Resources{Wood: 9}); s.Wood != 0 {
		t.Fatalf("sub went negative: %+v", s)
	}
}

func TestCreditCapsWoodAndMeat(t *testing.T) {
	p := &Progression{Resources: Resources{Wood: 950, Meat: 600}, MaxWood: 1000, MaxMeat: 500}
	got := p.Credit(Resources{Wood: 100, Meat: 100, Gems: 7})
	if got != (Resources{Wood: 50, Meat: 0, Gems: 7}) {
		t.Fatalf("credited %+v", got)
	}
	if p.Resources.Meat != 600 {
		t.Fatalf("over-cap meat reduced to %d", p.Resources.Meat)
	}
}

func TestAllianceMembership(t *testing.T) {
	al := &Alliance{LeaderID: "a", MaxMembers: 2}
	al.AddMember("a", t0)
	al.AddMember("a", t0)
	al.AddMember("b", t0)
	al.Promote("b")
	if al.MemberCount != 2 || !al.Full() || !al.IsOfficer("b") {
		t.Fatalf("unexpected state %+v", al)
	}
	al.AddContribution("b", 40, t0)
	al.AddContribution("b", -10, t0)
	if al.Members[1].Contribution != 40 {
		t.Fatalf("contribution = %d, want 40", al.Members[1].Contribution)
	}
	al.RemoveMember("b")
	if al.MemberCount != 1 || al.IsOfficer("b") || al.IsMember("b") {
		t.Fatalf("remove left traces %+v", al)
	}
}

func TestGiftClaimable(t *testing.T) {
	g := &Gift{ToID: "y", ExpiresAt: t0.Add(DefaultGiftTTL)}
	if !g.ClaimableBy("y", t0) || g.ClaimableBy("z", t0) {
		t.Fatalf("claimable by wrong recipient")
	}
	if g.ClaimableBy("y", g.ExpiresAt) {
		t.Fatalf("claimable at expiry")
	}
	g.Claimed = true
	if g.ClaimableBy("y", t0) {
		t.Fatalf("claimable twice")
	}
}
