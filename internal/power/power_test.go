package power

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/park285/frostfury-server/internal/domain"
)

func TestOfDefaults(t *testing.T) {
	// 10*10 + 500*0.05 + 100*1.5 + 0 + 2*100 + 50*1 + 50*1 + 20*1 + 100*1
	got := Of(domain.Progression{})
	if got != 695 {
		t.Fatalf("default power = %d, want 695", got)
	}
}

func TestOfNilSnapshot(t *testing.T) {
	if OfSnapshot(nil) != 0 {
		t.Fatalf("nil snapshot should have zero power")
	}
}

func TestOfKnownSnapshot(t *testing.T) {
	p := domain.Progression{
		Level: 10, MaxHealth: 250, AxeDamage: 40, AttackSpeed: 1.5,
		CritChance: 0.2, CritDamage: 2, DamageReduction: 0.1,
		HighestWave: 12, DefenseLevel: 3, WallLevel: 2,
	}
	// 400 + 100 + 200 + 30 + 500 + 75 + 500 + 240 + 500
	if got := Of(p); got != 2545 {
		t.Fatalf("power = %d, want 2545", got)
	}
}

func genProgression(t *rapid.T) domain.Progression {
	return domain.Progression{
		Level:           rapid.IntRange(1, domain.MaxLevel).Draw(t, "level"),
		MaxHealth:       float64(rapid.IntRange(100, 100_000).Draw(t, "maxHealth")),
		AxeDamage:       float64(rapid.IntRange(10, 100_000).Draw(t, "axe")),
		AttackSpeed:     float64(rapid.IntRange(1, 20).Draw(t, "speed")),
		CritChance:      float64(rapid.IntRange(5, 100).Draw(t, "critPct")) / 100,
		CritDamage:      float64(rapid.IntRange(15, 100).Draw(t, "critDmg10")) / 10,
		DamageReduction: float64(rapid.IntRange(0, 90).Draw(t, "dmgRedPct")) / 100,
		HighestWave:     rapid.IntRange(1, 10_000).Draw(t, "wave"),
		DefenseLevel:    rapid.IntRange(1, 100).Draw(t, "defense"),
		WallLevel:       rapid.IntRange(0, 100).Draw(t, "wall"),
	}
}

func TestOfMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := genProgression(t)
		before := Of(base)
		if before < 0 {
			t.Fatalf("negative power %d", before)
		}

		up := base
		switch rapid.IntRange(0, 9).Draw(t, "stat") {
		case 0:
			up.Level++
		case 1:
			up.MaxHealth++
		case 2:
			up.AxeDamage++
		case 3:
			up.AttackSpeed++
		case 4:
			up.CritChance += 0.01
		case 5:
			up.CritDamage += 0.1
		case 6:
			up.DamageReduction += 0.01
		case 7:
			up.HighestWave++
		case 8:
			up.DefenseLevel++
		case 9:
			up.WallLevel++
		}
		if after := Of(up); after <= before {
			t.Fatalf("power did not increase: %d -> %d (%+v)", before, after, up)
		}
	})
}
