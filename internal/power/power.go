// Package power derives the single comparable strength number used by matchmaking,
// combat and alliance aggregates.
package power

import (
	"math"

	"github.com/park285/frostfury-server/internal/domain"
)

// Weights of the reference formula.
const (
	wAxeDamage       = 10.0
	wCritChance      = 500.0
	wCritDamage      = 100.0
	wDamageReduction = 300.0
	wMaxHealth       = 2.0
	wAttackSpeed     = 50.0
	wLevel           = 50.0
	wHighestWave     = 20.0
	wFortification   = 100.0
)

// Of computes the power score of a progression snapshot. Unset stats take their
// progression defaults before weighting; the result is floored and never negative.
func Of(p domain.Progression) int64 {
	p = p.WithDefaults()
	score := wAxeDamage*p.AxeDamage +
		wCritChance*p.CritChance +
		wCritDamage*p.CritDamage +
		wDamageReduction*p.DamageReduction +
		wMaxHealth*p.MaxHealth +
		wAttackSpeed*p.AttackSpeed +
		wLevel*float64(p.Level) +
		wHighestWave*float64(p.HighestWave) +
		wFortification*float64(p.DefenseLevel+p.WallLevel)
	if score <= 0 || math.IsNaN(score) {
		return 0
	}
	if score >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(score))
}

// OfSnapshot is Of for an optional snapshot; an account without one has no power.
func OfSnapshot(p *domain.Progression) int64 {
	if p == nil {
		return 0
	}
	return Of(*p)
}
