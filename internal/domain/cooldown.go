package domain

import "time"

// CooldownRemaining is how long the account must still wait before attacking target
// again. Zero means it may attack now; no entry means it never attacked target.
func (a *Account) CooldownRemaining(target string, now time.Time, window time.Duration) time.Duration {
	last, ok := a.LastAttacks[target]
	if !ok {
		return 0
	}
	left := last.Add(window).Sub(now)
	if left <= 0 {
		return 0
	}
	return left
}

func (a *Account) CanAttack(target string, now time.Time, window time.Duration) bool {
	return a.CooldownRemaining(target, now, window) == 0
}

func (a *Account) RecordAttack(target string, now time.Time) {
	if a.LastAttacks == nil {
		a.LastAttacks = make(map[string]time.Time)
	}
	a.LastAttacks[target] = now
}

// PruneAttacks drops entries whose window has already elapsed.
func (a *Account) PruneAttacks(now time.Time, window time.Duration) {
	for target, last := range a.LastAttacks {
		if !now.Before(last.Add(window)) {
			delete(a.LastAttacks, target)
		}
	}
}
