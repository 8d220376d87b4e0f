package domain

import "time"

func (a *Account) IsShielded(now time.Time) bool {
	return a.ShieldUntil != nil && a.ShieldUntil.After(now)
}

// ApplyShield sets the expiry to now+d. The last applied shield wins, even when it is
// shorter than what was left.
func (a *Account) ApplyShield(now time.Time, d time.Duration) {
	until := now.Add(d)
	a.ShieldUntil = &until
}

func (a *Account) ShieldRemaining(now time.Time) time.Duration {
	if !a.IsShielded(now) {
		return 0
	}
	return a.ShieldUntil.Sub(now)
}
