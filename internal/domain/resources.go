package domain

// Resources is a wood/meat/gems bundle. Balances and transfer amounts are never negative.
type Resources struct {
	Wood int64 `json:"wood"`
	Meat int64 `json:"meat"`
	Gems int64 `json:"gems"`
}

func (r Resources) IsZero() bool { return r.Wood == 0 && r.Meat == 0 && r.Gems == 0 }

// NonNegative replaces negative amounts with zero.
func (r Resources) NonNegative() Resources {
	return Resources{Wood: max(r.Wood, 0), Meat: max(r.Meat, 0), Gems: max(r.Gems, 0)}
}

// Clamp limits each requested amount to [0, balance].
func (r Resources) Clamp(balance Resources) Resources {
	r = r.NonNegative()
	balance = balance.NonNegative()
	return Resources{
		Wood: min(r.Wood, balance.Wood),
		Meat: min(r.Meat, balance.Meat),
		Gems: min(r.Gems, balance.Gems),
	}
}

func (r Resources) Add(o Resources) Resources {
	return Resources{Wood: r.Wood + o.Wood, Meat: r.Meat + o.Meat, Gems: r.Gems + o.Gems}
}

// Sub subtracts o and floors every field at zero.
func (r Resources) Sub(o Resources) Resources {
	return Resources{Wood: r.Wood - o.Wood, Meat: r.Meat - o.Meat, Gems: r.Gems - o.Gems}.NonNegative()
}

// ContributionValue is the alliance contribution credited for giving r away.
func (r Resources) ContributionValue() int64 { return r.Wood + r.Meat + 10*r.Gems }
