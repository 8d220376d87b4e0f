package pvp

import "math"

// EloExpected is the expected score of a player rated r against one rated opp.
func EloExpected(r, opp int) float64 {
	return 1 / (1 + math.Pow(10, float64(opp-r)/400))
}

// EloDelta is the rating the winner gains, and the loser gives up, for one result.
func EloDelta(k, winner, loser int) int {
	return int(math.Round(float64(k) * (1 - EloExpected(winner, loser))))
}

// WinRate is the rounded win percentage; zero games is 0.
func WinRate(wins, losses int) int {
	if wins+losses <= 0 {
		return 0
	}
	return int(math.Round(float64(wins) * 100 / float64(wins+losses)))
}
