package services

// Rank is a named milestone on the XP ladder. Total XP is always derived from
// the transaction ledger, so rank is derived too, never stored.
type Rank struct {
	Name  string `json:"name"`
	MinXp int    `json:"min_xp"`
}

var rankLadder = []Rank{
	{Name: "novice", MinXp: 0},
	{Name: "explorer", MinXp: 100},
	{Name: "operator", MinXp: 250},
	{Name: "administrator", MinXp: 500},
	{Name: "sre", MinXp: 1000},
	{Name: "cluster-whisperer", MinXp: 2500},
}

// RankForXp returns the highest rank whose threshold totalXp reaches.
func RankForXp(totalXp int) Rank {
	current := rankLadder[0]
	for _, r := range rankLadder[1:] {
		if totalXp < r.MinXp {
			break
		}
		current = r
	}
	return current
}
