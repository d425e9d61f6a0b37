package marketplace

import (
	"math"
	"math/big"
)

const (
	// loveBoost is the score contribution of a single love.
	loveBoost = 0.1
	// DefaultHalfLifeSeconds is the decay window applied to listing age.
	DefaultHalfLifeSeconds uint64 = 7 * 24 * 60 * 60
	// displayDecimals converts minor units to the display unit used in
	// score arithmetic, so staked value and loves combine on one scale.
	displayDecimals = 18
)

var displayUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(displayDecimals), nil))

func displayAmount(v *big.Int) float64 {
	if v == nil || v.Sign() == 0 {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), displayUnit).Float64()
	return f
}

// Score computes the discovery score for a listing snapshot at the supplied
// time. The score is (staked value + love boost) scaled by exponential age
// decay; it is pure and recomputed on every read, never persisted.
func Score(listing *Listing, now int64, halfLifeSeconds uint64) float64 {
	if listing == nil {
		return 0
	}
	if halfLifeSeconds == 0 {
		halfLifeSeconds = DefaultHalfLifeSeconds
	}
	base := displayAmount(listing.TotalStaked)
	boost := float64(listing.Loves) * loveBoost
	age := now - int64(listing.CreatedAt)
	if age < 0 {
		age = 0
	}
	decay := math.Exp(-float64(age) / float64(halfLifeSeconds))
	return (base + boost) * decay
}
