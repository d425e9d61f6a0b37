package marketplace

import (
	"errors"
	"fmt"
	"math/big"
)

// Tier identifies a creator fee tier. Tiers are ordered; a higher tier means
// a larger cumulative listing count and a lower platform fee.
type Tier uint8

const (
	Tier0 Tier = iota
	Tier1
	Tier2
)

func (t Tier) String() string {
	return fmt.Sprintf("tier%d", uint8(t))
}

// TierRule maps a minimum cumulative listing count to the fee rate charged at
// and above that count, until the next rule takes over.
type TierRule struct {
	MinListings uint64
	FeeBps      uint32
}

// TierSchedule is the ordered set of tier rules. The first rule must start at
// zero so every listing count maps to exactly one tier; counts beyond the last
// threshold saturate at the last (lowest) rate.
type TierSchedule []TierRule

// DefaultTierSchedule returns the platform defaults: 5.00% below five
// listings, 4.00% below ten, 3.00% from ten onward.
func DefaultTierSchedule() TierSchedule {
	return TierSchedule{
		{MinListings: 0, FeeBps: 500},
		{MinListings: 5, FeeBps: 400},
		{MinListings: 10, FeeBps: 300},
	}
}

// Clone returns a copy of the schedule to avoid aliasing between callers.
func (s TierSchedule) Clone() TierSchedule {
	if len(s) == 0 {
		return TierSchedule{}
	}
	clone := make(TierSchedule, len(s))
	copy(clone, s)
	return clone
}

// Validate checks the schedule is totally ordered: thresholds strictly
// increase from zero and rates never increase with the listing count.
func (s TierSchedule) Validate() error {
	if len(s) == 0 {
		return errors.New("tier schedule: at least one rule required")
	}
	if s[0].MinListings != 0 {
		return errors.New("tier schedule: first rule must start at zero listings")
	}
	for i := 1; i < len(s); i++ {
		if s[i].MinListings <= s[i-1].MinListings {
			return fmt.Errorf("tier schedule: rule %d threshold must exceed rule %d", i, i-1)
		}
		if s[i].FeeBps > s[i-1].FeeBps {
			return fmt.Errorf("tier schedule: rule %d rate must not exceed rule %d", i, i-1)
		}
	}
	for _, rule := range s {
		if rule.FeeBps > 10_000 {
			return fmt.Errorf("tier schedule: rate %d exceeds 10000 bps", rule.FeeBps)
		}
	}
	return nil
}

// FeeForCount resolves the tier and fee rate for a cumulative listing count.
// The mapping is total: every count resolves to exactly one rule.
func (s TierSchedule) FeeForCount(count uint64) (Tier, uint32) {
	idx := 0
	for i := len(s) - 1; i > 0; i-- {
		if count >= s[i].MinListings {
			idx = i
			break
		}
	}
	return Tier(idx), s[idx].FeeBps
}

// QuoteFee splits a gross amount at the supplied rate. The fee is rounded
// down, so the creator keeps any sub-basis-point remainder; fee+net always
// equals gross for positive inputs.
func QuoteFee(gross *big.Int, feeBps uint32) (fee *big.Int, net *big.Int) {
	fee = big.NewInt(0)
	if gross == nil || gross.Sign() <= 0 {
		return fee, big.NewInt(0)
	}
	net = new(big.Int).Set(gross)
	if feeBps == 0 {
		return fee, net
	}
	fee = new(big.Int).Mul(gross, big.NewInt(int64(feeBps)))
	fee = fee.Div(fee, big.NewInt(10_000))
	if fee.Cmp(net) >= 0 {
		return new(big.Int).Set(net), big.NewInt(0)
	}
	return fee, net.Sub(net, fee)
}
