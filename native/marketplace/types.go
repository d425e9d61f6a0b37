package marketplace

import "math/big"

// Listing is a creator-published product that callers can stake on and use.
// Deactivation is terminal; a listing is never physically deleted.
type Listing struct {
	ID          uint64   `json:"id"`
	Creator     [20]byte `json:"creator"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       *big.Int `json:"price"`
	Private     bool     `json:"private"`
	TotalStaked *big.Int `json:"totalStaked"`
	Loves       uint64   `json:"loves"`
	CreatedAt   uint64   `json:"createdAt"`
	Active      bool     `json:"active"`
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	}
	if l.TotalStaked != nil {
		clone.TotalStaked = new(big.Int).Set(l.TotalStaked)
	}
	return &clone
}

// StakePosition accumulates a single staker's contributions to one listing.
// Repeated stakes add to Amount; no withdrawal path exists, so Amount never
// decreases.
type StakePosition struct {
	ListingID     uint64   `json:"listingId"`
	Staker        [20]byte `json:"staker"`
	Amount        *big.Int `json:"amount"`
	FirstStakedAt uint64   `json:"firstStakedAt"`
	LastStakedAt  uint64   `json:"lastStakedAt"`
}

// Clone returns a deep copy of the stake position.
func (s *StakePosition) Clone() *StakePosition {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Amount != nil {
		clone.Amount = new(big.Int).Set(s.Amount)
	}
	return &clone
}

// CreatorStats tracks the per-creator counters the fee tier derives from.
// The tier itself is never stored; it is recomputed from the count on read.
type CreatorStats struct {
	Creator              [20]byte `json:"creator"`
	TotalListingsCreated uint64   `json:"totalListingsCreated"`
}

// Clone returns a copy of the stats record.
func (c *CreatorStats) Clone() *CreatorStats {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// FeeQuote is the fee split a creator's current tier yields for a gross
// amount. Fee plus Net always equals the quoted gross.
type FeeQuote struct {
	Tier   Tier     `json:"tier"`
	FeeBps uint32   `json:"feeBps"`
	Gross  *big.Int `json:"gross"`
	Fee    *big.Int `json:"fee"`
	Net    *big.Int `json:"net"`
}

// RankedListing pairs a listing id with its read-time discovery score.
type RankedListing struct {
	ID    uint64  `json:"id"`
	Score float64 `json:"score"`
}
