package marketplace

import (
	"encoding/hex"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/core/events"
	"agora/core/types"
)

const (
	maxNameBytes        = 256
	maxDescriptionBytes = 4096
	maxCategoryBytes    = 64
)

// engineState is the narrow ledger surface the engine mutates. A state
// implementation must apply each Put atomically; the engine serializes
// mutating calls itself so no state method ever runs concurrently with
// another mutation.
type engineState interface {
	MarketListingGet(id uint64) (*Listing, bool, error)
	MarketListingPut(listing *Listing) error
	MarketNextListingID() (uint64, error)
	MarketListings() ([]*Listing, error)
	MarketListingsByCreator(creator [20]byte) ([]uint64, error)
	MarketStakeGet(listingID uint64, staker [20]byte) (*StakePosition, bool, error)
	MarketStakePut(position *StakePosition) error
	MarketCreatorStatsGet(creator [20]byte) (*CreatorStats, bool, error)
	MarketCreatorStatsPut(stats *CreatorStats) error
	MarketAccessGrantGet(listingID uint64, grantee [20]byte) (bool, error)
	MarketAccessGrantPut(listingID uint64, grantee [20]byte) error
	MarketAccessGrantDelete(listingID uint64, grantee [20]byte) error
	MarketEventAppend(listingID uint64, evt *types.Event) (*types.StoredEvent, error)
	MarketEventsByListing(listingID uint64) ([]*types.StoredEvent, error)
}

// Engine is the settlement dispatcher: the single entry point that validates
// every mutating marketplace operation, applies it to the ledger, and emits
// the corresponding audit event. Mutations are serialized behind one lock;
// reads run concurrently and only ever observe fully applied states.
type Engine struct {
	mu       sync.RWMutex
	state    engineState
	emitter  events.Emitter
	nowFn    func() int64
	schedule TierSchedule
	halfLife uint64
}

// NewEngine constructs a marketplace engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		schedule: DefaultTierSchedule(),
		halfLife: DefaultHalfLifeSeconds,
	}
}

// SetState configures the ledger backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetTierSchedule replaces the creator fee schedule after validating it.
func (e *Engine) SetTierSchedule(schedule TierSchedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	e.schedule = schedule.Clone()
	return nil
}

// SetRankingHalfLife overrides the decay window used by ranked reads.
func (e *Engine) SetRankingHalfLife(seconds uint64) {
	if seconds == 0 {
		seconds = DefaultHalfLifeSeconds
	}
	e.halfLife = seconds
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) record(listingID uint64, evt *types.Event) error {
	stored, err := e.state.MarketEventAppend(listingID, evt)
	if err != nil {
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(WrapStoredEvent(stored))
	}
	return nil
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// CreateListing validates and publishes a new listing, returning the stored
// snapshot. The id allocator only advances after validation passes, so a
// rejected request never consumes an id.
func (e *Engine) CreateListing(creator [20]byte, name, description, category string, price *big.Int, private bool) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(name) > maxNameBytes {
		return nil, ErrNameTooLong
	}
	description = strings.TrimSpace(description)
	if len(description) > maxDescriptionBytes {
		return nil, ErrDescriptionTooLong
	}
	category = strings.TrimSpace(category)
	if len(category) > maxCategoryBytes {
		return nil, ErrCategoryTooLong
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.state.MarketNextListingID()
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:          id,
		Creator:     creator,
		Name:        name,
		Description: description,
		Category:    category,
		Price:       new(big.Int).Set(price),
		Private:     private,
		TotalStaked: big.NewInt(0),
		CreatedAt:   uint64(e.now()),
		Active:      true,
	}
	if err := e.state.MarketListingPut(listing); err != nil {
		return nil, err
	}
	stats, ok, err := e.state.MarketCreatorStatsGet(creator)
	if err != nil {
		return nil, err
	}
	if !ok || stats == nil {
		stats = &CreatorStats{Creator: creator}
	}
	stats.TotalListingsCreated++
	if err := e.state.MarketCreatorStatsPut(stats); err != nil {
		return nil, err
	}
	if err := e.record(id, ListingCreatedEvent(listing)); err != nil {
		return nil, err
	}
	return listing.Clone(), nil
}

// Stake accumulates a contribution against an active listing. The position
// and the listing's running total move together; a reader can never observe
// one without the other.
func (e *Engine) Stake(listingID uint64, staker [20]byte, amount *big.Int) (*StakePosition, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrZeroStake
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok, err := e.state.MarketListingGet(listingID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || listing == nil {
		return nil, nil, ErrListingNotFound
	}
	if !listing.Active {
		return nil, nil, ErrListingInactive
	}
	position, ok, err := e.state.MarketStakeGet(listingID, staker)
	if err != nil {
		return nil, nil, err
	}
	now := uint64(e.now())
	if !ok || position == nil {
		position = &StakePosition{
			ListingID:     listingID,
			Staker:        staker,
			Amount:        big.NewInt(0),
			FirstStakedAt: now,
		}
	}
	position.Amount = new(big.Int).Add(position.Amount, amount)
	position.LastStakedAt = now
	if listing.TotalStaked == nil {
		listing.TotalStaked = big.NewInt(0)
	}
	listing.TotalStaked = new(big.Int).Add(listing.TotalStaked, amount)
	if err := e.state.MarketStakePut(position); err != nil {
		return nil, nil, err
	}
	if err := e.state.MarketListingPut(listing); err != nil {
		return nil, nil, err
	}
	if err := e.record(listingID, ListingStakedEvent(listingID, hexAddr(staker), amount.String(), listing.TotalStaked.String())); err != nil {
		return nil, nil, err
	}
	return position.Clone(), new(big.Int).Set(listing.TotalStaked), nil
}

// Love increments a listing's love counter and returns the new count. The
// engine performs no deduplication; repeated loves accumulate.
func (e *Engine) Love(listingID uint64, caller [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok, err := e.state.MarketListingGet(listingID)
	if err != nil {
		return 0, err
	}
	if !ok || listing == nil {
		return 0, ErrListingNotFound
	}
	if !listing.Active {
		return 0, ErrListingInactive
	}
	listing.Loves++
	if err := e.state.MarketListingPut(listing); err != nil {
		return 0, err
	}
	if err := e.record(listingID, ListingLovedEvent(listingID, hexAddr(caller), listing.Loves)); err != nil {
		return 0, err
	}
	return listing.Loves, nil
}

// Deactivate retires a listing. Only the creator may call it and the
// transition is terminal; there is no reactivation path.
func (e *Engine) Deactivate(listingID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok, err := e.state.MarketListingGet(listingID)
	if err != nil {
		return err
	}
	if !ok || listing == nil {
		return ErrListingNotFound
	}
	if listing.Creator != caller {
		return ErrNotCreator
	}
	if !listing.Active {
		return ErrListingInactive
	}
	listing.Active = false
	if err := e.state.MarketListingPut(listing); err != nil {
		return err
	}
	return e.record(listingID, ListingDeactivatedEvent(listingID, hexAddr(listing.Creator)))
}

// GrantAccess adds a grantee to a private listing's allow-list. Granting on a
// public or inactive listing is permitted; access outlives deactivation the
// same way recorded stakes do. The operation is idempotent.
func (e *Engine) GrantAccess(listingID uint64, caller [20]byte, grantee [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok, err := e.state.MarketListingGet(listingID)
	if err != nil {
		return err
	}
	if !ok || listing == nil {
		return ErrListingNotFound
	}
	if listing.Creator != caller {
		return ErrNotCreator
	}
	granted, err := e.state.MarketAccessGrantGet(listingID, grantee)
	if err != nil {
		return err
	}
	if granted {
		return nil
	}
	if err := e.state.MarketAccessGrantPut(listingID, grantee); err != nil {
		return err
	}
	return e.record(listingID, AccessGrantedEvent(listingID, hexAddr(listing.Creator), hexAddr(grantee)))
}

// RevokeGrant removes a grantee from the allow-list. Stake-derived access is
// untouched; a staker stays unlocked even after their grant is revoked.
func (e *Engine) RevokeGrant(listingID uint64, caller [20]byte, grantee [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok, err := e.state.MarketListingGet(listingID)
	if err != nil {
		return err
	}
	if !ok || listing == nil {
		return ErrListingNotFound
	}
	if listing.Creator != caller {
		return ErrNotCreator
	}
	granted, err := e.state.MarketAccessGrantGet(listingID, grantee)
	if err != nil {
		return err
	}
	if !granted {
		return ErrGrantNotFound
	}
	if err := e.state.MarketAccessGrantDelete(listingID, grantee); err != nil {
		return err
	}
	return e.record(listingID, AccessRevokedEvent(listingID, hexAddr(listing.Creator), hexAddr(grantee)))
}

// GetListing returns a snapshot of the listing without mutating state.
func (e *Engine) GetListing(listingID uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	listing, ok, err := e.state.MarketListingGet(listingID)
	if err != nil {
		return nil, err
	}
	if !ok || listing == nil {
		return nil, ErrListingNotFound
	}
	return listing.Clone(), nil
}

// StakeOf returns the accumulated position for one staker on one listing.
// A staker with no recorded position gets a zero-amount snapshot.
func (e *Engine) StakeOf(listingID uint64, staker [20]byte) (*StakePosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok, err := e.state.MarketListingGet(listingID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrListingNotFound
	}
	position, ok, err := e.state.MarketStakeGet(listingID, staker)
	if err != nil {
		return nil, err
	}
	if !ok || position == nil {
		return &StakePosition{ListingID: listingID, Staker: staker, Amount: big.NewInt(0)}, nil
	}
	return position.Clone(), nil
}

// CreatorTier resolves the creator's current tier and fee rate. The tier is
// recomputed from the stored listing count on every call so it can never go
// stale.
func (e *Engine) CreatorTier(creator [20]byte) (Tier, uint32, error) {
	if e == nil || e.state == nil {
		return 0, 0, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	count, err := e.creatorListingCount(creator)
	if err != nil {
		return 0, 0, err
	}
	tier, bps := e.schedule.FeeForCount(count)
	return tier, bps, nil
}

// QuoteCreatorFee splits a gross amount at the creator's current tier rate.
func (e *Engine) QuoteCreatorFee(creator [20]byte, gross *big.Int) (*FeeQuote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	count, err := e.creatorListingCount(creator)
	if err != nil {
		return nil, err
	}
	tier, bps := e.schedule.FeeForCount(count)
	fee, net := QuoteFee(gross, bps)
	quote := &FeeQuote{Tier: tier, FeeBps: bps, Gross: big.NewInt(0), Fee: fee, Net: net}
	if gross != nil {
		quote.Gross = new(big.Int).Set(gross)
	}
	return quote, nil
}

func (e *Engine) creatorListingCount(creator [20]byte) (uint64, error) {
	stats, ok, err := e.state.MarketCreatorStatsGet(creator)
	if err != nil {
		return 0, err
	}
	if !ok || stats == nil {
		return 0, nil
	}
	return stats.TotalListingsCreated, nil
}

// HasAccess reports whether the caller may use the listing. Public listings
// admit everyone; private listings admit the creator, recorded stakers, and
// explicit grantees. The check is pure and safe to call arbitrarily often.
func (e *Engine) HasAccess(listingID uint64, caller [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	listing, ok, err := e.state.MarketListingGet(listingID)
	if err != nil {
		return false, err
	}
	if !ok || listing == nil {
		return false, ErrListingNotFound
	}
	if !listing.Private {
		return true, nil
	}
	if listing.Creator == caller {
		return true, nil
	}
	position, ok, err := e.state.MarketStakeGet(listingID, caller)
	if err != nil {
		return false, err
	}
	if ok && position != nil && position.Amount != nil && position.Amount.Sign() > 0 {
		return true, nil
	}
	return e.state.MarketAccessGrantGet(listingID, caller)
}

// RankedListings orders active listings by their decayed score at the given
// time, highest first. An empty category matches every listing. Ties resolve
// to the higher id so ordering stays deterministic across calls.
func (e *Engine) RankedListings(category string, now int64) ([]RankedListing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	listings, err := e.state.MarketListings()
	if err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	ranked := make([]RankedListing, 0, len(listings))
	for _, listing := range listings {
		if listing == nil || !listing.Active {
			continue
		}
		if category != "" && !strings.EqualFold(listing.Category, category) {
			continue
		}
		ranked = append(ranked, RankedListing{ID: listing.ID, Score: Score(listing, now, e.halfLife)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID > ranked[j].ID
	})
	return ranked, nil
}

// CreatorListings returns the ids of every listing the creator has published,
// in creation order.
func (e *Engine) CreatorListings(creator [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.MarketListingsByCreator(creator)
}

// ListingEvents returns the persisted audit log for a listing in sequence
// order.
func (e *Engine) ListingEvents(listingID uint64) ([]*types.StoredEvent, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok, err := e.state.MarketListingGet(listingID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrListingNotFound
	}
	return e.state.MarketEventsByListing(listingID)
}
