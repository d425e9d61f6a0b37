package state

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"agora/core/types"
	"agora/native/marketplace"
	"agora/storage"
)

// Manager is the authoritative ledger store for marketplace records. Keys are
// prefixed and big-endian ordered so point lookups stay O(1) while creator
// and event scans walk a contiguous key range. Records round-trip through RLP
// for a deterministic, auditable byte encoding.
type Manager struct {
	db storage.Database
}

// NewManager creates a ledger manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	listingPrefix      = []byte("market/listing/")
	stakePrefix        = []byte("market/stake/")
	creatorStatsPrefix = []byte("market/creator/")
	creatorIndexPrefix = []byte("market/creator-index/")
	grantPrefix        = []byte("market/grant/")
	eventSeqPrefix     = []byte("market/seq/")
	eventPrefix        = []byte("market/events/")
	listingIDKey       = []byte("market/id")
	eventOrdinalKey    = []byte("market/ordinal")
)

var grantMarker = []byte{0x01}

func u64be(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func listingKey(id uint64) []byte {
	return append(append([]byte{}, listingPrefix...), u64be(id)...)
}

func stakeKey(listingID uint64, staker [20]byte) []byte {
	key := append(append([]byte{}, stakePrefix...), u64be(listingID)...)
	return append(key, staker[:]...)
}

func creatorStatsKey(creator [20]byte) []byte {
	return append(append([]byte{}, creatorStatsPrefix...), creator[:]...)
}

func creatorIndexKey(creator [20]byte, listingID uint64) []byte {
	key := append(append([]byte{}, creatorIndexPrefix...), creator[:]...)
	return append(key, u64be(listingID)...)
}

func grantKey(listingID uint64, grantee [20]byte) []byte {
	key := append(append([]byte{}, grantPrefix...), u64be(listingID)...)
	return append(key, grantee[:]...)
}

func eventSeqKey(listingID uint64) []byte {
	return append(append([]byte{}, eventSeqPrefix...), u64be(listingID)...)
}

func eventKey(listingID uint64, seq uint64) []byte {
	key := append(append([]byte{}, eventPrefix...), u64be(listingID)...)
	return append(key, u64be(seq)...)
}

func (m *Manager) readCounter(key []byte) (uint64, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, fmt.Errorf("ledger: decode counter %q: %w", key, err)
	}
	return value, nil
}

func (m *Manager) writeCounter(key []byte, value uint64) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func normalizeListing(listing *marketplace.Listing) {
	if listing.Price == nil {
		listing.Price = big.NewInt(0)
	}
	if listing.TotalStaked == nil {
		listing.TotalStaked = big.NewInt(0)
	}
}

// MarketListingGet loads a listing snapshot by id.
func (m *Manager) MarketListingGet(id uint64) (*marketplace.Listing, bool, error) {
	data, err := m.db.Get(listingKey(id))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	listing := new(marketplace.Listing)
	if err := rlp.DecodeBytes(data, listing); err != nil {
		return nil, false, fmt.Errorf("ledger: decode listing %d: %w", id, err)
	}
	normalizeListing(listing)
	return listing, true, nil
}

// MarketListingPut stores a listing and maintains the creator index.
func (m *Manager) MarketListingPut(listing *marketplace.Listing) error {
	if listing == nil {
		return nil
	}
	record := listing.Clone()
	normalizeListing(record)
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("ledger: encode listing %d: %w", listing.ID, err)
	}
	if err := m.db.Put(listingKey(record.ID), encoded); err != nil {
		return err
	}
	return m.db.Put(creatorIndexKey(record.Creator, record.ID), grantMarker)
}

// MarketNextListingID advances and returns the global listing id allocator.
// The increment is persisted before the id is handed out, so an id is never
// issued twice even when the caller's operation later fails.
func (m *Manager) MarketNextListingID() (uint64, error) {
	last, err := m.readCounter(listingIDKey)
	if err != nil {
		return 0, err
	}
	next := last + 1
	if err := m.writeCounter(listingIDKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// MarketListings returns every stored listing in id order.
func (m *Manager) MarketListings() ([]*marketplace.Listing, error) {
	var listings []*marketplace.Listing
	var scanErr error
	err := m.db.IteratePrefix(listingPrefix, func(key, value []byte) bool {
		listing := new(marketplace.Listing)
		if decodeErr := rlp.DecodeBytes(value, listing); decodeErr != nil {
			scanErr = fmt.Errorf("ledger: decode listing at %q: %w", key, decodeErr)
			return false
		}
		normalizeListing(listing)
		listings = append(listings, listing)
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return listings, nil
}

// MarketListingsByCreator returns the creator's listing ids in creation order.
func (m *Manager) MarketListingsByCreator(creator [20]byte) ([]uint64, error) {
	prefix := append(append([]byte{}, creatorIndexPrefix...), creator[:]...)
	ids := make([]uint64, 0)
	err := m.db.IteratePrefix(prefix, func(key, value []byte) bool {
		if len(key) >= 8 {
			ids = append(ids, binary.BigEndian.Uint64(key[len(key)-8:]))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarketStakeGet loads one staker's accumulated position on a listing.
func (m *Manager) MarketStakeGet(listingID uint64, staker [20]byte) (*marketplace.StakePosition, bool, error) {
	data, err := m.db.Get(stakeKey(listingID, staker))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	position := new(marketplace.StakePosition)
	if err := rlp.DecodeBytes(data, position); err != nil {
		return nil, false, fmt.Errorf("ledger: decode stake %d: %w", listingID, err)
	}
	if position.Amount == nil {
		position.Amount = big.NewInt(0)
	}
	return position, true, nil
}

// MarketStakePut stores a stake position.
func (m *Manager) MarketStakePut(position *marketplace.StakePosition) error {
	if position == nil {
		return nil
	}
	record := position.Clone()
	if record.Amount == nil {
		record.Amount = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("ledger: encode stake %d: %w", position.ListingID, err)
	}
	return m.db.Put(stakeKey(record.ListingID, record.Staker), encoded)
}

// MarketCreatorStatsGet loads the per-creator counters.
func (m *Manager) MarketCreatorStatsGet(creator [20]byte) (*marketplace.CreatorStats, bool, error) {
	data, err := m.db.Get(creatorStatsKey(creator))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stats := new(marketplace.CreatorStats)
	if err := rlp.DecodeBytes(data, stats); err != nil {
		return nil, false, fmt.Errorf("ledger: decode creator stats: %w", err)
	}
	return stats, true, nil
}

// MarketCreatorStatsPut stores the per-creator counters.
func (m *Manager) MarketCreatorStatsPut(stats *marketplace.CreatorStats) error {
	if stats == nil {
		return nil
	}
	encoded, err := rlp.EncodeToBytes(stats)
	if err != nil {
		return fmt.Errorf("ledger: encode creator stats: %w", err)
	}
	return m.db.Put(creatorStatsKey(stats.Creator), encoded)
}

// MarketAccessGrantGet reports whether an explicit grant exists.
func (m *Manager) MarketAccessGrantGet(listingID uint64, grantee [20]byte) (bool, error) {
	data, err := m.db.Get(grantKey(listingID, grantee))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// MarketAccessGrantPut records an explicit grant.
func (m *Manager) MarketAccessGrantPut(listingID uint64, grantee [20]byte) error {
	return m.db.Put(grantKey(listingID, grantee), grantMarker)
}

// MarketAccessGrantDelete removes an explicit grant.
func (m *Manager) MarketAccessGrantDelete(listingID uint64, grantee [20]byte) error {
	return m.db.Delete(grantKey(listingID, grantee))
}

type eventAttr struct {
	Key   string
	Value string
}

type eventRecord struct {
	ListingID uint64
	Sequence  uint64
	Ordinal   uint64
	Type      string
	Attrs     []eventAttr
}

func toEventRecord(stored *types.StoredEvent) *eventRecord {
	record := &eventRecord{
		ListingID: stored.ListingID,
		Sequence:  stored.Sequence,
		Ordinal:   stored.Ordinal,
	}
	if stored.Event != nil {
		record.Type = stored.Event.Type
		record.Attrs = make([]eventAttr, 0, len(stored.Event.Attributes))
		for key, value := range stored.Event.Attributes {
			record.Attrs = append(record.Attrs, eventAttr{Key: key, Value: value})
		}
		sort.Slice(record.Attrs, func(i, j int) bool { return record.Attrs[i].Key < record.Attrs[j].Key })
	}
	return record
}

func fromEventRecord(record *eventRecord) *types.StoredEvent {
	stored := &types.StoredEvent{
		ListingID: record.ListingID,
		Sequence:  record.Sequence,
		Ordinal:   record.Ordinal,
		Event:     &types.Event{Type: record.Type, Attributes: make(map[string]string, len(record.Attrs))},
	}
	for _, attr := range record.Attrs {
		stored.Event.Attributes[attr.Key] = attr.Value
	}
	return stored
}

// MarketEventAppend assigns the next per-listing sequence number and global
// ordinal to the event and persists it in the audit log.
func (m *Manager) MarketEventAppend(listingID uint64, evt *types.Event) (*types.StoredEvent, error) {
	lastSeq, err := m.readCounter(eventSeqKey(listingID))
	if err != nil {
		return nil, err
	}
	lastOrdinal, err := m.readCounter(eventOrdinalKey)
	if err != nil {
		return nil, err
	}
	stored := &types.StoredEvent{
		ListingID: listingID,
		Sequence:  lastSeq + 1,
		Ordinal:   lastOrdinal + 1,
		Event:     evt.Clone(),
	}
	encoded, err := rlp.EncodeToBytes(toEventRecord(stored))
	if err != nil {
		return nil, fmt.Errorf("ledger: encode event %d/%d: %w", listingID, stored.Sequence, err)
	}
	if err := m.db.Put(eventKey(listingID, stored.Sequence), encoded); err != nil {
		return nil, err
	}
	if err := m.writeCounter(eventSeqKey(listingID), stored.Sequence); err != nil {
		return nil, err
	}
	if err := m.writeCounter(eventOrdinalKey, stored.Ordinal); err != nil {
		return nil, err
	}
	return stored, nil
}

// MarketEventsByListing returns the audit log for a listing in sequence
// order.
func (m *Manager) MarketEventsByListing(listingID uint64) ([]*types.StoredEvent, error) {
	prefix := append(append([]byte{}, eventPrefix...), u64be(listingID)...)
	events := make([]*types.StoredEvent, 0)
	var scanErr error
	err := m.db.IteratePrefix(prefix, func(key, value []byte) bool {
		record := new(eventRecord)
		if decodeErr := rlp.DecodeBytes(value, record); decodeErr != nil {
			scanErr = fmt.Errorf("ledger: decode event at %q: %w", key, decodeErr)
			return false
		}
		events = append(events, fromEventRecord(record))
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return events, nil
}
