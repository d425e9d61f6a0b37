package types

// StoredEvent is one entry of the persisted audit log. Sequence increases by
// one per successful mutation of a listing; Ordinal is the global append
// position across all listings. Together they give indexers a total order and
// a per-listing order without replaying the whole log.
type StoredEvent struct {
	ListingID uint64 `json:"listingId"`
	Sequence  uint64 `json:"seq"`
	Ordinal   uint64 `json:"ordinal"`
	Event     *Event `json:"event"`
}

// Clone returns a deep copy of the stored event.
func (s *StoredEvent) Clone() *StoredEvent {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Event = s.Event.Clone()
	return &clone
}
