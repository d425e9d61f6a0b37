package marketplace

import (
	"strconv"

	"agora/core/events"
	"agora/core/types"
)

const (
	// EventTypeListingCreated is emitted when a creator publishes a listing.
	EventTypeListingCreated = "market.listing.created"
	// EventTypeListingStaked is emitted when a staker adds value to a listing.
	EventTypeListingStaked = "market.listing.staked"
	// EventTypeListingLoved is emitted when a caller loves a listing.
	EventTypeListingLoved = "market.listing.loved"
	// EventTypeListingDeactivated is emitted when a creator retires a listing.
	EventTypeListingDeactivated = "market.listing.deactivated"
	// EventTypeAccessGranted is emitted when a creator allow-lists a grantee.
	EventTypeAccessGranted = "market.access.granted"
	// EventTypeAccessRevoked is emitted when a creator removes a grantee.
	EventTypeAccessRevoked = "market.access.revoked"
)

type eventEnvelope struct {
	stored *types.StoredEvent
}

func (e eventEnvelope) EventType() string {
	if e.stored == nil || e.stored.Event == nil {
		return ""
	}
	return e.stored.Event.Type
}

// Event returns the event payload with the ledger-assigned per-listing
// sequence number attached.
func (e eventEnvelope) Event() *types.Event {
	if e.stored == nil || e.stored.Event == nil {
		return nil
	}
	evt := e.stored.Event.Clone()
	if evt.Attributes == nil {
		evt.Attributes = make(map[string]string, 1)
	}
	evt.Attributes["seq"] = strconv.FormatUint(e.stored.Sequence, 10)
	return evt
}

// WrapStoredEvent converts a persisted audit record into an emitter-friendly
// envelope.
func WrapStoredEvent(stored *types.StoredEvent) events.Event {
	return eventEnvelope{stored: stored}
}

// ListingCreatedEvent returns the payload announcing a new listing.
func ListingCreatedEvent(listing *Listing) *types.Event {
	return &types.Event{
		Type: EventTypeListingCreated,
		Attributes: map[string]string{
			"listingId": strconv.FormatUint(listing.ID, 10),
			"creator":   hexAddr(listing.Creator),
			"name":      listing.Name,
			"category":  listing.Category,
			"price":     listing.Price.String(),
			"private":   strconv.FormatBool(listing.Private),
		},
	}
}

// ListingStakedEvent returns the payload for a stake contribution.
func ListingStakedEvent(listingID uint64, staker string, amount string, totalStaked string) *types.Event {
	return &types.Event{
		Type: EventTypeListingStaked,
		Attributes: map[string]string{
			"listingId":   strconv.FormatUint(listingID, 10),
			"staker":      staker,
			"amount":      amount,
			"totalStaked": totalStaked,
		},
	}
}

// ListingLovedEvent returns the payload for a love increment.
func ListingLovedEvent(listingID uint64, caller string, loves uint64) *types.Event {
	return &types.Event{
		Type: EventTypeListingLoved,
		Attributes: map[string]string{
			"listingId": strconv.FormatUint(listingID, 10),
			"caller":    caller,
			"loves":     strconv.FormatUint(loves, 10),
		},
	}
}

// ListingDeactivatedEvent returns the payload for a terminal deactivation.
func ListingDeactivatedEvent(listingID uint64, creator string) *types.Event {
	return &types.Event{
		Type: EventTypeListingDeactivated,
		Attributes: map[string]string{
			"listingId": strconv.FormatUint(listingID, 10),
			"creator":   creator,
		},
	}
}

// AccessGrantedEvent returns the payload for an allow-list addition.
func AccessGrantedEvent(listingID uint64, creator string, grantee string) *types.Event {
	return &types.Event{
		Type: EventTypeAccessGranted,
		Attributes: map[string]string{
			"listingId": strconv.FormatUint(listingID, 10),
			"creator":   creator,
			"grantee":   grantee,
		},
	}
}

// AccessRevokedEvent returns the payload for an allow-list removal.
func AccessRevokedEvent(listingID uint64, creator string, grantee string) *types.Event {
	return &types.Event{
		Type: EventTypeAccessRevoked,
		Attributes: map[string]string{
			"listingId": strconv.FormatUint(listingID, 10),
			"creator":   creator,
			"grantee":   grantee,
		},
	}
}
