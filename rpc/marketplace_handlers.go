package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"agora/native/marketplace"
)

type createListingParams struct {
	Caller      string `json:"caller"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Private     bool   `json:"private"`
}

type stakeParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
	Amount    string `json:"amount"`
}

type loveParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
}

type deactivateParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
}

type grantParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
	Grantee   string `json:"grantee"`
}

type getListingParams struct {
	ListingID uint64 `json:"listingId"`
}

type creatorTierParams struct {
	Creator string `json:"creator"`
	Gross   string `json:"gross,omitempty"`
}

type hasAccessParams struct {
	ListingID uint64 `json:"listingId"`
	Caller    string `json:"caller"`
}

type rankedListingsParams struct {
	Category string `json:"category,omitempty"`
	Now      int64  `json:"now,omitempty"`
}

type listEventsParams struct {
	ListingID uint64 `json:"listingId"`
}

type listingResult struct {
	ID          uint64 `json:"id"`
	Creator     string `json:"creator"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Private     bool   `json:"private"`
	TotalStaked string `json:"totalStaked"`
	Loves       uint64 `json:"loves"`
	CreatedAt   uint64 `json:"createdAt"`
	Active      bool   `json:"active"`
}

type stakeResult struct {
	ListingID     uint64 `json:"listingId"`
	Staker        string `json:"staker"`
	Amount        string `json:"amount"`
	TotalStaked   string `json:"totalStaked"`
	FirstStakedAt uint64 `json:"firstStakedAt"`
	LastStakedAt  uint64 `json:"lastStakedAt"`
}

type loveResult struct {
	ListingID uint64 `json:"listingId"`
	Loves     uint64 `json:"loves"`
}

type deactivateResult struct {
	ListingID uint64 `json:"listingId"`
	Active    bool   `json:"active"`
}

type grantResult struct {
	ListingID uint64 `json:"listingId"`
	Grantee   string `json:"grantee"`
	Granted   bool   `json:"granted"`
}

type creatorTierResult struct {
	Creator string `json:"creator"`
	Tier    string `json:"tier"`
	FeeBps  uint32 `json:"feeRateBasisPoints"`
	Gross   string `json:"gross,omitempty"`
	Fee     string `json:"fee,omitempty"`
	Net     string `json:"net,omitempty"`
}

type hasAccessResult struct {
	ListingID uint64 `json:"listingId"`
	Caller    string `json:"caller"`
	Allowed   bool   `json:"allowed"`
}

type rankedListingResult struct {
	ListingID uint64  `json:"listingId"`
	Score     float64 `json:"score"`
}

type eventResult struct {
	Seq        uint64            `json:"seq"`
	Ordinal    uint64            `json:"ordinal"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func parseAddress(field, value string) ([20]byte, *RPCError) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") {
		return addr, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("%s must be a 0x-prefixed address", field)}
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil || len(raw) != 20 {
		return addr, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("%s must be 20 hex bytes", field)}
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmount(field, value string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("%s required", field)}
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("%s must be a base-10 integer", field)}
	}
	return amount, nil
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "malformed params object", Data: err.Error()}
	}
	return nil
}

func listingToResult(listing *marketplace.Listing) *listingResult {
	return &listingResult{
		ID:          listing.ID,
		Creator:     "0x" + hex.EncodeToString(listing.Creator[:]),
		Name:        listing.Name,
		Description: listing.Description,
		Category:    listing.Category,
		Price:       listing.Price.String(),
		Private:     listing.Private,
		TotalStaked: listing.TotalStaked.String(),
		Loves:       listing.Loves,
		CreatedAt:   listing.CreatedAt,
		Active:      listing.Active,
	}
}

func (s *Server) handleCreateListing(req *RPCRequest) (interface{}, *RPCError) {
	var params createListingParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount("price", params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.engine.CreateListing(creator, params.Name, params.Description, params.Category, price, params.Private)
	if err != nil {
		return nil, engineError(err)
	}
	return listingToResult(listing), nil
}

func (s *Server) handleStake(req *RPCRequest) (interface{}, *RPCError) {
	var params stakeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	staker, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	position, total, err := s.engine.Stake(params.ListingID, staker, amount)
	if err != nil {
		return nil, engineError(err)
	}
	return &stakeResult{
		ListingID:     position.ListingID,
		Staker:        params.Caller,
		Amount:        position.Amount.String(),
		TotalStaked:   total.String(),
		FirstStakedAt: position.FirstStakedAt,
		LastStakedAt:  position.LastStakedAt,
	}, nil
}

func (s *Server) handleLove(req *RPCRequest) (interface{}, *RPCError) {
	var params loveParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	loves, err := s.engine.Love(params.ListingID, caller)
	if err != nil {
		return nil, engineError(err)
	}
	return &loveResult{ListingID: params.ListingID, Loves: loves}, nil
}

func (s *Server) handleDeactivate(req *RPCRequest) (interface{}, *RPCError) {
	var params deactivateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Deactivate(params.ListingID, caller); err != nil {
		return nil, engineError(err)
	}
	return &deactivateResult{ListingID: params.ListingID, Active: false}, nil
}

func (s *Server) handleGrantAccess(req *RPCRequest) (interface{}, *RPCError) {
	var params grantParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	grantee, rpcErr := parseAddress("grantee", params.Grantee)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.GrantAccess(params.ListingID, caller, grantee); err != nil {
		return nil, engineError(err)
	}
	return &grantResult{ListingID: params.ListingID, Grantee: params.Grantee, Granted: true}, nil
}

func (s *Server) handleRevokeGrant(req *RPCRequest) (interface{}, *RPCError) {
	var params grantParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	grantee, rpcErr := parseAddress("grantee", params.Grantee)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.RevokeGrant(params.ListingID, caller, grantee); err != nil {
		return nil, engineError(err)
	}
	return &grantResult{ListingID: params.ListingID, Grantee: params.Grantee, Granted: false}, nil
}

func (s *Server) handleGetListing(req *RPCRequest) (interface{}, *RPCError) {
	var params getListingParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.engine.GetListing(params.ListingID)
	if err != nil {
		return nil, engineError(err)
	}
	return listingToResult(listing), nil
}

func (s *Server) handleGetCreatorTier(req *RPCRequest) (interface{}, *RPCError) {
	var params creatorTierParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result := &creatorTierResult{Creator: params.Creator}
	if strings.TrimSpace(params.Gross) == "" {
		tier, bps, err := s.engine.CreatorTier(creator)
		if err != nil {
			return nil, engineError(err)
		}
		result.Tier = tier.String()
		result.FeeBps = bps
		return result, nil
	}
	gross, rpcErr := parseAmount("gross", params.Gross)
	if rpcErr != nil {
		return nil, rpcErr
	}
	quote, err := s.engine.QuoteCreatorFee(creator, gross)
	if err != nil {
		return nil, engineError(err)
	}
	result.Tier = quote.Tier.String()
	result.FeeBps = quote.FeeBps
	result.Gross = quote.Gross.String()
	result.Fee = quote.Fee.String()
	result.Net = quote.Net.String()
	return result, nil
}

func (s *Server) handleHasAccess(req *RPCRequest) (interface{}, *RPCError) {
	var params hasAccessParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowed, err := s.engine.HasAccess(params.ListingID, caller)
	if err != nil {
		return nil, engineError(err)
	}
	return &hasAccessResult{ListingID: params.ListingID, Caller: params.Caller, Allowed: allowed}, nil
}

func (s *Server) handleRankedListings(req *RPCRequest) (interface{}, *RPCError) {
	params := rankedListingsParams{}
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	now := params.Now
	if now == 0 {
		now = time.Now().Unix()
	}
	ranked, err := s.engine.RankedListings(params.Category, now)
	if err != nil {
		return nil, engineError(err)
	}
	results := make([]rankedListingResult, len(ranked))
	for i, entry := range ranked {
		results[i] = rankedListingResult{ListingID: entry.ID, Score: entry.Score}
	}
	return results, nil
}

func (s *Server) handleListEvents(req *RPCRequest) (interface{}, *RPCError) {
	var params listEventsParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	log, err := s.engine.ListingEvents(params.ListingID)
	if err != nil {
		return nil, engineError(err)
	}
	results := make([]eventResult, len(log))
	for i, stored := range log {
		results[i] = eventResult{Seq: stored.Sequence, Ordinal: stored.Ordinal}
		if stored.Event != nil {
			results[i].Type = stored.Event.Type
			results[i].Attributes = stored.Event.Attributes
		}
	}
	return results, nil
}
