package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/core/state"
	"agora/native/marketplace"
	"agora/storage"
)

const (
	testCreator = "0x0000000000000000000000000000000000000001"
	testUser    = "0x0000000000000000000000000000000000000002"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	engine := marketplace.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return NewServer(engine, nil)
}

func call(t *testing.T, server *Server, method string, params interface{}) *RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.handle(rec, req)

	resp := &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func resultInto(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func createTestListing(t *testing.T, server *Server, name string, private bool) *listingResult {
	t.Helper()
	resp := call(t, server, "market_createListing", createListingParams{
		Caller:      testCreator,
		Name:        name,
		Description: "does things",
		Category:    "AI Agent",
		Price:       "100000000000000000",
		Private:     private,
	})
	var listing listingResult
	resultInto(t, resp, &listing)
	return &listing
}

func TestCreateListingAndGet(t *testing.T) {
	server := newTestServer(t)

	listing := createTestListing(t, server, "Test AI Agent", false)
	if listing.ID != 1 || !listing.Active || listing.TotalStaked != "0" {
		t.Fatalf("unexpected listing result: %+v", listing)
	}

	resp := call(t, server, "market_getListing", getListingParams{ListingID: 1})
	var got listingResult
	resultInto(t, resp, &got)
	if got.Name != "Test AI Agent" || got.Creator != testCreator {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestStakeFlowOverRPC(t *testing.T) {
	server := newTestServer(t)
	listing := createTestListing(t, server, "Test AI Agent", true)

	for i := 0; i < 2; i++ {
		resp := call(t, server, "market_stake", stakeParams{
			Caller:    testUser,
			ListingID: listing.ID,
			Amount:    "50000000000000000",
		})
		var staked stakeResult
		resultInto(t, resp, &staked)
		if i == 1 && staked.Amount != "100000000000000000" {
			t.Fatalf("expected accumulated amount, got %s", staked.Amount)
		}
		if i == 1 && staked.TotalStaked != "100000000000000000" {
			t.Fatalf("expected totalStaked to match, got %s", staked.TotalStaked)
		}
	}

	resp := call(t, server, "market_hasAccess", hasAccessParams{ListingID: listing.ID, Caller: testUser})
	var access hasAccessResult
	resultInto(t, resp, &access)
	if !access.Allowed {
		t.Fatalf("staker must unlock private listing")
	}
}

func TestErrorCodeMapping(t *testing.T) {
	server := newTestServer(t)
	listing := createTestListing(t, server, "Test AI Agent", false)

	cases := []struct {
		name   string
		method string
		params interface{}
		code   int
	}{
		{"zero price", "market_createListing", createListingParams{Caller: testCreator, Name: "X", Category: "AI Agent", Price: "0"}, codeValidation},
		{"zero stake", "market_stake", stakeParams{Caller: testUser, ListingID: listing.ID, Amount: "0"}, codeValidation},
		{"unknown listing", "market_getListing", getListingParams{ListingID: 404}, codeNotFound},
		{"foreign deactivate", "market_deactivate", deactivateParams{Caller: testUser, ListingID: listing.ID}, codeForbidden},
		{"bad address", "market_love", loveParams{Caller: "nothex", ListingID: listing.ID}, codeInvalidParams},
		{"bad amount", "market_stake", stakeParams{Caller: testUser, ListingID: listing.ID, Amount: "12.5"}, codeInvalidParams},
	}
	for _, tc := range cases {
		resp := call(t, server, tc.method, tc.params)
		if resp.Error == nil || resp.Error.Code != tc.code {
			t.Fatalf("%s: expected code %d, got %+v", tc.name, tc.code, resp.Error)
		}
	}

	resp := call(t, server, "market_deactivate", deactivateParams{Caller: testCreator, ListingID: listing.ID})
	var done deactivateResult
	resultInto(t, resp, &done)
	resp = call(t, server, "market_stake", stakeParams{Caller: testUser, ListingID: listing.ID, Amount: "5"})
	if resp.Error == nil || resp.Error.Code != codeStateConflict {
		t.Fatalf("expected state conflict on inactive listing, got %+v", resp.Error)
	}
}

func TestMethodNotFound(t *testing.T) {
	server := newTestServer(t)
	resp := call(t, server, "market_unknown", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestCreatorTierOverRPC(t *testing.T) {
	server := newTestServer(t)
	for i := 0; i < 5; i++ {
		createTestListing(t, server, fmt.Sprintf("Agent %d", i), false)
	}

	resp := call(t, server, "market_getCreatorTier", creatorTierParams{Creator: testCreator})
	var tier creatorTierResult
	resultInto(t, resp, &tier)
	if tier.Tier != "tier1" || tier.FeeBps != 400 {
		t.Fatalf("expected tier1/400 after five listings, got %+v", tier)
	}

	resp = call(t, server, "market_getCreatorTier", creatorTierParams{Creator: testCreator, Gross: "10000"})
	resultInto(t, resp, &tier)
	if tier.Fee != "400" || tier.Net != "9600" {
		t.Fatalf("unexpected quote: %+v", tier)
	}
}

func TestRankedListingsOverRPC(t *testing.T) {
	server := newTestServer(t)
	first := createTestListing(t, server, "Agent A", false)
	second := createTestListing(t, server, "Agent B", false)

	call(t, server, "market_stake", stakeParams{Caller: testUser, ListingID: second.ID, Amount: "2000000000000000000"})
	call(t, server, "market_stake", stakeParams{Caller: testUser, ListingID: first.ID, Amount: "1000000000000000000"})

	resp := call(t, server, "market_rankedListings", rankedListingsParams{Category: "AI Agent", Now: 1_700_000_100})
	var ranked []rankedListingResult
	resultInto(t, resp, &ranked)
	if len(ranked) != 2 || ranked[0].ListingID != second.ID {
		t.Fatalf("unexpected ranking: %+v", ranked)
	}
}

func TestListEventsOverRPC(t *testing.T) {
	server := newTestServer(t)
	listing := createTestListing(t, server, "Test AI Agent", false)
	call(t, server, "market_love", loveParams{Caller: testUser, ListingID: listing.ID})

	resp := call(t, server, "market_listEvents", listEventsParams{ListingID: listing.ID})
	var events []eventResult
	resultInto(t, resp, &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[0].Type != marketplace.EventTypeListingCreated {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Seq != 2 || events[1].Type != marketplace.EventTypeListingLoved {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestBearerTokenGate(t *testing.T) {
	server := newTestServer(t)
	server.authToken = "secret"

	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  "market_createListing",
		"params": []interface{}{createListingParams{
			Caller: testCreator, Name: "Agent", Category: "AI Agent", Price: "1",
		}},
	})

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.handle(rec, req)
	resp := &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized without token, got %+v", resp.Error)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	server.handle(rec, req)
	resp = &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("authorized request failed: %+v", resp.Error)
	}

	// Reads stay open even with a token configured.
	readResp := call(t, server, "market_rankedListings", nil)
	if readResp.Error != nil {
		t.Fatalf("read method must not require auth: %+v", readResp.Error)
	}
}
