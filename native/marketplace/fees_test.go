package marketplace

import (
	"math/big"
	"testing"
)

func TestFeeForCountIsTotal(t *testing.T) {
	schedule := DefaultTierSchedule()
	cases := []struct {
		count uint64
		tier  Tier
		bps   uint32
	}{
		{0, Tier0, 500},
		{1, Tier0, 500},
		{4, Tier0, 500},
		{5, Tier1, 400},
		{9, Tier1, 400},
		{10, Tier2, 300},
		{11, Tier2, 300},
		{1_000_000, Tier2, 300},
	}
	for _, tc := range cases {
		tier, bps := schedule.FeeForCount(tc.count)
		if tier != tc.tier || bps != tc.bps {
			t.Fatalf("count %d: got %v/%d, want %v/%d", tc.count, tier, bps, tc.tier, tc.bps)
		}
	}
}

func TestFeeForCountMonotone(t *testing.T) {
	schedule := DefaultTierSchedule()
	_, last := schedule.FeeForCount(0)
	for count := uint64(1); count <= 30; count++ {
		_, bps := schedule.FeeForCount(count)
		if bps > last {
			t.Fatalf("rate increased at count %d: %d > %d", count, bps, last)
		}
		last = bps
	}
}

func TestTierScheduleValidate(t *testing.T) {
	if err := DefaultTierSchedule().Validate(); err != nil {
		t.Fatalf("default schedule invalid: %v", err)
	}
	bad := []TierSchedule{
		{},
		{{MinListings: 1, FeeBps: 500}},
		{{MinListings: 0, FeeBps: 500}, {MinListings: 0, FeeBps: 400}},
		{{MinListings: 0, FeeBps: 400}, {MinListings: 5, FeeBps: 500}},
		{{MinListings: 0, FeeBps: 20_000}},
	}
	for i, schedule := range bad {
		if err := schedule.Validate(); err == nil {
			t.Fatalf("schedule %d passed validation: %+v", i, schedule)
		}
	}
}

func TestQuoteFeeConservation(t *testing.T) {
	for _, gross := range []int64{1, 3, 9_999, 10_000, 123_456_789} {
		for _, bps := range []uint32{0, 300, 400, 500, 10_000} {
			g := big.NewInt(gross)
			fee, net := QuoteFee(g, bps)
			sum := new(big.Int).Add(fee, net)
			if sum.Cmp(g) != 0 {
				t.Fatalf("gross %d bps %d: fee %s + net %s != gross", gross, bps, fee, net)
			}
			if fee.Sign() < 0 || net.Sign() < 0 {
				t.Fatalf("gross %d bps %d: negative component", gross, bps)
			}
		}
	}
}

func TestQuoteFeeDegenerateInputs(t *testing.T) {
	fee, net := QuoteFee(nil, 500)
	if fee.Sign() != 0 || net.Sign() != 0 {
		t.Fatalf("nil gross must quote zero, got %s/%s", fee, net)
	}
	fee, net = QuoteFee(big.NewInt(-5), 500)
	if fee.Sign() != 0 || net.Sign() != 0 {
		t.Fatalf("negative gross must quote zero, got %s/%s", fee, net)
	}
	// A one-wei gross at 500bps rounds the fee to zero; creator keeps it all.
	fee, net = QuoteFee(big.NewInt(1), 500)
	if fee.Sign() != 0 || net.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("sub-bps remainder must stay with creator, got %s/%s", fee, net)
	}
}

func TestTierString(t *testing.T) {
	if Tier0.String() != "tier0" || Tier2.String() != "tier2" {
		t.Fatalf("unexpected tier names: %s %s", Tier0, Tier2)
	}
}
