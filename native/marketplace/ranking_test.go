package marketplace

import (
	"math"
	"math/big"
	"testing"
)

func testListing(staked int64, loves uint64, createdAt uint64) *Listing {
	return &Listing{
		TotalStaked: new(big.Int).Mul(big.NewInt(staked), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		Loves:       loves,
		CreatedAt:   createdAt,
		Active:      true,
	}
}

func TestScoreDecaysOverTime(t *testing.T) {
	listing := testListing(10, 3, 1_700_000_000)
	t1 := int64(1_700_000_000)
	prev := Score(listing, t1, 0)
	for i := 1; i <= 10; i++ {
		next := Score(listing, t1+int64(i)*86_400, 0)
		if next >= prev {
			t.Fatalf("score did not strictly decrease at day %d: %f >= %f", i, next, prev)
		}
		prev = next
	}
}

func TestScoreNonNegative(t *testing.T) {
	listing := testListing(0, 0, 1_700_000_000)
	if s := Score(listing, 1_700_000_000, 0); s != 0 {
		t.Fatalf("empty listing must score zero, got %f", s)
	}
	// Decades of age still never push the score below zero.
	old := testListing(1, 1, 0)
	if s := Score(old, 2_000_000_000, 0); s < 0 {
		t.Fatalf("score went negative: %f", s)
	}
	if Score(nil, 0, 0) != 0 {
		t.Fatalf("nil listing must score zero")
	}
}

func TestScoreAtCreationTime(t *testing.T) {
	listing := testListing(10, 5, 1_700_000_000)
	got := Score(listing, 1_700_000_000, 0)
	want := 10.0 + 5*0.1
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected undecayed score %f, got %f", want, got)
	}
}

func TestScoreLoveBoost(t *testing.T) {
	now := int64(1_700_000_000)
	plain := testListing(1, 0, uint64(now))
	loved := testListing(1, 10, uint64(now))
	if Score(loved, now, 0) <= Score(plain, now, 0) {
		t.Fatalf("loves must raise the score")
	}
}

func TestScoreNewerWinsAtEqualWeight(t *testing.T) {
	now := int64(1_700_000_000)
	older := testListing(5, 2, uint64(now-86_400))
	newer := testListing(5, 2, uint64(now-3_600))
	if Score(newer, now, 0) <= Score(older, now, 0) {
		t.Fatalf("newer listing must score higher at equal base and boost")
	}
}

func TestScoreClockSkewClamped(t *testing.T) {
	now := int64(1_700_000_000)
	future := testListing(5, 0, uint64(now+3_600))
	if got, want := Score(future, now, 0), 5.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("future createdAt must clamp decay to 1, got %f", got)
	}
}

func TestScoreHalfLifeWindow(t *testing.T) {
	listing := testListing(10, 0, 1_700_000_000)
	now := int64(1_700_000_000) + int64(DefaultHalfLifeSeconds)
	got := Score(listing, now, DefaultHalfLifeSeconds)
	want := 10.0 * math.Exp(-1)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("one decay window: got %f, want %f", got, want)
	}
}
