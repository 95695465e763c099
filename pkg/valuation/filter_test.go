package valuation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
	"github.com/sidpendyala/marketmaker/pkg/valuation"
)

func activeListing(title string, price float64) domain.Listing {
	return domain.Listing{
		Title:  title,
		Price:  price,
		URL:    "https://example.com/itm/1",
		Status: domain.StatusActive,
	}
}

func TestFindDeals(t *testing.T) {
	t.Parallel()

	t.Run("threshold boundary", func(t *testing.T) {
		t.Parallel()

		active := []domain.Listing{
			activeListing("deal", 70),    // 30% discount
			activeListing("not deal", 85), // 15% discount
			activeListing("exactly at threshold", 80),
			activeListing("free", 0),
		}
		deals := valuation.FindDeals(active, 100, 0.20)

		require.Len(t, deals, 2)
		assert.Equal(t, "deal", deals[0].Title)
		assert.Equal(t, 30.0, deals[0].DiscountPct)
		assert.Equal(t, 100.0, deals[0].FairValue)
		assert.Equal(t, "exactly at threshold", deals[1].Title)
		assert.Equal(t, 20.0, deals[1].DiscountPct)
	})

	t.Run("sorted by discount descending", func(t *testing.T) {
		t.Parallel()

		active := []domain.Listing{
			activeListing("small discount", 75),
			activeListing("big discount", 40),
			activeListing("medium discount", 60),
		}
		deals := valuation.FindDeals(active, 100, 0.20)

		require.Len(t, deals, 3)
		assert.Equal(t, "big discount", deals[0].Title)
		assert.Equal(t, "medium discount", deals[1].Title)
		assert.Equal(t, "small discount", deals[2].Title)
	})

	t.Run("ties keep encounter order", func(t *testing.T) {
		t.Parallel()

		active := []domain.Listing{
			activeListing("first", 50),
			activeListing("second", 50),
		}
		deals := valuation.FindDeals(active, 100, 0.20)

		require.Len(t, deals, 2)
		assert.Equal(t, "first", deals[0].Title)
		assert.Equal(t, "second", deals[1].Title)
	})

	t.Run("no valuation yields no deals", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, valuation.FindDeals([]domain.Listing{activeListing("x", 10)}, 0, 0.20))
	})
}

func deal(title string, price, fairValue, discountPct float64) domain.Deal {
	return domain.Deal{
		Listing: domain.Listing{
			Title:  title,
			Price:  price,
			URL:    "https://example.com/itm/1",
			Status: domain.StatusActive,
		},
		DiscountPct: discountPct,
		FairValue:   fairValue,
	}
}

func TestFilterSuspicious(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		deal       domain.Deal
		fairValue  float64
		query      string
		wantKept   bool
		wantType   domain.FilterType
		wantReason string
	}{
		{
			name:      "clean listing kept",
			deal:      deal("Apple iPhone 15 Pro 256GB Unlocked", 700, 1000, 30),
			fairValue: 1000,
			query:     "iphone 15 pro",
			wantKept:  true,
		},
		{
			name:       "scam keyword",
			deal:       deal("iPhone 15 Pro BOX ONLY no phone", 100, 1000, 90),
			fairValue:  1000,
			query:      "iphone 15 pro",
			wantKept:   false,
			wantType:   domain.FilterScam,
			wantReason: "suspicious terms",
		},
		{
			name:       "price far below market",
			deal:       deal("Great item", 30, 200, 85),
			fairValue:  200,
			query:      "",
			wantKept:   false,
			wantType:   domain.FilterScam,
			wantReason: "market value",
		},
		{
			name:       "suspiciously cheap with huge discount",
			deal:       deal("Great item", 55, 200, 72.5),
			fairValue:  200,
			query:      "",
			wantKept:   false,
			wantType:   domain.FilterScam,
			wantReason: "suspiciously cheap",
		},
		{
			name:      "cheap but low fair value is fine",
			deal:      deal("Great item", 8, 40, 80),
			fairValue: 40,
			query:     "",
			wantKept:  true,
		},
		{
			// Priced above the scam ratio so the accessory check decides.
			name:       "accessory phrase",
			deal:       deal("Case for iPhone 15 Pro", 350, 1000, 65),
			fairValue:  1000,
			query:      "iphone 15 pro",
			wantKept:   false,
			wantType:   domain.FilterMismatch,
			wantReason: "accessory",
		},
		{
			name:       "standalone accessory word without the product",
			deal:       deal("Premium leather cover brown", 300, 800, 62.5),
			fairValue:  800,
			query:      "apple macbook",
			wantKept:   false,
			wantType:   domain.FilterMismatch,
			wantReason: "accessory",
		},
		{
			name:       "short query needs every core term",
			deal:       deal("Samsung Galaxy S24 Ultra", 600, 1000, 40),
			fairValue:  1000,
			query:      "iphone 15 pro",
			wantKept:   false,
			wantType:   domain.FilterMismatch,
			wantReason: "missing key terms",
		},
		{
			name:      "long query allows one missing term",
			deal:      deal("Sony WH-1000XM5 Wireless Noise Canceling", 200, 350, 42.9),
			fairValue: 350,
			query:     "sony wh1000xm5 wireless headphones",
			wantKept:  true,
		},
		{
			name:      "single core term skips match check",
			deal:      deal("Totally Unrelated Gadget", 60, 100, 40),
			fairValue: 100,
			query:     "gizmo",
			wantKept:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kept, filtered := valuation.FilterSuspicious(
				[]domain.Deal{tt.deal}, tt.fairValue, tt.query)

			if tt.wantKept {
				require.Len(t, kept, 1)
				assert.Empty(t, filtered)
				return
			}
			require.Len(t, filtered, 1)
			assert.Empty(t, kept)
			assert.Equal(t, tt.wantType, filtered[0].FilterType)
			assert.Contains(t, filtered[0].Reason, tt.wantReason)
			assert.Equal(t, tt.deal.Title, filtered[0].Title)
			assert.Equal(t, tt.deal.Price, filtered[0].Price)
		})
	}
}

func TestFilterSuspiciousAccumulatesReasons(t *testing.T) {
	t.Parallel()

	// Scam keywords and absurd pricing both fire; the first check wins
	// the filter type and both reasons land in the report.
	d := deal("iPhone 15 Pro empty box as is", 20, 1000, 98)
	kept, filtered := valuation.FilterSuspicious([]domain.Deal{d}, 1000, "iphone 15 pro")

	assert.Empty(t, kept)
	require.Len(t, filtered, 1)
	assert.Equal(t, domain.FilterScam, filtered[0].FilterType)
	assert.Contains(t, filtered[0].Reason, "suspicious terms")
	assert.Contains(t, filtered[0].Reason, " | ")
}

func TestApplyConditionScoring(t *testing.T) {
	t.Parallel()

	intp := func(v int) *int { return &v }
	withRating := func(title string, discount float64, rating *int) domain.Deal {
		d := deal(title, 50, 100, discount)
		d.ConditionRating = rating
		return d
	}

	deals := []domain.Deal{
		withRating("unknown", 40, nil),
		withRating("mint", 30, intp(9)),
		withRating("scuffed", 50, intp(5)),
		withRating("for parts", 60, intp(2)),
	}

	kept, eliminated := valuation.ApplyConditionScoring(deals)

	assert.Equal(t, 1, eliminated)
	require.Len(t, kept, 3)

	// Re-sorted by condition-adjusted discount descending.
	assert.Equal(t, "unknown", kept[0].Title)
	assert.Equal(t, 40.0, kept[0].ConditionAdjustedDiscount)
	assert.Equal(t, domain.FlagNone, kept[0].ConditionFlag)

	assert.Equal(t, "mint", kept[1].Title)
	assert.Equal(t, 34.5, kept[1].ConditionAdjustedDiscount)
	assert.Equal(t, domain.FlagTopPick, kept[1].ConditionFlag)

	assert.Equal(t, "scuffed", kept[2].Title)
	assert.Equal(t, 32.5, kept[2].ConditionAdjustedDiscount)
	assert.Equal(t, domain.FlagFairWarning, kept[2].ConditionFlag)
}

func TestCoreTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"stopwords stripped", "the new iphone 15 pro with free shipping", []string{"iphone", "15", "pro"}},
		{"punctuation stripped", "Sony WH-1000XM5!", []string{"sony", "wh1000xm5"}},
		{"single chars dropped", "a b laptop", []string{"laptop"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, valuation.CoreTerms(tt.query))
		})
	}
}

func TestHeuristicRefine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"strips noise words", "the new iphone 15 pro with free shipping", "iphone 15 pro"},
		{"already minimal", "iphone 15 pro", ""},
		{"all stopwords", "the new with free shipping", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, valuation.HeuristicRefine(tt.query))
		})
	}
}
