// Package valuation turns noisy sold-listing price samples into a robust
// fair-value estimate, screens candidate deals against scam and mismatch
// heuristics, and computes resale economics. All functions are pure: no
// I/O, no clocks, no shared state.
package valuation

import (
	"math"
	"sort"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// Marketplace fee constants used for flip-profit and sell-tier math.
const (
	FeeRate           = 0.1325 // final value fee
	FeeFixed          = 0.30   // per-order fee
	EstimatedShipping = 8.00   // flat shipping estimate
)

// Outlier removal is skipped below this sample size: with so few points
// the standard deviation is too unstable to trust.
const minOutlierSamples = 5

// FairValue computes fair-market-value statistics from sold listings.
// Non-positive prices are discarded; prices beyond two standard
// deviations from the mean are dropped when at least five samples exist.
// The fair value is the median of the surviving sample. An empty sample
// yields an all-zero result with low confidence.
func FairValue(sold []domain.Listing) domain.ValuationResult {
	prices := extractPrices(sold)
	if len(prices) == 0 {
		return domain.ValuationResult{Confidence: domain.ConfidenceLow}
	}

	prices = RemoveOutliers(prices)

	m := mean(prices)
	sd := 0.0
	if len(prices) > 1 {
		sd = round2(stdDev(prices))
	}

	return domain.ValuationResult{
		FairValue:  round2(median(prices)),
		MeanPrice:  round2(m),
		MinPrice:   round2(minOf(prices)),
		MaxPrice:   round2(maxOf(prices)),
		SampleSize: len(prices),
		StdDev:     sd,
		Confidence: assessConfidence(len(prices), sd, m),
	}
}

// RemoveOutliers drops prices beyond two standard deviations from the
// mean. With fewer than five samples, or a zero standard deviation, the
// input is returned unchanged since there is nothing safe to discard.
// The operation is idempotent on its own output.
func RemoveOutliers(prices []float64) []float64 {
	if len(prices) < minOutlierSamples {
		return prices
	}
	m := mean(prices)
	sd := stdDev(prices)
	if sd == 0 {
		return prices
	}

	kept := make([]float64, 0, len(prices))
	for _, p := range prices {
		if math.Abs(p-m) <= 2*sd {
			kept = append(kept, p)
		}
	}
	return kept
}

// FlipProfit estimates the net profit of buying at buyPrice and reselling
// at fairValue, after marketplace fees and flat shipping.
func FlipProfit(buyPrice, fairValue float64) domain.FlipEstimate {
	sellPrice := fairValue
	fee := round2(sellPrice*FeeRate + FeeFixed)
	totalCost := buyPrice + EstimatedShipping
	netProfit := round2(sellPrice - fee - totalCost)

	roi := 0.0
	if totalCost > 0 {
		roi = round1(netProfit / totalCost * 100)
	}

	return domain.FlipEstimate{
		BuyPrice:       buyPrice,
		SellPrice:      sellPrice,
		MarketplaceFee: fee,
		Shipping:       EstimatedShipping,
		NetProfit:      netProfit,
		ROIPct:         roi,
	}
}

// sellTierDefs maps tier names to sold-price percentiles.
var sellTierDefs = []struct {
	name string
	pct  float64
}{
	{"Quick Sale", 15},
	{"Competitive", 30},
	{"Market Value", 50},
	{"Premium", 75},
}

// SellTiers computes four sell-side pricing tiers from sold listings,
// scaled by the item's condition and adjusted for fees and shipping.
// Returns nil when no usable prices exist.
func SellTiers(sold []domain.Listing, conditionRating *int) []domain.PriceTier {
	prices := extractPrices(sold)
	if len(prices) >= minOutlierSamples {
		prices = RemoveOutliers(prices)
	}
	if len(prices) == 0 {
		return nil
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	multiplier := ConditionMultiplier(conditionRating)

	tiers := make([]domain.PriceTier, 0, len(sellTierDefs))
	for _, def := range sellTierDefs {
		listPrice := round2(percentile(sorted, def.pct) * multiplier)
		fee := round2(listPrice*FeeRate + FeeFixed)
		payout := round2(listPrice - fee - EstimatedShipping)
		tiers = append(tiers, domain.PriceTier{
			Name:           def.name,
			ListPrice:      listPrice,
			MarketplaceFee: fee,
			Shipping:       EstimatedShipping,
			NetPayout:      math.Max(0, payout),
		})
	}
	return tiers
}

// ConditionMultiplier maps a 1-10 condition rating to a price multiplier.
// A parts-only item sells around 20% of market value, a mint one at full
// price. Unknown condition is treated as average.
func ConditionMultiplier(rating *int) float64 {
	if rating == nil {
		return 1.0
	}
	switch {
	case *rating >= 9:
		return 1.0
	case *rating == 8:
		return 0.92
	case *rating == 7:
		return 0.82
	case *rating == 6:
		return 0.72
	case *rating == 5:
		return 0.60
	case *rating == 4:
		return 0.48
	case *rating == 3:
		return 0.38
	case *rating == 2:
		return 0.28
	default:
		return 0.20
	}
}

// assessConfidence grades a valuation. Large tight samples are high
// confidence; a decent sample, or a small one with very low price
// spread, is medium; anything else is low.
func assessConfidence(sampleSize int, sd, m float64) domain.Confidence {
	cv := 1.0
	if m != 0 {
		cv = sd / m
	}
	switch {
	case sampleSize >= 20 && cv < 0.25:
		return domain.ConfidenceHigh
	case sampleSize >= 10 || (sampleSize >= minOutlierSamples && cv < 0.25):
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func extractPrices(items []domain.Listing) []float64 {
	prices := make([]float64, 0, len(items))
	for _, it := range items {
		if it.Price > 0 {
			prices = append(prices, it.Price)
		}
	}
	return prices
}

// percentile interpolates linearly between order statistics of a
// pre-sorted sample.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	k := float64(len(sorted)-1) * pct / 100
	f := int(k)
	c := f + 1
	if c >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[f] + (k-float64(f))*(sorted[c]-sorted[f])
}

func median(prices []float64) float64 {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(prices []float64) float64 {
	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}

// stdDev is the sample standard deviation (n-1 denominator).
func stdDev(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	m := mean(prices)
	sum := 0.0
	for _, p := range prices {
		d := p - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(prices)-1))
}

func minOf(prices []float64) float64 {
	m := prices[0]
	for _, p := range prices[1:] {
		if p < m {
			m = p
		}
	}
	return m
}

func maxOf(prices []float64) float64 {
	m := prices[0]
	for _, p := range prices[1:] {
		if p > m {
			m = p
		}
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
