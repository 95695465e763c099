package valuation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// DefaultThreshold is the minimum discount fraction for interactive
// searches; tracked searches carry their own min_discount.
const DefaultThreshold = 0.20

// FindDeals keeps active listings priced at least threshold below the
// fair value, stamping each with its discount percentage and the fair
// value used for the comparison. Results are sorted by discount
// descending; ties preserve encounter order.
func FindDeals(active []domain.Listing, fairValue, threshold float64) []domain.Deal {
	if fairValue <= 0 {
		return nil
	}

	var deals []domain.Deal
	for _, item := range active {
		if item.Price <= 0 {
			continue
		}
		discount := (fairValue - item.Price) / fairValue
		if discount < threshold {
			continue
		}
		deals = append(deals, domain.Deal{
			Listing:     item,
			DiscountPct: round1(discount * 100),
			FairValue:   fairValue,
		})
	}

	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].DiscountPct > deals[j].DiscountPct
	})
	return deals
}

// ApplyConditionScoring re-ranks deals by condition and eliminates the
// worst ones:
//
//	rating 1-3       eliminated (counted, not returned)
//	rating 8-10      multiplier 1.15, flag top_pick
//	rating 4-5       multiplier 0.65, flag fair_warning
//	rating 6-7/none  multiplier 1.0, no flag
//
// Survivors carry a condition-adjusted discount and are re-sorted by it
// descending. Returns the surviving deals and the eliminated count.
func ApplyConditionScoring(deals []domain.Deal) ([]domain.Deal, int) {
	kept := make([]domain.Deal, 0, len(deals))
	eliminated := 0

	for _, deal := range deals {
		r := deal.ConditionRating
		if r != nil && *r >= 1 && *r <= 3 {
			eliminated++
			continue
		}

		multiplier := 1.0
		flag := domain.FlagNone
		switch {
		case r != nil && *r >= 8:
			multiplier = 1.15
			flag = domain.FlagTopPick
		case r != nil && *r <= 5:
			multiplier = 0.65
			flag = domain.FlagFairWarning
		}

		deal.ConditionAdjustedDiscount = round1(deal.DiscountPct * multiplier)
		deal.ConditionFlag = flag
		kept = append(kept, deal)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ConditionAdjustedDiscount > kept[j].ConditionAdjustedDiscount
	})
	return kept, eliminated
}

// Keyword tables below are hand-tuned against real marketplace noise.
// The exact phrases and thresholds are a calibrated policy: preserve the
// order of checks and the literal values when touching this file.

// scamKeywords signal the listing is not the actual product.
var scamKeywords = []string{
	"box only", "empty box", "case only", "manual only",
	"booklet only", "instructions only", "poster only",
	"read description", "see description", "description only",
	"for parts", "not working", "doesnt work", "does not work",
	"broken screen", "cracked screen", "water damage",
	"as is", "as-is", "no returns", "sold as is",
	"replica", "fake", "counterfeit", "clone", "knockoff",
	"paper weight", "paperweight", "display only", "dummy",
	"demo unit", "decoy", "prop", "toy version",
	"no item", "no product", "no phone", "no console", "no laptop",
	"no tablet", "no headphones", "no earbuds",
	"image only", "photo only", "picture only", "digital download",
	"parts only", "logic board only", "memory only", "ram only",
}

// accessoryKeywords are title phrases marking accessories and spare
// parts that marketplace search returns alongside the main product.
var accessoryKeywords = []string{
	"case for", "cover for", "skin for", "sleeve for",
	"screen protector", "tempered glass", "glass protector",
	"charger for", "cable for", "adapter for", "cord for",
	"mount for", "stand for", "holder for", "dock for",
	"strap for", "band for", "wristband for",
	"ear tips", "ear pads", "ear cushion", "replacement pads",
	"remote control for", "controller skin",
	"carrying case", "travel case", "pouch for",
	"sticker for", "decal for", "vinyl for",
	"repair kit", "tool kit", "replacement part",
	"user guide", "quick start", "getting started",
	"silicone case", "rubber case", "hard case", "clear case",
	"protective case", "phone case", "laptop case",
	"charging cable", "usb cable", "lightning cable",
	"wall charger", "car charger", "wireless charger",
	"screen film", "privacy screen",
	"keyboard cover", "trackpad cover",
	"dust plug", "port cover",
	"replacement battery", "battery pack",
	"logic board", "logicboard",
	"motherboard", "mainboard",
	"memory module", "ram module", "ram only", "memory only",
	"replacement memory", "replacement ram",
	"palmrest", "palm rest", "top case", "topcase", "bottom case",
	"keyboard assembly", "trackpad assembly", "touchpad assembly",
	"display assembly", "lcd assembly", "screen assembly",
	"battery only", "charger only", "dock only", "cable only",
	"ssd only", "hard drive only", "storage only",
	"screen only", "display only", "lcd only",
	"flex cable", "ribbon cable", "dc in board", "magsafe board",
	"replacement screen", "replacement lcd", "replacement display",
	"for parts", "parts only",
}

// accessoryStandalone words indicate an accessory when the title lacks
// the product-category word the query asked for.
var accessoryStandalone = map[string]bool{
	"case": true, "cover": true, "protector": true, "charger": true,
	"cable": true, "adapter": true, "sleeve": true, "pouch": true,
	"strap": true, "band": true, "skin": true, "decal": true,
	"sticker": true, "mount": true, "stand": true, "holder": true,
	"dock": true, "cradle": true, "film": true, "wrap": true,
	"cushion": true, "pad": true, "tip": true, "grip": true,
	"bumper": true, "folio": true, "wallet": true,
}

// stopwords are too generic to matter when matching query terms.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"for": true, "with": true, "in": true, "on": true, "of": true,
	"to": true, "new": true, "used": true, "pre-owned": true,
	"lot": true, "set": true, "bundle": true, "free": true,
	"shipping": true, "fast": true, "oem": true, "genuine": true,
	"original": true, "authentic": true, "official": true,
	"brand": true, "sealed": true,
}

// productTypeWords are recognized product categories. A query naming one
// of these while the title replaces it with an accessory word is a
// mismatch.
var productTypeWords = map[string]bool{
	"phone": true, "laptop": true, "tablet": true, "headphones": true,
	"earbuds": true, "console": true, "camera": true, "watch": true,
	"speaker": true, "monitor": true, "tv": true, "television": true,
	"keyboard": true, "mouse": true, "printer": true, "drone": true,
	"guitar": true, "bike": true, "shoe": true, "shoes": true,
	"sneaker": true, "sneakers": true, "boot": true, "boots": true,
	"jacket": true, "coat": true, "bag": true, "backpack": true,
	"desk": true, "chair": true, "sofa": true, "mattress": true,
	"macbook": true, "ipad": true, "iphone": true, "airpods": true,
	"playstation": true, "xbox": true, "nintendo": true, "switch": true,
	"gopro": true,
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)

// NormalizeText lower-cases and strips non-alphanumeric characters for
// keyword comparisons.
func NormalizeText(text string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "")
}

// CoreTerms extracts the meaningful product terms from a search query:
// normalized tokens minus stopwords, at least two characters long.
func CoreTerms(query string) []string {
	var terms []string
	for _, tok := range strings.Fields(NormalizeText(query)) {
		if !stopwords[tok] && len(tok) >= 2 {
			terms = append(terms, tok)
		}
	}
	return terms
}

// HeuristicRefine produces a non-AI fallback refinement of a query by
// collapsing it to its core terms. Returns "" when refining would change
// nothing, so callers can skip a pointless retry.
func HeuristicRefine(query string) string {
	refined := strings.Join(CoreTerms(query), " ")
	if refined == "" || refined == strings.TrimSpace(strings.ToLower(query)) {
		return ""
	}
	return refined
}

// FilterSuspicious screens deals for scams, too-good-to-be-true pricing,
// and product mismatches. Checks run in a fixed priority order; the
// first match decides the filter type, while reasons keep accumulating
// for the report. Kept deals preserve their input order.
func FilterSuspicious(
	deals []domain.Deal,
	fairValue float64,
	query string,
) ([]domain.Deal, []domain.FilteredItem) {
	coreTerms := CoreTerms(query)

	kept := make([]domain.Deal, 0, len(deals))
	var filtered []domain.FilteredItem

	for _, deal := range deals {
		titleLower := strings.ToLower(deal.Title)
		titleNorm := NormalizeText(deal.Title)

		var reasons []string
		var filterType domain.FilterType

		// Check 1: scam keywords.
		var matched []string
		for _, kw := range scamKeywords {
			if strings.Contains(titleLower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			reasons = append(reasons,
				"listing contains suspicious terms: "+strings.Join(matched, ", "))
			filterType = domain.FilterScam
		}

		// Check 2: price too good to be true.
		if fairValue > 50 && deal.Price > 0 {
			ratio := deal.Price / fairValue
			switch {
			case ratio < 0.20:
				reasons = append(reasons, fmt.Sprintf(
					"price ($%.2f) is only %.0f%% of market value ($%.2f), likely a scam or bait listing",
					deal.Price, ratio*100, fairValue))
				if filterType == "" {
					filterType = domain.FilterScam
				}
			case ratio < 0.30 && deal.DiscountPct > 65:
				reasons = append(reasons, fmt.Sprintf(
					"suspiciously cheap at $%.2f vs $%.2f market value (%.0f%% discount)",
					deal.Price, fairValue, deal.DiscountPct))
				if filterType == "" {
					filterType = domain.FilterScam
				}
			}
		}

		// Check 3: accessory phrase.
		if filterType == "" {
			for _, kw := range accessoryKeywords {
				if strings.Contains(titleLower, kw) {
					reasons = append(reasons, fmt.Sprintf(
						"listing appears to be an accessory, not the product: title contains %q", kw))
					filterType = domain.FilterMismatch
					break
				}
			}
		}

		// Check 4: standalone accessory word while the queried product
		// category is missing from the title.
		if filterType == "" {
			titleWords := wordSet(titleNorm)
			accessoryHits := intersectKeys(titleWords, accessoryStandalone)
			productWords := productTerms(coreTerms)
			if len(accessoryHits) > 0 && len(productWords) > 0 && !anyPresent(productWords, titleWords) {
				reasons = append(reasons, fmt.Sprintf(
					"listing is an accessory (%s), missing the product itself (%s)",
					strings.Join(accessoryHits, ", "), strings.Join(productWords, ", ")))
				filterType = domain.FilterMismatch
			}
		}

		// Check 5: strict core-term coverage. Queries with 2-3 core
		// terms need every term in the title; 4+ need at least 75%.
		if filterType == "" && len(coreTerms) >= 2 {
			var missing []string
			matches := 0
			for _, t := range coreTerms {
				if strings.Contains(titleNorm, t) {
					matches++
				} else {
					missing = append(missing, t)
				}
			}
			required := 1.0
			if len(coreTerms) >= 4 {
				required = 0.75
			}
			if float64(matches)/float64(len(coreTerms)) < required {
				reasons = append(reasons,
					"product mismatch, listing title is missing key terms: "+strings.Join(missing, ", "))
				filterType = domain.FilterMismatch
			}
		}

		if filterType != "" {
			filtered = append(filtered, domain.FilteredItem{
				Title:      deal.Title,
				Price:      deal.Price,
				URL:        deal.URL,
				Image:      deal.Image,
				Reason:     strings.Join(reasons, " | "),
				FilterType: filterType,
			})
			continue
		}
		kept = append(kept, deal)
	}

	return kept, filtered
}

func wordSet(normalized string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(normalized) {
		words[w] = true
	}
	return words
}

// intersectKeys returns the sorted members of set present in words.
func intersectKeys(words, set map[string]bool) []string {
	var hits []string
	for w := range words {
		if set[w] {
			hits = append(hits, w)
		}
	}
	sort.Strings(hits)
	return hits
}

func productTerms(coreTerms []string) []string {
	var hits []string
	for _, t := range coreTerms {
		if productTypeWords[t] {
			hits = append(hits, t)
		}
	}
	return hits
}

func anyPresent(terms []string, words map[string]bool) bool {
	for _, t := range terms {
		if words[t] {
			return true
		}
	}
	return false
}
