package marketplace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// ParsePrice converts upstream price strings to a float. Handles
// "$1,200.00", range strings like "$120.00 to $150.00" (takes the low
// end), and placeholders like "See price". Unparseable input yields 0.
func ParsePrice(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	lower := strings.ToLower(cleaned)
	if cleaned == "" || lower == "see price" || lower == "n/a" {
		return 0
	}
	if idx := strings.Index(lower, " to "); idx >= 0 {
		cleaned = strings.TrimSpace(cleaned[:idx])
	}
	replacer := strings.NewReplacer("$", "", ",", "", " ", "")
	cleaned = replacer.Replace(cleaned)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// flexString decodes a JSON value that may arrive as a string or a bare
// number, which the upstream API mixes freely.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

type apiPriceRange struct {
	From flexString `json:"from"`
	To   flexString `json:"to"`
}

type apiPrice struct {
	Current       apiPriceRange `json:"current"`
	Value         flexString    `json:"value"`
	SoldPrice     flexString    `json:"soldPrice"`
	TrendingPrice flexString    `json:"trendingPrice"`
	PreviousPrice flexString    `json:"previousPrice"`
}

type apiProduct struct {
	Title     string          `json:"title"`
	Price     json.RawMessage `json:"price"`
	Image     string          `json:"image"`
	URL       string          `json:"url"`
	SubTitles []string        `json:"subTitles"`
}

// productPrice extracts a single price from the product's price field,
// which may be an object with nested ranges or a plain scalar.
func productPrice(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var obj apiPrice
	if err := json.Unmarshal(raw, &obj); err != nil {
		var scalar flexString
		if err := json.Unmarshal(raw, &scalar); err != nil {
			return 0
		}
		return ParsePrice(string(scalar))
	}

	for _, candidate := range []flexString{
		obj.Current.From, obj.Current.To,
		obj.Value, obj.SoldPrice, obj.TrendingPrice, obj.PreviousPrice,
	} {
		if v := ParsePrice(string(candidate)); v > 0 {
			return v
		}
	}
	return 0
}

const titleNoiseSuffix = "Opens in a new window or tab"

func normalizeProduct(p apiProduct, status domain.ListingStatus) domain.Listing {
	title := strings.TrimSpace(strings.ReplaceAll(p.Title, titleNoiseSuffix, ""))

	listing := domain.Listing{
		Title:  title,
		Price:  productPrice(p.Price),
		Image:  p.Image,
		URL:    p.URL,
		Status: status,
	}

	if cond := conditionFromSubtitles(p.SubTitles); cond != nil {
		listing.ConditionRating = &cond.Rating
		listing.ConditionLabel = cond.Label
		listing.ConditionNotes = cond.Notes
	}
	return listing
}

type conditionEntry struct {
	key    string
	rating int
	label  string
}

// conditionTable maps seller condition labels to a 1-10 rating. Kept
// sorted longest key first so "used - good" matches before "used".
var conditionTable = func() []conditionEntry {
	entries := []conditionEntry{
		{"new with tags", 10, "Mint"},
		{"new with box", 10, "Mint"},
		{"brand new", 10, "Mint"},
		{"new", 10, "Mint"},
		{"new without tags", 9, "Like New"},
		{"new without box", 9, "Like New"},
		{"new (other)", 9, "Like New"},
		{"open box", 9, "Like New"},
		{"like new", 9, "Like New"},
		{"certified refurbished", 8, "Like New"},
		{"certified - refurbished", 8, "Like New"},
		{"excellent - refurbished", 8, "Like New"},
		{"excellent", 8, "Like New"},
		{"seller refurbished", 7, "Good"},
		{"very good - refurbished", 7, "Good"},
		{"very good", 7, "Good"},
		{"used - very good", 7, "Good"},
		{"used - good", 7, "Good"},
		{"good - refurbished", 6, "Fair"},
		{"good", 7, "Good"},
		{"pre-owned", 6, "Fair"},
		{"used", 6, "Fair"},
		{"acceptable", 5, "Fair"},
		{"used - acceptable", 5, "Fair"},
		{"for parts or not working", 2, "Poor"},
		{"for parts", 2, "Poor"},
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].key) > len(entries[j].key)
	})
	return entries
}()

func lookupCondition(text string) (int, string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, e := range conditionTable {
		if lower == e.key || strings.HasPrefix(lower, e.key) {
			return e.rating, e.label, true
		}
	}
	return 0, "", false
}

// conditionFromSubtitles scans search result subtitles for a recognized
// condition label. Returns nil when none match.
func conditionFromSubtitles(subtitles []string) *domain.ConditionInfo {
	for _, sub := range subtitles {
		if rating, label, ok := lookupCondition(sub); ok {
			return &domain.ConditionInfo{
				Rating: rating,
				Label:  label,
				Notes:  fmt.Sprintf("Seller-stated condition: %s", strings.TrimSpace(sub)),
			}
		}
	}
	return nil
}

// conditionFromText maps a product page condition string to a rating.
// Unrecognized text is graded by keyword rather than defaulting
// everything to average.
func conditionFromText(text string) *domain.ConditionInfo {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if rating, label, ok := lookupCondition(trimmed); ok {
		return &domain.ConditionInfo{
			Rating: rating,
			Label:  label,
			Notes:  fmt.Sprintf("Seller-stated condition: %s", trimmed),
		}
	}

	lower := strings.ToLower(trimmed)
	rating, label := 6, "Fair"
	switch {
	case strings.Contains(lower, "mint") || strings.Contains(lower, "new"):
		rating, label = 9, "Like New"
	case strings.Contains(lower, "excellent"):
		rating, label = 8, "Like New"
	case strings.Contains(lower, "very good"):
		rating, label = 7, "Good"
	case strings.Contains(lower, "good"):
		rating, label = 7, "Good"
	case strings.Contains(lower, "acceptable"):
		rating, label = 5, "Fair"
	case strings.Contains(lower, "parts") || strings.Contains(lower, "not working"):
		rating, label = 2, "Poor"
	}
	return &domain.ConditionInfo{
		Rating: rating,
		Label:  label,
		Notes:  fmt.Sprintf("Listed condition: %s", trimmed),
	}
}
