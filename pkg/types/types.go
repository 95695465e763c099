// Package domain defines the core business types for marketmaker.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ListingStatus indicates whether a listing is sold or still purchasable.
type ListingStatus string

// Listing status constants.
const (
	StatusSold   ListingStatus = "sold"
	StatusActive ListingStatus = "active"
)

// Confidence grades how trustworthy a valuation is.
type Confidence string

// Confidence constants.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConditionFlag marks a deal after condition scoring.
type ConditionFlag string

// Condition flag constants. The empty flag means "no signal either way".
const (
	FlagTopPick     ConditionFlag = "top_pick"
	FlagFairWarning ConditionFlag = "fair_warning"
	FlagNone        ConditionFlag = ""
)

// FilterType categorizes why a listing was rejected.
type FilterType string

// Filter type constants.
const (
	FilterScam          FilterType = "scam"
	FilterMismatch      FilterType = "mismatch"
	FilterPoorCondition FilterType = "poor_condition"
)

// Listing is a normalized marketplace listing. Listings are transient:
// they flow through the pipeline but are never persisted directly.
type Listing struct {
	Title  string        `json:"title"`
	Price  float64       `json:"price"`
	Image  string        `json:"image,omitempty"`
	URL    string        `json:"url"`
	Status ListingStatus `json:"status"`

	// Condition, when the marketplace already exposed it.
	ConditionRating *int   `json:"condition_rating,omitempty"`
	ConditionLabel  string `json:"condition_label,omitempty"`
	ConditionNotes  string `json:"condition_notes,omitempty"`
}

// ConditionInfo is the result of a condition lookup for a single listing.
type ConditionInfo struct {
	Rating int    `json:"rating"` // 1 (parts only) .. 10 (mint)
	Label  string `json:"label"`
	Notes  string `json:"notes,omitempty"`
}

// ValuationResult holds fair-value statistics derived from sold listings.
// Invariant: FairValue > 0 iff SampleSize > 0.
type ValuationResult struct {
	FairValue  float64    `json:"fair_value"`
	MeanPrice  float64    `json:"mean_price"`
	MinPrice   float64    `json:"min_price"`
	MaxPrice   float64    `json:"max_price"`
	SampleSize int        `json:"sample_size"`
	StdDev     float64    `json:"std_dev"`
	Confidence Confidence `json:"confidence"`
}

// Deal is a Listing that cleared the discount threshold, enriched stage
// by stage: discount stamp, flip economics, then condition scoring.
type Deal struct {
	Listing

	DiscountPct float64 `json:"discount_pct"`
	FairValue   float64 `json:"fair_value"`

	FlipProfit float64 `json:"flip_profit"`
	FlipROI    float64 `json:"flip_roi"`

	ConditionAdjustedDiscount float64       `json:"condition_adjusted_discount,omitempty"`
	ConditionFlag             ConditionFlag `json:"condition_flag,omitempty"`
}

// FilteredItem is a rejected listing plus the reason it was removed.
type FilteredItem struct {
	Title      string     `json:"title"`
	Price      float64    `json:"price"`
	URL        string     `json:"url"`
	Image      string     `json:"image,omitempty"`
	Reason     string     `json:"reason"`
	FilterType FilterType `json:"filter_type"`
}

// FlipEstimate breaks down the economics of buying a deal and reselling
// it at fair value.
type FlipEstimate struct {
	BuyPrice       float64 `json:"buy_price"`
	SellPrice      float64 `json:"sell_price"`
	MarketplaceFee float64 `json:"marketplace_fee"`
	Shipping       float64 `json:"shipping"`
	NetProfit      float64 `json:"net_profit"`
	ROIPct         float64 `json:"roi_pct"`
}

// PriceTier is one sell-side pricing recommendation.
type PriceTier struct {
	Name           string  `json:"name"`
	ListPrice      float64 `json:"list_price"`
	MarketplaceFee float64 `json:"marketplace_fee"`
	Shipping       float64 `json:"shipping"`
	NetPayout      float64 `json:"net_payout"`
}

// TrackedSearch is a persisted saved search scanned on a schedule.
// The plaintext query is never stored: only its ciphertext and an HMAC
// fingerprint used for lookups and log-safe prefixes.
type TrackedSearch struct {
	ID               string     `json:"id"                    db:"id"`
	QueryCiphertext  string     `json:"-"                     db:"query_ciphertext"`
	QueryFingerprint string     `json:"-"                     db:"query_fingerprint"`
	MinDiscount      float64    `json:"min_discount"          db:"min_discount"`
	FrequencyMinutes int        `json:"frequency_minutes"     db:"frequency_minutes"`
	Enabled          bool       `json:"enabled"               db:"enabled"`
	LastRunAt        *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	CreatedAt        time.Time  `json:"created_at"            db:"created_at"`
}

// Due reports whether the search should be scanned at time now.
func (t *TrackedSearch) Due(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	if t.LastRunAt == nil {
		return true
	}
	return t.LastRunAt.Add(time.Duration(t.FrequencyMinutes) * time.Minute).Before(now)
}

// Scan run status values. A run starts as running and finishes in
// exactly one terminal state; rows are never re-opened.
const (
	ScanStatusRunning = "running"
	ScanStatusSuccess = "success"
	ScanStatusFailed  = "failed"
)

// ScanRun records a single scan attempt for a tracked search.
type ScanRun struct {
	ID              string          `json:"id"                    db:"id"`
	TrackedSearchID string          `json:"tracked_search_id"     db:"tracked_search_id"`
	StartedAt       time.Time       `json:"started_at"            db:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	Status          string          `json:"status"                db:"status"`
	ErrorText       string          `json:"error_text,omitempty"  db:"error_text"`
	Stats           json.RawMessage `json:"stats,omitempty"       db:"stats"`
}

// SeenItem is the deduplication ledger row for one (tracked search, item)
// pair. AlertedAt is a one-way latch: once set it is never cleared, and
// it is the sole gate preventing duplicate alerts for the same item.
type SeenItem struct {
	ID              string     `json:"id"                   db:"id"`
	TrackedSearchID string     `json:"tracked_search_id"    db:"tracked_search_id"`
	ItemKey         string     `json:"item_key"             db:"item_key"`
	URL             string     `json:"url"                  db:"url"`
	Title           string     `json:"title"                db:"title"`
	LastPrice       float64    `json:"last_price"           db:"last_price"`
	FirstSeenAt     time.Time  `json:"first_seen_at"        db:"first_seen_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"         db:"last_seen_at"`
	AlertedAt       *time.Time `json:"alerted_at,omitempty" db:"alerted_at"`
}

// AlertEvent is an append-only record of one fired alert.
type AlertEvent struct {
	ID              string          `json:"id"                db:"id"`
	TrackedSearchID string          `json:"tracked_search_id" db:"tracked_search_id"`
	ItemKey         string          `json:"item_key"          db:"item_key"`
	Payload         json.RawMessage `json:"payload"           db:"payload"`
	CreatedAt       time.Time       `json:"created_at"        db:"created_at"`
}

// AlertPayload is the deal snapshot stored with an AlertEvent.
type AlertPayload struct {
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	URL         string  `json:"url"`
	Image       string  `json:"image,omitempty"`
	DiscountPct float64 `json:"discount_pct"`
	FairValue   float64 `json:"fair_value"`
}

// ScanStats is the aggregate snapshot written into a finished ScanRun.
type ScanStats struct {
	DealsProcessed int        `json:"deals_processed"`
	NewAlerts      int        `json:"new_alerts"`
	SampleSize     int        `json:"sample_size"`
	Confidence     Confidence `json:"confidence"`
}

// ItemKey derives the stable identity joining SeenItem and AlertEvent
// rows for a listing. The URL alone identifies an item when present, so
// price changes on the same listing do not mint a new key; listings
// without a URL fall back to a hash of title, price, and image. Returns
// "" when every input is empty; such listings cannot participate in
// dedup.
func ItemKey(url, title string, price float64, image string) string {
	url = strings.TrimSpace(url)
	if url != "" {
		return digest(url)
	}
	title = strings.TrimSpace(title)
	image = strings.TrimSpace(image)
	if title == "" && image == "" {
		return ""
	}
	return digest(fmt.Sprintf("%s|%.2f|%s", title, price, image))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
