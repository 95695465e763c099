package ai

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

// stripFences removes a surrounding markdown code fence, which models
// sometimes emit despite being told not to.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = text[3:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

type brandPriceResponse struct {
	PriceUSD     *float64 `json:"price_usd"`
	Discontinued bool     `json:"discontinued"`
	Note         string   `json:"note"`
}

var looseDollarRe = regexp.MustCompile(`\$?\s*(\d{1,6}(?:\.\d{2})?)`)

// parseBrandPrice extracts (price, discontinued) from a model response.
// JSON is tried first; failing that, a bare dollar amount anywhere in
// the text is accepted with discontinued assumed false.
func parseBrandPrice(raw string) (*float64, bool) {
	text := stripFences(raw)
	if text == "" {
		return nil, false
	}

	var resp brandPriceResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		if resp.PriceUSD == nil || *resp.PriceUSD <= 0 {
			return nil, resp.Discontinued
		}
		price := math.Round(*resp.PriceUSD*100) / 100
		return &price, resp.Discontinued
	}

	if m := looseDollarRe.FindStringSubmatch(text); m != nil {
		var price float64
		if err := json.Unmarshal([]byte(m[1]), &price); err == nil && price > 0 {
			price = math.Round(price*100) / 100
			return &price, false
		}
	}
	return nil, false
}
