package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"

	"github.com/sidpendyala/marketmaker/internal/metrics"
	"github.com/sidpendyala/marketmaker/pkg/logger"
)

const defaultModelID = "gemini-2.0-flash"

const refinePrompt = `You are a second-hand marketplace search expert. A search for the query below returned poor results (reason: %s). Rewrite the query so it finds the same product with better precision: drop filler words, keep brand, model, and generation, and add nothing the user did not ask for.

Return ONLY a JSON object (no markdown, no code fences):
{"refined_query": "<the improved query, or the original query unchanged if you cannot improve it>"}

Query: %s`

const brandPricePrompt = `You are a product pricing expert. Given a product search query, return the current MANUFACTURER retail price in USD, meaning what the brand itself sells the product for (MSRP), NOT third-party or marketplace prices.

Return ONLY a JSON object (no markdown, no code fences):
{"price_usd": <number or null>, "discontinued": <true if the brand no longer sells this exact model or generation>, "note": "<optional one-line note>"}

RULES:
- Match the EXACT product and generation asked for. Never return a newer generation's price for an older one; superseded models are discontinued.
- price_usd must be null when discontinued or unknown.
- For products with multiple SKUs, use the base model's price.

Product query: %s`

// GeminiAdvisor implements Advisor with the Gemini API. A nil advisor
// is valid and answers every call with "no result", so callers need no
// key-present checks.
type GeminiAdvisor struct {
	model *genai.GenerativeModel
	cache *RefinementCache
	log   *slog.Logger
}

// GeminiOption configures the GeminiAdvisor.
type GeminiOption func(*GeminiAdvisor)

// WithCache injects a refinement cache consulted before the model.
func WithCache(cache *RefinementCache) GeminiOption {
	return func(a *GeminiAdvisor) {
		a.cache = cache
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(log *slog.Logger) GeminiOption {
	return func(a *GeminiAdvisor) {
		a.log = log
	}
}

// NewGeminiAdvisor creates the advisor. An empty API key returns a nil
// advisor and no error, matching the collaborator's optional role.
func NewGeminiAdvisor(ctx context.Context, apiKey, modelID string, opts ...GeminiOption) (*GeminiAdvisor, error) {
	if apiKey == "" {
		return nil, nil
	}
	if modelID == "" {
		modelID = defaultModelID
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelID)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	a := &GeminiAdvisor{model: model, log: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type refineResponse struct {
	RefinedQuery string `json:"refined_query"`
}

// RefineQuery implements Advisor.RefineQuery. Cache hits, including
// cached "no improvement" results, skip the model call entirely.
func (a *GeminiAdvisor) RefineQuery(ctx context.Context, query, reason string) (string, error) {
	if a == nil || a.model == nil {
		return "", nil
	}

	if a.cache != nil {
		if refined, ok := a.cache.Get(query); ok {
			return refined, nil
		}
	}

	timer := prometheus.NewTimer(metrics.AIRequestDuration.WithLabelValues("refine_query"))
	raw, err := a.generate(ctx, fmt.Sprintf(refinePrompt, reason, query))
	timer.ObserveDuration()
	if err != nil {
		metrics.AIFailuresTotal.WithLabelValues("refine_query").Inc()
		return "", err
	}

	var resp refineResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		metrics.AIFailuresTotal.WithLabelValues("refine_query").Inc()
		return "", fmt.Errorf("failed to parse gemini response: %w", err)
	}

	refined := strings.TrimSpace(resp.RefinedQuery)
	if strings.EqualFold(refined, strings.TrimSpace(query)) {
		refined = ""
	}

	if a.cache != nil {
		if err := a.cache.Put(query, refined); err != nil {
			a.log.Warn("refinement cache write failed", "error", err)
		}
	}
	return refined, nil
}

// BrandRetailPrice implements Advisor.BrandRetailPrice. Discontinued
// products and parse failures both yield a nil price without error;
// only transport failures are errors.
func (a *GeminiAdvisor) BrandRetailPrice(ctx context.Context, query string) (*float64, error) {
	if a == nil || a.model == nil {
		return nil, nil
	}

	timer := prometheus.NewTimer(metrics.AIRequestDuration.WithLabelValues("brand_price"))
	raw, err := a.generate(ctx, fmt.Sprintf(brandPricePrompt, query))
	timer.ObserveDuration()
	if err != nil {
		metrics.AIFailuresTotal.WithLabelValues("brand_price").Inc()
		return nil, err
	}

	price, discontinued := parseBrandPrice(raw)
	if discontinued {
		return nil, nil
	}
	return price, nil
}

func (a *GeminiAdvisor) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from gemini")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt), nil
		}
	}
	return "", fmt.Errorf("no text part in response")
}
