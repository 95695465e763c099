package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

const (
	colorGreen  = 0x2ECC71 // discount 40%+
	colorYellow = 0xF1C40F // discount 30-39%
	colorOrange = 0xE67E22 // below 30%
)

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Thumbnail   *discordThumbnail   `json:"thumbnail,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

// SendDealAlert sends a deal alert as a Discord embed.
func (d *DiscordNotifier) SendDealAlert(
	ctx context.Context,
	fingerprintPrefix string,
	alert *domain.AlertPayload,
) error {
	payload := discordWebhookPayload{
		Embeds: []discordEmbed{buildEmbed(fingerprintPrefix, alert)},
	}
	return d.post(ctx, payload)
}

func buildEmbed(fingerprintPrefix string, alert *domain.AlertPayload) discordEmbed {
	embed := discordEmbed{
		Title: fmt.Sprintf("Deal Alert: %s", alert.Title),
		URL:   alert.URL,
		Color: discountColor(alert.DiscountPct),
		Fields: []discordEmbedField{
			{Name: "Price", Value: fmt.Sprintf("$%.2f", alert.Price), Inline: true},
			{Name: "Fair Value", Value: fmt.Sprintf("$%.2f", alert.FairValue), Inline: true},
			{Name: "Discount", Value: fmt.Sprintf("%.1f%%", alert.DiscountPct), Inline: true},
			{Name: "Search", Value: fingerprintPrefix, Inline: true},
		},
	}

	if alert.Image != "" {
		embed.Thumbnail = &discordThumbnail{URL: alert.Image}
	}

	return embed
}

func discountColor(discountPct float64) int {
	switch {
	case discountPct >= 40:
		return colorGreen
	case discountPct >= 30:
		return colorYellow
	default:
		return colorOrange
	}
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		d.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
