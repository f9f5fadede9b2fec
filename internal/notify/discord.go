package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/donaldgifford/buybox/internal/metrics"
)

const (
	colorBlue = 0x3498DB // override set
	colorGrey = 0x95A5A6 // override cleared
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
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// SendOverrideEvent posts the event as a single Discord embed.
func (d *DiscordNotifier) SendOverrideEvent(ctx context.Context, event *OverrideEvent) error {
	payload := discordWebhookPayload{
		Embeds: []discordEmbed{buildEmbed(event)},
	}
	return d.post(ctx, payload)
}

func buildEmbed(event *OverrideEvent) discordEmbed {
	embed := discordEmbed{
		Fields: []discordEmbedField{
			{Name: "Product", Value: event.ProductID, Inline: true},
		},
	}
	if !event.OccurredAt.IsZero() {
		embed.Timestamp = event.OccurredAt.UTC().Format(time.RFC3339)
	}

	switch event.Action {
	case OverrideSet:
		embed.Title = fmt.Sprintf("Buy Box override set: %s", event.ProductID)
		embed.Color = colorBlue
		if o := event.Override; o != nil {
			embed.Description = o.Reason
			embed.Fields = append(embed.Fields,
				discordEmbedField{Name: "Offer", Value: o.OfferID, Inline: true},
				discordEmbedField{Name: "Vendor", Value: valueOrDash(o.VendorID), Inline: true},
				discordEmbedField{Name: "Set By", Value: valueOrDash(o.SetBy), Inline: true},
			)
			expires := "never"
			if o.ExpiresAt != nil {
				expires = o.ExpiresAt.UTC().Format(time.RFC3339)
			}
			embed.Fields = append(embed.Fields,
				discordEmbedField{Name: "Expires", Value: expires, Inline: true},
			)
		}
	default:
		embed.Title = fmt.Sprintf("Buy Box override cleared: %s", event.ProductID)
		embed.Color = colorGrey
	}

	return embed
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) error {
	start := time.Now()
	defer func() {
		metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	}()

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
