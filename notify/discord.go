package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DiscordNotifier posts split announcements through a Discord webhook.
type DiscordNotifier struct {
	session   *discordgo.Session
	webhookID string
	token     string
	username  string
}

// NewDiscordNotifier parses a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}. A nil client uses the
// discordgo default.
func NewDiscordNotifier(webhookURL string, client *http.Client) (*DiscordNotifier, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	// Webhook execution is authorized by the token in the path, not a bot token.
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	if client != nil {
		s.Client = client
	}
	return &DiscordNotifier{session: s, webhookID: id, token: token, username: "PledgeSplit"}, nil
}

func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhookURL, raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// api/webhooks/{id}/{token}
	if len(parts) != 4 || parts[0] != "api" || parts[1] != "webhooks" || parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhookURL, raw)
	}
	return parts[2], parts[3], nil
}

// Notify posts the formatted message for ev.
func (d *DiscordNotifier) Notify(ctx context.Context, ev Event) error {
	params := &discordgo.WebhookParams{
		Content:  FormatMessage(ev),
		Username: d.username,
	}
	if _, err := d.session.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: discord: %v", ErrDeliveryFailed, err)
	}
	return nil
}
