// Package notify tells administrators about things waiting on them, such as
// shop orders pending approval.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Log writes notifications to the service log.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(_ context.Context, subject, body string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("admin notification", "subject", subject, "body", body)
	return nil
}

// Discord posts to a channel webhook.
type Discord struct {
	session   *discordgo.Session
	webhookID string
	token     string
}

// NewDiscord accepts a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	return &Discord{session: session, webhookID: id, token: token}, nil
}

func (d *Discord) Notify(ctx context.Context, subject, body string) error {
	_, err := d.session.WebhookExecute(d.webhookID, d.token, false, &discordgo.WebhookParams{
		Username: "microbank",
		Content:  fmt.Sprintf("**%s**\n%s", subject, body),
	}, discordgo.WithContext(ctx))
	return err
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %q has no /webhooks/<id>/<token> path", raw)
}
