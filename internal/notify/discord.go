package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type Discord struct {
	Webhook string
	Client  *http.Client
	Now     func() time.Time
}

func NewDiscord(webhook string) *Discord {
	if webhook == "" {
		return nil
	}
	return &Discord{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Now:     time.Now,
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, m Message) error {
	if d == nil || d.Webhook == "" {
		return errors.New("discord disabled")
	}
	color := m.Color
	if color == 0 {
		color = ColorRecovery
	}
	body, _ := json.Marshal(discordPayload{Embeds: []discordEmbed{{
		Title:       m.Title,
		Description: m.Text,
		Color:       color,
		Timestamp:   d.Now().UTC().Format(time.RFC3339),
	}}})
	return postJSON(ctx, d.Client, d.Webhook, body, nil)
}
