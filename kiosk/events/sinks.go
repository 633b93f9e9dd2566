package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/smartvendoplus/smartvendo/kiosk/database/repositories"
)

// StoreSink persists events to the system_logs table.
type StoreSink struct {
	logs repositories.SystemLogRepository
}

func NewStoreSink(logs repositories.SystemLogRepository) *StoreSink {
	return &StoreSink{logs: logs}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Write(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return s.logs.Insert(ctx, &models.SystemLog{
		EventID:   event.ID.String(),
		EventType: event.Type,
		EventData: data,
		CreatedAt: event.Timestamp,
	})
}

// WebhookSink relays noteworthy events to a Discord webhook so kiosk staff
// hear about them without watching the admin panel. Low-stock redemptions,
// out-of-stock rejections, and registrations are relayed; everything else is
// ignored.
type WebhookSink struct {
	client            webhook.Client
	lowStockThreshold int64
}

func NewWebhookSink(webhookURL string, lowStockThreshold int64) (*WebhookSink, error) {
	client, err := webhook.NewWithURL(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}
	return &WebhookSink{client: client, lowStockThreshold: lowStockThreshold}, nil
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Write(ctx context.Context, event Event) error {
	content := s.render(event)
	if content == "" {
		return nil
	}

	_, err := s.client.CreateContent(content, rest.WithCtx(ctx))
	return err
}

func (s *WebhookSink) render(event Event) string {
	switch event.Type {
	case "reward_redeem":
		stock, ok := event.Payload["new_stock"].(int64)
		if !ok || stock > s.lowStockThreshold {
			return ""
		}
		return fmt.Sprintf("⚠️ Reward `%v` is low on stock: %d left", event.Payload["reward_name"], stock)
	case "user_register":
		return fmt.Sprintf("🆕 New card registered: `%v`", event.Payload["card_uid"])
	case "deposit_rejected", "redeem_rejected":
		code, _ := event.Payload["code"].(string)
		if code != "OUT_OF_STOCK" {
			return ""
		}
		return fmt.Sprintf("❌ Redemption blocked, `%v` is out of stock (account %v)",
			event.Payload["reward_name"], event.Payload["account_id"])
	default:
		return ""
	}
}
