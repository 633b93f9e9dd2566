package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// SystemLog is one row in the kiosk event log. The engine treats writes as
// fire-and-forget; rows exist for the admin panel and reconciliation audits.
type SystemLog struct {
	bun.BaseModel `bun:"table:system_logs,alias:sl"`

	ID        int64           `bun:"id,pk,autoincrement" json:"id"`
	EventID   string          `bun:"event_id,notnull" json:"event_id"`
	EventType string          `bun:"event_type,notnull" json:"event_type"`
	EventData json.RawMessage `bun:"event_data,type:jsonb" json:"event_data"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
