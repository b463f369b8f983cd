// Package events publishes engine events to the pub/sub layer so other
// processes (and the SSE endpoint) can observe registry and balance
// changes without polling the database.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/questlabs/questledger/cache"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel all engine events are published to.
const Channel = "quest.events"

// Event types.
const (
	TypeQuestCreated       = "quest_created"
	TypeQuestCompleted     = "quest_completed"
	TypeQuestExpired       = "quest_expired"
	TypeSeasonEnded        = "season_ended"
	TypeQuestMasterChanged = "quest_master_changed"
	TypeQuestSignerChanged = "quest_signer_changed"
)

// Event is one engine event. Payload fields vary by type.
type Event struct {
	Type    string                 `json:"type"`
	At      time.Time              `json:"at"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus serializes events to JSON and publishes them.
type Bus struct {
	ps     cache.PubSub
	logger *zap.Logger
}

// NewBus creates an event Bus on top of the given PubSub.
func NewBus(ps cache.PubSub, logger *zap.Logger) *Bus {
	return &Bus{ps: ps, logger: logger}
}

// Publish emits a single event. Publish failures are logged, not
// propagated: events are observability, not state.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("event marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if err := b.ps.Publish(ctx, Channel, string(data)); err != nil {
		b.logger.Warn("event publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// PublishAll emits events in order.
func (b *Bus) PublishAll(ctx context.Context, evs []Event) {
	for _, ev := range evs {
		b.Publish(ctx, ev)
	}
}
