package engine

import (
	"context"
	"errors"
	"time"

	"github.com/questlabs/questledger/events"
	"github.com/questlabs/questledger/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddQuest appends a new quest to the registry and returns it with its
// assigned id. Restricted to the quest-master or the governor.
func (e *Engine) AddQuest(ctx context.Context, caller string, kind model.QuestKind, multiplier int, expiresAt time.Time) (*model.Quest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var quest model.Quest
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if err := requireQuestMasterOrGovernor(st, caller); err != nil {
			return err
		}
		if multiplier < 1 || multiplier > e.cfg.MaxMultiplier {
			return ErrInvalidMultiplier
		}
		if !expiresAt.After(now.Add(e.cfg.MinQuestLead)) {
			return ErrInvalidWindow
		}

		// Position in the append-only registry is the quest's identity.
		var count int64
		if err := tx.Model(&model.Quest{}).Count(&count).Error; err != nil {
			return err
		}
		quest = model.Quest{
			ID:         count,
			Kind:       kind,
			Multiplier: multiplier,
			Status:     model.QuestStatusActive,
			ExpiresAt:  expiresAt,
		}
		return tx.Create(&quest).Error
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(ctx, events.Event{
		Type: events.TypeQuestCreated,
		Payload: map[string]interface{}{
			"master":     caller,
			"id":         quest.ID,
			"kind":       quest.Kind,
			"multiplier": quest.Multiplier,
			"status":     quest.Status,
			"expires_at": quest.ExpiresAt,
		},
	})
	e.logger.Info("quest added",
		zap.Int64("id", quest.ID),
		zap.Int("kind", quest.Kind),
		zap.Int("multiplier", quest.Multiplier),
		zap.Time("expires_at", quest.ExpiresAt))
	return &quest, nil
}

// ExpireQuest marks a quest expired. If the quest's expiry is still in the
// future it is clamped to now, so the quest stops being completable
// immediately. Restricted to the quest-master or the governor.
func (e *Engine) ExpireQuest(ctx context.Context, caller string, id int64) (*model.Quest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var quest model.Quest
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if err := requireQuestMasterOrGovernor(st, caller); err != nil {
			return err
		}
		if err := tx.First(&quest, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if quest.Status == model.QuestStatusExpired {
			return ErrAlreadyExpired
		}
		quest.Status = model.QuestStatusExpired
		if quest.ExpiresAt.After(now) {
			quest.ExpiresAt = now
		}
		return tx.Save(&quest).Error
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(ctx, events.Event{
		Type:    events.TypeQuestExpired,
		Payload: map[string]interface{}{"id": quest.ID},
	})
	e.logger.Info("quest expired", zap.Int64("id", quest.ID))
	return &quest, nil
}

// GetQuest returns the quest with the given id.
func (e *Engine) GetQuest(ctx context.Context, id int64) (*model.Quest, error) {
	var quest model.Quest
	if err := e.db.WithContext(ctx).First(&quest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &quest, nil
}

// ListQuests returns the full registry in id order.
func (e *Engine) ListQuests(ctx context.Context) ([]model.Quest, error) {
	var quests []model.Quest
	if err := e.db.WithContext(ctx).Order("id").Find(&quests).Error; err != nil {
		return nil, err
	}
	return quests, nil
}

// isValid reports whether a quest can be completed at the given instant:
// status active and strictly before expiry. Validity is computed, not just
// stored — a quest whose expiry has passed is invalid even while its status
// still reads active.
func isValid(q *model.Quest, now time.Time) bool {
	return q.Status == model.QuestStatusActive && now.Before(q.ExpiresAt)
}
