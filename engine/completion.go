package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/questlabs/questledger/events"
	"github.com/questlabs/questledger/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompleteQuests processes a batch of quest completions for one account.
// The batch is all-or-nothing: the decay check, every completion record,
// every balance mutation, and every collaborator notification either all
// take effect or none do.
//
// Order of operations per the completion protocol: the decay check runs
// exactly once up front and seeds the running accumulator with the
// account's current total; each (quest id, signature) entry is then
// validated, authenticated, and applied in submitted order; finally every
// registered collaborator is notified with the final accumulator value.
func (e *Engine) CompleteQuests(ctx context.Context, account string, questIDs []int64, sigs [][]byte) (int, error) {
	if len(questIDs) == 0 || len(questIDs) != len(sigs) {
		return 0, ErrInvalidArgs
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var total int
	var pending []events.Event

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		authority := e.signingAuthority(st)

		bal, err := e.checkAndDecay(tx, st, account, now)
		if err != nil {
			return err
		}
		total = bal.PermMultiplier + bal.SeasonMultiplier

		for i, id := range questIDs {
			var quest model.Quest
			if err := tx.First(&quest, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("quest %d: %w", id, ErrInvalidQuest)
				}
				return err
			}
			if !isValid(&quest, now) {
				return fmt.Errorf("quest %d: %w", id, ErrInvalidQuest)
			}

			var dup int64
			if err := tx.Model(&model.Completion{}).
				Where("account = ? AND quest_id = ?", account, id).
				Count(&dup).Error; err != nil {
				return err
			}
			if dup > 0 {
				return fmt.Errorf("quest %d: %w", id, ErrAlreadyCompleted)
			}

			if !e.verify(authority, account, id, sigs[i]) {
				return fmt.Errorf("quest %d: %w", id, ErrInvalidSignature)
			}

			if err := tx.Create(&model.Completion{Account: account, QuestID: id}).Error; err != nil {
				return err
			}
			if quest.Kind == model.QuestKindPermanent {
				bal.PermMultiplier += quest.Multiplier
			} else {
				bal.SeasonMultiplier += quest.Multiplier
			}
			total += quest.Multiplier
			pending = append(pending, events.Event{
				Type:    events.TypeQuestCompleted,
				Payload: map[string]interface{}{"account": account, "id": id},
			})
		}

		if err := tx.Save(bal).Error; err != nil {
			return err
		}

		// Fan out the final total. Collaborator failure rolls the whole
		// batch back; the payload is the absolute total, so a collaborator
		// that already stored it before a later one failed converges on
		// the next successful batch.
		var collabs []model.Collaborator
		if err := tx.Order("id").Find(&collabs).Error; err != nil {
			return err
		}
		for _, c := range collabs {
			if err := e.notifier.Notify(ctx, c, account, total); err != nil {
				return fmt.Errorf("%w: %v", ErrPropagationFailed, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.bus.PublishAll(ctx, pending)
	e.logger.Info("completion batch applied",
		zap.String("account", account),
		zap.Int("quests", len(questIDs)),
		zap.Int("total_multiplier", total))
	return total, nil
}

// HasCompleted reports whether the account has ever completed the quest.
// True forever once a completion commits.
func (e *Engine) HasCompleted(ctx context.Context, account string, questID int64) (bool, error) {
	var n int64
	err := e.db.WithContext(ctx).Model(&model.Completion{}).
		Where("account = ? AND quest_id = ?", account, questID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListCompletions returns the account's completions in quest-id order.
func (e *Engine) ListCompletions(ctx context.Context, account string) ([]model.Completion, error) {
	var rows []model.Completion
	err := e.db.WithContext(ctx).
		Where("account = ?", account).
		Order("quest_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
