package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/questlabs/questledger/events"
	"github.com/questlabs/questledger/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StartNewSeason rolls the season epoch forward. It requires the minimum
// season length to have elapsed and every seasonal quest to be expired or
// past its own expiry. No account balance is touched here: decay is applied
// lazily per account on its next interaction, because the account
// population is unbounded and a global sweep would be an unbounded-cost
// operation.
func (e *Engine) StartNewSeason(ctx context.Context, caller string) (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if err := requireQuestMasterOrGovernor(st, caller); err != nil {
			return err
		}
		if !now.After(st.SeasonEpoch.Add(e.cfg.SeasonLength)) {
			return ErrSeasonNotElapsed
		}
		var open int64
		err = tx.Model(&model.Quest{}).
			Where("kind = ? AND status = ? AND expires_at >= ?",
				model.QuestKindSeasonal, model.QuestStatusActive, now).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrSeasonalQuestsStillActive
		}
		st.SeasonEpoch = now
		return tx.Save(st).Error
	})
	if err != nil {
		return time.Time{}, err
	}

	e.bus.Publish(ctx, events.Event{Type: events.TypeSeasonEnded})
	e.logger.Info("season rolled over", zap.Time("season_epoch", now))
	return now, nil
}

// checkAndDecay applies the lazy seasonal decay for one account inside the
// caller's transaction and returns the up-to-date balance. If the account's
// last recorded action predates the current season, its seasonal multiplier
// is cut to DecayRetainPct percent (integer truncation). LastAction is
// always advanced, which makes the check idempotent within a season. A
// missing balance row is created on the spot — absent accounts read as
// all-zero.
func (e *Engine) checkAndDecay(tx *gorm.DB, st *model.EngineState, account string, now time.Time) (*model.Balance, error) {
	var bal model.Balance
	err := tx.First(&bal, "account = ?", account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bal = model.Balance{Account: account, LastAction: now}
		if err := tx.Create(&bal).Error; err != nil {
			return nil, err
		}
		return &bal, nil
	}
	if err != nil {
		return nil, err
	}

	if bal.LastAction.Before(st.SeasonEpoch) {
		bal.SeasonMultiplier = bal.SeasonMultiplier * e.cfg.DecayRetainPct / 100
	}
	bal.LastAction = now
	if err := tx.Save(&bal).Error; err != nil {
		return nil, err
	}
	return &bal, nil
}

// effectiveSeason returns the seasonal multiplier as it would read after a
// decay check, without persisting anything.
func (e *Engine) effectiveSeason(st *model.EngineState, bal *model.Balance) int {
	if bal.LastAction.Before(st.SeasonEpoch) {
		return bal.SeasonMultiplier * e.cfg.DecayRetainPct / 100
	}
	return bal.SeasonMultiplier
}

// TotalMultiplier returns an account's effective total multiplier at this
// instant. Read-only: pending decay is computed, not applied.
func (e *Engine) TotalMultiplier(ctx context.Context, account string) (int, error) {
	st, err := e.State(ctx)
	if err != nil {
		return 0, err
	}
	var bal model.Balance
	err = e.db.WithContext(ctx).First(&bal, "account = ?", account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bal.PermMultiplier + e.effectiveSeason(st, &bal), nil
}

// RankedBalance is one leaderboard row.
type RankedBalance struct {
	Account string `json:"account"`
	Total   int    `json:"total"`
}

// TopMultipliers returns the accounts with the highest effective total
// multipliers, descending. Feeds the cached leaderboard.
func (e *Engine) TopMultipliers(ctx context.Context, limit int) ([]RankedBalance, error) {
	st, err := e.State(ctx)
	if err != nil {
		return nil, err
	}
	var bals []model.Balance
	if err := e.db.WithContext(ctx).Find(&bals).Error; err != nil {
		return nil, err
	}
	ranked := make([]RankedBalance, 0, len(bals))
	for i := range bals {
		ranked = append(ranked, RankedBalance{
			Account: bals[i].Account,
			Total:   bals[i].PermMultiplier + e.effectiveSeason(st, &bals[i]),
		})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Total > ranked[b].Total })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
