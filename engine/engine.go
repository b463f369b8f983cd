// Package engine implements the quest & multiplier engine: the append-only
// quest registry, the signature-gated completion processor, the seasonal
// decay controller, and the fan-out of updated multipliers to staking
// collaborators.
//
// All mutating operations serialize on a single mutex and run in one
// database transaction, so every operation either completes fully or leaves
// no trace, and concurrent reads never observe a partially applied batch.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/questlabs/questledger/events"
	"github.com/questlabs/questledger/model"
	"github.com/questlabs/questledger/signer"
	"github.com/questlabs/questledger/staking"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VerifyWith values select which role's key attests quest completions.
const (
	VerifyWithQuestSigner = "quest_signer"
	VerifyWithQuestMaster = "quest_master"
)

// Config holds the engine parameters. Zero values are replaced with the
// production defaults by New.
type Config struct {
	MinQuestLead   time.Duration
	SeasonLength   time.Duration
	DecayRetainPct int
	MaxMultiplier  int
	VerifyWith     string
}

func (c *Config) applyDefaults() {
	if c.MinQuestLead <= 0 {
		c.MinQuestLead = 24 * time.Hour
	}
	if c.SeasonLength <= 0 {
		c.SeasonLength = 39 * 7 * 24 * time.Hour
	}
	if c.DecayRetainPct <= 0 {
		c.DecayRetainPct = 15
	}
	if c.MaxMultiplier <= 0 {
		c.MaxMultiplier = 50
	}
	if c.VerifyWith != VerifyWithQuestMaster {
		c.VerifyWith = VerifyWithQuestSigner
	}
}

// Engine owns all quest, season, balance, and role state.
type Engine struct {
	mu       sync.Mutex
	db       *gorm.DB
	cfg      Config
	verify   signer.VerifyFunc
	notifier staking.Notifier
	bus      *events.Bus
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an Engine. verify may be nil, in which case the default
// ed25519 predicate is used.
func New(db *gorm.DB, cfg Config, verify signer.VerifyFunc, notifier staking.Notifier, bus *events.Bus, logger *zap.Logger) *Engine {
	cfg.applyDefaults()
	if verify == nil {
		verify = signer.Verify
	}
	return &Engine{
		db:       db,
		cfg:      cfg,
		verify:   verify,
		notifier: notifier,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureState creates the singleton engine state row on first startup.
// Existing state is left untouched, so role rotations survive restarts.
func (e *Engine) EnsureState(ctx context.Context, governor, questMaster, questSigner string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var st model.EngineState
	err := e.db.WithContext(ctx).First(&st, model.EngineStateID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	st = model.EngineState{
		ID:          model.EngineStateID,
		SeasonEpoch: e.now(),
		QuestMaster: questMaster,
		QuestSigner: questSigner,
		Governor:    governor,
	}
	if err := e.db.WithContext(ctx).Create(&st).Error; err != nil {
		return err
	}
	e.logger.Info("engine state seeded",
		zap.String("quest_master", questMaster),
		zap.String("quest_signer", questSigner),
		zap.Time("season_epoch", st.SeasonEpoch))
	return nil
}

// State returns the current season epoch and role identities.
func (e *Engine) State(ctx context.Context) (*model.EngineState, error) {
	var st model.EngineState
	if err := e.db.WithContext(ctx).First(&st, model.EngineStateID).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

func (e *Engine) loadState(tx *gorm.DB) (*model.EngineState, error) {
	var st model.EngineState
	if err := tx.First(&st, model.EngineStateID).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// signingAuthority returns the identity whose key must have signed a
// completion attestation, per the configured verification mode.
func (e *Engine) signingAuthority(st *model.EngineState) string {
	if e.cfg.VerifyWith == VerifyWithQuestMaster {
		return st.QuestMaster
	}
	return st.QuestSigner
}

// SetQuestMaster rotates the quest-master identity. Permitted for the
// current quest-master or the governor.
func (e *Engine) SetQuestMaster(ctx context.Context, caller, newIdentity string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var old string
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if err := requireQuestMasterOrGovernor(st, caller); err != nil {
			return err
		}
		old = st.QuestMaster
		st.QuestMaster = newIdentity
		return tx.Save(st).Error
	})
	if err != nil {
		return err
	}
	e.bus.Publish(ctx, events.Event{
		Type:    events.TypeQuestMasterChanged,
		Payload: map[string]interface{}{"old": old, "new": newIdentity},
	})
	e.logger.Info("quest master rotated", zap.String("old", old), zap.String("new", newIdentity))
	return nil
}

// SetQuestSigner rotates the quest-signer identity. Governor only.
func (e *Engine) SetQuestSigner(ctx context.Context, caller, newIdentity string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var old string
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if err := requireGovernor(st, caller); err != nil {
			return err
		}
		old = st.QuestSigner
		st.QuestSigner = newIdentity
		return tx.Save(st).Error
	})
	if err != nil {
		return err
	}
	e.bus.Publish(ctx, events.Event{
		Type:    events.TypeQuestSignerChanged,
		Payload: map[string]interface{}{"old": old, "new": newIdentity},
	})
	e.logger.Info("quest signer rotated", zap.String("old", old), zap.String("new", newIdentity))
	return nil
}

// RegisterCollaborator adds a staking collaborator to the notification
// list. Governor only; collaborators are notified in registration order.
func (e *Engine) RegisterCollaborator(ctx context.Context, caller, name, endpoint string) (*model.Collaborator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var collab model.Collaborator
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if err := requireGovernor(st, caller); err != nil {
			return err
		}
		collab = model.Collaborator{Name: name, Endpoint: endpoint}
		return tx.Create(&collab).Error
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("collaborator registered",
		zap.String("name", name), zap.String("endpoint", endpoint))
	return &collab, nil
}

// ListCollaborators returns the registered collaborators in notification order.
func (e *Engine) ListCollaborators(ctx context.Context) ([]model.Collaborator, error) {
	var collabs []model.Collaborator
	if err := e.db.WithContext(ctx).Order("id").Find(&collabs).Error; err != nil {
		return nil, err
	}
	return collabs, nil
}
