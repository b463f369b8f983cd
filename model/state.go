package model

import "time"

// EngineStateID is the primary key of the single EngineState row.
const EngineStateID = 1

// EngineState is the singleton row holding the season epoch and the role
// identities. Identities are hex-encoded ed25519 public keys.
type EngineState struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	SeasonEpoch time.Time `gorm:"not null" json:"season_epoch"`
	QuestMaster string    `gorm:"size:64;not null" json:"quest_master"`
	QuestSigner string    `gorm:"size:64;not null" json:"quest_signer"`
	Governor    string    `gorm:"size:64;not null" json:"governor"`
}

func (EngineState) TableName() string { return "engine_state" }
