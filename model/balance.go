package model

import "time"

// Balance holds an account's accumulated quest multipliers. A missing row
// reads as all-zero; rows are created on first interaction and never
// deleted. LastAction is the timestamp of the most recent decay check, used
// to apply seasonal decay lazily instead of sweeping every account at
// rollover time.
type Balance struct {
	Account          string    `gorm:"primaryKey;size:64" json:"account"`
	PermMultiplier   int       `gorm:"default:0" json:"perm_multiplier"`
	SeasonMultiplier int       `gorm:"default:0" json:"season_multiplier"`
	LastAction       time.Time `json:"last_action"`
}
