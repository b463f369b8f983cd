package model

import "time"

// Completion records that an account finished a quest. Rows are append-only
// and never deleted; the composite unique index enforces at-most-once
// completion per (account, quest) regardless of season rollovers.
type Completion struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Account     string    `gorm:"uniqueIndex:idx_account_quest;size:64;not null" json:"account"`
	QuestID     int64     `gorm:"uniqueIndex:idx_account_quest;not null" json:"quest_id"`
	CompletedAt time.Time `gorm:"autoCreateTime" json:"completed_at"`
}
