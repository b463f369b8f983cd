package model

import "time"

// QuestKind distinguishes how a quest's multiplier behaves over time.
type QuestKind = int

const (
	// QuestKindPermanent grants a multiplier that never decays.
	QuestKindPermanent QuestKind = 0
	// QuestKindSeasonal grants a multiplier subject to decay at season rollover.
	QuestKindSeasonal QuestKind = 1
)

// QuestStatus is the lifecycle state of a quest. Transitions are monotonic:
// active → expired, never back.
type QuestStatus = int

const (
	QuestStatusActive  QuestStatus = 0
	QuestStatusExpired QuestStatus = 1
)

// Quest is one entry in the append-only quest registry. ID is the quest's
// position in the registry (0-based) and is assigned by the engine, not by
// the database — entries are never removed or reordered.
type Quest struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Kind       int       `gorm:"not null" json:"kind"`
	Multiplier int       `gorm:"not null" json:"multiplier"` // bonus of 1 + multiplier/100
	Status     int       `gorm:"default:0" json:"status"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
