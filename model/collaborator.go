package model

import "time"

// Collaborator is a registered staking-token endpoint that receives an
// account's updated total multiplier after every successful completion
// batch. Collaborators are notified in insertion (ID) order.
type Collaborator struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Endpoint  string    `gorm:"size:255;not null" json:"endpoint"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
