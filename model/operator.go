package model

import "time"

// Operator is an administrative login. Identity is the same string the
// engine's role checks compare against (the governor or quest-master
// identity), so a JWT issued to an operator carries exactly the identity
// the engine guards expect.
type Operator struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Identity     string     `gorm:"uniqueIndex;size:64;not null" json:"identity"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Status       int        `gorm:"default:1" json:"status"` // 0=disabled 1=active
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}
