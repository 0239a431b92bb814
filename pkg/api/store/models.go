package store

import (
	"time"
)

// Transaction action and resource constants.
const (
	ActionAdd = "add"

	ResourceCoins = "coins"
	ResourceExp   = "exp"
	ResourceScore = "score"
)

// User holds one account and its three balances. Balances are only
// mutated through CreditCoins; the password hash never leaves the store
// layer in serialized form.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"uniqueIndex;not null" json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Coins        int64     `gorm:"not null;default:0" json:"coins"`
	Exp          int64     `gorm:"not null;default:0" json:"exp"`
	Score        int64     `gorm:"not null;default:0" json:"score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transaction records one applied balance change. Rows are append-only:
// they are written in the same database transaction as the balance
// update and never modified afterwards. AdminID is nil for
// system-originated changes.
type Transaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	AdminID   *uint     `json:"admin_id"`
	Action    string    `gorm:"not null" json:"action"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Resource  string    `gorm:"not null" json:"resource"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}
