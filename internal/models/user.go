package models

import (
	"time"
)

// User is a wallet-authenticated account
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	WalletAddress string    `gorm:"uniqueIndex;not null" json:"wallet_address"`
	LastSignedAt  int64     `gorm:"not null;default:0" json:"-"` // unix seconds of the newest accepted login message
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// WalletLoginRequest carries a signed login message
type WalletLoginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Message       string `json:"message" binding:"required"`
}

// AuthResponse is returned after a successful login
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
