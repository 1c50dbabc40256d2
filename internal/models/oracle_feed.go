package models

import "time"

// OracleFeed maps a feed address to an HTTP source and the JSON path of the
// price inside its response.
type OracleFeed struct {
	Feed       string    `gorm:"primaryKey;size:64" json:"feed"`
	Registrant string    `gorm:"size:64;not null" json:"registrant"` // wallet allowed to update the feed
	Name       string    `gorm:"size:255;not null" json:"name"`
	DataURL    string    `gorm:"type:text;not null" json:"data_url"`
	Task       string    `gorm:"size:255" json:"task"` // e.g. $.solana.usd
	CreatedAt  time.Time `json:"created_at"`
}

func (OracleFeed) TableName() string {
	return "oracle_feeds"
}

// RegisterFeedRequest is the body of a feed registration.
type RegisterFeedRequest struct {
	Feed    string `json:"feed" binding:"required"`
	Name    string `json:"name" binding:"required"`
	DataURL string `json:"data_url" binding:"required,url"`
	Task    string `json:"task"`
}
