package models

import (
	"time"
)

type Account struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginTicket is a single use credential redeemed by C_LOGIN_ARBITER.
type LoginTicket struct {
	AccountID int64     `json:"account_id"`
	Token     []byte    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Location struct {
	ZoneID   int32   `json:"zone_id"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Z        float32 `json:"z"`
	Rotation int16   `json:"rotation"`
}

type User struct {
	ID        int32     `json:"id"`
	AccountID int64     `json:"account_id"`
	Name      string    `json:"name"`
	Race      int32     `json:"race"`
	Gender    int32     `json:"gender"`
	Class     int32     `json:"class"`
	Level     int32     `json:"level"`
	Location  Location  `json:"location"`
	Alive     bool      `json:"alive"`
	CreatedAt time.Time `json:"created_at"`
}

type InventoryItem struct {
	Slot   int32 `json:"slot"`
	ItemID int32 `json:"item_id"`
	Amount int32 `json:"amount"`
}

// PersistedBundle is the per user data the client receives before spawning.
type PersistedBundle struct {
	Inventory []InventoryItem `json:"inventory"`
	Quests    []int32         `json:"quests"`
	Friends   []string        `json:"friends"`
}
