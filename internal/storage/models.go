package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType classifies calendar entries.
type EventType string

const (
	EventEarnings   EventType = "earnings"
	EventDisclosure EventType = "disclosure"
	EventHoliday    EventType = "holiday"
	EventDividend   EventType = "dividend"
	EventIPO        EventType = "ipo"
	EventEconomic   EventType = "economic"
	EventCustom     EventType = "custom"
)

// User is a registered account. PasswordHash is a bcrypt digest and never
// leaves the storage and auth layers.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an opaque bearer token bound to a user.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Stock is the latest observed state of a listed instrument.
type Stock struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Market     string          `json:"market"`
	Price      decimal.Decimal `json:"price"`
	Change     decimal.Decimal `json:"change"`
	ChangeRate decimal.Decimal `json:"change_rate"`
	Volume     int64           `json:"volume"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CalendarEvent is one dated market event. StockCode is empty for
// market-wide events such as holidays.
type CalendarEvent struct {
	ID          int64     `json:"id"`
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StockCode   string    `json:"stock_code,omitempty"`
	StockName   string    `json:"stock_name,omitempty"`
	EventDate   time.Time `json:"event_date"`
	Source      string    `json:"source,omitempty"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bookmark pins a calendar event for a user.
type Bookmark struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	EventID   int64          `json:"event_id"`
	Memo      string         `json:"memo,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Event     *CalendarEvent `json:"event,omitempty"`
}

// WatchlistItem tracks one stock for a user, optionally with a target price
// that triggers a notification when crossed.
type WatchlistItem struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	StockCode   string           `json:"stock_code"`
	StockName   string           `json:"stock_name,omitempty"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
