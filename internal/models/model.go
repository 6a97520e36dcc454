package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles carried by the auth context
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User represents a participant in the auction
type User struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// Actor is the resolved acting user of a request
type Actor struct {
	UserID   string
	Role     string
	IsActive bool
}

// Listing represents one car auction
type Listing struct {
	ListingID        string              `json:"listing_id"`
	SellerID         string              `json:"seller_id"`
	LotNumber        string              `json:"lot_number"`
	Title            string              `json:"title"`
	StartingPrice    decimal.Decimal     `json:"starting_price"`
	ReservePrice     decimal.NullDecimal `json:"reserve_price"`
	CurrentBid       decimal.NullDecimal `json:"current_bid"`
	Status           ListingStatus       `json:"status"`
	AuctionDuration  time.Duration       `json:"auction_duration"`
	AuctionStartTime *time.Time          `json:"auction_start_time,omitempty"`
	AuctionEndTime   *time.Time          `json:"auction_end_time,omitempty"`
	EndedAt          *time.Time          `json:"ended_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// Expired reports whether the auction window has closed at now
func (l Listing) Expired(now time.Time) bool {
	return l.AuctionEndTime != nil && !l.AuctionEndTime.After(now)
}

// ReserveMet reports whether the current price satisfies the reserve, if any
func (l Listing) ReserveMet() bool {
	if !l.ReservePrice.Valid {
		return true
	}
	return l.CurrentBid.Valid && l.CurrentBid.Decimal.GreaterThanOrEqual(l.ReservePrice.Decimal)
}

// MinimumBid is the amount a new bid has to exceed
func (l Listing) MinimumBid() decimal.Decimal {
	if l.CurrentBid.Valid && l.CurrentBid.Decimal.GreaterThan(l.StartingPrice) {
		return l.CurrentBid.Decimal
	}
	return l.StartingPrice
}

// Bid represents a user's bid on a listing
type Bid struct {
	BidID     string          `json:"bid_id"`
	ListingID string          `json:"listing_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notification is a durable message addressed to one user
type Notification struct {
	NotificationID string           `json:"notification_id"`
	UserID         string           `json:"user_id"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	ListingID      string           `json:"listing_id,omitempty"`
	IsRead         bool             `json:"is_read"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NotificationType classifies a notification
type NotificationType string

const (
	NotificationOutbid      NotificationType = "outbid"
	NotificationAuctionWon  NotificationType = "auction_won"
	NotificationAuctionLost NotificationType = "auction_lost"
	NotificationCarFound    NotificationType = "car_found"
	NotificationSystem      NotificationType = "system"
)

// Winner is the resolved winner of a finalized listing
type Winner struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ListingSnapshot is the denormalized read projection served by the feed
type ListingSnapshot struct {
	Listing
	BidCount int     `json:"bid_count"`
	Winner   *Winner `json:"winner,omitempty"`
}
