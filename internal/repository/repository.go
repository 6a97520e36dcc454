package repository

//go:generate mockgen -destination=mock_repository.go -package=repository auction-engine/internal/repository AuctionDB,ListingTx

import (
	"auction-engine/internal/models"
	"context"
	"time"
)

// ListingTx is a write scope over one listing and its bid ledger. Implementations hold the
// listing exclusively for the lifetime of the scope and apply staged writes only when the
// callback returns nil.
type ListingTx interface {
	// Listing returns the listing as currently staged
	Listing() models.Listing
	// Bids returns the listing's ledger, oldest first
	Bids() ([]models.Bid, error)
	// AppendBid records the bid and raises current_bid, only if the amount still beats the stored price
	AppendBid(bid models.Bid) error
	// Activate opens the auction window
	Activate(start, end time.Time) error
	// Restart clears the ledger, resets the price to the starting price and opens a new window
	Restart(lotNumber string, start, end time.Time) error
	// SetStatus moves the listing to status; endedAt is written when non-nil
	SetStatus(status models.ListingStatus, endedAt *time.Time) error
}

// ListingFilter narrows a listing range read. Zero fields do not filter.
type ListingFilter struct {
	Statuses   []models.ListingStatus
	EndsBy     *time.Time // auction_end_time <= EndsBy
	EndedSince *time.Time // ended_at >= EndedSince
}

// ListingStore is the authoritative listing state
type ListingStore interface {
	CreateListing(ctx context.Context, listing models.Listing) error
	GetListing(ctx context.Context, listingID string) (models.Listing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error)
	WithListing(ctx context.Context, listingID string, fn func(tx ListingTx) error) error
}

// BidLedger is the append-only bid record
type BidLedger interface {
	GetBidsByListing(ctx context.Context, listingID string) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, listingID string) (models.Bid, error)
	CountBids(ctx context.Context, listingIDs []string) (map[string]int, error)
	GetListingsByBidder(ctx context.Context, userID string) ([]models.Listing, error)
}

// NotificationStore persists notifications
type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	GetNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

// UserDirectory resolves users for delivery
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// AuctionDB defines the storage interface for the auction engine
type AuctionDB interface {
	ListingStore
	BidLedger
	NotificationStore
	UserDirectory
}

// matches reports whether l passes f
func (f ListingFilter) matches(l models.Listing) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if l.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.EndsBy != nil && (l.AuctionEndTime == nil || l.AuctionEndTime.After(*f.EndsBy)) {
		return false
	}
	if f.EndedSince != nil && (l.EndedAt == nil || l.EndedAt.Before(*f.EndedSince)) {
		return false
	}
	return true
}

// HighestBid returns the winning bid: the largest amount, earliest on ties
func HighestBid(bids []models.Bid) (models.Bid, bool) {
	if len(bids) == 0 {
		return models.Bid{}, false
	}
	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThan(winning.Amount) || (b.Amount.Equal(winning.Amount) && b.CreatedAt.Before(winning.CreatedAt)) {
			winning = b
		}
	}
	return winning, true
}
