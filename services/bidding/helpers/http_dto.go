package helpers

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/models"
	"time"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	ListingID string  `json:"listing_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

type CreateListingRequest struct {
	Title         string   `json:"title" binding:"required,max=200"`
	StartingPrice float64  `json:"starting_price" binding:"required,gt=0"`
	ReservePrice  *float64 `json:"reserve_price" binding:"omitempty,gt=0"`
	DurationHours int      `json:"duration_hours" binding:"omitempty,gte=1,lte=720"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type PlaceBidResponse struct {
	Bid        BidResponse `json:"bid"`
	CurrentBid string      `json:"current_bid"`
	BidCount   int         `json:"bid_count"`
}

type FeedResponse struct {
	Generation uint64                   `json:"generation"`
	BuiltAt    *time.Time               `json:"built_at,omitempty"`
	Count      int                      `json:"count"`
	Listings   []models.ListingSnapshot `json:"listings"`
}

// Money converts a validated JSON amount to cents precision
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// ToBidResponse converts a bid to its wire form
func ToBidResponse(b models.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		ListingID: b.ListingID,
		UserID:    b.UserID,
		Amount:    b.Amount.String(),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToPlaceBidResponse converts an accepted bid to its wire form
func ToPlaceBidResponse(r bidding.PlaceBidResult) PlaceBidResponse {
	return PlaceBidResponse{
		Bid:        ToBidResponse(r.Bid),
		CurrentBid: r.CurrentBid.String(),
		BidCount:   r.BidCount,
	}
}

// ToNewListing converts a create request into the service input
func (r CreateListingRequest) ToNewListing() bidding.NewListing {
	in := bidding.NewListing{
		Title:         r.Title,
		StartingPrice: Money(r.StartingPrice),
		Duration:      time.Duration(r.DurationHours) * time.Hour,
	}
	if r.ReservePrice != nil {
		in.ReservePrice = decimal.NewNullDecimal(Money(*r.ReservePrice))
	}
	return in
}
