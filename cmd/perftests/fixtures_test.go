package perftests

import (
	"context"
	"fmt"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	repository "auction-engine/internal/repository"

	"github.com/shopspring/decimal"
)

// discardNotifier accepts notifications without storing or delivering them
type discardNotifier struct{}

func (discardNotifier) Notify(_ context.Context, n models.Notification) (models.Notification, error) {
	return n, nil
}

type noopCache struct{}

func (noopCache) Invalidate() {}

// newService wires a bidding service over a memory repo. A real hub without
// connections is used so broadcast cost is part of every measurement.
func newService() (*repository.MemoryRepo, *bidding.BiddingService) {
	repo := repository.NewMemoryRepo()
	hub := realtime.NewHub(time.Minute)
	return repo, bidding.NewBiddingService(repo, discardNotifier{}, hub, noopCache{}, time.Hour)
}

func addListing(repo *repository.MemoryRepo, id string, starting int64) {
	now := time.Now().UTC()
	end := now.Add(24 * time.Hour)
	repo.AddListing(models.Listing{
		ListingID:        id,
		SellerID:         "bench_seller",
		LotNumber:        id,
		Title:            fmt.Sprintf("title_%s", id),
		StartingPrice:    decimal.NewFromInt(starting),
		CurrentBid:       decimal.NewNullDecimal(decimal.NewFromInt(starting)),
		Status:           models.StatusActive,
		AuctionStartTime: &now,
		AuctionEndTime:   &end,
		CreatedAt:        now,
	})
}

func bidder(id string) models.Actor {
	return models.Actor{UserID: id, Role: models.RoleBuyer, IsActive: true}
}
