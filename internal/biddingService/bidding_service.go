package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Notifier persists a notification and schedules its delivery
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// moneyPlaces matches the DECIMAL(12,2) money columns; finer amounts would be
// compared at one precision and stored at another.
const moneyPlaces = 2

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyPlaces))
}

// Broadcaster pushes events to listing rooms and the global feed
type Broadcaster interface {
	BroadcastToListing(listingID string, ev realtime.Event) int
	BroadcastGlobal(ev realtime.Event) int
}

// Invalidator is told when listing state changed under it
type Invalidator interface {
	Invalidate()
}

// PlaceBidResult is an accepted bid and the listing price it produced
type PlaceBidResult struct {
	Bid        models.Bid      `json:"bid"`
	CurrentBid decimal.Decimal `json:"current_bid"`
	BidCount   int             `json:"bid_count"`
}

// NewListing is a seller's submission
type NewListing struct {
	Title         string
	StartingPrice decimal.Decimal
	ReservePrice  decimal.NullDecimal
	Duration      time.Duration
}

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo            repository.AuctionDB
	notifier        Notifier
	hub             Broadcaster
	cache           Invalidator
	defaultDuration time.Duration
	now             func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, notifier Notifier, hub Broadcaster, cache Invalidator, defaultDuration time.Duration) *BiddingService {
	return &BiddingService{
		repo:            repo,
		notifier:        notifier,
		hub:             hub,
		cache:           cache,
		defaultDuration: defaultDuration,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// PlaceBid validates and commits a bid. The listing is held exclusively from the first
// check to the commit, so two bids validated against the same price cannot both land.
func (s *BiddingService) PlaceBid(ctx context.Context, listingID string, bidder models.Actor, amount decimal.Decimal) (PlaceBidResult, error) {
	if listingID == "" || bidder.UserID == "" {
		return PlaceBidResult{}, fmt.Errorf("service: %w - missing listingID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return PlaceBidResult{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if !isCents(amount) {
		return PlaceBidResult{}, fmt.Errorf("service: %w - bid amount has more than %d decimal places", biddingerrors.ErrInvalidBid, moneyPlaces)
	}

	var (
		bid     models.Bid
		prior   []models.Bid
		listing models.Listing
	)
	err := s.repo.WithListing(ctx, listingID, func(tx repository.ListingTx) error {
		now := s.now()
		l := tx.Listing()
		if l.Expired(now) {
			return fmt.Errorf("service: %w - ended at %s", biddingerrors.ErrAuctionExpired, l.AuctionEndTime.Format(time.RFC3339))
		}
		if l.Status != models.StatusActive {
			return fmt.Errorf("service: %w - status is %s", biddingerrors.ErrAuctionNotActive, l.Status)
		}
		if !bidder.IsActive {
			return fmt.Errorf("service: %w - user %s", biddingerrors.ErrAccountNotActivated, bidder.UserID)
		}
		if bidder.UserID == l.SellerID {
			return fmt.Errorf("service: %w - listing %s", biddingerrors.ErrSelfBid, listingID)
		}

		var err error
		if prior, err = tx.Bids(); err != nil {
			return fmt.Errorf("service: failed to load bids for listing %s: %w", listingID, err)
		}
		minimum := l.MinimumBid()
		if leader, ok := repository.HighestBid(prior); ok && leader.UserID == bidder.UserID && !amount.GreaterThan(leader.Amount) {
			return fmt.Errorf("service: %w - leading at %s", biddingerrors.ErrAlreadyHighestBidder, leader.Amount.String())
		}
		if !amount.GreaterThan(minimum) {
			return fmt.Errorf("service: %w - must exceed %s", biddingerrors.ErrBidTooLow, minimum.String())
		}

		bid = models.Bid{
			BidID:     utils.GenerateBidID(),
			ListingID: listingID,
			UserID:    bidder.UserID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := tx.AppendBid(bid); err != nil {
			if errors.Is(err, biddingerrors.ErrStaleWrite) {
				return fmt.Errorf("service: %w - price moved before commit", biddingerrors.ErrBidTooLow)
			}
			return fmt.Errorf("service: failed to record bid for listing %s by user %s: %w", listingID, bidder.UserID, err)
		}
		listing = tx.Listing()
		return nil
	})
	if err != nil {
		return PlaceBidResult{}, err
	}

	result := PlaceBidResult{Bid: bid, CurrentBid: amount, BidCount: len(prior) + 1}
	s.notifyOutbid(ctx, listing, bid, prior)

	ev := realtime.NewEvent(realtime.EventBidUpdate, listingID, realtime.BidUpdatePayload{
		ListingID:  listingID,
		BidID:      bid.BidID,
		BidderID:   bid.UserID,
		Amount:     bid.Amount.String(),
		CurrentBid: result.CurrentBid.String(),
		BidCount:   result.BidCount,
		PlacedAt:   bid.CreatedAt,
	})
	s.hub.BroadcastToListing(listingID, ev)
	s.hub.BroadcastGlobal(ev)

	utils.Info("bid accepted", map[string]any{
		"listing_id": listingID,
		"bid_id":     bid.BidID,
		"user_id":    bid.UserID,
		"amount":     bid.Amount.String(),
	})
	return result, nil
}

// notifyOutbid tells every distinct earlier bidder, other than the new one, that they were outbid
func (s *BiddingService) notifyOutbid(ctx context.Context, l models.Listing, bid models.Bid, prior []models.Bid) {
	seen := map[string]struct{}{bid.UserID: {}}
	for _, p := range prior {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		_, err := s.notifier.Notify(ctx, models.Notification{
			UserID:    p.UserID,
			Type:      models.NotificationOutbid,
			Title:     "You have been outbid",
			Message:   fmt.Sprintf("A bid of %s was placed on lot %s", bid.Amount.StringFixed(2), l.LotNumber),
			ListingID: l.ListingID,
		})
		if err != nil {
			utils.Error("outbid notification failed", map[string]any{
				"listing_id": l.ListingID,
				"user_id":    p.UserID,
				"error":      err.Error(),
			})
		}
	}
}

// CreateListing records a seller's submission awaiting approval
func (s *BiddingService) CreateListing(ctx context.Context, seller models.Actor, in NewListing) (models.Listing, error) {
	if seller.UserID == "" {
		return models.Listing{}, fmt.Errorf("service: %w - missing sellerID", biddingerrors.ErrInvalidListing)
	}
	if !seller.IsActive {
		return models.Listing{}, fmt.Errorf("service: %w - user %s", biddingerrors.ErrAccountNotActivated, seller.UserID)
	}
	if !in.StartingPrice.IsPositive() {
		return models.Listing{}, fmt.Errorf("service: %w - non-positive starting price", biddingerrors.ErrInvalidListing)
	}
	if !isCents(in.StartingPrice) || (in.ReservePrice.Valid && !isCents(in.ReservePrice.Decimal)) {
		return models.Listing{}, fmt.Errorf("service: %w - price has more than %d decimal places", biddingerrors.ErrInvalidListing, moneyPlaces)
	}
	if in.ReservePrice.Valid && in.ReservePrice.Decimal.LessThan(in.StartingPrice) {
		return models.Listing{}, fmt.Errorf("service: %w - reserve below starting price", biddingerrors.ErrInvalidListing)
	}
	if in.Duration < 0 {
		return models.Listing{}, fmt.Errorf("service: %w - negative duration", biddingerrors.ErrInvalidListing)
	}
	duration := in.Duration
	if duration == 0 {
		duration = s.defaultDuration
	}

	l := models.Listing{
		ListingID:       utils.GenerateID(),
		SellerID:        seller.UserID,
		LotNumber:       utils.GenerateLotNumber(),
		Title:           in.Title,
		StartingPrice:   in.StartingPrice,
		ReservePrice:    in.ReservePrice,
		Status:          models.StatusPendingApproval,
		AuctionDuration: duration,
		CreatedAt:       s.now(),
	}
	if err := s.repo.CreateListing(ctx, l); err != nil {
		return models.Listing{}, fmt.Errorf("service: failed to create listing: %w", err)
	}
	return l, nil
}

// ApproveListing opens the auction window of a pending listing
func (s *BiddingService) ApproveListing(ctx context.Context, listingID string) (models.Listing, error) {
	var approved models.Listing
	err := s.repo.WithListing(ctx, listingID, func(tx repository.ListingTx) error {
		l := tx.Listing()
		if l.Status != models.StatusPendingApproval {
			return fmt.Errorf("service: %w - listing is %s", biddingerrors.ErrInvalidTransition, l.Status)
		}
		duration := l.AuctionDuration
		if duration <= 0 {
			duration = s.defaultDuration
		}
		now := s.now()
		if err := tx.Activate(now, now.Add(duration)); err != nil {
			return err
		}
		approved = tx.Listing()
		return nil
	})
	if err != nil {
		return models.Listing{}, err
	}
	s.cache.Invalidate()
	utils.Info("listing approved", map[string]any{"listing_id": listingID, "ends_at": approved.AuctionEndTime})
	return approved, nil
}

// RejectListing closes a pending or running listing for good
func (s *BiddingService) RejectListing(ctx context.Context, listingID string) (models.Listing, error) {
	var rejected models.Listing
	err := s.repo.WithListing(ctx, listingID, func(tx repository.ListingTx) error {
		if err := tx.SetStatus(models.StatusRejected, nil); err != nil {
			return err
		}
		rejected = tx.Listing()
		return nil
	})
	if err != nil {
		return models.Listing{}, err
	}
	s.cache.Invalidate()

	ev := realtime.NewEvent(realtime.EventAuctionEnded, listingID, realtime.AuctionEndedPayload{
		ListingID: listingID,
		LotNumber: rejected.LotNumber,
		Status:    string(rejected.Status),
		Reason:    realtime.EndReasonRejected,
	})
	s.hub.BroadcastToListing(listingID, ev)
	s.hub.BroadcastGlobal(ev)
	utils.Info("listing rejected", map[string]any{"listing_id": listingID})
	return rejected, nil
}

// GetListing reads one listing from the store with its bid count
func (s *BiddingService) GetListing(ctx context.Context, listingID string) (models.ListingSnapshot, error) {
	if listingID == "" {
		return models.ListingSnapshot{}, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}
	l, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return models.ListingSnapshot{}, fmt.Errorf("service: failed to get listing %s: %w", listingID, err)
	}
	counts, err := s.repo.CountBids(ctx, []string{listingID})
	if err != nil {
		return models.ListingSnapshot{}, fmt.Errorf("service: failed to count bids for listing %s: %w", listingID, err)
	}
	return models.ListingSnapshot{Listing: l, BidCount: counts[listingID]}, nil
}

// GetBidsForListing returns all bids for a specific listing
func (s *BiddingService) GetBidsForListing(ctx context.Context, listingID string) ([]models.Bid, error) {
	if listingID == "" {
		return nil, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for listing %s: %w", listingID, err)
	}

	return bids, nil
}

// GetWinningBid returns the highest bid for a specific listing
func (s *BiddingService) GetWinningBid(ctx context.Context, listingID string) (models.Bid, error) {
	if listingID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(ctx, listingID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for listing %s: %w", listingID, err)
	}

	return winningBid, nil
}

// GetListingsByBidder returns all listings a user has placed bids on
func (s *BiddingService) GetListingsByBidder(ctx context.Context, userID string) ([]models.Listing, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	listings, err := s.repo.GetListingsByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get listings for user %s: %w", userID, err)
	}

	return listings, nil
}
