package handler

//go:generate mockgen -destination=mock_handler.go -package=handler auction-engine/services/bidding/handler BiddingServiceInterface,ListingFeed,NotificationServiceInterface,SweepRunner

import (
	"context"
	"errors"
	"net/http"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/cache"
	"auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, listingID string, bidder models.Actor, amount decimal.Decimal) (bidding.PlaceBidResult, error)
	CreateListing(ctx context.Context, seller models.Actor, in bidding.NewListing) (models.Listing, error)
	ApproveListing(ctx context.Context, listingID string) (models.Listing, error)
	RejectListing(ctx context.Context, listingID string) (models.Listing, error)
	GetListing(ctx context.Context, listingID string) (models.ListingSnapshot, error)
	GetBidsForListing(ctx context.Context, listingID string) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, listingID string) (models.Bid, error)
	GetListingsByBidder(ctx context.Context, userID string) ([]models.Listing, error)
}

// ListingFeed is the cached read path for listings
type ListingFeed interface {
	Snapshot() *cache.Snapshot
	Get(listingID string) (models.ListingSnapshot, bool)
}

type BiddingHandler struct {
	service BiddingServiceInterface
	feed    ListingFeed
}

func NewBiddingHandler(service BiddingServiceInterface, feed ListingFeed) *BiddingHandler {
	return &BiddingHandler{service: service, feed: feed}
}

// requireActor returns the authenticated actor or answers 401
func requireActor(c *gin.Context, handlerName string) (models.Actor, bool) {
	actor, ok := helpers.ActorFromContext(c)
	if !ok {
		err := errors.New("missing authenticated user")
		utils.JSONRejection(c, http.StatusUnauthorized, err, "authentication required", helpers.ReasonUnauthorized)
		utils.Warn(handlerName+": unauthenticated request", map[string]any{"path": c.Request.URL.Path})
		return models.Actor{}, false
	}
	return actor, true
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	actor, ok := requireActor(c, "RecordBidHandler")
	if !ok {
		return
	}
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	amount := helpers.Money(req.Amount)
	res, err := h.service.PlaceBid(c.Request.Context(), req.ListingID, actor, amount)
	if err != nil {
		helpers.RespondError(c, "RecordBidHandler", err, map[string]any{
			"listing_id": req.ListingID,
			"user_id":    actor.UserID,
			"amount":     amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToPlaceBidResponse(res), "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     res.Bid.BidID,
		"listing_id": res.Bid.ListingID,
		"user_id":    actor.UserID,
		"amount":     res.Bid.Amount.String(),
	})
}

// CreateListingHandler handles POST /listings
func (h *BiddingHandler) CreateListingHandler(c *gin.Context) {
	actor, ok := requireActor(c, "CreateListingHandler")
	if !ok {
		return
	}
	var req helpers.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateListingHandler", err)
		return
	}

	listing, err := h.service.CreateListing(c.Request.Context(), actor, req.ToNewListing())
	if err != nil {
		helpers.RespondError(c, "CreateListingHandler", err, map[string]any{"user_id": actor.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, listing, "listing submitted for approval")
	helpers.LogSuccess("CreateListingHandler", "listing submitted", map[string]any{
		"listing_id": listing.ListingID,
		"lot_number": listing.LotNumber,
		"seller_id":  listing.SellerID,
	})
}

// GetFeedHandler handles GET /listings
func (h *BiddingHandler) GetFeedHandler(c *gin.Context) {
	snap := h.feed.Snapshot()
	resp := helpers.FeedResponse{
		Generation: snap.Generation,
		Count:      len(snap.Listings),
		Listings:   snap.Listings,
	}
	if !snap.BuiltAt.IsZero() {
		builtAt := snap.BuiltAt
		resp.BuiltAt = &builtAt
	}
	utils.JSONResponse(c, http.StatusOK, resp, "listings retrieved successfully")
}

// GetListingHandler handles GET /listings/:listing_id. Listings outside the feed
// (pending, rejected, long ended) are read from the store.
func (h *BiddingHandler) GetListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	if entry, ok := h.feed.Get(listingID); ok {
		utils.JSONResponse(c, http.StatusOK, entry, "listing retrieved successfully")
		return
	}

	entry, err := h.service.GetListing(c.Request.Context(), listingID)
	if err != nil {
		helpers.RespondError(c, "GetListingHandler", err, map[string]any{"listing_id": listingID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, entry, "listing retrieved successfully")
}

// GetBidsByListingHandler handles GET /listings/:listing_id/bids
func (h *BiddingHandler) GetBidsByListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	bids, err := h.service.GetBidsForListing(c.Request.Context(), listingID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		helpers.RespondError(c, "GetBidsByListingHandler", err, map[string]any{"listing_id": listingID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.ToBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByListingHandler", "bids retrieved successfully", map[string]any{
		"listing_id": listingID,
		"count":      len(resp),
	})
}

// GetWinningBidHandler handles GET /listings/:listing_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONRejection(c, http.StatusNotFound, err, "no winning bid found", helpers.ReasonNoBids)
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"listing_id": listingID})
			return
		}
		helpers.RespondError(c, "GetWinningBidHandler", err, map[string]any{"listing_id": listingID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponse(bid), "winning bid retrieved successfully")
}

// GetMyListingsHandler handles GET /users/me/listings
func (h *BiddingHandler) GetMyListingsHandler(c *gin.Context) {
	actor, ok := requireActor(c, "GetMyListingsHandler")
	if !ok {
		return
	}
	listings, err := h.service.GetListingsByBidder(c.Request.Context(), actor.UserID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		helpers.RespondError(c, "GetMyListingsHandler", err, map[string]any{"user_id": actor.UserID})
		return
	}

	if listings == nil {
		listings = []models.Listing{}
	}

	utils.JSONResponse(c, http.StatusOK, listings, "listings retrieved successfully")
	helpers.LogSuccess("GetMyListingsHandler", "listings retrieved successfully", map[string]any{
		"user_id":        actor.UserID,
		"listings_count": len(listings),
	})
}
