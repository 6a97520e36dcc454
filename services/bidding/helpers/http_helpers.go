package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

const actorKey = "auction.actor"

// Reason codes returned with rejected requests
const (
	ReasonInvalidPayload       = "invalid_payload"
	ReasonListingNotFound      = "listing_not_found"
	ReasonAuctionNotActive     = "auction_not_active"
	ReasonAuctionExpired       = "auction_expired"
	ReasonAccountNotActivated  = "account_not_activated"
	ReasonSelfBidRejected      = "self_bid_rejected"
	ReasonBidTooLow            = "bid_too_low"
	ReasonAlreadyHighestBidder = "already_highest_bidder"
	ReasonInvalidBid           = "invalid_bid"
	ReasonInvalidListing       = "invalid_listing"
	ReasonInvalidTransition    = "invalid_transition"
	ReasonNotificationNotFound = "notification_not_found"
	ReasonUserNotFound         = "user_not_found"
	ReasonNoBids               = "no_bids"
	ReasonSweepInProgress      = "sweep_in_progress"
	ReasonUnauthorized         = "unauthorized"
	ReasonForbidden            = "forbidden"
	ReasonInternal             = "internal_error"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONRejection(c, http.StatusBadRequest, wrappedErr, "invalid request payload", ReasonInvalidPayload)
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code, message and reason code
func MapErrorToHTTP(err error) (int, string, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrListingNotFound):
		return http.StatusNotFound, "listing not found", ReasonListingNotFound
	case errors.Is(err, biddingerrors.ErrAuctionExpired):
		return http.StatusConflict, "auction has expired", ReasonAuctionExpired
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not active", ReasonAuctionNotActive
	case errors.Is(err, biddingerrors.ErrAccountNotActivated):
		return http.StatusForbidden, "account is not activated", ReasonAccountNotActivated
	case errors.Is(err, biddingerrors.ErrSelfBid):
		return http.StatusForbidden, "sellers cannot bid on their own listing", ReasonSelfBidRejected
	case errors.Is(err, biddingerrors.ErrAlreadyHighestBidder):
		return http.StatusConflict, "you already hold the highest bid", ReasonAlreadyHighestBidder
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low", ReasonBidTooLow
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details", ReasonInvalidBid
	case errors.Is(err, biddingerrors.ErrInvalidListing):
		return http.StatusBadRequest, "invalid listing details", ReasonInvalidListing
	case errors.Is(err, biddingerrors.ErrInvalidTransition):
		return http.StatusConflict, "listing cannot move to that status", ReasonInvalidTransition
	case errors.Is(err, biddingerrors.ErrNotificationNotFound):
		return http.StatusNotFound, "notification not found", ReasonNotificationNotFound
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found", ReasonUserNotFound
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusNotFound, "no bids found for listing", ReasonNoBids
	case errors.Is(err, biddingerrors.ErrSweepInProgress):
		return http.StatusConflict, "a sweep is already running", ReasonSweepInProgress
	case errors.Is(err, biddingerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", ReasonForbidden
	default:
		return http.StatusInternalServerError, "internal server error", ReasonInternal
	}
}

// RespondError maps err, writes the rejection and logs it at a level matching its status
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message, reason := MapErrorToHTTP(err)
	utils.JSONRejection(c, status, fmt.Errorf("%s: %w", message, err), message, reason)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["reason"] = reason
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
		return
	}
	utils.Warn(handlerName+": request rejected", fields)
}

// SetActor stores the authenticated actor on the request context
func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(actorKey, actor)
}

// ActorFromContext returns the authenticated actor, if any
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
