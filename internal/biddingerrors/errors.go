package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNoBids               = errors.New("no bids found for listing")
	ErrUserNoBids           = errors.New("user has not placed any bids")
	// ErrStaleWrite means a conditional update matched no row because the stored state moved on.
	ErrStaleWrite = errors.New("stale write")
)

// business logic errors
var (
	ErrInvalidBid           = errors.New("invalid bid")
	ErrInvalidListing       = errors.New("invalid listing")
	ErrAuctionNotActive     = errors.New("auction is not active")
	ErrAuctionExpired       = errors.New("auction has expired")
	ErrAccountNotActivated  = errors.New("account is not activated")
	ErrSelfBid              = errors.New("seller cannot bid on own listing")
	ErrBidTooLow            = errors.New("bid amount too low")
	ErrAlreadyHighestBidder = errors.New("bidder already holds the highest bid")
	ErrInvalidTransition    = errors.New("invalid listing status transition")
	ErrForbidden            = errors.New("forbidden")
)

// lifecycle errors
var (
	ErrSweepInProgress = errors.New("sweep already in progress")
)
