package repository

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

const lockStripes = 64

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// Writes to a listing are serialized by a lock stripe chosen from the listing id;
// mu only guards the maps for the short time they are read or written.
type MemoryRepo struct {
	mu            sync.RWMutex
	listings      map[string]models.Listing        // key: listingID
	bids          map[string][]models.Bid          // key: listingID -> ledger, oldest first
	notifications map[string][]models.Notification // key: userID
	users         map[string]models.User           // key: userID

	stripes [lockStripes]sync.Mutex
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		listings:      make(map[string]models.Listing),
		bids:          make(map[string][]models.Bid),
		notifications: make(map[string][]models.Notification),
		users:         make(map[string]models.User),
	}
}

func (r *MemoryRepo) stripe(listingID string) *sync.Mutex {
	return &r.stripes[xxhash.Sum64String(listingID)%lockStripes]
}

// CreateListing stores a new listing
func (r *MemoryRepo) CreateListing(_ context.Context, listing models.Listing) error {
	if listing.ListingID == "" {
		return fmt.Errorf("create listing: %w - empty listing id", biddingerrors.ErrInvalidListing)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.listings[listing.ListingID]; exists {
		return fmt.Errorf("create listing %s: %w - duplicate id", listing.ListingID, biddingerrors.ErrInvalidListing)
	}
	r.listings[listing.ListingID] = listing
	return nil
}

// GetListing returns one listing
func (r *MemoryRepo) GetListing(_ context.Context, listingID string) (models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[listingID]
	if !ok {
		return models.Listing{}, fmt.Errorf("get listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	return l, nil
}

// ListListings returns listings matching filter ordered by creation time
func (r *MemoryRepo) ListListings(_ context.Context, filter ListingFilter) ([]models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Listing, 0)
	for _, l := range r.listings {
		if filter.matches(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ListingID < out[j].ListingID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// WithListing runs fn with exclusive access to one listing and commits its staged writes on success
func (r *MemoryRepo) WithListing(ctx context.Context, listingID string, fn func(tx ListingTx) error) error {
	lock := r.stripe(listingID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	listing, ok := r.listings[listingID]
	bids := append([]models.Bid(nil), r.bids[listingID]...)
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("with listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}

	tx := &memoryTx{listing: listing, bids: bids}
	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listingID] = tx.listing
	if tx.reset || len(tx.appended) > 0 {
		r.bids[listingID] = tx.bids
	}
	return nil
}

// GetBidsByListing returns all bids for a listing
func (r *MemoryRepo) GetBidsByListing(_ context.Context, listingID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[listingID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, biddingerrors.ErrNoBids)
	}
	return append([]models.Bid(nil), bids...), nil
}

// GetWinningBid returns the highest bid for a listing
func (r *MemoryRepo) GetWinningBid(_ context.Context, listingID string) (models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	winning, ok := HighestBid(r.bids[listingID])
	if !ok {
		return models.Bid{}, fmt.Errorf("get winning bid for listing %s: %w", listingID, biddingerrors.ErrNoBids)
	}
	return winning, nil
}

// CountBids returns the ledger size per listing id; unknown ids count zero
func (r *MemoryRepo) CountBids(_ context.Context, listingIDs []string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int, len(listingIDs))
	for _, id := range listingIDs {
		counts[id] = len(r.bids[id])
	}
	return counts, nil
}

// GetListingsByBidder returns all listings a user has bid on
func (r *MemoryRepo) GetListingsByBidder(_ context.Context, userID string) ([]models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var listings []models.Listing
	for listingID, bids := range r.bids {
		for _, b := range bids {
			if b.UserID == userID {
				if l, ok := r.listings[listingID]; ok {
					listings = append(listings, l)
				}
				break
			}
		}
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("get listings for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ListingID < listings[j].ListingID })
	return listings, nil
}

// CreateNotification persists a notification
func (r *MemoryRepo) CreateNotification(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.UserID] = append(r.notifications[n.UserID], n)
	return nil
}

// GetNotificationsByUser returns a user's notifications, newest first
func (r *MemoryRepo) GetNotificationsByUser(_ context.Context, userID string) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.notifications[userID]
	out := make([]models.Notification, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// MarkNotificationRead flags one of the user's notifications as read
func (r *MemoryRepo) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notifications[userID] {
		if n.NotificationID == notificationID {
			r.notifications[userID][i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("mark notification %s read: %w", notificationID, biddingerrors.ErrNotificationNotFound)
}

// GetUser returns one user
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return u, nil
}

// AddUser adds or replaces a user. User records are owned by the profile service; this
// method seeds them for local runs and tests.
func (r *MemoryRepo) AddUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = u
}

// AddListing adds a listing as-is, bypassing creation rules. Intended for tests and seeding.
func (r *MemoryRepo) AddListing(l models.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ListingID] = l
}

// memoryTx stages writes against copies of one listing and its ledger
type memoryTx struct {
	listing  models.Listing
	bids     []models.Bid
	appended []models.Bid
	reset    bool
}

func (tx *memoryTx) Listing() models.Listing { return tx.listing }

func (tx *memoryTx) Bids() ([]models.Bid, error) {
	return append([]models.Bid(nil), tx.bids...), nil
}

func (tx *memoryTx) AppendBid(bid models.Bid) error {
	if tx.listing.Status != models.StatusActive || !bid.Amount.GreaterThan(tx.listing.MinimumBid()) {
		return fmt.Errorf("append bid to listing %s: %w", tx.listing.ListingID, biddingerrors.ErrStaleWrite)
	}
	tx.bids = append(tx.bids, bid)
	tx.appended = append(tx.appended, bid)
	tx.listing.CurrentBid = decimal.NewNullDecimal(bid.Amount)
	return nil
}

func (tx *memoryTx) Activate(start, end time.Time) error {
	if !tx.listing.Status.CanTransitionTo(models.StatusActive) {
		return fmt.Errorf("activate listing %s from %s: %w", tx.listing.ListingID, tx.listing.Status, biddingerrors.ErrInvalidTransition)
	}
	tx.listing.Status = models.StatusActive
	tx.listing.AuctionStartTime = &start
	tx.listing.AuctionEndTime = &end
	return nil
}

func (tx *memoryTx) Restart(lotNumber string, start, end time.Time) error {
	if tx.listing.Status != models.StatusActive {
		return fmt.Errorf("restart listing %s from %s: %w", tx.listing.ListingID, tx.listing.Status, biddingerrors.ErrInvalidTransition)
	}
	tx.bids = nil
	tx.appended = nil
	tx.reset = true
	tx.listing.CurrentBid = decimal.NewNullDecimal(tx.listing.StartingPrice)
	tx.listing.LotNumber = lotNumber
	tx.listing.AuctionStartTime = &start
	tx.listing.AuctionEndTime = &end
	return nil
}

func (tx *memoryTx) SetStatus(status models.ListingStatus, endedAt *time.Time) error {
	if !tx.listing.Status.CanTransitionTo(status) {
		return fmt.Errorf("set listing %s status %s -> %s: %w", tx.listing.ListingID, tx.listing.Status, status, biddingerrors.ErrInvalidTransition)
	}
	tx.listing.Status = status
	if endedAt != nil {
		t := *endedAt
		tx.listing.EndedAt = &t
	}
	return nil
}
