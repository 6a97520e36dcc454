package cache

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is one immutable generation of the listing feed
type Snapshot struct {
	Generation uint64                   `json:"generation"`
	BuiltAt    time.Time                `json:"built_at"`
	Listings   []models.ListingSnapshot `json:"listings"`

	byID map[string]int
}

var emptySnapshot = &Snapshot{Listings: []models.ListingSnapshot{}, byID: map[string]int{}}

// ListingsCache serves the listing feed from a snapshot that is rebuilt wholesale and swapped in atomically
type ListingsCache struct {
	db          repository.AuctionDB
	endedWindow time.Duration
	current     atomic.Pointer[Snapshot]
	generation  atomic.Uint64
	refreshMu   sync.Mutex
	periodic    *scheduler.Periodic
	now         func() time.Time
}

// NewListingsCache creates a cold cache. Listings that ended within endedWindow stay in the feed.
func NewListingsCache(db repository.AuctionDB, refreshInterval, endedWindow time.Duration) *ListingsCache {
	lc := &ListingsCache{
		db:          db,
		endedWindow: endedWindow,
		now:         time.Now,
	}
	lc.periodic = scheduler.NewPeriodic("listings-cache", refreshInterval, func(ctx context.Context) error {
		_, err := lc.Refresh(ctx)
		return err
	})
	return lc
}

// Snapshot returns the current generation, or an empty one before the first refresh
func (lc *ListingsCache) Snapshot() *Snapshot {
	if s := lc.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Get returns the cached projection of one listing
func (lc *ListingsCache) Get(listingID string) (models.ListingSnapshot, bool) {
	s := lc.Snapshot()
	i, ok := s.byID[listingID]
	if !ok {
		return models.ListingSnapshot{}, false
	}
	return s.Listings[i], true
}

// Invalidate schedules an immediate rebuild
func (lc *ListingsCache) Invalidate() {
	lc.periodic.Trigger()
}

// Run refreshes on the configured interval until ctx is done
func (lc *ListingsCache) Run(ctx context.Context) error {
	return lc.periodic.Run(ctx, true)
}

// Refresh builds a new snapshot and swaps it in. On failure the previous snapshot keeps serving.
func (lc *ListingsCache) Refresh(ctx context.Context) (*Snapshot, error) {
	lc.refreshMu.Lock()
	defer lc.refreshMu.Unlock()

	now := lc.now()
	active, err := lc.db.ListListings(ctx, repository.ListingFilter{
		Statuses: []models.ListingStatus{models.StatusActive},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: list active: %w", err)
	}
	since := now.Add(-lc.endedWindow)
	ended, err := lc.db.ListListings(ctx, repository.ListingFilter{
		Statuses:   []models.ListingStatus{models.StatusEnded, models.StatusArchived},
		EndedSince: &since,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: list recently ended: %w", err)
	}

	sortActive(active)
	sortEnded(ended)

	ids := make([]string, 0, len(active)+len(ended))
	for _, l := range active {
		ids = append(ids, l.ListingID)
	}
	for _, l := range ended {
		ids = append(ids, l.ListingID)
	}
	counts, err := lc.db.CountBids(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("cache: count bids: %w", err)
	}

	snap := &Snapshot{
		BuiltAt:  now,
		Listings: make([]models.ListingSnapshot, 0, len(ids)),
		byID:     make(map[string]int, len(ids)),
	}
	for _, l := range active {
		snap.add(models.ListingSnapshot{Listing: l, BidCount: counts[l.ListingID]})
	}
	for _, l := range ended {
		entry := models.ListingSnapshot{Listing: l, BidCount: counts[l.ListingID]}
		if entry.BidCount > 0 {
			winner, err := lc.resolveWinner(ctx, l.ListingID)
			if err != nil {
				return nil, err
			}
			entry.Winner = winner
		}
		snap.add(entry)
	}

	snap.Generation = lc.generation.Add(1)
	lc.current.Store(snap)
	utils.Debug("cache: snapshot swapped", map[string]any{
		"generation": snap.Generation,
		"listings":   len(snap.Listings),
	})
	return snap, nil
}

func (lc *ListingsCache) resolveWinner(ctx context.Context, listingID string) (*models.Winner, error) {
	bid, err := lc.db.GetWinningBid(ctx, listingID)
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: winner of %s: %w", listingID, err)
	}
	return &models.Winner{UserID: bid.UserID, Amount: bid.Amount}, nil
}

func (s *Snapshot) add(entry models.ListingSnapshot) {
	s.byID[entry.ListingID] = len(s.Listings)
	s.Listings = append(s.Listings, entry)
}

// active listings closing soonest come first
func sortActive(ls []models.Listing) {
	sort.SliceStable(ls, func(i, j int) bool {
		a, b := ls[i].AuctionEndTime, ls[j].AuctionEndTime
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})
}

// most recently ended first
func sortEnded(ls []models.Listing) {
	sort.SliceStable(ls, func(i, j int) bool {
		a, b := ls[i].EndedAt, ls[j].EndedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
}
