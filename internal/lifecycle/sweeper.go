package lifecycle

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Notifier persists and delivers one notification
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
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

// Options tune the sweeper
type Options struct {
	Interval          time.Duration
	DefaultDuration   time.Duration // used when a listing carries no duration of its own
	ArchiveOnFinalize bool
	Lease             Lease // optional cross-instance guard
}

// Result summarizes one sweep pass
type Result struct {
	Examined  int `json:"examined"`
	Restarted int `json:"restarted"`
	Finalized int `json:"finalized"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeRestarted
	outcomeFinalized
)

// Sweeper closes out expired auctions: restarting those without a qualifying bid and
// finalizing the rest.
type Sweeper struct {
	db       repository.AuctionDB
	notifier Notifier
	hub      Broadcaster
	cache    Invalidator
	opts     Options

	running  sync.Mutex
	periodic *scheduler.Periodic
	now      func() time.Time
	newLot   func() string
}

// NewSweeper creates a sweeper; call Run to start its timer
func NewSweeper(db repository.AuctionDB, notifier Notifier, hub Broadcaster, cache Invalidator, opts Options) *Sweeper {
	s := &Sweeper{
		db:       db,
		notifier: notifier,
		hub:      hub,
		cache:    cache,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newLot:   utils.GenerateLotNumber,
	}
	s.periodic = scheduler.NewPeriodic("lifecycle-sweep", opts.Interval, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		if errors.Is(err, biddingerrors.ErrSweepInProgress) {
			return nil
		}
		return err
	})
	return s
}

// Run sweeps on the configured interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) error {
	return s.periodic.Run(ctx, true)
}

// Sweep runs one pass. A pass already running here, or holding the lease elsewhere,
// makes this call return ErrSweepInProgress without touching any listing. An
// unreachable lease store does not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	if !s.running.TryLock() {
		return Result{}, biddingerrors.ErrSweepInProgress
	}
	defer s.running.Unlock()

	if s.opts.Lease != nil {
		release, ok, err := s.opts.Lease.Acquire(ctx)
		switch {
		case err != nil:
			// Fail open: finalization re-checks status under the listing lock, so a
			// concurrent pass elsewhere cannot end the same listing twice.
			utils.Warn("lifecycle: sweep lease unavailable, sweeping without it", map[string]any{
				"error": err.Error(),
			})
		case !ok:
			return Result{}, fmt.Errorf("lifecycle: lease held by another instance: %w", biddingerrors.ErrSweepInProgress)
		default:
			defer release()
		}
	}

	now := s.now()
	expired, err := s.db.ListListings(ctx, repository.ListingFilter{
		Statuses: []models.ListingStatus{models.StatusActive},
		EndsBy:   &now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("lifecycle: select expired listings: %w", err)
	}

	var res Result
	for _, l := range expired {
		if ctx.Err() != nil {
			break
		}
		res.Examined++
		out, err := s.sweepListing(ctx, l.ListingID, now)
		if err != nil {
			res.Failed++
			utils.Error("lifecycle: sweep listing failed", map[string]any{
				"listing_id": l.ListingID,
				"error":      err.Error(),
			})
			continue
		}
		switch out {
		case outcomeRestarted:
			res.Restarted++
		case outcomeFinalized:
			res.Finalized++
		default:
			res.Skipped++
		}
	}

	if res.Restarted+res.Finalized > 0 {
		s.cache.Invalidate()
	}
	if res.Examined > 0 {
		utils.Info("lifecycle: sweep finished", map[string]any{
			"examined":  res.Examined,
			"restarted": res.Restarted,
			"finalized": res.Finalized,
			"failed":    res.Failed,
			"skipped":   res.Skipped,
		})
	}
	return res, nil
}

// sweepListing re-checks the listing under its lock and applies the transition.
// Notifications and broadcasts go out only after the transition committed.
func (s *Sweeper) sweepListing(ctx context.Context, listingID string, now time.Time) (outcome, error) {
	var (
		out     outcome
		bids    []models.Bid
		updated models.Listing
	)
	err := s.db.WithListing(ctx, listingID, func(tx repository.ListingTx) error {
		l := tx.Listing()
		if l.Status != models.StatusActive || !l.Expired(now) {
			out = outcomeSkipped
			return nil
		}
		var err error
		if bids, err = tx.Bids(); err != nil {
			return err
		}

		if len(bids) == 0 || !l.ReserveMet() {
			duration := l.AuctionDuration
			if duration <= 0 {
				duration = s.opts.DefaultDuration
			}
			if err := tx.Restart(s.newLot(), now, now.Add(duration)); err != nil {
				return err
			}
			out = outcomeRestarted
		} else {
			if err := tx.SetStatus(models.StatusEnded, &now); err != nil {
				return err
			}
			if s.opts.ArchiveOnFinalize {
				if err := tx.SetStatus(models.StatusArchived, nil); err != nil {
					return err
				}
			}
			out = outcomeFinalized
		}
		updated = tx.Listing()
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}

	switch out {
	case outcomeRestarted:
		utils.Info("lifecycle: auction restarted", map[string]any{
			"listing_id":  listingID,
			"bids":        len(bids),
			"lot_number":  updated.LotNumber,
			"ends_at":     updated.AuctionEndTime,
			"reserve_met": len(bids) > 0,
		})
	case outcomeFinalized:
		s.announceResult(ctx, updated, bids)
	}
	return out, nil
}

// announceResult notifies the winner and every other distinct bidder and tells the room
func (s *Sweeper) announceResult(ctx context.Context, l models.Listing, bids []models.Bid) {
	winner, _ := repository.HighestBid(bids)
	utils.Info("lifecycle: auction finalized", map[string]any{
		"listing_id": l.ListingID,
		"status":     l.Status,
		"winner_id":  winner.UserID,
		"amount":     winner.Amount.String(),
	})

	s.notify(ctx, models.Notification{
		UserID:    winner.UserID,
		Type:      models.NotificationAuctionWon,
		Title:     "Auction won",
		Message:   fmt.Sprintf("You won lot %s with a bid of %s", l.LotNumber, winner.Amount.StringFixed(2)),
		ListingID: l.ListingID,
	})
	seen := map[string]struct{}{winner.UserID: {}}
	for _, b := range bids {
		if _, ok := seen[b.UserID]; ok {
			continue
		}
		seen[b.UserID] = struct{}{}
		s.notify(ctx, models.Notification{
			UserID:    b.UserID,
			Type:      models.NotificationAuctionLost,
			Title:     "Auction ended",
			Message:   fmt.Sprintf("Lot %s sold to another bidder for %s", l.LotNumber, winner.Amount.StringFixed(2)),
			ListingID: l.ListingID,
		})
	}

	ev := realtime.NewEvent(realtime.EventAuctionEnded, l.ListingID, realtime.AuctionEndedPayload{
		ListingID:  l.ListingID,
		LotNumber:  l.LotNumber,
		Status:     string(l.Status),
		Reason:     realtime.EndReasonSold,
		WinnerID:   winner.UserID,
		WinningBid: winner.Amount.String(),
		EndedAt:    l.EndedAt,
	})
	s.hub.BroadcastToListing(l.ListingID, ev)
	s.hub.BroadcastGlobal(ev)
}

func (s *Sweeper) notify(ctx context.Context, n models.Notification) {
	if _, err := s.notifier.Notify(ctx, n); err != nil {
		utils.Error("lifecycle: notification failed", map[string]any{
			"listing_id": n.ListingID,
			"user_id":    n.UserID,
			"type":       n.Type,
			"error":      err.Error(),
		})
	}
}
