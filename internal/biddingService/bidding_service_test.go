package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	store repository.NotificationStore
	sent  []models.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note models.Notification) (models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	note.NotificationID = fmt.Sprintf("n%d", len(n.sent)+1)
	if n.store != nil {
		if err := n.store.CreateNotification(ctx, note); err != nil {
			return models.Notification{}, err
		}
	}
	n.sent = append(n.sent, note)
	return note, nil
}

func (n *recordingNotifier) recipients(typ models.NotificationType) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var users []string
	for _, note := range n.sent {
		if note.Type == typ {
			users = append(users, note.UserID)
		}
	}
	return users
}

type recordingHub struct {
	mu     sync.Mutex
	room   map[string][]realtime.Event
	global []realtime.Event
}

func (h *recordingHub) BroadcastToListing(listingID string, ev realtime.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.room == nil {
		h.room = make(map[string][]realtime.Event)
	}
	h.room[listingID] = append(h.room[listingID], ev)
	return 1
}

func (h *recordingHub) BroadcastGlobal(ev realtime.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.global = append(h.global, ev)
	return 1
}

func (h *recordingHub) roomCount(listingID string, typ realtime.EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ev := range h.room[listingID] {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type countingCache struct{ n atomic.Int32 }

func (c *countingCache) Invalidate() { c.n.Add(1) }

type harness struct {
	repo     *repository.MemoryRepo
	notifier *recordingNotifier
	hub      *recordingHub
	cache    *countingCache
	service  *BiddingService
	now      time.Time
}

func newHarness() *harness {
	repo := repository.NewMemoryRepo()
	h := &harness{
		repo:     repo,
		notifier: &recordingNotifier{store: repo},
		hub:      &recordingHub{},
		cache:    &countingCache{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.service = NewBiddingService(repo, h.notifier, h.hub, h.cache, 7*24*time.Hour)
	h.service.now = func() time.Time { return h.now }
	return h
}

// addListing seeds a listing whose window is [now-1h, now+end)
func (h *harness) addListing(id string, status models.ListingStatus, starting int64, end time.Duration) models.Listing {
	start := h.now.Add(-time.Hour)
	endAt := h.now.Add(end)
	l := models.Listing{
		ListingID:        id,
		SellerID:         "seller",
		LotNumber:        "100200",
		StartingPrice:    decimal.NewFromInt(starting),
		Status:           status,
		AuctionDuration:  2 * time.Hour,
		AuctionStartTime: &start,
		AuctionEndTime:   &endAt,
		CreatedAt:        start,
	}
	h.repo.AddListing(l)
	return l
}

func buyer(id string) models.Actor {
	return models.Actor{UserID: id, Role: models.RoleBuyer, IsActive: true}
}

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestBiddingService_PlaceBidRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		setup         func(h *harness)
		listingID     string
		bidder        models.Actor
		amount        int64
		expectedError error
	}{
		{
			name:          "empty_listingID",
			setup:         func(h *harness) {},
			listingID:     "",
			bidder:        buyer("alice"),
			amount:        1100,
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "zero_amount",
			setup:         func(h *harness) { h.addListing("L1", models.StatusActive, 1000, time.Hour) },
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        0,
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "listing_not_found",
			setup:         func(h *harness) {},
			listingID:     "missing",
			bidder:        buyer("alice"),
			amount:        1100,
			expectedError: biddingerrors.ErrListingNotFound,
		},
		{
			name:          "expired_but_still_active",
			setup:         func(h *harness) { h.addListing("L1", models.StatusActive, 1000, -time.Second) },
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        1100,
			expectedError: biddingerrors.ErrAuctionExpired,
		},
		{
			name:          "expiry_checked_before_status",
			setup:         func(h *harness) { h.addListing("L1", models.StatusArchived, 1000, -time.Hour) },
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        1100,
			expectedError: biddingerrors.ErrAuctionExpired,
		},
		{
			name:          "pending_approval",
			setup:         func(h *harness) { h.addListing("L1", models.StatusPendingApproval, 1000, time.Hour) },
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        1100,
			expectedError: biddingerrors.ErrAuctionNotActive,
		},
		{
			name:          "account_not_activated",
			setup:         func(h *harness) { h.addListing("L1", models.StatusActive, 1000, time.Hour) },
			listingID:     "L1",
			bidder:        models.Actor{UserID: "alice", Role: models.RoleBuyer},
			amount:        1100,
			expectedError: biddingerrors.ErrAccountNotActivated,
		},
		{
			name:          "seller_bids_on_own_listing",
			setup:         func(h *harness) { h.addListing("L1", models.StatusActive, 1000, time.Hour) },
			listingID:     "L1",
			bidder:        models.Actor{UserID: "seller", Role: models.RoleSeller, IsActive: true},
			amount:        1_000_000,
			expectedError: biddingerrors.ErrSelfBid,
		},
		{
			name:          "equal_to_starting_price",
			setup:         func(h *harness) { h.addListing("L1", models.StatusActive, 1000, time.Hour) },
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        1000,
			expectedError: biddingerrors.ErrBidTooLow,
		},
		{
			name: "below_current_bid",
			setup: func(h *harness) {
				h.addListing("L1", models.StatusActive, 1000, time.Hour)
				_, err := h.service.PlaceBid(context.Background(), "L1", buyer("bob"), amount(1500))
				if err != nil {
					panic(err)
				}
			},
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        1400,
			expectedError: biddingerrors.ErrBidTooLow,
		},
		{
			name: "leader_repeats_same_amount",
			setup: func(h *harness) {
				h.addListing("L1", models.StatusActive, 1000, time.Hour)
				_, err := h.service.PlaceBid(context.Background(), "L1", buyer("alice"), amount(1500))
				if err != nil {
					panic(err)
				}
			},
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        1500,
			expectedError: biddingerrors.ErrAlreadyHighestBidder,
		},
		{
			name: "leader_bids_lower",
			setup: func(h *harness) {
				h.addListing("L1", models.StatusActive, 1000, time.Hour)
				_, err := h.service.PlaceBid(context.Background(), "L1", buyer("alice"), amount(1500))
				if err != nil {
					panic(err)
				}
			},
			listingID:     "L1",
			bidder:        buyer("alice"),
			amount:        1200,
			expectedError: biddingerrors.ErrAlreadyHighestBidder,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			tc.setup(h)
			notificationsBefore := len(h.notifier.sent)
			bidUpdatesBefore := h.hub.roomCount(tc.listingID, realtime.EventBidUpdate)
			bidsBefore, _ := h.repo.GetBidsByListing(context.Background(), tc.listingID)

			_, err := h.service.PlaceBid(context.Background(), tc.listingID, tc.bidder, amount(tc.amount))
			require.Error(t, err)
			require.ErrorIs(t, err, tc.expectedError)

			require.Len(t, h.notifier.sent, notificationsBefore)
			require.Equal(t, bidUpdatesBefore, h.hub.roomCount(tc.listingID, realtime.EventBidUpdate))
			bidsAfter, _ := h.repo.GetBidsByListing(context.Background(), tc.listingID)
			require.Equal(t, bidsBefore, bidsAfter)
		})
	}
}

func TestBiddingService_PlaceBidRejectsSubCentAmounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	h.addListing("L1", models.StatusActive, 1000, time.Hour)

	_, err := h.service.PlaceBid(ctx, "L1", buyer("alice"), decimal.RequireFromString("1000.00"))
	require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)

	// 1000.004 is above the starting price but would be stored as 1000.00
	_, err = h.service.PlaceBid(ctx, "L1", buyer("alice"), decimal.RequireFromString("1000.004"))
	require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)
	bids, err := h.service.GetBidsForListing(ctx, "L1")
	require.NoError(t, err)
	require.Empty(t, bids)

	res, err := h.service.PlaceBid(ctx, "L1", buyer("alice"), decimal.RequireFromString("1000.01"))
	require.NoError(t, err)
	require.Equal(t, "1000.01", res.CurrentBid.StringFixed(2))
}

func TestBiddingService_PlaceBidAccepted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	h.addListing("L1", models.StatusActive, 1000, time.Hour)

	res, err := h.service.PlaceBid(ctx, "L1", buyer("alice"), amount(1100))
	require.NoError(t, err)
	require.Len(t, res.Bid.BidID, 26)
	require.Equal(t, "alice", res.Bid.UserID)
	require.True(t, res.CurrentBid.Equal(amount(1100)))
	require.Equal(t, 1, res.BidCount)
	require.Equal(t, h.now, res.Bid.CreatedAt)

	l, err := h.repo.GetListing(ctx, "L1")
	require.NoError(t, err)
	require.True(t, l.CurrentBid.Decimal.Equal(amount(1100)))

	require.Equal(t, 1, h.hub.roomCount("L1", realtime.EventBidUpdate))
	require.Len(t, h.hub.global, 1)
	payload := h.hub.global[0].Data.(realtime.BidUpdatePayload)
	require.Equal(t, "1100", payload.CurrentBid)
	require.Equal(t, "alice", payload.BidderID)
	require.Empty(t, h.notifier.sent)

	// the leader may raise their own bid
	res, err = h.service.PlaceBid(ctx, "L1", buyer("alice"), amount(1300))
	require.NoError(t, err)
	require.Equal(t, 2, res.BidCount)
	require.Empty(t, h.notifier.sent)
}

func TestBiddingService_OutbidGoesToDistinctPriorBidders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	h.addListing("L1", models.StatusActive, 1000, time.Hour)

	for i, b := range []struct {
		user   string
		amount int64
	}{{"alice", 1100}, {"bob", 1200}, {"alice", 1300}, {"carol", 1400}} {
		_, err := h.service.PlaceBid(ctx, "L1", buyer(b.user), amount(b.amount))
		require.NoError(t, err, "bid %d", i)
	}

	// bob: alice; alice: bob; carol: alice, bob
	require.ElementsMatch(t, []string{"alice", "bob", "alice", "bob"}, h.notifier.recipients(models.NotificationOutbid))
	require.Equal(t, 4, h.hub.roomCount("L1", realtime.EventBidUpdate))

	stored, err := h.repo.GetNotificationsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "L1", stored[0].ListingID)
}

func TestBiddingService_ConcurrentEqualBidsOnlyOneWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	h.addListing("L1", models.StatusActive, 1000, time.Hour)

	const bidders = 50
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		tooLow   atomic.Int32
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.service.PlaceBid(ctx, "L1", buyer(fmt.Sprintf("user%d", i)), amount(1100))
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, biddingerrors.ErrBidTooLow):
				tooLow.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), accepted.Load())
	require.Equal(t, int32(bidders-1), tooLow.Load())
	bids, err := h.repo.GetBidsByListing(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, bids, 1)
	require.Equal(t, 1, h.hub.roomCount("L1", realtime.EventBidUpdate))
}

func TestBiddingService_ConcurrentRisingBidsKeepPriceConsistent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	h.addListing("L1", models.StatusActive, 1000, time.Hour)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = h.service.PlaceBid(ctx, "L1", buyer(fmt.Sprintf("user%d", i)), amount(1000+int64(i)*10))
		}(i)
	}
	wg.Wait()

	bids, err := h.repo.GetBidsByListing(ctx, "L1")
	require.NoError(t, err)
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount), "ledger must be strictly increasing")
	}
	l, err := h.repo.GetListing(ctx, "L1")
	require.NoError(t, err)
	require.True(t, l.CurrentBid.Decimal.Equal(bids[len(bids)-1].Amount))
	require.Equal(t, len(bids), h.hub.roomCount("L1", realtime.EventBidUpdate))
}

func TestBiddingService_StaleWriteIsBidTooLow(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockTx := repository.NewMockListingTx(ctrl)
	hub := &recordingHub{}
	notifier := &recordingNotifier{}
	service := NewBiddingService(mockRepo, notifier, hub, &countingCache{}, time.Hour)

	end := time.Now().Add(time.Hour)
	listing := models.Listing{ListingID: "L1", SellerID: "seller", StartingPrice: amount(1000), Status: models.StatusActive, AuctionEndTime: &end}

	mockRepo.EXPECT().WithListing(gomock.Any(), "L1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn func(repository.ListingTx) error) error {
			return fn(mockTx)
		})
	mockTx.EXPECT().Listing().Return(listing)
	mockTx.EXPECT().Bids().Return(nil, nil)
	mockTx.EXPECT().AppendBid(gomock.Any()).Return(biddingerrors.ErrStaleWrite)

	_, err := service.PlaceBid(context.Background(), "L1", buyer("alice"), amount(1100))
	require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)
	require.Empty(t, hub.global)
	require.Empty(t, notifier.sent)
}

func TestBiddingService_StoreFailureIsWrapped(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockTx := repository.NewMockListingTx(ctrl)
	service := NewBiddingService(mockRepo, &recordingNotifier{}, &recordingHub{}, &countingCache{}, time.Hour)

	end := time.Now().Add(time.Hour)
	listing := models.Listing{ListingID: "L1", SellerID: "seller", StartingPrice: amount(1000), Status: models.StatusActive, AuctionEndTime: &end}
	dbErr := errors.New("connection reset")

	mockRepo.EXPECT().WithListing(gomock.Any(), "L1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn func(repository.ListingTx) error) error {
			return fn(mockTx)
		})
	mockTx.EXPECT().Listing().Return(listing)
	mockTx.EXPECT().Bids().Return(nil, nil)
	mockTx.EXPECT().AppendBid(gomock.Any()).Return(dbErr)

	_, err := service.PlaceBid(context.Background(), "L1", buyer("alice"), amount(1100))
	require.ErrorIs(t, err, dbErr)
	require.NotErrorIs(t, err, biddingerrors.ErrBidTooLow)
}

// Walks one auction from first bid to the sweep that closes it.
func TestBiddingService_AuctionScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	realNow := time.Now().UTC()
	h.now = realNow.Add(-10 * time.Minute)
	h.addListing("L1", models.StatusActive, 1000, 9*time.Minute) // ended a minute ago in real time

	_, err := h.service.PlaceBid(ctx, "L1", buyer("A"), amount(1100))
	require.NoError(t, err)
	_, err = h.service.PlaceBid(ctx, "L1", buyer("B"), amount(1050))
	require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)
	_, err = h.service.PlaceBid(ctx, "L1", buyer("B"), amount(1200))
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, h.notifier.recipients(models.NotificationOutbid))

	sweeper := lifecycle.NewSweeper(h.repo, h.notifier, h.hub, h.cache, lifecycle.Options{
		Interval:          time.Minute,
		DefaultDuration:   time.Hour,
		ArchiveOnFinalize: true,
	})
	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Finalized)

	require.Equal(t, []string{"B"}, h.notifier.recipients(models.NotificationAuctionWon))
	require.Equal(t, []string{"A"}, h.notifier.recipients(models.NotificationAuctionLost))
	require.Equal(t, 2, h.hub.roomCount("L1", realtime.EventBidUpdate))
	require.Equal(t, 1, h.hub.roomCount("L1", realtime.EventAuctionEnded))

	l, err := h.repo.GetListing(ctx, "L1")
	require.NoError(t, err)
	require.Equal(t, models.StatusArchived, l.Status)
	require.True(t, l.CurrentBid.Decimal.Equal(amount(1200)))
}

// Reserve 5000, start 1000, a single 2000 bid: the sweep restarts the auction.
func TestBiddingService_ReserveScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	realNow := time.Now().UTC()
	h.now = realNow.Add(-10 * time.Minute)
	l := h.addListing("L1", models.StatusActive, 1000, 9*time.Minute)
	l.ReservePrice = decimal.NewNullDecimal(amount(5000))
	h.repo.AddListing(l)

	_, err := h.service.PlaceBid(ctx, "L1", buyer("A"), amount(2000))
	require.NoError(t, err)

	sweeper := lifecycle.NewSweeper(h.repo, h.notifier, h.hub, h.cache, lifecycle.Options{Interval: time.Minute, DefaultDuration: time.Hour, ArchiveOnFinalize: true})
	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Restarted)

	got, err := h.repo.GetListing(ctx, "L1")
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)
	require.True(t, got.CurrentBid.Decimal.Equal(amount(1000)))
	require.True(t, got.AuctionEndTime.After(realNow))
	_, err = h.repo.GetBidsByListing(ctx, "L1")
	require.ErrorIs(t, err, biddingerrors.ErrNoBids)
	require.Empty(t, h.notifier.recipients(models.NotificationAuctionWon))

	// the restarted auction accepts bids from the starting price again
	h.now = realNow
	_, err = h.service.PlaceBid(ctx, "L1", buyer("B"), amount(1001))
	require.NoError(t, err)
}

func TestBiddingService_ListingLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()
	seller := models.Actor{UserID: "seller", Role: models.RoleSeller, IsActive: true}

	_, err := h.service.CreateListing(ctx, seller, NewListing{StartingPrice: amount(0)})
	require.ErrorIs(t, err, biddingerrors.ErrInvalidListing)
	_, err = h.service.CreateListing(ctx, seller, NewListing{StartingPrice: amount(1000), ReservePrice: decimal.NewNullDecimal(amount(500))})
	require.ErrorIs(t, err, biddingerrors.ErrInvalidListing)
	_, err = h.service.CreateListing(ctx, seller, NewListing{StartingPrice: decimal.RequireFromString("999.995")})
	require.ErrorIs(t, err, biddingerrors.ErrInvalidListing)
	_, err = h.service.CreateListing(ctx, models.Actor{UserID: "seller"}, NewListing{StartingPrice: amount(1000)})
	require.ErrorIs(t, err, biddingerrors.ErrAccountNotActivated)

	created, err := h.service.CreateListing(ctx, seller, NewListing{Title: "Toyota Camry 2018", StartingPrice: amount(1000)})
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingApproval, created.Status)
	require.Len(t, created.LotNumber, 6)
	require.Equal(t, 7*24*time.Hour, created.AuctionDuration)

	_, err = h.service.PlaceBid(ctx, created.ListingID, buyer("alice"), amount(1100))
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotActive)

	approved, err := h.service.ApproveListing(ctx, created.ListingID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, approved.Status)
	require.Equal(t, h.now, *approved.AuctionStartTime)
	require.Equal(t, h.now.Add(7*24*time.Hour), *approved.AuctionEndTime)
	require.Equal(t, int32(1), h.cache.n.Load())

	_, err = h.service.ApproveListing(ctx, created.ListingID)
	require.ErrorIs(t, err, biddingerrors.ErrInvalidTransition)

	_, err = h.service.PlaceBid(ctx, created.ListingID, buyer("alice"), amount(1100))
	require.NoError(t, err)

	rejected, err := h.service.RejectListing(ctx, created.ListingID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.Equal(t, 1, h.hub.roomCount(created.ListingID, realtime.EventAuctionEnded))
	require.Equal(t, int32(2), h.cache.n.Load())

	_, err = h.service.RejectListing(ctx, created.ListingID)
	require.ErrorIs(t, err, biddingerrors.ErrInvalidTransition)
	_, err = h.service.ApproveListing(ctx, "missing")
	require.ErrorIs(t, err, biddingerrors.ErrListingNotFound)
}

func TestBiddingService_Reads(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockAuctionDB(ctrl)
	service := NewBiddingService(mockRepo, &recordingNotifier{}, &recordingHub{}, &countingCache{}, time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	bids := []models.Bid{
		{BidID: "b1", ListingID: "L1", UserID: "alice", Amount: amount(1100), CreatedAt: now},
		{BidID: "b2", ListingID: "L1", UserID: "bob", Amount: amount(1200), CreatedAt: now.Add(time.Second)},
	}

	tests := []struct {
		name          string
		call          func() (any, error)
		mockSetup     func()
		expectedError error
	}{
		{
			name:      "bids_for_listing",
			mockSetup: func() { mockRepo.EXPECT().GetBidsByListing(ctx, "L1").Return(bids, nil) },
			call:      func() (any, error) { return service.GetBidsForListing(ctx, "L1") },
		},
		{
			name:          "bids_for_listing_empty_id",
			mockSetup:     func() {},
			call:          func() (any, error) { return service.GetBidsForListing(ctx, "") },
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "winning_bid_none",
			mockSetup:     func() { mockRepo.EXPECT().GetWinningBid(ctx, "L2").Return(models.Bid{}, biddingerrors.ErrNoBids) },
			call:          func() (any, error) { return service.GetWinningBid(ctx, "L2") },
			expectedError: biddingerrors.ErrNoBids,
		},
		{
			name:      "winning_bid",
			mockSetup: func() { mockRepo.EXPECT().GetWinningBid(ctx, "L1").Return(bids[1], nil) },
			call:      func() (any, error) { return service.GetWinningBid(ctx, "L1") },
		},
		{
			name:          "listings_by_bidder_none",
			mockSetup:     func() { mockRepo.EXPECT().GetListingsByBidder(ctx, "carol").Return(nil, biddingerrors.ErrUserNoBids) },
			call:          func() (any, error) { return service.GetListingsByBidder(ctx, "carol") },
			expectedError: biddingerrors.ErrUserNoBids,
		},
		{
			name: "listing_with_count",
			mockSetup: func() {
				mockRepo.EXPECT().GetListing(ctx, "L1").Return(models.Listing{ListingID: "L1"}, nil)
				mockRepo.EXPECT().CountBids(ctx, []string{"L1"}).Return(map[string]int{"L1": 2}, nil)
			},
			call: func() (any, error) { return service.GetListing(ctx, "L1") },
		},
		{
			name: "listing_not_found",
			mockSetup: func() {
				mockRepo.EXPECT().GetListing(ctx, "nope").Return(models.Listing{}, biddingerrors.ErrListingNotFound)
			},
			call:          func() (any, error) { return service.GetListing(ctx, "nope") },
			expectedError: biddingerrors.ErrListingNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()
			got, err := tc.call()
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
		})
	}
}
