package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/cache"
	"auction-engine/internal/config"
	"auction-engine/internal/database"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/internal/queue"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/sms"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const sweepLeaseKey = "auction:sweep:lease"

func main() {
	cfg := config.Load()
	utils.SetLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := openStore(ctx, cfg)

	sweepOpts := lifecycle.Options{
		Interval:          cfg.Sweep.Interval,
		DefaultDuration:   cfg.Auction.DefaultDuration,
		ArchiveOnFinalize: cfg.Sweep.ArchiveOnFinalize,
	}
	if cfg.Redis.Addr != "" {
		rdb, err := database.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			utils.Fatal("failed to connect to redis", map[string]any{"addr": cfg.Redis.Addr, "error": err.Error()})
		}
		defer rdb.Close()
		sweepOpts.Lease = lifecycle.NewRedisLease(rdb, sweepLeaseKey, cfg.Sweep.LeaseTTL)
	}

	var publisher notification.Publisher
	if cfg.RabbitMQURL != "" {
		p := queue.NewPublisher(cfg.RabbitMQURL)
		defer p.Close()
		publisher = p
	}

	var sender sms.Sender = sms.LogSender{}
	if cfg.SMS.ProxyURL != "" {
		sender = sms.NewProxyClient(cfg.SMS.ProxyURL, cfg.SMS.Timeout)
	}

	hub := realtime.NewHub(cfg.Realtime.IdleTimeout)
	dispatcher := notification.NewDispatcher(repo, hub, sender, publisher, cfg.Notify.Workers, cfg.Notify.QueueSize)
	dispatcher.Start()
	defer dispatcher.Close()

	listings := cache.NewListingsCache(repo, cfg.Cache.RefreshInterval, cfg.Cache.RecentEndedWindow)
	biddingSvc := bidding.NewBiddingService(repo, dispatcher, hub, listings, cfg.Auction.DefaultDuration)
	sweeper := lifecycle.NewSweeper(repo, dispatcher, hub, listings, sweepOpts)

	router := server.SetupRouter(server.Deps{
		Bidding:       biddingSvc,
		Feed:          listings,
		Notifications: dispatcher,
		Sweeper:       sweeper,
		Hub:           hub,
		JWTSecret:     cfg.JWTSecret,
		Heartbeat:     cfg.Realtime.HeartbeatInterval,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx, cfg.Realtime.HeartbeatInterval) })
	g.Go(func() error { return listings.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr, "store": cfg.StoreDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		utils.Error("auction server stopped with error", map[string]any{"error": err.Error()})
		return
	}
	utils.Info("auction server stopped", nil)
}

// openStore returns the configured store; the memory store is seeded with demo data
func openStore(ctx context.Context, cfg config.Config) repository.AuctionDB {
	if cfg.StoreDriver == "mysql" {
		db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		if err != nil {
			utils.Fatal("failed to connect to mysql", map[string]any{"host": cfg.DB.Host, "error": err.Error()})
		}
		if err := database.Migrate(ctx, db); err != nil {
			utils.Fatal("failed to migrate schema", map[string]any{"error": err.Error()})
		}
		return repository.NewMySQLRepo(db)
	}

	repo := repository.NewMemoryRepo()
	prepopulate(repo, cfg.Auction.DefaultDuration)
	return repo
}

// prepopulate adds demo users and listings to the in-memory repo
func prepopulate(repo *repository.MemoryRepo, duration time.Duration) {
	users := []models.User{
		{UserID: "seller1", FullName: "Demo Seller", Role: models.RoleSeller, IsActive: true},
		{UserID: "buyer1", FullName: "Demo Buyer One", Role: models.RoleBuyer, IsActive: true},
		{UserID: "buyer2", FullName: "Demo Buyer Two", Role: models.RoleBuyer, IsActive: true},
		{UserID: "admin1", FullName: "Demo Admin", Role: models.RoleAdmin, IsActive: true},
	}
	for _, u := range users {
		repo.AddUser(u)
	}

	now := time.Now().UTC()
	end := now.Add(duration)
	listings := []struct {
		title    string
		starting int64
		reserve  int64
	}{
		{"Toyota Camry 2018", 8000, 0},
		{"Honda Civic 2020", 12000, 15000},
		{"Ford F-150 2016", 15000, 0},
	}
	for _, l := range listings {
		listing := models.Listing{
			ListingID:        utils.GenerateID(),
			SellerID:         "seller1",
			LotNumber:        utils.GenerateLotNumber(),
			Title:            l.title,
			StartingPrice:    decimal.NewFromInt(l.starting),
			CurrentBid:       decimal.NewNullDecimal(decimal.NewFromInt(l.starting)),
			Status:           models.StatusActive,
			AuctionDuration:  duration,
			AuctionStartTime: &now,
			AuctionEndTime:   &end,
			CreatedAt:        now,
		}
		if l.reserve > 0 {
			listing.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(l.reserve))
		}
		repo.AddListing(listing)
	}
}
