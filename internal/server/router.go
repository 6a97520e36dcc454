package server

import (
	"net/http"
	"time"

	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	handler "auction-engine/services/bidding/handler"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// Deps carries everything the HTTP surface talks to
type Deps struct {
	Bidding       handler.BiddingServiceInterface
	Feed          handler.ListingFeed
	Notifications handler.NotificationServiceInterface
	Sweeper       handler.SweepRunner
	Hub           *realtime.Hub
	JWTSecret     string
	Heartbeat     time.Duration
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(d Deps) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(d.Bidding, d.Feed)
	adminHandler := handler.NewAdminHandler(d.Bidding, d.Sweeper)
	notificationHandler := handler.NewNotificationHandler(d.Notifications)
	auth := AuthMiddleware(d.JWTSecret)

	router.GET("/healthz", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{
			"realtime":         d.Hub.Stats(),
			"cache_generation": d.Feed.Snapshot().Generation,
		}, "ok")
	})

	router.GET("/ws", OptionalAuth(d.JWTSecret), func(c *gin.Context) {
		var userID string
		if actor, ok := helpers.ActorFromContext(c); ok {
			userID = actor.UserID
		}
		d.Hub.ServeWS(c.Writer, c.Request, userID, d.Heartbeat)
	})

	bids := router.Group("/bids", auth)
	{
		bids.POST("", biddingHandler.RecordBidHandler)
	}

	listings := router.Group("/listings")
	{
		listings.GET("", biddingHandler.GetFeedHandler)
		listings.GET("/:listing_id", biddingHandler.GetListingHandler)
		listings.GET("/:listing_id/bids", biddingHandler.GetBidsByListingHandler)
		listings.GET("/:listing_id/winning", biddingHandler.GetWinningBidHandler)
		listings.POST("", auth, RequireRole(models.RoleSeller, models.RoleAdmin), biddingHandler.CreateListingHandler)
	}

	users := router.Group("/users", auth)
	{
		users.GET("/me/listings", biddingHandler.GetMyListingsHandler)
	}

	notifications := router.Group("/notifications", auth)
	{
		notifications.GET("", notificationHandler.ListHandler)
		notifications.PATCH("/:notification_id/read", notificationHandler.MarkReadHandler)
	}

	admin := router.Group("/admin", auth, RequireRole(models.RoleAdmin))
	{
		admin.POST("/listings/:listing_id/approve", adminHandler.ApproveListingHandler)
		admin.POST("/listings/:listing_id/reject", adminHandler.RejectListingHandler)
		admin.POST("/sweep", adminHandler.SweepHandler)
	}

	return router
}
