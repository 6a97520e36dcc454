package integrationtests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/cache"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/sms"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const jwtSecret = "integration-secret"

// Env is a fully wired in-memory deployment
type Env struct {
	Router *gin.Engine
	Repo   *repository.MemoryRepo
	Cache  *cache.ListingsCache
}

var testUsers = []models.User{
	{UserID: "seller1", FullName: "Seller", Role: models.RoleSeller, IsActive: true},
	{UserID: "user1", FullName: "User One", Role: models.RoleBuyer, IsActive: true},
	{UserID: "user2", FullName: "User Two", Role: models.RoleBuyer, IsActive: true},
	{UserID: "user3", FullName: "User Three", Role: models.RoleBuyer, IsActive: true},
	{UserID: "dormant", FullName: "Not Activated", Role: models.RoleBuyer, IsActive: false},
	{UserID: "admin1", FullName: "Admin", Role: models.RoleAdmin, IsActive: true},
}

// SetupTestRouter initializes the router with in-memory repository for integration testing
// and seeds it with listings.
func SetupTestRouter(t *testing.T, listings ...models.Listing) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	for _, u := range testUsers {
		repo.AddUser(u)
	}
	for _, l := range listings {
		repo.AddListing(l)
	}

	hub := realtime.NewHub(time.Minute)
	lc := cache.NewListingsCache(repo, time.Hour, 24*time.Hour)
	dispatcher := notification.NewDispatcher(repo, hub, sms.LogSender{}, nil, 2, 64)
	dispatcher.Start()
	t.Cleanup(dispatcher.Close)

	svc := bidding.NewBiddingService(repo, dispatcher, hub, lc, time.Hour)
	sweeper := lifecycle.NewSweeper(repo, dispatcher, hub, lc, lifecycle.Options{
		Interval:          time.Hour,
		DefaultDuration:   time.Hour,
		ArchiveOnFinalize: true,
	})

	router := server.SetupRouter(server.Deps{
		Bidding:       svc,
		Feed:          lc,
		Notifications: dispatcher,
		Sweeper:       sweeper,
		Hub:           hub,
		JWTSecret:     jwtSecret,
		Heartbeat:     time.Second,
	})
	return &Env{Router: router, Repo: repo, Cache: lc}
}

// ActiveListing returns a running listing owned by seller1
func ActiveListing(id string, starting int64, endsIn time.Duration) models.Listing {
	now := time.Now().UTC()
	end := now.Add(endsIn)
	return models.Listing{
		ListingID:        id,
		SellerID:         "seller1",
		LotNumber:        fmt.Sprintf("L-%s", id),
		Title:            "title " + id,
		StartingPrice:    decimal.NewFromInt(starting),
		CurrentBid:       decimal.NewNullDecimal(decimal.NewFromInt(starting)),
		Status:           models.StatusActive,
		AuctionDuration:  time.Hour,
		AuctionStartTime: &now,
		AuctionEndTime:   &end,
		CreatedAt:        now,
	}
}

// Token returns a bearer token for one of the seeded users
func Token(t *testing.T, userID string) string {
	t.Helper()
	for _, u := range testUsers {
		if u.UserID == userID {
			tok, err := utils.NewAccessToken(jwtSecret, u.UserID, u.Role, u.IsActive, time.Hour)
			if err != nil {
				t.Fatalf("failed to sign token: %v", err)
			}
			return tok
		}
	}
	t.Fatalf("unknown test user %q", userID)
	return ""
}

// ExecuteRequestAndParse executes an HTTP request on the given router as userID
// (anonymous when empty) and parses the response envelope
func ExecuteRequestAndParse(t *testing.T, env *Env, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+Token(t, userID))
	}
	env.Router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}
