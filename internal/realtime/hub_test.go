package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected event: %s", payload)
	default:
	}
}

func connect(t *testing.T, h *Hub, authUserID string) *Client {
	t.Helper()
	c := NewClient(authUserID)
	h.Register(c)
	ev := recv(t, c)
	require.Equal(t, EventConnected, ev.Type)
	if authUserID != "" {
		require.Equal(t, authUserID, ev.UserID)
	}
	return c
}

func TestHub_JoinSwitchesRooms(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	a := connect(t, h, "")
	b := connect(t, h, "")

	require.Equal(t, 1, h.Join(a, "L1"))
	require.Equal(t, EventJoinedAuction, recv(t, a).Type)
	require.Equal(t, 2, h.Join(b, "L1"))
	ev := recv(t, b)
	require.Equal(t, "L1", ev.ListingID)
	require.Equal(t, 2, ev.ParticipantCount)

	// a moves to L2 and no longer hears L1
	h.Join(a, "L2")
	recv(t, a)
	require.Equal(t, 1, h.BroadcastToListing("L1", NewEvent(EventBidUpdate, "L1", nil)))
	require.Equal(t, EventBidUpdate, recv(t, b).Type)
	requireNoEvent(t, a)
	require.Equal(t, 2, h.Stats().Rooms)

	h.Leave(a)
	require.Equal(t, EventLeftAuction, recv(t, a).Type)
	require.Equal(t, 1, h.Stats().Rooms)
}

func TestHub_SendToUserReachesEveryConnection(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	phone := connect(t, h, "u1")
	laptop := connect(t, h, "")
	other := connect(t, h, "u2")

	require.True(t, h.Identify(laptop, "u1"))
	require.Equal(t, EventUserIdentified, recv(t, laptop).Type)

	n := h.SendToUser("u1", NewEvent(EventNotification, "", map[string]string{"title": "Outbid"}))
	require.Equal(t, 2, n)
	require.Equal(t, EventNotification, recv(t, phone).Type)
	require.Equal(t, EventNotification, recv(t, laptop).Type)
	requireNoEvent(t, other)

	require.Equal(t, 0, h.SendToUser("nobody", NewEvent(EventNewMessage, "", nil)))
	require.Equal(t, 2, h.Stats().Users)
}

func TestHub_IdentifyRejectsOtherUserWhenAuthenticated(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	c := connect(t, h, "u1")

	require.False(t, h.Identify(c, "u2"))
	require.False(t, h.Identify(c, ""))
	requireNoEvent(t, c)
	require.Equal(t, 0, h.SendToUser("u2", NewEvent(EventNotification, "", nil)))
}

func TestHub_BroadcastGlobal(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	subscribed := []*Client{connect(t, h, ""), connect(t, h, "u1")}
	for _, c := range subscribed {
		require.True(t, h.SubscribeFeed(c))
		require.Equal(t, EventFeedSubscribed, recv(t, c).Type)
	}
	bystander := connect(t, h, "")

	require.Equal(t, 2, h.BroadcastGlobal(NewEvent(EventAuctionEnded, "L1", nil)))
	for _, c := range subscribed {
		ev := recv(t, c)
		require.Equal(t, EventAuctionEnded, ev.Type)
		require.Equal(t, "L1", ev.ListingID)
	}
	requireNoEvent(t, bystander)
	require.Equal(t, 2, h.Stats().Feed)

	h.UnsubscribeFeed(subscribed[0])
	require.Equal(t, EventFeedUnsubscribed, recv(t, subscribed[0]).Type)
	h.UnsubscribeFeed(subscribed[0])
	requireNoEvent(t, subscribed[0])
	require.Equal(t, 1, h.BroadcastGlobal(NewEvent(EventAuctionEnded, "L1", nil)))
	requireNoEvent(t, subscribed[0])
}

// A bid fans out to the room and to the feed; nobody may see it twice and
// clients that asked for neither see nothing.
func TestHub_BidFanOutCounts(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)

	member := connect(t, h, "")
	h.Join(member, "L1")
	recv(t, member)

	outsider := connect(t, h, "")

	otherRoom := connect(t, h, "")
	h.Join(otherRoom, "L2")
	recv(t, otherRoom)

	feedOnly := connect(t, h, "")
	h.SubscribeFeed(feedOnly)
	recv(t, feedOnly)

	memberOnFeed := connect(t, h, "")
	h.Join(memberOnFeed, "L1")
	recv(t, memberOnFeed)
	h.SubscribeFeed(memberOnFeed)
	recv(t, memberOnFeed)

	ev := NewEvent(EventBidUpdate, "L1", map[string]string{"amount": "1100.00"})
	require.Equal(t, 2, h.BroadcastToListing("L1", ev))
	require.Equal(t, 1, h.BroadcastGlobal(ev))

	count := func(c *Client) int {
		n := 0
		for {
			select {
			case <-c.send:
				n++
			default:
				return n
			}
		}
	}
	require.Equal(t, 1, count(member))
	require.Equal(t, 0, count(outsider))
	require.Equal(t, 0, count(otherRoom))
	require.Equal(t, 1, count(feedOnly))
	require.Equal(t, 1, count(memberOnFeed))
}

func TestHub_UnregisterReleasesMemberships(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	c := connect(t, h, "u1")
	h.Join(c, "L1")
	recv(t, c)

	h.Unregister(c)
	h.Unregister(c)

	_, ok := <-c.send
	require.False(t, ok)
	require.Equal(t, Stats{}, h.Stats())
	require.Equal(t, 0, h.BroadcastToListing("L1", NewEvent(EventBidUpdate, "L1", nil)))
	require.Equal(t, 0, h.Join(c, "L2"))
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	slow := connect(t, h, "")
	fast := connect(t, h, "")
	h.Join(slow, "L1")
	h.Join(fast, "L1")
	recv(t, slow)
	recv(t, fast)

	for i := 0; i < clientBuffer; i++ {
		h.BroadcastToListing("L1", NewEvent(EventBidUpdate, "L1", nil))
		recv(t, fast)
	}
	require.Equal(t, 1, h.BroadcastToListing("L1", NewEvent(EventBidUpdate, "L1", nil)))
	require.Equal(t, 1, h.Stats().Connections)

	drained := 0
	for range slow.send {
		drained++
	}
	require.Equal(t, clientBuffer, drained)
}

func TestHub_EvictStale(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	idle := connect(t, h, "u1")
	live := connect(t, h, "u2")

	later := time.Now().Add(2 * time.Minute)
	h.now = func() time.Time { return later }
	h.Touch(live)

	require.Equal(t, 1, h.EvictStale())
	_, ok := <-idle.send
	require.False(t, ok)
	require.Equal(t, Stats{Connections: 1, Users: 1}, h.Stats())
}

func TestHub_HandleFrame(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		frame    string
		expected []EventType
	}{
		{name: "ping", frame: `{"type":"ping"}`, expected: []EventType{EventPong}},
		{name: "join with user", frame: `{"type":"join_auction","listing_id":"L1","user_id":"u1"}`, expected: []EventType{EventUserIdentified, EventJoinedAuction}},
		{name: "join without listing", frame: `{"type":"join_auction"}`, expected: []EventType{EventError}},
		{name: "identify", frame: `{"type":"identify_user","user_id":"u1"}`, expected: []EventType{EventUserIdentified}},
		{name: "identify empty", frame: `{"type":"identify_user"}`, expected: []EventType{EventError}},
		{name: "leave without room", frame: `{"type":"leave_auction"}`, expected: nil},
		{name: "subscribe feed", frame: `{"type":"subscribe_feed"}`, expected: []EventType{EventFeedSubscribed}},
		{name: "unsubscribe without feed", frame: `{"type":"unsubscribe_feed"}`, expected: nil},
		{name: "unknown", frame: `{"type":"dance"}`, expected: []EventType{EventError}},
		{name: "malformed", frame: `{`, expected: []EventType{EventError}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := NewHub(time.Minute)
			c := connect(t, h, "")
			h.handleFrame(c, []byte(tc.frame))
			for _, want := range tc.expected {
				require.Equal(t, want, recv(t, c).Type)
			}
			requireNoEvent(t, c)
		})
	}
}

func TestHub_ConcurrentJoinAndBroadcast(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("")
			h.Register(c)
			h.Join(c, "L1")
			h.BroadcastToListing("L1", NewEvent(EventBidUpdate, "L1", nil))
			h.Unregister(c)
		}()
	}
	wg.Wait()
	require.Equal(t, Stats{}, h.Stats())
}

func TestServeWS_RoundTrip(t *testing.T) {
	t.Parallel()
	h := NewHub(time.Minute)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, "u1", time.Minute)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Event {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	require.Equal(t, EventConnected, read().Type)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join_auction", "listing_id": "L9"}))
	joined := read()
	require.Equal(t, EventJoinedAuction, joined.Type)
	require.Equal(t, 1, joined.ParticipantCount)

	require.Equal(t, 1, h.BroadcastToListing("L9", NewEvent(EventBidUpdate, "L9", map[string]string{"amount": "1100"})))
	require.Equal(t, EventBidUpdate, read().Type)
	require.Equal(t, 1, h.SendToUser("u1", NewEvent(EventNotification, "", nil)))
	require.Equal(t, EventNotification, read().Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, EventPong, read().Type)
}
