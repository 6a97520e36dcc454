package realtime

import "time"

// EventType names a realtime frame
type EventType string

// Outbound event types
const (
	EventConnected        EventType = "connected"
	EventJoinedAuction    EventType = "joined_auction"
	EventLeftAuction      EventType = "left_auction"
	EventUserIdentified   EventType = "user_identified"
	EventFeedSubscribed   EventType = "feed_subscribed"
	EventFeedUnsubscribed EventType = "feed_unsubscribed"
	EventBidUpdate        EventType = "bid_update"
	EventAuctionEnded     EventType = "auction_ended"
	EventNotification     EventType = "notification"
	EventNewMessage       EventType = "new_message"
	EventPong             EventType = "pong"
	EventError            EventType = "error"
)

// Inbound frame types sent by clients
const (
	inboundJoinAuction     = "join_auction"
	inboundLeaveAuction    = "leave_auction"
	inboundIdentifyUser    = "identify_user"
	inboundSubscribeFeed   = "subscribe_feed"
	inboundUnsubscribeFeed = "unsubscribe_feed"
	inboundPing            = "ping"
)

// Event is one frame pushed to connected clients
type Event struct {
	Type             EventType `json:"type"`
	ListingID        string    `json:"listing_id,omitempty"`
	UserID           string    `json:"user_id,omitempty"`
	ParticipantCount int       `json:"participant_count,omitempty"`
	Message          string    `json:"message,omitempty"`
	Data             any       `json:"data,omitempty"`
	Timestamp        int64     `json:"timestamp"`
}

// NewEvent stamps an event with the current time in milliseconds
func NewEvent(typ EventType, listingID string, data any) Event {
	return Event{Type: typ, ListingID: listingID, Data: data, Timestamp: time.Now().UnixMilli()}
}

// inboundFrame is a client request
type inboundFrame struct {
	Type      string `json:"type"`
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`
}

// BidUpdatePayload is the data of a bid_update event
type BidUpdatePayload struct {
	ListingID  string    `json:"listing_id"`
	BidID      string    `json:"bid_id"`
	BidderID   string    `json:"bidder_id"`
	Amount     string    `json:"amount"`
	CurrentBid string    `json:"current_bid"`
	BidCount   int       `json:"bid_count"`
	PlacedAt   time.Time `json:"placed_at"`
}

// Reasons carried by auction_ended
const (
	EndReasonSold     = "sold"
	EndReasonRejected = "rejected"
)

// AuctionEndedPayload is the data of an auction_ended event
type AuctionEndedPayload struct {
	ListingID  string     `json:"listing_id"`
	LotNumber  string     `json:"lot_number"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason"`
	WinnerID   string     `json:"winner_id,omitempty"`
	WinningBid string     `json:"winning_bid,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}
