package repository

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const listingColumns = `id, seller_id, lot_number, title, starting_price, reserve_price, current_bid, status,
	auction_duration_sec, auction_start_time, auction_end_time, ended_at, created_at`

// MySQLRepo implements AuctionDB on MySQL. Listing writes run in a transaction that holds the
// listing row lock (SELECT ... FOR UPDATE); the price raise is additionally a conditional UPDATE.
type MySQLRepo struct {
	db *sql.DB
}

// NewMySQLRepo returns a MySQLRepo bound to db
func NewMySQLRepo(db *sql.DB) *MySQLRepo { return &MySQLRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (models.Listing, error) {
	var (
		l                 models.Listing
		status            string
		durationSec       int64
		start, end, ended sql.NullTime
	)
	err := row.Scan(&l.ListingID, &l.SellerID, &l.LotNumber, &l.Title, &l.StartingPrice, &l.ReservePrice,
		&l.CurrentBid, &status, &durationSec, &start, &end, &ended, &l.CreatedAt)
	if err != nil {
		return models.Listing{}, err
	}
	l.Status = models.ListingStatus(status)
	l.AuctionDuration = time.Duration(durationSec) * time.Second
	l.AuctionStartTime = nullTimePtr(start)
	l.AuctionEndTime = nullTimePtr(end)
	l.EndedAt = nullTimePtr(ended)
	return l, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// CreateListing inserts a new listing
func (r *MySQLRepo) CreateListing(ctx context.Context, l models.Listing) error {
	const q = `INSERT INTO listings (` + listingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, l.ListingID, l.SellerID, l.LotNumber, l.Title, l.StartingPrice, l.ReservePrice,
		l.CurrentBid, string(l.Status), int64(l.AuctionDuration/time.Second), timeArg(l.AuctionStartTime),
		timeArg(l.AuctionEndTime), timeArg(l.EndedAt), l.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create listing %s: %w", l.ListingID, err)
	}
	return nil
}

// GetListing returns one listing
func (r *MySQLRepo) GetListing(ctx context.Context, listingID string) (models.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, listingID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Listing{}, fmt.Errorf("get listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	if err != nil {
		return models.Listing{}, fmt.Errorf("get listing %s: %w", listingID, err)
	}
	return l, nil
}

// ListListings returns listings matching filter ordered by creation time
func (r *MySQLRepo) ListListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ",")+")")
	}
	if filter.EndsBy != nil {
		where = append(where, "auction_end_time IS NOT NULL AND auction_end_time <= ?")
		args = append(args, filter.EndsBy.UTC())
	}
	if filter.EndedSince != nil {
		where = append(where, "ended_at IS NOT NULL AND ended_at >= ?")
		args = append(args, filter.EndedSince.UTC())
	}
	q := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("list listings: scan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// WithListing runs fn inside a transaction holding the listing's row lock
func (r *MySQLRepo) WithListing(ctx context.Context, listingID string, fn func(tx ListingTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("with listing %s: begin: %w", listingID, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	l, err := scanListing(tx.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ? FOR UPDATE`, listingID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("with listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	if err != nil {
		return fmt.Errorf("with listing %s: lock: %w", listingID, err)
	}

	if err := fn(&sqlListingTx{ctx: ctx, tx: tx, listing: l}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("with listing %s: commit: %w", listingID, err)
	}
	committed = true
	return nil
}

type sqlListingTx struct {
	ctx     context.Context
	tx      *sql.Tx
	listing models.Listing
}

func (s *sqlListingTx) Listing() models.Listing { return s.listing }

func (s *sqlListingTx) Bids() ([]models.Bid, error) {
	return queryBids(s.ctx, s.tx, s.listing.ListingID)
}

func (s *sqlListingTx) AppendBid(bid models.Bid) error {
	res, err := s.tx.ExecContext(s.ctx,
		`UPDATE listings SET current_bid = ?
		 WHERE id = ? AND status = ? AND ? > GREATEST(starting_price, COALESCE(current_bid, starting_price))`,
		bid.Amount, s.listing.ListingID, string(models.StatusActive), bid.Amount)
	if err != nil {
		return fmt.Errorf("append bid: raise price: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("append bid: rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("append bid to listing %s: %w", s.listing.ListingID, biddingerrors.ErrStaleWrite)
	}
	if _, err := s.tx.ExecContext(s.ctx,
		`INSERT INTO bids (id, listing_id, user_id, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		bid.BidID, bid.ListingID, bid.UserID, bid.Amount, bid.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("append bid: insert: %w", err)
	}
	s.listing.CurrentBid = decimal.NewNullDecimal(bid.Amount)
	return nil
}

func (s *sqlListingTx) Activate(start, end time.Time) error {
	if !s.listing.Status.CanTransitionTo(models.StatusActive) {
		return fmt.Errorf("activate listing %s from %s: %w", s.listing.ListingID, s.listing.Status, biddingerrors.ErrInvalidTransition)
	}
	if _, err := s.tx.ExecContext(s.ctx,
		`UPDATE listings SET status = ?, auction_start_time = ?, auction_end_time = ? WHERE id = ?`,
		string(models.StatusActive), start.UTC(), end.UTC(), s.listing.ListingID); err != nil {
		return fmt.Errorf("activate listing %s: %w", s.listing.ListingID, err)
	}
	s.listing.Status = models.StatusActive
	s.listing.AuctionStartTime = &start
	s.listing.AuctionEndTime = &end
	return nil
}

func (s *sqlListingTx) Restart(lotNumber string, start, end time.Time) error {
	if s.listing.Status != models.StatusActive {
		return fmt.Errorf("restart listing %s from %s: %w", s.listing.ListingID, s.listing.Status, biddingerrors.ErrInvalidTransition)
	}
	if _, err := s.tx.ExecContext(s.ctx, `DELETE FROM bids WHERE listing_id = ?`, s.listing.ListingID); err != nil {
		return fmt.Errorf("restart listing %s: clear bids: %w", s.listing.ListingID, err)
	}
	if _, err := s.tx.ExecContext(s.ctx,
		`UPDATE listings SET current_bid = starting_price, lot_number = ?, auction_start_time = ?, auction_end_time = ?
		 WHERE id = ? AND status = ?`,
		lotNumber, start.UTC(), end.UTC(), s.listing.ListingID, string(models.StatusActive)); err != nil {
		return fmt.Errorf("restart listing %s: %w", s.listing.ListingID, err)
	}
	s.listing.CurrentBid = decimal.NewNullDecimal(s.listing.StartingPrice)
	s.listing.LotNumber = lotNumber
	s.listing.AuctionStartTime = &start
	s.listing.AuctionEndTime = &end
	return nil
}

func (s *sqlListingTx) SetStatus(status models.ListingStatus, endedAt *time.Time) error {
	if !s.listing.Status.CanTransitionTo(status) {
		return fmt.Errorf("set listing %s status %s -> %s: %w", s.listing.ListingID, s.listing.Status, status, biddingerrors.ErrInvalidTransition)
	}
	if _, err := s.tx.ExecContext(s.ctx,
		`UPDATE listings SET status = ?, ended_at = COALESCE(?, ended_at) WHERE id = ?`,
		string(status), timeArg(endedAt), s.listing.ListingID); err != nil {
		return fmt.Errorf("set listing %s status: %w", s.listing.ListingID, err)
	}
	s.listing.Status = status
	if endedAt != nil {
		t := *endedAt
		s.listing.EndedAt = &t
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryBids(ctx context.Context, q queryer, listingID string) ([]models.Bid, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, listing_id, user_id, amount, created_at FROM bids WHERE listing_id = ? ORDER BY created_at, id`, listingID)
	if err != nil {
		return nil, fmt.Errorf("query bids for listing %s: %w", listingID, err)
	}
	defer rows.Close()
	var bids []models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.BidID, &b.ListingID, &b.UserID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("query bids for listing %s: scan: %w", listingID, err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// GetBidsByListing returns all bids for a listing
func (r *MySQLRepo) GetBidsByListing(ctx context.Context, listingID string) ([]models.Bid, error) {
	bids, err := queryBids(ctx, r.db, listingID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for a listing
func (r *MySQLRepo) GetWinningBid(ctx context.Context, listingID string) (models.Bid, error) {
	var b models.Bid
	err := r.db.QueryRowContext(ctx,
		`SELECT id, listing_id, user_id, amount, created_at FROM bids WHERE listing_id = ?
		 ORDER BY amount DESC, created_at ASC LIMIT 1`, listingID).
		Scan(&b.BidID, &b.ListingID, &b.UserID, &b.Amount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bid{}, fmt.Errorf("get winning bid for listing %s: %w", listingID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return models.Bid{}, fmt.Errorf("get winning bid for listing %s: %w", listingID, err)
	}
	return b, nil
}

// CountBids returns the ledger size per listing id; unknown ids count zero
func (r *MySQLRepo) CountBids(ctx context.Context, listingIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(listingIDs))
	if len(listingIDs) == 0 {
		return counts, nil
	}
	marks := make([]string, len(listingIDs))
	args := make([]any, len(listingIDs))
	for i, id := range listingIDs {
		marks[i] = "?"
		args[i] = id
		counts[id] = 0
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT listing_id, COUNT(*) FROM bids WHERE listing_id IN (`+strings.Join(marks, ",")+`) GROUP BY listing_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("count bids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("count bids: scan: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// GetListingsByBidder returns all listings a user has bid on
func (r *MySQLRepo) GetListingsByBidder(ctx context.Context, userID string) ([]models.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id IN (SELECT DISTINCT listing_id FROM bids WHERE user_id = ?) ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("get listings for user %s: %w", userID, err)
	}
	defer rows.Close()
	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("get listings for user %s: scan: %w", userID, err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("get listings for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	return listings, nil
}

// CreateNotification persists a notification
func (r *MySQLRepo) CreateNotification(ctx context.Context, n models.Notification) error {
	var listingID any
	if n.ListingID != "" {
		listingID = n.ListingID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, listing_id, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.NotificationID, n.UserID, string(n.Type), n.Title, n.Message, listingID, n.IsRead, n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create notification for user %s: %w", n.UserID, err)
	}
	return nil
}

// GetNotificationsByUser returns a user's notifications, newest first
func (r *MySQLRepo) GetNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, title, message, listing_id, is_read, created_at FROM notifications
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("get notifications for user %s: %w", userID, err)
	}
	defer rows.Close()
	out := make([]models.Notification, 0)
	for rows.Next() {
		var (
			n         models.Notification
			typ       string
			listingID sql.NullString
		)
		if err := rows.Scan(&n.NotificationID, &n.UserID, &typ, &n.Title, &n.Message, &listingID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("get notifications for user %s: scan: %w", userID, err)
		}
		n.Type = models.NotificationType(typ)
		n.ListingID = listingID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications as read
func (r *MySQLRepo) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM notifications WHERE id = ? AND user_id = ?)`, notificationID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", notificationID, err)
	}
	if !exists {
		return fmt.Errorf("mark notification %s read: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`, notificationID, userID); err != nil {
		return fmt.Errorf("mark notification %s read: %w", notificationID, err)
	}
	return nil
}

// GetUser returns one user
func (r *MySQLRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `SELECT id, full_name, phone, role, is_active FROM users WHERE id = ?`, userID).
		Scan(&u.UserID, &u.FullName, &u.Phone, &u.Role, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}
