package notification

import (
	"auction-engine/internal/models"
	"auction-engine/internal/queue"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/internal/sms"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const deliveryTimeout = 30 * time.Second

// Store is the persistence the dispatcher needs
type Store interface {
	repository.NotificationStore
	repository.UserDirectory
}

// UserChannel pushes an event to every live connection of a user
type UserChannel interface {
	SendToUser(userID string, ev realtime.Event) int
}

// Publisher forwards notifications to the message bus
type Publisher interface {
	PublishNotification(ctx context.Context, ev queue.NotificationEvent) error
}

// Dispatcher persists notifications synchronously and delivers them in the background.
// Delivery failures are logged and never surface to the caller.
type Dispatcher struct {
	store     Store
	users     UserChannel
	sms       sms.Sender
	publisher Publisher

	jobs    chan models.Notification
	workers int
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewDispatcher creates a dispatcher; publisher may be nil
func NewDispatcher(store Store, users UserChannel, sender sms.Sender, publisher Publisher, workers, queueSize int) *Dispatcher {
	return &Dispatcher{
		store:     store,
		users:     users,
		sms:       sender,
		publisher: publisher,
		jobs:      make(chan models.Notification, queueSize),
		workers:   workers,
	}
}

// Start launches the delivery workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Close stops accepting deliveries and waits for queued ones to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
}

// Notify persists n and queues it for delivery. Only the persist step can fail.
func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.UserID == "" {
		return models.Notification{}, errors.New("notification: user id is required")
	}
	if n.NotificationID == "" {
		n.NotificationID = utils.GenerateID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.IsRead = false

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return models.Notification{}, fmt.Errorf("notification: persist for user %s: %w", n.UserID, err)
	}
	d.enqueue(n)
	return n, nil
}

func (d *Dispatcher) enqueue(n models.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		utils.Warn("notification: dispatcher closed, delivery skipped", map[string]any{
			"notification_id": n.NotificationID,
			"user_id":         n.UserID,
		})
		return
	}
	select {
	case d.jobs <- n:
	default:
		utils.Warn("notification: delivery queue full, delivery skipped", map[string]any{
			"notification_id": n.NotificationID,
			"user_id":         n.UserID,
		})
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.jobs {
		d.deliver(n)
	}
}

// deliver pushes one persisted notification through every channel independently
func (d *Dispatcher) deliver(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	connections := d.users.SendToUser(n.UserID, realtime.NewEvent(realtime.EventNotification, n.ListingID, n))

	if d.publisher != nil {
		if err := d.publisher.PublishNotification(ctx, queue.NewNotificationEvent(n)); err != nil {
			utils.Warn("notification: publish failed", map[string]any{
				"notification_id": n.NotificationID,
				"error":           err.Error(),
			})
		}
	}

	smsSent := d.sendSMS(ctx, n)

	utils.Debug("notification: delivered", map[string]any{
		"notification_id": n.NotificationID,
		"user_id":         n.UserID,
		"type":            n.Type,
		"connections":     connections,
		"sms":             smsSent,
	})
}

func (d *Dispatcher) sendSMS(ctx context.Context, n models.Notification) bool {
	user, err := d.store.GetUser(ctx, n.UserID)
	if err != nil {
		utils.Warn("notification: recipient lookup failed, sms skipped", map[string]any{
			"user_id": n.UserID,
			"error":   err.Error(),
		})
		return false
	}
	if user.Phone == "" {
		return false
	}
	if _, err := d.sms.Send(ctx, user.Phone, smsText(n)); err != nil {
		utils.Warn("notification: sms failed", map[string]any{
			"notification_id": n.NotificationID,
			"user_id":         n.UserID,
			"error":           err.Error(),
		})
		return false
	}
	return true
}

func smsText(n models.Notification) string {
	if n.Title == "" {
		return n.Message
	}
	return n.Title + ": " + n.Message
}

// List returns the user's notifications, newest first
func (d *Dispatcher) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return d.store.GetNotificationsByUser(ctx, userID)
}

// MarkRead flags one of the user's notifications as read
func (d *Dispatcher) MarkRead(ctx context.Context, userID, notificationID string) error {
	return d.store.MarkNotificationRead(ctx, userID, notificationID)
}
