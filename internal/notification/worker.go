package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"hostel-allocation-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool delivers allocation notifications to subscribed students. Jobs
// are student ids; each worker resolves the student's live allocation and
// pushes to every subscription they registered.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification worker %d started", id)
	for {
		select {
		case studentID := <-wp.jobs:
			wp.notifyStudent(ctx, studentID)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// AllocationConfirmed queues a notification for the student. Never blocks:
// if the queue is full the notification is dropped with a log line, since
// pushes are best-effort and must not stall an allocation run.
func (wp *WorkerPool) AllocationConfirmed(studentID string) {
	select {
	case wp.jobs <- studentID:
	default:
		log.Printf("notification queue full, dropping notification for student %s", studentID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

func (wp *WorkerPool) notifyStudent(ctx context.Context, studentID string) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("error fetching subscriptions for student %s: %v", studentID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var alloc model.Allocation
	err = wp.db.WithContext(ctx).
		Preload("Hostel").
		Preload("Room").
		Where("student_id = ? AND status IN ?", studentID, model.LiveAllocationStatuses).
		Order("allocation_date DESC").
		First(&alloc).Error
	if err != nil {
		log.Printf("error fetching allocation for student %s: %v", studentID, err)
		return
	}

	message := fmt.Sprintf("You have been allocated a bed space: %s, room %s, bed %d.",
		alloc.Hostel.Name, alloc.Room.RoomNumber, alloc.BedSpaceNumber)

	log.Printf("sending %d notifications for student %s", len(subscriptions), studentID)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Push services answer 410 Gone once a subscription lapses.
	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s is expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
