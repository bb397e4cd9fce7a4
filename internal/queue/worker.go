package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
	"github.com/evently/booking-engine/internal/service"
)

// Coordinator is the slice of the booking service the worker needs.
type Coordinator interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error)
}

// Locker serializes workers processing jobs for the same event. The
// lock only reduces live contention on the inventory counters; the
// store's atomic updates stay correct without it, so a missing locker
// simply disables the optimization.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

// WorkerConfig tunes the consumer pool.
type WorkerConfig struct {
	URL         string
	Concurrency int
	LockTTL     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

// Worker consumes booking jobs, runs them through the coordinator and
// owns the retry/dead-letter policy. Messages are acknowledged by the
// worker itself; redelivery of failures is handled by republishing,
// not by broker requeueing, so a poisoned job cannot loop forever.
// Broker requeueing is used only for jobs cut short by shutdown.
type Worker struct {
	cfg         WorkerConfig
	coordinator Coordinator
	locker      Locker
}

// NewWorker builds a worker pool. locker may be nil.
func NewWorker(cfg WorkerConfig, coordinator Coordinator, locker Locker) *Worker {
	if coordinator == nil {
		panic("nil coordinator passed to NewWorker")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	return &Worker{cfg: cfg, coordinator: coordinator, locker: locker}
}

// Run connects to the broker and consumes until ctx is cancelled. The
// reconnect loop backs off exponentially up to 30s and resets after a
// successful connection.
func (w *Worker) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(w.cfg.URL)
		if err != nil {
			log.Printf("booking-worker: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = w.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("booking-worker: consume loop ended: %v; reconnecting", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(w.cfg.Concurrency*2, 0, false); err != nil {
		log.Printf("booking-worker: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(RequestQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("dead-letter declare: %w", err)
	}

	msgs, err := ch.Consume(RequestQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				w.handleDelivery(ctx, ch, d)
			}
		}()
	}

	// Closing the channel ends the deliveries range above, so the pool
	// drains and Run can return on shutdown instead of blocking here.
	watcherDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-watcherDone:
		}
	}()
	wg.Wait()
	close(watcherDone)
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("deliveries channel closed")
}

// handleDelivery processes one message end to end and acknowledges
// it. Failures beyond the retry budget are parked on the dead-letter
// queue first. A job interrupted by shutdown is requeued unacked so
// the broker redelivers it after restart.
func (w *Worker) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	var job BookingJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("booking-worker: malformed job, dead-lettering: %v", err)
		w.deadLetter(ctx, ch, BookingJob{JobID: d.MessageId}, fmt.Errorf("malformed payload: %w", err))
		_ = d.Ack(false)
		return
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = w.cfg.MaxAttempts
	}

	if err := w.process(ctx, &job); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The job failed only because the worker is shutting
			// down, not on its own merits.
			_ = d.Nack(false, true)
			return
		}
		if isTerminal(err) {
			// Business rejection: the job is done, the outcome is a
			// recorded "no". Dead-lettering would imply operator action.
			log.Printf("booking-worker: job %s rejected: %v", job.JobID, err)
		} else {
			log.Printf("booking-worker: job %s failed after %d attempts: %v", job.JobID, job.Attempts, err)
			w.deadLetter(ctx, ch, job, err)
		}
	}
	_ = d.Ack(false)
}

// process retries the booking transaction with exponential backoff
// until it succeeds, hits a terminal business rejection, or exhausts
// the attempt budget.
func (w *Worker) process(ctx context.Context, job *BookingJob) error {
	var lastErr error
	for job.Attempts < job.MaxAttempts {
		if job.Attempts > 0 {
			delay := Backoff(w.cfg.BackoffBase, job.Attempts)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		job.Attempts++

		booking, err := w.runLocked(ctx, job)
		if err == nil {
			log.Printf("booking-worker: job %s confirmed booking %d (event %d, user %d)",
				job.JobID, booking.ID, booking.EventID, booking.UserID)
			return nil
		}
		if isTerminal(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// runLocked executes one coordinator attempt under the per-event lock.
// The release runs in a deferred path so a panicking or failing
// handler cannot leak the lock; even then the TTL bounds staleness.
func (w *Worker) runLocked(ctx context.Context, job *BookingJob) (*model.Booking, error) {
	if w.locker != nil {
		key := fmt.Sprintf("lock:event:%d", job.Request.EventID)
		token, err := w.locker.Acquire(ctx, key, w.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := w.locker.Release(ctx, key, token); err != nil {
				log.Printf("booking-worker: lock release for %s failed: %v", key, err)
			}
		}()
	}
	return w.coordinator.CreateBooking(ctx, job.Request)
}

// deadLetter parks the job on the durable dead-letter queue.
func (w *Worker) deadLetter(ctx context.Context, ch *amqp.Channel, job BookingJob, cause error) {
	body, err := json.Marshal(DeadLetter{Job: job, Error: cause.Error(), FailedAt: time.Now().UTC()})
	if err != nil {
		log.Printf("booking-worker: marshal dead letter: %v", err)
		return
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.JobID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", DeadLetterQueue, false, false, pub); err != nil {
		log.Printf("booking-worker: dead-letter publish failed for job %s: %v", job.JobID, err)
	}
}

// Backoff returns the delay before the given retry, doubling from base
// on each attempt: base, 2*base, 4*base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// isTerminal reports whether err is a business rejection that must not
// be retried. Everything else — transport failures, exhausted
// coordinator retries, lock timeouts — is worth another attempt.
func isTerminal(err error) bool {
	return errors.Is(err, repository.ErrEventFull) ||
		errors.Is(err, repository.ErrSeatsUnavailable) ||
		errors.Is(err, repository.ErrSeatsNotHeld) ||
		errors.Is(err, repository.ErrEventNotFound) ||
		errors.Is(err, repository.ErrForbidden)
}
