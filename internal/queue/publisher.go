package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/evently/booking-engine/internal/service"
)

// Publisher enqueues booking jobs onto the durable request queue. It
// implements service.BookingEnqueuer.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher that dials the broker at url for
// each publish. Connections are short-lived on purpose: the publish
// path is low-volume compared to the consumer and a persistent channel
// would need its own reconnect handling.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// EnqueueBooking persists req as a job and returns its identifier. The
// queue is declared on every publish, which is idempotent and protects
// against publishing before any worker has started.
func (p *Publisher) EnqueueBooking(ctx context.Context, req service.CreateBookingRequest) (string, error) {
	job := BookingJob{
		JobID:       uuid.NewString(),
		Request:     req,
		MaxAttempts: DefaultMaxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("booking-queue: dial failed: %v", err)
		return "", err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("booking-queue: channel open failed: %v", err)
		return "", err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(RequestQueue, true, false, false, false, nil); err != nil {
		log.Printf("booking-queue: queue declare failed: %v", err)
		return "", err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.JobID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", RequestQueue, false, false, pub); err != nil {
		log.Printf("booking-queue: publish failed: %v", err)
		return "", err
	}
	return job.JobID, nil
}
