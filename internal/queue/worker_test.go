package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
	"github.com/evently/booking-engine/internal/service"
)

type scriptedCoordinator struct {
	errs  []error
	calls int
}

func (c *scriptedCoordinator) CreateBooking(_ context.Context, req service.CreateBookingRequest) (*model.Booking, error) {
	var err error
	if c.calls < len(c.errs) {
		err = c.errs[c.calls]
	}
	c.calls++
	if err != nil {
		return nil, err
	}
	return &model.Booking{ID: 1, UserID: req.UserID, EventID: req.EventID, Status: model.BookingConfirmed}, nil
}

type recordingLocker struct {
	acquired []string
	released []string
	fail     error
}

func (l *recordingLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, error) {
	if l.fail != nil {
		return "", l.fail
	}
	l.acquired = append(l.acquired, key)
	return "token", nil
}

func (l *recordingLocker) Release(_ context.Context, key, _ string) error {
	l.released = append(l.released, key)
	return nil
}

// recordingAcker stands in for the broker side of a delivery.
type recordingAcker struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *recordingAcker) Ack(_ uint64, _ bool) error { a.acked = true; return nil }

func (a *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func testWorker(c Coordinator, l Locker) *Worker {
	return NewWorker(WorkerConfig{
		Concurrency: 1,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	}, c, l)
}

func TestBackoffDoubles(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, 500*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, time.Second, Backoff(base, 2))
	assert.Equal(t, 2*time.Second, Backoff(base, 3))
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		terminal bool
	}{
		{"event full", repository.ErrEventFull, true},
		{"seats unavailable", repository.ErrSeatsUnavailable, true},
		{"seats not held", repository.ErrSeatsNotHeld, true},
		{"event not found", repository.ErrEventNotFound, true},
		{"forbidden", repository.ErrForbidden, true},
		{"wrapped rejection", fmt.Errorf("attempt 2: %w", repository.ErrEventFull), true},
		{"exhausted coordinator", service.ErrBookingFailed, false},
		{"transport", errors.New("connection reset"), false},
		{"cancelled context", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, isTerminal(tt.err))
		})
	}
}

func TestProcessSucceedsFirstTry(t *testing.T) {
	coord := &scriptedCoordinator{}
	w := testWorker(coord, nil)

	job := &BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 2, Seats: 1}, MaxAttempts: 3}
	require.NoError(t, w.process(context.Background(), job))
	assert.Equal(t, 1, coord.calls)
	assert.Equal(t, 1, job.Attempts)
}

func TestProcessRetriesTransientErrors(t *testing.T) {
	coord := &scriptedCoordinator{errs: []error{
		errors.New("deadlock"),
		errors.New("deadlock"),
		nil,
	}}
	w := testWorker(coord, nil)

	job := &BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 2, Seats: 1}, MaxAttempts: 3}
	require.NoError(t, w.process(context.Background(), job))
	assert.Equal(t, 3, coord.calls)
	assert.Equal(t, 3, job.Attempts)
}

func TestProcessStopsOnTerminalRejection(t *testing.T) {
	coord := &scriptedCoordinator{errs: []error{repository.ErrEventFull}}
	w := testWorker(coord, nil)

	job := &BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 2, Seats: 1}, MaxAttempts: 3}
	err := w.process(context.Background(), job)
	assert.ErrorIs(t, err, repository.ErrEventFull)
	assert.Equal(t, 1, coord.calls, "business rejections are not retried")
}

func TestProcessExhaustsAttempts(t *testing.T) {
	boom := errors.New("broker hiccup")
	coord := &scriptedCoordinator{errs: []error{boom, boom, boom}}
	w := testWorker(coord, nil)

	job := &BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 2, Seats: 1}, MaxAttempts: 3}
	err := w.process(context.Background(), job)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, job.Attempts)
}

func TestHandleDeliveryRequeuesOnShutdown(t *testing.T) {
	coord := &scriptedCoordinator{errs: []error{context.Canceled}}
	w := testWorker(coord, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body, err := json.Marshal(BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 2, Seats: 1}, MaxAttempts: 3})
	require.NoError(t, err)
	ack := &recordingAcker{}
	w.handleDelivery(ctx, nil, amqp.Delivery{Acknowledger: ack, Body: body})

	assert.True(t, ack.nacked, "an interrupted job goes back to the broker")
	assert.True(t, ack.requeue, "the requeue flag must be set so the job is redelivered")
	assert.False(t, ack.acked, "an interrupted job must not be dropped with an ack")
}

func TestProcessStopsWhenContextCancelled(t *testing.T) {
	boom := errors.New("broker hiccup")
	coord := &scriptedCoordinator{errs: []error{boom, boom, boom}}
	w := testWorker(coord, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 2, Seats: 1}, MaxAttempts: 3}
	err := w.process(ctx, job)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, coord.calls, "retries stop once the context is cancelled")
}

func TestRunLockedUsesPerEventKey(t *testing.T) {
	coord := &scriptedCoordinator{}
	locker := &recordingLocker{}
	w := testWorker(coord, locker)

	job := &BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 42, Seats: 1}, MaxAttempts: 3}
	_, err := w.runLocked(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []string{"lock:event:42"}, locker.acquired)
	assert.Equal(t, []string{"lock:event:42"}, locker.released, "lock is released after the attempt")
}

func TestRunLockedPropagatesLockFailure(t *testing.T) {
	coord := &scriptedCoordinator{}
	locker := &recordingLocker{fail: errors.New("lock acquisition timed out")}
	w := testWorker(coord, locker)

	job := &BookingJob{JobID: "j1", Request: service.CreateBookingRequest{UserID: 1, EventID: 42, Seats: 1}, MaxAttempts: 3}
	_, err := w.runLocked(context.Background(), job)
	assert.Error(t, err)
	assert.Equal(t, 0, coord.calls, "the coordinator never runs without the lock")
}
