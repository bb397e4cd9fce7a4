package service

import (
	"context"
	"sync"
	"time"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
)

// memRunner serializes "transactions" with a mutex so concurrent test
// goroutines observe the same atomicity the real runner gets from the
// database. The fakes below validate before mutating, so a failed unit
// never leaves partial state behind and no rollback is needed.
type memRunner struct {
	mu sync.Mutex
}

func (r *memRunner) InTx(_ context.Context, fn func(q repository.Querier) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

// memStore is a shared in-memory dataset behind all store fakes.
type memStore struct {
	events   map[uint64]*model.Event
	seats    map[uint64]*model.Seat
	bookings map[uint64]*model.Booking
	links    map[uint64][]uint64 // bookingID -> seatIDs
	waitlist map[uint64][]model.WaitlistEntry
	nextID   uint64
	now      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[uint64]*model.Event),
		seats:    make(map[uint64]*model.Seat),
		bookings: make(map[uint64]*model.Booking),
		links:    make(map[uint64][]uint64),
		waitlist: make(map[uint64][]model.WaitlistEntry),
		nextID:   1,
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) addEvent(capacity int) *model.Event {
	ev := &model.Event{
		ID:                m.id(),
		Title:             "test event",
		StartsAt:          m.now.Add(24 * time.Hour),
		TotalCapacity:     capacity,
		AvailableCapacity: capacity,
		CreatedAt:         m.now,
	}
	m.events[ev.ID] = ev
	return ev
}

func (m *memStore) addSeat(eventID uint64, label string) *model.Seat {
	s := &model.Seat{ID: m.id(), EventID: eventID, Label: label, Status: model.SeatAvailable}
	m.seats[s.ID] = s
	return s
}

// fakeEvents implements EventStore and EventCatalog.
type fakeEvents struct{ m *memStore }

func (f *fakeEvents) GetByID(_ context.Context, _ repository.Querier, id uint64) (*model.Event, error) {
	ev, ok := f.m.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEvents) ReserveCapacity(_ context.Context, _ repository.Querier, eventID uint64, n int) error {
	ev, ok := f.m.events[eventID]
	if !ok {
		return repository.ErrEventNotFound
	}
	if ev.AvailableCapacity < n {
		return repository.ErrEventFull
	}
	ev.AvailableCapacity -= n
	return nil
}

func (f *fakeEvents) ReleaseCapacity(_ context.Context, _ repository.Querier, eventID uint64, n int) error {
	ev, ok := f.m.events[eventID]
	if !ok {
		return repository.ErrEventNotFound
	}
	ev.AvailableCapacity += n
	return nil
}

func (f *fakeEvents) Create(_ context.Context, _ repository.Querier, ev *model.Event) error {
	ev.ID = f.m.id()
	ev.CreatedAt = f.m.now
	cp := *ev
	f.m.events[ev.ID] = &cp
	return nil
}

func (f *fakeEvents) CreateSeats(_ context.Context, _ repository.Querier, eventID uint64, labels []string) error {
	for _, l := range labels {
		f.m.addSeat(eventID, l)
	}
	return nil
}

func (f *fakeEvents) List(_ context.Context, _ repository.Querier, limit, offset int) ([]model.Event, error) {
	out := make([]model.Event, 0, len(f.m.events))
	for _, ev := range f.m.events {
		out = append(out, *ev)
	}
	return out, nil
}

// fakeSeats implements SeatStore with the same all-or-nothing
// semantics as the SQL statements: validate the full set, then mutate.
type fakeSeats struct{ m *memStore }

func (f *fakeSeats) seatAvailable(s *model.Seat, now time.Time) bool {
	if s.Status == model.SeatAvailable {
		return true
	}
	return s.Status == model.SeatHeld && s.HeldUntil != nil && !s.HeldUntil.After(now)
}

func (f *fakeSeats) Hold(_ context.Context, _ repository.Querier, eventID uint64, seatIDs []uint64, userID uint64, heldUntil time.Time) error {
	now := time.Now().UTC()
	for _, id := range seatIDs {
		s, ok := f.m.seats[id]
		if !ok || s.EventID != eventID || !f.seatAvailable(s, now) {
			return repository.ErrSeatsUnavailable
		}
	}
	for _, id := range seatIDs {
		s := f.m.seats[id]
		s.Status = model.SeatHeld
		s.HeldBy = &userID
		hu := heldUntil
		s.HeldUntil = &hu
	}
	return nil
}

func (f *fakeSeats) ConfirmHeld(_ context.Context, _ repository.Querier, eventID uint64, seatIDs []uint64, userID uint64) error {
	now := time.Now().UTC()
	for _, id := range seatIDs {
		s, ok := f.m.seats[id]
		if !ok || s.EventID != eventID || s.Status != model.SeatHeld ||
			s.HeldBy == nil || *s.HeldBy != userID ||
			s.HeldUntil == nil || !s.HeldUntil.After(now) {
			return repository.ErrSeatsNotHeld
		}
	}
	for _, id := range seatIDs {
		s := f.m.seats[id]
		s.Status = model.SeatBooked
		s.HeldBy = nil
		s.HeldUntil = nil
	}
	return nil
}

func (f *fakeSeats) ReleaseHeld(_ context.Context, _ repository.Querier, eventID, userID uint64) (int, error) {
	released := 0
	for _, s := range f.m.seats {
		if s.EventID == eventID && s.Status == model.SeatHeld && s.HeldBy != nil && *s.HeldBy == userID {
			s.Status = model.SeatAvailable
			s.HeldBy = nil
			s.HeldUntil = nil
			released++
		}
	}
	return released, nil
}

func (f *fakeSeats) ReleaseBooked(_ context.Context, _ repository.Querier, eventID uint64, seatIDs []uint64) error {
	for _, id := range seatIDs {
		if s, ok := f.m.seats[id]; ok && s.EventID == eventID && s.Status == model.SeatBooked {
			s.Status = model.SeatAvailable
		}
	}
	return nil
}

func (f *fakeSeats) ListByEvent(_ context.Context, _ repository.Querier, eventID uint64) ([]model.Seat, error) {
	out := make([]model.Seat, 0)
	for _, s := range f.m.seats {
		if s.EventID == eventID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// fakeBookings implements BookingStore including the unique
// (user, event, key) constraint.
type fakeBookings struct{ m *memStore }

func (f *fakeBookings) Create(_ context.Context, _ repository.Querier, b *model.Booking) error {
	if b.IdempotencyKey != nil {
		for _, existing := range f.m.bookings {
			if existing.UserID == b.UserID && existing.EventID == b.EventID &&
				existing.IdempotencyKey != nil && *existing.IdempotencyKey == *b.IdempotencyKey {
				return repository.ErrDuplicateIdempotencyKey
			}
		}
	}
	b.ID = f.m.id()
	b.CreatedAt = f.m.now
	cp := *b
	f.m.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookings) AddSeats(_ context.Context, _ repository.Querier, bookingID uint64, seatIDs []uint64) error {
	f.m.links[bookingID] = append([]uint64(nil), seatIDs...)
	return nil
}

func (f *fakeBookings) SeatIDs(_ context.Context, _ repository.Querier, bookingID uint64) ([]uint64, error) {
	return append([]uint64(nil), f.m.links[bookingID]...), nil
}

func (f *fakeBookings) GetByID(_ context.Context, _ repository.Querier, id uint64) (*model.Booking, error) {
	b, ok := f.m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) GetByIDForUpdate(ctx context.Context, q repository.Querier, id uint64) (*model.Booking, error) {
	return f.GetByID(ctx, q, id)
}

func (f *fakeBookings) FindByIdempotencyKey(_ context.Context, _ repository.Querier, userID, eventID uint64, key string) (*model.Booking, error) {
	for _, b := range f.m.bookings {
		if b.UserID == userID && b.EventID == eventID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (f *fakeBookings) UpdateStatus(_ context.Context, _ repository.Querier, id uint64, status string) error {
	b, ok := f.m.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = status
	return nil
}

func (f *fakeBookings) ListByUser(_ context.Context, _ repository.Querier, userID uint64, limit, offset int) ([]model.Booking, error) {
	out := make([]model.Booking, 0)
	for _, b := range f.m.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

// fakeWaitlist implements WaitlistStore in FIFO order.
type fakeWaitlist struct{ m *memStore }

func (f *fakeWaitlist) Join(_ context.Context, _ repository.Querier, eventID, userID uint64) (*model.WaitlistEntry, error) {
	for _, e := range f.m.waitlist[eventID] {
		if e.UserID == userID {
			return nil, repository.ErrAlreadyWaitlisted
		}
	}
	entry := model.WaitlistEntry{EventID: eventID, UserID: userID, JoinedAt: f.m.now}
	f.m.now = f.m.now.Add(time.Millisecond)
	f.m.waitlist[eventID] = append(f.m.waitlist[eventID], entry)
	return &entry, nil
}

func (f *fakeWaitlist) Reinstate(_ context.Context, _ repository.Querier, entry *model.WaitlistEntry) error {
	list := f.m.waitlist[entry.EventID]
	for _, e := range list {
		if e.UserID == entry.UserID {
			return nil
		}
	}
	at := len(list)
	for i, e := range list {
		if entry.JoinedAt.Before(e.JoinedAt) {
			at = i
			break
		}
	}
	list = append(list, model.WaitlistEntry{})
	copy(list[at+1:], list[at:])
	list[at] = *entry
	f.m.waitlist[entry.EventID] = list
	return nil
}

func (f *fakeWaitlist) Leave(_ context.Context, _ repository.Querier, eventID, userID uint64) error {
	list := f.m.waitlist[eventID]
	for i, e := range list {
		if e.UserID == userID {
			f.m.waitlist[eventID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeWaitlist) PopNext(_ context.Context, _ repository.Querier, eventID uint64) (*model.WaitlistEntry, error) {
	list := f.m.waitlist[eventID]
	if len(list) == 0 {
		return nil, nil
	}
	head := list[0]
	f.m.waitlist[eventID] = list[1:]
	return &head, nil
}

func (f *fakeWaitlist) List(_ context.Context, _ repository.Querier, eventID uint64, limit, offset int) ([]model.WaitlistEntry, error) {
	return append([]model.WaitlistEntry(nil), f.m.waitlist[eventID]...), nil
}

// fakeEnqueuer records enqueued booking requests.
type fakeEnqueuer struct {
	mu   sync.Mutex
	reqs []CreateBookingRequest
	err  error
}

func (f *fakeEnqueuer) EnqueueBooking(_ context.Context, req CreateBookingRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.reqs = append(f.reqs, req)
	return "job-1", nil
}

func (f *fakeEnqueuer) enqueued() []CreateBookingRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreateBookingRequest(nil), f.reqs...)
}

// harness bundles a full in-memory service stack.
type harness struct {
	store    *memStore
	runner   *memRunner
	events   *fakeEvents
	seats    *fakeSeats
	bookings *fakeBookings
	waitlist *fakeWaitlist
}

func newHarness() *harness {
	m := newMemStore()
	return &harness{
		store:    m,
		runner:   &memRunner{},
		events:   &fakeEvents{m: m},
		seats:    &fakeSeats{m: m},
		bookings: &fakeBookings{m: m},
		waitlist: &fakeWaitlist{m: m},
	}
}

func (h *harness) bookingService() *BookingService {
	return NewBookingService(h.runner, h.events, h.seats, h.bookings)
}

func (h *harness) waitlistService(enq BookingEnqueuer) *WaitlistService {
	return NewWaitlistService(h.runner, h.events, h.waitlist, enq)
}
