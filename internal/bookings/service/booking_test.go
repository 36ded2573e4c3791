package service

import (
	"context"
	"io"
	"testing"
	"time"

	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/internal/bookings/validator"
	catalogrepo "studiobook/internal/catalog/repository"
	"studiobook/pkg/config"
	mongotx "studiobook/pkg/db/mongo"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/logger"
	"studiobook/pkg/model"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type fakeBookingRepo struct {
	bookings map[string]*model.Booking
	// transitionHook runs before TransitionStatus checks its precondition,
	// to simulate a concurrent writer landing first.
	transitionHook func()
	createErr      error
	nextID         int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, booking *model.Booking) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.bookings {
		if existing.Status != model.BookingCanceled &&
			existing.ServiceID == booking.ServiceID &&
			existing.StartAt.Equal(booking.StartAt) {
			return bookingserrors.ErrDuplicateSlot
		}
	}
	r.nextID++
	booking.ID = string(rune('a' + r.nextID - 1))
	booking.CreatedAt = testNow
	clone := *booking
	r.bookings[booking.ID] = &clone
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	booking, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	clone := *booking
	return &clone, nil
}

func (r *fakeBookingRepo) TransitionStatus(_ context.Context, id string, from, to model.BookingStatus, entry model.HistoryEntry) (*model.Booking, error) {
	if r.transitionHook != nil {
		r.transitionHook()
		r.transitionHook = nil
	}
	booking, ok := r.bookings[id]
	if !ok || booking.Status != from {
		return nil, bookingserrors.ErrStatusMismatch
	}
	booking.Status = to
	booking.History = append(booking.History, entry)
	clone := *booking
	return &clone, nil
}

func (r *fakeBookingRepo) MarkReminded(_ context.Context, id string, at time.Time) (bool, error) {
	booking, ok := r.bookings[id]
	if !ok || booking.Reminder != nil {
		return false, nil
	}
	booking.Reminder = &model.ReminderMark{SentAt: at}
	return true, nil
}

func (r *fakeBookingRepo) BookedStarts(_ context.Context, _ string, _, _ time.Time) (map[int64]struct{}, error) {
	return nil, nil
}

func (r *fakeBookingRepo) HasActiveBooking(_ context.Context, serviceID string, startAt time.Time) (bool, error) {
	for _, existing := range r.bookings {
		if existing.Status != model.BookingCanceled &&
			existing.ServiceID == serviceID &&
			existing.StartAt.Equal(startAt) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepo) FindConfirmedStartingBetween(_ context.Context, from, to time.Time) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.Status == model.BookingConfirmed && !b.StartAt.Before(from) && b.StartAt.Before(to) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindReadyToComplete(_ context.Context, endedBefore time.Time) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.Status == model.BookingConfirmed && !b.EndAt.After(endedBefore) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindStaleRequested(_ context.Context, createdBefore time.Time) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.Status == model.BookingRequested && !b.CreatedAt.After(createdBefore) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type fakeCatalog struct {
	offerings map[string]*model.ServiceOffering
}

func (c *fakeCatalog) FindByID(_ context.Context, id string) (*model.ServiceOffering, error) {
	offering, ok := c.offerings[id]
	if !ok {
		return nil, catalogrepo.ErrNotFound
	}
	return offering, nil
}

type fakeAvailability struct {
	available bool
}

func (a *fakeAvailability) GetConfig(_ context.Context) (*model.AvailabilityConfig, error) {
	return nil, nil
}

func (a *fakeAvailability) ReplaceConfig(_ context.Context, cfg *model.AvailabilityConfig) (*model.AvailabilityConfig, error) {
	return cfg, nil
}

func (a *fakeAvailability) SlotsForDate(_ context.Context, _ string, _ string, _ time.Time) ([]model.Slot, error) {
	return nil, nil
}

func (a *fakeAvailability) IsSlotAvailable(_ context.Context, _ string, _ time.Time) (bool, error) {
	return a.available, nil
}

type recordingSink struct {
	events []model.Event
}

func (s *recordingSink) Emit(_ context.Context, event model.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	return nil
}

type fixture struct {
	svc     *bookingService
	repo    *fakeBookingRepo
	catalog *fakeCatalog
	avail   *fakeAvailability
	sink    *recordingSink
}

func newFixture() *fixture {
	cfg := &config.Config{
		DefaultSlotMinutes:       60,
		DefaultCancelBeforeHours: 24,
		DefaultChangeBeforeHours: 24,
		DefaultNoShowAfterMin:    15,
		Log:                      logger.New(logger.Config{Output: io.Discard}),
	}
	repo := newFakeBookingRepo()
	catalog := &fakeCatalog{offerings: map[string]*model.ServiceOffering{
		"svc-a": {
			ID:          "svc-a",
			Name:        "Rehearsal room",
			DurationMin: 60,
			Policy:      model.PolicySnapshot{CancelBeforeHours: 24, ChangeBeforeHours: 24, NoShowAfterMin: 15},
			Active:      true,
		},
		"svc-off": {ID: "svc-off", Name: "Retired", Active: false},
	}}
	avail := &fakeAvailability{available: true}
	sink := &recordingSink{}

	svc := NewBookingService(repo, catalog, avail, validator.NewBookingValidator(cfg.Log), sink, cfg).(*bookingService)
	svc.now = func() time.Time { return testNow }
	return &fixture{svc: svc, repo: repo, catalog: catalog, avail: avail, sink: sink}
}

func baseBooking(start time.Time) *model.Booking {
	return &model.Booking{
		ServiceID:  "svc-a",
		CustomerID: "cust-1",
		StartAt:    start,
		Source:     "web",
	}
}

func (f *fixture) mustCreate(t *testing.T, start time.Time) *model.Booking {
	t.Helper()
	booking := baseBooking(start)
	if err := f.svc.Create(context.Background(), booking, model.CustomerActor("cust-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return booking
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestCreateBooking(t *testing.T) {
	f := newFixture()
	start := testNow.Add(72 * time.Hour)
	booking := f.mustCreate(t, start)

	if booking.ID == "" {
		t.Error("expected assigned ID")
	}
	if booking.Code == "" {
		t.Error("expected generated booking code")
	}
	if booking.Status != model.BookingRequested {
		t.Errorf("status = %s, want requested", booking.Status)
	}
	if !booking.EndAt.Equal(start.Add(time.Hour)) {
		t.Errorf("end = %v, want %v", booking.EndAt, start.Add(time.Hour))
	}
	if booking.Policy.CancelBeforeHours != 24 {
		t.Errorf("policy not snapshotted: %+v", booking.Policy)
	}
	if len(booking.History) != 1 || booking.History[0].To != model.BookingRequested {
		t.Errorf("expected creation history entry, got %+v", booking.History)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != model.EventBookingCreated {
		t.Errorf("expected created event, got %+v", f.sink.events)
	}
}

func TestCreateBookingErrors(t *testing.T) {
	start := testNow.Add(72 * time.Hour)

	t.Run("unknown service", func(t *testing.T) {
		f := newFixture()
		booking := baseBooking(start)
		booking.ServiceID = "missing"
		err := f.svc.Create(context.Background(), booking, model.CustomerActor("cust-1"))
		assertCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("inactive service", func(t *testing.T) {
		f := newFixture()
		booking := baseBooking(start)
		booking.ServiceID = "svc-off"
		err := f.svc.Create(context.Background(), booking, model.CustomerActor("cust-1"))
		assertCode(t, err, apperrors.CodeInvalidInput)
	})

	t.Run("past start time", func(t *testing.T) {
		f := newFixture()
		booking := baseBooking(testNow.Add(-time.Hour))
		err := f.svc.Create(context.Background(), booking, model.CustomerActor("cust-1"))
		assertCode(t, err, apperrors.CodeValidation)
	})

	t.Run("slot not available", func(t *testing.T) {
		f := newFixture()
		f.avail.available = false
		err := f.svc.Create(context.Background(), baseBooking(start), model.CustomerActor("cust-1"))
		assertCode(t, err, apperrors.CodeConflict)
	})

	t.Run("duplicate slot", func(t *testing.T) {
		f := newFixture()
		f.mustCreate(t, start)
		err := f.svc.Create(context.Background(), baseBooking(start), model.CustomerActor("cust-2"))
		assertCode(t, err, apperrors.CodeConflict)
	})
}

func TestTransitionConfirm(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(72*time.Hour))

	updated, err := f.svc.Transition(context.Background(), booking.ID, ActionConfirm, model.AdminActor("admin-1"), "")
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if updated.Status != model.BookingConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
	if len(updated.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(updated.History))
	}
	last := updated.History[1]
	if last.From != model.BookingRequested || last.To != model.BookingConfirmed {
		t.Errorf("history entry = %+v", last)
	}
	if last.By.Kind != model.ActorAdmin {
		t.Errorf("history actor = %+v", last.By)
	}
}

func TestTransitionIdempotent(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(72*time.Hour))
	if _, err := f.svc.Transition(context.Background(), booking.ID, ActionConfirm, model.AdminActor("admin-1"), ""); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	again, err := f.svc.Transition(context.Background(), booking.ID, ActionConfirm, model.AdminActor("admin-1"), "")
	if err != nil {
		t.Fatalf("repeated confirm failed: %v", err)
	}
	if again.Status != model.BookingConfirmed {
		t.Errorf("status = %s, want confirmed", again.Status)
	}
	if len(again.History) != 2 {
		t.Errorf("idempotent repeat must not append history, got %d entries", len(again.History))
	}
}

func TestTransitionInvalid(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(72*time.Hour))

	// requested -> completed is not a legal edge.
	_, err := f.svc.Transition(context.Background(), booking.ID, ActionComplete, model.AdminActor("admin-1"), "")
	assertCode(t, err, apperrors.CodeConflict)

	_, err = f.svc.Transition(context.Background(), "missing", ActionConfirm, model.AdminActor("admin-1"), "")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCancelCutoff(t *testing.T) {
	f := newFixture()
	// Starts in 12h, cancel window is 24h: customers are inside the cutoff.
	booking := f.mustCreate(t, testNow.Add(12*time.Hour))

	_, err := f.svc.Transition(context.Background(), booking.ID, ActionCancel, model.CustomerActor("cust-1"), "changed my mind")
	assertCode(t, err, apperrors.CodePolicyCutoff)

	// Admin and system actors bypass the customer cutoff.
	updated, err := f.svc.Transition(context.Background(), booking.ID, ActionCancel, model.AdminActor("admin-1"), "operational")
	if err != nil {
		t.Fatalf("admin cancel failed: %v", err)
	}
	if updated.Status != model.BookingCanceled {
		t.Errorf("status = %s, want canceled", updated.Status)
	}
}

func TestCancelOutsideCutoff(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(72*time.Hour))

	updated, err := f.svc.Transition(context.Background(), booking.ID, ActionCancel, model.CustomerActor("cust-1"), "")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.Status != model.BookingCanceled {
		t.Errorf("status = %s, want canceled", updated.Status)
	}

	// Double cancel is an idempotent success.
	again, err := f.svc.Transition(context.Background(), booking.ID, ActionCancel, model.CustomerActor("cust-1"), "")
	if err != nil {
		t.Fatalf("double cancel failed: %v", err)
	}
	if again.Status != model.BookingCanceled {
		t.Errorf("status = %s, want canceled", again.Status)
	}
}

func TestCompleteCutoff(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(2*time.Hour))
	if _, err := f.svc.Transition(context.Background(), booking.ID, ActionConfirm, model.AdminActor("admin-1"), ""); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// Still before the end time.
	_, err := f.svc.Transition(context.Background(), booking.ID, ActionComplete, model.SystemActor("auto_complete"), "")
	assertCode(t, err, apperrors.CodePolicyCutoff)

	f.svc.now = func() time.Time { return testNow.Add(4 * time.Hour) }
	updated, err := f.svc.Transition(context.Background(), booking.ID, ActionComplete, model.SystemActor("auto_complete"), "")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if updated.Status != model.BookingCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
}

func TestNoShowCutoff(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(2*time.Hour))
	if _, err := f.svc.Transition(context.Background(), booking.ID, ActionConfirm, model.AdminActor("admin-1"), ""); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// Less than no_show_after_min past the start.
	f.svc.now = func() time.Time { return testNow.Add(2*time.Hour + 10*time.Minute) }
	_, err := f.svc.Transition(context.Background(), booking.ID, ActionNoShow, model.AdminActor("admin-1"), "")
	assertCode(t, err, apperrors.CodePolicyCutoff)

	f.svc.now = func() time.Time { return testNow.Add(2*time.Hour + 20*time.Minute) }
	updated, err := f.svc.Transition(context.Background(), booking.ID, ActionNoShow, model.AdminActor("admin-1"), "")
	if err != nil {
		t.Fatalf("no-show failed: %v", err)
	}
	if updated.Status != model.BookingNoShow {
		t.Errorf("status = %s, want no_show", updated.Status)
	}
}

func TestTransitionRaceResolution(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(72*time.Hour))

	// Another writer confirms between our read and the conditional update:
	// the update matches nothing, the refetch sees the target status
	// already applied and the call reports success.
	stored := f.repo.bookings[booking.ID]
	f.repo.transitionHook = func() {
		stored.Status = model.BookingConfirmed
	}
	updated, err := f.svc.Transition(context.Background(), booking.ID, ActionConfirm, model.AdminActor("admin-1"), "")
	if err != nil {
		t.Fatalf("racy confirm failed: %v", err)
	}
	if updated.Status != model.BookingConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
}

func TestReschedule(t *testing.T) {
	f := newFixture()
	booking := f.mustCreate(t, testNow.Add(72*time.Hour))
	if _, err := f.svc.Transition(context.Background(), booking.ID, ActionConfirm, model.AdminActor("admin-1"), ""); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	newStart := testNow.Add(96 * time.Hour)
	replacement, err := f.svc.Reschedule(context.Background(), booking.ID, newStart, model.CustomerActor("cust-1"), "")
	if err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}

	if replacement.RescheduleOf != booking.ID {
		t.Errorf("reschedule_of = %q, want %q", replacement.RescheduleOf, booking.ID)
	}
	if replacement.Status != model.BookingConfirmed {
		t.Errorf("replacement status = %s, want carried-over confirmed", replacement.Status)
	}
	if !replacement.EndAt.Equal(newStart.Add(time.Hour)) {
		t.Errorf("replacement end = %v, want duration preserved", replacement.EndAt)
	}
	if replacement.Code == booking.Code {
		t.Error("replacement must get its own code")
	}

	original, err := f.svc.GetByID(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if original.Status != model.BookingCanceled {
		t.Errorf("original status = %s, want canceled", original.Status)
	}
	last := original.History[len(original.History)-1]
	if last.Reason != "reschedule" {
		t.Errorf("cancel reason = %q, want \"reschedule\"", last.Reason)
	}
}

func TestRescheduleErrors(t *testing.T) {
	t.Run("customer inside change cutoff", func(t *testing.T) {
		f := newFixture()
		booking := f.mustCreate(t, testNow.Add(12*time.Hour))
		_, err := f.svc.Reschedule(context.Background(), booking.ID, testNow.Add(96*time.Hour), model.CustomerActor("cust-1"), "")
		assertCode(t, err, apperrors.CodePolicyCutoff)
	})

	t.Run("target slot taken leaves original intact", func(t *testing.T) {
		f := newFixture()
		booking := f.mustCreate(t, testNow.Add(72*time.Hour))
		taken := f.mustCreate(t, testNow.Add(96*time.Hour))

		f.avail.available = false
		_, err := f.svc.Reschedule(context.Background(), booking.ID, taken.StartAt, model.AdminActor("admin-1"), "")
		assertCode(t, err, apperrors.CodeConflict)

		original, err := f.svc.GetByID(context.Background(), booking.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if original.Status != model.BookingRequested {
			t.Errorf("original status = %s, want untouched requested", original.Status)
		}
	})

	t.Run("terminal booking", func(t *testing.T) {
		f := newFixture()
		booking := f.mustCreate(t, testNow.Add(72*time.Hour))
		if _, err := f.svc.Transition(context.Background(), booking.ID, ActionCancel, model.AdminActor("admin-1"), ""); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		_, err := f.svc.Reschedule(context.Background(), booking.ID, testNow.Add(96*time.Hour), model.AdminActor("admin-1"), "")
		assertCode(t, err, apperrors.CodeConflict)
	})

	t.Run("past new start", func(t *testing.T) {
		f := newFixture()
		booking := f.mustCreate(t, testNow.Add(72*time.Hour))
		_, err := f.svc.Reschedule(context.Background(), booking.ID, testNow.Add(-time.Hour), model.AdminActor("admin-1"), "")
		assertCode(t, err, apperrors.CodeInvalidInput)
	})
}
