package jobs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"studiobook/internal/bookings/repository"
	"studiobook/internal/bookings/service"
	"studiobook/internal/joblock"
	orderrepo "studiobook/internal/orders/repository"
	"studiobook/pkg/config"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/logger"
	"studiobook/pkg/model"
	"studiobook/pkg/timeutil"
)

var (
	jobsZone = timeutil.MustZone("Asia/Seoul")
	jobsNow  = time.Date(2026, 9, 7, 5, 0, 0, 0, time.UTC)
)

func jobsConfig() *config.Config {
	return &config.Config{
		ReminderBeforeHours:    24,
		AutoCompleteAfterMin:   15,
		StaleRequestAfterHours: 48,
		JobLockTTL:             50 * time.Minute,
		Log:                    logger.New(logger.Config{Output: io.Discard}),
		Zone:                   jobsZone,
	}
}

// busyLockStore refuses every acquire, simulating another replica holding
// the window.
type busyLockStore struct{}

func (busyLockStore) Acquire(context.Context, string, string, time.Duration) (bool, error) {
	return false, nil
}

func (busyLockStore) Renew(context.Context, string, string, time.Duration) (bool, error) {
	return false, nil
}

func (busyLockStore) Release(context.Context, string, string) error { return nil }

func (busyLockStore) IsLocked(context.Context, string) (bool, error) { return true, nil }

// stubBookingRepo implements the few finder methods the coordinators use;
// the embedded interface panics on anything else, which is the point.
type stubBookingRepo struct {
	repository.BookingRepository
	confirmed    []*model.Booking
	ready        []*model.Booking
	stale        []*model.Booking
	reminded     map[string]bool
	remindedErrs map[string]error
}

func (s *stubBookingRepo) FindConfirmedStartingBetween(context.Context, time.Time, time.Time) ([]*model.Booking, error) {
	return s.confirmed, nil
}

func (s *stubBookingRepo) FindReadyToComplete(context.Context, time.Time) ([]*model.Booking, error) {
	return s.ready, nil
}

func (s *stubBookingRepo) FindStaleRequested(context.Context, time.Time) ([]*model.Booking, error) {
	return s.stale, nil
}

func (s *stubBookingRepo) MarkReminded(_ context.Context, id string, _ time.Time) (bool, error) {
	if err := s.remindedErrs[id]; err != nil {
		return false, err
	}
	if s.reminded[id] {
		return false, nil
	}
	if s.reminded == nil {
		s.reminded = make(map[string]bool)
	}
	s.reminded[id] = true
	return true, nil
}

type stubBookingService struct {
	service.BookingService
	transitions []string
	errs        map[string]error
}

func (s *stubBookingService) Transition(_ context.Context, id string, action service.Action, _ model.Actor, _ string) (*model.Booking, error) {
	if err := s.errs[id]; err != nil {
		return nil, err
	}
	s.transitions = append(s.transitions, id+":"+string(action))
	return &model.Booking{ID: id}, nil
}

type recordingSink struct {
	events []model.Event
}

func (s *recordingSink) Emit(_ context.Context, event model.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestReminderCoordinator(t *testing.T) {
	cfg := jobsConfig()
	repo := &stubBookingRepo{
		confirmed: []*model.Booking{
			{ID: "b1", Code: "BKG-AAAAAA", Status: model.BookingConfirmed, StartAt: jobsNow.Add(3 * time.Hour)},
			{ID: "b2", Code: "BKG-BBBBBB", Status: model.BookingConfirmed, StartAt: jobsNow.Add(5 * time.Hour),
				Reminder: &model.ReminderMark{SentAt: jobsNow.Add(-time.Hour)}},
			{ID: "b3", Code: "BKG-CCCCCC", Status: model.BookingConfirmed, StartAt: jobsNow.Add(7 * time.Hour)},
		},
		remindedErrs: map[string]error{"b3": errors.New("write failed")},
	}
	sink := &recordingSink{}
	coord := NewReminderCoordinator(repo, joblock.NewMemoryStore(), sink, cfg, jobsZone, "owner-1")

	summary, err := coord.Run(context.Background(), jobsNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Processed != 1 || summary.Skipped != 1 || summary.Errors != 1 {
		t.Errorf("summary = %+v, want 1 processed, 1 skipped, 1 error", summary)
	}
	if len(sink.events) != 1 || sink.events[0].Type != model.EventBookingReminded {
		t.Fatalf("events = %+v, want one reminded event", sink.events)
	}
	if sink.events[0].Meta["booking_id"] != "b1" {
		t.Errorf("reminded wrong booking: %+v", sink.events[0].Meta)
	}
}

func TestReminderCoordinatorLockBusy(t *testing.T) {
	cfg := jobsConfig()
	repo := &stubBookingRepo{
		confirmed: []*model.Booking{
			{ID: "b1", Status: model.BookingConfirmed, StartAt: jobsNow.Add(3 * time.Hour)},
		},
	}
	sink := &recordingSink{}
	coord := NewReminderCoordinator(repo, busyLockStore{}, sink, cfg, jobsZone, "owner-1")

	summary, err := coord.Run(context.Background(), jobsNow)
	if err != nil {
		t.Fatalf("lock-busy run must not error: %v", err)
	}
	if summary.Processed != 0 {
		t.Errorf("lock-busy run must process nothing, got %+v", summary)
	}
	if len(sink.events) != 0 {
		t.Errorf("lock-busy run must emit nothing, got %+v", sink.events)
	}
}

func TestReminderCoordinatorIdempotentAcrossRuns(t *testing.T) {
	cfg := jobsConfig()
	repo := &stubBookingRepo{
		confirmed: []*model.Booking{
			{ID: "b1", Status: model.BookingConfirmed, StartAt: jobsNow.Add(3 * time.Hour)},
		},
	}
	sink := &recordingSink{}
	locks := joblock.NewMemoryStore()
	coord := NewReminderCoordinator(repo, locks, sink, cfg, jobsZone, "owner-1")

	if _, err := coord.Run(context.Background(), jobsNow); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// The repository marker, not the lock, prevents the second send: the
	// finder still returns the booking but now with the reminder set.
	repo.confirmed[0].Reminder = &model.ReminderMark{SentAt: jobsNow}
	summary, err := coord.Run(context.Background(), jobsNow.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary.Processed != 0 || summary.Skipped != 1 {
		t.Errorf("second run summary = %+v, want all skipped", summary)
	}
	if len(sink.events) != 1 {
		t.Errorf("expected exactly one reminder event total, got %d", len(sink.events))
	}
}

func TestAutoCompleteCoordinator(t *testing.T) {
	cfg := jobsConfig()
	repo := &stubBookingRepo{
		ready: []*model.Booking{
			{ID: "b1", Status: model.BookingConfirmed},
			{ID: "b2", Status: model.BookingConfirmed},
			{ID: "b3", Status: model.BookingConfirmed},
		},
	}
	bookings := &stubBookingService{errs: map[string]error{
		"b2": apperrors.Conflict("changed concurrently"),
		"b3": apperrors.Internal("storage down", errors.New("io")),
	}}
	coord := NewAutoCompleteCoordinator(repo, bookings, joblock.NewMemoryStore(), cfg, jobsZone, "owner-1")

	summary, err := coord.Run(context.Background(), jobsNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Processed != 1 || summary.Skipped != 1 || summary.Errors != 1 {
		t.Errorf("summary = %+v, want 1 processed, 1 skipped, 1 error", summary)
	}
	if len(bookings.transitions) != 1 || bookings.transitions[0] != "b1:complete" {
		t.Errorf("transitions = %v", bookings.transitions)
	}
}

func TestStaleCleanupCoordinator(t *testing.T) {
	cfg := jobsConfig()
	repo := &stubBookingRepo{
		stale: []*model.Booking{
			{ID: "b1", Status: model.BookingRequested},
			{ID: "b2", Status: model.BookingRequested},
		},
	}
	bookings := &stubBookingService{}
	coord := NewStaleCleanupCoordinator(repo, bookings, joblock.NewMemoryStore(), cfg, jobsZone, "owner-1")

	summary, err := coord.Run(context.Background(), jobsNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("summary = %+v, want 2 processed", summary)
	}
	want := []string{"b1:cancel", "b2:cancel"}
	for i, w := range want {
		if bookings.transitions[i] != w {
			t.Errorf("transition %d = %q, want %q", i, bookings.transitions[i], w)
		}
	}
}

type stubOrderRepo struct {
	orders  []*model.Order
	expired map[string]bool
	denied  map[string]bool
}

func (s *stubOrderRepo) FindReadyToExpire(context.Context, time.Time) ([]*model.Order, error) {
	return s.orders, nil
}

func (s *stubOrderRepo) Expire(_ context.Context, id string, _ time.Time) (bool, error) {
	if s.denied[id] {
		return false, nil
	}
	if s.expired == nil {
		s.expired = make(map[string]bool)
	}
	s.expired[id] = true
	return true, nil
}

var _ orderrepo.OrderRepository = (*stubOrderRepo)(nil)

func TestOrderExpireCoordinator(t *testing.T) {
	cfg := jobsConfig()
	repo := &stubOrderRepo{
		orders: []*model.Order{
			{ID: "o1", Code: "ORD-1", Status: model.OrderAwaitingDeposit},
			{ID: "o2", Code: "ORD-2", Status: model.OrderAwaitingDeposit},
		},
		// o2's deposit lands between the find and the update.
		denied: map[string]bool{"o2": true},
	}
	sink := &recordingSink{}
	coord := NewOrderExpireCoordinator(repo, joblock.NewMemoryStore(), sink, cfg, jobsZone, "owner-1")

	summary, err := coord.Run(context.Background(), jobsNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Processed != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 processed, 1 skipped", summary)
	}
	if len(sink.events) != 1 || sink.events[0].Meta["order_id"] != "o1" {
		t.Errorf("events = %+v, want one expiry for o1", sink.events)
	}
}

func TestRunnerNextDaily(t *testing.T) {
	cfg := jobsConfig()
	runner := NewRunner(cfg, jobsZone)

	// 05:00 UTC is 14:00 KST; a 03:30 slot has passed, so the next fire
	// is tomorrow 03:30 KST.
	next := runner.nextDaily(jobsNow, "03:30")
	want := time.Date(2026, 9, 8, 3, 30, 0, 0, jobsZone.Location())
	if !next.Equal(want) {
		t.Errorf("nextDaily = %v, want %v", next, want)
	}

	// 23:00 KST is still ahead on the same calendar day.
	next = runner.nextDaily(jobsNow, "23:00")
	want = time.Date(2026, 9, 7, 23, 0, 0, 0, jobsZone.Location())
	if !next.Equal(want) {
		t.Errorf("nextDaily = %v, want %v", next, want)
	}
}

func TestSummaryAdd(t *testing.T) {
	got := Summary{Processed: 1, Skipped: 2}.Add(Summary{Processed: 3, Errors: 1})
	want := Summary{Processed: 4, Skipped: 2, Errors: 1}
	if got != want {
		t.Errorf("Add = %+v, want %+v", got, want)
	}
}
