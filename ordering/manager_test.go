package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"canteen-orders-api/apperrors"
	"canteen-orders-api/clock"
	"canteen-orders-api/cutoff"
	"canteen-orders-api/menu"
	"canteen-orders-api/models"
	"canteen-orders-api/store"
	"canteen-orders-api/store/storetest"
	"canteen-orders-api/streak"

	"github.com/google/uuid"
)

var (
	day1 = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
	day3 = day1.AddDate(0, 0, 2)

	alice = models.Student{ID: "s-alice", Name: "Alice", Role: models.RoleStudent}
	bob   = models.Student{ID: "s-bob", Name: "Bob", Role: models.RoleStudent}
)

func testCatalog(t *testing.T) *menu.Catalog {
	t.Helper()
	c, err := menu.New([]models.MenuItem{
		{ID: "meal", Name: "Thali", UnitPrice: 50},
		{ID: "chai", Name: "Chai", UnitPrice: 10},
		{ID: "snack", Name: "Samosa", UnitPrice: 20},
		{ID: "water", Name: "Water", UnitPrice: 0},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

type fixture struct {
	m     *Manager
	store *store.Store
	clock *clock.Manual
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	s := storetest.Open(t)
	return newFixtureWith(t, s, s, capacity)
}

func newFixtureWith(t *testing.T, s *store.Store, db store.DB, capacity int) *fixture {
	t.Helper()
	policy, err := cutoff.NewPolicy(19, 0, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	clk := clock.NewManual(day1)
	m := NewManager(Config{
		Store:         db,
		Catalog:       testCatalog(t),
		Policy:        policy,
		Tracker:       streak.NewTracker(streak.DefaultThreshold),
		Clock:         clk,
		DailyCapacity: capacity,
	})
	return &fixture{m: m, store: s, clock: clk}
}

func lines(pairs ...any) []models.Line {
	var out []models.Line
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Line{ItemID: pairs[i].(string), Quantity: pairs[i+1].(int)})
	}
	return out
}

func (f *fixture) commit(t *testing.T, s models.Student, now time.Time, l []models.Line) *Receipt {
	t.Helper()
	f.clock.Set(now)
	r, err := f.m.Commit(context.Background(), s, l, now)
	if err != nil {
		t.Fatalf("commit at %s: %v", now, err)
	}
	return r
}

func TestThreeDayStreakEarnsReward(t *testing.T) {
	f := newFixture(t, 0)

	r1 := f.commit(t, alice, day1, lines("meal", 1))
	if r1.Total != 50 || r1.IsCoupon || r1.Streak.Count != 1 || r1.Streak.Outcome != streak.OutcomeStarted {
		t.Fatalf("day 1 receipt = %+v", r1)
	}

	r2 := f.commit(t, alice, day2, lines("meal", 1))
	if r2.Total != 50 || r2.IsCoupon || r2.Streak.Count != 2 {
		t.Fatalf("day 2 receipt = %+v", r2)
	}

	r3 := f.commit(t, alice, day3, lines("meal", 1, "water", 1))
	if r3.Total != 0 || !r3.IsCoupon || !r3.IsPriority {
		t.Fatalf("day 3 receipt = %+v", r3)
	}
	if !r3.Streak.RewardTriggered || r3.Streak.Count != 0 {
		t.Errorf("day 3 streak = %+v, want reward and count 0", r3.Streak)
	}
	for _, l := range r3.Order.Lines {
		if want := l.UnitPrice > 0; l.IsFree != want {
			t.Errorf("line %s free = %v, want %v", l.ItemID, l.IsFree, want)
		}
	}

	status, err := f.m.Streak(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.StreakCount != 0 || status.RewardsEarned != 1 || status.DaysUntilReward != 3 {
		t.Errorf("status = %+v", status)
	}
}

func TestSameDayRecommitSupersedes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	first := f.commit(t, alice, day1, lines("chai", 1))
	second := f.commit(t, alice, day1.Add(time.Hour), lines("snack", 1))

	if second.Streak.Outcome != streak.OutcomeUnchanged || second.Streak.Count != 1 {
		t.Errorf("re-commit streak = %+v, want unchanged at 1", second.Streak)
	}
	if second.Superseded == nil || *second.Superseded != first.Order.ID {
		t.Errorf("superseded = %v, want %s", second.Superseded, first.Order.ID)
	}

	today, err := f.m.GetToday(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if today == nil || today.ID != second.Order.ID || today.Total != 20 {
		t.Fatalf("today = %+v", today)
	}
	if len(today.Lines) != 1 || today.Lines[0].ItemID != "snack" {
		t.Errorf("lines = %+v", today.Lines)
	}

	history, err := f.m.History(ctx, first.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	last := history[len(history)-1]
	if last.ToState != models.StateSuperseded || last.Actor != "system" {
		t.Errorf("old order last event = %+v", last)
	}
}

func TestGapResetsStreak(t *testing.T) {
	f := newFixture(t, 0)
	f.commit(t, alice, day1, lines("meal", 1))
	f.commit(t, alice, day2, lines("meal", 1))

	r := f.commit(t, alice, day2.AddDate(0, 0, 2), lines("meal", 1))
	if r.Streak.Outcome != streak.OutcomeReset || r.Streak.Count != 1 || r.IsCoupon {
		t.Errorf("after gap = %+v", r)
	}
}

func TestStreakStatusReadsBrokenStreakAsZero(t *testing.T) {
	f := newFixture(t, 0)
	f.commit(t, alice, day1, lines("meal", 1))
	f.commit(t, alice, day2, lines("meal", 1))

	f.clock.Set(day2.AddDate(0, 0, 2))
	status, err := f.m.Streak(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.StreakCount != 0 || status.DaysUntilReward != 3 || status.LastOrderDay != "2026-10-15" {
		t.Errorf("status = %+v", status)
	}

	unknown, err := f.m.Streak(context.Background(), "nobody")
	if err != nil || unknown.StreakCount != 0 || unknown.DaysUntilReward != 3 {
		t.Errorf("unknown student = %+v, %v", unknown, err)
	}
}

func TestCommitRejectsBadSelections(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	if _, err := f.m.Commit(ctx, alice, nil, day1); !errors.Is(err, apperrors.ErrEmptySelection) {
		t.Errorf("empty: got %v", err)
	}
	_, err := f.m.Commit(ctx, alice, lines("meal", 1, "pizza", 1), day1)
	if !errors.Is(err, apperrors.ErrInvalidItem) {
		t.Fatalf("unknown item: got %v", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Metadata["item_id"] != "pizza" {
		t.Errorf("metadata = %+v", appErr)
	}

	// nothing was written
	if o, _ := f.m.GetToday(ctx, alice.ID); o != nil {
		t.Errorf("order persisted after rejected commit: %+v", o)
	}
	if s, _ := f.m.Streak(ctx, alice.ID); s.RewardsEarned != 0 || s.LastOrderDay != "" {
		t.Errorf("streak persisted after rejected commit: %+v", s)
	}
}

func TestStartSelectionPricesWithoutPersisting(t *testing.T) {
	f := newFixture(t, 0)
	sel, err := f.m.StartSelection(alice.ID, lines("chai", 2, "snack", 1))
	if err != nil {
		t.Fatal(err)
	}
	if sel.Total != 40 || len(sel.Lines) != 2 {
		t.Errorf("selection = %+v", sel)
	}
	if o, _ := f.m.GetToday(context.Background(), alice.ID); o != nil {
		t.Errorf("selection persisted: %+v", o)
	}
}

func TestCutoffIsInclusive(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cut := time.Date(2026, 10, 14, 19, 0, 0, 0, time.UTC)

	f.commit(t, alice, cut, lines("meal", 1))

	late := cut.Add(time.Second)
	if _, err := f.m.Commit(ctx, bob, lines("meal", 1), late); !errors.Is(err, apperrors.ErrCutoffExceeded) {
		t.Errorf("commit after cutoff: got %v", err)
	}
	if _, err := f.m.Cancel(ctx, alice.ID, late); !errors.Is(err, apperrors.ErrCutoffExceeded) {
		t.Errorf("cancel after cutoff: got %v", err)
	}
	// the cutoff check wins even when there is nothing to cancel
	if _, err := f.m.Cancel(ctx, bob.ID, late); !errors.Is(err, apperrors.ErrCutoffExceeded) {
		t.Errorf("cancel without order after cutoff: got %v", err)
	}

	if _, err := f.m.Cancel(ctx, alice.ID, cut); err != nil {
		t.Errorf("cancel at cutoff: %v", err)
	}
}

func TestCancelKeepsStreak(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.commit(t, alice, day1, lines("meal", 1))

	o, err := f.m.Cancel(ctx, alice.ID, day1.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if o.State != models.StateCancelled || o.CancelledAt == nil {
		t.Errorf("cancelled order = %+v", o)
	}
	if today, _ := f.m.GetToday(ctx, alice.ID); today != nil {
		t.Errorf("cancelled order still today's: %+v", today)
	}

	status, _ := f.m.Streak(ctx, alice.ID)
	if status.StreakCount != 1 || status.LastOrderDay != "2026-10-14" {
		t.Errorf("streak after cancel = %+v", status)
	}

	if _, err := f.m.Cancel(ctx, alice.ID, day1.Add(2*time.Hour)); !errors.Is(err, apperrors.ErrNothingToCancel) {
		t.Errorf("second cancel: got %v", err)
	}

	// ordering again the same day does not count twice
	r := f.commit(t, alice, day1.Add(3*time.Hour), lines("chai", 1))
	if r.Streak.Outcome != streak.OutcomeUnchanged || r.Superseded != nil {
		t.Errorf("re-order after cancel = %+v", r)
	}
}

func TestNothingToCancel(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.m.Cancel(context.Background(), alice.ID, day1)
	if apperrors.CodeOf(err) != apperrors.CodeNothingToCancel {
		t.Fatalf("got %v", err)
	}
}

func TestRewardSurvivesSameDayRecommit(t *testing.T) {
	f := newFixture(t, 0)
	f.commit(t, alice, day1, lines("meal", 1))
	f.commit(t, alice, day2, lines("meal", 1))
	f.commit(t, alice, day3, lines("meal", 1))

	r := f.commit(t, alice, day3.Add(time.Hour), lines("chai", 2))
	if !r.IsCoupon || !r.IsPriority || r.Total != 0 {
		t.Errorf("re-commit on reward day = %+v", r)
	}
	if r.Streak.RewardTriggered {
		t.Errorf("reward granted twice")
	}
	status, _ := f.m.Streak(context.Background(), alice.ID)
	if status.RewardsEarned != 1 {
		t.Errorf("rewards earned = %d, want 1", status.RewardsEarned)
	}
}

func TestCancelledRewardIsForfeited(t *testing.T) {
	f := newFixture(t, 0)
	f.commit(t, alice, day1, lines("meal", 1))
	f.commit(t, alice, day2, lines("meal", 1))
	f.commit(t, alice, day3, lines("meal", 1))
	if _, err := f.m.Cancel(context.Background(), alice.ID, day3.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	r := f.commit(t, alice, day3.Add(2*time.Hour), lines("chai", 1))
	if r.IsCoupon || r.Total != 10 {
		t.Errorf("order after cancelled reward = %+v", r)
	}
}

func TestDailyCapacity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.commit(t, alice, day1, lines("meal", 1))

	_, err := f.m.Commit(ctx, bob, lines("meal", 1), day1)
	if !errors.Is(err, apperrors.ErrCapacityReached) {
		t.Fatalf("second student: got %v", err)
	}
	// replacing an existing order is always allowed
	f.commit(t, alice, day1.Add(time.Minute), lines("chai", 1))
	// capacity is per day
	f.commit(t, bob, day2, lines("meal", 1))
}

// commitAll runs one commit per student concurrently and returns the
// errors in input order.
func commitAll(f *fixture, students []models.Student, now time.Time) []error {
	errs := make([]error, len(students))
	var wg sync.WaitGroup
	for i, s := range students {
		wg.Add(1)
		go func(i int, s models.Student) {
			defer wg.Done()
			_, errs[i] = f.m.Commit(context.Background(), s, lines("chai", i+1), now.Add(time.Duration(i)*time.Millisecond))
		}(i, s)
	}
	wg.Wait()
	return errs
}

func TestConcurrentCommitsSameStudentLeaveOneOrder(t *testing.T) {
	s := storetest.OpenPool(t, 4)
	f := newFixtureWith(t, s, s, 0)
	ctx := context.Background()

	same := make([]models.Student, 20)
	for i := range same {
		same[i] = alice
	}
	for _, err := range commitAll(f, same, day1) {
		if err != nil && !errors.Is(err, apperrors.ErrTransientStoreConflict) {
			t.Errorf("commit: %v", err)
		}
	}

	err := f.store.View(ctx, func(tx store.Tx) error {
		orders, err := tx.CommittedOrders("2026-10-14")
		if err != nil {
			return err
		}
		if len(orders) != 1 {
			t.Errorf("committed orders = %d, want 1", len(orders))
		}
		rec, err := tx.Streak(alice.ID)
		if err != nil {
			return err
		}
		if rec == nil || rec.StreakCount != 1 {
			t.Errorf("streak = %+v, want count 1", rec)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestConcurrentCommitsDistinctStudentsNeverConflict(t *testing.T) {
	s := storetest.OpenPool(t, 4)
	f := newFixtureWith(t, s, s, 0)

	students := make([]models.Student, 40)
	for i := range students {
		id := fmt.Sprintf("s-%02d", i)
		students[i] = models.Student{ID: id, Name: id, Role: models.RoleStudent}
	}
	for i, err := range commitAll(f, students, day1) {
		if err != nil {
			t.Errorf("%s: %v", students[i].ID, err)
		}
	}

	committed := 0
	err := f.store.View(context.Background(), func(tx store.Tx) error {
		n, err := tx.CountCommitted("2026-10-14")
		committed = int(n)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if committed != len(students) {
		t.Errorf("committed orders = %d, want %d", committed, len(students))
	}
}

// conflictingDB fails the first n write transactions as if another writer
// had won the race.
type conflictingDB struct {
	*store.Store
	mu       sync.Mutex
	failures int
	updates  int
}

func (c *conflictingDB) Update(ctx context.Context, fn func(store.Tx) error) error {
	c.mu.Lock()
	c.updates++
	fail := c.failures > 0
	if fail {
		c.failures--
	}
	c.mu.Unlock()
	if fail {
		return store.ErrConflict
	}
	return c.Store.Update(ctx, fn)
}

func TestCommitRetriesOnceAfterConflict(t *testing.T) {
	s := storetest.Open(t)
	db := &conflictingDB{Store: s, failures: 1}
	f := newFixtureWith(t, s, db, 0)

	r := f.commit(t, alice, day1, lines("meal", 1))
	if r.Total != 50 {
		t.Errorf("receipt = %+v", r)
	}
	if db.updates != 2 {
		t.Errorf("updates = %d, want 2", db.updates)
	}
}

func TestSecondConflictIsTransient(t *testing.T) {
	s := storetest.Open(t)
	db := &conflictingDB{Store: s, failures: 2}
	f := newFixtureWith(t, s, db, 0)
	ctx := context.Background()

	_, err := f.m.Commit(ctx, alice, lines("meal", 1), day1)
	if !errors.Is(err, apperrors.ErrTransientStoreConflict) {
		t.Fatalf("got %v", err)
	}
	if !apperrors.CodeOf(err).Retryable() {
		t.Errorf("conflict should be retryable")
	}
	if db.updates != 2 {
		t.Errorf("updates = %d, want exactly one retry", db.updates)
	}
	if o, _ := f.m.GetToday(ctx, alice.ID); o != nil {
		t.Errorf("order persisted after failed commit: %+v", o)
	}

	f.commit(t, alice, day1, lines("meal", 1))
	db.mu.Lock()
	db.failures = 2
	db.mu.Unlock()
	if _, err := f.m.Cancel(ctx, alice.ID, day1); !errors.Is(err, apperrors.ErrTransientStoreConflict) {
		t.Errorf("cancel: got %v", err)
	}
}

func TestHistoryNotFound(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.m.History(context.Background(), uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}
