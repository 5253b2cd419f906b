// Package ordering owns the daily order lifecycle: selection, commit,
// supersede and cancel, together with the loyalty streak that a commit
// advances. It returns typed errors from apperrors and never logs.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"canteen-orders-api/apperrors"
	"canteen-orders-api/clock"
	"canteen-orders-api/cutoff"
	"canteen-orders-api/menu"
	"canteen-orders-api/models"
	"canteen-orders-api/statemachine"
	"canteen-orders-api/store"
	"canteen-orders-api/streak"

	"github.com/google/uuid"
)

// Receipt is the result of a successful commit
type Receipt struct {
	Order      *models.OrderSet `json:"order"`
	IsCoupon   bool             `json:"is_coupon"`
	IsPriority bool             `json:"is_priority"`
	Total      int64            `json:"total"`
	Streak     streak.Result    `json:"streak"`
	Superseded *uuid.UUID       `json:"superseded,omitempty"`
}

// StreakStatus is a read-only view of a student's loyalty streak
type StreakStatus struct {
	StudentID       string     `json:"student_id"`
	StreakCount     int        `json:"streak_count"`
	LastOrderDay    models.Day `json:"last_order_day,omitempty"`
	RewardsEarned   int        `json:"rewards_earned"`
	DaysUntilReward int        `json:"days_until_reward"`
}

// Config wires a Manager
type Config struct {
	Store   store.DB
	Catalog *menu.Catalog
	Policy  cutoff.Policy
	Tracker streak.Tracker
	Clock   clock.Clock
	// DailyCapacity caps committed order-sets per day; 0 means unlimited
	DailyCapacity int
}

// Manager applies the order lifecycle rules. It holds no per-request
// state and is safe for concurrent use.
type Manager struct {
	store    store.DB
	catalog  *menu.Catalog
	policy   cutoff.Policy
	tracker  streak.Tracker
	clock    clock.Clock
	capacity int
}

func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &Manager{
		store:    cfg.Store,
		catalog:  cfg.Catalog,
		policy:   cfg.Policy,
		tracker:  cfg.Tracker,
		clock:    cfg.Clock,
		capacity: cfg.DailyCapacity,
	}
}

// Today is the canteen calendar day at the manager's clock
func (m *Manager) Today() models.Day {
	return m.policy.Today(m.clock.Now())
}

// StartSelection validates and prices a selection without persisting it.
// The returned lines are the caller-held draft.
func (m *Manager) StartSelection(studentID string, lines []models.Line) (menu.Selection, error) {
	return m.catalog.Price(lines, false)
}

// Commit makes lines the student's order for the day now falls on,
// replacing any earlier committed order-set of that day.
func (m *Manager) Commit(ctx context.Context, student models.Student, lines []models.Line, now time.Time) (*Receipt, error) {
	if !m.policy.Allows(now) {
		return nil, cutoffError(m.policy, now)
	}
	if len(lines) == 0 {
		return nil, apperrors.ErrEmptySelection
	}
	// validate before opening a transaction; pricing is redone inside
	// once the reward is known
	if _, err := m.catalog.Price(lines, false); err != nil {
		return nil, err
	}

	today := m.policy.Today(now)
	var receipt *Receipt
	err := m.retryOnce(ctx, func(tx store.Tx) error {
		r, err := m.commitTx(tx, student, lines, today, now)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (m *Manager) commitTx(tx store.Tx, student models.Student, lines []models.Line, today models.Day, now time.Time) (*Receipt, error) {
	prev, err := tx.CommittedOrder(student.ID, today)
	if err != nil {
		return nil, err
	}
	if m.capacity > 0 && prev == nil {
		n, err := tx.CountCommitted(today)
		if err != nil {
			return nil, err
		}
		if n >= int64(m.capacity) {
			return nil, apperrors.WithMetadata(apperrors.CodeCapacityReached,
				fmt.Sprintf("maximum %d orders reached for %s", m.capacity, today),
				map[string]string{"capacity": fmt.Sprint(m.capacity), "day": string(today)})
		}
	}

	rec, err := tx.Streak(student.ID)
	if err != nil {
		return nil, err
	}
	next, res := m.tracker.Advance(student.ID, rec, today)

	// a same-day re-commit keeps the reward already granted for the day
	rewarded := res.RewardTriggered
	if res.Outcome == streak.OutcomeUnchanged && prev != nil && prev.IsCoupon {
		rewarded = true
	}

	sel, err := m.catalog.Price(lines, rewarded)
	if err != nil {
		return nil, err
	}
	if err := statemachine.CanTransition(models.StateDraft, models.StateCommitted, statemachine.ActorStudent); err != nil {
		return nil, err
	}

	order := &models.OrderSet{
		ID:          uuid.New(),
		StudentID:   student.ID,
		StudentName: student.Name,
		Day:         today,
		State:       models.StateCommitted,
		IsCoupon:    rewarded,
		IsPriority:  rewarded,
		Total:       sel.Total,
		CommittedAt: now,
		Lines:       sel.Lines,
	}

	receipt := &Receipt{Order: order, IsCoupon: rewarded, IsPriority: rewarded, Total: sel.Total, Streak: res}
	if prev != nil {
		if err := statemachine.CanTransition(prev.State, models.StateSuperseded, statemachine.ActorSystem); err != nil {
			return nil, err
		}
		prev.SupersededBy = &order.ID
		if err := tx.TransitionOrder(prev, models.StateSuperseded, models.OrderSetEvent{
			Actor: statemachine.ActorSystem,
			Note:  "replaced by order " + order.ID.String(),
			At:    now,
		}); err != nil {
			return nil, err
		}
		receipt.Superseded = &prev.ID
	}

	note := "order committed"
	if rewarded {
		note = "order committed with streak reward"
	}
	if err := tx.InsertOrder(order, models.OrderSetEvent{
		FromState: models.StateDraft,
		ToState:   models.StateCommitted,
		Actor:     statemachine.ActorStudent,
		Note:      note,
		At:        now,
	}); err != nil {
		return nil, err
	}

	if err := tx.SaveStreak(&next); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Cancel withdraws today's committed order-set. The streak advanced by
// the commit stays as it is.
func (m *Manager) Cancel(ctx context.Context, studentID string, now time.Time) (*models.OrderSet, error) {
	if !m.policy.Allows(now) {
		return nil, cutoffError(m.policy, now)
	}

	today := m.policy.Today(now)
	var cancelled *models.OrderSet
	err := m.retryOnce(ctx, func(tx store.Tx) error {
		o, err := tx.CommittedOrder(studentID, today)
		if err != nil {
			return err
		}
		if o == nil {
			return apperrors.ErrNothingToCancel
		}
		if err := statemachine.CanTransition(o.State, models.StateCancelled, statemachine.ActorStudent); err != nil {
			return err
		}
		at := now
		o.CancelledAt = &at
		if err := tx.TransitionOrder(o, models.StateCancelled, models.OrderSetEvent{
			Actor: statemachine.ActorStudent,
			Note:  "order cancelled by student",
			At:    now,
		}); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// GetToday returns the student's committed order-set for today, or nil
func (m *Manager) GetToday(ctx context.Context, studentID string) (*models.OrderSet, error) {
	today := m.Today()
	var o *models.OrderSet
	err := m.store.View(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.CommittedOrder(studentID, today)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get today's order: %w", err)
	}
	return o, nil
}

// Streak reports the student's loyalty progress as of today
func (m *Manager) Streak(ctx context.Context, studentID string) (StreakStatus, error) {
	today := m.Today()
	var rec *models.StreakRecord
	err := m.store.View(ctx, func(tx store.Tx) error {
		var err error
		rec, err = tx.Streak(studentID)
		return err
	})
	if err != nil {
		return StreakStatus{}, fmt.Errorf("get streak: %w", err)
	}

	status := StreakStatus{StudentID: studentID, DaysUntilReward: m.tracker.DaysUntilReward(rec, today)}
	if rec != nil {
		status.LastOrderDay = rec.LastOrderDay
		status.RewardsEarned = rec.RewardsEarned
		// a streak broken by a missed day reads as zero
		if rec.LastOrderDay == today || rec.LastOrderDay == today.AddDays(-1) {
			status.StreakCount = rec.StreakCount
		}
	}
	return status, nil
}

// History lists every state change of one order-set
func (m *Manager) History(ctx context.Context, orderSetID uuid.UUID) ([]models.OrderSetEvent, error) {
	var events []models.OrderSetEvent
	err := m.store.View(ctx, func(tx store.Tx) error {
		var err error
		events, err = tx.OrderHistory(orderSetID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "order set not found",
			map[string]string{"id": orderSetID.String()})
	}
	if err != nil {
		return nil, fmt.Errorf("get order history: %w", err)
	}
	return events, nil
}

// retryOnce runs fn in a write transaction and repeats it once with fresh
// state if a concurrent writer won. A second loss is reported as a
// retryable error.
func (m *Manager) retryOnce(ctx context.Context, fn func(store.Tx) error) error {
	err := m.store.Update(ctx, fn)
	if errors.Is(err, store.ErrConflict) {
		err = m.store.Update(ctx, fn)
	}
	if errors.Is(err, store.ErrConflict) {
		return apperrors.Wrap(apperrors.CodeTransientStoreConflict, "order changed concurrently", err)
	}
	return err
}

func cutoffError(p cutoff.Policy, now time.Time) error {
	cut := p.CutoffFor(p.Today(now))
	return apperrors.WithMetadata(apperrors.CodeCutoffExceeded,
		"orders for "+string(p.Today(now))+" closed at "+cut.Format("15:04"),
		map[string]string{"cutoff": cut.Format(time.RFC3339)})
}
