// Package store persists order-sets and streak records with gorm. Every
// read and write of the ordering core runs inside one transaction handed
// out by Update or View.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"canteen-orders-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrConflict means a concurrent writer got there first. The whole
	// transaction was rolled back and may be retried with fresh state.
	ErrConflict = errors.New("store: write conflict")
	ErrNotFound = errors.New("store: not found")
)

// Tx is the set of reads and writes available inside a transaction
type Tx interface {
	Streak(studentID string) (*models.StreakRecord, error)
	SaveStreak(rec *models.StreakRecord) error
	CommittedOrder(studentID string, day models.Day) (*models.OrderSet, error)
	CommittedOrders(day models.Day) ([]models.OrderSet, error)
	CountCommitted(day models.Day) (int64, error)
	InsertOrder(o *models.OrderSet, ev models.OrderSetEvent) error
	TransitionOrder(o *models.OrderSet, to models.OrderState, ev models.OrderSetEvent) error
	OrderHistory(id uuid.UUID) ([]models.OrderSetEvent, error)
}

// DB opens transactions
type DB interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
}

// Store is the gorm implementation of DB
type Store struct {
	read  *gorm.DB
	write *gorm.DB
}

// New builds a store from a read pool and a write pool. Both may be the
// same handle.
func New(read, write *gorm.DB) *Store {
	return &Store{read: read, write: write}
}

// AutoMigrate creates or updates the schema
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.OrderSet{},
		&models.OrderLine{},
		&models.OrderSetEvent{},
		&models.StreakRecord{},
	)
}

// Update runs fn in a read-write transaction on the write pool. Any error
// from fn rolls the transaction back; lost races come back wrapped in
// ErrConflict.
func (s *Store) Update(ctx context.Context, fn func(Tx) error) error {
	return classify(s.write.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}))
}

// View runs fn in a transaction that only reads. SQLite gives it a single
// consistent snapshot without holding the write lock.
func (s *Store) View(ctx context.Context, fn func(Tx) error) error {
	return classify(s.read.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}))
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.read.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases both pools
func (s *Store) Close() error {
	err := closeDB(s.read)
	if s.write != s.read {
		err = errors.Join(err, closeDB(s.write))
	}
	return err
}

func classify(err error) error {
	if err == nil || errors.Is(err, ErrConflict) {
		return err
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

// IsConflict recognises SQLite lock contention and unique-key violations
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"UNIQUE constraint failed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

type gormTx struct {
	db *gorm.DB
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func (t *gormTx) Streak(studentID string) (*models.StreakRecord, error) {
	var rec models.StreakRecord
	res := t.db.Where("student_id = ?", studentID).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, fmt.Errorf("load streak: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &rec, nil
}

// SaveStreak inserts a new record (Version 0) or updates an existing one
// only if nobody else changed it since it was read.
func (t *gormTx) SaveStreak(rec *models.StreakRecord) error {
	if rec.Version == 0 {
		rec.Version = 1
		if err := t.db.Create(rec).Error; err != nil {
			rec.Version = 0
			return fmt.Errorf("create streak: %w", err)
		}
		return nil
	}
	res := t.db.Model(&models.StreakRecord{}).
		Where("student_id = ? AND version = ?", rec.StudentID, rec.Version).
		Updates(map[string]any{
			"last_order_day": rec.LastOrderDay,
			"streak_count":   rec.StreakCount,
			"rewards_earned": rec.RewardsEarned,
			"version":        rec.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("update streak: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update streak for %s: %w", rec.StudentID, ErrConflict)
	}
	rec.Version++
	return nil
}

func (t *gormTx) CommittedOrder(studentID string, day models.Day) (*models.OrderSet, error) {
	var o models.OrderSet
	res := t.db.Preload("Lines", orderedLines).
		Where("student_id = ? AND day = ? AND state = ?", studentID, day, models.StateCommitted).
		Limit(1).
		Find(&o)
	if res.Error != nil {
		return nil, fmt.Errorf("load committed order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &o, nil
}

func (t *gormTx) CommittedOrders(day models.Day) ([]models.OrderSet, error) {
	var orders []models.OrderSet
	err := t.db.Preload("Lines", orderedLines).
		Where("day = ? AND state = ?", day, models.StateCommitted).
		Order("committed_at asc, id asc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("load committed orders: %w", err)
	}
	return orders, nil
}

func (t *gormTx) CountCommitted(day models.Day) (int64, error) {
	var n int64
	err := t.db.Model(&models.OrderSet{}).
		Where("day = ? AND state = ?", day, models.StateCommitted).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count committed orders: %w", err)
	}
	return n, nil
}

// InsertOrder stores o with its lines and the event that created it
func (t *gormTx) InsertOrder(o *models.OrderSet, ev models.OrderSetEvent) error {
	if err := t.db.Create(o).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	ev.OrderSetID = o.ID
	if err := t.db.Create(&ev).Error; err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	o.History = append(o.History, ev)
	return nil
}

// TransitionOrder moves o from its current state to `to`. The update is
// conditional on the state the caller read, so a concurrent transition
// surfaces as ErrConflict instead of being overwritten.
func (t *gormTx) TransitionOrder(o *models.OrderSet, to models.OrderState, ev models.OrderSetEvent) error {
	from := o.State
	updates := map[string]any{
		"state":      to,
		"updated_at": ev.At,
	}
	if o.CancelledAt != nil {
		updates["cancelled_at"] = *o.CancelledAt
	}
	if o.SupersededBy != nil {
		updates["superseded_by"] = *o.SupersededBy
	}
	res := t.db.Model(&models.OrderSet{}).
		Where("id = ? AND state = ?", o.ID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("transition order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transition order %s from %s: %w", o.ID, from, ErrConflict)
	}

	ev.OrderSetID = o.ID
	ev.FromState = from
	ev.ToState = to
	if err := t.db.Create(&ev).Error; err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	o.State = to
	o.UpdatedAt = ev.At
	o.History = append(o.History, ev)
	return nil
}

func (t *gormTx) OrderHistory(id uuid.UUID) ([]models.OrderSetEvent, error) {
	var n int64
	if err := t.db.Model(&models.OrderSet{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	var events []models.OrderSetEvent
	if err := t.db.Where("order_set_id = ?", id).Order("id asc").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("load order history: %w", err)
	}
	return events, nil
}
