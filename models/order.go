package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderState represents all possible states of a daily order-set
type OrderState string

const (
	StateDraft      OrderState = "draft"
	StateCommitted  OrderState = "committed"
	StateCancelled  OrderState = "cancelled"
	StateSuperseded OrderState = "superseded"
)

// OrderSet is one student's order for one calendar day. The partial unique
// index keeps at most one committed order-set per (student, day).
type OrderSet struct {
	ID           uuid.UUID       `json:"id" gorm:"type:text;primaryKey"`
	StudentID    string          `json:"student_id" gorm:"not null;uniqueIndex:idx_order_sets_active,where:state = 'committed'"`
	StudentName  string          `json:"student_name"`
	Day          Day             `json:"day" gorm:"type:text;not null;uniqueIndex:idx_order_sets_active;index:idx_order_sets_day_state"`
	State        OrderState      `json:"state" gorm:"type:text;not null;index:idx_order_sets_day_state"`
	IsCoupon     bool            `json:"is_coupon" gorm:"not null;default:false"`
	IsPriority   bool            `json:"is_priority" gorm:"not null;default:false"`
	Total        int64           `json:"total" gorm:"not null;check:total >= 0"`
	CommittedAt  time.Time       `json:"committed_at" gorm:"not null"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	SupersededBy *uuid.UUID      `json:"superseded_by,omitempty" gorm:"type:text"`
	Lines        []OrderLine     `json:"lines,omitempty" gorm:"foreignKey:OrderSetID;constraint:OnDelete:CASCADE"`
	History      []OrderSetEvent `json:"history,omitempty" gorm:"foreignKey:OrderSetID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (o *OrderSet) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderLine snapshots the catalog entry at commit time
type OrderLine struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	OrderSetID uuid.UUID `json:"-" gorm:"type:text;not null;index"`
	Position   int       `json:"-" gorm:"not null"`
	ItemID     string    `json:"item_id" gorm:"not null"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	UnitPrice  int64     `json:"unit_price" gorm:"not null;check:unit_price >= 0"`
	IsFree     bool      `json:"is_free" gorm:"not null;default:false"`
	LineTotal  int64     `json:"line_total" gorm:"not null;check:line_total >= 0"`
}

// OrderSetEvent records every state change of an order-set
type OrderSetEvent struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	OrderSetID uuid.UUID  `json:"order_set_id" gorm:"type:text;not null;index"`
	FromState  OrderState `json:"from_state"`
	ToState    OrderState `json:"to_state" gorm:"not null"`
	Actor      string     `json:"actor" gorm:"not null"` // "student" or "system"
	Note       string     `json:"note"`
	At         time.Time  `json:"at" gorm:"not null"`
}

// StreakRecord tracks consecutive ordering days for one student
type StreakRecord struct {
	StudentID     string    `json:"student_id" gorm:"primaryKey"`
	LastOrderDay  Day       `json:"last_order_day" gorm:"type:text;not null"`
	StreakCount   int       `json:"streak_count" gorm:"not null;check:streak_count >= 0"`
	RewardsEarned int       `json:"rewards_earned" gorm:"not null;default:0"`
	Version       int64     `json:"-" gorm:"not null;default:0"`
	UpdatedAt     time.Time `json:"updated_at"`
}
