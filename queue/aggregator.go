// Package queue builds the staff view of a day's committed orders.
package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"canteen-orders-api/apperrors"
	"canteen-orders-api/models"
	"canteen-orders-api/store"
)

// SortMode selects the queue order
type SortMode string

const (
	SortPriority SortMode = "priority"
	SortTime     SortMode = "time"
)

// ParseSortMode accepts "priority" or "time"; empty means priority
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortPriority:
		return SortPriority, nil
	case SortTime:
		return SortTime, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeInvalidSortMode,
			"unknown sort mode "+s, map[string]string{"sort": s})
	}
}

// ItemCount is the total quantity of one item across the day
type ItemCount struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Snapshot is a consistent, ranked view of one day
type Snapshot struct {
	Day           models.Day        `json:"day"`
	Sort          SortMode          `json:"sort"`
	Orders        []models.OrderSet `json:"orders"`
	ItemCounts    []ItemCount       `json:"item_counts"`
	Total         int               `json:"total"`
	PriorityCount int               `json:"priority_count"`
}

// Aggregator reads committed orders; it never writes
type Aggregator struct {
	store store.DB
}

func NewAggregator(db store.DB) *Aggregator {
	return &Aggregator{store: db}
}

// Snapshot loads the committed order-sets of day in one read transaction
// and ranks them.
func (a *Aggregator) Snapshot(ctx context.Context, day models.Day, mode SortMode) (*Snapshot, error) {
	if mode != SortPriority && mode != SortTime {
		return nil, apperrors.ErrInvalidSortMode
	}

	var orders []models.OrderSet
	err := a.store.View(ctx, func(tx store.Tx) error {
		var err error
		orders, err = tx.CommittedOrders(day)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", day, err)
	}

	Rank(orders, mode)
	snap := &Snapshot{
		Day:        day,
		Sort:       mode,
		Orders:     orders,
		ItemCounts: CountItems(orders),
		Total:      len(orders),
	}
	if snap.Orders == nil {
		snap.Orders = []models.OrderSet{}
	}
	for _, o := range orders {
		if o.IsPriority {
			snap.PriorityCount++
		}
	}
	return snap, nil
}

// Rank sorts orders in place. Priority mode puts priority orders first and
// keeps submission order within each tier; time mode is pure FIFO. Equal
// timestamps fall back to id so output is reproducible.
func Rank(orders []models.OrderSet, mode SortMode) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if mode == SortPriority && a.IsPriority != b.IsPriority {
			return a.IsPriority
		}
		if !a.CommittedAt.Equal(b.CommittedAt) {
			return a.CommittedAt.Before(b.CommittedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// CountItems sums quantities per item id, sorted by item id
func CountItems(orders []models.OrderSet) []ItemCount {
	byID := map[string]*ItemCount{}
	for _, o := range orders {
		for _, l := range o.Lines {
			c, ok := byID[l.ItemID]
			if !ok {
				c = &ItemCount{ItemID: l.ItemID, Name: l.Name}
				byID[l.ItemID] = c
			}
			c.Quantity += l.Quantity
		}
	}
	out := make([]ItemCount, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
