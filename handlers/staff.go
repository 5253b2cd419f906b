package handlers

import (
	"net/http"

	"canteen-orders-api/apperrors"
	"canteen-orders-api/models"
	"canteen-orders-api/ordering"
	"canteen-orders-api/queue"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StaffHandler struct {
	queue  *queue.Aggregator
	orders *ordering.Manager
}

func NewStaffHandler(agg *queue.Aggregator, orders *ordering.Manager) *StaffHandler {
	return &StaffHandler{queue: agg, orders: orders}
}

// Queue returns the ranked preparation queue of a day (default today)
func (h *StaffHandler) Queue(c *gin.Context) {
	day := h.orders.Today()
	if raw := c.Query("day"); raw != "" {
		d, err := models.ParseDay(raw)
		if err != nil {
			respondError(c, apperrors.WithMetadata(apperrors.CodeInvalidDay, err.Error(),
				map[string]string{"day": raw}))
			return
		}
		day = d
	}
	mode, err := queue.ParseSortMode(c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}

	snap, err := h.queue.Snapshot(c.Request.Context(), day, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// History lists the state changes of one order-set
func (h *StaffHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.WithMetadata(apperrors.CodeInvalidRequest, "order id must be a UUID",
			map[string]string{"id": c.Param("id")}))
		return
	}
	events, err := h.orders.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": id,
		"count":    len(events),
		"history":  events,
	})
}
