package handlers

import (
	"net/http"

	"canteen-orders-api/clock"
	"canteen-orders-api/middleware"
	"canteen-orders-api/models"
	"canteen-orders-api/ordering"

	"github.com/gin-gonic/gin"
)

// SelectionRequest accepts either explicit lines or a flat list of item
// ids, where each occurrence counts as quantity 1.
type SelectionRequest struct {
	Items   []models.Line `json:"items" binding:"omitempty,dive"`
	ItemIDs []string      `json:"item_ids"`
}

func (r SelectionRequest) lines() []models.Line {
	lines := make([]models.Line, 0, len(r.Items)+len(r.ItemIDs))
	lines = append(lines, r.Items...)
	for _, id := range r.ItemIDs {
		lines = append(lines, models.Line{ItemID: id, Quantity: 1})
	}
	return lines
}

type StudentHandler struct {
	orders *ordering.Manager
	clock  clock.Clock
}

func NewStudentHandler(orders *ordering.Manager, clk clock.Clock) *StudentHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &StudentHandler{orders: orders, clock: clk}
}

func (h *StudentHandler) bind(c *gin.Context) ([]models.Line, bool) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return nil, false
	}
	return req.lines(), true
}

// StartSelection prices a selection without committing it
func (h *StudentHandler) StartSelection(c *gin.Context) {
	student, _ := middleware.CurrentStudent(c)
	lines, ok := h.bind(c)
	if !ok {
		return
	}
	sel, err := h.orders.StartSelection(student.ID, lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state": models.StateDraft,
		"lines": sel.Lines,
		"total": sel.Total,
	})
}

// Commit places or replaces today's order
func (h *StudentHandler) Commit(c *gin.Context) {
	student, _ := middleware.CurrentStudent(c)
	lines, ok := h.bind(c)
	if !ok {
		return
	}
	receipt, err := h.orders.Commit(c.Request.Context(), student, lines, h.clock.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Order committed"
	switch {
	case receipt.Streak.RewardTriggered:
		msg = "Order committed. Streak reward applied: this order is free and prioritised"
	case receipt.IsCoupon:
		msg = "Order updated. Today's streak reward still applies"
	case receipt.Superseded != nil:
		msg = "Order updated"
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": msg,
		"receipt": receipt,
	})
}

// GetToday returns today's committed order, or null
func (h *StudentHandler) GetToday(c *gin.Context) {
	student, _ := middleware.CurrentStudent(c)
	order, err := h.orders.GetToday(c.Request.Context(), student.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"day":   h.orders.Today(),
		"order": order,
	})
}

// Cancel withdraws today's order before the cutoff
func (h *StudentHandler) Cancel(c *gin.Context) {
	student, _ := middleware.CurrentStudent(c)
	order, err := h.orders.Cancel(c.Request.Context(), student.ID, h.clock.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled",
		"order":   order,
	})
}

// Streak reports loyalty progress
func (h *StudentHandler) Streak(c *gin.Context) {
	student, _ := middleware.CurrentStudent(c)
	status, err := h.orders.Streak(c.Request.Context(), student.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
