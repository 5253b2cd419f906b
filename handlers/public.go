package handlers

import (
	"context"
	"net/http"

	"canteen-orders-api/cutoff"
	"canteen-orders-api/menu"
	"canteen-orders-api/models"
	"canteen-orders-api/statemachine"

	"github.com/gin-gonic/gin"
)

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

type PublicHandler struct {
	catalog *menu.Catalog
	policy  cutoff.Policy
	db      Pinger
}

func NewPublicHandler(catalog *menu.Catalog, policy cutoff.Policy, db Pinger) *PublicHandler {
	return &PublicHandler{catalog: catalog, policy: policy, db: db}
}

// Health checks the process and its database
func (h *PublicHandler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Canteen Order API",
		"version": "1.0.0",
	})
}

// GetMenu returns the catalog, optionally only vegetarian items
func (h *PublicHandler) GetMenu(c *gin.Context) {
	items := h.catalog.Items()
	if c.Query("is_veg") == "true" {
		veg := items[:0]
		for _, it := range items {
			if it.IsVeg {
				veg = append(veg, it)
			}
		}
		items = veg
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(items),
		"menu":   items,
		"cutoff": h.policy.String(),
	})
}

// GetStateMachineInfo returns the full state machine for informational purposes
func (h *PublicHandler) GetStateMachineInfo(c *gin.Context) {
	var terminal []models.OrderState
	for _, s := range []models.OrderState{models.StateDraft, models.StateCommitted, models.StateCancelled, models.StateSuperseded} {
		if statemachine.IsTerminal(s) {
			terminal = append(terminal, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"state_machine":   statemachine.GetAllTransitions(),
		"terminal_states": terminal,
		"description":     "Canteen daily order lifecycle",
	})
}
