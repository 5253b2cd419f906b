package handlers

import (
	"net/http"

	"canteen-orders-api/middleware"

	"github.com/gin-gonic/gin"
)

// GetProfile returns the identity carried by the caller's token
func GetProfile(c *gin.Context) {
	caller, ok := middleware.CurrentStudent(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": caller})
}
