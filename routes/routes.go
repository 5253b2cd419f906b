package routes

import (
	"canteen-orders-api/handlers"
	"canteen-orders-api/middleware"
	"canteen-orders-api/models"

	"github.com/gin-gonic/gin"
)

// Deps are the handlers and middleware the router is built from
type Deps struct {
	Auth    *middleware.Auth
	Public  *handlers.PublicHandler
	Student *handlers.StudentHandler
	Staff   *handlers.StaffHandler
}

func SetupRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", d.Public.Health)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.GET("/menu", d.Public.GetMenu)
		public.GET("/state-machine", d.Public.GetStateMachineInfo)
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(d.Auth.AuthRequired())
	{
		auth.GET("/profile", handlers.GetProfile)
	}

	// ── Student routes ─────────────────────────────────────────────
	student := r.Group("/api/student")
	student.Use(d.Auth.AuthRequired(), middleware.RoleRequired(models.RoleStudent))
	{
		student.POST("/selection", d.Student.StartSelection)
		student.POST("/orders", d.Student.Commit)
		student.GET("/orders/today", d.Student.GetToday)
		student.DELETE("/orders/today", d.Student.Cancel)
		student.GET("/streak", d.Student.Streak)
	}

	// ── Staff routes ───────────────────────────────────────────────
	staff := r.Group("/api/staff")
	staff.Use(d.Auth.AuthRequired(), middleware.RoleRequired(models.RoleStaff))
	{
		staff.GET("/queue", d.Staff.Queue)
		staff.GET("/orders/:id/history", d.Staff.History)
	}
}
