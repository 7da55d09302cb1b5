// Package api exposes the HTTP surface: mass actions and mail account
// administration.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gocrm-io/gocrm-ce/internal/middleware"
)

// Router wires handlers and middleware onto a gin engine.
type Router struct {
	engine         *gin.Engine
	massActions    *MassActionHandler
	mailAccounts   *MailAccountHandler
	authMiddleware *middleware.AuthMiddleware
}

func NewRouter(engine *gin.Engine, massActions *MassActionHandler, mailAccounts *MailAccountHandler, authMiddleware *middleware.AuthMiddleware) *Router {
	return &Router{
		engine:         engine,
		massActions:    massActions,
		mailAccounts:   mailAccounts,
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes configures all API routes.
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.RequestID())

	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(r.authMiddleware.RequireAuth())
	{
		protected.POST("/:entityType/mass-action", r.massActions.Submit)
		protected.GET("/mass-actions/:id/status", r.massActions.Status)
		protected.POST("/mass-actions/:id/subscribe", r.massActions.Subscribe)
	}

	admin := protected.Group("/mail-accounts")
	admin.Use(r.authMiddleware.RequireAdmin())
	{
		admin.GET("", r.mailAccounts.List)
		admin.POST("", r.mailAccounts.Create)
		admin.GET("/:id", r.mailAccounts.Get)
		admin.GET("/:id/poll-status", r.mailAccounts.PollStatus)
		admin.PUT("/:id", r.mailAccounts.Update)
		admin.DELETE("/:id", r.mailAccounts.Delete)
		admin.POST("/test-connection", r.mailAccounts.TestConnection)
		admin.POST("/folders", r.mailAccounts.ListFolders)
	}
}
