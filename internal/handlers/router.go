package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classcode-io/activity-service/internal/config"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/services"
	"github.com/classcode-io/activity-service/internal/utils"
)

// HandlerManager owns every HTTP handler and wires them onto the router.
type HandlerManager struct {
	activityHandler   *ActivityHandler
	itemHandler       *ItemHandler
	progressHandler   *ProgressHandler
	submissionHandler *SubmissionHandler
	authMiddleware    *CasdoorAuthMiddleware
	serviceManager    services.ServiceManager
	logger            utils.Logger
}

type HandlerManagerConfig struct {
	ServiceManager services.ServiceManager
	UserRepository repositories.UserRepository
	Casdoor        config.CasdoorConfig
	Logger         utils.Logger
}

func NewHandlerManager(cfg HandlerManagerConfig) *HandlerManager {
	return &HandlerManager{
		activityHandler:   NewActivityHandler(cfg.ServiceManager.Activity(), cfg.Logger),
		itemHandler:       NewItemHandler(cfg.ServiceManager.Item(), cfg.Logger),
		progressHandler:   NewProgressHandler(cfg.ServiceManager.Progress(), cfg.Logger),
		submissionHandler: NewSubmissionHandler(cfg.ServiceManager.Submission(), cfg.Logger),
		authMiddleware:    NewCasdoorAuthMiddleware(cfg.Casdoor, cfg.UserRepository),
		serviceManager:    cfg.ServiceManager,
		logger:            cfg.Logger,
	}
}

// SetupRoutes registers the full API surface under /api/v1.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())

	teacherOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	activities := v1.Group("/activities")
	{
		activities.POST("", teacherOnly, hm.activityHandler.Create)
		activities.GET("", hm.activityHandler.List)
		activities.GET("/:id", hm.activityHandler.Get)
		activities.PUT("/:id", teacherOnly, hm.activityHandler.Update)
		activities.DELETE("/:id", teacherOnly, hm.activityHandler.Delete)

		activities.POST("/:id/progress", hm.progressHandler.SaveDraft)
		activities.GET("/:id/progress", hm.progressHandler.GetDraft)
		activities.DELETE("/:id/progress", hm.progressHandler.ClearDraft)
		activities.POST("/:id/check-code", hm.progressHandler.RunCheckCode)

		activities.POST("/:id/submission", hm.submissionHandler.Finalize)
		activities.GET("/:id/submissions", hm.submissionHandler.List)
		activities.PUT("/:id/submissions/:sid", hm.submissionHandler.Update)
		activities.DELETE("/:id/submissions/:sid", hm.submissionHandler.Delete)
		activities.GET("/:id/attempts", hm.submissionHandler.AttemptHistory)

		activities.GET("/:id/leaderboard", hm.submissionHandler.Leaderboard)
		activities.GET("/:id/leaderboard/export", teacherOnly, hm.submissionHandler.ExportLeaderboard)
		activities.POST("/:id/recompute", teacherOnly, hm.submissionHandler.Recompute)
	}

	items := v1.Group("/items")
	{
		items.POST("", teacherOnly, hm.itemHandler.Create)
		items.GET("", teacherOnly, hm.itemHandler.List)
		items.GET("/:id", hm.itemHandler.Get)
		items.DELETE("/:id", teacherOnly, hm.itemHandler.Delete)
		items.PUT("/:id/test-cases", teacherOnly, hm.itemHandler.UpdateTestCases)
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
