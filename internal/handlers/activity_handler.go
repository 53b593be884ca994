package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/services"
	"github.com/classcode-io/activity-service/internal/utils"
)

type ActivityHandler struct {
	BaseHandler
	activityService services.ActivityService
}

func NewActivityHandler(activityService services.ActivityService, logger utils.Logger) *ActivityHandler {
	return &ActivityHandler{
		BaseHandler:     NewBaseHandler(logger),
		activityService: activityService,
	}
}

func (h *ActivityHandler) Create(c *gin.Context) {
	teacherID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var req services.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating activity", "teacher_id", teacherID)

	activity, err := h.activityService.Create(c.Request.Context(), teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, activity)
}

func (h *ActivityHandler) Get(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	activity, err := h.activityService.GetByID(c.Request.Context(), activityID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

func (h *ActivityHandler) List(c *gin.Context) {
	filters := repositories.ActivityFilters{
		Limit:     parseQueryInt(c, "limit", 50),
		Offset:    parseQueryInt(c, "offset", 0),
		OpenOnly:  c.Query("open") == "true",
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("class_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			classID := uint(id)
			filters.ClassID = &classID
		}
	}
	if raw := c.Query("teacher_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			teacherID := uint(id)
			filters.TeacherID = &teacherID
		}
	}

	activities, total, err := h.activityService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities, "total": total})
}

func (h *ActivityHandler) Update(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	teacherID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var req services.UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	activity, err := h.activityService.Update(c.Request.Context(), activityID, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

func (h *ActivityHandler) Delete(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	teacherID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Deleting activity", "activity_id", activityID)

	if err := h.activityService.Delete(c.Request.Context(), activityID, teacherID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
