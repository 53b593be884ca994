package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classcode-io/activity-service/internal/services"
	"github.com/classcode-io/activity-service/internal/utils"
)

type ProgressHandler struct {
	BaseHandler
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService, logger utils.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:     NewBaseHandler(logger),
		progressService: progressService,
	}
}

// SaveDraft upserts the caller's autosave for the activity.
func (h *ProgressHandler) SaveDraft(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	owner, ok := currentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var req services.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	draft, err := h.progressService.SaveDraft(c.Request.Context(), activityID, owner, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// GetDraft returns the caller's current autosave, including the derived
// wall-clock end time.
func (h *ProgressHandler) GetDraft(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	owner, ok := currentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	draft, err := h.progressService.GetDraft(c.Request.Context(), activityID, owner)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// ClearDraft abandons the in-flight attempt.
func (h *ProgressHandler) ClearDraft(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	owner, ok := currentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	if err := h.progressService.ClearDraft(c.Request.Context(), activityID, owner); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunCheckCode records one trial run and returns the score the item is
// currently worth for the caller.
func (h *ProgressHandler) RunCheckCode(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	owner, ok := currentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var req services.RunCheckCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Recording check code run", "activity_id", activityID, "item_id", req.ItemID)

	result, err := h.progressService.RunCheckCode(c.Request.Context(), activityID, owner, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
