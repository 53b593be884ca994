package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/services"
	"github.com/classcode-io/activity-service/internal/utils"
)

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
}

func NewSubmissionHandler(submissionService services.SubmissionService, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
	}
}

// Finalize turns the caller's draft into a scored, ranked attempt.
func (h *SubmissionHandler) Finalize(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	studentID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var req services.FinalizeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Finalizing submission", "activity_id", activityID, "student_id", studentID)

	result, err := h.submissionService.Finalize(c.Request.Context(), activityID, studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *SubmissionHandler) List(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	requesterID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	filters := repositories.SubmissionFilters{
		Limit:  parseQueryInt(c, "limit", 50),
		Offset: parseQueryInt(c, "offset", 0),
	}
	if raw := c.Query("attempt_no"); raw != "" {
		if attemptNo, err := strconv.Atoi(raw); err == nil {
			filters.AttemptNo = &attemptNo
		}
	}
	if raw := c.Query("student_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			studentID := uint(id)
			filters.StudentID = &studentID
		}
	}

	result, err := h.submissionService.ListSubmissions(c.Request.Context(), activityID, requesterID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SubmissionHandler) Update(c *gin.Context) {
	submissionID := h.parseIDParam(c, "sid")
	if submissionID == 0 {
		return
	}

	studentID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var req services.UpdateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	submission, err := h.submissionService.UpdateSubmission(c.Request.Context(), submissionID, studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (h *SubmissionHandler) Delete(c *gin.Context) {
	submissionID := h.parseIDParam(c, "sid")
	if submissionID == 0 {
		return
	}

	studentID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	if err := h.submissionService.DeleteSubmission(c.Request.Context(), submissionID, studentID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leaderboard returns the ordered standings for enrolled students.
func (h *SubmissionHandler) Leaderboard(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	board, err := h.submissionService.Leaderboard(c.Request.Context(), activityID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// ExportLeaderboard streams the standings as a spreadsheet download.
func (h *SubmissionHandler) ExportLeaderboard(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	requesterID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	data, filename, err := h.submissionService.ExportLeaderboard(c.Request.Context(), activityID, requesterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// Recompute regrades the whole activity from stored submissions.
func (h *SubmissionHandler) Recompute(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	requesterID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Recomputing final results", "activity_id", activityID)

	if err := h.submissionService.RecomputeFinalResults(c.Request.Context(), activityID, requesterID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "final results recomputed"})
}

// AttemptHistory returns the caller's per-attempt totals for the activity.
func (h *SubmissionHandler) AttemptHistory(c *gin.Context) {
	activityID := h.parseIDParam(c, "id")
	if activityID == 0 {
		return
	}

	studentID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	history, err := h.submissionService.AttemptHistory(c.Request.Context(), activityID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func parseQueryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
