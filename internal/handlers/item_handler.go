package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/services"
	"github.com/classcode-io/activity-service/internal/utils"
)

type ItemHandler struct {
	BaseHandler
	itemService services.ItemService
}

func NewItemHandler(itemService services.ItemService, logger utils.Logger) *ItemHandler {
	return &ItemHandler{
		BaseHandler: NewBaseHandler(logger),
		itemService: itemService,
	}
}

func (h *ItemHandler) Create(c *gin.Context) {
	teacherID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var item models.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	created, err := h.itemService.Create(c.Request.Context(), teacherID, &item)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ItemHandler) Get(c *gin.Context) {
	itemID := h.parseIDParam(c, "id")
	if itemID == 0 {
		return
	}

	item, err := h.itemService.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) List(c *gin.Context) {
	teacherID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	items, err := h.itemService.ListForTeacher(c.Request.Context(), teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *ItemHandler) Delete(c *gin.Context) {
	itemID := h.parseIDParam(c, "id")
	if itemID == 0 {
		return
	}

	teacherID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	if err := h.itemService.Delete(c.Request.Context(), itemID, teacherID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateTestCases replaces an item's test cases and cascades the new point
// totals to every activity that references the item.
func (h *ItemHandler) UpdateTestCases(c *gin.Context) {
	itemID := h.parseIDParam(c, "id")
	if itemID == 0 {
		return
	}

	teacherID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	var req services.UpdateTestCasesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating item test cases", "item_id", itemID, "teacher_id", teacherID)

	item, err := h.itemService.UpdateTestCases(c.Request.Context(), itemID, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
