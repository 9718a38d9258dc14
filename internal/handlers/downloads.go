package handlers

import (
	"net/http"
	"strconv"

	"BSA-TMPL/internal/services"

	"github.com/gin-gonic/gin"
)

type DownloadsHandler struct {
	exportService *services.ExportService
	store         *services.InstanceStore
}

func NewDownloadsHandler(exportService *services.ExportService, store *services.InstanceStore) *DownloadsHandler {
	return &DownloadsHandler{exportService: exportService, store: store}
}

type ExportRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Format string `json:"format" binding:"required"`
}

type DownloadsResponse struct {
	Downloads  interface{} `json:"downloads"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ExportInstance serializes the instance, stores the artifact, and records a
// download receipt.
func (h *DownloadsHandler) ExportInstance(c *gin.Context) {
	instanceID := c.Param("instanceId")

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	result, err := h.exportService.ExportInstance(c.Request.Context(), instanceID, req.UserID, req.Format)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListDownloads returns an instance's download receipts with pagination.
func (h *DownloadsHandler) ListDownloads(c *gin.Context) {
	instanceID := c.Param("instanceId")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	receipts, total, err := h.store.ListDownloads(c.Request.Context(), instanceID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, DownloadsResponse{
		Downloads:  receipts,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	})
}
