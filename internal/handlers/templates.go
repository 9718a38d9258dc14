package handlers

import (
	"net/http"

	"BSA-TMPL/internal/apperr"
	"BSA-TMPL/internal/schema"
	"BSA-TMPL/internal/services"

	"github.com/gin-gonic/gin"
)

type TemplatesHandler struct {
	manager *services.TemplateManager
}

func NewTemplatesHandler(manager *services.TemplateManager) *TemplatesHandler {
	return &TemplatesHandler{manager: manager}
}

type GenerateRequest struct {
	UserID         string                 `json:"user_id" binding:"required"`
	DocumentKind   string                 `json:"document_kind" binding:"required"`
	AnalysisResult map[string]interface{} `json:"analysis_result" binding:"required"`
	WorksheetData  map[string]interface{} `json:"worksheet_data"`
}

type CustomizeRequest struct {
	FieldName string      `json:"field_name" binding:"required"`
	NewValue  interface{} `json:"new_value"`
	Reason    string      `json:"reason"`
}

type SnapshotRequest struct {
	VersionLabel      string `json:"version_label"`
	ChangeDescription string `json:"change_description"`
	ActorID           string `json:"actor_id" binding:"required"`
}

type CustomizeResponse struct {
	FieldName string      `json:"field_name"`
	NewValue  interface{} `json:"new_value"`
}

type SnapshotResponse struct {
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	VersionLabel  string `json:"version_label"`
}

// respondError maps typed service errors to their HTTP status; anything untyped
// is a 500.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.StatusOf(err), gin.H{
		"error": err.Error(),
		"code":  apperr.CodeOf(err),
	})
}

// GenerateFromAnalysis is the entry point the analysis pipeline calls after a
// scoring run completes.
func (h *TemplatesHandler) GenerateFromAnalysis(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	instance, err := h.manager.GenerateFromAnalysis(c.Request.Context(), req.UserID, req.DocumentKind, req.AnalysisResult, req.WorksheetData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, instance)
}

func (h *TemplatesHandler) CustomizeField(c *gin.Context) {
	instanceID := c.Param("instanceId")

	var req CustomizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if _, err := h.manager.CustomizeField(c.Request.Context(), instanceID, req.FieldName, req.NewValue, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CustomizeResponse{FieldName: req.FieldName, NewValue: req.NewValue})
}

func (h *TemplatesHandler) SnapshotVersion(c *gin.Context) {
	instanceID := c.Param("instanceId")

	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	snapshot, err := h.manager.SnapshotVersion(c.Request.Context(), instanceID, req.VersionLabel, req.ChangeDescription, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SnapshotResponse{
		VersionID:     snapshot.ID,
		VersionNumber: snapshot.VersionNumber,
		VersionLabel:  snapshot.VersionLabel,
	})
}

func (h *TemplatesHandler) GetInstance(c *gin.Context) {
	instance, err := h.manager.GetInstance(c.Request.Context(), c.Param("userId"), c.Param("documentKind"))
	if err != nil {
		respondError(c, err)
		return
	}
	if instance == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No instance for this user and document kind"})
		return
	}
	c.JSON(http.StatusOK, instance)
}

func (h *TemplatesHandler) ListInstances(c *gin.Context) {
	instances, err := h.manager.ListInstances(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": instances})
}

func (h *TemplatesHandler) ListVersions(c *gin.Context) {
	versions, err := h.manager.ListVersions(c.Request.Context(), c.Param("instanceId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (h *TemplatesHandler) ListCustomizations(c *gin.Context) {
	customizations, err := h.manager.ListCustomizations(c.Request.Context(), c.Param("instanceId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customizations": customizations})
}

func (h *TemplatesHandler) ArchiveInstance(c *gin.Context) {
	if err := h.manager.ArchiveInstance(c.Request.Context(), c.Param("instanceId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Instance archived"})
}

// ListKinds exposes the schema catalog so callers can discover supported document
// kinds and their customizable fields.
func (h *TemplatesHandler) ListKinds(c *gin.Context) {
	kinds := schema.Kinds()
	definitions := make([]*schema.TemplateDefinition, 0, len(kinds))
	for _, kind := range kinds {
		if d, ok := schema.Lookup(kind); ok {
			definitions = append(definitions, d)
		}
	}
	c.JSON(http.StatusOK, gin.H{"kinds": definitions})
}
