package services

import (
	"context"

	"BSA-TMPL/internal/apperr"
	"BSA-TMPL/internal/logger"
	"BSA-TMPL/internal/mapper"
	"BSA-TMPL/internal/models"
	"BSA-TMPL/internal/schema"
)

// TemplateManager is the single entry point for the engine's public operations. It
// orchestrates the schema catalog, the field mapper, and the instance store.
type TemplateManager struct {
	store  *InstanceStore
	mapper *mapper.Mapper
	log    *logger.Logger
}

func NewTemplateManager(store *InstanceStore, fieldMapper *mapper.Mapper, baseLog *logger.Logger) *TemplateManager {
	return &TemplateManager{
		store:  store,
		mapper: fieldMapper,
		log:    baseLog.With("service", "TemplateManager"),
	}
}

// GenerateFromAnalysis populates the one live instance for (userID, documentKind)
// from an analysis run. Safe to call repeatedly as new runs complete; each call is
// a full re-population that wholesale replaces the data map, including any manual
// field overrides made since the last run.
func (m *TemplateManager) GenerateFromAnalysis(ctx context.Context, userID, documentKind string, analysisResult, worksheetData map[string]interface{}) (*models.TemplateInstance, error) {
	if _, ok := schema.Lookup(documentKind); !ok {
		return nil, apperr.UnknownTemplate(documentKind)
	}

	fieldValues := m.mapper.Map(documentKind, analysisResult, worksheetData)

	instance, err := m.store.Upsert(ctx, userID, documentKind, fieldValues, analysisResult)
	if err != nil {
		return nil, err
	}

	m.log.Info("generated template from analysis",
		"user_id", userID, "document_kind", documentKind, "instance_id", instance.ID)
	return instance, nil
}

// CustomizeField records a manual override on the live instance.
func (m *TemplateManager) CustomizeField(ctx context.Context, instanceID, fieldName string, newValue interface{}, reason string) (*models.Customization, error) {
	return m.store.CustomizeField(ctx, instanceID, fieldName, newValue, reason)
}

// SnapshotVersion freezes the instance's present state, whatever mixture of
// auto-populated and customized values it holds.
func (m *TemplateManager) SnapshotVersion(ctx context.Context, instanceID, versionLabel, changeDescription, actorID string) (*models.VersionSnapshot, error) {
	return m.store.SnapshotVersion(ctx, instanceID, versionLabel, changeDescription, actorID)
}

// RecordDownload appends a download receipt for an instance.
func (m *TemplateManager) RecordDownload(ctx context.Context, instanceID, userID, format string, fileSize int64) (*models.DownloadReceipt, error) {
	return m.store.RecordDownload(ctx, instanceID, userID, format, fileSize)
}

// ArchiveInstance retires the live instance so a later generate starts fresh.
func (m *TemplateManager) ArchiveInstance(ctx context.Context, instanceID string) error {
	return m.store.ArchiveInstance(ctx, instanceID)
}

func (m *TemplateManager) GetInstance(ctx context.Context, userID, documentKind string) (*models.TemplateInstance, error) {
	return m.store.GetInstance(ctx, userID, documentKind)
}

func (m *TemplateManager) ListInstances(ctx context.Context, userID string) ([]models.TemplateInstance, error) {
	return m.store.ListInstances(ctx, userID)
}

func (m *TemplateManager) ListVersions(ctx context.Context, instanceID string) ([]models.VersionSnapshot, error) {
	return m.store.ListVersions(ctx, instanceID)
}

func (m *TemplateManager) ListCustomizations(ctx context.Context, instanceID string) ([]models.Customization, error) {
	return m.store.ListCustomizations(ctx, instanceID)
}

func (m *TemplateManager) GetAnalysisLink(ctx context.Context, instanceID string) (*models.AnalysisLink, error) {
	return m.store.GetAnalysisLink(ctx, instanceID)
}
