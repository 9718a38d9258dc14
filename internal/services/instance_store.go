package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"BSA-TMPL/internal/apperr"
	"BSA-TMPL/internal/logger"
	"BSA-TMPL/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InstanceStore owns the durable state of the engine: the single live instance per
// (user, document kind) key, its customization audit log, its immutable version
// snapshots, its analysis link, and download receipts.
//
// The check-then-act sections (upsert, version-number assignment, customization
// reads of the current value) are serialized through a per-key mutex wrapped around
// a transaction, so two concurrent generates for the same key cannot both create an
// instance and two concurrent snapshots cannot compute the same version number.
type InstanceStore struct {
	db       *gorm.DB
	log      *logger.Logger
	keyLocks sync.Map // "userID/documentKind" -> *sync.Mutex
}

func NewInstanceStore(db *gorm.DB, baseLog *logger.Logger) *InstanceStore {
	return &InstanceStore{db: db, log: baseLog.With("service", "InstanceStore")}
}

// lockKey acquires the mutex for one (user, document kind) key and returns its
// unlock func. A live instance maps 1:1 to its key, so per-instance operations
// lock the owning key too and are thereby sequenced against concurrent upserts.
func (s *InstanceStore) lockKey(userID, documentKind string) func() {
	v, _ := s.keyLocks.LoadOrStore(userID+"/"+documentKind, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Upsert creates or replaces the live instance for (userID, documentKind). A fresh
// key gets a new draft instance at version "1.0"; an existing live instance has its
// data wholesale replaced. The analysis link is overwritten either way.
func (s *InstanceStore) Upsert(ctx context.Context, userID, documentKind string, fieldValues, analysisResult map[string]interface{}) (*models.TemplateInstance, error) {
	unlock := s.lockKey(userID, documentKind)
	defer unlock()

	var instance *models.TemplateInstance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.TemplateInstance
		err := tx.Where("user_id = ? AND document_kind = ? AND status <> ?",
			userID, documentKind, models.InstanceStatusArchived).
			Order("updated_at DESC").
			First(&existing).Error

		switch {
		case err == nil:
			existing.Data = datatypes.JSONMap(fieldValues)
			if err := tx.Model(&existing).Update("data", existing.Data).Error; err != nil {
				return fmt.Errorf("failed to update instance data: %w", err)
			}
			instance = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			created := &models.TemplateInstance{
				ID:           uuid.New().String(),
				UserID:       userID,
				DocumentKind: documentKind,
				Data:         datatypes.JSONMap(fieldValues),
				Version:      "1.0",
				Status:       models.InstanceStatusDraft,
			}
			if err := tx.Create(created).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperr.Conflict(fmt.Errorf("concurrent create for %s/%s: %w", userID, documentKind, err))
				}
				return fmt.Errorf("failed to create instance: %w", err)
			}
			instance = created
		default:
			return fmt.Errorf("failed to look up live instance: %w", err)
		}

		return s.writeAnalysisLink(tx, instance.ID, fieldValues, analysisResult)
	})
	if err != nil {
		return nil, persistence(err)
	}

	// Every upsert is the result of an analysis run.
	instance.AutoPopulated = true
	s.log.Info("upserted template instance",
		"instance_id", instance.ID, "user_id", userID, "document_kind", documentKind)
	return instance, nil
}

// writeAnalysisLink overwrites (never appends) the 1:1 provenance row for an
// instance with the latest analysis run.
func (s *InstanceStore) writeAnalysisLink(tx *gorm.DB, instanceID string, fieldValues, analysisResult map[string]interface{}) error {
	analysisJSON, err := json.Marshal(analysisResult)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis data: %w", err)
	}

	populated := make([]string, 0, len(fieldValues))
	for name := range fieldValues {
		if name == "_metadata" {
			continue
		}
		populated = append(populated, name)
	}
	sort.Strings(populated)
	populatedJSON, err := json.Marshal(populated)
	if err != nil {
		return fmt.Errorf("failed to marshal populated fields: %w", err)
	}

	var score float64
	switch n := analysisResult["score"].(type) {
	case float64:
		score = n
	case int:
		score = float64(n)
	case int64:
		score = float64(n)
	}

	var link models.AnalysisLink
	err = tx.Where("instance_id = ?", instanceID).First(&link).Error
	switch {
	case err == nil:
		return tx.Model(&link).Updates(map[string]interface{}{
			"analysis_score":     score,
			"analysis_data":      datatypes.JSON(analysisJSON),
			"analysis_timestamp": time.Now(),
			"auto_populated":     true,
			"populated_fields":   datatypes.JSON(populatedJSON),
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&models.AnalysisLink{
			ID:                uuid.New().String(),
			InstanceID:        instanceID,
			AnalysisScore:     score,
			AnalysisData:      datatypes.JSON(analysisJSON),
			AnalysisTimestamp: time.Now(),
			AutoPopulated:     true,
			PopulatedFields:   datatypes.JSON(populatedJSON),
		}).Error
	default:
		return fmt.Errorf("failed to look up analysis link: %w", err)
	}
}

// CustomizeField overrides one field on the live instance and appends an audit row.
// OriginalValue is whatever the instance holds at the moment of the call, so
// repeated overrides chain. The new value is not validated against the template
// definition's declared field type.
func (s *InstanceStore) CustomizeField(ctx context.Context, instanceID, fieldName string, newValue interface{}, reason string) (*models.Customization, error) {
	owner, err := s.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockKey(owner.UserID, owner.DocumentKind)
	defer unlock()

	var row *models.Customization
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instance, err := liveByID(tx, instanceID)
		if err != nil {
			return err
		}

		originalJSON, err := json.Marshal(instance.Data[fieldName])
		if err != nil {
			return fmt.Errorf("failed to marshal original value: %w", err)
		}
		newJSON, err := json.Marshal(newValue)
		if err != nil {
			return fmt.Errorf("failed to marshal new value: %w", err)
		}

		if instance.Data == nil {
			instance.Data = datatypes.JSONMap{}
		}
		instance.Data[fieldName] = newValue
		if err := tx.Model(instance).Update("data", instance.Data).Error; err != nil {
			return fmt.Errorf("failed to write customized field: %w", err)
		}

		row = &models.Customization{
			ID:              uuid.New().String(),
			InstanceID:      instanceID,
			FieldName:       fieldName,
			OriginalValue:   datatypes.JSON(originalJSON),
			CustomizedValue: datatypes.JSON(newJSON),
			Type:            "manual",
			Reason:          reason,
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to append customization: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, persistence(err)
	}

	s.log.Info("customized field", "instance_id", instanceID, "field", fieldName)
	return row, nil
}

// SnapshotVersion freezes the instance's current data under the next version
// number, computed as max(existing)+1 so numbers are never reused even after
// deletions. Existing snapshots are never touched.
func (s *InstanceStore) SnapshotVersion(ctx context.Context, instanceID, versionLabel, changeDescription, actorID string) (*models.VersionSnapshot, error) {
	owner, err := s.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockKey(owner.UserID, owner.DocumentKind)
	defer unlock()

	var snapshot *models.VersionSnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instance, err := liveByID(tx, instanceID)
		if err != nil {
			return err
		}

		var maxNumber int
		if err := tx.Model(&models.VersionSnapshot{}).
			Where("instance_id = ?", instanceID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return fmt.Errorf("failed to read max version number: %w", err)
		}
		number := maxNumber + 1

		label := versionLabel
		if label == "" {
			label = fmt.Sprintf("v%d", number)
		}

		data, err := copyData(instance.Data)
		if err != nil {
			return err
		}

		snapshot = &models.VersionSnapshot{
			ID:                uuid.New().String(),
			InstanceID:        instanceID,
			VersionNumber:     number,
			VersionLabel:      label,
			Data:              data,
			ChangeDescription: changeDescription,
			CreatedBy:         actorID,
		}
		if err := tx.Create(snapshot).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(fmt.Errorf("concurrent snapshot for instance %s: %w", instanceID, err))
			}
			return fmt.Errorf("failed to create version snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, persistence(err)
	}

	s.log.Info("created version snapshot",
		"instance_id", instanceID, "version_number", snapshot.VersionNumber)
	return snapshot, nil
}

// RecordDownload appends a download receipt. This is an audit log, not a source of
// truth; the instance's existence is assumed rather than enforced.
func (s *InstanceStore) RecordDownload(ctx context.Context, instanceID, userID, format string, fileSize int64) (*models.DownloadReceipt, error) {
	receipt := &models.DownloadReceipt{
		ID:         uuid.New().String(),
		InstanceID: instanceID,
		UserID:     userID,
		Format:     format,
		FileSize:   fileSize,
	}
	if err := s.db.WithContext(ctx).Create(receipt).Error; err != nil {
		return nil, persistence(fmt.Errorf("failed to record download: %w", err))
	}
	return receipt, nil
}

// ArchiveInstance transitions the live instance to archived, releasing the key so
// a later generate creates a fresh instance.
func (s *InstanceStore) ArchiveInstance(ctx context.Context, instanceID string) error {
	owner, err := s.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return err
	}
	unlock := s.lockKey(owner.UserID, owner.DocumentKind)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instance, err := liveByID(tx, instanceID)
		if err != nil {
			return err
		}
		return tx.Model(instance).Update("status", models.InstanceStatusArchived).Error
	})
	if err != nil {
		return persistence(err)
	}

	s.log.Info("archived template instance", "instance_id", instanceID)
	return nil
}

// GetInstance returns the live instance for a key, or nil when none exists.
func (s *InstanceStore) GetInstance(ctx context.Context, userID, documentKind string) (*models.TemplateInstance, error) {
	var instance models.TemplateInstance
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND document_kind = ? AND status <> ?",
			userID, documentKind, models.InstanceStatusArchived).
		Order("updated_at DESC").
		First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(fmt.Errorf("failed to fetch instance: %w", err))
	}
	return &instance, nil
}

// GetInstanceByID returns the live instance with the given id, or NotFound if it
// does not exist or is archived.
func (s *InstanceStore) GetInstanceByID(ctx context.Context, instanceID string) (*models.TemplateInstance, error) {
	instance, err := liveByID(s.db.WithContext(ctx), instanceID)
	if err != nil {
		return nil, persistence(err)
	}
	return instance, nil
}

// ListInstances returns the user's non-archived instances, most recently updated
// first.
func (s *InstanceStore) ListInstances(ctx context.Context, userID string) ([]models.TemplateInstance, error) {
	var instances []models.TemplateInstance
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, models.InstanceStatusArchived).
		Order("updated_at DESC").
		Find(&instances).Error
	if err != nil {
		return nil, persistence(fmt.Errorf("failed to list instances: %w", err))
	}
	return instances, nil
}

// ListVersions returns an instance's snapshots, highest version number first.
func (s *InstanceStore) ListVersions(ctx context.Context, instanceID string) ([]models.VersionSnapshot, error) {
	var versions []models.VersionSnapshot
	err := s.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		return nil, persistence(fmt.Errorf("failed to list versions: %w", err))
	}
	return versions, nil
}

// ListCustomizations returns an instance's audit rows, newest first.
func (s *InstanceStore) ListCustomizations(ctx context.Context, instanceID string) ([]models.Customization, error) {
	var rows []models.Customization
	err := s.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, persistence(fmt.Errorf("failed to list customizations: %w", err))
	}
	return rows, nil
}

// GetAnalysisLink returns the provenance row for an instance, or nil when the
// instance has never been auto-populated.
func (s *InstanceStore) GetAnalysisLink(ctx context.Context, instanceID string) (*models.AnalysisLink, error) {
	var link models.AnalysisLink
	err := s.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(fmt.Errorf("failed to fetch analysis link: %w", err))
	}
	return &link, nil
}

// ListDownloads returns an instance's download receipts with pagination, newest
// first, plus the total count.
func (s *InstanceStore) ListDownloads(ctx context.Context, instanceID string, limit, offset int) ([]models.DownloadReceipt, int64, error) {
	query := s.db.WithContext(ctx).Where("instance_id = ?", instanceID)

	var total int64
	if err := query.Model(&models.DownloadReceipt{}).Count(&total).Error; err != nil {
		return nil, 0, persistence(fmt.Errorf("failed to count downloads: %w", err))
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var receipts []models.DownloadReceipt
	if err := query.Order("downloaded_at DESC").Find(&receipts).Error; err != nil {
		return nil, 0, persistence(fmt.Errorf("failed to list downloads: %w", err))
	}
	return receipts, total, nil
}

func liveByID(tx *gorm.DB, instanceID string) (*models.TemplateInstance, error) {
	var instance models.TemplateInstance
	err := tx.Where("id = ? AND status <> ?", instanceID, models.InstanceStatusArchived).
		First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("template instance", instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instance %s: %w", instanceID, err)
	}
	return &instance, nil
}

// copyData deep-copies a field map through JSON so snapshots cannot alias the live
// instance's data.
func copyData(data datatypes.JSONMap) (datatypes.JSONMap, error) {
	if data == nil {
		return datatypes.JSONMap{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to copy instance data: %w", err)
	}
	var out datatypes.JSONMap
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to copy instance data: %w", err)
	}
	return out, nil
}

// persistence wraps untyped storage errors; typed errors pass through unchanged.
func persistence(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Persistence(err)
}
