package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"BSA-TMPL/internal/apperr"
	"BSA-TMPL/internal/logger"
	"BSA-TMPL/internal/storage"
)

// ExportFormatJSON is the only supported export format; PDF and DOCX rendering
// belong to a downstream system.
const ExportFormatJSON = "json"

const signedURLExpiry = time.Hour

type ExportService struct {
	gcsClient *storage.GCSClient
	store     *InstanceStore
	log       *logger.Logger
}

func NewExportService(gcsClient *storage.GCSClient, store *InstanceStore, baseLog *logger.Logger) *ExportService {
	return &ExportService{
		gcsClient: gcsClient,
		store:     store,
		log:       baseLog.With("service", "ExportService"),
	}
}

type ExportResult struct {
	DownloadID string `json:"download_id"`
	ObjectName string `json:"object_name"`
	SignedURL  string `json:"signed_url,omitempty"`
	FileSize   int64  `json:"file_size"`
	Format     string `json:"format"`
}

// ExportInstance serializes the instance's current data, uploads it to GCS, and
// records a download receipt. An unsupported format fails before anything is
// written.
func (s *ExportService) ExportInstance(ctx context.Context, instanceID, userID, format string) (*ExportResult, error) {
	if format != ExportFormatJSON {
		return nil, apperr.BadRequest(fmt.Errorf("unsupported export format %q", format))
	}

	instance, err := s.store.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(instance.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize instance data: %w", err)
	}

	objectName := storage.GenerateExportObjectName(instanceID, instance.DocumentKind, format)
	result, err := s.gcsClient.UploadFile(ctx, bytes.NewReader(payload), objectName, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to upload export to GCS: %w", err)
	}

	receipt, err := s.store.RecordDownload(ctx, instanceID, userID, format, result.Size)
	if err != nil {
		// The artifact exists but the receipt does not; remove the orphan.
		if delErr := s.gcsClient.DeleteFile(ctx, objectName); delErr != nil {
			s.log.Warn("failed to delete orphaned export", "object", objectName, "error", delErr)
		}
		return nil, err
	}

	signedURL, err := s.gcsClient.GetSignedURL(objectName, signedURLExpiry)
	if err != nil {
		s.log.Warn("failed to sign export URL", "object", objectName, "error", err)
		signedURL = ""
	}

	s.log.Info("exported instance", "instance_id", instanceID, "format", format, "size", result.Size)
	return &ExportResult{
		DownloadID: receipt.ID,
		ObjectName: objectName,
		SignedURL:  signedURL,
		FileSize:   result.Size,
		Format:     format,
	}, nil
}
