package models

import (
	"time"

	"gorm.io/datatypes"
)

// Customization is one audited manual override of a single field. Every override is
// its own row; OriginalValue is the value read from the instance at the moment of
// the call, so repeated overrides of the same field form a diff chain.
type Customization struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstanceID      string         `gorm:"type:varchar(36);not null;index" json:"instance_id"`
	FieldName       string         `gorm:"type:varchar(128);not null" json:"field_name"`
	FieldPath       string         `gorm:"type:varchar(255)" json:"field_path,omitempty"`
	// Stored as text: values are often bare JSON scalars, and a json column type
	// gives them numeric affinity on sqlite, which corrupts the scan back.
	OriginalValue   datatypes.JSON `gorm:"type:text" json:"original_value"`
	CustomizedValue datatypes.JSON `gorm:"type:text" json:"customized_value"`
	Type            string         `gorm:"type:varchar(32);default:'manual'" json:"type"`
	Reason          string         `gorm:"type:text" json:"reason"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (Customization) TableName() string {
	return "template_customizations"
}

// VersionSnapshot is an immutable copy of an instance's data, keyed by
// (instance_id, version_number) with version numbers strictly increasing from 1.
type VersionSnapshot struct {
	ID                string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstanceID        string            `gorm:"type:varchar(36);not null;uniqueIndex:idx_template_versions_instance_number,priority:1" json:"instance_id"`
	VersionNumber     int               `gorm:"not null;uniqueIndex:idx_template_versions_instance_number,priority:2" json:"version_number"`
	VersionLabel      string            `gorm:"type:varchar(64)" json:"version_label"`
	Data              datatypes.JSONMap `gorm:"type:json" json:"data"`
	ChangeDescription string            `gorm:"type:text" json:"change_description"`
	CreatedBy         string            `gorm:"type:varchar(36)" json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
}

func (VersionSnapshot) TableName() string {
	return "template_versions"
}

// DownloadReceipt is a pure audit log entry for an export; no invariants beyond
// append-only.
type DownloadReceipt struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstanceID   string    `gorm:"type:varchar(36);not null;index" json:"instance_id"`
	UserID       string    `gorm:"type:varchar(36);not null" json:"user_id"`
	Format       string    `gorm:"type:varchar(16);not null" json:"format"`
	FileSize     int64     `json:"file_size"`
	DownloadedAt time.Time `gorm:"autoCreateTime" json:"downloaded_at"`
}

func (DownloadReceipt) TableName() string {
	return "template_downloads"
}
