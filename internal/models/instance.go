package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	InstanceStatusDraft    = "draft"
	InstanceStatusArchived = "archived"
)

// TemplateInstance is the single live document for one (user, document kind) pair.
// At most one non-archived row exists per key; generate updates it in place.
type TemplateInstance struct {
	ID           string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string            `gorm:"type:varchar(36);not null;index:idx_template_instances_user_kind,priority:1" json:"user_id"`
	DocumentKind string            `gorm:"type:varchar(64);not null;index:idx_template_instances_user_kind,priority:2" json:"document_kind"`
	Data         datatypes.JSONMap `gorm:"type:json" json:"data"`
	Version      string            `gorm:"type:varchar(16);default:'1.0'" json:"version"`
	Status       string            `gorm:"type:varchar(16);default:'draft';index" json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`

	// AutoPopulated is set on instances returned from generate; not stored.
	AutoPopulated bool `gorm:"-" json:"auto_populated,omitempty"`

	Customizations []Customization   `gorm:"foreignKey:InstanceID" json:"customizations,omitempty"`
	Versions       []VersionSnapshot `gorm:"foreignKey:InstanceID" json:"versions,omitempty"`
}

func (TemplateInstance) TableName() string {
	return "template_instances"
}

// AnalysisLink records provenance of the most recent auto-population, one row per
// instance. It is overwritten on every re-generation, never appended.
type AnalysisLink struct {
	ID                string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstanceID        string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"instance_id"`
	AnalysisScore     float64        `json:"analysis_score"`
	AnalysisData      datatypes.JSON `gorm:"type:json" json:"analysis_data"`
	AnalysisTimestamp time.Time      `json:"analysis_timestamp"`
	AutoPopulated     bool           `gorm:"default:true" json:"auto_populated"`
	PopulatedFields   datatypes.JSON `gorm:"type:json" json:"populated_fields"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (AnalysisLink) TableName() string {
	return "template_analysis_links"
}
