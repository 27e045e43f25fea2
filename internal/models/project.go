package models

import (
	"time"

	"github.com/zulandar/presale/internal/workflow"
)

// Project is a delivery project. It has no version of its own; the version
// lives on its TemplateData.
type Project struct {
	ID            string  `gorm:"primaryKey;size:36"`
	Name          string  `gorm:"size:255;not null;index"`
	// LiveName mirrors Name while the project is not archived and is NULL
	// otherwise, so the unique index only covers live projects.
	LiveName      *string `gorm:"size:255;uniqueIndex"`
	Description   string  `gorm:"type:text"`
	OpportunityID *string `gorm:"size:36;index"`
	DivisionID    string  `gorm:"size:36;index"`
	Status        string  `gorm:"size:16;default:Pending;index"`
	LedgerSeq     int     `gorm:"not null;default:0"`
	ReviewRound   int     `gorm:"not null;default:1"`
	SourceID      *string `gorm:"size:36"`
	Deleted       bool    `gorm:"default:false;index"`
	CreatedBy     string  `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Template     TemplateData          `gorm:"foreignKey:ProjectID"`
	Comments     []ProjectComment      `gorm:"foreignKey:ProjectID"`
	Versions     []ProjectVersion      `gorm:"foreignKey:ProjectID"`
	Resources    []ProjectResource     `gorm:"foreignKey:ProjectID"`
	Technologies []ProjectTechnology   `gorm:"foreignKey:ProjectID"`
	Checklists   []ProjectChecklist    `gorm:"foreignKey:ProjectID"`
	Assumptions  []ProjectAssumption   `gorm:"foreignKey:ProjectID"`
	Productivity []ProjectProductivity `gorm:"foreignKey:ProjectID"`
}

func (p *Project) SubjectKind() workflow.Kind { return workflow.KindProject }
func (p *Project) SubjectID() string          { return p.ID }
func (p *Project) SubjectStatus() string      { return p.Status }
func (p *Project) IsDeleted() bool            { return p.Deleted }

// SubjectVersion reads the template version; Template must be loaded.
func (p *Project) SubjectVersion() workflow.Version { return p.Template.Version }

// Project comment actions.
const (
	ActionChat     = "Chat"
	ActionApproval = "Approval"
	ActionRejected = "Rejected"
)

// ProjectComment is a threaded chat message or review decision.
type ProjectComment struct {
	ID        string  `gorm:"primaryKey;size:36"`
	ProjectID string  `gorm:"size:36;not null;index"`
	AuthorID  string  `gorm:"size:64;not null"`
	Action    string  `gorm:"size:16;not null;default:Chat"`
	Decision  string  `gorm:"size:16"`
	Text      string  `gorm:"type:text"`
	ParentID  *string `gorm:"size:36;index"`
	Round     int     `gorm:"not null;default:1"`
	VoteKey   *string `gorm:"size:128;uniqueIndex"`
	CreatedAt time.Time
}

// ProjectVersion is one immutable ledger row for a project. It always has a
// TemplateChange twin with the same Seq and VersionNumber.
type ProjectVersion struct {
	ID            string           `gorm:"primaryKey;size:36"`
	ProjectID     string           `gorm:"size:36;not null;uniqueIndex:idx_project_versions_seq"`
	Seq           int              `gorm:"not null;uniqueIndex:idx_project_versions_seq"`
	VersionNumber workflow.Version `gorm:"not null"`
	Status        string           `gorm:"size:16"`
	Changes       string           `gorm:"type:text"`
	UpdatedBy     string           `gorm:"size:64"`
	CreatedAt     time.Time
}

// TemplateData carries the project's version and its change log.
type TemplateData struct {
	ID        string           `gorm:"primaryKey;size:36"`
	ProjectID string           `gorm:"size:36;not null;uniqueIndex"`
	Version   workflow.Version `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ChangesLog []TemplateChange `gorm:"foreignKey:TemplateDataID"`
}

func (TemplateData) TableName() string {
	return "template_data"
}

// TemplateChange is one append-only entry of TemplateData's change log.
type TemplateChange struct {
	ID             string           `gorm:"primaryKey;size:36"`
	TemplateDataID string           `gorm:"size:36;not null;uniqueIndex:idx_template_changes_seq"`
	Seq            int              `gorm:"not null;uniqueIndex:idx_template_changes_seq"`
	VersionNumber  workflow.Version `gorm:"not null"`
	Changes        string           `gorm:"type:text"`
	UpdatedBy      string           `gorm:"size:64"`
	CreatedAt      time.Time
}
