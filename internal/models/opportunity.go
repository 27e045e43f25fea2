package models

import (
	"time"

	"github.com/zulandar/presale/internal/workflow"
)

// Opportunity is a sales opportunity awaiting presale approval.
type Opportunity struct {
	ID             string           `gorm:"primaryKey;size:36"`
	Name           string           `gorm:"size:255;not null"`
	Client         string           `gorm:"size:255"`
	Description    string           `gorm:"type:text"`
	DivisionID     string           `gorm:"size:36;index"`
	Status         string           `gorm:"size:16;default:Open;index"`
	ApprovalStatus string           `gorm:"size:16;default:Pending;index"`
	Version        workflow.Version `gorm:"not null"`
	LedgerSeq      int              `gorm:"not null;default:0"`
	PresalePlanID  *string          `gorm:"size:36"`
	Deleted        bool             `gorm:"default:false;index"`
	CreatedBy      string           `gorm:"size:64"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Versions []OpportunityVersion `gorm:"foreignKey:OpportunityID"`
}

func (o *Opportunity) SubjectKind() workflow.Kind       { return workflow.KindOpportunity }
func (o *Opportunity) SubjectID() string                { return o.ID }
func (o *Opportunity) SubjectStatus() string            { return o.Status }
func (o *Opportunity) SubjectVersion() workflow.Version { return o.Version }
func (o *Opportunity) IsDeleted() bool                  { return o.Deleted }
func (o *Opportunity) ApprovalState() string            { return o.ApprovalStatus }

// OpportunityVersion is one immutable ledger row for an opportunity.
type OpportunityVersion struct {
	ID            string           `gorm:"primaryKey;size:36"`
	OpportunityID string           `gorm:"size:36;not null;uniqueIndex:idx_opportunity_versions_seq"`
	Seq           int              `gorm:"not null;uniqueIndex:idx_opportunity_versions_seq"`
	VersionNumber workflow.Version `gorm:"not null"`
	Status        string           `gorm:"size:16"`
	Changes       string           `gorm:"type:text"`
	UpdatedBy     string           `gorm:"size:64"`
	CreatedAt     time.Time
}
