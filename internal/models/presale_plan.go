package models

import (
	"time"

	"github.com/zulandar/presale/internal/workflow"
)

// PresalePlan is a quorum-approved plan attached to an opportunity.
type PresalePlan struct {
	ID            string           `gorm:"primaryKey;size:36"`
	OpportunityID string           `gorm:"size:36;index"`
	Name          string           `gorm:"size:255;not null"`
	Description   string           `gorm:"type:text"`
	DivisionID    string           `gorm:"size:36;index"`
	Status        string           `gorm:"size:16;default:Pending;index"`
	Version       workflow.Version `gorm:"not null"`
	LedgerSeq     int              `gorm:"not null;default:0"`
	PendingUntil  *time.Time       `gorm:"index"`
	// Maintained in the same transaction that records each vote.
	ApprovalCount  int    `gorm:"not null;default:0"`
	RejectionCount int    `gorm:"not null;default:0"`
	Deleted        bool   `gorm:"default:false;index"`
	CreatedBy      string `gorm:"size:64"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Comments []PresalePlanComment `gorm:"foreignKey:PlanID"`
	Versions []PresalePlanVersion `gorm:"foreignKey:PlanID"`
}

func (p *PresalePlan) SubjectKind() workflow.Kind       { return workflow.KindPresalePlan }
func (p *PresalePlan) SubjectID() string                { return p.ID }
func (p *PresalePlan) SubjectStatus() string            { return p.Status }
func (p *PresalePlan) SubjectVersion() workflow.Version { return p.Version }
func (p *PresalePlan) IsDeleted() bool                  { return p.Deleted }

// PresalePlanComment is a comment or vote on a plan. VoteKey is set only for
// votes, which makes the one-vote-per-user rule a unique index.
type PresalePlanComment struct {
	ID             string  `gorm:"primaryKey;size:36"`
	PlanID         string  `gorm:"size:36;not null;index"`
	AuthorID       string  `gorm:"size:64;not null"`
	Text           string  `gorm:"type:text"`
	ApprovalStatus string  `gorm:"size:16;index"`
	ParentID       *string `gorm:"size:36"`
	VoteKey        *string `gorm:"size:128;uniqueIndex"`
	CreatedAt      time.Time
}

// PresalePlanVersion is one immutable ledger row for a plan.
type PresalePlanVersion struct {
	ID            string           `gorm:"primaryKey;size:36"`
	PlanID        string           `gorm:"size:36;not null;uniqueIndex:idx_presale_plan_versions_seq"`
	Seq           int              `gorm:"not null;uniqueIndex:idx_presale_plan_versions_seq"`
	VersionNumber workflow.Version `gorm:"not null"`
	Status        string           `gorm:"size:16"`
	Changes       string           `gorm:"type:text"`
	UpdatedBy     string           `gorm:"size:64"`
	CreatedAt     time.Time
}
