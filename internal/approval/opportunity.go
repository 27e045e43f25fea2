package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/presale/internal/ledger"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
)

// NewOpportunity holds the fields of an opportunity to create.
type NewOpportunity struct {
	Name        string
	Client      string
	Description string
	DivisionID  string
	ActorID     string
}

// CreateOpportunity stores a new opportunity awaiting approval at version 1.
func (s *Service) CreateOpportunity(ctx context.Context, in NewOpportunity) (Result, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Result{}, fmt.Errorf("approval: %w: opportunity name is required", workflow.ErrValidation)
	}
	if in.ActorID == "" {
		return Result{}, fmt.Errorf("approval: %w: actor id is required", workflow.ErrValidation)
	}
	opp := models.Opportunity{
		ID:             uuid.New().String(),
		Name:           in.Name,
		Client:         in.Client,
		Description:    in.Description,
		DivisionID:     in.DivisionID,
		Status:         workflow.OpportunityOpen,
		ApprovalStatus: workflow.ApprovalPending,
		Version:        workflow.InitialVersion,
		CreatedBy:      in.ActorID,
	}
	var ledgerID string
	err := s.mutate(ctx, subjectKey(workflow.KindOpportunity, opp.ID), func(tx *gorm.DB) error {
		if err := tx.Create(&opp).Error; err != nil {
			return fmt.Errorf("approval: create opportunity: %w: %w", workflow.ErrPersistence, err)
		}
		var err error
		ledgerID, err = ledger.Append(tx, ledger.Entry{
			Kind:      workflow.KindOpportunity,
			SubjectID: opp.ID,
			Status:    opp.Status,
			Version:   opp.Version,
			Changes:   "created",
			Actor:     in.ActorID,
			At:        s.now(),
		})
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Kind:           workflow.KindOpportunity,
		SubjectID:      opp.ID,
		Status:         opp.Status,
		ApprovalStatus: opp.ApprovalStatus,
		Version:        opp.Version,
		LedgerEntryID:  ledgerID,
	}, nil
}

// OpportunityUpdate edits a rejected opportunity and puts it back up for
// approval. Nil fields are left as they are.
type OpportunityUpdate struct {
	ID          string
	ActorID     string
	Name        *string
	Client      *string
	Description *string
	Note        string
}

// ResubmitOpportunity is the only way back into the approval cycle after a
// rejection. The version is not changed.
func (s *Service) ResubmitOpportunity(ctx context.Context, in OpportunityUpdate) (Result, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Result{}, fmt.Errorf("approval: %w: opportunity name cannot be blank", workflow.ErrValidation)
	}
	fields := map[string]interface{}{}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Client != nil {
		fields["client"] = *in.Client
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	ev := workflow.Event{Type: workflow.EventResubmit, Note: in.Note}
	return s.transition(ctx, workflow.KindOpportunity, in.ID, in.ActorID, ev, false,
		func(*gorm.DB, workflow.Subject) (map[string]interface{}, error) { return fields, nil })
}

// GetOpportunity loads an opportunity, deleted or not.
func (s *Service) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&opp).Error; err != nil {
		return nil, getError("opportunity", id, err)
	}
	return &opp, nil
}

func getError(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("approval: %w: %s %s", workflow.ErrNotFound, kind, id)
	}
	return fmt.Errorf("approval: get %s %s: %w: %w", kind, id, workflow.ErrPersistence, err)
}
