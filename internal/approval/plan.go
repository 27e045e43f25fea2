package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/presale/internal/ledger"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/tally"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
)

// NewPlan holds the fields of a presale plan to create.
type NewPlan struct {
	OpportunityID string
	Name          string
	Description   string
	DivisionID    string
	ActorID       string
	// Draft creates the plan without opening its voting window.
	Draft bool
}

// CreatePlan stores a presale plan for an existing opportunity. Non-draft
// plans start Pending with a voting deadline of now plus the pending window.
func (s *Service) CreatePlan(ctx context.Context, in NewPlan) (Result, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Result{}, fmt.Errorf("approval: %w: plan name is required", workflow.ErrValidation)
	}
	if in.OpportunityID == "" {
		return Result{}, fmt.Errorf("approval: %w: opportunity id is required", workflow.ErrValidation)
	}
	if in.ActorID == "" {
		return Result{}, fmt.Errorf("approval: %w: actor id is required", workflow.ErrValidation)
	}
	plan := models.PresalePlan{
		ID:            uuid.New().String(),
		OpportunityID: in.OpportunityID,
		Name:          in.Name,
		Description:   in.Description,
		DivisionID:    in.DivisionID,
		Status:        workflow.PlanPending,
		Version:       workflow.InitialVersion,
		CreatedBy:     in.ActorID,
	}
	if in.Draft {
		plan.Status = workflow.PlanDraft
	} else {
		until := s.now().Add(s.planWindow)
		plan.PendingUntil = &until
	}

	var ledgerID string
	err := s.mutate(ctx, subjectKey(workflow.KindPresalePlan, plan.ID), func(tx *gorm.DB) error {
		if _, err := load(tx, workflow.KindOpportunity, in.OpportunityID, false); err != nil {
			return err
		}
		if err := tx.Create(&plan).Error; err != nil {
			return fmt.Errorf("approval: create plan: %w: %w", workflow.ErrPersistence, err)
		}
		var err error
		ledgerID, err = ledger.Append(tx, ledger.Entry{
			Kind:      workflow.KindPresalePlan,
			SubjectID: plan.ID,
			Status:    plan.Status,
			Version:   plan.Version,
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
		Kind:          workflow.KindPresalePlan,
		SubjectID:     plan.ID,
		Status:        plan.Status,
		Version:       plan.Version,
		LedgerEntryID: ledgerID,
	}, nil
}

// SubmitPlan moves a draft plan to Pending and starts its voting window.
func (s *Service) SubmitPlan(ctx context.Context, id, actor string) (Result, error) {
	ev := workflow.Event{Type: workflow.EventSubmit}
	return s.transition(ctx, workflow.KindPresalePlan, id, actor, ev, false,
		func(*gorm.DB, workflow.Subject) (map[string]interface{}, error) {
			return map[string]interface{}{"pending_until": s.now().Add(s.planWindow)}, nil
		})
}

// PlanUpdate edits a plan that is still a draft or open for votes. Nil
// fields are left as they are.
type PlanUpdate struct {
	ID          string
	ActorID     string
	Name        *string
	Description *string
	Note        string
}

// UpdatePlan edits a plan and bumps its revision.
func (s *Service) UpdatePlan(ctx context.Context, in PlanUpdate) (Result, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Result{}, fmt.Errorf("approval: %w: plan name cannot be blank", workflow.ErrValidation)
	}
	fields := map[string]interface{}{}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	ev := workflow.Event{Type: workflow.EventEdit, Note: in.Note}
	return s.transition(ctx, workflow.KindPresalePlan, in.ID, in.ActorID, ev, false,
		func(*gorm.DB, workflow.Subject) (map[string]interface{}, error) { return fields, nil })
}

// PlanView is a plan with its derived approver list.
type PlanView struct {
	Plan       models.PresalePlan `json:"plan"`
	ApprovedBy []string           `json:"approvedBy"`
}

// GetPlan loads a plan with its comment thread.
func (s *Service) GetPlan(ctx context.Context, id string) (*PlanView, error) {
	db := s.db.WithContext(ctx)
	var plan models.PresalePlan
	err := db.Preload("Comments", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, getError("presale plan", id, err)
	}
	approvers, err := tally.ApprovedBy(db, id)
	if err != nil {
		return nil, err
	}
	return &PlanView{Plan: plan, ApprovedBy: approvers}, nil
}

// OverduePlans lists open, non-deleted plans whose deadline has passed,
// oldest deadline first.
func (s *Service) OverduePlans(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.PresalePlan{}).
		Where("status IN ? AND deleted = ? AND pending_until IS NOT NULL AND pending_until <= ?",
			[]string{workflow.PlanPending, workflow.PlanInReview}, false, s.now()).
		Order("pending_until ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("approval: list overdue plans: %w: %w", workflow.ErrPersistence, err)
	}
	return ids, nil
}

// ResolveDeadline force-resolves an overdue plan from its current tally.
// It reports false without error when the plan was already resolved,
// deleted or is not yet due, so repeated sweeps are harmless.
func (s *Service) ResolveDeadline(ctx context.Context, id string) (Result, bool, error) {
	var (
		res      Result
		resolved bool
		name     string
	)
	err := s.mutate(ctx, subjectKey(workflow.KindPresalePlan, id), func(tx *gorm.DB) error {
		resolved = false
		subj, err := load(tx, workflow.KindPresalePlan, id, true)
		if err != nil {
			return err
		}
		plan := subj.(*models.PresalePlan)
		if !dueForSweep(plan, s.now()) {
			return nil
		}
		t, err := tally.Plan(tx, plan.ID)
		if err != nil {
			return err
		}
		if err := tally.SyncPlanCounts(tx, plan.ID, t); err != nil {
			return err
		}
		out, ledgerID, err := s.apply(tx, plan, workflow.Event{Type: workflow.EventDeadlinePassed, Tally: t}, SystemActor, nil)
		if err != nil {
			return err
		}
		if out.Resolution == workflow.ApprovalApproved && plan.OpportunityID != "" {
			if err := s.linkPlan(tx, plan.OpportunityID, plan.ID, SystemActor); err != nil {
				return err
			}
		}
		res = resultOf(plan, out, ledgerID)
		res.Tally = &t
		resolved = true
		name = plan.Name
		return nil
	})
	if err != nil {
		return Result{}, false, err
	}
	if resolved {
		s.announce(ctx, res, name, SystemActor)
	}
	return res, resolved, nil
}

func dueForSweep(p *models.PresalePlan, now time.Time) bool {
	if p.Deleted || p.PendingUntil == nil || p.PendingUntil.After(now) {
		return false
	}
	return p.Status == workflow.PlanPending || p.Status == workflow.PlanInReview
}
