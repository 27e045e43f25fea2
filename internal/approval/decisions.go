package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/presale/internal/ledger"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/tally"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// decideOpportunity applies a single reviewer's decision. Opportunities are
// not quorum governed; one decision resolves them.
func (s *Service) decideOpportunity(ctx context.Context, in DecisionInput, verdict workflow.Verdict) (Result, error) {
	ev := workflow.VoteEvent(verdict, workflow.Tally{}, strings.TrimSpace(in.Comment))
	return s.transition(ctx, workflow.KindOpportunity, in.SubjectID, in.ActorID, ev, false, nil)
}

// votePlan records one vote, refreshes the tally and lets the policy decide
// whether the vote crossed the quorum.
func (s *Service) votePlan(ctx context.Context, in DecisionInput, verdict workflow.Verdict) (Result, error) {
	var (
		res  Result
		name string
	)
	err := s.mutate(ctx, subjectKey(workflow.KindPresalePlan, in.SubjectID), func(tx *gorm.DB) error {
		subj, err := load(tx, workflow.KindPresalePlan, in.SubjectID, false)
		if err != nil {
			return err
		}
		plan := subj.(*models.PresalePlan)
		policy, err := workflow.PolicyFor(workflow.KindPresalePlan, s.quorum)
		if err != nil {
			return err
		}
		if !policy.Open(plan) {
			return fmt.Errorf("approval: %w: presale plan %s is %s and no longer accepts votes", workflow.ErrInvalidState, plan.ID, plan.Status)
		}
		if err := checkPlanParent(tx, plan.ID, in.ParentID); err != nil {
			return err
		}

		comment, err := tally.RecordPlanVote(tx, tally.PlanVote{
			PlanID:   plan.ID,
			UserID:   in.ActorID,
			Verdict:  verdict,
			Text:     in.Comment,
			ParentID: in.ParentID,
		})
		if err != nil {
			return err
		}
		t, err := tally.Plan(tx, plan.ID)
		if err != nil {
			return err
		}
		if err := tally.SyncPlanCounts(tx, plan.ID, t); err != nil {
			return err
		}

		out, ledgerID, err := s.apply(tx, plan, workflow.VoteEvent(verdict, t, ""), in.ActorID, nil)
		if err != nil {
			return err
		}
		if out.Resolution == workflow.ApprovalApproved && plan.OpportunityID != "" {
			if err := s.linkPlan(tx, plan.OpportunityID, plan.ID, in.ActorID); err != nil {
				return err
			}
		}

		res = resultOf(plan, out, ledgerID)
		res.CommentID = comment.ID
		res.Tally = &t
		name = plan.Name
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.announce(ctx, res, name, in.ActorID)
	return res, nil
}

// linkPlan points the owning opportunity at an approved plan and records the
// link in the opportunity's ledger. The opportunity's own status and version
// are untouched.
func (s *Service) linkPlan(tx *gorm.DB, opportunityID, planID, actor string) error {
	var opp models.Opportunity
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", opportunityID).First(&opp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("approval: %w: opportunity %s of plan %s", workflow.ErrNotFound, opportunityID, planID)
	}
	if err != nil {
		return fmt.Errorf("approval: load opportunity %s: %w: %w", opportunityID, workflow.ErrPersistence, err)
	}
	_, err = ledger.Append(tx, ledger.Entry{
		Kind:      workflow.KindOpportunity,
		SubjectID: opp.ID,
		ExpectSeq: opp.LedgerSeq,
		Status:    opp.Status,
		Version:   opp.Version,
		Changes:   "linked approved presale plan " + planID,
		Actor:     actor,
		Fields:    map[string]interface{}{"presale_plan_id": planID},
		At:        s.now(),
	})
	return err
}

// commentPlan adds a plain comment to a plan's thread.
func (s *Service) commentPlan(ctx context.Context, planID, actorID, text string, parentID *string) (string, error) {
	if actorID == "" {
		return "", fmt.Errorf("approval: %w: actor id is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("approval: %w: comment text is required", workflow.ErrValidation)
	}
	var commentID string
	err := s.mutate(ctx, subjectKey(workflow.KindPresalePlan, planID), func(tx *gorm.DB) error {
		subj, err := load(tx, workflow.KindPresalePlan, planID, false)
		if err != nil {
			return err
		}
		if _, err := workflow.Decide(subj, workflow.Event{Type: workflow.EventComment}, s.quorum); err != nil {
			return err
		}
		if err := checkPlanParent(tx, planID, parentID); err != nil {
			return err
		}
		c := models.PresalePlanComment{
			ID:       uuid.New().String(),
			PlanID:   planID,
			AuthorID: actorID,
			Text:     text,
			ParentID: parentID,
		}
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("approval: add comment to plan %s: %w: %w", planID, workflow.ErrPersistence, err)
		}
		commentID = c.ID
		return nil
	})
	return commentID, err
}

// ProjectCommentInput is a chat message or review decision on a project.
type ProjectCommentInput struct {
	ProjectID string
	ActorID   string
	// Action is one of models.ActionChat, ActionApproval, ActionRejected.
	Action   string
	Decision string
	Text     string
	ParentID *string
}

// decisionFor validates the action/decision pair of a project comment.
func decisionFor(in ProjectCommentInput) (workflow.Verdict, error) {
	switch in.Action {
	case models.ActionChat:
		if strings.TrimSpace(in.Text) == "" {
			return "", fmt.Errorf("approval: %w: chat comment text is required", workflow.ErrValidation)
		}
		return "", nil
	case models.ActionApproval, models.ActionRejected:
		v, err := workflow.ParseVerdict(in.Decision)
		if err != nil {
			return "", fmt.Errorf("approval: %s action: %w", in.Action, err)
		}
		want := workflow.VerdictApproved
		if in.Action == models.ActionRejected {
			want = workflow.VerdictRejected
		}
		if v != want {
			return "", fmt.Errorf("approval: %w: %s action cannot carry decision %s", workflow.ErrValidation, in.Action, v)
		}
		return v, nil
	}
	return "", fmt.Errorf("approval: %w: unknown comment action %q", workflow.ErrValidation, in.Action)
}

// SubmitProjectComment writes a project comment. Chat goes to the thread
// only; Approval and Rejected decide the current review round.
func (s *Service) SubmitProjectComment(ctx context.Context, in ProjectCommentInput) (Result, error) {
	if in.ActorID == "" {
		return Result{}, fmt.Errorf("approval: %w: actor id is required", workflow.ErrValidation)
	}
	if in.Action == "" {
		in.Action = models.ActionChat
	}
	verdict, err := decisionFor(in)
	if err != nil {
		return Result{}, err
	}

	var (
		res  Result
		name string
	)
	err = s.mutate(ctx, subjectKey(workflow.KindProject, in.ProjectID), func(tx *gorm.DB) error {
		subj, err := load(tx, workflow.KindProject, in.ProjectID, false)
		if err != nil {
			return err
		}
		proj := subj.(*models.Project)

		// Decide before recording so an illegal comment or decision leaves
		// nothing behind and a terminal project reports its state first.
		ev := workflow.Event{Type: workflow.EventComment}
		if verdict != "" {
			ev = workflow.VoteEvent(verdict, workflow.Tally{}, strings.TrimSpace(in.Text))
		}
		out, err := workflow.Decide(proj, ev, s.quorum)
		if err != nil {
			return err
		}
		if err := checkProjectParent(tx, proj.ID, in.ParentID); err != nil {
			return err
		}

		if verdict == "" {
			c := models.ProjectComment{
				ID:        uuid.New().String(),
				ProjectID: proj.ID,
				AuthorID:  in.ActorID,
				Action:    models.ActionChat,
				Text:      in.Text,
				ParentID:  in.ParentID,
				Round:     proj.ReviewRound,
			}
			if err := tx.Create(&c).Error; err != nil {
				return fmt.Errorf("approval: add comment to project %s: %w: %w", proj.ID, workflow.ErrPersistence, err)
			}
			res = resultOf(proj, out, "")
			res.CommentID = c.ID
			return nil
		}

		comment, err := tally.RecordProjectVote(tx, tally.ProjectVote{
			ProjectID: proj.ID,
			UserID:    in.ActorID,
			Verdict:   verdict,
			Action:    in.Action,
			Text:      in.Text,
			ParentID:  in.ParentID,
			Round:     proj.ReviewRound,
		})
		if err != nil {
			return err
		}
		t, err := tally.Project(tx, proj.ID, proj.ReviewRound)
		if err != nil {
			return err
		}
		ev.Tally = t
		out, ledgerID, err := s.apply(tx, proj, ev, in.ActorID, nil)
		if err != nil {
			return err
		}
		res = resultOf(proj, out, ledgerID)
		res.CommentID = comment.ID
		res.Tally = &t
		name = proj.Name
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.announce(ctx, res, name, in.ActorID)
	return res, nil
}

func checkPlanParent(tx *gorm.DB, planID string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.PresalePlanComment{}).Where("id = ? AND plan_id = ?", *parentID, planID).Count(&n).Error; err != nil {
		return fmt.Errorf("approval: check parent comment: %w: %w", workflow.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("approval: %w: parent comment %s is not on plan %s", workflow.ErrValidation, *parentID, planID)
	}
	return nil
}

func checkProjectParent(tx *gorm.DB, projectID string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.ProjectComment{}).Where("id = ? AND project_id = ?", *parentID, projectID).Count(&n).Error; err != nil {
		return fmt.Errorf("approval: check parent comment: %w: %w", workflow.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("approval: %w: parent comment %s is not on project %s", workflow.ErrValidation, *parentID, projectID)
	}
	return nil
}
