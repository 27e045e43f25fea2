// Package tally records votes and counts them. A user votes at most once per
// subject (per review round for projects); the database enforces this with a
// unique vote key.
package tally

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
)

// PlanVoteKey is the idempotency key for a plan vote.
func PlanVoteKey(planID, userID string) string {
	return planID + ":" + userID
}

// ProjectVoteKey is the idempotency key for a project decision.
func ProjectVoteKey(projectID, userID string, round int) string {
	return fmt.Sprintf("%s:%s:%d", projectID, userID, round)
}

// PlanVote is one vote to record.
type PlanVote struct {
	PlanID   string
	UserID   string
	Verdict  workflow.Verdict
	Text     string
	ParentID *string
}

// RecordPlanVote inserts the vote comment, failing with
// workflow.ErrDuplicateVote if the user already voted on the plan.
func RecordPlanVote(tx *gorm.DB, v PlanVote) (*models.PresalePlanComment, error) {
	if v.UserID == "" {
		return nil, fmt.Errorf("tally: %w: user id is required", workflow.ErrValidation)
	}
	key := PlanVoteKey(v.PlanID, v.UserID)

	var count int64
	if err := tx.Model(&models.PresalePlanComment{}).Where("vote_key = ?", key).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("tally: check vote %s: %w: %w", key, workflow.ErrPersistence, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("tally: %w: user %s already voted on plan %s", workflow.ErrDuplicateVote, v.UserID, v.PlanID)
	}

	c := &models.PresalePlanComment{
		ID:             uuid.New().String(),
		PlanID:         v.PlanID,
		AuthorID:       v.UserID,
		Text:           v.Text,
		ApprovalStatus: string(v.Verdict),
		ParentID:       v.ParentID,
		VoteKey:        &key,
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, voteWriteError(v.UserID, v.PlanID, err)
	}
	return c, nil
}

// Plan counts Approved and Rejected votes on a plan.
func Plan(tx *gorm.DB, planID string) (workflow.Tally, error) {
	var rows []countRow
	err := tx.Model(&models.PresalePlanComment{}).
		Select("approval_status, COUNT(*) AS n").
		Where("plan_id = ? AND vote_key IS NOT NULL", planID).
		Group("approval_status").
		Scan(&rows).Error
	if err != nil {
		return workflow.Tally{}, fmt.Errorf("tally: count plan %s: %w: %w", planID, workflow.ErrPersistence, err)
	}
	return fold(rows), nil
}

// ApprovedBy returns the users who approved a plan, in vote order.
func ApprovedBy(tx *gorm.DB, planID string) ([]string, error) {
	var users []string
	err := tx.Model(&models.PresalePlanComment{}).
		Where("plan_id = ? AND approval_status = ? AND vote_key IS NOT NULL", planID, workflow.ApprovalApproved).
		Order("created_at ASC").
		Pluck("author_id", &users).Error
	if err != nil {
		return nil, fmt.Errorf("tally: approvers of %s: %w: %w", planID, workflow.ErrPersistence, err)
	}
	return users, nil
}

// SyncPlanCounts writes t into the plan's cached counters. Call it in the
// transaction that recorded the vote.
func SyncPlanCounts(tx *gorm.DB, planID string, t workflow.Tally) error {
	err := tx.Model(&models.PresalePlan{}).Where("id = ?", planID).
		Updates(map[string]interface{}{
			"approval_count":  t.Approved,
			"rejection_count": t.Rejected,
		}).Error
	if err != nil {
		return fmt.Errorf("tally: sync counts for %s: %w: %w", planID, workflow.ErrPersistence, err)
	}
	return nil
}

// ProjectVote is one project review decision.
type ProjectVote struct {
	ProjectID string
	UserID    string
	Verdict   workflow.Verdict
	Action    string
	Text      string
	ParentID  *string
	Round     int
}

// RecordProjectVote inserts a decision comment, failing with
// workflow.ErrDuplicateVote if the user already decided in this round.
func RecordProjectVote(tx *gorm.DB, v ProjectVote) (*models.ProjectComment, error) {
	if v.UserID == "" {
		return nil, fmt.Errorf("tally: %w: user id is required", workflow.ErrValidation)
	}
	key := ProjectVoteKey(v.ProjectID, v.UserID, v.Round)

	var count int64
	if err := tx.Model(&models.ProjectComment{}).Where("vote_key = ?", key).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("tally: check vote %s: %w: %w", key, workflow.ErrPersistence, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("tally: %w: user %s already decided on project %s in round %d", workflow.ErrDuplicateVote, v.UserID, v.ProjectID, v.Round)
	}

	c := &models.ProjectComment{
		ID:        uuid.New().String(),
		ProjectID: v.ProjectID,
		AuthorID:  v.UserID,
		Action:    v.Action,
		Decision:  string(v.Verdict),
		Text:      v.Text,
		ParentID:  v.ParentID,
		Round:     v.Round,
		VoteKey:   &key,
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, voteWriteError(v.UserID, v.ProjectID, err)
	}
	return c, nil
}

// Project counts decisions on a project within one review round.
func Project(tx *gorm.DB, projectID string, round int) (workflow.Tally, error) {
	var rows []countRow
	err := tx.Model(&models.ProjectComment{}).
		Select("decision AS approval_status, COUNT(*) AS n").
		Where("project_id = ? AND round = ? AND vote_key IS NOT NULL", projectID, round).
		Group("decision").
		Scan(&rows).Error
	if err != nil {
		return workflow.Tally{}, fmt.Errorf("tally: count project %s: %w: %w", projectID, workflow.ErrPersistence, err)
	}
	return fold(rows), nil
}

type countRow struct {
	ApprovalStatus string
	N              int
}

func fold(rows []countRow) workflow.Tally {
	var t workflow.Tally
	for _, r := range rows {
		switch r.ApprovalStatus {
		case workflow.ApprovalApproved:
			t.Approved = r.N
		case workflow.ApprovalRejected:
			t.Rejected = r.N
		}
	}
	return t
}

func voteWriteError(userID, subjectID string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("tally: %w: user %s already voted on %s", workflow.ErrDuplicateVote, userID, subjectID)
	}
	return fmt.Errorf("tally: record vote on %s: %w: %w", subjectID, workflow.ErrPersistence, err)
}
