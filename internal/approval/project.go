package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/presale/internal/clone"
	"github.com/zulandar/presale/internal/ledger"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewProject holds the fields of a project to create or clone into.
type NewProject struct {
	Name          string
	Description   string
	OpportunityID *string
	DivisionID    string
	ActorID       string
}

func (in NewProject) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("approval: %w: project name is required", workflow.ErrValidation)
	}
	if in.ActorID == "" {
		return fmt.Errorf("approval: %w: actor id is required", workflow.ErrValidation)
	}
	return nil
}

// CreateProject stores a Pending project with its template data at version 1.
func (s *Service) CreateProject(ctx context.Context, in NewProject) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}
	var res Result
	err := s.mutate(ctx, projectNameKey(in.Name), func(tx *gorm.DB) error {
		var err error
		res, err = s.insertProject(tx, in, nil, "created")
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// CloneResult is a cloned project and the number of rows copied per category.
type CloneResult struct {
	Result
	Copied clone.Counts `json:"copied"`
}

// CloneProject creates a new project from sourceID, copying only the
// selected component categories. Everything happens in one transaction.
func (s *Service) CloneProject(ctx context.Context, sourceID string, in NewProject, sel clone.Selection) (CloneResult, error) {
	if err := in.validate(); err != nil {
		return CloneResult{}, err
	}
	var out CloneResult
	err := s.mutate(ctx, projectNameKey(in.Name), func(tx *gorm.DB) error {
		if _, err := load(tx, workflow.KindProject, sourceID, false); err != nil {
			return err
		}
		note := "cloned from " + sourceID
		if names := sel.Names(); len(names) > 0 {
			note += " (" + strings.Join(names, ", ") + ")"
		}
		res, err := s.insertProject(tx, in, &sourceID, note)
		if err != nil {
			return err
		}
		counts, err := clone.CopyComponents(tx, sourceID, res.SubjectID, sel)
		if err != nil {
			return err
		}
		out = CloneResult{Result: res, Copied: counts}
		return nil
	})
	if err != nil {
		return CloneResult{}, err
	}
	return out, nil
}

// insertProject creates the project, its template data and the creation
// entries in both logs. Names are unique among live projects; the unique
// live_name column holds that across instances.
func (s *Service) insertProject(tx *gorm.DB, in NewProject, sourceID *string, note string) (Result, error) {
	var n int64
	if err := tx.Model(&models.Project{}).Where("live_name = ?", in.Name).Count(&n).Error; err != nil {
		return Result{}, fmt.Errorf("approval: check project name: %w: %w", workflow.ErrPersistence, err)
	}
	if n > 0 {
		return Result{}, fmt.Errorf("approval: %w: project %q already exists", workflow.ErrDuplicateName, in.Name)
	}

	proj := models.Project{
		ID:            uuid.New().String(),
		Name:          in.Name,
		LiveName:      &in.Name,
		Description:   in.Description,
		OpportunityID: in.OpportunityID,
		DivisionID:    in.DivisionID,
		Status:        workflow.ProjectPending,
		ReviewRound:   1,
		SourceID:      sourceID,
		CreatedBy:     in.ActorID,
	}
	if err := tx.Omit(clause.Associations).Create(&proj).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Result{}, fmt.Errorf("approval: %w: project %q already exists", workflow.ErrDuplicateName, in.Name)
		}
		return Result{}, fmt.Errorf("approval: create project: %w: %w", workflow.ErrPersistence, err)
	}
	td := models.TemplateData{
		ID:        uuid.New().String(),
		ProjectID: proj.ID,
		Version:   workflow.InitialVersion,
	}
	if err := tx.Omit(clause.Associations).Create(&td).Error; err != nil {
		return Result{}, fmt.Errorf("approval: create template data: %w: %w", workflow.ErrPersistence, err)
	}
	ledgerID, err := ledger.Append(tx, ledger.Entry{
		Kind:      workflow.KindProject,
		SubjectID: proj.ID,
		Status:    proj.Status,
		Version:   td.Version,
		Changes:   note,
		Actor:     in.ActorID,
		At:        s.now(),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Kind:          workflow.KindProject,
		SubjectID:     proj.ID,
		Status:        proj.Status,
		Version:       td.Version,
		LedgerEntryID: ledgerID,
		Note:          note,
	}, nil
}

func nextReviewRound(*gorm.DB, workflow.Subject) (map[string]interface{}, error) {
	return map[string]interface{}{"review_round": gorm.Expr("review_round + 1")}, nil
}

// releaseProjectName frees an archived project's name for reuse.
func releaseProjectName(*gorm.DB, workflow.Subject) (map[string]interface{}, error) {
	return map[string]interface{}{"live_name": nil}, nil
}

// reclaimProjectName gives a restored project its name back, unless another
// live project took it meanwhile.
func reclaimProjectName(tx *gorm.DB, subj workflow.Subject) (map[string]interface{}, error) {
	proj := subj.(*models.Project)
	var n int64
	err := tx.Model(&models.Project{}).
		Where("live_name = ? AND id <> ?", proj.Name, proj.ID).
		Count(&n).Error
	if err != nil {
		return nil, fmt.Errorf("approval: check project name: %w: %w", workflow.ErrPersistence, err)
	}
	if n > 0 {
		return nil, fmt.Errorf("approval: %w: project %q already exists", workflow.ErrDuplicateName, proj.Name)
	}
	return map[string]interface{}{
		"live_name":    proj.Name,
		"review_round": gorm.Expr("review_round + 1"),
	}, nil
}

func projectNameKey(name string) string {
	return "project-name:" + strings.ToLower(strings.TrimSpace(name))
}

// StartProject moves a Pending project to In Progress.
func (s *Service) StartProject(ctx context.Context, id, actor string) (Result, error) {
	return s.transition(ctx, workflow.KindProject, id, actor, workflow.Event{Type: workflow.EventStart}, false, nil)
}

// StartReview puts a Pending or In Progress project up for review. The
// version is not changed but the transition is logged.
func (s *Service) StartReview(ctx context.Context, id, actor string) (Result, error) {
	return s.transition(ctx, workflow.KindProject, id, actor, workflow.Event{Type: workflow.EventStartReview}, false, nil)
}

// RequestReview sends a rejected project back to review and opens a new
// review round, so every reviewer may decide again.
func (s *Service) RequestReview(ctx context.Context, id, actor, note string) (Result, error) {
	ev := workflow.Event{Type: workflow.EventRequestReview, Note: note}
	return s.transition(ctx, workflow.KindProject, id, actor, ev, false, nextReviewRound)
}

// GetProject loads a project with its template data, comments and components.
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var proj models.Project
	err := s.db.WithContext(ctx).
		Preload("Template").
		Preload("Comments", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		Preload("Resources").
		Preload("Technologies").
		Preload("Checklists").
		Preload("Assumptions").
		Preload("Productivity").
		Where("id = ?", id).First(&proj).Error
	if err != nil {
		return nil, getError("project", id, err)
	}
	return &proj, nil
}
