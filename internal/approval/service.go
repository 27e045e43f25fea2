// Package approval is the entry point to the approval workflow. Each
// operation serializes on its subject, decides the transition with the
// workflow policy and persists the outcome through the ledger in one
// transaction.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/presale/internal/ledger"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/notify"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// SystemActor is recorded for transitions made by the timeout sweeper.
	SystemActor = "system:timeout-sweeper"
	// DefaultPlanPendingWindow is how long a plan collects votes.
	DefaultPlanPendingWindow = 72 * time.Hour

	maxConflictRetries = 3
)

// Opts holds parameters for creating a Service.
type Opts struct {
	DB                *gorm.DB
	Quorum            int
	PlanPendingWindow time.Duration
	Notifier          notify.Notifier
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service runs approval workflow operations against the entity store.
type Service struct {
	db         *gorm.DB
	quorum     int
	planWindow time.Duration
	notifier   notify.Notifier
	now        func() time.Time
	locks      *subjectLocks
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("approval: db is required")
	}
	s := &Service{
		db:         opts.DB,
		quorum:     opts.Quorum,
		planWindow: opts.PlanPendingWindow,
		notifier:   opts.Notifier,
		now:        opts.Now,
		locks:      newSubjectLocks(),
	}
	if s.quorum <= 0 {
		s.quorum = workflow.DefaultQuorum
	}
	if s.planWindow <= 0 {
		s.planWindow = DefaultPlanPendingWindow
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Quorum returns the vote threshold in effect.
func (s *Service) Quorum() int { return s.quorum }

// DB returns the underlying store handle.
func (s *Service) DB() *gorm.DB { return s.db }

// Result is the visible outcome of a core operation.
type Result struct {
	Kind           workflow.Kind    `json:"kind"`
	SubjectID      string           `json:"subjectId"`
	Status         string           `json:"status"`
	ApprovalStatus string           `json:"approvalStatus,omitempty"`
	Version        workflow.Version `json:"version"`
	LedgerEntryID  string           `json:"ledgerEntryId,omitempty"`
	CommentID      string           `json:"commentId,omitempty"`
	Resolution     string           `json:"resolution,omitempty"`
	Note           string           `json:"note,omitempty"`
	Tally          *workflow.Tally  `json:"tally,omitempty"`
}

func resultOf(subj workflow.Subject, out workflow.Outcome, ledgerID string) Result {
	return Result{
		Kind:           subj.SubjectKind(),
		SubjectID:      subj.SubjectID(),
		Status:         out.Status,
		ApprovalStatus: out.ApprovalStatus,
		Version:        out.Version,
		LedgerEntryID:  ledgerID,
		Resolution:     out.Resolution,
		Note:           out.Note,
	}
}

// mutate runs fn in a transaction while holding the subject's lock,
// retrying when a concurrent writer appended to the ledger first.
func (s *Service) mutate(ctx context.Context, key string, fn func(tx *gorm.DB) error) error {
	unlock := s.locks.lock(key)
	defer unlock()

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, workflow.ErrConflict) {
			break
		}
	}
	return classify(err)
}

// classify makes sure every store error carries a taxonomy kind.
func classify(err error) error {
	if err == nil || workflow.KindOf(err) != workflow.KindInternal {
		return err
	}
	return fmt.Errorf("approval: %w: %w", workflow.ErrPersistence, err)
}

func subjectKey(kind workflow.Kind, id string) string {
	return string(kind) + ":" + id
}

// load reads a subject row with a row lock. Soft-deleted rows are
// reported as not found unless includeDeleted is set.
func load(tx *gorm.DB, kind workflow.Kind, id string, includeDeleted bool) (workflow.Subject, error) {
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	var (
		subj workflow.Subject
		err  error
	)
	switch kind {
	case workflow.KindOpportunity:
		var o models.Opportunity
		err = q.First(&o).Error
		subj = &o
	case workflow.KindPresalePlan:
		var p models.PresalePlan
		err = q.First(&p).Error
		subj = &p
	case workflow.KindProject:
		var p models.Project
		err = q.Preload("Template").First(&p).Error
		subj = &p
	default:
		return nil, fmt.Errorf("approval: %w: unknown subject kind %q", workflow.ErrValidation, kind)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("approval: %w: %s %s", workflow.ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("approval: load %s %s: %w: %w", kind, id, workflow.ErrPersistence, err)
	}
	if subj.IsDeleted() && !includeDeleted {
		return nil, fmt.Errorf("approval: %w: %s %s is deleted", workflow.ErrNotFound, kind, id)
	}
	return subj, nil
}

func ledgerSeq(subj workflow.Subject) int {
	switch v := subj.(type) {
	case *models.Opportunity:
		return v.LedgerSeq
	case *models.PresalePlan:
		return v.LedgerSeq
	case *models.Project:
		return v.LedgerSeq
	}
	return 0
}

func subjectName(subj workflow.Subject) string {
	switch v := subj.(type) {
	case *models.Opportunity:
		return v.Name
	case *models.PresalePlan:
		return v.Name
	case *models.Project:
		return v.Name
	}
	return ""
}

// apply decides ev for subj and, when the outcome changes anything, appends
// it to the ledger together with extra subject columns.
func (s *Service) apply(tx *gorm.DB, subj workflow.Subject, ev workflow.Event, actor string, extra map[string]interface{}) (workflow.Outcome, string, error) {
	out, err := workflow.Decide(subj, ev, s.quorum)
	if err != nil {
		return workflow.Outcome{}, "", err
	}
	if !out.Changed {
		return out, "", nil
	}
	entry := ledger.FromOutcome(subj, ledgerSeq(subj), out, actor)
	entry.At = s.now()
	for k, v := range extra {
		entry.Fields[k] = v
	}
	id, err := ledger.Append(tx, entry)
	if err != nil {
		return workflow.Outcome{}, "", err
	}
	return out, id, nil
}

// fieldsFunc returns extra columns to write with a transition. It runs in the
// transition's transaction before the event is decided.
type fieldsFunc func(tx *gorm.DB, subj workflow.Subject) (map[string]interface{}, error)

// transition is the common path for single-event operations.
func (s *Service) transition(ctx context.Context, kind workflow.Kind, id, actor string, ev workflow.Event, includeDeleted bool, extra fieldsFunc) (Result, error) {
	if actor == "" {
		return Result{}, fmt.Errorf("approval: %w: actor id is required", workflow.ErrValidation)
	}
	var (
		res  Result
		name string
	)
	err := s.mutate(ctx, subjectKey(kind, id), func(tx *gorm.DB) error {
		subj, err := load(tx, kind, id, includeDeleted)
		if err != nil {
			return err
		}
		var fields map[string]interface{}
		if extra != nil {
			if fields, err = extra(tx, subj); err != nil {
				return err
			}
		}
		out, ledgerID, err := s.apply(tx, subj, ev, actor, fields)
		if err != nil {
			return err
		}
		res = resultOf(subj, out, ledgerID)
		name = subjectName(subj)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.announce(ctx, res, name, actor)
	return res, nil
}

// announce notifies about resolved subjects. Failures are logged only.
func (s *Service) announce(ctx context.Context, res Result, name, actor string) {
	if res.Resolution == "" {
		return
	}
	ev := notify.Event{
		Kind:       string(res.Kind),
		SubjectID:  res.SubjectID,
		Name:       name,
		Status:     res.Status,
		Version:    res.Version.String(),
		Resolution: res.Resolution,
		Actor:      actor,
		Note:       res.Note,
		At:         s.now(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Printf("approval: notify %s %s: %v", res.Kind, res.SubjectID, err)
	}
}

// Delete soft-deletes a subject. Projects move to Archived.
func (s *Service) Delete(ctx context.Context, kind workflow.Kind, id, actor string) (Result, error) {
	var extra fieldsFunc
	if kind == workflow.KindProject {
		extra = releaseProjectName
	}
	return s.transition(ctx, kind, id, actor, workflow.Event{Type: workflow.EventArchive}, true, extra)
}

// Restore clears a soft delete. Projects return to In Progress, take their
// name back and open a new review round, so decisions made before the
// archive do not block the next review.
func (s *Service) Restore(ctx context.Context, kind workflow.Kind, id, actor string) (Result, error) {
	var extra fieldsFunc
	if kind == workflow.KindProject {
		extra = reclaimProjectName
	}
	return s.transition(ctx, kind, id, actor, workflow.Event{Type: workflow.EventRestore}, true, extra)
}

// History returns the ledger of one subject.
func (s *Service) History(ctx context.Context, kind workflow.Kind, id string) ([]ledger.Record, error) {
	return ledger.History(s.db.WithContext(ctx), kind, id)
}

// DecisionInput is a vote or decision on any subject.
type DecisionInput struct {
	Kind      workflow.Kind
	SubjectID string
	ActorID   string
	Decision  string
	Comment   string
	ParentID  *string
}

// SubmitDecision records an Approved/Rejected decision and returns the
// subject's resulting state.
func (s *Service) SubmitDecision(ctx context.Context, in DecisionInput) (Result, error) {
	verdict, err := workflow.ParseVerdict(in.Decision)
	if err != nil {
		return Result{}, err
	}
	if in.ActorID == "" {
		return Result{}, fmt.Errorf("approval: %w: actor id is required", workflow.ErrValidation)
	}
	switch in.Kind {
	case workflow.KindOpportunity:
		return s.decideOpportunity(ctx, in, verdict)
	case workflow.KindPresalePlan:
		return s.votePlan(ctx, in, verdict)
	case workflow.KindProject:
		action := models.ActionApproval
		if verdict == workflow.VerdictRejected {
			action = models.ActionRejected
		}
		return s.SubmitProjectComment(ctx, ProjectCommentInput{
			ProjectID: in.SubjectID,
			ActorID:   in.ActorID,
			Action:    action,
			Decision:  string(verdict),
			Text:      in.Comment,
			ParentID:  in.ParentID,
		})
	}
	return Result{}, fmt.Errorf("approval: %w: unknown subject kind %q", workflow.ErrValidation, in.Kind)
}

// SubmitChatComment adds a non-decision comment to a plan or project.
func (s *Service) SubmitChatComment(ctx context.Context, kind workflow.Kind, subjectID, actorID, text string, parentID *string) (string, error) {
	switch kind {
	case workflow.KindProject:
		res, err := s.SubmitProjectComment(ctx, ProjectCommentInput{
			ProjectID: subjectID,
			ActorID:   actorID,
			Action:    models.ActionChat,
			Text:      text,
			ParentID:  parentID,
		})
		return res.CommentID, err
	case workflow.KindPresalePlan:
		return s.commentPlan(ctx, subjectID, actorID, text, parentID)
	case workflow.KindOpportunity:
		return "", fmt.Errorf("approval: %w: opportunities have no comment thread", workflow.ErrInvalidState)
	}
	return "", fmt.Errorf("approval: %w: unknown subject kind %q", workflow.ErrValidation, kind)
}
