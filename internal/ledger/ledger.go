// Package ledger appends version records. Every append updates the subject
// row and inserts its ledger row inside the caller's transaction, so the two
// are never observed out of step.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
)

// Entry describes one state transition to persist.
type Entry struct {
	Kind      workflow.Kind
	SubjectID string
	// ExpectSeq is the LedgerSeq read from the subject. The write fails with
	// workflow.ErrConflict if another writer appended first.
	ExpectSeq int
	Status    string
	Version   workflow.Version
	Changes   string
	Actor     string
	// Fields are extra subject columns updated in the same statement.
	Fields map[string]interface{}
	At     time.Time
}

// FromOutcome builds an Entry from a policy outcome for subject s.
func FromOutcome(s workflow.Subject, seq int, out workflow.Outcome, actor string) Entry {
	fields := map[string]interface{}{"deleted": out.Deleted}
	if s.SubjectKind() == workflow.KindOpportunity {
		fields["approval_status"] = out.ApprovalStatus
	}
	return Entry{
		Kind:      s.SubjectKind(),
		SubjectID: s.SubjectID(),
		ExpectSeq: seq,
		Status:    out.Status,
		Version:   out.Version,
		Changes:   out.Note,
		Actor:     actor,
		Fields:    fields,
	}
}

// Append writes e and returns the new ledger row id. tx must be a
// transaction; Append does not open one itself.
func Append(tx *gorm.DB, e Entry) (string, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	seq := e.ExpectSeq + 1
	id := uuid.New().String()

	updates := map[string]interface{}{
		"status":     e.Status,
		"ledger_seq": seq,
		"updated_at": e.At,
	}
	for k, v := range e.Fields {
		updates[k] = v
	}

	var (
		subject interface{}
		row     interface{}
	)
	switch e.Kind {
	case workflow.KindOpportunity:
		updates["version"] = e.Version
		subject = &models.Opportunity{}
		row = &models.OpportunityVersion{
			ID: id, OpportunityID: e.SubjectID, Seq: seq, VersionNumber: e.Version,
			Status: e.Status, Changes: e.Changes, UpdatedBy: e.Actor, CreatedAt: e.At,
		}
	case workflow.KindPresalePlan:
		updates["version"] = e.Version
		subject = &models.PresalePlan{}
		row = &models.PresalePlanVersion{
			ID: id, PlanID: e.SubjectID, Seq: seq, VersionNumber: e.Version,
			Status: e.Status, Changes: e.Changes, UpdatedBy: e.Actor, CreatedAt: e.At,
		}
	case workflow.KindProject:
		subject = &models.Project{}
		row = &models.ProjectVersion{
			ID: id, ProjectID: e.SubjectID, Seq: seq, VersionNumber: e.Version,
			Status: e.Status, Changes: e.Changes, UpdatedBy: e.Actor, CreatedAt: e.At,
		}
	default:
		return "", fmt.Errorf("ledger: %w: unknown subject kind %q", workflow.ErrValidation, e.Kind)
	}

	result := tx.Model(subject).
		Where("id = ? AND ledger_seq = ?", e.SubjectID, e.ExpectSeq).
		Updates(updates)
	if result.Error != nil {
		return "", persistence("update "+string(e.Kind), result.Error)
	}
	if result.RowsAffected == 0 {
		return "", fmt.Errorf("ledger: %w: %s %s changed since seq %d", workflow.ErrConflict, e.Kind, e.SubjectID, e.ExpectSeq)
	}

	if err := tx.Create(row).Error; err != nil {
		return "", persistence("append "+string(e.Kind)+" version", err)
	}

	if e.Kind == workflow.KindProject {
		if err := appendTemplateChange(tx, e, seq); err != nil {
			return "", err
		}
	}
	return id, nil
}

// appendTemplateChange keeps TemplateData's version and change log in
// lockstep with project_versions.
func appendTemplateChange(tx *gorm.DB, e Entry, seq int) error {
	var td models.TemplateData
	if err := tx.Where("project_id = ?", e.SubjectID).First(&td).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ledger: %w: template data for project %s", workflow.ErrNotFound, e.SubjectID)
		}
		return persistence("load template data", err)
	}
	if err := tx.Model(&models.TemplateData{}).Where("id = ?", td.ID).
		Updates(map[string]interface{}{"version": e.Version, "updated_at": e.At}).Error; err != nil {
		return persistence("update template version", err)
	}
	change := models.TemplateChange{
		ID:             uuid.New().String(),
		TemplateDataID: td.ID,
		Seq:            seq,
		VersionNumber:  e.Version,
		Changes:        e.Changes,
		UpdatedBy:      e.Actor,
		CreatedAt:      e.At,
	}
	if err := tx.Create(&change).Error; err != nil {
		return persistence("append template change", err)
	}
	return nil
}

// persistence wraps a store error. Unique violations on ledger rows mean a
// concurrent writer won the same seq.
func persistence(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("ledger: %s: %w: %w", op, workflow.ErrConflict, err)
	}
	return fmt.Errorf("ledger: %s: %w: %w", op, workflow.ErrPersistence, err)
}
