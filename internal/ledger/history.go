package ledger

import (
	"fmt"
	"time"

	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
)

// Record is a kind-independent view of one ledger row.
type Record struct {
	ID            string           `json:"id"`
	SubjectID     string           `json:"subjectId"`
	Seq           int              `json:"seq"`
	VersionNumber workflow.Version `json:"versionNumber"`
	Status        string           `json:"status"`
	Changes       string           `json:"changes"`
	UpdatedBy     string           `json:"updatedBy"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// History returns the ledger for one subject, oldest first.
func History(db *gorm.DB, kind workflow.Kind, subjectID string) ([]Record, error) {
	var records []Record
	switch kind {
	case workflow.KindOpportunity:
		var rows []models.OpportunityVersion
		if err := db.Where("opportunity_id = ?", subjectID).Order("seq ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("ledger: history %s: %w: %w", subjectID, workflow.ErrPersistence, err)
		}
		for _, r := range rows {
			records = append(records, Record{r.ID, r.OpportunityID, r.Seq, r.VersionNumber, r.Status, r.Changes, r.UpdatedBy, r.CreatedAt})
		}
	case workflow.KindPresalePlan:
		var rows []models.PresalePlanVersion
		if err := db.Where("plan_id = ?", subjectID).Order("seq ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("ledger: history %s: %w: %w", subjectID, workflow.ErrPersistence, err)
		}
		for _, r := range rows {
			records = append(records, Record{r.ID, r.PlanID, r.Seq, r.VersionNumber, r.Status, r.Changes, r.UpdatedBy, r.CreatedAt})
		}
	case workflow.KindProject:
		var rows []models.ProjectVersion
		if err := db.Where("project_id = ?", subjectID).Order("seq ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("ledger: history %s: %w: %w", subjectID, workflow.ErrPersistence, err)
		}
		for _, r := range rows {
			records = append(records, Record{r.ID, r.ProjectID, r.Seq, r.VersionNumber, r.Status, r.Changes, r.UpdatedBy, r.CreatedAt})
		}
	default:
		return nil, fmt.Errorf("ledger: %w: unknown subject kind %q", workflow.ErrValidation, kind)
	}
	return records, nil
}

// TemplateChanges returns a project's TemplateData change log, oldest first.
func TemplateChanges(db *gorm.DB, projectID string) ([]models.TemplateChange, error) {
	var changes []models.TemplateChange
	err := db.Joins("JOIN template_data ON template_data.id = template_changes.template_data_id").
		Where("template_data.project_id = ?", projectID).
		Order("template_changes.seq ASC").
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: template changes %s: %w: %w", projectID, workflow.ErrPersistence, err)
	}
	return changes, nil
}
