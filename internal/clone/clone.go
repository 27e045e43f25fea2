// Package clone deep-copies a project's component collections onto another
// project. Callers run it inside the transaction that created the target so
// a failed copy leaves nothing behind.
package clone

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
)

// Category is one component collection of a project.
type Category string

const (
	Resources    Category = "resources"
	Technologies Category = "technologies"
	Checklists   Category = "checklists"
	Assumptions  Category = "assumptions"
	Productivity Category = "productivity"
)

// AllCategories lists every category in copy order.
func AllCategories() []Category {
	return []Category{Resources, Technologies, Checklists, Assumptions, Productivity}
}

// Selection is the set of categories to copy.
type Selection map[Category]bool

// ParseSelection validates category names. Unknown names fail with
// workflow.ErrValidation.
func ParseSelection(names []string) (Selection, error) {
	sel := Selection{}
	valid := map[Category]bool{}
	for _, c := range AllCategories() {
		valid[c] = true
	}
	for _, n := range names {
		c := Category(strings.ToLower(strings.TrimSpace(n)))
		if !valid[c] {
			return nil, fmt.Errorf("clone: %w: unknown component category %q", workflow.ErrValidation, n)
		}
		sel[c] = true
	}
	return sel, nil
}

// Names returns the selected categories, sorted.
func (s Selection) Names() []string {
	var names []string
	for c, ok := range s {
		if ok {
			names = append(names, string(c))
		}
	}
	sort.Strings(names)
	return names
}

// Counts is the number of rows copied per category.
type Counts map[Category]int

// CopyComponents copies every selected category from sourceID to targetID.
// New rows get fresh ids. The master-data reference is copied as is and stays
// empty when the source row has none.
func CopyComponents(tx *gorm.DB, sourceID, targetID string, sel Selection) (Counts, error) {
	counts := Counts{}
	for _, c := range AllCategories() {
		if !sel[c] {
			continue
		}
		n, err := copyCategory(tx, c, sourceID, targetID)
		if err != nil {
			return nil, fmt.Errorf("clone: copy %s from %s: %w", c, sourceID, err)
		}
		counts[c] = n
	}
	return counts, nil
}

func copyCategory(tx *gorm.DB, c Category, sourceID, targetID string) (int, error) {
	switch c {
	case Resources:
		var rows []models.ProjectResource
		if err := tx.Where("project_id = ?", sourceID).Order("id").Find(&rows).Error; err != nil {
			return 0, storeErr(err)
		}
		for i := range rows {
			rows[i].ID, rows[i].ProjectID = uuid.New().String(), targetID
		}
		return len(rows), insert(tx, rows)
	case Technologies:
		var rows []models.ProjectTechnology
		if err := tx.Where("project_id = ?", sourceID).Order("id").Find(&rows).Error; err != nil {
			return 0, storeErr(err)
		}
		for i := range rows {
			rows[i].ID, rows[i].ProjectID = uuid.New().String(), targetID
		}
		return len(rows), insert(tx, rows)
	case Checklists:
		var rows []models.ProjectChecklist
		if err := tx.Where("project_id = ?", sourceID).Order("id").Find(&rows).Error; err != nil {
			return 0, storeErr(err)
		}
		for i := range rows {
			rows[i].ID, rows[i].ProjectID = uuid.New().String(), targetID
		}
		return len(rows), insert(tx, rows)
	case Assumptions:
		var rows []models.ProjectAssumption
		if err := tx.Where("project_id = ?", sourceID).Order("id").Find(&rows).Error; err != nil {
			return 0, storeErr(err)
		}
		for i := range rows {
			rows[i].ID, rows[i].ProjectID = uuid.New().String(), targetID
		}
		return len(rows), insert(tx, rows)
	case Productivity:
		var rows []models.ProjectProductivity
		if err := tx.Where("project_id = ?", sourceID).Order("id").Find(&rows).Error; err != nil {
			return 0, storeErr(err)
		}
		for i := range rows {
			rows[i].ID, rows[i].ProjectID = uuid.New().String(), targetID
		}
		return len(rows), insert(tx, rows)
	}
	return 0, fmt.Errorf("%w: unknown component category %q", workflow.ErrValidation, c)
}

func insert[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, 100).Error; err != nil {
		return storeErr(err)
	}
	return nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", workflow.ErrPersistence, err)
}
