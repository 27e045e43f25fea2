package models

// Project component rows. Each keeps a back-reference to the master-data item
// it was first copied from so clones can still be diffed against master data.

// ProjectResource is a staffing line.
type ProjectResource struct {
	ID                 string  `gorm:"primaryKey;size:36"`
	ProjectID          string  `gorm:"size:36;not null;index"`
	OriginalResourceID string  `gorm:"size:36;index"`
	Name               string  `gorm:"size:255"`
	Role               string  `gorm:"size:128"`
	Quantity           int     `gorm:"default:1"`
	Rate               float64 `gorm:"default:0"`
}

// ProjectTechnology is a technology used by the project.
type ProjectTechnology struct {
	ID                   string `gorm:"primaryKey;size:36"`
	ProjectID            string `gorm:"size:36;not null;index"`
	OriginalTechnologyID string `gorm:"size:36;index"`
	Name                 string `gorm:"size:255"`
	Category             string `gorm:"size:128"`
}

// ProjectChecklist is a checklist item.
type ProjectChecklist struct {
	ID                  string `gorm:"primaryKey;size:36"`
	ProjectID           string `gorm:"size:36;not null;index"`
	OriginalChecklistID string `gorm:"size:36;index"`
	Item                string `gorm:"type:text"`
	Done                bool   `gorm:"default:false"`
}

// ProjectAssumption is a delivery assumption.
type ProjectAssumption struct {
	ID                   string `gorm:"primaryKey;size:36"`
	ProjectID            string `gorm:"size:36;not null;index"`
	OriginalAssumptionID string `gorm:"size:36;index"`
	Text                 string `gorm:"type:text"`
}

// ProjectProductivity is a productivity norm applied to an activity.
type ProjectProductivity struct {
	ID                     string  `gorm:"primaryKey;size:36"`
	ProjectID              string  `gorm:"size:36;not null;index"`
	OriginalProductivityID string  `gorm:"size:36;index"`
	Activity               string  `gorm:"size:255"`
	Norm                   float64 `gorm:"default:0"`
	Unit                   string  `gorm:"size:32"`
}
