package db

import (
	"fmt"

	"github.com/zulandar/presale/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Opportunity{},
		&models.OpportunityVersion{},
		&models.PresalePlan{},
		&models.PresalePlanComment{},
		&models.PresalePlanVersion{},
		&models.Project{},
		&models.ProjectComment{},
		&models.ProjectVersion{},
		&models.TemplateData{},
		&models.TemplateChange{},
		&models.ProjectResource{},
		&models.ProjectTechnology{},
		&models.ProjectChecklist{},
		&models.ProjectAssumption{},
		&models.ProjectProductivity{},
		&models.SchedulerLease{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// OpenMemory opens a migrated in-memory SQLite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
