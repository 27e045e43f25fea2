package models

import "time"

// SchedulerLease is a named, expiring lock held by one scheduler instance.
type SchedulerLease struct {
	Name       string    `gorm:"primaryKey;size:64"`
	Holder     string    `gorm:"size:128;not null"`
	AcquiredAt time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}
