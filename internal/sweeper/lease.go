package sweeper

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/presale/internal/models"
	"gorm.io/gorm"
)

// DefaultLeaseTimeout is how long a lease lives without renewal.
const DefaultLeaseTimeout = 10 * time.Minute

// ErrLeaseHeld is returned when another holder owns a live lease.
var ErrLeaseHeld = errors.New("lease held by another instance")

// AcquireLease takes the named lease for holder. An expired lease, or one
// already owned by holder, is taken over; a live lease owned by someone
// else fails with ErrLeaseHeld.
func AcquireLease(db *gorm.DB, name, holder string, timeout time.Duration, now time.Time) (*models.SchedulerLease, error) {
	if timeout <= 0 {
		timeout = DefaultLeaseTimeout
	}
	lease := &models.SchedulerLease{
		Name:       name,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(timeout),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.SchedulerLease
		result := tx.Where("name = ?", name).First(&existing)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if err := tx.Create(lease).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: %s", ErrLeaseHeld, name)
				}
				return fmt.Errorf("create lease: %w", err)
			}
			return nil
		}
		if result.Error != nil {
			return fmt.Errorf("check lease: %w", result.Error)
		}
		if existing.Holder != holder && existing.ExpiresAt.After(now) {
			return fmt.Errorf("%w: %s held by %q until %s", ErrLeaseHeld, name, existing.Holder, existing.ExpiresAt.Format(time.RFC3339))
		}

		// Guard on the old expiry so two takeovers cannot both win.
		upd := tx.Model(&models.SchedulerLease{}).
			Where("name = ? AND holder = ? AND expires_at = ?", name, existing.Holder, existing.ExpiresAt).
			Updates(map[string]interface{}{
				"holder":      holder,
				"acquired_at": now,
				"expires_at":  lease.ExpiresAt,
			})
		if upd.Error != nil {
			return fmt.Errorf("take over lease: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrLeaseHeld, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweeper: acquire lease: %w", err)
	}
	return lease, nil
}

// RenewLease pushes the expiry of a lease holder still owns.
func RenewLease(db *gorm.DB, name, holder string, timeout time.Duration, now time.Time) error {
	if timeout <= 0 {
		timeout = DefaultLeaseTimeout
	}
	result := db.Model(&models.SchedulerLease{}).
		Where("name = ? AND holder = ?", name, holder).
		Update("expires_at", now.Add(timeout))
	if result.Error != nil {
		return fmt.Errorf("sweeper: renew lease: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sweeper: renew lease: %w: %s no longer held by %q", ErrLeaseHeld, name, holder)
	}
	return nil
}

// ReleaseLease drops a lease holder owns. Releasing a lease that was
// already taken over is not an error.
func ReleaseLease(db *gorm.DB, name, holder string) error {
	if err := db.Where("name = ? AND holder = ?", name, holder).Delete(&models.SchedulerLease{}).Error; err != nil {
		return fmt.Errorf("sweeper: release lease: %w", err)
	}
	return nil
}
