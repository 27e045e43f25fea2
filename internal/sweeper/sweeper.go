// Package sweeper force-resolves presale plans whose voting deadline has
// passed. Runs are coordinated across instances with a database lease.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/presale/internal/approval"
	"gorm.io/gorm"
)

// LeaseName is the lease every sweeper instance competes for.
const LeaseName = "timeout-sweep"

// Resolver is the part of the approval service the sweeper drives.
type Resolver interface {
	OverduePlans(ctx context.Context) ([]string, error)
	ResolveDeadline(ctx context.Context, id string) (approval.Result, bool, error)
}

// Opts holds parameters for creating a Sweeper.
type Opts struct {
	DB           *gorm.DB
	Resolver     Resolver
	Holder       string
	LeaseTimeout time.Duration
	Now          func() time.Time
}

// Sweeper runs timeout sweeps.
type Sweeper struct {
	db           *gorm.DB
	resolver     Resolver
	holder       string
	leaseTimeout time.Duration
	now          func() time.Time
}

// New creates a Sweeper.
func New(opts Opts) (*Sweeper, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("sweeper: db is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("sweeper: resolver is required")
	}
	if opts.Holder == "" {
		return nil, fmt.Errorf("sweeper: holder is required")
	}
	s := &Sweeper{
		db:           opts.DB,
		resolver:     opts.Resolver,
		holder:       opts.Holder,
		leaseTimeout: opts.LeaseTimeout,
		now:          opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// SubjectError is a plan the sweep could not resolve.
type SubjectError struct {
	SubjectID string `json:"subjectId"`
	Error     string `json:"error"`
}

// Result summarizes one sweep.
type Result struct {
	ResolvedCount int            `json:"resolvedCount"`
	Resolved      []string       `json:"resolved,omitempty"`
	Errors        []SubjectError `json:"errors"`
	// Skipped is set when another instance held the lease.
	Skipped bool `json:"skipped,omitempty"`
}

// RunOnce resolves every overdue plan. A failure on one plan is recorded
// and the sweep moves on. Only store failures outside a single plan are
// returned as an error.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	res := Result{Errors: []SubjectError{}}

	db := s.db.WithContext(ctx)
	if _, err := AcquireLease(db, LeaseName, s.holder, s.leaseTimeout, s.now()); err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			log.Printf("sweeper: skipping run: %v", err)
			res.Skipped = true
			return res, nil
		}
		return res, err
	}
	defer func() {
		if err := ReleaseLease(s.db, LeaseName, s.holder); err != nil {
			log.Printf("sweeper: %v", err)
		}
	}()

	ids, err := s.resolver.OverduePlans(ctx)
	if err != nil {
		return res, fmt.Errorf("sweeper: list overdue: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, resolved, err := s.resolver.ResolveDeadline(ctx, id)
		if err != nil {
			log.Printf("sweeper: resolve plan %s: %v", id, err)
			res.Errors = append(res.Errors, SubjectError{SubjectID: id, Error: err.Error()})
			continue
		}
		if resolved {
			res.ResolvedCount++
			res.Resolved = append(res.Resolved, id)
			log.Printf("sweeper: plan %s resolved %s at version %s", id, out.Status, out.Version)
		}
		if err := RenewLease(db, LeaseName, s.holder, s.leaseTimeout, s.now()); err != nil {
			return res, err
		}
	}
	return res, nil
}
