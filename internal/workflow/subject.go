// Package workflow holds the approval policy engine: the pure rules that
// decide how opportunities, presale plans and projects move between states
// and how their version numbers advance.
package workflow

import "fmt"

// Kind identifies a subject type.
type Kind string

const (
	KindOpportunity Kind = "opportunity"
	KindPresalePlan Kind = "presale_plan"
	KindProject     Kind = "project"
)

// ParseKind accepts the canonical names and their plural route forms.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "opportunity", "opportunities":
		return KindOpportunity, nil
	case "presale_plan", "plan", "plans", "presale-plans":
		return KindPresalePlan, nil
	case "project", "projects":
		return KindProject, nil
	}
	return "", fmt.Errorf("%w: unknown subject kind %q", ErrValidation, s)
}

// Opportunity statuses.
const (
	OpportunityOpen       = "Open"
	OpportunityInProgress = "In Progress"
	OpportunityClosed     = "Closed"
)

// Approval statuses (opportunity approvalStatus and vote values).
const (
	ApprovalPending  = "Pending"
	ApprovalApproved = "Approved"
	ApprovalRejected = "Rejected"
)

// Presale plan statuses.
const (
	PlanDraft    = "Draft"
	PlanPending  = "Pending"
	PlanInReview = "In Review"
	PlanApproved = "Approved"
	PlanRejected = "Rejected"
)

// Project statuses.
const (
	ProjectPending    = "Pending"
	ProjectInProgress = "In Progress"
	ProjectInReview   = "In Review"
	ProjectCompleted  = "Completed"
	ProjectArchived   = "Archived"
	ProjectRejected   = "Rejected"
)

// Subject is anything governed by the approval workflow.
type Subject interface {
	SubjectKind() Kind
	SubjectID() string
	SubjectStatus() string
	SubjectVersion() Version
	IsDeleted() bool
}

// ApprovalTracker is implemented by subjects that keep their approval state
// apart from their lifecycle status.
type ApprovalTracker interface {
	ApprovalState() string
}

// Verdict is the value of a decision vote.
type Verdict string

const (
	VerdictApproved Verdict = "Approved"
	VerdictRejected Verdict = "Rejected"
)

// ParseVerdict validates a decision value.
func ParseVerdict(s string) (Verdict, error) {
	switch Verdict(s) {
	case VerdictApproved, VerdictRejected:
		return Verdict(s), nil
	case "":
		return "", fmt.Errorf("%w: decision is required", ErrValidation)
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrValidation, s)
}

// Tally is the vote count for one subject.
type Tally struct {
	Approved int
	Rejected int
}
