package workflow

import "fmt"

// DefaultQuorum is the number of votes on one side that resolves a
// quorum-governed subject.
const DefaultQuorum = 10

// DeadlineRejectionNote is recorded when the sweeper rejects a plan.
const DeadlineRejectionNote = "insufficient approvals by deadline"

// EventType tags an input to Decide.
type EventType string

const (
	EventApproved       EventType = "Approved"
	EventRejected       EventType = "Rejected"
	EventComment        EventType = "Comment"
	EventDeadlinePassed EventType = "DeadlinePassed"
	EventResubmit       EventType = "Resubmit"
	EventEdit           EventType = "Edit"
	EventSubmit         EventType = "Submit"
	EventStart          EventType = "Start"
	EventStartReview    EventType = "StartReview"
	EventRequestReview  EventType = "RequestReview"
	EventArchive        EventType = "Archive"
	EventRestore        EventType = "Restore"
)

// Event is one input to the policy engine. Tally must already include the
// vote being decided.
type Event struct {
	Type  EventType
	Tally Tally
	Note  string
}

// VoteEvent maps a verdict to its event type.
func VoteEvent(v Verdict, t Tally, note string) Event {
	if v == VerdictApproved {
		return Event{Type: EventApproved, Tally: t, Note: note}
	}
	return Event{Type: EventRejected, Tally: t, Note: note}
}

// Outcome is what the engine decided. When Changed is false the event is
// recorded nowhere but in the comment thread.
type Outcome struct {
	Status         string
	ApprovalStatus string
	Version        Version
	Note           string
	// Resolution is Approved or Rejected when the event resolved the subject.
	Resolution string
	Deleted    bool
	Changed    bool
}

// Policy decides the next state of one subject kind.
type Policy interface {
	Decide(s Subject, ev Event) (Outcome, error)
	// Open reports whether s still accepts decisions and comments.
	Open(s Subject) bool
}

// PolicyFor returns the policy for kind. quorum <= 0 uses DefaultQuorum.
func PolicyFor(kind Kind, quorum int) (Policy, error) {
	if quorum <= 0 {
		quorum = DefaultQuorum
	}
	switch kind {
	case KindOpportunity:
		return opportunityPolicy{}, nil
	case KindPresalePlan:
		return planPolicy{quorum: quorum}, nil
	case KindProject:
		return projectPolicy{}, nil
	}
	return nil, fmt.Errorf("%w: unknown subject kind %q", ErrValidation, kind)
}

// Decide is shorthand for PolicyFor(s.SubjectKind(), quorum).Decide(s, ev).
func Decide(s Subject, ev Event, quorum int) (Outcome, error) {
	p, err := PolicyFor(s.SubjectKind(), quorum)
	if err != nil {
		return Outcome{}, err
	}
	return p.Decide(s, ev)
}

// unchanged is the outcome that keeps the subject as it is.
func unchanged(s Subject) Outcome {
	out := Outcome{
		Status:  s.SubjectStatus(),
		Version: s.SubjectVersion(),
		Deleted: s.IsDeleted(),
	}
	if at, ok := s.(ApprovalTracker); ok {
		out.ApprovalStatus = at.ApprovalState()
	}
	return out
}

// softDelete handles Archive/Restore for kinds whose status is untouched by
// deletion.
func softDelete(s Subject, ev Event) (Outcome, error) {
	out := unchanged(s)
	out.Changed = true
	switch ev.Type {
	case EventArchive:
		if s.IsDeleted() {
			return Outcome{}, invalidf("%s %s is already deleted", s.SubjectKind(), s.SubjectID())
		}
		out.Deleted = true
		out.Note = noteOr(ev.Note, "deleted")
	case EventRestore:
		if !s.IsDeleted() {
			return Outcome{}, invalidf("%s %s is not deleted", s.SubjectKind(), s.SubjectID())
		}
		out.Deleted = false
		out.Note = noteOr(ev.Note, "restored")
	}
	return out, nil
}

func noteOr(note, fallback string) string {
	if note != "" {
		return note
	}
	return fallback
}

func unsupported(s Subject, ev Event) error {
	return invalidf("%s does not accept %s events", s.SubjectKind(), ev.Type)
}
