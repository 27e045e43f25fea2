package workflow

import "fmt"

type planPolicy struct {
	quorum int
}

func (planPolicy) Open(s Subject) bool {
	if s.IsDeleted() {
		return false
	}
	switch s.SubjectStatus() {
	case PlanPending, PlanInReview:
		return true
	}
	return false
}

func (p planPolicy) Decide(s Subject, ev Event) (Outcome, error) {
	out := unchanged(s)
	switch ev.Type {
	case EventApproved, EventRejected:
		if !p.Open(s) {
			return Outcome{}, invalidf("presale plan %s is %s and no longer accepts votes", s.SubjectID(), s.SubjectStatus())
		}
		p.applyVote(s, ev, &out)
	case EventDeadlinePassed:
		if !p.Open(s) {
			return Outcome{}, invalidf("presale plan %s is already %s", s.SubjectID(), s.SubjectStatus())
		}
		if ev.Tally.Approved >= p.quorum {
			p.approve(s, &out, fmt.Sprintf("approved at deadline (%d/%d)", ev.Tally.Approved, p.quorum))
		} else {
			p.reject(s, &out, DeadlineRejectionNote)
		}
	case EventComment:
		if s.IsDeleted() || s.SubjectStatus() == PlanApproved || s.SubjectStatus() == PlanRejected {
			return Outcome{}, invalidf("presale plan %s is %s and no longer accepts comments", s.SubjectID(), s.SubjectStatus())
		}
		return out, nil
	case EventSubmit:
		if s.IsDeleted() || s.SubjectStatus() != PlanDraft {
			return Outcome{}, invalidf("presale plan %s is %s, only drafts can be submitted", s.SubjectID(), s.SubjectStatus())
		}
		out.Status = PlanPending
		out.Note = noteOr(ev.Note, "submitted for approval")
	case EventEdit:
		if s.IsDeleted() || !(p.Open(s) || s.SubjectStatus() == PlanDraft) {
			return Outcome{}, invalidf("presale plan %s is %s and can no longer be edited", s.SubjectID(), s.SubjectStatus())
		}
		out.Version = s.SubjectVersion().NextRevision()
		out.Note = noteOr(ev.Note, "edited")
	case EventArchive, EventRestore:
		return softDelete(s, ev)
	default:
		return Outcome{}, unsupported(s, ev)
	}
	out.Changed = true
	return out, nil
}

// applyVote checks the side that just voted first. Votes are decided one at
// a time, so both sides can never cross together.
func (p planPolicy) applyVote(s Subject, ev Event, out *Outcome) {
	t := ev.Tally
	if ev.Type == EventApproved {
		if t.Approved >= p.quorum {
			p.approve(s, out, fmt.Sprintf("approved by quorum (%d/%d)", t.Approved, p.quorum))
			return
		}
		out.Note = noteOr(ev.Note, fmt.Sprintf("approval vote (%d/%d)", t.Approved, p.quorum))
		return
	}
	if t.Rejected >= p.quorum {
		p.reject(s, out, fmt.Sprintf("rejected by quorum (%d/%d)", t.Rejected, p.quorum))
		return
	}
	out.Note = noteOr(ev.Note, fmt.Sprintf("rejection vote (%d/%d)", t.Rejected, p.quorum))
}

func (planPolicy) approve(s Subject, out *Outcome, note string) {
	out.Status = PlanApproved
	out.Version = s.SubjectVersion().NextGeneration()
	out.Resolution = ApprovalApproved
	out.Note = note
}

func (planPolicy) reject(s Subject, out *Outcome, note string) {
	out.Status = PlanRejected
	out.Version = s.SubjectVersion().NextRevision()
	out.Resolution = ApprovalRejected
	out.Note = note
}
