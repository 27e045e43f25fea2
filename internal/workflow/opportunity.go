package workflow

type opportunityPolicy struct{}

func approvalState(s Subject) string {
	if at, ok := s.(ApprovalTracker); ok {
		return at.ApprovalState()
	}
	return ""
}

func (opportunityPolicy) Open(s Subject) bool {
	return !s.IsDeleted() && approvalState(s) == ApprovalPending
}

func (p opportunityPolicy) Decide(s Subject, ev Event) (Outcome, error) {
	out := unchanged(s)
	switch ev.Type {
	case EventApproved:
		if !p.Open(s) {
			return Outcome{}, invalidf("opportunity %s is %s, not awaiting approval", s.SubjectID(), approvalState(s))
		}
		out.Version = s.SubjectVersion().NextGeneration()
		out.ApprovalStatus = ApprovalApproved
		out.Status = OpportunityClosed
		out.Resolution = ApprovalApproved
		out.Note = noteOr(ev.Note, "approved")
	case EventRejected:
		if !p.Open(s) {
			return Outcome{}, invalidf("opportunity %s is %s, not awaiting approval", s.SubjectID(), approvalState(s))
		}
		out.Version = s.SubjectVersion().NextRevision()
		out.ApprovalStatus = ApprovalRejected
		out.Resolution = ApprovalRejected
		out.Note = noteOr(ev.Note, "rejected")
	case EventResubmit:
		// The only way back into the approval cycle.
		if s.IsDeleted() || approvalState(s) != ApprovalRejected {
			return Outcome{}, invalidf("opportunity %s can only be updated after rejection", s.SubjectID())
		}
		out.ApprovalStatus = ApprovalPending
		out.Status = OpportunityInProgress
		out.Note = noteOr(ev.Note, "updated after rejection")
	case EventArchive, EventRestore:
		return softDelete(s, ev)
	default:
		return Outcome{}, unsupported(s, ev)
	}
	out.Changed = true
	return out, nil
}
