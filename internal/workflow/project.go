package workflow

type projectPolicy struct{}

func projectTerminal(status string) bool {
	return status == ProjectCompleted || status == ProjectRejected
}

func (projectPolicy) Open(s Subject) bool {
	return !s.IsDeleted() && s.SubjectStatus() != ProjectArchived && !projectTerminal(s.SubjectStatus())
}

func (p projectPolicy) Decide(s Subject, ev Event) (Outcome, error) {
	out := unchanged(s)
	status := s.SubjectStatus()
	switch ev.Type {
	case EventComment:
		if !p.Open(s) {
			return Outcome{}, invalidf("project %s is %s and no longer accepts comments", s.SubjectID(), status)
		}
		return out, nil
	case EventApproved, EventRejected:
		if !p.Open(s) {
			return Outcome{}, invalidf("project %s is %s and no longer accepts decisions", s.SubjectID(), status)
		}
		if status != ProjectInReview {
			return Outcome{}, invalidf("project %s is %s, decisions require %s", s.SubjectID(), status, ProjectInReview)
		}
		if ev.Type == EventApproved {
			out.Status = ProjectCompleted
			out.Version = s.SubjectVersion().NextGeneration()
			out.Resolution = ApprovalApproved
			out.Note = noteOr(ev.Note, "approved")
		} else {
			out.Status = ProjectRejected
			out.Version = s.SubjectVersion().NextRevision()
			out.Resolution = ApprovalRejected
			out.Note = noteOr(ev.Note, "rejected")
		}
	case EventStart:
		if s.IsDeleted() || status != ProjectPending {
			return Outcome{}, invalidf("project %s is %s, only pending projects can be started", s.SubjectID(), status)
		}
		out.Status = ProjectInProgress
		out.Note = noteOr(ev.Note, "started")
	case EventStartReview:
		if s.IsDeleted() || (status != ProjectPending && status != ProjectInProgress) {
			return Outcome{}, invalidf("project %s is %s, review can start from %s or %s", s.SubjectID(), status, ProjectPending, ProjectInProgress)
		}
		out.Status = ProjectInReview
		out.Note = noteOr(ev.Note, "review started")
	case EventRequestReview:
		if s.IsDeleted() || status != ProjectRejected {
			return Outcome{}, invalidf("project %s is %s, review can only be requested after rejection", s.SubjectID(), status)
		}
		out.Status = ProjectInReview
		out.Version = s.SubjectVersion().NextRevision()
		out.Note = noteOr(ev.Note, "review requested")
	case EventArchive:
		if s.IsDeleted() || status == ProjectArchived || status == ProjectCompleted {
			return Outcome{}, invalidf("project %s is %s and cannot be archived", s.SubjectID(), status)
		}
		out.Status = ProjectArchived
		out.Deleted = true
		out.Note = noteOr(ev.Note, "archived")
	case EventRestore:
		if status != ProjectArchived {
			return Outcome{}, invalidf("project %s is %s, only archived projects can be restored", s.SubjectID(), status)
		}
		out.Status = ProjectInProgress
		out.Deleted = false
		out.Note = noteOr(ev.Note, "restored")
	default:
		return Outcome{}, unsupported(s, ev)
	}
	out.Changed = true
	return out, nil
}
