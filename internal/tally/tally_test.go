package tally

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zulandar/presale/internal/db"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/workflow"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return gdb
}

func TestRecordPlanVote_CountsAndDuplicates(t *testing.T) {
	gdb := openTestDB(t)
	votes := []struct {
		user    string
		verdict workflow.Verdict
	}{
		{"alice", workflow.VerdictApproved},
		{"bob", workflow.VerdictApproved},
		{"carol", workflow.VerdictRejected},
	}
	for _, v := range votes {
		if _, err := RecordPlanVote(gdb, PlanVote{PlanID: "p1", UserID: v.user, Verdict: v.verdict}); err != nil {
			t.Fatalf("vote %s: %v", v.user, err)
		}
	}
	// Plain comments never count.
	gdb.Create(&models.PresalePlanComment{ID: "chat", PlanID: "p1", AuthorID: "dave", Text: "fyi"})

	_, err := RecordPlanVote(gdb, PlanVote{PlanID: "p1", UserID: "alice", Verdict: workflow.VerdictRejected})
	if !errors.Is(err, workflow.ErrDuplicateVote) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateVote", err)
	}

	got, err := Plan(gdb, "p1")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got != (workflow.Tally{Approved: 2, Rejected: 1}) {
		t.Errorf("tally = %+v, want 2/1", got)
	}

	users, err := ApprovedBy(gdb, "p1")
	if err != nil {
		t.Fatalf("ApprovedBy: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("approvedBy = %v, want alice and bob", users)
	}

	// Another plan is counted separately.
	if _, err := RecordPlanVote(gdb, PlanVote{PlanID: "p2", UserID: "alice", Verdict: workflow.VerdictApproved}); err != nil {
		t.Errorf("vote on other plan: %v", err)
	}
}

func TestRecordPlanVote_UniqueIndexBackstop(t *testing.T) {
	gdb := openTestDB(t)
	key := PlanVoteKey("p1", "alice")
	if err := gdb.Create(&models.PresalePlanComment{ID: "c1", PlanID: "p1", AuthorID: "alice", ApprovalStatus: "Approved", VoteKey: &key}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	dup := models.PresalePlanComment{ID: "c2", PlanID: "p1", AuthorID: "alice", ApprovalStatus: "Approved", VoteKey: &key}
	err := voteWriteError("alice", "p1", gdb.Create(&dup).Error)
	if !errors.Is(err, workflow.ErrDuplicateVote) {
		t.Errorf("err = %v, want ErrDuplicateVote", err)
	}
}

func TestRecordPlanVote_RequiresUser(t *testing.T) {
	gdb := openTestDB(t)
	_, err := RecordPlanVote(gdb, PlanVote{PlanID: "p1", Verdict: workflow.VerdictApproved})
	if !errors.Is(err, workflow.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestSyncPlanCounts(t *testing.T) {
	gdb := openTestDB(t)
	gdb.Create(&models.PresalePlan{ID: "p1", Name: "Plan", Version: workflow.InitialVersion})
	if err := SyncPlanCounts(gdb, "p1", workflow.Tally{Approved: 4, Rejected: 2}); err != nil {
		t.Fatalf("SyncPlanCounts: %v", err)
	}
	var p models.PresalePlan
	gdb.First(&p, "id = ?", "p1")
	if p.ApprovalCount != 4 || p.RejectionCount != 2 {
		t.Errorf("counts = %d/%d, want 4/2", p.ApprovalCount, p.RejectionCount)
	}
}

func TestRecordProjectVote_PerRound(t *testing.T) {
	gdb := openTestDB(t)
	vote := ProjectVote{ProjectID: "pr1", UserID: "lead", Verdict: workflow.VerdictRejected, Action: models.ActionRejected, Round: 1}
	c, err := RecordProjectVote(gdb, vote)
	if err != nil {
		t.Fatalf("round 1: %v", err)
	}
	if c.Decision != "Rejected" || c.VoteKey == nil || *c.VoteKey != ProjectVoteKey("pr1", "lead", 1) {
		t.Errorf("comment = %+v", c)
	}
	if _, err := RecordProjectVote(gdb, vote); !errors.Is(err, workflow.ErrDuplicateVote) {
		t.Errorf("repeat in round 1 err = %v, want ErrDuplicateVote", err)
	}

	vote.Round = 2
	vote.Verdict = workflow.VerdictApproved
	vote.Action = models.ActionApproval
	if _, err := RecordProjectVote(gdb, vote); err != nil {
		t.Fatalf("round 2: %v", err)
	}

	for round, want := range map[int]workflow.Tally{1: {Rejected: 1}, 2: {Approved: 1}} {
		got, err := Project(gdb, "pr1", round)
		if err != nil {
			t.Fatalf("Project round %d: %v", round, err)
		}
		if got != want {
			t.Errorf("round %d tally = %+v, want %+v", round, got, want)
		}
	}
}

func TestVoteKeys(t *testing.T) {
	if got := PlanVoteKey("p", "u"); got != "p:u" {
		t.Errorf("PlanVoteKey = %q", got)
	}
	if got, want := ProjectVoteKey("p", "u", 3), fmt.Sprintf("%s:%s:%d", "p", "u", 3); got != want {
		t.Errorf("ProjectVoteKey = %q, want %q", got, want)
	}
}
