package models

import (
	"reflect"
	"strings"
	"testing"

	"github.com/zulandar/presale/internal/workflow"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestOpportunity_Fields(t *testing.T) {
	typ := reflect.TypeOf(Opportunity{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Status", "default:Open")
	assertGormTag(t, typ, "ApprovalStatus", "default:Pending")
	assertGormTag(t, typ, "LedgerSeq", "default:0")
	assertGormTag(t, typ, "Versions", "foreignKey:OpportunityID")

	assertFieldType(t, typ, "Version", "workflow.Version")
	assertFieldType(t, typ, "PresalePlanID", "*string")
}

func TestPresalePlan_Fields(t *testing.T) {
	typ := reflect.TypeOf(PresalePlan{})

	assertGormTag(t, typ, "Status", "default:Pending")
	assertGormTag(t, typ, "PendingUntil", "index")
	assertGormTag(t, typ, "ApprovalCount", "default:0")
	assertGormTag(t, typ, "RejectionCount", "default:0")
	assertGormTag(t, typ, "Comments", "foreignKey:PlanID")

	assertFieldType(t, typ, "PendingUntil", "*time.Time")
	assertFieldType(t, typ, "Comments", "[]models.PresalePlanComment")
}

func TestVoteKeys_AreUnique(t *testing.T) {
	assertGormTag(t, reflect.TypeOf(PresalePlanComment{}), "VoteKey", "uniqueIndex")
	assertGormTag(t, reflect.TypeOf(ProjectComment{}), "VoteKey", "uniqueIndex")
	assertFieldType(t, reflect.TypeOf(PresalePlanComment{}), "VoteKey", "*string")
	assertFieldType(t, reflect.TypeOf(ProjectComment{}), "VoteKey", "*string")
}

func TestVersionRows_UniquePerSeq(t *testing.T) {
	cases := []struct {
		typ   reflect.Type
		owner string
		index string
	}{
		{reflect.TypeOf(OpportunityVersion{}), "OpportunityID", "uniqueIndex:idx_opportunity_versions_seq"},
		{reflect.TypeOf(PresalePlanVersion{}), "PlanID", "uniqueIndex:idx_presale_plan_versions_seq"},
		{reflect.TypeOf(ProjectVersion{}), "ProjectID", "uniqueIndex:idx_project_versions_seq"},
		{reflect.TypeOf(TemplateChange{}), "TemplateDataID", "uniqueIndex:idx_template_changes_seq"},
	}
	for _, tc := range cases {
		assertGormTag(t, tc.typ, tc.owner, tc.index)
		assertGormTag(t, tc.typ, "Seq", tc.index)
		if _, ok := tc.typ.FieldByName("UpdatedAt"); ok {
			t.Errorf("%s has UpdatedAt; version rows are immutable", tc.typ.Name())
		}
	}
}

func TestProject_Relations(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "ReviewRound", "default:1")
	assertGormTag(t, typ, "LiveName", "uniqueIndex")
	assertFieldType(t, typ, "LiveName", "*string")
	assertGormTag(t, typ, "Template", "foreignKey:ProjectID")
	assertGormTag(t, typ, "Resources", "foreignKey:ProjectID")
	assertGormTag(t, typ, "Productivity", "foreignKey:ProjectID")

	assertFieldType(t, typ, "Template", "models.TemplateData")
	assertFieldType(t, typ, "SourceID", "*string")
	assertFieldType(t, typ, "OpportunityID", "*string")
}

func TestProjectComment_Fields(t *testing.T) {
	typ := reflect.TypeOf(ProjectComment{})

	assertGormTag(t, typ, "Action", "default:Chat")
	assertGormTag(t, typ, "ParentID", "index")
	assertGormTag(t, typ, "Round", "default:1")
}

func TestTemplateData_TableName(t *testing.T) {
	if got := (TemplateData{}).TableName(); got != "template_data" {
		t.Errorf("TableName = %q, want %q", got, "template_data")
	}
	assertGormTag(t, reflect.TypeOf(TemplateData{}), "ProjectID", "uniqueIndex")
}

func TestComponents_KeepOriginalIDs(t *testing.T) {
	cases := map[reflect.Type]string{
		reflect.TypeOf(ProjectResource{}):     "OriginalResourceID",
		reflect.TypeOf(ProjectTechnology{}):   "OriginalTechnologyID",
		reflect.TypeOf(ProjectChecklist{}):    "OriginalChecklistID",
		reflect.TypeOf(ProjectAssumption{}):   "OriginalAssumptionID",
		reflect.TypeOf(ProjectProductivity{}): "OriginalProductivityID",
	}
	for typ, field := range cases {
		assertGormTag(t, typ, field, "index")
		assertGormTag(t, typ, "ProjectID", "not null")
	}
}

func TestSchedulerLease_Fields(t *testing.T) {
	typ := reflect.TypeOf(SchedulerLease{})

	assertGormTag(t, typ, "Name", "primaryKey")
	assertGormTag(t, typ, "ExpiresAt", "index")
	assertFieldType(t, typ, "ExpiresAt", "time.Time")
}

func TestSubjects_ReportState(t *testing.T) {
	o := &Opportunity{ID: "o1", Status: "Open", ApprovalStatus: "Pending", Deleted: true}
	if o.SubjectID() != "o1" || o.SubjectStatus() != "Open" || o.ApprovalState() != "Pending" || !o.IsDeleted() {
		t.Errorf("opportunity accessors = %q %q %q %v", o.SubjectID(), o.SubjectStatus(), o.ApprovalState(), o.IsDeleted())
	}

	p := &Project{ID: "p1"}
	p.Template.Version = workflow.Version{Generation: 3, Revision: 2}
	if got := p.SubjectVersion().String(); got != "3.2" {
		t.Errorf("project version = %q, want %q", got, "3.2")
	}
}
