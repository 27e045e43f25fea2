package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/presale/internal/approval"
	"github.com/zulandar/presale/internal/db"
	"github.com/zulandar/presale/internal/sweeper"
	"github.com/zulandar/presale/internal/workflow"
)

type testServer struct {
	router *gin.Engine
	svc    *approval.Service
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	ts := &testServer{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return ts.now }
	svc, err := approval.New(approval.Opts{DB: gdb, Quorum: 2, Now: clock})
	if err != nil {
		t.Fatalf("approval.New: %v", err)
	}
	sw, err := sweeper.New(sweeper.Opts{DB: gdb, Resolver: svc, Holder: "test", Now: clock})
	if err != nil {
		t.Fatalf("sweeper.New: %v", err)
	}
	ts.svc = svc
	ts.router = NewRouter(svc, sw)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, out
}

func (ts *testServer) create(t *testing.T, path string, body interface{}) string {
	t.Helper()
	w, out := ts.do(t, http.MethodPost, path, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST %s = %d %s", path, w.Code, w.Body.String())
	}
	id, _ := out["subjectId"].(string)
	if id == "" {
		t.Fatalf("POST %s: no subjectId in %v", path, out)
	}
	return id
}

func TestStart_NilService(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil service")
	}
	if !strings.Contains(err.Error(), "service is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "service is required")
	}
}

func TestDecisions_OpportunityFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, "/api/opportunities", map[string]string{"actorId": "sales", "name": "Acme"})

	w, out := ts.do(t, http.MethodPost, "/api/opportunities/"+id+"/decisions", map[string]string{"actorId": "boss", "decision": "Rejected"})
	if w.Code != http.StatusOK {
		t.Fatalf("reject = %d %s", w.Code, w.Body.String())
	}
	if out["version"] != 1.1 {
		t.Errorf("version = %v, want 1.1", out["version"])
	}

	w, _ = ts.do(t, http.MethodPost, "/api/opportunities/"+id+"/resubmit", map[string]string{"actorId": "sales"})
	if w.Code != http.StatusOK {
		t.Fatalf("resubmit = %d %s", w.Code, w.Body.String())
	}

	w, out = ts.do(t, http.MethodGet, "/api/opportunities/"+id+"/versions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("versions = %d", w.Code)
	}
	if versions, _ := out["versions"].([]interface{}); len(versions) != 3 {
		t.Errorf("versions = %d, want 3", len(versions))
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	oppID := ts.create(t, "/api/opportunities", map[string]string{"actorId": "sales", "name": "Acme"})
	planID := ts.create(t, "/api/plans", map[string]string{"actorId": "p", "opportunityId": oppID, "name": "Plan"})
	ts.create(t, "/api/projects", map[string]string{"actorId": "pm", "name": "Portal"})

	vote := map[string]string{"actorId": "alice", "decision": "Approved"}
	if w, _ := ts.do(t, http.MethodPost, "/api/plans/"+planID+"/decisions", vote); w.Code != http.StatusOK {
		t.Fatalf("first vote = %d %s", w.Code, w.Body.String())
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   workflow.ErrorKind
	}{
		{"missing subject", http.MethodPost, "/api/plans/nope/decisions", vote, http.StatusNotFound, workflow.KindNotFound},
		{"duplicate vote", http.MethodPost, "/api/plans/" + planID + "/decisions", vote, http.StatusConflict, workflow.KindDuplicate},
		{"bad decision", http.MethodPost, "/api/plans/" + planID + "/decisions", map[string]string{"actorId": "bob", "decision": "Maybe"}, http.StatusBadRequest, workflow.KindValidation},
		{"missing actor", http.MethodPost, "/api/plans/" + planID + "/decisions", map[string]string{"decision": "Approved"}, http.StatusBadRequest, workflow.KindValidation},
		{"duplicate name", http.MethodPost, "/api/projects", map[string]string{"actorId": "pm", "name": "Portal"}, http.StatusConflict, workflow.KindDupName},
		{"resubmit pending", http.MethodPost, "/api/opportunities/" + oppID + "/resubmit", map[string]string{"actorId": "sales"}, http.StatusConflict, workflow.KindInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := ts.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.kind != "" && out["kind"] != string(tt.kind) {
				t.Errorf("kind = %v, want %s", out["kind"], tt.kind)
			}
			if tt.kind != "" && out["retryable"] != false {
				t.Errorf("retryable = %v, want false", out["retryable"])
			}
		})
	}
}

func TestProjectReviewAndClone(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, "/api/projects", map[string]string{"actorId": "pm", "name": "Portal"})

	actor := map[string]string{"actorId": "pm"}
	if w, _ := ts.do(t, http.MethodPost, "/api/projects/"+id+"/review", actor); w.Code != http.StatusOK {
		t.Fatalf("start review = %d %s", w.Code, w.Body.String())
	}
	w, out := ts.do(t, http.MethodPost, "/api/projects/"+id+"/comments", map[string]string{
		"actorId": "lead", "action": "Rejected", "decision": "Rejected", "text": "needs estimates",
	})
	if w.Code != http.StatusCreated || out["status"] != workflow.ProjectRejected {
		t.Fatalf("reject = %d %v", w.Code, out)
	}
	w, out = ts.do(t, http.MethodPost, "/api/projects/"+id+"/review-requests", actor)
	if w.Code != http.StatusOK || out["version"] != 1.2 {
		t.Fatalf("request review = %d %v", w.Code, out)
	}

	w, out = ts.do(t, http.MethodPost, "/api/projects/"+id+"/clone", map[string]interface{}{
		"actorId": "pm", "name": "Portal II", "components": []string{"resources"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("clone = %d %s", w.Code, w.Body.String())
	}
	if out["subjectId"] == "" || out["status"] != workflow.ProjectPending {
		t.Errorf("clone = %v", out)
	}

	w, _ = ts.do(t, http.MethodPost, "/api/projects/"+id+"/clone", map[string]interface{}{
		"actorId": "pm", "name": "Portal III", "components": []string{"invoices"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("clone with unknown category = %d, want 400", w.Code)
	}
}

func TestSweepEndpoint(t *testing.T) {
	ts := newTestServer(t)
	oppID := ts.create(t, "/api/opportunities", map[string]string{"actorId": "sales", "name": "Acme"})
	planID := ts.create(t, "/api/plans", map[string]string{"actorId": "p", "opportunityId": oppID, "name": "Plan"})
	ts.do(t, http.MethodPost, "/api/plans/"+planID+"/decisions", map[string]string{"actorId": "a", "decision": "Approved"})

	ts.now = ts.now.Add(approval.DefaultPlanPendingWindow + time.Minute)
	w, out := ts.do(t, http.MethodPost, "/api/sweeps", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sweep = %d %s", w.Code, w.Body.String())
	}
	if out["resolvedCount"] != float64(1) {
		t.Errorf("resolvedCount = %v, want 1", out["resolvedCount"])
	}

	w, out = ts.do(t, http.MethodPost, "/api/sweeps", nil)
	if w.Code != http.StatusOK || out["resolvedCount"] != float64(0) {
		t.Errorf("second sweep = %d %v, want no-op", w.Code, out)
	}
	if errs, _ := out["errors"].([]interface{}); len(errs) != 0 {
		t.Errorf("errors = %v, want empty", errs)
	}

	_, plan := ts.do(t, http.MethodGet, "/api/plans/"+planID, nil)
	p, _ := plan["plan"].(map[string]interface{})
	if p["Status"] != workflow.PlanRejected {
		t.Errorf("plan status = %v, want Rejected", p["Status"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind workflow.ErrorKind
		want int
	}{
		{workflow.KindNotFound, http.StatusNotFound},
		{workflow.KindValidation, http.StatusBadRequest},
		{workflow.KindInvalidState, http.StatusConflict},
		{workflow.KindDuplicate, http.StatusConflict},
		{workflow.KindDupName, http.StatusConflict},
		{workflow.KindConflict, http.StatusConflict},
		{workflow.KindPersistence, http.StatusInternalServerError},
		{workflow.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
