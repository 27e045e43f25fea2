package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/presale/internal/approval"
	"github.com/zulandar/presale/internal/clone"
	"github.com/zulandar/presale/internal/models"
	"github.com/zulandar/presale/internal/sweeper"
	"github.com/zulandar/presale/internal/workflow"
)

type handlers struct {
	svc     *approval.Service
	sweeper *sweeper.Sweeper
}

// routeKinds maps the plural path segment to its subject kind.
var routeKinds = []struct {
	path string
	kind workflow.Kind
}{
	{"opportunities", workflow.KindOpportunity},
	{"plans", workflow.KindPresalePlan},
	{"projects", workflow.KindProject},
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	api := router.Group("/api")

	for _, rk := range routeKinds {
		g := api.Group("/" + rk.path)
		g.POST("/:id/decisions", h.submitDecision(rk.kind))
		g.GET("/:id/versions", h.versions(rk.kind))
		g.DELETE("/:id", h.remove(rk.kind))
		g.POST("/:id/restore", h.restore(rk.kind))
	}

	api.POST("/opportunities", h.createOpportunity)
	api.GET("/opportunities/:id", h.getOpportunity)
	api.POST("/opportunities/:id/resubmit", h.resubmitOpportunity)

	api.POST("/plans", h.createPlan)
	api.GET("/plans/:id", h.getPlan)
	api.PATCH("/plans/:id", h.updatePlan)
	api.POST("/plans/:id/submit", h.submitPlan)
	api.POST("/plans/:id/comments", h.planComment)

	api.POST("/projects", h.createProject)
	api.GET("/projects/:id", h.getProject)
	api.POST("/projects/:id/comments", h.projectComment)
	api.POST("/projects/:id/start", h.startProject)
	api.POST("/projects/:id/review", h.startReview)
	api.POST("/projects/:id/review-requests", h.requestReview)
	api.POST("/projects/:id/clone", h.cloneProject)

	if h.sweeper != nil {
		api.POST("/sweeps", h.runSweep)
	}
}

type actorRequest struct {
	ActorID string `json:"actorId" binding:"required"`
	Note    string `json:"note"`
}

type decisionRequest struct {
	ActorID  string  `json:"actorId" binding:"required"`
	Decision string  `json:"decision"`
	Comment  string  `json:"comment"`
	ParentID *string `json:"parentId"`
}

func (h *handlers) submitDecision(kind workflow.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := h.svc.SubmitDecision(c.Request.Context(), approval.DecisionInput{
			Kind:      kind,
			SubjectID: c.Param("id"),
			ActorID:   req.ActorID,
			Decision:  req.Decision,
			Comment:   req.Comment,
			ParentID:  req.ParentID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) versions(kind workflow.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.svc.History(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"versions": records})
	}
}

func (h *handlers) remove(kind workflow.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.Query("actorId")
		res, err := h.svc.Delete(c.Request.Context(), kind, c.Param("id"), actor)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) restore(kind workflow.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := h.svc.Restore(c.Request.Context(), kind, c.Param("id"), req.ActorID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type opportunityRequest struct {
	ActorID     string `json:"actorId" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Client      string `json:"client"`
	Description string `json:"description"`
	DivisionID  string `json:"divisionId"`
}

func (h *handlers) createOpportunity(c *gin.Context) {
	var req opportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.CreateOpportunity(c.Request.Context(), approval.NewOpportunity{
		Name:        req.Name,
		Client:      req.Client,
		Description: req.Description,
		DivisionID:  req.DivisionID,
		ActorID:     req.ActorID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *handlers) getOpportunity(c *gin.Context) {
	opp, err := h.svc.GetOpportunity(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

type resubmitRequest struct {
	ActorID     string  `json:"actorId" binding:"required"`
	Name        *string `json:"name"`
	Client      *string `json:"client"`
	Description *string `json:"description"`
	Note        string  `json:"note"`
}

func (h *handlers) resubmitOpportunity(c *gin.Context) {
	var req resubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.ResubmitOpportunity(c.Request.Context(), approval.OpportunityUpdate{
		ID:          c.Param("id"),
		ActorID:     req.ActorID,
		Name:        req.Name,
		Client:      req.Client,
		Description: req.Description,
		Note:        req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type planRequest struct {
	ActorID       string `json:"actorId" binding:"required"`
	OpportunityID string `json:"opportunityId" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	DivisionID    string `json:"divisionId"`
	Draft         bool   `json:"draft"`
}

func (h *handlers) createPlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.CreatePlan(c.Request.Context(), approval.NewPlan{
		OpportunityID: req.OpportunityID,
		Name:          req.Name,
		Description:   req.Description,
		DivisionID:    req.DivisionID,
		ActorID:       req.ActorID,
		Draft:         req.Draft,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *handlers) getPlan(c *gin.Context) {
	view, err := h.svc.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type planUpdateRequest struct {
	ActorID     string  `json:"actorId" binding:"required"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Note        string  `json:"note"`
}

func (h *handlers) updatePlan(c *gin.Context) {
	var req planUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.UpdatePlan(c.Request.Context(), approval.PlanUpdate{
		ID:          c.Param("id"),
		ActorID:     req.ActorID,
		Name:        req.Name,
		Description: req.Description,
		Note:        req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) submitPlan(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.SubmitPlan(c.Request.Context(), c.Param("id"), req.ActorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type commentRequest struct {
	ActorID  string  `json:"actorId" binding:"required"`
	Text     string  `json:"text"`
	ParentID *string `json:"parentId"`
	// Project comments only.
	Action   string `json:"action"`
	Decision string `json:"decision"`
}

func (h *handlers) planComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.svc.SubmitChatComment(c.Request.Context(), workflow.KindPresalePlan, c.Param("id"), req.ActorID, req.Text, req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"commentId": id})
}

func (h *handlers) projectComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	action := req.Action
	if action == "" {
		action = models.ActionChat
	}
	res, err := h.svc.SubmitProjectComment(c.Request.Context(), approval.ProjectCommentInput{
		ProjectID: c.Param("id"),
		ActorID:   req.ActorID,
		Action:    action,
		Decision:  req.Decision,
		Text:      req.Text,
		ParentID:  req.ParentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type projectRequest struct {
	ActorID       string  `json:"actorId" binding:"required"`
	Name          string  `json:"name" binding:"required"`
	Description   string  `json:"description"`
	OpportunityID *string `json:"opportunityId"`
	DivisionID    string  `json:"divisionId"`
	// Clone only.
	Components []string `json:"components"`
}

func (r projectRequest) newProject() approval.NewProject {
	return approval.NewProject{
		Name:          r.Name,
		Description:   r.Description,
		OpportunityID: r.OpportunityID,
		DivisionID:    r.DivisionID,
		ActorID:       r.ActorID,
	}
}

func (h *handlers) createProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.CreateProject(c.Request.Context(), req.newProject())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *handlers) getProject(c *gin.Context) {
	proj, err := h.svc.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proj)
}

func (h *handlers) startProject(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.StartProject(c.Request.Context(), c.Param("id"), req.ActorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) startReview(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.StartReview(c.Request.Context(), c.Param("id"), req.ActorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) requestReview(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.RequestReview(c.Request.Context(), c.Param("id"), req.ActorID, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) cloneProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sel, err := clone.ParseSelection(req.Components)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.svc.CloneProject(c.Request.Context(), c.Param("id"), req.newProject(), sel)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *handlers) runSweep(c *gin.Context) {
	res, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
