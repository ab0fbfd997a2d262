package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobsync/internal/dtos"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/services"
)

type JobHandler struct {
	JobService *services.JobService
	Log        *logger.Logger
}

func NewJobHandler(j *services.JobService, log *logger.Logger) *JobHandler {
	return &JobHandler{JobService: j, Log: log}
}

// ListJobs is GET /jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	jobs, err := h.JobService.ListJobs(c.Request.Context(), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to load jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": jobs})
}

// Dashboard is GET /dashboard
func (h *JobHandler) Dashboard(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	companies, err := h.JobService.Dashboard(c.Request.Context(), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to load dashboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "companies": companies})
}

// Analytics is GET /analytics
func (h *JobHandler) Analytics(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	stats, err := h.JobService.Analytics(c.Request.Context(), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to load analytics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analytics": stats})
}

// CreateJob is POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.ManualJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	job, err := h.JobService.AddManualJob(c.Request.Context(), sess.User, services.ManualJob{
		Company:      req.Company,
		JobTitle:     req.JobTitle,
		CurrentStage: req.Stage,
		Salary:       req.Salary,
		Location:     req.Location,
		Contact:      req.Contact,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, h.Log, "Failed to create job", err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// UpdateJob is PATCH /jobs/:id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.JobService.UpdateJob(c.Request.Context(), c.Param("id"), sess.TrackingCode(), services.JobUpdate{
		Company:      req.Company,
		JobTitle:     req.JobTitle,
		CurrentStage: req.CurrentStage,
		Salary:       req.Salary,
		Location:     req.Location,
		Contact:      req.Contact,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, h.Log, "Failed to update job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateStage is PUT /jobs/:id/stage
func (h *JobHandler) UpdateStage(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.StageUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.JobService.UpdateJobStage(c.Request.Context(), c.Param("id"), sess.TrackingCode(), req.Stage, req.Notes)
	if err != nil {
		respondError(c, h.Log, "Failed to update stage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteJob is DELETE /jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	res, err := h.JobService.DeleteJob(c.Request.Context(), c.Param("id"), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to delete job", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Timeline is GET /jobs/:id/timeline
func (h *JobHandler) Timeline(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	tl, err := h.JobService.Timeline(c.Request.Context(), c.Param("id"), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to build timeline", err)
		return
	}
	resp := gin.H{"stages": tl.Ordered(), "currentStage": nil}
	if cur := tl.Current(); cur != nil {
		resp["currentStage"] = cur.Stage
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateEmailStage is PUT /job-details/:id/stage
func (h *JobHandler) UpdateEmailStage(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.EmailStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.JobService.UpdateEmailStage(c.Request.Context(), c.Param("id"), req.JobID, sess.TrackingCode(), req.Stage)
	if err != nil {
		respondError(c, h.Log, "Failed to update email stage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetEmail is GET /emails/:id
func (h *JobHandler) GetEmail(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	email, err := h.JobService.EmailContent(c.Request.Context(), c.Param("id"), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to load email", err)
		return
	}
	c.JSON(http.StatusOK, email)
}
