package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobsync/internal/dtos"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/services"
)

type MergeHandler struct {
	MergeService *services.MergeService
	Log          *logger.Logger
}

func NewMergeHandler(m *services.MergeService, log *logger.Logger) *MergeHandler {
	return &MergeHandler{MergeService: m, Log: log}
}

// MergeDuplicates is POST /jobs/merge-duplicates
func (h *MergeHandler) MergeDuplicates(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	res, err := h.MergeService.MergeDuplicateJobs(c.Request.Context(), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to merge duplicates", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reconcile is POST /jobs/reconcile. Safe to retry after any failure.
func (h *MergeHandler) Reconcile(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	res, err := h.MergeService.Reconcile(c.Request.Context(), sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to reconcile jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

// MergeJobs is POST /jobs/merge
func (h *MergeHandler) MergeJobs(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.MergeJobsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.MergeService.MergeJobs(c.Request.Context(), req.SourceJobID, req.TargetJobID, sess.TrackingCode()); err != nil {
		respondError(c, h.Log, "Failed to merge jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MergeCompanies is POST /companies/merge
func (h *MergeHandler) MergeCompanies(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.MergeCompaniesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.MergeService.MergeCompanies(c.Request.Context(), req.SourceCompanyID, req.TargetCompanyID, sess.TrackingCode())
	if err != nil {
		respondError(c, h.Log, "Failed to merge companies", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}
