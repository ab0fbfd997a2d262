package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justsurfingit/jobsync/internal/database"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/models"
)

// MergeService folds duplicate jobs and companies together. There are no
// cross-document transactions: a failed merge stops at the failing write and
// leaves earlier writes in place. Reconcile brings such a dataset back to a
// consistent state and is safe to call any number of times.
//
// Once a merge starts writing it detaches from the caller's cancellation, so
// a dropped request never stops it between two writes.
type MergeService struct {
	Store Store
	Log   *logger.Logger
	now   func() time.Time
}

func NewMergeService(store Store, log *logger.Logger) *MergeService {
	return &MergeService{
		Store: store,
		Log:   log.WithField(logger.FieldComponent, "merge"),
		now:   time.Now,
	}
}

type MergeResult struct {
	Success     bool   `json:"success"`
	MergedCount int    `json:"mergedCount"`
	Message     string `json:"message"`
}

// MergeDuplicateJobs merges the owner's jobs that share a normalized company
// and title into the earliest applied one. Duplicates are soft-deleted with a
// merge marker.
func (s *MergeService) MergeDuplicateJobs(ctx context.Context, trackingCode string) (MergeResult, error) {
	jobs, err := s.Store.ListJobsByTrackingCode(ctx, trackingCode)
	if err != nil {
		return MergeResult{}, fmt.Errorf("list jobs: %w", err)
	}

	groups := make(map[string][]models.Job)
	var keys []string
	for _, job := range jobs {
		if job.IsMerged() {
			continue
		}
		k := duplicateKey(job)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], job)
	}

	ctx = context.WithoutCancel(ctx)
	merged := 0
	for _, k := range keys {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		sortByAppliedDate(group)
		n, err := s.mergeGroup(ctx, group[0], group[1:])
		merged += n
		if err != nil {
			return MergeResult{MergedCount: merged}, err
		}
	}

	s.Log.WithFields(logger.Fields{logger.FieldTrackingCode: trackingCode, "merged": merged}).Info("duplicate merge finished")

	msg := "No duplicates found"
	if merged > 0 {
		msg = fmt.Sprintf("Merged %d duplicate job(s)", merged)
	}
	return MergeResult{Success: true, MergedCount: merged, Message: msg}, nil
}

// mergeGroup repoints each duplicate's details onto primary and marks the
// duplicate merged. The primary is written last.
func (s *MergeService) mergeGroup(ctx context.Context, primary models.Job, dups []models.Job) (int, error) {
	emailIDs := primary.EmailIDs
	merged := 0

	for _, dup := range dups {
		if err := s.repointDetails(ctx, dup.ID, primary.ID); err != nil {
			return merged, err
		}
		now := s.now()
		err := s.Store.UpdateJob(ctx, dup.ID, database.Fields{
			database.ColMergedInto: primary.ID,
			database.ColMergedAt:   now,
		})
		if err != nil {
			return merged, fmt.Errorf("mark job %s merged: %w", dup.ID, err)
		}
		emailIDs = emailIDs.Union(dup.EmailIDs)
		merged++
	}

	now := s.now()
	err := s.Store.UpdateJob(ctx, primary.ID, database.Fields{
		database.ColEmailIDs:    emailIDs,
		database.ColLastUpdated: now,
		database.ColUpdateTime:  now,
	})
	if err != nil {
		return merged, fmt.Errorf("update primary job %s: %w", primary.ID, err)
	}
	return merged, nil
}

// MergeJobs moves every detail and email of source onto target and deletes
// source. Both must be live jobs owned by trackingCode.
func (s *MergeService) MergeJobs(ctx context.Context, sourceID, targetID, trackingCode string) error {
	if sourceID == targetID {
		return ErrInvalidMerge
	}
	source, err := loadOwnedJob(ctx, s.Store, sourceID, trackingCode)
	if err != nil {
		return err
	}
	target, err := loadOwnedJob(ctx, s.Store, targetID, trackingCode)
	if err != nil {
		return err
	}
	jobs, err := s.Store.ListJobsByTrackingCode(ctx, trackingCode)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	var mergedIntoSource []models.Job
	for _, job := range jobs {
		if job.MergedInto != nil && *job.MergedInto == source.ID {
			mergedIntoSource = append(mergedIntoSource, job)
		}
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.repointDetails(ctx, source.ID, target.ID); err != nil {
		return err
	}
	// Jobs earlier folded into source must keep a live survivor once it is deleted.
	err = fanOut(mergedIntoSource, func(job models.Job) error {
		return s.Store.UpdateJob(ctx, job.ID, database.Fields{database.ColMergedInto: target.ID})
	})
	if err != nil {
		return fmt.Errorf("repoint jobs merged into %s: %w", source.ID, err)
	}

	now := s.now()
	err = s.Store.UpdateJob(ctx, target.ID, database.Fields{
		database.ColEmailIDs:     target.EmailIDs.Union(source.EmailIDs),
		database.ColCurrentStage: string(furthestStage(target.CurrentStage, source.CurrentStage)),
		database.ColLastUpdated:  now,
		database.ColUpdateTime:   now,
	})
	if err != nil {
		return fmt.Errorf("update target job %s: %w", target.ID, err)
	}

	if err := s.Store.DeleteJob(ctx, source.ID); err != nil {
		return fmt.Errorf("delete source job %s: %w", source.ID, err)
	}

	s.Log.WithFields(logger.Fields{"source": source.ID, "target": target.ID}).Info("jobs merged")
	return nil
}

type CompanyMergeResult struct {
	MovedJobs     int    `json:"movedJobs"`
	TargetCompany string `json:"targetCompany"`
}

// MergeCompanies renames every job of the source company to the target
// company. Companies are addressed by CompanySlug; the source company has no
// document of its own and is gone once its last job moved.
func (s *MergeService) MergeCompanies(ctx context.Context, sourceCompanyID, targetCompanyID, trackingCode string) (CompanyMergeResult, error) {
	src := CompanySlug(strings.TrimSpace(sourceCompanyID))
	dst := CompanySlug(strings.TrimSpace(targetCompanyID))
	if src == dst {
		return CompanyMergeResult{}, ErrInvalidMerge
	}

	jobs, err := s.Store.ListJobsByTrackingCode(ctx, trackingCode)
	if err != nil {
		return CompanyMergeResult{}, fmt.Errorf("list jobs: %w", err)
	}

	var sourceJobs []models.Job
	targetName := ""
	for _, job := range jobs {
		if job.IsMerged() {
			continue
		}
		switch CompanySlug(job.Company) {
		case src:
			sourceJobs = append(sourceJobs, job)
		case dst:
			if targetName == "" {
				targetName = job.Company
			}
		}
	}
	if len(sourceJobs) == 0 {
		return CompanyMergeResult{}, notFound("company", sourceCompanyID)
	}
	if targetName == "" {
		return CompanyMergeResult{}, notFound("company", targetCompanyID)
	}

	ctx = context.WithoutCancel(ctx)
	now := s.now()
	err = fanOut(sourceJobs, func(job models.Job) error {
		return s.Store.UpdateJob(ctx, job.ID, database.Fields{
			database.ColCompany:     targetName,
			database.ColLastUpdated: now,
			database.ColUpdateTime:  now,
		})
	})
	if err != nil {
		return CompanyMergeResult{}, fmt.Errorf("move jobs to %q: %w", targetName, err)
	}

	s.Log.WithFields(logger.Fields{"source": src, "target": dst, "jobs": len(sourceJobs)}).Info("companies merged")
	return CompanyMergeResult{MovedJobs: len(sourceJobs), TargetCompany: targetName}, nil
}

type ReconcileResult struct {
	RepointedDetails int    `json:"repointedDetails"`
	RepairedJobs     int    `json:"repairedJobs"`
	MergedCount      int    `json:"mergedCount"`
	Message          string `json:"message"`
}

// Reconcile finishes merges that stopped half way and then merges any
// remaining duplicates. On a consistent dataset it issues no writes.
func (s *MergeService) Reconcile(ctx context.Context, trackingCode string) (ReconcileResult, error) {
	var res ReconcileResult

	jobs, err := s.Store.ListJobsByTrackingCode(ctx, trackingCode)
	if err != nil {
		return res, fmt.Errorf("list jobs: %w", err)
	}
	byID := make(map[string]models.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}
	ctx = context.WithoutCancel(ctx)

	// Email sets the survivors should end up with, in first-seen order.
	pending := make(map[string]models.StringArray)
	var order []string

	for _, job := range jobs {
		if !job.IsMerged() {
			continue
		}
		survivor, ok := resolveSurvivor(job, byID)
		if !ok {
			s.Log.WithField(logger.FieldJobID, job.ID).Warn("merged job has no live survivor")
			continue
		}

		details, err := s.Store.ListJobDetails(ctx, job.ID)
		if err != nil {
			return res, fmt.Errorf("list details for job %s: %w", job.ID, err)
		}
		if len(details) > 0 {
			if err := s.repointList(ctx, details, survivor.ID); err != nil {
				return res, err
			}
			res.RepointedDetails += len(details)
		}

		current, seen := pending[survivor.ID]
		if !seen {
			current = survivor.EmailIDs
		}
		next := current.Union(job.EmailIDs)
		if len(next) != len(current) || !seen {
			if !seen {
				order = append(order, survivor.ID)
			}
			pending[survivor.ID] = next
		}
	}

	for _, id := range order {
		emails := pending[id]
		if len(emails) == len(byID[id].EmailIDs) {
			continue
		}
		now := s.now()
		err := s.Store.UpdateJob(ctx, id, database.Fields{
			database.ColEmailIDs:   emails,
			database.ColUpdateTime: now,
		})
		if err != nil {
			return res, fmt.Errorf("repair job %s: %w", id, err)
		}
		res.RepairedJobs++
	}

	merged, err := s.MergeDuplicateJobs(ctx, trackingCode)
	res.MergedCount = merged.MergedCount
	if err != nil {
		return res, err
	}

	if res.RepointedDetails == 0 && res.RepairedJobs == 0 && res.MergedCount == 0 {
		res.Message = "Already consistent"
	} else {
		res.Message = fmt.Sprintf("Repointed %d detail(s), repaired %d job(s), merged %d duplicate job(s)",
			res.RepointedDetails, res.RepairedJobs, res.MergedCount)
	}
	return res, nil
}

func (s *MergeService) repointDetails(ctx context.Context, fromJobID, toJobID string) error {
	details, err := s.Store.ListJobDetails(ctx, fromJobID)
	if err != nil {
		return fmt.Errorf("list details for job %s: %w", fromJobID, err)
	}
	return s.repointList(ctx, details, toJobID)
}

func (s *MergeService) repointList(ctx context.Context, details []models.JobDetail, toJobID string) error {
	now := s.now()
	err := fanOut(details, func(d models.JobDetail) error {
		return s.Store.UpdateJobDetail(ctx, d.ID, database.Fields{
			database.ColJobID:      toJobID,
			database.ColUpdateTime: now,
		})
	})
	if err != nil {
		return fmt.Errorf("repoint details to job %s: %w", toJobID, err)
	}
	return nil
}

// resolveSurvivor follows merge markers to the live job they end at.
func resolveSurvivor(job models.Job, byID map[string]models.Job) (models.Job, bool) {
	visited := map[string]bool{job.ID: true}
	cur := job
	for cur.IsMerged() {
		next, ok := byID[*cur.MergedInto]
		if !ok || visited[next.ID] {
			return models.Job{}, false
		}
		visited[next.ID] = true
		cur = next
	}
	return cur, true
}

func duplicateKey(job models.Job) string {
	company := strings.ToLower(strings.TrimSpace(job.Company))
	title := strings.ToLower(strings.TrimSpace(job.JobTitle))
	return company + "|||" + title
}

// sortByAppliedDate orders jobs earliest applied first. A missing date counts
// as the epoch; ties fall back to id so the primary is stable across runs.
func sortByAppliedDate(jobs []models.Job) {
	epoch := time.Unix(0, 0)
	applied := func(j models.Job) time.Time {
		if j.AppliedDate == nil {
			return epoch
		}
		return *j.AppliedDate
	}
	sort.SliceStable(jobs, func(a, b int) bool {
		ta, tb := applied(jobs[a]), applied(jobs[b])
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return jobs[a].ID < jobs[b].ID
	})
}

// furthestStage picks the later of two stages; rejected wins over everything.
func furthestStage(a, b string) models.Stage {
	sa, sb := models.CanonicalStage(a), models.CanonicalStage(b)
	if sb.Index() > sa.Index() {
		return sb
	}
	return sa
}
