package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justsurfingit/jobsync/internal/database"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/models"
)

const maxNameLength = 200

type JobService struct {
	Store Store
	Log   *logger.Logger
	now   func() time.Time
}

func NewJobService(store Store, log *logger.Logger) *JobService {
	return &JobService{
		Store: store,
		Log:   log.WithField(logger.FieldComponent, "jobs"),
		now:   time.Now,
	}
}

// ListJobs returns the owner's live jobs, most recently updated first, each
// with its timeline entries.
func (s *JobService) ListJobs(ctx context.Context, trackingCode string) ([]JobWithDetails, error) {
	jobs, err := s.Store.ListJobsByTrackingCode(ctx, trackingCode)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	out := make([]JobWithDetails, 0, len(jobs))
	for _, job := range jobs {
		if job.IsMerged() {
			continue
		}
		details, err := s.Store.ListJobDetails(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("list details for job %s: %w", job.ID, err)
		}
		out = append(out, JobWithDetails{Job: job, Details: details})
	}
	return out, nil
}

// Dashboard returns the owner's jobs grouped per company with timelines.
func (s *JobService) Dashboard(ctx context.Context, trackingCode string) ([]CompanyView, error) {
	jobs, err := s.ListJobs(ctx, trackingCode)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(jobs, s.now()), nil
}

// Analytics summarizes the owner's live jobs.
func (s *JobService) Analytics(ctx context.Context, trackingCode string) (Analytics, error) {
	jobs, err := s.ListJobs(ctx, trackingCode)
	if err != nil {
		return Analytics{}, err
	}
	return BuildAnalytics(jobs, s.now()), nil
}

// Timeline builds the stage timeline of one job.
func (s *JobService) Timeline(ctx context.Context, jobID, trackingCode string) (Timeline, error) {
	job, err := s.ownedJob(ctx, jobID, trackingCode)
	if err != nil {
		return nil, err
	}
	details, err := s.Store.ListJobDetails(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list details for job %s: %w", job.ID, err)
	}
	return BuildTimeline(job.CurrentStage, details), nil
}

// EmailContent returns a stored inbound email owned by trackingCode.
func (s *JobService) EmailContent(ctx context.Context, emailID, trackingCode string) (*models.InboundEmail, error) {
	email, err := s.Store.GetEmail(ctx, emailID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("email", emailID)
		}
		return nil, err
	}
	if !sameCode(email.TrackingCode, trackingCode) {
		return nil, notFound("email", emailID)
	}
	return email, nil
}

// JobUpdate carries the editable fields of a job; nil means unchanged.
type JobUpdate struct {
	Company      *string
	JobTitle     *string
	CurrentStage *string
	Salary       *string
	Location     *string
	Contact      *string
	Notes        *string
}

// UpdateJob edits a job. A stage change is pushed to every detail first and
// the job itself is written only after those have settled.
func (s *JobService) UpdateJob(ctx context.Context, jobID, trackingCode string, upd JobUpdate) error {
	job, err := s.ownedJob(ctx, jobID, trackingCode)
	if err != nil {
		return err
	}

	now := s.now()
	fields := database.Fields{database.ColUpdateTime: now}

	if upd.Company != nil {
		name, err := validateName("company", *upd.Company)
		if err != nil {
			return err
		}
		fields[database.ColCompany] = name
	}
	if upd.JobTitle != nil {
		title, err := validateName("jobTitle", *upd.JobTitle)
		if err != nil {
			return err
		}
		fields[database.ColJobTitle] = title
	}
	if upd.Salary != nil {
		fields[database.ColSalary] = strPtr(strings.TrimSpace(*upd.Salary))
	}
	if upd.Location != nil {
		fields[database.ColLocation] = strPtr(strings.TrimSpace(*upd.Location))
	}
	if upd.Contact != nil {
		fields[database.ColContact] = strPtr(strings.TrimSpace(*upd.Contact))
	}
	if upd.Notes != nil {
		fields[database.ColNotes] = strPtr(strings.TrimSpace(*upd.Notes))
	}

	if upd.CurrentStage != nil {
		stage, err := parseStage(*upd.CurrentStage)
		if err != nil {
			return err
		}
		fields[database.ColCurrentStage] = string(stage)

		details, err := s.Store.ListJobDetails(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("list details for job %s: %w", job.ID, err)
		}
		err = fanOut(details, func(d models.JobDetail) error {
			return s.Store.UpdateJobDetail(ctx, d.ID, database.Fields{
				database.ColStage:      string(stage),
				database.ColUpdateTime: now,
			})
		})
		if err != nil {
			return fmt.Errorf("update detail stages: %w", err)
		}
	}

	if err := s.Store.UpdateJob(ctx, job.ID, fields); err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

// ManualJob is a job entered by hand rather than detected from email.
type ManualJob struct {
	Company      string
	JobTitle     string
	CurrentStage string
	Salary       string
	Location     string
	Contact      string
	Notes        string
}

// AddManualJob records an application the user typed in.
func (s *JobService) AddManualJob(ctx context.Context, user *models.User, in ManualJob) (*models.Job, error) {
	company, err := validateName("company", in.Company)
	if err != nil {
		return nil, err
	}
	title, err := validateName("jobTitle", in.JobTitle)
	if err != nil {
		return nil, err
	}
	stage := models.StageApplied
	if strings.TrimSpace(in.CurrentStage) != "" {
		if stage, err = parseStage(in.CurrentStage); err != nil {
			return nil, err
		}
	}

	now := s.now()
	job := &models.Job{
		Company:      company,
		JobTitle:     title,
		CurrentStage: string(stage),
		Salary:       strPtr(strings.TrimSpace(in.Salary)),
		Location:     strPtr(strings.TrimSpace(in.Location)),
		Contact:      strPtr(strings.TrimSpace(in.Contact)),
		Notes:        strPtr(strings.TrimSpace(in.Notes)),
		AppliedDate:  &now,
		LastUpdated:  &now,
		UpdateTime:   &now,
		EmailIDs:     models.StringArray{},
		TrackingCode: user.EmailCode,
		UserID:       user.ID,
	}
	if err := s.Store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.Log.WithFields(logger.Fields{logger.FieldJobID: job.ID, logger.FieldTrackingCode: job.TrackingCode}).Info("manual job added")
	return job, nil
}

// UpdateJobStage sets the job's current stage without touching its details.
func (s *JobService) UpdateJobStage(ctx context.Context, jobID, trackingCode, stage, notes string) error {
	job, err := s.ownedJob(ctx, jobID, trackingCode)
	if err != nil {
		return err
	}
	st, err := parseStage(stage)
	if err != nil {
		return err
	}
	now := s.now()
	fields := database.Fields{
		database.ColCurrentStage: string(st),
		database.ColLastUpdated:  now,
		database.ColUpdateTime:   now,
	}
	if n := strings.TrimSpace(notes); n != "" {
		fields[database.ColNotes] = n
	}
	if err := s.Store.UpdateJob(ctx, job.ID, fields); err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateEmailStage moves one timeline entry to another stage and then
// recomputes the job's current stage from its details.
func (s *JobService) UpdateEmailStage(ctx context.Context, detailID, jobID, trackingCode, stage string) error {
	job, err := s.ownedJob(ctx, jobID, trackingCode)
	if err != nil {
		return err
	}
	st, err := parseStage(stage)
	if err != nil {
		return err
	}
	detail, err := s.Store.GetJobDetail(ctx, detailID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFound("job detail", detailID)
		}
		return err
	}
	if detail.JobID != job.ID {
		return notFound("job detail", detailID)
	}

	err = s.Store.UpdateJobDetail(ctx, detail.ID, database.Fields{
		database.ColStage:      string(st),
		database.ColUpdateTime: s.now(),
	})
	if err != nil {
		return fmt.Errorf("update detail %s: %w", detail.ID, err)
	}
	return s.RecomputeCurrentStage(ctx, job.ID)
}

// RecomputeCurrentStage sets the job's stage to that of its most recently
// updated detail. Jobs without details are left alone.
func (s *JobService) RecomputeCurrentStage(ctx context.Context, jobID string) error {
	details, err := s.Store.ListJobDetails(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list details for job %s: %w", jobID, err)
	}
	if len(details) == 0 {
		return nil
	}

	latest := details[0]
	for _, d := range details[1:] {
		if timeOrZero(d.UpdateTime).After(timeOrZero(latest.UpdateTime)) {
			latest = d
		}
	}

	now := s.now()
	err = s.Store.UpdateJob(ctx, jobID, database.Fields{
		database.ColCurrentStage: orDefault(latest.Stage, string(models.StageApplied)),
		database.ColLastUpdated:  now,
		database.ColUpdateTime:   now,
	})
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	return nil
}

// DeleteResult reports what a cascading delete removed.
type DeleteResult struct {
	DeletedDetails int    `json:"deletedDetailsCount"`
	DeletedEmails  int    `json:"deletedEmailsCount"`
	Message        string `json:"message"`
}

// DeleteJob removes a job with its details and stored emails. Children go
// first so a failure never leaves details pointing at a missing job.
func (s *JobService) DeleteJob(ctx context.Context, jobID, trackingCode string) (DeleteResult, error) {
	job, err := s.ownedJob(ctx, jobID, trackingCode)
	if err != nil {
		return DeleteResult{}, err
	}

	details, err := s.Store.ListJobDetails(ctx, job.ID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("list details for job %s: %w", job.ID, err)
	}
	if err := fanOut(details, func(d models.JobDetail) error {
		return s.Store.DeleteJobDetail(ctx, d.ID)
	}); err != nil {
		return DeleteResult{}, fmt.Errorf("delete details: %w", err)
	}

	if err := fanOut([]string(job.EmailIDs), func(id string) error {
		return s.Store.DeleteEmail(ctx, id)
	}); err != nil {
		return DeleteResult{}, fmt.Errorf("delete emails: %w", err)
	}

	if err := s.Store.DeleteJob(ctx, job.ID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete job %s: %w", job.ID, err)
	}

	s.Log.WithFields(logger.Fields{
		logger.FieldJobID: job.ID,
		"details":         len(details),
		"emails":          len(job.EmailIDs),
	}).Info("job deleted")

	return DeleteResult{
		DeletedDetails: len(details),
		DeletedEmails:  len(job.EmailIDs),
		Message:        "Job and all associated data deleted successfully",
	}, nil
}

// ownedJob loads a live job and checks it belongs to trackingCode.
func (s *JobService) ownedJob(ctx context.Context, jobID, trackingCode string) (*models.Job, error) {
	return loadOwnedJob(ctx, s.Store, jobID, trackingCode)
}

func loadOwnedJob(ctx context.Context, store JobStore, jobID, trackingCode string) (*models.Job, error) {
	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("job", jobID)
		}
		return nil, err
	}
	if job.IsMerged() || !sameCode(job.TrackingCode, trackingCode) {
		return nil, notFound("job", jobID)
	}
	return job, nil
}

func sameCode(a, b string) bool {
	a = strings.TrimSpace(a)
	return a != "" && strings.EqualFold(a, strings.TrimSpace(b))
}

func parseStage(raw string) (models.Stage, error) {
	if !models.IsKnownStage(raw) {
		return "", invalid("stage", fmt.Sprintf("unknown stage %q", raw))
	}
	return models.CanonicalStage(raw), nil
}

func validateName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalid(field, "cannot be empty")
	}
	if len([]rune(v)) > maxNameLength {
		return "", invalid(field, fmt.Sprintf("must be %d characters or less", maxNameLength))
	}
	return v, nil
}
