package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/justsurfingit/jobsync/internal/config"
	"github.com/justsurfingit/jobsync/internal/database"
	"github.com/justsurfingit/jobsync/internal/dtos"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/models"
)

const (
	rateLimitWindow    = 24 * time.Hour
	defaultExtractWait = 2 * time.Minute
	summaryFallbackLen = 200
	unknownCompany     = "Unknown Company"
	unknownPosition    = "Unknown Position"
)

// EmailService ingests forwarded emails: it stores them right away and turns
// them into jobs and timeline entries in the background.
type EmailService struct {
	Store          Store
	Extractor      Extractor
	MatcherService *MatcherService
	UserService    *UserService
	Log            *logger.Logger

	domain         string
	rateLimit      int
	extractTimeout time.Duration
	now            func() time.Time
	wg             sync.WaitGroup
}

// NewEmailService wires the ingestion pipeline. A nil extractor stores mail
// without processing it.
func NewEmailService(store Store, extractor Extractor, matcher *MatcherService, users *UserService, mail config.MailConfig, ai config.AIConfig, log *logger.Logger) *EmailService {
	timeout := ai.Timeout
	if timeout <= 0 {
		timeout = defaultExtractWait
	}
	return &EmailService{
		Store:          store,
		Extractor:      extractor,
		MatcherService: matcher,
		UserService:    users,
		Log:            log.WithField(logger.FieldComponent, "ingest"),
		domain:         mail.Domain,
		rateLimit:      mail.RateLimitPerDay,
		extractTimeout: timeout,
		now:            time.Now,
	}
}

// Receive parses and stores one inbound email and queues it for extraction.
// Mail for an unknown tracking code is dropped and reported as (nil, nil).
func (s *EmailService) Receive(ctx context.Context, req *dtos.InboundEmailRequest) (*models.InboundEmail, error) {
	now := s.now()
	parsed := ParseInbound(req, s.domain, now)
	log := s.Log.WithFields(logger.Fields{
		logger.FieldTrackingCode: parsed.TrackingCode,
		"forwarder":              parsed.ForwarderEmail,
	})

	user, err := s.UserService.GetByTrackingCode(ctx, parsed.TrackingCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("no user for tracking code, dropping email")
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if s.rateLimit > 0 {
		count, err := s.Store.CountEmailsSince(ctx, parsed.ForwarderEmail, now.Add(-rateLimitWindow))
		if err != nil {
			return nil, fmt.Errorf("check rate limit: %w", err)
		}
		if count >= int64(s.rateLimit) {
			log.WithField("count", count).Warn("forwarder over daily limit")
			return nil, ErrRateLimited
		}
	}

	email := &models.InboundEmail{
		OriginalSender:   parsed.OriginalSender,
		ForwarderEmail:   parsed.ForwarderEmail,
		ReceiverEmail:    parsed.ReceiverEmail,
		TrackingCode:     parsed.TrackingCode,
		OriginalSentAt:   parsed.SentDate,
		Subject:          parsed.Subject,
		ContentDetails:   parsed.Content,
		ProcessingStatus: models.ProcessingQueued,
		UpdateTime:       &now,
	}
	if err := s.Store.CreateEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("store email: %w", err)
	}
	log.WithField(logger.FieldEmailID, email.ID).Info("email stored")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg, cancel := context.WithTimeout(context.Background(), s.extractTimeout)
		defer cancel()
		if err := s.Process(bg, email, user); err != nil {
			log.WithError(err).WithField(logger.FieldEmailID, email.ID).Error("email processing failed")
		}
	}()

	return email, nil
}

// Wait blocks until background processing of received emails has finished.
func (s *EmailService) Wait() {
	s.wg.Wait()
}

// Process runs extraction for a stored email and records the outcome on it.
func (s *EmailService) Process(ctx context.Context, email *models.InboundEmail, user *models.User) error {
	if s.Extractor == nil {
		s.Log.WithField(logger.FieldEmailID, email.ID).Warn("extraction disabled, email left queued")
		return nil
	}

	parsed := ParsedEmail{
		OriginalSender: email.OriginalSender,
		ForwarderEmail: email.ForwarderEmail,
		ReceiverEmail:  email.ReceiverEmail,
		TrackingCode:   email.TrackingCode,
		SentDate:       email.OriginalSentAt,
		Subject:        email.Subject,
		Content:        email.ContentDetails,
	}

	ext, err := s.Extractor.ExtractEmail(ctx, parsed)
	if err != nil {
		return s.markFailed(ctx, email.ID, fmt.Errorf("extract: %w", err))
	}

	jobID, err := s.ApplyExtraction(ctx, email, user, ext)
	if err != nil {
		return s.markFailed(ctx, email.ID, err)
	}

	err = s.Store.UpdateEmail(ctx, email.ID, database.Fields{
		database.ColProcessed:        true,
		database.ColJobID:            jobID,
		database.ColProcessingStatus: models.ProcessingCompleted,
		database.ColUpdateTime:       s.now(),
	})
	if err != nil {
		s.Log.WithError(err).WithField(logger.FieldEmailID, email.ID).Warn("could not mark email completed")
	}

	if s.UserService != nil {
		if err := s.UserService.RefreshCounters(ctx, user); err != nil {
			s.Log.WithError(err).Warn("could not refresh user counters")
		}
	}
	return nil
}

// ApplyExtraction files an extracted email under a matching job, creating
// the job when none matches, and adds its timeline entry. It returns the
// job id.
func (s *EmailService) ApplyExtraction(ctx context.Context, email *models.InboundEmail, user *models.User, ext *Extraction) (string, error) {
	job, err := s.MatcherService.FindJob(ctx, user.EmailCode, ext)
	if err != nil {
		return "", err
	}

	now := s.now()
	var stage models.Stage

	if job != nil {
		stage = models.NextStage(job.CurrentStage, ext.CurrentStage)
		fields := database.Fields{
			database.ColCurrentStage: string(stage),
			database.ColEmailIDs:     job.EmailIDs.Union(models.StringArray{email.ID}),
			database.ColLastUpdated:  now,
			database.ColUpdateTime:   now,
		}
		setIfPresent(fields, database.ColSalary, ext.Salary)
		setIfPresent(fields, database.ColLocation, ext.Location)
		setIfPresent(fields, database.ColContact, ext.Contact)
		setIfPresent(fields, database.ColNotes, ext.Notes)
		if err := s.Store.UpdateJob(ctx, job.ID, fields); err != nil {
			return "", fmt.Errorf("update job %s: %w", job.ID, err)
		}
	} else {
		stage = models.StageApplied
		if models.IsKnownStage(ext.CurrentStage) {
			stage = models.CanonicalStage(ext.CurrentStage)
		}
		job = &models.Job{
			Company:      orDefault(ext.Company, unknownCompany),
			JobTitle:     orDefault(ext.JobTitle, unknownPosition),
			CurrentStage: string(stage),
			Salary:       strPtr(strings.TrimSpace(ext.Salary)),
			Location:     strPtr(strings.TrimSpace(ext.Location)),
			Contact:      strPtr(strings.TrimSpace(ext.Contact)),
			Notes:        strPtr(strings.TrimSpace(ext.Notes)),
			AppliedDate:  &now,
			LastUpdated:  &now,
			UpdateTime:   &now,
			EmailIDs:     models.StringArray{email.ID},
			TrackingCode: user.EmailCode,
			UserID:       user.ID,
		}
		if err := s.Store.CreateJob(ctx, job); err != nil {
			return "", fmt.Errorf("create job: %w", err)
		}
	}

	summary := strings.TrimSpace(ext.EmailSummary)
	if summary == "" {
		summary = truncateRunes(email.ContentDetails, summaryFallbackLen)
	}
	detail := &models.JobDetail{
		JobID:          job.ID,
		UserID:         user.ID,
		TrackingCode:   user.EmailCode,
		EmailID:        email.ID,
		Stage:          string(stage),
		Sender:         email.OriginalSender,
		Subject:        email.Subject,
		ContentSummary: summary,
		Notes:          strPtr(strings.TrimSpace(ext.Notes)),
		SentDate:       email.OriginalSentAt,
		UpdateTime:     &now,
	}
	if err := s.Store.CreateJobDetail(ctx, detail); err != nil {
		return "", fmt.Errorf("create job detail: %w", err)
	}

	s.Log.WithFields(logger.Fields{
		logger.FieldJobID:   job.ID,
		logger.FieldEmailID: email.ID,
		"stage":             stage,
	}).Info("email applied to job")
	return job.ID, nil
}

func (s *EmailService) markFailed(ctx context.Context, emailID string, cause error) error {
	err := s.Store.UpdateEmail(ctx, emailID, database.Fields{
		database.ColProcessed:        false,
		database.ColProcessingStatus: models.ProcessingFailed,
		database.ColProcessingError:  cause.Error(),
		database.ColUpdateTime:       s.now(),
	})
	if err != nil {
		s.Log.WithError(err).WithField(logger.FieldEmailID, emailID).Warn("could not mark email failed")
	}
	return cause
}

func setIfPresent(fields database.Fields, col, v string) {
	if v = strings.TrimSpace(v); v != "" {
		fields[col] = v
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
