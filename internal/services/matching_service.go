package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/justsurfingit/jobsync/internal/models"
)

type MatcherService struct {
	Store JobStore
}

func NewMatcherService(store JobStore) *MatcherService {
	return &MatcherService{Store: store}
}

// FindJob looks up the live job an extracted email belongs to. It returns
// nil when nothing matches, including when the model found no company or
// title.
func (s *MatcherService) FindJob(ctx context.Context, trackingCode string, ext *Extraction) (*models.Job, error) {
	company := normalizeKey(ext.Company)
	title := normalizeKey(ext.JobTitle)
	if company == "" || title == "" {
		return nil, nil
	}

	jobs, err := s.Store.ListJobsByTrackingCode(ctx, trackingCode)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return matchJob(jobs, company, title), nil
}

// matchJob picks the first job of the same company whose title equals the
// extracted one or contains it (either way round). Inputs are normalized.
func matchJob(jobs []models.Job, company, title string) *models.Job {
	for i := range jobs {
		job := &jobs[i]
		if job.IsMerged() || normalizeKey(job.Company) != company {
			continue
		}
		jobTitle := normalizeKey(job.JobTitle)
		if jobTitle == title {
			return job
		}
		// Titles vary between emails: "Backend Engineer" vs "Senior Backend Engineer".
		if jobTitle != "" && (strings.Contains(jobTitle, title) || strings.Contains(title, jobTitle)) {
			return job
		}
	}
	return nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
