package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/justsurfingit/jobsync/internal/models"
)

// JobWithDetails is a live job plus its timeline entries.
type JobWithDetails struct {
	models.Job
	Details []models.JobDetail `json:"details"`
}

type RoleView struct {
	ID           string       `json:"id"`
	Position     string       `json:"position"`
	Salary       string       `json:"salary"`
	Location     string       `json:"location"`
	Contact      string       `json:"contact"`
	AppliedDate  string       `json:"appliedDate"`
	LastUpdated  string       `json:"lastUpdated"`
	CurrentStage string       `json:"currentStage"`
	Notes        string       `json:"notes"`
	Stages       []*StageNode `json:"stages"`
}

type CompanyView struct {
	ID       string     `json:"id"`
	Company  string     `json:"company"`
	Logo     string     `json:"logo"`
	Location string     `json:"location"`
	Roles    []RoleView `json:"roles"`
}

// Values the extractor writes when it found nothing.
var extractorPlaceholders = map[string]struct{}{
	"Unknown Position":       {},
	"Not specified":          {},
	"Location not specified": {},
	"No contact provided":    {},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CompanySlug is the id a company is addressed by. Names differing only in
// case or spacing share a slug.
func CompanySlug(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// BuildDashboard groups jobs by company slug, in first-seen order. A group is
// shown under the first spelling seen.
func BuildDashboard(jobs []JobWithDetails, now time.Time) []CompanyView {
	index := make(map[string]int)
	var out []CompanyView

	for _, job := range jobs {
		name := strings.TrimSpace(job.Company)
		slug := CompanySlug(name)
		i, ok := index[slug]
		if !ok {
			i = len(out)
			index[slug] = i
			logo := ""
			if name != "" {
				logo = strings.ToUpper(string([]rune(name)[0]))
			}
			out = append(out, CompanyView{
				ID:       slug,
				Company:  name,
				Logo:     logo,
				Location: deref(job.Location),
				Roles:    []RoleView{},
			})
		}

		current := job.CurrentStage
		if current == "" {
			current = string(models.StageApplied)
		}
		timeline := BuildTimeline(current, job.Details)
		if models.CanonicalStage(current) == models.StageRejected {
			if n, ok := timeline[models.StageRejected]; ok {
				n.Current = true
			}
		}

		appliedDate := placeholderNA
		if job.AppliedDate != nil {
			appliedDate = formatDate(job.AppliedDate)
		}

		out[i].Roles = append(out[i].Roles, RoleView{
			ID:           job.ID,
			Position:     clean(job.JobTitle),
			Salary:       clean(deref(job.Salary)),
			Location:     clean(deref(job.Location)),
			Contact:      clean(deref(job.Contact)),
			AppliedDate:  appliedDate,
			LastUpdated:  formatRelative(job.LastUpdated, now),
			CurrentStage: current,
			Notes:        deref(job.Notes),
			Stages:       timeline.Ordered(),
		})
	}
	return out
}

func clean(s string) string {
	if _, ok := extractorPlaceholders[s]; ok {
		return ""
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
