package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobsync/internal/models"
)

func analyticsJob(id, company, title, stage string, applied *time.Time, details ...models.JobDetail) JobWithDetails {
	return JobWithDetails{
		Job:     models.Job{ID: id, Company: company, JobTitle: title, CurrentStage: stage, AppliedDate: applied},
		Details: details,
	}
}

func TestBuildAnalytics(t *testing.T) {
	sameDay := baseTime.Add(3 * time.Hour)
	jobs := []JobWithDetails{
		analyticsJob("j1", "Acme", "Engineer", "interview2", day(0),
			detail("d1", "screening", &sameDay), detail("d2", "interview2", day(2))),
		analyticsJob("j2", "acme", "Engineer ", "offer", day(0), detail("d3", "offer", day(3))),
		analyticsJob("j3", "Globex", "PM", "rejected", day(0), detail("d4", "rejected", day(10))),
		analyticsJob("j4", "Initech", "", "screening", nil, detail("d5", "screening", day(1))),
		analyticsJob("j5", "Zeta", "PM", "weird", day(1), detail("d6", "applied", day(0))),
	}

	got := BuildAnalytics(jobs, *day(10))

	assert.Equal(t, 5, got.TotalApplications)
	assert.Equal(t, map[string]int{
		"interview2": 1, "offer": 1, "rejected": 1, "screening": 1, "applied": 1,
	}, got.StageDistribution)
	assert.Equal(t, Funnel{Applied: 1, Screening: 1, Interview: 1, Offer: 1, Rejected: 1}, got.Funnel)

	rt := got.ResponseTimes
	assert.Equal(t, 1, rt.SameDay)
	assert.Equal(t, 1, rt.WithinWeek)
	assert.Equal(t, 1, rt.OverWeek)
	assert.Equal(t, 3, rt.Total)
	assert.InDelta(t, 33.3, rt.SameDayPercent, 0.001)

	require.Len(t, got.Positions, 2)
	assert.Equal(t, "Engineer", got.Positions[0].Name)
	assert.Equal(t, OutcomeCounts{Total: 2, Interviews: 1, Offers: 1}, got.Positions[0].OutcomeCounts)
	assert.Equal(t, "PM", got.Positions[1].Name)
	assert.Equal(t, 1, got.Positions[1].Rejections)

	require.Len(t, got.Companies, 4)
	assert.Equal(t, "Acme", got.Companies[0].Name)
	assert.Equal(t, 2, got.Companies[0].Total)

	require.Len(t, got.Activity, activityWeeks)
	last := got.Activity[activityWeeks-1]
	assert.Equal(t, "2025-03-05", last.Start)
	assert.Equal(t, 1, last.Count)
	assert.Equal(t, 9, got.Activity[activityWeeks-2].Count)
	total := 0
	for _, w := range got.Activity {
		total += w.Count
	}
	assert.Equal(t, 10, total)
}

func TestBuildAnalytics_Empty(t *testing.T) {
	got := BuildAnalytics(nil, baseTime)

	assert.Zero(t, got.TotalApplications)
	assert.Empty(t, got.StageDistribution)
	assert.NotNil(t, got.Positions)
	assert.NotNil(t, got.Companies)
	assert.Zero(t, got.ResponseTimes.SameDayPercent)
	require.Len(t, got.Activity, activityWeeks)
	assert.Zero(t, got.Activity[0].Count)
}

func TestBuildAnalytics_KeepsBusiestCompanies(t *testing.T) {
	var jobs []JobWithDetails
	for i := 0; i < topCompanies+2; i++ {
		name := string(rune('A' + i))
		jobs = append(jobs, analyticsJob(name, name, "Engineer", "applied", nil))
	}
	jobs = append(jobs, analyticsJob("extra", "L", "Engineer", "applied", nil))

	got := BuildAnalytics(jobs, baseTime)
	require.Len(t, got.Companies, topCompanies)
	assert.Equal(t, "L", got.Companies[0].Name)
	assert.Equal(t, 2, got.Companies[0].Total)
}
