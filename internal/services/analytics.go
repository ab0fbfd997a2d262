package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/justsurfingit/jobsync/internal/models"
)

const (
	activityWeeks  = 12
	topCompanies   = 10
	dayKeyLayout   = "2006-01-02"
	responseOneDay = 24 * time.Hour
)

// OutcomeCounts tallies applications by where they stand now.
type OutcomeCounts struct {
	Total      int `json:"total"`
	Interviews int `json:"interviews"`
	Offers     int `json:"offers"`
	Rejections int `json:"rejections"`
}

func (o *OutcomeCounts) add(stage models.Stage) {
	o.Total++
	switch {
	case isInterview(stage):
		o.Interviews++
	case stage == models.StageOffer:
		o.Offers++
	case stage == models.StageRejected:
		o.Rejections++
	}
}

type Funnel struct {
	Applied   int `json:"applied"`
	Screening int `json:"screening"`
	Interview int `json:"interview"`
	Offer     int `json:"offer"`
	Rejected  int `json:"rejected"`
}

// ResponseTimes buckets the gap between applying and the first email after it.
type ResponseTimes struct {
	SameDay           int     `json:"sameDay"`
	WithinWeek        int     `json:"withinWeek"`
	OverWeek          int     `json:"overWeek"`
	Total             int     `json:"total"`
	SameDayPercent    float64 `json:"sameDayPercent"`
	WithinWeekPercent float64 `json:"withinWeekPercent"`
	OverWeekPercent   float64 `json:"overWeekPercent"`
}

type NamedCounts struct {
	Name string `json:"name"`
	OutcomeCounts
}

// WeekActivity counts applications and emails in the seven days from Start.
type WeekActivity struct {
	Start string `json:"start"`
	Count int    `json:"count"`
}

type Analytics struct {
	TotalApplications int            `json:"totalApplications"`
	StageDistribution map[string]int `json:"stageDistribution"`
	Funnel            Funnel         `json:"funnel"`
	ResponseTimes     ResponseTimes  `json:"responseTimes"`
	Positions         []NamedCounts  `json:"positions"`
	Companies         []NamedCounts  `json:"companies"`
	Activity          []WeekActivity `json:"activity"`
}

// BuildAnalytics summarizes a user's live jobs. Companies are grouped the way
// the dashboard groups them and only the busiest ones are kept.
func BuildAnalytics(jobs []JobWithDetails, now time.Time) Analytics {
	out := Analytics{
		StageDistribution: map[string]int{},
		Positions:         []NamedCounts{},
		Companies:         []NamedCounts{},
	}

	positions := map[string]*NamedCounts{}
	var positionOrder []string
	companies := map[string]*NamedCounts{}
	var companyOrder []string
	daily := map[string]int{}

	for _, job := range jobs {
		stage := models.CanonicalStage(job.CurrentStage)
		out.TotalApplications++
		out.StageDistribution[string(stage)]++
		out.Funnel.add(stage)

		if title := strings.TrimSpace(job.JobTitle); title != "" {
			pc, ok := positions[title]
			if !ok {
				pc = &NamedCounts{Name: title}
				positions[title] = pc
				positionOrder = append(positionOrder, title)
			}
			pc.add(stage)
		}

		slug := CompanySlug(job.Company)
		cc, ok := companies[slug]
		if !ok {
			cc = &NamedCounts{Name: strings.TrimSpace(job.Company)}
			companies[slug] = cc
			companyOrder = append(companyOrder, slug)
		}
		cc.add(stage)

		out.ResponseTimes.add(job)

		if job.AppliedDate != nil {
			daily[job.AppliedDate.UTC().Format(dayKeyLayout)]++
		}
		for _, d := range job.Details {
			if d.UpdateTime != nil {
				daily[d.UpdateTime.UTC().Format(dayKeyLayout)]++
			}
		}
	}

	for _, k := range positionOrder {
		out.Positions = append(out.Positions, *positions[k])
	}
	sortByTotal(out.Positions)
	for _, k := range companyOrder {
		out.Companies = append(out.Companies, *companies[k])
	}
	sortByTotal(out.Companies)
	if len(out.Companies) > topCompanies {
		out.Companies = out.Companies[:topCompanies]
	}

	out.ResponseTimes.finish()
	out.Activity = weeklyActivity(daily, now)
	return out
}

func (f *Funnel) add(stage models.Stage) {
	switch {
	case stage == models.StageApplied:
		f.Applied++
	case stage == models.StageScreening:
		f.Screening++
	case isInterview(stage):
		f.Interview++
	case stage == models.StageOffer:
		f.Offer++
	case stage == models.StageRejected:
		f.Rejected++
	}
}

// add records the first email dated after the job's application, if any.
func (r *ResponseTimes) add(job JobWithDetails) {
	if job.AppliedDate == nil {
		return
	}
	applied := *job.AppliedDate
	var first *time.Time
	for _, d := range job.Details {
		if d.UpdateTime == nil || !d.UpdateTime.After(applied) {
			continue
		}
		if first == nil || d.UpdateTime.Before(*first) {
			first = d.UpdateTime
		}
	}
	if first == nil {
		return
	}

	days := int(first.Sub(applied) / responseOneDay)
	switch {
	case days == 0:
		r.SameDay++
	case days <= 7:
		r.WithinWeek++
	default:
		r.OverWeek++
	}
	r.Total++
}

func (r *ResponseTimes) finish() {
	if r.Total == 0 {
		return
	}
	r.SameDayPercent = percent(r.SameDay, r.Total)
	r.WithinWeekPercent = percent(r.WithinWeek, r.Total)
	r.OverWeekPercent = percent(r.OverWeek, r.Total)
}

// weeklyActivity folds per-day counts into the last activityWeeks weeks,
// oldest first. The newest week ends today.
func weeklyActivity(daily map[string]int, now time.Time) []WeekActivity {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]WeekActivity, 0, activityWeeks)
	for w := activityWeeks - 1; w >= 0; w-- {
		start := today.AddDate(0, 0, -(w*7 + 6))
		week := WeekActivity{Start: start.Format(dayKeyLayout)}
		for d := 0; d < 7; d++ {
			week.Count += daily[start.AddDate(0, 0, d).Format(dayKeyLayout)]
		}
		out = append(out, week)
	}
	return out
}

func isInterview(stage models.Stage) bool {
	i := stage.Index()
	return i >= models.StageInterview1.Index() && i <= models.StageInterview6.Index()
}

func sortByTotal(rows []NamedCounts) {
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Total > rows[b].Total })
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}
