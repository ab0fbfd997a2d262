package services

import (
	"sort"
	"strings"
	"time"

	"github.com/justsurfingit/jobsync/internal/models"
)

// TimelineEmail is one email shown under a stage.
type TimelineEmail struct {
	ID      string `json:"id"`
	EmailID string `json:"emailId"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Date    string `json:"date"`
}

// StageNode is one stage of a job's timeline.
type StageNode struct {
	Stage     models.Stage    `json:"stage"`
	Completed bool            `json:"completed"`
	Rejected  bool            `json:"rejected"`
	Current   bool            `json:"current"`
	Date      string          `json:"date"`
	Notes     string          `json:"notes"`
	Emails    []TimelineEmail `json:"emails"`
}

// Timeline holds only the stages a job actually has emails for.
type Timeline map[models.Stage]*StageNode

// Ordered returns the nodes in pipeline order.
func (t Timeline) Ordered() []*StageNode {
	out := make([]*StageNode, 0, len(t))
	for _, st := range models.StageOrder {
		if n, ok := t[st]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Current returns the node marked current, if any.
func (t Timeline) Current() *StageNode {
	for _, n := range t.Ordered() {
		if n.Current {
			return n
		}
	}
	return nil
}

// BuildTimeline turns a job's details into its stage timeline. It never
// fails: bad timestamps become placeholder strings.
func BuildTimeline(currentStage string, details []models.JobDetail) Timeline {
	stages := make(Timeline)

	if len(details) == 0 {
		stages[models.StageApplied] = &StageNode{
			Stage:   models.StageApplied,
			Current: true,
			Notes:   "Application submitted",
			Emails:  []TimelineEmail{},
		}
		return stages
	}

	sorted := make([]models.JobDetail, len(details))
	copy(sorted, details)
	sort.SliceStable(sorted, func(i, j int) bool {
		return timeOrZero(sorted[i].UpdateTime).Before(timeOrZero(sorted[j].UpdateTime))
	})

	groups := make(map[models.Stage][]TimelineEmail)
	for _, d := range sorted {
		st := models.CanonicalStage(d.Stage)
		groups[st] = append(groups[st], TimelineEmail{
			ID:      d.ID,
			EmailID: d.EmailID,
			From:    orDefault(d.Sender, "Unknown"),
			Subject: orDefault(d.Subject, "No subject"),
			Body:    orDefault(d.ContentSummary, "No content"),
			Date:    displayDate(d),
		})
	}

	current := models.CanonicalStage(currentStage)

	for _, st := range models.StageOrder {
		emails := groups[st]
		if len(emails) == 0 {
			continue
		}
		isRejected := st == models.StageRejected
		isCurrent := st == current
		stages[st] = &StageNode{
			Stage:     st,
			Completed: !isCurrent && !isRejected,
			Rejected:  isRejected,
			Current:   isCurrent,
			Date:      emails[0].Date,
			Emails:    emails,
		}
	}

	// Positional pass: history before the current stage is complete.
	present := stages.Ordered()
	idx := -1
	for i, n := range present {
		if n.Stage == current {
			idx = i
			break
		}
	}
	if idx > 0 && current != models.StageRejected {
		for _, n := range present[:idx] {
			n.Completed = true
			n.Current = false
		}
	}
	if n, ok := stages[current]; ok {
		n.Current = true
		n.Completed = false
	}

	return stages
}

func displayDate(d models.JobDetail) string {
	if s := strings.TrimSpace(d.SentDate); s != "" {
		return s
	}
	return formatDate(d.UpdateTime)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
