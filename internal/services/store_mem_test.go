package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/justsurfingit/jobsync/internal/database"
	"github.com/justsurfingit/jobsync/internal/models"
)

var errInjected = errors.New("injected store failure")

// memStore is an in-memory Store. It counts writes and can fail the n-th one.
type memStore struct {
	mu      sync.Mutex
	jobs    map[string]models.Job
	details map[string]models.JobDetail
	emails  map[string]models.InboundEmail
	users   map[string]models.User
	seq     int

	writes int
	failAt int // 1-based index of the write to fail; 0 never fails

	// cancel is called once write number cancelAt has been applied.
	cancelAt int
	cancel   context.CancelFunc
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		jobs:    map[string]models.Job{},
		details: map[string]models.JobDetail{},
		emails:  map[string]models.InboundEmail{},
		users:   map[string]models.User{},
	}
}

// write must be called with mu held. Like a real driver it refuses to start
// a write on a cancelled context.
func (m *memStore) write(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.writes++
	if m.failAt > 0 && m.writes == m.failAt {
		return errInjected
	}
	if m.cancel != nil && m.writes == m.cancelAt {
		m.cancel()
	}
	return nil
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq)
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// --- seeding helpers, no write accounting ---

func (m *memStore) putJob(j models.Job) {
	j.Normalize()
	m.jobs[j.ID] = j
}

func (m *memStore) putDetail(d models.JobDetail) {
	m.details[d.ID] = d
}

func (m *memStore) putUser(u models.User) {
	m.users[u.ID] = u
}

func (m *memStore) job(id string) models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func (m *memStore) detailsOf(jobID string) []models.JobDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobDetail
	for _, d := range m.details {
		if d.JobID == jobID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- jobs ---

func (m *memStore) ListJobsByTrackingCode(_ context.Context, code string) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Job
	for _, j := range m.jobs {
		if strings.EqualFold(j.TrackingCode, strings.TrimSpace(code)) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		ta, tb := timeOrZero(out[a].LastUpdated), timeOrZero(out[b].LastUpdated)
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (m *memStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &j, nil
}

func (m *memStore) CreateJob(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	if job.ID == "" {
		job.ID = m.nextID("job")
	}
	job.Normalize()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memStore) UpdateJob(ctx context.Context, id string, fields database.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	j, ok := m.jobs[id]
	if !ok {
		return database.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case database.ColCompany:
			j.Company = v.(string)
		case database.ColJobTitle:
			j.JobTitle = v.(string)
		case database.ColCurrentStage:
			j.CurrentStage = v.(string)
		case database.ColSalary:
			j.Salary = optString(v)
		case database.ColLocation:
			j.Location = optString(v)
		case database.ColContact:
			j.Contact = optString(v)
		case database.ColNotes:
			j.Notes = optString(v)
		case database.ColLastUpdated:
			t := v.(time.Time)
			j.LastUpdated = &t
		case database.ColUpdateTime:
			t := v.(time.Time)
			j.UpdateTime = &t
		case database.ColEmailIDs:
			j.EmailIDs = append(models.StringArray{}, v.(models.StringArray)...)
		case database.ColMergedInto:
			s := v.(string)
			j.MergedInto = &s
		case database.ColMergedAt:
			t := v.(time.Time)
			j.MergedAt = &t
		case database.ColTrackingCode:
			j.TrackingCode = v.(string)
		default:
			return fmt.Errorf("memStore: unknown job column %q", col)
		}
	}
	m.jobs[id] = j
	return nil
}

func (m *memStore) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	delete(m.jobs, id)
	return nil
}

// --- job_details ---

func (m *memStore) ListJobDetails(_ context.Context, jobID string) ([]models.JobDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobDetail
	for _, d := range m.details {
		if d.JobID == jobID {
			d.Normalize()
			out = append(out, d)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		ta, tb := timeOrZero(out[a].UpdateTime), timeOrZero(out[b].UpdateTime)
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (m *memStore) GetJobDetail(_ context.Context, id string) (*models.JobDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &d, nil
}

func (m *memStore) CreateJobDetail(ctx context.Context, d *models.JobDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = m.nextID("detail")
	}
	m.details[d.ID] = *d
	return nil
}

func (m *memStore) UpdateJobDetail(ctx context.Context, id string, fields database.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	d, ok := m.details[id]
	if !ok {
		return database.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case database.ColJobID:
			d.JobID = v.(string)
		case database.ColStage:
			d.Stage = v.(string)
		case database.ColUpdateTime:
			t := v.(time.Time)
			d.UpdateTime = &t
		case database.ColTrackingCode:
			d.TrackingCode = v.(string)
		default:
			return fmt.Errorf("memStore: unknown detail column %q", col)
		}
	}
	m.details[id] = d
	return nil
}

func (m *memStore) DeleteJobDetail(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	delete(m.details, id)
	return nil
}

// --- mailin ---

func (m *memStore) GetEmail(_ context.Context, id string) (*models.InboundEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &e, nil
}

func (m *memStore) CreateEmail(ctx context.Context, e *models.InboundEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = m.nextID("mail")
	}
	m.emails[e.ID] = *e
	return nil
}

func (m *memStore) UpdateEmail(ctx context.Context, id string, fields database.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	e, ok := m.emails[id]
	if !ok {
		return database.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case database.ColProcessed:
			e.Processed = v.(bool)
		case database.ColProcessingStatus:
			e.ProcessingStatus = v.(string)
		case database.ColProcessingError:
			e.ProcessingError = v.(string)
		case database.ColJobID:
			e.JobID = v.(string)
		case database.ColUpdateTime:
			t := v.(time.Time)
			e.UpdateTime = &t
		case database.ColTrackingCode:
			e.TrackingCode = v.(string)
		default:
			return fmt.Errorf("memStore: unknown email column %q", col)
		}
	}
	m.emails[id] = e
	return nil
}

func (m *memStore) DeleteEmail(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	delete(m.emails, id)
	return nil
}

func (m *memStore) CountEmailsSince(_ context.Context, forwarder string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.emails {
		if e.ForwarderEmail == forwarder && !timeOrZero(e.UpdateTime).Before(since) {
			n++
		}
	}
	return n, nil
}

// --- users ---

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) GetUserByUID(_ context.Context, uid string) (*models.User, error) {
	return m.findUser(func(u models.User) bool { return u.UID == uid })
}

func (m *memStore) GetUserByEmailCode(_ context.Context, code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return m.findUser(func(u models.User) bool { return u.EmailCode == code })
}

func (m *memStore) GetUserByClaimedCode(_ context.Context, code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return m.findUser(func(u models.User) bool {
		return u.EmailCode == code || (u.PendingEmailCode != nil && *u.PendingEmailCode == code)
	})
}

func (m *memStore) findUser(match func(models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = m.nextID("user")
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) UpdateUser(ctx context.Context, id string, fields database.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(ctx); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case database.ColDisplayName:
			u.DisplayName = v.(string)
		case database.ColEmailCode:
			u.EmailCode = v.(string)
		case database.ColForwardingEmail:
			u.ForwardingEmail = v.(string)
		case database.ColPendingEmailCode:
			u.PendingEmailCode = optString(v)
		case database.ColJobCount:
			u.JobCount = v.(int)
		case database.ColEmailCount:
			u.EmailCount = v.(int)
		default:
			return fmt.Errorf("memStore: unknown user column %q", col)
		}
	}
	m.users[id] = u
	return nil
}

func optString(v interface{}) *string {
	switch s := v.(type) {
	case *string:
		if s == nil {
			return nil
		}
		c := *s
		return &c
	case string:
		return &s
	}
	return nil
}
