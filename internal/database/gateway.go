package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobsync/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Fields is a field-level update keyed by column name.
type Fields map[string]interface{}

// Column names used in field-level updates.
const (
	ColCompany      = "company"
	ColJobTitle     = "job_title"
	ColCurrentStage = "current_stage"
	ColSalary       = "salary"
	ColLocation     = "location"
	ColContact      = "contact"
	ColNotes        = "notes"
	ColLastUpdated  = "last_updated"
	ColUpdateTime   = "update_time"
	ColEmailIDs     = "email_ids"
	ColMergedInto   = "merged_into"
	ColMergedAt     = "merged_at"
	ColTrackingCode = "tracking_code"

	ColJobID = "job_id"
	ColStage = "stage"

	ColProcessed        = "processed"
	ColProcessingStatus = "processing_status"
	ColProcessingError  = "processing_error"

	ColDisplayName      = "display_name"
	ColEmailCode        = "email_code"
	ColForwardingEmail  = "forwarding_email"
	ColPendingEmailCode = "pending_email_code"
	ColJobCount         = "job_count"
	ColEmailCount       = "email_count"
)

// Gateway is the document store: every method reads or writes exactly one
// collection and every write touches exactly one document.
type Gateway struct {
	db *gorm.DB
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// --- jobs ---

// ListJobsByTrackingCode returns every job owned by code, merged ones included,
// most recently updated first.
func (g *Gateway) ListJobsByTrackingCode(ctx context.Context, code string) ([]models.Job, error) {
	var jobs []models.Job
	err := g.db.WithContext(ctx).
		Where("tracking_code = ?", normalizeCode(code)).
		Order("last_updated DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].Normalize()
	}
	return jobs, nil
}

func (g *Gateway) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := g.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	job.Normalize()
	return &job, nil
}

func (g *Gateway) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = newID()
	}
	job.Normalize()
	return g.db.WithContext(ctx).Create(job).Error
}

func (g *Gateway) UpdateJob(ctx context.Context, id string, fields Fields) error {
	return g.update(ctx, &models.Job{}, id, fields)
}

func (g *Gateway) DeleteJob(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Delete(&models.Job{}, "id = ?", id).Error
}

// --- job_details ---

// ListJobDetails returns a job's timeline entries, oldest update first.
func (g *Gateway) ListJobDetails(ctx context.Context, jobID string) ([]models.JobDetail, error) {
	var details []models.JobDetail
	err := g.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("update_time ASC").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Normalize()
	}
	return details, nil
}

func (g *Gateway) GetJobDetail(ctx context.Context, id string) (*models.JobDetail, error) {
	var detail models.JobDetail
	if err := g.db.WithContext(ctx).First(&detail, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	detail.Normalize()
	return &detail, nil
}

func (g *Gateway) CreateJobDetail(ctx context.Context, detail *models.JobDetail) error {
	if detail.ID == "" {
		detail.ID = newID()
	}
	detail.Normalize()
	return g.db.WithContext(ctx).Create(detail).Error
}

func (g *Gateway) UpdateJobDetail(ctx context.Context, id string, fields Fields) error {
	return g.update(ctx, &models.JobDetail{}, id, fields)
}

func (g *Gateway) DeleteJobDetail(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Delete(&models.JobDetail{}, "id = ?", id).Error
}

// --- mailin ---

func (g *Gateway) GetEmail(ctx context.Context, id string) (*models.InboundEmail, error) {
	var email models.InboundEmail
	if err := g.db.WithContext(ctx).First(&email, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &email, nil
}

func (g *Gateway) CreateEmail(ctx context.Context, email *models.InboundEmail) error {
	if email.ID == "" {
		email.ID = newID()
	}
	return g.db.WithContext(ctx).Create(email).Error
}

func (g *Gateway) UpdateEmail(ctx context.Context, id string, fields Fields) error {
	return g.update(ctx, &models.InboundEmail{}, id, fields)
}

func (g *Gateway) DeleteEmail(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Delete(&models.InboundEmail{}, "id = ?", id).Error
}

// CountEmailsSince counts mail received from forwarder after since.
func (g *Gateway) CountEmailsSince(ctx context.Context, forwarder string, since time.Time) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.InboundEmail{}).
		Where("forwarder_email = ? AND update_time >= ?", forwarder, since).
		Count(&count).Error
	return count, err
}

// --- users ---

func (g *Gateway) GetUser(ctx context.Context, id string) (*models.User, error) {
	return g.findUser(ctx, "id = ?", id)
}

func (g *Gateway) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	return g.findUser(ctx, "uid = ?", uid)
}

func (g *Gateway) GetUserByEmailCode(ctx context.Context, code string) (*models.User, error) {
	return g.findUser(ctx, "email_code = ?", normalizeCode(code))
}

// GetUserByClaimedCode finds the user that holds code or is moving to it.
func (g *Gateway) GetUserByClaimedCode(ctx context.Context, code string) (*models.User, error) {
	code = normalizeCode(code)
	return g.findUser(ctx, "email_code = ? OR pending_email_code = ?", code, code)
}

func (g *Gateway) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	user.EmailCode = normalizeCode(user.EmailCode)
	return g.db.WithContext(ctx).Create(user).Error
}

func (g *Gateway) UpdateUser(ctx context.Context, id string, fields Fields) error {
	return g.update(ctx, &models.User{}, id, fields)
}

func (g *Gateway) findUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := g.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// update applies a field-level write to one document. Missing documents fail
// instead of being created.
func (g *Gateway) update(ctx context.Context, model interface{}, id string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	res := g.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]interface{}(fields))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
