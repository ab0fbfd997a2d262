package services

import (
	"context"
	"time"

	"github.com/justsurfingit/jobsync/internal/database"
	"github.com/justsurfingit/jobsync/internal/models"
)

type JobStore interface {
	ListJobsByTrackingCode(ctx context.Context, code string) ([]models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, id string, fields database.Fields) error
	DeleteJob(ctx context.Context, id string) error
}

type DetailStore interface {
	ListJobDetails(ctx context.Context, jobID string) ([]models.JobDetail, error)
	GetJobDetail(ctx context.Context, id string) (*models.JobDetail, error)
	CreateJobDetail(ctx context.Context, detail *models.JobDetail) error
	UpdateJobDetail(ctx context.Context, id string, fields database.Fields) error
	DeleteJobDetail(ctx context.Context, id string) error
}

type EmailStore interface {
	GetEmail(ctx context.Context, id string) (*models.InboundEmail, error)
	CreateEmail(ctx context.Context, email *models.InboundEmail) error
	UpdateEmail(ctx context.Context, id string, fields database.Fields) error
	DeleteEmail(ctx context.Context, id string) error
	CountEmailsSince(ctx context.Context, forwarder string, since time.Time) (int64, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	GetUserByEmailCode(ctx context.Context, code string) (*models.User, error)
	GetUserByClaimedCode(ctx context.Context, code string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id string, fields database.Fields) error
}

// Store is the full document store surface the services run against.
type Store interface {
	JobStore
	DetailStore
	EmailStore
	UserStore
}

var _ Store = (*database.Gateway)(nil)
