package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/models"
)

func newJobService(store Store) *JobService {
	svc := NewJobService(store, logger.Discard())
	svc.now = func() time.Time { return baseTime.AddDate(0, 0, 20) }
	return svc
}

func ptr(s string) *string { return &s }

func TestListJobs_SkipsMergedJobs(t *testing.T) {
	store := newMemStore()
	seedJob(store, "live", "Acme", "Engineer", day(2))
	seedJob(store, "gone", "Acme", "Engineer", day(1))
	into := "live"
	gone := store.jobs["gone"]
	gone.MergedInto = &into
	store.jobs["gone"] = gone
	seedDetail(store, "d1", "live", "applied", day(2))

	jobs, err := newJobService(store).ListJobs(context.Background(), strings.ToLower(testCode))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "live", jobs[0].ID)
	assert.Len(t, jobs[0].Details, 1)
}

func TestTimeline_ChecksOwnership(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))
	svc := newJobService(store)

	_, err := svc.Timeline(context.Background(), "j1", "OTHER1")
	assert.True(t, errors.Is(err, ErrNotFound))

	tl, err := svc.Timeline(context.Background(), "j1", testCode)
	require.NoError(t, err)
	assert.Contains(t, tl, models.StageApplied)
}

func TestUpdateJob_StageChangeCascadesToDetails(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))
	seedDetail(store, "d1", "j1", "applied", day(1))
	seedDetail(store, "d2", "j1", "screening", day(2))
	svc := newJobService(store)

	err := svc.UpdateJob(context.Background(), "j1", testCode, JobUpdate{
		CurrentStage: ptr("Interview"),
		Salary:       ptr(" 100k "),
		Location:     ptr(""),
	})
	require.NoError(t, err)

	job := store.job("j1")
	assert.Equal(t, "interview1", job.CurrentStage)
	require.NotNil(t, job.Salary)
	assert.Equal(t, "100k", *job.Salary)
	assert.Nil(t, job.Location)
	for _, d := range store.detailsOf("j1") {
		assert.Equal(t, "interview1", d.Stage)
	}
}

func TestUpdateJob_RejectsBadInput(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))
	svc := newJobService(store)
	ctx := context.Background()

	var verr *ValidationError
	err := svc.UpdateJob(ctx, "j1", testCode, JobUpdate{CurrentStage: ptr("hired")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stage", verr.Field)

	err = svc.UpdateJob(ctx, "j1", testCode, JobUpdate{Company: ptr("   ")})
	require.ErrorAs(t, err, &verr)

	err = svc.UpdateJob(ctx, "j1", testCode, JobUpdate{JobTitle: ptr(strings.Repeat("x", 201))})
	require.ErrorAs(t, err, &verr)

	assert.Zero(t, store.writeCount())
}

func TestUpdateJob_DetailFailureLeavesJobUntouched(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))
	seedDetail(store, "d1", "j1", "applied", day(1))
	store.failAt = 1

	err := newJobService(store).UpdateJob(context.Background(), "j1", testCode, JobUpdate{CurrentStage: ptr("offer")})
	require.Error(t, err)
	assert.Equal(t, "applied", store.job("j1").CurrentStage)
	assert.Equal(t, 1, store.writeCount())
}

func TestAddManualJob(t *testing.T) {
	store := newMemStore()
	user := &models.User{ID: "u1", EmailCode: testCode}
	svc := newJobService(store)

	job, err := svc.AddManualJob(context.Background(), user, ManualJob{
		Company:  " Acme ",
		JobTitle: "Engineer",
		Salary:   "120k",
		Notes:    "referral",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	saved := store.job(job.ID)
	assert.Equal(t, "Acme", saved.Company)
	assert.Equal(t, "applied", saved.CurrentStage)
	assert.Equal(t, testCode, saved.TrackingCode)
	assert.Equal(t, "u1", saved.UserID)
	require.NotNil(t, saved.Notes)
	assert.Equal(t, "referral", *saved.Notes)
	assert.Nil(t, saved.Contact)
	assert.NotNil(t, saved.AppliedDate)

	_, err = svc.AddManualJob(context.Background(), user, ManualJob{Company: "Acme"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "jobTitle", verr.Field)

	_, err = svc.AddManualJob(context.Background(), user, ManualJob{Company: "Acme", JobTitle: "PM", CurrentStage: "hired"})
	require.ErrorAs(t, err, &verr)
}

func TestUpdateJobStage(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))
	seedDetail(store, "d1", "j1", "applied", day(1))
	svc := newJobService(store)

	require.NoError(t, svc.UpdateJobStage(context.Background(), "j1", testCode, "offer", "call Friday"))

	job := store.job("j1")
	assert.Equal(t, "offer", job.CurrentStage)
	require.NotNil(t, job.Notes)
	assert.Equal(t, "call Friday", *job.Notes)
	assert.Equal(t, "applied", store.detailsOf("j1")[0].Stage)
}

func TestUpdateEmailStage_RecomputesFromLatestDetail(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))
	seedJob(store, "j2", "Globex", "PM", day(1))
	seedDetail(store, "d1", "j1", "applied", day(1))
	seedDetail(store, "d2", "j1", "screening", day(2))
	seedDetail(store, "other", "j2", "applied", day(1))
	svc := newJobService(store)
	ctx := context.Background()

	// d1 becomes the most recently updated detail.
	require.NoError(t, svc.UpdateEmailStage(ctx, "d1", "j1", testCode, "interview2"))
	assert.Equal(t, "interview2", store.job("j1").CurrentStage)

	err := svc.UpdateEmailStage(ctx, "other", "j1", testCode, "offer")
	assert.True(t, errors.Is(err, ErrNotFound))
	err = svc.UpdateEmailStage(ctx, "missing", "j1", testCode, "offer")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecomputeCurrentStage_NoDetailsIsNoop(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))

	require.NoError(t, newJobService(store).RecomputeCurrentStage(context.Background(), "j1"))
	assert.Zero(t, store.writeCount())
}

func TestDeleteJob_Cascades(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1), "m1", "m2")
	seedDetail(store, "d1", "j1", "applied", day(1))
	seedDetail(store, "d2", "j1", "screening", day(2))
	store.emails["m1"] = models.InboundEmail{ID: "m1", TrackingCode: testCode}
	store.emails["m2"] = models.InboundEmail{ID: "m2", TrackingCode: testCode}
	svc := newJobService(store)

	res, err := svc.DeleteJob(context.Background(), "j1", testCode)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedDetails)
	assert.Equal(t, 2, res.DeletedEmails)

	assert.Empty(t, store.detailsOf("j1"))
	assert.Empty(t, store.emails)
	_, err = store.GetJob(context.Background(), "j1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteJob_ForeignOwner(t *testing.T) {
	store := newMemStore()
	seedJob(store, "j1", "Acme", "Engineer", day(1))

	_, err := newJobService(store).DeleteJob(context.Background(), "j1", "OTHER1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, store.writeCount())
}

func TestEmailContent(t *testing.T) {
	store := newMemStore()
	store.emails["m1"] = models.InboundEmail{ID: "m1", TrackingCode: testCode, Subject: "Hi"}
	svc := newJobService(store)

	email, err := svc.EmailContent(context.Background(), "m1", testCode)
	require.NoError(t, err)
	assert.Equal(t, "Hi", email.Subject)

	_, err = svc.EmailContent(context.Background(), "m1", "OTHER1")
	assert.True(t, errors.Is(err, ErrNotFound))
}
