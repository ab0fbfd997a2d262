package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/justsurfingit/jobsync/internal/database"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/models"
)

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	generatedCodeLen   = 6
	maxCodeAttempts    = 10
	maxDisplayNameLen  = 50
	defaultPlan        = "free"
	defaultDisplayName = "User"
)

var emailCodePattern = regexp.MustCompile(`^[A-Z0-9]{6,10}$`)

// Identity is what the identity provider tells us about a signed-in person.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type UserService struct {
	Store  Store
	Log    *logger.Logger
	Domain string
}

func NewUserService(store Store, log *logger.Logger, domain string) *UserService {
	return &UserService{
		Store:  store,
		Log:    log.WithField(logger.FieldComponent, "users"),
		Domain: domain,
	}
}

// EnsureUser returns the account for a verified identity, registering it on
// first sign-in.
func (s *UserService) EnsureUser(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.Store.GetUserByUID(ctx, id.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.Register(ctx, id)
}

// Register creates an account with a freshly generated forwarding code.
func (s *UserService) Register(ctx context.Context, id Identity) (*models.User, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return nil, invalid("uid", "cannot be empty")
	}
	code, err := s.GenerateUniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = defaultDisplayName
		if at := strings.Index(id.Email, "@"); at > 0 {
			name = id.Email[:at]
		}
	}

	user := &models.User{
		UID:             id.Subject,
		DisplayName:     name,
		Email:           id.Email,
		EmailCode:       code,
		ForwardingEmail: ForwardingAddress(code, s.Domain),
		Plan:            defaultPlan,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.Log.WithFields(logger.Fields{"user_id": user.ID, logger.FieldTrackingCode: code}).Info("user registered")
	return user, nil
}

// GenerateUniqueCode draws random codes until one is unused. After
// maxCodeAttempts collisions the last draw is returned and the unique index
// has the final word.
func (s *UserService) GenerateUniqueCode(ctx context.Context) (string, error) {
	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		var err error
		if code, err = randomCode(generatedCodeLen); err != nil {
			return "", err
		}
		ok, err := s.codeAvailable(ctx, "", code)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
		s.Log.WithField("attempt", attempt+1).Debug("email code collision")
	}
	s.Log.Warn("could not verify unique email code, proceeding anyway")
	return code, nil
}

// GetByTrackingCode finds the owner of a forwarding code.
func (s *UserService) GetByTrackingCode(ctx context.Context, code string) (*models.User, error) {
	user, err := s.Store.GetUserByEmailCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("user with code", code)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateDisplayName(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("displayName", "cannot be empty")
	}
	if len([]rune(name)) > maxDisplayNameLen {
		return invalid("displayName", fmt.Sprintf("must be %d characters or less", maxDisplayNameLen))
	}
	if err := s.Store.UpdateUser(ctx, userID, database.Fields{database.ColDisplayName: name}); err != nil {
		return fmt.Errorf("update user %s: %w", userID, err)
	}
	return nil
}

// UpdateEmailCode changes the user's forwarding code. The new code is first
// claimed on the user as pending, then jobs, details and stored emails filed
// under the old code move to it, and the user document is written last. A
// move left unfinished by an earlier failure is completed before a new code
// is taken.
func (s *UserService) UpdateEmailCode(ctx context.Context, user *models.User, raw string) (*models.User, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !emailCodePattern.MatchString(code) {
		return nil, invalid("emailCode", "must be 6 to 10 letters or digits")
	}

	if user.HasPendingCode() {
		var err error
		if user, err = s.finishCodeChange(ctx, user, *user.PendingEmailCode); err != nil {
			return nil, err
		}
	}
	if code == user.EmailCode {
		return user, nil
	}

	ok, err := s.codeAvailable(ctx, user.ID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCodeTaken
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.Store.UpdateUser(ctx, user.ID, database.Fields{database.ColPendingEmailCode: code}); err != nil {
		return nil, fmt.Errorf("claim email code: %w", err)
	}
	return s.finishCodeChange(ctx, user, code)
}

// finishCodeChange moves everything filed under the user's current code to
// the claimed code and then makes it the user's code.
func (s *UserService) finishCodeChange(ctx context.Context, user *models.User, code string) (*models.User, error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.rekeyJobs(ctx, user.EmailCode, code); err != nil {
		return nil, err
	}

	forwarding := ForwardingAddress(code, s.Domain)
	err := s.Store.UpdateUser(ctx, user.ID, database.Fields{
		database.ColEmailCode:        code,
		database.ColForwardingEmail:  forwarding,
		database.ColPendingEmailCode: nil,
	})
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", user.ID, err)
	}

	s.Log.WithFields(logger.Fields{"user_id": user.ID, "old": user.EmailCode, "new": code}).Info("email code changed")
	updated := *user
	updated.EmailCode = code
	updated.ForwardingEmail = forwarding
	updated.PendingEmailCode = nil
	return &updated, nil
}

// codeAvailable reports whether userID may take code: no other user holds or
// has claimed it, and no job of another user is filed under it.
func (s *UserService) codeAvailable(ctx context.Context, userID, code string) (bool, error) {
	holder, err := s.Store.GetUserByClaimedCode(ctx, code)
	switch {
	case err == nil:
		if holder.ID != userID {
			return false, nil
		}
	case !errors.Is(err, database.ErrNotFound):
		return false, fmt.Errorf("check email code: %w", err)
	}

	jobs, err := s.Store.ListJobsByTrackingCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("list jobs for code: %w", err)
	}
	for _, job := range jobs {
		if job.UserID != userID {
			return false, nil
		}
	}
	return true, nil
}

// rekeyJobs files every job of oldCode, with its children, under newCode.
func (s *UserService) rekeyJobs(ctx context.Context, oldCode, newCode string) error {
	jobs, err := s.Store.ListJobsByTrackingCode(ctx, oldCode)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	rekey := database.Fields{database.ColTrackingCode: newCode}

	for _, job := range jobs {
		details, err := s.Store.ListJobDetails(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("list details for job %s: %w", job.ID, err)
		}
		if err := fanOut(details, func(d models.JobDetail) error {
			return s.Store.UpdateJobDetail(ctx, d.ID, rekey)
		}); err != nil {
			return fmt.Errorf("rekey details of job %s: %w", job.ID, err)
		}
		if err := fanOut([]string(job.EmailIDs), func(id string) error {
			err := s.Store.UpdateEmail(ctx, id, rekey)
			if errors.Is(err, database.ErrNotFound) {
				return nil
			}
			return err
		}); err != nil {
			return fmt.Errorf("rekey emails of job %s: %w", job.ID, err)
		}
		if err := s.Store.UpdateJob(ctx, job.ID, rekey); err != nil {
			return fmt.Errorf("rekey job %s: %w", job.ID, err)
		}
	}
	return nil
}

// RefreshCounters recomputes the job and email totals shown on the profile.
func (s *UserService) RefreshCounters(ctx context.Context, user *models.User) error {
	jobs, err := s.Store.ListJobsByTrackingCode(ctx, user.EmailCode)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	jobCount, emailCount := 0, 0
	for _, job := range jobs {
		if job.IsMerged() {
			continue
		}
		jobCount++
		emailCount += len(job.EmailIDs)
	}
	if jobCount == user.JobCount && emailCount == user.EmailCount {
		return nil
	}
	err = s.Store.UpdateUser(ctx, user.ID, database.Fields{
		database.ColJobCount:   jobCount,
		database.ColEmailCount: emailCount,
	})
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	return nil
}

// ForwardingAddress is the address a user forwards job emails to.
func ForwardingAddress(code, domain string) string {
	return code + "@" + domain
}

func randomCode(n int) (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate email code: %w", err)
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
