package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		QueryStudents(ctx context.Context) ([]User, error)
		QueryStudentsByGroup(ctx context.Context, groupID string) ([]User, error)
		// UpdateUser persists the profile columns (username, email, names,
		// updated_at). Password changes go through SetUserPassword.
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetUserPassword(ctx context.Context, id string, hash []byte, mustChange bool) error
	}

	ServiceInterface interface {
		CheckUsernameUniqueness(username string, excludedUsers ...User) error
		CreateStudent(ctx context.Context, ns NewStudent) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, username string) (User, error)
		QueryStudents(ctx context.Context, groupID string) ([]User, error)
		UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error)
		ResetPassword(ctx context.Context, id, password string) (User, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) CheckUsernameUniqueness(uname string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, exclUsers...); err != nil {
		if err == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return err
	}
	return nil
}

// CreateStudent provisions a student account. The student must change
// the teacher-assigned password on first login.
func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:                 uuid.New().String(),
		Username:           ns.Username,
		Email:              ns.Email,
		FirstName:          ns.FirstName,
		LastName:           ns.LastName,
		Role:               RoleStudent,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := usr.SetPassword(ns.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeEmail(usr)
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) QueryStudents(ctx context.Context, groupID string) ([]User, error) {
	if groupID != "" {
		return svc.repo.QueryStudentsByGroup(ctx, groupID)
	}
	return svc.repo.QueryStudents(ctx)
}

func (svc *service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.FirstName = up.FirstName
	usr.LastName = up.LastName
	usr.Username = up.Username
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ResetPassword sets a new password on the account and flags it so the
// owner must pick their own password on next login.
func (svc *service) ResetPassword(ctx context.Context, id, password string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	if err := svc.repo.SetUserPassword(ctx, usr.ID, usr.PasswordHash, true /* mustChange */); err != nil {
		return User{}, err
	}
	usr.MustChangePassword = true
	return usr, nil
}

func (svc *service) sendWelcomeEmail(usr User) {
	if svc.mailSvc == nil || usr.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: usr,
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYour %s account is ready. Sign in with your username %q and the password "+
				"your teacher gave you; you will be asked to change it on first login.",
			usr.FirstName, svc.conf.AppName, usr.Username,
		),
	}
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering welcome email: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(msg)
}
