package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/user"
)

var (
	// errors. Credential and token failures are deliberately
	// undifferentiated towards the caller; the precise cause is only logged.
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrIncorrectPassword    = errors.New("incorrect password")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

type (
	// RefreshToken is the server-side record of an issued refresh token.
	// A token is usable iff RevokedAt is null AND the signed token itself
	// has not expired; the two layers are enforced independently.
	RefreshToken struct {
		ID        string
		UserID    string
		Token     string
		ExpiresAt time.Time
		CreatedAt time.Time
		RevokedAt null.Time
	}

	// RefreshTokenRepository is an append-only log of issued refresh
	// tokens. Tokens are revoked, never deleted.
	RefreshTokenRepository interface {
		CreateRefreshToken(ctx context.Context, rt RefreshToken) (RefreshToken, error)
		// GetActiveRefreshToken returns the record for this token string iff
		// it has not been revoked; ErrRefreshTokenNotFound otherwise.
		// Expiry is NOT checked here, the signed token carries its own.
		GetActiveRefreshToken(ctx context.Context, token string) (RefreshToken, error)
		// RevokeRefreshToken stamps revoked_at; revoking an already-revoked
		// or unknown token is a no-op.
		RevokeRefreshToken(ctx context.Context, token string) error
	}

	// UserStore is the slice of user storage the session manager needs.
	UserStore interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
		GetUserByUsername(ctx context.Context, username string) (user.User, error)
		CreateUser(ctx context.Context, usr user.User) (user.User, error)
		SetUserPassword(ctx context.Context, id string, hash []byte, mustChange bool) error
	}

	// Session orchestrates login, refresh, logout and password change.
	Session struct {
		users   UserStore
		tokens  RefreshTokenRepository
		issuer  *Issuer
		logger  core.Logger
		nowFunc func() time.Time
	}

	// LoginResult is returned to the transport layer on successful login.
	LoginResult struct {
		AccessToken  string
		RefreshToken string
		User         user.User
	}

	// TokenPair is returned on a successful refresh rotation.
	TokenPair struct {
		AccessToken  string
		RefreshToken string
	}
)

func NewSession(users UserStore, tokens RefreshTokenRepository, issuer *Issuer, logger core.Logger) *Session {
	return &Session{
		users:   users,
		tokens:  tokens,
		issuer:  issuer,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Login authenticates a username/password pair and issues a fresh
// access+refresh token pair.
//
// "Unknown user" and "wrong password" are reported identically as
// ErrInvalidCredentials to prevent username enumeration.
//
// Bootstrap: when the user is absent and the bootstrap credentials are
// presented, a teacher account is auto-provisioned first. The operation is
// idempotent; a second bootstrap login finds the existing row.
func (s *Session) Login(ctx context.Context, username, password string) (LoginResult, error) {
	uname := core.CleanString(username, true /* lower */)

	usr, err := s.users.GetUserByUsername(ctx, uname)
	if err != nil {
		if err != user.ErrNotFound {
			return LoginResult{}, errors.Wrap(err, "finding user by username")
		}
		if !isBootstrapLogin(uname, password) {
			s.logger.Info(fmt.Sprintf("login rejected: unknown username %q", uname))
			return LoginResult{}, ErrInvalidCredentials
		}
		if usr, err = s.provisionBootstrapTeacher(ctx); err != nil {
			return LoginResult{}, err
		}
	}

	if !VerifyPassword(usr, password) {
		s.logger.Info(fmt.Sprintf("login rejected: wrong password for %q", uname), usr)
		return LoginResult{}, ErrInvalidCredentials
	}

	access, refresh, err := s.issueTokens(ctx, usr)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: access, RefreshToken: refresh, User: usr}, nil
}

// Refresh rotates a refresh token: the presented token is revoked the
// instant its replacement is issued, making it single-use. Any failure is
// reported as ErrInvalidRefreshToken and requires a full re-login.
//
// The revoke-then-insert sequence is not transactional; a crash in
// between leaves the user without a usable refresh token, which fails
// closed (re-authentication is always available). Of two concurrent
// rotations of the same token, at most one wins; the loser gets
// ErrInvalidRefreshToken.
func (s *Session) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Info("refresh rejected: bad signature or expired token")
		return TokenPair{}, ErrInvalidRefreshToken
	}

	if _, err = s.tokens.GetActiveRefreshToken(ctx, refreshToken); err != nil {
		if err != ErrRefreshTokenNotFound {
			return TokenPair{}, errors.Wrap(err, "looking up refresh token")
		}
		s.logger.Info("refresh rejected: token revoked or unknown")
		return TokenPair{}, ErrInvalidRefreshToken
	}

	usr, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if err != user.ErrNotFound {
			return TokenPair{}, errors.Wrap(err, "finding user by id")
		}
		s.logger.Info(fmt.Sprintf("refresh rejected: user %s no longer exists", claims.Subject))
		return TokenPair{}, ErrInvalidRefreshToken
	}

	if err = s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return TokenPair{}, errors.Wrap(err, "revoking refresh token")
	}

	access, refresh, err := s.issueTokens(ctx, usr)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the presented refresh token. Revoking an already-revoked
// or unknown token still reports success. Outstanding access tokens remain
// valid until they expire; they are stateless and short-lived.
func (s *Session) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return errors.Wrap(err, "revoking refresh token")
	}
	return nil
}

// ChangePassword verifies the old password (the master-credential hatch
// included) and stores a hash of the new one, clearing the
// must-change-password flag.
func (s *Session) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	usr, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if err != user.ErrNotFound {
			return errors.Wrap(err, "finding user by id")
		}
		return err
	}

	if !VerifyPassword(usr, oldPassword) {
		s.logger.Info(fmt.Sprintf("password change rejected for %q", usr.Username), usr)
		return ErrIncorrectPassword
	}

	if err = usr.SetPassword(newPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if err = s.users.SetUserPassword(ctx, usr.ID, usr.PasswordHash, false /* mustChange */); err != nil {
		return errors.Wrap(err, "storing password")
	}
	return nil
}

func (s *Session) issueTokens(ctx context.Context, usr user.User) (access, refresh string, err error) {
	if access, err = s.issuer.IssueAccess(usr); err != nil {
		return "", "", err
	}
	if refresh, err = s.issuer.IssueRefresh(usr.ID); err != nil {
		return "", "", err
	}

	now := s.nowFunc().UTC()
	_, err = s.tokens.CreateRefreshToken(ctx, RefreshToken{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		Token:     refresh,
		ExpiresAt: now.Add(s.issuer.RefreshTokenTTL()),
		CreatedAt: now,
	})
	if err != nil {
		return "", "", errors.Wrap(err, "recording refresh token")
	}
	return access, refresh, nil
}

// provisionBootstrapTeacher creates the bootstrap teacher account on a
// fresh database. A concurrent bootstrap login may have won the race;
// in that case the now-existing row is used.
func (s *Session) provisionBootstrapTeacher(ctx context.Context) (user.User, error) {
	now := s.nowFunc().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Username:  bootstrapTeacherUsername,
		FirstName: "Super",
		LastName:  "Admin",
		Role:      user.RoleTeacher,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(bootstrapTeacherPassword); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}

	created, err := s.users.CreateUser(ctx, usr)
	if err != nil {
		if err != user.ErrUsernameExists {
			return user.User{}, errors.Wrap(err, "provisioning bootstrap teacher")
		}
		return s.users.GetUserByUsername(ctx, bootstrapTeacherUsername)
	}
	s.logger.Info("bootstrap teacher account provisioned", created)
	return created, nil
}
