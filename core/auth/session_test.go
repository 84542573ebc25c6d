package auth_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/auth"
	"github.com/umirovdev/maktab/core/user"
	logsvc "github.com/umirovdev/maktab/services/logger"
	inmemdb "github.com/umirovdev/maktab/storage/database/inmem"
)

const masterPassword = "Jamshed123" // fixed bootstrap credential

func testConfig(refreshTTL time.Duration) *core.Config {
	return &core.Config{
		AppName: "Maktab",
		Auth: core.AuthConfig{
			AccessSecret:    "access-secret",
			RefreshSecret:   "refresh-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: refreshTTL,
		},
	}
}

func setup(t *testing.T, refreshTTL time.Duration) (*auth.Session, user.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	tokRepo := inmemdb.NewRefreshTokenRepository(db)
	issuer := auth.NewIssuer(testConfig(refreshTTL))
	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
	return auth.NewSession(usrRepo, tokRepo, issuer, logger), usrRepo
}

func createUser(t *testing.T, repo user.Repository, uname, pwd string, role user.Role) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Username:  uname,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func TestSessionLogin(t *testing.T) {
	ctx := context.Background()
	sess, repo := setup(t, 7*24*time.Hour)
	usr := createUser(t, repo, "aziza", "s3cr3tpwd", user.RoleStudent)

	t.Run("unknown user", func(t *testing.T) {
		if _, err := sess.Login(ctx, "nobody", "whatever"); err != auth.ErrInvalidCredentials {
			t.Fatalf("Login() error = %v, want %v", err, auth.ErrInvalidCredentials)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := sess.Login(ctx, "aziza", "nope"); err != auth.ErrInvalidCredentials {
			t.Fatalf("Login() error = %v, want %v", err, auth.ErrInvalidCredentials)
		}
	})

	t.Run("master password does not unlock other accounts", func(t *testing.T) {
		if _, err := sess.Login(ctx, "aziza", masterPassword); err != auth.ErrInvalidCredentials {
			t.Fatalf("Login() error = %v, want %v", err, auth.ErrInvalidCredentials)
		}
	})

	t.Run("ok", func(t *testing.T) {
		res, err := sess.Login(ctx, "aziza", "s3cr3tpwd")
		if err != nil {
			t.Fatalf("Login() failed: %v", err)
		}
		if res.AccessToken == "" || res.RefreshToken == "" {
			t.Error("Login() returned empty tokens")
		}
		if res.User.ID != usr.ID {
			t.Errorf("Login() User.ID = %q, want %q", res.User.ID, usr.ID)
		}
	})

	t.Run("username is case-insensitive", func(t *testing.T) {
		if _, err := sess.Login(ctx, "  AzizA ", "s3cr3tpwd"); err != nil {
			t.Fatalf("Login() failed: %v", err)
		}
	})
}

func TestSessionLoginBootstrap(t *testing.T) {
	ctx := context.Background()
	sess, repo := setup(t, 7*24*time.Hour)

	// fresh database: bootstrap login provisions the teacher account
	res, err := sess.Login(ctx, "teacher", masterPassword)
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if !res.User.IsTeacher() {
		t.Errorf("Login() User.Role = %q, want %q", res.User.Role, user.RoleTeacher)
	}
	if res.User.FullName() != "Super Admin" {
		t.Errorf("Login() User.FullName() = %q, want %q", res.User.FullName(), "Super Admin")
	}

	// provisioning is idempotent
	res2, err := sess.Login(ctx, "teacher", masterPassword)
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if res2.User.ID != res.User.ID {
		t.Errorf("second bootstrap login got user %q, want %q", res2.User.ID, res.User.ID)
	}

	// wrong password on the bootstrap username does not provision
	if _, err = sess.Login(ctx, "teacher", "nope"); err != auth.ErrInvalidCredentials {
		t.Fatalf("Login() error = %v, want %v", err, auth.ErrInvalidCredentials)
	}

	// the hatch still works after the teacher sets their own password
	if err = sess.ChangePassword(ctx, res.User.ID, masterPassword, "myownpwd99"); err != nil {
		t.Fatalf("ChangePassword() failed: %v", err)
	}
	if _, err = sess.Login(ctx, "teacher", "myownpwd99"); err != nil {
		t.Fatalf("Login() with own password failed: %v", err)
	}
	if _, err = sess.Login(ctx, "teacher", masterPassword); err != nil {
		t.Fatalf("Login() with master password failed: %v", err)
	}

	// an existing non-bootstrap teacher is untouched
	other := createUser(t, repo, "botir", "t3achrpwd", user.RoleTeacher)
	if _, err = sess.Login(ctx, other.Username, masterPassword); err != auth.ErrInvalidCredentials {
		t.Fatalf("Login() error = %v, want %v", err, auth.ErrInvalidCredentials)
	}
}

func TestSessionRefresh(t *testing.T) {
	ctx := context.Background()
	sess, repo := setup(t, 7*24*time.Hour)
	createUser(t, repo, "aziza", "s3cr3tpwd", user.RoleStudent)

	res, err := sess.Login(ctx, "aziza", "s3cr3tpwd")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	pair, err := sess.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("Refresh() returned empty tokens")
	}
	if pair.RefreshToken == res.RefreshToken {
		t.Error("Refresh() did not rotate the refresh token")
	}

	// rotation is single-use: replaying the old token fails
	if _, err = sess.Refresh(ctx, res.RefreshToken); err != auth.ErrInvalidRefreshToken {
		t.Fatalf("Refresh() replay error = %v, want %v", err, auth.ErrInvalidRefreshToken)
	}

	// the replacement still works
	if _, err = sess.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh() of rotated token failed: %v", err)
	}

	t.Run("garbage token", func(t *testing.T) {
		if _, err := sess.Refresh(ctx, "lol.lol.lol"); err != auth.ErrInvalidRefreshToken {
			t.Fatalf("Refresh() error = %v, want %v", err, auth.ErrInvalidRefreshToken)
		}
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		if _, err := sess.Refresh(ctx, res.AccessToken); err != auth.ErrInvalidRefreshToken {
			t.Fatalf("Refresh() error = %v, want %v", err, auth.ErrInvalidRefreshToken)
		}
	})
}

func TestSessionRefreshExpired(t *testing.T) {
	ctx := context.Background()
	// issue refresh tokens that are already expired
	sess, repo := setup(t, -time.Minute)
	createUser(t, repo, "aziza", "s3cr3tpwd", user.RoleStudent)

	res, err := sess.Login(ctx, "aziza", "s3cr3tpwd")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if _, err = sess.Refresh(ctx, res.RefreshToken); err != auth.ErrInvalidRefreshToken {
		t.Fatalf("Refresh() error = %v, want %v", err, auth.ErrInvalidRefreshToken)
	}
}

func TestSessionLogout(t *testing.T) {
	ctx := context.Background()
	sess, repo := setup(t, 7*24*time.Hour)
	createUser(t, repo, "aziza", "s3cr3tpwd", user.RoleStudent)

	res, err := sess.Login(ctx, "aziza", "s3cr3tpwd")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	if err = sess.Logout(ctx, res.RefreshToken); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}
	if _, err = sess.Refresh(ctx, res.RefreshToken); err != auth.ErrInvalidRefreshToken {
		t.Fatalf("Refresh() after logout error = %v, want %v", err, auth.ErrInvalidRefreshToken)
	}

	// logout is idempotent; unknown tokens are fine too
	if err = sess.Logout(ctx, res.RefreshToken); err != nil {
		t.Fatalf("second Logout() failed: %v", err)
	}
	if err = sess.Logout(ctx, "unknown"); err != nil {
		t.Fatalf("Logout() of unknown token failed: %v", err)
	}
}

func TestSessionChangePassword(t *testing.T) {
	ctx := context.Background()
	sess, repo := setup(t, 7*24*time.Hour)

	usr := createUser(t, repo, "aziza", "s3cr3tpwd", user.RoleStudent)
	if err := repo.SetUserPassword(ctx, usr.ID, usr.PasswordHash, true /* mustChange */); err != nil {
		t.Fatalf("SetUserPassword() failed: %v", err)
	}

	if err := sess.ChangePassword(ctx, usr.ID, "nope", "newpwd1234"); err != auth.ErrIncorrectPassword {
		t.Fatalf("ChangePassword() error = %v, want %v", err, auth.ErrIncorrectPassword)
	}

	if err := sess.ChangePassword(ctx, usr.ID, "s3cr3tpwd", "newpwd1234"); err != nil {
		t.Fatalf("ChangePassword() failed: %v", err)
	}

	updated, err := repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}
	if updated.MustChangePassword {
		t.Error("ChangePassword() did not clear MustChangePassword")
	}

	if _, err = sess.Login(ctx, "aziza", "s3cr3tpwd"); err != auth.ErrInvalidCredentials {
		t.Fatalf("Login() with old password error = %v, want %v", err, auth.ErrInvalidCredentials)
	}
	if _, err = sess.Login(ctx, "aziza", "newpwd1234"); err != nil {
		t.Fatalf("Login() with new password failed: %v", err)
	}
}
