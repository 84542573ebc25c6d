// Package repotest holds conformance suites shared by the storage backends,
// so every repository implementation is held to the same contract.
package repotest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/umirovdev/maktab/core/user"
)

func createUser(t *testing.T, repo user.Repository, role user.Role) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Username:  uuid.New().String(),
		FirstName: "Laylo",
		LastName:  "Karimova",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword("s3cr3tpwd"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// RunUserRepository exercises the user.Repository contract. Usernames are
// random so the suite is safe against a shared database.
func RunUserRepository(t *testing.T, repo user.Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		usr := createUser(t, repo, user.RoleTeacher)

		byID, err := repo.GetUserByID(ctx, usr.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed: %v", err)
		}
		byUname, err := repo.GetUserByUsername(ctx, usr.Username)
		if err != nil {
			t.Fatalf("GetUserByUsername() failed: %v", err)
		}
		for _, got := range []user.User{byID, byUname} {
			if got.ID != usr.ID {
				t.Errorf("ID = %s, want %s", got.ID, usr.ID)
			}
			if got.Role != user.RoleTeacher {
				t.Errorf("Role = %s, want %s", got.Role, user.RoleTeacher)
			}
			if !bytes.Equal(got.PasswordHash, usr.PasswordHash) {
				t.Error("PasswordHash not persisted")
			}
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		if _, err := repo.GetUserByID(ctx, uuid.New().String()); err != user.ErrNotFound {
			t.Errorf("GetUserByID() error = %v, want %v", err, user.ErrNotFound)
		}
		if _, err := repo.GetUserByUsername(ctx, uuid.New().String()); err != user.ErrNotFound {
			t.Errorf("GetUserByUsername() error = %v, want %v", err, user.ErrNotFound)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		usr := createUser(t, repo, user.RoleStudent)

		dup := usr
		dup.ID = uuid.New().String()
		if _, err := repo.CreateUser(ctx, dup); err != user.ErrUsernameExists {
			t.Errorf("CreateUser() error = %v, want %v", err, user.ErrUsernameExists)
		}
	})

	t.Run("username uniqueness check", func(t *testing.T) {
		usr := createUser(t, repo, user.RoleStudent)

		if err := repo.CheckUsernameUniqueness(ctx, usr.Username); err != user.ErrUsernameExists {
			t.Errorf("CheckUsernameUniqueness() error = %v, want %v", err, user.ErrUsernameExists)
		}
		if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr); err != nil {
			t.Errorf("CheckUsernameUniqueness() with owner excluded error = %v", err)
		}
		if err := repo.CheckUsernameUniqueness(ctx, uuid.New().String()); err != nil {
			t.Errorf("CheckUsernameUniqueness() on free username error = %v", err)
		}
	})

	t.Run("update persists profile columns only", func(t *testing.T) {
		usr := createUser(t, repo, user.RoleStudent)

		up := usr
		up.Username = uuid.New().String()
		up.Email = "aziza@maktab.uz"
		up.FirstName = "Aziza"
		up.LastName = "Tursunova"
		up.PasswordHash = []byte("tampered")
		up.MustChangePassword = true
		up.UpdatedAt = time.Now().UTC()
		if _, err := repo.UpdateUser(ctx, up); err != nil {
			t.Fatalf("UpdateUser() failed: %v", err)
		}

		got, err := repo.GetUserByID(ctx, usr.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed: %v", err)
		}
		if got.Username != up.Username || got.Email != up.Email || got.FirstName != up.FirstName || got.LastName != up.LastName {
			t.Errorf("profile columns not persisted: got %+v", got)
		}
		if !bytes.Equal(got.PasswordHash, usr.PasswordHash) {
			t.Error("UpdateUser() wrote the password hash")
		}
		if got.MustChangePassword {
			t.Error("UpdateUser() wrote the must-change flag")
		}
	})

	t.Run("update to taken username", func(t *testing.T) {
		usr := createUser(t, repo, user.RoleStudent)
		other := createUser(t, repo, user.RoleStudent)

		up := usr
		up.Username = other.Username
		if _, err := repo.UpdateUser(ctx, up); err != user.ErrUsernameExists {
			t.Errorf("UpdateUser() error = %v, want %v", err, user.ErrUsernameExists)
		}
	})

	t.Run("update unknown", func(t *testing.T) {
		usr := user.User{ID: uuid.New().String(), Username: uuid.New().String()}
		if _, err := repo.UpdateUser(ctx, usr); err != user.ErrNotFound {
			t.Errorf("UpdateUser() error = %v, want %v", err, user.ErrNotFound)
		}
	})

	t.Run("set password", func(t *testing.T) {
		usr := createUser(t, repo, user.RoleStudent)

		newUsr := usr
		if err := newUsr.SetPassword("NewSecret123"); err != nil {
			t.Fatalf("SetPassword() failed: %v", err)
		}
		if err := repo.SetUserPassword(ctx, usr.ID, newUsr.PasswordHash, true); err != nil {
			t.Fatalf("SetUserPassword() failed: %v", err)
		}

		got, err := repo.GetUserByID(ctx, usr.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed: %v", err)
		}
		if bytes.Equal(got.PasswordHash, usr.PasswordHash) {
			t.Error("password hash not updated")
		}
		if err := got.CheckPassword("NewSecret123"); err != nil {
			t.Errorf("CheckPassword() on new password failed: %v", err)
		}
		if !got.MustChangePassword {
			t.Error("MustChangePassword not set")
		}
	})

	t.Run("set password unknown", func(t *testing.T) {
		if err := repo.SetUserPassword(ctx, uuid.New().String(), []byte("x"), false); err != user.ErrNotFound {
			t.Errorf("SetUserPassword() error = %v, want %v", err, user.ErrNotFound)
		}
	})
}
