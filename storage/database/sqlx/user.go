package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core/user"
)

type userRow struct {
	ID                 string    `db:"id"`
	Username           string    `db:"username"`
	Email              string    `db:"email"`
	FirstName          string    `db:"first_name"`
	LastName           string    `db:"last_name"`
	Role               string    `db:"role"`
	PasswordHash       []byte    `db:"password_hash"`
	MustChangePassword bool      `db:"must_change_password"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:                 r.ID,
		Username:           r.Username,
		Email:              r.Email,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Role:               user.Role(r.Role),
		PasswordHash:       r.PasswordHash,
		MustChangePassword: r.MustChangePassword,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username string, excludedUsers ...user.User) error {
	query := `SELECT COUNT(*) FROM users WHERE username = $1`
	args := []interface{}{username}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q, inArgs, err := sqlx.In(`SELECT COUNT(*) FROM users WHERE username = ? AND id NOT IN (?)`, username, ids)
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		query = repo.db.Rebind(q)
		args = inArgs
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if count > 0 {
		return user.ErrUsernameExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, role, password_hash, must_change_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		usr.ID, usr.Username, usr.Email, usr.FirstName, usr.LastName, usr.Role,
		usr.PasswordHash, usr.MustChangePassword, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by id")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE username = $1`, username); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by username")
	}
	return row.toUser(), nil
}

func (repo userRepository) QueryStudents(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM users WHERE role = $1 ORDER BY created_at DESC`, user.RoleStudent)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return toUsers(rows), nil
}

func (repo userRepository) QueryStudentsByGroup(ctx context.Context, groupID string) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT u.* FROM users u
		JOIN group_members gm ON gm.student_id = u.id
		WHERE u.role = $1 AND gm.group_id = $2
		ORDER BY u.created_at DESC`,
		user.RoleStudent, groupID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying students by group")
	}
	return toUsers(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE users SET username = $1, email = $2, first_name = $3, last_name = $4, updated_at = $5
		WHERE id = $6`,
		usr.Username, usr.Email, usr.FirstName, usr.LastName, usr.UpdatedAt.UTC(), usr.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetUserPassword(ctx context.Context, id string, hash []byte, mustChange bool) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, must_change_password = $2, updated_at = NOW()
		WHERE id = $3`,
		hash, mustChange, id,
	)
	if err != nil {
		return errors.Wrap(err, "setting user password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), constraint)
}
