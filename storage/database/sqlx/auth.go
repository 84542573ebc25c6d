package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umirovdev/maktab/core/auth"
)

type refreshTokenRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	RevokedAt null.Time `db:"revoked_at"`
}

func (r refreshTokenRow) toToken() auth.RefreshToken {
	return auth.RefreshToken{
		ID:        r.ID,
		UserID:    r.UserID,
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
		RevokedAt: r.RevokedAt,
	}
}

type refreshTokenRepository struct {
	db *sqlx.DB
}

var _ auth.RefreshTokenRepository = (*refreshTokenRepository)(nil) // interface compliance check

func NewRefreshTokenRepository(db *sqlx.DB) *refreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (repo refreshTokenRepository) CreateRefreshToken(ctx context.Context, rt auth.RefreshToken) (auth.RefreshToken, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rt.ID, rt.UserID, rt.Token, rt.ExpiresAt.UTC(), rt.CreatedAt.UTC(),
	)
	if err != nil {
		return auth.RefreshToken{}, errors.Wrap(err, "creating refresh token")
	}
	return rt, nil
}

func (repo refreshTokenRepository) GetActiveRefreshToken(ctx context.Context, token string) (auth.RefreshToken, error) {
	var row refreshTokenRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT * FROM refresh_tokens WHERE token = $1 AND revoked_at IS NULL`, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return auth.RefreshToken{}, auth.ErrRefreshTokenNotFound
		}
		return auth.RefreshToken{}, errors.Wrap(err, "getting refresh token")
	}
	return row.toToken(), nil
}

func (repo refreshTokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW() WHERE token = $1 AND revoked_at IS NULL`, token)
	if err != nil {
		return errors.Wrap(err, "revoking refresh token")
	}
	return nil
}
