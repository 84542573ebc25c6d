package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/umirovdev/maktab/core/auth"
)

type refreshTokenRepository struct {
	db *DB
}

var _ auth.RefreshTokenRepository = (*refreshTokenRepository)(nil) // interface compliance check

func NewRefreshTokenRepository(db *DB) auth.RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (repo *refreshTokenRepository) CreateRefreshToken(ctx context.Context, rt auth.RefreshToken) (auth.RefreshToken, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.refreshTokens[rt.ID] = &rt
	return rt, nil
}

func (repo *refreshTokenRepository) GetActiveRefreshToken(ctx context.Context, token string) (auth.RefreshToken, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, rt := range repo.db.refreshTokens {
		if rt.Token == token && !rt.RevokedAt.Valid {
			return *rt, nil
		}
	}
	return auth.RefreshToken{}, auth.ErrRefreshTokenNotFound
}

func (repo *refreshTokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, rt := range repo.db.refreshTokens {
		if rt.Token == token && !rt.RevokedAt.Valid {
			rt.RevokedAt = null.TimeFrom(time.Now().UTC())
		}
	}
	return nil
}
