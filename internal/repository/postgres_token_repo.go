package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/genba/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したOAuthトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// FindByUserID は指定ユーザーのトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByUserID(ctx context.Context, userID string) (*model.OAuthToken, error) {
	token := &model.OAuthToken{}

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, updated_at
		 FROM oauth_tokens WHERE user_id = $1`,
		userID,
	).Scan(&token.UserID, &token.AccessToken, &token.RefreshToken, &token.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("トークンの取得に失敗しました: %w", err)
	}

	return token, nil
}

// Upsert はトークンペアを冪等にUPSERTする（キー = user_id）。
func (r *PostgresTokenRepo) Upsert(ctx context.Context, token *model.OAuthToken) error {
	updatedAt := token.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (user_id, access_token, refresh_token, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		    access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    updated_at = EXCLUDED.updated_at`,
		token.UserID, token.AccessToken, token.RefreshToken, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("トークンのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
