// Package auth はProcoreトークンのライフサイクル管理とOAuth stateトークンを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/genba/internal/model"
	"github.com/hitoshi/genba/internal/procore"
	"github.com/hitoshi/genba/internal/repository"
)

// OAuthExchanger はProcoreトークンエンドポイントの操作インターフェース。
// テスト時にモックに差し替え可能。
type OAuthExchanger interface {
	// ExchangeCode は認可コードをトークンペアに交換する。
	ExchangeCode(ctx context.Context, code string) (*procore.TokenPair, error)
	// Refresh はリフレッシュトークンで新しいトークンペアを取得する。
	Refresh(ctx context.Context, refreshToken string) (*procore.TokenPair, error)
}

// RefreshMetricsRecorder はトークンリフレッシュ結果の記録インターフェース。
type RefreshMetricsRecorder interface {
	RecordTokenRefresh(success bool)
}

// TokenService はユーザーごとのProcoreトークンのライフサイクルを管理する。
// OAuthTokenレコードの唯一の書き込み元。
//
// リフレッシュはユーザー単位で直列化される。Procoreはリフレッシュのたびに
// リフレッシュトークンをローテーションするため、同一ユーザーの並行リフレッシュを
// 許すと、一方のリフレッシュが他方の提示予定のトークンを無効化してしまう。
type TokenService struct {
	oauth     OAuthExchanger
	tokenRepo repository.TokenRepository
	metrics   RefreshMetricsRecorder
	logger    *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewTokenService はTokenServiceを生成する。metricsはnilでもよい。
func NewTokenService(oauth OAuthExchanger, tokenRepo repository.TokenRepository, metrics RefreshMetricsRecorder, logger *slog.Logger) *TokenService {
	return &TokenService{
		oauth:     oauth,
		tokenRepo: tokenRepo,
		metrics:   metrics,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Connect は認可コードをトークンペアに交換し、ユーザーに紐付けて永続化する。
func (s *TokenService) Connect(ctx context.Context, userID, code string) error {
	pair, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	token := &model.OAuthToken{
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UpdatedAt:    time.Now(),
	}
	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		return fmt.Errorf("failed to store token pair: %w", err)
	}

	s.logger.Info("Procore接続が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}

// Tokens は指定ユーザーの保存済みトークンを取得する。
// 未接続の場合はnilを返す。
func (s *TokenService) Tokens(ctx context.Context, userID string) (*model.OAuthToken, error) {
	return s.tokenRepo.FindByUserID(ctx, userID)
}

// Refresh は提示されたリフレッシュトークンで新しいトークンペアを取得し、
// 永続化して返す。同一ユーザーのリフレッシュはロックで直列化される。
//
// ロック取得後に保存済みトークンを再読込し、提示されたトークンがすでに
// ローテーション済み（= 並行していた別のリフレッシュが先に完了した）の場合は、
// リモート呼び出しを行わず保存済みのペアをそのまま返す。
func (s *TokenService) Refresh(ctx context.Context, userID, presentedRefreshToken string) (*procore.TokenPair, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.tokenRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored token: %w", err)
	}

	if stored != nil && stored.RefreshToken != presentedRefreshToken {
		s.logger.Info("トークンはすでにローテーション済みのためリフレッシュをスキップします",
			slog.String("user_id", userID),
		)
		return &procore.TokenPair{
			AccessToken:  stored.AccessToken,
			RefreshToken: stored.RefreshToken,
		}, nil
	}

	pair, err := s.oauth.Refresh(ctx, presentedRefreshToken)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordTokenRefresh(false)
		}
		// ErrRefreshFailedは再接続が必要。ここではリトライしない。
		return nil, err
	}

	token := &model.OAuthToken{
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UpdatedAt:    time.Now(),
	}
	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store rotated token pair: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordTokenRefresh(true)
	}

	s.logger.Info("トークンをリフレッシュしました",
		slog.String("user_id", userID),
	)
	return pair, nil
}

// lockFor はユーザーごとのリフレッシュ用ロックを返す。
func (s *TokenService) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}
