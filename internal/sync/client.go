// Package sync はProcoreからローカルストアへの照合同期エンジンを提供する。
// 認証付きリモートクライアント、ベンダー解決、ステージ分割された
// 同期パイプライン、ベンダーバックフィルを含む。
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/genba/internal/procore"
)

// ErrRemoteUnauthorized はトークンリフレッシュ後の再試行でも401が返った
// ことを表す。認証情報が本当に失効しているため、同期全体を中断する。
var ErrRemoteUnauthorized = errors.New("sync: remote unauthorized after token refresh")

// RemoteAPI はProcore REST APIの操作インターフェース。
// テスト時にフェイクに差し替え可能。
type RemoteAPI interface {
	ListProjects(ctx context.Context, accessToken, companyID string) ([]procore.Project, error)
	ListCommitments(ctx context.Context, accessToken, companyID string, projectID int64) ([]procore.Commitment, error)
	GetCommitment(ctx context.Context, accessToken, companyID, projectID, commitmentID string) (*procore.Commitment, error)
	GetVendor(ctx context.Context, accessToken, companyID string, vendorID int64) (*procore.Vendor, error)
}

// TokenRefresher はユーザー単位で直列化されたトークンリフレッシュの
// インターフェース。auth.TokenServiceが実装する。
type TokenRefresher interface {
	Refresh(ctx context.Context, userID, refreshToken string) (*procore.TokenPair, error)
}

// AuthedClient は現在のアクセストークンを保持してProcore APIを呼び出す
// クライアント。トークンは同期1回分のスコープを持つ明示的な値として
// このクライアントに保持され、リフレッシュで新しい値に置き換わる
// （グローバルな可変トークン状態は持たない）。
//
// リトライポリシー: 401を受けたらトークンをちょうど1回リフレッシュして
// 同じリクエストをちょうど1回再試行する。再試行後も401の場合は
// ErrRemoteUnauthorizedとして呼び出し元に伝播し、同期を中断させる。
// 同期はコミットメントごとのベンダー照会で長時間化し、途中でアクセス
// トークンが失効しうるためリフレッシュは必要だが、無制限のリトライで
// 取り消し済みの認証情報を隠蔽してはならない。
type AuthedClient struct {
	api       RemoteAPI
	refresher TokenRefresher
	companyID string
	userID    string
	tokens    procore.TokenPair
}

// NewAuthedClient はAuthedClientを生成する。
func NewAuthedClient(api RemoteAPI, refresher TokenRefresher, companyID, userID string, tokens procore.TokenPair) *AuthedClient {
	return &AuthedClient{
		api:       api,
		refresher: refresher,
		companyID: companyID,
		userID:    userID,
		tokens:    tokens,
	}
}

// Tokens は現在保持しているトークンペアを返す（リフレッシュ後は新しいペア）。
func (c *AuthedClient) Tokens() procore.TokenPair {
	return c.tokens
}

// call はfnを現在のアクセストークンで実行し、401の場合は1回だけ
// リフレッシュして再試行する。
func (c *AuthedClient) call(ctx context.Context, fn func(accessToken string) error) error {
	err := fn(c.tokens.AccessToken)
	if err == nil || !errors.Is(err, procore.ErrUnauthorized) {
		return err
	}

	pair, refreshErr := c.refresher.Refresh(ctx, c.userID, c.tokens.RefreshToken)
	if refreshErr != nil {
		return refreshErr
	}
	c.tokens = *pair

	if err := fn(c.tokens.AccessToken); err != nil {
		if errors.Is(err, procore.ErrUnauthorized) {
			return fmt.Errorf("%w: %v", ErrRemoteUnauthorized, err)
		}
		return err
	}
	return nil
}

// ListProjects は全プロジェクトを取得する。
func (c *AuthedClient) ListProjects(ctx context.Context) ([]procore.Project, error) {
	var projects []procore.Project
	err := c.call(ctx, func(accessToken string) error {
		var err error
		projects, err = c.api.ListProjects(ctx, accessToken, c.companyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// ListCommitments は指定プロジェクトの全コミットメントを取得する。
func (c *AuthedClient) ListCommitments(ctx context.Context, projectID int64) ([]procore.Commitment, error) {
	var commitments []procore.Commitment
	err := c.call(ctx, func(accessToken string) error {
		var err error
		commitments, err = c.api.ListCommitments(ctx, accessToken, c.companyID, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return commitments, nil
}

// GetCommitment は単一コミットメントの詳細を取得する。
func (c *AuthedClient) GetCommitment(ctx context.Context, projectID, commitmentID string) (*procore.Commitment, error) {
	var commitment *procore.Commitment
	err := c.call(ctx, func(accessToken string) error {
		var err error
		commitment, err = c.api.GetCommitment(ctx, accessToken, c.companyID, projectID, commitmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return commitment, nil
}

// GetVendor は単一ベンダーの詳細を取得する。
func (c *AuthedClient) GetVendor(ctx context.Context, vendorID int64) (*procore.Vendor, error) {
	var vendor *procore.Vendor
	err := c.call(ctx, func(accessToken string) error {
		var err error
		vendor, err = c.api.GetVendor(ctx, accessToken, c.companyID, vendorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}
