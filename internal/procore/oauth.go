package procore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// ErrAuthExchangeFailed は認可コードのトークン交換が拒否されたことを表す。
var ErrAuthExchangeFailed = errors.New("procore: authorization code exchange failed")

// ErrRefreshFailed はリフレッシュトークンが拒否されたことを表す。
// このエラーを受けた呼び出し元はリトライせず「再接続が必要」として扱うこと。
var ErrRefreshFailed = errors.New("procore: token refresh failed")

// OAuthConfig はProcore OAuthクライアントの設定。
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	TokenURL     string
}

// OAuthClient はProcoreのOAuth 2.0トークンエンドポイントのクライアント。
// 認可コードの交換とリフレッシュトークンによる更新を提供する。
type OAuthClient struct {
	config     OAuthConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOAuthClient はOAuthClientを生成する。
func NewOAuthClient(config OAuthConfig, httpClient *http.Client, logger *slog.Logger) *OAuthClient {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = "https://login.procore.com/oauth/authorize"
	}
	if config.TokenURL == "" {
		config.TokenURL = "https://login.procore.com/oauth/token"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthClient{config: config, httpClient: httpClient, logger: logger}
}

// AuthorizeURL はProcoreのOAuth認可URLを生成する。
func (c *OAuthClient) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {c.config.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {c.config.RedirectURL},
		"state":         {state},
	}
	return c.config.AuthorizeURL + "?" + params.Encode()
}

// ExchangeCode は認可コードをアクセストークン/リフレッシュトークンの組に交換する。
// トークンエンドポイントが非200を返した場合はErrAuthExchangeFailedを返す。
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {c.config.RedirectURL},
	}

	pair, err := c.postToken(ctx, data)
	if err != nil {
		c.logger.Error("認可コードの交換に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrAuthExchangeFailed, err)
	}
	return pair, nil
}

// Refresh はリフレッシュトークンで新しいトークンペアを取得する。
// Procoreはリフレッシュのたびに両トークンをローテーションするため、
// 呼び出し元は返されたペアを必ず永続化しなければならない。
// トークンエンドポイントが非200を返した場合（失効・取り消し等）は
// ErrRefreshFailedを返す。
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"refresh_token": {refreshToken},
	}

	pair, err := c.postToken(ctx, data)
	if err != nil {
		c.logger.Error("トークンリフレッシュに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return pair, nil
}

// postToken はトークンエンドポイントへのPOSTを実行する。
func (c *OAuthClient) postToken(ctx context.Context, data url.Values) (*TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("トークンリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("トークンリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("トークンレスポンスの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("トークンエンドポイントがステータス %d を返しました: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return nil, fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("トークンレスポンスにトークンが含まれていません")
	}

	return &pair, nil
}
