// Package procore はProcore REST APIのクライアントを提供する。
// プロジェクト・コミットメント・ベンダーの取得とOAuthトークンの交換を含む。
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
	"strconv"

	"golang.org/x/time/rate"
)

const (
	// defaultPageSize は一覧エンドポイントの1ページあたりの取得件数。
	defaultPageSize = 100
)

// ErrUnauthorized はProcore APIが401を返したことを表す。
// 呼び出し元はこのエラーを検知してトークンリフレッシュを試みる。
var ErrUnauthorized = errors.New("procore: unauthorized")

// StatusError はProcore APIの非2xxレスポンスを表す。
type StatusError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("procore: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client はProcore REST APIのクライアント。
// すべてのリクエストはレートリミッターを通過してから送信される
// （Procore側のレート制限を同期処理全体で尊重するため）。
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
	pageSize   int
}

// NewClient はClientの新しいインスタンスを生成する。
// ratePerSecが0以下の場合はレート制限なしで動作する。
func NewClient(httpClient *http.Client, baseURL string, ratePerSec float64, burst int, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    limiter,
		logger:     logger,
		pageSize:   defaultPageSize,
	}
}

// SetPageSize は一覧エンドポイントのページサイズを変更する。
func (c *Client) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// ListProjects は指定カンパニーの全プロジェクトを取得する。
// ページサイズ未満のページが返るまでページを進める。
func (c *Client) ListProjects(ctx context.Context, accessToken, companyID string) ([]Project, error) {
	var all []Project
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("company_id", companyID)
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))

		var projects []Project
		if err := c.getJSON(ctx, accessToken, "/rest/v1.0/projects", q, &projects); err != nil {
			return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
		}

		all = append(all, projects...)
		if len(projects) < c.pageSize {
			return all, nil
		}
	}
}

// ListCommitments は指定プロジェクトの全コミットメントを取得する。
func (c *Client) ListCommitments(ctx context.Context, accessToken, companyID string, projectID int64) ([]Commitment, error) {
	var all []Commitment
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("company_id", companyID)
		q.Set("project_id", strconv.FormatInt(projectID, 10))
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))

		var commitments []Commitment
		if err := c.getJSON(ctx, accessToken, "/rest/v1.0/commitments", q, &commitments); err != nil {
			return nil, fmt.Errorf("コミットメント一覧の取得に失敗しました: %w", err)
		}

		all = append(all, commitments...)
		if len(commitments) < c.pageSize {
			return all, nil
		}
	}
}

// GetCommitment は単一コミットメントの詳細を取得する。
// ベンダーバックフィルで使用される。
func (c *Client) GetCommitment(ctx context.Context, accessToken, companyID, projectID, commitmentID string) (*Commitment, error) {
	q := url.Values{}
	q.Set("company_id", companyID)
	q.Set("project_id", projectID)

	var commitment Commitment
	if err := c.getJSON(ctx, accessToken, "/rest/v1.0/commitments/"+url.PathEscape(commitmentID), q, &commitment); err != nil {
		return nil, fmt.Errorf("コミットメント詳細の取得に失敗しました: %w", err)
	}
	return &commitment, nil
}

// GetVendor は単一ベンダーの詳細を取得する。
func (c *Client) GetVendor(ctx context.Context, accessToken, companyID string, vendorID int64) (*Vendor, error) {
	q := url.Values{}
	q.Set("company_id", companyID)

	var vendor Vendor
	if err := c.getJSON(ctx, accessToken, "/rest/v1.0/vendors/"+strconv.FormatInt(vendorID, 10), q, &vendor); err != nil {
		return nil, fmt.Errorf("ベンダー詳細の取得に失敗しました: %w", err)
	}
	return &vendor, nil
}

// getJSON は認可ヘッダー付きGETを実行し、レスポンスJSONをoutにデコードする。
// 401はErrUnauthorized、その他の非200はStatusErrorとして返す。
func (c *Client) getJSON(ctx context.Context, accessToken, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("レートリミッター待機中にキャンセルされました: %w", err)
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		c.logger.Error("Procore APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// truncate はログ・エラー用に文字列を最大長で切り詰める。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
