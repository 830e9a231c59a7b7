// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/genba/internal/auth"
	"github.com/hitoshi/genba/internal/middleware"
	"github.com/hitoshi/genba/internal/model"
)

// TokenConnector はOAuth認可コードの交換と保存のインターフェース。
// auth.TokenServiceが実装する。
type TokenConnector interface {
	// Connect は認可コードをトークンペアに交換し永続化する。
	Connect(ctx context.Context, userID, code string) error
}

// StateManager はOAuth stateトークンの発行と検証のインターフェース。
type StateManager interface {
	Issue(userID, redirect string) (string, error)
	Verify(state string) (*auth.StatePayload, error)
}

// AuthorizeURLBuilder はProcore認可URLの構築インターフェース。
type AuthorizeURLBuilder interface {
	AuthorizeURL(state string) string
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// BaseURL はコールバック後のデフォルトリダイレクト先。
	BaseURL string
}

// AuthHandler はProcore OAuth接続フローのHTTPハンドラー。
type AuthHandler struct {
	connector TokenConnector
	states    StateManager
	oauth     AuthorizeURLBuilder
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(connector TokenConnector, states StateManager, oauth AuthorizeURLBuilder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		connector: connector,
		states:    states,
		oauth:     oauth,
		config:    config,
	}
}

// connectResponse は接続開始レスポンス。
type connectResponse struct {
	AuthURL string `json:"authUrl"`
}

// Connect はProcore接続フローを開始する。
// 認証済みユーザーIDを埋め込んだstateトークンを発行し、認可URLを返す。
// GET /auth/procore/connect
func (h *AuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	redirect := r.URL.Query().Get("redirect")

	state, err := h.states.Issue(userID, redirect)
	if err != nil {
		slog.Error("stateトークンの発行に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(connectResponse{
		AuthURL: h.oauth.AuthorizeURL(state),
	})
}

// Callback はProcoreからの認可コールバックを処理する。
// stateを検証し、認可コードをトークンに交換して保存した後、
// ?procore=connected（成功時）または?procore=error（失敗時）を付けて
// リダイレクトする。エラー詳細はクエリに載せない。
// GET /auth/procore/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	// 1. stateトークンを検証（有効期限10分を含む）
	payload, err := h.states.Verify(state)
	if err != nil {
		slog.Warn("stateトークンの検証に失敗しました",
			slog.String("error", err.Error()),
		)
		if errors.Is(err, auth.ErrStateExpired) || errors.Is(err, auth.ErrStateInvalid) {
			h.redirectWithResult(w, r, "", "error")
			return
		}
		h.redirectWithResult(w, r, "", "error")
		return
	}

	if code == "" {
		h.redirectWithResult(w, r, payload.Redirect, "error")
		return
	}

	// 2. 認可コードをトークンペアに交換して保存
	if err := h.connector.Connect(r.Context(), payload.UserID, code); err != nil {
		slog.Error("認可コードの交換に失敗しました",
			slog.String("user_id", payload.UserID),
			slog.String("error", err.Error()),
		)
		h.redirectWithResult(w, r, payload.Redirect, "error")
		return
	}

	slog.Info("Procore接続が完了しました",
		slog.String("user_id", payload.UserID),
	)

	// 3. 結果を付けてリダイレクト
	h.redirectWithResult(w, r, payload.Redirect, "connected")
}

// redirectWithResult はリダイレクト先に?procore=<result>を付けて302を返す。
// リダイレクト先が未指定または不正な場合はBaseURLを使用する。
func (h *AuthHandler) redirectWithResult(w http.ResponseWriter, r *http.Request, redirect, result string) {
	target := h.config.BaseURL
	if redirect != "" {
		// オープンリダイレクト防止: BaseURL配下のパスのみ許可
		if u, err := url.Parse(redirect); err == nil && u.Host == "" && u.Scheme == "" {
			target = h.config.BaseURL + redirect
		}
	}

	u, err := url.Parse(target)
	if err != nil {
		u, _ = url.Parse(h.config.BaseURL)
	}
	q := u.Query()
	q.Set("procore", result)
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}
