// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotConnected       = "PROCORE_NOT_CONNECTED"
	ErrCodeReconnectRequired  = "PROCORE_RECONNECT_REQUIRED"
	ErrCodeRemoteUnauthorized = "REMOTE_UNAUTHORIZED"
	ErrCodeRemoteFetchFailed  = "REMOTE_FETCH_FAILED"
	ErrCodeSyncFailed         = "SYNC_FAILED"
	ErrCodeInvalidState       = "INVALID_STATE"
)

// NewNotConnectedError はProcore未接続エラーを生成する。
func NewNotConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotConnected,
		Message:  "Procoreに接続されていません。",
		Category: "auth",
		Action:   "設定画面からProcoreに接続してください。",
	}
}

// NewReconnectRequiredError はリフレッシュトークン失効エラーを生成する。
// リフレッシュトークンが取り消された場合は自動リトライせず、再接続を促す。
func NewReconnectRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeReconnectRequired,
		Message:  "Procoreの認証情報が失効しています。",
		Category: "auth",
		Action:   "設定画面からProcoreに再接続してください。",
	}
}

// NewRemoteFetchFailedError はProcore API取得失敗エラーを生成する。
func NewRemoteFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteFetchFailed,
		Message:  fmt.Sprintf("Procoreからのデータ取得に失敗しました: %s", reason),
		Category: "sync",
		Action:   "しばらく待ってから再度同期を実行してください。",
	}
}

// NewSyncFailedError は同期失敗エラーを生成する。
func NewSyncFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSyncFailed,
		Message:  fmt.Sprintf("同期に失敗しました: %s", reason),
		Category: "sync",
		Action:   "しばらく待ってから再度同期を実行してください。",
	}
}

// NewInvalidStateError はOAuth stateトークンの検証失敗エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "OAuth stateトークンが無効または期限切れです。",
		Category: "validation",
		Action:   "接続フローを最初からやり直してください。",
	}
}
