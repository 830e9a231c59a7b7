package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/genba/internal/middleware"
	"github.com/hitoshi/genba/internal/model"
	"github.com/hitoshi/genba/internal/procore"
	syncengine "github.com/hitoshi/genba/internal/sync"
)

// SyncServiceInterface は同期ハンドラーが必要とするエンジンインターフェース。
type SyncServiceInterface interface {
	// SyncUser はユーザーのプロジェクトと下請契約を同期する。
	SyncUser(ctx context.Context, userID string) (*syncengine.Result, error)
}

// SyncEnqueuer は同期リクエストのキュー登録インターフェース。
// repository.SyncQueueRepositoryの部分集合として定義する。
type SyncEnqueuer interface {
	Enqueue(ctx context.Context, userID string) error
}

// SyncHandler は同期トリガーのHTTPハンドラー。
type SyncHandler struct {
	service  SyncServiceInterface
	enqueuer SyncEnqueuer
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(service SyncServiceInterface, enqueuer SyncEnqueuer) *SyncHandler {
	return &SyncHandler{
		service:  service,
		enqueuer: enqueuer,
	}
}

// syncResponse は同期実行のAPIレスポンス。
type syncResponse struct {
	Success          bool `json:"success"`
	ProjectsCount    int  `json:"projectsCount"`
	CommitmentsCount int  `json:"commitmentsCount"`
}

// enqueueResponse はキュー登録のAPIレスポンス。
type enqueueResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// TriggerSync は同期を即時実行する。
// POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.service.SyncUser(r.Context(), userID)
	if err != nil {
		handleSyncError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(syncResponse{
		Success:          true,
		ProjectsCount:    result.ProjectsCount,
		CommitmentsCount: result.CommitmentsCount,
	})
}

// Enqueue は同期リクエストをキューに登録する。
// 同一ユーザーのpendingエントリは1件に畳み込まれる。
// POST /api/sync/enqueue
func (h *SyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
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

	if err := h.enqueuer.Enqueue(r.Context(), userID); err != nil {
		slog.Error("同期リクエストのキュー登録に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(enqueueResponse{
		Success: true,
		Status:  string(model.SyncStatusPending),
	})
}

// handleSyncError は同期エラーをHTTPレスポンスにマッピングする。
//
//	未接続            → 400 PROCORE_NOT_CONNECTED
//	リフレッシュ失効  → 401 PROCORE_RECONNECT_REQUIRED
//	リトライ後も401   → 401 PROCORE_RECONNECT_REQUIRED
//	Procore API失敗   → 502 REMOTE_FETCH_FAILED
//	その他            → 500 SYNC_FAILED
func handleSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, syncengine.ErrNotConnected):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewNotConnectedError())
	case errors.Is(err, procore.ErrRefreshFailed), errors.Is(err, syncengine.ErrRemoteUnauthorized):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewReconnectRequiredError())
	default:
		var statusErr *procore.StatusError
		if errors.As(err, &statusErr) {
			writeAPIErrorResponse(w, http.StatusBadGateway, model.NewRemoteFetchFailedError(statusErr.Error()))
			return
		}
		slog.Error("同期に失敗しました", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewSyncFailedError(err.Error()))
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}
