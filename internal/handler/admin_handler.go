package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/genba/internal/middleware"
	"github.com/hitoshi/genba/internal/model"
	syncengine "github.com/hitoshi/genba/internal/sync"
	"github.com/hitoshi/genba/internal/worker/syncqueue"
)

// QueueProcessorInterface は同期キューのバッチ処理インターフェース。
type QueueProcessorInterface interface {
	ProcessBatch(ctx context.Context) (*syncqueue.BatchResult, error)
}

// BackfillerInterface は不明ベンダーのバックフィル実行インターフェース。
type BackfillerInterface interface {
	Run(ctx context.Context, userID string) (*syncengine.BackfillResult, error)
}

// AdminHandler はサービスキー認証下の内部エンドポイントのハンドラー。
// スケジューラーや運用スクリプトからの呼び出しを想定する。
type AdminHandler struct {
	processor  QueueProcessorInterface
	backfiller BackfillerInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(processor QueueProcessorInterface, backfiller BackfillerInterface) *AdminHandler {
	return &AdminHandler{
		processor:  processor,
		backfiller: backfiller,
	}
}

// processQueueResponse はキュー処理のAPIレスポンス。
type processQueueResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
}

// backfillRequest はバックフィルリクエストのボディ。
type backfillRequest struct {
	UserID string `json:"user_id"`
}

// backfillResponse はバックフィルのAPIレスポンス。
type backfillResponse struct {
	Success bool `json:"success"`
	Total   int  `json:"total"`
	Updated int  `json:"updated"`
	Failed  int  `json:"failed"`
}

// ProcessQueue は同期キューのバッチを1回実行する。
// POST /internal/sync/process
func (h *AdminHandler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.processor.ProcessBatch(r.Context())
	if err != nil {
		slog.Error("同期バッチの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(processQueueResponse{
		Success:   true,
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	})
}

// Backfill は指定ユーザーの不明ベンダー下請契約のバックフィルを実行する。
// POST /internal/vendors/backfill
func (h *AdminHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.UserID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "user_idが空です。",
			Category: "validation",
			Action:   "user_idを指定してください。",
		})
		return
	}

	result, err := h.backfiller.Run(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, syncengine.ErrNotConnected) {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewNotConnectedError())
			return
		}
		handleSyncError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(backfillResponse{
		Success: true,
		Total:   result.Total,
		Updated: result.Updated,
		Failed:  result.Failed,
	})
}
