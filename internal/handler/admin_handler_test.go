package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	syncengine "github.com/hitoshi/genba/internal/sync"
	"github.com/hitoshi/genba/internal/worker/syncqueue"
)

// --- モック定義 ---

type mockQueueProcessor struct {
	processBatchFn func(ctx context.Context) (*syncqueue.BatchResult, error)
}

func (m *mockQueueProcessor) ProcessBatch(ctx context.Context) (*syncqueue.BatchResult, error) {
	if m.processBatchFn != nil {
		return m.processBatchFn(ctx)
	}
	return &syncqueue.BatchResult{}, nil
}

type mockBackfiller struct {
	runFn func(ctx context.Context, userID string) (*syncengine.BackfillResult, error)
}

func (m *mockBackfiller) Run(ctx context.Context, userID string) (*syncengine.BackfillResult, error) {
	if m.runFn != nil {
		return m.runFn(ctx, userID)
	}
	return &syncengine.BackfillResult{}, nil
}

// --- compile-time interface checks ---
var _ QueueProcessorInterface = (*mockQueueProcessor)(nil)
var _ BackfillerInterface = (*mockBackfiller)(nil)

// --- テスト ---

func TestProcessQueue_ReturnsBatchResult(t *testing.T) {
	processor := &mockQueueProcessor{
		processBatchFn: func(ctx context.Context) (*syncqueue.BatchResult, error) {
			return &syncqueue.BatchResult{Processed: 5, Succeeded: 4, Failed: 1}, nil
		},
	}
	h := NewAdminHandler(processor, &mockBackfiller{})

	rec := httptest.NewRecorder()
	h.ProcessQueue(rec, httptest.NewRequest(http.MethodPost, "/internal/sync/process", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp processQueueResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}
	if resp.Processed != 5 || resp.Succeeded != 4 || resp.Failed != 1 {
		t.Errorf("result = %+v, want 5/4/1", resp)
	}
}

func TestBackfill_RunsForRequestedUser(t *testing.T) {
	var requestedUser string
	backfiller := &mockBackfiller{
		runFn: func(ctx context.Context, userID string) (*syncengine.BackfillResult, error) {
			requestedUser = userID
			return &syncengine.BackfillResult{Total: 3, Updated: 2, Failed: 1}, nil
		},
	}
	h := NewAdminHandler(&mockQueueProcessor{}, backfiller)

	body := strings.NewReader(`{"user_id":"user-1"}`)
	rec := httptest.NewRecorder()
	h.Backfill(rec, httptest.NewRequest(http.MethodPost, "/internal/vendors/backfill", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if requestedUser != "user-1" {
		t.Errorf("requested user = %q, want %q", requestedUser, "user-1")
	}

	var resp backfillResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 3 || resp.Updated != 2 || resp.Failed != 1 {
		t.Errorf("result = %+v, want 3/2/1", resp)
	}
}

func TestBackfill_MissingUserID_Returns400(t *testing.T) {
	h := NewAdminHandler(&mockQueueProcessor{}, &mockBackfiller{})

	body := strings.NewReader(`{}`)
	rec := httptest.NewRecorder()
	h.Backfill(rec, httptest.NewRequest(http.MethodPost, "/internal/vendors/backfill", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestBackfill_InvalidJSON_Returns400(t *testing.T) {
	h := NewAdminHandler(&mockQueueProcessor{}, &mockBackfiller{})

	body := strings.NewReader(`not-json`)
	rec := httptest.NewRecorder()
	h.Backfill(rec, httptest.NewRequest(http.MethodPost, "/internal/vendors/backfill", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestBackfill_NotConnected_Returns400(t *testing.T) {
	backfiller := &mockBackfiller{
		runFn: func(ctx context.Context, userID string) (*syncengine.BackfillResult, error) {
			return nil, syncengine.ErrNotConnected
		},
	}
	h := NewAdminHandler(&mockQueueProcessor{}, backfiller)

	body := strings.NewReader(`{"user_id":"user-1"}`)
	rec := httptest.NewRecorder()
	h.Backfill(rec, httptest.NewRequest(http.MethodPost, "/internal/vendors/backfill", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
