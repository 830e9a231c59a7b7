package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/genba/internal/middleware"
	syncengine "github.com/hitoshi/genba/internal/sync"
)

const testJWTSecret = "test-jwt-secret"

func signTestJWT(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test JWT: %v", err)
	}
	return signed
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rateLimiter.Stop)

	deps := &RouterDeps{
		AuthJWTSecret: []byte(testJWTSecret),
		ServiceKey:    "test-service-key",
		RateLimiter:   rateLimiter,
		Logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),

		TokenConnector: &mockTokenConnector{},
		StateManager:   &mockStateManager{},
		OAuth:          &mockURLBuilder{},
		AuthConfig:     AuthHandlerConfig{BaseURL: "https://app.example.com"},

		SyncService: &mockSyncService{
			syncUserFn: func(ctx context.Context, userID string) (*syncengine.Result, error) {
				return &syncengine.Result{ProjectsCount: 1}, nil
			},
		},
		SyncQueue: &mockEnqueuer{},

		QueueProcessor: &mockQueueProcessor{},
		Backfiller:     &mockBackfiller{},
	}

	return NewRouter(deps)
}

func TestRouter_Health_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_TriggerSync_RequiresJWT(t *testing.T) {
	router := newTestRouter(t)

	// Authorizationヘッダーなし
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without JWT = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// 有効なJWT
	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer "+signTestJWT(t, "user-1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with JWT = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_TriggerSync_RejectsForgedJWT(t *testing.T) {
	router := newTestRouter(t)

	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("failed to sign forged JWT: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRouter_Callback_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/procore/callback?code=c&state=s", nil))

	// コールバックはJWTなしで到達でき、リダイレクトを返すこと
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
}

func TestRouter_InternalEndpoints_RequireServiceKey(t *testing.T) {
	router := newTestRouter(t)

	paths := []string{"/internal/sync/process", "/internal/vendors/backfill"}

	for _, path := range paths {
		// サービスキーなし
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s status without key = %d, want %d", path, rec.Code, http.StatusForbidden)
		}

		// 不正なサービスキー
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("X-Service-Key", "wrong-key")
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s status with wrong key = %d, want %d", path, rec.Code, http.StatusForbidden)
		}
	}

	// 正しいサービスキー
	req := httptest.NewRequest(http.MethodPost, "/internal/sync/process", nil)
	req.Header.Set("X-Service-Key", "test-service-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with correct key = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_UserJWT_DoesNotGrantInternalAccess(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/sync/process", nil)
	req.Header.Set("Authorization", "Bearer "+signTestJWT(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
