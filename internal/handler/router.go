package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/genba/internal/metrics"
	"github.com/hitoshi/genba/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	AuthJWTSecret []byte
	ServiceKey    string
	RateLimiter   *middleware.RateLimiter
	Logger        *slog.Logger

	// OAuth接続フロー
	TokenConnector TokenConnector
	StateManager   StateManager
	OAuth          AuthorizeURLBuilder
	AuthConfig     AuthHandlerConfig

	// 同期
	SyncService SyncServiceInterface
	SyncQueue   SyncEnqueuer

	// 内部エンドポイント
	QueueProcessor QueueProcessorInterface
	Backfiller     BackfillerInterface

	// ヘルスチェックとメトリクス
	DB       *sql.DB
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → (グループごとに) Identity / ServiceKey → RateLimit
//
// コールバック（/auth/procore/callback）はProcoreからのリダイレクトで
// Authorizationヘッダーを持たないため、認証チェーンの外に配置する。
// ユーザーの同定はstateトークンで行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.TokenConnector, deps.StateManager, deps.OAuth, deps.AuthConfig)
	syncHandler := NewSyncHandler(deps.SyncService, deps.SyncQueue)
	adminHandler := NewAdminHandler(deps.QueueProcessor, deps.Backfiller)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.DB))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// Procoreからの認可コールバック
	r.Get("/auth/procore/callback", authHandler.Callback)

	// --- ユーザー認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.AuthJWTSecret))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/procore/connect", authHandler.Connect)

		r.Route("/api/sync", func(r chi.Router) {
			// POST /api/sync - 即時同期（トリガー専用レート制限を追加）
			r.With(deps.RateLimiter.SyncTriggerMiddleware()).Post("/", syncHandler.TriggerSync)
			r.Post("/enqueue", syncHandler.Enqueue)
		})
	})

	// --- サービスキー認証が必要な内部ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewServiceKeyMiddleware(deps.ServiceKey))

		r.Post("/internal/sync/process", adminHandler.ProcessQueue)
		r.Post("/internal/vendors/backfill", adminHandler.Backfill)
	})

	return r
}

// healthHandler はDB疎通を含むヘルスチェックハンドラーを返す。
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
