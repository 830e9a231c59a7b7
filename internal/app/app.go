// Package app はアプリケーションの起動とワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/genba/internal/auth"
	"github.com/hitoshi/genba/internal/config"
	"github.com/hitoshi/genba/internal/database"
	"github.com/hitoshi/genba/internal/handler"
	"github.com/hitoshi/genba/internal/logger"
	"github.com/hitoshi/genba/internal/metrics"
	"github.com/hitoshi/genba/internal/middleware"
	"github.com/hitoshi/genba/internal/procore"
	"github.com/hitoshi/genba/internal/repository"
	syncengine "github.com/hitoshi/genba/internal/sync"
	"github.com/hitoshi/genba/internal/worker/syncqueue"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// components はserveモードとworkerモードで共有する依存関係の束。
type components struct {
	tokenService *auth.TokenService
	engine       *syncengine.Engine
	backfiller   *syncengine.Backfiller
	processor    *syncqueue.Processor
	queueRepo    repository.SyncQueueRepository
	oauth        *procore.OAuthClient
	collector    *metrics.Collector
	registry     *prometheus.Registry
}

// buildComponents はリポジトリからワーカーまでの依存関係をワイヤリングする。
func buildComponents(cfg *config.Config, db *sql.DB) *components {
	log := slog.Default()

	// 1. リポジトリの初期化
	tokenRepo := repository.NewPostgresTokenRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	subRepo := repository.NewPostgresSubcontractRepo(db)
	queueRepo := repository.NewPostgresSyncQueueRepo(db)

	// 2. Procoreクライアントの初期化
	oauthClient := procore.NewOAuthClient(procore.OAuthConfig{
		ClientID:     cfg.ProcoreClientID,
		ClientSecret: cfg.ProcoreClientSecret,
		RedirectURL:  cfg.ProcoreRedirectURL,
		AuthorizeURL: cfg.ProcoreAuthorizeURL,
		TokenURL:     cfg.ProcoreTokenURL,
	}, &http.Client{Timeout: cfg.RemoteTimeout}, log)

	apiClient := procore.NewClient(
		&http.Client{Timeout: cfg.RemoteTimeout},
		cfg.ProcoreBaseURL,
		cfg.RemoteRatePerSec,
		cfg.RemoteRateBurst,
		log,
	)
	apiClient.SetPageSize(cfg.SyncPageSize)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	tokenService := auth.NewTokenService(oauthClient, tokenRepo, collector, log)

	engine := syncengine.NewEngine(
		apiClient, tokenService, projectRepo, subRepo,
		collector, log, cfg.ProcoreCompanyID,
	)
	backfiller := syncengine.NewBackfiller(
		apiClient, tokenService, subRepo, log, cfg.ProcoreCompanyID,
	)
	processor := syncqueue.NewProcessor(
		queueRepo, engine, collector, log, cfg.SyncBatchLimit,
	)

	return &components{
		tokenService: tokenService,
		engine:       engine,
		backfiller:   backfiller,
		processor:    processor,
		queueRepo:    queueRepo,
		oauth:        oauthClient,
		collector:    collector,
		registry:     registry,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 依存関係のワイヤリング
	c := buildComponents(cfg, db)

	stateIssuer := auth.NewStateIssuer(cfg.StateSecret, cfg.StateTTL)

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		AuthJWTSecret: []byte(cfg.AuthJWTSecret),
		ServiceKey:    cfg.ServiceKey,
		RateLimiter:   rateLimiter,
		Logger:        slog.Default(),

		TokenConnector: c.tokenService,
		StateManager:   stateIssuer,
		OAuth:          c.oauth,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL: cfg.BaseURL,
		},

		SyncService: c.engine,
		SyncQueue:   c.queueRepo,

		QueueProcessor: c.processor,
		Backfiller:     c.backfiller,

		DB:       db,
		Gatherer: c.registry,
	}

	router := handler.NewRouter(deps)

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、同期キュープロセッサを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 依存関係のワイヤリング
	c := buildComponents(cfg, db)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("batch_limit", cfg.SyncBatchLimit),
	)

	// 同期キュープロセッサをメインgoroutineで実行（ブロッキング）
	c.processor.Start(ctx, cfg.SyncInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
