// Package syncqueue は同期キューのバッチ処理ワーカーを提供する。
// 定期的にpendingエントリを取得し、ユーザーごとに同期エンジンを起動する。
package syncqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/genba/internal/repository"
	"github.com/hitoshi/genba/internal/sync"
)

// Syncer はユーザー1人分の同期実行のインターフェース。
// sync.Engineが実装する。テスト時にモックに差し替え可能。
type Syncer interface {
	SyncUser(ctx context.Context, userID string) (*sync.Result, error)
}

// QueueMetricsRecorder はキュー処理メトリクスの記録インターフェース。
type QueueMetricsRecorder interface {
	RecordQueueProcessed(succeeded, failed int)
}

// BatchResult はバッチ1回分の処理結果。
type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
}

// Processor は同期キューのバッチオーケストレーター。
// SyncQueueEntryの状態遷移の唯一の書き込み元。
//
// エントリはcreated_at昇順（古い順）で処理し、ユーザーから見たデータ鮮度の
// 公平性を保つ。バッチ内の処理は厳密に逐次であり、Procore側のレート制限に
// 対する同時負荷をバッチサイズではなく1に制限する（スループットより
// バースト負荷の抑制を優先する設計）。
type Processor struct {
	queueRepo repository.SyncQueueRepository
	syncer    Syncer
	metrics   QueueMetricsRecorder
	logger    *slog.Logger
	limit     int
}

// NewProcessor はProcessorを生成する。metricsはnilでもよい。
// limitが0以下の場合はデフォルト値50を使用する。
func NewProcessor(
	queueRepo repository.SyncQueueRepository,
	syncer Syncer,
	metrics QueueMetricsRecorder,
	logger *slog.Logger,
	limit int,
) *Processor {
	if limit <= 0 {
		limit = 50
	}
	return &Processor{
		queueRepo: queueRepo,
		syncer:    syncer,
		metrics:   metrics,
		logger:    logger,
		limit:     limit,
	}
}

// Start はティッカーでバッチ処理を定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Processor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("同期キュープロセッサを開始しました",
		slog.Duration("interval", interval),
		slog.Int("batch_limit", p.limit),
	)

	// 起動直後に1回実行
	if _, err := p.ProcessBatch(ctx); err != nil {
		p.logger.Error("同期バッチの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("同期キュープロセッサを停止しました")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("同期バッチの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ProcessBatch はpendingエントリを最大limit件、古い順に逐次処理する。
//
// 各エントリの状態遷移:
//
//	pending → processing → completed（成功、completed_at設定、error_messageクリア）
//	pending → processing → failed（失敗、completed_atとerror_message設定）
//
// processingへの遷移は条件付きUPDATEによるclaimで行い、並行する
// プロセッサ実行が同じエントリを二重処理することを防ぐ。
// claimに失敗したエントリ（他のプロセッサが取得済み）はスキップする。
func (p *Processor) ProcessBatch(ctx context.Context) (*BatchResult, error) {
	start := time.Now()

	entries, err := p.queueRepo.ListPending(ctx, p.limit)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		p.logger.Info("処理対象の同期リクエストはありません")
		return &BatchResult{}, nil
	}

	p.logger.Info("同期バッチを開始します",
		slog.Int("pending_count", len(entries)),
	)

	result := &BatchResult{}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		claimed, err := p.queueRepo.Claim(ctx, entry.UserID)
		if err != nil {
			p.logger.Error("同期キューエントリのclaimに失敗しました",
				slog.String("user_id", entry.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !claimed {
			p.logger.Info("エントリは他のプロセッサが取得済みのためスキップします",
				slog.String("user_id", entry.UserID),
			)
			continue
		}

		result.Processed++

		syncResult, err := p.syncer.SyncUser(ctx, entry.UserID)
		if err != nil {
			p.logger.Error("ユーザー同期に失敗しました",
				slog.String("user_id", entry.UserID),
				slog.String("error", err.Error()),
			)
			if markErr := p.queueRepo.MarkFailed(ctx, entry.UserID, err.Error()); markErr != nil {
				p.logger.Error("同期キューエントリの失敗記録に失敗しました",
					slog.String("user_id", entry.UserID),
					slog.String("error", markErr.Error()),
				)
			}
			result.Failed++
			continue
		}

		if markErr := p.queueRepo.MarkCompleted(ctx, entry.UserID); markErr != nil {
			p.logger.Error("同期キューエントリの完了記録に失敗しました",
				slog.String("user_id", entry.UserID),
				slog.String("error", markErr.Error()),
			)
		}

		p.logger.Info("ユーザー同期が完了しました",
			slog.String("user_id", entry.UserID),
			slog.Int("projects", syncResult.ProjectsCount),
			slog.Int("commitments", syncResult.CommitmentsCount),
		)
		result.Succeeded++
	}

	if p.metrics != nil {
		p.metrics.RecordQueueProcessed(result.Succeeded, result.Failed)
	}

	duration := time.Since(start)
	p.logger.Info("同期バッチが完了しました",
		slog.Int("processed", result.Processed),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}
