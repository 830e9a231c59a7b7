package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/genba/internal/model"
)

// PostgresSyncQueueRepo はPostgreSQLを使用した同期キューリポジトリ。
type PostgresSyncQueueRepo struct {
	db *sql.DB
}

// NewPostgresSyncQueueRepo はPostgresSyncQueueRepoを生成する。
func NewPostgresSyncQueueRepo(db *sql.DB) *PostgresSyncQueueRepo {
	return &PostgresSyncQueueRepo{db: db}
}

// Enqueue は指定ユーザーの同期リクエストを登録する。
// 既存エントリがある場合はpendingに戻し、created_atを現在時刻に更新する。
// 処理中のエントリはpendingに戻さない（二重実行の防止）。
func (r *PostgresSyncQueueRepo) Enqueue(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (user_id, status, created_at, completed_at, error_message)
		 VALUES ($1, $2, now(), NULL, NULL)
		 ON CONFLICT (user_id) DO UPDATE SET
		    status = EXCLUDED.status,
		    created_at = now(),
		    completed_at = NULL,
		    error_message = NULL
		 WHERE sync_queue.status <> $3`,
		userID, model.SyncStatusPending, model.SyncStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("同期キューへの登録に失敗しました: %w", err)
	}
	return nil
}

// ListPending はpending状態のエントリをcreated_at昇順で最大limit件返す。
// 古い順に処理することでユーザーから見たデータ鮮度の公平性を保つ。
func (r *PostgresSyncQueueRepo) ListPending(ctx context.Context, limit int) ([]*model.SyncQueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, status, created_at, completed_at, error_message
		 FROM sync_queue
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		model.SyncStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("同期キューの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.SyncQueueEntry
	for rows.Next() {
		entry := &model.SyncQueueEntry{}
		var completedAt sql.NullTime
		var errorMessage sql.NullString

		if err := rows.Scan(&entry.UserID, &entry.Status, &entry.CreatedAt, &completedAt, &errorMessage); err != nil {
			return nil, fmt.Errorf("同期キューの読み取りに失敗しました: %w", err)
		}

		if completedAt.Valid {
			t := completedAt.Time
			entry.CompletedAt = &t
		}
		entry.ErrorMessage = nullStringValue(errorMessage)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("同期キューの走査に失敗しました: %w", err)
	}

	return entries, nil
}

// Claim はエントリをpendingからprocessingへ条件付きで遷移させる。
// WHERE句でstatus = pendingを条件にすることで、並行して走る
// プロセッサが同じエントリを二重に取得することを防ぐ。
func (r *PostgresSyncQueueRepo) Claim(ctx context.Context, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = $2
		 WHERE user_id = $1 AND status = $3`,
		userID, model.SyncStatusProcessing, model.SyncStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("同期キューエントリの取得遷移に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("同期キューエントリの更新行数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// MarkCompleted はエントリをcompletedに遷移させる。
func (r *PostgresSyncQueueRepo) MarkCompleted(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET
		    status = $2,
		    completed_at = now(),
		    error_message = NULL
		 WHERE user_id = $1`,
		userID, model.SyncStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("同期キューエントリの完了遷移に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed はエントリをfailedに遷移させ、エラーメッセージを記録する。
func (r *PostgresSyncQueueRepo) MarkFailed(ctx context.Context, userID, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET
		    status = $2,
		    completed_at = now(),
		    error_message = $3
		 WHERE user_id = $1`,
		userID, model.SyncStatusFailed, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("同期キューエントリの失敗遷移に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SyncQueueRepository = (*PostgresSyncQueueRepo)(nil)
