// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/genba/internal/model"
)

// TokenRepository はProcore OAuthトークンの永続化インターフェース。
type TokenRepository interface {
	// FindByUserID は指定ユーザーのトークンを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.OAuthToken, error)

	// Upsert はトークンペアを冪等にUPSERTする（キー = user_id）。
	// 初回接続時とリフレッシュによるローテーションの両方で使用する。
	Upsert(ctx context.Context, token *model.OAuthToken) error
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByProcoreID はprocore_project_idでプロジェクトを検索する。
	// 見つからない場合はnilを返す。
	FindByProcoreID(ctx context.Context, procoreProjectID string) (*model.Project, error)

	// Upsert はプロジェクトを冪等にUPSERTする（キー = procore_project_id）。
	// ローカルの主キーを返す。既存行の場合はupdated_atとミラー項目のみ更新し、
	// created_atとidは維持される。
	Upsert(ctx context.Context, project *model.Project) (string, error)
}

// UnknownVendorSubcontract はベンダー未解決の下請契約と
// 所属プロジェクトのProcore IDを結合した行。バックフィルで使用する。
type UnknownVendorSubcontract struct {
	ID                  string
	ProcoreCommitmentID string
	ProcoreProjectID    string
}

// SubcontractRepository は下請契約データの永続化インターフェース。
type SubcontractRepository interface {
	// FindByProcoreID はprocore_commitment_idで下請契約を検索する。
	// 見つからない場合はnilを返す。
	FindByProcoreID(ctx context.Context, procoreCommitmentID string) (*model.Subcontract, error)

	// Upsert は下請契約を冪等にUPSERTする（キー = procore_commitment_id）。
	Upsert(ctx context.Context, sub *model.Subcontract) error

	// ListUnknownVendor はsubcontractor_nameがプレースホルダーのままの
	// 下請契約を、所属プロジェクトのProcore ID付きで返す。
	ListUnknownVendor(ctx context.Context) ([]UnknownVendorSubcontract, error)

	// UpdateVendor は下請契約のベンダー名・メールを更新し、
	// last_updated_atを現在時刻に設定する。
	UpdateVendor(ctx context.Context, id, name, email string) error
}

// SyncQueueRepository は同期キューの永続化インターフェース。
// 状態遷移（pending → processing → completed | failed）の唯一の書き込み元。
type SyncQueueRepository interface {
	// Enqueue は指定ユーザーの同期リクエストを登録する。
	// 既存エントリがある場合はpendingに戻し、created_atを現在時刻に更新する。
	Enqueue(ctx context.Context, userID string) error

	// ListPending はpending状態のエントリをcreated_at昇順（古い順）で最大limit件返す。
	ListPending(ctx context.Context, limit int) ([]*model.SyncQueueEntry, error)

	// Claim はエントリをpendingからprocessingへ条件付きで遷移させる。
	// すでに他のプロセッサに取得されている場合はfalseを返す。
	Claim(ctx context.Context, userID string) (bool, error)

	// MarkCompleted はエントリをcompletedに遷移させ、completed_atを設定し、
	// error_messageをクリアする。
	MarkCompleted(ctx context.Context, userID string) error

	// MarkFailed はエントリをfailedに遷移させ、completed_atとerror_messageを設定する。
	MarkFailed(ctx context.Context, userID, errorMessage string) error
}
