// Package model はドメインモデルを定義する。
package model

import "time"

// SyncStatus は同期キューエントリの状態を表す。
// 状態遷移は pending → processing → completed | failed のみ許可される。
type SyncStatus string

const (
	// SyncStatusPending は未処理の同期リクエスト。
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusProcessing は処理中の同期リクエスト。
	SyncStatusProcessing SyncStatus = "processing"
	// SyncStatusCompleted は正常終了した同期リクエスト。
	SyncStatusCompleted SyncStatus = "completed"
	// SyncStatusFailed は失敗した同期リクエスト。エラーメッセージを保持する。
	SyncStatusFailed SyncStatus = "failed"
)

// SyncQueueEntry はユーザー1人分の未処理同期リクエストを表す。
// ユーザーごとに概念上1エントリであり、再同期のリクエストは
// 既存エントリをpendingに戻すことで表現する。
type SyncQueueEntry struct {
	UserID       string
	Status       SyncStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}
