// Package model はドメインモデルを定義する。
package model

import "time"

// ProjectStatus はプロジェクトの状態を表す。
// Procore側のactiveブール値から導出される。
type ProjectStatus string

const (
	// ProjectStatusActive は進行中のプロジェクト。
	ProjectStatusActive ProjectStatus = "Active"
	// ProjectStatusInactive は非アクティブなプロジェクト。
	ProjectStatusInactive ProjectStatus = "Inactive"
)

// ProjectStatusFromActive はProcoreのactiveブール値をProjectStatusに変換する。
func ProjectStatusFromActive(active bool) ProjectStatus {
	if active {
		return ProjectStatusActive
	}
	return ProjectStatusInactive
}

// Project はProcoreからミラーリングしたプロジェクトを表す。
// ProcoreProjectIDがグローバルに一意な照合キーであり、
// ローカルの主キー（ID）はUPSERTのキーには使用しない。
type Project struct {
	ID               string
	ProcoreProjectID string
	Name             string
	Number           string
	Status           ProjectStatus
	PMName           string
	Address          string
	City             string
	StateCode        string
	Zip              string
	County           string
	StartDate        string
	CompletionDate   string
	ProjectedFinish  string
	EstimatedValue   *float64
	TotalValue       *float64
	ProjectStage     string
	LastSyncAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
