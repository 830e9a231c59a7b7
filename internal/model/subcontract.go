// Package model はドメインモデルを定義する。
package model

import "time"

// SubcontractStatus は下請契約の状態を表す。
type SubcontractStatus string

const (
	// SubcontractStatusDraft は下書き状態の契約。
	SubcontractStatusDraft SubcontractStatus = "Draft"
	// SubcontractStatusOutForSignature は署名待ちの契約。
	SubcontractStatusOutForSignature SubcontractStatus = "Out for Signature"
	// SubcontractStatusApproved は承認済み（執行済み）の契約。
	SubcontractStatusApproved SubcontractStatus = "Approved"
)

// SubcontractStatusFromRemote はProcoreのコミットメントステータスを
// ローカルの契約ステータスに変換する。マッピングは固定で、
// 未知のステータスはすべてDraftに落とす。
func SubcontractStatusFromRemote(remote string) SubcontractStatus {
	switch remote {
	case "Approved":
		return SubcontractStatusApproved
	case "Out for Signature", "Out For Signature":
		return SubcontractStatusOutForSignature
	default:
		return SubcontractStatusDraft
	}
}

// UnknownVendorName はベンダー解決にすべて失敗した場合のプレースホルダー名。
const UnknownVendorName = "Unknown"

// Subcontract はProcoreのコミットメントからミラーリングした下請契約を表す。
// ProcoreCommitmentIDがグローバルに一意な照合キー。
// 1件の契約はちょうど1件のProjectに属する（ProjectID外部キー）。
type Subcontract struct {
	ID                  string
	ProcoreCommitmentID string
	ProjectID           string
	SubcontractorName   string
	SubcontractorEmail  string
	Title               string
	Number              string
	ContractValue       *float64
	ContractDate        string
	Status              SubcontractStatus
	Executed            bool
	LastUpdatedAt       time.Time
	CreatedAt           time.Time
}
