package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/genba/internal/model"
)

// PostgresSubcontractRepo はPostgreSQLを使用した下請契約リポジトリ。
type PostgresSubcontractRepo struct {
	db *sql.DB
}

// NewPostgresSubcontractRepo はPostgresSubcontractRepoを生成する。
func NewPostgresSubcontractRepo(db *sql.DB) *PostgresSubcontractRepo {
	return &PostgresSubcontractRepo{db: db}
}

// FindByProcoreID はprocore_commitment_idで下請契約を検索する。見つからない場合はnilを返す。
func (r *PostgresSubcontractRepo) FindByProcoreID(ctx context.Context, procoreCommitmentID string) (*model.Subcontract, error) {
	s := &model.Subcontract{}
	var email, title, number, contractDate sql.NullString
	var contractValue sql.NullFloat64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, procore_commitment_id, project_id, subcontractor_name,
		        subcontractor_email, title, number, contract_value,
		        contract_date, status, executed, last_updated_at, created_at
		 FROM subcontracts WHERE procore_commitment_id = $1`,
		procoreCommitmentID,
	).Scan(
		&s.ID, &s.ProcoreCommitmentID, &s.ProjectID, &s.SubcontractorName,
		&email, &title, &number, &contractValue,
		&contractDate, &s.Status, &s.Executed, &s.LastUpdatedAt, &s.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("下請契約の取得に失敗しました: %w", err)
	}

	s.SubcontractorEmail = nullStringValue(email)
	s.Title = nullStringValue(title)
	s.Number = nullStringValue(number)
	s.ContractDate = nullStringValue(contractDate)
	s.ContractValue = nullFloat64Value(contractValue)

	return s, nil
}

// Upsert は下請契約を冪等にUPSERTする（キー = procore_commitment_id）。
func (r *PostgresSubcontractRepo) Upsert(ctx context.Context, sub *model.Subcontract) error {
	id := sub.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subcontracts (
		    id, procore_commitment_id, project_id, subcontractor_name,
		    subcontractor_email, title, number, contract_value,
		    contract_date, status, executed, last_updated_at, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		 ON CONFLICT (procore_commitment_id) DO UPDATE SET
		    project_id = EXCLUDED.project_id,
		    subcontractor_name = EXCLUDED.subcontractor_name,
		    subcontractor_email = EXCLUDED.subcontractor_email,
		    title = EXCLUDED.title,
		    number = EXCLUDED.number,
		    contract_value = EXCLUDED.contract_value,
		    contract_date = EXCLUDED.contract_date,
		    status = EXCLUDED.status,
		    executed = EXCLUDED.executed,
		    last_updated_at = now()`,
		id, sub.ProcoreCommitmentID, sub.ProjectID, sub.SubcontractorName,
		nullString(sub.SubcontractorEmail), nullString(sub.Title),
		nullString(sub.Number), nullFloat64(sub.ContractValue),
		nullString(sub.ContractDate), sub.Status, sub.Executed,
	)
	if err != nil {
		return fmt.Errorf("下請契約のUPSERTに失敗しました: %w", err)
	}
	return nil
}

// ListUnknownVendor はベンダー未解決の下請契約を
// 所属プロジェクトのProcore ID付きで返す。
func (r *PostgresSubcontractRepo) ListUnknownVendor(ctx context.Context) ([]UnknownVendorSubcontract, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.procore_commitment_id, p.procore_project_id
		 FROM subcontracts s
		 INNER JOIN projects p ON s.project_id = p.id
		 WHERE s.subcontractor_name = $1
		 ORDER BY s.created_at ASC`,
		model.UnknownVendorName,
	)
	if err != nil {
		return nil, fmt.Errorf("ベンダー未解決の下請契約の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []UnknownVendorSubcontract
	for rows.Next() {
		var s UnknownVendorSubcontract
		if err := rows.Scan(&s.ID, &s.ProcoreCommitmentID, &s.ProcoreProjectID); err != nil {
			return nil, fmt.Errorf("ベンダー未解決の下請契約の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ベンダー未解決の下請契約の走査に失敗しました: %w", err)
	}

	return subs, nil
}

// UpdateVendor は下請契約のベンダー名・メールを更新する。
func (r *PostgresSubcontractRepo) UpdateVendor(ctx context.Context, id, name, email string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subcontracts SET
		    subcontractor_name = $2,
		    subcontractor_email = $3,
		    last_updated_at = now()
		 WHERE id = $1`,
		id, name, nullString(email),
	)
	if err != nil {
		return fmt.Errorf("ベンダー情報の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SubcontractRepository = (*PostgresSubcontractRepo)(nil)
