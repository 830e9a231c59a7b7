package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/genba/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// FindByProcoreID はprocore_project_idでプロジェクトを検索する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByProcoreID(ctx context.Context, procoreProjectID string) (*model.Project, error) {
	p := &model.Project{}
	var number, pmName, address, city, stateCode, zip, county sql.NullString
	var startDate, completionDate, projectedFinish, projectStage sql.NullString
	var estimatedValue, totalValue sql.NullFloat64
	var lastSyncAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, procore_project_id, name, number, status, pm_name,
		        address, city, state_code, zip, county,
		        start_date, completion_date, projected_finish,
		        estimated_value, total_value, project_stage,
		        last_sync_at, created_at, updated_at
		 FROM projects WHERE procore_project_id = $1`,
		procoreProjectID,
	).Scan(
		&p.ID, &p.ProcoreProjectID, &p.Name, &number, &p.Status, &pmName,
		&address, &city, &stateCode, &zip, &county,
		&startDate, &completionDate, &projectedFinish,
		&estimatedValue, &totalValue, &projectStage,
		&lastSyncAt, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}

	p.Number = nullStringValue(number)
	p.PMName = nullStringValue(pmName)
	p.Address = nullStringValue(address)
	p.City = nullStringValue(city)
	p.StateCode = nullStringValue(stateCode)
	p.Zip = nullStringValue(zip)
	p.County = nullStringValue(county)
	p.StartDate = nullStringValue(startDate)
	p.CompletionDate = nullStringValue(completionDate)
	p.ProjectedFinish = nullStringValue(projectedFinish)
	p.ProjectStage = nullStringValue(projectStage)
	p.EstimatedValue = nullFloat64Value(estimatedValue)
	p.TotalValue = nullFloat64Value(totalValue)
	if lastSyncAt.Valid {
		p.LastSyncAt = lastSyncAt.Time
	}

	return p, nil
}

// Upsert はプロジェクトを冪等にUPSERTする（キー = procore_project_id）。
// ローカルの主キーを返す。同一のリモートデータで再実行しても、
// タイムスタンプ以外の行内容は変化しない。
func (r *PostgresProjectRepo) Upsert(ctx context.Context, project *model.Project) (string, error) {
	id := project.ID
	if id == "" {
		id = uuid.New().String()
	}

	var localID string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO projects (
		    id, procore_project_id, name, number, status, pm_name,
		    address, city, state_code, zip, county,
		    start_date, completion_date, projected_finish,
		    estimated_value, total_value, project_stage,
		    last_sync_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		           $12, $13, $14, $15, $16, $17, $18, now(), now())
		 ON CONFLICT (procore_project_id) DO UPDATE SET
		    name = EXCLUDED.name,
		    number = EXCLUDED.number,
		    status = EXCLUDED.status,
		    pm_name = EXCLUDED.pm_name,
		    address = EXCLUDED.address,
		    city = EXCLUDED.city,
		    state_code = EXCLUDED.state_code,
		    zip = EXCLUDED.zip,
		    county = EXCLUDED.county,
		    start_date = EXCLUDED.start_date,
		    completion_date = EXCLUDED.completion_date,
		    projected_finish = EXCLUDED.projected_finish,
		    estimated_value = EXCLUDED.estimated_value,
		    total_value = EXCLUDED.total_value,
		    project_stage = EXCLUDED.project_stage,
		    last_sync_at = EXCLUDED.last_sync_at,
		    updated_at = now()
		 RETURNING id`,
		id, project.ProcoreProjectID, project.Name,
		nullString(project.Number), project.Status, nullString(project.PMName),
		nullString(project.Address), nullString(project.City),
		nullString(project.StateCode), nullString(project.Zip), nullString(project.County),
		nullString(project.StartDate), nullString(project.CompletionDate),
		nullString(project.ProjectedFinish),
		nullFloat64(project.EstimatedValue), nullFloat64(project.TotalValue),
		nullString(project.ProjectStage), project.LastSyncAt,
	).Scan(&localID)
	if err != nil {
		return "", fmt.Errorf("プロジェクトのUPSERTに失敗しました: %w", err)
	}

	return localID, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullFloat64 は*float64をsql.NullFloat64に変換する。
func nullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// nullFloat64Value はsql.NullFloat64から*float64を取得する。
func nullFloat64Value(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
