package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/genba/internal/model"
	"github.com/hitoshi/genba/internal/procore"
	"github.com/hitoshi/genba/internal/repository"
)

// ErrNotConnected はユーザーがProcoreに未接続であることを表す。
var ErrNotConnected = errors.New("sync: procore not connected")

// TokenProvider はエンジンが必要とするトークン操作のインターフェース。
// auth.TokenServiceが実装する。
type TokenProvider interface {
	// Tokens は保存済みトークンを返す。未接続の場合はnilを返す。
	Tokens(ctx context.Context, userID string) (*model.OAuthToken, error)
	// Refresh はトークンをリフレッシュし、新しいペアを永続化して返す。
	Refresh(ctx context.Context, userID, refreshToken string) (*procore.TokenPair, error)
}

// MetricsRecorder は同期メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordSyncSuccess()
	RecordSyncFailure()
	RecordSyncLatency(d time.Duration)
	RecordProjectsUpserted(count int)
	RecordCommitmentsUpserted(count int)
}

// Result は同期1回分の処理件数。
type Result struct {
	ProjectsCount    int
	CommitmentsCount int
}

// Engine はProcoreからローカルストアへの照合同期を実行する。
// Project/Subcontractレコードの唯一の書き込み元。
//
// 同期は2ステージのパイプラインで行う:
//
//	ステージ1: プロジェクト一覧を取得し、procore_project_idをキーにUPSERTする
//	ステージ2: コミットされた各プロジェクトについてコミットメントを取得し、
//	           ベンダーを解決してprocore_commitment_idをキーにUPSERTする
//
// ステージ2はステージ1の完了後に実行する（コミットメントの外部キーが
// ローカルのプロジェクトIDに依存するため）。
type Engine struct {
	api         RemoteAPI
	tokens      TokenProvider
	projectRepo repository.ProjectRepository
	subRepo     repository.SubcontractRepository
	metrics     MetricsRecorder
	logger      *slog.Logger
	companyID   string
}

// NewEngine はEngineを生成する。metricsはnilでもよい。
func NewEngine(
	api RemoteAPI,
	tokens TokenProvider,
	projectRepo repository.ProjectRepository,
	subRepo repository.SubcontractRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
	companyID string,
) *Engine {
	return &Engine{
		api:         api,
		tokens:      tokens,
		projectRepo: projectRepo,
		subRepo:     subRepo,
		metrics:     metrics,
		logger:      logger,
		companyID:   companyID,
	}
}

// SyncUser は指定ユーザーのトークンで同期を1回実行する。
//
// 障害セマンティクス:
//   - トークン未接続、リフレッシュ失敗、プロジェクト一覧の取得失敗は致命的で、
//     同期全体をエラーで中断する。
//   - 1プロジェクト分のコミットメント取得失敗はログに記録してスキップする
//     （プロジェクト単位の部分障害許容）。
//   - 1行分のUPSERT失敗はログに記録してループを継続する。
//
// 戻り値の件数はUPSERTに成功した行数のみを数える。
func (e *Engine) SyncUser(ctx context.Context, userID string) (*Result, error) {
	start := time.Now()

	result, err := e.syncUser(ctx, userID)

	if e.metrics != nil {
		e.metrics.RecordSyncLatency(time.Since(start))
		if err != nil {
			e.metrics.RecordSyncFailure()
		} else {
			e.metrics.RecordSyncSuccess()
			e.metrics.RecordProjectsUpserted(result.ProjectsCount)
			e.metrics.RecordCommitmentsUpserted(result.CommitmentsCount)
		}
	}

	return result, err
}

func (e *Engine) syncUser(ctx context.Context, userID string) (*Result, error) {
	token, err := e.tokens.Tokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if token == nil {
		return nil, ErrNotConnected
	}

	client := NewAuthedClient(e.api, e.tokens, e.companyID, userID, procore.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	})
	resolver := NewVendorResolver(client, e.logger)

	e.logger.Info("同期を開始します",
		slog.String("user_id", userID),
		slog.String("company_id", e.companyID),
	)

	// ステージ1: プロジェクトの取得とUPSERT
	remoteProjects, projectsCount, err := e.syncProjects(ctx, client)
	if err != nil {
		return nil, err
	}

	// ステージ2: プロジェクトごとのコミットメント同期
	commitmentsCount, err := e.syncCommitments(ctx, client, resolver, remoteProjects)
	if err != nil {
		return nil, err
	}

	e.logger.Info("同期が完了しました",
		slog.String("user_id", userID),
		slog.Int("projects", projectsCount),
		slog.Int("commitments", commitmentsCount),
	)

	return &Result{ProjectsCount: projectsCount, CommitmentsCount: commitmentsCount}, nil
}

// syncProjects はプロジェクト一覧を取得し、1件ずつUPSERTする。
// 一覧の取得失敗は致命的。行単位のUPSERT失敗はログに記録して継続する。
func (e *Engine) syncProjects(ctx context.Context, client *AuthedClient) ([]procore.Project, int, error) {
	remoteProjects, err := client.ListProjects(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch project list: %w", err)
	}

	e.logger.Info("プロジェクト一覧を取得しました",
		slog.Int("count", len(remoteProjects)),
	)

	now := time.Now()
	upserted := 0
	for i := range remoteProjects {
		project := projectFromRemote(&remoteProjects[i], now)
		if _, err := e.projectRepo.Upsert(ctx, project); err != nil {
			e.logger.Error("プロジェクトのUPSERTに失敗しました",
				slog.String("procore_project_id", project.ProcoreProjectID),
				slog.String("name", project.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		upserted++
	}

	return remoteProjects, upserted, nil
}

// syncCommitments はコミット済みの各プロジェクトについてコミットメントを
// 取得・解決・UPSERTする。プロジェクト単位の取得失敗はスキップし、
// 認証エラー（リフレッシュ失敗・再試行後の401）のみ致命的として扱う。
func (e *Engine) syncCommitments(ctx context.Context, client *AuthedClient, resolver *VendorResolver, remoteProjects []procore.Project) (int, error) {
	total := 0

	for i := range remoteProjects {
		remoteProject := &remoteProjects[i]
		externalID := strconv.FormatInt(remoteProject.ID, 10)

		local, err := e.projectRepo.FindByProcoreID(ctx, externalID)
		if err != nil || local == nil {
			e.logger.Warn("ローカルプロジェクトが見つからないためコミットメント同期をスキップします",
				slog.String("procore_project_id", externalID),
			)
			continue
		}

		commitments, err := client.ListCommitments(ctx, remoteProject.ID)
		if err != nil {
			if isFatalSyncError(err) {
				return total, fmt.Errorf("failed to fetch commitments for project %s: %w", externalID, err)
			}
			e.logger.Error("コミットメント取得に失敗したためプロジェクトをスキップします",
				slog.String("procore_project_id", externalID),
				slog.String("error", err.Error()),
			)
			continue
		}

		for j := range commitments {
			commitment := &commitments[j]
			vendor := resolver.Resolve(ctx, commitment)

			sub := subcontractFromRemote(commitment, local.ID, vendor)
			if err := e.subRepo.Upsert(ctx, sub); err != nil {
				e.logger.Error("下請契約のUPSERTに失敗しました",
					slog.String("procore_commitment_id", sub.ProcoreCommitmentID),
					slog.String("error", err.Error()),
				)
				continue
			}
			total++
		}
	}

	return total, nil
}

// isFatalSyncError は同期全体を中断すべきエラーかどうかを判定する。
// 認証情報の失効（リフレッシュ失敗・再試行後の401）は続行しても
// 全リクエストが失敗するため致命的として扱う。
func isFatalSyncError(err error) bool {
	return errors.Is(err, ErrRemoteUnauthorized) || errors.Is(err, procore.ErrRefreshFailed)
}

// projectFromRemote はProcoreのプロジェクトをローカルモデルに変換する。
func projectFromRemote(rp *procore.Project, syncedAt time.Time) *model.Project {
	p := &model.Project{
		ProcoreProjectID: strconv.FormatInt(rp.ID, 10),
		Name:             rp.Name,
		Number:           rp.ProjectNumber,
		Status:           model.ProjectStatusFromActive(rp.Active),
		Address:          rp.Address,
		City:             rp.City,
		StateCode:        rp.StateCode,
		Zip:              rp.Zip,
		County:           rp.County,
		StartDate:        rp.StartDate,
		CompletionDate:   rp.CompletionDate,
		ProjectedFinish:  rp.ProjectedFinish,
		ProjectStage:     rp.StageName(),
		LastSyncAt:       syncedAt,
	}

	if rp.ProjectManager != nil {
		p.PMName = rp.ProjectManager.Email
	}
	if rp.EstimatedValue != nil {
		v := rp.EstimatedValue.Float64()
		p.EstimatedValue = &v
	}
	if rp.TotalValue != nil {
		v := rp.TotalValue.Float64()
		p.TotalValue = &v
	}

	return p
}

// subcontractFromRemote はProcoreのコミットメントをローカルモデルに変換する。
func subcontractFromRemote(c *procore.Commitment, projectID string, vendor ResolvedVendor) *model.Subcontract {
	return &model.Subcontract{
		ProcoreCommitmentID: strconv.FormatInt(c.ID, 10),
		ProjectID:           projectID,
		SubcontractorName:   vendor.Name,
		SubcontractorEmail:  vendor.Email,
		Title:               c.Title,
		Number:              c.Number,
		ContractValue:       ContractValue(c),
		ContractDate:        c.ExecutedDate,
		Status:              model.SubcontractStatusFromRemote(c.Status),
		Executed:            c.Executed,
	}
}
