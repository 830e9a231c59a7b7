package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/genba/internal/model"
	"github.com/hitoshi/genba/internal/procore"
	"github.com/hitoshi/genba/internal/repository"
)

// BackfillResult はベンダーバックフィル1回分の処理件数。
type BackfillResult struct {
	Total   int
	Updated int
	Failed  int
}

// Backfiller はベンダー名がプレースホルダーのままの下請契約について、
// ベンダー解決を再試行する。メイン同期とは独立に実行され、
// フル再同期ではなく絞り込んだ集合（subcontractor_name = "Unknown"）のみを
// 対象とする。
//
// 解決順はメイン同期と同じフォールバックチェーンで、コミットメント詳細を
// 再取得し、必要ならベンダー詳細も取得する。
type Backfiller struct {
	api     RemoteAPI
	tokens  TokenProvider
	subRepo repository.SubcontractRepository
	logger  *slog.Logger

	companyID string
}

// NewBackfiller はBackfillerを生成する。
func NewBackfiller(
	api RemoteAPI,
	tokens TokenProvider,
	subRepo repository.SubcontractRepository,
	logger *slog.Logger,
	companyID string,
) *Backfiller {
	return &Backfiller{
		api:       api,
		tokens:    tokens,
		subRepo:   subRepo,
		logger:    logger,
		companyID: companyID,
	}
}

// Run は指定ユーザーのトークンでバックフィルを1回実行する。
// 1件分の解決・更新失敗はFailedに数えて継続する。
// 認証エラー（リフレッシュ失敗・再試行後の401）のみ致命的として中断する。
func (b *Backfiller) Run(ctx context.Context, userID string) (*BackfillResult, error) {
	token, err := b.tokens.Tokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if token == nil {
		return nil, ErrNotConnected
	}

	client := NewAuthedClient(b.api, b.tokens, b.companyID, userID, procore.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	})
	resolver := NewVendorResolver(client, b.logger)

	subs, err := b.subRepo.ListUnknownVendor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved subcontracts: %w", err)
	}

	b.logger.Info("ベンダーバックフィルを開始します",
		slog.Int("target_count", len(subs)),
	)

	result := &BackfillResult{Total: len(subs)}

	for _, sub := range subs {
		detail, err := client.GetCommitment(ctx, sub.ProcoreProjectID, sub.ProcoreCommitmentID)
		if err != nil {
			if isFatalSyncError(err) {
				return result, fmt.Errorf("failed to fetch commitment %s: %w", sub.ProcoreCommitmentID, err)
			}
			b.logger.Warn("コミットメント詳細の取得に失敗しました",
				slog.String("procore_commitment_id", sub.ProcoreCommitmentID),
				slog.String("error", err.Error()),
			)
			result.Failed++
			continue
		}

		vendor := resolver.Resolve(ctx, detail)
		if vendor.Name == model.UnknownVendorName {
			b.logger.Info("ベンダーを解決できませんでした",
				slog.String("procore_commitment_id", sub.ProcoreCommitmentID),
			)
			result.Failed++
			continue
		}

		if err := b.subRepo.UpdateVendor(ctx, sub.ID, vendor.Name, vendor.Email); err != nil {
			b.logger.Error("ベンダー情報の更新に失敗しました",
				slog.String("subcontract_id", sub.ID),
				slog.String("error", err.Error()),
			)
			result.Failed++
			continue
		}

		b.logger.Info("ベンダーを解決しました",
			slog.String("subcontract_id", sub.ID),
			slog.String("vendor_name", vendor.Name),
		)
		result.Updated++
	}

	b.logger.Info("ベンダーバックフィルが完了しました",
		slog.Int("total", result.Total),
		slog.Int("updated", result.Updated),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}
