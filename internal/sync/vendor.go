package sync

import (
	"context"
	"log/slog"

	"github.com/hitoshi/genba/internal/model"
	"github.com/hitoshi/genba/internal/procore"
)

// VendorAPI はベンダー解決に必要なリモート操作のインターフェース。
// AuthedClientが実装する。
type VendorAPI interface {
	GetVendor(ctx context.Context, vendorID int64) (*procore.Vendor, error)
}

// ResolvedVendor はベンダー解決の結果（表示名と連絡先メール）。
type ResolvedVendor struct {
	Name  string
	Email string
}

// vendorStep はベンダー解決チェーンの1ステップ。
// 解決できた場合はtrueを返し、以降のステップは評価されない。
type vendorStep func(ctx context.Context, c *procore.Commitment) (ResolvedVendor, bool)

// VendorResolver はコミットメントの埋め込みベンダー参照から
// 表示名・メールを解決する。解決は優先順のフォールバックチェーンで行う:
//
//  1. コミットメントに埋め込まれたベンダー名（追加の呼び出しなし）
//  2. ベンダーIDのみの場合はベンダー詳細を1回取得
//  3. コミットメントレベルのフォールバックフィールド（vendor_name等）
//  4. 何も解決できなければプレースホルダー "Unknown"（メールなし）
//
// この順序は同期の支配的コストである追加リモート呼び出しを最小化しつつ、
// 解決できる名前を最大化する。
type VendorResolver struct {
	api    VendorAPI
	logger *slog.Logger
}

// NewVendorResolver はVendorResolverを生成する。
func NewVendorResolver(api VendorAPI, logger *slog.Logger) *VendorResolver {
	return &VendorResolver{api: api, logger: logger}
}

// steps は解決ステップを優先順で返す。順序そのものが仕様であり、
// テストで独立に検証される。
func (r *VendorResolver) steps() []vendorStep {
	return []vendorStep{
		r.fromEmbedded,
		r.fromVendorFetch,
		r.fromCommitmentFields,
	}
}

// Resolve はコミットメントのベンダーを解決する。
// すべてのステップが失敗した場合はプレースホルダーを返す（エラーにはしない）。
func (r *VendorResolver) Resolve(ctx context.Context, c *procore.Commitment) ResolvedVendor {
	for _, step := range r.steps() {
		if resolved, ok := step(ctx, c); ok {
			return resolved
		}
	}
	return ResolvedVendor{Name: model.UnknownVendorName}
}

// fromEmbedded は埋め込みベンダー参照に名前が含まれている場合に解決する。
// 追加のリモート呼び出しは発生しない。
func (r *VendorResolver) fromEmbedded(_ context.Context, c *procore.Commitment) (ResolvedVendor, bool) {
	if c.Vendor == nil {
		return ResolvedVendor{}, false
	}
	name := c.Vendor.DisplayName()
	if name == "" {
		return ResolvedVendor{}, false
	}
	return ResolvedVendor{Name: name, Email: c.Vendor.ContactEmail()}, true
}

// fromVendorFetch はベンダーIDのみの場合にベンダー詳細を1回取得して解決する。
// 取得失敗はログに記録して次のステップへフォールバックする。
func (r *VendorResolver) fromVendorFetch(ctx context.Context, c *procore.Commitment) (ResolvedVendor, bool) {
	if c.Vendor == nil || c.Vendor.ID == 0 {
		return ResolvedVendor{}, false
	}

	vendor, err := r.api.GetVendor(ctx, c.Vendor.ID)
	if err != nil {
		r.logger.Warn("ベンダー詳細の取得に失敗しました",
			slog.Int64("vendor_id", c.Vendor.ID),
			slog.Int64("commitment_id", c.ID),
			slog.String("error", err.Error()),
		)
		return ResolvedVendor{}, false
	}

	name := vendor.DisplayName()
	if name == "" {
		return ResolvedVendor{}, false
	}
	return ResolvedVendor{Name: name, Email: vendor.ContactEmail()}, true
}

// fromCommitmentFields はコミットメントレベルのフォールバックフィールドから解決する。
func (r *VendorResolver) fromCommitmentFields(_ context.Context, c *procore.Commitment) (ResolvedVendor, bool) {
	if c.VendorName != "" {
		return ResolvedVendor{Name: c.VendorName}, true
	}
	if c.SubcontractorName != "" {
		return ResolvedVendor{Name: c.SubcontractorName}, true
	}
	return ResolvedVendor{}, false
}
