// Package model はドメインモデルを定義する。
package model

import "time"

// OAuthToken はユーザーごとのProcoreアクセストークン/リフレッシュトークンの組を表す。
// ユーザーIDごとに最大1レコード（UPSERTキー = UserID）。
// リフレッシュのたびに両トークンが書き換わる（Procoreはリフレッシュトークンを
// 使用のたびにローテーションするため、古いリフレッシュトークンは即座に無効になる）。
type OAuthToken struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}
