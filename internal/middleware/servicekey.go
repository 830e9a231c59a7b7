package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

const serviceKeyHeader = "X-Service-Key"

// NewServiceKeyMiddleware はX-Service-Keyヘッダーをサービスキーと照合する
// ミドルウェアを返す。内部エンドポイント（キュー処理、バックフィル）用。
// 比較はタイミング攻撃耐性のある定数時間比較で行う。
func NewServiceKeyMiddleware(serviceKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(serviceKeyHeader)
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(serviceKey)) != 1 {
				slog.Warn("サービスキー認証に失敗しました",
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
