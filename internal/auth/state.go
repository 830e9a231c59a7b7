package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrStateInvalid はstateトークンの署名・形式が不正であることを表す。
var ErrStateInvalid = errors.New("auth: invalid state token")

// ErrStateExpired はstateトークンの有効期限切れを表す。
// 発行から有効期限（デフォルト10分）を過ぎたstateは拒否される。
var ErrStateExpired = errors.New("auth: state token expired")

// StatePayload はOAuth stateトークンに載せる情報。
// ユーザーIDと認可完了後のリダイレクト先を運ぶ。
type StatePayload struct {
	UserID   string
	Redirect string
}

// stateClaims はstateトークンのJWTクレーム。
type stateClaims struct {
	Redirect string `json:"redirect"`
	jwt.RegisteredClaims
}

// StateIssuer はHMAC署名付きのOAuth stateトークンを発行・検証する。
// stateはOAuth認可開始時に発行され、コールバックで検証される。
// 改ざん不能な形でユーザーIDを運ぶため、コールバック自体は
// アプリケーションの認証セッションを必要としない。
type StateIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time // テスト用に差し替え可能
}

// NewStateIssuer はStateIssuerを生成する。
// ttlが0以下の場合はデフォルトの10分を使用する。
func NewStateIssuer(secret string, ttl time.Duration) *StateIssuer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue は指定ユーザー・リダイレクト先のstateトークンを発行する。
func (i *StateIssuer) Issue(userID, redirect string) (string, error) {
	issuedAt := i.now()
	claims := stateClaims{
		Redirect: redirect,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state token: %w", err)
	}
	return signed, nil
}

// Verify はstateトークンを検証し、ペイロードを返す。
// 期限切れはErrStateExpired、それ以外の検証失敗はErrStateInvalidを返す。
func (i *StateIssuer) Verify(state string) (*StatePayload, error) {
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrStateInvalid, err)
	}

	if claims.Subject == "" {
		return nil, ErrStateInvalid
	}

	return &StatePayload{
		UserID:   claims.Subject,
		Redirect: claims.Redirect,
	}, nil
}
