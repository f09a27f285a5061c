// Package token はセッショントークンとパスワードリセットトークンの発行・検証を提供します。
// どちらも署名付きJWTで、サーバー側に状態を持ちません。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken は署名不正・期限切れ・用途不一致など、検証失敗の全てを表します。
// 失敗理由は呼び出し側に区別させません。
var ErrInvalidToken = errors.New("invalid token")

// 用途クレームの値。セッショントークンとリセットトークンを相互に
// 受理しないための明示的なタグです。
const (
	purposeSession       = "session"
	purposePasswordReset = "password_reset"
)

// Claims はトークンのペイロードです。Subject にはセッションの場合は
// ユーザー名、リセットの場合はメールアドレスが入ります。
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Service はトークンの発行と検証を行います。
type Service struct {
	secret     []byte
	method     jwt.SigningMethod
	sessionTTL time.Duration
	resetTTL   time.Duration
}

// NewService はトークンサービスを作成します。algorithm はHMAC系
// (HS256, HS384, HS512) のみ受け付けます。
func NewService(secret string, algorithm string, sessionTTL, resetTTL time.Duration) (*Service, error) {
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}
	return &Service{
		secret:     []byte(secret),
		method:     method,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
	}, nil
}

// IssueSessionToken はユーザー名を主体とするセッショントークンを発行します。
func (s *Service) IssueSessionToken(username string) (string, error) {
	return s.issue(username, purposeSession, s.sessionTTL)
}

// VerifySessionToken はセッショントークンを検証し、ユーザー名を返します。
func (s *Service) VerifySessionToken(tokenString string) (string, error) {
	return s.verify(tokenString, purposeSession)
}

// IssueResetToken はメールアドレスを主体とするパスワードリセットトークンを発行します。
func (s *Service) IssueResetToken(email string) (string, error) {
	return s.issue(email, purposePasswordReset, s.resetTTL)
}

// VerifyResetToken はリセットトークンを検証し、メールアドレスを返します。
func (s *Service) VerifyResetToken(tokenString string) (string, error) {
	return s.verify(tokenString, purposePasswordReset)
}

func (s *Service) issue(subject, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(s.secret)
}

func (s *Service) verify(tokenString, purpose string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	// 用途が一致しないトークン（リセットトークンをセッションとして
	// 使う等）はここで弾く
	if claims.Purpose != purpose {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
