// Package user はユーザーの永続化層を提供します。
package user

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound は該当するユーザーが存在しないことを表します。
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail はメールアドレスが登録済みであることを表します。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername はユーザー名が使用済みであることを表します。
	ErrDuplicateUsername = errors.New("username already taken")
)

// User は登録済みユーザーを表します。HashedPassword には bcrypt ハッシュ
// のみを保持し、平文パスワードは保存しません。
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository はユーザーの保存・検索の操作を定義します。
type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, hashedPassword string) error
}
