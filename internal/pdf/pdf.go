// Package pdf はPDFファイルの保存・取得・配信機能を提供します。
// すべての操作は所有者のスコープ内に限定されます。
package pdf

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound は対象のレコードが存在しない、または呼び出し元の所有では
// ないことを表します。所有権の有無を外部から区別できないよう、
// どちらの場合も同じエラーを返します。
var ErrNotFound = errors.New("pdf not found")

// StoredFile はアップロードされた1つのPDFを表します。Filename は
// ユーザーが指定した元のファイル名、Filepath はサーバーが生成した
// 一意な保存名です。
type StoredFile struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Filepath    string    `json:"filepath"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	OwnerID     int64     `json:"owner_id"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Repository はPDFレコードの永続化操作を定義します。
type Repository interface {
	Insert(ctx context.Context, f *StoredFile) (*StoredFile, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*StoredFile, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID int64) (*StoredFile, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

// Error はAPIレスポンスに変換されるドメインエラーです。
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}
