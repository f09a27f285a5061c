// Package storage はアップロードされたバイナリの保存領域を抽象化します。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotExist は指定された名前のバイナリが存在しないことを表します。
var ErrNotExist = errors.New("blob does not exist")

// Storage はバイナリの保存・読み出し・削除の操作を定義します。
// name は Save 時にサービス側が生成した一意なファイル名で、
// パス区切りを含んではいけません。
type Storage interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(name string) (io.ReadSeekCloser, int64, error)
	Delete(name string) error
	Exists(name string) bool
}

// Local はローカルファイルシステム上の単一ディレクトリに保存する実装です。
type Local struct {
	root string
}

// NewLocal は保存先ディレクトリを作成し、ローカルストレージを返します。
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Local{root: root}, nil
}

// Save は name でバイナリを保存します。
func (l *Local) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}

// Open は保存済みバイナリを読み出し用に開き、サイズと共に返します。
func (l *Local) Open(name string) (io.ReadSeekCloser, int64, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotExist
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}

	return f, info.Size(), nil
}

// Delete はバイナリを削除します。存在しない場合もエラーにしません。
func (l *Local) Delete(name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists はバイナリが存在するかを返します。
func (l *Local) Exists(name string) bool {
	path, err := l.resolve(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// resolve は name を保存先パスに解決します。パストラバーサルを防ぐため、
// パス区切りや相対参照を含む名前は拒否します。
func (l *Local) resolve(name string) (string, error) {
	if name == "" {
		return "", errors.New("blob name is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid blob name: %q", name)
	}
	return filepath.Join(l.root, name), nil
}
