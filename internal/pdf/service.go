package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/yourusername/askpdf/internal/storage"
)

// DefaultMaxFileSize はアップロードサイズの上限（10MiB）です。
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

const allowedExtension = ".pdf"

// Service はPDFの保存・取得・削除・配信のビジネスロジックを担います。
// レコードとバイナリの両方を扱い、所有者スコープを強制します。
type Service struct {
	repo        Repository
	blobs       storage.Storage
	maxFileSize int64
	logger      *slog.Logger
}

// NewService はPDFサービスを作成します。maxFileSize が0以下の場合は
// DefaultMaxFileSize を使用します。
func NewService(repo Repository, blobs storage.Storage, maxFileSize int64, logger *slog.Logger) *Service {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Service{
		repo:        repo,
		blobs:       blobs,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Upload はアップロードされたファイルを検証し、バイナリとレコードを保存します。
// 拡張子が .pdf 以外、またはサイズ上限超過の場合はエラーを返します。
func (s *Service) Upload(ctx context.Context, file *multipart.FileHeader, ownerID int64) (*StoredFile, error) {
	if file == nil {
		return nil, newError("INVALID_INPUT", "PDF file is required", nil)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != allowedExtension {
		return nil, newError("UNSUPPORTED_TYPE", "Only PDF files are allowed", nil)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	// 元実装と同じく全体をバッファしてからサイズを検査する
	content, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if int64(len(content)) > s.maxFileSize {
		return nil, newError("FILE_TOO_LARGE", "File size exceeds 10MB limit", nil)
	}

	// 保存名はユーザー入力に依存しない一意な識別子を先頭に付ける
	storageName := uuid.NewString() + "_" + sanitizeFilename(file.Filename)

	if err := s.blobs.Save(ctx, storageName, content); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	record := &StoredFile{
		Filename:    file.Filename,
		Filepath:    storageName,
		ContentType: mimetype.Detect(content).String(),
		Size:        int64(len(content)),
		OwnerID:     ownerID,
	}

	stored, err := s.repo.Insert(ctx, record)
	if err != nil {
		// レコード登録に失敗したら孤立バイナリを残さない
		if cleanupErr := s.blobs.Delete(storageName); cleanupErr != nil {
			s.logger.ErrorContext(ctx, "failed to clean up orphaned blob",
				"name", storageName, "error", cleanupErr)
		}
		return nil, err
	}

	return stored, nil
}

// List は所有者のPDFレコードを登録順で返します。
func (s *Service) List(ctx context.Context, ownerID int64) ([]*StoredFile, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Get はIDと所有者でPDFレコードを返します。
func (s *Service) Get(ctx context.Context, id, ownerID int64) (*StoredFile, error) {
	return s.repo.FindByIDAndOwner(ctx, id, ownerID)
}

// Delete はバイナリとレコードの両方を削除します。バイナリが既に存在
// しない場合もレコードの削除は続行します。
func (s *Service) Delete(ctx context.Context, id, ownerID int64) error {
	file, err := s.repo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(file.Filepath); err != nil {
		return fmt.Errorf("failed to delete stored file: %w", err)
	}

	return s.repo.Delete(ctx, id, ownerID)
}

// OpenView は配信用にPDFレコードとバイナリを開きます。レコードは
// 存在してもバイナリが保存領域から消えている場合は ErrNotFound を
// 返します。
func (s *Service) OpenView(ctx context.Context, id, ownerID int64) (*StoredFile, io.ReadSeekCloser, int64, error) {
	file, err := s.repo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, nil, 0, err
	}

	if !s.blobs.Exists(file.Filepath) {
		return nil, nil, 0, ErrNotFound
	}

	reader, size, err := s.blobs.Open(file.Filepath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, 0, ErrNotFound
		}
		return nil, nil, 0, err
	}

	return file, reader, size, nil
}

// sanitizeFilename は元のファイル名から保存名に使える部分だけを残します。
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "file.pdf"
	}
	return base
}
