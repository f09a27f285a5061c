package pdf

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepository は PostgreSQL 上の pdfs テーブルを扱います。
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository はPDFリポジトリを作成します。
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert はPDFレコードを登録します。
func (r *PostgresRepository) Insert(ctx context.Context, f *StoredFile) (*StoredFile, error) {
	query :=
		`INSERT INTO pdfs (filename, filepath, content_type, size, owner_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, uploaded_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		f.Filename, f.Filepath, f.ContentType, f.Size, f.OwnerID).Scan(&f.ID, &f.UploadedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return f, nil
}

// ListByOwner は所有者のPDFレコードを登録順で返します。
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*StoredFile, error) {
	query :=
		`SELECT id, filename, filepath, content_type, size, owner_id, uploaded_at FROM pdfs
		 WHERE owner_id = $1
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	files := []*StoredFile{}
	for rows.Next() {
		f := &StoredFile{}
		if err := rows.Scan(&f.ID, &f.Filename, &f.Filepath, &f.ContentType, &f.Size, &f.OwnerID, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return files, nil
}

// FindByIDAndOwner はIDと所有者でPDFレコードを検索します。IDが存在しない
// 場合も他人の所有である場合も、同じ ErrNotFound を返します。
func (r *PostgresRepository) FindByIDAndOwner(ctx context.Context, id, ownerID int64) (*StoredFile, error) {
	query :=
		`SELECT id, filename, filepath, content_type, size, owner_id, uploaded_at FROM pdfs
		 WHERE id = $1 AND owner_id = $2
		 `

	f := &StoredFile{}
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&f.ID, &f.Filename, &f.Filepath, &f.ContentType, &f.Size, &f.OwnerID, &f.UploadedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return f, nil
}

// Delete はIDと所有者でPDFレコードを削除します。
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID int64) error {
	query :=
		`DELETE FROM pdfs
		 WHERE id = $1 AND owner_id = $2
		 `

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
