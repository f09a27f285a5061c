package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// 一意制約違反 (unique_violation) のSQLSTATEコード。
const uniqueViolationCode = "23505"

// PostgresRepository は PostgreSQL 上の users テーブルを扱います。
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository はユーザーリポジトリを作成します。
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create はユーザーを登録します。メールアドレス・ユーザー名の一意制約に
// 違反した場合は ErrDuplicateEmail / ErrDuplicateUsername を返します。
func (r *PostgresRepository) Create(ctx context.Context, u *User) (*User, error) {
	query :=
		`INSERT INTO users (email, username, hashed_password)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		u.Email, u.Username, u.HashedPassword).Scan(&u.ID, &u.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			switch pgErr.ConstraintName {
			case "users_email_key":
				return nil, ErrDuplicateEmail
			case "users_username_key":
				return nil, ErrDuplicateUsername
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

// FindByEmail はメールアドレスでユーザーを検索します。
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findBy(ctx, "email", email)
}

// FindByUsername はユーザー名でユーザーを検索します。
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *PostgresRepository) findBy(ctx context.Context, column, value string) (*User, error) {
	query := fmt.Sprintf(
		`SELECT id, email, username, hashed_password, created_at FROM users
		 WHERE %s = $1
		 `, column)

	u := &User{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&u.ID, &u.Email, &u.Username, &u.HashedPassword, &u.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

// UpdatePassword は保存済みのパスワードハッシュを置き換えます。
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, hashedPassword string) error {
	query :=
		`UPDATE users SET hashed_password = $2
		 WHERE id = $1
		 `

	result, err := r.db.ExecContext(ctx, query, id, hashedPassword)
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
