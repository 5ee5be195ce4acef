package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/barry/paywifi/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, first_name, last_name, phone_number, country,
	 is_business, company_name, max_devices_allowed,
	 hashed_password, is_active, is_admin, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.PhoneNumber, &user.Country,
		&user.IsBusiness, &user.CompanyName, &user.MaxDevicesAllowed,
		&user.HashedPassword, &user.IsActive, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByPhoneNumber は電話番号でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByPhoneNumber(ctx context.Context, phone string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone,
	))
	if err != nil {
		return nil, fmt.Errorf("電話番号によるユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, phone_number, country,
		  is_business, company_name, max_devices_allowed,
		  hashed_password, is_active, is_admin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		user.ID, user.FirstName, user.LastName, user.PhoneNumber, user.Country,
		user.IsBusiness, user.CompanyName, user.MaxDevicesAllowed,
		user.HashedPassword, user.IsActive, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateMaxDevices はユーザーのデバイス上限を更新する。
func (r *PostgresUserRepo) UpdateMaxDevices(ctx context.Context, userID string, max int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET max_devices_allowed = $2, updated_at = $3 WHERE id = $1`,
		userID, max, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("デバイス上限の更新に失敗しました: %w", err)
	}
	return nil
}
