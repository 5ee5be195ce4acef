package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/barry/paywifi/internal/model"
)

// PostgresAccessRepo はPostgreSQLを使用したWi-Fiアクセス状態リポジトリ。
// 書き込みはPostgresActivationRepoのトランザクション内でのみ行う。
type PostgresAccessRepo struct {
	db *sql.DB
}

// NewPostgresAccessRepo はPostgresAccessRepoを生成する。
func NewPostgresAccessRepo(db *sql.DB) *PostgresAccessRepo {
	return &PostgresAccessRepo{db: db}
}

// FindByUserID は指定ユーザーのアクセス状態を取得する。見つからない場合はnilを返す。
func (r *PostgresAccessRepo) FindByUserID(ctx context.Context, userID string) (*model.WifiAccess, error) {
	access := &model.WifiAccess{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, active, start_date, end_date, last_ip, last_device_identifier, updated_at
		 FROM wifi_accesses WHERE user_id = $1`,
		userID,
	).Scan(&access.UserID, &access.Active, &access.StartDate, &access.EndDate,
		&access.LastIP, &access.LastDeviceIdentifier, &access.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクセス状態の取得に失敗しました: %w", err)
	}

	return access, nil
}
