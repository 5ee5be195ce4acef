package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/barry/paywifi/internal/model"
)

// PostgresDeviceRepo はPostgreSQLを使用したデバイスリポジトリ。
type PostgresDeviceRepo struct {
	db *sql.DB
}

// NewPostgresDeviceRepo はPostgresDeviceRepoを生成する。
func NewPostgresDeviceRepo(db *sql.DB) *PostgresDeviceRepo {
	return &PostgresDeviceRepo{db: db}
}

const deviceColumns = `id, user_id, identifier, ip, user_agent, is_blocked, last_seen`

// FindByUserAndIdentifier はユーザーIDと端末識別子でデバイスを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresDeviceRepo) FindByUserAndIdentifier(ctx context.Context, userID, identifier string) (*model.Device, error) {
	device := &model.Device{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 AND identifier = $2`,
		userID, identifier,
	).Scan(&device.ID, &device.UserID, &device.Identifier, &device.IP,
		&device.UserAgent, &device.IsBlocked, &device.LastSeen)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("デバイスの検索に失敗しました: %w", err)
	}

	return device, nil
}

// Create はデバイスを作成する。作成後のIDをdevice.IDに設定する。
func (r *PostgresDeviceRepo) Create(ctx context.Context, device *model.Device) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO devices (user_id, identifier, ip, user_agent, is_blocked, last_seen)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		device.UserID, device.Identifier, device.IP, device.UserAgent,
		device.IsBlocked, device.LastSeen,
	).Scan(&device.ID)
	if err != nil {
		return fmt.Errorf("デバイスの作成に失敗しました: %w", err)
	}
	return nil
}

// Touch はlast_seen/ip/user_agentを更新する。
func (r *PostgresDeviceRepo) Touch(ctx context.Context, id int64, ip, userAgent string, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET ip = $2, user_agent = $3, last_seen = $4 WHERE id = $1`,
		id, ip, userAgent, seenAt,
	)
	if err != nil {
		return fmt.Errorf("デバイスの更新に失敗しました: %w", err)
	}
	return nil
}

// CountByUserID はユーザーのデバイス数を返す。
func (r *PostgresDeviceRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("デバイス数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListByUserID はユーザーのデバイスをlast_seen昇順（同値はID昇順）で返す。
// 先頭が最も古いデバイスになり、追い出し処理の削除順と一致する。
func (r *PostgresDeviceRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE user_id = $1 ORDER BY last_seen ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("デバイス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var devices []*model.Device
	for rows.Next() {
		device := &model.Device{}
		if err := rows.Scan(&device.ID, &device.UserID, &device.Identifier, &device.IP,
			&device.UserAgent, &device.IsBlocked, &device.LastSeen); err != nil {
			return nil, fmt.Errorf("デバイス行の読み取りに失敗しました: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デバイス一覧の走査に失敗しました: %w", err)
	}
	return devices, nil
}

// DeleteByID は指定IDのデバイスを削除する。
func (r *PostgresDeviceRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("デバイスの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserAndIdentifier はユーザーの特定デバイスを削除する。
// 削除された場合はtrueを返す。
func (r *PostgresDeviceRepo) DeleteByUserAndIdentifier(ctx context.Context, userID, identifier string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM devices WHERE user_id = $1 AND identifier = $2`,
		userID, identifier,
	)
	if err != nil {
		return false, fmt.Errorf("デバイスの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}
