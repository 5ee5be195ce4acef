package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/barry/paywifi/internal/model"
)

// PostgresVoucherRepo はPostgreSQLを使用したバウチャーリポジトリ。
type PostgresVoucherRepo struct {
	db *sql.DB
}

// NewPostgresVoucherRepo はPostgresVoucherRepoを生成する。
func NewPostgresVoucherRepo(db *sql.DB) *PostgresVoucherRepo {
	return &PostgresVoucherRepo{db: db}
}

const voucherColumns = `id, code, type, duration_minutes, max_devices,
	 qr_data, is_used, COALESCE(used_by, ''), used_at, created_at`

// FindByCode はコードでバウチャーを検索する。見つからない場合はnilを返す。
func (r *PostgresVoucherRepo) FindByCode(ctx context.Context, code string) (*model.Voucher, error) {
	voucher := &model.Voucher{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`,
		code,
	).Scan(&voucher.ID, &voucher.Code, &voucher.Type, &voucher.DurationMinutes,
		&voucher.MaxDevices, &voucher.QRData, &voucher.IsUsed, &voucher.UsedBy,
		&voucher.UsedAt, &voucher.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("バウチャーの検索に失敗しました: %w", err)
	}

	return voucher, nil
}

// Create はバウチャーを作成する。
func (r *PostgresVoucherRepo) Create(ctx context.Context, voucher *model.Voucher) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vouchers (id, code, type, duration_minutes, max_devices, qr_data, is_used, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		voucher.ID, voucher.Code, voucher.Type, voucher.DurationMinutes,
		voucher.MaxDevices, voucher.QRData, voucher.IsUsed, voucher.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("バウチャーの作成に失敗しました: %w", err)
	}
	return nil
}

// List は全バウチャーを作成日時の降順で返す。
func (r *PostgresVoucherRepo) List(ctx context.Context, limit int) ([]*model.Voucher, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+voucherColumns+` FROM vouchers ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("バウチャー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var vouchers []*model.Voucher
	for rows.Next() {
		voucher := &model.Voucher{}
		if err := rows.Scan(&voucher.ID, &voucher.Code, &voucher.Type, &voucher.DurationMinutes,
			&voucher.MaxDevices, &voucher.QRData, &voucher.IsUsed, &voucher.UsedBy,
			&voucher.UsedAt, &voucher.CreatedAt); err != nil {
			return nil, fmt.Errorf("バウチャー行の読み取りに失敗しました: %w", err)
		}
		vouchers = append(vouchers, voucher)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("バウチャー一覧の走査に失敗しました: %w", err)
	}
	return vouchers, nil
}
