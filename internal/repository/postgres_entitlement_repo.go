package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/barry/paywifi/internal/model"
)

// PostgresEntitlementRepo はPostgreSQL（subscriptionsテーブル）を使用した接続権リポジトリ。
type PostgresEntitlementRepo struct {
	db *sql.DB
}

// NewPostgresEntitlementRepo はPostgresEntitlementRepoを生成する。
func NewPostgresEntitlementRepo(db *sql.DB) *PostgresEntitlementRepo {
	return &PostgresEntitlementRepo{db: db}
}

const entitlementColumns = `id, user_id, COALESCE(plan_id, ''), COALESCE(voucher_code, ''),
	 start_at, end_at, is_active, auto_renew, created_at`

func scanEntitlement(scan func(dest ...any) error) (*model.Entitlement, error) {
	e := &model.Entitlement{}
	err := scan(&e.ID, &e.UserID, &e.PlanID, &e.VoucherCode,
		&e.StartAt, &e.EndAt, &e.IsActive, &e.AutoRenew, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// FindActiveByUserID は現在有効な権利を返す。存在しない場合はnilを返す。
func (r *PostgresEntitlementRepo) FindActiveByUserID(ctx context.Context, userID string, now time.Time) (*model.Entitlement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+`
		 FROM subscriptions
		 WHERE user_id = $1 AND is_active = TRUE AND end_at > $2
		 ORDER BY end_at DESC
		 LIMIT 1`,
		userID, now,
	)

	e, err := scanEntitlement(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("有効な権利の取得に失敗しました: %w", err)
	}
	return e, nil
}

// CountActiveByVoucherCode は指定コードを参照する有効な権利数を返す。
func (r *PostgresEntitlementRepo) CountActiveByVoucherCode(ctx context.Context, code string, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions
		 WHERE voucher_code = $1 AND is_active = TRUE AND end_at > $2`,
		code, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("バウチャー利用数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListByUserID はユーザーの全権利を作成日時の降順で返す。
func (r *PostgresEntitlementRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Entitlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entitlementColumns+`
		 FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("権利一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entitlements []*model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("権利行の読み取りに失敗しました: %w", err)
		}
		entitlements = append(entitlements, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("権利一覧の走査に失敗しました: %w", err)
	}
	return entitlements, nil
}
