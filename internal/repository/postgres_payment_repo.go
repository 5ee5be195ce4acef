package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/barry/paywifi/internal/model"
)

// PostgresPaymentRepo はPostgreSQLを使用した支払いリポジトリ。
type PostgresPaymentRepo struct {
	db *sql.DB
}

// NewPostgresPaymentRepo はPostgresPaymentRepoを生成する。
func NewPostgresPaymentRepo(db *sql.DB) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{db: db}
}

// Create は支払い記録を作成する。
func (r *PostgresPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, method, plan_name, amount, currency, status, reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.UserID, payment.Method, payment.PlanName, payment.Amount,
		payment.Currency, payment.Status, payment.Reference, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("支払い記録の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの支払い記録を作成日時の降順で返す。
func (r *PostgresPaymentRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, method, plan_name, amount, currency, status, reference, created_at
		 FROM payments WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("支払い一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		p := &model.Payment{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Method, &p.PlanName, &p.Amount,
			&p.Currency, &p.Status, &p.Reference, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("支払い行の読み取りに失敗しました: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("支払い一覧の走査に失敗しました: %w", err)
	}
	return payments, nil
}
