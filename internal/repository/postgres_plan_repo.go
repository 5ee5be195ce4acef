package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/barry/paywifi/internal/model"
)

// PostgresPlanRepo はPostgreSQLを使用したプランリポジトリ。
type PostgresPlanRepo struct {
	db *sql.DB
}

// NewPostgresPlanRepo はPostgresPlanRepoを生成する。
func NewPostgresPlanRepo(db *sql.DB) *PostgresPlanRepo {
	return &PostgresPlanRepo{db: db}
}

// FindByID は指定IDのプランを取得する。見つからない場合はnilを返す。
func (r *PostgresPlanRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	plan := &model.Plan{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, price, currency, duration_minutes, is_business, max_devices, created_at
		 FROM plans WHERE id = $1`,
		id,
	).Scan(&plan.ID, &plan.Name, &plan.Price, &plan.Currency, &plan.DurationMinutes,
		&plan.IsBusiness, &plan.MaxDevices, &plan.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プランの取得に失敗しました: %w", err)
	}

	return plan, nil
}

// List は全プランを作成日時順で返す。
func (r *PostgresPlanRepo) List(ctx context.Context) ([]*model.Plan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, price, currency, duration_minutes, is_business, max_devices, created_at
		 FROM plans ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("プラン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		plan := &model.Plan{}
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.Price, &plan.Currency,
			&plan.DurationMinutes, &plan.IsBusiness, &plan.MaxDevices, &plan.CreatedAt); err != nil {
			return nil, fmt.Errorf("プラン行の読み取りに失敗しました: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プラン一覧の走査に失敗しました: %w", err)
	}
	return plans, nil
}

// Create はプランを作成する。
func (r *PostgresPlanRepo) Create(ctx context.Context, plan *model.Plan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plans (id, name, price, currency, duration_minutes, is_business, max_devices, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		plan.ID, plan.Name, plan.Price, plan.Currency, plan.DurationMinutes,
		plan.IsBusiness, plan.MaxDevices, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("プランの作成に失敗しました: %w", err)
	}
	return nil
}
