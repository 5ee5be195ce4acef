package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/barry/paywifi/internal/model"
)

// PostgresHistoryRepo はPostgreSQLを使用した接続履歴リポジトリ。
type PostgresHistoryRepo struct {
	db *sql.DB
}

// NewPostgresHistoryRepo はPostgresHistoryRepoを生成する。
func NewPostgresHistoryRepo(db *sql.DB) *PostgresHistoryRepo {
	return &PostgresHistoryRepo{db: db}
}

const historyColumns = `id, user_id, COALESCE(device_id, 0), voucher_code,
	 ip, user_agent, start_at, end_at, success, note`

func scanHistory(scan func(dest ...any) error) (*model.HistorySession, error) {
	h := &model.HistorySession{}
	err := scan(&h.ID, &h.UserID, &h.DeviceID, &h.VoucherCode,
		&h.IP, &h.UserAgent, &h.StartAt, &h.EndAt, &h.Success, &h.Note)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Append は履歴エントリを追記する。追記後のIDをentry.IDに設定する。
func (r *PostgresHistoryRepo) Append(ctx context.Context, entry *model.HistorySession) error {
	var deviceID any
	if entry.DeviceID != 0 {
		deviceID = entry.DeviceID
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO connection_history
		  (user_id, device_id, voucher_code, ip, user_agent, start_at, end_at, success, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		entry.UserID, deviceID, entry.VoucherCode, entry.IP, entry.UserAgent,
		entry.StartAt, entry.EndAt, entry.Success, entry.Note,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("履歴の追記に失敗しました: %w", err)
	}
	return nil
}

// FindOpenByUserID はユーザーのオープンなエントリを返す。存在しない場合はnilを返す。
func (r *PostgresHistoryRepo) FindOpenByUserID(ctx context.Context, userID string) (*model.HistorySession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+`
		 FROM connection_history
		 WHERE user_id = $1 AND end_at IS NULL
		 ORDER BY start_at DESC
		 LIMIT 1`,
		userID,
	)

	h, err := scanHistory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("オープンな履歴の取得に失敗しました: %w", err)
	}
	return h, nil
}

// ListByUserID はユーザーの履歴をstart_at降順で返す。
func (r *PostgresHistoryRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+historyColumns+`
		 FROM connection_history WHERE user_id = $1
		 ORDER BY start_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("履歴一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectHistory(rows)
}

// ListAll は全履歴をstart_at降順で返す（管理者用）。
func (r *PostgresHistoryRepo) ListAll(ctx context.Context, limit int) ([]*model.HistorySession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+historyColumns+`
		 FROM connection_history
		 ORDER BY start_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("全履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectHistory(rows)
}

func collectHistory(rows *sql.Rows) ([]*model.HistorySession, error) {
	var entries []*model.HistorySession
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("履歴行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("履歴一覧の走査に失敗しました: %w", err)
	}
	return entries, nil
}
