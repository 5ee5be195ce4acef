package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/barry/paywifi/internal/model"
)

// PostgresActivationRepo はアクセスライフサイクルのトランザクション境界を実装する。
// アクティベーション（権利作成＋バウチャー消費＋アクセス状態＋履歴）と
// 失効（権利・アクセス状態の無効化＋履歴クローズ）をそれぞれ
// 単一トランザクションで適用する。
type PostgresActivationRepo struct {
	db *sql.DB
}

// NewPostgresActivationRepo はPostgresActivationRepoを生成する。
func NewPostgresActivationRepo(db *sql.DB) *PostgresActivationRepo {
	return &PostgresActivationRepo{db: db}
}

// CommitActivation はアクティベーション一式を単一トランザクションで適用する。
//
// サービス層の事前チェックは参考情報でしかないため、重ね掛け・使用済み・
// 同時利用上限の各ゲートをここで再検証する。2つの引き換えが競合した場合、
// 敗者はゲート再検証で弾かれ、部分的な書き込みは残らない。
// 同時利用カウントのcheck-then-insertを直列化するためSerializable分離を使う。
func (r *PostgresActivationRepo) CommitActivation(ctx context.Context, act *Activation) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	ent := act.Entitlement
	now := ent.StartAt

	// ゲート1: バウチャーの状態をトランザクション内で再検証する
	if act.Voucher != nil {
		if act.Voucher.Type.IsMultiDevice() {
			var count int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM subscriptions
				 WHERE voucher_code = $1 AND is_active = TRUE AND end_at > $2`,
				act.Voucher.Code, now,
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("バウチャー利用数の再検証に失敗しました: %w", err)
			}
			if count >= act.Voucher.MaxDevices {
				return ErrVoucherCapacityReached
			}
		} else {
			var used bool
			err := tx.QueryRowContext(ctx,
				`SELECT is_used FROM vouchers WHERE code = $1 FOR UPDATE`,
				act.Voucher.Code,
			).Scan(&used)
			if err != nil {
				return fmt.Errorf("バウチャーの再検証に失敗しました: %w", err)
			}
			if used {
				return ErrVoucherAlreadyUsed
			}
		}
	}

	// ゲート2: 重ね掛けの再検証。
	// マルチデバイスバウチャーは同時利用上限のみで制御するため除外する。
	if act.Voucher == nil || !act.Voucher.Type.IsMultiDevice() {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM subscriptions
			 WHERE user_id = $1 AND is_active = TRUE AND end_at > $2`,
			ent.UserID, now,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("有効な権利の再検証に失敗しました: %w", err)
		}
		if count > 0 {
			return ErrActiveEntitlementExists
		}
	}

	// 権利の作成
	var planID, voucherCode any
	if ent.PlanID != "" {
		planID = ent.PlanID
	}
	if ent.VoucherCode != "" {
		voucherCode = ent.VoucherCode
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, voucher_code, start_at, end_at, is_active, auto_renew, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ent.ID, ent.UserID, planID, voucherCode,
		ent.StartAt, ent.EndAt, ent.IsActive, ent.AutoRenew, ent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("権利の作成に失敗しました: %w", err)
	}

	// individual/vipバウチャーの消費。
	// ここまで到達した時点でプロバイダーの有効化は成功しているため、
	// 失敗したアクティベーションがバウチャーを消費することはない。
	if act.MarkVoucherUsed {
		_, err = tx.ExecContext(ctx,
			`UPDATE vouchers SET is_used = TRUE, used_by = $2, used_at = $3 WHERE code = $1`,
			act.Voucher.Code, ent.UserID, now,
		)
		if err != nil {
			return fmt.Errorf("バウチャーの消費に失敗しました: %w", err)
		}
	}

	// オープンな履歴が残っていれば閉じる（ユーザーにつき最大1件の不変条件）
	_, err = tx.ExecContext(ctx,
		`UPDATE connection_history SET end_at = $2, note = $3
		 WHERE user_id = $1 AND end_at IS NULL`,
		ent.UserID, now, model.HistoryNoteSuperseded,
	)
	if err != nil {
		return fmt.Errorf("旧履歴のクローズに失敗しました: %w", err)
	}

	// アクセス状態のUPSERT（ユーザーにつき最大1行）
	access := act.Access
	_, err = tx.ExecContext(ctx,
		`INSERT INTO wifi_accesses (user_id, active, start_date, end_date, last_ip, last_device_identifier, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   active = EXCLUDED.active,
		   start_date = EXCLUDED.start_date,
		   end_date = EXCLUDED.end_date,
		   last_ip = EXCLUDED.last_ip,
		   last_device_identifier = EXCLUDED.last_device_identifier,
		   updated_at = EXCLUDED.updated_at`,
		access.UserID, access.Active, access.StartDate, access.EndDate,
		access.LastIP, access.LastDeviceIdentifier, access.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アクセス状態の更新に失敗しました: %w", err)
	}

	// 新しいオープン履歴の追記
	h := act.History
	var deviceID any
	if h.DeviceID != 0 {
		deviceID = h.DeviceID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO connection_history
		  (user_id, device_id, voucher_code, ip, user_agent, start_at, end_at, success, note)
		 VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8)`,
		h.UserID, deviceID, h.VoucherCode, h.IP, h.UserAgent, h.StartAt, h.Success, h.Note,
	)
	if err != nil {
		return fmt.Errorf("履歴の追記に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// ExpireAccess は1ユーザー分の失効処理を単一トランザクションで適用する。
// 全UPDATEが既に失効済みの行に対してno-opになるため、
// スケジューラのリトライやプロセス再起動後の再スキャンに対して冪等。
func (r *PostgresActivationRepo) ExpireAccess(ctx context.Context, userID, entitlementID string, now time.Time, note string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = FALSE
		 WHERE id = $1 AND is_active = TRUE`,
		entitlementID,
	)
	if err != nil {
		return fmt.Errorf("権利の失効に失敗しました: %w", err)
	}

	// スキャンからここまでの間に同一ユーザーが新しい権利を獲得している
	// 可能性があるため、トランザクション内で現在の状態を読み直す。
	// 生きている権利が残っている場合、アクセス状態とオープン履歴は
	// 新しいアクティベーションの所有物なので触らない。
	var live int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions
		 WHERE user_id = $1 AND is_active = TRUE AND end_at > $2`,
		userID, now,
	).Scan(&live)
	if err != nil {
		return fmt.Errorf("有効な権利の再確認に失敗しました: %w", err)
	}

	if live == 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE wifi_accesses SET active = FALSE, updated_at = $2
			 WHERE user_id = $1 AND active = TRUE`,
			userID, now,
		)
		if err != nil {
			return fmt.Errorf("アクセス状態の無効化に失敗しました: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE connection_history SET end_at = $2, note = $3
			 WHERE user_id = $1 AND end_at IS NULL`,
			userID, now, note,
		)
		if err != nil {
			return fmt.Errorf("履歴のクローズに失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// ListExpired は期限切れだがまだアクティブな権利を列挙する。
func (r *PostgresActivationRepo) ListExpired(ctx context.Context, now time.Time) ([]ExpiredAccess, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, id FROM subscriptions
		 WHERE is_active = TRUE AND end_at <= $1
		 ORDER BY end_at ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("期限切れ権利の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var expired []ExpiredAccess
	for rows.Next() {
		var e ExpiredAccess
		if err := rows.Scan(&e.UserID, &e.EntitlementID); err != nil {
			return nil, fmt.Errorf("期限切れ行の読み取りに失敗しました: %w", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("期限切れ一覧の走査に失敗しました: %w", err)
	}
	return expired, nil
}
