package model

import "time"

// EntitlementSource は権利の発生源を表す。
type EntitlementSource string

const (
	// EntitlementSourcePlan はプラン購入による権利。
	EntitlementSourcePlan EntitlementSource = "plan"
	// EntitlementSourceVoucher はバウチャー引き換えによる権利。
	EntitlementSourceVoucher EntitlementSource = "voucher"
)

// Entitlement は期間付きのインターネット接続権を表す。
// プラン購入またはバウチャー引き換えで作成され、
// 有効期限切れまたは管理者の無効化でis_activeがfalseになる。
// 履歴から参照されるため削除はされない。
type Entitlement struct {
	ID     string
	UserID string

	// PlanIDとVoucherCodeはどちらか一方のみが設定される
	PlanID      string
	VoucherCode string

	StartAt time.Time
	EndAt   time.Time

	IsActive  bool
	AutoRenew bool

	CreatedAt time.Time
}

// Source は権利の発生源を返す。
func (e *Entitlement) Source() EntitlementSource {
	if e.VoucherCode != "" {
		return EntitlementSourceVoucher
	}
	return EntitlementSourcePlan
}

// IsExpired は指定時刻において権利が期限切れかを返す。
func (e *Entitlement) IsExpired(now time.Time) bool {
	return !e.EndAt.After(now)
}
