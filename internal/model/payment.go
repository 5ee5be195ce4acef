package model

import "time"

// PaymentStatus は支払いの状態を表す。
type PaymentStatus string

const (
	// PaymentStatusPending は処理待ちの支払い。
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted は完了した支払い。
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed は失敗した支払い。
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment はプラン購入時の支払い記録を表す。
// 決済プロバイダーのワイヤーフォーマットは扱わず、結果のみを保存する。
type Payment struct {
	ID     string
	UserID string

	Method   string
	PlanName string
	Amount   int
	Currency string
	Status   PaymentStatus

	Reference string

	CreatedAt time.Time
}
