package repository

import "errors"

// アクティベーショントランザクション内のゲート再検証で返すエラー。
// サービス層でユーザー向けのAPIErrorに変換される。
var (
	// ErrActiveEntitlementExists は有効な権利が既に存在する（重ね掛け拒否）。
	ErrActiveEntitlementExists = errors.New("active entitlement already exists")

	// ErrVoucherAlreadyUsed はindividual/vipバウチャーが使用済み。
	ErrVoucherAlreadyUsed = errors.New("voucher already used")

	// ErrVoucherCapacityReached はビジネスバウチャーの同時利用上限超過。
	ErrVoucherCapacityReached = errors.New("voucher capacity reached")
)
