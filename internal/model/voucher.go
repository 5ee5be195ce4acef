package model

import "time"

// VoucherType はバウチャーの種類を表す。
type VoucherType string

const (
	// VoucherTypeIndividual は1回限り使用可能な個人用バウチャー。
	VoucherTypeIndividual VoucherType = "individual"
	// VoucherTypeBusiness はmax_devicesまで同時利用可能なビジネスバウチャー。
	VoucherTypeBusiness VoucherType = "business"
	// VoucherTypeEnterprise はビジネスと同じ同時利用ルールのエンタープライズバウチャー。
	VoucherTypeEnterprise VoucherType = "enterprise"
	// VoucherTypeVIP は1回限り使用だがデバイス上限を個別に持つVIPバウチャー。
	VoucherTypeVIP VoucherType = "vip"
)

// IsMultiDevice はアクティブな権利数のカウントで同時利用を制御する種類かを返す。
// individual/vipはis_usedフラグによる使用済み判定を行う。
func (t VoucherType) IsMultiDevice() bool {
	return t == VoucherTypeBusiness || t == VoucherTypeEnterprise
}

// Voucher は事前発行されたコード型の権利テンプレートを表す。
type Voucher struct {
	ID              string
	Code            string
	Type            VoucherType
	DurationMinutes int
	MaxDevices      int

	// QRコード画像（Base64 PNG）
	QRData string

	IsUsed bool
	UsedBy string
	UsedAt *time.Time

	CreatedAt time.Time
}
