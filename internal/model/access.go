package model

import "time"

// WifiAccess はユーザーごとの「現在Wi-Fiが有効か」を表す非正規化レコード。
// ユーザーにつき最大1行で、権利とプロバイダー呼び出し結果から同期される。
// 有効期限切れの権利しか存在しない状態でactive=trueになってはならない。
type WifiAccess struct {
	UserID    string
	Active    bool
	StartDate time.Time
	EndDate   time.Time

	LastIP               string
	LastDeviceIdentifier string

	UpdatedAt time.Time
}

// IsLive は指定時刻においてアクセスが有効期間内かを返す。
func (a *WifiAccess) IsLive(now time.Time) bool {
	return a.Active && now.Before(a.EndDate)
}
