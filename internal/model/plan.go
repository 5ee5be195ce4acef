package model

import "time"

// Plan は購入可能なインターネット接続プラン（forfait）を表す。
// 価格はギニアフラン（GNF）の整数額。
type Plan struct {
	ID              string
	Name            string
	Price           int
	Currency        string
	DurationMinutes int

	// ビジネスプランは複数デバイスを許可する
	IsBusiness bool
	MaxDevices int

	CreatedAt time.Time
}
