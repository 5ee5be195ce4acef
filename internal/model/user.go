// Package model はドメインモデルを定義する。
package model

import "time"

// User はWi-Fiサービスの利用ユーザーを表す。
// 電話番号がログインIDを兼ねる。
type User struct {
	ID          string
	FirstName   string
	LastName    string
	PhoneNumber string
	Country     string

	// ビジネスアカウント
	IsBusiness  bool
	CompanyName string

	// プラン・バウチャーにより変動するデバイス上限
	MaxDevicesAllowed int

	HashedPassword string
	IsActive       bool
	IsAdmin        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
