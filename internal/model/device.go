package model

import "time"

// Device はユーザーのクライアント端末を表す。
// Identifierはクライアントが送信する安定トークン（MACとは限らない）。
// (user_id, identifier) の組は一意。
type Device struct {
	ID         int64
	UserID     string
	Identifier string
	IP         string
	UserAgent  string

	IsBlocked bool
	LastSeen  time.Time
}
