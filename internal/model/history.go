package model

import "time"

// 履歴エントリを閉じる際のnote値。
const (
	// HistoryNoteExpired はスケジューラによる期限切れ失効。
	HistoryNoteExpired = "expired"
	// HistoryNoteManual はユーザー/管理者による手動停止。
	HistoryNoteManual = "manual"
	// HistoryNoteSuperseded は新しいセッション開始による旧セッションの閉鎖。
	HistoryNoteSuperseded = "superseded"
)

// HistorySession は接続セッションの追記専用ログエントリを表す。
// end_atがnilの行は「オープン」なセッションで、ユーザーにつき最大1行。
type HistorySession struct {
	ID     int64
	UserID string

	// DeviceIDは端末削除後もエントリを残すため0を許容する
	DeviceID    int64
	VoucherCode string

	IP        string
	UserAgent string

	StartAt time.Time
	EndAt   *time.Time

	Success bool
	Note    string
}
