// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/barry/paywifi/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByPhoneNumber は電話番号でユーザーを検索する。見つからない場合はnilを返す。
	FindByPhoneNumber(ctx context.Context, phone string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateMaxDevices はユーザーのデバイス上限を更新する。
	UpdateMaxDevices(ctx context.Context, userID string, max int) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PlanRepository はプランデータの永続化インターフェース。
type PlanRepository interface {
	// FindByID は指定IDのプランを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Plan, error)

	// List は全プランを作成日時順で返す。
	List(ctx context.Context) ([]*model.Plan, error)

	// Create はプランを作成する。
	Create(ctx context.Context, plan *model.Plan) error
}

// VoucherRepository はバウチャーデータの永続化インターフェース。
// is_usedのフリップはアクティベーショントランザクション内でのみ行うため、
// ここには含まれない（ActivationRepository.CommitActivationを参照）。
type VoucherRepository interface {
	// FindByCode はコードでバウチャーを検索する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.Voucher, error)

	// Create はバウチャーを作成する。
	Create(ctx context.Context, voucher *model.Voucher) error

	// List は全バウチャーを作成日時の降順で返す。
	List(ctx context.Context, limit int) ([]*model.Voucher, error)
}

// EntitlementRepository は接続権データの永続化インターフェース。
// 行の作成と失効はActivationRepositoryのトランザクション経由でのみ行う。
type EntitlementRepository interface {
	// FindActiveByUserID は現在有効な（is_active=true かつ end_at > now）権利を返す。
	// 存在しない場合はnilを返す。「接続可能か」の唯一の判定材料。
	FindActiveByUserID(ctx context.Context, userID string, now time.Time) (*model.Entitlement, error)

	// CountActiveByVoucherCode は指定コードを参照する有効な権利数を返す。
	// ビジネス/エンタープライズバウチャーの同時利用判定に使用する。
	CountActiveByVoucherCode(ctx context.Context, code string, now time.Time) (int, error)

	// ListByUserID はユーザーの全権利を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Entitlement, error)
}

// DeviceRepository はデバイスデータの永続化インターフェース。
type DeviceRepository interface {
	// FindByUserAndIdentifier はユーザーIDと端末識別子でデバイスを検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndIdentifier(ctx context.Context, userID, identifier string) (*model.Device, error)

	// Create はデバイスを作成する。作成後のIDをdevice.IDに設定する。
	Create(ctx context.Context, device *model.Device) error

	// Touch はlast_seen/ip/user_agentを更新する。
	Touch(ctx context.Context, id int64, ip, userAgent string, seenAt time.Time) error

	// CountByUserID はユーザーのデバイス数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// ListByUserID はユーザーのデバイスをlast_seen昇順（同値はID昇順）で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Device, error)

	// DeleteByID は指定IDのデバイスを削除する。
	DeleteByID(ctx context.Context, id int64) error

	// DeleteByUserAndIdentifier はユーザーの特定デバイスを削除する。
	// 削除された場合はtrueを返す。
	DeleteByUserAndIdentifier(ctx context.Context, userID, identifier string) (bool, error)
}

// AccessRepository はWi-Fiアクセス状態（ユーザーごとに最大1行）の読み取りインターフェース。
// 書き込みはActivationRepositoryのトランザクション経由でのみ行う。
type AccessRepository interface {
	// FindByUserID は指定ユーザーのアクセス状態を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.WifiAccess, error)
}

// HistoryRepository は接続履歴の永続化インターフェース。
type HistoryRepository interface {
	// Append は履歴エントリを追記する。失敗記録などの閉じたエントリにも使う。
	Append(ctx context.Context, entry *model.HistorySession) error

	// FindOpenByUserID はユーザーのオープンな（end_at IS NULL）エントリを返す。
	// 存在しない場合はnilを返す。
	FindOpenByUserID(ctx context.Context, userID string) (*model.HistorySession, error)

	// ListByUserID はユーザーの履歴をstart_at降順で返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error)

	// ListAll は全履歴をstart_at降順で返す（管理者用）。
	ListAll(ctx context.Context, limit int) ([]*model.HistorySession, error)
}

// PaymentRepository は支払い記録の永続化インターフェース。
type PaymentRepository interface {
	// Create は支払い記録を作成する。
	Create(ctx context.Context, payment *model.Payment) error

	// ListByUserID はユーザーの支払い記録を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
}

// Activation はアクティベーショントランザクションで書き込む一連のレコード。
// 全テーブルへの書き込みが単一トランザクションで適用される。
type Activation struct {
	Entitlement *model.Entitlement

	// Voucherはバウチャー引き換えの場合のみ設定する。
	// トランザクション内で使用済み/同時利用上限のゲートを再検証する。
	Voucher *model.Voucher

	// MarkVoucherUsed はindividual/vipバウチャーでis_usedをフリップするか。
	MarkVoucherUsed bool

	Access  *model.WifiAccess
	History *model.HistorySession
}

// ExpiredAccess は失効スキャンの1件分の結果。
type ExpiredAccess struct {
	UserID        string
	EntitlementID string
}

// ActivationRepository はアクセスライフサイクルのトランザクション境界を提供する。
// 権利・アクセス状態・履歴・バウチャーの複数テーブル更新を原子的に適用する。
type ActivationRepository interface {
	// CommitActivation はアクティベーション一式を単一トランザクションで適用する。
	// トランザクション内で重ね掛け・使用済み・同時利用上限のゲートを再検証し、
	// 違反時はErrActiveEntitlementExists / ErrVoucherAlreadyUsed /
	// ErrVoucherCapacityReachedを返して何も書き込まない。
	CommitActivation(ctx context.Context, act *Activation) error

	// ExpireAccess は1ユーザー分の失効処理を単一トランザクションで適用する。
	// 権利のis_active、アクセス状態のactiveをfalseにし、
	// オープンな履歴エントリを閉じる。全更新は冪等で、
	// 既に失効済みの行に対してはno-opになる。
	// トランザクション内で生きている権利の有無を読み直し、
	// 新しいアクティベーションが存在する場合はアクセス状態と履歴に触れない。
	ExpireAccess(ctx context.Context, userID, entitlementID string, now time.Time, note string) error

	// ListExpired は期限切れだがまだアクティブな権利を列挙する。
	ListExpired(ctx context.Context, now time.Time) ([]ExpiredAccess, error)
}
