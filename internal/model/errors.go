package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, billing, network, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePlanNotFound     = "PLAN_NOT_FOUND"
	ErrCodeVoucherNotFound  = "VOUCHER_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeAlreadyActive    = "ALREADY_ACTIVE"
	ErrCodeVoucherUsed      = "VOUCHER_USED"
	ErrCodeVoucherCapacity  = "VOUCHER_CAPACITY"
	ErrCodeDeviceLimit      = "DEVICE_LIMIT"
	ErrCodeDeviceBlocked    = "DEVICE_BLOCKED"
	ErrCodeDeviceIDRequired = "DEVICE_ID_REQUIRED"
	ErrCodeActivationFailed = "ACTIVATION_FAILED"
	ErrCodeNoActiveAccess   = "NO_ACTIVE_ACCESS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimit,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPlanNotFoundError はプラン未検出エラーを生成する。
func NewPlanNotFoundError(planID string) *APIError {
	return &APIError{
		Code:     ErrCodePlanNotFound,
		Message:  fmt.Sprintf("指定されたプランが見つかりません: %s", planID),
		Category: "billing",
		Action:   "プラン一覧から有効なプランを選択してください。",
	}
}

// NewVoucherNotFoundError はバウチャー未検出エラーを生成する。
func NewVoucherNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeVoucherNotFound,
		Message:  "無効なバウチャーコードです。",
		Category: "billing",
		Action:   "コードの綴りを確認して再度入力してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAlreadyActiveError はアクティブな権利が既に存在する場合のエラーを生成する。
// プラン・バウチャーの重ね掛けは許可しない。
func NewAlreadyActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyActive,
		Message:  "既にアクティブな接続プランがあります。",
		Category: "billing",
		Action:   "現在のプランの有効期限が切れてから購入してください。",
	}
}

// NewVoucherUsedError は使用済みバウチャーエラーを生成する。
func NewVoucherUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeVoucherUsed,
		Message:  "このバウチャーは既に使用されています。",
		Category: "billing",
		Action:   "未使用のバウチャーコードを入力してください。",
	}
}

// NewVoucherCapacityError はビジネスバウチャーの同時利用上限エラーを生成する。
func NewVoucherCapacityError() *APIError {
	return &APIError{
		Code:     ErrCodeVoucherCapacity,
		Message:  "このバウチャーの同時利用上限に達しています。",
		Category: "billing",
		Action:   "他の利用者の接続が終了してから再度お試しください。",
	}
}

// NewDeviceLimitError はデバイス上限超過エラーを生成する。
func NewDeviceLimitError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeDeviceLimit,
		Message:  fmt.Sprintf("登録可能なデバイス数の上限（%d台）に達しています。", max),
		Category: "validation",
		Action:   "不要なデバイスの登録を解除してから再度お試しください。",
	}
}

// NewDeviceBlockedError はブロック済みデバイスエラーを生成する。
func NewDeviceBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeDeviceBlocked,
		Message:  "このデバイスは管理者によりブロックされています。",
		Category: "validation",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewDeviceIDRequiredError はX-Device-IDヘッダー欠落エラーを生成する。
func NewDeviceIDRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeDeviceIDRequired,
		Message:  "X-Device-IDヘッダーが必要です。",
		Category: "validation",
		Action:   "アプリを最新版に更新してから再度お試しください。",
	}
}

// NewActivationFailedError はネットワークプロバイダーの有効化失敗エラーを生成する。
// プロバイダー到達不能もメッセージのみ異なる同一エラーとして扱う。
func NewActivationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeActivationFailed,
		Message:  fmt.Sprintf("Wi-Fiの有効化に失敗しました: %s", reason),
		Category: "network",
		Action:   "しばらく待ってから再度お試しください。失敗した場合バウチャーは消費されません。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト形式の不正エラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認して再度お試しください。",
	}
}

// NewNoActiveAccessError はアクティブなアクセスが存在しない場合のエラーを生成する。
func NewNoActiveAccessError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveAccess,
		Message:  "アクティブな接続がありません。",
		Category: "billing",
		Action:   "プランを購入するかバウチャーを引き換えてください。",
	}
}
