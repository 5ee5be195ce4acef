package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/barry/paywifi/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternalError,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusCodeForError はAPIErrorのコードに対応するHTTPステータスコードを返す。
func StatusCodeForError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePlanNotFound, model.ErrCodeVoucherNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyActive, model.ErrCodeVoucherUsed, model.ErrCodeVoucherCapacity:
		return http.StatusConflict
	case model.ErrCodeDeviceLimit, model.ErrCodeDeviceBlocked:
		return http.StatusForbidden
	case model.ErrCodeDeviceIDRequired, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeActivationFailed:
		return http.StatusBadGateway
	case model.ErrCodeNoActiveAccess:
		return http.StatusNotFound
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
