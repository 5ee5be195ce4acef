// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/wifi"
)

// deviceIDHeader はクライアントが端末識別子を送信するヘッダー名。
const deviceIDHeader = "X-Device-ID"

// respondJSON はJSONレスポンスを書き込む。
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// APIError以外のエラーは詳細をログのみに記録し、500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusCodeForError(apiErr), apiErr)
		return
	}

	slog.Error("内部エラーが発生しました", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// writeInvalidBody はリクエストボディ解析失敗のレスポンスを書き込む。
func writeInvalidBody(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest,
		model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
}

// clientInfoFromRequest はリクエストからクライアント情報を組み立てる。
// 端末識別子はX-Device-IDヘッダーから取得する。
func clientInfoFromRequest(r *http.Request) wifi.ClientInfo {
	return wifi.ClientInfo{
		DeviceIdentifier: r.Header.Get(deviceIDHeader),
		IP:               clientIP(r),
		UserAgent:        r.UserAgent(),
	}
}

// clientIP はRemoteAddrからポートを除いたIPアドレスを返す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
