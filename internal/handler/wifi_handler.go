package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/wifi"
)

// WifiServiceInterface はWi-Fiハンドラーが必要とするサービスインターフェース。
type WifiServiceInterface interface {
	// BuyPlan はプラン購入によるアクティベーションを実行する。
	BuyPlan(ctx context.Context, userID, planID, method string, client wifi.ClientInfo) (*wifi.ActivationResult, error)
	// RedeemVoucher はバウチャー引き換えによるアクティベーションを実行する。
	RedeemVoucher(ctx context.Context, userID, code string, client wifi.ClientInfo) (*wifi.ActivationResult, error)
	// AdminActivate は管理者によるプラン・バウチャーなしの付与を実行する。
	AdminActivate(ctx context.Context, userID string) (*wifi.ActivationResult, error)
	// Deactivate はアクセスを手動停止する。
	Deactivate(ctx context.Context, userID string) error
	// Status は現在のアクセス状態を返す。
	Status(ctx context.Context, userID string) (*wifi.StatusResult, error)
}

// WifiHandler はWi-Fiアクセスライフサイクルを扱うHTTPハンドラー。
type WifiHandler struct {
	service WifiServiceInterface
}

// NewWifiHandler はWifiHandlerを生成する。
func NewWifiHandler(service WifiServiceInterface) *WifiHandler {
	return &WifiHandler{service: service}
}

// buyPlanRequest はプラン購入リクエストのボディ。
type buyPlanRequest struct {
	PlanID string `json:"plan_id"`
	Method string `json:"method"`
}

// redeemVoucherRequest はバウチャー引き換えリクエストのボディ。
type redeemVoucherRequest struct {
	Code string `json:"code"`
}

// adminUserRequest は管理者操作の対象ユーザーを指定するボディ。
type adminUserRequest struct {
	UserID string `json:"user_id"`
}

// activationResponse はアクティベーション成功時のAPIレスポンス。
type activationResponse struct {
	EntitlementID    string    `json:"entitlement_id"`
	Source           string    `json:"source"`
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	DeviceIdentifier string    `json:"device_identifier,omitempty"`
}

// BuyPlan はプラン購入を処理する。
// POST /api/wifi/buy
func (h *WifiHandler) BuyPlan(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req buyPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.PlanID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("plan_idは必須です。"))
		return
	}

	result, err := h.service.BuyPlan(r.Context(), userID, req.PlanID, req.Method, clientInfoFromRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toActivationResponse(result))
}

// RedeemVoucher はバウチャー引き換えを処理する。
// POST /api/voucher/use
func (h *WifiHandler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req redeemVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("codeは必須です。"))
		return
	}

	result, err := h.service.RedeemVoucher(r.Context(), userID, req.Code, clientInfoFromRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toActivationResponse(result))
}

// Status は現在のアクセス状態を返す。
// GET /api/wifi/status
func (h *WifiHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	status, err := h.service.Status(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// Deactivate はユーザー自身によるアクセス停止を処理する。
// POST /api/wifi/deactivate
func (h *WifiHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Deactivate(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminActivate は管理者による対象ユーザーへのアクセス付与を処理する。
// POST /api/admin/wifi/activate
func (h *WifiHandler) AdminActivate(w http.ResponseWriter, r *http.Request) {
	var req adminUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.UserID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("user_idは必須です。"))
		return
	}

	result, err := h.service.AdminActivate(r.Context(), req.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toActivationResponse(result))
}

// AdminDeactivate は管理者による対象ユーザーのアクセス停止を処理する。
// POST /api/admin/wifi/deactivate
func (h *WifiHandler) AdminDeactivate(w http.ResponseWriter, r *http.Request) {
	var req adminUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.UserID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("user_idは必須です。"))
		return
	}

	if err := h.service.Deactivate(r.Context(), req.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toActivationResponse はActivationResultからAPIレスポンスに変換する。
func toActivationResponse(result *wifi.ActivationResult) activationResponse {
	resp := activationResponse{
		EntitlementID: result.Entitlement.ID,
		Source:        string(result.Entitlement.Source()),
		StartAt:       result.Entitlement.StartAt,
		EndAt:         result.Entitlement.EndAt,
	}
	if result.Device != nil {
		resp.DeviceIdentifier = result.Device.Identifier
	}
	return resp
}
