package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
)

// EntitlementStoreInterface は権利ハンドラーが必要とするストアインターフェース。
type EntitlementStoreInterface interface {
	GetActive(ctx context.Context, userID string) (*model.Entitlement, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.Entitlement, error)
}

// SubscriptionHandler はユーザーの接続権参照のHTTPハンドラー。
type SubscriptionHandler struct {
	store EntitlementStoreInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(store EntitlementStoreInterface) *SubscriptionHandler {
	return &SubscriptionHandler{store: store}
}

// entitlementResponse は接続権のAPIレスポンス。
type entitlementResponse struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	PlanID      string    `json:"plan_id,omitempty"`
	VoucherCode string    `json:"voucher_code,omitempty"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	IsActive    bool      `json:"is_active"`
}

// ListMine は自分の接続権一覧を返す。
// GET /api/subscriptions
func (h *SubscriptionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entitlements, err := h.store.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]entitlementResponse, 0, len(entitlements))
	for _, e := range entitlements {
		resp = append(resp, toEntitlementResponse(e))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetActive は現在有効な接続権を返す。存在しない場合は404。
// GET /api/subscriptions/active
func (h *SubscriptionHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entitlement, err := h.store.GetActive(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if entitlement == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNoActiveAccessError())
		return
	}

	respondJSON(w, http.StatusOK, toEntitlementResponse(entitlement))
}

// toEntitlementResponse はmodel.EntitlementからAPIレスポンスに変換する。
func toEntitlementResponse(e *model.Entitlement) entitlementResponse {
	return entitlementResponse{
		ID:          e.ID,
		Source:      string(e.Source()),
		PlanID:      e.PlanID,
		VoucherCode: e.VoucherCode,
		StartAt:     e.StartAt,
		EndAt:       e.EndAt,
		IsActive:    e.IsActive,
	}
}
