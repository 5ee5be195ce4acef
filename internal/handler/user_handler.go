package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
)

// UserAdminInterface は管理者向けユーザー操作が必要とするリポジトリインターフェース。
type UserAdminInterface interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	UpdateMaxDevices(ctx context.Context, userID string, max int) error
}

// UserHandler は管理者向けユーザー管理のHTTPハンドラー。
type UserHandler struct {
	users UserAdminInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserAdminInterface) *UserHandler {
	return &UserHandler{users: users}
}

// updateMaxDevicesRequest はデバイス上限変更リクエストのボディ。
type updateMaxDevicesRequest struct {
	MaxDevices int `json:"max_devices"`
}

// UpdateMaxDevices はユーザーの同時接続デバイス上限を変更する。
// PATCH /api/admin/users/{userID}/max-devices
func (h *UserHandler) UpdateMaxDevices(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req updateMaxDevicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.MaxDevices < 1 {
		apiErr := model.NewInvalidRequestError("max_devicesは1以上である必要があります")
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	if err := h.users.UpdateMaxDevices(r.Context(), userID, req.MaxDevices); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
