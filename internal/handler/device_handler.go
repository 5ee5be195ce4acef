package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
)

// DeviceRegistryInterface はデバイスハンドラーが必要とするレジストリインターフェース。
type DeviceRegistryInterface interface {
	List(ctx context.Context, userID string) ([]*model.Device, error)
	Unregister(ctx context.Context, userID, identifier string) (bool, error)
}

// DeviceHandler はユーザーのデバイス管理のHTTPハンドラー。
type DeviceHandler struct {
	registry DeviceRegistryInterface
}

// NewDeviceHandler はDeviceHandlerを生成する。
func NewDeviceHandler(registry DeviceRegistryInterface) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

// deviceResponse はデバイス情報のAPIレスポンス。
type deviceResponse struct {
	Identifier string    `json:"identifier"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IsBlocked  bool      `json:"is_blocked"`
	LastSeen   time.Time `json:"last_seen"`
}

// List は自分のデバイス一覧を返す。
// GET /api/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	devices, err := h.registry.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, deviceResponse{
			Identifier: d.Identifier,
			IP:         d.IP,
			UserAgent:  d.UserAgent,
			IsBlocked:  d.IsBlocked,
			LastSeen:   d.LastSeen,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Unregister は自分のデバイスを登録解除する。
// DELETE /api/devices/{identifier}
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	identifier := chi.URLParam(r, "identifier")
	if identifier == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewDeviceIDRequiredError())
		return
	}

	deleted, err := h.registry.Unregister(r.Context(), userID, identifier)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !deleted {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "DEVICE_NOT_FOUND",
			Message:  "指定されたデバイスが見つかりません。",
			Category: "validation",
			Action:   "デバイス識別子を確認してください。",
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
