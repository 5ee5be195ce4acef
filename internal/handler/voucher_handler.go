package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/voucher"
)

// VoucherServiceInterface はバウチャーハンドラーが必要とするサービスインターフェース。
type VoucherServiceInterface interface {
	Create(ctx context.Context, params voucher.CreateParams) ([]*model.Voucher, error)
	List(ctx context.Context, limit int) ([]*model.Voucher, error)
}

// VoucherHandler は管理者向けバウチャー発行・一覧のHTTPハンドラー。
type VoucherHandler struct {
	service VoucherServiceInterface
}

// NewVoucherHandler はVoucherHandlerを生成する。
func NewVoucherHandler(service VoucherServiceInterface) *VoucherHandler {
	return &VoucherHandler{service: service}
}

// generateVouchersRequest はバウチャー発行リクエストのボディ。
type generateVouchersRequest struct {
	Type            string `json:"type"`
	DurationMinutes int    `json:"duration_minutes"`
	MaxDevices      int    `json:"max_devices"`
	Count           int    `json:"count"`
}

// voucherResponse はバウチャー情報のAPIレスポンス。
type voucherResponse struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Type            string     `json:"type"`
	DurationMinutes int        `json:"duration_minutes"`
	MaxDevices      int        `json:"max_devices,omitempty"`
	QRData          string     `json:"qr_data,omitempty"`
	IsUsed          bool       `json:"is_used"`
	UsedBy          string     `json:"used_by,omitempty"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Generate はバウチャーを一括発行する。
// POST /api/admin/vouchers
func (h *VoucherHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateVouchersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	vouchers, err := h.service.Create(r.Context(), voucher.CreateParams{
		Type:            model.VoucherType(req.Type),
		DurationMinutes: req.DurationMinutes,
		MaxDevices:      req.MaxDevices,
		Count:           req.Count,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]voucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		resp = append(resp, toVoucherResponse(v, true))
	}
	respondJSON(w, http.StatusCreated, resp)
}

// List は発行済みバウチャーの一覧を返す。
// GET /api/admin/vouchers?limit=100
func (h *VoucherHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("limitは整数で指定してください。"))
			return
		}
		limit = parsed
	}

	vouchers, err := h.service.List(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]voucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		// 一覧ではQR画像を省いてペイロードを抑える
		resp = append(resp, toVoucherResponse(v, false))
	}
	respondJSON(w, http.StatusOK, resp)
}

// toVoucherResponse はmodel.VoucherからAPIレスポンスに変換する。
func toVoucherResponse(v *model.Voucher, includeQR bool) voucherResponse {
	resp := voucherResponse{
		ID:              v.ID,
		Code:            v.Code,
		Type:            string(v.Type),
		DurationMinutes: v.DurationMinutes,
		MaxDevices:      v.MaxDevices,
		IsUsed:          v.IsUsed,
		UsedBy:          v.UsedBy,
		UsedAt:          v.UsedAt,
		CreatedAt:       v.CreatedAt,
	}
	if includeQR {
		resp.QRData = v.QRData
	}
	return resp
}
