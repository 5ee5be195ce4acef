package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
)

// PlanRepositoryInterface はプランハンドラーが必要とするリポジトリインターフェース。
type PlanRepositoryInterface interface {
	List(ctx context.Context) ([]*model.Plan, error)
	Create(ctx context.Context, plan *model.Plan) error
}

// PlanHandler はプラン一覧・作成のHTTPハンドラー。
type PlanHandler struct {
	repo PlanRepositoryInterface
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(repo PlanRepositoryInterface) *PlanHandler {
	return &PlanHandler{repo: repo}
}

// planResponse はプラン情報のAPIレスポンス。
type planResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           int    `json:"price"`
	Currency        string `json:"currency"`
	DurationMinutes int    `json:"duration_minutes"`
	IsBusiness      bool   `json:"is_business"`
	MaxDevices      int    `json:"max_devices,omitempty"`
}

// createPlanRequest はプラン作成リクエストのボディ。
type createPlanRequest struct {
	Name            string `json:"name"`
	Price           int    `json:"price"`
	Currency        string `json:"currency"`
	DurationMinutes int    `json:"duration_minutes"`
	IsBusiness      bool   `json:"is_business"`
	MaxDevices      int    `json:"max_devices"`
}

// List は購入可能なプラン一覧を返す。
// GET /api/plans
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.repo.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, toPlanResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Create は新しいプランを作成する。
// POST /api/admin/plans
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if req.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("nameは必須です。"))
		return
	}
	if req.Price < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("priceは0以上である必要があります。"))
		return
	}
	if req.DurationMinutes < 1 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("duration_minutesは1以上である必要があります。"))
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "GNF"
	}

	plan := &model.Plan{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Price:           req.Price,
		Currency:        currency,
		DurationMinutes: req.DurationMinutes,
		IsBusiness:      req.IsBusiness,
		MaxDevices:      req.MaxDevices,
		CreatedAt:       time.Now(),
	}

	if err := h.repo.Create(r.Context(), plan); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toPlanResponse(plan))
}

// toPlanResponse はmodel.PlanからAPIレスポンスに変換する。
func toPlanResponse(plan *model.Plan) planResponse {
	return planResponse{
		ID:              plan.ID,
		Name:            plan.Name,
		Price:           plan.Price,
		Currency:        plan.Currency,
		DurationMinutes: plan.DurationMinutes,
		IsBusiness:      plan.IsBusiness,
		MaxDevices:      plan.MaxDevices,
	}
}
