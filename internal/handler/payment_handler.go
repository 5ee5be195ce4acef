package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
)

const defaultPaymentLimit = 50

// PaymentRepositoryInterface は支払いハンドラーが必要とするリポジトリインターフェース。
type PaymentRepositoryInterface interface {
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
}

// PaymentHandler は支払い履歴参照のHTTPハンドラー。
type PaymentHandler struct {
	repo PaymentRepositoryInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(repo PaymentRepositoryInterface) *PaymentHandler {
	return &PaymentHandler{repo: repo}
}

// paymentResponse は支払い記録のAPIレスポンス。
type paymentResponse struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	PlanName  string    `json:"plan_name"`
	Amount    int       `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListMine は自分の支払い履歴を返す。
// GET /api/payments
func (h *PaymentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	payments, err := h.repo.ListByUserID(r.Context(), userID, defaultPaymentLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentResponse{
			ID:        p.ID,
			Method:    p.Method,
			PlanName:  p.PlanName,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Status:    string(p.Status),
			Reference: p.Reference,
			CreatedAt: p.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
