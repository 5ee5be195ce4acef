package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
)

// 履歴一覧のデフォルト・最大件数。
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryRepositoryInterface は履歴ハンドラーが必要とするリポジトリインターフェース。
type HistoryRepositoryInterface interface {
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error)
	ListAll(ctx context.Context, limit int) ([]*model.HistorySession, error)
}

// HistoryHandler は接続履歴参照のHTTPハンドラー。
type HistoryHandler struct {
	repo HistoryRepositoryInterface
}

// NewHistoryHandler はHistoryHandlerを生成する。
func NewHistoryHandler(repo HistoryRepositoryInterface) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// historyResponse は接続履歴エントリのAPIレスポンス。
type historyResponse struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	VoucherCode string     `json:"voucher_code,omitempty"`
	IP          string     `json:"ip,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Success     bool       `json:"success"`
	Note        string     `json:"note,omitempty"`
}

// ListMine は自分の接続履歴を返す。
// GET /api/history?limit=50
func (h *HistoryHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.repo.ListByUserID(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toHistoryResponses(entries))
}

// ListAll は全ユーザーの接続履歴を返す。
// GET /api/admin/history?limit=50
func (h *HistoryHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.repo.ListAll(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toHistoryResponses(entries))
}

// historyLimit はlimitクエリパラメータを解析する。
// 不正な値の場合はエラーレスポンスを書き込みfalseを返す。
func historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("limitは1以上の整数で指定してください。"))
			return 0, false
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, true
}

// toHistoryResponses はHistorySessionのスライスをAPIレスポンスに変換する。
func toHistoryResponses(entries []*model.HistorySession) []historyResponse {
	resp := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyResponse{
			ID:          e.ID,
			UserID:      e.UserID,
			VoucherCode: e.VoucherCode,
			IP:          e.IP,
			UserAgent:   e.UserAgent,
			StartAt:     e.StartAt,
			EndAt:       e.EndAt,
			Success:     e.Success,
			Note:        e.Note,
		})
	}
	return resp
}
