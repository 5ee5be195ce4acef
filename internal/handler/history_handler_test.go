package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/barry/paywifi/internal/model"
)

// mockHistoryRepo はHistoryRepositoryInterfaceのモック実装。
type mockHistoryRepo struct {
	listByUserIDFn func(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error)
	listAllFn      func(ctx context.Context, limit int) ([]*model.HistorySession, error)
}

func (m *mockHistoryRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error) {
	return m.listByUserIDFn(ctx, userID, limit)
}

func (m *mockHistoryRepo) ListAll(ctx context.Context, limit int) ([]*model.HistorySession, error) {
	return m.listAllFn(ctx, limit)
}

func TestHistoryHandler_ListMine(t *testing.T) {
	endAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	repo := &mockHistoryRepo{
		listByUserIDFn: func(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			if limit != defaultHistoryLimit {
				t.Errorf("limit = %d, want %d", limit, defaultHistoryLimit)
			}
			return []*model.HistorySession{
				{ID: 2, UserID: userID, StartAt: endAt.Add(-time.Hour), EndAt: &endAt, Success: true, Note: model.HistoryNoteExpired},
				{ID: 1, UserID: userID, StartAt: endAt.Add(-2 * time.Hour), Success: false, Note: "provider down"},
			}, nil
		},
	}

	h := NewHistoryHandler(repo)

	req := authedRequest(http.MethodGet, "/api/history", "")
	w := httptest.NewRecorder()

	h.ListMine(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var entries []historyResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	if entries[0].Note != model.HistoryNoteExpired {
		t.Errorf("note = %q, want %q", entries[0].Note, model.HistoryNoteExpired)
	}
	if entries[1].EndAt != nil {
		t.Error("open entry should have nil end_at")
	}
}

func TestHistoryHandler_ListMine_LimitClamped(t *testing.T) {
	repo := &mockHistoryRepo{
		listByUserIDFn: func(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error) {
			if limit != maxHistoryLimit {
				t.Errorf("limit = %d, want %d", limit, maxHistoryLimit)
			}
			return nil, nil
		},
	}

	h := NewHistoryHandler(repo)

	req := authedRequest(http.MethodGet, "/api/history?limit=99999", "")
	w := httptest.NewRecorder()

	h.ListMine(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestHistoryHandler_ListMine_InvalidLimit(t *testing.T) {
	repo := &mockHistoryRepo{
		listByUserIDFn: func(ctx context.Context, userID string, limit int) ([]*model.HistorySession, error) {
			t.Fatal("ListByUserID should not be called")
			return nil, nil
		},
	}

	h := NewHistoryHandler(repo)

	req := authedRequest(http.MethodGet, "/api/history?limit=-5", "")
	w := httptest.NewRecorder()

	h.ListMine(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestHistoryHandler_ListAll(t *testing.T) {
	repo := &mockHistoryRepo{
		listAllFn: func(ctx context.Context, limit int) ([]*model.HistorySession, error) {
			return []*model.HistorySession{
				{ID: 1, UserID: "user-1", Success: true},
				{ID: 2, UserID: "user-2", Success: true},
			}, nil
		},
	}

	h := NewHistoryHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/history", nil)
	w := httptest.NewRecorder()

	h.ListAll(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var entries []historyResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entry count = %d, want 2", len(entries))
	}
}
