package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/wifi"
)

// mockWifiService はWifiServiceInterfaceのモック実装。
type mockWifiService struct {
	buyPlanFn       func(ctx context.Context, userID, planID, method string, client wifi.ClientInfo) (*wifi.ActivationResult, error)
	redeemVoucherFn func(ctx context.Context, userID, code string, client wifi.ClientInfo) (*wifi.ActivationResult, error)
	adminActivateFn func(ctx context.Context, userID string) (*wifi.ActivationResult, error)
	deactivateFn    func(ctx context.Context, userID string) error
	statusFn        func(ctx context.Context, userID string) (*wifi.StatusResult, error)
}

func (m *mockWifiService) BuyPlan(ctx context.Context, userID, planID, method string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
	return m.buyPlanFn(ctx, userID, planID, method, client)
}

func (m *mockWifiService) RedeemVoucher(ctx context.Context, userID, code string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
	return m.redeemVoucherFn(ctx, userID, code, client)
}

func (m *mockWifiService) AdminActivate(ctx context.Context, userID string) (*wifi.ActivationResult, error) {
	return m.adminActivateFn(ctx, userID)
}

func (m *mockWifiService) Deactivate(ctx context.Context, userID string) error {
	return m.deactivateFn(ctx, userID)
}

func (m *mockWifiService) Status(ctx context.Context, userID string) (*wifi.StatusResult, error) {
	return m.statusFn(ctx, userID)
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
}

func sampleActivation() *wifi.ActivationResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &wifi.ActivationResult{
		Entitlement: &model.Entitlement{
			ID:          "ent-1",
			UserID:      "user-1",
			VoucherCode: "AAAA-BBBB-CCCC",
			StartAt:     start,
			EndAt:       start.Add(time.Hour),
			IsActive:    true,
		},
		Device: &model.Device{ID: 7, UserID: "user-1", Identifier: "dev-abc"},
	}
}

func TestWifiHandler_BuyPlan(t *testing.T) {
	service := &mockWifiService{
		buyPlanFn: func(ctx context.Context, userID, planID, method string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			if planID != "plan-1h" {
				t.Errorf("planID = %q, want plan-1h", planID)
			}
			if method != "orange_money" {
				t.Errorf("method = %q, want orange_money", method)
			}
			if client.DeviceIdentifier != "dev-abc" {
				t.Errorf("device identifier = %q, want dev-abc", client.DeviceIdentifier)
			}
			result := sampleActivation()
			result.Entitlement.VoucherCode = ""
			result.Entitlement.PlanID = planID
			return result, nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/wifi/buy", `{"plan_id":"plan-1h","method":"orange_money"}`)
	req.Header.Set("X-Device-ID", "dev-abc")
	w := httptest.NewRecorder()

	h.BuyPlan(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body activationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.EntitlementID != "ent-1" {
		t.Errorf("entitlement_id = %q, want ent-1", body.EntitlementID)
	}
	if body.Source != "plan" {
		t.Errorf("source = %q, want plan", body.Source)
	}
	if body.DeviceIdentifier != "dev-abc" {
		t.Errorf("device_identifier = %q, want dev-abc", body.DeviceIdentifier)
	}
}

func TestWifiHandler_BuyPlan_MissingPlanID(t *testing.T) {
	service := &mockWifiService{
		buyPlanFn: func(ctx context.Context, userID, planID, method string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
			t.Fatal("BuyPlan should not be called")
			return nil, nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/wifi/buy", `{"method":"cash"}`)
	w := httptest.NewRecorder()

	h.BuyPlan(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestWifiHandler_BuyPlan_StackingConflict(t *testing.T) {
	service := &mockWifiService{
		buyPlanFn: func(ctx context.Context, userID, planID, method string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
			return nil, model.NewAlreadyActiveError()
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/wifi/buy", `{"plan_id":"plan-1h"}`)
	w := httptest.NewRecorder()

	h.BuyPlan(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["code"] != model.ErrCodeAlreadyActive {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeAlreadyActive)
	}
}

func TestWifiHandler_RedeemVoucher(t *testing.T) {
	service := &mockWifiService{
		redeemVoucherFn: func(ctx context.Context, userID, code string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
			if code != "AAAA-BBBB-CCCC" {
				t.Errorf("code = %q, want AAAA-BBBB-CCCC", code)
			}
			return sampleActivation(), nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/voucher/use", `{"code":"AAAA-BBBB-CCCC"}`)
	w := httptest.NewRecorder()

	h.RedeemVoucher(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body activationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Source != "voucher" {
		t.Errorf("source = %q, want voucher", body.Source)
	}
}

func TestWifiHandler_RedeemVoucher_UsedVoucher(t *testing.T) {
	service := &mockWifiService{
		redeemVoucherFn: func(ctx context.Context, userID, code string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
			return nil, model.NewVoucherUsedError()
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/voucher/use", `{"code":"AAAA-BBBB-CCCC"}`)
	w := httptest.NewRecorder()

	h.RedeemVoucher(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
}

func TestWifiHandler_RedeemVoucher_MissingCode(t *testing.T) {
	service := &mockWifiService{
		redeemVoucherFn: func(ctx context.Context, userID, code string, client wifi.ClientInfo) (*wifi.ActivationResult, error) {
			t.Fatal("RedeemVoucher should not be called")
			return nil, nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/voucher/use", `{}`)
	w := httptest.NewRecorder()

	h.RedeemVoucher(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestWifiHandler_Status(t *testing.T) {
	endAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	service := &mockWifiService{
		statusFn: func(ctx context.Context, userID string) (*wifi.StatusResult, error) {
			return &wifi.StatusResult{Active: true, EndAt: &endAt, Source: "voucher"}, nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodGet, "/api/wifi/status", "")
	w := httptest.NewRecorder()

	h.Status(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["active"] != true {
		t.Errorf("active = %v, want true", body["active"])
	}
	if body["source"] != "voucher" {
		t.Errorf("source = %v, want voucher", body["source"])
	}
	if _, ok := body["end_at"]; !ok {
		t.Error("expected end_at field in active status")
	}
}

func TestWifiHandler_Status_Inactive(t *testing.T) {
	service := &mockWifiService{
		statusFn: func(ctx context.Context, userID string) (*wifi.StatusResult, error) {
			return &wifi.StatusResult{Active: false}, nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodGet, "/api/wifi/status", "")
	w := httptest.NewRecorder()

	h.Status(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["active"] != false {
		t.Errorf("active = %v, want false", body["active"])
	}
	if _, ok := body["end_at"]; ok {
		t.Error("end_at should be omitted for inactive status")
	}
}

func TestWifiHandler_Deactivate(t *testing.T) {
	var deactivated string
	service := &mockWifiService{
		deactivateFn: func(ctx context.Context, userID string) error {
			deactivated = userID
			return nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/wifi/deactivate", "")
	w := httptest.NewRecorder()

	h.Deactivate(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if deactivated != "user-1" {
		t.Errorf("deactivated user = %q, want user-1", deactivated)
	}
}

func TestWifiHandler_Deactivate_NoActiveAccess(t *testing.T) {
	service := &mockWifiService{
		deactivateFn: func(ctx context.Context, userID string) error {
			return model.NewNoActiveAccessError()
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/wifi/deactivate", "")
	w := httptest.NewRecorder()

	h.Deactivate(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestWifiHandler_AdminActivate(t *testing.T) {
	service := &mockWifiService{
		adminActivateFn: func(ctx context.Context, userID string) (*wifi.ActivationResult, error) {
			if userID != "user-2" {
				t.Errorf("userID = %q, want user-2", userID)
			}
			result := sampleActivation()
			result.Entitlement.VoucherCode = ""
			result.Device = nil
			return result, nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/admin/wifi/activate", `{"user_id":"user-2"}`)
	w := httptest.NewRecorder()

	h.AdminActivate(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body activationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.DeviceIdentifier != "" {
		t.Errorf("device_identifier = %q, want empty", body.DeviceIdentifier)
	}
}

func TestWifiHandler_AdminActivate_MissingUserID(t *testing.T) {
	service := &mockWifiService{
		adminActivateFn: func(ctx context.Context, userID string) (*wifi.ActivationResult, error) {
			t.Fatal("AdminActivate should not be called")
			return nil, nil
		},
	}

	h := NewWifiHandler(service)

	req := authedRequest(http.MethodPost, "/api/admin/wifi/activate", `{}`)
	w := httptest.NewRecorder()

	h.AdminActivate(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
