package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/barry/paywifi/internal/auth"
	"github.com/barry/paywifi/internal/model"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn       func(ctx context.Context, params auth.RegisterParams) (*model.User, *model.Session, error)
	loginFn          func(ctx context.Context, phoneNumber, password string) (*model.User, *model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	logoutAllFn      func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, params auth.RegisterParams) (*model.User, *model.Session, error) {
	return m.registerFn(ctx, params)
}

func (m *mockAuthService) Login(ctx context.Context, phoneNumber, password string) (*model.User, *model.Session, error) {
	return m.loginFn(ctx, phoneNumber, password)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.logoutFn(ctx, sessionID)
}

func (m *mockAuthService) LogoutAll(ctx context.Context, sessionID string) error {
	return m.logoutAllFn(ctx, sessionID)
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return m.getCurrentUserFn(ctx, sessionID)
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		CookieSecure:  false,
		SessionMaxAge: 3600,
	}
}

func sessionCookieFrom(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, params auth.RegisterParams) (*model.User, *model.Session, error) {
			if params.PhoneNumber != "+224620000001" {
				t.Errorf("phone = %q, want +224620000001", params.PhoneNumber)
			}
			return &model.User{
					ID:          "user-1",
					FirstName:   "Amadou",
					LastName:    "Barry",
					PhoneNumber: params.PhoneNumber,
					Country:     "GN",
					IsActive:    true,
				}, &model.Session{
					ID:        "sess-1",
					UserID:    "user-1",
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	body := `{"first_name":"Amadou","last_name":"Barry","phone_number":"+224620000001","password":"secret123","country":"GN"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	cookie := sessionCookieFrom(t, resp)
	if cookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if cookie.Value != "sess-1" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "sess-1")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want %q", user.ID, "user-1")
	}
}

func TestAuthHandler_Register_InvalidBody(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, params auth.RegisterParams) (*model.User, *model.Session, error) {
			t.Fatal("Register should not be called")
			return nil, nil, nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{broken"))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Register_ServiceError(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, params auth.RegisterParams) (*model.User, *model.Session, error) {
			return nil, nil, model.NewInvalidRequestError("この電話番号は既に登録されています。")
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	body := `{"phone_number":"+224620000001","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, phoneNumber, password string) (*model.User, *model.Session, error) {
			if phoneNumber != "+224620000001" || password != "secret123" {
				t.Errorf("unexpected credentials: %q / %q", phoneNumber, password)
			}
			return &model.User{ID: "user-1", PhoneNumber: phoneNumber, IsActive: true},
				&model.Session{ID: "sess-2", UserID: "user-1"}, nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	body := `{"phone_number":"+224620000001","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	cookie := sessionCookieFrom(t, resp)
	if cookie == nil || cookie.Value != "sess-2" {
		t.Error("expected session_id cookie with new session ID")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, phoneNumber, password string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewUnauthorizedError()
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	body := `{"phone_number":"+224620000001","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if cookie := sessionCookieFrom(t, resp); cookie != nil {
		t.Error("session cookie should not be set on failed login")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var loggedOut string
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-3"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if loggedOut != "sess-3" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "sess-3")
	}

	cookie := sessionCookieFrom(t, resp)
	if cookie == nil {
		t.Fatal("expected clearing session cookie")
	}
	if cookie.Value != "" || cookie.MaxAge != -1 {
		t.Errorf("cookie should be cleared: value=%q maxAge=%d", cookie.Value, cookie.MaxAge)
	}
}

func TestAuthHandler_LogoutAll(t *testing.T) {
	var loggedOut string
	service := &mockAuthService{
		logoutAllFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-5"})
	w := httptest.NewRecorder()

	h.LogoutAll(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if loggedOut != "sess-5" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "sess-5")
	}

	cookie := sessionCookieFrom(t, resp)
	if cookie == nil {
		t.Fatal("expected clearing session cookie")
	}
	if cookie.MaxAge != -1 {
		t.Errorf("cookie maxAge = %d, want -1", cookie.MaxAge)
	}
}

func TestAuthHandler_LogoutAll_NoCookie(t *testing.T) {
	service := &mockAuthService{
		logoutAllFn: func(ctx context.Context, sessionID string) error {
			t.Error("Cookieなしの場合サービスは呼ばれないべき")
			return nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)
	w := httptest.NewRecorder()

	h.LogoutAll(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	service := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID == "sess-4" {
				return &model.User{ID: "user-1", PhoneNumber: "+224620000001"}, nil
			}
			return nil, nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-4"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var user userResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.PhoneNumber != "+224620000001" {
		t.Errorf("phone = %q, want +224620000001", user.PhoneNumber)
	}
}

func TestAuthHandler_Me_NoCookie(t *testing.T) {
	service := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			t.Fatal("GetCurrentUser should not be called")
			return nil, nil
		},
	}

	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
