package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/barry/paywifi/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	users   map[string]*model.User // phone -> user
	created []*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}
func (m *mockUserRepo) FindByPhoneNumber(ctx context.Context, phone string) (*model.User, error) {
	if u, ok := m.users[phone]; ok {
		return u, nil
	}
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	m.users[user.PhoneNumber] = user
	m.created = append(m.created, user)
	return nil
}
func (m *mockUserRepo) UpdateMaxDevices(ctx context.Context, userID string, max int) error {
	return nil
}

type mockSessionRepo struct {
	sessions map[string]*model.Session
	deleted  []string
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	m.sessions[session.ID] = session
	return nil
}
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return s, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	delete(m.sessions, id)
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			m.deleted = append(m.deleted, id)
		}
	}
	return nil
}

func newTestService() (*Service, *mockUserRepo, *mockSessionRepo) {
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	svc := NewService(users, sessions, ServiceConfig{SessionMaxAge: 86400})
	return svc, users, sessions
}

func validParams() RegisterParams {
	return RegisterParams{
		FirstName:   "Mamadou",
		LastName:    "Diallo",
		PhoneNumber: "+224620000001",
		Password:    "secret-password",
		Country:     "GN",
	}
}

// --- Register のテスト ---

func TestService_Register_CreatesUserAndSession(t *testing.T) {
	svc, users, sessions := newTestService()

	user, session, err := svc.Register(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Register がエラーを返した: %v", err)
	}
	if user.ID == "" {
		t.Error("ユーザーIDが設定されるべき")
	}
	if !user.IsActive {
		t.Error("登録直後はアクティブであるべき")
	}
	if user.HashedPassword == "secret-password" {
		t.Error("パスワードは平文で保存してはならない")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte("secret-password")); err != nil {
		t.Error("ハッシュは元のパスワードと照合できるべき")
	}

	if len(users.created) != 1 {
		t.Errorf("作成ユーザー数 = %d, want 1", len(users.created))
	}
	if session == nil || sessions.sessions[session.ID] == nil {
		t.Error("セッションが発行・保存されるべき")
	}
	if len(session.ID) != 64 {
		t.Errorf("セッションID長 = %d, want 64（32バイトhex）", len(session.ID))
	}
}

func TestService_Register_RejectsDuplicatePhone(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, validParams()); err != nil {
		t.Fatalf("初回登録は成功するべき: %v", err)
	}
	if _, _, err := svc.Register(ctx, validParams()); err == nil {
		t.Fatal("同じ電話番号の再登録は拒否するべき")
	}
}

func TestService_Register_ValidatesInput(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	badPhone := validParams()
	badPhone.PhoneNumber = "0620000001"
	if _, _, err := svc.Register(ctx, badPhone); err == nil {
		t.Error("E.164形式でない電話番号は拒否するべき")
	}

	shortPw := validParams()
	shortPw.Password = "short"
	if _, _, err := svc.Register(ctx, shortPw); err == nil {
		t.Error("8文字未満のパスワードは拒否するべき")
	}
}

// --- Login のテスト ---

func TestService_Login_Success(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Register(ctx, validParams())

	user, session, err := svc.Login(ctx, "+224620000001", "secret-password")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if user.PhoneNumber != "+224620000001" {
		t.Errorf("PhoneNumber = %q", user.PhoneNumber)
	}
	if session == nil {
		t.Fatal("セッションが発行されるべき")
	}
}

// ユーザー不在とパスワード不一致は区別できないエラーを返す
func TestService_Login_UniformFailureMessage(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Register(ctx, validParams())

	_, _, errNoUser := svc.Login(ctx, "+224999999999", "secret-password")
	_, _, errBadPw := svc.Login(ctx, "+224620000001", "wrong-password")

	if errNoUser == nil || errBadPw == nil {
		t.Fatal("どちらも失敗するべき")
	}
	if errNoUser.Error() != errBadPw.Error() {
		t.Errorf("エラーメッセージが区別可能: %q != %q", errNoUser, errBadPw)
	}
}

func TestService_Login_RejectsInactiveUser(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()
	svc.Register(ctx, validParams())
	users.users["+224620000001"].IsActive = false

	if _, _, err := svc.Login(ctx, "+224620000001", "secret-password"); err == nil {
		t.Fatal("無効化されたユーザーのログインは拒否するべき")
	}
}

// --- Logout / GetCurrentUser のテスト ---

func TestService_Logout_DeletesSession(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()
	_, session, _ := svc.Register(ctx, validParams())

	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout がエラーを返した: %v", err)
	}
	if len(sessions.deleted) != 1 || sessions.deleted[0] != session.ID {
		t.Errorf("削除セッション = %v, want [%s]", sessions.deleted, session.ID)
	}
	if err := svc.Logout(ctx, ""); err == nil {
		t.Error("空のセッションIDは拒否するべき")
	}
}

func TestService_LogoutAll_DeletesAllUserSessions(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()
	params := validParams()
	_, first, _ := svc.Register(ctx, params)
	_, second, _ := svc.Login(ctx, params.PhoneNumber, params.Password)

	if err := svc.LogoutAll(ctx, second.ID); err != nil {
		t.Fatalf("LogoutAll がエラーを返した: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Errorf("残存セッション数 = %d, want 0", len(sessions.sessions))
	}
	if len(sessions.deleted) != 2 {
		t.Errorf("削除セッション数 = %d, want 2 (%s, %s)", len(sessions.deleted), first.ID, second.ID)
	}
}

func TestService_LogoutAll_UnknownSession(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.LogoutAll(ctx, "no-such-session"); err == nil {
		t.Error("存在しないセッションは拒否するべき")
	}
	if err := svc.LogoutAll(ctx, ""); err == nil {
		t.Error("空のセッションIDは拒否するべき")
	}
}

func TestService_GetCurrentUser(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()
	user, session, _ := svc.Register(ctx, validParams())

	got, err := svc.GetCurrentUser(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetCurrentUser がエラーを返した: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ユーザーID = %q, want %q", got.ID, user.ID)
	}

	if _, err := svc.GetCurrentUser(ctx, "no-such-session"); err == nil {
		t.Error("存在しないセッションはエラーになるべき")
	}

	// 期限切れセッション
	sessions.sessions[session.ID].ExpiresAt = time.Now().Add(-1 * time.Minute)
	if _, err := svc.GetCurrentUser(ctx, session.ID); err == nil {
		t.Error("期限切れセッションはエラーになるべき")
	} else if !strings.Contains(err.Error(), "セッション") {
		t.Errorf("エラーメッセージが不明瞭: %v", err)
	}
}
