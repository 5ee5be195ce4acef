// Package auth は電話番号＋パスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/repository"
)

// 電話番号はE.164形式（+224620000000 等）のみ受け付ける。
var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RegisterParams はユーザー登録のパラメータ。
type RegisterParams struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	Password    string
	Country     string
	IsBusiness  bool
	CompanyName string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Register は新規ユーザーを登録しセッションを発行する。
// 電話番号がログインIDを兼ねるため重複登録は拒否する。
func (s *Service) Register(ctx context.Context, params RegisterParams) (*model.User, *model.Session, error) {
	if !phonePattern.MatchString(params.PhoneNumber) {
		return nil, nil, fmt.Errorf("電話番号の形式が不正です")
	}
	if len(params.Password) < 8 {
		return nil, nil, fmt.Errorf("パスワードは8文字以上である必要があります")
	}

	existing, err := s.userRepo.FindByPhoneNumber(ctx, params.PhoneNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("この電話番号は既に登録されています")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:             uuid.NewString(),
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		PhoneNumber:    params.PhoneNumber,
		Country:        params.Country,
		IsBusiness:     params.IsBusiness,
		CompanyName:    params.CompanyName,
		HashedPassword: string(hashed),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("新規ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.Bool("is_business", user.IsBusiness),
	)
	return user, session, nil
}

// Login は電話番号とパスワードを検証しセッションを発行する。
// ユーザー不在とパスワード不一致は同じエラーを返す（列挙攻撃対策）。
func (s *Service) Login(ctx context.Context, phoneNumber, password string) (*model.User, *model.Session, error) {
	user, err := s.userRepo.FindByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, nil, fmt.Errorf("電話番号またはパスワードが正しくありません")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("電話番号またはパスワードが正しくありません")
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("ユーザーがログインしました", slog.String("user_id", user.ID))
	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("セッションIDが必要です")
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

// LogoutAll はセッションの持ち主の全セッションを破棄する。
// 端末紛失時などに他端末のログインもまとめて無効化する。
func (s *Service) LogoutAll(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("セッションIDが必要です")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil {
		return fmt.Errorf("セッションが存在しないか期限切れです")
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, session.UserID); err != nil {
		return fmt.Errorf("全セッションの削除に失敗しました: %w", err)
	}

	slog.Info("全セッションを破棄しました", slog.String("user_id", session.UserID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("セッションIDが必要です")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("セッションが存在しないか期限切れです")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("ユーザーが見つかりません")
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
