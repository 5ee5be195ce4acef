// Package wifi はWi-Fiアクセスのライフサイクルを統括するサービス層を提供する。
// プラン購入・バウチャー引き換え・手動停止・状態照会の各フローで、
// ネットワークプロバイダーとローカル状態の整合を保つ。
package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/barry/paywifi/internal/device"
	"github.com/barry/paywifi/internal/entitlement"
	"github.com/barry/paywifi/internal/metrics"
	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/network"
	"github.com/barry/paywifi/internal/repository"
)

// adminGrantDuration は管理者による手動有効化のデフォルト有効期間。
const adminGrantDuration = 24 * time.Hour

// Service はアクセスライフサイクルのオーケストレーション層。
//
// アクティベーションの順序は固定:
// ゲート検証 → 端末ポリシー → プロバイダー有効化 → 単一トランザクションで永続化。
// プロバイダー有効化が失敗した場合はローカル状態を一切変更せず、
// バウチャーも消費しない。永続化が失敗した場合はプロバイダーを
// ベストエフォートで無効化して取り消す。
type Service struct {
	userRepo    repository.UserRepository
	planRepo    repository.PlanRepository
	voucherRepo repository.VoucherRepository
	accessRepo  repository.AccessRepository
	historyRepo repository.HistoryRepository
	paymentRepo repository.PaymentRepository
	activation  repository.ActivationRepository

	entitlements *entitlement.Store
	devices      *device.Registry
	provider     network.Provider
	collector    metrics.MetricsCollector
	logger       *slog.Logger

	defaultMaxDevices  int
	businessMaxDevices int

	now func() time.Time
}

// ServiceDeps はServiceの依存をまとめる。
type ServiceDeps struct {
	UserRepo    repository.UserRepository
	PlanRepo    repository.PlanRepository
	VoucherRepo repository.VoucherRepository
	AccessRepo  repository.AccessRepository
	HistoryRepo repository.HistoryRepository
	PaymentRepo repository.PaymentRepository
	Activation  repository.ActivationRepository

	Entitlements *entitlement.Store
	Devices      *device.Registry
	Provider     network.Provider
	Collector    metrics.MetricsCollector
	Logger       *slog.Logger

	DefaultMaxDevices  int
	BusinessMaxDevices int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(deps ServiceDeps) *Service {
	if deps.DefaultMaxDevices < 1 {
		deps.DefaultMaxDevices = 1
	}
	if deps.BusinessMaxDevices < 1 {
		deps.BusinessMaxDevices = 5
	}
	return &Service{
		userRepo:           deps.UserRepo,
		planRepo:           deps.PlanRepo,
		voucherRepo:        deps.VoucherRepo,
		accessRepo:         deps.AccessRepo,
		historyRepo:        deps.HistoryRepo,
		paymentRepo:        deps.PaymentRepo,
		activation:         deps.Activation,
		entitlements:       deps.Entitlements,
		devices:            deps.Devices,
		provider:           deps.Provider,
		collector:          deps.Collector,
		logger:             deps.Logger,
		defaultMaxDevices:  deps.DefaultMaxDevices,
		businessMaxDevices: deps.BusinessMaxDevices,
		now:                time.Now,
	}
}

// ClientInfo は接続要求元のクライアント情報。
type ClientInfo struct {
	DeviceIdentifier string
	IP               string
	UserAgent        string
}

// ActivationResult はアクティベーション成功時の結果。
type ActivationResult struct {
	Entitlement *model.Entitlement
	Device      *model.Device
}

// StatusResult は状態照会の結果。
type StatusResult struct {
	Active      bool               `json:"active"`
	EndAt       *time.Time         `json:"end_at,omitempty"`
	ConnectedAt *time.Time         `json:"connected_at,omitempty"`
	Source      string             `json:"source,omitempty"`
	Entitlement *model.Entitlement `json:"-"`
}

// BuyPlan はプラン購入によるアクティベーションを実行する。
// 成功時は支払い記録も作成する。
func (s *Service) BuyPlan(ctx context.Context, userID, planID, method string, client ClientInfo) (*ActivationResult, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("プランの取得に失敗しました: %w", err)
	}
	if plan == nil {
		return nil, model.NewPlanNotFoundError(planID)
	}

	ent, err := s.entitlements.CreateFromPlan(ctx, userID, plan)
	if err != nil {
		return nil, err
	}

	result, err := s.activate(ctx, user, ent, nil, plan, client)
	if err != nil {
		return nil, err
	}

	// 支払い記録。決済プロバイダー連携は扱わないため結果のみ保存する。
	payment := &model.Payment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Method:    method,
		PlanName:  plan.Name,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		Status:    model.PaymentStatusCompleted,
		Reference: ent.ID,
		CreatedAt: s.now(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		// アクセスは既に有効。支払い記録の失敗はログに残して続行する。
		s.logger.Error("支払い記録の作成に失敗しました",
			slog.String("user_id", userID),
			slog.String("plan_id", planID),
			slog.String("error", err.Error()),
		)
	}

	return result, nil
}

// RedeemVoucher はバウチャー引き換えによるアクティベーションを実行する。
func (s *Service) RedeemVoucher(ctx context.Context, userID, code string, client ClientInfo) (*ActivationResult, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	voucher, err := s.voucherRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("バウチャーの取得に失敗しました: %w", err)
	}
	if voucher == nil {
		return nil, model.NewVoucherNotFoundError()
	}

	ent, err := s.entitlements.CreateFromVoucher(ctx, userID, voucher)
	if err != nil {
		return nil, err
	}

	return s.activate(ctx, user, ent, voucher, nil, client)
}

// AdminActivate は管理者による手動有効化を実行する。
// プラン・バウチャーなしの24時間権利を付与する。
func (s *Service) AdminActivate(ctx context.Context, userID string) (*ActivationResult, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	active, err := s.entitlements.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, model.NewAlreadyActiveError()
	}

	now := s.now()
	ent := &model.Entitlement{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartAt:   now,
		EndAt:     now.Add(adminGrantDuration),
		IsActive:  true,
		CreatedAt: now,
	}

	// 管理者付与は端末ポリシーを適用しない
	return s.activateWithoutDevice(ctx, user, ent)
}

// Deactivate はユーザー自身または管理者による手動停止を実行する。
// プロバイダーの無効化はベストエフォートで、ローカル状態は必ず失効させる。
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	ent, err := s.entitlements.GetActive(ctx, userID)
	if err != nil {
		return err
	}
	if ent == nil {
		return model.NewNoActiveAccessError()
	}

	start := s.now()
	if err := s.provider.Deactivate(ctx, userID); err != nil {
		// 失効スキャンが後で再試行するため、ここでは失敗してもローカル状態を直す
		s.logger.Warn("プロバイダーの無効化に失敗しました（ローカル状態は失効させます）",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	s.collector.RecordProviderLatency("deactivate", s.now().Sub(start))

	if err := s.entitlements.Expire(ctx, userID, ent.ID, model.HistoryNoteManual); err != nil {
		return err
	}

	s.collector.RecordDeactivation(model.HistoryNoteManual)
	s.logger.Info("Wi-Fiアクセスを手動停止しました",
		slog.String("user_id", userID),
		slog.String("entitlement_id", ent.ID),
	)
	return nil
}

// Status は現在のアクセス状態を返す。
// ローカル状態とプロバイダー状態の両方が有効な場合のみactiveになる。
// プロバイダー照会に失敗した場合は安全側に倒してinactiveを返す。
func (s *Service) Status(ctx context.Context, userID string) (*StatusResult, error) {
	ent, err := s.entitlements.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return &StatusResult{Active: false}, nil
	}

	access, err := s.accessRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アクセス状態の取得に失敗しました: %w", err)
	}
	if access == nil || !access.IsLive(s.now()) {
		return &StatusResult{Active: false}, nil
	}

	start := s.now()
	providerActive, err := s.provider.Status(ctx, userID)
	s.collector.RecordProviderLatency("status", s.now().Sub(start))
	if err != nil {
		s.logger.Warn("プロバイダーの状態照会に失敗しました（inactive扱い）",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return &StatusResult{Active: false}, nil
	}
	if !providerActive {
		return &StatusResult{Active: false}, nil
	}

	result := &StatusResult{
		Active:      true,
		EndAt:       &ent.EndAt,
		Source:      string(ent.Source()),
		Entitlement: ent,
	}

	// 現在のセッション開始時刻（取得失敗は状態判定に影響させない）
	open, err := s.historyRepo.FindOpenByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("オープン履歴の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if open != nil {
		result.ConnectedAt = &open.StartAt
	}

	return result, nil
}

// findUser はユーザーを取得する。見つからない場合はAPIErrorを返す。
func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// deviceCeiling は接続要求に適用する端末上限を決定する。
// VIPバウチャーとビジネスプランは独自の上限を持つ。
func (s *Service) deviceCeiling(user *model.User, voucher *model.Voucher, plan *model.Plan) int {
	if voucher != nil && voucher.Type == model.VoucherTypeVIP && voucher.MaxDevices > 0 {
		return voucher.MaxDevices
	}
	if plan != nil && plan.IsBusiness && plan.MaxDevices > 0 {
		return plan.MaxDevices
	}
	if user.MaxDevicesAllowed > 0 {
		return user.MaxDevicesAllowed
	}
	if user.IsBusiness {
		return s.businessMaxDevices
	}
	return s.defaultMaxDevices
}

// activate は共通のアクティベーションシーケンスを実行する。
func (s *Service) activate(ctx context.Context, user *model.User, ent *model.Entitlement, voucher *model.Voucher, plan *model.Plan, client ClientInfo) (*ActivationResult, error) {
	source := string(ent.Source())

	ceiling := s.deviceCeiling(user, voucher, plan)
	dev, err := s.devices.Enforce(ctx, user.ID, client.DeviceIdentifier, client.IP, client.UserAgent, ceiling)
	if err != nil {
		return nil, err
	}

	// プロバイダー有効化。失敗した場合はローカル状態を変更せず、
	// 閉じた失敗履歴のみ残す。
	start := s.now()
	if err := s.provider.Activate(ctx, user.ID); err != nil {
		s.collector.RecordProviderLatency("activate", s.now().Sub(start))
		s.recordFailedActivation(ctx, user.ID, dev, voucher, client, err)
		s.collector.RecordActivationFailure(source, metrics.FailReasonProvider)
		return nil, model.NewActivationFailedError(err.Error())
	}
	s.collector.RecordProviderLatency("activate", s.now().Sub(start))

	now := s.now()
	act := &repository.Activation{
		Entitlement: ent,
		Voucher:     voucher,
		Access: &model.WifiAccess{
			UserID:               user.ID,
			Active:               true,
			StartDate:            ent.StartAt,
			EndDate:              ent.EndAt,
			LastIP:               client.IP,
			LastDeviceIdentifier: client.DeviceIdentifier,
			UpdatedAt:            now,
		},
		History: &model.HistorySession{
			UserID:    user.ID,
			DeviceID:  dev.ID,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			StartAt:   ent.StartAt,
			Success:   true,
		},
	}
	if voucher != nil {
		act.MarkVoucherUsed = !voucher.Type.IsMultiDevice()
		act.History.VoucherCode = voucher.Code
	}

	if err := s.activation.CommitActivation(ctx, act); err != nil {
		// プロバイダーは既に有効化済みなので取り消す（ベストエフォート）
		if derr := s.provider.Deactivate(ctx, user.ID); derr != nil {
			s.logger.Error("永続化失敗後のプロバイダー取り消しに失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", derr.Error()),
			)
		}
		s.collector.RecordActivationFailure(source, metrics.FailReasonCommit)
		return nil, s.mapCommitError(err)
	}

	s.collector.RecordActivationSuccess(source)
	s.logger.Info("Wi-Fiアクセスを有効化しました",
		slog.String("user_id", user.ID),
		slog.String("source", source),
		slog.String("entitlement_id", ent.ID),
		slog.Time("end_at", ent.EndAt),
	)

	return &ActivationResult{Entitlement: ent, Device: dev}, nil
}

// activateWithoutDevice は端末ポリシーを適用しないアクティベーション（管理者付与）。
func (s *Service) activateWithoutDevice(ctx context.Context, user *model.User, ent *model.Entitlement) (*ActivationResult, error) {
	start := s.now()
	if err := s.provider.Activate(ctx, user.ID); err != nil {
		s.collector.RecordProviderLatency("activate", s.now().Sub(start))
		s.collector.RecordActivationFailure("admin", metrics.FailReasonProvider)
		return nil, model.NewActivationFailedError(err.Error())
	}
	s.collector.RecordProviderLatency("activate", s.now().Sub(start))

	now := s.now()
	act := &repository.Activation{
		Entitlement: ent,
		Access: &model.WifiAccess{
			UserID:    user.ID,
			Active:    true,
			StartDate: ent.StartAt,
			EndDate:   ent.EndAt,
			UpdatedAt: now,
		},
		History: &model.HistorySession{
			UserID:  user.ID,
			StartAt: ent.StartAt,
			Success: true,
			Note:    "admin",
		},
	}

	if err := s.activation.CommitActivation(ctx, act); err != nil {
		if derr := s.provider.Deactivate(ctx, user.ID); derr != nil {
			s.logger.Error("永続化失敗後のプロバイダー取り消しに失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", derr.Error()),
			)
		}
		s.collector.RecordActivationFailure("admin", metrics.FailReasonCommit)
		return nil, s.mapCommitError(err)
	}

	s.collector.RecordActivationSuccess("admin")
	return &ActivationResult{Entitlement: ent}, nil
}

// recordFailedActivation は失敗したアクティベーションを閉じた履歴として残す。
func (s *Service) recordFailedActivation(ctx context.Context, userID string, dev *model.Device, voucher *model.Voucher, client ClientInfo, cause error) {
	now := s.now()
	entry := &model.HistorySession{
		UserID:    userID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		StartAt:   now,
		EndAt:     &now,
		Success:   false,
		Note:      cause.Error(),
	}
	if dev != nil {
		entry.DeviceID = dev.ID
	}
	if voucher != nil {
		entry.VoucherCode = voucher.Code
	}
	if err := s.historyRepo.Append(ctx, entry); err != nil {
		s.logger.Error("失敗履歴の記録に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// mapCommitError はトランザクション内ゲートの違反をAPIErrorに変換する。
func (s *Service) mapCommitError(err error) error {
	switch {
	case errors.Is(err, repository.ErrActiveEntitlementExists):
		return model.NewAlreadyActiveError()
	case errors.Is(err, repository.ErrVoucherAlreadyUsed):
		return model.NewVoucherUsedError()
	case errors.Is(err, repository.ErrVoucherCapacityReached):
		return model.NewVoucherCapacityError()
	default:
		return fmt.Errorf("アクティベーションの永続化に失敗しました: %w", err)
	}
}
