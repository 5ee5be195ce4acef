// Package device はクライアント端末の登録と上限管理を提供する。
package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/repository"
)

// Registry は端末登録のサービス層。
// 端末の取得・作成、上限超過時の追い出し、接続ポリシーの適用を提供する。
type Registry struct {
	deviceRepo repository.DeviceRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
func NewRegistry(deviceRepo repository.DeviceRepository, logger *slog.Logger) *Registry {
	return &Registry{
		deviceRepo: deviceRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// GetOrCreate は(userID, identifier)の端末を取得し、なければ作成する。
// 既存端末はlast_seen/ip/user_agentを現在時刻で更新する。
// 呼び出し後、この端末は必ずユーザーの端末一覧で最新になる。
func (r *Registry) GetOrCreate(ctx context.Context, userID, identifier, ip, userAgent string) (*model.Device, error) {
	existing, err := r.deviceRepo.FindByUserAndIdentifier(ctx, userID, identifier)
	if err != nil {
		return nil, fmt.Errorf("端末の検索に失敗しました: %w", err)
	}

	now := r.now()
	if existing != nil {
		if err := r.deviceRepo.Touch(ctx, existing.ID, ip, userAgent, now); err != nil {
			return nil, fmt.Errorf("端末の更新に失敗しました: %w", err)
		}
		existing.IP = ip
		existing.UserAgent = userAgent
		existing.LastSeen = now
		return existing, nil
	}

	d := &model.Device{
		UserID:     userID,
		Identifier: identifier,
		IP:         ip,
		UserAgent:  userAgent,
		LastSeen:   now,
	}
	if err := r.deviceRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("端末の作成に失敗しました: %w", err)
	}

	r.logger.Info("新しい端末を登録しました",
		slog.String("user_id", userID),
		slog.String("identifier", identifier),
	)
	return d, nil
}

// EvictExcess はユーザーの端末数が上限以下になるまで古い端末を削除する。
// 追い出しはlast_seenの古い順（同値はIDの小さい順）。
// 直前にGetOrCreateされた端末は最新のため追い出し対象にならない。
func (r *Registry) EvictExcess(ctx context.Context, userID string, max int) error {
	if max < 1 {
		max = 1
	}

	devices, err := r.deviceRepo.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("端末一覧の取得に失敗しました: %w", err)
	}
	if len(devices) <= max {
		return nil
	}

	// ListByUserIDはlast_seen昇順なので先頭から削除する
	for _, d := range devices[:len(devices)-max] {
		if err := r.deviceRepo.DeleteByID(ctx, d.ID); err != nil {
			return fmt.Errorf("端末の削除に失敗しました: %w", err)
		}
		r.logger.Info("上限超過のため古い端末を削除しました",
			slog.String("user_id", userID),
			slog.String("identifier", d.Identifier),
			slog.Int("max_devices", max),
		)
	}
	return nil
}

// Enforce は接続要求に対する端末ポリシーを適用する。
// 端末を登録（または更新）し、上限を超えた分の古い端末を追い出す。
// identifierが空、要求端末がブロック済み、追い出し後も上限超過の場合はAPIErrorを返す。
func (r *Registry) Enforce(ctx context.Context, userID, identifier, ip, userAgent string, max int) (*model.Device, error) {
	if identifier == "" {
		return nil, model.NewDeviceIDRequiredError()
	}

	d, err := r.GetOrCreate(ctx, userID, identifier, ip, userAgent)
	if err != nil {
		return nil, err
	}
	if d.IsBlocked {
		return nil, model.NewDeviceBlockedError()
	}

	if err := r.EvictExcess(ctx, userID, max); err != nil {
		return nil, err
	}

	count, err := r.deviceRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("端末数の取得に失敗しました: %w", err)
	}
	if count > max {
		return nil, model.NewDeviceLimitError(max)
	}

	return d, nil
}

// List はユーザーの端末一覧をlast_seen昇順で返す。
func (r *Registry) List(ctx context.Context, userID string) ([]*model.Device, error) {
	devices, err := r.deviceRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("端末一覧の取得に失敗しました: %w", err)
	}
	return devices, nil
}

// Unregister はユーザーの端末登録を解除する。
// 端末が見つからない場合はfalseを返す。
func (r *Registry) Unregister(ctx context.Context, userID, identifier string) (bool, error) {
	deleted, err := r.deviceRepo.DeleteByUserAndIdentifier(ctx, userID, identifier)
	if err != nil {
		return false, fmt.Errorf("端末登録の解除に失敗しました: %w", err)
	}
	return deleted, nil
}
