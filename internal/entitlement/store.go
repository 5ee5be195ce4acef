// Package entitlement は接続権のドメインロジックを提供する。
// プラン購入・バウチャー引き換えのゲート検証と権利の構築、
// および冪等な失効処理を含む。
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/repository"
)

// Store は接続権のサービス層。
// ここでのゲート検証は事前チェックであり、最終的な検証は
// アクティベーショントランザクション内で再実行される。
type Store struct {
	entRepo        repository.EntitlementRepository
	activationRepo repository.ActivationRepository
	now            func() time.Time
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(entRepo repository.EntitlementRepository, activationRepo repository.ActivationRepository) *Store {
	return &Store{
		entRepo:        entRepo,
		activationRepo: activationRepo,
		now:            time.Now,
	}
}

// GetActive は現在有効な権利を返す。存在しない場合はnilを返す。
func (s *Store) GetActive(ctx context.Context, userID string) (*model.Entitlement, error) {
	ent, err := s.entRepo.FindActiveByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("有効な権利の取得に失敗しました: %w", err)
	}
	return ent, nil
}

// ListByUserID はユーザーの全権利を作成日時の降順で返す。
func (s *Store) ListByUserID(ctx context.Context, userID string) ([]*model.Entitlement, error) {
	ents, err := s.entRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("権利一覧の取得に失敗しました: %w", err)
	}
	return ents, nil
}

// CreateFromPlan はプラン購入の権利を検証・構築する。
// 有効な権利が既に存在する場合は重ね掛けを拒否する。
// 返される権利はアクティベーショントランザクションで永続化される。
func (s *Store) CreateFromPlan(ctx context.Context, userID string, plan *model.Plan) (*model.Entitlement, error) {
	now := s.now()

	active, err := s.entRepo.FindActiveByUserID(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("有効な権利の確認に失敗しました: %w", err)
	}
	if active != nil {
		return nil, model.NewAlreadyActiveError()
	}

	return &model.Entitlement{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    plan.ID,
		StartAt:   now,
		EndAt:     now.Add(time.Duration(plan.DurationMinutes) * time.Minute),
		IsActive:  true,
		CreatedAt: now,
	}, nil
}

// CreateFromVoucher はバウチャー引き換えの権利を検証・構築する。
// individual/vipは使用済みフラグで1回限り、business/enterpriseは
// アクティブな権利数がmax_devices未満であることを要求する。
// 返される権利はアクティベーショントランザクションで永続化される。
func (s *Store) CreateFromVoucher(ctx context.Context, userID string, voucher *model.Voucher) (*model.Entitlement, error) {
	now := s.now()

	if voucher.Type.IsMultiDevice() {
		count, err := s.entRepo.CountActiveByVoucherCode(ctx, voucher.Code, now)
		if err != nil {
			return nil, fmt.Errorf("バウチャー利用数の確認に失敗しました: %w", err)
		}
		if count >= voucher.MaxDevices {
			return nil, model.NewVoucherCapacityError()
		}
	} else {
		if voucher.IsUsed {
			return nil, model.NewVoucherUsedError()
		}

		active, err := s.entRepo.FindActiveByUserID(ctx, userID, now)
		if err != nil {
			return nil, fmt.Errorf("有効な権利の確認に失敗しました: %w", err)
		}
		if active != nil {
			return nil, model.NewAlreadyActiveError()
		}
	}

	return &model.Entitlement{
		ID:          uuid.NewString(),
		UserID:      userID,
		VoucherCode: voucher.Code,
		StartAt:     now,
		EndAt:       now.Add(time.Duration(voucher.DurationMinutes) * time.Minute),
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}

// Expire は権利とアクセス状態を失効させる。冪等で、
// 既に失効済みの場合もエラーにならない。
func (s *Store) Expire(ctx context.Context, userID, entitlementID string, note string) error {
	if err := s.activationRepo.ExpireAccess(ctx, userID, entitlementID, s.now(), note); err != nil {
		return fmt.Errorf("権利の失効に失敗しました: %w", err)
	}
	return nil
}
