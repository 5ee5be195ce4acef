// Package voucher はバウチャーの発行・検索のドメインロジックを提供する。
package voucher

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/repository"
)

// コード生成用の文字セット。読み間違えやすい文字（0/O, 1/I/L）は除外する。
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// qrPixelSize はQRコード画像の1辺のピクセル数。
const qrPixelSize = 256

// Service はバウチャー管理のサービス層。
// 発行は管理者専用で、コード生成とQRコード画像の埋め込みを行う。
type Service struct {
	voucherRepo repository.VoucherRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(voucherRepo repository.VoucherRepository, logger *slog.Logger) *Service {
	return &Service{
		voucherRepo: voucherRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateParams はバウチャー発行のパラメータ。
type CreateParams struct {
	Type            model.VoucherType
	DurationMinutes int
	MaxDevices      int
	Count           int
}

// Create はパラメータに従ってバウチャーを発行する。
// コードはXXXX-XXXX-XXXX形式で衝突時は再生成する。
// 各バウチャーにはコードを埋め込んだQRコード画像（Base64 PNG）が付く。
func (s *Service) Create(ctx context.Context, params CreateParams) ([]*model.Voucher, error) {
	if params.Count < 1 {
		params.Count = 1
	}
	if params.DurationMinutes < 1 {
		return nil, fmt.Errorf("有効期間は1分以上である必要があります: %d", params.DurationMinutes)
	}
	if params.MaxDevices < 1 {
		params.MaxDevices = 1
	}
	switch params.Type {
	case model.VoucherTypeIndividual, model.VoucherTypeBusiness,
		model.VoucherTypeEnterprise, model.VoucherTypeVIP:
	default:
		return nil, fmt.Errorf("不明なバウチャー種別です: %s", params.Type)
	}

	vouchers := make([]*model.Voucher, 0, params.Count)
	for i := 0; i < params.Count; i++ {
		v, err := s.createOne(ctx, params)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}

	s.logger.Info("バウチャーを発行しました",
		slog.String("type", string(params.Type)),
		slog.Int("count", len(vouchers)),
		slog.Int("duration_minutes", params.DurationMinutes),
	)
	return vouchers, nil
}

// createOne は1枚のバウチャーを発行する。コード衝突時は数回まで再生成する。
func (s *Service) createOne(ctx context.Context, params CreateParams) (*model.Voucher, error) {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("コードの生成に失敗しました: %w", err)
		}

		existing, err := s.voucherRepo.FindByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("コードの重複確認に失敗しました: %w", err)
		}
		if existing != nil {
			continue
		}

		qrData, err := encodeQR(code)
		if err != nil {
			return nil, fmt.Errorf("QRコードの生成に失敗しました: %w", err)
		}

		v := &model.Voucher{
			ID:              uuid.NewString(),
			Code:            code,
			Type:            params.Type,
			DurationMinutes: params.DurationMinutes,
			MaxDevices:      params.MaxDevices,
			QRData:          qrData,
			CreatedAt:       s.now(),
		}
		if err := s.voucherRepo.Create(ctx, v); err != nil {
			return nil, fmt.Errorf("バウチャーの保存に失敗しました: %w", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("コード生成の試行回数が上限に達しました")
}

// FindByCode はコードでバウチャーを検索する。
// 見つからない場合はAPIErrorを返す。
func (s *Service) FindByCode(ctx context.Context, code string) (*model.Voucher, error) {
	v, err := s.voucherRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("バウチャーの検索に失敗しました: %w", err)
	}
	if v == nil {
		return nil, model.NewVoucherNotFoundError()
	}
	return v, nil
}

// List は発行済みバウチャーを作成日時の降順で返す（管理者用）。
func (s *Service) List(ctx context.Context, limit int) ([]*model.Voucher, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	vouchers, err := s.voucherRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("バウチャー一覧の取得に失敗しました: %w", err)
	}
	return vouchers, nil
}

// generateCode はXXXX-XXXX-XXXX形式のコードを暗号論的乱数で生成する。
func generateCode() (string, error) {
	raw := make([]byte, 12)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	buf := make([]byte, 0, 14)
	for i, b := range raw {
		if i > 0 && i%4 == 0 {
			buf = append(buf, '-')
		}
		buf = append(buf, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return string(buf), nil
}

// encodeQR はコードをQRコード画像（Base64 PNG）に変換する。
func encodeQR(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, qrPixelSize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
