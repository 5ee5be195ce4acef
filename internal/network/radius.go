package network

import (
	"context"
	"fmt"
	"log/slog"
)

// RadiusProvider はRADIUSサーバー連携のProvider実装。
// 現時点では連携先が確定していないため、全操作でエラーを返す。
// TODO: RADIUSサーバーの導入が決まり次第、CoA/Disconnect-Requestで実装する。
type RadiusProvider struct {
	logger *slog.Logger
}

// NewRadiusProvider はRadiusProviderを生成する。
func NewRadiusProvider(logger *slog.Logger) *RadiusProvider {
	return &RadiusProvider{logger: logger}
}

// Activate は未実装のため常にエラーを返す。
func (p *RadiusProvider) Activate(ctx context.Context, userID string) error {
	return fmt.Errorf("RADIUSプロバイダーは未実装です")
}

// Deactivate は未実装のため常にエラーを返す。
func (p *RadiusProvider) Deactivate(ctx context.Context, userID string) error {
	return fmt.Errorf("RADIUSプロバイダーは未実装です")
}

// Status は未実装のため常にエラーを返す。
func (p *RadiusProvider) Status(ctx context.Context, userID string) (bool, error) {
	return false, fmt.Errorf("RADIUSプロバイダーは未実装です")
}

// Name は実装名を返す。
func (p *RadiusProvider) Name() string {
	return "radius"
}
