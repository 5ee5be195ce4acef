package network

import (
	"context"
	"log/slog"
	"sync"
)

// SimulatedProvider はメモリ上で機器状態を模擬するProvider実装。
// 機器のない開発環境・テスト環境のデフォルト。全ての呼び出しが成功する。
type SimulatedProvider struct {
	mu     sync.Mutex
	active map[string]bool
	logger *slog.Logger
}

// NewSimulatedProvider はSimulatedProviderを生成する。
func NewSimulatedProvider(logger *slog.Logger) *SimulatedProvider {
	return &SimulatedProvider{
		active: make(map[string]bool),
		logger: logger,
	}
}

// Activate はユーザーを有効状態として記録する。
func (p *SimulatedProvider) Activate(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[userID] = true
	p.logger.Info("シミュレーション: アクセスを有効化しました",
		slog.String("user_id", userID),
	)
	return nil
}

// Deactivate はユーザーを無効状態として記録する。既に無効でも成功する。
func (p *SimulatedProvider) Deactivate(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, userID)
	p.logger.Info("シミュレーション: アクセスを無効化しました",
		slog.String("user_id", userID),
	)
	return nil
}

// Status はユーザーの記録上の状態を返す。
func (p *SimulatedProvider) Status(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[userID], nil
}

// Name は実装名を返す。
func (p *SimulatedProvider) Name() string {
	return "simulated"
}
