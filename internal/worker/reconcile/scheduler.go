// Package reconcile は期限切れアクセスの失効スキャンを提供する。
// 期限切れだがまだアクティブな権利を定期的に洗い出し、
// プロバイダーの無効化とローカル状態の訂正を行う。
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/barry/paywifi/internal/metrics"
	"github.com/barry/paywifi/internal/model"
	"github.com/barry/paywifi/internal/network"
	"github.com/barry/paywifi/internal/repository"
)

// Scheduler は失効スキャンのスケジューリングと実行を行う。
//
// プロバイダーの無効化はベストエフォートで、失敗してもローカル状態は
// 必ず訂正する。取り残されたプロバイダー側の状態は次のサイクルや
// 状態照会のフェイルクローズで無害化される。
// RunOnceは冪等で、同じ時刻で何度実行しても結果は変わらない。
type Scheduler struct {
	activation repository.ActivationRepository
	provider   network.Provider
	collector  metrics.MetricsCollector
	logger     *slog.Logger

	// Now はテストで時刻を差し替えるためのフック。
	Now func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	activation repository.ActivationRepository,
	provider network.Provider,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		activation: activation,
		provider:   provider,
		collector:  collector,
		logger:     logger,
		Now:        time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("失効スキャンスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行（再起動中に期限切れになったアクセスを拾う）
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("失効スキャンの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("失効スキャンスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("失効スキャンの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は期限切れアクセスを1回スキャンして失効処理を行う。
// 1件の失敗は他の件の処理を止めない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	now := s.Now()
	s.collector.RecordReconcileCycle()

	expired, err := s.activation.ListExpired(ctx, now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	s.logger.Info("期限切れアクセスを検出しました",
		slog.Int("count", len(expired)),
	)

	processed := 0
	for _, e := range expired {
		// プロバイダーの無効化はベストエフォート
		provStart := time.Now()
		if err := s.provider.Deactivate(ctx, e.UserID); err != nil {
			s.logger.Warn("プロバイダーの無効化に失敗しました（ローカル状態は訂正します）",
				slog.String("user_id", e.UserID),
				slog.String("error", err.Error()),
			)
		}
		s.collector.RecordProviderLatency("deactivate", time.Since(provStart))

		if err := s.activation.ExpireAccess(ctx, e.UserID, e.EntitlementID, now, model.HistoryNoteExpired); err != nil {
			s.logger.Error("アクセスの失効に失敗しました",
				slog.String("user_id", e.UserID),
				slog.String("entitlement_id", e.EntitlementID),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.collector.RecordDeactivation(model.HistoryNoteExpired)
		processed++
	}

	s.collector.RecordExpiredAccesses(processed)
	s.logger.Info("失効スキャンが完了しました",
		slog.Int("expired", len(expired)),
		slog.Int("processed", processed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
