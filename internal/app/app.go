// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/barry/paywifi/internal/auth"
	"github.com/barry/paywifi/internal/config"
	"github.com/barry/paywifi/internal/database"
	"github.com/barry/paywifi/internal/device"
	"github.com/barry/paywifi/internal/entitlement"
	"github.com/barry/paywifi/internal/handler"
	"github.com/barry/paywifi/internal/logger"
	"github.com/barry/paywifi/internal/metrics"
	"github.com/barry/paywifi/internal/middleware"
	"github.com/barry/paywifi/internal/network"
	"github.com/barry/paywifi/internal/repository"
	"github.com/barry/paywifi/internal/voucher"
	"github.com/barry/paywifi/internal/wifi"
	"github.com/barry/paywifi/internal/worker/cleanup"
	"github.com/barry/paywifi/internal/worker/reconcile"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("初期化に失敗しました: %w", err)
	}

	slog.Info("アプリケーションを起動します",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("network_provider", cfg.NetworkProvider),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("データベース接続のオープンに失敗しました: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("データベースへの接続に失敗しました: %w", err)
	}

	slog.Info("データベース接続を確立しました")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	planRepo := repository.NewPostgresPlanRepo(db)
	voucherRepo := repository.NewPostgresVoucherRepo(db)
	entRepo := repository.NewPostgresEntitlementRepo(db)
	deviceRepo := repository.NewPostgresDeviceRepo(db)
	accessRepo := repository.NewPostgresAccessRepo(db)
	historyRepo := repository.NewPostgresHistoryRepo(db)
	paymentRepo := repository.NewPostgresPaymentRepo(db)
	activationRepo := repository.NewPostgresActivationRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ネットワークプロバイダーの初期化
	provider, err := network.New(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("ネットワークプロバイダーの初期化に失敗しました: %w", err)
	}

	slog.Info("ネットワークプロバイダーを初期化しました",
		slog.String("provider", provider.Name()),
	)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	voucherService := voucher.NewService(voucherRepo, slog.Default())
	entitlementStore := entitlement.NewStore(entRepo, activationRepo)
	deviceRegistry := device.NewRegistry(deviceRepo, slog.Default())

	wifiService := wifi.NewService(wifi.ServiceDeps{
		UserRepo:    userRepo,
		PlanRepo:    planRepo,
		VoucherRepo: voucherRepo,
		AccessRepo:  accessRepo,
		HistoryRepo: historyRepo,
		PaymentRepo: paymentRepo,
		Activation:  activationRepo,

		Entitlements: entitlementStore,
		Devices:      deviceRegistry,
		Provider:     provider,
		Collector:    collector,
		Logger:       slog.Default(),

		DefaultMaxDevices:  cfg.DefaultMaxDevices,
		BusinessMaxDevices: cfg.BusinessMaxDevices,
	})

	// 6. レートリミッターの構築（req/min単位の設定から変換）
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromLimits(cfg.RateLimitGeneral, cfg.RateLimitRedeem),
	)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Collector:         collector,
		MetricsHandler:    metrics.Handler(registry),

		HealthChecker: db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		WifiService:      wifiService,
		PlanRepo:         planRepo,
		VoucherService:   voucherService,
		EntitlementStore: entitlementStore,
		DeviceRegistry:   deviceRegistry,
		HistoryRepo:      historyRepo,
		PaymentRepo:      paymentRepo,
		UserRepo:         userRepo,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("APIサーバーを起動します",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("サーバーのリッスンに失敗しました", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("APIサーバーをシャットダウンします...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗しました: %w", err)
	}

	slog.Info("APIサーバーを正常に停止しました")
	return nil
}

// runWorker はワーカーモードで起動する。
// 失効スキャンスケジューラと履歴クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("データベース接続のオープンに失敗しました: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("データベースへの接続に失敗しました: %w", err)
	}

	slog.Info("データベース接続を確立しました（worker）")

	// 2. 依存の初期化
	activationRepo := repository.NewPostgresActivationRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	provider, err := network.New(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("ネットワークプロバイダーの初期化に失敗しました: %w", err)
	}

	// 3. 失効スキャンスケジューラの初期化
	scheduler := reconcile.NewScheduler(activationRepo, provider, collector, slog.Default())

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.RetentionDays = cfg.HistoryRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("ワーカーをシャットダウンします...")
		cancel()
	}()

	slog.Info("ワーカーを起動します",
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Int("history_retention_days", cfg.HistoryRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("クリーンアップジョブに失敗しました", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("クリーンアップジョブに失敗しました", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 失効スキャンスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ReconcileInterval)

	slog.Info("ワーカーを正常に停止しました")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("データベースマイグレーションを実行します",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("マイグレーションに失敗しました: %w", err)
	}

	slog.Info("データベースマイグレーションが完了しました")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("ヘルスチェックに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ヘルスチェックがステータス%dを返しました", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
