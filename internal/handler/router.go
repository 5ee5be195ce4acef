package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barry/paywifi/internal/metrics"
	"github.com/barry/paywifi/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	MetricsHandler    http.Handler

	// ヘルスチェック
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// Wi-Fiアクセスライフサイクル
	WifiService WifiServiceInterface

	// プラン
	PlanRepo PlanRepositoryInterface

	// バウチャー（管理者用）
	VoucherService VoucherServiceInterface

	// 接続権
	EntitlementStore EntitlementStoreInterface

	// デバイス
	DeviceRegistry DeviceRegistryInterface

	// 履歴・支払い
	HistoryRepo HistoryRepositoryInterface
	PaymentRepo PaymentRepositoryInterface

	// 管理者向けユーザー操作
	UserRepo UserAdminInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →
//	  （認証ルート）Session → RateLimit(General) →
//	    （管理者ルート）Admin
//
// /auth/register・/auth/login・/health・/metricsはミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	wifiHandler := NewWifiHandler(deps.WifiService)
	planHandler := NewPlanHandler(deps.PlanRepo)
	voucherHandler := NewVoucherHandler(deps.VoucherService)
	subHandler := NewSubscriptionHandler(deps.EntitlementStore)
	deviceHandler := NewDeviceHandler(deps.DeviceRegistry)
	historyHandler := NewHistoryHandler(deps.HistoryRepo)
	userHandler := NewUserHandler(deps.UserRepo)
	paymentHandler := NewPaymentHandler(deps.PaymentRepo)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Check)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/logout-all", authHandler.LogoutAll)
		r.Get("/me", authHandler.Me)
	})

	// プラン一覧はキャプティブポータルのログイン前画面でも表示するため認証不要
	r.Get("/api/plans", planHandler.List)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// Wi-Fiアクセス
		r.Route("/api/wifi", func(r chi.Router) {
			r.Get("/status", wifiHandler.Status)
			r.Post("/buy", wifiHandler.BuyPlan)
			r.Post("/deactivate", wifiHandler.Deactivate)
		})

		// バウチャー引き換え（総当たり対策の専用レート制限を追加）
		r.With(deps.RateLimiter.RedeemMiddleware()).Post("/api/voucher/use", wifiHandler.RedeemVoucher)

		// 接続権
		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Get("/", subHandler.ListMine)
			r.Get("/active", subHandler.GetActive)
		})

		// デバイス管理
		r.Route("/api/devices", func(r chi.Router) {
			r.Get("/", deviceHandler.List)
			r.Delete("/{identifier}", deviceHandler.Unregister)
		})

		// 履歴・支払い
		r.Get("/api/history", historyHandler.ListMine)
		r.Get("/api/payments", paymentHandler.ListMine)

		// --- 管理者ルート ---
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminMiddleware(deps.UserFinder))

			r.Post("/plans", planHandler.Create)

			r.Route("/vouchers", func(r chi.Router) {
				r.Post("/", voucherHandler.Generate)
				r.Get("/", voucherHandler.List)
			})

			r.Route("/wifi", func(r chi.Router) {
				r.Post("/activate", wifiHandler.AdminActivate)
				r.Post("/deactivate", wifiHandler.AdminDeactivate)
			})

			r.Get("/history", historyHandler.ListAll)

			r.Patch("/users/{userID}/max-devices", userHandler.UpdateMaxDevices)
		})
	})

	return r
}
