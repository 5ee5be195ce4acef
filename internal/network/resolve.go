package network

import (
	"fmt"
	"log/slog"

	"github.com/barry/paywifi/internal/config"
)

// New は設定に応じたProvider実装を生成する。
// プロバイダーの選択は起動時に1回だけ行い、稼働中に切り替えない。
func New(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.NetworkProvider {
	case config.ProviderSimulated:
		return NewSimulatedProvider(logger), nil
	case config.ProviderHTTPRouter:
		return NewHTTPRouterProvider(
			cfg.RouterAPIURL, cfg.RouterAPIKey,
			cfg.ProviderTimeout, cfg.ProviderRetries,
			logger,
		), nil
	case config.ProviderRadius:
		return NewRadiusProvider(logger), nil
	default:
		return nil, fmt.Errorf("不明なネットワークプロバイダーです: %s", cfg.NetworkProvider)
	}
}
