// Package network はネットワーク機器プロバイダーとの連携を提供する。
// ルーターやRADIUSサーバーへの有効化・無効化指示を抽象化し、
// シミュレーションモードでは機器なしで全機能を動作させる。
package network

import "context"

// Provider はネットワーク機器への操作を抽象化するインターフェース。
// 実装はシミュレーション、HTTPルーター、RADIUSの3種。
// 呼び出しは全て同期で、失敗はエラーとして返す。
// Activateの失敗はアクティベーション全体の失敗を意味するため、
// 呼び出し元は失敗時にローカル状態を一切変更してはならない。
type Provider interface {
	// Activate はユーザーのWi-Fiアクセスを機器側で有効化する。
	Activate(ctx context.Context, userID string) error

	// Deactivate はユーザーのWi-Fiアクセスを機器側で無効化する。
	// 冪等であること（既に無効なユーザーへの呼び出しは成功扱い）。
	Deactivate(ctx context.Context, userID string) error

	// Status はユーザーの機器側アクセス状態を返す。
	Status(ctx context.Context, userID string) (bool, error)

	// Name は実装名を返す（ログ・メトリクス用）。
	Name() string
}
