package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPRouterProvider はルーターの管理APIをHTTPで呼び出すProvider実装。
// 一時的なネットワークエラーや5xxに対して上限付きでリトライする。
type HTTPRouterProvider struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	retries    int
}

// NewHTTPRouterProvider はHTTPRouterProviderを生成する。
// timeoutは1回のHTTP呼び出しの上限、retriesは失敗時の再試行回数。
func NewHTTPRouterProvider(baseURL, apiKey string, timeout time.Duration, retries int, logger *slog.Logger) *HTTPRouterProvider {
	return &HTTPRouterProvider{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		retries:    retries,
	}
}

// Activate はルーターの /clients/activate を呼び出す。
func (p *HTTPRouterProvider) Activate(ctx context.Context, userID string) error {
	return p.post(ctx, "/clients/activate", userID)
}

// Deactivate はルーターの /clients/deactivate を呼び出す。
// ルーター側で未登録のユーザーも成功として扱われる。
func (p *HTTPRouterProvider) Deactivate(ctx context.Context, userID string) error {
	return p.post(ctx, "/clients/deactivate", userID)
}

// Status はルーターの /clients/status を呼び出してアクセス状態を返す。
func (p *HTTPRouterProvider) Status(ctx context.Context, userID string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			p.backoff(ctx, attempt)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			p.baseURL+"/clients/status?user_id="+userID, nil)
		if err != nil {
			return false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
		}
		p.setHeaders(req)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("ルーターAPIがステータス %d を返しました", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return false, fmt.Errorf("ルーターAPIがステータス %d を返しました", resp.StatusCode)
		}
		if readErr != nil {
			return false, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", readErr)
		}

		var result struct {
			Active bool `json:"active"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return false, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
		return result.Active, nil
	}
	return false, fmt.Errorf("ルーターAPIの呼び出しに失敗しました: %w", lastErr)
}

// Name は実装名を返す。
func (p *HTTPRouterProvider) Name() string {
	return "http-router"
}

// post は指定パスにuser_idをPOSTする。5xxとネットワークエラーをリトライする。
func (p *HTTPRouterProvider) post(ctx context.Context, path, userID string) error {
	payload, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			p.backoff(ctx, attempt)
			p.logger.Warn("ルーターAPIを再試行します",
				slog.String("path", path),
				slog.String("user_id", userID),
				slog.Int("attempt", attempt),
			)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		p.setHeaders(req)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("ルーターAPIがステータス %d を返しました", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			// 4xxはリトライしても結果が変わらない
			return fmt.Errorf("ルーターAPIがステータス %d を返しました", resp.StatusCode)
		}
		return nil
	}

	p.logger.Error("ルーターAPIの呼び出しに失敗しました",
		slog.String("path", path),
		slog.String("user_id", userID),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("ルーターAPIの呼び出しに失敗しました: %w", lastErr)
}

func (p *HTTPRouterProvider) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "PayWiFi/1.0")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

// backoff は試行回数に応じた待機を行う。コンテキストのキャンセルで即座に戻る。
func (p *HTTPRouterProvider) backoff(ctx context.Context, attempt int) {
	wait := time.Duration(attempt) * 200 * time.Millisecond
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
