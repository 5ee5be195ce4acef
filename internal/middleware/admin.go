package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/barry/paywifi/internal/model"
)

// UserFinder は管理者判定のためにユーザーを検索するインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAdminMiddleware は管理者権限を要求するミドルウェアを生成する。
// SessionMiddlewareの後に配置すること。非管理者には403を返す。
func NewAdminMiddleware(users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("管理者判定のユーザー検索に失敗しました",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if user == nil || !user.IsAdmin {
				slog.Warn("管理者権限のないアクセスを拒否しました",
					slog.String("user_id", userID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
