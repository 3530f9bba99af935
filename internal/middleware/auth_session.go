package middleware

import (
	"context"
	"net/http"

	"app/internal/domain/model"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // int64
	CtxUserRoleKey = "user_role" // string
	CtxUserKey     = "user"      // *model.User
)

// セッションCookieの名前
const SessionCookieName = "session"

// Cookieのトークンからユーザーを引く約束
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.User, error)
}

// セッションCookie検証ミドルウェア。
// Cookieなし・無効なら401。ロールはDBのユーザー行から取る（トークンの値は使わない）。
func AuthSession(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := resolveFromCookie(c, resolver)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, user.ID)
			c.Set(CtxUserRoleKey, string(user.Role))
			c.Set(CtxUserKey, user)

			return next(c)
		}
	}
}

// Cookieがあれば使い、なくても通すミドルウェア（/api/auth/me 用）。
func OptionalAuthSession(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := resolveFromCookie(c, resolver)
			if err == nil {
				c.Set(CtxUserIDKey, user.ID)
				c.Set(CtxUserRoleKey, string(user.Role))
				c.Set(CtxUserKey, user)
			}
			return next(c)
		}
	}
}

// ADMIN以外は403で止める。AuthSessionの後段に置く。
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role != string(model.RoleAdmin) {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
			}
			return next(c)
		}
	}
}

func resolveFromCookie(c echo.Context, resolver SessionResolver) (*model.User, error) {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, echo.ErrUnauthorized
	}
	return resolver.ResolveSession(c.Request().Context(), cookie.Value)
}

type errorResponse struct {
	Message string `json:"message"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Message: msg}
}
