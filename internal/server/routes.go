package server

import (
	"net/http"

	"app/internal/config"
	"app/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerRoutes(e *echo.Echo, cfg config.Config, resolver middleware.SessionResolver, h Handlers) {
	authMW := middleware.AuthSession(resolver)
	optionalMW := middleware.OptionalAuthSession(resolver)
	adminMW := middleware.RequireAdmin()

	// ヘルスチェックとメトリクス
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	//アップロード画像の配信
	e.Static("/uploads", cfg.UploadDir)

	h.Product.RegisterRoutes(e)
	h.Auth.RegisterRoutes(e, optionalMW)
	h.Cart.RegisterRoutes(e, authMW)
	h.Order.RegisterRoutes(e, authMW)
	h.Address.RegisterRoutes(e, authMW)
	h.AdminOrder.RegisterRoutes(e, authMW, adminMW)
	h.AdminProduct.RegisterRoutes(e, authMW, adminMW)
	h.AdminAuditLog.RegisterRoutes(e, authMW, adminMW)
}
