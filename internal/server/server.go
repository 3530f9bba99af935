package server

import (
	"net/http"

	"app/internal/config"
	"app/internal/handler"
	"app/internal/metrics"
	"app/internal/middleware"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// ルーティングに必要なハンドラ一式
type Handlers struct {
	Product       *handler.ProductHandler
	Cart          *handler.CartHandler
	Order         *handler.OrderHandler
	AdminOrder    *handler.AdminOrderHandler
	AdminProduct  *handler.AdminProductHandler
	AdminAuditLog *handler.AdminAuditLogHandler
	Address       *handler.AddressHandler
	Auth          *handler.AuthHandler
}

// New はミドルウェアとルートを設定したechoを返す。
func New(cfg config.Config, resolver middleware.SessionResolver, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{cfg.FEURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Idempotency-Key"},
		AllowCredentials: true,
	}))
	e.Use(metrics.Middleware())

	registerRoutes(e, cfg, resolver, h)

	return e
}
