package handler

import (
	"net/http"
	"strconv"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理者用の監査ログ閲覧API
type AdminAuditLogHandler struct {
	uc *usecase.AuditLogUsecase
}

// DI
func NewAdminAuditLogHandler(uc *usecase.AuditLogUsecase) *AdminAuditLogHandler {
	return &AdminAuditLogHandler{uc: uc}
}

// /api/admin/audit-logs を登録（要ログイン＋ADMIN）
func (h *AdminAuditLogHandler) RegisterRoutes(e *echo.Echo, authMW echo.MiddlewareFunc, adminMW echo.MiddlewareFunc) {
	g := e.Group("/api/admin")
	g.Use(authMW)
	g.Use(adminMW)

	g.GET("/audit-logs", h.list)
}

func (h *AdminAuditLogHandler) list(c echo.Context) error {
	var in usecase.ListAuditLogsInput

	if v := c.QueryParam("actor_user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid actor_user_id"})
		}
		in.ActorUserID = &id
	}

	if v := c.QueryParam("resource_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid resource_id"})
		}
		in.ResourceID = &id
	}

	if v := c.QueryParam("from"); v != "" {
		ts, err := parseDateTimeRFC3339(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid from"})
		}
		in.From = &ts
	}

	if v := c.QueryParam("to"); v != "" {
		ts, err := parseDateTimeRFC3339(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid to"})
		}
		in.To = &ts
	}

	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid limit"})
		}
		in.Limit = l
	}

	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid offset"})
		}
		in.Offset = o
	}

	in.Action = c.QueryParam("action")
	in.ResourceType = c.QueryParam("resource_type")

	logs, err := h.uc.List(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, logs)
}
