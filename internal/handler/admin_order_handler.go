package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理者用の注文API
type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

// DI
func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// /api/orders/admin を登録（要ログイン＋ADMIN）
func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, authMW echo.MiddlewareFunc, adminMW echo.MiddlewareFunc) {
	g := e.Group("/api/orders/admin")
	g.Use(authMW)
	g.Use(adminMW)

	g.GET("", h.list)
	g.PUT("/:id/status", h.updateStatus)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	f, err := buildAdminOrderFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	}

	rows, err := h.uc.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, rows)
}

// クエリから絞り込み条件を組み立てる（page/limit/status/user_id/from/to）
func buildAdminOrderFilter(c echo.Context) (repo.AdminOrderListFilter, error) {
	f := repo.AdminOrderListFilter{
		Page:   1,
		Limit:  20,
		Status: c.QueryParam("status"),
	}

	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("invalid page")
		}
		f.Page = p
	}

	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("invalid limit")
		}
		f.Limit = l
	}

	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, errors.New("invalid user_id")
		}
		f.UserID = &id
	}

	if v := c.QueryParam("from"); v != "" {
		ts, err := parseDateTimeRFC3339(v)
		if err != nil {
			return f, errors.New("invalid from")
		}
		f.From = &ts
	}

	if v := c.QueryParam("to"); v != "" {
		ts, err := parseDateTimeRFC3339(v)
		if err != nil {
			return f, errors.New("invalid to")
		}
		f.To = &ts
	}

	return f, nil
}

func parseDateTimeRFC3339(v string) (time.Time, error) {
	return time.Parse(time.RFC3339, v)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	adminUserID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid id"})
	}

	var req UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid body"})
	}

	if err := h.uc.UpdateStatus(c.Request().Context(), adminUserID, id, usecase.AdminUpdateOrderStatusInput{
		Status: req.Status,
	}); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}
