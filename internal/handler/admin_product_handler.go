package handler

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"app/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SuccessResponse struct {
	Message string `json:"message"`
}

type ProductUpsertRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       int64   `json:"price"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      float64 `json:"rating"`
	IsActive    bool    `json:"is_active"`
}

// 管理者用の商品CRUDと画像アップロード
type AdminProductHandler struct {
	uc        *usecase.ProductUsecase
	uploadDir string
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase, uploadDir string) *AdminProductHandler {
	return &AdminProductHandler{uc: uc, uploadDir: uploadDir}
}

// /api/admin/products と /api/upload を登録（要ログイン＋ADMIN）
func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, authMW echo.MiddlewareFunc, adminMW echo.MiddlewareFunc) {
	admin := e.Group("/api/admin")
	admin.Use(authMW)
	admin.Use(adminMW)

	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)

	e.POST("/api/upload", h.upload, authMW, adminMW)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	adminUserID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
	}

	var req ProductUpsertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid body"})
	}

	id, err := h.uc.AdminCreateProduct(c.Request().Context(), adminUserID, usecase.AdminUpsertProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
		Rating:      req.Rating,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]int64{"id": id})
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	adminUserID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid id"})
	}

	var req ProductUpsertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid body"})
	}

	if err := h.uc.AdminUpdateProduct(c.Request().Context(), adminUserID, id, usecase.AdminUpsertProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
		Rating:      req.Rating,
		IsActive:    req.IsActive,
	}); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	adminUserID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid id"})
	}

	if err := h.uc.AdminDeleteProduct(c.Request().Context(), adminUserID, id); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

// 画像アップロード。<unix-ms>-<random>.<ext> で保存して公開URLを返す。
func (h *AdminProductHandler) upload(c echo.Context) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "image required"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "unsupported file type"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}
	defer src.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)

	dst, err := os.Create(filepath.Join(h.uploadDir, name))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"url": "/uploads/" + name})
}
