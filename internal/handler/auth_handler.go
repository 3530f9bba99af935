package handler

import (
	"net/http"
	"time"

	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /api/authのHTTP。セッションCookieの発行・破棄もここで行う。
type AuthHandler struct {
	authUC       *usecase.AuthUsecase
	cartUC       *usecase.CartUsecase
	cookieSecure bool
}

// DI
func NewAuthHandler(authUC *usecase.AuthUsecase, cartUC *usecase.CartUsecase, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authUC:       authUC,
		cartUC:       cartUC,
		cookieSecure: cookieSecure,
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// /api/auth/me のレスポンス。未ログインでも200で返す。
type MeResponse struct {
	User *model.User                `json:"user"`
	Cart []usecase.CartItemResponse `json:"cart"`
}

// /api/auth を登録。/me は任意認証（Cookieがなくても200）。
func (h *AuthHandler) RegisterRoutes(e *echo.Echo, optionalMW echo.MiddlewareFunc) {
	g := e.Group("/api/auth")

	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)
	g.GET("/me", h.me, optionalMW)
}

func (h *AuthHandler) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid body"})
	}

	out, err := h.authUC.Register(c.Request().Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case usecase.ErrValidation:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "validation error"})
		case usecase.ErrEmailAlreadyExists:
			return c.JSON(http.StatusConflict, ErrorResponse{Message: "email already exists"})
		default:
			return writeError(c, err)
		}
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid body"})
	}

	out, side, err := h.authUC.Login(c.Request().Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request().Header.Get("User-Agent"),
	})
	if err != nil {
		switch err {
		case usecase.ErrInvalidCredentials:
			//存在しないメールとパスワード間違いは同じ応答にする
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid credentials"})
		default:
			return writeError(c, err)
		}
	}

	h.setSessionCookie(c, side.PlainToken, side.ExpiresAt)

	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) logout(c echo.Context) error {
	//Cookieがなくても成功扱い
	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authUC.Logout(c.Request().Context(), cookie.Value); err != nil {
			return writeError(c, err)
		}
	}

	h.clearSessionCookie(c)

	return c.JSON(http.StatusOK, SuccessResponse{Message: "logged out"})
}

func (h *AuthHandler) me(c echo.Context) error {
	//OptionalAuthSessionが積んだユーザーを読む。未ログインでも200。
	user, ok := c.Get(middleware.CtxUserKey).(*model.User)
	if !ok || user == nil {
		return c.JSON(http.StatusOK, MeResponse{User: nil, Cart: []usecase.CartItemResponse{}})
	}

	cart, err := h.cartUC.GetCart(c.Request().Context(), user.ID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, MeResponse{User: user, Cart: cart.Items})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
