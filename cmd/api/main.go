package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/metrics"
	"app/internal/server"
	"app/internal/usecase"
	"app/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// セッションCookie用のトークン発行・検証（HS256）。
type jwtIssuer struct {
	secret []byte
}

func (i *jwtIssuer) Issue(sessionID string, userID int64, role model.Role, now time.Time, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sid":  sessionID,
		"sub":  strconv.FormatInt(userID, 10),
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

func (i *jwtIssuer) Parse(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || parsed == nil || !parsed.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", errors.New("invalid sid")
	}
	return sid, nil
}

func main() {
	// .envはあれば読む（本番は環境変数のみ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	logger.Init(cfg.GoEnv)
	logger.Info("starting api server", "env", cfg.GoEnv)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Product{},
		&model.CartItem{},
		&model.Address{},
		&model.Order{},
		&model.OrderItem{},
		&model.AuditLog{},
	); err != nil {
		logger.Fatal("failed to migrate", "error", err)
	}

	logger.Info("database connected")

	metrics.Init()

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	sessionRepo := infraRepo.NewSessionGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	validate := validator.New()

	//bcrypt（会員登録：Hash / ログイン：Verify）
	hasher := usecase.NewBcryptPasswordHasher(12)
	verifier := usecase.NewBcryptPasswordVerifier()

	issuer := &jwtIssuer{secret: []byte(cfg.JWTSecret)}

	//セッションTTL（24時間）
	sessionTTL := 24 * time.Hour

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, sessionRepo, hasher, verifier, issuer, idGen, clock, validate, sessionTTL)
	productUC := usecase.NewProductUsecase(productRepo, auditRepo)
	cartUC := usecase.NewCartUsecase(cartItemRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txManager, addressRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//Handler生成
	cookieSecure := cfg.GoEnv == "prod"
	handlers := server.Handlers{
		Product:       handler.NewProductHandler(productUC),
		Cart:          handler.NewCartHandler(cartUC),
		Order:         handler.NewOrderHandler(orderUC),
		AdminOrder:    handler.NewAdminOrderHandler(adminOrderUC),
		AdminProduct:  handler.NewAdminProductHandler(productUC, cfg.UploadDir),
		AdminAuditLog: handler.NewAdminAuditLogHandler(auditUC),
		Address:       handler.NewAddressHandler(addressUC),
		Auth:          handler.NewAuthHandler(authUC, cartUC, cookieSecure),
	}

	e := server.New(cfg, authUC, handlers)

	//期限切れセッションの掃除
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := sessionRepo.DeleteExpired(context.Background(), time.Now()); err != nil {
				logger.Error("failed to delete expired sessions", "error", err)
			}
		}
	}()

	//Server起動
	go func() {
		addr := ":" + cfg.Port
		logger.Info("server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
