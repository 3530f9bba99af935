package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

var (
	// 入力が不正
	ErrValidation = errors.New("validation error")

	// emailが既に使用済み
	ErrEmailAlreadyExists = errors.New("email already exists")

	// メールまたはパスワードが違う（どちらが違うかは区別しない）
	ErrInvalidCredentials = errors.New("invalid credentials")

	// セッションが無効（期限切れ・失効済み・改ざん）
	ErrInvalidSession = errors.New("invalid session")
)

// 平文パスワードからハッシュへ。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// 入力パスワードと保存したハッシュを比べる約束
type PasswordVerifier interface {
	Verify(plain string, hashed string) bool
}

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// セッションCookieに入れる署名付きトークンを発行する約束
type SessionTokenIssuer interface {
	Issue(sessionID string, userID int64, role model.Role, now time.Time, expiresAt time.Time) (string, error)
	// トークンからセッションIDを取り出す（署名・期限の検証込み）
	Parse(token string) (sessionID string, err error)
}

type AuthUsecase struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	verifier    PasswordVerifier
	issuer      SessionTokenIssuer
	idGen       IDGenerator
	clock       Clock
	validate    *validator.Validate
	sessionTTL  time.Duration
}

// DI
func NewAuthUsecase(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	verifier PasswordVerifier,
	issuer SessionTokenIssuer,
	idGen IDGenerator,
	clock Clock,
	validate *validator.Validate,
	sessionTTL time.Duration,
) *AuthUsecase {
	return &AuthUsecase{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		verifier:    verifier,
		issuer:      issuer,
		idGen:       idGen,
		clock:       clock,
		validate:    validate,
		sessionTTL:  sessionTTL,
	}
}

// 会員登録の入力
type RegisterInput struct {
	Name     string `validate:"required,max=255"`
	Email    string `validate:"required,email"`
	Mobile   string `validate:"required,len=10,numeric"`
	Password string `validate:"required,min=8"`
}

type RegisterOutput struct {
	User model.User `json:"user"`
}

// 会員登録実行
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (RegisterOutput, error) {
	var out RegisterOutput

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Mobile = strings.TrimSpace(in.Mobile)

	// 形式チェック（emailの形式・mobileは10桁の数字・passwordは8文字以上）
	if err := u.validate.Struct(in); err != nil {
		return out, ErrValidation
	}

	// email重複チェック
	existing, err := u.userRepo.FindByEmail(ctx, in.Email)
	if err == nil && existing != nil {
		return out, ErrEmailAlreadyExists
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return out, err
	}

	// パスワードをハッシュ化（平文は保存しない）
	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return out, err
	}

	now := u.clock.Now()
	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		Mobile:       in.Mobile,
		PasswordHash: hashed,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := u.userRepo.Create(ctx, user); err != nil {
		//事前チェックをすり抜けた同時登録はユニーク制約で検知して409にする
		if errors.Is(err, repository.ErrEmailConflict) {
			return out, ErrEmailAlreadyExists
		}
		return out, err
	}

	out.User = *user
	return out, nil
}

type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
}

type LoginOutput struct {
	User model.User `json:"user"`
}

// handlerがCookieに詰めるために必要な値
type LoginSideEffect struct {
	PlainToken string
	ExpiresAt  time.Time
}

// ログイン処理を実行する
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (LoginOutput, LoginSideEffect, error) {
	var out LoginOutput
	var side LoginSideEffect

	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return out, side, ErrInvalidCredentials
	}

	//emailでユーザー取得
	user, err := u.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return out, side, ErrInvalidCredentials
		}
		return out, side, err
	}

	//パスワード照合
	if ok := u.verifier.Verify(in.Password, user.PasswordHash); !ok {
		return out, side, ErrInvalidCredentials
	}

	//セッション発行（24時間）
	now := u.clock.Now()
	expiresAt := now.Add(u.sessionTTL)
	sessionID := u.idGen.NewID()

	token, err := u.issuer.Issue(sessionID, user.ID, user.Role, now, expiresAt)
	if err != nil {
		return out, side, err
	}

	hash := sha256.Sum256([]byte(token))
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: hex.EncodeToString(hash[:]),
		UserAgent: in.UserAgent,
		ExpiresAt: expiresAt,
		RevokedAt: nil,
		CreatedAt: now,
	}

	if err := u.sessionRepo.Create(ctx, session); err != nil {
		return out, side, err
	}

	out.User = *user
	side.PlainToken = token
	side.ExpiresAt = expiresAt
	return out, side, nil
}

// Cookieのトークンからユーザーを引く。
// 署名検証→セッション行の照合（失効・期限切れ・ハッシュ不一致は無効）。
func (u *AuthUsecase) ResolveSession(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	sessionID, err := u.issuer.Parse(token)
	if err != nil {
		return nil, ErrInvalidSession
	}

	session, err := u.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	now := u.clock.Now()
	if session.RevokedAt != nil || now.After(session.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	hash := sha256.Sum256([]byte(token))
	if session.TokenHash != hex.EncodeToString(hash[:]) {
		return nil, ErrInvalidSession
	}

	user, err := u.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	return user, nil
}

// ログアウト。セッション行を失効させる。2回目以降も成功扱い。
func (u *AuthUsecase) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	sessionID, err := u.issuer.Parse(token)
	if err != nil {
		//壊れたCookieは「ログアウト済み扱い」
		return nil
	}

	return u.sessionRepo.Revoke(ctx, sessionID, u.clock.Now())
}

// bcryptハッシュ化
type BcryptPasswordHasher struct {
	cost int
}

// DI
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost}
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// bcryptハッシュと平文を比較
type BcryptPasswordVerifier struct{}

// DI
func NewBcryptPasswordVerifier() *BcryptPasswordVerifier {
	return &BcryptPasswordVerifier{}
}

func (v *BcryptPasswordVerifier) Verify(plain string, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
